// Small set classes: an unordered string set for tree comparison and a
// deduplicating insertion-ordered integer set for change IDs.
//
// Copyright by Eric S. Raymond
// SPDX-License-Identifier: BSD-2-Clause

package main

import (
	"sort"
	"strconv"
	"strings"

	orderedset "github.com/emirpasic/gods/sets/linkedhashset"
)

type stringSet struct {
	store map[string]bool
}

func newStringSet(elements ...string) stringSet {
	var ns stringSet
	ns.store = make(map[string]bool, 0)
	for _, el := range elements {
		ns.store[el] = true
	}
	return ns
}

func (s stringSet) Contains(item string) bool {
	return s.store[item]
}

func (s *stringSet) Add(item string) {
	s.store[item] = true
}

func (s stringSet) Union(other stringSet) stringSet {
	union := newStringSet()
	for item := range s.store {
		union.store[item] = true
	}
	for item := range other.store {
		union.store[item] = true
	}
	return union
}

func (s stringSet) Len() int {
	return len(s.store)
}

// Ordered returns the members sorted.  Comparison reports are diffed in
// regression tests, so the order must be stable.
func (s stringSet) Ordered() []string {
	ordered := make([]string, 0, len(s.store))
	for el := range s.store {
		ordered = append(ordered, el)
	}
	sort.Strings(ordered)
	return ordered
}

// fastOrderedIntSet deduplicates ints while remembering insertion order.
type fastOrderedIntSet struct{ set *orderedset.Set }

func newFastOrderedIntSet(x ...int) *fastOrderedIntSet {
	s := orderedset.New()
	for _, i := range x {
		s.Add(i)
	}
	return &fastOrderedIntSet{s}
}

func (s fastOrderedIntSet) Size() int {
	return s.set.Size()
}

func (s fastOrderedIntSet) Contains(x int) bool {
	return s.set.Contains(x)
}

func (s *fastOrderedIntSet) Add(x int) {
	s.set.Add(x)
}

func (s fastOrderedIntSet) Values() []int {
	v := make([]int, 0, s.set.Size())
	it := s.set.Iterator()
	for it.Next() {
		v = append(v, it.Value().(int))
	}
	return v
}

func (s fastOrderedIntSet) Sort() *fastOrderedIntSet {
	v := s.set.Values()
	sort.Slice(v, func(i, j int) bool { return v[i].(int) < v[j].(int) })
	return &fastOrderedIntSet{orderedset.New(v...)}
}

func (s fastOrderedIntSet) String() string {
	var b strings.Builder
	b.WriteRune('[')
	it := s.set.Iterator()
	for it.Next() {
		if it.Index() > 0 {
			b.WriteString(", ")
		}
		b.WriteString(strconv.Itoa(it.Value().(int)))
	}
	b.WriteRune(']')
	return b.String()
}

// end
