package main

// Copyright by Eric S. Raymond
// SPDX-License-Identifier: BSD-2-Clause

import (
	"strings"
	"testing"
)

func collectBatches(t *testing.T, baseline int, ceiling int, tokens []string) [][]string {
	t.Helper()
	var batches [][]string
	err := batchCommand(baseline, ceiling, tokens, func(batch []string) error {
		saved := make([]string, len(batch))
		copy(saved, batch)
		batches = append(batches, saved)
		return nil
	})
	assertNoErr(t, err)
	return batches
}

func TestBatchBoundaries(t *testing.T) {
	// Each token costs 3; two fit exactly at the ceiling, the third
	// must open a new batch.
	batches := collectBatches(t, 10, 16, []string{"aa", "bb", "cc", "dd"})
	assertIntEqual(t, len(batches), 2)
	assertEqual(t, strings.Join(batches[0], " "), "aa bb")
	assertEqual(t, strings.Join(batches[1], " "), "cc dd")
}

func TestBatchPreservesSequence(t *testing.T) {
	tokens := []string{"alpha", "be", "gamma!", "d", "epsilon", "z", "eta"}
	longest := 0
	for _, token := range tokens {
		if len(token)+1 > longest {
			longest = len(token) + 1
		}
	}
	// Whatever the ceiling, the concatenation of the batches must be
	// the input sequence.  This is the invariant the change queries
	// lean on.
	for ceiling := 100 + longest; ceiling < 100+longest+40; ceiling++ {
		var flat []string
		err := batchCommand(100, ceiling, tokens, func(batch []string) error {
			assertTrue(t, len(batch) > 0)
			flat = append(flat, batch...)
			return nil
		})
		assertNoErr(t, err)
		assertEqual(t, strings.Join(flat, "|"), strings.Join(tokens, "|"))
	}
}

func TestBatchOversizedToken(t *testing.T) {
	// A token that alone busts the ceiling still goes out, alone.
	big := strings.Repeat("y", 50)
	batches := collectBatches(t, 10, 15, []string{"x", big, "z"})
	assertIntEqual(t, len(batches), 3)
	assertEqual(t, batches[1][0], big)
}

func TestBatchEmptyInput(t *testing.T) {
	err := batchCommand(10, 100, nil, func(batch []string) error {
		t.Fatal("flush called for empty input")
		return nil
	})
	assertNoErr(t, err)
}
