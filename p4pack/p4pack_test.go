package main

// Copyright by Eric S. Raymond
// SPDX-License-Identifier: BSD-2-Clause

import (
	"testing"
)

func assertBool(t *testing.T, see bool, expect bool) {
	t.Helper()
	if see != expect {
		t.Errorf("assertBool: expected %v saw %v", expect, see)
	}
}

func assertTrue(t *testing.T, see bool) {
	t.Helper()
	assertBool(t, see, true)
}

func assertEqual(t *testing.T, a string, b string) {
	t.Helper()
	if a != b {
		t.Fatalf("assertEqual: expected %q == %q", a, b)
	}
}

func assertIntEqual(t *testing.T, a int, b int) {
	t.Helper()
	if a != b {
		t.Errorf("assertIntEqual: expected %d == %d", a, b)
	}
}

func assertNoErr(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func assertErr(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected an error, saw none")
	}
}

// testSession makes a DepotSession whose subprocesses are replaced by the
// supplied handler, so parsers see canned text and no p4 is required.
func testSession(handler func(args []string) (string, error)) *DepotSession {
	ds := newDepotSession()
	ds.runner = handler
	return ds
}

func TestOverrideList(t *testing.T) {
	var o overrideList
	assertNoErr(t, o.Set("CC=gcc"))
	assertNoErr(t, o.Set("PREFIX=/usr/local"))
	assertErr(t, o.Set("naked"))
	assertEqual(t, o.String(), "CC=gcc PREFIX=/usr/local")
}

func TestRevQualifier(t *testing.T) {
	assertEqual(t, revQualifier(""), "")
	assertEqual(t, revQualifier("123"), "@123")
	assertEqual(t, revQualifier("@release-1"), "@release-1")
	assertEqual(t, revQualifier("#head"), "#head")
}

func TestSplitLines(t *testing.T) {
	assertIntEqual(t, len(splitLines("")), 0)
	assertIntEqual(t, len(splitLines("a\n")), 1)
	// The interior blank line is a record separator and must survive.
	lines := splitLines("a\n\nb\n")
	assertIntEqual(t, len(lines), 3)
	assertEqual(t, lines[1], "")
	// No trailing newline means the last line still counts.
	assertIntEqual(t, len(splitLines("a\nb")), 2)
}
