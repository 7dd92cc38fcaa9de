package main

// Copyright by Eric S. Raymond
// SPDX-License-Identifier: BSD-2-Clause

import (
	"bytes"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func sampleChanges() map[int]*ChangeRecord {
	when := time.Date(2011, 4, 8, 11, 43, 11, 0, time.UTC)
	return map[int]*ChangeRecord{
		9: {change: 9, user: "esr@snark", date: when, description: "nine\n"},
		2: {change: 2, user: "esr@snark", date: when, description: "two\n"},
		5: {change: 5, user: "wump@gruntle", date: when, description: "five\n"},
	}
}

func TestProvenanceOrdering(t *testing.T) {
	log := newProvenanceLog("A Builder <builder@example.com>")
	log.appendBuild("package build started", "")
	log.appendSources(sampleChanges())
	log.appendBuild("checkout", "release marker 9")

	assertIntEqual(t, len(log.entries), 5)
	assertEqual(t, log.entries[0].category, "build")
	assertEqual(t, log.entries[4].category, "build")
	// Source entries come out in ascending change order no matter how
	// the map iterates.
	assertEqual(t, log.entries[1].summary, "change 2 by esr@snark")
	assertEqual(t, log.entries[2].summary, "change 5 by wump@gruntle")
	assertEqual(t, log.entries[3].summary, "change 9 by esr@snark")
	assertEqual(t, log.entries[1].actor, "esr@snark")
	assertEqual(t, log.entries[0].actor, "A Builder <builder@example.com>")
}

func TestProvenanceSave(t *testing.T) {
	log := newProvenanceLog("A Builder <builder@example.com>")
	log.appendBuild("package build started", "unterminated body")
	log.appendSources(sampleChanges())

	var buf bytes.Buffer
	log.Save(&buf)
	text := buf.String()
	assertIntEqual(t, strings.Count(text, entryDelimiter), 4)
	assertTrue(t, strings.Contains(text, "Entry-Number: 1\n"))
	assertTrue(t, strings.Contains(text, "Entry-Number: 4\n"))
	assertTrue(t, strings.Contains(text, "Category: source\n"))
	assertTrue(t, strings.Contains(text, "Actor-Date: 2011-04-08T11:43:11Z\n"))
	assertTrue(t, strings.Contains(text, "Summary: change 5 by wump@gruntle\n"))
	// Bodies are newline-terminated even when the caller's text is not.
	assertTrue(t, strings.Contains(text, "unterminated body\n"))
	assertTrue(t, strings.HasSuffix(text, "\n"))
}

func TestProvenanceWriteExclusive(t *testing.T) {
	dir, err := ioutil.TempDir("", "p4pack-test")
	assertNoErr(t, err)
	defer os.RemoveAll(dir)

	log := newProvenanceLog("A Builder <builder@example.com>")
	log.appendBuild("package build started", "")
	path := filepath.Join(dir, "hello.provenance")
	assertNoErr(t, log.write(path))
	// A second run must refuse to clobber the first run's log.
	assertErr(t, log.write(path))
}
