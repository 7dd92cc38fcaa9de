// The provenance log: an append-only record of where a package's bits
// came from, serialized as a message-box stream.
//
// Copyright by Eric S. Raymond
// SPDX-License-Identifier: BSD-2-Clause

package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"sort"
	"time"

	fqme "gitlab.com/esr/fqme"
)

// rfc3339 makes a UTC RFC3339 string from a system timestamp.
func rfc3339(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// whoami - ask the programs that keep track of who you are
func whoami() string {
	name, email, err := fqme.WhoAmI()
	if err != nil {
		// Out of alternatives
		log.Fatal("can't deduce user identity!")
	}
	return fmt.Sprintf("%s <%s>", name, email)
}

type provenanceEntry struct {
	actor    string // who made it happen
	date     time.Time
	category string // "build" or "source"
	summary  string
	text     string // free-form body
}

// ProvenanceLog is the ordered sequence of provenance entries for one run.
// The order is fixed: one build entry from process start, the source
// entries in ascending change order, then the closing build entry for the
// checkout - always last, even though its timestamp may not be.
type ProvenanceLog struct {
	actor   string
	entries []provenanceEntry
}

func newProvenanceLog(actor string) *ProvenanceLog {
	pl := new(ProvenanceLog)
	pl.actor = actor
	pl.entries = make([]provenanceEntry, 0)
	return pl
}

func (pl *ProvenanceLog) appendBuild(summary string, text string) {
	pl.entries = append(pl.entries, provenanceEntry{
		actor:    pl.actor,
		date:     time.Now(),
		category: "build",
		summary:  summary,
		text:     text,
	})
}

// appendSources adds one source entry per change, in ascending change-id
// order regardless of the order in which the changes were discovered or
// batched.  Change numbers are assigned monotonically, so this is also
// chronological order as the depot understands it.
func (pl *ProvenanceLog) appendSources(changes map[int]*ChangeRecord) {
	ids := make([]int, 0, len(changes))
	for id := range changes {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		change := changes[id]
		pl.entries = append(pl.entries, provenanceEntry{
			actor:    change.user,
			date:     change.date,
			category: "source",
			summary:  fmt.Sprintf("change %d by %s", change.change, change.user),
			text:     change.description,
		})
	}
}

const entryDelimiter = "------------------------------------------------------------------------------\n"

// Save writes the log in message-box form: dash-delimited stanzas of
// RFC-822-style headers followed by the free-form body.
func (pl *ProvenanceLog) Save(w io.Writer) {
	for i, entry := range pl.entries {
		io.WriteString(w, entryDelimiter)
		fmt.Fprintf(w, "Entry-Number: %d\n", i+1)
		fmt.Fprintf(w, "Category: %s\n", entry.category)
		fmt.Fprintf(w, "Actor: %s\n", entry.actor)
		fmt.Fprintf(w, "Actor-Date: %s\n", rfc3339(entry.date))
		fmt.Fprintf(w, "Summary: %s\n", entry.summary)
		io.WriteString(w, "\n")
		io.WriteString(w, entry.text)
		if entry.text != "" && entry.text[len(entry.text)-1] != '\n' {
			io.WriteString(w, "\n")
		}
	}
}

// write serializes the log exactly once; an existing file at the target
// path means some other run got here first, which is fatal rather than
// something to clobber.
func (pl *ProvenanceLog) write(path string) error {
	fp, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, userReadWriteMode)
	if err != nil {
		return fmt.Errorf("creating provenance log %s: %v", path, err)
	}
	defer fp.Close()
	pl.Save(fp)
	return nil
}

// end
