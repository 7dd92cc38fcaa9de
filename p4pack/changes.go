// Change history: gathering the set of contributing changelists and
// parsing their descriptions.
//
// Copyright by Eric S. Raymond
// SPDX-License-Identifier: BSD-2-Clause

package main

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	textencoding "golang.org/x/text/encoding"
)

// ChangeRecord is the metadata of one submitted changelist, built once
// from the description query and read-only thereafter.
type ChangeRecord struct {
	change      int
	user        string
	date        time.Time
	description string
}

// Revision entries in filelog output look like
// ... #3 change 1421 edit on 2011/01/01 by user@client (text) 'comment'
// and only the change number matters here.
var revisionEntryRE = regexp.MustCompile(`^\.\.\. #\d+ change (\d+) `)

// listChanges collects the deduplicated set of changes that touched the
// given files, batching the query to respect the argument budget.
//
// The -i flag makes filelog follow history across integrations and
// renames; without it the changes behind deletions and moved files would
// be silently missing from the provenance log.  Do not "simplify" it away.
func (ds *DepotSession) listChanges(files map[string]*FileRecord, rev string) (*fastOrderedIntSet, error) {
	tokens := make([]string, 0, len(files))
	for path := range files {
		tokens = append(tokens, path+revQualifier(rev))
	}
	// Stable batch composition; the result is order-independent anyway.
	sort.Strings(tokens)
	ids := newFastOrderedIntSet()
	flush := func(batch []string) error {
		out, err := ds.runner(append([]string{"filelog", "-i"}, batch...))
		if err != nil {
			return err
		}
		for _, line := range splitLines(out) {
			// Everything that is not a revision entry - file
			// headers, integration notes, comment text - is noise
			// to us and gets skipped.
			if m := revisionEntryRE.FindStringSubmatch(line); m != nil {
				id, err := strconv.Atoi(m[1])
				if err != nil {
					return fmt.Errorf("impossible change number in %q: %v", line, err)
				}
				ids.Add(id)
			}
		}
		return nil
	}
	err := batchCommand(ds.baseline("filelog", "-i"), ds.argMax, tokens, flush)
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// descriptionDecoder, when non-nil, transcodes describe output from a
// user-named legacy encoding to UTF-8 before parsing.  Old depots predate
// any server-side encoding discipline.
var descriptionDecoder *textencoding.Decoder

// Change description headers look like
// Change 1421 by esr@snark on 2011/04/08 11:43:11
var changeHeaderRE = regexp.MustCompile(`^Change (\d+) by (\S+) on (\d{4}/\d{2}/\d{2} \d{2}:\d{2}:\d{2})$`)

const changeDateFormat = "2006/01/02 15:04:05"

// States for the description parser.
type describeParserState int

const (
	descIdle        describeParserState = iota // outside any record
	descAfterHeader                            // header seen, blank line required
	descInBody                                 // accumulating description lines
)

// describeChanges fetches and parses the descriptions of the given
// changes, batching the query to respect the argument budget.
func (ds *DepotSession) describeChanges(ids []int) (map[int]*ChangeRecord, error) {
	tokens := make([]string, 0, len(ids))
	for _, id := range ids {
		tokens = append(tokens, strconv.Itoa(id))
	}
	changes := make(map[int]*ChangeRecord, len(ids))
	flush := func(batch []string) error {
		out, err := ds.runner(append([]string{"describe", "-s"}, batch...))
		if err != nil {
			return err
		}
		if descriptionDecoder != nil {
			decoded, err := descriptionDecoder.Bytes([]byte(out))
			if err != nil {
				return fmt.Errorf("transcoding change descriptions: %v", err)
			}
			out = string(decoded)
		}
		return parseDescriptions(out, changes)
	}
	err := batchCommand(ds.baseline("describe", "-s"), ds.argMax, tokens, flush)
	if err != nil {
		return nil, err
	}
	return changes, nil
}

// parseDescriptions parses describe -s output into the changes map.  A
// header line opens a record and must be followed by exactly one blank
// line; description lines carry one leading tab each; a blank line closes
// the record.  Stray text outside a record is tolerated because describe
// appends an affected-files listing we have no use for, but stray text
// inside a record means we have lost our place in the stream and must not
// guess.
func parseDescriptions(text string, changes map[int]*ChangeRecord) error {
	state := descIdle
	var current *ChangeRecord
	for lineno, line := range splitLines(text) {
		switch state {
		case descIdle:
			m := changeHeaderRE.FindStringSubmatch(line)
			if m == nil {
				continue
			}
			id, err := strconv.Atoi(m[1])
			if err != nil {
				return fmt.Errorf("describe line %d: impossible change number: %v",
					lineno+1, err)
			}
			// The timestamp is in the server's local convention
			// with no zone attached; we take the calendar fields
			// at face value rather than pretend to know better.
			when, err := time.ParseInLocation(changeDateFormat, m[3], time.UTC)
			if err != nil {
				return fmt.Errorf("describe line %d: bad timestamp %q: %v",
					lineno+1, m[3], err)
			}
			current = &ChangeRecord{change: id, user: m[2], date: when}
			state = descAfterHeader
		case descAfterHeader:
			if line != "" {
				return fmt.Errorf("describe line %d: expected blank line after header of change %d, saw %q",
					lineno+1, current.change, line)
			}
			state = descInBody
		case descInBody:
			if line == "" {
				changes[current.change] = current
				current = nil
				state = descIdle
				continue
			}
			if !strings.HasPrefix(line, "\t") {
				return fmt.Errorf("describe line %d: garbled description line %q in change %d",
					lineno+1, line, current.change)
			}
			current.description += line[1:] + "\n"
		}
	}
	if state == descAfterHeader {
		return fmt.Errorf("truncated description of change %d", current.change)
	}
	if state == descInBody {
		// Output ended without the closing blank line; the record
		// is complete enough to keep.
		changes[current.change] = current
	}
	return nil
}

// end
