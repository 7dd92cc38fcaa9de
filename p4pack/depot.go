// Perforce client-command session and the status-query parser.
//
// Copyright by Eric S. Raymond
// SPDX-License-Identifier: BSD-2-Clause

package main

import (
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"time"

	shellquote "github.com/kballard/go-shellquote"
)

// Go's panic/defer/recover feature is a weak primitive for catchable
// exceptions, but it's all we have. So we write a throw/catch pair;
// throw() must pass its exception payload to panic(), catch() can only be
// called in a defer hook either at the current level or further up the
// call stack and must take recover() as its second argument.
//
// The only error class defined here is "checkout" - unexpected p4 command
// behavior or a bad record discovered while reconstructing the tree.
// Unlabeled panics are presumed to be unrecoverable internal errors.
type exception struct {
	class   string
	message string
}

func (e exception) Error() string {
	return e.message
}

func throw(class string, msg string, args ...interface{}) *exception {
	// We could call panic() in here but we leave it at the callsite
	// to clue the compiler in that no return after is required.
	e := new(exception)
	e.class = class
	e.message = fmt.Sprintf(msg, args...)
	return e
}

func catch(accept string, x interface{}) *exception {
	// Because recover() returns interface{}.
	// Return us to the world of type safety.
	if x == nil {
		return nil
	}
	if err, ok := x.(*exception); ok {
		if err.class == accept {
			return err
		}
		fmt.Fprintf(os.Stderr, "Somebody threw a %s exception while we were awaiting a %s exception!\n", err.class, accept)
	}
	panic(x)
}

// Ceiling on the serialized size of one subprocess invocation: argument
// list plus environment.  Anything near the real kernel limit is asking
// for trouble, so leave generous headroom.
const argumentBudget = 100 * 1024

// splitLines breaks command output into lines, dropping only the empty
// string that a trailing newline produces.  Interior blank lines are
// significant record separators and must survive.
func splitLines(text string) []string {
	lines := strings.Split(text, "\n")
	if n := len(lines); n > 0 && lines[n-1] == "" {
		lines = lines[:n-1]
	}
	return lines
}

// revQualifier normalizes a user-supplied revision into a p4 file-spec
// suffix.  A bare change number or label gets an @ sigil; anything already
// carrying @ or # passes through.
func revQualifier(rev string) string {
	if rev == "" {
		return ""
	}
	if strings.HasPrefix(rev, "@") || strings.HasPrefix(rev, "#") {
		return rev
	}
	return "@" + rev
}

// environFootprint is the byte cost of the calling environment as the
// kernel sees it at execve(2) time: name + value + separator + NUL for
// each variable.  os.Environ hands us "name=value", so that is len+1 each.
func environFootprint() int {
	size := 0
	for _, entry := range os.Environ() {
		size += len(entry) + 1
	}
	return size
}

// DepotSession is the capability for running p4 client commands.  The
// runner member is the single seam through which every subprocess goes,
// so the parsers above it can be fed canned text in tests.
type DepotSession struct {
	p4     string // name of the client executable
	argMax int    // hard ceiling on argv+environ size
	runner func(args []string) (string, error)
}

func newDepotSession() *DepotSession {
	ds := new(DepotSession)
	ds.p4 = "p4"
	ds.argMax = argumentBudget
	ds.runner = ds.execute
	return ds
}

// execute runs one p4 command, capturing combined output.  p4 reports
// protocol trouble on stderr with a nonzero exit, so the combined text is
// what we want in the error message.
func (ds *DepotSession) execute(args []string) (string, error) {
	if verbose {
		announce("executing %s %s", ds.p4, shellquote.Join(args...))
	}
	cmd := exec.Command(ds.p4, args...)
	content, err := cmd.CombinedOutput()
	if err != nil {
		return string(content), fmt.Errorf("executing %s %s: %v",
			ds.p4, shellquote.Join(args...), err)
	}
	return string(content), nil
}

// mustCapture is for callers that have no useful recovery; it converts a
// subprocess failure into a throw of the specified error class.
func (ds *DepotSession) mustCapture(args []string, errorclass string) string {
	data, err := ds.runner(args)
	if err != nil {
		panic(throw(errorclass, "%v", err))
	}
	return data
}

// baseline is the fixed overhead every batched invocation pays before any
// file arguments: client name, subcommand words, environment.
func (ds *DepotSession) baseline(words ...string) int {
	size := len(ds.p4) + environFootprint()
	for _, word := range words {
		size += len(word) + 1
	}
	return size
}

// fstatFields is the exact attribute set we ask for.  Limiting the query
// keeps valueless informational keys (isMapped and friends) out of the
// output, so the record grammar below can stay strict.
const fstatFields = "depotFile,headAction,headChange,headType,headTime"

// FileRecord is the head state of one depot file, built once from the
// status query and read-only thereafter.
type FileRecord struct {
	path   string    // depot path, the record key
	action string    // headAction: add, edit, delete, branch, integrate...
	change int       // headChange
	ftype  string    // headType, unresolved filetype string
	mtime  time.Time // headTime
}

// fstat maps every file under root at the given revision to its head state.
func (ds *DepotSession) fstat(root string, rev string) (map[string]*FileRecord, error) {
	out, err := ds.runner([]string{"fstat", "-T", fstatFields,
		root + "/..." + revQualifier(rev)})
	if err != nil {
		return nil, err
	}
	attributes, err := parseTaggedRecords(out)
	if err != nil {
		return nil, err
	}
	files := make(map[string]*FileRecord, len(attributes))
	for path, fields := range attributes {
		record, err := newFileRecord(path, fields)
		if err != nil {
			return nil, err
		}
		files[path] = record
	}
	return files, nil
}

func newFileRecord(path string, fields map[string]string) (*FileRecord, error) {
	record := new(FileRecord)
	record.path = path
	record.action = fields["headAction"]
	if record.action == "" {
		return nil, fmt.Errorf("status record for %s has no headAction", path)
	}
	change, err := strconv.Atoi(fields["headChange"])
	if err != nil || change <= 0 {
		return nil, fmt.Errorf("status record for %s has bad headChange %q",
			path, fields["headChange"])
	}
	record.change = change
	record.ftype = fields["headType"]
	if when := fields["headTime"]; when != "" {
		seconds, err := strconv.ParseInt(when, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("status record for %s has bad headTime %q",
				path, when)
		}
		record.mtime = time.Unix(seconds, 0)
	}
	return record, nil
}

// States for the tagged-record parser.
type fstatParserState int

const (
	fstatIdle     fstatParserState = iota // between records
	fstatInRecord                         // accumulating attributes
)

// parseTaggedRecords parses blank-line-delimited blocks of "... key value"
// lines, as produced by p4 fstat and friends.  The first key of each
// record must be depotFile; it names the record.  Grammar violations are
// fatal - a status stream we cannot read completely is not one we can
// package from.  A depotFile key repeated across records silently
// overwrites the earlier entry, matching the upstream tool's behavior.
func parseTaggedRecords(text string) (map[string]map[string]string, error) {
	records := make(map[string]map[string]string)
	state := fstatIdle
	var path string
	var fields map[string]string
	for lineno, line := range splitLines(text) {
		if line == "" {
			if state == fstatInRecord {
				records[path] = fields
				fields = nil
				state = fstatIdle
			}
			continue
		}
		if !strings.HasPrefix(line, "... ") {
			return nil, fmt.Errorf("status line %d: malformed record line %q",
				lineno+1, line)
		}
		parts := strings.SplitN(line[len("... "):], " ", 2)
		if len(parts) != 2 || parts[0] == "" {
			return nil, fmt.Errorf("status line %d: malformed attribute %q",
				lineno+1, line)
		}
		key, value := parts[0], parts[1]
		if key == "depotFile" {
			// Record start.  If one is already open this flushes
			// it, so a repeated path silently overwrites the
			// earlier entry.
			if state == fstatInRecord {
				records[path] = fields
			}
			path = value
			fields = make(map[string]string)
			state = fstatInRecord
			continue
		}
		if state == fstatIdle {
			return nil, fmt.Errorf("status line %d: %s before depotFile",
				lineno+1, key)
		}
		fields[key] = value
	}
	if state == fstatInRecord {
		return nil, fmt.Errorf("unterminated status record for %s", path)
	}
	return records, nil
}

/*
 * Filetype mapping
 */

type entryKind int

const (
	entryFile    entryKind = iota // a regular file
	entrySymlink                  // a symbolic link
)

// Aliases p4 accepts for old-style filetype names, resolved to the
// base+modifiers grammar before interpretation.
var filetypeAliases = map[string]string{
	"ctempobj":  "binary+Sw",
	"ctext":     "text+C",
	"cxtext":    "text+Cx",
	"ktext":     "text+k",
	"kxtext":    "text+kx",
	"ltext":     "text+F",
	"tempobj":   "binary+FSw",
	"ubinary":   "binary+F",
	"uresource": "resource+F",
	"uxbinary":  "binary+Fx",
	"xbinary":   "binary+x",
	"xltext":    "text+Fx",
	"xtempobj":  "binary+FSwx",
	"xtext":     "text+x",
	"xunicode":  "unicode+x",
	"xutf16":    "utf16+x",
}

var filetypeRE = regexp.MustCompile(`^([a-z]+)(?:\+([A-Za-z]+))?$`)

// mapFiletype interprets a p4 filetype string as a POSIX entry kind and
// permission mask.  Executability and writability are the only modifiers
// reflected in the mode; +k, +C and the rest are storage directives with
// no filesystem meaning, so they are recognized and dropped.
func mapFiletype(ftype string) (entryKind, os.FileMode, error) {
	if canonical, ok := filetypeAliases[ftype]; ok {
		ftype = canonical
	}
	m := filetypeRE.FindStringSubmatch(ftype)
	if m == nil {
		return entryFile, 0, fmt.Errorf("malformed filetype %q", ftype)
	}
	base, modifiers := m[1], m[2]
	kind := entryFile
	if base == "symlink" {
		kind = entrySymlink
	}
	mode := os.FileMode(0444)
	if strings.ContainsRune(modifiers, 'x') {
		mode |= 0111
	}
	if strings.ContainsRune(modifiers, 'w') {
		mode |= 0200
	}
	return kind, mode, nil
}

// end
