// Tree reconstruction and checkout comparison.
//
// Copyright by Eric S. Raymond
// SPDX-License-Identifier: BSD-2-Clause

package main

import (
	"bytes"
	"errors"
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"sort"
	"strings"

	difflib "github.com/ianbruene/go-difflib/difflib"
)

// reconstruct materializes every surviving file under outdir with correct
// kind, permissions and modification time, and returns the release marker:
// the maximum head change across ALL records, deletions included, since a
// deletion is as much a part of the source snapshot as an edit.
//
// Validation runs over the whole record set before the first byte is
// written; a single record pointing outside the queried root aborts the
// run with the destination tree untouched.
func (ds *DepotSession) reconstruct(files map[string]*FileRecord, root string, rev string, outdir string) (marker int, err error) {
	defer func() {
		if thrown := catch("checkout", recover()); thrown != nil {
			err = errors.New(thrown.message)
		}
	}()

	survivors := make([]string, 0, len(files))
	for path, record := range files {
		if record.change > marker {
			marker = record.change
		}
		if record.action == "delete" {
			continue
		}
		if !strings.HasPrefix(path, root+"/") {
			panic(throw("checkout", "depot path %s escapes the queried root %s",
				path, root))
		}
		survivors = append(survivors, path)
	}
	if len(survivors) == 0 {
		panic(throw("checkout", "no undeleted files under %s, nothing to build", root))
	}
	sort.Strings(survivors)

	baton.startProcess("checkout", len(survivors))
	defer baton.endProcess()
	for _, path := range survivors {
		record := files[path]
		relative := filepath.FromSlash(path[len(root)+1:])
		local := filepath.Join(outdir, relative)
		if err := os.MkdirAll(filepath.Dir(local), userReadWriteSearchMode); err != nil {
			panic(throw("checkout", "creating directory for %s: %v", local, err))
		}
		kind, mode, ferr := mapFiletype(record.ftype)
		if ferr != nil {
			panic(throw("checkout", "%s: %v", path, ferr))
		}
		spec := path + revQualifier(rev)
		if kind == entrySymlink {
			// p4 print of a symlink yields the link target.
			target := strings.TrimRight(ds.mustCapture(
				[]string{"print", "-q", spec}, "checkout"), "\n")
			os.Remove(local)
			if err := os.Symlink(target, local); err != nil {
				panic(throw("checkout", "linking %s: %v", local, err))
			}
		} else {
			ds.mustCapture([]string{"print", "-q", "-o", local, spec}, "checkout")
			if err := os.Chmod(local, mode); err != nil {
				panic(throw("checkout", "setting mode of %s: %v", local, err))
			}
			// Forcing the mtime to the head change time makes
			// repeated checkouts of the same revision
			// byte-and-metadata identical.
			if err := os.Chtimes(local, record.mtime, record.mtime); err != nil {
				panic(throw("checkout", "setting mtime of %s: %v", local, err))
			}
		}
		baton.bump()
	}
	return marker, nil
}

// dirlist lists all entries under a specified directory, relative to it.
func dirlist(top string) stringSet {
	outset := newStringSet()
	filepath.Walk(top, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		relative, rerr := filepath.Rel(top, path)
		if rerr == nil && relative != "." {
			outset.Add(relative)
		}
		return nil
	})
	return outset
}

// compareTrees diffs a fresh checkout against an existing tree and returns
// a report, empty on a clean match.  Content differences come out as
// unified diffs; entries present on one side only and permission
// mismatches get one line each.
func compareTrees(sourcedir string, targetdir string) string {
	if !isdir(sourcedir) || !isdir(targetdir) {
		croak("both comparison directories must exist.")
	}
	sourcefiles := dirlist(sourcedir)
	targetfiles := dirlist(targetdir)
	var report string
	for _, path := range sourcefiles.Union(targetfiles).Ordered() {
		sourcepath := filepath.Join(sourcedir, path)
		targetpath := filepath.Join(targetdir, path)
		if isdir(sourcepath) || isdir(targetpath) {
			continue
		}
		if !targetfiles.Contains(path) {
			report += fmt.Sprintf("%s: source only\n", path)
			continue
		}
		if !sourcefiles.Contains(path) {
			report += fmt.Sprintf("%s: target only\n", path)
			continue
		}
		if islink(sourcepath) || islink(targetpath) {
			sourcelink, _ := os.Readlink(sourcepath)
			targetlink, _ := os.Readlink(targetpath)
			if sourcelink != targetlink {
				report += fmt.Sprintf("%s: link %q -> %q\n",
					path, sourcelink, targetlink)
			}
			continue
		}
		sourceText, err := ioutil.ReadFile(sourcepath)
		if err != nil {
			complain("%s is unreadable", sourcepath)
		}
		targetText, err := ioutil.ReadFile(targetpath)
		if err != nil {
			complain("%s is unreadable", targetpath)
		}
		if !bytes.Equal(sourceText, targetText) {
			text, _ := difflib.GetUnifiedDiffString(difflib.LineDiffParams{
				A:        difflib.SplitLines(string(sourceText)),
				B:        difflib.SplitLines(string(targetText)),
				FromFile: path + " (checkout)",
				ToFile:   path + " (existing)",
				Context:  3,
			})
			report += text
		}
		sstat, err1 := os.Stat(sourcepath)
		tstat, err2 := os.Stat(targetpath)
		if err1 == nil && err2 == nil && sstat.Mode() != tstat.Mode() {
			report += fmt.Sprintf("%s: %0o -> %0o\n",
				path, sstat.Mode(), tstat.Mode())
		}
	}
	return report
}

// end
