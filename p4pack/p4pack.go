// p4pack builds a distributable package from a subtree of a Perforce depot.
package main

// Copyright by Eric S. Raymond
// SPDX-License-Identifier: BSD-2-Clause

import (
	"flag"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"

	shlex "github.com/anmitsu/go-shlex"
	readline "github.com/chzyer/readline"
	shellquote "github.com/kballard/go-shellquote"
	terminal "golang.org/x/crypto/ssh/terminal"
	ianaindex "golang.org/x/text/encoding/ianaindex"
)

const version = "1.0"

// Change these in the unlikely event this is ported to Windows
const userReadWriteMode = 0644       // rw-r--r--
const userReadWriteSearchMode = 0775 // rwxrwxr-x

var checkoutOnly bool
var quiet bool
var verbose bool

var comparedir string
var depotRoot string
var destdir string
var encoding string
var packager string
var platform string
var revision string

// overrideList collects repeated -D var=value options.
type overrideList []string

func (o *overrideList) String() string {
	return strings.Join(*o, " ")
}

func (o *overrideList) Set(value string) error {
	if !strings.Contains(value, "=") {
		return fmt.Errorf("override %q is not of the form var=value", value)
	}
	*o = append(*o, value)
	return nil
}

var overrides overrideList

var baton = newBaton(false)

func croak(msg string, args ...interface{}) {
	content := fmt.Sprintf(msg, args...)
	os.Stderr.WriteString("p4pack: " + content + "\n")
	os.Exit(1)
}

func announce(msg string, args ...interface{}) {
	if !quiet {
		content := fmt.Sprintf(msg, args...)
		os.Stdout.WriteString("p4pack: " + content + "\n")
	}
}

func complain(msg string, args ...interface{}) {
	if !quiet {
		content := fmt.Sprintf(msg, args...)
		os.Stderr.WriteString("p4pack: " + content + "\n")
	}
}

func exists(pathname string) bool {
	_, err := os.Stat(pathname)
	return !os.IsNotExist(err)
}

func isdir(pathname string) bool {
	st, err := os.Stat(pathname)
	return err == nil && st.Mode().IsDir()
}

func islink(pathname string) bool {
	st, err := os.Lstat(pathname)
	return err == nil && (st.Mode()&os.ModeSymlink) != 0
}

// runProcess hands a command line to the shell-less equivalent of system(3),
// inheriting our standard streams.  Used only for the downstream packaging
// command; depot queries go through DepotSession so they can be mocked.
func runProcess(dcmd string, legend string) error {
	if legend != "" {
		legend = " " + legend
	}
	if verbose {
		announce("executing '%s'%s", dcmd, legend)
	}
	words, err := shlex.Split(dcmd, true)
	if err != nil {
		return fmt.Errorf("preparing %q for execution: %v", dcmd, err)
	}
	cmd := exec.Command(words[0], words[1:]...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	err = cmd.Run()
	if err != nil {
		return fmt.Errorf("executing %q: %v", dcmd, err)
	}
	return nil
}

func input(prompt string) string {
	rl, err := readline.New(prompt)
	if err != nil {
		croak("initializing prompt: %v", err)
	}
	defer rl.Close()
	line, _ := rl.Readline()
	return line
}

// build runs the whole extraction sequence for one package, strictly in
// order: status query, content fetch, history query, description query,
// provenance assembly, downstream invocation.
func build(pkgname string) {
	dest := destdir
	if dest == "" {
		dest = pkgname
	}
	session := newDepotSession()
	log := newProvenanceLog(whoami())
	log.appendBuild("package build started",
		fmt.Sprintf("p4pack %s: building %s from %s\n",
			version, pkgname, depotRoot))

	files, err := session.fstat(depotRoot, revision)
	if err != nil {
		croak("%v", err)
	}
	marker, err := session.reconstruct(files, depotRoot, revision, dest)
	if err != nil {
		croak("%v", err)
	}
	ids, err := session.listChanges(files, revision)
	if err != nil {
		croak("%v", err)
	}
	changes, err := session.describeChanges(ids.Sort().Values())
	if err != nil {
		croak("%v", err)
	}
	log.appendSources(changes)
	log.appendBuild("checkout",
		fmt.Sprintf("checked out %s/...@%d into %s\n", depotRoot, marker, dest))
	logfile := dest + ".provenance"
	if err := log.write(logfile); err != nil {
		croak("%v", err)
	}
	announce("%d files at change %d, provenance in %s", len(files), marker, logfile)

	if comparedir != "" {
		diff := compareTrees(dest, comparedir)
		if diff != "" {
			fmt.Print(diff)
			os.Exit(1)
		}
		announce("checkout matches %s", comparedir)
		return
	}
	if checkoutOnly {
		return
	}
	invokePackager(pkgname, marker, dest)
}

// invokePackager hands the finished tree to the downstream packaging command,
// passing the release marker and the source locator as parameters.
func invokePackager(pkgname string, marker int, dest string) {
	locator := fmt.Sprintf("%s/...@%d", depotRoot, marker)
	argv := make([]string, 0)
	if platform != "" {
		argv = append(argv, "-T", platform)
	}
	argv = append(argv, overrides...)
	argv = append(argv, pkgname, strconv.Itoa(marker), locator, dest)
	dcmd := packager + " " + shellquote.Join(argv...)
	if err := runProcess(dcmd, "packaging"); err != nil {
		croak("%v", err)
	}
}

func main() {
	flags := flag.NewFlagSet("p4pack", flag.ExitOnError)

	flags.BoolVar(&checkoutOnly, "c", false, "check out the tree but skip the packaging command")
	flags.BoolVar(&quiet, "q", false, "run as quietly as possible")
	flags.BoolVar(&verbose, "v", false, "show subcommands and diagnostics")

	flags.StringVar(&comparedir, "C", "", "compare the fresh checkout against an existing tree")
	flags.StringVar(&depotRoot, "p", "//depot", "depot root path to package")
	flags.StringVar(&destdir, "d", "", "destination directory (default ./<package>)")
	flags.StringVar(&encoding, "e", "", "IANA name of the change-description encoding")
	flags.StringVar(&packager, "x", "mkpackage", "downstream packaging command")
	flags.StringVar(&platform, "T", "", "target platform label passed to the packaging command")
	flags.StringVar(&revision, "r", "", "revision qualifier (change number or label)")
	flags.Var(&overrides, "D", "var=value override passed to the packaging command (repeatable)")

	explain := func() {
		print(`
p4pack [options] package-name

Check out a depot subtree with correct modes and timestamps, write a
provenance log of the contributing changes, and invoke a packaging command.

p4pack options:
`)
		flags.PrintDefaults()
		os.Exit(1)
	}

	if len(os.Args) >= 2 && os.Args[1] == "help" {
		explain()
	}
	flags.Parse(os.Args[1:])

	args := flags.Args()
	var pkgname string
	if len(args) > 0 {
		pkgname = args[0]
	} else if terminal.IsTerminal(0) {
		pkgname = strings.TrimSpace(input("p4pack: package name? "))
	}
	if pkgname == "" {
		fmt.Fprintf(os.Stderr, "p4pack: a package name is required.\n")
		explain()
	}
	if quiet && verbose {
		croak("-q and -v contradict each other, bailing out.")
	}
	if encoding != "" {
		enc, err := ianaindex.IANA.Encoding(encoding)
		if err != nil || enc == nil {
			croak("can't set up codec %s: %v", encoding, err)
		}
		descriptionDecoder = enc.NewDecoder()
	}
	depotRoot = strings.TrimRight(depotRoot, "/")
	baton = newBaton(!quiet)

	build(pkgname)
}

// end
