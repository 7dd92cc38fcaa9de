// Baton machinery, much simplified: a single synchronous progress meter
// for the content-fetch loop.
//
// Copyright by Eric S. Raymond
// SPDX-License-Identifier: BSD-2-Clause

package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	terminal "golang.org/x/crypto/ssh/terminal"
)

// Baton shows count-of-expected progress on the status line of a terminal.
// When stdout is not a terminal, or quiet mode is on, it emits nothing;
// progress display is cosmetic and must never change program behavior.
type Baton struct {
	progressEnabled bool
	stream          *os.File
	legend          string
	count           int
	expected        int
	start           time.Time
	lastupdate      time.Time
}

func newBaton(enable bool) *Baton {
	me := new(Baton)
	me.stream = os.Stdout
	me.progressEnabled = enable && terminal.IsTerminal(int(me.stream.Fd()))
	return me
}

func (baton *Baton) startProcess(legend string, expected int) {
	baton.legend = legend
	baton.count = 0
	baton.expected = expected
	baton.start = time.Now()
	baton.lastupdate = time.Time{}
	baton.render()
}

// bump advances the meter by one item.  Redraws are rate-limited so a fast
// loop doesn't spend its time painting the terminal.
func (baton *Baton) bump() {
	baton.count++
	if time.Since(baton.lastupdate) > 100*time.Millisecond || baton.count == baton.expected {
		baton.render()
	}
}

func (baton *Baton) render() {
	if !baton.progressEnabled {
		return
	}
	line := fmt.Sprintf("%s: %d of %d (%.0f%%)",
		baton.legend, baton.count, baton.expected,
		100*float64(baton.count)/float64(max(baton.expected, 1)))
	if width, _, err := terminal.GetSize(int(baton.stream.Fd())); err == nil && len(line) > width-1 {
		line = line[:width-1]
	}
	fmt.Fprintf(baton.stream, "\r%s%s", line, strings.Repeat(" ", 8))
	baton.lastupdate = time.Now()
}

func (baton *Baton) endProcess() {
	if !baton.progressEnabled {
		return
	}
	fmt.Fprintf(baton.stream, "\r%s: %d done in %v\n",
		baton.legend, baton.count, time.Since(baton.start).Round(time.Millisecond))
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// end
