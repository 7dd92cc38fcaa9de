// Argument-budget batching.
//
// Copyright by Eric S. Raymond
// SPDX-License-Identifier: BSD-2-Clause

package main

// batchCommand feeds an ordered token sequence to flush in chunks whose
// serialized size never exceeds ceiling.  The baseline is what one
// invocation costs before any tokens: command name, subcommand words,
// environment.  Each token costs its length plus one separator byte.
//
// Invariants callers rely on: the concatenation of all batches equals the
// input sequence in order, and the union of whatever flush accumulates
// across batches equals what a single unbounded call would have produced.
// Batching exists only to stay under the kernel's argument-size limit;
// batches are issued strictly one after another.
//
// A single token too large for the ceiling still goes out in a batch of
// one rather than being dropped; the kernel, not this code, gets to
// reject it.
func batchCommand(baseline int, ceiling int, tokens []string, flush func([]string) error) error {
	running := baseline
	var batch []string
	for _, token := range tokens {
		cost := len(token) + 1
		if len(batch) > 0 && running+cost > ceiling {
			if err := flush(batch); err != nil {
				return err
			}
			batch = nil
			running = baseline
		}
		batch = append(batch, token)
		running += cost
	}
	if len(batch) > 0 {
		return flush(batch)
	}
	return nil
}

// end
