// Copyright 2020 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package pxz

import (
	"bytes"

	"github.com/cosnicolaou/pxz/internal/fileindex"
	"github.com/cosnicolaou/pxz/internal/workitem"
)

// mergeAndPipe is the read-side merger (C9): it drains decoded blocks in
// split order and writes their bytes to the Reader's pipe. Because a pxz
// archive's file-index block looks, byte for byte, like any other block
// until its magic is checked, the merger can't commit to treating a
// magic match as the index until it's confirmed no further block
// follows it -- a one-block lookahead stands in for the original
// line-by-line streaming heuristic, with the same fallback behavior: a
// magic match that turns out not to be the last block is logged and
// passed straight through as ordinary data rather than aborting.
func (r *Reader) mergeAndPipe() {
	defer r.pw.Close()
	// After an early return, keep draining and recycling items so the
	// splitter never blocks on an empty free queue and Close can finish.
	defer func() {
		for {
			it, ok := r.rt.Next()
			if !ok {
				return
			}
			r.rt.Recycle(it)
		}
	}()

	var pending *workitem.Item
	next := func() (*workitem.Item, bool) {
		if pending != nil {
			it := pending
			pending = nil
			return it, true
		}
		return r.rt.Next()
	}

	for {
		it, ok := next()
		if !ok {
			return
		}
		if it.Err != nil {
			r.pw.CloseWithError(it.Err)
			return
		}

		if it.Kind != workitem.Continuation && fileindex.HasMagic(it.Output) {
			following, ok2 := r.rt.Next()
			if !ok2 {
				entries, err := fileindex.Decode(bytes.NewReader(it.Output[8:]))
				if err != nil {
					r.pw.CloseWithError(err)
					return
				}
				r.mu.Lock()
				r.entries = entries
				r.mu.Unlock()
				r.rt.Recycle(it)
				return
			}
			r.tr.Printf("block %d carries the file-index magic but another block follows it; treating it as data", it.Seq)
			pending = following
		}

		if _, err := r.pw.Write(it.Output); err != nil {
			r.rt.Recycle(it)
			return
		}
		if r.opts.progressCh != nil {
			r.opts.progressCh <- Progress{Block: it.Seq, Compressed: it.InSize, Size: len(it.Output)}
		}
		r.rt.Recycle(it)
	}
}
