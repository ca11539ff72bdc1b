// Copyright 2020 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package pxz

import (
	"fmt"
	"io"

	"github.com/cosnicolaou/pxz/internal/xzindex"
)

// List writes one line per file-index entry to w: name, starting offset
// and computed size, terminated by a "Total: N" line giving the
// archive's total uncompressed size. It fails if src carries no usable
// file index (multi-stream, raw, or pre-pxz archives have none).
func List(src io.ReadSeeker, w io.Writer) error {
	blocks, err := xzindex.Walk(src)
	if err != nil {
		return fmt.Errorf("pxz: list: %w", err)
	}
	if len(blocks) == 0 {
		return fmt.Errorf("pxz: list: empty archive")
	}
	entries, _, ok, err := locateFileIndex(src, blocks)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("pxz: list: archive carries no file index")
	}

	var total int64
	for i, e := range entries {
		if e.Name == "" {
			total = e.Offset
			continue
		}
		size := entries[i+1].Offset - e.Offset
		if _, err := fmt.Fprintf(w, "%s\t%d\t%d\n", e.Name, e.Offset, size); err != nil {
			return err
		}
	}
	_, err = fmt.Fprintf(w, "Total: %d\n", total)
	return err
}
