// Copyright 2020 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package pxz

import (
	"fmt"
	"io"

	"github.com/cosnicolaou/pxz/internal/xzformat"
	"github.com/cosnicolaou/pxz/internal/xzindex"
)

// Inspect walks the archive's logical block index, single-threaded, and
// writes one line per block to w: its position, compressed and
// uncompressed offsets, sizes and check algorithm. It's purely
// diagnostic and never decodes block bodies.
func Inspect(src io.ReadSeeker, w io.Writer) error {
	blocks, err := xzindex.Walk(src)
	if err != nil {
		return fmt.Errorf("pxz: inspect: %w", err)
	}
	if _, err := fmt.Fprintf(w, "block  stream  coffset      uoffset      compressed   uncompressed  check\n"); err != nil {
		return err
	}
	for i, b := range blocks {
		if _, err := fmt.Fprintf(w, "% 5d  % 6d  % 11d  % 11d  % 11d  % 12d  %s\n",
			i, b.StreamIndex, b.CompressedFileOffset, b.UncompressedFileOffset,
			b.TotalSize, b.UncompressedSize, checkName(b.Check)); err != nil {
			return err
		}
	}
	return nil
}

func checkName(c xzformat.CheckID) string {
	switch c {
	case xzformat.CheckNone:
		return "none"
	case xzformat.CheckCRC32:
		return "crc32"
	case xzformat.CheckCRC64:
		return "crc64"
	case xzformat.CheckSHA256:
		return "sha256"
	default:
		return fmt.Sprintf("unknown(%d)", c)
	}
}
