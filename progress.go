// Copyright 2020 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package pxz

import (
	"context"
	"fmt"
	"io"

	"github.com/schollz/progressbar/v2"
)

// RunProgressBar renders a byte-based progress bar driven by Progress
// values read off ch, until the caller signals completion by sending a
// zero-valued Progress (Block 0) or ctx is cancelled. size is the total
// number of bytes the bar should consider 100%; pass 0 if unknown.
//
// One bar implementation serves compress, decompress and extract alike.
// Each value advances the bar by Progress.Compressed when that is
// non-zero and by Progress.Size otherwise: compress and decompress set
// Compressed, so their bars count compressed bytes, while extract sets
// only Size, so its bar counts decoded bytes.
func RunProgressBar(ctx context.Context, w io.Writer, ch <-chan Progress, size int64) {
	bar := progressbar.NewOptions64(size,
		progressbar.OptionSetBytes64(size),
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetPredictTime(true))
	bar.RenderBlank() //nolint:errcheck
	for {
		select {
		case p := <-ch:
			if p.Block == 0 {
				fmt.Fprintf(w, "\n")
				return
			}
			n := p.Compressed
			if n == 0 {
				n = p.Size
			}
			bar.Add(n) //nolint:errcheck
		case <-ctx.Done():
			return
		}
	}
}
