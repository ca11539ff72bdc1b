// Copyright 2020 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package pxz

import "time"

// Default tuning constants, matching the original tool's defaults: a
// 16 MiB uncompressed block and a dictionary sized to match it so a
// single block's LZMA2 window covers the whole block.
const (
	DefaultBlockSize = 16 << 20
	DefaultDictSize  = 16 << 20
	MinBlockSize     = 4 << 10
	// MaxSplit is the largest block the extract planner will fetch and
	// decode as a whole; blocks larger than this are decoded by
	// streaming instead.
	MaxSplit = 128 << 20
)

// presetDictSizes mirrors xz's -0..-9 presets, mapped onto LZMA2
// dictionary sizes. There are no separate extreme entries: the CLI's
// extreme flag selects the next preset's dictionary size instead, and
// match-finder effort is left to the LZMA2 writer's defaults.
var presetDictSizes = [...]uint32{
	0: 256 << 10,
	1: 1 << 20,
	2: 2 << 20,
	3: 4 << 20,
	4: 4 << 20,
	5: 8 << 20,
	6: 8 << 20,
	7: 16 << 20,
	8: 32 << 20,
	9: 64 << 20,
}

// DictSizeForPreset returns the LZMA2 dictionary size xz's -n preset
// implies. n is clamped to [0,9].
func DictSizeForPreset(n int) uint32 {
	if n < 0 {
		n = 0
	}
	if n > 9 {
		n = 9
	}
	return presetDictSizes[n]
}

// Progress reports one block's worth of work as it completes, in split
// order, covering compression, decompression and extraction alike.
type Progress struct {
	Duration         time.Duration
	Block            uint64
	Compressed, Size int
}
