// Copyright 2020 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package workitem implements the bounded pool of reusable buffer pairs
// that are cycled between the splitter, worker and merger stages of the
// pipeline. Items are allocated once at startup and never individually
// freed; ownership passes from stage to stage by queue handoff.
package workitem

import "math"

// Kind distinguishes the three ways a decode-side item can have been
// produced: a fully sized block read in one go, a block whose final size
// wasn't known until decoded, or a fixed-size chunk of a large block's
// streamed decode output.
type Kind int

const (
	Sized Kind = iota
	Unsized
	Continuation
)

// Item holds the two growable buffers a pipeline stage operates on, plus
// the per-use metadata needed to encode, decode, reorder and place it in
// the output stream. Buffers grow monotonically; EnsureCapacity never
// shrinks them, so capacity is retained across reuse.
type Item struct {
	Input  []byte
	Output []byte

	// InSize/OutSize are the active lengths within Input/Output; the
	// backing arrays may be larger.
	InSize  int
	OutSize int

	// Seq is the sequence number stamped by the splitter, used by the
	// pipeline runtime to restore split order on the way out.
	Seq uint64

	// UncompressedOffset is this item's position in the logical
	// (decompressed) byte stream -- meaningful for decode-side items.
	UncompressedOffset int64

	// Check identifies the integrity check algorithm that applies to
	// this item's block (only CRC32 is supported for writing; any
	// liblzma-recognized check is accepted on read).
	Check uint8

	Kind Kind

	// Err carries a worker's encode/decode failure back to the merger,
	// which surfaces it in split order rather than as soon as it occurs.
	Err error
}

// EnsureCapacity grows Input/Output only when the requested capacity
// exceeds what's already allocated.
func (it *Item) EnsureCapacity(inCap, outCap int) {
	if inCap > cap(it.Input) {
		it.Input = make([]byte, inCap)
	}
	if outCap > cap(it.Output) {
		it.Output = make([]byte, outCap)
	}
}

// Pool is the fixed set of Q work items shared by one pipeline run.
type Pool struct {
	Items []*Item
}

// New allocates Q items, where Q is override if it is positive and
// ceil(workers*1.3+1) otherwise. It calls warn, if non-nil, when the resulting Q
// is smaller than workers -- the pool still honors the small value rather
// than silently clamping it.
func New(workers, override int, warn func(format string, args ...interface{})) *Pool {
	q := int(math.Ceil(float64(workers)*1.3 + 1))
	if override > 0 {
		q = override
	}
	if q < workers && warn != nil {
		warn("pipeline queue size %d is smaller than worker count %d", q, workers)
	}
	items := make([]*Item, q)
	for i := range items {
		items[i] = &Item{}
	}
	return &Pool{Items: items}
}
