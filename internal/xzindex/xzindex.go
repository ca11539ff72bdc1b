// Copyright 2020 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package xzindex walks the index records of every XZ stream concatenated
// in a file, from the last stream backward to the first, producing a
// single logical, order-restored list of block records covering the
// whole (possibly multi-stream) file.
package xzindex

import (
	"errors"
	"fmt"
	"io"

	"github.com/cosnicolaou/pxz/internal/xzformat"
)

// Block describes one logical block's placement in both the compressed
// file and the decompressed stream it expands to.
type Block struct {
	CompressedFileOffset   int64
	UnpaddedSize           int64
	TotalSize              int64 // UnpaddedSize rounded up to a multiple of 4
	UncompressedFileOffset int64
	UncompressedSize       int64
	Check                  xzformat.CheckID

	// StreamIndex is the 0-based position, oldest first, of the XZ
	// stream this block belongs to among all streams concatenated in
	// the file. A file-index block is only safe to locate by position
	// when every block shares StreamIndex 0 -- a multi-stream file
	// makes "the last block" ambiguous as a file-index location.
	StreamIndex int
}

// Walk reads every stream's index from r, which must support seeking,
// and returns the concatenated list of blocks in file (oldest-stream,
// ascending-offset) order. Per the XZ multi-stream concatenation rule, a
// later stream's data comes after an earlier stream's, but streams are
// discovered by scanning backward from EOF, so streams are collected
// newest-first and reversed before being returned.
func Walk(r io.ReadSeeker) ([]Block, error) {
	end, err := r.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, err
	}
	if end == 0 {
		return nil, errors.New("xzindex: empty file")
	}

	type stream struct {
		headerStart int64
		check       xzformat.CheckID
		records     []xzformat.IndexRecord
	}
	var streams []stream

	pos := end
	for pos > 0 {
		pad, err := skipZeroPadding(r, pos)
		if err != nil {
			return nil, err
		}
		pos -= pad

		if pos < 12 {
			return nil, fmt.Errorf("xzindex: truncated stream footer at offset %d", pos)
		}
		if _, err := r.Seek(pos-12, io.SeekStart); err != nil {
			return nil, err
		}
		flags, indexSize, err := xzformat.ReadStreamFooter(r)
		if err != nil {
			return nil, fmt.Errorf("xzindex: reading stream footer ending at %d: %w", pos, err)
		}

		indexStart := pos - 12 - indexSize
		if indexStart < 0 {
			return nil, errors.New("xzindex: index size exceeds file bounds")
		}
		if _, err := r.Seek(indexStart, io.SeekStart); err != nil {
			return nil, err
		}
		records, consumed, err := xzformat.DecodeIndex(r)
		if err != nil {
			return nil, fmt.Errorf("xzindex: decoding index at %d: %w", indexStart, err)
		}
		if consumed != indexSize {
			return nil, fmt.Errorf("xzindex: index at %d reported size %d, footer says %d", indexStart, consumed, indexSize)
		}

		var blockBytes int64
		for _, rec := range records {
			blockBytes += xzformat.PadTo4(int64(rec.UnpaddedSize))
		}
		streamStart := indexStart - blockBytes
		headerStart := streamStart - 12
		if headerStart < 0 {
			return nil, errors.New("xzindex: stream header precedes start of file")
		}
		if _, err := r.Seek(headerStart, io.SeekStart); err != nil {
			return nil, err
		}
		hflags, err := xzformat.ReadStreamHeader(r)
		if err != nil {
			return nil, fmt.Errorf("xzindex: reading stream header at %d: %w", headerStart, err)
		}
		if hflags != flags {
			return nil, fmt.Errorf("xzindex: stream header/footer flag mismatch at %d", headerStart)
		}

		streams = append(streams, stream{headerStart: headerStart, check: flags.Check, records: records})
		pos = headerStart
	}

	for i, j := 0, len(streams)-1; i < j; i, j = i+1, j-1 {
		streams[i], streams[j] = streams[j], streams[i]
	}

	var blocks []Block
	var uoffset int64
	for streamIdx, s := range streams {
		coffset := s.headerStart + 12
		for _, rec := range s.records {
			total := xzformat.PadTo4(int64(rec.UnpaddedSize))
			blocks = append(blocks, Block{
				CompressedFileOffset:   coffset,
				UnpaddedSize:           int64(rec.UnpaddedSize),
				TotalSize:              total,
				UncompressedFileOffset: uoffset,
				UncompressedSize:       int64(rec.UncompressedSize),
				Check:                  s.check,
				StreamIndex:            streamIdx,
			})
			coffset += total
			uoffset += int64(rec.UncompressedSize)
		}
	}
	return blocks, nil
}

// skipZeroPadding walks backward from pos in 4-byte words while they're
// all zero, returning how many bytes of padding were found. XZ streams
// concatenated after a multiple-of-4-byte padded stream can themselves
// carry stream padding; this absorbs it before the footer is located.
func skipZeroPadding(r io.ReadSeeker, pos int64) (int64, error) {
	var buf [4]byte
	var pad int64
	for pos >= 4 {
		if _, err := r.Seek(pos-4, io.SeekStart); err != nil {
			return 0, err
		}
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return 0, err
		}
		if buf != [4]byte{} {
			break
		}
		pad += 4
		pos -= 4
	}
	return pad, nil
}
