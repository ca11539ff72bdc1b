// Copyright 2020 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package pxz

import (
	"bufio"
	"errors"
	"fmt"
	"io"

	"github.com/cosnicolaou/pxz/internal/workitem"
	"github.com/cosnicolaou/pxz/internal/xzformat"
)

// splitReader is the read-side splitter (C8): it walks one XZ stream at a
// time sequentially, pulling free items, filling each with one complete
// block's raw bytes, and dispatching it to the worker pool for decode.
// Every block goes to the worker pool whole, whatever its size. A block
// whose header omits its compressed size (possible only in archives
// written by other tools) is not decoded: reading it fails with an error.
type splitReader struct {
	r     *bufio.Reader
	flags xzformat.StreamFlags
}

func newSplitReader(r io.Reader) *splitReader {
	return &splitReader{r: bufio.NewReaderSize(r, 1<<16)}
}

// start reads the stream header and records its check algorithm.
func (s *splitReader) start() error {
	flags, err := xzformat.ReadStreamHeader(s.r)
	if err != nil {
		return fmt.Errorf("pxz: reading stream header: %w", err)
	}
	s.flags = flags
	return nil
}

// readSizedBlock reads the remainder of a block (body, padding, check)
// once its header has already been consumed by peekBlockHeader, and returns
// the complete header+body+padding+check byte sequence blockcodec
// expects.
func (s *splitReader) readSizedBlock(hdr xzformat.BlockHeader, hdrBytes []byte) ([]byte, error) {
	if hdr.CompressedSize < 0 {
		return nil, errors.New("pxz: block has unknown compressed size")
	}
	body := make([]byte, hdr.CompressedSize)
	if _, err := io.ReadFull(s.r, body); err != nil {
		return nil, fmt.Errorf("pxz: reading block body: %w", err)
	}
	total := int64(len(hdrBytes)) + hdr.CompressedSize
	padded := xzformat.PadTo4(total)
	pad := make([]byte, padded-total)
	if _, err := io.ReadFull(s.r, pad); err != nil {
		return nil, fmt.Errorf("pxz: reading block padding: %w", err)
	}
	check := make([]byte, xzformat.CheckSize(s.flags.Check))
	if _, err := io.ReadFull(s.r, check); err != nil {
		return nil, fmt.Errorf("pxz: reading block check: %w", err)
	}
	out := make([]byte, 0, len(hdrBytes)+len(body)+len(pad)+len(check))
	out = append(out, hdrBytes...)
	out = append(out, body...)
	out = append(out, pad...)
	out = append(out, check...)
	return out, nil
}

// dispatchSizedBlocks drives the splitter loop for the common case where
// every block declares its compressed size (true of anything pxz itself
// wrote). It reads each block's raw bytes and hands them to the worker
// pool, until the index indicator is reached.
func (w *Reader) dispatchSizedBlocks(sr *splitReader) error {
	for {
		hdrBytes, hdr, ok, err := peekBlockHeader(sr.r)
		if err != nil {
			return err
		}
		if !ok {
			return nil // index indicator reached
		}
		raw, err := sr.readSizedBlock(hdr, hdrBytes)
		if err != nil {
			return err
		}
		_, payload := w.rt.Free().Pop()
		it := payload.(*workitem.Item)
		it.EnsureCapacity(len(raw), 0)
		it.Input = it.Input[:len(raw)]
		copy(it.Input, raw)
		it.InSize = len(raw)
		it.Check = uint8(sr.flags.Check)
		it.Kind = workitem.Sized
		it.Err = nil
		w.rt.Dispatch(it)
	}
}

// peekBlockHeader reads one block header (or detects the index
// indicator) while also returning the exact bytes consumed, since the
// splitter needs to hand the raw header bytes on to the worker along
// with the body. The index indicator byte (0x00) is left unconsumed so
// the caller can decode the index record that starts with it.
func peekBlockHeader(r *bufio.Reader) ([]byte, xzformat.BlockHeader, bool, error) {
	first, err := r.Peek(1)
	if err != nil {
		return nil, xzformat.BlockHeader{}, false, fmt.Errorf("pxz: reading block header size: %w", err)
	}
	if first[0] == 0x00 {
		return nil, xzformat.BlockHeader{}, false, nil
	}
	headerSize := (int(first[0]) + 1) * 4
	raw, err := r.Peek(headerSize)
	if err != nil {
		return nil, xzformat.BlockHeader{}, false, fmt.Errorf("pxz: reading block header: %w", err)
	}
	hdrCopy := append([]byte{}, raw...)
	r.Discard(headerSize) //nolint:errcheck
	hdr, _, err := xzformat.DecodeBlockHeader(newOnceReader(hdrCopy))
	if err != nil {
		return nil, xzformat.BlockHeader{}, false, err
	}
	return hdrCopy, hdr, true, nil
}

// consumeStreamPadding reads the zero-padding (always a multiple of 4
// bytes) that may follow a stream's footer before either another
// concatenated stream's header or end of input. It reports whether input
// ended during the scan.
func consumeStreamPadding(r *bufio.Reader) (atEOF bool, err error) {
	for {
		word, err := r.Peek(4)
		if err != nil {
			if err == io.EOF && len(word) == 0 {
				return true, nil
			}
			return false, fmt.Errorf("pxz: reading stream padding: %w", err)
		}
		if word[0] != 0 || word[1] != 0 || word[2] != 0 || word[3] != 0 {
			return false, nil
		}
		if _, err := r.Discard(4); err != nil {
			return false, fmt.Errorf("pxz: reading stream padding: %w", err)
		}
	}
}

type onceReader struct {
	b []byte
}

func newOnceReader(b []byte) *onceReader { return &onceReader{b: b} }

func (o *onceReader) Read(p []byte) (int, error) {
	if len(o.b) == 0 {
		return 0, io.EOF
	}
	n := copy(p, o.b)
	o.b = o.b[n:]
	return n, nil
}
