// Copyright 2020 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package xzindex_test

import (
	"bytes"
	"testing"

	"github.com/cosnicolaou/pxz/internal/xzformat"
	"github.com/cosnicolaou/pxz/internal/xzindex"
)

// writeStream hand-assembles a minimal, valid XZ stream containing the
// given blocks (already-encoded header+body+padding+check bytes, paired
// with their index records), for exercising the walker without going
// through the full block codec.
func writeStream(t *testing.T, buf *bytes.Buffer, blocks [][]byte, records []xzformat.IndexRecord) {
	t.Helper()
	flags := xzformat.StreamFlags{Check: xzformat.CheckCRC32}
	if err := xzformat.WriteStreamHeader(buf, flags); err != nil {
		t.Fatal(err)
	}
	for _, b := range blocks {
		buf.Write(b)
	}
	index := xzformat.EncodeIndex(records)
	buf.Write(index)
	if err := xzformat.WriteStreamFooter(buf, flags, int64(len(index))); err != nil {
		t.Fatal(err)
	}
}

func block(t *testing.T, uncompressedSize int64) ([]byte, xzformat.IndexRecord) {
	t.Helper()
	h := xzformat.BlockHeader{CompressedSize: 16, UncompressedSize: uncompressedSize, DictSize: 1 << 20}
	hdr, err := xzformat.EncodeBlockHeader(h)
	if err != nil {
		t.Fatal(err)
	}
	body := make([]byte, 16) // not real LZMA2, the walker never looks inside
	check := make([]byte, 4)
	full := append(append([]byte{}, hdr...), body...)
	full = append(full, check...)
	for len(full)%4 != 0 {
		full = append(full, 0)
	}
	rec := xzformat.IndexRecord{
		UnpaddedSize:     uint64(xzformat.UnpaddedSize(len(hdr), 16, xzformat.CheckCRC32)),
		UncompressedSize: uint64(uncompressedSize),
	}
	return full, rec
}

func TestWalkMultiStream(t *testing.T) {
	var buf bytes.Buffer

	b1, r1 := block(t, 100)
	writeStream(t, &buf, [][]byte{b1}, []xzformat.IndexRecord{r1})

	b2, r2 := block(t, 200)
	b3, r3 := block(t, 50)
	writeStream(t, &buf, [][]byte{b2, b3}, []xzformat.IndexRecord{r2, r3})

	blocks, err := xzindex.Walk(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatal(err)
	}
	if len(blocks) != 3 {
		t.Fatalf("got %d blocks, want 3", len(blocks))
	}
	wantSizes := []int64{100, 200, 50}
	wantOffsets := []int64{0, 100, 300}
	for i, b := range blocks {
		if b.UncompressedSize != wantSizes[i] {
			t.Errorf("block %d: size got %d want %d", i, b.UncompressedSize, wantSizes[i])
		}
		if b.UncompressedFileOffset != wantOffsets[i] {
			t.Errorf("block %d: offset got %d want %d", i, b.UncompressedFileOffset, wantOffsets[i])
		}
	}
	// Stream 1 (written first) must still precede stream 2 in the
	// logical order, even though it's discovered last by the backward
	// scan.
	if blocks[0].CompressedFileOffset >= blocks[1].CompressedFileOffset {
		t.Errorf("stream order not preserved: %+v", blocks)
	}
}
