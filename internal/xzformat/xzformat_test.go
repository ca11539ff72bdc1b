// Copyright 2020 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package xzformat_test

import (
	"bytes"
	"io"
	"testing"

	"github.com/cosnicolaou/pxz/internal/xzformat"
)

func TestVLIRoundTrip(t *testing.T) {
	for _, v := range []uint64{0, 1, 127, 128, 300, 1 << 20, 1 << 62} {
		buf := xzformat.PutVLI(nil, v)
		if len(buf) != xzformat.SizeVLI(v) {
			t.Errorf("%d: size mismatch: got %d want %d", v, len(buf), xzformat.SizeVLI(v))
		}
		got, err := xzformat.ReadVLI(bytes.NewReader(buf))
		if err != nil {
			t.Fatalf("%d: %v", v, err)
		}
		if got != v {
			t.Errorf("got %d, want %d", got, v)
		}
	}
}

func TestStreamHeaderFooterRoundTrip(t *testing.T) {
	var hdr bytes.Buffer
	want := xzformat.StreamFlags{Check: xzformat.CheckCRC32}
	if err := xzformat.WriteStreamHeader(&hdr, want); err != nil {
		t.Fatal(err)
	}
	got, err := xzformat.ReadStreamHeader(&hdr)
	if err != nil {
		t.Fatal(err)
	}
	if got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}

	records := []xzformat.IndexRecord{{UnpaddedSize: 123, UncompressedSize: 456}}
	index := xzformat.EncodeIndex(records)

	var ftr bytes.Buffer
	if err := xzformat.WriteStreamFooter(&ftr, want, int64(len(index))); err != nil {
		t.Fatal(err)
	}
	gotFlags, gotSize, err := xzformat.ReadStreamFooter(&ftr)
	if err != nil {
		t.Fatal(err)
	}
	if gotFlags != want || gotSize != int64(len(index)) {
		t.Errorf("got %+v/%d, want %+v/%d", gotFlags, gotSize, want, len(index))
	}
}

func TestIndexRoundTrip(t *testing.T) {
	records := []xzformat.IndexRecord{
		{UnpaddedSize: 64, UncompressedSize: 128},
		{UnpaddedSize: 1 << 20, UncompressedSize: 1 << 21},
	}
	buf := xzformat.EncodeIndex(records)
	got, n, err := xzformat.DecodeIndex(bytes.NewReader(buf))
	if err != nil {
		t.Fatal(err)
	}
	if n != int64(len(buf)) {
		t.Errorf("consumed %d bytes, want %d", n, len(buf))
	}
	if len(got) != len(records) {
		t.Fatalf("got %d records, want %d", len(got), len(records))
	}
	for i := range records {
		if got[i] != records[i] {
			t.Errorf("record %d: got %+v, want %+v", i, got[i], records[i])
		}
	}
}

func TestBlockHeaderRoundTrip(t *testing.T) {
	h := xzformat.BlockHeader{CompressedSize: 4096, UncompressedSize: 1 << 20, DictSize: 1 << 24}
	buf, err := xzformat.EncodeBlockHeader(h)
	if err != nil {
		t.Fatal(err)
	}
	if len(buf)%4 != 0 {
		t.Errorf("header length %d is not a multiple of 4", len(buf))
	}
	got, n, err := xzformat.DecodeBlockHeader(bytes.NewReader(buf))
	if err != nil {
		t.Fatal(err)
	}
	if n != len(buf) {
		t.Errorf("decoded size %d, want %d", n, len(buf))
	}
	if got.CompressedSize != h.CompressedSize || got.UncompressedSize != h.UncompressedSize {
		t.Errorf("got %+v, want %+v", got, h)
	}
	// DictSize round-trips through a lossy packed property; just check
	// it didn't decode to something absurd.
	if got.DictSize < h.DictSize {
		t.Errorf("decoded dict size %d smaller than requested %d", got.DictSize, h.DictSize)
	}
}

func TestDecodeBlockHeaderIndexIndicator(t *testing.T) {
	_, _, err := xzformat.DecodeBlockHeader(bytes.NewReader([]byte{0x00}))
	if err != io.EOF {
		t.Errorf("got %v, want io.EOF", err)
	}
}
