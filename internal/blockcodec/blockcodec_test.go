// Copyright 2020 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package blockcodec_test

import (
	"bytes"
	"crypto/rand"
	"io"
	"testing"

	"github.com/cosnicolaou/pxz/internal/blockcodec"
	"github.com/cosnicolaou/pxz/internal/xzformat"
)

func TestEncodeDecodeRoundTripCompressible(t *testing.T) {
	in := bytes.Repeat([]byte("the quick brown fox jumps over the lazy dog "), 4000)
	out, err := blockcodec.EncodeBlock(in, 1<<20)
	if err != nil {
		t.Fatal(err)
	}
	if len(out)%4 != 0 {
		t.Errorf("block length %d not a multiple of 4", len(out))
	}
	got, err := blockcodec.DecodeBlock(out, xzformat.CheckCRC32)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, in) {
		t.Fatalf("round trip mismatch: got %d bytes, want %d", len(got), len(in))
	}
}

func TestEncodeDecodeRoundTripUncompressible(t *testing.T) {
	in := make([]byte, 3*blockcodecChunkMax()+17)
	if _, err := rand.Read(in); err != nil {
		t.Fatal(err)
	}
	out, err := blockcodec.EncodeBlock(in, 1<<20)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) > len(in)+blockcodecOverheadBound() {
		t.Errorf("uncompressible block grew unexpectedly: in=%d out=%d", len(in), len(out))
	}
	got, err := blockcodec.DecodeBlock(out, xzformat.CheckCRC32)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, in) {
		t.Fatalf("round trip mismatch")
	}
}

func TestEncodeDecodeEmpty(t *testing.T) {
	out, err := blockcodec.EncodeBlock(nil, 1<<20)
	if err != nil {
		t.Fatal(err)
	}
	got, err := blockcodec.DecodeBlock(out, xzformat.CheckCRC32)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("got %d bytes, want 0", len(got))
	}
}

func TestStreamingDecoderMatchesBufferedBody(t *testing.T) {
	in := bytes.Repeat([]byte("streamed decode content "), 1000)
	out, err := blockcodec.EncodeBlock(in, 1<<20)
	if err != nil {
		t.Fatal(err)
	}
	// Decode the header alone to find where the body starts; the
	// streaming decoder only needs the body bytes, not the header.
	hdr, headerSize, err := xzformat.DecodeBlockHeader(bytes.NewReader(out))
	if err != nil {
		t.Fatal(err)
	}
	body := out[headerSize : headerSize+int(hdr.CompressedSize)]

	rc, err := blockcodec.NewStreamingDecoder(bytes.NewReader(body), hdr.DictSize)
	if err != nil {
		t.Fatal(err)
	}
	defer rc.Close()
	got, err := io.ReadAll(rc)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, in) {
		t.Fatalf("streaming decode mismatch: got %d bytes want %d", len(got), len(in))
	}
}

// blockcodecChunkMax mirrors blockcodec's unexported chunkMax, and
// blockcodecOverheadBound gives a loose bound on per-block overhead, so
// tests can size inputs without duplicating magic numbers inline.
func blockcodecChunkMax() int { return 1 << 16 }
func blockcodecOverheadBound() int {
	// header + padding + CRC32, generous enough to not be sensitive to
	// exact encoder overhead.
	return 256
}
