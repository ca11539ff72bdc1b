// Copyright 2020 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package pxz_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/cosnicolaou/pxz"
)

func TestExtractSingleMember(t *testing.T) {
	input := buildTar(t, map[string]string{
		"a.txt":   "aaaa",
		"b/c.txt": "bbbbbbbb",
		"b/d.txt": "dddd",
		"zzz.txt": "zzzzzzzzzz",
	})
	compressed := compress(t, input, pxz.WriterBlockSize(pxz.MinBlockSize))

	var out bytes.Buffer
	if err := pxz.Extract(context.Background(), bytes.NewReader(compressed), &out, []string{"b/c.txt"}); err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if !bytes.Contains(out.Bytes(), []byte("bbbbbbbb")) {
		t.Fatalf("extracted bytes do not contain expected member content: %q", out.Bytes())
	}
	if bytes.Contains(out.Bytes(), []byte("zzzzzzzzzz")) {
		t.Fatalf("extracted bytes unexpectedly contain an unrequested member")
	}
}

func TestExtractDirectoryPrefix(t *testing.T) {
	input := buildTar(t, map[string]string{
		"a.txt":   "aaaa",
		"b/c.txt": "bbbbbbbb",
		"b/d.txt": "dddd",
	})
	compressed := compress(t, input, pxz.WriterBlockSize(pxz.MinBlockSize))

	var out bytes.Buffer
	if err := pxz.Extract(context.Background(), bytes.NewReader(compressed), &out, []string{"b"}); err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if !bytes.Contains(out.Bytes(), []byte("bbbbbbbb")) || !bytes.Contains(out.Bytes(), []byte("dddd")) {
		t.Fatalf("expected both members under b/, got %q", out.Bytes())
	}
	if bytes.Contains(out.Bytes(), []byte("aaaa")) {
		t.Fatalf("unexpectedly extracted a.txt")
	}
}

func TestExtractAll(t *testing.T) {
	input := buildTar(t, map[string]string{
		"a.txt": "aaaa",
		"b.txt": "bbbb",
	})
	compressed := compress(t, input)

	var out bytes.Buffer
	if err := pxz.Extract(context.Background(), bytes.NewReader(compressed), &out, nil); err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if !bytes.Equal(out.Bytes(), input) {
		t.Fatalf("extracting all members should reproduce the original tar stream byte for byte")
	}
}

func TestExtractMissingSpecFails(t *testing.T) {
	input := buildTar(t, map[string]string{"a.txt": "aaaa"})
	compressed := compress(t, input)

	var out bytes.Buffer
	err := pxz.Extract(context.Background(), bytes.NewReader(compressed), &out, []string{"nope.txt"})
	if err == nil {
		t.Fatal("expected an error for a spec matching nothing in the archive")
	}
}

func TestExtractConcatenatedStreamsUsesFallback(t *testing.T) {
	first := buildTar(t, map[string]string{"a.txt": "aaaa"})
	second := buildTar(t, map[string]string{"b.txt": "bbbb"})

	var archive bytes.Buffer
	archive.Write(compress(t, first))
	archive.Write(compress(t, second))

	var out bytes.Buffer
	if err := pxz.Extract(context.Background(), bytes.NewReader(archive.Bytes()), &out, nil); err != nil {
		t.Fatalf("Extract: %v", err)
	}
	want := append(append([]byte{}, first...), second...)
	if !bytes.Equal(out.Bytes(), want) {
		t.Fatalf("extracting a multi-stream archive should reproduce both streams' tar bytes exactly, got %d bytes want %d", out.Len(), len(want))
	}
}

func TestExtractLargeBlockFallsBackToStreaming(t *testing.T) {
	big := bytes.Repeat([]byte("0123456789abcdef"), (pxz.MaxSplit/16)+1024)
	input := buildTar(t, map[string]string{
		"huge.bin":  string(big),
		"small.txt": "tiny",
	})
	compressed := compress(t, input, pxz.WriterBlockSize(len(big)+1<<20))

	var out bytes.Buffer
	if err := pxz.Extract(context.Background(), bytes.NewReader(compressed), &out, []string{"small.txt"}); err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if !bytes.Contains(out.Bytes(), []byte("tiny")) {
		t.Fatalf("expected small.txt content in output")
	}
}
