// Copyright 2020 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package fileindex_test

import (
	"bytes"
	"reflect"
	"testing"

	"github.com/cosnicolaou/pxz/internal/fileindex"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	entries := []fileindex.Entry{
		{Name: "a.txt", Offset: 0},
		{Name: "dir/b.txt", Offset: 512},
		{Name: "", Offset: 1024},
	}
	buf := fileindex.Encode(entries)
	if !fileindex.HasMagic(buf) {
		t.Fatal("encoded index missing magic")
	}
	got, err := fileindex.Decode(bytes.NewReader(buf[8:]))
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, entries) {
		t.Errorf("got %+v, want %+v", got, entries)
	}
	total, ok := fileindex.TotalSize(got)
	if !ok || total != 1024 {
		t.Errorf("got total %d/%v, want 1024/true", total, ok)
	}
}

func TestLookupPrefixMatch(t *testing.T) {
	entries := []fileindex.Entry{
		{Name: "dir/a.txt", Offset: 0},
		{Name: "dir/b.txt", Offset: 100},
		{Name: "other", Offset: 250},
		{Name: "", Offset: 300},
	}
	got := fileindex.Lookup(entries, "dir")
	want := []fileindex.Range{
		{Name: "dir/a.txt", Start: 0, End: 100},
		{Name: "dir/b.txt", Start: 100, End: 250},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %+v, want %+v", got, want)
	}

	exact := fileindex.Lookup(entries, "dir/a.txt")
	if len(exact) != 1 || exact[0].Start != 0 || exact[0].End != 100 {
		t.Errorf("got %+v", exact)
	}
}
