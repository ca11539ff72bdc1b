// Copyright 2020 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package pxz_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/cosnicolaou/pxz"
)

func TestListEntries(t *testing.T) {
	input := buildTar(t, map[string]string{
		"a.txt": "aaaa",
		"b.txt": "bbbbbb",
	})
	compressed := compress(t, input)

	var out bytes.Buffer
	if err := pxz.List(bytes.NewReader(compressed), &out); err != nil {
		t.Fatalf("List: %v", err)
	}
	text := out.String()
	if !strings.Contains(text, "a.txt") || !strings.Contains(text, "b.txt") {
		t.Fatalf("expected both member names in listing, got:\n%s", text)
	}
	lastLine := strings.TrimSpace(text)
	lines := strings.Split(lastLine, "\n")
	if got := lines[len(lines)-1]; !strings.HasPrefix(got, "Total: ") {
		t.Fatalf("expected final line to start with 'Total: ', got %q", got)
	}
}

func TestListFailsWithoutFileIndex(t *testing.T) {
	compressed := compress(t, []byte("not a tar stream"), pxz.WriterRaw(true))
	var out bytes.Buffer
	if err := pxz.List(bytes.NewReader(compressed), &out); err == nil {
		t.Fatal("expected an error listing a raw archive with no file index")
	}
}
