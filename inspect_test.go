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

func TestInspectListsEveryBlock(t *testing.T) {
	input := buildTar(t, map[string]string{
		"a.txt": strings.Repeat("a", 1<<20),
		"b.txt": strings.Repeat("b", 1<<20),
	})
	compressed := compress(t, input, pxz.WriterBlockSize(pxz.MinBlockSize))

	var out bytes.Buffer
	if err := pxz.Inspect(bytes.NewReader(compressed), &out); err != nil {
		t.Fatalf("Inspect: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) < 3 {
		t.Fatalf("expected a header line and multiple block lines for a multi-block archive, got %d lines", len(lines))
	}
}
