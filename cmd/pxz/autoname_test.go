// Copyright 2020 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package main

import "testing"

func TestAutoWriteName(t *testing.T) {
	cases := []struct{ input, want string }{
		{"archive.tar", "archive.tpxz"},
		{"data.bin", "data.bin.xz"},
		{"path/to/thing.tar", "path/to/thing.tpxz"},
	}
	for _, c := range cases {
		if got := autoWriteName(c.input); got != c.want {
			t.Errorf("autoWriteName(%q) = %q, want %q", c.input, got, c.want)
		}
	}
}

func TestAutoReadName(t *testing.T) {
	cases := []struct{ input, want string }{
		{"archive.tar.xz", "archive.tar"},
		{"archive.tpxz", "archive.tar"},
		{"data.bin.xz", "data.bin"},
		{"data.bin", "data.bin"},
	}
	for _, c := range cases {
		if got := autoReadName(c.input); got != c.want {
			t.Errorf("autoReadName(%q) = %q, want %q", c.input, got, c.want)
		}
	}
}

// TestAutoNameRoundTrip checks that auto-naming is a pure function, and
// lossless with its inverse for the pairs it defines.
func TestAutoNameRoundTrip(t *testing.T) {
	for _, input := range []string{"archive.tar", "path/to/thing.tar"} {
		if got := autoWriteName(input); got != autoWriteName(input) {
			t.Fatalf("autoWriteName(%q) not pure: %q vs %q", input, got, autoWriteName(input))
		}
		written := autoWriteName(input)
		if back := autoReadName(written); back != input {
			t.Errorf("autoReadName(autoWriteName(%q)) = %q, want %q", input, back, input)
		}
	}
}
