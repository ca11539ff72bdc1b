// Copyright 2020 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package main

import "strings"

// autoWriteName derives the output path for a compress run that didn't
// specify one explicitly: a ".tar" input becomes ".tpxz" (pixz's own
// combined tar+xz suffix, recognized by autoReadName below); anything
// else is suffixed with ".xz", matching the plain xz CLI convention.
func autoWriteName(input string) string {
	if strings.HasSuffix(input, ".tar") {
		return strings.TrimSuffix(input, ".tar") + ".tpxz"
	}
	return input + ".xz"
}

// autoReadName derives the output path for a decompress run that didn't
// specify one explicitly, undoing autoWriteName's suffixing. Inputs with
// no recognized suffix are returned unchanged, mirroring pixz's own
// "leave it alone" fallback.
func autoReadName(input string) string {
	switch {
	case strings.HasSuffix(input, ".tar.xz"):
		return strings.TrimSuffix(input, ".xz")
	case strings.HasSuffix(input, ".tpxz"):
		return strings.TrimSuffix(input, ".tpxz") + ".tar"
	case strings.HasSuffix(input, ".xz"):
		return strings.TrimSuffix(input, ".xz")
	default:
		return input
	}
}
