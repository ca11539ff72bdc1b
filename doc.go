// Copyright 2020 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package pxz implements a parallel, indexed XZ compressor and
// decompressor for tar archives. It splits a tar stream into
// fixed-size blocks, compresses each one as an independent XZ block so
// that blocks can be decoded in parallel and accessed at random, and
// appends a file index recording each tar member's starting offset in
// the decompressed stream so a single member can be extracted without
// decompressing the whole archive.
package pxz
