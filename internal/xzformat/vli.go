// Copyright 2020 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package xzformat implements the byte-level framing of the XZ container:
// stream header/footer, block header and the multi-block index. It does
// not implement the LZMA2 filter itself -- that's ulikunitz/xz/lzma,
// wrapped by internal/blockcodec.
package xzformat

import (
	"errors"
	"io"
)

// ErrVLIOverflow is returned when a variable-length integer would not fit
// in 63 bits, which the XZ format forbids.
var ErrVLIOverflow = errors.New("xzformat: variable length integer overflow")

// PutVLI appends v to buf using the XZ variable-length integer encoding:
// little-endian base-128 with the continuation bit (0x80) set on every
// byte but the last.
func PutVLI(buf []byte, v uint64) []byte {
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			buf = append(buf, b|0x80)
			continue
		}
		buf = append(buf, b)
		return buf
	}
}

// SizeVLI returns the number of bytes PutVLI would emit for v.
func SizeVLI(v uint64) int {
	n := 1
	for v >>= 7; v != 0; v >>= 7 {
		n++
	}
	return n
}

// ReadVLI decodes a variable-length integer from r.
func ReadVLI(r io.Reader) (uint64, error) {
	var v uint64
	var buf [1]byte
	for i := 0; ; i++ {
		if i >= 9 {
			return 0, ErrVLIOverflow
		}
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return 0, err
		}
		b := buf[0]
		v |= uint64(b&0x7f) << (7 * uint(i))
		if b&0x80 == 0 {
			return v, nil
		}
	}
}
