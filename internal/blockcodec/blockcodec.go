// Copyright 2020 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package blockcodec drives the per-block encode/decode: an XZ block
// header (internal/xzformat), an LZMA2 body (github.com/ulikunitz/xz/lzma,
// single-threaded since pxz already parallelizes at the block level), and
// the uncompressible-block fallback for data the filter would expand.
package blockcodec

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"

	"github.com/ulikunitz/xz/lzma"

	"github.com/cosnicolaou/pxz/internal/xzformat"
)

// chunkMax is the largest uncompressed chunk an LZMA2 uncompressed-chunk
// control byte can describe: 2^16 bytes.
const chunkMax = 1 << 16

// SizeUncompressible returns the exact size of the uncompressible-block
// fallback encoding of an insize-byte input: a 0x01 control byte and a
// two-byte big-endian (size-1) per chunk of up to chunkMax bytes, a final
// 0x00 end marker, padded to a multiple of 4 bytes.
func SizeUncompressible(insize int) int {
	chunks := insize / chunkMax
	if insize%chunkMax != 0 {
		chunks++
	}
	size := insize + chunks*3 + 1
	if rem := size % 4; rem != 0 {
		size += 4 - rem
	}
	return size
}

// encodeUncompressible packs in as a sequence of raw LZMA2 "uncompressed
// chunk" records. This is itself valid LZMA2, so a generic LZMA2 decoder
// reads it back without any special-casing -- it never needs to know the
// block took the fallback path.
func encodeUncompressible(in []byte) []byte {
	out := make([]byte, 0, SizeUncompressible(len(in)))
	remain := in
	for len(remain) > 0 {
		n := len(remain)
		if n > chunkMax {
			n = chunkMax
		}
		out = append(out, 0x01, byte((n-1)>>8), byte((n-1)&0xff))
		out = append(out, remain[:n]...)
		remain = remain[n:]
	}
	out = append(out, 0x00)
	for len(out)%4 != 0 {
		out = append(out, 0)
	}
	return out
}

// EncodeBlock compresses in as one complete XZ block (header, body,
// padding and check value) using the LZMA2 filter at the given
// dictionary size, falling back to the uncompressible encoding when the
// LZMA2 body is larger than SizeUncompressible(len(in)) plus the CRC32
// check size. Only CRC32 is supported as the
// block check, matching the one check algorithm pxz ever writes.
func EncodeBlock(in []byte, dictSize uint32) ([]byte, error) {
	var body bytes.Buffer
	w, err := lzma.NewWriter2Config(&body, lzma.Writer2Config{
		DictSize: int(dictSize),
		Workers:  1,
	})
	if err != nil {
		return nil, fmt.Errorf("blockcodec: creating LZMA2 writer: %w", err)
	}
	if _, err := w.Write(in); err != nil {
		return nil, fmt.Errorf("blockcodec: LZMA2 compression: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("blockcodec: closing LZMA2 writer: %w", err)
	}

	budget := SizeUncompressible(len(in)) + xzformat.CheckSize(xzformat.CheckCRC32)
	compressedBody := body.Bytes()
	if body.Len() > budget {
		compressedBody = encodeUncompressible(in)
	}

	hdr := xzformat.BlockHeader{
		CompressedSize:   int64(len(compressedBody)),
		UncompressedSize: int64(len(in)),
		DictSize:         dictSize,
	}
	hdrBytes, err := xzformat.EncodeBlockHeader(hdr)
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, len(hdrBytes)+len(compressedBody)+4+4)
	out = append(out, hdrBytes...)
	out = append(out, compressedBody...)
	for len(out)%4 != 0 {
		out = append(out, 0)
	}
	var crcBuf [4]byte
	binary.LittleEndian.PutUint32(crcBuf[:], crc32.ChecksumIEEE(in))
	out = append(out, crcBuf[:]...)
	return out, nil
}

// DecodeBlock decodes one fully-buffered XZ block (as produced by
// EncodeBlock, or read off disk with a known total size from the index)
// and verifies its CRC32 check. check must be the stream's declared
// check algorithm; only CheckCRC32 and CheckNone are actually verified,
// matching the set of checks pxz itself ever produces, though any check
// kind in the header is accepted for reading third-party archives.
func DecodeBlock(data []byte, check xzformat.CheckID) ([]byte, error) {
	hdr, headerSize, err := xzformat.DecodeBlockHeader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("blockcodec: decoding block header: %w", err)
	}
	if hdr.CompressedSize < 0 {
		return nil, errors.New("blockcodec: block header omits compressed size")
	}
	bodyStart := headerSize
	bodyEnd := bodyStart + int(hdr.CompressedSize)
	if bodyEnd > len(data) {
		return nil, io.ErrUnexpectedEOF
	}
	body := data[bodyStart:bodyEnd]

	rc, err := lzma.NewReader2Config(bytes.NewReader(body), lzma.Reader2Config{
		DictSize: int(hdr.DictSize),
		Workers:  1,
	})
	if err != nil {
		return nil, fmt.Errorf("blockcodec: creating LZMA2 reader: %w", err)
	}
	out, err := io.ReadAll(rc)
	rc.Close()
	if err != nil {
		return nil, fmt.Errorf("blockcodec: LZMA2 decompression: %w", err)
	}
	if hdr.UncompressedSize >= 0 && int64(len(out)) != hdr.UncompressedSize {
		return nil, fmt.Errorf("blockcodec: decoded %d bytes, header declares %d", len(out), hdr.UncompressedSize)
	}

	pos := bodyEnd
	for pos%4 != 0 {
		pos++
	}
	checkSize := xzformat.CheckSize(check)
	if pos+checkSize > len(data) {
		return nil, io.ErrUnexpectedEOF
	}
	if check == xzformat.CheckCRC32 {
		want := binary.LittleEndian.Uint32(data[pos : pos+4])
		if got := crc32.ChecksumIEEE(out); got != want {
			return nil, fmt.Errorf("blockcodec: CRC32 mismatch: got %#08x want %#08x", got, want)
		}
	}
	return out, nil
}

// NewStreamingDecoder returns a reader that decodes a single LZMA2 block
// body read directly from r, for the case where a block's
// compressed size isn't known up front because the archive is being read
// from a non-seekable source. The LZMA2 chunk sequence is
// self-terminating (a 0x00 control byte ends it), so the returned reader
// hits io.EOF at exactly the right place without needing a byte count.
func NewStreamingDecoder(r io.Reader, dictSize uint32) (io.ReadCloser, error) {
	return lzma.NewReader2Config(r, lzma.Reader2Config{
		DictSize: int(dictSize),
		Workers:  1,
	})
}
