// Copyright 2020 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package xzformat

import (
	"bytes"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"io"
)

// IndexRecord is one block's entry in a stream's index: its unpadded
// size (header + compressed body + check, no block padding) and
// uncompressed size.
type IndexRecord struct {
	UnpaddedSize     uint64
	UncompressedSize uint64
}

// EncodeIndex returns the full on-disk index record: indicator byte,
// record count, the records themselves, zero padding to a multiple of 4
// bytes, and a trailing CRC32. The returned size is exactly what
// WriteStreamFooter expects as indexSize.
func EncodeIndex(records []IndexRecord) []byte {
	var buf []byte
	buf = append(buf, 0x00)
	buf = PutVLI(buf, uint64(len(records)))
	for _, r := range records {
		buf = PutVLI(buf, r.UnpaddedSize)
		buf = PutVLI(buf, r.UncompressedSize)
	}
	for len(buf)%4 != 0 {
		buf = append(buf, 0x00)
	}
	crc := crc32.ChecksumIEEE(buf)
	var crcBuf [4]byte
	binary.LittleEndian.PutUint32(crcBuf[:], crc)
	return append(buf, crcBuf[:]...)
}

// DecodeIndex reads one index record from r and verifies its CRC32. It
// returns the decoded records and the exact number of bytes consumed
// (which equals the indexSize WriteStreamFooter expects).
func DecodeIndex(r io.Reader) ([]IndexRecord, int64, error) {
	var indicator [1]byte
	if _, err := io.ReadFull(r, indicator[:]); err != nil {
		return nil, 0, err
	}
	if indicator[0] != 0x00 {
		return nil, 0, errors.New("xzformat: bad index indicator byte")
	}
	var consumed bytes.Buffer
	consumed.Write(indicator[:])
	tr := io.TeeReader(r, &consumed)

	count, err := ReadVLI(tr)
	if err != nil {
		return nil, 0, err
	}
	records := make([]IndexRecord, count)
	for i := range records {
		u, err := ReadVLI(tr)
		if err != nil {
			return nil, 0, err
		}
		s, err := ReadVLI(tr)
		if err != nil {
			return nil, 0, err
		}
		records[i] = IndexRecord{UnpaddedSize: u, UncompressedSize: s}
	}
	for consumed.Len()%4 != 0 {
		var b [1]byte
		if _, err := io.ReadFull(tr, b[:]); err != nil {
			return nil, 0, err
		}
		if b[0] != 0x00 {
			return nil, 0, errors.New("xzformat: non-zero index padding")
		}
	}
	var crcBuf [4]byte
	if _, err := io.ReadFull(r, crcBuf[:]); err != nil {
		return nil, 0, err
	}
	if binary.LittleEndian.Uint32(crcBuf[:]) != crc32.ChecksumIEEE(consumed.Bytes()) {
		return nil, 0, errors.New("xzformat: index CRC mismatch")
	}
	return records, int64(consumed.Len() + 4), nil
}
