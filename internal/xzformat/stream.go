// Copyright 2020 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package xzformat

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
)

// CheckID identifies the integrity check algorithm recorded in a stream's
// flags and applied per-block.
type CheckID uint8

const (
	CheckNone   CheckID = 0x00
	CheckCRC32  CheckID = 0x01
	CheckCRC64  CheckID = 0x04
	CheckSHA256 CheckID = 0x0a
)

// CheckSize returns the on-disk size, in bytes, of a check value.
func CheckSize(c CheckID) int {
	switch c {
	case CheckNone:
		return 0
	case CheckCRC32:
		return 4
	case CheckCRC64:
		return 8
	case CheckSHA256:
		return 32
	default:
		return 0
	}
}

var (
	headerMagic = [6]byte{0xfd, '7', 'z', 'X', 'Z', 0x00}
	footerMagic = [2]byte{'Y', 'Z'}
)

// StreamFlags is the two-byte flags field repeated in both the stream
// header and footer.
type StreamFlags struct {
	Check CheckID
}

func (f StreamFlags) encode() [2]byte {
	return [2]byte{0x00, byte(f.Check)}
}

// WriteStreamHeader writes the 12-byte XZ stream header.
func WriteStreamHeader(w io.Writer, f StreamFlags) error {
	var buf [12]byte
	copy(buf[0:6], headerMagic[:])
	fb := f.encode()
	copy(buf[6:8], fb[:])
	crc := crc32.ChecksumIEEE(buf[6:8])
	binary.LittleEndian.PutUint32(buf[8:12], crc)
	_, err := w.Write(buf[:])
	return err
}

// ReadStreamHeader reads and validates a 12-byte XZ stream header.
func ReadStreamHeader(r io.Reader) (StreamFlags, error) {
	var buf [12]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return StreamFlags{}, fmt.Errorf("xzformat: reading stream header: %w", err)
	}
	if string(buf[0:6]) != string(headerMagic[:]) {
		return StreamFlags{}, errors.New("xzformat: bad stream header magic")
	}
	if buf[6] != 0x00 {
		return StreamFlags{}, errors.New("xzformat: reserved stream flags bit set")
	}
	crc := crc32.ChecksumIEEE(buf[6:8])
	if binary.LittleEndian.Uint32(buf[8:12]) != crc {
		return StreamFlags{}, errors.New("xzformat: stream header CRC mismatch")
	}
	return StreamFlags{Check: CheckID(buf[7])}, nil
}

// WriteStreamFooter writes the 12-byte XZ stream footer. indexSize is the
// exact byte length of the preceding index record (as returned by
// EncodeIndex); it's encoded as (indexSize/4 - 1) per the format.
func WriteStreamFooter(w io.Writer, f StreamFlags, indexSize int64) error {
	if indexSize <= 0 || indexSize%4 != 0 {
		return fmt.Errorf("xzformat: index size %d is not a positive multiple of 4", indexSize)
	}
	var buf [12]byte
	binary.LittleEndian.PutUint32(buf[4:8], uint32(indexSize/4-1))
	fb := f.encode()
	copy(buf[8:10], fb[:])
	copy(buf[10:12], footerMagic[:])
	crc := crc32.ChecksumIEEE(buf[4:10])
	binary.LittleEndian.PutUint32(buf[0:4], crc)
	_, err := w.Write(buf[:])
	return err
}

// ReadStreamFooter reads and validates a 12-byte XZ stream footer,
// returning the flags and the exact byte size of the index that precedes
// it.
func ReadStreamFooter(r io.Reader) (f StreamFlags, indexSize int64, err error) {
	var buf [12]byte
	if _, err = io.ReadFull(r, buf[:]); err != nil {
		return StreamFlags{}, 0, fmt.Errorf("xzformat: reading stream footer: %w", err)
	}
	if string(buf[10:12]) != string(footerMagic[:]) {
		return StreamFlags{}, 0, errors.New("xzformat: bad stream footer magic")
	}
	crc := crc32.ChecksumIEEE(buf[4:10])
	if binary.LittleEndian.Uint32(buf[0:4]) != crc {
		return StreamFlags{}, 0, errors.New("xzformat: stream footer CRC mismatch")
	}
	backward := uint64(binary.LittleEndian.Uint32(buf[4:8]))
	indexSize = (int64(backward) + 1) * 4
	return StreamFlags{Check: CheckID(buf[9])}, indexSize, nil
}
