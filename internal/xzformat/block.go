// Copyright 2020 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package xzformat

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
)

// FilterLZMA2 is the XZ filter ID for LZMA2, the only filter pxz writes
// or expects to read.
const FilterLZMA2 = 0x21

// BlockHeader is the decoded form of an XZ block header. CompressedSize
// and UncompressedSize are -1 when the header omits them (only legal
// while a block is still being written, for the streaming case).
type BlockHeader struct {
	CompressedSize   int64
	UncompressedSize int64
	DictSize         uint32 // LZMA2 filter property: dictionary size
}

// dictSizeToProperty and propertyToDictSize implement the LZMA2 filter
// property byte: a packed representation of the dictionary size ranging
// from 4 KiB to 4 GiB - 1 byte.
func dictSizeToProperty(size uint32) (byte, error) {
	if size > 1512*1<<20 {
		return 0, fmt.Errorf("xzformat: dictionary size %d too large", size)
	}
	for p := 0; p <= 40; p++ {
		var v uint32
		if p == 40 {
			v = 0xffffffff
		} else {
			v = (uint32(2) | uint32(p&1)) << uint(p/2+11)
		}
		if v >= size {
			return byte(p), nil
		}
	}
	return 40, nil
}

func propertyToDictSize(p byte) (uint32, error) {
	if p > 40 {
		return 0, fmt.Errorf("xzformat: invalid LZMA2 dictionary size property %d", p)
	}
	if p == 40 {
		return 0xffffffff, nil
	}
	return (uint32(2) | uint32(p&1)) << uint(p/2+11), nil
}

// EncodeBlockHeader encodes h as an XZ block header, including its
// trailing CRC32 and padding to a multiple of 4 bytes.
func EncodeBlockHeader(h BlockHeader) ([]byte, error) {
	prop, err := dictSizeToProperty(h.DictSize)
	if err != nil {
		return nil, err
	}

	var body []byte
	flags := byte(0)
	if h.CompressedSize >= 0 {
		flags |= 1 << 6
	}
	if h.UncompressedSize >= 0 {
		flags |= 1 << 7
	}
	body = append(body, flags)
	if h.CompressedSize >= 0 {
		body = PutVLI(body, uint64(h.CompressedSize))
	}
	if h.UncompressedSize >= 0 {
		body = PutVLI(body, uint64(h.UncompressedSize))
	}
	body = PutVLI(body, FilterLZMA2)
	body = PutVLI(body, 1) // one property byte
	body = append(body, prop)

	total := 1 + len(body) + 4 // size byte + body + CRC32
	for total%4 != 0 {
		total++
	}
	headerSizeField := total/4 - 1
	if headerSizeField > 255 {
		return nil, errors.New("xzformat: block header too large")
	}

	out := make([]byte, total)
	out[0] = byte(headerSizeField)
	copy(out[1:], body)
	crc := crc32.ChecksumIEEE(out[:total-4])
	binary.LittleEndian.PutUint32(out[total-4:], crc)
	return out, nil
}

// DecodeBlockHeader reads one block header from r, returning the decoded
// header and its exact on-disk size in bytes. A header size byte of 0x00
// signals the index (end of block list), reported as io.EOF.
func DecodeBlockHeader(r io.Reader) (BlockHeader, int, error) {
	var sizeByte [1]byte
	if _, err := io.ReadFull(r, sizeByte[:]); err != nil {
		return BlockHeader{}, 0, err
	}
	if sizeByte[0] == 0x00 {
		return BlockHeader{}, 0, io.EOF
	}
	headerSize := (int(sizeByte[0]) + 1) * 4
	rest := make([]byte, headerSize-1)
	if _, err := io.ReadFull(r, rest); err != nil {
		return BlockHeader{}, 0, fmt.Errorf("xzformat: reading block header: %w", err)
	}
	full := append(sizeByte[:], rest...)
	crc := crc32.ChecksumIEEE(full[:headerSize-4])
	if binary.LittleEndian.Uint32(full[headerSize-4:]) != crc {
		return BlockHeader{}, 0, errors.New("xzformat: block header CRC mismatch")
	}

	br := bytes.NewReader(full[1 : headerSize-4])
	var flags [1]byte
	if _, err := io.ReadFull(br, flags[:]); err != nil {
		return BlockHeader{}, 0, err
	}
	h := BlockHeader{CompressedSize: -1, UncompressedSize: -1}
	if flags[0]&(1<<6) != 0 {
		v, err := ReadVLI(br)
		if err != nil {
			return BlockHeader{}, 0, err
		}
		h.CompressedSize = int64(v)
	}
	if flags[0]&(1<<7) != 0 {
		v, err := ReadVLI(br)
		if err != nil {
			return BlockHeader{}, 0, err
		}
		h.UncompressedSize = int64(v)
	}
	numFilters := int(flags[0]&0x3) + 1
	for i := 0; i < numFilters; i++ {
		id, err := ReadVLI(br)
		if err != nil {
			return BlockHeader{}, 0, err
		}
		propLen, err := ReadVLI(br)
		if err != nil {
			return BlockHeader{}, 0, err
		}
		props := make([]byte, propLen)
		if _, err := io.ReadFull(br, props); err != nil {
			return BlockHeader{}, 0, err
		}
		if id == FilterLZMA2 {
			if len(props) != 1 {
				return BlockHeader{}, 0, errors.New("xzformat: malformed LZMA2 filter properties")
			}
			ds, err := propertyToDictSize(props[0])
			if err != nil {
				return BlockHeader{}, 0, err
			}
			h.DictSize = ds
		}
	}
	return h, headerSize, nil
}

// UnpaddedSize computes the unpadded_size field of an index record: the
// block header, compressed body and check value, excluding the block
// padding that rounds it up to a multiple of 4.
func UnpaddedSize(headerSize int, compressedSize int64, check CheckID) int64 {
	return int64(headerSize) + compressedSize + int64(CheckSize(check))
}

// PadTo4 returns n rounded up to the next multiple of 4.
func PadTo4(n int64) int64 {
	if r := n % 4; r != 0 {
		return n + (4 - r)
	}
	return n
}
