// Copyright 2020 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package fileindex implements the codec for the file-index block: a
// record of tar member names and their starting byte offset in the
// decompressed stream, written as the final block of a pxz archive so
// that extraction can locate a member without a full decompress.
package fileindex

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"io"
)

// Magic identifies a block as a file index rather than tar data. It is
// written as the first 8 bytes of the block, little-endian.
const Magic uint64 = 0xdbae14d62e324ca6

// Entry is one member of the index: Name is the tar entry's path, Offset
// is its first byte's position in the decompressed stream. The final
// entry in an encoded index always has an empty Name; its Offset holds
// the total uncompressed size of the archive's tar data.
type Entry struct {
	Name   string
	Offset int64
}

// Encode returns the on-disk encoding of entries: Magic, followed by
// each entry as a NUL-terminated name and an 8-byte little-endian
// offset, including the closing empty-name terminator.
func Encode(entries []Entry) []byte {
	var buf bytes.Buffer
	var magicBuf [8]byte
	binary.LittleEndian.PutUint64(magicBuf[:], Magic)
	buf.Write(magicBuf[:])
	var offBuf [8]byte
	for _, e := range entries {
		buf.WriteString(e.Name)
		buf.WriteByte(0)
		binary.LittleEndian.PutUint64(offBuf[:], uint64(e.Offset))
		buf.Write(offBuf[:])
	}
	return buf.Bytes()
}

// HasMagic reports whether the first 8 bytes of data are the file-index
// magic.
func HasMagic(data []byte) bool {
	if len(data) < 8 {
		return false
	}
	return binary.LittleEndian.Uint64(data[:8]) == Magic
}

// Decode parses a file index previously produced by Encode. r must begin
// immediately after the magic has already been consumed and verified by
// the caller (the merger needs to peek at the magic before committing to
// this decode).
func Decode(r io.Reader) ([]Entry, error) {
	br := bufio.NewReader(r)
	var entries []Entry
	for {
		name, err := br.ReadString(0)
		if err == io.EOF && name == "" {
			break
		}
		if err != nil {
			return nil, errors.New("fileindex: truncated entry name")
		}
		name = name[:len(name)-1] // drop the NUL
		var offBuf [8]byte
		if _, err := io.ReadFull(br, offBuf[:]); err != nil {
			return nil, errors.New("fileindex: truncated entry offset")
		}
		off := int64(binary.LittleEndian.Uint64(offBuf[:]))
		entries = append(entries, Entry{Name: name, Offset: off})
		if name == "" {
			break
		}
	}
	return entries, nil
}

// TotalSize returns the uncompressed size recorded by the terminal
// (empty-name) entry, or false if entries doesn't end with one.
func TotalSize(entries []Entry) (int64, bool) {
	if len(entries) == 0 {
		return 0, false
	}
	last := entries[len(entries)-1]
	if last.Name != "" {
		return 0, false
	}
	return last.Offset, true
}

// Lookup returns the entries (in file order) whose Name matches spec
// exactly or is a path beneath it (spec == name or name starts with
// spec+"/"), plus the byte offset the match ends at (the next entry's
// Offset, or the archive's total size for the last real entry).
func Lookup(entries []Entry, spec string) []Range {
	var out []Range
	for i, e := range entries {
		if e.Name == "" {
			continue
		}
		if e.Name != spec && !(len(e.Name) > len(spec) && e.Name[:len(spec)] == spec && e.Name[len(spec)] == '/') {
			continue
		}
		end := entries[i+1].Offset
		out = append(out, Range{Name: e.Name, Start: e.Offset, End: end})
	}
	return out
}

// Range is a matched member's byte extent within the decompressed
// stream.
type Range struct {
	Name       string
	Start, End int64
}
