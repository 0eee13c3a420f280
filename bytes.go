// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package il2cpp

import (
	"encoding/binary"
	"unicode/utf8"
)

// reader is a bounds-checked little-endian cursor over a byte slice. It
// backs both the global-metadata table reader and the runtime-metadata
// graph reader; neither owns a copy of the underlying bytes.
//
// Grounded on the teacher's ReadUint8/16/32/64(offset) helpers in
// helper.go, generalised to a value type so both halves of the parser
// share one implementation instead of duplicating bounds checks.
type reader struct {
	data []byte
}

func newReader(data []byte) reader {
	return reader{data: data}
}

func (r reader) Len() uint64 { return uint64(len(r.data)) }

func (r reader) fits(offset, width uint64) bool {
	return offset+width <= r.Len() && offset+width >= offset
}

// ReadUint8 reads a single byte at offset.
func (r reader) ReadUint8(offset uint64) (uint8, error) {
	if !r.fits(offset, 1) {
		return 0, ErrOutsideBoundary
	}
	return r.data[offset], nil
}

// ReadUint16 reads a little-endian uint16 at offset.
func (r reader) ReadUint16(offset uint64) (uint16, error) {
	if !r.fits(offset, 2) {
		return 0, ErrOutsideBoundary
	}
	return binary.LittleEndian.Uint16(r.data[offset:]), nil
}

// ReadUint32 reads a little-endian uint32 at offset.
func (r reader) ReadUint32(offset uint64) (uint32, error) {
	if !r.fits(offset, 4) {
		return 0, ErrOutsideBoundary
	}
	return binary.LittleEndian.Uint32(r.data[offset:]), nil
}

// ReadUint64 reads a little-endian uint64 at offset.
func (r reader) ReadUint64(offset uint64) (uint64, error) {
	if !r.fits(offset, 8) {
		return 0, ErrOutsideBoundary
	}
	return binary.LittleEndian.Uint64(r.data[offset:]), nil
}

// ReadUint128 reads 16 raw bytes at offset. IL2CPP uses u128-wide fields
// only as padding/reserved slots the reader must skip over but never
// interprets; see the reverse-pinvoke-wrapper slot skipped in
// readCodeGenModule (runtime.go).
func (r reader) ReadUint128(offset uint64) ([16]byte, error) {
	var out [16]byte
	if !r.fits(offset, 16) {
		return out, ErrOutsideBoundary
	}
	copy(out[:], r.data[offset:offset+16])
	return out, nil
}

// Slice returns a bounded, non-copying view [offset, offset+length).
func (r reader) Slice(offset, length uint64) ([]byte, error) {
	if !r.fits(offset, length) {
		return nil, ErrOutsideBoundary
	}
	return r.data[offset : offset+length], nil
}

// strlen returns the length, in bytes, of the NUL-terminated run
// starting at offset, not including the terminator.
func (r reader) strlen(offset uint64) (uint64, error) {
	if offset > r.Len() {
		return 0, ErrOutsideBoundary
	}
	for i := offset; i < r.Len(); i++ {
		if r.data[i] == 0 {
			return i - offset, nil
		}
	}
	return 0, ErrOutsideBoundary
}

// CString returns the NUL-terminated UTF-8 string starting at offset,
// borrowing from the underlying buffer. Fails with ErrUtf8 when the
// bytes are not valid UTF-8.
func (r reader) CString(offset uint64) (string, error) {
	n, err := r.strlen(offset)
	if err != nil {
		return "", err
	}
	b := r.data[offset : offset+n]
	if !utf8.Valid(b) {
		return "", ErrUtf8
	}
	return string(b), nil
}
