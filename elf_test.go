// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package il2cpp

import (
	"debug/elf"
	"errors"
	"testing"
)

func newTestFile(progs ...*elf.Prog) *elf.File {
	f := &elf.File{}
	f.Progs = progs
	return f
}

func newLoadProg(vaddr, off, memsz uint64) *elf.Prog {
	p := &elf.Prog{}
	p.Type = elf.PT_LOAD
	p.Vaddr = vaddr
	p.Off = off
	p.Memsz = memsz
	return p
}

func TestVaddrToFileOffset(t *testing.T) {
	f := newTestFile(
		newLoadProg(0x1000, 0x0, 0x500),
		newLoadProg(0x2000, 0x600, 0x200),
	)

	off, err := vaddrToFileOffset(f, 0x2010)
	if err != nil {
		t.Fatalf("vaddrToFileOffset: %v", err)
	}
	if off != 0x610 {
		t.Errorf("offset = %#x, want 0x610", off)
	}
}

func TestVaddrToFileOffsetNotMapped(t *testing.T) {
	f := newTestFile(newLoadProg(0x1000, 0x0, 0x100))

	_, err := vaddrToFileOffset(f, 0x9000)
	var verr *VAddrError
	if !errors.As(err, &verr) {
		t.Errorf("error = %v, want *VAddrError", err)
	}
}

func TestSliceReaderAt(t *testing.T) {
	r := bytesReaderAt([]byte{1, 2, 3, 4})

	buf := make([]byte, 2)
	n, err := r.ReadAt(buf, 1)
	if err != nil || n != 2 || buf[0] != 2 || buf[1] != 3 {
		t.Errorf("ReadAt(1) = %d, %v, buf %v", n, err, buf)
	}

	if _, err := r.ReadAt(make([]byte, 1), 10); !errors.Is(err, ErrOutsideBoundary) {
		t.Errorf("ReadAt past end = %v, want ErrOutsideBoundary", err)
	}

	short := make([]byte, 4)
	n, err = r.ReadAt(short, 2)
	if n != 2 || !errors.Is(err, ErrOutsideBoundary) {
		t.Errorf("ReadAt short read = %d, %v, want 2, ErrOutsideBoundary", n, err)
	}
}
