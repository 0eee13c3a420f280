// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package il2cpp

import (
	"debug/elf"
	"encoding/binary"

	"github.com/saferwall/il2cpp/log"
)

// This file implements component B: read-only ELF access for the
// runtime metadata reader. There is no third-party ELF library
// anywhere in this codebase's reference corpus; the standard library's
// debug/elf is the idiomatic choice here, the same choice
// other_examples/zboralski-galago's ARM64 emulator makes (it defines
// the identical R_AARCH64_RELATIVE = 1027 constant used below).

// rAarch64Relative is the only dynamic relocation kind this reader
// applies; all others are logged and ignored, per spec.md §4.2/§7.
const rAarch64Relative = 1027

// elfView wraps a parsed ELF file plus both the original bytes and a
// relocation-applied clone, because module-name string slices must be
// borrowed from the original bytes (string data is never relocated)
// while pointer chases must resolve through the relocated clone.
type elfView struct {
	file *elf.File
	orig []byte // original, unrelocated file bytes
	rel  []byte // clone with R_AARCH64_RELATIVE relocations applied
}

// newELFView parses raw ELF bytes and produces the relocation-applied
// clone used for all subsequent pointer-chasing reads.
func newELFView(data []byte, logger *log.Helper) (*elfView, error) {
	f, err := elf.NewFile(bytesReaderAt(data))
	if err != nil {
		return nil, err
	}
	rel := applyDynamicRelocations(f, data, logger)
	return &elfView{file: f, orig: data, rel: rel}, nil
}

// bytesReaderAt adapts a byte slice to io.ReaderAt for debug/elf.NewFile.
func bytesReaderAt(b []byte) *sliceReaderAt { return &sliceReaderAt{b: b} }

type sliceReaderAt struct{ b []byte }

func (s *sliceReaderAt) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || off >= int64(len(s.b)) {
		return 0, ErrOutsideBoundary
	}
	n := copy(p, s.b[off:])
	if n < len(p) {
		return n, ErrOutsideBoundary
	}
	return n, nil
}

// applyDynamicRelocations returns a clone of data in which every
// R_AARCH64_RELATIVE dynamic relocation has been resolved: at the
// relocation's target virtual address, the 8-byte addend is written
// little-endian. Other relocation kinds are logged and left alone.
//
// Grounded on original_source/src/runtime_metadata/elf.rs's
// process_relocations.
func applyDynamicRelocations(f *elf.File, data []byte, logger *log.Helper) []byte {
	out := make([]byte, len(data))
	copy(out, data)

	relSection := findRelocationSection(f)
	if relSection == nil {
		return out
	}
	relData, err := relSection.Data()
	if err != nil {
		return out
	}

	const relaEntSize = 24 // Elf64_Rela: r_offset, r_info, r_addend, each 8 bytes
	for i := 0; i+relaEntSize <= len(relData); i += relaEntSize {
		rOffset := binary.LittleEndian.Uint64(relData[i:])
		rInfo := binary.LittleEndian.Uint64(relData[i+8:])
		rAddend := binary.LittleEndian.Uint64(relData[i+16:])
		kind := rInfo & 0xffffffff

		vaddr, convErr := vaddrToFileOffset(f, rOffset)
		if convErr != nil {
			continue
		}
		if kind != rAarch64Relative {
			logger.Warnf("elf: ignoring unsupported relocation kind %d at 0x%x", kind, rOffset)
			continue
		}
		if vaddr+8 > uint64(len(out)) {
			continue
		}
		binary.LittleEndian.PutUint64(out[vaddr:], rAddend)
	}
	return out
}

// findRelocationSection returns the dynamic relocation section
// (.rela.dyn on ARM64 shared objects), or nil if absent.
func findRelocationSection(f *elf.File) *elf.Section {
	for _, name := range []string{".rela.dyn", ".rela.plt"} {
		if s := f.Section(name); s != nil {
			return s
		}
	}
	return nil
}

// vaddrToFileOffset walks loadable segments in order and returns the
// file offset backing virtual address v, per spec.md §4.2.
func vaddrToFileOffset(f *elf.File, v uint64) (uint64, error) {
	for _, prog := range f.Progs {
		if prog.Type != elf.PT_LOAD {
			continue
		}
		if v >= prog.Vaddr && v-prog.Vaddr < prog.Memsz {
			return prog.Off + (v - prog.Vaddr), nil
		}
	}
	return 0, &VAddrError{Addr: v}
}

// vaddrToOffset is the runtime graph reader's entry point for
// component B's vaddr_to_offset operation.
func (e *elfView) vaddrToOffset(v uint64) (uint64, error) {
	return vaddrToFileOffset(e.file, v)
}

// addrInBSS reports whether v lies inside the .bss section, per
// spec.md §4.2's nullable-array semantics (§4.5).
func (e *elfView) addrInBSS(v uint64) bool {
	bss := e.file.Section(".bss")
	if bss == nil {
		return false
	}
	return v >= bss.Addr && v-bss.Addr < bss.Size
}

// findDynamicSymbol returns the virtual address of a named dynamic
// symbol, or ErrMissingIl2CppInit-shaped failure when absent (the
// caller names the symbol, so the generic case returns a plain bool).
func (e *elfView) findDynamicSymbol(name string) (uint64, bool) {
	syms, err := e.file.DynamicSymbols()
	if err != nil {
		return 0, false
	}
	for _, s := range syms {
		if s.Name == name {
			return s.Value, true
		}
	}
	return 0, false
}

// relocatedReader returns a reader over the relocation-applied bytes,
// used for every pointer-chasing read in component E.
func (e *elfView) relocatedReader() reader { return newReader(e.rel) }

// originalReader returns a reader over the unrelocated bytes, used
// only for disassembling code (component C/D never read relocated
// instruction bytes, only the data pointers those instructions touch)
// and for borrowing module name string slices (spec.md §5).
func (e *elfView) originalReader() reader { return newReader(e.orig) }

// textAt returns a slice of the original file bytes corresponding to
// the n*4 bytes of ARM64 code at virtual address v.
func (e *elfView) textAt(v uint64, nInstructions int) ([]byte, error) {
	off, err := e.vaddrToOffset(v)
	if err != nil {
		return nil, err
	}
	return e.originalReader().Slice(off, uint64(nInstructions*4))
}
