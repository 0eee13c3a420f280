// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package il2cpp

import "encoding/binary"

// This file implements component C: a minimal ARM64 micro-analyser.
// No ARM64 disassembler exists anywhere in this codebase's reference
// corpus, so only the five instruction forms spec.md §4.3/§4.4 name
// are decoded; everything else decodes to opUnknown and is ignored by
// the abstract interpreter. Grounded on the *algorithm* (not any
// library) in original_source/src/runtime_metadata/elf.rs's
// analyze_reg_rel/nth_bl/find_blr.

// reg is an ARM64 general-purpose register number, 0-31 (31 is the
// zero/stack register depending on context; this reader never touches it).
type reg uint8

// armOp enumerates the instruction forms the micro-analyser recognises.
type armOp int

const (
	opUnknown armOp = iota
	opADRP
	opADDImm
	opLDRImm
	opBL
	opBLR
)

// instruction is a decoded ARM64 instruction, populated only with the
// fields relevant to the form it represents.
type instruction struct {
	Op     armOp
	Rd     reg
	Rn     reg
	Imm    int64  // ADD/LDR: signed immediate/offset operand
	Target uint64 // ADRP: page address; BL: branch target
}

// decodeInstruction decodes the 4-byte little-endian word at virtual
// address pc. Any pattern not matching one of the five recognised
// forms decodes to opUnknown.
func decodeInstruction(word uint32, pc uint64) instruction {
	switch {
	case word&0x9F000000 == 0x90000000:
		return decodeADRP(word, pc)
	case word&0xFF000000 == 0x91000000:
		return decodeADDImm(word)
	case word&0xFFC00000 == 0xF9400000:
		return decodeLDRImm(word)
	case word&0xFC000000 == 0x94000000:
		return decodeBL(word, pc)
	case word&0xFFFFFC1F == 0xD63F0000:
		return instruction{Op: opBLR, Rn: reg((word >> 5) & 0x1F)}
	default:
		return instruction{Op: opUnknown}
	}
}

// decodeADRP decodes `ADRP Xd, label`.
func decodeADRP(word uint32, pc uint64) instruction {
	immlo := uint64((word >> 29) & 0x3)
	immhi := uint64((word >> 5) & 0x7FFFF)
	imm := signExtend((immhi<<2)|immlo, 21) << 12
	page := int64(pc) &^ 0xFFF
	return instruction{
		Op:     opADRP,
		Rd:     reg(word & 0x1F),
		Target: uint64(page + imm),
	}
}

// decodeADDImm decodes `ADD Xd, Xn, #imm{, LSL #12}` (64-bit).
func decodeADDImm(word uint32) instruction {
	shift := (word >> 22) & 0x3
	imm12 := int64((word >> 10) & 0xFFF)
	if shift == 1 {
		imm12 <<= 12
	}
	return instruction{
		Op:  opADDImm,
		Rd:  reg(word & 0x1F),
		Rn:  reg((word >> 5) & 0x1F),
		Imm: imm12,
	}
}

// decodeLDRImm decodes `LDR Xt, [Xn, #imm]` (64-bit unsigned offset).
func decodeLDRImm(word uint32) instruction {
	imm12 := int64((word >> 10) & 0xFFF)
	return instruction{
		Op:  opLDRImm,
		Rd:  reg(word & 0x1F), // Rt, reused as Rd: the analyser only tracks same-reg forms
		Rn:  reg((word >> 5) & 0x1F),
		Imm: imm12 * 8,
	}
}

// decodeBL decodes `BL label`.
func decodeBL(word uint32, pc uint64) instruction {
	imm26 := uint64(word & 0x03FFFFFF)
	imm := signExtend(imm26, 26) << 2
	return instruction{Op: opBL, Target: uint64(int64(pc) + imm)}
}

// signExtend sign-extends the low `bits` bits of v to a 64-bit signed value.
func signExtend(v uint64, bits uint) int64 {
	shift := 64 - bits
	return int64(v<<shift) >> shift
}

// analyzeRegRel abstractly interprets a linear run of instructions
// (decoded from consecutive virtual addresses starting at pc0),
// propagating register values for ADRP/ADD/LDR, per spec.md §4.3. LDR
// resolves its load by converting the computed address through e and
// reading 8 bytes from the relocation-applied buffer.
func analyzeRegRel(e *elfView, words []uint32, pc0 uint64) (map[reg]uint64, error) {
	regs := make(map[reg]uint64)
	rel := e.relocatedReader()
	for i, w := range words {
		pc := pc0 + uint64(i)*4
		ins := decodeInstruction(w, pc)
		switch ins.Op {
		case opADRP:
			regs[ins.Rd] = ins.Target
		case opADDImm:
			if ins.Rd != ins.Rn {
				continue
			}
			if v, ok := regs[ins.Rd]; ok {
				regs[ins.Rd] = uint64(int64(v) + ins.Imm)
			}
		case opLDRImm:
			if ins.Rd != ins.Rn {
				continue
			}
			v, ok := regs[ins.Rd]
			if !ok {
				continue
			}
			addr := uint64(int64(v) + ins.Imm)
			off, err := e.vaddrToOffset(addr)
			if err != nil {
				return nil, err
			}
			loaded, err := rel.ReadUint64(off)
			if err != nil {
				return nil, err
			}
			regs[ins.Rd] = loaded
		}
	}
	return regs, nil
}

// readWords decodes n little-endian 32-bit words from b.
func readWords(b []byte, n int) []uint32 {
	words := make([]uint32, 0, n)
	for i := 0; i+4 <= len(b) && len(words) < n; i += 4 {
		words = append(words, binary.LittleEndian.Uint32(b[i:]))
	}
	return words
}

// nthBL scans forward from virtual address start, counting `BL label`
// instructions, and returns the target virtual address of the n-th
// one (1-based), per spec.md §4.4.
func nthBL(e *elfView, start uint64, n int) (uint64, error) {
	const scanWindow = 4096 // instructions; generous upper bound on the init routine's size
	data, err := e.textAt(start, scanWindow)
	if err != nil {
		return 0, err
	}
	count := 0
	for i := 0; i+4 <= len(data); i += 4 {
		pc := start + uint64(i)
		word := binary.LittleEndian.Uint32(data[i:])
		ins := decodeInstruction(word, pc)
		if ins.Op != opBL {
			continue
		}
		count++
		if count == n {
			return ins.Target, nil
		}
	}
	return 0, ErrMissingBlr
}

// findBLR scans up to limit instructions from virtual address start
// and returns the register operand of the first BLR found, plus the
// virtual address of that instruction, per spec.md §4.4.
func findBLR(e *elfView, start uint64, limit int) (reg, uint64, error) {
	data, err := e.textAt(start, limit)
	if err != nil {
		return 0, 0, err
	}
	for i := 0; i+4 <= len(data); i += 4 {
		pc := start + uint64(i)
		word := binary.LittleEndian.Uint32(data[i:])
		ins := decodeInstruction(word, pc)
		if ins.Op == opBLR {
			return ins.Rn, pc, nil
		}
	}
	return 0, 0, ErrMissingBlr
}
