// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package il2cpp

// This file implements component D: the registration locator. The two
// root structures (code-registration, metadata-registration) are not
// symbolically exported, so their addresses are recovered from the
// il2cpp_init prologue's addressing pattern. Grounded on
// original_source/src/runtime_metadata/elf.rs's find_registration,
// which is the newest version of this algorithm in the reference
// corpus (it resolves LDR targets through the relocation-applied
// buffer, unlike the older src/elf.rs).
//
// This is the hardest part of the runtime reader: it is embedded
// static-analysis code-scanning, not table parsing.

const (
	regX0 reg = 0
	regX1 reg = 1
)

// findRegistration locates the code-registration and metadata-
// registration root virtual addresses, per spec.md §4.4.
func findRegistration(e *elfView) (codeRegistration, metadataRegistration uint64, err error) {
	initAddr, ok := e.findDynamicSymbol("il2cpp_init")
	if !ok {
		return 0, 0, ErrMissingIl2CppInit
	}

	// nth_bl(init, 2): the runtime-initialisation routine's entry.
	routine, err := nthBL(e, initAddr, 2)
	if err != nil {
		return 0, 0, err
	}

	// Locate the first BLR within the routine's prologue and analyse
	// everything before it to recover the branch-target register.
	blrReg, blrAddr, err := findBLR(e, routine, 200)
	if err != nil {
		return 0, 0, err
	}
	prologueWords := readWords(mustText(e, routine, int((blrAddr-routine)/4)), int((blrAddr-routine)/4))
	regs, err := analyzeRegRel(e, prologueWords, routine)
	if err != nil {
		return 0, 0, err
	}
	setterAddr, ok := regs[blrReg]
	if !ok {
		return 0, 0, ErrMissingRegistration
	}

	// Decode the setter's first seven instructions: enough for one
	// ADRP+ADD pair per argument register.
	setterWords := readWords(mustText(e, setterAddr, 7), 7)
	setterRegs, err := analyzeRegRel(e, setterWords, setterAddr)
	if err != nil {
		return 0, 0, err
	}
	cr, ok0 := setterRegs[regX0]
	mr, ok1 := setterRegs[regX1]
	if !ok0 || !ok1 {
		return 0, 0, ErrMissingRegistration
	}
	return cr, mr, nil
}

// mustText returns the raw bytes at v, or nil on error (the caller's
// subsequent analyzeRegRel call surfaces the real failure via its own
// bounds-checked reads).
func mustText(e *elfView, v uint64, nInstructions int) []byte {
	if nInstructions <= 0 {
		return nil
	}
	b, err := e.textAt(v, nInstructions)
	if err != nil {
		return nil
	}
	return b
}
