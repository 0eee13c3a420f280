// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package il2cpp

import (
	"encoding/binary"
	"io"
	"testing"

	"github.com/saferwall/il2cpp/log"
)

func TestTypeKindValid(t *testing.T) {
	if !TypeClass.valid() {
		t.Error("TypeClass should be a recognised kind")
	}
	if !TypeEnum.valid() {
		t.Error("TypeEnum should be a recognised kind")
	}
	if TypeKind(0xAB).valid() {
		t.Error("an unassigned kind byte should not be valid")
	}
}

func TestAddrIndexAndLookup(t *testing.T) {
	addrs := []uint64{0x1000, 0x2000, 0x3000}
	idx := addrIndex(addrs)

	if got := lookupOrSentinel(idx, 0x2000); got != 1 {
		t.Errorf("lookupOrSentinel(0x2000) = %d, want 1", got)
	}
	if got := lookupOrSentinel(idx, 0); got != sentinelIndex {
		t.Errorf("lookupOrSentinel(0) = %d, want sentinelIndex", got)
	}
	if got := lookupOrSentinel(idx, 0x9999); got != sentinelIndex {
		t.Errorf("lookupOrSentinel(unknown) = %d, want sentinelIndex", got)
	}
}

// TestReadCodeRegistrationEndToEnd exercises the full readCodeRegistration/
// readCodeGenModule sequential-read path on a hand-laid-out buffer, with a
// single real module entry so a cursor-misalignment regression (e.g.
// over-reading unresolved_instance_call_pointers/unresolved_static_call_pointers
// as counted arrays instead of bare discarded pointers) surfaces as a wrong
// module count or a garbled name rather than passing silently.
func TestReadCodeRegistrationEndToEnd(t *testing.T) {
	buf := make([]byte, 256)
	put := func(off int, v uint64) { binary.LittleEndian.PutUint64(buf[off:], v) }

	put(0, 0)   // reverse_pinvoke_wrappers count
	put(8, 0)   // reverse_pinvoke_wrappers ptr
	put(16, 0)  // generic_method_pointers count
	put(24, 0)  // generic_method_pointers ptr
	put(32, 0)  // generic_adjustor_thunks ptr
	put(40, 0)  // invoker_pointers count
	put(48, 0)  // invoker_pointers ptr
	put(56, 0)  // unresolved_indirect_call_pointers count
	put(64, 0)  // unresolved_indirect_call_pointers ptr
	put(72, 0xAAAAAAAAAAAAAAAA) // unresolved_instance_call_pointers, discarded
	put(80, 0xBBBBBBBBBBBBBBBB) // unresolved_static_call_pointers, discarded
	put(88, 0)   // interop_data count
	put(96, 0)   // interop_data ptr
	put(104, 0)  // windows_runtime_factory_table count
	put(112, 0)  // windows_runtime_factory_table ptr
	put(120, 1)  // modules count
	put(128, 136) // modules ptr

	put(136, 144) // modules[0] address

	put(144, 240) // CodeGenModule.namePtr
	put(152, 0)   // method_pointers count
	put(160, 0)   // method_pointers ptr
	put(168, 0)   // adjustor_thunks count
	put(176, 0)   // adjustor_thunks ptr
	put(184, 0)   // invoker_indices ptr
	put(208, 0)   // rgctx_ranges count
	put(216, 0)   // rgctx_ranges ptr
	put(224, 0)   // rgctx_definitions count
	put(232, 0)   // rgctx_definitions ptr
	copy(buf[240:], "TestModule\x00")

	f := newTestFile(newLoadProg(0, 0, uint64(len(buf))))
	e := &elfView{file: f, orig: buf, rel: buf}
	logger := log.NewHelper(log.NewFilter(log.NewStdLogger(io.Discard), log.FilterLevel(log.LevelError)))

	cr, err := readCodeRegistration(e, 0, logger)
	if err != nil {
		t.Fatalf("readCodeRegistration: %v", err)
	}
	if len(cr.Modules) != 1 {
		t.Fatalf("got %d modules, want 1", len(cr.Modules))
	}
	if cr.Modules[0].Name != "TestModule" {
		t.Errorf("module name = %q, want %q", cr.Modules[0].Name, "TestModule")
	}
}
