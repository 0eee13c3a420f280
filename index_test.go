// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package il2cpp

import "testing"

func TestRangeEmpty(t *testing.T) {
	tests := []struct {
		name string
		r    Range[FieldIndex]
		want bool
	}{
		{"zero count is empty", Range[FieldIndex]{Start: 5, Count: 0}, true},
		{"nonzero count is not empty", Range[FieldIndex]{Start: 5, Count: 1}, false},
		{"zero start nonzero count is not empty", Range[FieldIndex]{Start: 0, Count: 3}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.r.Empty(); got != tt.want {
				t.Errorf("Empty() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRangeEnd(t *testing.T) {
	r := Range[MethodIndex]{Start: 10, Count: 4}
	if got := r.End(); got != 14 {
		t.Errorf("End() = %d, want 14", got)
	}
}

func TestTokenKindAndRid(t *testing.T) {
	tok := Token(0x06000123)
	if got := tok.Kind(); got != 0x06 {
		t.Errorf("Kind() = %#x, want 0x06", got)
	}
	if got := tok.Rid(); got != 0x000123 {
		t.Errorf("Rid() = %#x, want 0x123", got)
	}
}

func TestIndexValid(t *testing.T) {
	if (TypeDefinitionIndex(invalid32)).Valid() {
		t.Error("sentinel TypeDefinitionIndex reported valid")
	}
	if !(TypeDefinitionIndex(0)).Valid() {
		t.Error("zero TypeDefinitionIndex reported invalid")
	}
	if (GenericParameterConstraintIndex(invalid16)).Valid() {
		t.Error("sentinel GenericParameterConstraintIndex reported valid")
	}
}

func TestDecodeEncodedMethodIndex(t *testing.T) {
	tests := []struct {
		name string
		in   uint32
		want EncodedMethodIndex
	}{
		{
			name: "method def, valid",
			in:   (uint32(EncodedMethodMethodDef) << 29) | (7 << 1),
			want: EncodedMethodIndex{Kind: EncodedMethodMethodDef, Idx: 7, Invalid: false},
		},
		{
			name: "invalid with ambiguous bit set",
			in:   1,
			want: EncodedMethodIndex{Kind: EncodedMethodInvalid, Idx: 0, Invalid: true},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DecodeEncodedMethodIndex(tt.in)
			if got != tt.want {
				t.Errorf("DecodeEncodedMethodIndex(%#x) = %+v, want %+v", tt.in, got, tt.want)
			}
		})
	}
}

func TestEncodedMethodIndexAmbiguousMethod(t *testing.T) {
	ambiguous := DecodeEncodedMethodIndex(1)
	if !ambiguous.AmbiguousMethod() {
		t.Error("expected invalid bit set with Invalid kind to report ambiguous")
	}
	absent := DecodeEncodedMethodIndex(0)
	if absent.AmbiguousMethod() {
		t.Error("expected zero value to not report ambiguous")
	}
	real := DecodeEncodedMethodIndex((uint32(EncodedMethodFieldInfo) << 29) | (3 << 1) | 1)
	if real.AmbiguousMethod() {
		t.Error("non-Invalid kind must never report ambiguous regardless of invalid bit")
	}
}
