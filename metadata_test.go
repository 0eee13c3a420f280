// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package il2cpp

import "testing"

// newTestMetadata builds a hand-assembled Metadata value (bypassing
// Parse/ParseFiles) so name-rendering logic can be exercised without a
// real global-metadata.dat/ELF pair.
func newTestMetadata(t *testing.T) *Metadata {
	t.Helper()

	gm := &GlobalMetadata{}
	// stringHeap layout: "Outer\x00Inner\x00NS\x00T\x00U\x00"
	heap := "Outer\x00Inner\x00NS\x00T\x00U\x00"
	gm.stringHeap = []byte(heap)
	offsets := map[string]uint32{}
	off := uint32(0)
	for _, s := range []string{"Outer", "Inner", "NS", "T", "U"} {
		offsets[s] = off
		off += uint32(len(s)) + 1
	}

	outer := TypeDefinitionRow{
		NameIndex:        StringIndex(offsets["Outer"]),
		NamespaceIndex:   StringIndex(offsets["NS"]),
		DeclaringType:    TypeDefinitionIndex(invalid32),
		GenericContainer: GenericContainerIndex(invalid32),
	}
	inner := TypeDefinitionRow{
		NameIndex:      StringIndex(offsets["Inner"]),
		NamespaceIndex: StringIndex(invalid32),
		DeclaringType:  TypeDefinitionIndex(0), // points at outer
		GenericContainer: GenericContainerIndex(0),
	}
	gm.TypeDefinitions = []TypeDefinitionRow{outer, inner}

	gm.GenericContainers = []GenericContainerRow{
		{GenericParameterStart: GenericParameterIndex(0), TypeArgc: 2},
	}
	gm.GenericParameters = []GenericParameterRow{
		{Name: StringIndex(offsets["T"])},
		{Name: StringIndex(offsets["U"])},
	}

	return &Metadata{Global: gm}
}

func TestTypeDefinitionFullNameTopLevel(t *testing.T) {
	m := newTestMetadata(t)
	name, err := m.TypeDefinitionFullName(TypeDefinitionIndex(0))
	if err != nil {
		t.Fatalf("TypeDefinitionFullName: %v", err)
	}
	if name != "NS.Outer" {
		t.Errorf("got %q, want \"NS.Outer\"", name)
	}
}

func TestTypeDefinitionFullNameNestedGeneric(t *testing.T) {
	m := newTestMetadata(t)
	name, err := m.TypeDefinitionFullName(TypeDefinitionIndex(1))
	if err != nil {
		t.Fatalf("TypeDefinitionFullName: %v", err)
	}
	if name != "NS.Outer::Inner<T,U>" {
		t.Errorf("got %q, want \"NS.Outer::Inner<T,U>\"", name)
	}
}

func TestTypeDefinitionFullNameInvalidIndex(t *testing.T) {
	m := newTestMetadata(t)
	if _, err := m.TypeDefinitionFullName(TypeDefinitionIndex(99)); err != ErrInvalidIndex {
		t.Errorf("TypeDefinitionFullName(99) = %v, want ErrInvalidIndex", err)
	}
}

func TestGenericContainerSignatureEmpty(t *testing.T) {
	m := newTestMetadata(t)
	m.Global.GenericContainers = append(m.Global.GenericContainers, GenericContainerRow{})
	sig, err := m.GenericContainerSignature(GenericContainerIndex(1))
	if err != nil || sig != "" {
		t.Errorf("GenericContainerSignature(empty) = %q, %v, want \"\", nil", sig, err)
	}
}

func TestTypeFullNameCanonicalKinds(t *testing.T) {
	m := newTestMetadata(t)
	m.Runtime = &RuntimeMetadata{
		MetadataRegistration: MetadataRegistration{
			Types: []Type{
				{Kind: TypeVoid},
				{Kind: TypeI4},
				{Kind: TypeSzarray, Index: 1},
				{Kind: TypePtr, Index: 1},
			},
		},
	}
	tests := []struct {
		idx  int32
		want string
	}{
		{0, "System.Void"},
		{1, "System.Int32"},
		{2, "System.Int32[]"},
		{3, "System.Int32*"},
	}
	for _, tt := range tests {
		got, err := m.TypeFullName(tt.idx)
		if err != nil {
			t.Fatalf("TypeFullName(%d): %v", tt.idx, err)
		}
		if got != tt.want {
			t.Errorf("TypeFullName(%d) = %q, want %q", tt.idx, got, tt.want)
		}
	}
}

func TestTypeFullNameClassDelegatesToTypeDefinition(t *testing.T) {
	m := newTestMetadata(t)
	m.Runtime = &RuntimeMetadata{
		MetadataRegistration: MetadataRegistration{
			Types: []Type{{Kind: TypeClass, Index: 0}},
		},
	}
	got, err := m.TypeFullName(0)
	if err != nil {
		t.Fatalf("TypeFullName: %v", err)
	}
	if got != "NS.Outer" {
		t.Errorf("got %q, want \"NS.Outer\"", got)
	}
}

func TestTypeFullNameGenericInstNonGeneric(t *testing.T) {
	m := newTestMetadata(t)
	m.Runtime = &RuntimeMetadata{
		MetadataRegistration: MetadataRegistration{
			Types: []Type{
				{Kind: TypeClass, Index: 0},
				{Kind: TypeGenericinst, Index: 0},
			},
			GenericClasses: []GenericClass{
				{TypeIndex: 0, Context: GenericContext{ClassInst: sentinelIndex, MethodInst: sentinelIndex}},
			},
		},
	}
	got, err := m.TypeFullName(1)
	if err != nil {
		t.Fatalf("TypeFullName: %v", err)
	}
	if got != "NS.Outer" {
		t.Errorf("got %q, want \"NS.Outer\" (no instantiation args)", got)
	}
}

func TestMethodSignature(t *testing.T) {
	m := newTestMetadata(t)
	gm := m.Global

	nameOff := uint32(len(gm.stringHeap))
	gm.stringHeap = append(gm.stringHeap, []byte("Foo\x00")...)

	gm.Parameters = []ParameterRow{
		{Type: 1}, // System.Int32
		{Type: 0}, // System.Void
	}
	gm.Methods = []MethodRow{
		{
			Name:             StringIndex(nameOff),
			ReturnType:       0,
			ParameterStart:   ParameterIndex(0),
			ParameterCount:   2,
			GenericContainer: GenericContainerIndex(invalid32),
		},
	}

	m.Runtime = &RuntimeMetadata{
		MetadataRegistration: MetadataRegistration{
			Types: []Type{
				{Kind: TypeVoid},
				{Kind: TypeI4},
			},
		},
	}

	sig, err := m.MethodSignature(TypeDefinitionIndex(0), gm.Methods[0])
	if err != nil {
		t.Fatalf("MethodSignature: %v", err)
	}
	want := "System.Void NS.Outer::Foo(System.Int32, System.Void)"
	if sig != want {
		t.Errorf("MethodSignature = %q, want %q", sig, want)
	}
}

func TestSliceRangeClampsToTableBounds(t *testing.T) {
	table := []int{1, 2, 3}
	got := sliceRange(table, Range[uint32]{Start: 1, Count: 10})
	if len(got) != 2 || got[0] != 2 || got[1] != 3 {
		t.Errorf("sliceRange clamp = %v, want [2 3]", got)
	}
	if sliceRange(table, Range[uint32]{Count: 0}) != nil {
		t.Error("sliceRange with zero count should return nil")
	}
	if sliceRange(table, Range[uint32]{Start: 50, Count: 1}) != nil {
		t.Error("sliceRange with out-of-bounds start should return nil")
	}
}
