// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package il2cpp

// This file implements component G: phantom-typed table indices,
// half-open ranges, metadata tokens and encoded method indices.
//
// Grounded on original_source/il2cpp_global_metadata/src/lib.rs's
// MetadataIndex<T, I>, which pairs a raw integer with a zero-sized
// marker type so indexing into the wrong table is a compile error. Go
// has no zero-sized phantom types, so each table gets its own named
// uint32 (or uint16) wrapper instead - the newtype-per-table emulation
// spec.md §9 calls for.

// invalid32 is the sentinel "no row" value for 32-bit indices.
const invalid32 = ^uint32(0)

// invalid16 is the sentinel "no row" value for 16-bit indices.
const invalid16 = ^uint16(0)

// StringIndex is a byte offset into the `string` name heap.
type StringIndex uint32

// Valid reports whether i names a real offset rather than the sentinel.
func (i StringIndex) Valid() bool { return uint32(i) != invalid32 }

// StringLiteralDataIndex is a byte offset into the string_literal_data heap.
type StringLiteralDataIndex uint32

// TypeDefinitionIndex indexes the type_definitions table. It also
// serves as the index type for nested_types entries, which store other
// type definitions' row numbers.
type TypeDefinitionIndex uint32

// Valid reports whether i names a row rather than the sentinel.
func (i TypeDefinitionIndex) Valid() bool { return uint32(i) != invalid32 }

// MethodIndex indexes the methods table.
type MethodIndex uint32

// Valid reports whether i names a row rather than the sentinel.
func (i MethodIndex) Valid() bool { return uint32(i) != invalid32 }

// FieldIndex indexes the fields table.
type FieldIndex uint32

// Valid reports whether i names a row rather than the sentinel.
func (i FieldIndex) Valid() bool { return uint32(i) != invalid32 }

// ParameterIndex indexes the parameters table.
type ParameterIndex uint32

// Valid reports whether i names a row rather than the sentinel.
func (i ParameterIndex) Valid() bool { return uint32(i) != invalid32 }

// EventIndex indexes the events table.
type EventIndex uint32

// PropertyIndex indexes the properties table.
type PropertyIndex uint32

// ImageIndex indexes the images table.
type ImageIndex uint32

// Valid reports whether i names a row rather than the sentinel.
func (i ImageIndex) Valid() bool { return uint32(i) != invalid32 }

// AssemblyIndex indexes the assemblies table.
type AssemblyIndex uint32

// FieldRefIndex indexes the field_refs table.
type FieldRefIndex uint32

// GenericContainerIndex indexes the generic_containers table.
type GenericContainerIndex uint32

// Valid reports whether i names a row rather than the sentinel.
func (i GenericContainerIndex) Valid() bool { return uint32(i) != invalid32 }

// GenericParameterIndex indexes the generic_parameters table.
type GenericParameterIndex uint32

// Valid reports whether i names a row rather than the sentinel.
func (i GenericParameterIndex) Valid() bool { return uint32(i) != invalid32 }

// GenericParameterConstraintIndex indexes the generic_parameter_constraints
// table. It is 16 bits wide on disk, per spec.md §6.2.
type GenericParameterConstraintIndex uint16

// Valid reports whether i names a row rather than the sentinel.
func (i GenericParameterConstraintIndex) Valid() bool { return uint16(i) != invalid16 }

// ParameterDefaultValueIndex indexes the parameter_default_values table.
type ParameterDefaultValueIndex uint32

// FieldDefaultValueIndex indexes the field_default_values table.
type FieldDefaultValueIndex uint32

// AttributeDataRangeIndex indexes the attribute_data_range table.
type AttributeDataRangeIndex uint32

// Range is a half-open [Start, Start+Count) slice of a table, indexed
// by the table's own index type I. When Count == 0 the range is empty
// regardless of Start, per spec.md §3.1.
type Range[I ~uint16 | ~uint32] struct {
	Start I
	Count uint32
}

// Empty reports whether the range contains no rows.
func (r Range[I]) Empty() bool { return r.Count == 0 }

// End returns the exclusive end index of the range as a raw integer.
func (r Range[I]) End() uint32 { return uint32(r.Start) + r.Count }

// Token is a 32-bit metadata token: high byte is the kind, low 24 bits
// the row id. RIDs are 1-based when used to index a module's native
// method pointer array.
type Token uint32

// Kind returns the token's high-byte kind tag.
func (t Token) Kind() byte { return byte(t >> 24) }

// Rid returns the token's 24-bit row id.
func (t Token) Rid() uint32 { return uint32(t) & 0x00FFFFFF }

// EncodedMethodKind enumerates the seven kinds an EncodedMethodIndex
// can discriminate, per spec.md §3.1.
type EncodedMethodKind uint8

// Encoded method index kinds, in the fixed order spec.md §3.1 names
// them (the order is the discriminant value, kind 0 is "Invalid").
const (
	EncodedMethodInvalid EncodedMethodKind = iota
	EncodedMethodTypeInfo
	EncodedMethodIl2CppType
	EncodedMethodMethodDef
	EncodedMethodFieldInfo
	EncodedMethodStringLiteral
	EncodedMethodMethodRef
	EncodedMethodFieldRva
)

// EncodedMethodIndex decodes a vtable-slot discriminant+payload value:
// ty = (x & 0xE0000000) >> 29, idx = (x & 0x1FFFFFFE) >> 1,
// invalid = x & 1. When the kind is Invalid, the invalid bit
// distinguishes "no data" from "ambiguous method".
type EncodedMethodIndex struct {
	Kind    EncodedMethodKind
	Idx     uint32
	Invalid bool
}

// DecodeEncodedMethodIndex decodes a raw 32-bit encoded method index.
func DecodeEncodedMethodIndex(x uint32) EncodedMethodIndex {
	return EncodedMethodIndex{
		Kind:    EncodedMethodKind((x & 0xE0000000) >> 29),
		Idx:     (x & 0x1FFFFFFE) >> 1,
		Invalid: x&1 != 0,
	}
}

// AmbiguousMethod reports whether an Invalid-kind index signals an
// ambiguous method reference rather than the absence of data.
func (e EncodedMethodIndex) AmbiguousMethod() bool {
	return e.Kind == EncodedMethodInvalid && e.Invalid
}
