// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package il2cpp

// This file defines the fixed-size record layouts of component F's
// global metadata tables, per spec.md §3.2/§6.2. Field order and
// widths follow the published schema; struct tags are unnecessary
// because every field is read in declaration order by decodeRecordTable
// (global.go), the same bytes.NewReader+binary.Read idiom the teacher's
// structUnpack (helper.go) uses for PE structures.

// StringLiteralRow is one row of the string_literal table: a length
// and a byte offset into the string_literal_data heap.
type StringLiteralRow struct {
	Length uint32
	Data   StringLiteralDataIndex
}

// EventRow is one row of the events table.
type EventRow struct {
	Name   StringIndex
	Type   int32
	Add    MethodIndex
	Remove MethodIndex
	Raise  MethodIndex
	Token  Token
}

// PropertyRow is one row of the properties table.
type PropertyRow struct {
	Name  StringIndex
	Get   MethodIndex
	Set   MethodIndex
	Attrs uint32
	Token Token
}

// MethodRow is one row of the methods table (spec.md §6.2).
type MethodRow struct {
	Name                 StringIndex
	DeclaringType        TypeDefinitionIndex
	ReturnType           int32
	ReturnParameterToken Token
	ParameterStart       ParameterIndex
	GenericContainer     GenericContainerIndex
	Token                Token
	Flags                uint16
	IFlags               uint16
	Slot                 uint16
	ParameterCount       uint16
}

// Parameters returns the half-open range of this method's parameters.
func (m MethodRow) Parameters() Range[ParameterIndex] {
	return Range[ParameterIndex]{Start: m.ParameterStart, Count: uint32(m.ParameterCount)}
}

// ParameterDefaultValueRow is one row of the parameter_default_values table.
type ParameterDefaultValueRow struct {
	Parameter ParameterIndex
	Type      int32
	DataIndex int32 // offset into field_and_parameter_default_value_data, -1 if absent
}

// FieldDefaultValueRow is one row of the field_default_values table.
type FieldDefaultValueRow struct {
	Field     FieldIndex
	Type      int32
	DataIndex int32
}

// FieldMarshaledSizeRow is one row of the field_marshaled_sizes table.
type FieldMarshaledSizeRow struct {
	Field FieldIndex
	Type  int32
	Size  int32
}

// ParameterRow is one row of the parameters table.
type ParameterRow struct {
	Name  StringIndex
	Type  int32
	Token Token
}

// FieldRow is one row of the fields table.
type FieldRow struct {
	Name  StringIndex
	Type  int32
	Token Token
}

// GenericParameterRow is one row of the generic_parameters table
// (16 B on disk: two u32 fields and four u16 fields).
type GenericParameterRow struct {
	Owner            GenericContainerIndex
	Name             StringIndex
	ConstraintsStart GenericParameterConstraintIndex
	ConstraintsCount uint16
	Num              uint16
	Flags            uint16
}

// Constraints returns the half-open range of this parameter's constraints.
func (g GenericParameterRow) Constraints() Range[GenericParameterConstraintIndex] {
	return Range[GenericParameterConstraintIndex]{Start: g.ConstraintsStart, Count: uint32(g.ConstraintsCount)}
}

// GenericParameterConstraintRow is one row of the
// generic_parameter_constraints table: a single runtime type index.
// The "(width 16)" spec.md §3.2 calls out is the 16-bit index type
// used to reference this table, not the row's own byte width.
type GenericParameterConstraintRow struct {
	ConstraintType int32
}

// GenericContainerRow is one row of the generic_containers table
// (16 B, per spec.md §6.2).
type GenericContainerRow struct {
	OwnerIndex              uint32 // type index or method index, per IsMethod
	TypeArgc                uint32
	IsMethod                uint32
	GenericParameterStart   GenericParameterIndex
}

// GenericParameters returns this container's generic parameter range.
func (g GenericContainerRow) GenericParameters() Range[GenericParameterIndex] {
	return Range[GenericParameterIndex]{Start: g.GenericParameterStart, Count: g.TypeArgc}
}

// NestedTypeRow is one entry of the nested_types table: a type
// definition index owned by some other type definition's range.
type NestedTypeRow struct {
	Type TypeDefinitionIndex
}

// InterfaceRow is one entry of the interfaces table: a runtime type
// index for an implemented interface.
type InterfaceRow struct {
	Type int32
}

// VtableMethodRow is one entry of the vtable_methods table: a raw
// encoded method index, decoded via DecodeEncodedMethodIndex.
type VtableMethodRow struct {
	Raw uint32
}

// Decode decodes this row's encoded method index.
func (v VtableMethodRow) Decode() EncodedMethodIndex { return DecodeEncodedMethodIndex(v.Raw) }

// InterfaceOffsetRow is one row of the interface_offsets table.
type InterfaceOffsetRow struct {
	InterfaceType int32
	Offset        int32
}

// TypeDefinitionRow is one row of the type_definitions table
// (spec.md §6.2/§6.3): 16 u32 index/count/start fields, 8 u16 counts,
// a bitfield and a token.
type TypeDefinitionRow struct {
	NameIndex        StringIndex
	NamespaceIndex   StringIndex
	ByvalTypeIndex   int32
	DeclaringType    TypeDefinitionIndex
	Parent           int32
	ElementType      int32
	GenericContainer GenericContainerIndex
	Flags            uint32

	FieldStart            FieldIndex
	MethodStart           MethodIndex
	EventStart            EventIndex
	PropertyStart         PropertyIndex
	NestedTypesStart      uint32
	InterfacesStart       uint32
	VtableMethodsStart    uint32
	InterfaceOffsetsStart uint32

	MethodCount           uint16
	PropertyCount         uint16
	FieldCount            uint16
	EventCount            uint16
	NestedTypeCount       uint16
	VtableMethodCount     uint16
	InterfaceCount        uint16
	InterfaceOffsetsCount uint16

	Bitfield uint32
	Token    Token
}

// Type definition bitfield bits, per spec.md §6.2.
const (
	tdfValueType              = 1 << 0
	tdfEnumType                = 1 << 1
	tdfHasFinalize             = 1 << 2
	tdfHasCctor                = 1 << 3
	tdfIsBlittable             = 1 << 4
	tdfIsImportOrWindowsRuntime = 1 << 5
)

// IsValueType reports whether this type definition describes a value type.
func (t TypeDefinitionRow) IsValueType() bool { return t.Bitfield&tdfValueType != 0 }

// IsEnumType reports whether this type definition describes an enum.
func (t TypeDefinitionRow) IsEnumType() bool { return t.Bitfield&tdfEnumType != 0 }

// HasFinalizer reports whether this type overrides Object.Finalize.
func (t TypeDefinitionRow) HasFinalizer() bool { return t.Bitfield&tdfHasFinalize != 0 }

// HasStaticConstructor reports whether this type has a static constructor.
func (t TypeDefinitionRow) HasStaticConstructor() bool { return t.Bitfield&tdfHasCctor != 0 }

// Fields returns this type definition's field range.
func (t TypeDefinitionRow) Fields() Range[FieldIndex] {
	return Range[FieldIndex]{Start: t.FieldStart, Count: uint32(t.FieldCount)}
}

// Methods returns this type definition's method range.
func (t TypeDefinitionRow) Methods() Range[MethodIndex] {
	return Range[MethodIndex]{Start: t.MethodStart, Count: uint32(t.MethodCount)}
}

// Events returns this type definition's event range.
func (t TypeDefinitionRow) Events() Range[EventIndex] {
	return Range[EventIndex]{Start: t.EventStart, Count: uint32(t.EventCount)}
}

// Properties returns this type definition's property range.
func (t TypeDefinitionRow) Properties() Range[PropertyIndex] {
	return Range[PropertyIndex]{Start: t.PropertyStart, Count: uint32(t.PropertyCount)}
}

// ImageRow is one row of the images table.
type ImageRow struct {
	Name                 StringIndex
	Assembly             AssemblyIndex
	TypeStart            TypeDefinitionIndex
	TypeCount            uint32
	ExportedTypeStart    uint32
	ExportedTypeCount    uint32
	EntryPointIndex      MethodIndex
	Token                Token
	CustomAttributeStart AttributeDataRangeIndex
	CustomAttributeCount uint32
}

// TypeDefinitions returns this image's owned type definition range.
func (i ImageRow) TypeDefinitions() Range[TypeDefinitionIndex] {
	return Range[TypeDefinitionIndex]{Start: i.TypeStart, Count: i.TypeCount}
}

// AssemblyNameRow is the embedded assembly name record (48 B on disk,
// per spec.md §6.2): three string indices, seven u32 fields and an
// 8-byte public key token.
type AssemblyNameRow struct {
	Name           StringIndex
	Culture        StringIndex
	PublicKey      StringIndex
	HashAlg        uint32
	HashLen        uint32
	Flags          uint32
	Major          uint32
	Minor          uint32
	Build          uint32
	Revision       uint32
	PublicKeyToken [8]byte
}

// AssemblyRow is one row of the assemblies table.
type AssemblyRow struct {
	Image                   ImageIndex
	Token                   Token
	ReferencedAssemblyStart uint32
	ReferencedAssemblyCount uint32
	Name                    AssemblyNameRow
}

// ReferencedAssemblies returns this assembly's referenced-assembly range.
func (a AssemblyRow) ReferencedAssemblies() Range[AssemblyIndex] {
	return Range[AssemblyIndex]{Start: AssemblyIndex(a.ReferencedAssemblyStart), Count: a.ReferencedAssemblyCount}
}

// FieldRefRow is one row of the field_refs table: a field reached
// through a (possibly generic-instantiated) type.
type FieldRefRow struct {
	Type  int32
	Field FieldIndex
}

// CustomAttributeDataRangeRow is one row of the attribute_data_range
// table: the token the attribute data was attached to and the byte
// offset into the opaque attribute_data heap where it starts.
type CustomAttributeDataRangeRow struct {
	Token       Token
	StartOffset uint32
}

// WindowsRuntimeTypeNameRow pairs a windows_runtime_strings offset
// with the runtime type index it names.
type WindowsRuntimeTypeNameRow struct {
	Name StringIndex // offset into windows_runtime_strings
	Type int32
}
