// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package il2cpp

import (
	"bytes"
	"encoding/binary"

	"github.com/saferwall/il2cpp/log"
)

// This file implements component F: the global metadata table reader.
// Grounded on dotnet_metadata_tables.go's struct-per-row table-parsing
// idiom, generalised from ECMA-335's coded-index tables to IL2CPP's
// simpler fixed-width record tables.

// sanityMagic is the expected value of the global metadata header's
// first word, per spec.md §3.2.
const sanityMagic = 0xFAB11BAF

// supportedVersion is the single global metadata version this reader
// understands, per spec.md §3.2.
const supportedVersion = 31

// tableNames lists the 31 named tables in their fixed on-disk header
// order, per spec.md §6.2.
var tableNames = []string{
	"string_literal", "string_literal_data", "string", "events", "properties",
	"methods", "parameter_default_values", "field_default_values",
	"field_and_parameter_default_value_data", "field_marshaled_sizes",
	"parameters", "fields", "generic_parameters", "generic_parameter_constraints",
	"generic_containers", "nested_types", "interfaces", "vtable_methods",
	"interface_offsets", "type_definitions", "images", "assemblies",
	"field_refs", "referenced_assemblies", "attribute_data",
	"attribute_data_range", "unresolved_indirect_call_parameter_types",
	"unresolved_indirect_call_parameter_ranges", "windows_runtime_type_names",
	"windows_runtime_strings", "exported_type_definitions",
}

// offsetLength is one {offset, length} header slot.
type offsetLength struct {
	Offset uint32
	Length uint32
}

// GlobalMetadataHeader is the validated fixed header of a
// global-metadata.dat file.
type GlobalMetadataHeader struct {
	Sanity  uint32
	Version uint32
	slots   map[string]offsetLength
}

// GlobalMetadata is the parsed, typed contents of a global-metadata.dat
// file: component F's output.
type GlobalMetadata struct {
	Header GlobalMetadataHeader

	StringLiteral                          []StringLiteralRow
	stringLiteralData                      []byte
	stringHeap                             []byte
	Events                                 []EventRow
	Properties                             []PropertyRow
	Methods                                []MethodRow
	ParameterDefaultValues                 []ParameterDefaultValueRow
	FieldDefaultValues                     []FieldDefaultValueRow
	fieldAndParameterDefaultValueData      []byte
	FieldMarshaledSizes                    []FieldMarshaledSizeRow
	Parameters                             []ParameterRow
	Fields                                 []FieldRow
	GenericParameters                      []GenericParameterRow
	GenericParameterConstraints            []GenericParameterConstraintRow
	GenericContainers                      []GenericContainerRow
	NestedTypes                            []NestedTypeRow
	Interfaces                             []InterfaceRow
	VtableMethods                          []VtableMethodRow
	InterfaceOffsets                       []InterfaceOffsetRow
	TypeDefinitions                        []TypeDefinitionRow
	Images                                 []ImageRow
	Assemblies                             []AssemblyRow
	FieldRefs                              []FieldRefRow
	ReferencedAssemblies                   []AssemblyIndex
	attributeData                          []byte
	AttributeDataRanges                    []CustomAttributeDataRangeRow
	UnresolvedIndirectCallParameterTypes   []int32
	UnresolvedIndirectCallParameterRanges []Range[uint32]
	WindowsRuntimeTypeNames                []WindowsRuntimeTypeNameRow
	windowsRuntimeStrings                  []byte
	ExportedTypeDefinitions                []TypeDefinitionIndex
}

// unpack decodes count fixed-size little-endian records of out's
// element type starting at byte offset, the same bytes.NewReader plus
// binary.Read idiom as the teacher's structUnpack (helper.go).
func unpack(data []byte, offset uint64, out interface{}) error {
	br := bytes.NewReader(data[offset:])
	return binary.Read(br, binary.LittleEndian, out)
}

// parseGlobalMetadata validates the header and decodes all 31 tables.
func parseGlobalMetadata(data []byte, strictVersion bool, logger *log.Helper) (*GlobalMetadata, error) {
	r := newReader(data)

	sanity, err := r.ReadUint32(0)
	if err != nil {
		return nil, err
	}
	if sanity != sanityMagic {
		return nil, ErrSanityCheck
	}
	version, err := r.ReadUint32(4)
	if err != nil {
		return nil, err
	}
	if version != supportedVersion {
		if strictVersion {
			return nil, &VersionError{Actual: version}
		}
		logger.Warnf("global metadata: version %d differs from supported %d, continuing best-effort", version, supportedVersion)
	}

	hdr := GlobalMetadataHeader{Sanity: sanity, Version: version, slots: make(map[string]offsetLength, len(tableNames))}
	off := uint64(8)
	for _, name := range tableNames {
		var ol offsetLength
		if err := unpack(data, off, &ol); err != nil {
			return nil, err
		}
		hdr.slots[name] = ol
		off += 8
	}

	gm := &GlobalMetadata{Header: hdr}

	if err := decodeRecordTable(data, hdr.slots["string_literal"], &gm.StringLiteral); err != nil {
		return nil, err
	}
	gm.stringLiteralData, err = heapSlice(r, hdr.slots["string_literal_data"])
	if err != nil {
		return nil, err
	}
	gm.stringHeap, err = heapSlice(r, hdr.slots["string"])
	if err != nil {
		return nil, err
	}
	if err := decodeRecordTable(data, hdr.slots["events"], &gm.Events); err != nil {
		return nil, err
	}
	if err := decodeRecordTable(data, hdr.slots["properties"], &gm.Properties); err != nil {
		return nil, err
	}
	if err := decodeRecordTable(data, hdr.slots["methods"], &gm.Methods); err != nil {
		return nil, err
	}
	if err := decodeRecordTable(data, hdr.slots["parameter_default_values"], &gm.ParameterDefaultValues); err != nil {
		return nil, err
	}
	if err := decodeRecordTable(data, hdr.slots["field_default_values"], &gm.FieldDefaultValues); err != nil {
		return nil, err
	}
	gm.fieldAndParameterDefaultValueData, err = heapSlice(r, hdr.slots["field_and_parameter_default_value_data"])
	if err != nil {
		return nil, err
	}
	if err := decodeRecordTable(data, hdr.slots["field_marshaled_sizes"], &gm.FieldMarshaledSizes); err != nil {
		return nil, err
	}
	if err := decodeRecordTable(data, hdr.slots["parameters"], &gm.Parameters); err != nil {
		return nil, err
	}
	if err := decodeRecordTable(data, hdr.slots["fields"], &gm.Fields); err != nil {
		return nil, err
	}
	if err := decodeRecordTable(data, hdr.slots["generic_parameters"], &gm.GenericParameters); err != nil {
		return nil, err
	}
	if err := decodeRecordTable(data, hdr.slots["generic_parameter_constraints"], &gm.GenericParameterConstraints); err != nil {
		return nil, err
	}
	if err := decodeRecordTable(data, hdr.slots["generic_containers"], &gm.GenericContainers); err != nil {
		return nil, err
	}
	if err := decodeRecordTable(data, hdr.slots["nested_types"], &gm.NestedTypes); err != nil {
		return nil, err
	}
	if err := decodeRecordTable(data, hdr.slots["interfaces"], &gm.Interfaces); err != nil {
		return nil, err
	}
	if err := decodeRecordTable(data, hdr.slots["vtable_methods"], &gm.VtableMethods); err != nil {
		return nil, err
	}
	if err := decodeRecordTable(data, hdr.slots["interface_offsets"], &gm.InterfaceOffsets); err != nil {
		return nil, err
	}
	if err := decodeRecordTable(data, hdr.slots["type_definitions"], &gm.TypeDefinitions); err != nil {
		return nil, err
	}
	if err := decodeRecordTable(data, hdr.slots["images"], &gm.Images); err != nil {
		return nil, err
	}
	if err := decodeRecordTable(data, hdr.slots["assemblies"], &gm.Assemblies); err != nil {
		return nil, err
	}
	if err := decodeRecordTable(data, hdr.slots["field_refs"], &gm.FieldRefs); err != nil {
		return nil, err
	}
	if err := decodeRecordTable(data, hdr.slots["referenced_assemblies"], &gm.ReferencedAssemblies); err != nil {
		return nil, err
	}
	gm.attributeData, err = heapSlice(r, hdr.slots["attribute_data"])
	if err != nil {
		return nil, err
	}
	if err := decodeRecordTable(data, hdr.slots["attribute_data_range"], &gm.AttributeDataRanges); err != nil {
		return nil, err
	}
	if err := decodeRecordTable(data, hdr.slots["unresolved_indirect_call_parameter_types"], &gm.UnresolvedIndirectCallParameterTypes); err != nil {
		return nil, err
	}
	if err := decodeRecordTable(data, hdr.slots["unresolved_indirect_call_parameter_ranges"], &gm.UnresolvedIndirectCallParameterRanges); err != nil {
		return nil, err
	}
	if err := decodeRecordTable(data, hdr.slots["windows_runtime_type_names"], &gm.WindowsRuntimeTypeNames); err != nil {
		return nil, err
	}
	gm.windowsRuntimeStrings, err = heapSlice(r, hdr.slots["windows_runtime_strings"])
	if err != nil {
		return nil, err
	}
	if err := decodeRecordTable(data, hdr.slots["exported_type_definitions"], &gm.ExportedTypeDefinitions); err != nil {
		return nil, err
	}

	return gm, nil
}

// decodeRecordTable decodes ol.Length/sizeof(T) fixed-size records of
// type T into *out, or leaves *out nil when ol.Length == 0.
func decodeRecordTable[T any](data []byte, ol offsetLength, out *[]T) error {
	if ol.Length == 0 {
		return nil
	}
	r := newReader(data)
	slice, err := r.Slice(uint64(ol.Offset), uint64(ol.Length))
	if err != nil {
		return err
	}
	var zero T
	recordSize := binary.Size(zero)
	if recordSize <= 0 {
		return ErrOutsideBoundary
	}
	count := ol.Length / uint32(recordSize)
	rows := make([]T, count)
	if err := binary.Read(bytes.NewReader(slice), binary.LittleEndian, rows); err != nil {
		return err
	}
	*out = rows
	return nil
}

// heapSlice returns the borrowed byte range of a string/byte heap table.
func heapSlice(r reader, ol offsetLength) ([]byte, error) {
	if ol.Length == 0 {
		return nil, nil
	}
	return r.Slice(uint64(ol.Offset), uint64(ol.Length))
}

// String returns the NUL-terminated UTF-8 string at byte offset idx in
// the metadata name heap.
func (gm *GlobalMetadata) String(idx StringIndex) (string, error) {
	if !idx.Valid() {
		return "", ErrInvalidIndex
	}
	return newReader(gm.stringHeap).CString(uint64(idx))
}

// StringLiteralData returns the raw bytes of a string literal.
func (gm *GlobalMetadata) StringLiteralData(row StringLiteralRow) ([]byte, error) {
	return newReader(gm.stringLiteralData).Slice(uint64(row.Data), uint64(row.Length))
}

// WindowsRuntimeString returns the NUL-terminated UTF-8 string at byte
// offset idx in the Windows Runtime string heap.
func (gm *GlobalMetadata) WindowsRuntimeString(idx StringIndex) (string, error) {
	return newReader(gm.windowsRuntimeStrings).CString(uint64(idx))
}

// AttributeData returns the raw, undecoded custom-attribute bytes
// starting at a CustomAttributeDataRangeRow's offset and ending at the
// next range's offset (or the heap's end for the last range). The
// internal schema of this blob is not decoded, per spec.md §9.
func (gm *GlobalMetadata) AttributeData(i AttributeDataRangeIndex) ([]byte, error) {
	idx := int(i)
	if idx < 0 || idx >= len(gm.AttributeDataRanges) {
		return nil, ErrInvalidIndex
	}
	start := gm.AttributeDataRanges[idx].StartOffset
	end := uint32(len(gm.attributeData))
	if idx+1 < len(gm.AttributeDataRanges) {
		end = gm.AttributeDataRanges[idx+1].StartOffset
	}
	if end < start {
		return nil, ErrOutsideBoundary
	}
	return newReader(gm.attributeData).Slice(uint64(start), uint64(end-start))
}
