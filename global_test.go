// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package il2cpp

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/saferwall/il2cpp/log"
)

// buildGlobalMetadata assembles a synthetic global-metadata.dat buffer
// with one populated type_definitions row and a "string" heap, leaving
// every other table empty (offset/length both zero), enough to
// exercise the header, the table dispatch loop and the name accessors.
func buildGlobalMetadata(t *testing.T) ([]byte, TypeDefinitionRow) {
	t.Helper()

	stringHeap := []byte("Widget\x00NS.Sub\x00")
	nameOffset := uint32(0)
	namespaceOffset := uint32(7) // past "Widget\x00"

	row := TypeDefinitionRow{
		NameIndex:      StringIndex(nameOffset),
		NamespaceIndex: StringIndex(namespaceOffset),
		ByvalTypeIndex: 0,
		DeclaringType:  TypeDefinitionIndex(invalid32),
		Parent:         -1,
		ElementType:    -1,
	}
	var rowBuf bytes.Buffer
	if err := binary.Write(&rowBuf, binary.LittleEndian, row); err != nil {
		t.Fatalf("encode TypeDefinitionRow: %v", err)
	}

	const headerSize = 8
	const slotsSize = 31 * 8
	dataStart := uint32(headerSize + slotsSize)

	stringOffset := dataStart
	typeDefOffset := stringOffset + uint32(len(stringHeap))

	slots := map[string]offsetLength{
		"string":           {Offset: stringOffset, Length: uint32(len(stringHeap))},
		"type_definitions": {Offset: typeDefOffset, Length: uint32(rowBuf.Len())},
	}

	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, uint32(sanityMagic))
	binary.Write(&buf, binary.LittleEndian, uint32(supportedVersion))
	for _, name := range tableNames {
		ol := slots[name] // zero value when not set above
		binary.Write(&buf, binary.LittleEndian, ol.Offset)
		binary.Write(&buf, binary.LittleEndian, ol.Length)
	}
	buf.Write(stringHeap)
	buf.Write(rowBuf.Bytes())

	return buf.Bytes(), row
}

func TestParseGlobalMetadataHeaderAndTables(t *testing.T) {
	data, _ := buildGlobalMetadata(t)

	gm, err := parseGlobalMetadata(data, true, log.NewHelper(nil))
	if err != nil {
		t.Fatalf("parseGlobalMetadata: %v", err)
	}
	if gm.Header.Sanity != sanityMagic {
		t.Errorf("Sanity = %#x, want %#x", gm.Header.Sanity, sanityMagic)
	}
	if gm.Header.Version != supportedVersion {
		t.Errorf("Version = %d, want %d", gm.Header.Version, supportedVersion)
	}
	if len(gm.TypeDefinitions) != 1 {
		t.Fatalf("len(TypeDefinitions) = %d, want 1", len(gm.TypeDefinitions))
	}
	if len(gm.Methods) != 0 {
		t.Errorf("len(Methods) = %d, want 0 for an empty table slot", len(gm.Methods))
	}
}

func TestParseGlobalMetadataBadSanity(t *testing.T) {
	data, _ := buildGlobalMetadata(t)
	data[0] = 0x00
	if _, err := parseGlobalMetadata(data, true, log.NewHelper(nil)); !errors.Is(err, ErrSanityCheck) {
		t.Errorf("parseGlobalMetadata with corrupted sanity = %v, want ErrSanityCheck", err)
	}
}

func TestParseGlobalMetadataVersionMismatch(t *testing.T) {
	data, _ := buildGlobalMetadata(t)
	binary.LittleEndian.PutUint32(data[4:], 99)

	if _, err := parseGlobalMetadata(data, true, log.NewHelper(nil)); err == nil {
		t.Error("expected a VersionError under strict version checking")
	} else {
		var verr *VersionError
		if !errors.As(err, &verr) {
			t.Errorf("error = %v, want *VersionError", err)
		}
	}

	gm, err := parseGlobalMetadata(data, false, log.NewHelper(nil))
	if err != nil {
		t.Fatalf("non-strict parseGlobalMetadata: %v", err)
	}
	if gm.Header.Version != 99 {
		t.Errorf("Version = %d, want 99", gm.Header.Version)
	}
}

func TestGlobalMetadataNameAccessors(t *testing.T) {
	data, _ := buildGlobalMetadata(t)
	gm, err := parseGlobalMetadata(data, true, log.NewHelper(nil))
	if err != nil {
		t.Fatalf("parseGlobalMetadata: %v", err)
	}
	row := gm.TypeDefinitions[0]

	name, err := gm.String(row.NameIndex)
	if err != nil || name != "Widget" {
		t.Errorf("String(NameIndex) = %q, %v, want \"Widget\", nil", name, err)
	}
	ns, err := gm.String(row.NamespaceIndex)
	if err != nil || ns != "NS.Sub" {
		t.Errorf("String(NamespaceIndex) = %q, %v, want \"NS.Sub\", nil", ns, err)
	}
}

// TestParseGlobalMetadataAssemblyRow exercises the assemblies table's
// 64-byte row (16 B of AssemblyRow header fields plus the 48 B embedded
// AssemblyNameRow), guarding against the row's field order/width drifting
// out of sync with decodeRecordTable's binary.Read-based decoding.
func TestParseGlobalMetadataAssemblyRow(t *testing.T) {
	assembly := AssemblyRow{
		Token: Token(0x23000001),
		Name: AssemblyNameRow{
			Culture:   StringIndex(invalid32),
			PublicKey: StringIndex(invalid32),
			HashAlg:   0x8004,
			HashLen:   20,
			Major:     1,
			Minor:     2,
			Build:     3,
			Revision:  4,
		},
	}
	copy(assembly.Name.PublicKeyToken[:], []byte{0xDE, 0xAD, 0xBE, 0xEF, 0x01, 0x02, 0x03, 0x04})

	var rowBuf bytes.Buffer
	if err := binary.Write(&rowBuf, binary.LittleEndian, assembly); err != nil {
		t.Fatalf("encode AssemblyRow: %v", err)
	}
	if rowBuf.Len() != 64 {
		t.Fatalf("encoded AssemblyRow length = %d, want 64 (16 B header + 48 B AssemblyNameRow)", rowBuf.Len())
	}

	const headerSize = 8
	const slotsSize = 31 * 8
	dataStart := uint32(headerSize + slotsSize)

	slots := map[string]offsetLength{
		"assemblies": {Offset: dataStart, Length: uint32(rowBuf.Len())},
	}

	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, uint32(sanityMagic))
	binary.Write(&buf, binary.LittleEndian, uint32(supportedVersion))
	for _, name := range tableNames {
		ol := slots[name] // zero value when not set above
		binary.Write(&buf, binary.LittleEndian, ol.Offset)
		binary.Write(&buf, binary.LittleEndian, ol.Length)
	}
	buf.Write(rowBuf.Bytes())

	gm, err := parseGlobalMetadata(buf.Bytes(), true, log.NewHelper(nil))
	if err != nil {
		t.Fatalf("parseGlobalMetadata: %v", err)
	}
	if len(gm.Assemblies) != 1 {
		t.Fatalf("len(Assemblies) = %d, want 1", len(gm.Assemblies))
	}
	got := gm.Assemblies[0]
	if got.Token != Token(0x23000001) {
		t.Errorf("Token = %#x, want 0x23000001", got.Token)
	}
	if got.Name.HashAlg != 0x8004 || got.Name.HashLen != 20 {
		t.Errorf("Name.HashAlg/HashLen = %#x/%d, want 0x8004/20", got.Name.HashAlg, got.Name.HashLen)
	}
	if got.Name.Major != 1 || got.Name.Minor != 2 || got.Name.Build != 3 || got.Name.Revision != 4 {
		t.Errorf("Name version = %d.%d.%d.%d, want 1.2.3.4", got.Name.Major, got.Name.Minor, got.Name.Build, got.Name.Revision)
	}
	wantToken := [8]byte{0xDE, 0xAD, 0xBE, 0xEF, 0x01, 0x02, 0x03, 0x04}
	if got.Name.PublicKeyToken != wantToken {
		t.Errorf("Name.PublicKeyToken = %v, want %v", got.Name.PublicKeyToken, wantToken)
	}
}

func TestGlobalMetadataStringInvalidIndex(t *testing.T) {
	data, _ := buildGlobalMetadata(t)
	gm, err := parseGlobalMetadata(data, true, log.NewHelper(nil))
	if err != nil {
		t.Fatalf("parseGlobalMetadata: %v", err)
	}
	if _, err := gm.String(StringIndex(invalid32)); !errors.Is(err, ErrInvalidIndex) {
		t.Errorf("String(sentinel) = %v, want ErrInvalidIndex", err)
	}
}
