// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package il2cpp

import (
	"github.com/saferwall/il2cpp/log"
)

// This file implements component E: the runtime graph reader. It
// reads pointer-linked structures out of the relocation-applied ELF
// bytes and rebuilds them as arrays with numeric cross-indices.
// Grounded on original_source/src/runtime_metadata/elf.rs's
// Il2CppCodeRegistration::read/Il2CppMetadataRegistration::read, which
// is the newest version in the reference corpus (it alone applies
// relocations and produces the array_types synthetic table).

const sentinelIndex = -1

// cur is a sequential little-endian cursor over virtual addresses,
// used the same way the original source's Cursor<&[u8]> is: fields are
// read in struct-declaration order, advancing automatically, rather
// than via hardcoded byte offsets.
type cur struct {
	e   *elfView
	r   reader
	pos uint64 // current virtual address
}

func newCur(e *elfView, vaddr uint64) cur {
	return cur{e: e, r: e.relocatedReader(), pos: vaddr}
}

func (c *cur) u64() (uint64, error) {
	off, err := c.e.vaddrToOffset(c.pos)
	if err != nil {
		return 0, err
	}
	v, err := c.r.ReadUint64(off)
	if err != nil {
		return 0, err
	}
	c.pos += 8
	return v, nil
}

func (c *cur) skip(n int) { c.pos += uint64(n) }

// countedArray reads a {count, ptr} pair and returns both; the pointer
// is resolved to a list of vaddr-sized entries by the caller.
func (c *cur) countedArray() (count uint64, ptr uint64, err error) {
	count, err = c.u64()
	if err != nil {
		return 0, 0, err
	}
	ptr, err = c.u64()
	return count, ptr, err
}

// readAddrs reads count 8-byte virtual addresses starting at file
// offset ptr (after vaddr conversion).
func (e *elfView) readAddrs(ptr uint64, count uint64) ([]uint64, error) {
	if count == 0 {
		return nil, nil
	}
	off, err := e.vaddrToOffset(ptr)
	if err != nil {
		return nil, err
	}
	r := e.relocatedReader()
	out := make([]uint64, count)
	for i := range out {
		v, err := r.ReadUint64(off + uint64(i)*8)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// readAddrsNullable behaves like readAddrs, but treats a pointer
// inside .bss as "not yet filled in by the loader" and returns count
// zero-valued entries instead of reading, per spec.md §4.5's
// "Nullable counted array" semantics.
func (e *elfView) readAddrsNullable(ptr uint64, count uint64) ([]uint64, error) {
	if count == 0 {
		return nil, nil
	}
	if e.addrInBSS(ptr) {
		return make([]uint64, count), nil
	}
	return e.readAddrs(ptr, count)
}

// ---- Types --------------------------------------------------------

// TypeDataKind discriminates how a Type's Index field is resolved,
// per spec.md §3.3.
type TypeDataKind int

// Kinds of a Type's data discriminant.
const (
	DataTypeDefinition TypeDataKind = iota // Index -> TypeDefinitionIndex
	DataType                               // Index -> index into Types
	DataGenericParameter                   // Index -> GenericParameterIndex
	DataArrayType                          // Index -> index into ArrayTypes
	DataGenericClass                       // Index -> index into GenericClasses
)

// TypeKind is the runtime type kind byte, per spec.md §6.3.
type TypeKind byte

// Recognised runtime type kinds.
const (
	TypeEnd         TypeKind = 0x00
	TypeVoid        TypeKind = 0x01
	TypeBoolean     TypeKind = 0x02
	TypeChar        TypeKind = 0x03
	TypeI1          TypeKind = 0x04
	TypeU1          TypeKind = 0x05
	TypeI2          TypeKind = 0x06
	TypeU2          TypeKind = 0x07
	TypeI4          TypeKind = 0x08
	TypeU4          TypeKind = 0x09
	TypeI8          TypeKind = 0x0a
	TypeU8          TypeKind = 0x0b
	TypeR4          TypeKind = 0x0c
	TypeR8          TypeKind = 0x0d
	TypeString      TypeKind = 0x0e
	TypePtr         TypeKind = 0x0f
	TypeByref       TypeKind = 0x10
	TypeValuetype   TypeKind = 0x11
	TypeClass       TypeKind = 0x12
	TypeVar         TypeKind = 0x13
	TypeArray       TypeKind = 0x14
	TypeGenericinst TypeKind = 0x15
	TypeTypedbyref  TypeKind = 0x16
	TypeI           TypeKind = 0x18
	TypeU           TypeKind = 0x19
	TypeFnptr       TypeKind = 0x1b
	TypeObject      TypeKind = 0x1c
	TypeSzarray     TypeKind = 0x1d
	TypeMvar        TypeKind = 0x1e
	TypeCmodReqd    TypeKind = 0x1f
	TypeCmodOpt     TypeKind = 0x20
	TypeInternal    TypeKind = 0x21
	TypeModifier    TypeKind = 0x40
	TypeSentinel    TypeKind = 0x41
	TypePinned      TypeKind = 0x45
	TypeEnum        TypeKind = 0x55
)

func (k TypeKind) valid() bool {
	switch k {
	case TypeEnd, TypeVoid, TypeBoolean, TypeChar, TypeI1, TypeU1, TypeI2, TypeU2,
		TypeI4, TypeU4, TypeI8, TypeU8, TypeR4, TypeR8, TypeString, TypePtr,
		TypeByref, TypeValuetype, TypeClass, TypeVar, TypeArray, TypeGenericinst,
		TypeTypedbyref, TypeI, TypeU, TypeFnptr, TypeObject, TypeSzarray, TypeMvar,
		TypeCmodReqd, TypeCmodOpt, TypeInternal, TypeModifier, TypeSentinel,
		TypePinned, TypeEnum:
		return true
	default:
		return false
	}
}

// Type is a runtime type record, per spec.md §3.3/§4.5.
type Type struct {
	Attrs     uint16
	Kind      TypeKind
	Byref     bool
	Pinned    bool
	ValueType bool
	DataKind  TypeDataKind
	Index     int32
}

// Type record bitfield bits, per spec.md §4.5: bit 5 is byref, bit 6
// pinned and bit 7 valuetype.
const (
	typeBitByref     = 1 << 5
	typeBitPinned    = 1 << 6
	typeBitValueType = 1 << 7
)

// GenericContext carries two optional indices into GenericInsts.
type GenericContext struct {
	ClassInst  int32 // sentinelIndex if absent
	MethodInst int32 // sentinelIndex if absent
}

// GenericClass is (type index, generic context), per spec.md §3.3.
type GenericClass struct {
	TypeIndex int32
	Context   GenericContext
}

// GenericInst is a concrete instantiation: a list of type indices.
type GenericInst struct {
	Types []int32
}

// ArrayType is a synthetic entity (spec.md §9 "lazy array-type
// table"): element type index, rank, and per-dimension sizes/bounds.
type ArrayType struct {
	ElementTypeIndex int32
	Rank             uint8
	Sizes            []int32
	LowerBounds      []int32
}

// MethodSpec is (method definition index, class inst index, method
// inst index); either instantiation index may be sentinelIndex.
type MethodSpec struct {
	MethodDefinition int32
	ClassInst        int32
	MethodInst       int32
}

// GenericMethodIndices is the (method pointer, invoker, adjustor
// thunk) triple referenced by a GenericMethodFunctionsDefinitions row.
type GenericMethodIndices struct {
	MethodIndex        int32
	InvokerIndex       int32
	AdjustorThunkIndex int32
}

// GenericMethodFunctionsDefinitions pairs a method spec with its
// resolved native function indices.
type GenericMethodFunctionsDefinitions struct {
	GenericMethodIndex int32
	Indices            GenericMethodIndices
}

// TypeDefinitionSizes are four compiler-computed byte sizes.
type TypeDefinitionSizes struct {
	InstanceSize          int32
	NativeSize             int32
	StaticFieldsSize       int32
	ThreadStaticFieldsSize int32
}

// RGCTXDataType discriminates how an RGCTXDefinition's Data field
// resolves, per SPEC_FULL.md §3's supplemented RGCTX decoding.
type RGCTXDataType uint32

// Kinds an RGCTX definition's data may resolve to.
const (
	RGCTXDataTypeKind RGCTXDataType = iota
	RGCTXDataClass
	RGCTXDataMethod
	RGCTXDataArray
)

// RGCTXDefinition is one (discriminant, pointer) pair; the pointer's
// interpretation depends on Type.
type RGCTXDefinition struct {
	Type RGCTXDataType
	Data uint64
}

// TokenRangePair associates a metadata token with a half-open range
// into a module's RGCTXDefinitions.
type TokenRangePair struct {
	Token Token
	Start uint32
	Count uint32
}

// TokenAdjustorThunkPair associates a metadata token with an adjustor
// thunk's virtual address.
type TokenAdjustorThunkPair struct {
	Token         Token
	AdjustorThunk uint64
}

// CodeGenModule is one .dll module's parallel native-code arrays, per
// spec.md §3.3.
type CodeGenModule struct {
	Name             string
	MethodPointers   []uint64
	AdjustorThunks   []TokenAdjustorThunkPair
	InvokerIndices   []int32
	RGCTXRanges      []TokenRangePair
	RGCTXDefinitions []RGCTXDefinition
}

// CodeRegistration is the code-registration root, per spec.md §3.3.
// unresolved_instance_call_pointers and unresolved_static_call_pointers
// are read (to keep the cursor aligned) and discarded, matching
// original_source/src/runtime_metadata/elf.rs's own _-prefixed locals;
// they carry no table cross-reference this reader can resolve.
type CodeRegistration struct {
	ReversePInvokeWrappers         []uint64
	GenericMethodPointers          []uint64
	GenericAdjustorThunks          []uint64
	InvokerPointers                []uint64
	UnresolvedIndirectCallPointers []uint64
	Modules                        []CodeGenModule
}

// MetadataRegistration is the metadata-registration root, per
// spec.md §3.3.
type MetadataRegistration struct {
	GenericClasses      []GenericClass
	GenericInsts        []GenericInst
	GenericMethodTable  []GenericMethodFunctionsDefinitions
	Types               []Type
	ArrayTypes          []ArrayType
	MethodSpecs         []MethodSpec
	FieldOffsets        [][]int32 // per type definition, parallel to GlobalMetadata.TypeDefinitions
	TypeDefinitionSizes []TypeDefinitionSizes
}

// RuntimeMetadata is component E's output.
type RuntimeMetadata struct {
	CodeRegistration      CodeRegistration
	MetadataRegistration  MetadataRegistration
}

// readRuntimeMetadata locates and reads both runtime-metadata roots,
// per spec.md §4.4/§4.5.
func readRuntimeMetadata(e *elfView, gm *GlobalMetadata, logger *log.Helper) (*RuntimeMetadata, error) {
	crAddr, mrAddr, err := findRegistration(e)
	if err != nil {
		return nil, err
	}

	cr, err := readCodeRegistration(e, crAddr, logger)
	if err != nil {
		return nil, err
	}
	mr, err := readMetadataRegistration(e, mrAddr, gm)
	if err != nil {
		return nil, err
	}
	return &RuntimeMetadata{CodeRegistration: *cr, MetadataRegistration: *mr}, nil
}

// readCodeRegistration implements spec.md §4.5's CodeRegistration algorithm.
func readCodeRegistration(e *elfView, addr uint64, logger *log.Helper) (*CodeRegistration, error) {
	c := newCur(e, addr)
	cr := &CodeRegistration{}

	readU64Array := func() ([]uint64, error) {
		count, ptr, err := c.countedArray()
		if err != nil {
			return nil, err
		}
		return e.readAddrs(ptr, count)
	}

	var err error
	if cr.ReversePInvokeWrappers, err = readU64Array(); err != nil {
		return nil, err
	}

	genericMethodCount, genericMethodPtr, err := c.countedArray()
	if err != nil {
		return nil, err
	}
	if cr.GenericMethodPointers, err = e.readAddrs(genericMethodPtr, genericMethodCount); err != nil {
		return nil, err
	}
	adjustorPtr, err := c.u64()
	if err != nil {
		return nil, err
	}
	if cr.GenericAdjustorThunks, err = e.readAddrs(adjustorPtr, genericMethodCount); err != nil {
		return nil, err
	}

	if cr.InvokerPointers, err = readU64Array(); err != nil {
		return nil, err
	}
	if cr.UnresolvedIndirectCallPointers, err = readU64Array(); err != nil {
		return nil, err
	}

	// unresolved_instance_call_pointers, unresolved_static_call_pointers:
	// each a single 8-byte pointer, no length prefix. Read and discard,
	// per SPEC_FULL.md §3's supplemented CodeRegistration fields.
	if _, err = c.u64(); err != nil {
		return nil, err
	}
	if _, err = c.u64(); err != nil {
		return nil, err
	}

	// interop_data, windows_runtime_factory_table: full counted-array
	// reads, likewise read and discarded.
	if _, err = readU64Array(); err != nil {
		return nil, err
	}
	if _, err = readU64Array(); err != nil {
		return nil, err
	}

	moduleCount, modulePtr, err := c.countedArray()
	if err != nil {
		return nil, err
	}
	moduleAddrs, err := e.readAddrs(modulePtr, moduleCount)
	if err != nil {
		return nil, err
	}
	cr.Modules = make([]CodeGenModule, 0, len(moduleAddrs))
	for _, ma := range moduleAddrs {
		mod, err := readCodeGenModule(e, ma)
		if err != nil {
			return nil, err
		}
		logger.Debugf("runtime metadata: discovered code-gen module %q (%d methods)", mod.Name, len(mod.MethodPointers))
		cr.Modules = append(cr.Modules, *mod)
	}
	return cr, nil
}

// readCodeGenModule implements spec.md §4.5's CodeGenModule algorithm.
func readCodeGenModule(e *elfView, addr uint64) (*CodeGenModule, error) {
	c := newCur(e, addr)
	m := &CodeGenModule{}

	namePtr, err := c.u64()
	if err != nil {
		return nil, err
	}
	off, err := e.vaddrToOffset(namePtr)
	if err != nil {
		return nil, err
	}
	if m.Name, err = e.originalReader().CString(off); err != nil {
		return nil, err
	}

	methodCount, methodPtr, err := c.countedArray()
	if err != nil {
		return nil, err
	}
	if m.MethodPointers, err = e.readAddrsNullable(methodPtr, methodCount); err != nil {
		return nil, err
	}

	adjustorCount, adjustorPtr, err := c.countedArray()
	if err != nil {
		return nil, err
	}
	if adjustorCount > 0 {
		adjOff, err := e.vaddrToOffset(adjustorPtr)
		if err != nil {
			return nil, err
		}
		r := e.relocatedReader()
		m.AdjustorThunks = make([]TokenAdjustorThunkPair, adjustorCount)
		for i := range m.AdjustorThunks {
			base := adjOff + uint64(i)*16 // token (u32, padded to 8) + adjustor_thunk (u64)
			tok, err := r.ReadUint32(base)
			if err != nil {
				return nil, err
			}
			thunk, err := r.ReadUint64(base + 8)
			if err != nil {
				return nil, err
			}
			m.AdjustorThunks[i] = TokenAdjustorThunkPair{Token: Token(tok), AdjustorThunk: thunk}
		}
	}

	invokerPtr, err := c.u64()
	if err != nil {
		return nil, err
	}
	if len(m.MethodPointers) > 0 {
		invOff, err := e.vaddrToOffset(invokerPtr)
		if err != nil {
			return nil, err
		}
		r := e.relocatedReader()
		m.InvokerIndices = make([]int32, len(m.MethodPointers))
		for i := range m.InvokerIndices {
			v, err := r.ReadUint32(invOff + uint64(i)*4)
			if err != nil {
				return nil, err
			}
			m.InvokerIndices[i] = int32(v)
		}
	}

	// reverse_pinvoke_wrapper_count: a u128-wide reserved field in the
	// original layout, preserved here only as a cursor skip.
	c.skip(16)

	rangeCount, rangePtr, err := c.countedArray()
	if err != nil {
		return nil, err
	}
	if rangeCount > 0 {
		rOff, err := e.vaddrToOffset(rangePtr)
		if err != nil {
			return nil, err
		}
		r := e.relocatedReader()
		m.RGCTXRanges = make([]TokenRangePair, rangeCount)
		for i := range m.RGCTXRanges {
			base := rOff + uint64(i)*12
			tok, err := r.ReadUint32(base)
			if err != nil {
				return nil, err
			}
			start, err := r.ReadUint32(base + 4)
			if err != nil {
				return nil, err
			}
			count, err := r.ReadUint32(base + 8)
			if err != nil {
				return nil, err
			}
			m.RGCTXRanges[i] = TokenRangePair{Token: Token(tok), Start: start, Count: count}
		}
	}

	defCount, defPtr, err := c.countedArray()
	if err != nil {
		return nil, err
	}
	if defCount > 0 {
		dOff, err := e.vaddrToOffset(defPtr)
		if err != nil {
			return nil, err
		}
		r := e.relocatedReader()
		m.RGCTXDefinitions = make([]RGCTXDefinition, defCount)
		for i := range m.RGCTXDefinitions {
			base := dOff + uint64(i)*12
			typ, err := r.ReadUint32(base)
			if err != nil {
				return nil, err
			}
			data, err := r.ReadUint64(base + 4)
			if err != nil {
				return nil, err
			}
			m.RGCTXDefinitions[i] = RGCTXDefinition{Type: RGCTXDataType(typ), Data: data}
		}
	}

	return m, nil
}

// readMetadataRegistration implements spec.md §4.5's
// MetadataRegistration algorithm. Order is load-bearing: addr->index
// maps for generic insts and types must exist before generic classes
// and types themselves are decoded.
func readMetadataRegistration(e *elfView, addr uint64, gm *GlobalMetadata) (*MetadataRegistration, error) {
	c := newCur(e, addr)
	mr := &MetadataRegistration{}

	gcCount, gcPtr, err := c.countedArray()
	if err != nil {
		return nil, err
	}
	giCount, giPtr, err := c.countedArray()
	if err != nil {
		return nil, err
	}
	gmtCount, gmtPtr, err := c.countedArray()
	if err != nil {
		return nil, err
	}
	tCount, tPtr, err := c.countedArray()
	if err != nil {
		return nil, err
	}
	msCount, msPtr, err := c.countedArray()
	if err != nil {
		return nil, err
	}
	foCount, foPtr, err := c.countedArray()
	if err != nil {
		return nil, err
	}
	tdsCount, tdsPtr, err := c.countedArray()
	if err != nil {
		return nil, err
	}

	gcAddrs, err := e.readAddrs(gcPtr, gcCount)
	if err != nil {
		return nil, err
	}
	giAddrs, err := e.readAddrs(giPtr, giCount)
	if err != nil {
		return nil, err
	}
	tAddrs, err := e.readAddrs(tPtr, tCount)
	if err != nil {
		return nil, err
	}
	msAddrs, err := e.readAddrs(msPtr, msCount)
	if err != nil {
		return nil, err
	}
	foPtrs, err := e.readAddrs(foPtr, foCount)
	if err != nil {
		return nil, err
	}
	tdsAddrs, err := e.readAddrs(tdsPtr, tdsCount)
	if err != nil {
		return nil, err
	}
	giIndex := addrIndex(giAddrs)
	tIndex := addrIndex(tAddrs)
	gcIndex := addrIndex(gcAddrs)

	arr := &arrayTypeTable{e: e}

	// Generic insts, first: generic classes' contexts reference them.
	mr.GenericInsts = make([]GenericInst, len(giAddrs))
	for i, a := range giAddrs {
		inst, err := readGenericInst(e, a, tIndex)
		if err != nil {
			return nil, err
		}
		mr.GenericInsts[i] = *inst
	}

	mr.GenericClasses = make([]GenericClass, len(gcAddrs))
	for i, a := range gcAddrs {
		gc, err := readGenericClass(e, a, tIndex, giIndex)
		if err != nil {
			return nil, err
		}
		mr.GenericClasses[i] = *gc
	}

	mr.Types = make([]Type, len(tAddrs))
	for i, a := range tAddrs {
		t, err := readType(e, a, tIndex, gcIndex, arr)
		if err != nil {
			return nil, err
		}
		mr.Types[i] = *t
	}
	mr.ArrayTypes = arr.rows

	mr.MethodSpecs = make([]MethodSpec, len(msAddrs))
	for i, a := range msAddrs {
		ms, err := readMethodSpec(e, a, gcIndex, giIndex)
		if err != nil {
			return nil, err
		}
		mr.MethodSpecs[i] = *ms
	}

	msIndex := addrIndex(msAddrs)
	mr.GenericMethodTable, err = readGenericMethodTable(e, gmtPtr, gmtCount, msIndex)
	if err != nil {
		return nil, err
	}

	mr.TypeDefinitionSizes = make([]TypeDefinitionSizes, len(tdsAddrs))
	for i, a := range tdsAddrs {
		sz, err := readTypeDefinitionSizes(e, a)
		if err != nil {
			return nil, err
		}
		mr.TypeDefinitionSizes[i] = *sz
	}

	// field_offsets: one nullable array per type definition, sized by
	// that type definition's field count (from the global table, which
	// must already be parsed - component F precedes component E).
	mr.FieldOffsets = make([][]int32, len(foPtrs))
	for i, ptr := range foPtrs {
		if i >= len(gm.TypeDefinitions) {
			break
		}
		fieldCount := uint64(gm.TypeDefinitions[i].FieldCount)
		if ptr == 0 || fieldCount == 0 {
			continue
		}
		off, err := e.vaddrToOffset(ptr)
		if err != nil {
			return nil, err
		}
		r := e.relocatedReader()
		offsets := make([]int32, fieldCount)
		for j := range offsets {
			v, err := r.ReadUint32(off + uint64(j)*4)
			if err != nil {
				return nil, err
			}
			offsets[j] = int32(v)
		}
		mr.FieldOffsets[i] = offsets
	}

	return mr, nil
}

func addrIndex(addrs []uint64) map[uint64]int32 {
	m := make(map[uint64]int32, len(addrs))
	for i, a := range addrs {
		m[a] = int32(i)
	}
	return m
}

func lookupOrSentinel(m map[uint64]int32, addr uint64) int32 {
	if addr == 0 {
		return sentinelIndex
	}
	if idx, ok := m[addr]; ok {
		return idx
	}
	return sentinelIndex
}

func readGenericInst(e *elfView, addr uint64, tIndex map[uint64]int32) (*GenericInst, error) {
	c := newCur(e, addr)
	count, ptr, err := c.countedArray()
	if err != nil {
		return nil, err
	}
	typeAddrs, err := e.readAddrs(ptr, count)
	if err != nil {
		return nil, err
	}
	types := make([]int32, len(typeAddrs))
	for i, a := range typeAddrs {
		types[i] = lookupOrSentinel(tIndex, a)
	}
	return &GenericInst{Types: types}, nil
}

func readGenericClass(e *elfView, addr uint64, tIndex, giIndex map[uint64]int32) (*GenericClass, error) {
	c := newCur(e, addr)
	typePtr, err := c.u64()
	if err != nil {
		return nil, err
	}
	classInstPtr, err := c.u64()
	if err != nil {
		return nil, err
	}
	methodInstPtr, err := c.u64()
	if err != nil {
		return nil, err
	}
	return &GenericClass{
		TypeIndex: lookupOrSentinel(tIndex, typePtr),
		Context: GenericContext{
			ClassInst:  lookupOrSentinel(giIndex, classInstPtr),
			MethodInst: lookupOrSentinel(giIndex, methodInstPtr),
		},
	}, nil
}

// arrayTypeTable implements spec.md §9's lazy, discovery-ordered
// array-type table: Il2CppArrayType is referenced by pointer in the
// source; this table assigns a stable index the first time a given
// pointer is seen, iterating types in on-disk order (the only order
// readType is ever called in).
type arrayTypeTable struct {
	e       *elfView
	rows    []ArrayType
	indexOf map[uint64]int32
}

func (a *arrayTypeTable) indexFor(ptr uint64, tIndex map[uint64]int32) (int32, error) {
	if a.indexOf == nil {
		a.indexOf = make(map[uint64]int32)
	}
	if idx, ok := a.indexOf[ptr]; ok {
		return idx, nil
	}
	row, err := readArrayType(a.e, ptr, tIndex)
	if err != nil {
		return 0, err
	}
	idx := int32(len(a.rows))
	a.rows = append(a.rows, *row)
	a.indexOf[ptr] = idx
	return idx, nil
}

func readArrayType(e *elfView, addr uint64, tIndex map[uint64]int32) (*ArrayType, error) {
	c := newCur(e, addr)
	elemPtr, err := c.u64()
	if err != nil {
		return nil, err
	}
	rankByte, err := readByteAt(e, c.pos)
	if err != nil {
		return nil, err
	}
	numSizesByte, err := readByteAt(e, c.pos+1)
	if err != nil {
		return nil, err
	}
	numLoBoundsByte, err := readByteAt(e, c.pos+2)
	if err != nil {
		return nil, err
	}
	c.skip(8) // rank/num_sizes/num_lobounds + padding to the next 8-byte field
	sizesPtr, err := c.u64()
	if err != nil {
		return nil, err
	}
	loBoundsPtr, err := c.u64()
	if err != nil {
		return nil, err
	}

	sizes, err := readI32Array(e, sizesPtr, uint64(numSizesByte))
	if err != nil {
		return nil, err
	}
	bounds, err := readI32Array(e, loBoundsPtr, uint64(numLoBoundsByte))
	if err != nil {
		return nil, err
	}

	return &ArrayType{
		ElementTypeIndex: lookupOrSentinel(tIndex, elemPtr),
		Rank:             rankByte,
		Sizes:            sizes,
		LowerBounds:      bounds,
	}, nil
}

func readByteAt(e *elfView, vaddr uint64) (byte, error) {
	off, err := e.vaddrToOffset(vaddr)
	if err != nil {
		return 0, err
	}
	return e.relocatedReader().ReadUint8(off)
}

func readI32Array(e *elfView, ptr uint64, count uint64) ([]int32, error) {
	if count == 0 || ptr == 0 {
		return nil, nil
	}
	off, err := e.vaddrToOffset(ptr)
	if err != nil {
		return nil, err
	}
	r := e.relocatedReader()
	out := make([]int32, count)
	for i := range out {
		v, err := r.ReadUint32(off + uint64(i)*4)
		if err != nil {
			return nil, err
		}
		out[i] = int32(v)
	}
	return out, nil
}

// readType decodes one 16-byte runtime type record and resolves its
// data discriminant, per spec.md §4.5/§6.3.
func readType(e *elfView, addr uint64, tIndex, gcIndex map[uint64]int32, arr *arrayTypeTable) (*Type, error) {
	off, err := e.vaddrToOffset(addr)
	if err != nil {
		return nil, err
	}
	r := e.relocatedReader()
	data, err := r.ReadUint64(off)
	if err != nil {
		return nil, err
	}
	attrs, err := r.ReadUint16(off + 8)
	if err != nil {
		return nil, err
	}
	kindByte, err := r.ReadUint8(off + 10)
	if err != nil {
		return nil, err
	}
	bitfield, err := r.ReadUint8(off + 11)
	if err != nil {
		return nil, err
	}
	kind := TypeKind(kindByte)
	if !kind.valid() {
		return nil, &InvalidTypeError{Kind: kindByte}
	}

	t := &Type{
		Attrs:     attrs,
		Kind:      kind,
		Byref:     bitfield&typeBitByref != 0,
		Pinned:    bitfield&typeBitPinned != 0,
		ValueType: bitfield&typeBitValueType != 0,
	}

	switch kind {
	case TypePtr, TypeSzarray:
		t.DataKind = DataType
		t.Index = lookupOrSentinel(tIndex, data)
	case TypeVar, TypeMvar:
		t.DataKind = DataGenericParameter
		t.Index = int32(data)
	case TypeArray:
		t.DataKind = DataArrayType
		idx, err := arr.indexFor(data, tIndex)
		if err != nil {
			return nil, err
		}
		t.Index = idx
	case TypeGenericinst:
		t.DataKind = DataGenericClass
		t.Index = lookupOrSentinel(gcIndex, data)
	default:
		t.DataKind = DataTypeDefinition
		t.Index = int32(data)
	}

	return t, nil
}

// readGenericMethodTable reads the generic-method-table array: count
// entries of {method_spec_ptr u64, method u32, invoker u32, adjustor
// thunk u32}, resolving the method-spec pointer through msIndex.
func readGenericMethodTable(e *elfView, ptr, count uint64, msIndex map[uint64]int32) ([]GenericMethodFunctionsDefinitions, error) {
	if count == 0 {
		return nil, nil
	}
	off, err := e.vaddrToOffset(ptr)
	if err != nil {
		return nil, err
	}
	r := e.relocatedReader()
	const entrySize = 20
	out := make([]GenericMethodFunctionsDefinitions, count)
	for i := range out {
		base := off + uint64(i)*entrySize
		specPtr, err := r.ReadUint64(base)
		if err != nil {
			return nil, err
		}
		method, err := r.ReadUint32(base + 8)
		if err != nil {
			return nil, err
		}
		invoker, err := r.ReadUint32(base + 12)
		if err != nil {
			return nil, err
		}
		adjustor, err := r.ReadUint32(base + 16)
		if err != nil {
			return nil, err
		}
		out[i] = GenericMethodFunctionsDefinitions{
			GenericMethodIndex: lookupOrSentinel(msIndex, specPtr),
			Indices: GenericMethodIndices{
				MethodIndex:        int32(method),
				InvokerIndex:       int32(invoker),
				AdjustorThunkIndex: int32(adjustor),
			},
		}
	}
	return out, nil
}

func readMethodSpec(e *elfView, addr uint64, gcIndex, giIndex map[uint64]int32) (*MethodSpec, error) {
	c := newCur(e, addr)
	methodDef, err := c.u64()
	if err != nil {
		return nil, err
	}
	classInstPtr, err := c.u64()
	if err != nil {
		return nil, err
	}
	methodInstPtr, err := c.u64()
	if err != nil {
		return nil, err
	}
	return &MethodSpec{
		MethodDefinition: int32(methodDef),
		ClassInst:        lookupOrSentinel(giIndex, classInstPtr),
		MethodInst:       lookupOrSentinel(giIndex, methodInstPtr),
	}, nil
}

func readTypeDefinitionSizes(e *elfView, addr uint64) (*TypeDefinitionSizes, error) {
	off, err := e.vaddrToOffset(addr)
	if err != nil {
		return nil, err
	}
	r := e.relocatedReader()
	instance, err := r.ReadUint32(off)
	if err != nil {
		return nil, err
	}
	native, err := r.ReadUint32(off + 4)
	if err != nil {
		return nil, err
	}
	static, err := r.ReadUint32(off + 8)
	if err != nil {
		return nil, err
	}
	threadStatic, err := r.ReadUint32(off + 12)
	if err != nil {
		return nil, err
	}
	return &TypeDefinitionSizes{
		InstanceSize:           int32(instance),
		NativeSize:             int32(native),
		StaticFieldsSize:       int32(static),
		ThreadStaticFieldsSize: int32(threadStatic),
	}, nil
}
