// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

// Package il2cpp reads the metadata of a Unity IL2CPP application: the
// platform-independent global-metadata.dat table file, and the
// runtime metadata graph embedded in the compiled ELF shared object.
// Parse exposes both as one navigable, read-only Metadata value.
package il2cpp

import (
	"fmt"
	"os"
	"strings"

	mmap "github.com/edsrzf/mmap-go"
	"github.com/saferwall/il2cpp/log"
)

// Options configures Parse, mirroring the teacher's Options pattern
// (pe.go). A nil *Options is a valid, conservative configuration.
type Options struct {
	// StrictVersion, when true, rejects a global metadata header whose
	// version does not equal the single supported version. A nil
	// *Options behaves as StrictVersion true; in a non-nil Options the
	// field's zero value is false, so the check is on only when set.
	// When false, parsing proceeds best-effort on a version mismatch;
	// see SPEC_FULL.md §4's "version policy" decision.
	StrictVersion bool

	// Fast is not consulted by the parser: RGCTX definitions inside
	// each code-gen module are decoded whatever its value.
	Fast bool

	// Logger receives non-fatal warnings (ignored relocation kinds,
	// version mismatches in non-strict mode) and debug traces
	// (discovered code-gen modules). A custom Logger.Logger may be
	// supplied; defaults to a stderr logger filtered at Error level.
	Logger log.Logger
}

func (o *Options) helper() *log.Helper {
	if o == nil || o.Logger == nil {
		return log.NewHelper(log.NewFilter(log.NewStdLogger(os.Stderr), log.FilterLevel(log.LevelError)))
	}
	return log.NewHelper(o.Logger)
}

func (o *Options) strictVersion() bool {
	return o == nil || o.StrictVersion
}

// Metadata is the linked result of parsing both metadata halves:
// component H. It is read-only and safe for concurrent readers once
// returned from Parse, per spec.md §5.
type Metadata struct {
	Global  *GlobalMetadata
	Runtime *RuntimeMetadata
}

// Parse parses global-metadata.dat bytes and an IL2CPP-compiled ELF
// shared object's bytes into one Metadata value, per spec.md §6.1.
// globalBytes must outlive the returned Metadata: the global metadata
// string and data heaps are borrowed, not copied. elfBytes is only
// read during the call; code-gen module names are copied out of it.
func Parse(globalBytes, elfBytes []byte, opts *Options) (*Metadata, error) {
	logger := opts.helper()

	gm, err := parseGlobalMetadata(globalBytes, opts.strictVersion(), logger)
	if err != nil {
		return nil, &ParseError{Stage: "global", Err: err}
	}

	ev, err := newELFView(elfBytes, logger)
	if err != nil {
		return nil, &ParseError{Stage: "runtime", Err: err}
	}
	rm, err := readRuntimeMetadata(ev, gm, logger)
	if err != nil {
		return nil, &ParseError{Stage: "runtime", Err: err}
	}

	return &Metadata{Global: gm, Runtime: rm}, nil
}

// ParseFiles mmaps both input files and parses them, matching the
// teacher's New/NewBytes split (file.go) between file-backed and
// in-memory entry points. The global metadata mapping is left mapped,
// because the returned Metadata borrows its heaps; the ELF mapping is
// released before returning.
func ParseFiles(globalMetadataPath, elfPath string, opts *Options) (*Metadata, error) {
	gmFile, err := os.Open(globalMetadataPath)
	if err != nil {
		return nil, err
	}
	defer gmFile.Close()
	gmData, err := mmap.Map(gmFile, mmap.RDONLY, 0)
	if err != nil {
		return nil, err
	}

	elfFile, err := os.Open(elfPath)
	if err != nil {
		return nil, err
	}
	defer elfFile.Close()
	elfData, err := mmap.Map(elfFile, mmap.RDONLY, 0)
	if err != nil {
		return nil, err
	}
	defer elfData.Unmap()

	return Parse(gmData, elfData, opts)
}

// ---- Method accessors (component H) --------------------------------

// MethodName returns a method's name.
func (m *Metadata) MethodName(row MethodRow) (string, error) {
	return m.Global.String(row.Name)
}

// MethodParameters returns the row's owned parameter slice.
func (m *Metadata) MethodParameters(row MethodRow) []ParameterRow {
	rng := row.Parameters()
	return sliceRange(m.Global.Parameters, rng)
}

// MethodSignature renders "retType declType::name<gparams>(p1Type, p2Type, ...)",
// per spec.md §4.8 / SPEC_FULL.md §3's pinned format string. Return and
// parameter types are resolved through TypeFullName, the same runtime
// Type-table lookup the rest of this file uses for type names.
func (m *Metadata) MethodSignature(declType TypeDefinitionIndex, row MethodRow) (string, error) {
	name, err := m.MethodName(row)
	if err != nil {
		return "", err
	}
	declName, err := m.TypeDefinitionFullName(declType)
	if err != nil {
		return "", err
	}
	retName, err := m.TypeFullName(row.ReturnType)
	if err != nil {
		return "", err
	}
	gparams := ""
	if row.GenericContainer.Valid() {
		s, err := m.GenericContainerSignature(row.GenericContainer)
		if err != nil {
			return "", err
		}
		gparams = s
	}
	params := m.MethodParameters(row)
	parts := make([]string, 0, len(params))
	for _, p := range params {
		pTypeName, err := m.TypeFullName(p.Type)
		if err != nil {
			return "", err
		}
		parts = append(parts, pTypeName)
	}
	return fmt.Sprintf("%s %s::%s%s(%s)", retName, declName, name, gparams, strings.Join(parts, ", ")), nil
}

// ---- Type definition accessors (component H) ------------------------

// TypeDefinitionName returns a type definition's unqualified name.
func (m *Metadata) TypeDefinitionName(row TypeDefinitionRow) (string, error) {
	return m.Global.String(row.NameIndex)
}

// TypeDefinitionNamespace returns a type definition's namespace.
func (m *Metadata) TypeDefinitionNamespace(row TypeDefinitionRow) (string, error) {
	return m.Global.String(row.NamespaceIndex)
}

// TypeDefinitionFullName returns the fully qualified name of the type
// definition at idx: "namespace.name", "declaring::nested" for nested
// types, with a "<T,U>" suffix when the type owns a generic container.
func (m *Metadata) TypeDefinitionFullName(idx TypeDefinitionIndex) (string, error) {
	i := int(idx)
	if i < 0 || i >= len(m.Global.TypeDefinitions) {
		return "", ErrInvalidIndex
	}
	row := m.Global.TypeDefinitions[i]

	var base string
	if row.DeclaringType.Valid() && uint32(row.DeclaringType) != uint32(idx) {
		outer, err := m.TypeDefinitionFullName(row.DeclaringType)
		if err != nil {
			return "", err
		}
		name, err := m.TypeDefinitionName(row)
		if err != nil {
			return "", err
		}
		base = outer + "::" + name
	} else {
		ns, err := m.TypeDefinitionNamespace(row)
		if err != nil {
			return "", err
		}
		name, err := m.TypeDefinitionName(row)
		if err != nil {
			return "", err
		}
		if ns == "" {
			base = name
		} else {
			base = ns + "." + name
		}
	}

	if row.GenericContainer.Valid() {
		suffix, err := m.GenericContainerSignature(row.GenericContainer)
		if err != nil {
			return "", err
		}
		base += suffix
	}
	return base, nil
}

// GenericContainerSignature renders a generic container's parameter
// list as "<a,b>", per spec.md §4.8.
func (m *Metadata) GenericContainerSignature(idx GenericContainerIndex) (string, error) {
	i := int(idx)
	if i < 0 || i >= len(m.Global.GenericContainers) {
		return "", ErrInvalidIndex
	}
	rng := m.Global.GenericContainers[i].GenericParameters()
	params := sliceRange(m.Global.GenericParameters, rng)
	names := make([]string, 0, len(params))
	for _, p := range params {
		n, err := m.Global.String(p.Name)
		if err != nil {
			return "", err
		}
		names = append(names, n)
	}
	if len(names) == 0 {
		return "", nil
	}
	return "<" + strings.Join(names, ",") + ">", nil
}

// ---- Runtime Type.full_name (component H) ---------------------------

// canonicalTypeNames maps primitive/framework type kinds to their
// canonical names, per spec.md §4.8.
var canonicalTypeNames = map[TypeKind]string{
	TypeVoid:       "System.Void",
	TypeBoolean:    "System.Boolean",
	TypeChar:       "System.Char",
	TypeI1:         "System.SByte",
	TypeU1:         "System.Byte",
	TypeI2:         "System.Int16",
	TypeU2:         "System.UInt16",
	TypeI4:         "System.Int32",
	TypeU4:         "System.UInt32",
	TypeI8:         "System.Int64",
	TypeU8:         "System.UInt64",
	TypeR4:         "System.Single",
	TypeR8:         "System.Double",
	TypeString:     "System.String",
	TypeI:          "System.IntPtr",
	TypeU:          "System.UIntPtr",
	TypeObject:     "System.Object",
	TypeTypedbyref: "System.TypedReference",
}

// TypeFullName dispatches on kind to render a runtime type's fully
// qualified name, per spec.md §4.8/S7.
func (m *Metadata) TypeFullName(idx int32) (string, error) {
	i := int(idx)
	if i < 0 || i >= len(m.Runtime.MetadataRegistration.Types) {
		return "", ErrInvalidIndex
	}
	t := m.Runtime.MetadataRegistration.Types[i]

	if t.Kind == TypeSentinel {
		return "<<SENTINEL>>", nil
	}
	if name, ok := canonicalTypeNames[t.Kind]; ok {
		return name, nil
	}

	switch t.Kind {
	case TypePtr:
		elem, err := m.TypeFullName(t.Index)
		if err != nil {
			return "", err
		}
		return elem + "*", nil
	case TypeSzarray:
		elem, err := m.TypeFullName(t.Index)
		if err != nil {
			return "", err
		}
		return elem + "[]", nil
	case TypeArray:
		at := m.Runtime.MetadataRegistration.ArrayTypes[t.Index]
		elem, err := m.TypeFullName(at.ElementTypeIndex)
		if err != nil {
			return "", err
		}
		return elem + "[" + strings.Repeat(",", int(at.Rank)-1) + "]", nil
	case TypeClass, TypeValuetype, TypeEnum:
		return m.TypeDefinitionFullName(TypeDefinitionIndex(t.Index))
	case TypeVar, TypeMvar:
		i := int(t.Index)
		if i < 0 || i >= len(m.Global.GenericParameters) {
			return "", ErrInvalidIndex
		}
		return m.Global.String(m.Global.GenericParameters[i].Name)
	case TypeGenericinst:
		gc := m.Runtime.MetadataRegistration.GenericClasses[t.Index]
		base, err := m.TypeFullName(gc.TypeIndex)
		if err != nil {
			return "", err
		}
		if gc.Context.ClassInst == sentinelIndex {
			return base, nil
		}
		inst := m.Runtime.MetadataRegistration.GenericInsts[gc.Context.ClassInst]
		args := make([]string, 0, len(inst.Types))
		for _, ti := range inst.Types {
			s, err := m.TypeFullName(ti)
			if err != nil {
				return "", err
			}
			args = append(args, s)
		}
		return base + "<" + strings.Join(args, ", ") + ">", nil
	default:
		return fmt.Sprintf("(%d?)", t.Kind), nil
	}
}

// MethodsOf returns a type definition's owned method rows.
func MethodsOf(g *GlobalMetadata, row TypeDefinitionRow) []MethodRow {
	return sliceRange(g.Methods, row.Methods())
}

// sliceRange returns the rows of table covered by a half-open range,
// clamped to the table's bounds, per spec.md §3.1's "empty when
// count == 0" rule.
func sliceRange[I ~uint32, T any](table []T, r Range[I]) []T {
	if r.Empty() {
		return nil
	}
	start := int(r.Start)
	end := start + int(r.Count)
	if start < 0 || start > len(table) {
		return nil
	}
	if end > len(table) {
		end = len(table)
	}
	return table[start:end]
}
