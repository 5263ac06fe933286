// Package db implements the API Database (spec section 4.B): a persistent,
// append-only record of every item discovered across pipeline runs, shared
// across dependent packages. The authoritative store is a local binary
// snapshot plus a JSON export-info file (FileStore), written with the same
// atomic temp-then-rename discipline core/atomicwriter.go used, matching the
// file format spec section 4.B/6 describes. An optional remote libSQL
// backend (RemoteStore) stores the same snapshot for sharing across consumer
// crates, and SQLStore mirrors items into a queryable sqlite file (gorm + the
// pure-Go glebarez/sqlite driver).
package db

import (
	"github.com/rust-qt/ritual-sub000/internal/types"
)

// ItemKind discriminates the Database Item's payload variant.
type ItemKind string

const (
	ItemFunction  ItemKind = "function"
	ItemType      ItemKind = "type"
	ItemEnumValue ItemKind = "enum_value"
	ItemField     ItemKind = "field"
	ItemBase      ItemKind = "base"
	ItemNamespace ItemKind = "namespace"
)

// MemberKind classifies a Source Function's membership (spec section 3).
type MemberKind string

const (
	MemberRegular     MemberKind = "regular"
	MemberConstructor MemberKind = "constructor"
	MemberDestructor  MemberKind = "destructor"
)

// Visibility mirrors source-language accessibility.
type Visibility string

const (
	VisibilityPublic    Visibility = "public"
	VisibilityProtected Visibility = "protected"
	VisibilityPrivate   Visibility = "private"
)

// MemberInfo carries the optional member-function metadata of a Source
// Function (spec section 3).
type MemberInfo struct {
	Kind           MemberKind
	IsVirtual      bool
	IsPureVirtual  bool
	IsConst        bool
	IsStatic       bool
	Visibility     Visibility
	IsSignal       bool
	IsSlot         bool
}

// FunctionArgument is one ordered argument of a Source Function.
type FunctionArgument struct {
	Name       string
	Type       types.SourceType
	HasDefault bool
}

// SourceFunction is the Source Function entity (spec section 3).
type SourceFunction struct {
	Path             types.Path
	Member           *MemberInfo
	Operator         string // "" when not an operator
	ReturnType       types.SourceType
	Arguments        []FunctionArgument
	AllowsVariadic   bool
	VerbatimDecl     string
}

// SourceField is a class member field.
type SourceField struct {
	ClassPath types.Path
	Name      string
	Type      types.SourceType
	Visibility Visibility
}

// BaseSpecifier records one base class of a derived class.
type BaseSpecifier struct {
	Derived    types.Path
	Base       types.Path
	IsVirtual  bool
	Visibility Visibility
	BaseIndex  int
}

// SourceEnum is a parsed enum declaration, before regularization.
type SourceEnum struct {
	Path     types.Path
	Variants []types.EnumVariant
}

// SourceClass describes a parsed class/struct declaration.
type SourceClass struct {
	Path               types.Path
	Size               int  // 0 when unknown at parse time
	Alignment          int
	HasInaccessibleDtor bool
	HasDeletedCopyCtor  bool
	IsPolymorphic       bool
	IsTemplate          bool
	TemplateParamNames  []string

	// AllocationPlace is filled in by the Post-Parse Analyzers' allocation
	// choice sub-step (spec section 4.D.2); empty until then.
	AllocationPlace AllocationPlace
}

// SourceNamespace is a parsed namespace declaration.
type SourceNamespace struct {
	Path types.Path
}

// ItemPayload is the tagged union backing a Database Item (spec section 3).
// Exactly one field is populated, selected by Kind.
type ItemPayload struct {
	Kind      ItemKind
	Function  *SourceFunction
	Class     *SourceClass
	Enum      *SourceEnum
	EnumValue *types.EnumVariant
	Field     *SourceField
	Base      *BaseSpecifier
	Namespace *SourceNamespace
}

// Constructors used by the Parser Driver and analyzers so callers build a
// payload without restating its Kind tag.

func PayloadFunction(f *SourceFunction) ItemPayload { return ItemPayload{Kind: ItemFunction, Function: f} }
func PayloadClass(c *SourceClass) ItemPayload       { return ItemPayload{Kind: ItemType, Class: c} }
func PayloadEnum(e *SourceEnum) ItemPayload         { return ItemPayload{Kind: ItemType, Enum: e} }
func PayloadEnumValue(v *types.EnumVariant) ItemPayload {
	return ItemPayload{Kind: ItemEnumValue, EnumValue: v}
}
func PayloadField(f *SourceField) ItemPayload       { return ItemPayload{Kind: ItemField, Field: f} }
func PayloadBase(b *BaseSpecifier) ItemPayload       { return ItemPayload{Kind: ItemBase, Base: b} }
func PayloadNamespace(p types.Path) ItemPayload {
	return ItemPayload{Kind: ItemNamespace, Namespace: &SourceNamespace{Path: p}}
}

// Environment is a (target triple, library version) pair (spec section 3).
type Environment struct {
	TargetTriple   string
	LibraryVersion string // "" when unspecified
}

// AllocationPlace is the Stack/Heap/NotApplicable policy chosen for a class
// crossing the FFI boundary (spec section 4.D.2, GLOSSARY).
type AllocationPlace string

const (
	AllocStack         AllocationPlace = "stack"
	AllocHeap          AllocationPlace = "heap"
	AllocNotApplicable AllocationPlace = "not_applicable"
)

// Item is one Database Item: a discovered entity plus provenance and
// downstream annotations (spec section 3).
type Item struct {
	Index         int
	Payload       ItemPayload
	Origin        map[int]bool // target index set
	IncludeFile   string
	SourceLine    int
	FFIChildren   []int // indices into the owning Database's FFI items

	// HostPath/HostKind/HostSize are filled in by the Host API Generator's
	// phase 1 (type placement, spec section 4.G) once a host declaration
	// has been materialized for this item. Empty until then.
	HostPath string
	HostKind string
	HostSize int
}

// FFIArgumentRole tags the meaning of one lowered FFI argument.
type FFIArgumentRole string

const (
	RoleThis        FFIArgumentRole = "this"
	RoleArgumentN   FFIArgumentRole = "argument"
	RoleReturnValue FFIArgumentRole = "return_value"
)

// FFIArgument is one argument of an FFI function, with its ABI type and the
// meaning it carries back to the source function (spec section 3).
type FFIArgument struct {
	Role      FFIArgumentRole
	ArgIndex  int // meaningful only when Role == RoleArgumentN
	FFIType   types.FFIType
	Name      string
}

// FFIFunction is an ABI-safe lowering of one Source Function (spec section 3).
type FFIFunction struct {
	Name             string
	Arguments        []FFIArgument
	ReturnType       types.SourceType
	SourceItemIndex  int
	AllocationPlace  AllocationPlace
	WrapperSource    string
}

// FFIItemKind discriminates the FFI Item variant.
type FFIItemKind string

const (
	FFIKindFunction    FFIItemKind = "function"
	FFIKindSlotWrapper FFIItemKind = "slot_wrapper"
)

// FFIItem is the ABI-safe projection of one source function (spec section
// 3, GLOSSARY).
type FFIItem struct {
	Index        int
	Kind         FFIItemKind
	Function     *FFIFunction
	SlotWrapper  *SlotWrapper
	SourceItem   int // index of the owning Database Item
	Checks       map[checkKey]bool
}

// SlotWrapper models the Qt-style signal/slot trampoline variant of an FFI
// item.
type SlotWrapper struct {
	Name       string
	ArgTypes   []types.SourceType
}

// checkKey identifies one (FFI item, environment) pair for the per-env
// verdict map.
type checkKey struct {
	EnvIndex int
}

// hasCheck looks up the recorded verdict for the given environment,
// returning (verdict, true) when one exists and (false, false) otherwise.
// Verdicts are written by Database.RecordCheck.
func (f *FFIItem) hasCheck(envIndex int) (bool, bool) {
	if f.Checks == nil {
		return false, false
	}
	v, ok := f.Checks[checkKey{EnvIndex: envIndex}]
	return v, ok
}
