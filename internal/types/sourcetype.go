package types

import (
	"fmt"

	"github.com/rust-qt/ritual-sub000/internal/rerror"
)

// TypeTag discriminates the SourceType variant. Go has no tagged unions, so
// SourceType carries one populated field per tag, the way the teacher's
// core.NodeKind-based dispatch picks a single active branch per value.
type TypeTag int

const (
	TagVoid TypeTag = iota
	TagBuiltInNumeric
	TagSpecificNumeric
	TagPointerSizedInteger
	TagEnum
	TagClass
	TagFunctionPointer
	TagPointerLike
	TagTemplateParameter
)

// NumericKind enumerates the built-in numeric kinds recognized verbatim
// from the source grammar (bool, char, short, int, long, long long, float,
// double, their unsigned variants).
type NumericKind string

const (
	NumericBool       NumericKind = "bool"
	NumericChar       NumericKind = "char"
	NumericSignedChar NumericKind = "signed_char"
	NumericUChar      NumericKind = "unsigned_char"
	NumericShort      NumericKind = "short"
	NumericUShort     NumericKind = "unsigned_short"
	NumericInt        NumericKind = "int"
	NumericUInt       NumericKind = "unsigned_int"
	NumericLong       NumericKind = "long"
	NumericULong      NumericKind = "unsigned_long"
	NumericLongLong   NumericKind = "long_long"
	NumericULongLong  NumericKind = "unsigned_long_long"
	NumericFloat      NumericKind = "float"
	NumericDouble     NumericKind = "double"
)

// PointerKind distinguishes pointer, lvalue-reference and rvalue-reference
// indirection.
type PointerKind int

const (
	PointerPtr PointerKind = iota
	PointerLRef
	PointerRRef
)

// FFIRole says where a type appears: as an argument or as a return type,
// since some conversions (e.g. r-value references) are only ever invalid,
// but others depend on position.
type FFIRole int

const (
	RoleArgument FFIRole = iota
	RoleReturnType
)

// SourceType is the tagged variant described in spec section 3. Exactly one
// of the *Data fields is meaningful, selected by Tag.
type SourceType struct {
	Tag TypeTag

	NumericKind NumericKind // TagBuiltInNumeric

	SpecificNumeric SpecificNumericData // TagSpecificNumeric
	PointerSized    PointerSizedData    // TagPointerSizedInteger
	EnumPath        Path                // TagEnum
	ClassPath       Path                // TagClass
	FunctionPointer *FunctionPointerData
	PointerLike     *PointerLikeData
	TemplateParam   TemplateParameterData // TagTemplateParameter
}

type SpecificNumericData struct {
	Path   Path
	Bits   int
	Signed bool // meaningless when Float is true
	Float  bool
}

type PointerSizedData struct {
	Path   Path
	Signed bool
}

type FunctionPointerData struct {
	Return    *SourceType
	Arguments []SourceType
	Variadic  bool
}

type PointerLikeData struct {
	Kind     PointerKind
	IsConst  bool
	Target   *SourceType
}

type TemplateParameterData struct {
	NestedLevel int
	Index       int
	Name        string
}

// Constructors -- mirror the variant names from spec section 3 so callers
// read like the spec.

func Void() SourceType { return SourceType{Tag: TagVoid} }

func BuiltInNumeric(kind NumericKind) SourceType {
	return SourceType{Tag: TagBuiltInNumeric, NumericKind: kind}
}

func SpecificNumeric(path Path, bits int, signed, float bool) SourceType {
	return SourceType{Tag: TagSpecificNumeric, SpecificNumeric: SpecificNumericData{Path: path, Bits: bits, Signed: signed, Float: float}}
}

func PointerSizedInteger(path Path, signed bool) SourceType {
	return SourceType{Tag: TagPointerSizedInteger, PointerSized: PointerSizedData{Path: path, Signed: signed}}
}

func Enum(path Path) SourceType { return SourceType{Tag: TagEnum, EnumPath: path} }

func Class(path Path) SourceType { return SourceType{Tag: TagClass, ClassPath: path} }

func FunctionPointer(ret SourceType, args []SourceType, variadic bool) SourceType {
	return SourceType{Tag: TagFunctionPointer, FunctionPointer: &FunctionPointerData{Return: &ret, Arguments: args, Variadic: variadic}}
}

func PointerLike(kind PointerKind, isConst bool, target SourceType) SourceType {
	return SourceType{Tag: TagPointerLike, PointerLike: &PointerLikeData{Kind: kind, IsConst: isConst, Target: &target}}
}

func TemplateParameter(nestedLevel, index int, name string) SourceType {
	return SourceType{Tag: TagTemplateParameter, TemplateParam: TemplateParameterData{NestedLevel: nestedLevel, Index: index, Name: name}}
}

// IsVoid reports whether this is exactly the Void variant (not void*).
func (t SourceType) IsVoid() bool { return t.Tag == TagVoid }

// NeedsAllocationPlaceVariants is true for class values returned by value,
// i.e. the case where the FFI Generator must choose between Stack and Heap
// allocation (spec section 4.A / 4.D.2).
func (t SourceType) NeedsAllocationPlaceVariants() bool {
	return t.Tag == TagClass
}

// IsQFlagsLike recognizes the source library's flag-container template
// pattern: a Class whose path's last item is literally "QFlags" with
// exactly one template argument; the argument's own kind is not checked.
// Spec section 4.A.
func (t SourceType) IsQFlagsLike() bool {
	if t.Tag != TagClass {
		return false
	}
	last := t.ClassPath.Last()
	return last.Name == "QFlags" && len(last.Template) == 1
}

// Equal is full structural equality across the whole variant tree.
func (t SourceType) Equal(o SourceType) bool {
	if t.Tag != o.Tag {
		return false
	}
	switch t.Tag {
	case TagVoid:
		return true
	case TagBuiltInNumeric:
		return t.NumericKind == o.NumericKind
	case TagSpecificNumeric:
		return t.SpecificNumeric.Path.Equal(o.SpecificNumeric.Path) &&
			t.SpecificNumeric.Bits == o.SpecificNumeric.Bits &&
			t.SpecificNumeric.Signed == o.SpecificNumeric.Signed &&
			t.SpecificNumeric.Float == o.SpecificNumeric.Float
	case TagPointerSizedInteger:
		return t.PointerSized.Path.Equal(o.PointerSized.Path) && t.PointerSized.Signed == o.PointerSized.Signed
	case TagEnum:
		return t.EnumPath.Equal(o.EnumPath)
	case TagClass:
		return t.ClassPath.Equal(o.ClassPath)
	case TagFunctionPointer:
		if t.FunctionPointer == nil || o.FunctionPointer == nil {
			return t.FunctionPointer == o.FunctionPointer
		}
		if t.FunctionPointer.Variadic != o.FunctionPointer.Variadic {
			return false
		}
		if !t.FunctionPointer.Return.Equal(*o.FunctionPointer.Return) {
			return false
		}
		if len(t.FunctionPointer.Arguments) != len(o.FunctionPointer.Arguments) {
			return false
		}
		for i := range t.FunctionPointer.Arguments {
			if !t.FunctionPointer.Arguments[i].Equal(o.FunctionPointer.Arguments[i]) {
				return false
			}
		}
		return true
	case TagPointerLike:
		if t.PointerLike == nil || o.PointerLike == nil {
			return t.PointerLike == o.PointerLike
		}
		return t.PointerLike.Kind == o.PointerLike.Kind &&
			t.PointerLike.IsConst == o.PointerLike.IsConst &&
			t.PointerLike.Target.Equal(*o.PointerLike.Target)
	case TagTemplateParameter:
		return t.TemplateParam == o.TemplateParam
	default:
		return false
	}
}

func (t SourceType) renderMachine() string {
	switch t.Tag {
	case TagVoid:
		return "void"
	case TagBuiltInNumeric:
		return string(t.NumericKind)
	case TagSpecificNumeric:
		return t.SpecificNumeric.Path.RenderMachine()
	case TagPointerSizedInteger:
		return t.PointerSized.Path.RenderMachine()
	case TagEnum:
		return t.EnumPath.RenderMachine()
	case TagClass:
		return t.ClassPath.RenderMachine()
	case TagFunctionPointer:
		return "fn"
	case TagPointerLike:
		return t.PointerLike.Target.renderMachine() + "_ptr"
	case TagTemplateParameter:
		return t.TemplateParam.Name
	default:
		return "unknown"
	}
}

func (t SourceType) renderHuman() string {
	switch t.Tag {
	case TagVoid:
		return "void"
	case TagBuiltInNumeric:
		return string(t.NumericKind)
	case TagSpecificNumeric:
		return t.SpecificNumeric.Path.RenderHuman()
	case TagPointerSizedInteger:
		return t.PointerSized.Path.RenderHuman()
	case TagEnum:
		return t.EnumPath.RenderHuman()
	case TagClass:
		return t.ClassPath.RenderHuman()
	case TagFunctionPointer:
		args := make([]string, len(t.FunctionPointer.Arguments))
		for i, a := range t.FunctionPointer.Arguments {
			args[i] = a.renderHuman()
		}
		return fmt.Sprintf("%s(*)(%v)", t.FunctionPointer.Return.renderHuman(), args)
	case TagPointerLike:
		suffix := "*"
		switch t.PointerLike.Kind {
		case PointerLRef:
			suffix = "&"
		case PointerRRef:
			suffix = "&&"
		}
		prefix := ""
		if t.PointerLike.IsConst {
			prefix = "const "
		}
		return prefix + t.PointerLike.Target.renderHuman() + suffix
	case TagTemplateParameter:
		return t.TemplateParam.Name
	default:
		return "<unknown>"
	}
}

// SubstituteTemplateParameters replaces TemplateParameter leaves matching
// nestedLevel with args[index], recursing through pointer-like, function
// pointer and class/enum path template arguments. Used by template
// instantiation (spec section 4.D.4).
func (t SourceType) SubstituteTemplateParameters(args []SourceType, nestedLevel int) SourceType {
	switch t.Tag {
	case TagTemplateParameter:
		if t.TemplateParam.NestedLevel == nestedLevel && t.TemplateParam.Index < len(args) {
			return args[t.TemplateParam.Index]
		}
		return t
	case TagPointerLike:
		target := t.PointerLike.Target.SubstituteTemplateParameters(args, nestedLevel)
		return PointerLike(t.PointerLike.Kind, t.PointerLike.IsConst, target)
	case TagFunctionPointer:
		ret := t.FunctionPointer.Return.SubstituteTemplateParameters(args, nestedLevel)
		newArgs := make([]SourceType, len(t.FunctionPointer.Arguments))
		for i, a := range t.FunctionPointer.Arguments {
			newArgs[i] = a.SubstituteTemplateParameters(args, nestedLevel)
		}
		return FunctionPointer(ret, newArgs, t.FunctionPointer.Variadic)
	case TagClass:
		return Class(t.ClassPath.SubstituteTemplateParameters(args, nestedLevel))
	case TagEnum:
		return Enum(t.EnumPath.SubstituteTemplateParameters(args, nestedLevel))
	default:
		return t
	}
}

// Traverse calls fn for t and, recursively, every sub-type (pointer
// targets, function pointer return/arguments, class/enum template
// arguments).
func (t SourceType) Traverse(fn func(SourceType)) {
	fn(t)
	switch t.Tag {
	case TagPointerLike:
		t.PointerLike.Target.Traverse(fn)
	case TagFunctionPointer:
		t.FunctionPointer.Return.Traverse(fn)
		for _, a := range t.FunctionPointer.Arguments {
			a.Traverse(fn)
		}
	case TagClass:
		for _, it := range t.ClassPath.Items {
			for _, a := range it.Template {
				a.Traverse(fn)
			}
		}
	case TagEnum:
		for _, it := range t.EnumPath.Items {
			for _, a := range it.Template {
				a.Traverse(fn)
			}
		}
	}
}

// FFIConversion tags how a source type's value is transported across the
// ABI boundary (spec section 4.A).
type FFIConversion int

const (
	ConvNoChange FFIConversion = iota
	ConvValueToPointer
	ConvReferenceToPointer
	ConvQFlagsToUInt
)

func (c FFIConversion) String() string {
	switch c {
	case ConvNoChange:
		return "NoChange"
	case ConvValueToPointer:
		return "ValueToPointer"
	case ConvReferenceToPointer:
		return "ReferenceToPointer"
	case ConvQFlagsToUInt:
		return "QFlagsToUInt"
	default:
		return "Unknown"
	}
}

// FFIType is the result of lowering a SourceType for one FFI position:
// the original source type, the ABI-safe type substituted for it, and the
// conversion that bridges the two (spec section 4.A).
type FFIType struct {
	Original SourceType
	FFIType  SourceType
	Conversion FFIConversion
}

// ToFFIType implements the spec section 4.A lowering rules. QFlags may
// cross only by value or const reference in either role; role is passed on
// when lowering a pointer's target.
func (t SourceType) ToFFIType(role FFIRole) (FFIType, error) {
	switch t.Tag {
	case TagTemplateParameter:
		return FFIType{}, rerror.TemplateParameterToFFIAttempt(
			fmt.Sprintf("template parameter %s cannot appear in FFI position", t.TemplateParam.Name))

	case TagClass:
		if t.IsQFlagsLike() {
			return FFIType{Original: t, FFIType: BuiltInNumeric(NumericUInt), Conversion: ConvQFlagsToUInt}, nil
		}
		// Class by value -> pointer of the same constness (non-const: a
		// mutable value is being passed/returned by value).
		return FFIType{
			Original:   t,
			FFIType:    PointerLike(PointerPtr, false, t),
			Conversion: ConvValueToPointer,
		}, nil

	case TagPointerLike:
		pl := t.PointerLike
		switch pl.Kind {
		case PointerRRef:
			return FFIType{}, rerror.RValueReference("r-value references cannot cross the FFI boundary: " + t.renderHuman())
		case PointerLRef:
			if pl.Target.IsQFlagsLike() {
				if !pl.IsConst {
					return FFIType{}, rerror.QFlagsInvalidIndirection("QFlags<E> may only cross by value or const reference, got non-const reference")
				}
				return FFIType{Original: t, FFIType: BuiltInNumeric(NumericUInt), Conversion: ConvQFlagsToUInt}, nil
			}
			return FFIType{
				Original:   t,
				FFIType:    PointerLike(PointerPtr, pl.IsConst, *pl.Target),
				Conversion: ConvReferenceToPointer,
			}, nil
		case PointerPtr:
			if pl.Target.IsQFlagsLike() {
				return FFIType{}, rerror.QFlagsInvalidIndirection("QFlags<E> may not be passed by pointer")
			}
			inner, err := pl.Target.ToFFIType(role)
			if err != nil {
				return FFIType{}, err
			}
			if inner.Conversion != ConvNoChange {
				return FFIType{}, rerror.New(rerror.KindType, "ExcessiveIndirection",
					"pointer to a type that itself requires FFI conversion is not supported: "+t.renderHuman())
			}
			return FFIType{
				Original:   t,
				FFIType:    PointerLike(PointerPtr, pl.IsConst, inner.FFIType),
				Conversion: ConvNoChange,
			}, nil
		}
		return FFIType{}, rerror.VoidNotExpectedHere("unreachable pointer kind")

	case TagFunctionPointer:
		fp := t.FunctionPointer
		if fp.Variadic {
			return FFIType{}, rerror.New(rerror.KindType, "NestedFunctionPointer", "variadic function pointers are not FFI-safe")
		}
		if _, err := fp.Return.ToFFIType(RoleReturnType); err != nil {
			return FFIType{}, rerror.New(rerror.KindType, "NestedFunctionPointer", "function pointer return type is not FFI-safe: "+err.Error())
		}
		for _, a := range fp.Arguments {
			if a.Tag == TagClass {
				return FFIType{}, rerror.New(rerror.KindType, "NestedFunctionPointer", "function pointer argument by value is not FFI-safe")
			}
			if _, err := a.ToFFIType(RoleArgument); err != nil {
				return FFIType{}, rerror.New(rerror.KindType, "NestedFunctionPointer", "function pointer argument is not FFI-safe: "+err.Error())
			}
		}
		return FFIType{Original: t, FFIType: t, Conversion: ConvNoChange}, nil

	default:
		// Void, BuiltInNumeric, SpecificNumeric, PointerSizedInteger, Enum
		// cross the FFI unchanged.
		return FFIType{Original: t, FFIType: t, Conversion: ConvNoChange}, nil
	}
}
