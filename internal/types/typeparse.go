package types

import "strings"

// ParseTypeMachine parses the machine-rendered form of a SourceType, as it
// appears nested inside a Path's template argument list. It recognizes the
// built-in numeric keywords and const/pointer/reference suffixes; anything
// else is parsed as a Class path, which is the common case for template
// arguments instantiated over library types.
func ParseTypeMachine(s string) (SourceType, error) {
	s = strings.TrimSpace(s)
	isConst := false
	if strings.HasPrefix(s, "const ") {
		isConst = true
		s = strings.TrimSpace(s[len("const "):])
	}

	switch {
	case strings.HasSuffix(s, "&&"):
		inner, err := ParseTypeMachine(s[:len(s)-2])
		if err != nil {
			return SourceType{}, err
		}
		return PointerLike(PointerRRef, isConst, inner), nil
	case strings.HasSuffix(s, "&"):
		inner, err := ParseTypeMachine(s[:len(s)-1])
		if err != nil {
			return SourceType{}, err
		}
		return PointerLike(PointerLRef, isConst, inner), nil
	case strings.HasSuffix(s, "*"):
		inner, err := ParseTypeMachine(s[:len(s)-1])
		if err != nil {
			return SourceType{}, err
		}
		return PointerLike(PointerPtr, isConst, inner), nil
	}

	if kind, ok := builtinNumericKeywords[s]; ok {
		return BuiltInNumeric(kind), nil
	}
	if s == "void" {
		return Void(), nil
	}

	p, err := ParseMachine(s)
	if err != nil {
		return SourceType{}, err
	}
	return Class(p), nil
}

var builtinNumericKeywords = map[string]NumericKind{
	"bool":               NumericBool,
	"char":                NumericChar,
	"signed_char":         NumericSignedChar,
	"unsigned_char":       NumericUChar,
	"short":               NumericShort,
	"unsigned_short":      NumericUShort,
	"int":                 NumericInt,
	"unsigned_int":        NumericUInt,
	"long":                NumericLong,
	"unsigned_long":       NumericULong,
	"long_long":           NumericLongLong,
	"unsigned_long_long":  NumericULongLong,
	"float":               NumericFloat,
	"double":              NumericDouble,
}

// wellKnownTypedefs normalizes a small set of fixed-width integer and
// pointer-sized-integer typedefs that the parser driver recognizes while
// walking source declarations (spec section 4.C).
var wellKnownTypedefs = map[string]SourceType{
	"int8_t":   SpecificNumeric(NewPath(PathItem{Name: "int8_t"}), 8, true, false),
	"uint8_t":  SpecificNumeric(NewPath(PathItem{Name: "uint8_t"}), 8, false, false),
	"int16_t":  SpecificNumeric(NewPath(PathItem{Name: "int16_t"}), 16, true, false),
	"uint16_t": SpecificNumeric(NewPath(PathItem{Name: "uint16_t"}), 16, false, false),
	"int32_t":  SpecificNumeric(NewPath(PathItem{Name: "int32_t"}), 32, true, false),
	"uint32_t": SpecificNumeric(NewPath(PathItem{Name: "uint32_t"}), 32, false, false),
	"int64_t":  SpecificNumeric(NewPath(PathItem{Name: "int64_t"}), 64, true, false),
	"uint64_t": SpecificNumeric(NewPath(PathItem{Name: "uint64_t"}), 64, false, false),
	"size_t":   PointerSizedInteger(NewPath(PathItem{Name: "size_t"}), false),
	"ssize_t":  PointerSizedInteger(NewPath(PathItem{Name: "ssize_t"}), true),
	"ptrdiff_t": PointerSizedInteger(NewPath(PathItem{Name: "ptrdiff_t"}), true),
	"intptr_t": PointerSizedInteger(NewPath(PathItem{Name: "intptr_t"}), true),
	"uintptr_t": PointerSizedInteger(NewPath(PathItem{Name: "uintptr_t"}), false),
}

// NormalizeTypedef returns the normalized SourceType for a well-known
// typedef name, if any.
func NormalizeTypedef(name string) (SourceType, bool) {
	t, ok := wellKnownTypedefs[name]
	return t, ok
}
