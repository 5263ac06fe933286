package ffi

import (
	"strings"

	"github.com/rust-qt/ritual-sub000/internal/db"
	"github.com/rust-qt/ritual-sub000/internal/types"
)

// ArgumentCaptionStrategy selects how one argument contributes to a
// disambiguating caption (original_source/src/caption_strategy.rs).
type ArgumentCaptionStrategy int

const (
	ArgNameOnly ArgumentCaptionStrategy = iota
	ArgTypeOnly
	ArgTypeAndName
)

// MethodCaptionKind selects whether constness, arguments, or both
// contribute to a method's disambiguating caption.
type MethodCaptionKind int

const (
	CaptionArgumentsOnly MethodCaptionKind = iota
	CaptionConstOnly
	CaptionConstAndArguments
)

// CaptionStrategy is one point in the fixed escalation order spec section
// 4.E.2 describes: argument names; argument types; argument types and
// names; constness only; then constness combined with argument names,
// argument types, and argument types and names.
type CaptionStrategy struct {
	Kind MethodCaptionKind
	Arg  ArgumentCaptionStrategy
}

// captionEscalation is the ordered list every disambiguation attempt walks,
// mirroring MethodCaptionStrategy::all() in the original implementation.
var captionEscalation = []CaptionStrategy{
	{Kind: CaptionArgumentsOnly, Arg: ArgNameOnly},
	{Kind: CaptionArgumentsOnly, Arg: ArgTypeOnly},
	{Kind: CaptionArgumentsOnly, Arg: ArgTypeAndName},
	{Kind: CaptionConstOnly},
	{Kind: CaptionConstAndArguments, Arg: ArgNameOnly},
	{Kind: CaptionConstAndArguments, Arg: ArgTypeOnly},
	{Kind: CaptionConstAndArguments, Arg: ArgTypeAndName},
}

// Next returns the strategy following s in the escalation order, or false
// once every strategy has been tried.
func (s CaptionStrategy) Next() (CaptionStrategy, bool) {
	for i, cur := range captionEscalation {
		if cur == s && i+1 < len(captionEscalation) {
			return captionEscalation[i+1], true
		}
	}
	return CaptionStrategy{}, false
}

// caption renders fn's disambiguating suffix under strategy s. An empty
// result means the strategy has nothing to contribute (e.g. ConstOnly on a
// non-member or zero-argument function); disambiguate then keeps the bare
// base name for that member, which still clashes if another member of the
// group also renders to the bare base name.
func caption(fn *db.SourceFunction, s CaptionStrategy) string {
	var parts []string
	switch s.Kind {
	case CaptionConstOnly:
		if fn.Member == nil {
			return ""
		}
		if fn.Member.IsConst {
			parts = append(parts, "const")
		}
	case CaptionConstAndArguments:
		if fn.Member != nil && fn.Member.IsConst {
			parts = append(parts, "const")
		}
		parts = append(parts, argumentCaption(fn, s.Arg)...)
	default: // CaptionArgumentsOnly
		parts = append(parts, argumentCaption(fn, s.Arg)...)
	}
	if len(parts) == 0 {
		return ""
	}
	return strings.Join(parts, "_")
}

func argumentCaption(fn *db.SourceFunction, strategy ArgumentCaptionStrategy) []string {
	if len(fn.Arguments) == 0 {
		return nil
	}
	parts := make([]string, 0, len(fn.Arguments))
	for _, a := range fn.Arguments {
		switch strategy {
		case ArgNameOnly:
			if a.Name != "" {
				parts = append(parts, a.Name)
			}
		case ArgTypeOnly:
			parts = append(parts, typeCaption(a.Type))
		case ArgTypeAndName:
			if a.Name != "" {
				parts = append(parts, typeCaption(a.Type)+"_"+a.Name)
			} else {
				parts = append(parts, typeCaption(a.Type))
			}
		}
	}
	return parts
}

// typeCaption renders a short, identifier-safe fragment for a source type,
// used by the ArgTypeOnly/ArgTypeAndName caption strategies.
func typeCaption(t types.SourceType) string {
	switch t.Tag {
	case types.TagVoid:
		return "void"
	case types.TagBuiltInNumeric:
		return string(t.NumericKind)
	case types.TagSpecificNumeric:
		return t.SpecificNumeric.Path.RenderMachine()
	case types.TagPointerSizedInteger:
		return t.PointerSized.Path.RenderMachine()
	case types.TagEnum:
		return t.EnumPath.RenderMachine()
	case types.TagClass:
		return t.ClassPath.RenderMachine()
	case types.TagPointerLike:
		inner := typeCaption(*t.PointerLike.Target)
		switch t.PointerLike.Kind {
		case types.PointerLRef, types.PointerRRef:
			return inner + "_ref"
		default:
			return inner + "_ptr"
		}
	case types.TagFunctionPointer:
		return "fn_ptr"
	case types.TagTemplateParameter:
		return t.TemplateParam.Name
	default:
		return "t"
	}
}
