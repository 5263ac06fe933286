package ffi

import (
	"fmt"
	"strings"

	"github.com/rust-qt/ritual-sub000/internal/db"
	"github.com/rust-qt/ritual-sub000/internal/types"
)

// wrapperSource emits the C-style extern "C" wrapper spec section 4.E
// describes: one function per FFI item, delegating to the original call
// site with pointer/value conversions appropriate to the item's role,
// constructed/destructed in place for Stack allocation and via new/delete
// for Heap allocation, and cast-to-unsigned-int for QFlags-like arguments.
func wrapperSource(fn *db.SourceFunction, ffiFn db.FFIFunction, includeFile string) string {
	var b strings.Builder
	if includeFile != "" {
		fmt.Fprintf(&b, "#include <%s>\n\n", includeFile)
	}

	fmt.Fprintf(&b, "extern \"C\" %s %s(%s) {\n", cType(ffiFn.ReturnType), ffiFn.Name, paramList(ffiFn.Arguments))

	var thisExpr string
	var callArgs []string
	var outArg *db.FFIArgument
	for i := range ffiFn.Arguments {
		a := &ffiFn.Arguments[i]
		switch a.Role {
		case db.RoleThis:
			thisExpr = "(*" + a.Name + ")"
		case db.RoleArgumentN:
			callArgs = append(callArgs, callArgExpr(*a))
		case db.RoleReturnValue:
			outArg = a
		}
	}

	switch {
	case isDestructor(fn) && strings.HasSuffix(ffiFn.Name, "_delete"):
		fmt.Fprintf(&b, "    delete this_ptr;\n")
	case isDestructor(fn):
		fmt.Fprintf(&b, "    %s.~%s();\n", thisExpr, classLastName(fn))
	case isConstructor(fn) && outArg != nil:
		fmt.Fprintf(&b, "    new (%s) %s(%s);\n", outArg.Name, classLastName(fn), strings.Join(callArgs, ", "))
	case isConstructor(fn):
		fmt.Fprintf(&b, "    return new %s(%s);\n", classLastName(fn), strings.Join(callArgs, ", "))
	case outArg != nil:
		fmt.Fprintf(&b, "    new (%s) %s(%s);\n", outArg.Name, classLastName(fn), callExpr(fn, thisExpr, callArgs))
	case ffiFn.ReturnType.IsVoid():
		fmt.Fprintf(&b, "    %s;\n", callExpr(fn, thisExpr, callArgs))
	default:
		fmt.Fprintf(&b, "    return %s;\n", callExpr(fn, thisExpr, callArgs))
	}
	b.WriteString("}\n")
	return b.String()
}

func callArgExpr(a db.FFIArgument) string {
	switch a.FFIType.Conversion {
	case types.ConvValueToPointer, types.ConvReferenceToPointer:
		return "*" + a.Name
	case types.ConvQFlagsToUInt:
		return fmt.Sprintf("static_cast<decltype((%s))>(%s)", a.Name, a.Name)
	default:
		return a.Name
	}
}

func callExpr(fn *db.SourceFunction, thisExpr string, args []string) string {
	name := fn.Path.Last().Name
	if fn.Member != nil && thisExpr != "" {
		return fmt.Sprintf("%s.%s(%s)", thisExpr, name, strings.Join(args, ", "))
	}
	return fmt.Sprintf("%s(%s)", fn.Path.RenderHuman(), strings.Join(args, ", "))
}

func classLastName(fn *db.SourceFunction) string {
	return classPathOf(fn.Path).Last().Name
}

func paramList(args []db.FFIArgument) string {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = cType(a.FFIType.FFIType) + " " + a.Name
	}
	return strings.Join(parts, ", ")
}

// cType renders a lowered FFI type (always void, a built-in numeric, an
// enum, or a pointer -- spec section 4.A's ToFFIType guarantees this) as a
// C type name for the wrapper signature.
func cType(t types.SourceType) string {
	switch t.Tag {
	case types.TagVoid:
		return "void"
	case types.TagBuiltInNumeric:
		return cNumericType(t.NumericKind)
	case types.TagEnum:
		return "int"
	case types.TagPointerLike:
		inner := cType(*t.PointerLike.Target)
		if t.PointerLike.IsConst {
			inner = "const " + inner
		}
		return inner + "*"
	default:
		return typeCaption(t)
	}
}

func cNumericType(k types.NumericKind) string {
	switch k {
	case types.NumericBool:
		return "bool"
	case types.NumericChar:
		return "char"
	case types.NumericSignedChar:
		return "signed char"
	case types.NumericUChar:
		return "unsigned char"
	case types.NumericShort:
		return "short"
	case types.NumericUShort:
		return "unsigned short"
	case types.NumericInt:
		return "int"
	case types.NumericUInt:
		return "unsigned int"
	case types.NumericLong:
		return "long"
	case types.NumericULong:
		return "unsigned long"
	case types.NumericLongLong:
		return "long long"
	case types.NumericULongLong:
		return "unsigned long long"
	case types.NumericFloat:
		return "float"
	case types.NumericDouble:
		return "double"
	default:
		return "int"
	}
}
