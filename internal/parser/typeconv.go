package parser

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/rust-qt/ritual-sub000/internal/rerror"
	"github.com/rust-qt/ritual-sub000/internal/types"
)

// primitiveTypeKeywords maps tree-sitter cpp's primitive_type token text to
// the numeric kinds of spec section 3. "signed"/"unsigned" qualify a
// following primitive_type sibling and are folded in by sizedType.
var primitiveTypeKeywords = map[string]types.NumericKind{
	"bool":      types.NumericBool,
	"char":      types.NumericChar,
	"short":     types.NumericShort,
	"int":       types.NumericInt,
	"long":      types.NumericLong,
	"float":     types.NumericFloat,
	"double":    types.NumericDouble,
}

// knownPaths is populated while walking classes/enums so that a bare
// type_identifier can be resolved to Class vs Enum; anything unseen
// defaults to Class, matching libclang's own behavior of resolving a
// forward-declared or externally-defined type as an opaque record.
type knownPaths struct {
	enums map[string]bool
}

func newKnownPaths() *knownPaths {
	return &knownPaths{enums: map[string]bool{}}
}

func (k *knownPaths) markEnum(p types.Path) {
	k.enums[p.RenderMachine()] = true
}

func (k *knownPaths) isEnum(p types.Path) bool {
	return k.enums[p.RenderMachine()]
}

// templateScope tracks the names of enclosing template parameters (for
// class templates and function templates) so a bare identifier that
// shadows one resolves to TemplateParameter instead of Class (spec section
// 4.C "nested_level is derived by counting the enclosing template scopes").
type templateScope struct {
	levels [][]string // levels[n][i] = name of parameter i at nested level n
}

func (s *templateScope) push(names []string) {
	s.levels = append(s.levels, names)
}

func (s *templateScope) pop() {
	s.levels = s.levels[:len(s.levels)-1]
}

func (s *templateScope) lookup(name string) (nestedLevel, index int, ok bool) {
	for lvl := len(s.levels) - 1; lvl >= 0; lvl-- {
		for i, n := range s.levels[lvl] {
			if n == name {
				return lvl, i, true
			}
		}
	}
	return 0, 0, false
}

// typeWalker converts tree-sitter type/declarator nodes into SourceTypes.
type typeWalker struct {
	source []byte
	known  *knownPaths
	tpl    *templateScope
}

func text(n *sitter.Node, source []byte) string {
	if n == nil {
		return ""
	}
	return string(source[n.StartByte():n.EndByte()])
}

// baseType converts a "type specifier" node (primitive_type, type_identifier,
// qualified_identifier, template_type, struct_specifier-as-type, sized_type_specifier)
// plus a leading const qualifier, into a SourceType with no indirection yet
// -- indirection is peeled separately from the accompanying declarator.
func (w *typeWalker) baseType(specNode *sitter.Node) (result types.SourceType, err error) {
	if specNode == nil {
		return types.Void(), nil
	}
	switch specNode.Type() {
	case "primitive_type":
		name := text(specNode, w.source)
		if name == "void" {
			return types.Void(), nil
		}
		if kind, ok := primitiveTypeKeywords[name]; ok {
			return types.BuiltInNumeric(kind), nil
		}
		if t, ok := types.NormalizeTypedef(name); ok {
			return t, nil
		}
		return types.BuiltInNumeric(types.NumericInt), nil

	case "sized_type_specifier":
		return w.sizedType(specNode)

	case "type_identifier", "qualified_identifier", "namespace_identifier":
		name := text(specNode, w.source)
		if lvl, idx, ok := w.tpl.lookup(lastSegment(name)); ok {
			return types.TemplateParameter(lvl, idx, lastSegment(name)), nil
		}
		if t, ok := types.NormalizeTypedef(name); ok {
			return t, nil
		}
		p, perr := types.ParseMachine(strings.ReplaceAll(name, "::", "::"))
		if perr != nil {
			return types.SourceType{}, rerror.Wrap(rerror.KindParse, "ParseFailed", "parsing type name "+name, perr)
		}
		if w.known.isEnum(p) {
			return types.Enum(p), nil
		}
		return types.Class(p), nil

	case "template_type":
		return w.templateType(specNode)

	case "struct_specifier", "class_specifier", "enum_specifier":
		// Anonymous/inline type definitions used as a type specifier;
		// the declaration itself was already (or will be) walked as its
		// own item, here we just need its path.
		nameNode := specNode.ChildByFieldName("name")
		if nameNode == nil {
			return types.Void(), rerror.New(rerror.KindParse, "ParseFailed", "anonymous type used as a declarator specifier")
		}
		p := types.NewPath(types.PathItem{Name: text(nameNode, w.source)})
		if specNode.Type() == "enum_specifier" {
			return types.Enum(p), nil
		}
		return types.Class(p), nil

	default:
		return types.SourceType{}, rerror.New(rerror.KindParse, "ParseFailed", "unsupported type specifier node: "+specNode.Type())
	}
}

func (w *typeWalker) sizedType(n *sitter.Node) (types.SourceType, error) {
	raw := text(n, w.source)
	fields := strings.Fields(raw)
	signed := true
	bits := "int"
	for _, f := range fields {
		switch f {
		case "unsigned":
			signed = false
		case "signed":
			signed = true
		case "long", "short", "int", "char":
			bits = f
		}
	}
	switch {
	case strings.Count(raw, "long") >= 2:
		if signed {
			return types.BuiltInNumeric(types.NumericLongLong), nil
		}
		return types.BuiltInNumeric(types.NumericULongLong), nil
	case bits == "long":
		if signed {
			return types.BuiltInNumeric(types.NumericLong), nil
		}
		return types.BuiltInNumeric(types.NumericULong), nil
	case bits == "short":
		if signed {
			return types.BuiltInNumeric(types.NumericShort), nil
		}
		return types.BuiltInNumeric(types.NumericUShort), nil
	case bits == "char":
		if signed {
			return types.BuiltInNumeric(types.NumericSignedChar), nil
		}
		return types.BuiltInNumeric(types.NumericUChar), nil
	default:
		if signed {
			return types.BuiltInNumeric(types.NumericInt), nil
		}
		return types.BuiltInNumeric(types.NumericUInt), nil
	}
}

func (w *typeWalker) templateType(n *sitter.Node) (types.SourceType, error) {
	nameNode := n.ChildByFieldName("name")
	argsNode := n.ChildByFieldName("arguments")
	name := text(nameNode, w.source)

	var templateArgs []types.SourceType
	if argsNode != nil {
		for i := 0; i < int(argsNode.NamedChildCount()); i++ {
			argNode := argsNode.NamedChild(i)
			if argNode.Type() == "type_descriptor" {
				t, err := w.typeDescriptor(argNode)
				if err != nil {
					return types.SourceType{}, err
				}
				templateArgs = append(templateArgs, t)
			}
		}
	}

	path := types.NewPath(types.PathItem{Name: lastSegment(name), Template: templateArgs})
	if w.known.isEnum(path) {
		return types.Enum(path), nil
	}
	return types.Class(path), nil
}

// typeDescriptor converts a "type_descriptor" node (used inside template
// argument lists and casts: a type specifier plus an optional abstract
// declarator) into a SourceType.
func (w *typeWalker) typeDescriptor(n *sitter.Node) (types.SourceType, error) {
	specNode := n.ChildByFieldName("type")
	base, err := w.baseType(specNode)
	if err != nil {
		return types.SourceType{}, err
	}
	declNode := n.ChildByFieldName("declarator")
	isConst := hasConstQualifier(n, w.source)
	return w.applyDeclarator(base, declNode, isConst)
}

// applyDeclarator peels pointer_declarator / reference_declarator /
// abstract_pointer_declarator / abstract_reference_declarator layers around
// base, returning the indirected SourceType; the innermost identifier's
// name is read separately by declaratorName.
func (w *typeWalker) applyDeclarator(base types.SourceType, decl *sitter.Node, isConst bool) (types.SourceType, error) {
	if decl == nil {
		return base, nil
	}
	switch decl.Type() {
	case "pointer_declarator", "abstract_pointer_declarator":
		inner := decl.ChildByFieldName("declarator")
		innerType, err := w.applyDeclarator(base, inner, innerConst(decl, w.source))
		if err != nil {
			return types.SourceType{}, err
		}
		return types.PointerLike(types.PointerPtr, isConst, innerType), nil

	case "reference_declarator", "abstract_reference_declarator":
		kind := types.PointerLRef
		if strings.Count(text(decl, w.source), "&") >= 2 {
			kind = types.PointerRRef
		}
		inner := decl.ChildByFieldName("declarator")
		innerType, err := w.applyDeclarator(base, inner, isConst)
		if err != nil {
			return types.SourceType{}, err
		}
		return types.PointerLike(kind, isConst, innerType), nil

	case "identifier", "field_identifier", "type_identifier", "destructor_name", "operator_name":
		return base, nil

	default:
		return base, nil
	}
}

// declaratorName extracts the identifier text at the bottom of a
// (possibly nested) declarator.
func declaratorName(decl *sitter.Node, source []byte) string {
	if decl == nil {
		return ""
	}
	switch decl.Type() {
	case "identifier", "field_identifier", "destructor_name", "operator_name", "type_identifier":
		return text(decl, source)
	case "function_declarator":
		return declaratorName(decl.ChildByFieldName("declarator"), source)
	default:
		if inner := decl.ChildByFieldName("declarator"); inner != nil {
			return declaratorName(inner, source)
		}
		return ""
	}
}

func hasConstQualifier(n *sitter.Node, source []byte) bool {
	for i := 0; i < int(n.ChildCount()); i++ {
		c := n.Child(i)
		if c.Type() == "type_qualifier" && text(c, source) == "const" {
			return true
		}
	}
	return false
}

func innerConst(decl *sitter.Node, source []byte) bool {
	return hasConstQualifier(decl, source)
}

func lastSegment(name string) string {
	idx := strings.LastIndex(name, "::")
	if idx < 0 {
		return name
	}
	return name[idx+2:]
}
