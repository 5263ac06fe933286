package parser

import (
	"context"
	"path/filepath"
	"strconv"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/cpp"

	"github.com/rust-qt/ritual-sub000/internal/db"
	"github.com/rust-qt/ritual-sub000/internal/rerror"
	"github.com/rust-qt/ritual-sub000/internal/types"
)

// Driver owns the tree-sitter parser instance (spec section 5: "the parser
// backend is not safe to initialize from multiple threads"), wired to the
// cpp grammar the way providers/golang/config.go wires the go grammar into
// base.Provider.
type Driver struct {
	parser *sitter.Parser
}

func NewDriver() *Driver {
	p := sitter.NewParser()
	p.SetLanguage(cpp.GetLanguage())
	return &Driver{parser: p}
}

// Run executes the Parser Driver's full protocol (spec section 4.C): it
// parses every include directive's header text, walks the resulting tree,
// and populates database under targetIndex.
func (d *Driver) Run(ctx context.Context, cfg *Config, headers map[string][]byte, database *db.Database, targetIndex int) error {
	w := &walker{
		cfg:    cfg,
		db:     database,
		target: targetIndex,
		known:  newKnownPaths(),
		tpl:    &templateScope{},
	}

	// First pass: register every enum's path so later type resolution can
	// tell an Enum from a Class reference (libclang resolves this via its
	// own symbol table; tree-sitter gives us only syntax, so we do a
	// dedicated pre-pass instead).
	for file, source := range headers {
		tree, err := d.parser.ParseCtx(ctx, nil, source)
		if err != nil || tree == nil {
			return rerror.ParseFailed("parsing " + file + ": " + errString(err))
		}
		collectEnumPaths(tree.RootNode(), source, nil, w.known)
		tree.Close()
	}

	for file, source := range headers {
		if !cfg.IsInsideTargetPaths(file) {
			continue
		}
		tree, err := d.parser.ParseCtx(ctx, nil, source)
		if err != nil || tree == nil {
			return rerror.ParseFailed("parsing " + file + ": " + errString(err))
		}
		w.includeFile = filepath.Base(file)
		w.source = source
		w.walkChildren(tree.RootNode(), nil, db.VisibilityPublic)
		tree.Close()
	}
	return nil
}

func errString(err error) string {
	if err == nil {
		return "unknown error"
	}
	return err.Error()
}

type walker struct {
	cfg         *Config
	db          *db.Database
	target      int
	known       *knownPaths
	tpl         *templateScope
	includeFile string
	source      []byte
}

// collectEnumPaths walks the tree once just to register enum_specifier
// paths, so the second pass can disambiguate type_identifier references.
func collectEnumPaths(node *sitter.Node, source []byte, scope []string, known *knownPaths) {
	if node == nil {
		return
	}
	switch node.Type() {
	case "enum_specifier":
		if nameNode := node.ChildByFieldName("name"); nameNode != nil {
			items := append(pathItemsFromScope(scope), types.PathItem{Name: text(nameNode, source)})
			known.markEnum(types.NewPath(items...))
		}
	case "namespace_definition", "class_specifier", "struct_specifier":
		if nameNode := node.ChildByFieldName("name"); nameNode != nil {
			scope = append(scope, text(nameNode, source))
		}
	}
	for i := 0; i < int(node.NamedChildCount()); i++ {
		collectEnumPaths(node.NamedChild(i), source, scope, known)
	}
}

func pathItemsFromScope(scope []string) []types.PathItem {
	items := make([]types.PathItem, len(scope))
	for i, s := range scope {
		items[i] = types.PathItem{Name: s}
	}
	return items
}

// walkChildren traverses node's named children, descending into namespaces
// and classes while tracking the enclosing path and current visibility
// (spec section 4.C "skip entities marked Private").
func (w *walker) walkChildren(node *sitter.Node, scope []types.PathItem, visibility db.Visibility) {
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		switch child.Type() {
		case "namespace_definition":
			w.walkNamespace(child, scope)
		case "class_specifier":
			w.walkClass(child, scope, db.VisibilityPrivate)
		case "struct_specifier":
			w.walkClass(child, scope, db.VisibilityPublic)
		case "enum_specifier":
			w.walkEnum(child, scope)
		case "function_definition":
			w.walkFunction(child, scope, nil)
		case "declaration":
			w.walkFreeDeclaration(child, scope)
		case "template_declaration":
			w.walkTemplateDeclaration(child, scope, visibility)
		case "access_specifier":
			// handled inline by walkClass, no-op at translation-unit scope
		default:
			// preprocessor directives, comments, using-declarations and
			// anything else not named in spec section 4.C are ignored.
		}
	}
}

func (w *walker) walkNamespace(node *sitter.Node, scope []types.PathItem) {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		// anonymous namespace: contents are still visible at this scope
		w.walkChildren(node, scope, db.VisibilityPublic)
		return
	}
	path := append(append([]types.PathItem{}, scope...), types.PathItem{Name: text(nameNode, w.source)})
	if w.cfg.PathFilter != nil && !w.cfg.PathFilter(types.NewPath(path...)) {
		return
	}
	w.db.AddItem(w.target, db.PayloadNamespace(types.NewPath(path...)), w.includeFile, int(node.StartPoint().Row)+1)
	body := node.ChildByFieldName("body")
	if body != nil {
		w.walkChildren(body, path, db.VisibilityPublic)
	}
}

func (w *walker) walkTemplateDeclaration(node *sitter.Node, scope []types.PathItem, visibility db.Visibility) {
	params := node.ChildByFieldName("parameters")
	names := templateParamNames(params, w.source)
	w.tpl.push(names)
	defer w.tpl.pop()

	inner := lastNamedChild(node)
	if inner == nil {
		return
	}
	switch inner.Type() {
	case "class_specifier":
		w.walkClass(inner, scope, db.VisibilityPrivate)
	case "struct_specifier":
		w.walkClass(inner, scope, db.VisibilityPublic)
	case "function_definition":
		w.walkFunction(inner, scope, nil)
	case "declaration":
		w.walkFreeDeclaration(inner, scope)
	}
}

func templateParamNames(params *sitter.Node, source []byte) []string {
	if params == nil {
		return nil
	}
	var names []string
	for i := 0; i < int(params.NamedChildCount()); i++ {
		p := params.NamedChild(i)
		switch p.Type() {
		case "type_parameter_declaration", "template_type_parameter_declaration":
			if n := p.ChildByFieldName("name"); n != nil {
				names = append(names, text(n, source))
			}
		}
	}
	return names
}

func lastNamedChild(node *sitter.Node) *sitter.Node {
	n := int(node.NamedChildCount())
	if n == 0 {
		return nil
	}
	return node.NamedChild(n - 1)
}

func (w *walker) walkEnum(node *sitter.Node, scope []types.PathItem) {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	path := types.NewPath(append(append([]types.PathItem{}, scope...), types.PathItem{Name: text(nameNode, w.source)})...)
	if w.cfg.PathFilter != nil && !w.cfg.PathFilter(path) {
		return
	}

	body := node.ChildByFieldName("body")
	if body == nil {
		return
	}
	var raw []rawEnumerator
	for i := 0; i < int(body.NamedChildCount()); i++ {
		enumerator := body.NamedChild(i)
		if enumerator.Type() != "enumerator" {
			continue
		}
		nameN := enumerator.ChildByFieldName("name")
		valueN := enumerator.ChildByFieldName("value")
		name := text(nameN, w.source)
		value, ok := evalEnumeratorExpr(valueN, w.source, raw)
		if !ok {
			value = nextEnumValue(raw)
		}
		raw = append(raw, rawEnumerator{name: name, value: value})
	}

	variants := make([]types.EnumVariant, len(raw))
	for i, r := range raw {
		variants[i] = types.EnumVariant{Name: r.name, Value: r.value}
	}

	enum := &db.SourceEnum{Path: path, Variants: variants}
	idx, _ := w.db.AddItem(w.target, db.PayloadEnum(enum), w.includeFile, int(node.StartPoint().Row)+1)
	for _, v := range variants {
		ev := v
		w.db.AddItem(w.target, db.PayloadEnumValue(&ev), w.includeFile, int(node.StartPoint().Row)+1)
	}
	_ = idx
}

type rawEnumerator struct {
	name  string
	value int64
}

func nextEnumValue(prior []rawEnumerator) int64 {
	if len(prior) == 0 {
		return 0
	}
	return prior[len(prior)-1].value + 1
}

// evalEnumeratorExpr handles literal integers and simple bitwise-or
// expressions over previously-seen enumerator names (spec section 8
// example 3: "Questionable = Good | Bad").
func evalEnumeratorExpr(n *sitter.Node, source []byte, prior []rawEnumerator) (int64, bool) {
	if n == nil {
		return 0, false
	}
	switch n.Type() {
	case "number_literal":
		v, err := strconv.ParseInt(strings.TrimRight(text(n, source), "uUlL"), 0, 64)
		if err != nil {
			return 0, false
		}
		return v, true
	case "identifier":
		name := text(n, source)
		for _, r := range prior {
			if r.name == name {
				return r.value, true
			}
		}
		return 0, false
	case "binary_expression":
		left := n.ChildByFieldName("left")
		right := n.ChildByFieldName("right")
		op := ""
		for i := 0; i < int(n.ChildCount()); i++ {
			c := n.Child(i)
			if !c.IsNamed() {
				op = text(c, source)
			}
		}
		lv, lok := evalEnumeratorExpr(left, source, prior)
		rv, rok := evalEnumeratorExpr(right, source, prior)
		if !lok || !rok {
			return 0, false
		}
		switch op {
		case "|":
			return lv | rv, true
		case "&":
			return lv & rv, true
		case "+":
			return lv + rv, true
		case "<<":
			return lv << uint(rv), true
		default:
			return 0, false
		}
	case "parenthesized_expression":
		return evalEnumeratorExpr(lastNamedChild(n), source, prior)
	default:
		return 0, false
	}
}

func (w *walker) walkClass(node *sitter.Node, scope []types.PathItem, defaultVisibility db.Visibility) {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return // anonymous struct/class with no usable path
	}
	path := types.NewPath(append(append([]types.PathItem{}, scope...), types.PathItem{Name: text(nameNode, w.source)})...)
	if w.cfg.PathFilter != nil && !w.cfg.PathFilter(path) {
		return
	}

	class := &db.SourceClass{Path: path, IsPolymorphic: false}
	w.walkBaseClauses(node, path)

	w.db.AddItem(w.target, db.PayloadClass(class), w.includeFile, int(node.StartPoint().Row)+1)

	body := node.ChildByFieldName("body")
	if body == nil {
		return
	}
	visibility := defaultVisibility
	for i := 0; i < int(body.NamedChildCount()); i++ {
		member := body.NamedChild(i)
		switch member.Type() {
		case "access_specifier":
			visibility = accessSpecifierVisibility(text(member, w.source))
		case "function_definition":
			w.walkFunction(member, path, &memberContext{visibility: visibility})
		case "declaration":
			w.walkMemberDeclaration(member, path, visibility)
		case "field_declaration":
			w.walkMemberDeclaration(member, path, visibility)
		}
	}
}

func accessSpecifierVisibility(text string) db.Visibility {
	switch strings.TrimSuffix(strings.TrimSpace(text), ":") {
	case "public":
		return db.VisibilityPublic
	case "protected":
		return db.VisibilityProtected
	default:
		return db.VisibilityPrivate
	}
}

func (w *walker) walkBaseClauses(node *sitter.Node, derived types.Path) {
	for i := 0; i < int(node.NamedChildCount()); i++ {
		c := node.NamedChild(i)
		if c.Type() != "base_class_clause" {
			continue
		}
		for j := 0; j < int(c.NamedChildCount()); j++ {
			baseNameNode := c.NamedChild(j)
			if baseNameNode.Type() != "type_identifier" && baseNameNode.Type() != "qualified_identifier" {
				continue
			}
			basePath := types.NewPath(types.PathItem{Name: text(baseNameNode, w.source)})
			base := &db.BaseSpecifier{
				Derived:    derived,
				Base:       basePath,
				Visibility: db.VisibilityPrivate,
				BaseIndex:  j,
			}
			w.db.AddItem(w.target, db.PayloadBase(base), w.includeFile, int(c.StartPoint().Row)+1)
		}
	}
}

func (w *walker) walkField(node *sitter.Node, classPath types.Path, visibility db.Visibility) {
	if visibility == db.VisibilityPrivate {
		return
	}
	specNode := node.ChildByFieldName("type")
	declNode := node.ChildByFieldName("declarator")
	name := declaratorName(declNode, w.source)
	if name == "" {
		return
	}
	tw := &typeWalker{source: w.source, known: w.known, tpl: w.tpl}
	base, err := tw.baseType(specNode)
	if err != nil {
		return
	}
	fieldType, err := tw.applyDeclarator(base, declNode, hasConstQualifier(node, w.source))
	if err != nil {
		return
	}
	field := &db.SourceField{ClassPath: classPath, Name: name, Type: fieldType, Visibility: visibility}
	w.db.AddItem(w.target, db.PayloadField(field), w.includeFile, int(node.StartPoint().Row)+1)
}

// memberContext carries state specific to a class-member function that a
// free function does not need.
type memberContext struct {
	visibility db.Visibility
}

func (w *walker) walkMemberDeclaration(node *sitter.Node, classPath types.Path, visibility db.Visibility) {
	declNode := node.ChildByFieldName("declarator")
	if declNode != nil && declNode.Type() == "function_declarator" {
		w.walkFunctionSignature(node, declNode, classPath, &memberContext{visibility: visibility})
		return
	}
	if declNode != nil {
		w.walkField(node, classPath, visibility)
	}
}

func (w *walker) walkFreeDeclaration(node *sitter.Node, scope []types.PathItem) {
	declNode := node.ChildByFieldName("declarator")
	if declNode == nil || declNode.Type() != "function_declarator" {
		return
	}
	w.walkFunctionSignature(node, declNode, types.NewPath(scope...), nil)
}

func (w *walker) walkFunction(node *sitter.Node, scope []types.PathItem, mctx *memberContext) {
	declNode := node.ChildByFieldName("declarator")
	w.walkFunctionSignature(node, declNode, types.NewPath(scope...), mctx)
}

// walkFunctionSignature builds a SourceFunction from a declaration/
// function_definition node and its function_declarator, classifying
// constructors/destructors/operators per spec section 4.C.
func (w *walker) walkFunctionSignature(declNode, funcDeclarator *sitter.Node, scope types.Path, mctx *memberContext) {
	if funcDeclarator == nil || funcDeclarator.Type() != "function_declarator" {
		return
	}
	nameDeclarator := funcDeclarator.ChildByFieldName("declarator")
	rawName := declaratorName(nameDeclarator, w.source)
	if rawName == "" {
		return
	}

	scopeLast := ""
	if len(scope.Items) > 0 {
		scopeLast = scope.Last().Name
	}

	var member *db.MemberInfo
	operator := ""
	name := rawName

	switch {
	case mctx != nil && rawName == scopeLast:
		member = &db.MemberInfo{Kind: db.MemberConstructor, Visibility: mctx.visibility}
	case mctx != nil && strings.HasPrefix(rawName, "~"):
		member = &db.MemberInfo{Kind: db.MemberDestructor, Visibility: mctx.visibility}
	case strings.HasPrefix(rawName, "operator"):
		operator = strings.TrimSpace(strings.TrimPrefix(rawName, "operator"))
		if mctx != nil {
			member = &db.MemberInfo{Kind: db.MemberRegular, Visibility: mctx.visibility}
		}
	default:
		if mctx != nil {
			member = &db.MemberInfo{Kind: db.MemberRegular, Visibility: mctx.visibility}
		}
	}

	if mctx != nil && member != nil && member.Kind != db.MemberDestructor {
		member.IsConst = hasTrailingQualifier(funcDeclarator, w.source, "const")
		member.IsVirtual = hasDeclSpecifier(declNode, w.source, "virtual")
		member.IsStatic = hasDeclSpecifier(declNode, w.source, "static")
		member.IsPureVirtual = hasPureSpecifier(funcDeclarator)
	}

	if member != nil && (member.Visibility == db.VisibilityPrivate) {
		return // spec 4.C: skip entities marked Private
	}

	path := types.NewPath(append(append([]types.PathItem{}, scope.Items...), types.PathItem{Name: name})...)
	if w.cfg.PathFilter != nil && !w.cfg.PathFilter(path) {
		return
	}

	tw := &typeWalker{source: w.source, known: w.known, tpl: w.tpl}
	var returnType types.SourceType
	var err error
	if member != nil && (member.Kind == db.MemberConstructor || member.Kind == db.MemberDestructor) {
		returnType = types.Void()
	} else {
		specNode := declNode.ChildByFieldName("type")
		returnType, err = tw.baseType(specNode)
		if err == nil {
			returnType, err = tw.applyDeclarator(returnType, funcDeclarator.ChildByFieldName("declarator"), hasConstQualifier(declNode, w.source))
		}
		if err != nil {
			return
		}
	}

	paramsNode := funcDeclarator.ChildByFieldName("parameters")
	args, variadic := w.walkParameters(paramsNode)

	fn := &db.SourceFunction{
		Path:           path,
		Member:         member,
		Operator:       operator,
		ReturnType:     returnType,
		Arguments:      args,
		AllowsVariadic: variadic,
		VerbatimDecl:   strings.TrimSpace(text(declNode, w.source)),
	}
	w.db.AddItem(w.target, db.PayloadFunction(fn), w.includeFile, int(declNode.StartPoint().Row)+1)
}

func (w *walker) walkParameters(paramsNode *sitter.Node) ([]db.FunctionArgument, bool) {
	if paramsNode == nil {
		return nil, false
	}
	var args []db.FunctionArgument
	variadic := false
	tw := &typeWalker{source: w.source, known: w.known, tpl: w.tpl}
	for i := 0; i < int(paramsNode.NamedChildCount()); i++ {
		p := paramsNode.NamedChild(i)
		switch p.Type() {
		case "variadic_parameter":
			variadic = true
		case "parameter_declaration", "optional_parameter_declaration":
			specNode := p.ChildByFieldName("type")
			declNode := p.ChildByFieldName("declarator")
			base, err := tw.baseType(specNode)
			if err != nil {
				continue
			}
			argType, err := tw.applyDeclarator(base, declNode, hasConstQualifier(p, w.source))
			if err != nil {
				continue
			}
			args = append(args, db.FunctionArgument{
				Name:       declaratorName(declNode, w.source),
				Type:       argType,
				HasDefault: p.Type() == "optional_parameter_declaration",
			})
		}
	}
	return args, variadic
}

func hasTrailingQualifier(funcDeclarator *sitter.Node, source []byte, qualifier string) bool {
	for i := 0; i < int(funcDeclarator.ChildCount()); i++ {
		c := funcDeclarator.Child(i)
		if c.Type() == "type_qualifier" && text(c, source) == qualifier {
			return true
		}
	}
	return false
}

func hasDeclSpecifier(declNode *sitter.Node, source []byte, keyword string) bool {
	for i := 0; i < int(declNode.ChildCount()); i++ {
		c := declNode.Child(i)
		if !c.IsNamed() && text(c, source) == keyword {
			return true
		}
	}
	return false
}

func hasPureSpecifier(funcDeclarator *sitter.Node) bool {
	parent := funcDeclarator.Parent()
	if parent == nil {
		return false
	}
	for i := 0; i < int(parent.ChildCount()); i++ {
		if parent.Child(i).Type() == "number_literal" {
			return true
		}
	}
	return false
}
