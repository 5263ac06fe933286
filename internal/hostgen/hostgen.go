// Package hostgen implements the Host API Generator (spec section 4.G): it
// turns the FFI items produced by internal/ffi into a tree of host-language
// modules, types and functions, generalized from
// providers/golang/transform.go's AST-lowering passes -- there, a parsed
// node is lowered into Go source node-by-node; here, an FFI item is lowered
// into a host function declaration item-by-item, with an extra overload
// resolution pass spec section 4.G.3 calls for that transform.go's
// one-name-per-node world never needed.
package hostgen

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rust-qt/ritual-sub000/internal/db"
	"github.com/rust-qt/ritual-sub000/internal/ritlog"
	"github.com/rust-qt/ritual-sub000/internal/types"
)

// Config tunes host naming; it is the same NameConfig internal/types uses
// so callers don't juggle two copies of crate_name/strip_q_prefix.
type Config struct {
	types.NameConfig
}

// Generator runs the six phases spec section 4.G describes against one
// database.
type Generator struct {
	cfg       Config
	typeIndex map[string]string // Path.RenderMachine() -> fully-qualified host path, built by Phase 1
}

// New builds a Generator.
func New(cfg Config) *Generator {
	return &Generator{cfg: cfg, typeIndex: map[string]string{}}
}

// ReceiverKind distinguishes how a host function binds to its enclosing
// type, mirroring the "self argument kind" split of original_source's
// process_functions: overloading can't be emulated across receiver kinds.
type ReceiverKind string

const (
	ReceiverNone  ReceiverKind = "none"
	ReceiverConst ReceiverKind = "const_ref"
	ReceiverMut   ReceiverKind = "mut_ref"
)

// HostArgument is one lowered function parameter.
type HostArgument struct {
	Name     string
	HostType string
}

// HostFunction is one host-visible callable: either a free function, a
// plain method, or one variant that will be folded into an overloading
// trait during Phase 3.
type HostFunction struct {
	Path         types.HostPath
	Scope        string // RenderMachine of the method's owning path, "" for free functions
	LastName     string
	Receiver     ReceiverKind
	Args         []HostArgument
	ReturnType   string
	FFIName      string
	IsDestructor bool
	AllocPlace   db.AllocationPlace
	SourceIndex  int
}

// HostType is one placed type declaration (Phase 1).
type HostType struct {
	Path        types.HostPath
	Kind        string // "struct" | "enum"
	Size        int
	SourceIndex int
}

// OverloadGroup is a set of HostFunctions sharing a scope+name+receiver that
// could not be merged into one because their argument-type tuples differ
// (Phase 3).
type OverloadGroup struct {
	Scope    string
	LastName string
	Receiver ReceiverKind
	Variants []HostFunction
}

// Module is one node of the generated module tree (Phase 5).
type Module struct {
	Name        string
	Types       []HostType
	Functions   []HostFunction
	Overloads   []OverloadGroup
	Submodules  []*Module
}

// Output is everything Phase 6 emits.
type Output struct {
	Root       *Module
	Sources    map[string]string // module dotted path -> rendered source
	FFIDecls   string
	ExportInfo db.ExportInfo
}

// Run executes all six phases against database and returns the generated
// tree and rendered sources.
func (g *Generator) Run(database *db.Database) (*Output, error) {
	if err := g.placeTypes(database); err != nil {
		return nil, err
	}

	functions, err := g.lowerFunctions(database)
	if err != nil {
		return nil, err
	}

	plain, groups, destructors := g.resolveOverloads(functions)

	root := g.buildModuleTree(database, plain, groups)
	g.attachDestructors(root, destructors)

	sources := map[string]string{}
	g.renderModule(root, sources)

	return &Output{
		Root:       root,
		Sources:    sources,
		FFIDecls:   g.renderFFIDecls(database),
		ExportInfo: database.ExportInfo(),
	}, nil
}

// placeTypes implements Phase 1: every Class/Enum item gets a host path via
// types.HostName, recorded back onto the Item (spec section 4.G.1).
func (g *Generator) placeTypes(database *db.Database) error {
	for _, it := range database.Items() {
		var path types.Path
		var kind string
		var size int
		switch {
		case it.Payload.Kind == db.ItemType && it.Payload.Class != nil:
			path = it.Payload.Class.Path
			kind = "struct"
			size = it.Payload.Class.Size
		case it.Payload.Kind == db.ItemType && it.Payload.Enum != nil:
			path = it.Payload.Enum.Path
			kind = "enum"
		default:
			continue
		}

		hp := types.HostName(path, it.IncludeFile, types.HintType, g.cfg.NameConfig)
		idx := it.Index
		database.UpdateItem(idx, func(item *db.Item) {
			item.HostPath = hp.String()
			item.HostKind = kind
			item.HostSize = size
		})
		g.typeIndex[path.RenderMachine()] = hp.String()
	}
	return nil
}

// lowerFunctions implements Phase 2: every FFI function becomes a
// HostFunction, with the implicit `this` argument folded into a receiver
// and a Stack return-value out-parameter folded into an owning return type
// (spec section 4.G.2).
func (g *Generator) lowerFunctions(database *db.Database) ([]HostFunction, error) {
	var out []HostFunction
	for _, ffiItem := range database.FFIItems() {
		if ffiItem.Kind != db.FFIKindFunction || ffiItem.Function == nil {
			continue
		}
		fnItem, ok := database.Item(ffiItem.Function.SourceItemIndex)
		if !ok || fnItem.Payload.Function == nil {
			ritlog.L().Debugw("hostgen: FFI item has no resolvable source function, skipping", "ffi_item", ffiItem.Index)
			continue
		}
		sourceFn := fnItem.Payload.Function

		hf := HostFunction{
			LastName:    sourceFn.Path.Last().Name,
			FFIName:     ffiItem.Function.Name,
			AllocPlace:  ffiItem.Function.AllocationPlace,
			SourceIndex: ffiItem.Function.SourceItemIndex,
		}
		if sourceFn.Member != nil {
			hf.Scope = scopePath(sourceFn.Path).RenderMachine()
			hf.IsDestructor = sourceFn.Member.Kind == db.MemberDestructor
			if sourceFn.Member.IsConst {
				hf.Receiver = ReceiverConst
			} else {
				hf.Receiver = ReceiverMut
			}
			if sourceFn.Member.IsStatic || sourceFn.Member.Kind == db.MemberConstructor {
				hf.Receiver = ReceiverNone
			}
		} else {
			hf.Receiver = ReceiverNone
		}

		var returnArg *db.FFIArgument
		for i := range ffiItem.Function.Arguments {
			a := &ffiItem.Function.Arguments[i]
			switch a.Role {
			case db.RoleThis:
				// folded into hf.Receiver; no explicit argument emitted
			case db.RoleArgumentN:
				hf.Args = append(hf.Args, HostArgument{
					Name:     a.Name,
					HostType: g.hostTypeName(a.FFIType.Original),
				})
			case db.RoleReturnValue:
				returnArg = a
			}
		}

		switch {
		case returnArg != nil:
			hf.ReturnType = "Owned<" + g.hostTypeName(returnArg.FFIType.Original) + ">"
		case ffiItem.Function.ReturnType.IsVoid():
			hf.ReturnType = "()"
		default:
			hf.ReturnType = g.hostTypeName(ffiItem.Function.ReturnType)
		}

		hf.Path = types.HostName(sourceFn.Path, fnItem.IncludeFile, types.HintFunction, g.cfg.NameConfig)
		out = append(out, hf)
	}
	return out, nil
}

func scopePath(p types.Path) types.Path {
	if len(p.Items) <= 1 {
		return types.Path{}
	}
	return types.Path{Items: p.Items[:len(p.Items)-1]}
}

// hostTypeName renders a lowered SourceType's host-side spelling, resolving
// class/enum references through the Phase 1 typeIndex when available.
func (g *Generator) hostTypeName(t types.SourceType) string {
	switch t.Tag {
	case types.TagVoid:
		return "()"
	case types.TagBuiltInNumeric, types.TagSpecificNumeric, types.TagPointerSizedInteger:
		return numericHostName(t)
	case types.TagEnum:
		return g.placedName(t.EnumPath)
	case types.TagClass:
		return g.placedName(t.ClassPath)
	case types.TagPointerLike:
		inner := g.hostTypeName(*t.PointerLike.Target)
		switch t.PointerLike.Kind {
		case types.PointerLRef, types.PointerRRef:
			if t.PointerLike.IsConst {
				return "&" + inner
			}
			return "&mut " + inner
		default:
			if t.PointerLike.IsConst {
				return "*const " + inner
			}
			return "*mut " + inner
		}
	case types.TagFunctionPointer:
		return "extern fn(...) -> " + g.hostTypeName(derefOr(t.FunctionPointer.Return))
	default:
		return "std::ffi::c_void"
	}
}

func derefOr(t *types.SourceType) types.SourceType {
	if t == nil {
		return types.Void()
	}
	return *t
}

// placedName looks up the fully-qualified host path a class/enum was given
// in Phase 1. A miss (the type lives in a dependency database not yet
// placed here) falls back to the bare source name rather than failing
// generation.
func (g *Generator) placedName(p types.Path) string {
	if hostPath, ok := g.typeIndex[p.RenderMachine()]; ok {
		return hostPath
	}
	return p.Last().Name
}

func numericHostName(t types.SourceType) string {
	switch t.Tag {
	case types.TagBuiltInNumeric:
		switch t.NumericKind {
		case types.NumericBool:
			return "bool"
		case types.NumericChar, types.NumericSignedChar:
			return "i8"
		case types.NumericUChar:
			return "u8"
		case types.NumericShort:
			return "i16"
		case types.NumericUShort:
			return "u16"
		case types.NumericInt:
			return "i32"
		case types.NumericUInt:
			return "u32"
		case types.NumericLong, types.NumericLongLong:
			return "i64"
		case types.NumericULong, types.NumericULongLong:
			return "u64"
		case types.NumericFloat:
			return "f32"
		case types.NumericDouble:
			return "f64"
		}
	case types.TagSpecificNumeric:
		prefix := "u"
		if t.SpecificNumeric.Signed {
			prefix = "i"
		}
		if t.SpecificNumeric.Float {
			prefix = "f"
		}
		return fmt.Sprintf("%s%d", prefix, t.SpecificNumeric.Bits)
	case types.TagPointerSizedInteger:
		if t.PointerSized.Signed {
			return "isize"
		}
		return "usize"
	}
	return "i32"
}

// resolveOverloads implements Phase 3 and splits out destructors for Phase
// 4, following original_source's process_functions: group by (scope, last
// name), split by receiver kind (overloading can't cross receiver kinds),
// dedup by argument-type tuple, and only synthesize an overloading trait
// when more than one variant remains.
func (g *Generator) resolveOverloads(functions []HostFunction) ([]HostFunction, []OverloadGroup, []HostFunction) {
	var destructors []HostFunction
	var regular []HostFunction
	for _, f := range functions {
		if f.IsDestructor {
			destructors = append(destructors, f)
			continue
		}
		regular = append(regular, f)
	}

	type bucketKey struct {
		scope, name string
		receiver    ReceiverKind
	}
	buckets := map[bucketKey][]HostFunction{}
	var order []bucketKey
	for _, f := range regular {
		k := bucketKey{f.Scope, f.LastName, f.Receiver}
		if _, seen := buckets[k]; !seen {
			order = append(order, k)
		}
		buckets[k] = append(buckets[k], f)
	}

	var plain []HostFunction
	var groups []OverloadGroup
	for _, k := range order {
		variants := dedupByArgTypes(buckets[k])
		if len(variants) == 1 {
			plain = append(plain, variants[0])
			continue
		}
		groups = append(groups, OverloadGroup{Scope: k.scope, LastName: k.name, Receiver: k.receiver, Variants: variants})
	}

	sort.Slice(plain, func(i, j int) bool { return plain[i].LastName < plain[j].LastName })
	sort.Slice(groups, func(i, j int) bool { return groups[i].LastName < groups[j].LastName })
	return plain, groups, destructors
}

func dedupByArgTypes(variants []HostFunction) []HostFunction {
	seen := map[string]bool{}
	var out []HostFunction
	for _, v := range variants {
		key := argTypeKey(v.Args)
		if seen[key] {
			ritlog.L().Warnw("hostgen: dropping method with duplicate argument types", "name", v.LastName, "ffi_name", v.FFIName)
			continue
		}
		seen[key] = true
		out = append(out, v)
	}
	return out
}

func argTypeKey(args []HostArgument) string {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = a.HostType
	}
	return strings.Join(parts, ",")
}

// attachDestructors implements Phase 4: each destructor renders either as
// a CppDeletable-style "delete" (Heap allocation) or as a Drop-equivalent
// "drop" (any other allocation place), chosen in renderFunctionSig (spec
// section 4.G.4). Destructors keep IsDestructor set and are appended to the
// Functions of the module named by their Scope split on "_", created under
// root if absent, after the module tree has been built and sorted.
func (g *Generator) attachDestructors(root *Module, destructors []HostFunction) {
	for _, d := range destructors {
		m := findOrCreateModule(root, modulePartsOf(d.Scope))
		m.Functions = append(m.Functions, d)
	}
}

// buildModuleTree implements Phase 5: types and functions are placed into
// nested modules by their host module path, sorted alphabetically at every
// level, with overload groups nested under a trailing "overloading"
// submodule (spec section 4.G.5).
func (g *Generator) buildModuleTree(database *db.Database, plain []HostFunction, groups []OverloadGroup) *Module {
	root := &Module{Name: g.cfg.CrateName}
	// Host module paths begin with the crate name, which is root itself.
	underRoot := func(parts []string) []string {
		if len(parts) > 0 && parts[0] == g.cfg.CrateName {
			return parts[1:]
		}
		return parts
	}

	for _, it := range database.Items() {
		if it.HostPath == "" {
			continue
		}
		parts, name := splitHostPath(it.HostPath)
		m := findOrCreateModule(root, underRoot(parts))
		var kind string
		var size int
		switch {
		case it.Payload.Kind == db.ItemType && it.Payload.Class != nil:
			kind, size = it.HostKind, it.HostSize
		case it.Payload.Kind == db.ItemType && it.Payload.Enum != nil:
			kind = it.HostKind
		default:
			continue
		}
		m.Types = append(m.Types, HostType{Path: types.HostPath{ModuleParts: parts, Name: name}, Kind: kind, Size: size, SourceIndex: it.Index})
	}

	for _, f := range plain {
		m := findOrCreateModule(root, underRoot(f.Path.ModuleParts))
		m.Functions = append(m.Functions, f)
	}

	for _, grp := range groups {
		overloading := findOrCreateModule(root, append(append([]string{}, modulePartsOf(grp.Scope)...), "overloading"))
		overloading.Overloads = append(overloading.Overloads, grp)
	}

	sortModule(root)
	return root
}

func modulePartsOf(scope string) []string {
	if scope == "" {
		return nil
	}
	return strings.Split(scope, "_")
}

func splitHostPath(hostPath string) (parts []string, name string) {
	segs := strings.Split(hostPath, "::")
	if len(segs) == 0 {
		return nil, hostPath
	}
	return segs[:len(segs)-1], segs[len(segs)-1]
}

func findOrCreateModule(root *Module, parts []string) *Module {
	cur := root
	for _, p := range parts {
		if p == "" {
			continue
		}
		var next *Module
		for _, sub := range cur.Submodules {
			if sub.Name == p {
				next = sub
				break
			}
		}
		if next == nil {
			next = &Module{Name: p}
			cur.Submodules = append(cur.Submodules, next)
		}
		cur = next
	}
	return cur
}

func sortModule(m *Module) {
	sort.Slice(m.Types, func(i, j int) bool { return m.Types[i].Path.Name < m.Types[j].Path.Name })
	sort.Slice(m.Functions, func(i, j int) bool { return m.Functions[i].LastName < m.Functions[j].LastName })
	sort.Slice(m.Submodules, func(i, j int) bool { return m.Submodules[i].Name < m.Submodules[j].Name })
	for _, sub := range m.Submodules {
		sortModule(sub)
	}
}

// renderModule implements Phase 6's host-source emission: one rendered
// source string per module, keyed by its dotted path.
func (g *Generator) renderModule(m *Module, out map[string]string, prefix ...string) {
	path := strings.Join(prefix, ".")
	if path == "" {
		path = m.Name
	}

	var b strings.Builder
	fmt.Fprintf(&b, "pub mod %s {\n", m.Name)
	for _, t := range m.Types {
		if t.Kind == "enum" {
			fmt.Fprintf(&b, "    pub enum %s { /* %d variants */ }\n", t.Path.Name, 0)
		} else {
			fmt.Fprintf(&b, "    pub struct %s { /* size %d */ }\n", t.Path.Name, t.Size)
		}
	}
	for _, f := range m.Functions {
		b.WriteString(renderFunctionSig(f))
	}
	for _, grp := range m.Overloads {
		fmt.Fprintf(&b, "    pub trait %sParameters {\n", toTraitCase(grp.LastName))
		for _, v := range grp.Variants {
			b.WriteString("    " + renderFunctionSig(v))
		}
		b.WriteString("    }\n")
	}
	for _, sub := range m.Submodules {
		fmt.Fprintf(&b, "    // submodule: %s\n", sub.Name)
	}
	b.WriteString("}\n")
	out[path] = b.String()

	for _, sub := range m.Submodules {
		childPrefix := make([]string, len(prefix), len(prefix)+1)
		copy(childPrefix, prefix)
		g.renderModule(sub, out, append(childPrefix, sub.Name)...)
	}
}

func renderFunctionSig(f HostFunction) string {
	var recv string
	switch f.Receiver {
	case ReceiverConst:
		recv = "&self"
	case ReceiverMut:
		recv = "&mut self"
	}
	args := make([]string, 0, len(f.Args)+1)
	if recv != "" {
		args = append(args, recv)
	}
	for _, a := range f.Args {
		args = append(args, a.Name+": "+a.HostType)
	}
	name := f.LastName
	if f.IsDestructor {
		if f.AllocPlace == db.AllocHeap {
			name = "delete"
		} else {
			name = "drop"
		}
	}
	return fmt.Sprintf("    pub fn %s(%s) -> %s { unsafe { %s(%s) } }\n",
		toSnake(name), strings.Join(args, ", "), f.ReturnType, f.FFIName, strings.Join(argNames(f.Args), ", "))
}

func argNames(args []HostArgument) []string {
	out := make([]string, len(args))
	for i, a := range args {
		out[i] = a.Name
	}
	return out
}

func toTraitCase(s string) string {
	if s == "" {
		return s
	}
	r := []rune(strings.ToLower(s))
	r[0] = []rune(strings.ToUpper(string(r[0])))[0]
	return string(r)
}

func toSnake(s string) string {
	return strings.ToLower(s)
}

// renderFFIDecls implements Phase 6's FFI declaration file: one extern "C"
// signature per FFI function, the Rust-side mirror of the C wrapper source
// internal/ffi emitted.
func (g *Generator) renderFFIDecls(database *db.Database) string {
	var b strings.Builder
	b.WriteString("extern \"C\" {\n")
	items := database.FFIItems()
	sort.Slice(items, func(i, j int) bool {
		if items[i].Function == nil || items[j].Function == nil {
			return false
		}
		return items[i].Function.Name < items[j].Function.Name
	})
	for _, it := range items {
		if it.Function == nil {
			continue
		}
		args := make([]string, len(it.Function.Arguments))
		for i, a := range it.Function.Arguments {
			args[i] = fmt.Sprintf("%s: %s", a.Name, g.hostTypeName(a.FFIType.FFIType))
		}
		fmt.Fprintf(&b, "    pub fn %s(%s) -> %s;\n", it.Function.Name, strings.Join(args, ", "), g.hostTypeName(it.Function.ReturnType))
	}
	b.WriteString("}\n")
	return b.String()
}
