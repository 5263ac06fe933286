// Package ffi implements the FFI Generator (spec section 4.E): it projects
// every eligible Source Function onto one or more ABI-safe FFI Items,
// deriving disambiguated names and C wrapper source the way
// providers/golang/transform.go lowers a parsed AST node into emitted Go
// source rather than mutating the original tree in place.
package ffi

import (
	"fmt"
	"strings"

	"github.com/rust-qt/ritual-sub000/internal/db"
	"github.com/rust-qt/ritual-sub000/internal/rerror"
	"github.com/rust-qt/ritual-sub000/internal/ritlog"
	"github.com/rust-qt/ritual-sub000/internal/types"
)

// PathFilter optionally vetoes a source function from FFI generation
// entirely, independent of the built-in eligibility rules (spec section
// 4.E, "anything the path-filter vetoes"). A nil filter admits everything.
type PathFilter func(p types.Path) bool

// Generator derives FFI items for one database's functions.
type Generator struct {
	IncludeFileOf func(sourceItemIndex int) string
	Filter        PathFilter
}

// NewGenerator builds a Generator reading include-file provenance straight
// off the Database Item (spec section 3's IncludeFile field).
func NewGenerator(database *db.Database) *Generator {
	return &Generator{
		IncludeFileOf: func(idx int) string {
			it, ok := database.Item(idx)
			if !ok {
				return ""
			}
			return it.IncludeFile
		},
	}
}

// candidate is one not-yet-named FFI function awaiting disambiguation.
type candidate struct {
	sourceIndex int
	fn          *db.SourceFunction
	ffi         db.FFIFunction
	baseName    string
}

// Run implements the public contract of spec section 4.E: for every
// eligible source function in database, emit one or more FFI items,
// disambiguating collisions and failing the whole step with
// FfiNameCollision if no caption resolves a clash.
func (g *Generator) Run(database *db.Database) error {
	items := database.Items()
	var candidates []candidate

	for idx, it := range items {
		if it.Payload.Kind != db.ItemFunction || it.Payload.Function == nil {
			continue
		}
		fn := it.Payload.Function
		if !g.eligible(fn) {
			ritlog.L().Debugw("ffi: skipping ineligible function", "path", fn.Path.RenderHuman())
			continue
		}
		place := allocationPlaceOf(database, fn)
		ffiFn, err := g.lower(fn, place)
		if err != nil {
			ritlog.L().Debugw("ffi: skipping function that failed to lower", "path", fn.Path.RenderHuman(), "error", err)
			continue
		}
		ffiFn.SourceItemIndex = idx
		ffiFn.AllocationPlace = place
		includeFile := g.IncludeFileOf(idx)
		candidates = append(candidates, candidate{
			sourceIndex: idx,
			fn:          fn,
			ffi:         ffiFn,
			baseName:    g.baseName(fn, place, includeFile),
		})

		if isDestructor(fn) && place == db.AllocHeap {
			del := ffiFn
			del.Name = classNameOf(fn.Path) + "_delete"
			del.SourceItemIndex = idx
			candidates = append(candidates, candidate{sourceIndex: idx, fn: fn, ffi: del, baseName: del.Name})
		}
	}

	byBase := map[string][]int{}
	for i, c := range candidates {
		byBase[c.baseName] = append(byBase[c.baseName], i)
	}

	for base, group := range byBase {
		if len(group) == 1 {
			candidates[group[0]].ffi.Name = base
			continue
		}
		if err := disambiguate(candidates, group, base); err != nil {
			return err
		}
	}

	for _, c := range candidates {
		includeFile := g.IncludeFileOf(c.sourceIndex)
		c.ffi.WrapperSource = wrapperSource(c.fn, c.ffi, includeFile)
		database.AddFFIItem(c.sourceIndex, db.FFIItem{
			Kind:       db.FFIKindFunction,
			Function:   &c.ffi,
			SourceItem: c.sourceIndex,
		})
	}
	return nil
}

// disambiguate mutates candidates[group[i]].ffi.Name in place, escalating
// through captionEscalation until every member of group has a unique name
// or the escalation is exhausted (spec section 4.E.2/3).
func disambiguate(candidates []candidate, group []int, base string) error {
	strategy := captionEscalation[0]
	for {
		seen := map[string]int{}
		names := make([]string, len(group))
		ok := true
		for i, idx := range group {
			c := candidates[idx]
			capt := caption(c.fn, strategy)
			name := base
			if capt != "" {
				name = base + "_" + capt
			}
			names[i] = name
			seen[name]++
			if seen[name] > 1 {
				ok = false
			}
		}
		if ok {
			for i, idx := range group {
				candidates[idx].ffi.Name = names[i]
			}
			return nil
		}
		next, more := strategy.Next()
		if !more {
			members := make([]string, len(group))
			for i, idx := range group {
				members[i] = candidates[idx].fn.Path.RenderHuman()
			}
			return rerror.FfiNameCollision(fmt.Sprintf(
				"no caption disambiguates the %q overload group: %s", base, strings.Join(members, ", ")))
		}
		strategy = next
	}
}

// eligible implements spec section 4.E's eligibility filter: private
// members, signals, unresolved template functions and path-filter vetoes
// are excluded up front, before any FFI-type conversion is attempted.
func (g *Generator) eligible(fn *db.SourceFunction) bool {
	if fn.Member != nil {
		if fn.Member.Visibility == db.VisibilityPrivate {
			return false
		}
		if fn.Member.IsSignal {
			return false
		}
	}
	hasUnresolvedTemplateParam := func(t types.SourceType) bool {
		found := false
		t.Traverse(func(sub types.SourceType) {
			if sub.Tag == types.TagTemplateParameter {
				found = true
			}
		})
		return found
	}
	if hasUnresolvedTemplateParam(fn.ReturnType) {
		return false
	}
	for _, a := range fn.Arguments {
		if hasUnresolvedTemplateParam(a.Type) {
			return false
		}
	}
	if g.Filter != nil && !g.Filter(fn.Path) {
		return false
	}
	return true
}

func isDestructor(fn *db.SourceFunction) bool {
	return fn.Member != nil && fn.Member.Kind == db.MemberDestructor
}

func isConstructor(fn *db.SourceFunction) bool {
	return fn.Member != nil && fn.Member.Kind == db.MemberConstructor
}

func classNameOf(fn types.Path) string {
	if len(fn.Items) < 2 {
		return ""
	}
	return fn.Items[len(fn.Items)-2].Name
}

func classPathOf(fn types.Path) types.Path {
	if len(fn.Items) < 2 {
		return types.Path{}
	}
	return types.NewPath(fn.Items[:len(fn.Items)-1]...)
}

// allocationPlaceOf resolves the owning class's chosen allocation place
// (spec section 4.D.2) for a member function, or NotApplicable for free
// functions and functions on classes the analyzer never visited.
func allocationPlaceOf(database *db.Database, fn *db.SourceFunction) db.AllocationPlace {
	if fn.Member == nil {
		return db.AllocNotApplicable
	}
	scope := classPathOf(fn.Path)
	for _, it := range database.Items() {
		if it.Payload.Kind == db.ItemType && it.Payload.Class != nil && it.Payload.Class.Path.Equal(scope) {
			return it.Payload.Class.AllocationPlace
		}
	}
	return db.AllocNotApplicable
}

// lower implements spec section 4.E's signature derivation rule.
func (g *Generator) lower(fn *db.SourceFunction, place db.AllocationPlace) (db.FFIFunction, error) {
	var args []db.FFIArgument

	if fn.Member != nil && !fn.Member.IsStatic && !isConstructor(fn) {
		thisType := types.PointerLike(types.PointerPtr, fn.Member.IsConst, types.Class(classPathOf(fn.Path)))
		ffiThis, err := thisType.ToFFIType(types.RoleArgument)
		if err != nil {
			return db.FFIFunction{}, err
		}
		args = append(args, db.FFIArgument{Role: db.RoleThis, FFIType: ffiThis, Name: "this_ptr"})
	}

	for i, a := range fn.Arguments {
		ffiType, err := a.Type.ToFFIType(types.RoleArgument)
		if err != nil {
			return db.FFIFunction{}, err
		}
		name := a.Name
		if name == "" {
			name = fmt.Sprintf("arg%d", i+1)
		}
		args = append(args, db.FFIArgument{Role: db.RoleArgumentN, ArgIndex: i, FFIType: ffiType, Name: name})
	}

	returnType := fn.ReturnType
	if isConstructor(fn) {
		returnType = types.Class(classPathOf(fn.Path))
	}
	if isDestructor(fn) {
		returnType = types.Void()
	}

	ffiReturn := types.Void()
	if returnType.Tag == types.TagClass && !returnType.IsQFlagsLike() {
		switch place {
		case db.AllocStack:
			outType, err := types.PointerLike(types.PointerPtr, false, returnType).ToFFIType(types.RoleArgument)
			if err != nil {
				return db.FFIFunction{}, err
			}
			args = append(args, db.FFIArgument{Role: db.RoleReturnValue, FFIType: outType, Name: "output"})
			ffiReturn = types.Void()
		default: // Heap, NotApplicable default to a heap pointer for by-value class returns
			heapType, err := types.PointerLike(types.PointerPtr, false, returnType).ToFFIType(types.RoleArgument)
			if err != nil {
				return db.FFIFunction{}, err
			}
			ffiReturn = heapType.FFIType
		}
	} else if !returnType.IsVoid() {
		lowered, err := returnType.ToFFIType(types.RoleReturnType)
		if err != nil {
			return db.FFIFunction{}, err
		}
		ffiReturn = lowered.FFIType
	}

	return db.FFIFunction{Arguments: args, ReturnType: ffiReturn}, nil
}

// baseName implements spec section 4.E.1's naming rule, including the
// constructor/destructor special cases and the allocation-place suffix.
func (g *Generator) baseName(fn *db.SourceFunction, place db.AllocationPlace, includeFile string) string {
	if fn.Member != nil {
		scope := classPathOf(fn.Path)
		if isConstructor(fn) {
			class := scope.Last().Name
			if place == db.AllocHeap {
				return class + "_new"
			}
			return class + "_constructor"
		}
		if isDestructor(fn) {
			return scope.Last().Name + "_destructor"
		}
		method := methodName(fn)
		base := sanitizedFile(includeFile) + "_" + scope.Last().Name + "_" + method
		return base + allocationSuffix(place)
	}
	method := methodName(fn)
	base := sanitizedFile(includeFile) + "_G_" + method
	return base + allocationSuffix(place)
}

func methodName(fn *db.SourceFunction) string {
	name := fn.Path.Last().Name
	if strings.HasPrefix(name, "operator") {
		return types.ASCIIOperatorName(name)
	}
	return name
}

func allocationSuffix(place db.AllocationPlace) string {
	switch place {
	case db.AllocStack:
		return "_to_output"
	case db.AllocHeap:
		return "_as_ptr"
	default:
		return ""
	}
}

func sanitizedFile(includeFile string) string {
	if includeFile == "" {
		return "lib"
	}
	var b strings.Builder
	for _, r := range includeFile {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return strings.Trim(b.String(), "_")
}
