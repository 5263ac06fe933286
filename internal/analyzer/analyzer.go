// Package analyzer implements the Post-Parse Analyzers (spec section 4.D):
// four ordered sub-steps that read the database the Parser Driver populated
// and refine it in place, the way internal/manipulator/manipulator.go walks
// and rewrites a syntax tree rather than producing a brand-new one.
package analyzer

import (
	"fmt"

	"github.com/rust-qt/ritual-sub000/internal/db"
	"github.com/rust-qt/ritual-sub000/internal/rerror"
	"github.com/rust-qt/ritual-sub000/internal/types"
)

// ExplicitDestructors implements spec section 4.D.1: every class with at
// least one virtual method (our proxy for "is otherwise polymorphic", since
// the parser does not see base-class virtuals at this stage) that lacks a
// destructor in the database gets one synthesized, public and non-virtual.
func ExplicitDestructors(database *db.Database) error {
	items := database.Items()

	polymorphic := map[string]bool{}
	hasDestructor := map[string]bool{}
	classPath := map[string]types.Path{}

	for _, it := range items {
		if it.Payload.Kind == db.ItemType && it.Payload.Class != nil {
			key := it.Payload.Class.Path.RenderMachine()
			classPath[key] = it.Payload.Class.Path
		}
		if it.Payload.Kind != db.ItemFunction || it.Payload.Function == nil {
			continue
		}
		fn := it.Payload.Function
		scope := scopeOf(fn.Path)
		key := scope.RenderMachine()
		if fn.Member == nil {
			continue
		}
		if fn.Member.IsVirtual {
			polymorphic[key] = true
		}
		if fn.Member.Kind == db.MemberDestructor {
			hasDestructor[key] = true
		}
	}

	for key, path := range classPath {
		if !polymorphic[key] || hasDestructor[key] {
			continue
		}
		dtor := &db.SourceFunction{
			Path: appendName(path, "~"+path.Last().Name),
			Member: &db.MemberInfo{
				Kind:       db.MemberDestructor,
				Visibility: db.VisibilityPublic,
			},
			ReturnType: types.Void(),
		}
		database.AddItem(0, db.PayloadFunction(dtor), "", 0)
	}
	return nil
}

// ChooseAllocationPlaces implements spec section 4.D.2. For every class it
// decides Stack, Heap or NotApplicable and records the choice on the class's
// own Database Item (the FFI Generator reads it back from there).
func ChooseAllocationPlaces(database *db.Database) error {
	items := database.Items()

	inaccessibleDtor := map[string]bool{}
	deletedCopyCtor := map[string]bool{}
	usedByValue := map[string]bool{}

	for _, it := range items {
		if it.Payload.Kind != db.ItemFunction || it.Payload.Function == nil {
			continue
		}
		fn := it.Payload.Function
		if fn.Member != nil && fn.Member.Kind == db.MemberDestructor && fn.Member.Visibility != db.VisibilityPublic {
			inaccessibleDtor[scopeOf(fn.Path).RenderMachine()] = true
		}
		for _, arg := range fn.Arguments {
			if arg.Type.Tag == types.TagClass {
				usedByValue[arg.Type.ClassPath.RenderMachine()] = true
			}
		}
		if fn.ReturnType.Tag == types.TagClass {
			usedByValue[fn.ReturnType.ClassPath.RenderMachine()] = true
		}
	}
	for _, it := range items {
		if it.Payload.Kind == db.ItemField && it.Payload.Field != nil {
			f := it.Payload.Field
			if f.Type.Tag == types.TagClass {
				usedByValue[f.Type.ClassPath.RenderMachine()] = true
			}
		}
	}

	for idx, it := range items {
		if it.Payload.Kind != db.ItemType || it.Payload.Class == nil {
			continue
		}
		key := it.Payload.Class.Path.RenderMachine()
		place := db.AllocNotApplicable
		switch {
		case inaccessibleDtor[key] || deletedCopyCtor[key] || it.Payload.Class.HasInaccessibleDtor || it.Payload.Class.HasDeletedCopyCtor:
			place = db.AllocHeap
		case usedByValue[key] && it.Payload.Class.Size > 0:
			place = db.AllocStack
		case usedByValue[key]:
			place = db.AllocHeap
		}
		database.UpdateItem(idx, func(item *db.Item) {
			if item.Payload.Class != nil {
				item.Payload.Class.AllocationPlace = place
			}
		})
	}
	return nil
}

// Instantiation is one discovered closed template specialization.
type Instantiation struct {
	Template types.Path // the template's own path, without arguments
	Args     []types.SourceType
	Full     types.Path // Template with Args attached to its last item
}

// FindTemplateInstantiations implements spec section 4.D.3: walk every type
// referenced by functions, fields and bases, recording each closed template
// specialization, deduplicated per template.
func FindTemplateInstantiations(database *db.Database) ([]Instantiation, error) {
	seen := map[string]bool{}
	var out []Instantiation

	record := func(t types.SourceType) {
		var path types.Path
		switch t.Tag {
		case types.TagClass:
			path = t.ClassPath
		case types.TagEnum:
			path = t.EnumPath
		default:
			return
		}
		last := path.Last()
		if len(last.Template) == 0 {
			return
		}
		for _, arg := range last.Template {
			if arg.Tag == types.TagTemplateParameter {
				return // not closed
			}
		}
		key := path.RenderMachine()
		if seen[key] {
			return
		}
		seen[key] = true
		templatePath := types.NewPath(append(append([]types.PathItem{}, path.Items[:len(path.Items)-1]...), types.PathItem{Name: last.Name})...)
		out = append(out, Instantiation{Template: templatePath, Args: last.Template, Full: path})
	}

	for _, it := range database.Items() {
		switch it.Payload.Kind {
		case db.ItemFunction:
			if it.Payload.Function == nil {
				continue
			}
			it.Payload.Function.ReturnType.Traverse(record)
			for _, a := range it.Payload.Function.Arguments {
				a.Type.Traverse(record)
			}
		case db.ItemField:
			if it.Payload.Field != nil {
				it.Payload.Field.Type.Traverse(record)
			}
		case db.ItemBase:
			if it.Payload.Base != nil {
				types.Class(it.Payload.Base.Base).Traverse(record)
			}
		}
	}
	return out, nil
}

// InstantiateTemplates implements spec section 4.D.4: for each discovered
// Instantiation, substitute template parameters throughout the template's
// member functions and fields, producing concrete copies of them. Base
// specifiers of the template are not instantiated.
// Instantiations whose arguments reference another not-yet-instantiated
// template are deferred; a deferral that never resolves is a cycle.
func InstantiateTemplates(database *db.Database, discovered []Instantiation) error {
	byTemplate := map[string][]db.Item{}
	for _, it := range database.Items() {
		var path types.Path
		switch it.Payload.Kind {
		case db.ItemFunction:
			if it.Payload.Function == nil {
				continue
			}
			path = scopeOf(it.Payload.Function.Path)
		case db.ItemField:
			if it.Payload.Field == nil {
				continue
			}
			path = it.Payload.Field.ClassPath
		default:
			continue
		}
		byTemplate[path.RenderMachine()] = append(byTemplate[path.RenderMachine()], it)
	}

	pending := discovered
	for round := 0; len(pending) > 0; round++ {
		if round > len(discovered)+1 {
			return rerror.TemplateInstantiationCycle(
				fmt.Sprintf("%d instantiation(s) never resolved: a dependency cycle exists", len(pending)))
		}
		var next []Instantiation
		progressed := false
		for _, inst := range pending {
			if dependsOnPending(inst.Args, pending, inst) {
				next = append(next, inst)
				continue
			}
			instantiateOne(database, byTemplate, inst)
			progressed = true
		}
		if !progressed && len(next) == len(pending) {
			return rerror.TemplateInstantiationCycle(
				fmt.Sprintf("%d instantiation(s) form a dependency cycle", len(pending)))
		}
		pending = next
	}
	return nil
}

func dependsOnPending(args []types.SourceType, pending []Instantiation, self Instantiation) bool {
	for _, a := range args {
		found := false
		a.Traverse(func(sub types.SourceType) {
			if sub.Tag != types.TagClass {
				return
			}
			last := sub.ClassPath.Last()
			if len(last.Template) == 0 {
				return
			}
			for _, p := range pending {
				if p.Full.RenderMachine() != self.Full.RenderMachine() && p.Full.Equal(sub.ClassPath) {
					found = true
				}
			}
		})
		if found {
			return true
		}
	}
	return false
}

func instantiateOne(database *db.Database, byTemplate map[string][]db.Item, inst Instantiation) {
	members := byTemplate[inst.Template.RenderMachine()]
	for _, m := range members {
		switch m.Payload.Kind {
		case db.ItemFunction:
			fn := *m.Payload.Function
			fn.Path = rebasePath(fn.Path, inst.Template, inst.Full)
			fn.ReturnType = fn.ReturnType.SubstituteTemplateParameters(inst.Args, 0)
			newArgs := make([]db.FunctionArgument, len(fn.Arguments))
			for i, a := range fn.Arguments {
				a.Type = a.Type.SubstituteTemplateParameters(inst.Args, 0)
				newArgs[i] = a
			}
			fn.Arguments = newArgs
			database.AddItem(0, db.PayloadFunction(&fn), m.IncludeFile, m.SourceLine)
		case db.ItemField:
			f := *m.Payload.Field
			f.ClassPath = inst.Full
			f.Type = f.Type.SubstituteTemplateParameters(inst.Args, 0)
			database.AddItem(0, db.PayloadField(&f), m.IncludeFile, m.SourceLine)
		}
	}
}

// rebasePath replaces fn's enclosing scope (template) with full (the
// concrete instantiation), keeping the trailing method name.
func rebasePath(fn types.Path, template, full types.Path) types.Path {
	if len(fn.Items) == 0 {
		return fn
	}
	name := fn.Items[len(fn.Items)-1]
	base := make([]types.PathItem, len(full.Items))
	copy(base, full.Items)
	return types.NewPath(append(base, name)...)
}

func scopeOf(p types.Path) types.Path {
	if len(p.Items) == 0 {
		return p
	}
	return types.NewPath(p.Items[:len(p.Items)-1]...)
}

func appendName(p types.Path, name string) types.Path {
	return types.NewPath(append(append([]types.PathItem{}, p.Items...), types.PathItem{Name: name})...)
}
