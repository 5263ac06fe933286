package hostgen

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rust-qt/ritual-sub000/internal/db"
	"github.com/rust-qt/ritual-sub000/internal/ffi"
	"github.com/rust-qt/ritual-sub000/internal/types"
)

func buildFreeFunctionDatabase(t *testing.T) *db.Database {
	t.Helper()
	database := &db.Database{CrateName: "widgets"}
	database.AddItem(0, db.PayloadFunction(&db.SourceFunction{
		Path:       types.NewPath(types.PathItem{Name: "add"}),
		ReturnType: types.BuiltInNumeric(types.NumericInt),
		Arguments: []db.FunctionArgument{
			{Name: "a", Type: types.BuiltInNumeric(types.NumericInt)},
			{Name: "b", Type: types.BuiltInNumeric(types.NumericInt)},
		},
	}), "lib.h", 1)
	require.NoError(t, ffi.NewGenerator(database).Run(database))
	return database
}

func TestRunPlacesFreeFunctionIntoRootModule(t *testing.T) {
	database := buildFreeFunctionDatabase(t)
	out, err := New(Config{NameConfig: types.NameConfig{CrateName: "widgets"}}).Run(database)
	require.NoError(t, err)

	var found bool
	for _, fns := range out.Root.Submodules {
		for _, f := range fns.Functions {
			if f.LastName == "add" {
				found = true
			}
		}
	}
	for _, f := range out.Root.Functions {
		if f.LastName == "add" {
			found = true
		}
	}
	assert.True(t, found, "expected add() to be placed in some module")
}

func TestRunEmitsFFIDeclsForEveryFFIItem(t *testing.T) {
	database := buildFreeFunctionDatabase(t)
	out, err := New(Config{NameConfig: types.NameConfig{CrateName: "widgets"}}).Run(database)
	require.NoError(t, err)
	assert.True(t, strings.Contains(out.FFIDecls, "extern \"C\""))
	assert.True(t, strings.Contains(out.FFIDecls, "_G_add"))
}

func TestRunMergesOverloadedMethodsIntoOverloadingTrait(t *testing.T) {
	database := &db.Database{CrateName: "t"}
	database.AddItem(0, db.PayloadClass(&db.SourceClass{
		Path:            types.NewPath(types.PathItem{Name: "Point"}),
		AllocationPlace: db.AllocStack,
		Size:            8,
	}), "point.h", 1)
	database.AddItem(0, db.PayloadFunction(&db.SourceFunction{
		Path:       types.NewPath(types.PathItem{Name: "Point"}, types.PathItem{Name: "set"}),
		Member:     &db.MemberInfo{Kind: db.MemberRegular, Visibility: db.VisibilityPublic},
		ReturnType: types.Void(),
		Arguments:  []db.FunctionArgument{{Name: "x", Type: types.BuiltInNumeric(types.NumericInt)}},
	}), "point.h", 2)
	database.AddItem(0, db.PayloadFunction(&db.SourceFunction{
		Path:       types.NewPath(types.PathItem{Name: "Point"}, types.PathItem{Name: "set"}),
		Member:     &db.MemberInfo{Kind: db.MemberRegular, Visibility: db.VisibilityPublic},
		ReturnType: types.Void(),
		Arguments: []db.FunctionArgument{
			{Name: "x", Type: types.BuiltInNumeric(types.NumericInt)},
			{Name: "y", Type: types.BuiltInNumeric(types.NumericInt)},
		},
	}), "point.h", 3)
	require.NoError(t, ffi.NewGenerator(database).Run(database))

	out, err := New(Config{NameConfig: types.NameConfig{CrateName: "t"}}).Run(database)
	require.NoError(t, err)

	var groupFound bool
	var walk func(m *Module)
	walk = func(m *Module) {
		for _, g := range m.Overloads {
			if g.LastName == "set" {
				groupFound = true
				assert.Len(t, g.Variants, 2)
			}
		}
		for _, sub := range m.Submodules {
			walk(sub)
		}
	}
	walk(out.Root)
	assert.True(t, groupFound, "expected the two set() overloads to be grouped")
}

func TestRunGivesHeapDestructorTheDeleteName(t *testing.T) {
	database := &db.Database{CrateName: "t"}
	database.AddItem(0, db.PayloadClass(&db.SourceClass{
		Path:            types.NewPath(types.PathItem{Name: "Widget"}),
		AllocationPlace: db.AllocHeap,
	}), "widget.h", 1)
	database.AddItem(0, db.PayloadFunction(&db.SourceFunction{
		Path:   types.NewPath(types.PathItem{Name: "Widget"}, types.PathItem{Name: "~Widget"}),
		Member: &db.MemberInfo{Kind: db.MemberDestructor, Visibility: db.VisibilityPublic},
	}), "widget.h", 2)
	require.NoError(t, ffi.NewGenerator(database).Run(database))

	out, err := New(Config{NameConfig: types.NameConfig{CrateName: "t"}}).Run(database)
	require.NoError(t, err)

	var found bool
	var walk func(m *Module)
	walk = func(m *Module) {
		for _, f := range m.Functions {
			if f.IsDestructor && f.AllocPlace == db.AllocHeap {
				found = true
			}
		}
		for _, sub := range m.Submodules {
			walk(sub)
		}
	}
	walk(out.Root)
	assert.True(t, found, "expected a Heap-allocation-place destructor to be rendered")
}
