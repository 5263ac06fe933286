package ffi

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rust-qt/ritual-sub000/internal/db"
	"github.com/rust-qt/ritual-sub000/internal/types"
)

func findFFI(database *db.Database, pred func(*db.FFIFunction) bool) (*db.FFIFunction, bool) {
	for _, it := range database.FFIItems() {
		if it.Function != nil && pred(it.Function) {
			return it.Function, true
		}
	}
	return nil, false
}

func TestRunFreeFunctionGetsFFIItem(t *testing.T) {
	database := &db.Database{CrateName: "t"}
	database.AddItem(0, db.PayloadFunction(&db.SourceFunction{
		Path:       types.NewPath(types.PathItem{Name: "add"}),
		ReturnType: types.BuiltInNumeric(types.NumericInt),
		Arguments: []db.FunctionArgument{
			{Name: "a", Type: types.BuiltInNumeric(types.NumericInt)},
			{Name: "b", Type: types.BuiltInNumeric(types.NumericInt)},
		},
	}), "lib.h", 1)

	require.NoError(t, NewGenerator(database).Run(database))

	fn, ok := findFFI(database, func(f *db.FFIFunction) bool { return strings.Contains(f.Name, "_G_add") })
	require.True(t, ok, "expected a free-function FFI item for add()")
	assert.Len(t, fn.Arguments, 2)
	assert.True(t, strings.Contains(fn.WrapperSource, "extern \"C\""))
}

func TestRunConstructorByValueUsesStackNaming(t *testing.T) {
	database := &db.Database{CrateName: "t"}
	database.AddItem(0, db.PayloadClass(&db.SourceClass{
		Path:            types.NewPath(types.PathItem{Name: "Point"}),
		Size:            8,
		AllocationPlace: db.AllocStack,
	}), "point.h", 1)
	database.AddItem(0, db.PayloadFunction(&db.SourceFunction{
		Path:       types.NewPath(types.PathItem{Name: "Point"}, types.PathItem{Name: "Point"}),
		Member:     &db.MemberInfo{Kind: db.MemberConstructor, Visibility: db.VisibilityPublic},
		ReturnType: types.Void(),
	}), "point.h", 2)

	require.NoError(t, NewGenerator(database).Run(database))

	_, ok := findFFI(database, func(f *db.FFIFunction) bool { return f.Name == "Point_constructor" })
	assert.True(t, ok, "expected a Point_constructor FFI item for the stack-allocated constructor")
}

func TestRunHeapConstructorEmitsNewAndDeleteNaming(t *testing.T) {
	database := &db.Database{CrateName: "t"}
	database.AddItem(0, db.PayloadClass(&db.SourceClass{
		Path:            types.NewPath(types.PathItem{Name: "Widget"}),
		AllocationPlace: db.AllocHeap,
	}), "widget.h", 1)
	database.AddItem(0, db.PayloadFunction(&db.SourceFunction{
		Path:       types.NewPath(types.PathItem{Name: "Widget"}, types.PathItem{Name: "Widget"}),
		Member:     &db.MemberInfo{Kind: db.MemberConstructor, Visibility: db.VisibilityPublic},
		ReturnType: types.Void(),
	}), "widget.h", 2)
	database.AddItem(0, db.PayloadFunction(&db.SourceFunction{
		Path:   types.NewPath(types.PathItem{Name: "Widget"}, types.PathItem{Name: "~Widget"}),
		Member: &db.MemberInfo{Kind: db.MemberDestructor, Visibility: db.VisibilityPublic},
	}), "widget.h", 3)

	require.NoError(t, NewGenerator(database).Run(database))

	_, ok := findFFI(database, func(f *db.FFIFunction) bool { return f.Name == "Widget_new" })
	assert.True(t, ok, "expected Widget_new for the heap-allocated constructor")
	_, ok = findFFI(database, func(f *db.FFIFunction) bool { return f.Name == "Widget_destructor" })
	assert.True(t, ok, "expected Widget_destructor for the destructor itself")
	_, ok = findFFI(database, func(f *db.FFIFunction) bool { return f.Name == "Widget_delete" })
	assert.True(t, ok, "expected an additional Widget_delete wrapper for the heap-allocated class")
}

func TestRunSkipsPrivateMembers(t *testing.T) {
	database := &db.Database{CrateName: "t"}
	database.AddItem(0, db.PayloadFunction(&db.SourceFunction{
		Path:       types.NewPath(types.PathItem{Name: "Widget"}, types.PathItem{Name: "hidden"}),
		Member:     &db.MemberInfo{Kind: db.MemberRegular, Visibility: db.VisibilityPrivate},
		ReturnType: types.Void(),
	}), "widget.h", 1)

	require.NoError(t, NewGenerator(database).Run(database))
	assert.Empty(t, database.FFIItems())
}

func TestRunDisambiguatesOverloadedMethodsByArgumentNames(t *testing.T) {
	database := &db.Database{CrateName: "t"}
	database.AddItem(0, db.PayloadFunction(&db.SourceFunction{
		Path:       types.NewPath(types.PathItem{Name: "Point"}, types.PathItem{Name: "set"}),
		Member:     &db.MemberInfo{Kind: db.MemberRegular, Visibility: db.VisibilityPublic},
		ReturnType: types.Void(),
		Arguments:  []db.FunctionArgument{{Name: "x", Type: types.BuiltInNumeric(types.NumericInt)}},
	}), "point.h", 1)
	database.AddItem(0, db.PayloadFunction(&db.SourceFunction{
		Path:   types.NewPath(types.PathItem{Name: "Point"}, types.PathItem{Name: "set"}),
		Member: &db.MemberInfo{Kind: db.MemberRegular, Visibility: db.VisibilityPublic},
		ReturnType: types.Void(),
		Arguments: []db.FunctionArgument{
			{Name: "x", Type: types.BuiltInNumeric(types.NumericInt)},
			{Name: "y", Type: types.BuiltInNumeric(types.NumericInt)},
		},
	}), "point.h", 2)

	require.NoError(t, NewGenerator(database).Run(database))

	names := map[string]bool{}
	for _, it := range database.FFIItems() {
		names[it.Function.Name] = true
	}
	assert.Len(t, names, 2, "both overloads must resolve to distinct FFI names")
}
