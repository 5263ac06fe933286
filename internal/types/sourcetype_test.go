package types_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rust-qt/ritual-sub000/internal/types"
)

func magicClass() types.SourceType {
	p, _ := types.ParseMachine("Magic")
	return types.Class(p)
}

func TestToFFITypeClassByValue(t *testing.T) {
	ffi, err := magicClass().ToFFIType(types.RoleArgument)
	require.NoError(t, err)
	assert.Equal(t, types.ConvValueToPointer, ffi.Conversion)
	assert.Equal(t, types.TagPointerLike, ffi.FFIType.Tag)
	assert.False(t, ffi.FFIType.PointerLike.IsConst)
}

func TestToFFITypeLValueReference(t *testing.T) {
	ref := types.PointerLike(types.PointerLRef, true, magicClass())
	ffi, err := ref.ToFFIType(types.RoleArgument)
	require.NoError(t, err)
	assert.Equal(t, types.ConvReferenceToPointer, ffi.Conversion)
	assert.True(t, ffi.FFIType.PointerLike.IsConst)
}

func TestToFFITypeRValueReferenceFails(t *testing.T) {
	ref := types.PointerLike(types.PointerRRef, false, magicClass())
	_, err := ref.ToFFIType(types.RoleArgument)
	assert.Error(t, err)
}

func TestToFFITypeQFlagsByValue(t *testing.T) {
	enumPath, _ := types.ParseMachine("WindowType")
	qflags, _ := types.ParseMachine("QFlags<" + enumPath.RenderMachine() + ">")
	ffi, err := types.Class(qflags).ToFFIType(types.RoleArgument)
	require.NoError(t, err)
	assert.Equal(t, types.ConvQFlagsToUInt, ffi.Conversion)
	assert.Equal(t, types.TagBuiltInNumeric, ffi.FFIType.Tag)
}

func TestToFFITypeQFlagsByNonConstReferenceFails(t *testing.T) {
	enumPath, _ := types.ParseMachine("WindowType")
	qflags, _ := types.ParseMachine("QFlags<" + enumPath.RenderMachine() + ">")
	ref := types.PointerLike(types.PointerLRef, false, types.Class(qflags))
	_, err := ref.ToFFIType(types.RoleArgument)
	assert.Error(t, err)
}

func TestToFFITypeTemplateParameterFails(t *testing.T) {
	tp := types.TemplateParameter(0, 0, "T")
	_, err := tp.ToFFIType(types.RoleArgument)
	assert.Error(t, err)
}

func TestToFFITypeVoidUnchanged(t *testing.T) {
	ffi, err := types.Void().ToFFIType(types.RoleReturnType)
	require.NoError(t, err)
	assert.Equal(t, types.ConvNoChange, ffi.Conversion)
	assert.True(t, ffi.FFIType.IsVoid())
}

func TestFunctionPointerFFISafe(t *testing.T) {
	fp := types.FunctionPointer(types.BuiltInNumeric(types.NumericInt), []types.SourceType{types.BuiltInNumeric(types.NumericInt)}, false)
	ffi, err := fp.ToFFIType(types.RoleArgument)
	require.NoError(t, err)
	assert.Equal(t, types.ConvNoChange, ffi.Conversion)
}

func TestFunctionPointerRejectsClassByValueArgument(t *testing.T) {
	fp := types.FunctionPointer(types.Void(), []types.SourceType{magicClass()}, false)
	_, err := fp.ToFFIType(types.RoleArgument)
	assert.Error(t, err)
}

func TestFunctionPointerRejectsVariadic(t *testing.T) {
	fp := types.FunctionPointer(types.Void(), nil, true)
	_, err := fp.ToFFIType(types.RoleArgument)
	assert.Error(t, err)
}

func TestSubstituteTemplateParameters(t *testing.T) {
	tp := types.TemplateParameter(0, 0, "T")
	ptr := types.PointerLike(types.PointerPtr, false, tp)
	substituted := ptr.SubstituteTemplateParameters([]types.SourceType{types.BuiltInNumeric(types.NumericInt)}, 0)
	assert.Equal(t, types.TagBuiltInNumeric, substituted.PointerLike.Target.Tag)
}

func TestTraverseVisitsNestedTypes(t *testing.T) {
	fp := types.FunctionPointer(types.Void(), []types.SourceType{types.BuiltInNumeric(types.NumericInt)}, false)
	var tags []types.TypeTag
	fp.Traverse(func(t types.SourceType) { tags = append(tags, t.Tag) })
	assert.Contains(t, tags, types.TagFunctionPointer)
	assert.Contains(t, tags, types.TagVoid)
	assert.Contains(t, tags, types.TagBuiltInNumeric)
}

func TestEqualAcrossVariants(t *testing.T) {
	assert.True(t, types.Void().Equal(types.Void()))
	assert.False(t, types.Void().Equal(types.BuiltInNumeric(types.NumericInt)))
}
