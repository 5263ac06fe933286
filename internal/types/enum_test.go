package types_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rust-qt/ritual-sub000/internal/types"
)

func TestRegularizeEnumVariantsDedupesByValue(t *testing.T) {
	in := []types.EnumVariant{{Name: "Good", Value: 0}, {Name: "Alias", Value: 0}, {Name: "Bad", Value: 1}}
	out := types.RegularizeEnumVariants(in)
	assert.Len(t, out, 2)
	assert.Equal(t, "Good", out[0].Name)
}

func TestRegularizeEnumVariantsStripsCommonPrefixAndSuffix(t *testing.T) {
	in := []types.EnumVariant{
		{Name: "alignment_flag_left", Value: 1},
		{Name: "alignment_flag_right", Value: 2},
	}
	out := types.RegularizeEnumVariants(in)
	assert.Equal(t, "Left", out[0].Name)
	assert.Equal(t, "Right", out[1].Name)
}

func TestRegularizeEnumVariantsKeepsFullNameWhenStripWouldEmpty(t *testing.T) {
	in := []types.EnumVariant{
		{Name: "flag", Value: 1},
		{Name: "flag", Value: 2}, // won't happen (dedup by value keeps both distinct values)
	}
	out := types.RegularizeEnumVariants(in)
	for _, v := range out {
		assert.NotEmpty(t, v.Name)
	}
}

func TestRegularizeEnumVariantsIdempotent(t *testing.T) {
	in := []types.EnumVariant{
		{Name: "window_state_minimized", Value: 1},
		{Name: "window_state_maximized", Value: 2},
		{Name: "window_state_fullscreen", Value: 4},
	}
	once := types.RegularizeEnumVariants(in)
	twice := types.RegularizeEnumVariants(once)
	assert.Equal(t, once, twice)
}

func TestRegularizeEnumVariantsNoCommonAffix(t *testing.T) {
	in := []types.EnumVariant{{Name: "Good", Value: 0}, {Name: "Bad", Value: 1}}
	out := types.RegularizeEnumVariants(in)
	assert.Equal(t, "Good", out[0].Name)
	assert.Equal(t, "Bad", out[1].Name)
}
