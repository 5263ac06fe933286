package types_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rust-qt/ritual-sub000/internal/types"
)

func TestHostNameFreeFunction(t *testing.T) {
	p, err := types.ParseMachine("func1")
	require.NoError(t, err)
	hp := types.HostName(p, "header1.h", types.HintFunction, types.NameConfig{CrateName: "qt_core"})
	assert.Equal(t, "func1", hp.Name)
	assert.Equal(t, []string{"qt_core", "header1_h"}, hp.ModuleParts)
}

func TestHostNameCollapsesDuplicateCrateAndHeaderSegment(t *testing.T) {
	p, err := types.ParseMachine("func1")
	require.NoError(t, err)
	hp := types.HostName(p, "qt_core", types.HintFunction, types.NameConfig{CrateName: "qt_core"})
	assert.Equal(t, []string{"qt_core"}, hp.ModuleParts)
}

func TestHostNameTypeIsClassCase(t *testing.T) {
	p, err := types.ParseMachine("my_magic_class")
	require.NoError(t, err)
	hp := types.HostName(p, "h.h", types.HintType, types.NameConfig{CrateName: "c"})
	assert.Equal(t, "MyMagicClass", hp.Name)
}

func TestHostNameStripsQPrefix(t *testing.T) {
	p, err := types.ParseMachine("QWidget")
	require.NoError(t, err)
	hp := types.HostName(p, "h.h", types.HintType, types.NameConfig{CrateName: "c", StripQPrefix: true})
	assert.Equal(t, "Widget", hp.Name)
}

func TestHostNameKeywordCollisionSuffixed(t *testing.T) {
	p, err := types.ParseMachine("type")
	require.NoError(t, err)
	hp := types.HostName(p, "h.h", types.HintFunction, types.NameConfig{CrateName: "c"})
	assert.Equal(t, "type_", hp.Name)
}

func TestASCIIOperatorName(t *testing.T) {
	assert.Equal(t, "operator_gt", types.ASCIIOperatorName("operator>"))
	assert.Equal(t, "operator_add", types.ASCIIOperatorName("operator+"))
	assert.Equal(t, "convert_to_T_ref", types.ASCIIOperatorName("operator T&"))
}
