package types_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rust-qt/ritual-sub000/internal/types"
)

func TestParseRenderMachineRoundTrip(t *testing.T) {
	cases := []string{
		"A",
		"A::B::C",
		"ns1::Enum1",
		"A::B_C_int",
	}
	for _, s := range cases {
		p, err := types.ParseMachine(s)
		require.NoError(t, err, s)
		assert.Equal(t, s, p.RenderMachine(), s)
	}
}

func TestParseMachineWithTemplateArgs(t *testing.T) {
	p, err := types.ParseMachine("QFlags<Qt_WindowType>")
	require.NoError(t, err)
	assert.Equal(t, "QFlags", p.Last().Name)
	require.Len(t, p.Last().Template, 1)
	assert.Equal(t, types.TagClass, p.Last().Template[0].Tag)
}

func TestRenderHumanNested(t *testing.T) {
	p, err := types.ParseMachine("QFlags<Qt_WindowType>")
	require.NoError(t, err)
	assert.Equal(t, "QFlags<Qt::WindowType>", p.RenderHuman())
}

func TestEqualTemplateless(t *testing.T) {
	a, _ := types.ParseMachine("Vector<int>")
	b, _ := types.ParseMachine("Vector<double>")
	assert.False(t, a.Equal(b))
	assert.True(t, a.EqualTemplateless(b))
}

func TestParseMachineRejectsUnbalancedTemplate(t *testing.T) {
	_, err := types.ParseMachine("A<B")
	assert.Error(t, err)
	_, err = types.ParseMachine("A>B")
	assert.Error(t, err)
}

func TestParseMachineRejectsEmpty(t *testing.T) {
	_, err := types.ParseMachine("")
	assert.Error(t, err)
}
