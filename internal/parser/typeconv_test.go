package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rust-qt/ritual-sub000/internal/types"
)

func TestLastSegment(t *testing.T) {
	assert.Equal(t, "QRect", lastSegment("QRect"))
	assert.Equal(t, "QRect", lastSegment("Qt::Gui::QRect"))
	assert.Equal(t, "", lastSegment(""))
}

func TestKnownPathsMarkAndIsEnum(t *testing.T) {
	known := newKnownPaths()
	path := types.NewPath(types.PathItem{Name: "Direction"})
	assert.False(t, known.isEnum(path))

	known.markEnum(path)
	assert.True(t, known.isEnum(path))
	assert.False(t, known.isEnum(types.NewPath(types.PathItem{Name: "Other"})))
}

func TestTemplateScopePushLookupPop(t *testing.T) {
	scope := &templateScope{}
	_, _, ok := scope.lookup("T")
	assert.False(t, ok)

	scope.push([]string{"T", "U"})
	lvl, idx, ok := scope.lookup("U")
	assert.True(t, ok)
	assert.Equal(t, 0, lvl)
	assert.Equal(t, 1, idx)

	scope.push([]string{"V"})
	lvl, idx, ok = scope.lookup("T")
	assert.True(t, ok, "inner scope lookup must still see outer parameters")
	assert.Equal(t, 0, lvl)
	assert.Equal(t, 0, idx)

	scope.pop()
	_, _, ok = scope.lookup("V")
	assert.False(t, ok, "popped scope's parameters must no longer resolve")
}

func TestPrimitiveTypeKeywordsCoversCommonKinds(t *testing.T) {
	for _, name := range []string{"bool", "char", "short", "int", "long", "float", "double"} {
		_, ok := primitiveTypeKeywords[name]
		assert.True(t, ok, "missing mapping for %q", name)
	}
}
