package rerror_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rust-qt/ritual-sub000/internal/rerror"
)

func TestErrorIsMatchesKindAndCode(t *testing.T) {
	err := rerror.RValueReference("method Foo::bar argument 0")
	assert.True(t, errors.Is(err, rerror.New(rerror.KindType, "RValueReference", "")))
	assert.False(t, errors.Is(err, rerror.New(rerror.KindType, "QFlagsInvalidIndirection", "")))
	assert.False(t, errors.Is(err, rerror.New(rerror.KindFFI, "RValueReference", "")))
}

func TestWrapUnwrapsCause(t *testing.T) {
	cause := errors.New("boom")
	err := rerror.Wrap(rerror.KindIO, "WriteFailed", "writing database", cause)
	require.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "boom")
}

func TestWithContextPreservesKind(t *testing.T) {
	base := rerror.DatabaseVersionMismatch("file has version 2, want 3")
	wrapped := rerror.WithContext("loading workspace db", base)
	assert.True(t, errors.Is(wrapped, rerror.New(rerror.KindDatabase, "DatabaseVersionMismatch", "")))
	assert.Contains(t, wrapped.Error(), "loading workspace db")
}

func TestWithContextNilIsNil(t *testing.T) {
	assert.NoError(t, rerror.WithContext("ctx", nil))
}
