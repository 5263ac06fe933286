package db

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLStoreMirrorAndQuery(t *testing.T) {
	tempDir := t.TempDir()
	dbPath := filepath.Join(tempDir, "mirror.db")

	store, err := OpenSQLStore(dbPath, false)
	require.NoError(t, err)
	defer store.Close()

	snap := sampleSnapshot()
	require.NoError(t, store.Mirror("qtcore", snap))

	rows, err := store.FindByHostPath("qtcore", "qt_core::QRect")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "struct", rows[0].HostKind)
	assert.Equal(t, 16, rows[0].HostSize)
}

func TestSQLStoreMirrorReplacesPriorRows(t *testing.T) {
	tempDir := t.TempDir()
	dbPath := filepath.Join(tempDir, "mirror.db")

	store, err := OpenSQLStore(dbPath, false)
	require.NoError(t, err)
	defer store.Close()

	snap := sampleSnapshot()
	require.NoError(t, store.Mirror("qtcore", snap))
	require.NoError(t, store.Mirror("qtcore", snap))

	rows, err := store.FindByHostPath("qtcore", "qt_core::QRect")
	require.NoError(t, err)
	assert.Len(t, rows, 1, "a second mirror pass must not duplicate rows")
}
