package ritlog_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rust-qt/ritual-sub000/internal/ritlog"
)

func TestInitCreatesRotatingLogFile(t *testing.T) {
	dir := t.TempDir()
	logger, err := ritlog.Init(ritlog.Options{WorkspaceDir: dir, Debug: true})
	require.NoError(t, err)
	logger.Infow("hello", "k", "v")
	_ = logger.Sync()

	path := filepath.Join(dir, ".ritual", "ritual.log")
	_, statErr := os.Stat(path)
	assert.NoError(t, statErr)
}

func TestInitBacksUpPreviousLogFile(t *testing.T) {
	dir := t.TempDir()
	logDir := filepath.Join(dir, ".ritual")
	require.NoError(t, os.MkdirAll(logDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(logDir, "ritual.log"), []byte("old run\n"), 0o644))

	_, err := ritlog.Init(ritlog.Options{WorkspaceDir: dir})
	require.NoError(t, err)

	backup, statErr := os.Stat(filepath.Join(logDir, "ritual.log.1"))
	require.NoError(t, statErr)
	assert.Greater(t, backup.Size(), int64(0))
}

func TestLReturnsCurrentLogger(t *testing.T) {
	assert.NotNil(t, ritlog.L())
}
