package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDatabaseSnapshotRoundTrip(t *testing.T) {
	d := &Database{CrateName: "qtcore", CrateVersion: "5.15.2"}
	d.AddTarget(Environment{TargetTriple: "x86_64-unknown-linux-gnu"})
	idx, _ := d.AddItem(0, classPayload("QRect"), "qrect.h", 10)
	d.AddFFIItem(idx, FFIItem{Kind: FFIKindFunction})

	snap := databaseToSnapshot(d)
	assert.Equal(t, CurrentFormatVersion, snap.FormatVersion)

	restored := snapshotToDatabase(snap)
	assert.Equal(t, d.CrateName, restored.CrateName)
	require.Len(t, restored.Items(), 1)
	require.Len(t, restored.FFIItems(), 1)
}
