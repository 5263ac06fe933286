package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rust-qt/ritual-sub000/internal/types"
)

func sampleSnapshot() *Snapshot {
	return &Snapshot{
		FormatVersion: CurrentFormatVersion,
		CrateName:     "qtcore",
		CrateVersion:  "5.15.2",
		Environments: []Environment{
			{TargetTriple: "x86_64-unknown-linux-gnu"},
			{TargetTriple: "x86_64-pc-windows-msvc"},
		},
		Items: []Item{
			{
				Index: 0,
				Payload: ItemPayload{
					Kind: ItemType,
					Class: &SourceClass{
						Path: types.Path{Items: []types.PathItem{{Name: "QRect"}}},
					},
				},
				Origin:      map[int]bool{1: true, 0: true},
				IncludeFile: "qrect.h",
				SourceLine:  42,
				FFIChildren: []int{2, 1},
				HostPath:    "qt_core::QRect",
				HostKind:    "struct",
				HostSize:    16,
			},
		},
		FFIItems: []FFIItem{
			{
				Index:      0,
				Kind:       FFIKindFunction,
				Function:   &FFIFunction{Name: "ritual_qrect_width"},
				SourceItem: 0,
				Checks: map[checkKey]bool{
					{EnvIndex: 1}: true,
					{EnvIndex: 0}: false,
				},
			},
		},
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	snap := sampleSnapshot()

	data, err := EncodeSnapshot(snap)
	require.NoError(t, err)

	decoded, err := DecodeSnapshot(data)
	require.NoError(t, err)

	assert.Equal(t, snap.CrateName, decoded.CrateName)
	assert.Equal(t, snap.CrateVersion, decoded.CrateVersion)
	assert.Equal(t, snap.Environments, decoded.Environments)
	require.Len(t, decoded.Items, 1)
	assert.Equal(t, snap.Items[0].Origin, decoded.Items[0].Origin)
	assert.ElementsMatch(t, snap.Items[0].FFIChildren, decoded.Items[0].FFIChildren)
	assert.Equal(t, "qt_core::QRect", decoded.Items[0].HostPath)
	require.Len(t, decoded.FFIItems, 1)
	assert.Equal(t, snap.FFIItems[0].Checks, decoded.FFIItems[0].Checks)
}

func TestEncodeIsDeterministic(t *testing.T) {
	snap := sampleSnapshot()

	first, err := EncodeSnapshot(snap)
	require.NoError(t, err)
	second, err := EncodeSnapshot(snap)
	require.NoError(t, err)

	assert.Equal(t, first, second, "encoding the same snapshot twice must produce byte-identical output")
}

func TestDecodeRejectsShortHeader(t *testing.T) {
	_, err := DecodeSnapshot([]byte{1, 2, 3})
	assert.Error(t, err)
}

func TestDecodeRejectsLengthMismatch(t *testing.T) {
	snap := sampleSnapshot()
	data, err := EncodeSnapshot(snap)
	require.NoError(t, err)

	_, err = DecodeSnapshot(data[:len(data)-1])
	assert.Error(t, err)
}

func TestDecodeRejectsVersionMismatch(t *testing.T) {
	snap := sampleSnapshot()
	snap.FormatVersion = CurrentFormatVersion + 1
	data, err := EncodeSnapshot(snap)
	require.NoError(t, err)

	_, err = DecodeSnapshot(data)
	assert.Error(t, err)
}
