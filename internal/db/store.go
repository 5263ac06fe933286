package db

import (
	"os"
	"path/filepath"

	"github.com/rust-qt/ritual-sub000/internal/rerror"
)

// Store persists and reloads Snapshots. Two backends implement it:
// FileStore (the default, workspace-local binary+JSON pair described by
// spec section 4.B/6) and RemoteStore (a libSQL-hosted database shared
// across dependent packages' builds). SQLStore, the queryable gorm/sqlite
// mirror, is not a Store.
type Store interface {
	// Load returns (snapshot, true, nil) if a database exists for
	// crateName, (nil, false, nil) if none exists yet, or an error.
	Load(crateName string) (*Snapshot, bool, error)
	Save(crateName string, snap *Snapshot) error
}

// FileStore is the authoritative local backend: a length-prefixed binary
// main body plus a small JSON export-info file, both written atomically
// (spec section 4.B "Format").
type FileStore struct {
	WorkspaceDir string
	KeepBackup   bool
}

func NewFileStore(workspaceDir string) *FileStore {
	return &FileStore{WorkspaceDir: workspaceDir, KeepBackup: true}
}

func (fs *FileStore) dbPath(crateName string) string {
	return filepath.Join(fs.WorkspaceDir, ".ritual", crateName+".db")
}

func (fs *FileStore) exportPath(crateName string) string {
	return filepath.Join(fs.WorkspaceDir, ".ritual", crateName+".export.json")
}

func (fs *FileStore) Load(crateName string) (*Snapshot, bool, error) {
	data, err := os.ReadFile(fs.dbPath(crateName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, rerror.Wrap(rerror.KindIO, "ReadFailed", "reading "+fs.dbPath(crateName), err)
	}
	snap, err := DecodeSnapshot(data)
	if err != nil {
		return nil, false, err
	}
	return snap, true, nil
}

func (fs *FileStore) Save(crateName string, snap *Snapshot) error {
	snap.FormatVersion = CurrentFormatVersion
	snap.CrateName = crateName
	data, err := EncodeSnapshot(snap)
	if err != nil {
		return err
	}
	if err := atomicWrite(fs.dbPath(crateName), data, fs.KeepBackup); err != nil {
		return err
	}
	info := snapshotToExportInfo(snap)
	exportData, err := info.MarshalJSON()
	if err != nil {
		return rerror.Wrap(rerror.KindDatabase, "EncodeFailed", "encoding export info", err)
	}
	return atomicWrite(fs.exportPath(crateName), exportData, false)
}
