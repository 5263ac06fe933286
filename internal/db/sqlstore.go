package db

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/glebarez/sqlite"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/rust-qt/ritual-sub000/internal/rerror"
)

// itemRow and ffiItemRow are the queryable gorm mirror of Item/FFIItem: the
// binary snapshot (codec.go) remains authoritative, this table exists so a
// dependent tool can run SQL over a crate's discovered API without decoding
// gob (spec section 4.B "a queryable secondary view is acceptable alongside
// the canonical format").
type itemRow struct {
	CrateName   string `gorm:"primaryKey;index"`
	Index       int    `gorm:"primaryKey"`
	Kind        string `gorm:"index"`
	PayloadJSON datatypes.JSON
	IncludeFile string `gorm:"index"`
	SourceLine  int
	HostPath    string `gorm:"index"`
	HostKind    string
	HostSize    int
}

func (itemRow) TableName() string { return "ritual_items" }

type ffiItemRow struct {
	CrateName  string `gorm:"primaryKey;index"`
	Index      int    `gorm:"primaryKey"`
	Kind       string
	SourceItem int
	Name       string `gorm:"index"`
}

func (ffiItemRow) TableName() string { return "ritual_ffi_items" }

// SQLStore mirrors snapshots into a sqlite database via gorm, using the
// pure-Go glebarez/sqlite driver (no cgo toolchain required, unlike the
// mattn driver gorm.io/driver/sqlite defaults to). It does not implement
// Store: it is written through Mirror and queried through FindByHostPath, a
// secondary index kept alongside a FileStore rather than a replacement for
// it.
type SQLStore struct {
	db *gorm.DB
}

// OpenSQLStore connects to (and migrates) a sqlite file at path, creating
// parent directories as needed, mirroring the teacher's Connect/Migrate
// split (db/sqlite.go).
func OpenSQLStore(path string, debug bool) (*SQLStore, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, rerror.Wrap(rerror.KindIO, "MkdirFailed", "creating "+dir, err)
	}

	cfg := &gorm.Config{}
	if debug {
		cfg.Logger = logger.Default.LogMode(logger.Info)
	}

	gdb, err := gorm.Open(sqlite.Open(path), cfg)
	if err != nil {
		return nil, rerror.Wrap(rerror.KindDatabase, "ConnectFailed", "opening sqlite store at "+path, err)
	}
	if err := gdb.AutoMigrate(&itemRow{}, &ffiItemRow{}); err != nil {
		return nil, rerror.Wrap(rerror.KindDatabase, "MigrateFailed", "migrating sqlite store", err)
	}
	return &SQLStore{db: gdb}, nil
}

// Mirror replaces every row belonging to crateName with the contents of
// snap, inside one transaction.
func (s *SQLStore) Mirror(crateName string, snap *Snapshot) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("crate_name = ?", crateName).Delete(&itemRow{}).Error; err != nil {
			return err
		}
		if err := tx.Where("crate_name = ?", crateName).Delete(&ffiItemRow{}).Error; err != nil {
			return err
		}
		for _, it := range snap.Items {
			payload, err := json.Marshal(it.Payload)
			if err != nil {
				return err
			}
			row := itemRow{
				CrateName:   crateName,
				Index:       it.Index,
				Kind:        string(it.Payload.Kind),
				PayloadJSON: datatypes.JSON(payload),
				IncludeFile: it.IncludeFile,
				SourceLine:  it.SourceLine,
				HostPath:    it.HostPath,
				HostKind:    it.HostKind,
				HostSize:    it.HostSize,
			}
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
		}
		for _, it := range snap.FFIItems {
			name := ""
			if it.Function != nil {
				name = it.Function.Name
			} else if it.SlotWrapper != nil {
				name = it.SlotWrapper.Name
			}
			row := ffiItemRow{
				CrateName:  crateName,
				Index:      it.Index,
				Kind:       string(it.Kind),
				SourceItem: it.SourceItem,
				Name:       name,
			}
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// FindByHostPath looks up items whose generated host path matches exactly,
// the query a dependent crate's build script runs to resolve a cross-crate
// type reference without parsing the binary snapshot.
func (s *SQLStore) FindByHostPath(crateName, hostPath string) ([]itemRow, error) {
	var rows []itemRow
	err := s.db.Where("crate_name = ? AND host_path = ?", crateName, hostPath).Find(&rows).Error
	if err != nil {
		return nil, rerror.Wrap(rerror.KindDatabase, "QueryFailed", fmt.Sprintf("looking up %s in %s", hostPath, crateName), err)
	}
	return rows, nil
}

func (s *SQLStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
