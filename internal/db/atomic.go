package db

import (
	"os"
	"path/filepath"

	"github.com/rust-qt/ritual-sub000/internal/rerror"
)

// atomicWrite writes data to path via "write-temp, rename, optional backup"
// semantics (spec section 4.B invariant: "the database file is either valid
// or left untouched on error"), the same discipline core/atomicwriter.go
// used for in-place file edits: write to a sibling temp file, fsync isn't
// forced (performance over safety, matching the teacher's
// DefaultAtomicConfig), then rename over the destination. A rename is
// atomic on the same filesystem, so a crash between temp-write and rename
// never corrupts the previous file.
func atomicWrite(path string, data []byte, keepBackup bool) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return rerror.Wrap(rerror.KindIO, "MkdirFailed", "creating "+dir, err)
	}

	if keepBackup {
		if _, err := os.Stat(path); err == nil {
			backup := path + ".bak"
			if data, err := os.ReadFile(path); err == nil {
				_ = os.WriteFile(backup, data, 0o644)
			}
		}
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return rerror.Wrap(rerror.KindIO, "WriteFailed", "writing temp file "+tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return rerror.Wrap(rerror.KindIO, "RenameFailed", "renaming "+tmp+" to "+path, err)
	}
	return nil
}
