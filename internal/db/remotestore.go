package db

import (
	"database/sql"
	"os"

	libsql "github.com/tursodatabase/libsql-client-go/libsql"

	"github.com/rust-qt/ritual-sub000/internal/rerror"
)

// RemoteStore is a Store backed by a libSQL/Turso database, so several
// consumer crates building against the same source library version can
// share one authoritative database instead of each re-parsing it (spec
// section 4.B "a remote backend may be substituted for the local file
// store"). Snapshots are stored as a single-row blob keyed by crate name --
// the same length-prefixed gob encoding as FileStore, just relocated -- so
// SQLStore remains the only component that projects individual items into
// queryable columns.
type RemoteStore struct {
	conn *sql.DB
}

// OpenRemoteStore connects to a libsql:// or https:// DSN. The auth token,
// when required, is read from RITUAL_LIBSQL_AUTH_TOKEN (mirroring the
// teacher's MORFX_LIBSQL_AUTH_TOKEN convention).
func OpenRemoteStore(dsn string) (*RemoteStore, error) {
	var conn *sql.DB
	if token := os.Getenv("RITUAL_LIBSQL_AUTH_TOKEN"); token != "" {
		c, cerr := libsql.NewConnector(dsn, libsql.WithAuthToken(token))
		if cerr != nil {
			return nil, rerror.Wrap(rerror.KindDatabase, "ConnectFailed", "creating libsql connector", cerr)
		}
		conn = sql.OpenDB(c)
	} else {
		c, cerr := libsql.NewConnector(dsn)
		if cerr != nil {
			return nil, rerror.Wrap(rerror.KindDatabase, "ConnectFailed", "creating libsql connector", cerr)
		}
		conn = sql.OpenDB(c)
	}

	if err := conn.Ping(); err != nil {
		return nil, rerror.Wrap(rerror.KindDatabase, "ConnectFailed", "connecting to "+dsn, err)
	}

	const ddl = `CREATE TABLE IF NOT EXISTS ritual_snapshots (
		crate_name TEXT PRIMARY KEY,
		data BLOB NOT NULL
	)`
	if _, err := conn.Exec(ddl); err != nil {
		return nil, rerror.Wrap(rerror.KindDatabase, "MigrateFailed", "creating ritual_snapshots table", err)
	}

	return &RemoteStore{conn: conn}, nil
}

func (r *RemoteStore) Load(crateName string) (*Snapshot, bool, error) {
	var data []byte
	err := r.conn.QueryRow(`SELECT data FROM ritual_snapshots WHERE crate_name = ?`, crateName).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, rerror.Wrap(rerror.KindDatabase, "QueryFailed", "loading "+crateName, err)
	}
	snap, err := DecodeSnapshot(data)
	if err != nil {
		return nil, false, err
	}
	return snap, true, nil
}

func (r *RemoteStore) Save(crateName string, snap *Snapshot) error {
	snap.FormatVersion = CurrentFormatVersion
	snap.CrateName = crateName
	data, err := EncodeSnapshot(snap)
	if err != nil {
		return err
	}
	_, err = r.conn.Exec(
		`INSERT INTO ritual_snapshots (crate_name, data) VALUES (?, ?)
		 ON CONFLICT(crate_name) DO UPDATE SET data = excluded.data`,
		crateName, data,
	)
	if err != nil {
		return rerror.Wrap(rerror.KindDatabase, "WriteFailed", "saving "+crateName, err)
	}
	return nil
}

func (r *RemoteStore) Close() error {
	return r.conn.Close()
}
