// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dowser Contributors

// Package sqlite implements the store interfaces over a single SQLite
// database. Embeddings are stored as the little-endian float32 blobs
// sqlite-vec produces; saves rewrite a collection inside one transaction.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"

	"github.com/dowser-dev/dowser/internal/store"
)

// Compile-time interface checks.
var (
	_ store.IndexStore    = (*DB)(nil)
	_ store.LearningStore = (*DB)(nil)
)

// DB implements both store interfaces over one shared database handle.
type DB struct {
	db *sql.DB
}

// Open opens (or creates) a SQLite database at dbPath and initialises
// the index and learning tables.
func Open(dbPath string) (*DB, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pinging sqlite db: %w", err)
	}

	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrating tables: %w", err)
	}

	return &DB{db: db}, nil
}

func migrate(db *sql.DB) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS index_meta (
	id         INTEGER PRIMARY KEY CHECK (id = 1),
	version    INTEGER NOT NULL,
	build_id   TEXT NOT NULL,
	built_at   TEXT NOT NULL,
	saved_at   TEXT NOT NULL,
	encoder    TEXT NOT NULL DEFAULT '',
	dimensions INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS index_tables (
	seq      INTEGER PRIMARY KEY AUTOINCREMENT,
	name     TEXT UNIQUE NOT NULL,
	module   TEXT NOT NULL DEFAULT '',
	comment  TEXT NOT NULL DEFAULT '',
	vector   BLOB,
	keywords TEXT NOT NULL DEFAULT '[]'
);

CREATE TABLE IF NOT EXISTS index_fields (
	seq        INTEGER PRIMARY KEY AUTOINCREMENT,
	table_name TEXT NOT NULL,
	name       TEXT NOT NULL,
	comment    TEXT NOT NULL DEFAULT '',
	type       TEXT NOT NULL DEFAULT '',
	vector     BLOB,
	UNIQUE (table_name, name)
);

CREATE TABLE IF NOT EXISTS index_enums (
	table_name TEXT NOT NULL,
	name       TEXT NOT NULL,
	vector     BLOB,
	PRIMARY KEY (table_name, name)
);

CREATE TABLE IF NOT EXISTS feedback (
	seq              INTEGER PRIMARY KEY AUTOINCREMENT,
	id               TEXT UNIQUE NOT NULL,
	question         TEXT NOT NULL,
	sql_text         TEXT NOT NULL DEFAULT '',
	label            TEXT NOT NULL,
	ts               TEXT NOT NULL,
	user_id          TEXT NOT NULL DEFAULT '',
	session_id       TEXT NOT NULL DEFAULT '',
	matched_tables   TEXT NOT NULL DEFAULT '[]',
	matched_fields   TEXT NOT NULL DEFAULT '[]',
	matched_enums    TEXT NOT NULL DEFAULT '[]',
	relevance_scores TEXT NOT NULL DEFAULT '{}'
);

CREATE TABLE IF NOT EXISTS patterns (
	key             TEXT PRIMARY KEY,
	question_sample TEXT NOT NULL DEFAULT '',
	primary_table   TEXT NOT NULL DEFAULT '',
	success_count   INTEGER NOT NULL DEFAULT 0,
	failure_count   INTEGER NOT NULL DEFAULT 0,
	confidence      REAL NOT NULL DEFAULT 0,
	keywords        TEXT NOT NULL DEFAULT '[]',
	embedding       BLOB,
	updated_at      TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS keyword_weights (
	keyword       TEXT PRIMARY KEY,
	weight        REAL NOT NULL DEFAULT 1.0,
	success_count INTEGER NOT NULL DEFAULT 0,
	failure_count INTEGER NOT NULL DEFAULT 0,
	tables        TEXT NOT NULL DEFAULT '{}'
);

CREATE TABLE IF NOT EXISTS memory_items (
	seq           INTEGER PRIMARY KEY AUTOINCREMENT,
	question      TEXT NOT NULL,
	sql_text      TEXT NOT NULL DEFAULT '',
	primary_table TEXT NOT NULL DEFAULT '',
	keywords      TEXT NOT NULL DEFAULT '[]',
	embedding     BLOB,
	success_count INTEGER NOT NULL DEFAULT 0,
	last_used_at  TEXT NOT NULL,
	related       TEXT NOT NULL DEFAULT '[]'
);

CREATE TABLE IF NOT EXISTS collection_meta (
	name     TEXT PRIMARY KEY,
	version  INTEGER NOT NULL,
	saved_at TEXT NOT NULL
);
`
	_, err := db.Exec(ddl)
	return err
}

// Close closes the underlying database connection. Close is safe to call
// on both interface handles returned by the factory.
func (d *DB) Close() error {
	return d.db.Close()
}

// stampCollection records the format version for a learning collection.
// Must run inside the save transaction so the stamp and the rows commit
// together.
func stampCollection(ctx context.Context, tx *sql.Tx, name string) error {
	const q = `INSERT INTO collection_meta (name, version, saved_at) VALUES (?, ?, ?)
ON CONFLICT(name) DO UPDATE SET version = excluded.version, saved_at = excluded.saved_at`
	if _, err := tx.ExecContext(ctx, q, name, store.SnapshotVersion, formatTime(time.Now())); err != nil {
		return fmt.Errorf("stamping collection %s: %w", name, err)
	}
	return nil
}

// checkCollectionVersion fails a load when the persisted collection was
// written by an unsupported format version. An absent stamp means the
// collection was never saved and loads as empty.
func (d *DB) checkCollectionVersion(ctx context.Context, name string) error {
	var v int
	err := d.db.QueryRowContext(ctx,
		`SELECT version FROM collection_meta WHERE name = ?`, name).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading collection meta for %s: %w", name, err)
	}
	if v != store.SnapshotVersion {
		return fmt.Errorf("collection %s version %d unsupported: %w", name, v, store.ErrInvalidInput)
	}
	return nil
}

// serializeVector encodes a vector in sqlite-vec's little-endian float32
// blob format. Empty vectors map to NULL.
func serializeVector(vec []float32) ([]byte, error) {
	if len(vec) == 0 {
		return nil, nil
	}
	return sqlite_vec.SerializeFloat32(vec)
}

// deserializeVector decodes the blob written by serializeVector.
func deserializeVector(b []byte) []float32 {
	if len(b) == 0 || len(b)%4 != 0 {
		return nil
	}
	out := make([]float32, len(b)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return out
}

// marshalJSON serialises list/map columns, mapping nil to the column default.
func marshalJSON(v any, empty string) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	s := string(data)
	if s == "null" {
		return empty, nil
	}
	return s, nil
}

// unmarshalJSON fills dst from a list/map column, leaving it nil for
// empty column defaults.
func unmarshalJSON(s string, dst any) error {
	if s == "" || s == "[]" || s == "{}" {
		return nil
	}
	return json.Unmarshal([]byte(s), dst)
}

// formatTime serialises a time for storage in the database.
func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

// parseTime deserialises a time string stored in the database.
func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}
