// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dowser Contributors

package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dowser-dev/dowser/internal/store"
)

// SaveIndex rewrites the persisted snapshot inside one transaction.
func (d *DB) SaveIndex(ctx context.Context, snap *store.IndexSnapshot) error {
	if err := snap.Validate(); err != nil {
		return err
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, q := range []string{
		`DELETE FROM index_enums`,
		`DELETE FROM index_fields`,
		`DELETE FROM index_tables`,
		`DELETE FROM index_meta`,
	} {
		if _, err := tx.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("clearing index tables: %w", err)
		}
	}

	const metaQ = `INSERT INTO index_meta (id, version, build_id, built_at, saved_at, encoder, dimensions)
VALUES (1, ?, ?, ?, ?, ?, ?)`
	if _, err := tx.ExecContext(ctx, metaQ,
		snap.Version, snap.BuildID, formatTime(snap.BuiltAt), formatTime(time.Now()),
		snap.Encoder, snap.Dimensions,
	); err != nil {
		return fmt.Errorf("inserting index meta: %w", err)
	}

	for _, tv := range snap.Tables {
		if err := insertTableVector(ctx, tx, tv); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing index snapshot: %w", err)
	}
	return nil
}

func insertTableVector(ctx context.Context, tx *sql.Tx, tv store.TableVector) error {
	blob, err := serializeVector(tv.Vector)
	if err != nil {
		return fmt.Errorf("serializing table vector %s: %w", tv.Name, err)
	}
	keywords, err := marshalJSON(tv.Keywords, "[]")
	if err != nil {
		return fmt.Errorf("marshalling keywords for %s: %w", tv.Name, err)
	}

	const tableQ = `INSERT INTO index_tables (name, module, comment, vector, keywords)
VALUES (?, ?, ?, ?, ?)`
	if _, err := tx.ExecContext(ctx, tableQ, tv.Name, tv.Module, tv.Comment, blob, keywords); err != nil {
		return fmt.Errorf("inserting table vector %s: %w", tv.Name, err)
	}

	const fieldQ = `INSERT INTO index_fields (table_name, name, comment, type, vector)
VALUES (?, ?, ?, ?, ?)`
	for _, fv := range tv.Fields {
		fblob, err := serializeVector(fv.Vector)
		if err != nil {
			return fmt.Errorf("serializing field vector %s.%s: %w", tv.Name, fv.Name, err)
		}
		if _, err := tx.ExecContext(ctx, fieldQ, tv.Name, fv.Name, fv.Comment, fv.Type, fblob); err != nil {
			return fmt.Errorf("inserting field vector %s.%s: %w", tv.Name, fv.Name, err)
		}
	}

	const enumQ = `INSERT INTO index_enums (table_name, name, vector) VALUES (?, ?, ?)`
	for name, vec := range tv.Enums {
		eblob, err := serializeVector(vec)
		if err != nil {
			return fmt.Errorf("serializing enum vector %s.%s: %w", tv.Name, name, err)
		}
		if _, err := tx.ExecContext(ctx, enumQ, tv.Name, name, eblob); err != nil {
			return fmt.Errorf("inserting enum vector %s.%s: %w", tv.Name, name, err)
		}
	}

	return nil
}

// LoadIndex reassembles the persisted snapshot. store.ErrNotFound when
// no snapshot was saved; store.ErrInvalidInput on a version mismatch.
func (d *DB) LoadIndex(ctx context.Context) (*store.IndexSnapshot, error) {
	var snap store.IndexSnapshot
	var builtAt, savedAt string

	err := d.db.QueryRowContext(ctx,
		`SELECT version, build_id, built_at, saved_at, encoder, dimensions FROM index_meta WHERE id = 1`,
	).Scan(&snap.Version, &snap.BuildID, &builtAt, &savedAt, &snap.Encoder, &snap.Dimensions)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading index meta: %w", err)
	}
	if snap.Version != store.SnapshotVersion {
		return nil, fmt.Errorf("index snapshot version %d unsupported: %w", snap.Version, store.ErrInvalidInput)
	}
	snap.BuiltAt = parseTime(builtAt)
	snap.SavedAt = parseTime(savedAt)

	fields, err := d.loadFields(ctx)
	if err != nil {
		return nil, err
	}
	enums, err := d.loadEnums(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := d.db.QueryContext(ctx,
		`SELECT name, module, comment, vector, keywords FROM index_tables ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("querying index tables: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var tv store.TableVector
		var blob []byte
		var keywords string
		if err := rows.Scan(&tv.Name, &tv.Module, &tv.Comment, &blob, &keywords); err != nil {
			return nil, fmt.Errorf("scanning table vector row: %w", err)
		}
		tv.Vector = deserializeVector(blob)
		if err := unmarshalJSON(keywords, &tv.Keywords); err != nil {
			return nil, fmt.Errorf("unmarshalling keywords for %s: %w", tv.Name, err)
		}
		tv.Fields = fields[tv.Name]
		tv.Enums = enums[tv.Name]
		snap.Tables = append(snap.Tables, tv)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &snap, nil
}

func (d *DB) loadFields(ctx context.Context) (map[string][]store.FieldVector, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT table_name, name, comment, type, vector FROM index_fields ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("querying index fields: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := make(map[string][]store.FieldVector)
	for rows.Next() {
		var table string
		var fv store.FieldVector
		var blob []byte
		if err := rows.Scan(&table, &fv.Name, &fv.Comment, &fv.Type, &blob); err != nil {
			return nil, fmt.Errorf("scanning field vector row: %w", err)
		}
		fv.Vector = deserializeVector(blob)
		out[table] = append(out[table], fv)
	}
	return out, rows.Err()
}

func (d *DB) loadEnums(ctx context.Context) (map[string]map[string][]float32, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT table_name, name, vector FROM index_enums`)
	if err != nil {
		return nil, fmt.Errorf("querying index enums: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := make(map[string]map[string][]float32)
	for rows.Next() {
		var table, name string
		var blob []byte
		if err := rows.Scan(&table, &name, &blob); err != nil {
			return nil, fmt.Errorf("scanning enum vector row: %w", err)
		}
		if out[table] == nil {
			out[table] = make(map[string][]float32)
		}
		out[table][name] = deserializeVector(blob)
	}
	return out, rows.Err()
}

// DeleteIndex removes the persisted snapshot.
func (d *DB) DeleteIndex(ctx context.Context) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, q := range []string{
		`DELETE FROM index_enums`,
		`DELETE FROM index_fields`,
		`DELETE FROM index_tables`,
		`DELETE FROM index_meta`,
	} {
		if _, err := tx.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("deleting index snapshot: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing index delete: %w", err)
	}
	return nil
}
