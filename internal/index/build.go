// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dowser Contributors

package index

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dowser-dev/dowser/internal/schema"
	"github.com/dowser-dev/dowser/internal/store"
	dowsererr "github.com/dowser-dev/dowser/pkg/errors"
)

// Build encodes the given tables and replaces the index contents. A built
// index is left untouched unless force is set. Tables whose table-level
// embedding fails are skipped with a warning; the build succeeds with
// whatever remains. The only error is total encoder unavailability.
//
// Encoding runs outside the lock; the swap, the persistence write, and the
// stale-snapshot delete happen under it.
func (x *Index) Build(ctx context.Context, tables []schema.Table, force bool) error {
	x.ensureLoaded(ctx)

	x.mu.RLock()
	already := x.built
	x.mu.RUnlock()
	if already && !force {
		return nil
	}

	if !x.encoder.Available(ctx) {
		return dowsererr.New(dowsererr.CodeIndexBuildUnavailable,
			"no embedding encoder available, index not built")
	}

	start := time.Now()
	vectors := make([]store.TableVector, 0, len(tables))
	for _, t := range tables {
		tv, ok := x.buildTable(ctx, t)
		if !ok {
			slog.Warn("index: skipping table, embedding failed", "table", t.Name)
			continue
		}
		vectors = append(vectors, tv)
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	x.tables = vectors
	x.built = len(vectors) > 0
	x.buildID = uuid.NewString()
	x.builtAt = time.Now().UTC()

	if !x.built {
		// Keep disk consistent with memory: an empty build invalidates any
		// previously persisted snapshot.
		if err := x.store.DeleteIndex(ctx); err != nil {
			slog.Warn("index: deleting stale snapshot failed", "error", err)
		}
		slog.Warn("index: build produced no tables", "input_tables", len(tables))
		return nil
	}

	if err := x.store.SaveIndex(ctx, x.snapshotLocked()); err != nil {
		slog.Warn("index: persisting snapshot failed", "error", err)
	}
	slog.Info("index: build complete",
		"tables", len(vectors),
		"build_id", x.buildID,
		"elapsed", time.Since(start).Round(time.Millisecond))
	return nil
}

// buildTable encodes one table. ok=false only when the table-level
// embedding itself fails; field and enum embedding failures narrow the
// match surface but keep the table.
func (x *Index) buildTable(ctx context.Context, t schema.Table) (store.TableVector, bool) {
	vec, ok := x.encoder.Encode(ctx, describeTable(t))
	if !ok {
		return store.TableVector{}, false
	}

	tv := store.TableVector{
		Name:     t.Name,
		Comment:  t.Comment,
		Module:   t.Module,
		Vector:   vec,
		Keywords: x.tokens.Extract(t.Comment + " " + t.Name),
	}

	for _, f := range t.DescribedFields() {
		fvec, ok := x.encoder.Encode(ctx, describeField(f))
		if !ok {
			slog.Debug("index: field embedding failed", "table", t.Name, "field", f.Name)
			continue
		}
		tv.Fields = append(tv.Fields, store.FieldVector{
			Name:    f.Name,
			Comment: f.Comment,
			Type:    f.Type,
			Vector:  fvec,
		})
	}

	for _, name := range sortedEnumNames(t.Enums) {
		evec, ok := x.encoder.Encode(ctx, describeEnum(name, t.Enums[name]))
		if !ok {
			slog.Debug("index: enum embedding failed", "table", t.Name, "enum", name)
			continue
		}
		if tv.Enums == nil {
			tv.Enums = make(map[string][]float32, len(t.Enums))
		}
		tv.Enums[name] = evec
	}

	return tv, true
}

// describeTable produces the table-level embedding text: comment, name,
// non-identity field name/comment pairs, then each enum group with its
// values and descriptions. Enum names are iterated in sorted order so an
// unchanged schema always yields identical text.
func describeTable(t schema.Table) string {
	var b strings.Builder
	b.WriteString(t.Comment)
	b.WriteByte(' ')
	b.WriteString(t.Name)

	for _, f := range t.DescribedFields() {
		b.WriteByte(' ')
		b.WriteString(f.Name)
		if f.Comment != "" {
			b.WriteByte(' ')
			b.WriteString(f.Comment)
		}
	}

	for _, name := range sortedEnumNames(t.Enums) {
		b.WriteByte(' ')
		b.WriteString(name)
		for _, v := range t.Enums[name] {
			b.WriteByte(' ')
			b.WriteString(v.Value)
			if v.Description != "" {
				b.WriteByte(' ')
				b.WriteString(v.Description)
			}
		}
	}

	return strings.TrimSpace(b.String())
}

// describeField produces the field-level embedding text.
func describeField(f schema.Field) string {
	parts := make([]string, 0, 3)
	parts = append(parts, f.Name)
	if f.Comment != "" {
		parts = append(parts, f.Comment)
	}
	if f.Type != "" {
		parts = append(parts, f.Type)
	}
	return strings.Join(parts, " ")
}

// describeEnum produces the embedding text for one enum group: its name
// followed by every value and description.
func describeEnum(name string, values []schema.EnumValue) string {
	parts := make([]string, 0, 1+2*len(values))
	parts = append(parts, name)
	for _, v := range values {
		parts = append(parts, v.Value)
		if v.Description != "" {
			parts = append(parts, v.Description)
		}
	}
	return strings.Join(parts, " ")
}

func sortedEnumNames[V any](enums map[string]V) []string {
	if len(enums) == 0 {
		return nil
	}
	names := make([]string, 0, len(enums))
	for name := range enums {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
