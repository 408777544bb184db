// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dowser Contributors

// Package index builds and queries the vector index over schema entities:
// one embedding per table, per descriptive field, and per enum group.
// Searches run against the in-memory index; builds persist a snapshot so
// a restart recovers without re-encoding the schema.
package index

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/dowser-dev/dowser/internal/embedding"
	"github.com/dowser-dev/dowser/internal/store"
	"github.com/dowser-dev/dowser/internal/tokenize"
)

const (
	// DefaultThreshold is the cosine similarity floor below which an
	// entity does not count as matched.
	DefaultThreshold = 0.3
	// DefaultTopK bounds result counts when the caller passes none.
	DefaultTopK = 5
	// DefaultSemanticWeight and DefaultLexicalWeight are the fusion
	// coefficients; semantic similarity dominates keyword overlap.
	DefaultSemanticWeight = 0.7
	DefaultLexicalWeight  = 0.3
)

// Config tunes search and fusion. Zero values fall back to the defaults.
type Config struct {
	Threshold      float64
	TopK           int
	SemanticWeight float64
	LexicalWeight  float64
}

// Index is the vector index service. All methods are safe for concurrent
// use; reads share an RLock while Build holds the write lock through the
// terminal persistence write.
type Index struct {
	encoder embedding.Embedder
	store   store.IndexStore
	cfg     Config
	tokens  *tokenize.Segmenter

	mu      sync.RWMutex
	loaded  bool // persisted snapshot load attempted
	built   bool
	tables  []store.TableVector
	buildID string
	builtAt time.Time
}

// New creates an Index over the given embedder and snapshot store.
func New(enc embedding.Embedder, st store.IndexStore, cfg Config) *Index {
	if cfg.Threshold <= 0 {
		cfg.Threshold = DefaultThreshold
	}
	if cfg.TopK <= 0 {
		cfg.TopK = DefaultTopK
	}
	if cfg.SemanticWeight <= 0 {
		cfg.SemanticWeight = DefaultSemanticWeight
	}
	if cfg.LexicalWeight <= 0 {
		cfg.LexicalWeight = DefaultLexicalWeight
	}
	return &Index{
		encoder: enc,
		store:   st,
		cfg:     cfg,
		tokens:  tokenize.NewSearchSegmenter(),
	}
}

// ensureLoaded restores the persisted snapshot exactly once. A missing
// snapshot is a normal cold start; a corrupt or version-mismatched one
// logs a warning and starts empty.
func (x *Index) ensureLoaded(ctx context.Context) {
	x.mu.RLock()
	loaded := x.loaded
	x.mu.RUnlock()
	if loaded {
		return
	}

	x.mu.Lock()
	defer x.mu.Unlock()
	if x.loaded {
		return
	}
	x.loaded = true

	snap, err := x.store.LoadIndex(ctx)
	if errors.Is(err, store.ErrNotFound) {
		return
	}
	if err != nil {
		slog.Warn("index: loading persisted snapshot failed, starting empty", "error", err)
		return
	}

	x.tables = snap.Tables
	x.buildID = snap.BuildID
	x.builtAt = snap.BuiltAt
	x.built = len(snap.Tables) > 0
	if x.built {
		slog.Info("index: restored persisted snapshot",
			"tables", len(snap.Tables), "build_id", snap.BuildID)
	}
}

// Built reports whether the index holds at least one table.
func (x *Index) Built(ctx context.Context) bool {
	x.ensureLoaded(ctx)
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.built
}

// Stats summarises the current index contents.
func (x *Index) Stats(ctx context.Context) Stats {
	x.ensureLoaded(ctx)
	x.mu.RLock()
	defer x.mu.RUnlock()

	s := Stats{
		Built:   x.built,
		Tables:  len(x.tables),
		Encoder: x.encoder.Name(),
	}
	for _, tv := range x.tables {
		s.Fields += len(tv.Fields)
		s.Enums += len(tv.Enums)
	}
	if x.built {
		s.BuildID = x.buildID
		t := x.builtAt
		s.BuiltAt = &t
	}
	return s
}

// snapshotLocked assembles the persistable form of the current index.
// Caller must hold x.mu.
func (x *Index) snapshotLocked() *store.IndexSnapshot {
	return &store.IndexSnapshot{
		Version:    store.SnapshotVersion,
		BuildID:    x.buildID,
		BuiltAt:    x.builtAt,
		Encoder:    x.encoder.Name(),
		Dimensions: x.encoder.Dimensions(),
		Tables:     x.tables,
	}
}
