// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dowser Contributors

// Package file implements the store interfaces over plain JSON files,
// one per collection, written atomically via a temp file and rename.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dowser-dev/dowser/internal/store"
)

const (
	feedbackFile = "feedback.json"
	patternsFile = "patterns.json"
	keywordsFile = "keywords.json"
	memoryFile   = "memory.json"
)

// Compile-time interface checks.
var (
	_ store.IndexStore    = (*Store)(nil)
	_ store.LearningStore = (*Store)(nil)
)

// Store keeps each collection in its own JSON file under <dir>/snapshots.
// No file handles are held between calls, so a single Store is safe to
// share as both the index and the learning store.
type Store struct {
	dir       string
	indexPath string
}

// New creates a file-backed store rooted at cfg.Dir.
func New(cfg store.Config) (*Store, error) {
	dir := filepath.Join(cfg.Dir, "snapshots")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("creating snapshot dir: %w", err)
	}

	indexPath := cfg.IndexPath
	if indexPath == "" {
		indexPath = filepath.Join(dir, "index.json")
	} else if err := os.MkdirAll(filepath.Dir(indexPath), 0o700); err != nil {
		return nil, fmt.Errorf("creating index snapshot dir: %w", err)
	}

	return &Store{dir: dir, indexPath: indexPath}, nil
}

// --- IndexStore ---

func (s *Store) SaveIndex(_ context.Context, snap *store.IndexSnapshot) error {
	if err := snap.Validate(); err != nil {
		return err
	}
	out := *snap
	out.SavedAt = time.Now().UTC()
	return writeJSON(s.indexPath, &out)
}

func (s *Store) LoadIndex(_ context.Context) (*store.IndexSnapshot, error) {
	data, err := os.ReadFile(s.indexPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading index snapshot: %w", err)
	}

	var snap store.IndexSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decoding index snapshot: %w: %v", store.ErrInvalidInput, err)
	}
	if snap.Version != store.SnapshotVersion {
		return nil, fmt.Errorf("index snapshot version %d unsupported: %w", snap.Version, store.ErrInvalidInput)
	}
	return &snap, nil
}

func (s *Store) DeleteIndex(_ context.Context) error {
	if err := os.Remove(s.indexPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("deleting index snapshot: %w", err)
	}
	return nil
}

// --- LearningStore ---

func (s *Store) SaveFeedback(_ context.Context, items []store.QueryFeedback) error {
	for i := range items {
		if err := items[i].Validate(); err != nil {
			return err
		}
	}
	return saveCollection(s.path(feedbackFile), items)
}

func (s *Store) LoadFeedback(_ context.Context) ([]store.QueryFeedback, error) {
	return loadCollection[[]store.QueryFeedback](s.path(feedbackFile))
}

func (s *Store) SavePatterns(_ context.Context, items map[string]*store.LearnedPattern) error {
	return saveCollection(s.path(patternsFile), items)
}

func (s *Store) LoadPatterns(_ context.Context) (map[string]*store.LearnedPattern, error) {
	return loadCollection[map[string]*store.LearnedPattern](s.path(patternsFile))
}

func (s *Store) SaveKeywords(_ context.Context, items map[string]*store.KeywordWeight) error {
	return saveCollection(s.path(keywordsFile), items)
}

func (s *Store) LoadKeywords(_ context.Context) (map[string]*store.KeywordWeight, error) {
	return loadCollection[map[string]*store.KeywordWeight](s.path(keywordsFile))
}

func (s *Store) SaveMemory(_ context.Context, items []store.MemoryItem) error {
	return saveCollection(s.path(memoryFile), items)
}

func (s *Store) LoadMemory(_ context.Context) ([]store.MemoryItem, error) {
	return loadCollection[[]store.MemoryItem](s.path(memoryFile))
}

func (s *Store) DeleteAll(_ context.Context) error {
	var errs []error
	for _, name := range []string{feedbackFile, patternsFile, keywordsFile, memoryFile} {
		if err := os.Remove(s.path(name)); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, fmt.Errorf("deleting %s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

func (s *Store) Close() error { return nil }

func (s *Store) path(name string) string {
	return filepath.Join(s.dir, name)
}

// envelope wraps a persisted collection with its format version.
type envelope[T any] struct {
	Version int       `json:"version"`
	SavedAt time.Time `json:"saved_at"`
	Items   T         `json:"items"`
}

func saveCollection[T any](path string, items T) error {
	env := envelope[T]{
		Version: store.SnapshotVersion,
		SavedAt: time.Now().UTC(),
		Items:   items,
	}
	return writeJSON(path, env)
}

// loadCollection returns the zero value for a file that was never saved;
// a missing collection is a cold start, not an error.
func loadCollection[T any](path string) (T, error) {
	var zero T

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return zero, nil
	}
	if err != nil {
		return zero, fmt.Errorf("reading %s: %w", filepath.Base(path), err)
	}

	var env envelope[T]
	if err := json.Unmarshal(data, &env); err != nil {
		return zero, fmt.Errorf("decoding %s: %w: %v", filepath.Base(path), store.ErrInvalidInput, err)
	}
	if env.Version != store.SnapshotVersion {
		return zero, fmt.Errorf("%s: unsupported snapshot version %d: %w",
			filepath.Base(path), env.Version, store.ErrInvalidInput)
	}
	return env.Items, nil
}

// writeJSON writes v to path via a temp file in the same directory so the
// rename is atomic and readers never observe a partial snapshot.
func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding %s: %w", filepath.Base(path), err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("writing %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("setting %s permissions: %w", filepath.Base(path), err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("closing %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replacing %s: %w", filepath.Base(path), err)
	}
	return nil
}
