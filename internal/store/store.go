// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dowser Contributors

// Package store defines the persistence contracts for the schema index
// snapshot and the learning collections, plus the backend factory.
// Backends live in subpackages and register themselves from init().
package store

import "context"

// IndexStore persists the built schema index snapshot.
type IndexStore interface {
	// SaveIndex replaces the persisted snapshot wholesale.
	SaveIndex(ctx context.Context, snap *IndexSnapshot) error

	// LoadIndex returns the persisted snapshot. ErrNotFound when none has
	// been saved; ErrInvalidInput when the stored bytes cannot be decoded
	// or carry an unsupported version.
	LoadIndex(ctx context.Context) (*IndexSnapshot, error)

	// DeleteIndex removes the persisted snapshot. Deleting an absent
	// snapshot is not an error.
	DeleteIndex(ctx context.Context) error

	Close() error
}

// LearningStore persists the four learning collections. Saves are
// wholesale rewrites; loads of never-saved collections return empty.
type LearningStore interface {
	SaveFeedback(ctx context.Context, items []QueryFeedback) error
	LoadFeedback(ctx context.Context) ([]QueryFeedback, error)

	SavePatterns(ctx context.Context, items map[string]*LearnedPattern) error
	LoadPatterns(ctx context.Context) (map[string]*LearnedPattern, error)

	SaveKeywords(ctx context.Context, items map[string]*KeywordWeight) error
	LoadKeywords(ctx context.Context) (map[string]*KeywordWeight, error)

	SaveMemory(ctx context.Context, items []MemoryItem) error
	LoadMemory(ctx context.Context) ([]MemoryItem, error)

	// DeleteAll removes every persisted learning collection.
	DeleteAll(ctx context.Context) error

	Close() error
}
