// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dowser Contributors

// Package learning turns user feedback into retrieval signals: per-keyword
// weights consumed by the lexical scorer, learned table/field patterns,
// and a bounded memory bank of past question/answer pairs for
// similar-question lookup. State lives in memory and is rewritten to the
// store after every mutation.
package learning

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/dowser-dev/dowser/internal/embedding"
	"github.com/dowser-dev/dowser/internal/store"
	"github.com/dowser-dev/dowser/internal/tokenize"
	dowsererr "github.com/dowser-dev/dowser/pkg/errors"
)

const (
	// MaxMemoryItems bounds the memory bank; pruning keeps the entries
	// with the highest (success count, last used) rank.
	MaxMemoryItems = 1000

	// DefaultAnalysisWindowDays is the trailing window AnalyzeQueryPatterns
	// uses when the caller passes none.
	DefaultAnalysisWindowDays = 7

	// Keyword weights stay inside [minKeywordWeight, maxKeywordWeight] and
	// move by weightStep per net feedback event.
	minKeywordWeight = 0.1
	maxKeywordWeight = 2.0
	weightStep       = 0.1

	// patternKeyParts caps how many sorted names form a pattern key.
	patternKeyParts = 3

	// questionSampleLen bounds the stored pattern sample, in runes.
	questionSampleLen = 100

	defaultTopK = 5
)

// Engine is the adaptive learning service. All methods are safe for
// concurrent use; RecordFeedback and Reset hold the write lock through
// their terminal persistence write.
type Engine struct {
	encoder embedding.Embedder
	store   store.LearningStore
	tokens  tokenize.Tokenizer

	nowFunc func() time.Time

	mu       sync.RWMutex
	loaded   bool
	feedback []store.QueryFeedback
	patterns map[string]*store.LearnedPattern
	keywords map[string]*store.KeywordWeight
	memory   []store.MemoryItem
}

// New creates an Engine over the given embedder and learning store.
func New(enc embedding.Embedder, st store.LearningStore) *Engine {
	return &Engine{
		encoder:  enc,
		store:    st,
		tokens:   tokenize.NewLearningSegmenter(),
		nowFunc:  time.Now,
		patterns: make(map[string]*store.LearnedPattern),
		keywords: make(map[string]*store.KeywordWeight),
	}
}

// SetNowFunc overrides the clock. Tests only.
func (e *Engine) SetNowFunc(now func() time.Time) {
	e.nowFunc = now
}

// ensureLoaded restores the four persisted collections exactly once.
// A collection that fails to load starts empty with a warning; the others
// are unaffected.
func (e *Engine) ensureLoaded(ctx context.Context) {
	e.mu.RLock()
	loaded := e.loaded
	e.mu.RUnlock()
	if loaded {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.loaded {
		return
	}
	e.loaded = true

	if items, err := e.store.LoadFeedback(ctx); err != nil {
		slog.Warn("learning: loading feedback history failed, starting empty", "error", err)
	} else {
		e.feedback = items
	}
	if items, err := e.store.LoadPatterns(ctx); err != nil {
		slog.Warn("learning: loading patterns failed, starting empty", "error", err)
	} else if items != nil {
		e.patterns = items
	}
	if items, err := e.store.LoadKeywords(ctx); err != nil {
		slog.Warn("learning: loading keyword weights failed, starting empty", "error", err)
	} else if items != nil {
		e.keywords = items
	}
	if items, err := e.store.LoadMemory(ctx); err != nil {
		slog.Warn("learning: loading memory bank failed, starting empty", "error", err)
	} else {
		e.memory = items
	}

	if len(e.feedback) > 0 || len(e.patterns) > 0 || len(e.keywords) > 0 || len(e.memory) > 0 {
		slog.Info("learning: restored persisted state",
			"feedback", len(e.feedback),
			"patterns", len(e.patterns),
			"keywords", len(e.keywords),
			"memory", len(e.memory))
	}
}

// Reset clears every collection in memory and on disk.
func (e *Engine) Reset(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.loaded = true
	e.feedback = nil
	e.patterns = make(map[string]*store.LearnedPattern)
	e.keywords = make(map[string]*store.KeywordWeight)
	e.memory = nil

	if err := e.store.DeleteAll(ctx); err != nil {
		return dowsererr.Wrap(err, dowsererr.CodeLearningResetFailure,
			"deleting persisted learning data")
	}
	slog.Info("learning: all learning data reset")
	return nil
}

// persistLocked rewrites all four collections. Failures are logged; the
// in-memory state stays authoritative. Caller must hold e.mu.
func (e *Engine) persistLocked(ctx context.Context) {
	if err := e.store.SaveFeedback(ctx, e.feedback); err != nil {
		slog.Warn("learning: persisting feedback failed", "error", err)
	}
	if err := e.store.SavePatterns(ctx, e.patterns); err != nil {
		slog.Warn("learning: persisting patterns failed", "error", err)
	}
	if err := e.store.SaveKeywords(ctx, e.keywords); err != nil {
		slog.Warn("learning: persisting keyword weights failed", "error", err)
	}
	if err := e.store.SaveMemory(ctx, e.memory); err != nil {
		slog.Warn("learning: persisting memory bank failed", "error", err)
	}
}
