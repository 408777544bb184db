// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dowser Contributors

package learning_test

import (
	"context"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dowser-dev/dowser/internal/store"
	"github.com/dowser-dev/dowser/internal/store/file"
)

// queryVec is the axis test questions encode to unless overridden.
var queryVec = []float32{1, 0, 0, 0}

// axis returns a unit vector whose cosine similarity with queryVec is c.
func axis(c float64) []float32 {
	return []float32{float32(c), float32(math.Sqrt(1 - c*c)), 0, 0}
}

// stubEmbedder returns a registered vector for exact question texts and a
// fallback for everything else.
type stubEmbedder struct {
	mu        sync.Mutex
	available bool
	vectors   map[string][]float32
	fallback  []float32
}

func newStubEmbedder() *stubEmbedder {
	return &stubEmbedder{
		available: true,
		vectors:   make(map[string][]float32),
		fallback:  queryVec,
	}
}

func (s *stubEmbedder) on(text string, vec []float32) *stubEmbedder {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vectors[text] = vec
	return s
}

func (s *stubEmbedder) Encode(_ context.Context, text string) ([]float32, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.available {
		return nil, false
	}
	if vec, ok := s.vectors[text]; ok {
		return vec, true
	}
	return s.fallback, true
}

func (s *stubEmbedder) EncodeBatch(ctx context.Context, texts []string) ([][]float32, bool) {
	vecs := make([][]float32, 0, len(texts))
	for _, t := range texts {
		v, ok := s.Encode(ctx, t)
		if !ok {
			return nil, false
		}
		vecs = append(vecs, v)
	}
	return vecs, true
}

func (s *stubEmbedder) Available(context.Context) bool { return s.available }
func (s *stubEmbedder) Name() string                   { return "stub" }
func (s *stubEmbedder) Dimensions() int                { return 4 }

// nullStore satisfies store.LearningStore without touching disk, for tests
// that hammer RecordFeedback.
type nullStore struct{}

var _ store.LearningStore = nullStore{}

func (nullStore) SaveFeedback(context.Context, []store.QueryFeedback) error { return nil }
func (nullStore) LoadFeedback(context.Context) ([]store.QueryFeedback, error) {
	return nil, nil
}
func (nullStore) SavePatterns(context.Context, map[string]*store.LearnedPattern) error { return nil }
func (nullStore) LoadPatterns(context.Context) (map[string]*store.LearnedPattern, error) {
	return nil, nil
}
func (nullStore) SaveKeywords(context.Context, map[string]*store.KeywordWeight) error { return nil }
func (nullStore) LoadKeywords(context.Context) (map[string]*store.KeywordWeight, error) {
	return nil, nil
}
func (nullStore) SaveMemory(context.Context, []store.MemoryItem) error   { return nil }
func (nullStore) LoadMemory(context.Context) ([]store.MemoryItem, error) { return nil, nil }
func (nullStore) DeleteAll(context.Context) error                        { return nil }
func (nullStore) Close() error                                           { return nil }

func newTestStore(t *testing.T) *file.Store {
	t.Helper()
	st, err := file.New(store.Config{Dir: t.TempDir()})
	require.NoError(t, err)
	return st
}
