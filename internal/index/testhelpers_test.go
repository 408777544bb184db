// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dowser Contributors

package index_test

import (
	"context"
	"math"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dowser-dev/dowser/internal/schema"
	"github.com/dowser-dev/dowser/internal/store"
	"github.com/dowser-dev/dowser/internal/store/file"
)

// queryVec is the axis every test question encodes to. Entity vectors are
// built with axis(c) so their cosine against the question is c.
var queryVec = []float32{1, 0, 0, 0}

// axis returns a unit vector whose cosine similarity with queryVec is c.
func axis(c float64) []float32 {
	return []float32{float32(c), float32(math.Sqrt(1 - c*c)), 0, 0}
}

type stubMarker struct {
	substr string
	vec    []float32
}

// stubEmbedder maps any text containing a registered marker to that
// marker's vector, first registration wins. Unregistered text gets a
// vector orthogonal to queryVec, scoring zero. Table markers must be
// registered before field and enum markers because a table's description
// embeds its field and enum names.
type stubEmbedder struct {
	name      string
	available bool
	dims      int
	fallback  []float32

	mu       sync.Mutex
	markers  []stubMarker
	failSubs []string
	texts    []string
}

func newStubEmbedder() *stubEmbedder {
	return &stubEmbedder{
		name:      "stub",
		available: true,
		dims:      4,
		fallback:  []float32{0, 0, 0, 1},
	}
}

func (s *stubEmbedder) on(substr string, vec []float32) *stubEmbedder {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.markers = append(s.markers, stubMarker{substr: substr, vec: vec})
	return s
}

func (s *stubEmbedder) failOn(substr string) *stubEmbedder {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failSubs = append(s.failSubs, substr)
	return s
}

func (s *stubEmbedder) encodedTexts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.texts))
	copy(out, s.texts)
	return out
}

func (s *stubEmbedder) Encode(_ context.Context, text string) ([]float32, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.texts = append(s.texts, text)
	if !s.available {
		return nil, false
	}
	for _, sub := range s.failSubs {
		if strings.Contains(text, sub) {
			return nil, false
		}
	}
	for _, m := range s.markers {
		if strings.Contains(text, m.substr) {
			return m.vec, true
		}
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
func (s *stubEmbedder) Name() string                   { return s.name }
func (s *stubEmbedder) Dimensions() int                { return s.dims }

func newTestStore(t *testing.T) *file.Store {
	t.Helper()
	st, err := file.New(store.Config{Dir: t.TempDir()})
	require.NoError(t, err)
	return st
}

// sampleTables is a two-table schema with CJK comments, one identity
// field, and one enum group.
func sampleTables() []schema.Table {
	return []schema.Table{
		{
			Name:    "assets",
			Comment: "资产信息表",
			Module:  "asset",
			Fields: []schema.Field{
				{Name: "id", Type: "bigint", Comment: "主键"},
				{Name: "asset_name", Type: "varchar", Comment: "资产名称"},
				{Name: "asset_status", Type: "varchar", Comment: "资产状态"},
			},
			Enums: map[string][]schema.EnumValue{
				"asset_state": {
					{Value: "enabled", Description: "启用"},
					{Value: "disabled", Description: "停用"},
				},
			},
		},
		{
			Name:    "work_orders",
			Comment: "工单表",
			Module:  "ops",
			Fields: []schema.Field{
				{Name: "title", Type: "varchar", Comment: "工单标题"},
			},
		},
	}
}
