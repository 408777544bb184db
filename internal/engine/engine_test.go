// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dowser Contributors

package engine_test

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dowser-dev/dowser/internal/engine"
	"github.com/dowser-dev/dowser/internal/index"
	"github.com/dowser-dev/dowser/internal/lexical"
	"github.com/dowser-dev/dowser/internal/store"
	"github.com/dowser-dev/dowser/internal/store/file"
	dowsererr "github.com/dowser-dev/dowser/pkg/errors"
	"github.com/dowser-dev/dowser/pkg/types"
)

// queryVec is the axis every test question encodes to; entity vectors are
// built with axis(c) so their cosine against the question is c.
var queryVec = []float32{1, 0, 0, 0}

func axis(c float64) []float32 {
	return []float32{float32(c), float32(math.Sqrt(1 - c*c)), 0, 0}
}

type stubMarker struct {
	substr string
	vec    []float32
}

// stubEmbedder maps text containing a registered marker to that marker's
// vector, first registration wins. Unregistered text encodes orthogonal
// to queryVec and scores zero.
type stubEmbedder struct {
	available bool
	markers   []stubMarker
}

func newStubEmbedder() *stubEmbedder {
	return &stubEmbedder{available: true}
}

func (s *stubEmbedder) on(substr string, vec []float32) *stubEmbedder {
	s.markers = append(s.markers, stubMarker{substr: substr, vec: vec})
	return s
}

func (s *stubEmbedder) Encode(_ context.Context, text string) ([]float32, bool) {
	if !s.available {
		return nil, false
	}
	for _, m := range s.markers {
		if strings.Contains(text, m.substr) {
			return m.vec, true
		}
	}
	return []float32{0, 0, 0, 1}, true
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

const sampleCatalog = `
modules:
  - name: sales
    description: Order processing and fulfillment
    tables:
      - name: orders
        comment: Customer purchase orders
        fields:
          - name: id
            type: bigint
          - name: order_status
            type: varchar
            comment: Lifecycle state of the order
          - name: customer_id
            type: bigint
            comment: Buyer reference
        enums:
          order_status:
            - value: pending
              description: Awaiting payment
            - value: shipped
              description: Handed to carrier
        foreign_keys:
          - field: customer_id
            ref_table: customers
            ref_field: id
      - name: customers
        comment: Buyer master records
        fields:
          - name: id
            type: bigint
          - name: customer_name
            type: varchar
            comment: Display name
  - name: billing
    description: Invoices and payments
    tables:
      - name: invoices
        comment: Issued invoices
        fields:
          - name: amount
            type: decimal
            comment: Total charged
`

func writeCatalog(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "schema.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func newTestEngine(t *testing.T, emb *stubEmbedder, schemaPath string) *engine.Engine {
	t.Helper()
	st, err := file.New(store.Config{Dir: t.TempDir()})
	require.NoError(t, err)
	idx := index.New(emb, st, index.Config{})
	return engine.New(idx, lexical.New(nil), schemaPath)
}

func TestEngine_BuildFromSchemaFile(t *testing.T) {
	path := writeCatalog(t, sampleCatalog)
	eng := newTestEngine(t, newStubEmbedder(), path)
	ctx := context.Background()

	require.False(t, eng.Built(ctx))

	stats, err := eng.Build(ctx, "", false)
	require.NoError(t, err)
	assert.True(t, stats.Built)
	assert.Equal(t, 3, stats.Tables)
	assert.Equal(t, 4, stats.Fields)
	assert.Equal(t, 1, stats.Enums)
	assert.Equal(t, "stub", stats.Encoder)
	assert.True(t, eng.Built(ctx))

	cat := eng.CatalogStats()
	assert.Equal(t, 2, cat.Modules)
	assert.Equal(t, 3, cat.Tables)
	assert.Equal(t, 4, cat.Fields)
	assert.Equal(t, 1, cat.Enums)
}

func TestEngine_BuildWithoutSchemaPath(t *testing.T) {
	eng := newTestEngine(t, newStubEmbedder(), "")

	_, err := eng.Build(context.Background(), "", false)
	require.Error(t, err)
	assert.True(t, dowsererr.HasCode(err, dowsererr.CodeServerUnavailable))
}

func TestEngine_BuildRemembersOverridePath(t *testing.T) {
	path := writeCatalog(t, sampleCatalog)
	eng := newTestEngine(t, newStubEmbedder(), "")
	ctx := context.Background()

	_, err := eng.Build(ctx, path, false)
	require.NoError(t, err)

	// The override sticks: the next build needs no path.
	stats, err := eng.Build(ctx, "", true)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Tables)
}

func TestEngine_BuildMissingSchemaFile(t *testing.T) {
	eng := newTestEngine(t, newStubEmbedder(), filepath.Join(t.TempDir(), "absent.yaml"))

	_, err := eng.Build(context.Background(), "", false)
	require.Error(t, err)
	assert.True(t, dowsererr.HasCode(err, dowsererr.CodeSchemaLoadReadFailure))
}

func TestEngine_BuildSkipsWhenBuiltUnlessForced(t *testing.T) {
	path := writeCatalog(t, sampleCatalog)
	eng := newTestEngine(t, newStubEmbedder(), path)
	ctx := context.Background()

	_, err := eng.Build(ctx, "", false)
	require.NoError(t, err)

	extended := sampleCatalog + `
  - name: support
    tables:
      - name: tickets
        comment: Help desk tickets
`
	require.NoError(t, os.WriteFile(path, []byte(extended), 0o600))

	// Unforced build leaves the index snapshot alone but still reloads
	// the catalog.
	stats, err := eng.Build(ctx, "", false)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Tables)
	assert.Equal(t, 4, eng.CatalogStats().Tables)

	stats, err = eng.Build(ctx, "", true)
	require.NoError(t, err)
	assert.Equal(t, 4, stats.Tables)
}

func TestEngine_Search(t *testing.T) {
	emb := newStubEmbedder().
		on("show recent purchases", queryVec).
		on("Customer purchase orders", axis(0.9))
	eng := newTestEngine(t, emb, writeCatalog(t, sampleCatalog))
	ctx := context.Background()

	_, err := eng.Build(ctx, "", false)
	require.NoError(t, err)

	results := eng.Search(ctx, "show recent purchases", 5)
	require.Len(t, results, 1)
	assert.Equal(t, "orders", results[0].TableName)
	assert.Equal(t, "sales", results[0].ModuleName)
	assert.Equal(t, types.MatchSemantic, results[0].MatchType)
	assert.InDelta(t, 0.9, results[0].Relevance, 1e-6)
}

func TestEngine_SearchUnbuilt(t *testing.T) {
	eng := newTestEngine(t, newStubEmbedder(), writeCatalog(t, sampleCatalog))
	assert.Empty(t, eng.Search(context.Background(), "anything", 5))
}

func TestEngine_SearchHybrid_NilFallsBackToScorer(t *testing.T) {
	emb := newStubEmbedder()
	eng := newTestEngine(t, emb, writeCatalog(t, sampleCatalog))
	ctx := context.Background()

	_, err := eng.Build(ctx, "", false)
	require.NoError(t, err)

	// With the encoder down, a nil lexical slice still yields keyword
	// results via the internal scorer.
	emb.available = false
	results := eng.SearchHybrid(ctx, "orders", nil, 5)
	require.Len(t, results, 1)
	assert.Equal(t, "orders", results[0].TableName)
	assert.Equal(t, types.MatchKeyword, results[0].MatchType)
	// Name hit (2.0) plus comment hit (1.0), scaled by the lexical weight.
	assert.InDelta(t, 3.0*0.3, results[0].Relevance, 1e-6)

	// An explicit empty slice means the caller supplied zero lexical
	// signal; nothing fuses.
	assert.Empty(t, eng.SearchHybrid(ctx, "orders", []index.LexicalResult{}, 5))
}

func TestEngine_SearchHybrid_MergesCallerScores(t *testing.T) {
	emb := newStubEmbedder().
		on("show recent purchases", queryVec).
		on("Customer purchase orders", axis(0.9))
	eng := newTestEngine(t, emb, writeCatalog(t, sampleCatalog))
	ctx := context.Background()

	_, err := eng.Build(ctx, "", false)
	require.NoError(t, err)

	provided := []index.LexicalResult{{
		TableName:     "orders",
		Score:         2.0,
		MatchType:     types.MatchField,
		MatchedFields: []string{"order_status"},
	}}
	results := eng.SearchHybrid(ctx, "show recent purchases", provided, 5)
	require.Len(t, results, 1)
	assert.Equal(t, "orders", results[0].TableName)
	assert.Equal(t, types.MatchHybrid, results[0].MatchType)
	assert.InDelta(t, 0.9*0.7+2.0*0.3, results[0].Relevance, 1e-6)
	assert.Contains(t, results[0].MatchedFields, "order_status")
}

func TestEngine_SchemaContext(t *testing.T) {
	eng := newTestEngine(t, newStubEmbedder(), writeCatalog(t, sampleCatalog))
	ctx := context.Background()

	// No catalog loaded yet: the mode is still reported, the text is empty.
	mode, text := eng.SchemaContext(ctx, "")
	assert.Equal(t, engine.ModeFull, mode)
	assert.Empty(t, text)

	require.NoError(t, eng.LoadSchema())

	mode, text = eng.SchemaContext(ctx, "")
	assert.Equal(t, engine.ModeFull, mode)
	assert.Contains(t, text, "orders")
	assert.Contains(t, text, "invoices")

	mode, text = eng.SchemaContext(ctx, "orders")
	assert.Equal(t, engine.ModeRelevant, mode)
	assert.Contains(t, text, "sales")
	assert.Contains(t, text, "**orders**")
	assert.NotContains(t, text, "invoices")
}

func TestEngine_Hints(t *testing.T) {
	eng := newTestEngine(t, newStubEmbedder(), writeCatalog(t, sampleCatalog))

	assert.Nil(t, eng.Hints("orders", "order_status", ""))

	require.NoError(t, eng.LoadSchema())

	hints := eng.Hints("orders", "order_status", "")
	require.Len(t, hints, 2)
	assert.Contains(t, hints[0], "pending, shipped")
	assert.Contains(t, hints[1], "Lifecycle state of the order")

	hints = eng.Hints("orders", "", "customers")
	require.Len(t, hints, 1)
	assert.Contains(t, hints[0], "customer_id")

	assert.Len(t, eng.Hints("orders", "order_status", "customers"), 3)
	assert.Empty(t, eng.Hints("unknown", "order_status", "customers"))
	assert.Empty(t, eng.Hints("orders", "", ""))
}

func TestEngine_Glossary(t *testing.T) {
	eng := newTestEngine(t, newStubEmbedder(), writeCatalog(t, sampleCatalog))

	assert.Nil(t, eng.Glossary())

	require.NoError(t, eng.LoadSchema())

	glossary := eng.Glossary()
	assert.Equal(t, "orders.order_status", glossary["Lifecycle state of the order"])
	assert.Equal(t, "orders.order_status: pending", glossary["pending"])
}

func TestEngine_LoadSchemaBadDocument(t *testing.T) {
	eng := newTestEngine(t, newStubEmbedder(), writeCatalog(t, "modules: [unclosed"))

	err := eng.LoadSchema()
	require.Error(t, err)
	assert.True(t, dowsererr.HasCode(err, dowsererr.CodeSchemaParseInvalidFormat))
	assert.Zero(t, eng.CatalogStats())
}
