// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dowser Contributors

package server_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dowser-dev/dowser/internal/embedding"
	"github.com/dowser-dev/dowser/internal/index"
	"github.com/dowser-dev/dowser/internal/learning"
	"github.com/dowser-dev/dowser/internal/prompt"
	"github.com/dowser-dev/dowser/internal/server"
	dowsererr "github.com/dowser-dev/dowser/pkg/errors"
	"github.com/dowser-dev/dowser/pkg/health"
	"github.com/dowser-dev/dowser/pkg/types"
)

// Mock service implementations for testing.

type mockIndexService struct {
	buildErr error

	mu          sync.Mutex
	gotSchema   string
	gotForce    bool
	gotTopK     int
	gotLexical  []index.LexicalResult
	hybridCalls int
}

func (m *mockIndexService) Build(_ context.Context, schemaPath string, force bool) (index.Stats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gotSchema, m.gotForce = schemaPath, force
	if m.buildErr != nil {
		return index.Stats{}, m.buildErr
	}
	return index.Stats{Built: true, Tables: 3, Fields: 4, Enums: 1, Encoder: "stub"}, nil
}

func (m *mockIndexService) Stats(context.Context) index.Stats {
	return index.Stats{Built: true, Tables: 3, Fields: 4, Enums: 1, Encoder: "stub"}
}

func (m *mockIndexService) Search(_ context.Context, _ string, topK int) []index.SearchResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gotTopK = topK
	return []index.SearchResult{{
		TableName:    "orders",
		TableComment: "Customer purchase orders",
		ModuleName:   "sales",
		Relevance:    0.91,
		MatchType:    types.MatchSemantic,
	}}
}

func (m *mockIndexService) SearchHybrid(_ context.Context, _ string, lexicalResults []index.LexicalResult, topK int) []index.SearchResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gotLexical = lexicalResults
	m.gotTopK = topK
	m.hybridCalls++
	return []index.SearchResult{{
		TableName:     "orders",
		Relevance:     1.23,
		MatchType:     types.MatchHybrid,
		MatchedFields: []string{"order_status"},
	}}
}

func (m *mockIndexService) CatalogStats() prompt.Stats {
	return prompt.Stats{Modules: 2, Tables: 3, Fields: 4, Enums: 1}
}

type mockContextService struct{}

func (m *mockContextService) SchemaContext(_ context.Context, question string) (string, string) {
	if question == "" {
		return "full", "full catalog walk"
	}
	return "relevant", "context for: " + question
}

func (m *mockContextService) Hints(table, field, refTable string) []string {
	if table != "orders" {
		return nil
	}
	var hints []string
	if field != "" {
		hints = append(hints, "enum values", "field meaning")
	}
	if refTable != "" {
		hints = append(hints, "join path")
	}
	return hints
}

func (m *mockContextService) Glossary() map[string]string {
	return map[string]string{"Lifecycle state of the order": "orders.order_status"}
}

type mockEncoderService struct{ available bool }

func (m *mockEncoderService) Name() string                   { return "openai/text-embedding-3-small" }
func (m *mockEncoderService) Available(context.Context) bool { return m.available }
func (m *mockEncoderService) Health(context.Context) health.Metrics {
	return health.Metrics{Available: m.available, FailureCount: 2}
}

// testServices bundles the mocks behind a registered server so tests can
// inspect captured arguments and flip failure modes.
type testServices struct {
	index    *mockIndexService
	learning *mockLearningService
	contexts *mockContextService
	encoder  *mockEncoderService
}

func newTestServer(t *testing.T) (*server.Server, *testServices) {
	t.Helper()
	ts := &testServices{
		index:    &mockIndexService{},
		learning: &mockLearningService{},
		contexts: &mockContextService{},
		encoder:  &mockEncoderService{available: true},
	}

	srv, err := server.New(server.Config{ListenAddr: "127.0.0.1:0"})
	require.NoError(t, err)
	srv.RegisterServices(server.NewServicesForTest(ts.index, ts.learning, ts.contexts, ts.encoder))
	return srv, ts
}

func postJSON(t *testing.T, srv *server.Server, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	return w
}

func getPath(t *testing.T, srv *server.Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	return w
}

func TestRoutes_IndexBuild(t *testing.T) {
	srv, ts := newTestServer(t)

	w := postJSON(t, srv, "/api/v1/index/build", `{"force": true, "schema_path": "/tmp/schema.yaml"}`)
	assert.Equal(t, http.StatusOK, w.Code)

	var stats index.Stats
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.True(t, stats.Built)
	assert.Equal(t, 3, stats.Tables)

	assert.True(t, ts.index.gotForce)
	assert.Equal(t, "/tmp/schema.yaml", ts.index.gotSchema)
}

func TestRoutes_IndexBuild_EncoderUnavailable(t *testing.T) {
	srv, ts := newTestServer(t)
	ts.index.buildErr = dowsererr.New(dowsererr.CodeIndexBuildUnavailable,
		"no embedding encoder available, index not built")

	w := postJSON(t, srv, "/api/v1/index/build", `{}`)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "building index")
}

func TestRoutes_IndexBuild_BadSchemaDocument(t *testing.T) {
	srv, ts := newTestServer(t)
	ts.index.buildErr = dowsererr.New(dowsererr.CodeSchemaParseInvalidFormat,
		"decoding schema document")

	w := postJSON(t, srv, "/api/v1/index/build", `{"force": true}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRoutes_IndexStats(t *testing.T) {
	srv, _ := newTestServer(t)

	w := getPath(t, srv, "/api/v1/index/stats")
	assert.Equal(t, http.StatusOK, w.Code)

	var stats index.Stats
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.True(t, stats.Built)
	assert.Equal(t, 4, stats.Fields)
	assert.Equal(t, "stub", stats.Encoder)
}

func TestRoutes_Search(t *testing.T) {
	srv, ts := newTestServer(t)

	w := postJSON(t, srv, "/api/v1/search", `{"question": "show recent purchases", "top_k": 3}`)
	assert.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Results []index.SearchResult `json:"results"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "orders", resp.Results[0].TableName)
	assert.Equal(t, types.MatchSemantic, resp.Results[0].MatchType)

	assert.Equal(t, 3, ts.index.gotTopK)
}

func TestRoutes_Search_MissingQuestion(t *testing.T) {
	srv, _ := newTestServer(t)

	w := postJSON(t, srv, "/api/v1/search", `{}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestRoutes_SearchHybrid_CallerLexical(t *testing.T) {
	srv, ts := newTestServer(t)

	w := postJSON(t, srv, "/api/v1/search/hybrid", `{
		"question": "show recent purchases",
		"lexical_results": [
			{"table_name": "orders", "score": 2.0, "match_type": "field", "matched_fields": ["order_status"]}
		]
	}`)
	assert.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Results []index.SearchResult `json:"results"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Results, 1)
	assert.Equal(t, types.MatchHybrid, resp.Results[0].MatchType)

	require.Len(t, ts.index.gotLexical, 1)
	assert.Equal(t, "orders", ts.index.gotLexical[0].TableName)
	assert.InDelta(t, 2.0, ts.index.gotLexical[0].Score, 1e-9)
}

func TestRoutes_SearchHybrid_OmittedLexicalFallsBack(t *testing.T) {
	srv, ts := newTestServer(t)

	w := postJSON(t, srv, "/api/v1/search/hybrid", `{"question": "show recent purchases"}`)
	assert.Equal(t, http.StatusOK, w.Code)

	// Omitting lexical_results must surface as nil so the engine ranks
	// with its own scorer.
	assert.Equal(t, 1, ts.index.hybridCalls)
	assert.Nil(t, ts.index.gotLexical)
}

func TestRoutes_Context(t *testing.T) {
	srv, _ := newTestServer(t)

	w := postJSON(t, srv, "/api/v1/context", `{"question": "order volume by month"}`)
	assert.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Mode    string `json:"mode"`
		Context string `json:"context"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "relevant", resp.Mode)
	assert.Contains(t, resp.Context, "order volume by month")
}

func TestRoutes_Context_EmptyQuestionRendersFull(t *testing.T) {
	srv, _ := newTestServer(t)

	w := postJSON(t, srv, "/api/v1/context", `{}`)
	assert.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Mode    string `json:"mode"`
		Context string `json:"context"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "full", resp.Mode)
	assert.Equal(t, "full catalog walk", resp.Context)
}

func TestRoutes_Hint(t *testing.T) {
	srv, _ := newTestServer(t)

	w := postJSON(t, srv, "/api/v1/context/hint", `{
		"table": "orders", "field": "order_status", "ref_table": "customers"
	}`)
	assert.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Hints []string `json:"hints"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Hints, 3)
}

func TestRoutes_Hint_UnknownTable(t *testing.T) {
	srv, _ := newTestServer(t)

	w := postJSON(t, srv, "/api/v1/context/hint", `{"table": "nope", "field": "order_status"}`)
	assert.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Hints []string `json:"hints"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Empty(t, resp.Hints)
}

func TestRoutes_Glossary(t *testing.T) {
	srv, _ := newTestServer(t)

	w := getPath(t, srv, "/api/v1/context/glossary")
	assert.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Glossary map[string]string `json:"glossary"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "orders.order_status", resp.Glossary["Lifecycle state of the order"])
}

func TestRoutes_EncoderHealth(t *testing.T) {
	srv, _ := newTestServer(t)

	w := getPath(t, srv, "/api/v1/encoder/health")
	assert.Equal(t, http.StatusOK, w.Code)

	var detail server.EncoderHealthDetail
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &detail))
	assert.Equal(t, "openai/text-embedding-3-small", detail.Encoder)
	assert.Equal(t, "encoder available", detail.Message)
	assert.True(t, detail.Available)
	assert.Equal(t, int64(2), detail.FailureCount)
}

func TestRoutes_EncoderHealth_Unavailable(t *testing.T) {
	srv, ts := newTestServer(t)
	ts.encoder.available = false

	w := getPath(t, srv, "/api/v1/encoder/health")
	assert.Equal(t, http.StatusOK, w.Code)

	var detail server.EncoderHealthDetail
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &detail))
	assert.Equal(t, "encoder unavailable", detail.Message)
	assert.False(t, detail.Available)
}

func TestRoutes_Status(t *testing.T) {
	srv, _ := newTestServer(t)

	w := getPath(t, srv, "/api/v1/status")
	assert.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Status   string                  `json:"status"`
		Index    index.Stats             `json:"index"`
		Learning learning.Stats          `json:"learning"`
		Encoder  embedding.EncoderStatus `json:"encoder"`
		Schema   prompt.Stats            `json:"schema"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 3, resp.Index.Tables)
	assert.Equal(t, 10, resp.Learning.TotalFeedback)
	assert.True(t, resp.Encoder.Available)
	assert.Equal(t, "openai/text-embedding-3-small", resp.Encoder.Encoder)
	assert.Equal(t, 2, resp.Schema.Modules)
}
