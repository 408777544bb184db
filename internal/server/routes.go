// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dowser Contributors

package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/dowser-dev/dowser/internal/embedding"
	"github.com/dowser-dev/dowser/internal/index"
	"github.com/dowser-dev/dowser/internal/learning"
	"github.com/dowser-dev/dowser/internal/prompt"
	dowsererr "github.com/dowser-dev/dowser/pkg/errors"
)

// RegisterServices sets the service dependencies and registers REST routes.
func (s *Server) RegisterServices(svc *Services) {
	s.services = svc
	s.registerRoutes()
	s.registerLearningRoutes()
}

func (s *Server) registerRoutes() {
	// Index endpoints
	huma.Register(s.api, huma.Operation{
		OperationID: "build-index",
		Method:      http.MethodPost,
		Path:        "/api/v1/index/build",
		Summary:     "Build the vector index from the schema document",
		Tags:        []string{"index"},
	}, s.handleIndexBuild)

	huma.Register(s.api, huma.Operation{
		OperationID: "index-stats",
		Method:      http.MethodGet,
		Path:        "/api/v1/index/stats",
		Summary:     "Index snapshot statistics",
		Tags:        []string{"index"},
	}, s.handleIndexStats)

	// Search endpoints
	huma.Register(s.api, huma.Operation{
		OperationID: "semantic-search",
		Method:      http.MethodPost,
		Path:        "/api/v1/search",
		Summary:     "Semantic search over schema entities",
		Tags:        []string{"search"},
	}, s.handleSearch)

	huma.Register(s.api, huma.Operation{
		OperationID: "hybrid-search",
		Method:      http.MethodPost,
		Path:        "/api/v1/search/hybrid",
		Summary:     "Fused semantic and keyword search",
		Tags:        []string{"search"},
	}, s.handleSearchHybrid)

	// Context endpoints
	huma.Register(s.api, huma.Operation{
		OperationID: "schema-context",
		Method:      http.MethodPost,
		Path:        "/api/v1/context",
		Summary:     "Render prompt-ready schema context",
		Tags:        []string{"context"},
	}, s.handleContext)

	huma.Register(s.api, huma.Operation{
		OperationID: "schema-hint",
		Method:      http.MethodPost,
		Path:        "/api/v1/context/hint",
		Summary:     "Targeted enum, field, and join hints for one table",
		Tags:        []string{"context"},
	}, s.handleHint)

	huma.Register(s.api, huma.Operation{
		OperationID: "schema-glossary",
		Method:      http.MethodGet,
		Path:        "/api/v1/context/glossary",
		Summary:     "Business term glossary from the schema catalog",
		Tags:        []string{"context"},
	}, s.handleGlossary)

	// Encoder endpoint
	huma.Register(s.api, huma.Operation{
		OperationID: "encoder-health",
		Method:      http.MethodGet,
		Path:        "/api/v1/encoder/health",
		Summary:     "Embedding encoder health",
		Tags:        []string{"encoder"},
	}, s.handleEncoderHealth)

	// Status endpoint
	huma.Register(s.api, huma.Operation{
		OperationID: "engine-status",
		Method:      http.MethodGet,
		Path:        "/api/v1/status",
		Summary:     "Engine status",
		Tags:        []string{"system"},
	}, s.handleStatus)
}

// --- Request/Response types for huma ---

type indexBuildInput struct {
	Body struct {
		Force      bool   `json:"force,omitempty" doc:"Rebuild even when an index snapshot exists"`
		SchemaPath string `json:"schema_path,omitempty" doc:"Schema document to index; overrides the configured path"`
	}
}
type indexBuildOutput struct {
	Body index.Stats
}

type indexStatsOutput struct {
	Body index.Stats
}

type searchInput struct {
	Body struct {
		Question string `json:"question" minLength:"1" doc:"Natural-language question"`
		TopK     int    `json:"top_k,omitempty" minimum:"0" doc:"Result cap; 0 uses the configured default"`
	}
}
type searchOutput struct {
	Body struct {
		Results []index.SearchResult `json:"results" doc:"Matching tables, most relevant first"`
	}
}

type searchHybridInput struct {
	Body struct {
		Question       string                `json:"question" minLength:"1" doc:"Natural-language question"`
		TopK           int                   `json:"top_k,omitempty" minimum:"0" doc:"Result cap; 0 uses the configured default"`
		LexicalResults []index.LexicalResult `json:"lexical_results,omitempty" doc:"Caller-computed keyword scores; omit to rank with the built-in scorer"`
	}
}

type contextInput struct {
	Body struct {
		Question string `json:"question,omitempty" doc:"Empty renders the full catalog"`
	}
}
type contextOutput struct {
	Body struct {
		Mode    string `json:"mode" example:"relevant" doc:"Context mode: relevant or full"`
		Context string `json:"context" doc:"Prompt-ready schema description"`
	}
}

type hintInput struct {
	Body struct {
		Table    string `json:"table" minLength:"1" doc:"Table name"`
		Field    string `json:"field,omitempty" doc:"Field for enum and comment hints"`
		RefTable string `json:"ref_table,omitempty" doc:"Referenced table for a join hint"`
	}
}
type hintOutput struct {
	Body struct {
		Hints []string `json:"hints" doc:"Prompt fragments; empty when nothing matches"`
	}
}

type glossaryOutput struct {
	Body struct {
		Glossary map[string]string `json:"glossary" doc:"Business term to schema location"`
	}
}

type encoderHealthOutput struct {
	Body EncoderHealthDetail
}

type statusOutput struct {
	Body struct {
		Status   string                  `json:"status" example:"ok" doc:"Service status"`
		Index    index.Stats             `json:"index" doc:"Vector index snapshot counters"`
		Learning learning.Stats          `json:"learning" doc:"Learning store statistics"`
		Encoder  embedding.EncoderStatus `json:"encoder" doc:"Embedding encoder status"`
		Schema   prompt.Stats            `json:"schema" doc:"Loaded schema catalog counts"`
	}
}

// --- Handlers ---

func (s *Server) handleIndexBuild(ctx context.Context, input *indexBuildInput) (*indexBuildOutput, error) {
	stats, err := s.services.Index.Build(ctx, input.Body.SchemaPath, input.Body.Force)
	if err != nil {
		return nil, humaError("building index", err)
	}
	return &indexBuildOutput{Body: stats}, nil
}

func (s *Server) handleIndexStats(ctx context.Context, _ *struct{}) (*indexStatsOutput, error) {
	return &indexStatsOutput{Body: s.services.Index.Stats(ctx)}, nil
}

func (s *Server) handleSearch(ctx context.Context, input *searchInput) (*searchOutput, error) {
	out := &searchOutput{}
	out.Body.Results = s.services.Index.Search(ctx, input.Body.Question, input.Body.TopK)
	return out, nil
}

func (s *Server) handleSearchHybrid(ctx context.Context, input *searchHybridInput) (*searchOutput, error) {
	out := &searchOutput{}
	out.Body.Results = s.services.Index.SearchHybrid(ctx,
		input.Body.Question, input.Body.LexicalResults, input.Body.TopK)
	return out, nil
}

func (s *Server) handleContext(ctx context.Context, input *contextInput) (*contextOutput, error) {
	mode, text := s.services.Contexts.SchemaContext(ctx, input.Body.Question)
	out := &contextOutput{}
	out.Body.Mode = mode
	out.Body.Context = text
	return out, nil
}

func (s *Server) handleHint(_ context.Context, input *hintInput) (*hintOutput, error) {
	out := &hintOutput{}
	out.Body.Hints = s.services.Contexts.Hints(input.Body.Table, input.Body.Field, input.Body.RefTable)
	return out, nil
}

func (s *Server) handleGlossary(_ context.Context, _ *struct{}) (*glossaryOutput, error) {
	out := &glossaryOutput{}
	out.Body.Glossary = s.services.Contexts.Glossary()
	return out, nil
}

func (s *Server) handleEncoderHealth(ctx context.Context, _ *struct{}) (*encoderHealthOutput, error) {
	metrics := s.services.Encoder.Health(ctx)
	detail := EncoderHealthDetail{
		Encoder: s.services.Encoder.Name(),
		Message: "encoder available",
		Metrics: metrics,
	}
	if !metrics.Available {
		detail.Message = "encoder unavailable"
	}
	return &encoderHealthOutput{Body: detail}, nil
}

func (s *Server) handleStatus(ctx context.Context, _ *struct{}) (*statusOutput, error) {
	out := &statusOutput{}
	out.Body.Status = "ok"
	out.Body.Index = s.services.Index.Stats(ctx)
	out.Body.Learning = s.services.Learning.Stats(ctx)
	out.Body.Schema = s.services.Index.CatalogStats()
	out.Body.Encoder = embedding.EncoderStatus{
		Available: s.services.Encoder.Available(ctx),
		Encoder:   s.services.Encoder.Name(),
	}
	return out, nil
}

// humaError converts a domain error into the huma status error matching
// its code classification.
func humaError(msg string, err error) error {
	switch dowsererr.HTTPStatus(err) {
	case http.StatusNotFound:
		return huma.Error404NotFound(msg, err)
	case http.StatusBadRequest:
		return huma.Error400BadRequest(msg, err)
	case http.StatusForbidden:
		return huma.Error403Forbidden(msg, err)
	case http.StatusServiceUnavailable:
		return huma.Error503ServiceUnavailable(msg, err)
	case http.StatusGatewayTimeout:
		return huma.Error504GatewayTimeout(msg, err)
	case http.StatusBadGateway:
		return huma.Error502BadGateway(msg, err)
	default:
		return huma.Error500InternalServerError(msg, err)
	}
}
