// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dowser Contributors

package server

import (
	"context"

	"github.com/dowser-dev/dowser/internal/index"
	"github.com/dowser-dev/dowser/internal/learning"
	"github.com/dowser-dev/dowser/internal/prompt"
	dowsererr "github.com/dowser-dev/dowser/pkg/errors"
	"github.com/dowser-dev/dowser/pkg/health"
)

// Services holds dependencies injected into route handlers. Each field is
// an interface so subsystems can be mocked in tests. Production wiring
// goes through NewServices so a missing dependency fails at startup
// rather than on the first request.
type Services struct {
	Index    IndexService
	Learning LearningService
	Contexts ContextService
	Encoder  EncoderService
}

// NewServices creates a Services instance with validation. Returns an
// error if any required service is nil.
func NewServices(idx IndexService, learn LearningService, contexts ContextService, encoder EncoderService) (*Services, error) {
	if idx == nil {
		return nil, dowsererr.New(dowsererr.CodeServerConfigInvalid, "index service is required")
	}
	if learn == nil {
		return nil, dowsererr.New(dowsererr.CodeServerConfigInvalid, "learning service is required")
	}
	if contexts == nil {
		return nil, dowsererr.New(dowsererr.CodeServerConfigInvalid, "context service is required")
	}
	if encoder == nil {
		return nil, dowsererr.New(dowsererr.CodeServerConfigInvalid, "encoder service is required")
	}
	return &Services{
		Index:    idx,
		Learning: learn,
		Contexts: contexts,
		Encoder:  encoder,
	}, nil
}

// IndexService provides index and search operations for REST handlers.
// The engine implements it. Search methods return empty results rather
// than errors while the index is unbuilt or the encoder is down.
type IndexService interface {
	Build(ctx context.Context, schemaPath string, force bool) (index.Stats, error)
	Stats(ctx context.Context) index.Stats
	Search(ctx context.Context, question string, topK int) []index.SearchResult
	SearchHybrid(ctx context.Context, question string, lexicalResults []index.LexicalResult, topK int) []index.SearchResult
	CatalogStats() prompt.Stats
}

// ContextService renders prompt context from the loaded catalog for REST
// handlers. The engine implements it.
type ContextService interface {
	SchemaContext(ctx context.Context, question string) (mode, text string)
	Hints(table, field, refTable string) []string
	Glossary() map[string]string
}

// LearningService provides feedback recording and learned-signal queries
// for REST handlers. The learning engine implements it.
type LearningService interface {
	RecordFeedback(ctx context.Context, fb learning.Feedback) string
	Stats(ctx context.Context) learning.Stats
	EnhancedWeights(ctx context.Context, keywords []string) map[string]float64
	SimilarQuestions(ctx context.Context, question string, topK int) []learning.SimilarQuestion
	TableSuggestions(ctx context.Context, question string) []learning.TableSuggestion
	RecommendedKeywords(ctx context.Context, question string) []string
	AnalyzeQueryPatterns(ctx context.Context, windowDays int) learning.Analysis
	Reset(ctx context.Context) error
}

// EncoderService reports the active embedding encoder's identity and
// health for REST handlers. The embedding service implements it.
type EncoderService interface {
	Name() string
	Available(ctx context.Context) bool
	Health(ctx context.Context) health.Metrics
}

// EncoderHealthDetail is the REST representation of encoder health.
type EncoderHealthDetail struct {
	Encoder string `json:"encoder" doc:"Active encoder name"`
	Message string `json:"message" doc:"Human-readable status message"`
	health.Metrics
}

// NewServicesForTest creates a Services instance for testing. It
// delegates to NewServices to enforce the same validation invariants as
// production code and panics if any required service is nil.
func NewServicesForTest(idx IndexService, learn LearningService, contexts ContextService, encoder EncoderService) *Services {
	svc, err := NewServices(idx, learn, contexts, encoder)
	if err != nil {
		panic(err)
	}
	return svc
}
