// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dowser Contributors

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dowser-dev/dowser/internal/index"
	"github.com/dowser-dev/dowser/internal/learning"
	"github.com/dowser-dev/dowser/internal/prompt"
	"github.com/dowser-dev/dowser/internal/server"
	dowsererr "github.com/dowser-dev/dowser/pkg/errors"
	"github.com/dowser-dev/dowser/pkg/health"
)

func main() {
	spec, err := generateSpec()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	outPath := "api/openapi/spec.json"
	if len(os.Args) > 1 {
		outPath = os.Args[1]
	}

	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "error creating output dir: %v\n", err)
		os.Exit(1)
	}

	if err := os.WriteFile(outPath, spec, 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "error writing spec: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("OpenAPI spec written to %s\n", outPath)
}

// generateSpec creates a server with all routes registered and extracts the
// OpenAPI spec that huma generates from the Go type annotations.
func generateSpec() ([]byte, error) {
	// Use no-op service stubs so all routes are registered for schema
	// discovery. Handlers are never invoked during spec generation.
	svc := server.NewServicesForTest(&stubIndex{}, &stubLearning{}, &stubContext{}, &stubEncoder{})

	srv, err := server.New(server.Config{ListenAddr: "127.0.0.1:0"})
	if err != nil {
		return nil, dowsererr.Errorf(dowsererr.CodeCLISetupFailure, "creating server: %w", err)
	}
	srv.RegisterServices(svc)

	return json.MarshalIndent(srv.API().OpenAPI(), "", "  ")
}

// No-op service stubs for spec generation. Methods are never called.

type stubIndex struct{}

func (s *stubIndex) Build(context.Context, string, bool) (index.Stats, error) {
	return index.Stats{}, nil
}
func (s *stubIndex) Stats(context.Context) index.Stats { return index.Stats{} }
func (s *stubIndex) Search(context.Context, string, int) []index.SearchResult {
	return nil
}

func (s *stubIndex) SearchHybrid(context.Context, string, []index.LexicalResult, int) []index.SearchResult {
	return nil
}
func (s *stubIndex) CatalogStats() prompt.Stats { return prompt.Stats{} }

type stubLearning struct{}

func (s *stubLearning) RecordFeedback(context.Context, learning.Feedback) string { return "" }
func (s *stubLearning) Stats(context.Context) learning.Stats                     { return learning.Stats{} }
func (s *stubLearning) EnhancedWeights(context.Context, []string) map[string]float64 {
	return nil
}

func (s *stubLearning) SimilarQuestions(context.Context, string, int) []learning.SimilarQuestion {
	return nil
}

func (s *stubLearning) TableSuggestions(context.Context, string) []learning.TableSuggestion {
	return nil
}
func (s *stubLearning) RecommendedKeywords(context.Context, string) []string { return nil }
func (s *stubLearning) AnalyzeQueryPatterns(context.Context, int) learning.Analysis {
	return learning.Analysis{}
}
func (s *stubLearning) Reset(context.Context) error { return nil }

type stubContext struct{}

func (s *stubContext) SchemaContext(context.Context, string) (string, string) { return "", "" }
func (s *stubContext) Hints(string, string, string) []string                  { return nil }
func (s *stubContext) Glossary() map[string]string                            { return nil }

type stubEncoder struct{}

func (s *stubEncoder) Name() string                    { return "" }
func (s *stubEncoder) Available(context.Context) bool  { return false }
func (s *stubEncoder) Health(context.Context) health.Metrics {
	return health.Metrics{}
}
