// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dowser Contributors

package embedding

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/dowser-dev/dowser/pkg/health"
)

// Service is the encoding access layer the index and learning engine
// consume. It resolves an encoder from its Resolver once, lazily, under
// double-checked locking. Resolution failure is not fatal: callers see
// ok=false and the service re-attempts resolution only after the retry
// cooldown, so a missing or misconfigured provider degrades retrieval
// instead of breaking it.
type Service struct {
	resolver Resolver
	cooldown time.Duration
	nowFunc  func() time.Time // for testing

	mu          sync.RWMutex
	enc         Encoder
	attempted   bool
	lastAttempt time.Time
}

// DefaultRetryCooldown gates how often a failed resolution is retried.
const DefaultRetryCooldown = 30 * time.Second

// Compile-time check that Service implements Embedder.
var _ Embedder = (*Service)(nil)

// NewService creates a Service over resolver. A non-positive cooldown
// falls back to DefaultRetryCooldown.
func NewService(resolver Resolver, cooldown time.Duration) *Service {
	if cooldown <= 0 {
		cooldown = DefaultRetryCooldown
	}
	return &Service{
		resolver: resolver,
		cooldown: cooldown,
		nowFunc:  time.Now,
	}
}

// Encode embeds a single text. ok is false when no encoder is available or
// the provider call failed; the error never propagates.
func (s *Service) Encode(ctx context.Context, text string) ([]float32, bool) {
	enc := s.encoder(ctx)
	if enc == nil {
		return nil, false
	}

	vec, err := enc.Encode(ctx, text)
	if err != nil {
		slog.Warn("embedding: encode failed", "encoder", enc.Name(), "error", err)
		return nil, false
	}
	if len(vec) == 0 {
		slog.Warn("embedding: encoder returned empty vector", "encoder", enc.Name())
		return nil, false
	}
	return vec, true
}

// EncodeBatch embeds texts in order. ok is false when no encoder is
// available, the provider call failed, or the provider returned a vector
// count that does not match the input.
func (s *Service) EncodeBatch(ctx context.Context, texts []string) ([][]float32, bool) {
	if len(texts) == 0 {
		return nil, true
	}

	enc := s.encoder(ctx)
	if enc == nil {
		return nil, false
	}

	vecs, err := enc.EncodeBatch(ctx, texts)
	if err != nil {
		slog.Warn("embedding: batch encode failed", "encoder", enc.Name(), "count", len(texts), "error", err)
		return nil, false
	}
	if len(vecs) != len(texts) {
		slog.Warn("embedding: batch result count mismatch",
			"encoder", enc.Name(), "want", len(texts), "got", len(vecs))
		return nil, false
	}
	return vecs, true
}

// Available reports whether an encoder is resolved (or resolvable) and
// answering.
func (s *Service) Available(ctx context.Context) bool {
	enc := s.encoder(ctx)
	return enc != nil && enc.Available(ctx)
}

// Name returns the resolved encoder's name, or "" before resolution.
func (s *Service) Name() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.enc == nil {
		return ""
	}
	return s.enc.Name()
}

// Dimensions returns the resolved encoder's vector width, or 0 before
// resolution.
func (s *Service) Dimensions() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.enc == nil {
		return 0
	}
	return s.enc.Dimensions()
}

// Health reports the resolved encoder's health metrics. Before resolution
// it reports unavailable with no failure history.
func (s *Service) Health(ctx context.Context) health.Metrics {
	enc := s.encoder(ctx)
	if enc == nil {
		return health.Metrics{Available: false}
	}
	if reporter, ok := enc.(HealthReporter); ok {
		return reporter.HealthMetrics()
	}
	return health.Metrics{Available: enc.Available(ctx)}
}

// Close releases the resolved encoder, if any.
func (s *Service) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.enc == nil {
		return nil
	}
	err := s.enc.Close()
	s.enc = nil
	return err
}

// SetNowFunc overrides the time source (for testing).
func (s *Service) SetNowFunc(fn func() time.Time) {
	s.mu.Lock()
	s.nowFunc = fn
	s.mu.Unlock()
}

// encoder returns the resolved encoder, resolving on first use. A failed
// attempt leaves the service unavailable until the cooldown elapses;
// within the cooldown callers return immediately.
func (s *Service) encoder(ctx context.Context) Encoder {
	s.mu.RLock()
	enc := s.enc
	s.mu.RUnlock()
	if enc != nil {
		return enc
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.enc != nil {
		return s.enc
	}
	if s.attempted && s.nowFunc().Sub(s.lastAttempt) < s.cooldown {
		return nil
	}

	s.attempted = true
	s.lastAttempt = s.nowFunc()

	resolved, err := s.resolver.Route(ctx)
	if err != nil {
		slog.Warn("embedding: encoder resolution failed", "error", err)
		return nil
	}

	s.enc = resolved
	slog.Info("embedding: encoder ready",
		"encoder", resolved.Name(), "dimensions", resolved.Dimensions())
	return s.enc
}
