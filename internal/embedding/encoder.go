// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dowser Contributors

// Package embedding provides the vector encoding layer: a common Encoder
// interface over the supported providers, a registry with failover routing,
// and a lazily resolved Service that degrades to "unavailable" instead of
// surfacing provider errors to retrieval code.
package embedding

import (
	"context"

	"github.com/dowser-dev/dowser/pkg/health"
)

// Encoder turns text into dense vectors. Implementations wrap one provider
// client bound to one model.
type Encoder interface {
	Name() string
	Available(ctx context.Context) bool
	Encode(ctx context.Context, text string) ([]float32, error)
	EncodeBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Close() error
}

// Resolver selects an encoder. The Registry implements it; tests substitute
// their own.
type Resolver interface {
	Route(ctx context.Context) (Encoder, error)
}

// Embedder is the degraded-mode encoding surface the index and learning
// engine consume. ok=false means no encoder is available right now;
// callers skip vector work instead of failing.
type Embedder interface {
	Encode(ctx context.Context, text string) ([]float32, bool)
	EncodeBatch(ctx context.Context, texts []string) ([][]float32, bool)
	Available(ctx context.Context) bool
	Name() string
	Dimensions() int
}

// HealthReporter is implemented by encoders that track their own health.
type HealthReporter interface {
	HealthMetrics() health.Metrics
}

// EncoderStatus indicates encoder health for status surfaces.
type EncoderStatus struct {
	Available bool   `json:"available"`
	Encoder   string `json:"encoder"`
	Message   string `json:"message,omitempty"`
}
