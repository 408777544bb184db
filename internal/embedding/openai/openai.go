// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dowser Contributors

package openai

import (
	"context"
	"fmt"

	openaisdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"

	"github.com/dowser-dev/dowser/internal/embedding"
	dowsererr "github.com/dowser-dev/dowser/pkg/errors"
)

// Config holds OpenAI encoder configuration.
type Config struct {
	APIKey  string
	BaseURL string // optional, useful for testing against a mock server
	Model   string // defaults to text-embedding-3-small
	// Dimensions overrides the model's native vector width. The v3 models
	// accept a reduced dimension server-side.
	Dimensions int
}

// modelDimensions maps known embedding models to their native vector width.
var modelDimensions = map[string]int{
	"text-embedding-3-small": 1536,
	"text-embedding-3-large": 3072,
	"text-embedding-ada-002": 1536,
}

// Encoder implements embedding.Encoder using the OpenAI Embeddings API.
type Encoder struct {
	client openaisdk.Client
	config Config
	dims   int
	health *embedding.HealthTracker
}

// Compile-time check that Encoder implements the encoder contract.
var _ embedding.Encoder = (*Encoder)(nil)
var _ embedding.HealthReporter = (*Encoder)(nil)

// New creates a new OpenAI encoder. Returns an error if the API key is missing.
func New(cfg Config) (*Encoder, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai: missing api_key in config")
	}
	if cfg.Model == "" {
		cfg.Model = string(openaisdk.EmbeddingModelTextEmbedding3Small)
	}

	dims := cfg.Dimensions
	if dims == 0 {
		dims = modelDimensions[cfg.Model]
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	tracker, err := embedding.NewHealthTracker(embedding.DefaultHealthCooldown)
	if err != nil {
		return nil, err
	}

	client := openaisdk.NewClient(opts...)
	return &Encoder{client: client, config: cfg, dims: dims, health: tracker}, nil
}

func (e *Encoder) Name() string { return "openai" }

func (e *Encoder) Available(_ context.Context) bool {
	return e.health.IsHealthy()
}

func (e *Encoder) Dimensions() int { return e.dims }

func (e *Encoder) Encode(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EncodeBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (e *Encoder) EncodeBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	params := openaisdk.EmbeddingNewParams{
		Input: openaisdk.EmbeddingNewParamsInputUnion{
			OfArrayOfStrings: texts,
		},
		Model: openaisdk.EmbeddingModel(e.config.Model),
	}
	if e.config.Dimensions > 0 {
		params.Dimensions = param.NewOpt(int64(e.config.Dimensions))
	}

	res, err := e.client.Embeddings.New(ctx, params)
	if err != nil {
		e.health.RecordFailure()
		return nil, dowsererr.Wrap(err, dowsererr.CodeEncoderUpstreamFailure,
			"openai embeddings request", dowsererr.FieldProvider("openai"))
	}
	if len(res.Data) != len(texts) {
		e.health.RecordFailure()
		return nil, dowsererr.Errorf(dowsererr.CodeEncoderResponseInvalid,
			"openai returned %d embeddings for %d inputs", len(res.Data), len(texts))
	}

	// The API reports each vector's position explicitly; don't assume
	// response order.
	vecs := make([][]float32, len(texts))
	for _, d := range res.Data {
		if d.Index < 0 || int(d.Index) >= len(vecs) {
			e.health.RecordFailure()
			return nil, dowsererr.Errorf(dowsererr.CodeEncoderResponseInvalid,
				"openai embedding index %d out of range", d.Index)
		}
		vec := make([]float32, len(d.Embedding))
		for i, v := range d.Embedding {
			vec[i] = float32(v)
		}
		vecs[d.Index] = vec
	}

	e.health.RecordSuccess()
	return vecs, nil
}

func (e *Encoder) Close() error { return nil }

// HealthMetrics exposes the tracker's snapshot for status surfaces.
func (e *Encoder) HealthMetrics() embedding.HealthMetrics {
	return e.health.HealthMetrics()
}
