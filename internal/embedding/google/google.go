// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dowser Contributors

package google

import (
	"context"

	"google.golang.org/genai"

	"github.com/dowser-dev/dowser/internal/embedding"
	dowsererr "github.com/dowser-dev/dowser/pkg/errors"
)

// Config holds Google encoder configuration.
type Config struct {
	APIKey string
	Model  string // defaults to text-embedding-004
	// Dimensions asks the API for a reduced output width. Zero keeps the
	// model's native width.
	Dimensions int
}

const defaultModel = "text-embedding-004"

// text-embedding-004 emits 768-dimensional vectors unless reduced.
const defaultDimensions = 768

// Encoder implements embedding.Encoder using the Gemini API.
type Encoder struct {
	client *genai.Client
	config Config
	dims   int
	health *embedding.HealthTracker
}

var _ embedding.Encoder = (*Encoder)(nil)
var _ embedding.HealthReporter = (*Encoder)(nil)

// New creates a new Google encoder. Returns an error if the API key is missing.
func New(cfg Config) (*Encoder, error) {
	if cfg.APIKey == "" {
		return nil, dowsererr.New(dowsererr.CodeEncoderRequestInvalid,
			"google: missing api_key in config", dowsererr.FieldProvider("google"))
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}

	dims := cfg.Dimensions
	if dims == 0 && cfg.Model == defaultModel {
		dims = defaultDimensions
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, dowsererr.Wrapf(err, dowsererr.CodeEncoderUpstreamFailure, "google: creating client")
	}

	health, err := embedding.NewHealthTracker(embedding.DefaultHealthCooldown)
	if err != nil {
		return nil, dowsererr.Wrapf(err, dowsererr.CodeEncoderRequestInvalid, "google: creating health tracker")
	}

	return &Encoder{
		client: client,
		config: cfg,
		dims:   dims,
		health: health,
	}, nil
}

func (e *Encoder) Name() string { return "google" }

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

	contents := make([]*genai.Content, 0, len(texts))
	for _, text := range texts {
		contents = append(contents, &genai.Content{
			Role:  "user",
			Parts: []*genai.Part{{Text: text}},
		})
	}

	config := &genai.EmbedContentConfig{
		TaskType: "SEMANTIC_SIMILARITY",
	}
	if e.config.Dimensions > 0 {
		dim := int32(e.config.Dimensions)
		config.OutputDimensionality = &dim
	}

	res, err := e.client.Models.EmbedContent(ctx, e.config.Model, contents, config)
	if err != nil {
		e.health.RecordFailure()
		return nil, dowsererr.Wrap(err, dowsererr.CodeEncoderUpstreamFailure,
			"google embeddings request", dowsererr.FieldProvider("google"))
	}
	if len(res.Embeddings) != len(texts) {
		e.health.RecordFailure()
		return nil, dowsererr.Errorf(dowsererr.CodeEncoderResponseInvalid,
			"google returned %d embeddings for %d inputs", len(res.Embeddings), len(texts))
	}

	vecs := make([][]float32, len(texts))
	for i, emb := range res.Embeddings {
		if emb == nil || len(emb.Values) == 0 {
			e.health.RecordFailure()
			return nil, dowsererr.Errorf(dowsererr.CodeEncoderResponseInvalid,
				"google returned an empty embedding at position %d", i)
		}
		vecs[i] = emb.Values
	}

	e.health.RecordSuccess()
	return vecs, nil
}

func (e *Encoder) Close() error { return nil }

// HealthMetrics exposes the tracker's snapshot for status surfaces.
func (e *Encoder) HealthMetrics() embedding.HealthMetrics {
	return e.health.HealthMetrics()
}
