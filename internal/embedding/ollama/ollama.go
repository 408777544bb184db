// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dowser Contributors

// Package ollama encodes against a local Ollama server. Ollama exposes a
// plain REST endpoint and no official Go SDK, so the encoder speaks HTTP
// directly.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dowser-dev/dowser/internal/embedding"
	dowsererr "github.com/dowser-dev/dowser/pkg/errors"
)

// Config holds Ollama encoder configuration.
type Config struct {
	Endpoint string // defaults to http://localhost:11434
	Model    string // defaults to nomic-embed-text
	// Dimensions is informational; Ollama models emit their native width.
	Dimensions int
}

const (
	defaultEndpoint = "http://localhost:11434"
	defaultModel    = "nomic-embed-text"
	requestTimeout  = 30 * time.Second
)

// Encoder implements embedding.Encoder against the Ollama embeddings API.
type Encoder struct {
	endpoint string
	model    string
	dims     int
	client   *http.Client
	health   *embedding.HealthTracker
}

var _ embedding.Encoder = (*Encoder)(nil)
var _ embedding.HealthReporter = (*Encoder)(nil)

// New creates a new Ollama encoder. Missing fields fall back to local
// defaults; there is no API key.
func New(cfg Config) (*Encoder, error) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = defaultEndpoint
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}

	health, err := embedding.NewHealthTracker(embedding.DefaultHealthCooldown)
	if err != nil {
		return nil, err
	}

	return &Encoder{
		endpoint: strings.TrimRight(cfg.Endpoint, "/"),
		model:    cfg.Model,
		dims:     cfg.Dimensions,
		client:   &http.Client{Timeout: requestTimeout},
		health:   health,
	}, nil
}

func (e *Encoder) Name() string { return "ollama" }

// Available probes the server's tags listing. A local server that stopped
// answering flips the tracker into cooldown like any other failure.
func (e *Encoder) Available(ctx context.Context) bool {
	if !e.health.IsHealthy() {
		return false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.endpoint+"/api/tags", nil)
	if err != nil {
		return false
	}
	resp, err := e.client.Do(req)
	if err != nil {
		e.health.RecordFailure()
		return false
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		e.health.RecordFailure()
		return false
	}
	return true
}

func (e *Encoder) Dimensions() int { return e.dims }

type embedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type embedResponse struct {
	Embedding []float32 `json:"embedding"`
}

func (e *Encoder) Encode(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(embedRequest{Model: e.model, Prompt: text})
	if err != nil {
		return nil, dowsererr.Wrap(err, dowsererr.CodeEncoderRequestInvalid, "encoding ollama request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint+"/api/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, dowsererr.Wrap(err, dowsererr.CodeEncoderRequestInvalid, "building ollama request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		e.health.RecordFailure()
		return nil, dowsererr.Wrap(err, dowsererr.CodeEncoderUpstreamFailure,
			"ollama embeddings request", dowsererr.FieldProvider("ollama"))
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		e.health.RecordFailure()
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, dowsererr.Errorf(dowsererr.CodeEncoderUpstreamFailure,
			"ollama returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var result embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		e.health.RecordFailure()
		return nil, dowsererr.Wrap(err, dowsererr.CodeEncoderResponseInvalid, "decoding ollama response")
	}
	if len(result.Embedding) == 0 {
		e.health.RecordFailure()
		return nil, dowsererr.New(dowsererr.CodeEncoderResponseInvalid, "ollama returned an empty embedding")
	}

	e.health.RecordSuccess()
	return result.Embedding, nil
}

// EncodeBatch encodes sequentially; Ollama has no native batch endpoint.
func (e *Encoder) EncodeBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vecs := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := e.Encode(ctx, text)
		if err != nil {
			return nil, dowsererr.Wrapf(err, dowsererr.CodeEncoderUpstreamFailure,
				"encoding text %d of %d", i+1, len(texts))
		}
		vecs[i] = vec
	}
	return vecs, nil
}

func (e *Encoder) Close() error { return nil }

// HealthMetrics exposes the tracker's snapshot for status surfaces.
func (e *Encoder) HealthMetrics() embedding.HealthMetrics {
	return e.health.HealthMetrics()
}
