// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dowser Contributors

package ollama_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dowser-dev/dowser/internal/embedding"
	"github.com/dowser-dev/dowser/internal/embedding/ollama"
	dowsererr "github.com/dowser-dev/dowser/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Compile-time checks that Encoder satisfies the embedding contracts.
var (
	_ embedding.Encoder        = (*ollama.Encoder)(nil)
	_ embedding.HealthReporter = (*ollama.Encoder)(nil)
)

// newFakeOllama stands up a fake Ollama server answering /api/tags and
// /api/embeddings, returning vec for every prompt.
func newFakeOllama(t *testing.T, vec []float32) (*httptest.Server, *[]string) {
	t.Helper()

	var prompts []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/tags":
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"models":[{"name":"nomic-embed-text"}]}`))
		case "/api/embeddings":
			var req struct {
				Model  string `json:"model"`
				Prompt string `json:"prompt"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			prompts = append(prompts, req.Prompt)

			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]any{"embedding": vec})
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv, &prompts
}

func TestEncoder_Encode(t *testing.T) {
	srv, prompts := newFakeOllama(t, []float32{0.1, 0.2, 0.3})

	enc, err := ollama.New(ollama.Config{Endpoint: srv.URL})
	require.NoError(t, err)

	vec, err := enc.Encode(context.Background(), "资产状态")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, vec)
	require.Len(t, *prompts, 1)
	assert.Equal(t, "资产状态", (*prompts)[0])
}

func TestEncoder_EncodeBatchPreservesOrder(t *testing.T) {
	srv, prompts := newFakeOllama(t, []float32{0.5, 0.5})

	enc, err := ollama.New(ollama.Config{Endpoint: srv.URL})
	require.NoError(t, err)

	vecs, err := enc.EncodeBatch(context.Background(), []string{"assets", "work orders", "vendors"})
	require.NoError(t, err)
	require.Len(t, vecs, 3)
	assert.Equal(t, []string{"assets", "work orders", "vendors"}, *prompts)
}

func TestEncoder_EncodeServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	enc, err := ollama.New(ollama.Config{Endpoint: srv.URL})
	require.NoError(t, err)

	_, err = enc.Encode(context.Background(), "assets")
	require.Error(t, err)
	assert.True(t, dowsererr.HasCode(err, dowsererr.CodeEncoderUpstreamFailure))

	m := enc.HealthMetrics()
	assert.False(t, m.Available)
	assert.Equal(t, int64(1), m.FailureCount)
}

func TestEncoder_EncodeEmptyEmbedding(t *testing.T) {
	srv, _ := newFakeOllama(t, []float32{})

	enc, err := ollama.New(ollama.Config{Endpoint: srv.URL})
	require.NoError(t, err)

	_, err = enc.Encode(context.Background(), "assets")
	require.Error(t, err)
	assert.True(t, dowsererr.HasCode(err, dowsererr.CodeEncoderResponseInvalid))
}

func TestEncoder_Available(t *testing.T) {
	srv, _ := newFakeOllama(t, []float32{0.1})

	enc, err := ollama.New(ollama.Config{Endpoint: srv.URL})
	require.NoError(t, err)
	assert.True(t, enc.Available(context.Background()))
}

func TestEncoder_AvailableServerDown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	enc, err := ollama.New(ollama.Config{Endpoint: srv.URL})
	require.NoError(t, err)
	assert.False(t, enc.Available(context.Background()))

	m := enc.HealthMetrics()
	assert.Equal(t, int64(1), m.FailureCount)
}

func TestEncoder_AvailableServerErrorEntersCooldown(t *testing.T) {
	var probes int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		probes++
		http.Error(w, "overloaded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	enc, err := ollama.New(ollama.Config{Endpoint: srv.URL})
	require.NoError(t, err)

	assert.False(t, enc.Available(context.Background()))

	m := enc.HealthMetrics()
	assert.False(t, m.Available)
	assert.Equal(t, int64(1), m.FailureCount)

	// In cooldown the next check short-circuits without re-probing.
	assert.False(t, enc.Available(context.Background()))
	assert.Equal(t, 1, probes)
}

func TestEncoder_Defaults(t *testing.T) {
	enc, err := ollama.New(ollama.Config{Dimensions: 768})
	require.NoError(t, err)
	assert.Equal(t, "ollama", enc.Name())
	assert.Equal(t, 768, enc.Dimensions())
	require.NoError(t, enc.Close())
}
