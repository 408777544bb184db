// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dowser Contributors

package embedding_test

import (
	"context"
	"sync/atomic"

	"github.com/dowser-dev/dowser/internal/embedding"
)

// mockEncoderBase provides a reusable base implementation of embedding.Encoder
// for use in tests. Embed this in test-specific mocks and override methods as needed.
type mockEncoderBase struct {
	name      string
	available bool
	dims      int
	vec       []float32
	err       error

	encodeCalls atomic.Int64
	closed      atomic.Bool
}

func newMockEncoderBase(name string, available bool) *mockEncoderBase {
	return &mockEncoderBase{
		name:      name,
		available: available,
		dims:      4,
		vec:       []float32{0.1, 0.2, 0.3, 0.4},
	}
}

func (m *mockEncoderBase) Name() string {
	return m.name
}

func (m *mockEncoderBase) Available(ctx context.Context) bool {
	return m.available
}

func (m *mockEncoderBase) Encode(_ context.Context, _ string) ([]float32, error) {
	m.encodeCalls.Add(1)
	if m.err != nil {
		return nil, m.err
	}
	return m.vec, nil
}

func (m *mockEncoderBase) EncodeBatch(_ context.Context, texts []string) ([][]float32, error) {
	m.encodeCalls.Add(1)
	if m.err != nil {
		return nil, m.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = m.vec
	}
	return out, nil
}

func (m *mockEncoderBase) Dimensions() int {
	return m.dims
}

func (m *mockEncoderBase) Close() error {
	m.closed.Store(true)
	return nil
}

// mockResolver implements embedding.Resolver with a fixed outcome and a
// call counter, so tests can assert how often resolution was attempted.
type mockResolver struct {
	enc   embedding.Encoder
	err   error
	calls atomic.Int64
}

func (r *mockResolver) Route(_ context.Context) (embedding.Encoder, error) {
	r.calls.Add(1)
	if r.err != nil {
		return nil, r.err
	}
	return r.enc, nil
}
