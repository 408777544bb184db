// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dowser Contributors

package embedding

import (
	"context"
	"strings"
	"sync"

	dowsererr "github.com/dowser-dev/dowser/pkg/errors"
)

// Registry manages encoder registration, lookup, and routing with failover.
// Refs use "provider/model" format; the model segment is bound into the
// encoder at construction time, so routing only keys on the provider part.
type Registry struct {
	mu       sync.RWMutex
	encoders map[string]Encoder

	defaultRef string   // "provider/model" format
	failover   []string // ordered list of "provider/model" refs
}

// Compile-time check that Registry implements Resolver.
var _ Resolver = (*Registry)(nil)

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		encoders: make(map[string]Encoder),
	}
}

// Register adds an encoder to the registry.
func (r *Registry) Register(name string, e Encoder) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.encoders[name] = e
}

// Get retrieves an encoder by provider name.
func (r *Registry) Get(name string) (Encoder, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.encoders[name]
	if !ok {
		return nil, dowsererr.New(
			dowsererr.CodeEncoderNotFound,
			"encoder not found: "+name,
			dowsererr.FieldProvider(name),
		)
	}
	return e, nil
}

// SetDefault sets the default "provider/model" reference. Returns an error
// if the provider portion of the ref is not registered.
func (r *Registry) SetDefault(ref string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	provName, _ := parseRef(ref)
	if _, ok := r.encoders[provName]; !ok {
		return dowsererr.New(
			dowsererr.CodeEncoderNotFound,
			"SetDefault: encoder not registered: "+provName,
			dowsererr.FieldProvider(provName),
		)
	}
	r.defaultRef = ref
	return nil
}

// SetFailover sets the ordered failover chain of "provider/model" refs.
// Returns an error if any provider portion of the refs is not registered.
func (r *Registry) SetFailover(chain []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, ref := range chain {
		provName, _ := parseRef(ref)
		if _, ok := r.encoders[provName]; !ok {
			return dowsererr.New(
				dowsererr.CodeEncoderNotFound,
				"SetFailover: encoder not registered: "+provName,
				dowsererr.FieldProvider(provName),
			)
		}
	}
	r.failover = append([]string(nil), chain...)
	return nil
}

// Route returns the first available encoder, trying the default ref first
// and then walking the failover chain.
func (r *Registry) Route(ctx context.Context) (Encoder, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.defaultRef == "" {
		return nil, dowsererr.New(
			dowsererr.CodeEncoderNoDefault,
			"no default encoder configured",
		)
	}

	if e, err := r.tryRef(ctx, r.defaultRef); err == nil {
		return e, nil
	}

	for _, fallback := range r.failover {
		if e, err := r.tryRef(ctx, fallback); err == nil {
			return e, nil
		}
	}

	return nil, dowsererr.New(
		dowsererr.CodeEncoderAllUnavailable,
		"all encoders unavailable: no healthy encoder found",
	)
}

// Close shuts down all registered encoders.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	for _, e := range r.encoders {
		if err := e.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return dowsererr.Join(errs...)
	}
	return nil
}

// tryRef parses a "provider/model" ref, looks up the encoder, and checks
// availability. Caller must hold r.mu (at least RLock).
func (r *Registry) tryRef(ctx context.Context, ref string) (Encoder, error) {
	providerName, _ := parseRef(ref)

	e, ok := r.encoders[providerName]
	if !ok {
		return nil, dowsererr.New(
			dowsererr.CodeEncoderNotFound,
			"encoder not found: "+providerName,
			dowsererr.FieldProvider(providerName),
		)
	}

	if !e.Available(ctx) {
		return nil, dowsererr.New(
			dowsererr.CodeEncoderUpstreamFailure,
			"encoder unavailable: "+providerName,
			dowsererr.FieldProvider(providerName),
		)
	}

	return e, nil
}

// parseRef splits a "provider/model" reference on the first "/".
func parseRef(ref string) (providerName, model string) {
	idx := strings.Index(ref, "/")
	if idx < 0 {
		return ref, ""
	}
	return ref[:idx], ref[idx+1:]
}
