// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dowser Contributors

package store

import (
	"sync"

	dowsererr "github.com/dowser-dev/dowser/pkg/errors"
)

// Factory creates the index and learning stores for one backend.
type Factory func(cfg Config) (IndexStore, LearningStore, error)

var (
	factories   = map[string]Factory{}
	factoriesMu sync.RWMutex
)

// RegisterBackend registers a factory function for a named storage backend.
// Backend packages call this from init(). This function is goroutine-safe.
func RegisterBackend(name string, f Factory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	factories[name] = f
}

// resolveBackend returns the effective backend name, defaulting to "file".
func resolveBackend(cfg Config) string {
	if cfg.Backend == "" {
		return "file"
	}
	return cfg.Backend
}

// New creates the index and learning stores for the configured backend.
func New(cfg Config) (IndexStore, LearningStore, error) {
	backend := resolveBackend(cfg)

	factoriesMu.RLock()
	factory, ok := factories[backend]
	factoriesMu.RUnlock()
	if !ok {
		return nil, nil, dowsererr.Errorf(dowsererr.CodeStoreBackendUnsupported,
			"unsupported storage backend: %q", backend)
	}

	if cfg.Dir == "" {
		return nil, nil, dowsererr.New(dowsererr.CodeStoreInvalidInput,
			"storage dir is required", dowsererr.FieldBackend(backend))
	}

	return factory(cfg)
}
