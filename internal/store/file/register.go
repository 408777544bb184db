// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dowser Contributors

package file

import (
	"fmt"

	"github.com/dowser-dev/dowser/internal/store"
)

func init() {
	store.RegisterBackend("file", newStores)
}

func newStores(cfg store.Config) (store.IndexStore, store.LearningStore, error) {
	st, err := New(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("creating file store: %w", err)
	}
	// One Store serves both roles; it holds no open handles.
	return st, st, nil
}
