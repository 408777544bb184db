// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dowser Contributors

package sqlite

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/dowser-dev/dowser/internal/store"
)

func init() {
	store.RegisterBackend("sqlite", newStores)
}

func newStores(cfg store.Config) (store.IndexStore, store.LearningStore, error) {
	if err := os.MkdirAll(cfg.Dir, 0o700); err != nil {
		return nil, nil, fmt.Errorf("creating data dir: %w", err)
	}

	db, err := Open(filepath.Join(cfg.Dir, "dowser.db"))
	if err != nil {
		return nil, nil, fmt.Errorf("opening dowser.db: %w", err)
	}

	// One handle serves both roles; sql.DB.Close is idempotent, so closing
	// each returned store is safe.
	return db, db, nil
}
