// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dowser Contributors

package store

// Config controls which backend the store factory uses and where it
// keeps its data.
type Config struct {
	Backend string // "file" (default) or "sqlite"
	Dir     string // data directory the backend stores snapshots under

	// IndexPath overrides where the file backend keeps the index
	// snapshot. Empty uses <Dir>/snapshots/index.json.
	IndexPath string
}
