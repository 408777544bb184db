// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dowser Contributors

package sqlite_test

import (
	"path/filepath"
	"testing"

	"github.com/dowser-dev/dowser/internal/store/sqlite"
	"github.com/stretchr/testify/require"
)

// newTestDB opens a store backed by a fresh temp database.
func newTestDB(t *testing.T) *sqlite.DB {
	t.Helper()
	db, err := sqlite.Open(filepath.Join(t.TempDir(), "dowser.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}
