// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dowser Contributors

package store

import "errors"

// Sentinel errors for store operations.
// These errors can be checked using errors.Is() for classification.
var (
	// ErrNotFound indicates the requested snapshot does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates the input or the stored bytes are invalid
	// or malformed (including a version the loader does not support).
	ErrInvalidInput = errors.New("invalid input")

	// ErrDatabase indicates a general storage failure occurred.
	// This is a catch-all for unexpected backend failures.
	ErrDatabase = errors.New("database error")
)
