// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dowser Contributors

package store

import (
	dowsererr "github.com/dowser-dev/dowser/pkg/errors"
)

// Validate checks that the snapshot is well-formed enough to persist.
func (s *IndexSnapshot) Validate() error {
	if s == nil {
		return dowsererr.New(dowsererr.CodeStoreInvalidInput, "index snapshot: nil snapshot")
	}
	if s.Version != SnapshotVersion {
		return dowsererr.Errorf(dowsererr.CodeStoreInvalidInput,
			"index snapshot: version must be %d, got %d", SnapshotVersion, s.Version)
	}
	if s.BuildID == "" {
		return dowsererr.New(dowsererr.CodeStoreInvalidInput, "index snapshot: BuildID is required")
	}
	if s.BuiltAt.IsZero() {
		return dowsererr.New(dowsererr.CodeStoreInvalidInput, "index snapshot: BuiltAt is required")
	}
	for _, tv := range s.Tables {
		if tv.Name == "" {
			return dowsererr.New(dowsererr.CodeStoreInvalidInput, "index snapshot: table with empty name")
		}
	}
	return nil
}

// Validate checks that the feedback entry has all required fields set.
func (f *QueryFeedback) Validate() error {
	if f.ID == "" {
		return dowsererr.New(dowsererr.CodeStoreInvalidInput, "feedback: ID is required")
	}
	if f.Question == "" {
		return dowsererr.New(dowsererr.CodeStoreInvalidInput, "feedback: Question is required")
	}
	if !f.Label.Valid() {
		return dowsererr.Errorf(dowsererr.CodeStoreInvalidInput, "feedback: invalid label %q", f.Label)
	}
	if f.Timestamp.IsZero() {
		return dowsererr.New(dowsererr.CodeStoreInvalidInput, "feedback: Timestamp is required")
	}
	return nil
}
