// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dowser Contributors

package types

import (
	"strings"

	dowsererr "github.com/dowser-dev/dowser/pkg/errors"
)

// MatchType records which signal put a table into a search result set.
type MatchType string

const (
	// MatchSemantic means the table-level embedding cleared the threshold.
	MatchSemantic MatchType = "semantic"
	// MatchField means at least one field embedding cleared the threshold.
	MatchField MatchType = "field"
	// MatchEnum means at least one enumeration embedding cleared the threshold.
	MatchEnum MatchType = "enum"
	// MatchHybrid means semantic and lexical evidence agreed on the table.
	MatchHybrid MatchType = "hybrid"
	// MatchKeyword means only lexical keyword evidence matched.
	MatchKeyword MatchType = "keyword"
)

// Valid reports whether m is a recognized match type.
func (m MatchType) Valid() bool {
	switch m {
	case MatchSemantic, MatchField, MatchEnum, MatchHybrid, MatchKeyword:
		return true
	default:
		return false
	}
}

// ParseMatchType parses a case-insensitive string into a MatchType.
func ParseMatchType(s string) (MatchType, error) {
	m := MatchType(strings.ToLower(s))
	if !m.Valid() {
		return "", dowsererr.Errorf(dowsererr.CodeConfigValidateInvalidValue,
			"invalid match type: %q", s)
	}
	return m, nil
}
