// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dowser Contributors

package types

import (
	"strings"

	dowsererr "github.com/dowser-dev/dowser/pkg/errors"
)

// FeedbackLabel is the user's verdict on a generated query.
type FeedbackLabel string

const (
	// FeedbackPositive marks a query the user accepted.
	FeedbackPositive FeedbackLabel = "positive"
	// FeedbackNegative marks a query the user rejected or corrected.
	FeedbackNegative FeedbackLabel = "negative"
)

// Valid reports whether l is a recognized feedback label.
func (l FeedbackLabel) Valid() bool {
	switch l {
	case FeedbackPositive, FeedbackNegative:
		return true
	default:
		return false
	}
}

// ParseFeedbackLabel parses a case-insensitive string into a FeedbackLabel.
func ParseFeedbackLabel(s string) (FeedbackLabel, error) {
	l := FeedbackLabel(strings.ToLower(s))
	if !l.Valid() {
		return "", dowsererr.Errorf(dowsererr.CodeLearningInputInvalid,
			"invalid feedback label: %q", s)
	}
	return l, nil
}
