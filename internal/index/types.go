// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dowser Contributors

package index

import (
	"time"

	"github.com/dowser-dev/dowser/pkg/types"
)

// SearchResult is one ranked table from a semantic or fused search.
// Relevance is a cosine similarity for pure semantic results and an
// unbounded combined score after fusion.
type SearchResult struct {
	TableName     string          `json:"table_name"`
	TableComment  string          `json:"table_comment,omitempty"`
	ModuleName    string          `json:"module_name,omitempty"`
	Relevance     float64         `json:"relevance"`
	MatchType     types.MatchType `json:"match_type"`
	MatchedFields []string        `json:"matched_fields,omitempty"`
	MatchedEnums  []string        `json:"matched_enums,omitempty"`
}

// LexicalResult is a keyword-scored table fed into fusion, produced by
// the lexical scorer or supplied by an external caller.
type LexicalResult struct {
	TableName     string          `json:"table_name"`
	TableComment  string          `json:"table_comment,omitempty"`
	ModuleName    string          `json:"module_name,omitempty"`
	Score         float64         `json:"score"`
	MatchType     types.MatchType `json:"match_type"`
	MatchedFields []string        `json:"matched_fields,omitempty"`
}

// Stats summarises the current in-memory index.
type Stats struct {
	Built   bool       `json:"built"`
	Tables  int        `json:"tables"`
	Fields  int        `json:"fields"`
	Enums   int        `json:"enums"`
	BuildID string     `json:"build_id,omitempty"`
	BuiltAt *time.Time `json:"built_at,omitempty"`
	Encoder string     `json:"encoder,omitempty"`
}
