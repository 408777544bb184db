// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dowser Contributors

package store

import (
	"time"

	"github.com/dowser-dev/dowser/pkg/types"
)

// SnapshotVersion is the on-disk format version shared by every persisted
// snapshot. Loaders reject other versions so an older binary never
// misreads newer data.
const SnapshotVersion = 1

// --- Index types ---

// IndexSnapshot is the persisted form of a built schema index.
type IndexSnapshot struct {
	Version    int           `json:"version"`
	BuildID    string        `json:"build_id"`
	BuiltAt    time.Time     `json:"built_at"`
	SavedAt    time.Time     `json:"saved_at"`
	Encoder    string        `json:"encoder,omitempty"`
	Dimensions int           `json:"dimensions,omitempty"`
	Tables     []TableVector `json:"tables"`
}

// TableVector holds the embeddings derived from one schema table.
// A snapshot is rebuilt wholesale; TableVectors are never mutated in place.
type TableVector struct {
	Name    string    `json:"name"`
	Comment string    `json:"comment,omitempty"`
	Module  string    `json:"module,omitempty"`
	Vector  []float32 `json:"vector"`
	// Fields excludes identity and audit columns; they carry no
	// domain meaning worth matching on.
	Fields []FieldVector `json:"fields,omitempty"`
	// Enums maps enum name to the embedding of its value digest.
	Enums    map[string][]float32 `json:"enums,omitempty"`
	Keywords []string             `json:"keywords,omitempty"`
}

// FieldVector holds the embedding derived from one table field.
type FieldVector struct {
	Name    string    `json:"name"`
	Comment string    `json:"comment,omitempty"`
	Type    string    `json:"type,omitempty"`
	Vector  []float32 `json:"vector"`
}

// --- Learning types ---

// QueryFeedback is one recorded feedback event. The collection is
// append-only; entries are never edited after the fact.
type QueryFeedback struct {
	ID        string              `json:"id"`
	Question  string              `json:"question"`
	SQL       string              `json:"sql"`
	Label     types.FeedbackLabel `json:"label"`
	Timestamp time.Time           `json:"timestamp"`
	UserID    string              `json:"user_id,omitempty"`
	SessionID string              `json:"session_id,omitempty"`
	// MatchedTables lists the tables the generated SQL drew on; the first
	// entry is treated as the primary table.
	MatchedTables   []string           `json:"matched_tables"`
	MatchedFields   []string           `json:"matched_fields,omitempty"`
	MatchedEnums    []string           `json:"matched_enums,omitempty"`
	RelevanceScores map[string]float64 `json:"relevance_scores,omitempty"`
}

// LearnedPattern aggregates feedback for one table/field combination.
// Key is the sorted, de-duplicated union of matched tables and fields,
// capped at three entries and joined with "|".
type LearnedPattern struct {
	Key            string    `json:"key"`
	QuestionSample string    `json:"question_sample"`
	PrimaryTable   string    `json:"primary_table"`
	SuccessCount   int       `json:"success_count"`
	FailureCount   int       `json:"failure_count"`
	Confidence     float64   `json:"confidence"`
	Keywords       []string  `json:"keywords,omitempty"`
	Embedding      []float32 `json:"embedding,omitempty"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// KeywordWeight tracks how strongly a keyword predicts useful retrieval.
// Weight stays within [0.1, 2.0]; 1.0 is neutral.
type KeywordWeight struct {
	Keyword      string  `json:"keyword"`
	Weight       float64 `json:"weight"`
	SuccessCount int     `json:"success_count"`
	FailureCount int     `json:"failure_count"`
	// Tables counts positive-feedback associations per table name.
	Tables map[string]int `json:"tables,omitempty"`
}

// MemoryItem is one remembered question/SQL pair used for
// similar-question lookup. The bank is capped; items with the fewest
// successes and the oldest use are pruned first.
type MemoryItem struct {
	Question     string    `json:"question"`
	SQL          string    `json:"sql"`
	PrimaryTable string    `json:"primary_table,omitempty"`
	Keywords     []string  `json:"keywords,omitempty"`
	Embedding    []float32 `json:"embedding,omitempty"`
	SuccessCount int       `json:"success_count"`
	LastUsedAt   time.Time `json:"last_used_at"`
	// RelatedQuestions is reserved for linking rephrasings of the same
	// question; nothing populates it yet.
	RelatedQuestions []string `json:"related_questions,omitempty"`
}
