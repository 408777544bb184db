// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dowser Contributors

package sqlite

import (
	"context"
	"fmt"

	"github.com/dowser-dev/dowser/internal/store"
	"github.com/dowser-dev/dowser/pkg/types"
)

const (
	collectionFeedback = "feedback"
	collectionPatterns = "patterns"
	collectionKeywords = "keywords"
	collectionMemory   = "memory"
)

// SaveFeedback rewrites the feedback log in insertion order.
func (d *DB) SaveFeedback(ctx context.Context, items []store.QueryFeedback) error {
	for i := range items {
		if err := items[i].Validate(); err != nil {
			return err
		}
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM feedback`); err != nil {
		return fmt.Errorf("clearing feedback: %w", err)
	}

	const q = `INSERT INTO feedback (id, question, sql_text, label, ts, user_id, session_id,
	matched_tables, matched_fields, matched_enums, relevance_scores)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	for _, f := range items {
		tables, err := marshalJSON(f.MatchedTables, "[]")
		if err != nil {
			return fmt.Errorf("marshalling matched tables for %s: %w", f.ID, err)
		}
		fields, err := marshalJSON(f.MatchedFields, "[]")
		if err != nil {
			return fmt.Errorf("marshalling matched fields for %s: %w", f.ID, err)
		}
		enums, err := marshalJSON(f.MatchedEnums, "[]")
		if err != nil {
			return fmt.Errorf("marshalling matched enums for %s: %w", f.ID, err)
		}
		scores, err := marshalJSON(f.RelevanceScores, "{}")
		if err != nil {
			return fmt.Errorf("marshalling relevance scores for %s: %w", f.ID, err)
		}

		if _, err := tx.ExecContext(ctx, q,
			f.ID, f.Question, f.SQL, string(f.Label), formatTime(f.Timestamp),
			f.UserID, f.SessionID, tables, fields, enums, scores,
		); err != nil {
			return fmt.Errorf("inserting feedback %s: %w", f.ID, err)
		}
	}

	if err := stampCollection(ctx, tx, collectionFeedback); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing feedback: %w", err)
	}
	return nil
}

// LoadFeedback returns the feedback log in insertion order.
func (d *DB) LoadFeedback(ctx context.Context) ([]store.QueryFeedback, error) {
	if err := d.checkCollectionVersion(ctx, collectionFeedback); err != nil {
		return nil, err
	}

	rows, err := d.db.QueryContext(ctx, `SELECT id, question, sql_text, label, ts, user_id, session_id,
	matched_tables, matched_fields, matched_enums, relevance_scores
FROM feedback ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("querying feedback: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var items []store.QueryFeedback
	for rows.Next() {
		var f store.QueryFeedback
		var label, ts, tables, fields, enums, scores string
		if err := rows.Scan(&f.ID, &f.Question, &f.SQL, &label, &ts, &f.UserID, &f.SessionID,
			&tables, &fields, &enums, &scores); err != nil {
			return nil, fmt.Errorf("scanning feedback row: %w", err)
		}
		f.Label = types.FeedbackLabel(label)
		f.Timestamp = parseTime(ts)
		if err := unmarshalJSON(tables, &f.MatchedTables); err != nil {
			return nil, fmt.Errorf("unmarshalling matched tables for %s: %w", f.ID, err)
		}
		if err := unmarshalJSON(fields, &f.MatchedFields); err != nil {
			return nil, fmt.Errorf("unmarshalling matched fields for %s: %w", f.ID, err)
		}
		if err := unmarshalJSON(enums, &f.MatchedEnums); err != nil {
			return nil, fmt.Errorf("unmarshalling matched enums for %s: %w", f.ID, err)
		}
		if err := unmarshalJSON(scores, &f.RelevanceScores); err != nil {
			return nil, fmt.Errorf("unmarshalling relevance scores for %s: %w", f.ID, err)
		}
		items = append(items, f)
	}
	return items, rows.Err()
}

// SavePatterns rewrites the learned patterns collection.
func (d *DB) SavePatterns(ctx context.Context, items map[string]*store.LearnedPattern) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM patterns`); err != nil {
		return fmt.Errorf("clearing patterns: %w", err)
	}

	const q = `INSERT INTO patterns (key, question_sample, primary_table, success_count,
	failure_count, confidence, keywords, embedding, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	for key, p := range items {
		if p == nil {
			continue
		}
		keywords, err := marshalJSON(p.Keywords, "[]")
		if err != nil {
			return fmt.Errorf("marshalling keywords for pattern %s: %w", key, err)
		}
		blob, err := serializeVector(p.Embedding)
		if err != nil {
			return fmt.Errorf("serializing embedding for pattern %s: %w", key, err)
		}
		if _, err := tx.ExecContext(ctx, q,
			key, p.QuestionSample, p.PrimaryTable, p.SuccessCount, p.FailureCount,
			p.Confidence, keywords, blob, formatTime(p.UpdatedAt),
		); err != nil {
			return fmt.Errorf("inserting pattern %s: %w", key, err)
		}
	}

	if err := stampCollection(ctx, tx, collectionPatterns); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing patterns: %w", err)
	}
	return nil
}

// LoadPatterns returns the learned patterns keyed by pattern key.
func (d *DB) LoadPatterns(ctx context.Context) (map[string]*store.LearnedPattern, error) {
	if err := d.checkCollectionVersion(ctx, collectionPatterns); err != nil {
		return nil, err
	}

	rows, err := d.db.QueryContext(ctx, `SELECT key, question_sample, primary_table, success_count,
	failure_count, confidence, keywords, embedding, updated_at
FROM patterns`)
	if err != nil {
		return nil, fmt.Errorf("querying patterns: %w", err)
	}
	defer func() { _ = rows.Close() }()

	items := make(map[string]*store.LearnedPattern)
	for rows.Next() {
		var p store.LearnedPattern
		var keywords, updatedAt string
		var blob []byte
		if err := rows.Scan(&p.Key, &p.QuestionSample, &p.PrimaryTable, &p.SuccessCount,
			&p.FailureCount, &p.Confidence, &keywords, &blob, &updatedAt); err != nil {
			return nil, fmt.Errorf("scanning pattern row: %w", err)
		}
		if err := unmarshalJSON(keywords, &p.Keywords); err != nil {
			return nil, fmt.Errorf("unmarshalling keywords for pattern %s: %w", p.Key, err)
		}
		p.Embedding = deserializeVector(blob)
		p.UpdatedAt = parseTime(updatedAt)
		items[p.Key] = &p
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, nil
	}
	return items, nil
}

// SaveKeywords rewrites the keyword weights collection.
func (d *DB) SaveKeywords(ctx context.Context, items map[string]*store.KeywordWeight) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM keyword_weights`); err != nil {
		return fmt.Errorf("clearing keyword weights: %w", err)
	}

	const q = `INSERT INTO keyword_weights (keyword, weight, success_count, failure_count, tables)
VALUES (?, ?, ?, ?, ?)`
	for keyword, kw := range items {
		if kw == nil {
			continue
		}
		tables, err := marshalJSON(kw.Tables, "{}")
		if err != nil {
			return fmt.Errorf("marshalling tables for keyword %s: %w", keyword, err)
		}
		if _, err := tx.ExecContext(ctx, q,
			keyword, kw.Weight, kw.SuccessCount, kw.FailureCount, tables,
		); err != nil {
			return fmt.Errorf("inserting keyword %s: %w", keyword, err)
		}
	}

	if err := stampCollection(ctx, tx, collectionKeywords); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing keyword weights: %w", err)
	}
	return nil
}

// LoadKeywords returns the keyword weights keyed by keyword.
func (d *DB) LoadKeywords(ctx context.Context) (map[string]*store.KeywordWeight, error) {
	if err := d.checkCollectionVersion(ctx, collectionKeywords); err != nil {
		return nil, err
	}

	rows, err := d.db.QueryContext(ctx,
		`SELECT keyword, weight, success_count, failure_count, tables FROM keyword_weights`)
	if err != nil {
		return nil, fmt.Errorf("querying keyword weights: %w", err)
	}
	defer func() { _ = rows.Close() }()

	items := make(map[string]*store.KeywordWeight)
	for rows.Next() {
		var kw store.KeywordWeight
		var tables string
		if err := rows.Scan(&kw.Keyword, &kw.Weight, &kw.SuccessCount, &kw.FailureCount, &tables); err != nil {
			return nil, fmt.Errorf("scanning keyword weight row: %w", err)
		}
		if err := unmarshalJSON(tables, &kw.Tables); err != nil {
			return nil, fmt.Errorf("unmarshalling tables for keyword %s: %w", kw.Keyword, err)
		}
		items[kw.Keyword] = &kw
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, nil
	}
	return items, nil
}

// SaveMemory rewrites the memory bank in insertion order.
func (d *DB) SaveMemory(ctx context.Context, items []store.MemoryItem) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM memory_items`); err != nil {
		return fmt.Errorf("clearing memory items: %w", err)
	}

	const q = `INSERT INTO memory_items (question, sql_text, primary_table, keywords,
	embedding, success_count, last_used_at, related)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	for i, m := range items {
		keywords, err := marshalJSON(m.Keywords, "[]")
		if err != nil {
			return fmt.Errorf("marshalling keywords for memory item %d: %w", i, err)
		}
		related, err := marshalJSON(m.RelatedQuestions, "[]")
		if err != nil {
			return fmt.Errorf("marshalling related questions for memory item %d: %w", i, err)
		}
		blob, err := serializeVector(m.Embedding)
		if err != nil {
			return fmt.Errorf("serializing embedding for memory item %d: %w", i, err)
		}
		if _, err := tx.ExecContext(ctx, q,
			m.Question, m.SQL, m.PrimaryTable, keywords, blob,
			m.SuccessCount, formatTime(m.LastUsedAt), related,
		); err != nil {
			return fmt.Errorf("inserting memory item %d: %w", i, err)
		}
	}

	if err := stampCollection(ctx, tx, collectionMemory); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing memory items: %w", err)
	}
	return nil
}

// LoadMemory returns the memory bank in insertion order.
func (d *DB) LoadMemory(ctx context.Context) ([]store.MemoryItem, error) {
	if err := d.checkCollectionVersion(ctx, collectionMemory); err != nil {
		return nil, err
	}

	rows, err := d.db.QueryContext(ctx, `SELECT question, sql_text, primary_table, keywords,
	embedding, success_count, last_used_at, related
FROM memory_items ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("querying memory items: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var items []store.MemoryItem
	for rows.Next() {
		var m store.MemoryItem
		var keywords, lastUsed, related string
		var blob []byte
		if err := rows.Scan(&m.Question, &m.SQL, &m.PrimaryTable, &keywords, &blob,
			&m.SuccessCount, &lastUsed, &related); err != nil {
			return nil, fmt.Errorf("scanning memory item row: %w", err)
		}
		if err := unmarshalJSON(keywords, &m.Keywords); err != nil {
			return nil, fmt.Errorf("unmarshalling keywords for memory item: %w", err)
		}
		if err := unmarshalJSON(related, &m.RelatedQuestions); err != nil {
			return nil, fmt.Errorf("unmarshalling related questions for memory item: %w", err)
		}
		m.Embedding = deserializeVector(blob)
		m.LastUsedAt = parseTime(lastUsed)
		items = append(items, m)
	}
	return items, rows.Err()
}

// DeleteAll removes every learning collection and its version stamps.
func (d *DB) DeleteAll(ctx context.Context) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, q := range []string{
		`DELETE FROM feedback`,
		`DELETE FROM patterns`,
		`DELETE FROM keyword_weights`,
		`DELETE FROM memory_items`,
		`DELETE FROM collection_meta`,
	} {
		if _, err := tx.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("clearing learning data: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing learning reset: %w", err)
	}
	return nil
}
