// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dowser Contributors

package learning

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/dowser-dev/dowser/internal/store"
	"github.com/dowser-dev/dowser/pkg/types"
)

// Feedback is one user verdict on a generated answer, together with the
// schema entities that were matched when the answer was produced.
type Feedback struct {
	Question        string
	SQL             string
	Label           types.FeedbackLabel
	MatchedTables   []string
	MatchedFields   []string
	MatchedEnums    []string
	RelevanceScores map[string]float64
	UserID          string
	SessionID       string
}

// RecordFeedback appends the feedback to history, adjusts keyword weights,
// patterns, and the memory bank, persists everything, and returns the new
// record's identifier. It never fails the caller: with the encoder
// unavailable embeddings are simply absent, and persistence errors are
// logged.
func (e *Engine) RecordFeedback(ctx context.Context, fb Feedback) string {
	e.ensureLoaded(ctx)
	if !fb.Label.Valid() {
		fb.Label = types.FeedbackPositive
	}

	// Encode before locking; the embedding is best-effort and only the
	// success path stores one.
	var qvec []float32
	if fb.Label == types.FeedbackPositive {
		if vec, ok := e.encoder.Encode(ctx, fb.Question); ok {
			qvec = vec
		}
	}

	now := e.nowFunc().UTC()
	record := store.QueryFeedback{
		ID:              feedbackID(fb.Question, now),
		Question:        fb.Question,
		SQL:             fb.SQL,
		Label:           fb.Label,
		Timestamp:       now,
		UserID:          fb.UserID,
		SessionID:       fb.SessionID,
		MatchedTables:   fb.MatchedTables,
		MatchedFields:   fb.MatchedFields,
		MatchedEnums:    fb.MatchedEnums,
		RelevanceScores: fb.RelevanceScores,
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.feedback = append(e.feedback, record)
	if record.Label == types.FeedbackNegative {
		e.learnFromFailure(record)
	} else {
		e.learnFromSuccess(record, qvec)
	}
	e.persistLocked(ctx)

	slog.Info("learning: feedback recorded", "id", record.ID, "label", string(record.Label))
	return record.ID
}

// learnFromSuccess strengthens the question's keywords, associates them
// with every matched table, upserts the pattern, and stores the pair in
// the memory bank. Caller must hold the write lock.
func (e *Engine) learnFromSuccess(fb store.QueryFeedback, qvec []float32) {
	keywords := e.tokens.Extract(fb.Question)

	for _, table := range fb.MatchedTables {
		for _, keyword := range keywords {
			kw := e.keyword(keyword)
			kw.SuccessCount++
			kw.Weight = math.Min(maxKeywordWeight,
				1.0+float64(kw.SuccessCount-kw.FailureCount)*weightStep)
			if kw.Tables == nil {
				kw.Tables = make(map[string]int)
			}
			kw.Tables[table]++
		}
	}

	key := patternKey(fb.MatchedTables, fb.MatchedFields)
	if p, ok := e.patterns[key]; ok {
		p.SuccessCount++
		p.Confidence = confidence(p.SuccessCount, p.FailureCount)
		p.UpdatedAt = fb.Timestamp
	} else {
		e.patterns[key] = &store.LearnedPattern{
			Key:            key,
			QuestionSample: truncateRunes(fb.Question, questionSampleLen),
			PrimaryTable:   primaryTable(fb.MatchedTables),
			SuccessCount:   1,
			Confidence:     confidence(1, 0),
			Keywords:       keywords,
			Embedding:      qvec,
			UpdatedAt:      fb.Timestamp,
		}
	}

	e.addToMemory(fb, keywords, qvec)
}

// learnFromFailure weakens the question's keywords and discounts the
// matching pattern. A pattern records a previously successful resolution,
// so failure alone never creates one. Caller must hold the write lock.
func (e *Engine) learnFromFailure(fb store.QueryFeedback) {
	keywords := e.tokens.Extract(fb.Question)

	// Mirrors the success loop so a multi-table miss discounts keywords
	// with the same magnitude a multi-table hit strengthens them.
	for range fb.MatchedTables {
		for _, keyword := range keywords {
			kw := e.keyword(keyword)
			kw.FailureCount++
			kw.Weight = math.Max(minKeywordWeight,
				1.0-float64(kw.FailureCount-kw.SuccessCount)*weightStep)
		}
	}

	if p, ok := e.patterns[patternKey(fb.MatchedTables, fb.MatchedFields)]; ok {
		p.FailureCount++
		p.Confidence = confidence(p.SuccessCount, p.FailureCount)
		p.UpdatedAt = fb.Timestamp
	}
}

// addToMemory stores the question/answer pair for similar-question lookup.
// Without an embedding the item could never be retrieved, so it is skipped
// entirely; a repeated question replaces its previous entry. Caller must
// hold the write lock.
func (e *Engine) addToMemory(fb store.QueryFeedback, keywords []string, qvec []float32) {
	if len(qvec) == 0 {
		return
	}

	item := store.MemoryItem{
		Question:     fb.Question,
		SQL:          fb.SQL,
		PrimaryTable: primaryTable(fb.MatchedTables),
		Keywords:     keywords,
		Embedding:    qvec,
		SuccessCount: 1,
		LastUsedAt:   fb.Timestamp,
	}

	for i := range e.memory {
		if e.memory[i].Question == fb.Question {
			e.memory[i] = item
			return
		}
	}
	e.memory = append(e.memory, item)

	if len(e.memory) > MaxMemoryItems {
		e.pruneMemory()
	}
}

// pruneMemory keeps the MaxMemoryItems entries with the highest
// (success count, last used) rank. Caller must hold the write lock.
func (e *Engine) pruneMemory() {
	sort.SliceStable(e.memory, func(i, j int) bool {
		if e.memory[i].SuccessCount != e.memory[j].SuccessCount {
			return e.memory[i].SuccessCount > e.memory[j].SuccessCount
		}
		return e.memory[i].LastUsedAt.After(e.memory[j].LastUsedAt)
	})
	e.memory = e.memory[:MaxMemoryItems]
}

// keyword returns the tracked weight for kw, creating the neutral default
// on first sight. Caller must hold the write lock.
func (e *Engine) keyword(kw string) *store.KeywordWeight {
	w, ok := e.keywords[kw]
	if !ok {
		w = &store.KeywordWeight{Keyword: kw, Weight: 1.0}
		e.keywords[kw] = w
	}
	return w
}

// confidence is the smoothed success ratio of a pattern, in [0,1).
func confidence(success, failure int) float64 {
	return float64(success) / float64(success+failure+1)
}

// patternKey canonicalizes matched tables and fields into a stable key:
// de-duplicated, sorted, capped at three names, pipe-joined.
func patternKey(tables, fields []string) string {
	seen := make(map[string]struct{}, len(tables)+len(fields))
	parts := make([]string, 0, len(tables)+len(fields))
	add := func(names []string) {
		for _, name := range names {
			if name == "" {
				continue
			}
			if _, dup := seen[name]; dup {
				continue
			}
			seen[name] = struct{}{}
			parts = append(parts, name)
		}
	}
	add(tables)
	add(fields)

	sort.Strings(parts)
	if len(parts) > patternKeyParts {
		parts = parts[:patternKeyParts]
	}
	return strings.Join(parts, "|")
}

// feedbackID derives a stable identifier from the question and the moment
// it was recorded.
func feedbackID(question string, at time.Time) string {
	sum := sha256.Sum256([]byte(question + at.Format(time.RFC3339Nano)))
	return "fb_" + hex.EncodeToString(sum[:])[:12]
}

func primaryTable(tables []string) string {
	if len(tables) == 0 {
		return ""
	}
	return tables[0]
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
