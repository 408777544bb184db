// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dowser Contributors

package learning

import (
	"context"
	"sort"
	"time"

	"github.com/dowser-dev/dowser/internal/embedding"
	"github.com/dowser-dev/dowser/internal/store"
	"github.com/dowser-dev/dowser/pkg/types"
)

// SimilarQuestion is one memory-bank hit for a new question.
type SimilarQuestion struct {
	Question   string  `json:"question"`
	SQL        string  `json:"sql"`
	Similarity float64 `json:"similarity"`
}

// TableSuggestion scores a table by its learned keyword associations.
type TableSuggestion struct {
	Table string  `json:"table"`
	Score float64 `json:"score"`
}

// TopKeyword is one row of the stats keyword leaderboard.
type TopKeyword struct {
	Keyword string  `json:"keyword"`
	Weight  float64 `json:"weight"`
	Success int     `json:"success"`
}

// TopPattern is one row of the stats pattern leaderboard.
type TopPattern struct {
	Sample     string  `json:"sample"`
	Success    int     `json:"success"`
	Confidence float64 `json:"confidence"`
}

// Stats is the aggregate view of the learning state.
type Stats struct {
	TotalFeedback    int          `json:"total_feedback"`
	PositiveFeedback int          `json:"positive_feedback"`
	NegativeFeedback int          `json:"negative_feedback"`
	SuccessRate      float64      `json:"success_rate"`
	LearnedPatterns  int          `json:"learned_patterns"`
	KeywordWeights   int          `json:"keyword_weights"`
	MemoryItems      int          `json:"memory_items"`
	TopKeywords      []TopKeyword `json:"top_keywords,omitempty"`
	TopPatterns      []TopPattern `json:"top_patterns,omitempty"`
}

// TableTally is the per-table outcome count within an analysis window.
type TableTally struct {
	Success int `json:"success"`
	Failure int `json:"failure"`
}

// Mistake is one negative-feedback sample from an analysis window.
type Mistake struct {
	Question      string   `json:"question"`
	MatchedTables []string `json:"matched_tables,omitempty"`
	Keywords      []string `json:"keywords,omitempty"`
}

// Analysis summarises recent feedback. TotalQueries is zero when the
// window held no feedback at all.
type Analysis struct {
	PeriodDays       int                   `json:"period_days"`
	TotalQueries     int                   `json:"total_queries"`
	SuccessRate      float64               `json:"success_rate"`
	TablePerformance map[string]TableTally `json:"table_performance,omitempty"`
	CommonMistakes   []Mistake             `json:"common_mistakes,omitempty"`
}

const (
	// recommendThreshold marks keywords whose learned weight shows
	// consistently positive feedback.
	recommendThreshold = 1.2

	maxTableSuggestions = 5
	maxCommonMistakes   = 5
	topKeywordCount     = 10
	topPatternCount     = 5
	patternSampleLen    = 50
)

// EnhancedWeights returns the learned weight for each keyword, defaulting
// to the neutral 1.0 for keywords never seen in feedback.
func (e *Engine) EnhancedWeights(ctx context.Context, keywords []string) map[string]float64 {
	e.ensureLoaded(ctx)
	e.mu.RLock()
	defer e.mu.RUnlock()

	weights := make(map[string]float64, len(keywords))
	for _, keyword := range keywords {
		if kw, ok := e.keywords[keyword]; ok {
			weights[keyword] = kw.Weight
		} else {
			weights[keyword] = 1.0
		}
	}
	return weights
}

// SimilarQuestions returns the topK memory-bank entries closest to the
// question, empty when the encoder is unavailable.
func (e *Engine) SimilarQuestions(ctx context.Context, question string, topK int) []SimilarQuestion {
	e.ensureLoaded(ctx)
	if topK <= 0 {
		topK = defaultTopK
	}

	qvec, ok := e.encoder.Encode(ctx, question)
	if !ok {
		return nil
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	results := make([]SimilarQuestion, 0, len(e.memory))
	for i := range e.memory {
		item := &e.memory[i]
		if len(item.Embedding) == 0 {
			continue
		}
		results = append(results, SimilarQuestion{
			Question:   item.Question,
			SQL:        item.SQL,
			Similarity: embedding.CosineSimilarity(qvec, item.Embedding),
		})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Similarity != results[j].Similarity {
			return results[i].Similarity > results[j].Similarity
		}
		return results[i].Question < results[j].Question
	})
	if len(results) > topK {
		results = results[:topK]
	}
	return results
}

// TableSuggestions ranks tables by the summed weight×association of the
// question's keywords. Tables never associated with any of the keywords
// do not appear.
func (e *Engine) TableSuggestions(ctx context.Context, question string) []TableSuggestion {
	e.ensureLoaded(ctx)
	keywords := e.tokens.Extract(question)

	e.mu.RLock()
	defer e.mu.RUnlock()

	scores := make(map[string]float64)
	for _, keyword := range keywords {
		kw, ok := e.keywords[keyword]
		if !ok {
			continue
		}
		for table, count := range kw.Tables {
			scores[table] += kw.Weight * float64(count)
		}
	}

	suggestions := make([]TableSuggestion, 0, len(scores))
	for table, score := range scores {
		suggestions = append(suggestions, TableSuggestion{Table: table, Score: score})
	}
	sort.Slice(suggestions, func(i, j int) bool {
		if suggestions[i].Score != suggestions[j].Score {
			return suggestions[i].Score > suggestions[j].Score
		}
		return suggestions[i].Table < suggestions[j].Table
	})
	if len(suggestions) > maxTableSuggestions {
		suggestions = suggestions[:maxTableSuggestions]
	}
	return suggestions
}

// RecommendedKeywords returns the question's keywords whose learned weight
// exceeds the recommendation threshold, each annotated with a trailing
// asterisk.
func (e *Engine) RecommendedKeywords(ctx context.Context, question string) []string {
	e.ensureLoaded(ctx)
	keywords := e.tokens.Extract(question)

	e.mu.RLock()
	defer e.mu.RUnlock()

	var recommended []string
	for _, keyword := range keywords {
		if kw, ok := e.keywords[keyword]; ok && kw.Weight > recommendThreshold {
			recommended = append(recommended, keyword+"*")
		}
	}
	return recommended
}

// Stats aggregates the learning state: outcome counts, the ten strongest
// keywords, and the five most successful patterns.
func (e *Engine) Stats(ctx context.Context) Stats {
	e.ensureLoaded(ctx)
	e.mu.RLock()
	defer e.mu.RUnlock()

	s := Stats{
		TotalFeedback:   len(e.feedback),
		LearnedPatterns: len(e.patterns),
		KeywordWeights:  len(e.keywords),
		MemoryItems:     len(e.memory),
	}
	for i := range e.feedback {
		if e.feedback[i].Label == types.FeedbackPositive {
			s.PositiveFeedback++
		}
	}
	s.NegativeFeedback = s.TotalFeedback - s.PositiveFeedback
	if s.TotalFeedback > 0 {
		s.SuccessRate = float64(s.PositiveFeedback) / float64(s.TotalFeedback)
	}

	weights := make([]*store.KeywordWeight, 0, len(e.keywords))
	for _, kw := range e.keywords {
		weights = append(weights, kw)
	}
	sort.Slice(weights, func(i, j int) bool {
		if weights[i].Weight != weights[j].Weight {
			return weights[i].Weight > weights[j].Weight
		}
		return weights[i].Keyword < weights[j].Keyword
	})
	if len(weights) > topKeywordCount {
		weights = weights[:topKeywordCount]
	}
	for _, kw := range weights {
		s.TopKeywords = append(s.TopKeywords, TopKeyword{
			Keyword: kw.Keyword,
			Weight:  kw.Weight,
			Success: kw.SuccessCount,
		})
	}

	patterns := make([]*store.LearnedPattern, 0, len(e.patterns))
	for _, p := range e.patterns {
		patterns = append(patterns, p)
	}
	sort.Slice(patterns, func(i, j int) bool {
		if patterns[i].SuccessCount != patterns[j].SuccessCount {
			return patterns[i].SuccessCount > patterns[j].SuccessCount
		}
		return patterns[i].Key < patterns[j].Key
	})
	if len(patterns) > topPatternCount {
		patterns = patterns[:topPatternCount]
	}
	for _, p := range patterns {
		s.TopPatterns = append(s.TopPatterns, TopPattern{
			Sample:     truncateRunes(p.QuestionSample, patternSampleLen),
			Success:    p.SuccessCount,
			Confidence: p.Confidence,
		})
	}

	return s
}

// AnalyzeQueryPatterns tallies per-table outcomes and collects up to five
// negative samples from the trailing window.
func (e *Engine) AnalyzeQueryPatterns(ctx context.Context, windowDays int) Analysis {
	e.ensureLoaded(ctx)
	if windowDays <= 0 {
		windowDays = DefaultAnalysisWindowDays
	}
	cutoff := e.nowFunc().Add(-time.Duration(windowDays) * 24 * time.Hour)

	e.mu.RLock()
	defer e.mu.RUnlock()

	analysis := Analysis{PeriodDays: windowDays}
	var positive int
	for i := range e.feedback {
		fb := &e.feedback[i]
		if !fb.Timestamp.After(cutoff) {
			continue
		}
		analysis.TotalQueries++
		if fb.Label == types.FeedbackPositive {
			positive++
		}

		for _, table := range fb.MatchedTables {
			if analysis.TablePerformance == nil {
				analysis.TablePerformance = make(map[string]TableTally)
			}
			tally := analysis.TablePerformance[table]
			if fb.Label == types.FeedbackPositive {
				tally.Success++
			} else {
				tally.Failure++
			}
			analysis.TablePerformance[table] = tally
		}

		if fb.Label == types.FeedbackNegative && len(analysis.CommonMistakes) < maxCommonMistakes {
			analysis.CommonMistakes = append(analysis.CommonMistakes, Mistake{
				Question:      fb.Question,
				MatchedTables: fb.MatchedTables,
				Keywords:      e.tokens.Extract(fb.Question),
			})
		}
	}
	if analysis.TotalQueries > 0 {
		analysis.SuccessRate = float64(positive) / float64(analysis.TotalQueries)
	}
	return analysis
}
