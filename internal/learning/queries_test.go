// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dowser Contributors

package learning_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dowser-dev/dowser/internal/learning"
	"github.com/dowser-dev/dowser/pkg/types"
)

func TestEngine_EnhancedWeightsDefault(t *testing.T) {
	ctx := context.Background()
	eng := learning.New(newStubEmbedder(), nullStore{})
	eng.RecordFeedback(ctx, positiveFeedback("资产 总数", "assets"))

	weights := eng.EnhancedWeights(ctx, []string{"资产", "从未见过"})
	assert.InDelta(t, 1.1, weights["资产"], 1e-9)
	assert.InDelta(t, 1.0, weights["从未见过"], 1e-9)
	assert.Len(t, weights, 2)
}

func TestEngine_SimilarQuestionsRanking(t *testing.T) {
	ctx := context.Background()
	enc := newStubEmbedder().
		on("资产有几个", axis(0.9)).
		on("工单列表", axis(0.2))
	eng := learning.New(enc, nullStore{})

	eng.RecordFeedback(ctx, positiveFeedback("资产有几个", "assets"))
	eng.RecordFeedback(ctx, positiveFeedback("工单列表", "work_orders"))

	results := eng.SimilarQuestions(ctx, "资产 数量", 5)
	require.Len(t, results, 2)
	assert.Equal(t, "资产有几个", results[0].Question)
	assert.InDelta(t, 0.9, results[0].Similarity, 1e-6)
	assert.Equal(t, "工单列表", results[1].Question)
	assert.InDelta(t, 0.2, results[1].Similarity, 1e-6)

	top := eng.SimilarQuestions(ctx, "资产 数量", 1)
	require.Len(t, top, 1)
	assert.Equal(t, "资产有几个", top[0].Question)
}

func TestEngine_SimilarQuestionsEncoderDown(t *testing.T) {
	ctx := context.Background()
	enc := newStubEmbedder()
	eng := learning.New(enc, nullStore{})
	eng.RecordFeedback(ctx, positiveFeedback("资产 总数", "assets"))

	enc.available = false
	assert.Empty(t, eng.SimilarQuestions(ctx, "资产 数量", 5))
}

func TestEngine_TableSuggestions(t *testing.T) {
	ctx := context.Background()
	eng := learning.New(newStubEmbedder(), nullStore{})

	eng.RecordFeedback(ctx, positiveFeedback("资产 总数", "assets"))
	eng.RecordFeedback(ctx, positiveFeedback("工单 状态", "work_orders"))

	suggestions := eng.TableSuggestions(ctx, "资产 数量")
	require.Len(t, suggestions, 1, "unrelated tables must not appear")
	assert.Equal(t, "assets", suggestions[0].Table)
	assert.InDelta(t, 1.1, suggestions[0].Score, 1e-9)

	assert.Empty(t, eng.TableSuggestions(ctx, "完全无关"))
}

func TestEngine_TableSuggestionsAccumulate(t *testing.T) {
	ctx := context.Background()
	eng := learning.New(newStubEmbedder(), nullStore{})

	// 资产 is reinforced twice for assets and once for locations.
	eng.RecordFeedback(ctx, positiveFeedback("资产 总数", "assets"))
	eng.RecordFeedback(ctx, learning.Feedback{
		Question:      "资产 位置",
		SQL:           "SELECT 1",
		Label:         types.FeedbackPositive,
		MatchedTables: []string{"assets", "locations"},
	})

	suggestions := eng.TableSuggestions(ctx, "资产 在哪")
	require.Len(t, suggestions, 2)
	assert.Equal(t, "assets", suggestions[0].Table)
	assert.Equal(t, "locations", suggestions[1].Table)
	assert.Greater(t, suggestions[0].Score, suggestions[1].Score)
}

func TestEngine_RecommendedKeywords(t *testing.T) {
	ctx := context.Background()
	eng := learning.New(newStubEmbedder(), nullStore{})

	// 资产 reaches weight 1.3; 工单 stops at the 1.2 threshold.
	for i := 0; i < 3; i++ {
		eng.RecordFeedback(ctx, positiveFeedback("资产 清点", "assets"))
	}
	for i := 0; i < 2; i++ {
		eng.RecordFeedback(ctx, positiveFeedback("工单 概况", "work_orders"))
	}

	recommended := eng.RecommendedKeywords(ctx, "资产 工单")
	assert.Equal(t, []string{"资产*"}, recommended,
		"a weight exactly at the threshold is not recommended")
}

func TestEngine_StatsLeaderboards(t *testing.T) {
	ctx := context.Background()
	eng := learning.New(newStubEmbedder(), nullStore{})

	for i := 0; i < 3; i++ {
		eng.RecordFeedback(ctx, positiveFeedback("资产 清点", "assets"))
	}
	eng.RecordFeedback(ctx, positiveFeedback("工单 概况", "work_orders"))

	stats := eng.Stats(ctx)
	require.NotEmpty(t, stats.TopKeywords)
	assert.InDelta(t, 1.3, stats.TopKeywords[0].Weight, 1e-9,
		"strongest keyword leads the board")

	require.Len(t, stats.TopPatterns, 2)
	assert.Equal(t, 3, stats.TopPatterns[0].Success)
	assert.Equal(t, 1, stats.TopPatterns[1].Success)
}

func TestEngine_AnalyzeQueryPatterns(t *testing.T) {
	ctx := context.Background()
	eng := learning.New(newStubEmbedder(), nullStore{})

	recent := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	old := recent.Add(-10 * 24 * time.Hour)

	eng.SetNowFunc(func() time.Time { return old })
	eng.RecordFeedback(ctx, positiveFeedback("资产 总数", "assets"))
	eng.RecordFeedback(ctx, positiveFeedback("资产 列表", "assets"))
	eng.RecordFeedback(ctx, negativeFeedback("资产 错漏", "assets"))

	eng.SetNowFunc(func() time.Time { return recent })
	eng.RecordFeedback(ctx, positiveFeedback("工单 统计", "work_orders"))
	eng.RecordFeedback(ctx, negativeFeedback("工单 错误", "work_orders"))

	analysis := eng.AnalyzeQueryPatterns(ctx, 0)
	assert.Equal(t, learning.DefaultAnalysisWindowDays, analysis.PeriodDays)
	assert.Equal(t, 2, analysis.TotalQueries, "ten-day-old feedback is outside the window")
	assert.InDelta(t, 0.5, analysis.SuccessRate, 1e-9)

	require.Contains(t, analysis.TablePerformance, "work_orders")
	assert.Equal(t, learning.TableTally{Success: 1, Failure: 1}, analysis.TablePerformance["work_orders"])
	assert.NotContains(t, analysis.TablePerformance, "assets")

	require.Len(t, analysis.CommonMistakes, 1)
	assert.Equal(t, "工单 错误", analysis.CommonMistakes[0].Question)
	assert.Equal(t, []string{"work_orders"}, analysis.CommonMistakes[0].MatchedTables)
	assert.Contains(t, analysis.CommonMistakes[0].Keywords, "错误")
}

func TestEngine_AnalyzeEmptyWindow(t *testing.T) {
	ctx := context.Background()
	eng := learning.New(newStubEmbedder(), nullStore{})

	analysis := eng.AnalyzeQueryPatterns(ctx, 3)
	assert.Equal(t, 3, analysis.PeriodDays)
	assert.Zero(t, analysis.TotalQueries)
	assert.Zero(t, analysis.SuccessRate)
	assert.Empty(t, analysis.TablePerformance)
	assert.Empty(t, analysis.CommonMistakes)
}
