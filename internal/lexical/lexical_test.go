// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dowser Contributors

package lexical_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dowser-dev/dowser/internal/learning"
	"github.com/dowser-dev/dowser/internal/lexical"
	"github.com/dowser-dev/dowser/internal/schema"
	"github.com/dowser-dev/dowser/pkg/types"
)

var _ lexical.WeightSource = (*learning.Engine)(nil)

// stubWeights returns a fixed weight map and records the keyword lists it
// was asked about. Keywords missing from the map stay at the neutral
// weight.
type stubWeights struct {
	weights  map[string]float64
	requests [][]string
}

func (s *stubWeights) EnhancedWeights(_ context.Context, keywords []string) map[string]float64 {
	s.requests = append(s.requests, append([]string(nil), keywords...))
	return s.weights
}

func lexTables() []schema.Table {
	return []schema.Table{
		{
			Name:    "assets",
			Comment: "资产信息表",
			Module:  "asset",
			Fields: []schema.Field{
				{Name: "id", Type: "bigint", Comment: "主键"},
				{Name: "asset_name", Type: "varchar", Comment: "资产名称"},
				{Name: "asset_status", Type: "varchar", Comment: "资产状态"},
			},
			Enums: map[string][]schema.EnumValue{
				"asset_state": {
					{Value: "enabled", Description: "启用"},
					{Value: "disabled", Description: "停用"},
				},
			},
		},
		{
			Name:    "work_orders",
			Comment: "工单表",
			Module:  "ops",
			Fields: []schema.Field{
				{Name: "title", Type: "varchar", Comment: "工单标题"},
			},
		},
	}
}

func lexModules() []schema.Module {
	tables := lexTables()
	return []schema.Module{
		{Name: "ops", Description: "运维工单", Tables: tables[1:2]},
		{Name: "asset", Description: "资产管理", Tables: tables[0:1]},
	}
}

func TestScorer_RankScoresCommentAndFieldHits(t *testing.T) {
	s := lexical.New(nil)

	results := s.Rank(context.Background(), "资产 数量", lexTables())
	require.Len(t, results, 1, "tables without any hit must be omitted")

	// Table comment 1.0 plus two field comment hits at 0.3 each.
	r := results[0]
	assert.Equal(t, "assets", r.TableName)
	assert.Equal(t, "资产信息表", r.TableComment)
	assert.Equal(t, "asset", r.ModuleName)
	assert.InDelta(t, 1.6, r.Score, 1e-9)
	assert.Equal(t, types.MatchField, r.MatchType)
	assert.Equal(t, []string{"asset_name", "asset_status"}, r.MatchedFields)
}

func TestScorer_RankTableNameHit(t *testing.T) {
	s := lexical.New(nil)

	results := s.Rank(context.Background(), "assets count", lexTables())
	require.Len(t, results, 1)

	assert.Equal(t, "assets", results[0].TableName)
	assert.InDelta(t, 2.0, results[0].Score, 1e-9)
	assert.Equal(t, types.MatchKeyword, results[0].MatchType)
	assert.Empty(t, results[0].MatchedFields)
}

func TestScorer_RankAppliesLearnedWeights(t *testing.T) {
	ws := &stubWeights{weights: map[string]float64{"资产": 2.0}}
	s := lexical.New(ws)

	results := s.Rank(context.Background(), "资产 状态", lexTables())
	require.Len(t, results, 1)

	// 资产 hits at weight 2.0: comment 1.0 and two field comments at 0.3.
	// 状态 is absent from the weight map and hits one field comment at the
	// neutral weight: 2.0 + 0.6 + 0.6 + 0.3.
	assert.InDelta(t, 3.5, results[0].Score, 1e-9)
	assert.Equal(t, []string{"asset_name", "asset_status"}, results[0].MatchedFields)

	require.Len(t, ws.requests, 1)
	assert.Equal(t, []string{"资产", "状态"}, ws.requests[0])
}

func TestScorer_RankEnumCountedOncePerEnum(t *testing.T) {
	tables := []schema.Table{
		{
			Name: "jobs",
			Enums: map[string][]schema.EnumValue{
				"order_state": {{Value: "new"}},
				"job_state":   {{Value: "queued"}},
			},
		},
	}
	ws := &stubWeights{weights: map[string]float64{"order": 1.5, "state": 1.2}}
	s := lexical.New(ws)

	results := s.Rank(context.Background(), "order state", tables)
	require.Len(t, results, 1)

	// order_state matches both keywords but counts once at the strongest
	// weight (1.5); job_state matches state only (1.2).
	assert.InDelta(t, 2.7, results[0].Score, 1e-9)
	assert.Equal(t, types.MatchKeyword, results[0].MatchType)
	assert.Empty(t, results[0].MatchedFields)
}

func TestScorer_RankOrdersAndBreaksTies(t *testing.T) {
	tables := []schema.Table{
		{Name: "zzz", Comment: "库存快照"},
		{
			Name:    "stocks",
			Comment: "库存台账",
			Fields:  []schema.Field{{Name: "qty", Comment: "库存数量"}},
		},
		{Name: "aaa", Comment: "库存快照"},
	}
	s := lexical.New(nil)

	results := s.Rank(context.Background(), "库存", tables)
	require.Len(t, results, 3)

	assert.Equal(t, "stocks", results[0].TableName)
	assert.InDelta(t, 1.3, results[0].Score, 1e-9)
	assert.Equal(t, []string{"qty"}, results[0].MatchedFields)

	assert.Equal(t, "aaa", results[1].TableName, "equal scores break ties by table name")
	assert.Equal(t, "zzz", results[2].TableName)
	assert.InDelta(t, results[1].Score, results[2].Score, 1e-12)
}

func TestScorer_RankNoKeywords(t *testing.T) {
	s := lexical.New(nil)

	assert.Nil(t, s.Rank(context.Background(), "的", lexTables()))
	assert.Nil(t, s.Rank(context.Background(), "", lexTables()))
}

func TestScorer_RankModules(t *testing.T) {
	modules := lexModules()
	s := lexical.New(nil)

	results := s.RankModules(context.Background(), "资产 工单", modules)
	require.Len(t, results, 2)

	// asset: description hit 1.0 plus the assets table at 1.6.
	assert.Equal(t, "asset", results[0].Module.Name)
	assert.Same(t, &modules[1], results[0].Module)
	assert.InDelta(t, 2.6, results[0].Score, 1e-9)
	require.Len(t, results[0].Tables, 1)
	assert.Equal(t, "assets", results[0].Tables[0].Table.Name)
	assert.InDelta(t, 1.6, results[0].Tables[0].Score, 1e-9)

	// ops: description hit 1.0 plus work_orders at 1.3.
	assert.Equal(t, "ops", results[1].Module.Name)
	assert.InDelta(t, 2.3, results[1].Score, 1e-9)
	require.Len(t, results[1].Tables, 1)
	assert.Equal(t, "work_orders", results[1].Tables[0].Table.Name)
	assert.InDelta(t, 1.3, results[1].Tables[0].Score, 1e-9)
}

func TestScorer_RankModulesNameBonus(t *testing.T) {
	s := lexical.New(nil)

	results := s.RankModules(context.Background(), "asset 数量", lexModules())
	require.Len(t, results, 1)

	// Module name hit 3.0 plus the assets table: name 2.0, two field name
	// hits at 0.5, and the asset_state enum at 1.0.
	assert.Equal(t, "asset", results[0].Module.Name)
	assert.InDelta(t, 7.0, results[0].Score, 1e-9)
	require.Len(t, results[0].Tables, 1)
	assert.InDelta(t, 4.0, results[0].Tables[0].Score, 1e-9)
}

func TestScorer_RankModulesNoHits(t *testing.T) {
	s := lexical.New(nil)

	results := s.RankModules(context.Background(), "天气预报", lexModules())
	assert.Empty(t, results)
}
