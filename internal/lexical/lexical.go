// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dowser Contributors

// Package lexical scores schema entities by keyword overlap with a
// question. It is the second signal behind fused search and the retrieval
// path of last resort when no embedding provider is reachable. Every
// contribution is multiplied by the keyword's learned weight, so recorded
// feedback sharpens keyword retrieval over time.
package lexical

import (
	"context"
	"sort"
	"strings"

	"github.com/dowser-dev/dowser/internal/index"
	"github.com/dowser-dev/dowser/internal/schema"
	"github.com/dowser-dev/dowser/internal/tokenize"
	"github.com/dowser-dev/dowser/pkg/types"
)

// Contribution of a single keyword hit, before learned weighting.
const (
	tableNameWeight    = 2.0
	tableCommentWeight = 1.0
	fieldNameWeight    = 0.5
	fieldCommentWeight = 0.3
	enumNameWeight     = 1.0
	moduleNameWeight   = 3.0
	moduleDescWeight   = 1.0
)

// WeightSource supplies learned keyword weights keyed by keyword. The
// learning engine implements it; a nil source scores every keyword at the
// neutral weight 1.0.
type WeightSource interface {
	EnhancedWeights(ctx context.Context, keywords []string) map[string]float64
}

// Scorer ranks tables and modules by keyword relevance to a question.
type Scorer struct {
	tokens  tokenize.Tokenizer
	weights WeightSource
}

// New returns a Scorer drawing keyword weights from ws, which may be nil.
func New(ws WeightSource) *Scorer {
	return &Scorer{
		tokens:  tokenize.NewSearchSegmenter(),
		weights: ws,
	}
}

// Rank scores tables against the question and returns keyword results for
// fusion, ordered by score with ties broken by table name. Tables without
// a single keyword hit are omitted.
func (s *Scorer) Rank(ctx context.Context, question string, tables []schema.Table) []index.LexicalResult {
	keywords := s.tokens.Extract(question)
	if len(keywords) == 0 {
		return nil
	}
	weights := s.learnedWeights(ctx, keywords)

	results := make([]index.LexicalResult, 0, len(tables))
	for i := range tables {
		score, matched := tableScore(&tables[i], keywords, weights)
		if score <= 0 {
			continue
		}
		matchType := types.MatchKeyword
		if len(matched) > 0 {
			matchType = types.MatchField
		}
		results = append(results, index.LexicalResult{
			TableName:     tables[i].Name,
			TableComment:  tables[i].Comment,
			ModuleName:    tables[i].Module,
			Score:         score,
			MatchType:     matchType,
			MatchedFields: matched,
		})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].TableName < results[j].TableName
	})
	return results
}

// ModuleResult is one module ranked for prompt context selection, carrying
// its scoring tables ranked inside it.
type ModuleResult struct {
	Module *schema.Module
	Score  float64
	Tables []TableResult
}

// TableResult pairs a table with its keyword relevance score.
type TableResult struct {
	Table *schema.Table
	Score float64
}

// RankModules scores whole modules against the question. A module's score
// sums keyword hits on its own name and description with the scores of all
// its tables, so a module can rank on table evidence alone. Modules without
// any hit are omitted. Returned pointers alias the modules slice.
func (s *Scorer) RankModules(ctx context.Context, question string, modules []schema.Module) []ModuleResult {
	keywords := s.tokens.Extract(question)
	if len(keywords) == 0 {
		return nil
	}
	weights := s.learnedWeights(ctx, keywords)

	results := make([]ModuleResult, 0, len(modules))
	for i := range modules {
		mod := &modules[i]
		score := moduleScore(mod, keywords, weights)

		ranked := make([]TableResult, 0, len(mod.Tables))
		for j := range mod.Tables {
			tableRel, _ := tableScore(&mod.Tables[j], keywords, weights)
			score += tableRel
			if tableRel > 0 {
				ranked = append(ranked, TableResult{Table: &mod.Tables[j], Score: tableRel})
			}
		}
		if score <= 0 {
			continue
		}

		sort.Slice(ranked, func(a, b int) bool {
			if ranked[a].Score != ranked[b].Score {
				return ranked[a].Score > ranked[b].Score
			}
			return ranked[a].Table.Name < ranked[b].Table.Name
		})
		results = append(results, ModuleResult{Module: mod, Score: score, Tables: ranked})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Module.Name < results[j].Module.Name
	})
	return results
}

func (s *Scorer) learnedWeights(ctx context.Context, keywords []string) map[string]float64 {
	if s.weights == nil {
		return nil
	}
	return s.weights.EnhancedWeights(ctx, keywords)
}

// tableScore sums weighted keyword hits across the table's name, comment,
// fields, and enum names. Matched fields are reported in field order.
func tableScore(t *schema.Table, keywords []string, weights map[string]float64) (float64, []string) {
	var (
		score   float64
		matched []string
	)
	name := strings.ToLower(t.Name)
	comment := strings.ToLower(t.Comment)

	for _, kw := range keywords {
		w := weightFor(weights, kw)
		lower := strings.ToLower(kw)

		if strings.Contains(name, lower) {
			score += tableNameWeight * w
		}
		if strings.Contains(comment, lower) {
			score += tableCommentWeight * w
		}

		for i := range t.Fields {
			f := &t.Fields[i]
			hit := false
			if strings.Contains(strings.ToLower(f.Name), lower) {
				score += fieldNameWeight * w
				hit = true
			}
			if f.Comment != "" && strings.Contains(strings.ToLower(f.Comment), lower) {
				score += fieldCommentWeight * w
				hit = true
			}
			if hit && !containsString(matched, f.Name) {
				matched = append(matched, f.Name)
			}
		}
	}

	// An enum hit counts once per enum no matter how many keywords touch
	// it, at the strongest matching keyword's weight.
	for _, enumName := range t.EnumNames() {
		lowerEnum := strings.ToLower(enumName)
		best := 0.0
		for _, kw := range keywords {
			if !strings.Contains(lowerEnum, strings.ToLower(kw)) {
				continue
			}
			if w := weightFor(weights, kw); w > best {
				best = w
			}
		}
		if best > 0 {
			score += enumNameWeight * best
		}
	}

	return score, matched
}

func moduleScore(m *schema.Module, keywords []string, weights map[string]float64) float64 {
	var score float64
	name := strings.ToLower(m.Name)
	desc := strings.ToLower(m.Description)

	for _, kw := range keywords {
		w := weightFor(weights, kw)
		lower := strings.ToLower(kw)
		if strings.Contains(name, lower) {
			score += moduleNameWeight * w
		}
		if strings.Contains(desc, lower) {
			score += moduleDescWeight * w
		}
	}
	return score
}

// weightFor reads a keyword's learned weight, falling back to neutral when
// the source did not report one.
func weightFor(weights map[string]float64, keyword string) float64 {
	if w, ok := weights[keyword]; ok {
		return w
	}
	return 1.0
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
