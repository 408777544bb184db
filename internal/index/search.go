// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dowser Contributors

package index

import (
	"context"
	"sort"

	"github.com/dowser-dev/dowser/internal/embedding"
	"github.com/dowser-dev/dowser/internal/store"
	"github.com/dowser-dev/dowser/pkg/types"
)

// Search returns the topK tables most relevant to the question. The result
// is empty when the index is unbuilt or the encoder is unavailable; callers
// fall back to lexical-only retrieval in that case.
func (x *Index) Search(ctx context.Context, question string, topK int) []SearchResult {
	x.ensureLoaded(ctx)
	if topK <= 0 {
		topK = x.cfg.TopK
	}

	// Encode before taking the lock; a slow provider must not block reads.
	qvec, ok := x.encoder.Encode(ctx, question)
	if !ok {
		return nil
	}

	x.mu.RLock()
	defer x.mu.RUnlock()
	if !x.built {
		return nil
	}

	results := make([]SearchResult, 0, len(x.tables))
	for i := range x.tables {
		if r, matched := x.scoreTable(&x.tables[i], qvec); matched {
			results = append(results, r)
		}
	}

	sortResults(results)
	if len(results) > topK {
		results = results[:topK]
	}
	return results
}

// scoreTable scores one table against the question vector. A table is
// included when its own similarity clears the threshold or when any field
// or enum does. Relevance is the best similarity among the signals that
// matched, and the match type reports the strongest signal kind: enum over
// field over semantic.
func (x *Index) scoreTable(tv *store.TableVector, qvec []float32) (SearchResult, bool) {
	tableScore := embedding.CosineSimilarity(qvec, tv.Vector)

	var (
		matchedFields []string
		bestField     float64
	)
	for _, f := range tv.Fields {
		score := embedding.CosineSimilarity(qvec, f.Vector)
		if score > x.cfg.Threshold {
			matchedFields = append(matchedFields, f.Name)
			if score > bestField {
				bestField = score
			}
		}
	}

	var (
		matchedEnums []string
		bestEnum     float64
	)
	for _, name := range sortedEnumNames(tv.Enums) {
		score := embedding.CosineSimilarity(qvec, tv.Enums[name])
		if score > x.cfg.Threshold {
			matchedEnums = append(matchedEnums, name)
			if score > bestEnum {
				bestEnum = score
			}
		}
	}

	tableMatched := tableScore > x.cfg.Threshold
	if !tableMatched && len(matchedFields) == 0 && len(matchedEnums) == 0 {
		return SearchResult{}, false
	}

	relevance := bestEnum
	matchType := types.MatchEnum
	if bestField > relevance {
		relevance = bestField
	}
	if len(matchedEnums) == 0 {
		matchType = types.MatchField
	}
	if tableScore > relevance {
		relevance = tableScore
	}
	if len(matchedEnums) == 0 && len(matchedFields) == 0 {
		matchType = types.MatchSemantic
	}

	return SearchResult{
		TableName:     tv.Name,
		TableComment:  tv.Comment,
		ModuleName:    tv.Module,
		Relevance:     relevance,
		MatchType:     matchType,
		MatchedFields: matchedFields,
		MatchedEnums:  matchedEnums,
	}, true
}

// Fuse blends semantic search with lexical keyword scores. Semantic
// relevance is weighted by SemanticWeight and lexical scores by
// LexicalWeight; a table present in both lists accumulates both
// contributions. A lexical hit carrying field evidence, either matched
// field names or a field match type, upgrades an existing semantic
// entry to a hybrid match.
func (x *Index) Fuse(ctx context.Context, question string, lexical []LexicalResult, topK int) []SearchResult {
	if topK <= 0 {
		topK = x.cfg.TopK
	}

	// Over-fetch so lexical boosts can promote tables from below the cut.
	semantic := x.Search(ctx, question, topK*2)

	results := make([]SearchResult, 0, len(semantic)+len(lexical))
	byTable := make(map[string]int, len(semantic))
	for _, r := range semantic {
		r.Relevance *= x.cfg.SemanticWeight
		byTable[r.TableName] = len(results)
		results = append(results, r)
	}

	for _, lr := range lexical {
		contribution := lr.Score * x.cfg.LexicalWeight
		if i, ok := byTable[lr.TableName]; ok {
			results[i].Relevance += contribution
			results[i].MatchedFields = unionStrings(results[i].MatchedFields, lr.MatchedFields)
			if len(lr.MatchedFields) > 0 || lr.MatchType == types.MatchField {
				results[i].MatchType = types.MatchHybrid
			}
			continue
		}

		matchType := lr.MatchType
		if matchType == "" {
			matchType = types.MatchKeyword
		}
		byTable[lr.TableName] = len(results)
		results = append(results, SearchResult{
			TableName:     lr.TableName,
			TableComment:  lr.TableComment,
			ModuleName:    lr.ModuleName,
			Relevance:     contribution,
			MatchType:     matchType,
			MatchedFields: lr.MatchedFields,
		})
	}

	sortResults(results)
	if len(results) > topK {
		results = results[:topK]
	}
	return results
}

// sortResults orders by relevance descending, then table name ascending so
// equal scores rank deterministically.
func sortResults(results []SearchResult) {
	sort.Slice(results, func(i, j int) bool {
		if results[i].Relevance != results[j].Relevance {
			return results[i].Relevance > results[j].Relevance
		}
		return results[i].TableName < results[j].TableName
	})
}

// unionStrings appends the elements of extra not already present in base,
// preserving order of first appearance.
func unionStrings(base, extra []string) []string {
	if len(extra) == 0 {
		return base
	}
	seen := make(map[string]struct{}, len(base))
	for _, s := range base {
		seen[s] = struct{}{}
	}
	for _, s := range extra {
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		base = append(base, s)
	}
	return base
}
