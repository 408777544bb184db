// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dowser Contributors

// Package tokenize extracts keywords from natural-language questions and
// schema descriptions. Mixed Chinese/English text is common in both, so the
// segmenter combines whitespace tokens with overlapping two-character
// bigrams over CJK runs. The bigram pass is a heuristic approximation of
// word boundaries; callers that need real segmentation can swap in their
// own Tokenizer.
package tokenize

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Tokenizer produces the keyword list for a piece of text.
type Tokenizer interface {
	Extract(text string) []string
}

// Segmenter is the default Tokenizer: punctuation-stripped whitespace
// tokens plus CJK bigrams, filtered through a stop-word set. Tokens keep
// their first-seen order and are de-duplicated.
type Segmenter struct {
	stopwords map[string]struct{}
}

// Chinese function words and query verbs that carry no schema signal.
var searchStopwords = []string{
	"的", "是", "在", "有", "和", "与", "或", "及", "等",
	"查询", "统计", "获取", "查找", "请问", "我想", "请", "帮我",
	"多少", "哪些", "什么", "如何", "怎样", "显示", "所有", "列表",
	"一个", "这个", "那个", "各种", "不同",
}

// The learning path keeps a smaller set so that question phrasing still
// differentiates feedback entries.
var learningStopwords = []string{
	"的", "是", "在", "有", "和", "查询", "统计", "获取", "请", "帮我",
}

// NewSearchSegmenter returns the segmenter used for schema matching and
// context selection.
func NewSearchSegmenter() *Segmenter {
	return newSegmenter(searchStopwords)
}

// NewLearningSegmenter returns the segmenter used for feedback keyword
// weighting.
func NewLearningSegmenter() *Segmenter {
	return newSegmenter(learningStopwords)
}

func newSegmenter(stopwords []string) *Segmenter {
	set := make(map[string]struct{}, len(stopwords))
	for _, w := range stopwords {
		set[w] = struct{}{}
	}
	return &Segmenter{stopwords: set}
}

// Extract returns the keywords of text: CJK bigrams first (in text order),
// then whitespace tokens, without duplicates. Tokens shorter than two
// runes and stop-words are dropped.
func (s *Segmenter) Extract(text string) []string {
	clean := stripPunct(text)
	if strings.TrimSpace(clean) == "" {
		return nil
	}

	var (
		keywords []string
		seen     = make(map[string]struct{})
	)
	add := func(kw string) {
		if _, dup := seen[kw]; dup {
			return
		}
		if _, stop := s.stopwords[kw]; stop {
			return
		}
		seen[kw] = struct{}{}
		keywords = append(keywords, kw)
	}

	for _, run := range cjkRuns(clean) {
		for i := 0; i+1 < len(run); i++ {
			add(string(run[i : i+2]))
		}
	}

	for _, word := range strings.Fields(clean) {
		if utf8.RuneCountInString(word) < 2 {
			continue
		}
		add(word)
	}

	return keywords
}

// stripPunct replaces punctuation and symbols with spaces. Underscores
// survive so that snake_case identifiers stay whole.
func stripPunct(text string) string {
	return strings.Map(func(r rune) rune {
		if r == '_' {
			return r
		}
		if unicode.IsPunct(r) || unicode.IsSymbol(r) {
			return ' '
		}
		return r
	}, text)
}

// isCJK reports whether r falls in the CJK Unified Ideographs block.
func isCJK(r rune) bool {
	return r >= 0x4e00 && r <= 0x9fff
}

// cjkRuns returns the maximal consecutive CJK rune sequences of text.
func cjkRuns(text string) [][]rune {
	var (
		runs    [][]rune
		current []rune
	)
	for _, r := range text {
		if isCJK(r) {
			current = append(current, r)
			continue
		}
		if len(current) > 0 {
			runs = append(runs, current)
			current = nil
		}
	}
	if len(current) > 0 {
		runs = append(runs, current)
	}
	return runs
}
