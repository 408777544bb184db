// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dowser Contributors

package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dowser-dev/dowser/internal/learning"
)

func newLearningCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "learning",
		Short: "Inspect and manage the adaptive learning store",
	}

	cmd.AddCommand(
		newLearningStatsCmd(),
		newLearningAnalyzeCmd(),
		newLearningSimilarCmd(),
		newLearningSuggestCmd(),
		newLearningResetCmd(),
	)

	return cmd
}

func newLearningStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show learning store statistics",
		RunE:  runLearningStats,
	}
	addAddressFlag(cmd)
	return cmd
}

func newLearningAnalyzeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Analyze feedback patterns over a trailing window",
		RunE:  runLearningAnalyze,
	}
	addAddressFlag(cmd)
	cmd.Flags().Int("window-days", 0, "window in days (0 uses the default)")
	return cmd
}

func newLearningSimilarCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "similar <question>",
		Short: "Find past questions similar to a new one",
		Args:  cobra.ExactArgs(1),
		RunE:  runLearningSimilar,
	}
	addAddressFlag(cmd)
	cmd.Flags().Int("top-k", 0, "result cap (0 uses the default)")
	return cmd
}

func newLearningSuggestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "suggest <question>",
		Short: "Suggest tables past feedback favors for a question",
		Args:  cobra.ExactArgs(1),
		RunE:  runLearningSuggest,
	}
	addAddressFlag(cmd)
	return cmd
}

func newLearningResetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Erase all learned state",
		Long:  "Clear feedback history, learned patterns, keyword weights, and the memory bank, and delete their persisted snapshots.",
		RunE:  runLearningReset,
	}
	addAddressFlag(cmd)
	cmd.Flags().Bool("yes", false, "skip the confirmation prompt")
	return cmd
}

func runLearningStats(cmd *cobra.Command, _ []string) error {
	var stats learning.Stats
	if err := newDaemonClient(daemonAddr(cmd)).getJSON("/api/v1/learning/stats", &stats); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "Feedback:  %d (%d positive, %d negative, %.0f%% success)\n",
		stats.TotalFeedback, stats.PositiveFeedback, stats.NegativeFeedback, stats.SuccessRate*100)
	_, _ = fmt.Fprintf(out, "Patterns:  %d\n", stats.LearnedPatterns)
	_, _ = fmt.Fprintf(out, "Keywords:  %d\n", stats.KeywordWeights)
	_, _ = fmt.Fprintf(out, "Memory:    %d\n", stats.MemoryItems)

	if len(stats.TopKeywords) > 0 {
		_, _ = fmt.Fprintln(out, "\nTop keywords:")
		for _, kw := range stats.TopKeywords {
			_, _ = fmt.Fprintf(out, "  %-20s %.2f (%d successes)\n", kw.Keyword, kw.Weight, kw.Success)
		}
	}
	if len(stats.TopPatterns) > 0 {
		_, _ = fmt.Fprintln(out, "\nTop patterns:")
		for _, p := range stats.TopPatterns {
			_, _ = fmt.Fprintf(out, "  %-50s %d hits, confidence %.2f\n", p.Sample, p.Success, p.Confidence)
		}
	}
	return nil
}

func runLearningAnalyze(cmd *cobra.Command, _ []string) error {
	windowDays, _ := cmd.Flags().GetInt("window-days")

	path := "/api/v1/learning/analysis"
	if windowDays > 0 {
		path = fmt.Sprintf("%s?window_days=%d", path, windowDays)
	}

	var analysis learning.Analysis
	if err := newDaemonClient(daemonAddr(cmd)).getJSON(path, &analysis); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "Last %d days: %d queries, %.0f%% success\n",
		analysis.PeriodDays, analysis.TotalQueries, analysis.SuccessRate*100)

	if len(analysis.TablePerformance) > 0 {
		names := make([]string, 0, len(analysis.TablePerformance))
		for name := range analysis.TablePerformance {
			names = append(names, name)
		}
		sort.Strings(names)

		_, _ = fmt.Fprintln(out, "\nTable performance:")
		for _, name := range names {
			tally := analysis.TablePerformance[name]
			_, _ = fmt.Fprintf(out, "  %-30s %d ok / %d failed\n", name, tally.Success, tally.Failure)
		}
	}
	if len(analysis.CommonMistakes) > 0 {
		_, _ = fmt.Fprintln(out, "\nRecent mistakes:")
		for _, m := range analysis.CommonMistakes {
			_, _ = fmt.Fprintf(out, "  %s (tables: %s)\n", m.Question, strings.Join(m.MatchedTables, ", "))
		}
	}
	return nil
}

func runLearningSimilar(cmd *cobra.Command, args []string) error {
	topK, _ := cmd.Flags().GetInt("top-k")

	body := struct {
		Question string `json:"question"`
		TopK     int    `json:"top_k,omitempty"`
	}{Question: args[0], TopK: topK}

	var resp struct {
		Questions []learning.SimilarQuestion `json:"questions"`
	}
	if err := newDaemonClient(daemonAddr(cmd)).postJSON("/api/v1/learning/similar", body, &resp); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(resp.Questions) == 0 {
		_, _ = fmt.Fprintln(out, "No similar questions remembered.")
		return nil
	}
	for _, q := range resp.Questions {
		_, _ = fmt.Fprintf(out, "%.3f  %s\n", q.Similarity, q.Question)
		if q.SQL != "" {
			_, _ = fmt.Fprintf(out, "       %s\n", q.SQL)
		}
	}
	return nil
}

func runLearningSuggest(cmd *cobra.Command, args []string) error {
	body := struct {
		Question string `json:"question"`
	}{Question: args[0]}

	var resp struct {
		Suggestions []learning.TableSuggestion `json:"suggestions"`
	}
	if err := newDaemonClient(daemonAddr(cmd)).postJSON("/api/v1/learning/suggestions", body, &resp); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(resp.Suggestions) == 0 {
		_, _ = fmt.Fprintln(out, "No learned table associations for this question yet.")
		return nil
	}
	for _, s := range resp.Suggestions {
		_, _ = fmt.Fprintf(out, "%-30s %.2f\n", s.Table, s.Score)
	}
	return nil
}

func runLearningReset(cmd *cobra.Command, _ []string) error {
	if yes, _ := cmd.Flags().GetBool("yes"); !yes {
		_, _ = fmt.Fprintln(cmd.OutOrStdout(),
			"This erases all learned weights, patterns, and memory. Re-run with --yes to confirm.")
		return nil
	}

	var resp struct {
		Status string `json:"status"`
	}
	if err := newDaemonClient(daemonAddr(cmd)).deleteJSON("/api/v1/learning", &resp); err != nil {
		return err
	}

	_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Learning data reset.")
	return nil
}
