// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dowser Contributors

package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dowser-dev/dowser/internal/index"
)

func newSearchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search <question>",
		Short: "Find schema entities relevant to a question",
		Long:  "Rank the indexed tables by relevance to a natural-language question, semantically or fused with keyword scores.",
		Args:  cobra.ExactArgs(1),
		RunE:  runSearch,
	}

	addAddressFlag(cmd)
	cmd.Flags().Int("top-k", 0, "result cap (0 uses the configured default)")
	cmd.Flags().Bool("hybrid", false, "fuse semantic and keyword scores")

	return cmd
}

func runSearch(cmd *cobra.Command, args []string) error {
	question := args[0]
	topK, _ := cmd.Flags().GetInt("top-k")
	hybrid, _ := cmd.Flags().GetBool("hybrid")

	path := "/api/v1/search"
	if hybrid {
		path = "/api/v1/search/hybrid"
	}

	body := struct {
		Question string `json:"question"`
		TopK     int    `json:"top_k,omitempty"`
	}{Question: question, TopK: topK}

	var resp struct {
		Results []index.SearchResult `json:"results"`
	}
	if err := newDaemonClient(daemonAddr(cmd)).postJSON(path, body, &resp); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(resp.Results) == 0 {
		_, _ = fmt.Fprintln(out, "No matches. Is the index built and the encoder reachable?")
		return nil
	}

	for i, r := range resp.Results {
		_, _ = fmt.Fprintf(out, "%2d. %-30s %.3f  %s\n", i+1, r.TableName, r.Relevance, r.MatchType)
		if r.TableComment != "" {
			_, _ = fmt.Fprintf(out, "    %s\n", r.TableComment)
		}
		if len(r.MatchedFields) > 0 {
			_, _ = fmt.Fprintf(out, "    fields: %s\n", strings.Join(r.MatchedFields, ", "))
		}
		if len(r.MatchedEnums) > 0 {
			_, _ = fmt.Fprintf(out, "    enums:  %s\n", strings.Join(r.MatchedEnums, ", "))
		}
	}
	return nil
}
