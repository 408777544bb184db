// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dowser Contributors

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	dowsererr "github.com/dowser-dev/dowser/pkg/errors"
	"github.com/dowser-dev/dowser/pkg/types"
)

func newFeedbackCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "feedback",
		Short: "Record feedback on a generated answer",
		Long:  "Tell the learning engine whether the tables retrieved for a question produced a correct answer. Positive feedback reinforces the keywords and tables involved; negative feedback weakens them.",
		RunE:  runFeedback,
	}

	addAddressFlag(cmd)
	cmd.Flags().String("question", "", "the natural-language question (required)")
	cmd.Flags().String("sql", "", "the generated SQL")
	cmd.Flags().String("label", "positive", "positive or negative")
	cmd.Flags().StringSlice("tables", nil, "tables retrieval surfaced (required)")
	cmd.Flags().StringSlice("fields", nil, "fields retrieval surfaced")
	cmd.Flags().StringSlice("enums", nil, "enums retrieval surfaced")
	cmd.Flags().String("user", "", "submitting user id")
	cmd.Flags().String("session", "", "session id (blank mints a new one)")
	_ = cmd.MarkFlagRequired("question")
	_ = cmd.MarkFlagRequired("tables")

	return cmd
}

func runFeedback(cmd *cobra.Command, _ []string) error {
	question, _ := cmd.Flags().GetString("question")
	sql, _ := cmd.Flags().GetString("sql")
	label, _ := cmd.Flags().GetString("label")
	tables, _ := cmd.Flags().GetStringSlice("tables")
	fields, _ := cmd.Flags().GetStringSlice("fields")
	enums, _ := cmd.Flags().GetStringSlice("enums")
	userID, _ := cmd.Flags().GetString("user")
	sessionID, _ := cmd.Flags().GetString("session")

	if !types.FeedbackLabel(label).Valid() {
		return dowsererr.Errorf(dowsererr.CodeCLIInputInvalid,
			"label must be positive or negative, got %q", label)
	}

	body := struct {
		Question      string   `json:"question"`
		SQL           string   `json:"sql,omitempty"`
		Label         string   `json:"label"`
		MatchedTables []string `json:"matched_tables"`
		MatchedFields []string `json:"matched_fields,omitempty"`
		MatchedEnums  []string `json:"matched_enums,omitempty"`
		UserID        string   `json:"user_id,omitempty"`
		SessionID     string   `json:"session_id,omitempty"`
	}{
		Question:      question,
		SQL:           sql,
		Label:         label,
		MatchedTables: tables,
		MatchedFields: fields,
		MatchedEnums:  enums,
		UserID:        userID,
		SessionID:     sessionID,
	}

	var resp struct {
		FeedbackID string `json:"feedback_id"`
		SessionID  string `json:"session_id"`
	}
	if err := newDaemonClient(daemonAddr(cmd)).postJSON("/api/v1/feedback", body, &resp); err != nil {
		return err
	}

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Recorded %s feedback %s (session %s)\n",
		label, resp.FeedbackID, resp.SessionID)
	return nil
}
