// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dowser Contributors

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dowser-dev/dowser/internal/embedding"
	"github.com/dowser-dev/dowser/internal/index"
	"github.com/dowser-dev/dowser/internal/learning"
	"github.com/dowser-dev/dowser/internal/prompt"
	dowsererr "github.com/dowser-dev/dowser/pkg/errors"
)

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon status",
		Long:  "Check the running daemon's status endpoint and summarize the index, the learning store, and the encoder.",
		RunE:  runStatus,
	}

	addAddressFlag(cmd)
	return cmd
}

// statusBody mirrors the daemon's /api/v1/status response.
type statusBody struct {
	Status   string                  `json:"status"`
	Index    index.Stats             `json:"index"`
	Learning learning.Stats          `json:"learning"`
	Encoder  embedding.EncoderStatus `json:"encoder"`
	Schema   prompt.Stats            `json:"schema"`
}

func runStatus(cmd *cobra.Command, _ []string) error {
	addr := daemonAddr(cmd)
	out := cmd.OutOrStdout()

	var body statusBody
	if err := newDaemonClient(addr).getJSON("/api/v1/status", &body); err != nil {
		if dowsererr.HasCode(err, dowsererr.CodeCLIEngineNotRunning) {
			_, _ = fmt.Fprintf(out, "Daemon at %s is not running (connection refused)\n", addr)
			return nil
		}
		_, _ = fmt.Fprintf(out, "Daemon at %s: %s\n", addr, err)
		return nil
	}

	_, _ = fmt.Fprintf(out, "Daemon at %s: %s\n", addr, body.Status)

	if body.Index.Built {
		_, _ = fmt.Fprintf(out, "Index:    %d tables, %d fields, %d enums\n",
			body.Index.Tables, body.Index.Fields, body.Index.Enums)
	} else {
		_, _ = fmt.Fprintln(out, "Index:    not built")
	}

	if body.Schema.Tables > 0 {
		_, _ = fmt.Fprintf(out, "Schema:   %d modules, %d tables\n", body.Schema.Modules, body.Schema.Tables)
	} else {
		_, _ = fmt.Fprintln(out, "Schema:   no catalog loaded")
	}

	_, _ = fmt.Fprintf(out, "Learning: %d feedback, %d patterns, %d keywords\n",
		body.Learning.TotalFeedback, body.Learning.LearnedPatterns, body.Learning.KeywordWeights)

	if body.Encoder.Available {
		_, _ = fmt.Fprintf(out, "Encoder:  %s (available)\n", body.Encoder.Encoder)
	} else {
		name := body.Encoder.Encoder
		if name == "" {
			name = "none resolved"
		}
		_, _ = fmt.Fprintf(out, "Encoder:  %s (unavailable)\n", name)
	}
	return nil
}
