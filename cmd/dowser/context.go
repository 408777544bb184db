// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dowser Contributors

package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newContextCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "context [question]",
		Short: "Render prompt-ready schema context",
		Long:  "Print the schema description a text-to-SQL prompt would receive. With a question, only the relevant modules and tables are rendered; without one, the whole catalog.",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runContext,
	}

	addAddressFlag(cmd)
	return cmd
}

func runContext(cmd *cobra.Command, args []string) error {
	var question string
	if len(args) > 0 {
		question = args[0]
	}

	body := struct {
		Question string `json:"question,omitempty"`
	}{Question: question}

	var resp struct {
		Mode    string `json:"mode"`
		Context string `json:"context"`
	}
	if err := newDaemonClient(daemonAddr(cmd)).postJSON("/api/v1/context", body, &resp); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if resp.Context == "" {
		_, _ = fmt.Fprintln(out, "No schema catalog loaded. Set schema.path and restart the daemon.")
		return nil
	}
	_, _ = fmt.Fprintln(out, resp.Context)
	return nil
}
