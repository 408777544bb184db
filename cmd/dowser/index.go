// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dowser Contributors

package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dowser-dev/dowser/internal/index"
)

// addAddressFlag registers the shared --address flag on daemon-backed
// commands.
func addAddressFlag(cmd *cobra.Command) {
	cmd.Flags().String("address", "", "daemon address (defaults to server.listen)")
}

// daemonAddr resolves the daemon address from the --address flag, the
// configured listen address, or the built-in default.
func daemonAddr(cmd *cobra.Command) string {
	if addr, _ := cmd.Flags().GetString("address"); addr != "" {
		return addr
	}
	if addr := viper.GetString("server.listen"); addr != "" {
		return addr
	}
	return "127.0.0.1:8847"
}

func newIndexCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Manage the vector index",
	}

	cmd.AddCommand(
		newIndexBuildCmd(),
		newIndexStatsCmd(),
	)

	return cmd
}

func newIndexBuildCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build the vector index from the schema document",
		RunE:  runIndexBuild,
	}

	addAddressFlag(cmd)
	cmd.Flags().String("schema", "", "schema document to index (overrides the configured path)")
	cmd.Flags().Bool("force", false, "rebuild even when an index snapshot exists")

	return cmd
}

func newIndexStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show index snapshot statistics",
		RunE:  runIndexStats,
	}

	addAddressFlag(cmd)
	return cmd
}

func runIndexBuild(cmd *cobra.Command, _ []string) error {
	schemaPath, _ := cmd.Flags().GetString("schema")
	force, _ := cmd.Flags().GetBool("force")

	body := struct {
		Force      bool   `json:"force,omitempty"`
		SchemaPath string `json:"schema_path,omitempty"`
	}{Force: force, SchemaPath: schemaPath}

	var stats index.Stats
	if err := newDaemonClient(daemonAddr(cmd)).postJSON("/api/v1/index/build", body, &stats); err != nil {
		return err
	}

	printIndexStats(cmd, stats)
	return nil
}

func runIndexStats(cmd *cobra.Command, _ []string) error {
	var stats index.Stats
	if err := newDaemonClient(daemonAddr(cmd)).getJSON("/api/v1/index/stats", &stats); err != nil {
		return err
	}

	printIndexStats(cmd, stats)
	return nil
}

func printIndexStats(cmd *cobra.Command, stats index.Stats) {
	out := cmd.OutOrStdout()
	if !stats.Built {
		_, _ = fmt.Fprintln(out, "Index not built. Run 'dowser index build'.")
		return
	}

	_, _ = fmt.Fprintf(out, "Tables:   %d\n", stats.Tables)
	_, _ = fmt.Fprintf(out, "Fields:   %d\n", stats.Fields)
	_, _ = fmt.Fprintf(out, "Enums:    %d\n", stats.Enums)
	if stats.Encoder != "" {
		_, _ = fmt.Fprintf(out, "Encoder:  %s\n", stats.Encoder)
	}
	if stats.BuiltAt != nil {
		_, _ = fmt.Fprintf(out, "Built at: %s\n", stats.BuiltAt.Format(time.RFC3339))
	}
}
