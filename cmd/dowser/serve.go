// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dowser Contributors

package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dowser-dev/dowser/internal/config"
	"github.com/dowser-dev/dowser/internal/secrets"
	dowsererr "github.com/dowser-dev/dowser/pkg/errors"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the dowser daemon",
		Long:  "Load configuration, wire the retrieval and learning engines, and serve the HTTP API until interrupted.",
		RunE:  runServe,
	}

	cmd.Flags().String("listen", "", "override listen address (host:port)")
	_ = viper.BindPFlag("server.listen", cmd.Flags().Lookup("listen"))

	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfgPath := viper.ConfigFileUsed()
	if cfgPath != "" {
		config.WarnInsecurePermissions(cfgPath)
	}

	if err := secrets.ResolveViperSecrets(viper.GetViper(), secretStoreFactory()); err != nil {
		return dowsererr.Wrapf(err, dowsererr.CodeCLISetupFailure, "resolving keyring secrets")
	}

	cfg, err := config.FromViper(viper.GetViper())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if viper.GetBool("verbose") {
		slog.SetLogLoggerLevel(slog.LevelDebug)
	}

	daemon, err := WireEngine(cfg)
	if err != nil {
		return fmt.Errorf("wiring engine: %w", err)
	}
	defer func() {
		if err := daemon.Close(); err != nil {
			slog.Warn("shutdown cleanup", "error", err)
		}
	}()

	// A missing schema document is not fatal: searches against a restored
	// index snapshot still work, and a build request can name a path.
	if err := daemon.Engine.LoadSchema(); err != nil {
		slog.Warn("schema document not loaded", "path", cfg.Schema.Path, "error", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("dowser listening", "addr", cfg.Server.Listen,
		"backend", cfg.Storage.Backend, "config", cfg.LoadedFrom)

	return daemon.Server.Start(ctx)
}
