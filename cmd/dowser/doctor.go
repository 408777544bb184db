// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dowser Contributors

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dowser-dev/dowser/internal/config"
	"github.com/dowser-dev/dowser/internal/secrets"
	dowsererr "github.com/dowser-dev/dowser/pkg/errors"
)

func newDoctorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Run diagnostics",
		Long:  "Check binary health, daemon reachability, configuration, stored secrets, the encoder, and persisted snapshots.",
		RunE:  runDoctor,
	}

	addAddressFlag(cmd)
	return cmd
}

func runDoctor(cmd *cobra.Command, _ []string) error {
	w := cmd.OutOrStdout()
	addr := daemonAddr(cmd)
	dataDir := resolveDataDir()

	checks := []struct {
		name string
		fn   func() string
	}{
		{"Binary", checkBinary},
		{"Platform", checkPlatform},
		{"Daemon", func() string { return checkDaemon(addr) }},
		{"Config", checkConfig},
		{"Schema", checkSchema},
		{"Secrets", checkSecrets},
		{"Encoder", func() string { return checkEncoder(addr) }},
		{"Snapshots", func() string { return checkSnapshots(dataDir) }},
	}

	for _, c := range checks {
		if _, err := fmt.Fprintf(w, "%-20s %s\n", c.name+":", c.fn()); err != nil {
			return err
		}
	}

	return nil
}

// resolveDataDir returns the data directory from viper or the default.
func resolveDataDir() string {
	if dataDir := viper.GetString("storage.dir"); dataDir != "" {
		return dataDir
	}
	dir, _ := config.DefaultDataDir()
	return dir
}

func checkBinary() string {
	return fmt.Sprintf("dowser %s (%s/%s)", version, runtime.GOOS, runtime.GOARCH)
}

func checkPlatform() string {
	return fmt.Sprintf("%s/%s, Go %s", runtime.GOOS, runtime.GOARCH, runtime.Version())
}

func checkDaemon(addr string) string {
	var body struct {
		Status string `json:"status"`
	}
	if err := newDaemonClient(addr).getJSON("/api/v1/status", &body); err != nil {
		if dowsererr.HasCode(err, dowsererr.CodeCLIEngineNotRunning) {
			return fmt.Sprintf("not running at %s (run 'dowser serve')", addr)
		}
		return fmt.Sprintf("error: %s", err)
	}
	return fmt.Sprintf("%s at %s", body.Status, addr)
}

func checkConfig() string {
	cfgFile := viper.ConfigFileUsed()
	if cfgFile != "" {
		return fmt.Sprintf("loaded from %s", cfgFile)
	}
	return "using defaults (no config file found)"
}

func checkSchema() string {
	path := viper.GetString("schema.path")
	if path == "" {
		return "no schema document configured (set schema.path)"
	}
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Sprintf("unreadable: %s", err)
	}
	return fmt.Sprintf("%s (%d bytes)", path, info.Size())
}

func checkSecrets() string {
	keys, err := secretStoreFactory().List(secrets.Service)
	if err != nil {
		return fmt.Sprintf("keyring unavailable: %s", err)
	}
	if len(keys) == 0 {
		return "no secrets stored (run 'dowser init')"
	}
	return fmt.Sprintf("%d secret(s): %s", len(keys), strings.Join(keys, ", "))
}

func checkEncoder(addr string) string {
	var body struct {
		Encoder   string `json:"encoder"`
		Message   string `json:"message"`
		Available bool   `json:"available"`
	}
	if err := newDaemonClient(addr).getJSON("/api/v1/encoder/health", &body); err != nil {
		if dowsererr.HasCode(err, dowsererr.CodeCLIEngineNotRunning) {
			return "daemon not running, cannot check"
		}
		return fmt.Sprintf("error: %s", err)
	}
	name := body.Encoder
	if name == "" {
		name = "none resolved"
	}
	return fmt.Sprintf("%s: %s", name, body.Message)
}

func checkSnapshots(dataDir string) string {
	snapDir := filepath.Join(dataDir, "snapshots")
	entries, err := os.ReadDir(snapDir)
	if err != nil {
		if os.IsNotExist(err) {
			// The sqlite backend keeps everything in one database file.
			if _, dbErr := os.Stat(filepath.Join(dataDir, "dowser.db")); dbErr == nil {
				return fmt.Sprintf("sqlite database at %s", filepath.Join(dataDir, "dowser.db"))
			}
			return fmt.Sprintf("none yet under %s", dataDir)
		}
		return fmt.Sprintf("error reading snapshots: %s", err)
	}

	count := 0
	for _, e := range entries {
		if !e.IsDir() && e.Name()[0] != '.' {
			count++
		}
	}
	if count == 0 {
		return "no snapshots written yet"
	}
	return fmt.Sprintf("%d snapshot file(s) in %s", count, snapDir)
}
