// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dowser Contributors

package config

import (
	_ "embed"
	"log/slog"
	"os"
	"path/filepath"

	dowsererr "github.com/dowser-dev/dowser/pkg/errors"
)

//go:embed dowser.yaml.default
var DefaultConfigYAML []byte

// DefaultConfigPath returns ~/.config/dowser/dowser.yaml.
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", dowsererr.Errorf(dowsererr.CodeConfigLoadReadFailure, "resolving home directory: %w", err)
	}
	return filepath.Join(home, ".config", "dowser", "dowser.yaml"), nil
}

// DefaultDataDir returns ~/.local/share/dowser, the default location for
// the vector index snapshot and the learning store.
func DefaultDataDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", dowsererr.Errorf(dowsererr.CodeConfigLoadReadFailure, "resolving home directory: %w", err)
	}
	return filepath.Join(home, ".local", "share", "dowser"), nil
}

// FindConfig returns the first existing config file among ./dowser.yaml,
// ~/.config/dowser/dowser.yaml, and /etc/dowser/dowser.yaml, or the empty
// string when none exists.
func FindConfig() string {
	candidates := []string{"dowser.yaml"}
	if p, err := DefaultConfigPath(); err == nil {
		candidates = append(candidates, p)
	}
	candidates = append(candidates, filepath.Join("/etc", "dowser", "dowser.yaml"))

	for _, p := range candidates {
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p
		}
	}
	return ""
}

// BootstrapConfig writes the default commented config to the default path
// if it does not already exist. Returns the path written, or empty string
// if the file already existed or an error occurred (non-fatal, logged and
// skipped).
func BootstrapConfig() string {
	cfgPath, err := DefaultConfigPath()
	if err != nil {
		slog.Debug("skipping config bootstrap", "error", err)
		return ""
	}

	if _, err := os.Stat(cfgPath); err == nil {
		return "" // already exists
	}

	dir := filepath.Dir(cfgPath)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		slog.Debug("skipping config bootstrap: cannot create directory", "path", dir, "error", err)
		return ""
	}

	if err := os.WriteFile(cfgPath, DefaultConfigYAML, 0o600); err != nil {
		slog.Debug("skipping config bootstrap: cannot write config", "path", cfgPath, "error", err)
		return ""
	}

	slog.Info("created default config", "path", cfgPath)
	return cfgPath
}
