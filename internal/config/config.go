// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dowser Contributors

// Package config loads and validates the Dowser configuration from YAML
// files, environment variables, and built-in defaults.
package config

import (
	"errors"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/dowser-dev/dowser/internal/secrets"
	dowsererr "github.com/dowser-dev/dowser/pkg/errors"
)

// Config is the top-level Dowser configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Schema    SchemaConfig    `mapstructure:"schema"`
	Embedding EmbeddingConfig `mapstructure:"embedding"`
	Search    SearchConfig    `mapstructure:"search"`
	Storage   StorageConfig   `mapstructure:"storage"`

	// LoadedFrom is the config file the values came from, empty when the
	// configuration was built from defaults and environment only.
	LoadedFrom string `mapstructure:"-"`
}

// ServerConfig controls how the HTTP API listens for connections.
type ServerConfig struct {
	Listen      string   `mapstructure:"listen"`
	CORSOrigins []string `mapstructure:"cors_origins"`
}

// SchemaConfig points at the database semantic description document.
type SchemaConfig struct {
	Path string `mapstructure:"path"`
}

// EmbeddingConfig controls encoder selection and failover.
type EmbeddingConfig struct {
	Default   string                    `mapstructure:"default"`
	Failover  []string                  `mapstructure:"failover"`
	Cooldown  time.Duration             `mapstructure:"cooldown"`
	Providers map[string]ProviderConfig `mapstructure:"providers"`
}

// ProviderConfig holds credentials and endpoint for an embedding provider.
type ProviderConfig struct {
	APIKey     string `mapstructure:"api_key"`
	Endpoint   string `mapstructure:"endpoint"`
	Dimensions int    `mapstructure:"dimensions"`
}

// SearchConfig sets the semantic search thresholds and fusion weights.
type SearchConfig struct {
	Threshold      float64 `mapstructure:"threshold"`
	TopK           int     `mapstructure:"top_k"`
	SemanticWeight float64 `mapstructure:"semantic_weight"`
	LexicalWeight  float64 `mapstructure:"lexical_weight"`
}

// StorageConfig selects the persistence backend and its location.
type StorageConfig struct {
	Backend   string `mapstructure:"backend"`
	Dir       string `mapstructure:"dir"`
	IndexPath string `mapstructure:"index_path"`
}

// SetDefaults registers the built-in defaults on a viper instance.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.listen", "127.0.0.1:8847")
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("schema.path", "")
	v.SetDefault("embedding.default", "openai/text-embedding-3-small")
	v.SetDefault("embedding.cooldown", "30s")
	v.SetDefault("search.threshold", 0.3)
	v.SetDefault("search.top_k", 5)
	v.SetDefault("search.semantic_weight", 0.7)
	v.SetDefault("search.lexical_weight", 0.3)
	v.SetDefault("storage.backend", "file")
	v.SetDefault("storage.index_path", "")
	if dir, err := DefaultDataDir(); err == nil {
		v.SetDefault("storage.dir", dir)
	} else {
		// Validation rejects the empty dir, so a missing home directory
		// surfaces as a config error instead of a write failure later.
		v.SetDefault("storage.dir", "")
	}
}

// SetupEnv enables DOWSER_* environment overrides on a viper instance,
// e.g. DOWSER_STORAGE_INDEX_PATH for storage.index_path.
func SetupEnv(v *viper.Viper) {
	v.SetEnvPrefix("DOWSER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// FromViper decodes and validates a prepared viper instance.
func FromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, dowsererr.Errorf(dowsererr.CodeConfigParseInvalidFormat, "decoding config: %w", err)
	}
	cfg.LoadedFrom = v.ConfigFileUsed()

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, dowsererr.Errorf(dowsererr.CodeConfigValidateInvalidValue, "validating config: %w", errors.Join(errs...))
	}
	return &cfg, nil
}

// Load reads configuration from the given path with environment variable
// overrides (prefix DOWSER_). An empty path loads defaults and environment
// only; use FindConfig to locate a file in the standard search paths.
func Load(path string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)
	SetupEnv(v)

	if err := readFile(v, path); err != nil {
		return nil, err
	}
	return FromViper(v)
}

// LoadResolved is Load with keyring:// references resolved through store
// before decoding, so provider API keys never have to appear in the file.
func LoadResolved(path string, store secrets.Store) (*Config, error) {
	v := viper.New()
	SetDefaults(v)
	SetupEnv(v)

	if err := readFile(v, path); err != nil {
		return nil, err
	}
	if err := secrets.ResolveViperSecrets(v, store); err != nil {
		return nil, err
	}
	return FromViper(v)
}

func readFile(v *viper.Viper, path string) error {
	if path == "" {
		return nil
	}
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return dowsererr.Errorf(dowsererr.CodeConfigLoadReadFailure, "reading config %s: %w", path, err)
	}
	return nil
}

// Validate checks the configuration for logical errors. It returns a slice
// of all validation errors found, collecting all issues rather than
// stopping at the first one.
func (c *Config) Validate() []error {
	var errs []error

	errs = append(errs, c.validateServer()...)
	errs = append(errs, c.validateEmbedding()...)
	errs = append(errs, c.validateSearch()...)
	errs = append(errs, c.validateStorage()...)

	return errs
}

func (c *Config) validateServer() []error {
	var errs []error

	if c.Server.Listen == "" {
		errs = append(errs, dowsererr.Errorf(dowsererr.CodeConfigValidateInvalidValue, "config: server.listen must not be empty"))
	} else {
		host, portStr, err := net.SplitHostPort(c.Server.Listen)
		if err != nil {
			errs = append(errs, dowsererr.Errorf(dowsererr.CodeConfigValidateInvalidValue,
				"config: server.listen must be a valid host:port address, got %q: %w",
				c.Server.Listen, err,
			))
		} else {
			_ = host // host can be empty (e.g., ":8847"), which is valid
			port, err := strconv.Atoi(portStr)
			if err != nil {
				errs = append(errs, dowsererr.Errorf(dowsererr.CodeConfigValidateInvalidValue,
					"config: server.listen port must be a number, got %q",
					portStr,
				))
			} else if port < 1 || port > 65535 {
				errs = append(errs, dowsererr.Errorf(dowsererr.CodeConfigValidateInvalidValue,
					"config: server.listen port must be between 1 and 65535, got %d",
					port,
				))
			}
		}
	}

	return errs
}

func (c *Config) validateEmbedding() []error {
	var errs []error

	if c.Embedding.Default == "" {
		errs = append(errs, dowsererr.Errorf(dowsererr.CodeConfigValidateInvalidValue, "config: embedding.default must not be empty"))
	} else if !strings.Contains(c.Embedding.Default, "/") {
		errs = append(errs, dowsererr.Errorf(dowsererr.CodeConfigValidateInvalidValue,
			"config: embedding.default must be in \"provider/model\" format, got %q",
			c.Embedding.Default,
		))
	} else if c.Embedding.Providers != nil {
		// Only cross-reference providers when the providers section exists
		// in config. A nil map means no providers section was configured
		// (e.g., defaults only on fresh install), which is valid.
		name := providerFromRef(c.Embedding.Default)
		if _, ok := c.Embedding.Providers[name]; !ok {
			errs = append(errs, dowsererr.Errorf(dowsererr.CodeConfigValidateInvalidValue,
				"config: embedding.default %q references provider %q which is not configured",
				c.Embedding.Default, name,
			))
		}
	}

	for i, ref := range c.Embedding.Failover {
		if !strings.Contains(ref, "/") {
			errs = append(errs, dowsererr.Errorf(dowsererr.CodeConfigValidateInvalidValue,
				"config: embedding.failover[%d] must be in \"provider/model\" format, got %q",
				i, ref,
			))
			continue
		}
		if c.Embedding.Providers != nil {
			name := providerFromRef(ref)
			if _, ok := c.Embedding.Providers[name]; !ok {
				errs = append(errs, dowsererr.Errorf(dowsererr.CodeConfigValidateInvalidValue,
					"config: embedding.failover[%d] %q references provider %q which is not configured",
					i, ref, name,
				))
			}
		}
	}

	if c.Embedding.Cooldown < 0 {
		errs = append(errs, dowsererr.Errorf(dowsererr.CodeConfigValidateInvalidValue,
			"config: embedding.cooldown must not be negative, got %s",
			c.Embedding.Cooldown,
		))
	}

	for name, p := range c.Embedding.Providers {
		if p.Dimensions < 0 {
			errs = append(errs, dowsererr.Errorf(dowsererr.CodeConfigValidateInvalidValue,
				"config: embedding.providers.%s.dimensions must not be negative, got %d",
				name, p.Dimensions,
			))
		}
	}

	return errs
}

func (c *Config) validateSearch() []error {
	var errs []error

	if c.Search.Threshold < 0 || c.Search.Threshold > 1 {
		errs = append(errs, dowsererr.Errorf(dowsererr.CodeConfigValidateInvalidValue,
			"config: search.threshold must be between 0 and 1, got %g",
			c.Search.Threshold,
		))
	}

	if c.Search.TopK <= 0 {
		errs = append(errs, dowsererr.Errorf(dowsererr.CodeConfigValidateInvalidValue,
			"config: search.top_k must be greater than 0, got %d",
			c.Search.TopK,
		))
	}

	if c.Search.SemanticWeight < 0 {
		errs = append(errs, dowsererr.Errorf(dowsererr.CodeConfigValidateInvalidValue,
			"config: search.semantic_weight must not be negative, got %g",
			c.Search.SemanticWeight,
		))
	}

	if c.Search.LexicalWeight < 0 {
		errs = append(errs, dowsererr.Errorf(dowsererr.CodeConfigValidateInvalidValue,
			"config: search.lexical_weight must not be negative, got %g",
			c.Search.LexicalWeight,
		))
	}

	if c.Search.SemanticWeight == 0 && c.Search.LexicalWeight == 0 {
		errs = append(errs, dowsererr.Errorf(dowsererr.CodeConfigValidateInvalidValue,
			"config: search.semantic_weight and search.lexical_weight must not both be zero"))
	}

	return errs
}

func (c *Config) validateStorage() []error {
	var errs []error

	validBackends := map[string]bool{"file": true, "sqlite": true}
	if !validBackends[c.Storage.Backend] {
		errs = append(errs, dowsererr.Errorf(dowsererr.CodeConfigValidateInvalidValue,
			"config: storage.backend must be one of [file, sqlite], got %q",
			c.Storage.Backend,
		))
	}

	if c.Storage.Dir == "" {
		errs = append(errs, dowsererr.Errorf(dowsererr.CodeConfigValidateInvalidValue, "config: storage.dir must not be empty"))
	}

	return errs
}

// providerFromRef extracts the provider prefix from a "provider/model" string.
func providerFromRef(ref string) string {
	if idx := strings.Index(ref, "/"); idx > 0 {
		return ref[:idx]
	}
	return ref
}
