// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dowser Contributors

package main

import (
	"errors"
	"log/slog"
	"os"
	"strings"

	"github.com/dowser-dev/dowser/internal/config"
	"github.com/dowser-dev/dowser/internal/embedding"
	googleenc "github.com/dowser-dev/dowser/internal/embedding/google"
	ollamaenc "github.com/dowser-dev/dowser/internal/embedding/ollama"
	openaienc "github.com/dowser-dev/dowser/internal/embedding/openai"
	"github.com/dowser-dev/dowser/internal/engine"
	"github.com/dowser-dev/dowser/internal/index"
	"github.com/dowser-dev/dowser/internal/learning"
	"github.com/dowser-dev/dowser/internal/lexical"
	"github.com/dowser-dev/dowser/internal/server"
	"github.com/dowser-dev/dowser/internal/store"
	_ "github.com/dowser-dev/dowser/internal/store/file"   // register file backend
	_ "github.com/dowser-dev/dowser/internal/store/sqlite" // register sqlite backend
	dowsererr "github.com/dowser-dev/dowser/pkg/errors"
)

// Daemon holds all wired subsystems and manages their lifecycle.
type Daemon struct {
	Server        *server.Server
	Engine        *engine.Engine
	Learning      *learning.Engine
	Encoders      *embedding.Service
	Registry      *embedding.Registry
	IndexStore    store.IndexStore
	LearningStore store.LearningStore
}

// WireEngine creates all subsystems and wires them together. The stores,
// the encoder service, and the retrieval engine come up even when the
// embedding provider is unreachable; only configuration errors are fatal.
func WireEngine(cfg *config.Config) (*Daemon, error) {
	// Ensure the data directory exists.
	if err := os.MkdirAll(cfg.Storage.Dir, 0o755); err != nil {
		return nil, dowsererr.Errorf(dowsererr.CodeCLISetupFailure, "creating data directory: %w", err)
	}

	// 1. Snapshot stores.
	indexStore, learningStore, err := store.New(store.Config{
		Backend:   cfg.Storage.Backend,
		Dir:       cfg.Storage.Dir,
		IndexPath: cfg.Storage.IndexPath,
	})
	if err != nil {
		return nil, dowsererr.Errorf(dowsererr.CodeCLISetupFailure, "creating snapshot stores: %w", err)
	}

	// 2. Encoder registry: register configured providers and wire routing.
	registry := embedding.NewRegistry()
	registerConfiguredEncoders(cfg, registry)

	if cfg.Embedding.Default != "" {
		if err := registry.SetDefault(cfg.Embedding.Default); err != nil {
			// An unregistered default (missing key, unknown provider) is a
			// degraded start, not a fatal one: searches return empty until
			// the config is fixed, matching the engine's failure semantics.
			slog.Warn("default encoder not registered; retrieval degrades to lexical only",
				"ref", cfg.Embedding.Default, "error", err)
		}
	}
	if len(cfg.Embedding.Failover) > 0 {
		if err := registry.SetFailover(cfg.Embedding.Failover); err != nil {
			slog.Warn("failover chain not fully registered", "error", err)
		}
	}

	encoders := embedding.NewService(registry, cfg.Embedding.Cooldown)

	// 3. Retrieval and learning engines.
	idx := index.New(encoders, indexStore, index.Config{
		Threshold:      cfg.Search.Threshold,
		TopK:           cfg.Search.TopK,
		SemanticWeight: cfg.Search.SemanticWeight,
		LexicalWeight:  cfg.Search.LexicalWeight,
	})
	learn := learning.New(encoders, learningStore)
	scorer := lexical.New(learn)
	eng := engine.New(idx, scorer, cfg.Schema.Path)

	// 4. HTTP server.
	services, err := server.NewServices(eng, learn, eng, encoders)
	if err != nil {
		closeStores(indexStore, learningStore)
		return nil, dowsererr.Errorf(dowsererr.CodeCLISetupFailure, "creating services: %w", err)
	}

	srv, err := server.New(server.Config{
		ListenAddr:  cfg.Server.Listen,
		CORSOrigins: cfg.Server.CORSOrigins,
	})
	if err != nil {
		closeStores(indexStore, learningStore)
		return nil, dowsererr.Errorf(dowsererr.CodeCLISetupFailure, "creating server: %w", err)
	}
	srv.RegisterServices(services)

	return &Daemon{
		Server:        srv,
		Engine:        eng,
		Learning:      learn,
		Encoders:      encoders,
		Registry:      registry,
		IndexStore:    indexStore,
		LearningStore: learningStore,
	}, nil
}

// Close releases all resources held by the daemon.
func (d *Daemon) Close() error {
	var errs []error
	if d.Encoders != nil {
		if err := d.Encoders.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if d.IndexStore != nil {
		if err := d.IndexStore.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if d.LearningStore != nil {
		if err := d.LearningStore.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func closeStores(is store.IndexStore, ls store.LearningStore) {
	_ = is.Close()
	_ = ls.Close()
}

// encoderFactory builds an embedding.Encoder from a ProviderConfig and
// the model the routing refs name for that provider.
type encoderFactory func(pc config.ProviderConfig, model string) (embedding.Encoder, error)

// builtinEncoderFactories maps provider names to their constructors.
// Declared as a variable so tests can inject failing factories.
var builtinEncoderFactories = map[string]encoderFactory{
	"openai": func(pc config.ProviderConfig, model string) (embedding.Encoder, error) {
		return openaienc.New(openaienc.Config{APIKey: pc.APIKey, BaseURL: pc.Endpoint, Model: model, Dimensions: pc.Dimensions})
	},
	"google": func(pc config.ProviderConfig, model string) (embedding.Encoder, error) {
		return googleenc.New(googleenc.Config{APIKey: pc.APIKey, Model: model, Dimensions: pc.Dimensions})
	},
	"ollama": func(pc config.ProviderConfig, model string) (embedding.Encoder, error) {
		return ollamaenc.New(ollamaenc.Config{Endpoint: pc.Endpoint, Model: model, Dimensions: pc.Dimensions})
	},
}

// registerConfiguredEncoders iterates configured providers and registers
// matching built-in implementations. Unknown names or empty API keys are
// logged and skipped; neither is fatal at startup. The model bound into
// each encoder comes from the first routing ref naming its provider; an
// empty model keeps the encoder's own default.
func registerConfiguredEncoders(cfg *config.Config, reg *embedding.Registry) {
	models := modelsByProvider(append([]string{cfg.Embedding.Default}, cfg.Embedding.Failover...))

	for name, pc := range cfg.Embedding.Providers {
		// Ollama authenticates with nothing; everyone else needs a key.
		if pc.APIKey == "" && name != "ollama" {
			slog.Warn("skipping encoder with empty API key", "provider", name)
			continue
		}
		factory, ok := builtinEncoderFactories[name]
		if !ok {
			slog.Warn("unknown embedding provider in config, skipping", "provider", name)
			continue
		}
		e, err := factory(pc, models[name])
		if err != nil {
			slog.Warn("failed to create encoder", "provider", name, "error", err)
			continue
		}
		reg.Register(name, e)
		slog.Info("registered encoder", "provider", name)
	}
}

// modelsByProvider extracts the model segment for each provider from a
// list of "provider/model" refs, keeping the first occurrence.
func modelsByProvider(refs []string) map[string]string {
	models := make(map[string]string, len(refs))
	for _, ref := range refs {
		provider, model, ok := strings.Cut(ref, "/")
		if !ok || model == "" {
			continue
		}
		if _, seen := models[provider]; !seen {
			models[provider] = model
		}
	}
	return models
}
