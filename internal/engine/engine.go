// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dowser Contributors

// Package engine ties the schema catalog, the vector index, the lexical
// scorer, and the prompt builder together behind one surface shared by
// the HTTP API and the CLI. It owns the catalog lifecycle: the schema
// document is loaded at startup and reloaded on every index build, so a
// rebuild always picks up edits to the file.
package engine

import (
	"context"
	"sync"

	"github.com/dowser-dev/dowser/internal/index"
	"github.com/dowser-dev/dowser/internal/lexical"
	"github.com/dowser-dev/dowser/internal/prompt"
	"github.com/dowser-dev/dowser/internal/schema"
	dowsererr "github.com/dowser-dev/dowser/pkg/errors"
)

// Context modes returned by SchemaContext.
const (
	ModeFull     = "full"
	ModeRelevant = "relevant"
)

// Engine is the retrieval facade. The catalog and schema path are
// guarded by mu because a build request can swap them while searches
// are in flight; the index and scorer are internally synchronized.
type Engine struct {
	idx    *index.Index
	scorer *lexical.Scorer

	mu         sync.RWMutex
	schemaPath string
	catalog    *schema.Catalog
}

// New assembles an engine over a built or empty index. schemaPath may be
// empty; builds then fail until a request supplies one.
func New(idx *index.Index, scorer *lexical.Scorer, schemaPath string) *Engine {
	return &Engine{
		idx:        idx,
		scorer:     scorer,
		schemaPath: schemaPath,
	}
}

// LoadSchema reads the configured schema document into the catalog.
// Searches against an existing index snapshot work without a catalog,
// so callers may treat a load failure at startup as non-fatal.
func (e *Engine) LoadSchema() error {
	e.mu.RLock()
	path := e.schemaPath
	e.mu.RUnlock()

	if path == "" {
		return dowsererr.New(dowsererr.CodeServerUnavailable,
			"no schema document configured; set schema.path or pass one to the build request")
	}
	catalog, err := schema.Load(path)
	if err != nil {
		return err
	}

	e.mu.Lock()
	e.catalog = catalog
	e.mu.Unlock()
	return nil
}

// Build reloads the schema document and rebuilds the vector index from
// it. A non-empty schemaPath overrides the configured document and is
// remembered for later builds. With force unset, an already built index
// is left alone.
func (e *Engine) Build(ctx context.Context, schemaPath string, force bool) (index.Stats, error) {
	if schemaPath != "" {
		e.mu.Lock()
		e.schemaPath = schemaPath
		e.mu.Unlock()
	}
	if err := e.LoadSchema(); err != nil {
		return index.Stats{}, err
	}

	e.mu.RLock()
	tables := e.catalog.Tables()
	e.mu.RUnlock()

	if err := e.idx.Build(ctx, tables, force); err != nil {
		return index.Stats{}, err
	}
	return e.idx.Stats(ctx), nil
}

// Built reports whether the index holds a usable snapshot.
func (e *Engine) Built(ctx context.Context) bool {
	return e.idx.Built(ctx)
}

// Stats returns the index snapshot counters.
func (e *Engine) Stats(ctx context.Context) index.Stats {
	return e.idx.Stats(ctx)
}

// Search runs pure semantic retrieval. Results are nil while the index
// is unbuilt or the encoder is down.
func (e *Engine) Search(ctx context.Context, question string, topK int) []index.SearchResult {
	return e.idx.Search(ctx, question, topK)
}

// SearchHybrid fuses semantic and lexical scores. A nil lexicalResults
// slice means the caller has no scores of its own and the engine ranks
// the catalog with its internal scorer; an empty non-nil slice fuses
// with no lexical signal at all.
func (e *Engine) SearchHybrid(ctx context.Context, question string, lexicalResults []index.LexicalResult, topK int) []index.SearchResult {
	if lexicalResults == nil {
		e.mu.RLock()
		var tables []schema.Table
		if e.catalog != nil {
			tables = e.catalog.Tables()
		}
		e.mu.RUnlock()
		lexicalResults = e.scorer.Rank(ctx, question, tables)
	}
	return e.idx.Fuse(ctx, question, lexicalResults, topK)
}

// SchemaContext renders a prompt-ready schema description. An empty
// question yields the full catalog walk, otherwise only the tables
// relevant to the question. Without a loaded catalog the text is empty.
func (e *Engine) SchemaContext(ctx context.Context, question string) (mode, text string) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	mode = ModeRelevant
	if question == "" {
		mode = ModeFull
	}
	if e.catalog == nil {
		return mode, ""
	}
	b := prompt.New(e.catalog, e.scorer)
	if mode == ModeFull {
		return mode, b.Full()
	}
	return mode, b.Relevant(ctx, question)
}

// Hints returns targeted prompt fragments for one table: enum values
// and field descriptions when field is set, a join path when refTable
// is set. Unknown names produce no hints rather than errors.
func (e *Engine) Hints(table, field, refTable string) []string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.catalog == nil {
		return nil
	}
	b := prompt.New(e.catalog, e.scorer)

	var hints []string
	if field != "" {
		if h := b.EnumHint(table, field); h != "" {
			hints = append(hints, h)
		}
		if h := b.FieldHint(table, field); h != "" {
			hints = append(hints, h)
		}
	}
	if refTable != "" {
		if h := b.JoinHint(table, refTable); h != "" {
			hints = append(hints, h)
		}
	}
	return hints
}

// Glossary maps business terms from module and table comments to the
// tables that define them.
func (e *Engine) Glossary() map[string]string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.catalog == nil {
		return nil
	}
	return prompt.New(e.catalog, e.scorer).Glossary()
}

// CatalogStats counts the loaded schema document. Zero values mean no
// catalog is loaded.
func (e *Engine) CatalogStats() prompt.Stats {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.catalog == nil {
		return prompt.Stats{}
	}
	return prompt.New(e.catalog, e.scorer).CatalogStats()
}
