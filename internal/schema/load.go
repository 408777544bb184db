// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dowser Contributors

package schema

import (
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	dowsererr "github.com/dowser-dev/dowser/pkg/errors"
)

// Load reads a catalog document from path. JSON documents parse too, since
// JSON is a YAML subset.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, dowsererr.Wrap(err, dowsererr.CodeSchemaLoadReadFailure,
			"reading schema document", dowsererr.FieldPath(path))
	}
	return Parse(data)
}

// Parse decodes a catalog document and drops malformed entities. A table
// without a name, or a module without one, cannot be indexed or referenced
// in results; dropping them keeps one bad entry from poisoning the rest of
// the catalog.
func Parse(data []byte) (*Catalog, error) {
	var catalog Catalog
	if err := yaml.Unmarshal(data, &catalog); err != nil {
		return nil, dowsererr.Wrap(err, dowsererr.CodeSchemaParseInvalidFormat,
			"decoding schema document")
	}

	modules := catalog.Modules[:0]
	for _, m := range catalog.Modules {
		if m.Name == "" {
			slog.Warn("schema: skipping module without name")
			continue
		}
		tables := m.Tables[:0]
		for _, t := range m.Tables {
			if t.Name == "" {
				slog.Warn("schema: skipping table without name", "module", m.Name)
				continue
			}
			tables = append(tables, t)
		}
		m.Tables = tables
		modules = append(modules, m)
	}
	catalog.Modules = modules

	return &catalog, nil
}
