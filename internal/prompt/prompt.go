// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dowser Contributors

// Package prompt renders schema context for injection into text-to-SQL
// prompts. The relevant context narrows the catalog to the modules and
// tables a question actually touches; the full context and the hint
// helpers serve prompts that need the whole picture or one precise fact.
// Output sections are Chinese because the catalogs dowser serves describe
// Chinese business systems; the structure is plain Markdown either way.
package prompt

import (
	"context"
	"fmt"
	"strings"

	"github.com/dowser-dev/dowser/internal/lexical"
	"github.com/dowser-dev/dowser/internal/schema"
)

// Section caps for the relevant context. Prompts degrade when flooded, so
// only the strongest modules and tables make the cut.
const (
	maxContextModules   = 3
	maxContextTables    = 3
	maxEnumDigestValues = 3
	maxKeyFields        = 5
	maxFullEnumValues   = 5
)

// Builder renders prompt context from a loaded catalog. Table and module
// selection for the relevant context delegates to the lexical scorer.
type Builder struct {
	catalog *schema.Catalog
	scorer  *lexical.Scorer
}

// New returns a Builder over catalog, ranking with scorer.
func New(catalog *schema.Catalog, scorer *lexical.Scorer) *Builder {
	return &Builder{catalog: catalog, scorer: scorer}
}

// Relevant renders the schema context for question: the top modules by
// keyword relevance, each with its strongest tables, their enum digests,
// and their commented key fields. Returns "" when nothing in the catalog
// relates to the question.
func (b *Builder) Relevant(ctx context.Context, question string) string {
	ranked := b.scorer.RankModules(ctx, question, b.catalog.Modules)
	if len(ranked) == 0 {
		return ""
	}
	if len(ranked) > maxContextModules {
		ranked = ranked[:maxContextModules]
	}

	var sb strings.Builder
	sb.WriteString("\n\n## 业务语义参考 (基于数据库描述):\n")

	for _, mod := range ranked {
		fmt.Fprintf(&sb, "### %s\n%s\n", mod.Module.Name, mod.Module.Description)

		tables := mod.Tables
		if len(tables) > maxContextTables {
			tables = tables[:maxContextTables]
		}
		for _, tr := range tables {
			t := tr.Table
			fmt.Fprintf(&sb, "\n**%s** (%s):\n", t.Name, t.Comment)

			if digest := enumDigest(*t, maxEnumDigestValues); digest != "" {
				fmt.Fprintf(&sb, "  状态类型: %s\n", digest)
			}
			if fields := keyFieldDigest(*t); fields != "" {
				fmt.Fprintf(&sb, "  关键字段: %s\n", fields)
			}
		}
	}
	return sb.String()
}

// Full renders the whole catalog: every module and table with enum digests
// and join edges. Returns "" for an empty catalog.
func (b *Builder) Full() string {
	if len(b.catalog.Modules) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("## 数据库架构上下文\n")

	for _, m := range b.catalog.Modules {
		fmt.Fprintf(&sb, "\n### %s\n%s\n", m.Name, m.Description)

		for _, t := range m.Tables {
			fmt.Fprintf(&sb, "\n**%s** - %s\n", t.Name, t.Comment)

			if digest := enumDigest(t, maxFullEnumValues); digest != "" {
				fmt.Fprintf(&sb, "  枚举: %s\n", digest)
			}
			if len(t.ForeignKeys) > 0 {
				refs := make([]string, 0, len(t.ForeignKeys))
				for _, fk := range t.ForeignKeys {
					refs = append(refs, fk.Field+"->"+fk.RefTable)
				}
				fmt.Fprintf(&sb, "  关联: %s\n", strings.Join(refs, "; "))
			}
		}
	}
	return sb.String()
}

// EnumHint renders the allowed values of an enumerated field, or "" when
// the table or enum is unknown. Names match case-insensitively.
func (b *Builder) EnumHint(table, field string) string {
	t, ok := b.catalog.FindTable(table)
	if !ok {
		return ""
	}
	for _, name := range t.EnumNames() {
		if !strings.EqualFold(name, field) {
			continue
		}
		values := t.Enums[name]
		if len(values) == 0 {
			return ""
		}
		vals := make([]string, 0, len(values))
		for _, v := range values {
			vals = append(vals, v.Value)
		}
		return fmt.Sprintf("\n注意: %s.%s 的可能取值包括: %s", table, field, strings.Join(vals, ", "))
	}
	return ""
}

// FieldHint renders a field's business meaning, or "" when the table or
// field is unknown or the field carries no comment.
func (b *Builder) FieldHint(table, field string) string {
	t, ok := b.catalog.FindTable(table)
	if !ok {
		return ""
	}
	for _, f := range t.Fields {
		if strings.EqualFold(f.Name, field) && f.Comment != "" {
			return fmt.Sprintf("\n参考: %s.%s 表示%s", table, field, f.Comment)
		}
	}
	return ""
}

// JoinHint renders how table joins to ref through a declared foreign key,
// or "" when no such edge exists. Only table's outgoing edges are
// considered.
func (b *Builder) JoinHint(table, ref string) string {
	t, ok := b.catalog.FindTable(table)
	if !ok {
		return ""
	}
	for _, fk := range t.ForeignKeys {
		if strings.EqualFold(fk.RefTable, ref) {
			return fmt.Sprintf("\n参考: %s 通过字段 %s 关联到 %s.%s", table, fk.Field, ref, fk.RefField)
		}
	}
	return ""
}

// Glossary maps business terms to schema locations: field comments to
// "table.field", described enum values to "table.enum: value". Later
// tables win when terms collide.
func (b *Builder) Glossary() map[string]string {
	glossary := make(map[string]string)

	for _, m := range b.catalog.Modules {
		for _, t := range m.Tables {
			for _, f := range t.DescribedFields() {
				if f.Comment != "" {
					glossary[f.Comment] = t.Name + "." + f.Name
				}
			}
			for _, name := range t.EnumNames() {
				for _, v := range t.Enums[name] {
					if v.Description != "" {
						glossary[v.Value] = t.Name + "." + name + ": " + v.Value
					}
				}
			}
		}
	}
	return glossary
}

// Stats counts the catalog entities available for context rendering.
// Fields counts non-identity columns only, matching what retrieval sees.
type Stats struct {
	Modules int `json:"modules"`
	Tables  int `json:"tables"`
	Fields  int `json:"fields"`
	Enums   int `json:"enums"`
}

// CatalogStats summarises the loaded catalog.
func (b *Builder) CatalogStats() Stats {
	var s Stats
	s.Modules = len(b.catalog.Modules)
	for _, m := range b.catalog.Modules {
		s.Tables += len(m.Tables)
		for _, t := range m.Tables {
			s.Fields += len(t.DescribedFields())
			s.Enums += len(t.Enums)
		}
	}
	return s
}

// enumDigest renders "name: v1, v2" entries joined by "; ", capping the
// values shown per enum.
func enumDigest(t schema.Table, maxValues int) string {
	names := t.EnumNames()
	if len(names) == 0 {
		return ""
	}
	entries := make([]string, 0, len(names))
	for _, name := range names {
		values := t.Enums[name]
		if len(values) > maxValues {
			values = values[:maxValues]
		}
		vals := make([]string, 0, len(values))
		for _, v := range values {
			vals = append(vals, v.Value)
		}
		entries = append(entries, name+": "+strings.Join(vals, ", "))
	}
	return strings.Join(entries, "; ")
}

// keyFieldDigest renders up to maxKeyFields commented non-identity fields
// as "name(comment)" pairs.
func keyFieldDigest(t schema.Table) string {
	var parts []string
	for _, f := range t.DescribedFields() {
		if f.Comment == "" {
			continue
		}
		parts = append(parts, f.Name+"("+f.Comment+")")
		if len(parts) == maxKeyFields {
			break
		}
	}
	return strings.Join(parts, ", ")
}
