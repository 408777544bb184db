// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dowser Contributors

// Package schema holds the externally supplied database description that
// dowser indexes and searches. Entities arrive already structured (YAML or
// JSON); dowser never parses free-form description documents.
package schema

import (
	"sort"
	"strings"
)

// Catalog is the root of a database description document.
type Catalog struct {
	Modules []Module `yaml:"modules" json:"modules"`
}

// Module groups the tables of one business area.
type Module struct {
	Name        string  `yaml:"name" json:"name"`
	Description string  `yaml:"description,omitempty" json:"description,omitempty"`
	Tables      []Table `yaml:"tables" json:"tables"`
}

// Table describes one relational table.
type Table struct {
	Name    string `yaml:"name" json:"name"`
	Comment string `yaml:"comment,omitempty" json:"comment,omitempty"`
	// Module is the owning module's name, filled during load.
	Module      string                 `yaml:"-" json:"module,omitempty"`
	Fields      []Field                `yaml:"fields,omitempty" json:"fields,omitempty"`
	Enums       map[string][]EnumValue `yaml:"enums,omitempty" json:"enums,omitempty"`
	ForeignKeys []ForeignKey           `yaml:"foreign_keys,omitempty" json:"foreign_keys,omitempty"`
	Notes       string                 `yaml:"notes,omitempty" json:"notes,omitempty"`
}

// Field describes one column.
type Field struct {
	Name     string `yaml:"name" json:"name"`
	Type     string `yaml:"type,omitempty" json:"type,omitempty"`
	Nullable bool   `yaml:"nullable,omitempty" json:"nullable,omitempty"`
	Default  string `yaml:"default,omitempty" json:"default,omitempty"`
	Comment  string `yaml:"comment,omitempty" json:"comment,omitempty"`
	Group    string `yaml:"group,omitempty" json:"group,omitempty"`
}

// EnumValue is one allowed value of an enumerated field.
type EnumValue struct {
	Value       string `yaml:"value" json:"value"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
}

// ForeignKey records a join edge between tables.
type ForeignKey struct {
	Field    string `yaml:"field" json:"field"`
	RefTable string `yaml:"ref_table" json:"ref_table"`
	RefField string `yaml:"ref_field,omitempty" json:"ref_field,omitempty"`
}

// identityFields are bookkeeping columns present on nearly every table.
// They carry no retrieval signal and are excluded from embeddings and
// field statistics.
var identityFields = map[string]struct{}{
	"id":         {},
	"created_at": {},
	"updated_at": {},
	"tenant_id":  {},
}

// IsIdentityField reports whether name is an identity or audit column.
func IsIdentityField(name string) bool {
	_, ok := identityFields[name]
	return ok
}

// Tables returns every table across all modules, with Module filled in.
func (c *Catalog) Tables() []Table {
	var tables []Table
	for _, m := range c.Modules {
		for _, t := range m.Tables {
			t.Module = m.Name
			tables = append(tables, t)
		}
	}
	return tables
}

// FindTable locates a table by name, case-insensitively. The returned
// table has Module filled in.
func (c *Catalog) FindTable(name string) (Table, bool) {
	for _, m := range c.Modules {
		for _, t := range m.Tables {
			if strings.EqualFold(t.Name, name) {
				t.Module = m.Name
				return t, true
			}
		}
	}
	return Table{}, false
}

// DescribedFields returns the non-identity fields of t.
func (t Table) DescribedFields() []Field {
	fields := make([]Field, 0, len(t.Fields))
	for _, f := range t.Fields {
		if IsIdentityField(f.Name) {
			continue
		}
		fields = append(fields, f)
	}
	return fields
}

// EnumNames returns the table's enum names in sorted order, for stable
// iteration over the Enums map.
func (t Table) EnumNames() []string {
	if len(t.Enums) == 0 {
		return nil
	}
	names := make([]string, 0, len(t.Enums))
	for name := range t.Enums {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
