package loam

import (
	"fmt"
	"strings"

	"github.com/loamdb/loam/schema"
)

// InvalidModelError reports a model declaration the registry rejects.
type InvalidModelError struct {
	Table  string
	Reason string
}

func (e *InvalidModelError) Error() string {
	return fmt.Sprintf("invalid model %s: %s", e.Table, e.Reason)
}

// ReservedNameError means a model claims the table the migration
// runner uses for bookkeeping.
type ReservedNameError struct {
	Table string
}

func (e *ReservedNameError) Error() string {
	return fmt.Sprintf("table name %s is reserved for migration bookkeeping", e.Table)
}

// Registry holds the declared models and the target snapshot derived
// from them. It is built once at startup and read-only afterwards.
type Registry struct {
	models []Model
	target schema.Snapshot
}

// NewRegistry validates the models and derives the target snapshot.
func NewRegistry(models ...Model) (*Registry, error) {
	target := make(schema.Snapshot, len(models))
	for _, m := range models {
		if m.Table == "" {
			return nil, &InvalidModelError{Table: "(unnamed)", Reason: "missing table name"}
		}
		if strings.EqualFold(m.Table, schema.ReservedTable) {
			return nil, &ReservedNameError{Table: m.Table}
		}
		if _, ok := target[m.Table]; ok {
			return nil, &InvalidModelError{Table: m.Table, Reason: "declared twice"}
		}
		t, err := buildTable(m)
		if err != nil {
			return nil, err
		}
		target[m.Table] = t
	}
	return &Registry{models: models, target: target}, nil
}

// Target returns a copy of the snapshot the models declare.
func (r *Registry) Target() schema.Snapshot {
	return r.target.Clone()
}

// Models returns the declared models in registration order.
func (r *Registry) Models() []Model {
	return append([]Model(nil), r.models...)
}

func buildTable(m Model) (*schema.Table, error) {
	if len(m.Columns) == 0 {
		return nil, &InvalidModelError{Table: m.Table, Reason: "no columns"}
	}
	t := &schema.Table{Name: m.Table}
	seen := make(map[string]bool, len(m.Columns))
	var flagged []string
	for _, c := range m.Columns {
		if c.Name == "" {
			return nil, &InvalidModelError{Table: m.Table, Reason: "column with no name"}
		}
		lower := strings.ToLower(c.Name)
		if seen[lower] {
			return nil, &InvalidModelError{Table: m.Table, Reason: fmt.Sprintf("duplicate column %s", c.Name)}
		}
		seen[lower] = true

		col := schema.Column{Name: c.Name, Type: c.Type, NotNull: c.NotNull, PrimaryKey: c.Primary}
		if c.Default != "" {
			expr := c.Default
			col.Default = &expr
		}
		t.Columns = append(t.Columns, col)
		if c.Primary {
			flagged = append(flagged, c.Name)
		}
		if c.Unique {
			t.Indexes = append(t.Indexes, schema.Index{Columns: []string{c.Name}, Unique: true})
		}
	}

	switch {
	case len(m.PrimaryKey) > 0:
		for _, name := range m.PrimaryKey {
			if !t.HasColumn(name) {
				return nil, &InvalidModelError{Table: m.Table, Reason: fmt.Sprintf("primary key column %s not declared", name)}
			}
		}
		for _, name := range flagged {
			if !containsFold(m.PrimaryKey, name) {
				return nil, &InvalidModelError{Table: m.Table, Reason: fmt.Sprintf("column %s marked primary key outside the declared composite key", name)}
			}
		}
		t.PrimaryKey = append([]string(nil), m.PrimaryKey...)
		for i := range t.Columns {
			if containsFold(m.PrimaryKey, t.Columns[i].Name) {
				t.Columns[i].PrimaryKey = true
			}
		}
	case len(flagged) == 1:
		t.PrimaryKey = flagged
	case len(flagged) > 1:
		return nil, &InvalidModelError{Table: m.Table, Reason: "multiple primary key columns; declare a composite key explicitly"}
	}

	for _, ix := range m.Indexes {
		if len(ix.Columns) == 0 {
			return nil, &InvalidModelError{Table: m.Table, Reason: "index with no columns"}
		}
		for _, name := range ix.Columns {
			if !t.HasColumn(name) {
				return nil, &InvalidModelError{Table: m.Table, Reason: fmt.Sprintf("index references unknown column %s", name)}
			}
		}
		t.Indexes = append(t.Indexes, schema.Index{
			Name:    ix.Name,
			Columns: append([]string(nil), ix.Columns...),
			Unique:  ix.Unique,
		})
	}

	for _, fk := range m.ForeignKeys {
		if !t.HasColumn(fk.Column) {
			return nil, &InvalidModelError{Table: m.Table, Reason: fmt.Sprintf("foreign key on unknown column %s", fk.Column)}
		}
		if fk.RefTable == "" || fk.RefColumn == "" {
			return nil, &InvalidModelError{Table: m.Table, Reason: fmt.Sprintf("foreign key on %s missing its reference", fk.Column)}
		}
		t.ForeignKeys = append(t.ForeignKeys, fk)
	}
	return t, nil
}

func containsFold(names []string, name string) bool {
	for _, n := range names {
		if strings.EqualFold(n, name) {
			return true
		}
	}
	return false
}
