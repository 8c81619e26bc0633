// Package loam is a small persistence layer for SQLite: programs
// declare their tables as models, and loam reconciles the live
// database schema against those declarations, either directly at
// startup or through versioned migration artifacts.
package loam

import "github.com/loamdb/loam/schema"

// Model declares one table. Columns keep declaration order in the
// generated DDL; Indexes and ForeignKeys are optional. PrimaryKey
// names a composite key explicitly; single-column keys are declared
// on the column itself.
type Model struct {
	Table       string
	Columns     []ColumnDef
	Indexes     []schema.Index
	ForeignKeys []schema.ForeignKey
	PrimaryKey  []string
}

// ColumnDef declares one column. Default holds a verbatim SQL literal
// ("''", "0", "CURRENT_TIMESTAMP"); the empty string means no default.
type ColumnDef struct {
	Name    string
	Type    schema.Type
	NotNull bool
	Default string
	Unique  bool
	Primary bool
}

// PK declares an integer primary key column.
func PK(name string) ColumnDef {
	return ColumnDef{Name: name, Type: schema.TypeInteger, Primary: true}
}

// Text declares a required text column defaulting to the empty string.
func Text(name string) ColumnDef {
	return ColumnDef{Name: name, Type: schema.TypeText, NotNull: true, Default: "''"}
}

// UniqueText declares a required text column backed by a unique index.
func UniqueText(name string) ColumnDef {
	return ColumnDef{Name: name, Type: schema.TypeText, NotNull: true, Unique: true}
}

// Integer declares a nullable integer column.
func Integer(name string) ColumnDef {
	return ColumnDef{Name: name, Type: schema.TypeInteger}
}

// Real declares a nullable floating point column.
func Real(name string) ColumnDef {
	return ColumnDef{Name: name, Type: schema.TypeReal}
}

// Blob declares a nullable binary column.
func Blob(name string) ColumnDef {
	return ColumnDef{Name: name, Type: schema.TypeBlob}
}

// Bool declares a nullable boolean column.
func Bool(name string) ColumnDef {
	return ColumnDef{Name: name, Type: schema.TypeBoolean}
}

// Timestamp declares a required datetime column defaulting to the
// time of insertion.
func Timestamp(name string) ColumnDef {
	return ColumnDef{Name: name, Type: schema.TypeDateTime, NotNull: true, Default: "CURRENT_TIMESTAMP"}
}

// JSON declares a required text column holding a JSON document,
// defaulting to an empty object.
func JSON(name string) ColumnDef {
	return ColumnDef{Name: name, Type: schema.TypeText, NotNull: true, Default: "'{}'"}
}

// Col declares a bare nullable column of the given logical type, for
// cases the archetypes above do not cover.
func Col(name string, t schema.Type) ColumnDef {
	return ColumnDef{Name: name, Type: t}
}

// WithNotNull marks the column required.
func (c ColumnDef) WithNotNull() ColumnDef {
	c.NotNull = true
	return c
}

// WithNull marks the column nullable, overriding an archetype.
func (c ColumnDef) WithNull() ColumnDef {
	c.NotNull = false
	return c
}

// WithUnique backs the column with a unique index.
func (c ColumnDef) WithUnique() ColumnDef {
	c.Unique = true
	return c
}

// WithDefault sets the column default to a verbatim SQL literal; the
// empty string clears it.
func (c ColumnDef) WithDefault(expr string) ColumnDef {
	c.Default = expr
	return c
}

// WithPrimary marks the column as (part of) the primary key.
func (c ColumnDef) WithPrimary() ColumnDef {
	c.Primary = true
	return c
}
