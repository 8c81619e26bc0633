// Package schema defines the value objects the reconciliation engine
// trades in: snapshots of a database schema, the tables and columns
// inside them, and the ordered operations that turn one snapshot into
// another.
package schema

import (
	"sort"
	"strings"
)

// ReservedTable is the bookkeeping table used to record applied
// migrations. It never appears in a snapshot: introspection skips it and
// the model registry rejects any model that claims the name.
const ReservedTable = "loam_migrations"

// Type is the logical column type used for engine-agnostic comparison.
type Type string

const (
	TypeText     Type = "text"
	TypeInteger  Type = "integer"
	TypeReal     Type = "real"
	TypeBlob     Type = "blob"
	TypeBoolean  Type = "boolean"
	TypeDateTime Type = "datetime"
)

// NormalizeType maps an engine-reported type name onto the logical
// enumeration, following SQLite's affinity rules with boolean and
// date/time names carved out so they survive a round trip.
func NormalizeType(engineType string) Type {
	t := strings.ToUpper(strings.TrimSpace(engineType))
	if i := strings.Index(t, "("); i >= 0 {
		t = strings.TrimSpace(t[:i])
	}
	switch {
	case t == "":
		return TypeBlob
	case strings.Contains(t, "BOOL"):
		return TypeBoolean
	case strings.Contains(t, "DATE"), strings.Contains(t, "TIME"):
		return TypeDateTime
	case strings.Contains(t, "INT"):
		return TypeInteger
	case strings.Contains(t, "CHAR"), strings.Contains(t, "CLOB"), strings.Contains(t, "TEXT"):
		return TypeText
	case strings.Contains(t, "REAL"), strings.Contains(t, "FLOA"), strings.Contains(t, "DOUB"),
		strings.Contains(t, "NUMERIC"), strings.Contains(t, "DECIMAL"):
		return TypeReal
	case strings.Contains(t, "BLOB"):
		return TypeBlob
	default:
		return TypeText
	}
}

// SQLType returns the SQLite type name used when rendering DDL.
func (t Type) SQLType() string {
	switch t {
	case TypeInteger:
		return "INTEGER"
	case TypeReal:
		return "REAL"
	case TypeBlob:
		return "BLOB"
	case TypeBoolean:
		return "BOOLEAN"
	case TypeDateTime:
		return "TIMESTAMP"
	default:
		return "TEXT"
	}
}

// Column describes a single table column. Default holds the SQL literal
// verbatim ('abc', 0, CURRENT_TIMESTAMP), exactly as it renders in DDL.
type Column struct {
	Name       string  `yaml:"name"`
	Type       Type    `yaml:"type"`
	NotNull    bool    `yaml:"not_null,omitempty"`
	Default    *string `yaml:"default,omitempty"`
	PrimaryKey bool    `yaml:"primary_key,omitempty"`
}

// Equal reports whether two columns match in type, nullability and
// default. Primary key membership is compared at the table level, not
// here, so a key change never masquerades as a column alteration.
func (c Column) Equal(other Column) bool {
	return c.Type == other.Type &&
		c.NotNull == other.NotNull &&
		defaultsEqual(c.Default, other.Default)
}

func defaultsEqual(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return strings.EqualFold(strings.TrimSpace(*a), strings.TrimSpace(*b))
}

// Index describes a secondary index. Identity for comparison is the
// column list plus uniqueness; names are ignored because engines invent
// their own for implicit indexes.
type Index struct {
	Name    string   `yaml:"name,omitempty"`
	Columns []string `yaml:"columns"`
	Unique  bool     `yaml:"unique,omitempty"`
}

// Matches reports whether two indexes cover the same columns in the same
// order with the same uniqueness.
func (ix Index) Matches(other Index) bool {
	if ix.Unique != other.Unique || len(ix.Columns) != len(other.Columns) {
		return false
	}
	for i, c := range ix.Columns {
		if !strings.EqualFold(c, other.Columns[i]) {
			return false
		}
	}
	return true
}

// EffectiveName returns the index name, deriving a deterministic one
// from the table and column list when none was declared.
func (ix Index) EffectiveName(table string) string {
	if ix.Name != "" {
		return ix.Name
	}
	prefix := "idx"
	if ix.Unique {
		prefix = "uniq"
	}
	return prefix + "_" + table + "_" + strings.Join(ix.Columns, "_")
}

// ForeignKey describes a single-column reference to another table.
// Foreign keys render inside CREATE TABLE and are never diffed: the
// engine cannot add or drop a constraint on an existing table.
type ForeignKey struct {
	Column    string `yaml:"column"`
	RefTable  string `yaml:"ref_table"`
	RefColumn string `yaml:"ref_column"`
	OnDelete  string `yaml:"on_delete,omitempty"`
	OnUpdate  string `yaml:"on_update,omitempty"`
}

// Table describes one table. Column order is significant for generated
// DDL but not for comparison. PrimaryKey lists key columns in order;
// composite keys are allowed.
type Table struct {
	Name        string       `yaml:"name"`
	Columns     []Column     `yaml:"columns"`
	PrimaryKey  []string     `yaml:"primary_key,omitempty"`
	Indexes     []Index      `yaml:"indexes,omitempty"`
	ForeignKeys []ForeignKey `yaml:"foreign_keys,omitempty"`
}

// Column returns the named column, or nil.
func (t *Table) Column(name string) *Column {
	for i := range t.Columns {
		if t.Columns[i].Name == name {
			return &t.Columns[i]
		}
	}
	return nil
}

// HasColumn reports whether the table declares the named column.
func (t *Table) HasColumn(name string) bool {
	return t.Column(name) != nil
}

// Clone returns a deep copy of the table.
func (t *Table) Clone() *Table {
	out := &Table{
		Name:        t.Name,
		Columns:     make([]Column, len(t.Columns)),
		Indexes:     make([]Index, len(t.Indexes)),
		ForeignKeys: append([]ForeignKey(nil), t.ForeignKeys...),
	}
	if t.PrimaryKey != nil {
		out.PrimaryKey = append([]string(nil), t.PrimaryKey...)
	}
	for i, c := range t.Columns {
		out.Columns[i] = cloneColumn(c)
	}
	for i, ix := range t.Indexes {
		out.Indexes[i] = Index{Name: ix.Name, Columns: append([]string(nil), ix.Columns...), Unique: ix.Unique}
	}
	if len(out.Indexes) == 0 {
		out.Indexes = nil
	}
	return out
}

func cloneColumn(c Column) Column {
	if c.Default != nil {
		d := *c.Default
		c.Default = &d
	}
	return c
}

// Equal compares two tables structurally: columns by name regardless of
// order, indexes by identity regardless of order or name, primary key
// columns in order, foreign keys as a set.
func (t *Table) Equal(other *Table) bool {
	if t.Name != other.Name || len(t.Columns) != len(other.Columns) {
		return false
	}
	for _, c := range t.Columns {
		oc := other.Column(c.Name)
		if oc == nil || !c.Equal(*oc) || c.PrimaryKey != oc.PrimaryKey {
			return false
		}
	}
	if len(t.PrimaryKey) != len(other.PrimaryKey) {
		return false
	}
	for i, k := range t.PrimaryKey {
		if !strings.EqualFold(k, other.PrimaryKey[i]) {
			return false
		}
	}
	if !indexSetEqual(t.Indexes, other.Indexes) {
		return false
	}
	return foreignKeySetEqual(t.ForeignKeys, other.ForeignKeys)
}

func indexSetEqual(a, b []Index) bool {
	if len(a) != len(b) {
		return false
	}
	for _, ix := range a {
		found := false
		for _, other := range b {
			if ix.Matches(other) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func foreignKeySetEqual(a, b []ForeignKey) bool {
	if len(a) != len(b) {
		return false
	}
	for _, fk := range a {
		found := false
		for _, other := range b {
			if strings.EqualFold(fk.Column, other.Column) &&
				strings.EqualFold(fk.RefTable, other.RefTable) &&
				strings.EqualFold(fk.RefColumn, other.RefColumn) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// Snapshot maps table names to their specs. It represents either what
// the database currently has (from introspection) or what the models
// declare (the target).
type Snapshot map[string]*Table

// TableNames returns the snapshot's table names in sorted order.
func (s Snapshot) TableNames() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Clone returns a deep copy of the snapshot.
func (s Snapshot) Clone() Snapshot {
	out := make(Snapshot, len(s))
	for name, t := range s {
		out[name] = t.Clone()
	}
	return out
}

// Equal compares two snapshots structurally, independent of the order
// either was produced in.
func (s Snapshot) Equal(other Snapshot) bool {
	if len(s) != len(other) {
		return false
	}
	for name, t := range s {
		ot, ok := other[name]
		if !ok || !t.Equal(ot) {
			return false
		}
	}
	return true
}
