package schema

import (
	"fmt"
	"strings"
)

// OpKind identifies a schema operation.
type OpKind string

const (
	OpCreateTable OpKind = "create_table"
	OpDropTable   OpKind = "drop_table"
	OpAddColumn   OpKind = "add_column"
	OpDropColumn  OpKind = "drop_column"
	OpAlterColumn OpKind = "alter_column"
	OpCreateIndex OpKind = "create_index"
	OpDropIndex   OpKind = "drop_index"
)

// Operation is a single schema change. Kind decides which of the
// remaining fields are set: Spec for create_table, Column for
// add_column, Name for drop_column and drop_index, Old/New for
// alter_column, Index for create_index.
type Operation struct {
	Kind   OpKind  `yaml:"op"`
	Table  string  `yaml:"table"`
	Spec   *Table  `yaml:"spec,omitempty"`
	Column *Column `yaml:"column,omitempty"`
	Name   string  `yaml:"name,omitempty"`
	Old    *Column `yaml:"old,omitempty"`
	New    *Column `yaml:"new,omitempty"`
	Index  *Index  `yaml:"index,omitempty"`
}

func (o Operation) String() string {
	switch o.Kind {
	case OpCreateTable:
		return fmt.Sprintf("create table %s (%d columns)", o.Table, len(o.Spec.Columns))
	case OpDropTable:
		return fmt.Sprintf("drop table %s", o.Table)
	case OpAddColumn:
		return fmt.Sprintf("add column %s.%s %s", o.Table, o.Column.Name, o.Column.Type)
	case OpDropColumn:
		return fmt.Sprintf("drop column %s.%s", o.Table, o.Name)
	case OpAlterColumn:
		return fmt.Sprintf("alter column %s.%s %s -> %s", o.Table, o.Old.Name, describeColumn(*o.Old), describeColumn(*o.New))
	case OpCreateIndex:
		unique := ""
		if o.Index.Unique {
			unique = "unique "
		}
		return fmt.Sprintf("create %sindex %s on %s (%s)", unique, o.Index.EffectiveName(o.Table), o.Table, strings.Join(o.Index.Columns, ", "))
	case OpDropIndex:
		return fmt.Sprintf("drop index %s on %s", o.Name, o.Table)
	default:
		return string(o.Kind)
	}
}

func describeColumn(c Column) string {
	parts := []string{string(c.Type)}
	if c.NotNull {
		parts = append(parts, "not null")
	}
	if c.Default != nil {
		parts = append(parts, "default "+*c.Default)
	}
	return strings.Join(parts, " ")
}

// Diff is an ordered list of operations that transforms one snapshot
// into another. An empty diff means the schemas already match.
type Diff struct {
	Operations []Operation `yaml:"operations"`
}

// Empty reports whether the diff contains no operations.
func (d Diff) Empty() bool {
	return len(d.Operations) == 0
}

// Describe returns one display line per operation.
func (d Diff) Describe() []string {
	lines := make([]string, len(d.Operations))
	for i, op := range d.Operations {
		lines[i] = op.String()
	}
	return lines
}

// Compare returns the operations that transform current into target.
// Pure and deterministic: no I/O, and identical inputs always produce
// the identical operation sequence.
//
// Emission order guarantees that removals precede what depends on them
// and creations precede what references them: index drops, then column
// drops, then table drops, then table creations (alphabetical, each
// followed by its own index creations), then column alterations, then
// column additions, then remaining index creations.
//
// Columns compare by name with type, nullability and default deciding
// alteration. Indexes compare by (columns, uniqueness); names alone
// never trigger a change. Primary keys and foreign keys of tables that
// exist on both sides are not reconciled: the engine cannot alter
// either in place.
func Compare(current, target Snapshot) Diff {
	var d Diff

	surviving := make([]string, 0, len(current))
	for _, name := range current.TableNames() {
		if _, ok := target[name]; ok {
			surviving = append(surviving, name)
		}
	}

	// Drops first, inside-out: indexes, columns, tables.
	for _, name := range surviving {
		cur, tgt := current[name], target[name]
		for _, ix := range cur.Indexes {
			if !hasMatchingIndex(tgt.Indexes, ix) {
				d.Operations = append(d.Operations, Operation{
					Kind:  OpDropIndex,
					Table: name,
					Name:  ix.EffectiveName(name),
				})
			}
		}
	}
	for _, name := range surviving {
		cur, tgt := current[name], target[name]
		for _, c := range cur.Columns {
			if !tgt.HasColumn(c.Name) {
				d.Operations = append(d.Operations, Operation{
					Kind:  OpDropColumn,
					Table: name,
					Name:  c.Name,
				})
			}
		}
	}
	for _, name := range current.TableNames() {
		if _, ok := target[name]; !ok {
			d.Operations = append(d.Operations, Operation{Kind: OpDropTable, Table: name})
		}
	}

	// New tables, each immediately followed by its indexes.
	for _, name := range target.TableNames() {
		if _, ok := current[name]; ok {
			continue
		}
		spec := target[name].Clone()
		indexes := spec.Indexes
		spec.Indexes = nil // indexes travel as their own operations
		d.Operations = append(d.Operations, Operation{Kind: OpCreateTable, Table: name, Spec: spec})
		for _, ix := range indexes {
			index := ix
			d.Operations = append(d.Operations, Operation{Kind: OpCreateIndex, Table: name, Index: &index})
		}
	}

	// Changes within surviving tables.
	for _, name := range surviving {
		cur, tgt := current[name], target[name]
		for _, tc := range tgt.Columns {
			cc := cur.Column(tc.Name)
			if cc == nil || cc.Equal(tc) {
				continue
			}
			oldCol, newCol := cloneColumn(*cc), cloneColumn(tc)
			d.Operations = append(d.Operations, Operation{
				Kind:  OpAlterColumn,
				Table: name,
				Old:   &oldCol,
				New:   &newCol,
			})
		}
	}
	for _, name := range surviving {
		cur, tgt := current[name], target[name]
		for _, tc := range tgt.Columns {
			if !cur.HasColumn(tc.Name) {
				col := cloneColumn(tc)
				d.Operations = append(d.Operations, Operation{
					Kind:   OpAddColumn,
					Table:  name,
					Column: &col,
				})
			}
		}
	}
	for _, name := range surviving {
		cur, tgt := current[name], target[name]
		for _, ix := range tgt.Indexes {
			if !hasMatchingIndex(cur.Indexes, ix) {
				index := Index{Name: ix.Name, Columns: append([]string(nil), ix.Columns...), Unique: ix.Unique}
				d.Operations = append(d.Operations, Operation{Kind: OpCreateIndex, Table: name, Index: &index})
			}
		}
	}

	return d
}

func hasMatchingIndex(indexes []Index, ix Index) bool {
	for _, other := range indexes {
		if ix.Matches(other) {
			return true
		}
	}
	return false
}
