// Package catalog reads the live SQLite schema into a snapshot by
// querying the engine's metadata, never by parsing DDL text.
package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"github.com/loamdb/loam/schema"
)

// ReadError reports a failed metadata query. Introspection is all or
// nothing: no partial snapshot accompanies it.
type ReadError struct {
	Err error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("reading catalog: %v", e.Err)
}

func (e *ReadError) Unwrap() error { return e.Err }

// Read introspects the database's current structure. SQLite internals
// (sqlite_*) and the reserved bookkeeping table are excluded: they are
// infrastructure, not user schema. Read performs only read-only queries.
func Read(ctx context.Context, db *sql.DB) (schema.Snapshot, error) {
	snap, err := read(ctx, db)
	if err != nil {
		return nil, &ReadError{Err: err}
	}
	return snap, nil
}

func read(ctx context.Context, db *sql.DB) (schema.Snapshot, error) {
	names, err := tableNames(ctx, db)
	if err != nil {
		return nil, fmt.Errorf("listing tables: %w", err)
	}

	snap := make(schema.Snapshot, len(names))
	for _, name := range names {
		t := &schema.Table{Name: name}
		if err := readColumns(ctx, db, t); err != nil {
			return nil, fmt.Errorf("reading columns of %s: %w", name, err)
		}
		if err := readIndexes(ctx, db, t); err != nil {
			return nil, fmt.Errorf("reading indexes of %s: %w", name, err)
		}
		if err := readForeignKeys(ctx, db, t); err != nil {
			return nil, fmt.Errorf("reading foreign keys of %s: %w", name, err)
		}
		snap[name] = t
	}
	return snap, nil
}

func tableNames(ctx context.Context, db *sql.DB) ([]string, error) {
	rows, err := db.QueryContext(ctx,
		"SELECT name FROM sqlite_master WHERE type='table' AND name NOT LIKE 'sqlite_%' AND name <> ? ORDER BY name",
		schema.ReservedTable)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func readColumns(ctx context.Context, db *sql.DB, t *schema.Table) error {
	rows, err := db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_xinfo(%s)", pragmaIdent(t.Name)))
	if err != nil {
		return err
	}
	defer rows.Close()

	type keyCol struct {
		name string
		pos  int
	}
	var keyCols []keyCol

	for rows.Next() {
		var cid, notnull, pk, hidden int
		var name, declType string
		var dflt sql.NullString
		if err := rows.Scan(&cid, &name, &declType, &notnull, &dflt, &pk, &hidden); err != nil {
			return err
		}
		if hidden != 0 {
			// hidden and generated columns are not managed schema
			continue
		}

		col := schema.Column{
			Name:       name,
			Type:       schema.NormalizeType(declType),
			NotNull:    notnull == 1,
			PrimaryKey: pk > 0,
		}
		if dflt.Valid {
			v := dflt.String
			col.Default = &v
		}
		t.Columns = append(t.Columns, col)

		if pk > 0 {
			keyCols = append(keyCols, keyCol{name: name, pos: pk})
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}

	sort.Slice(keyCols, func(i, j int) bool { return keyCols[i].pos < keyCols[j].pos })
	for _, kc := range keyCols {
		t.PrimaryKey = append(t.PrimaryKey, kc.name)
	}
	return nil
}

// readIndexes collects secondary indexes, including the autoindexes the
// engine creates for inline UNIQUE constraints (origin 'u'), so declared
// unique indexes compare cleanly against legacy inline declarations.
// Primary key autoindexes (origin 'pk') are covered by the table's key
// columns, and partial or expression indexes are skipped: they cannot be
// declared by a model and must not shadow one that can.
func readIndexes(ctx context.Context, db *sql.DB, t *schema.Table) error {
	rows, err := db.QueryContext(ctx, fmt.Sprintf("PRAGMA index_list(%s)", pragmaIdent(t.Name)))
	if err != nil {
		return err
	}
	defer rows.Close()

	type listed struct {
		name   string
		unique bool
	}
	var candidates []listed

	for rows.Next() {
		var seq, unique, partial int
		var name, origin string
		if err := rows.Scan(&seq, &name, &unique, &origin, &partial); err != nil {
			return err
		}
		if origin == "pk" || partial == 1 {
			continue
		}
		candidates = append(candidates, listed{name: name, unique: unique == 1})
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for _, cand := range candidates {
		ix := schema.Index{Name: cand.name, Unique: cand.unique}
		expression := false

		colRows, err := db.QueryContext(ctx, fmt.Sprintf("PRAGMA index_info(%s)", pragmaIdent(cand.name)))
		if err != nil {
			return err
		}
		for colRows.Next() {
			var seqno, cid int
			var colName sql.NullString
			if err := colRows.Scan(&seqno, &cid, &colName); err != nil {
				colRows.Close()
				return err
			}
			if !colName.Valid {
				expression = true
				continue
			}
			ix.Columns = append(ix.Columns, colName.String)
		}
		colRows.Close()
		if err := colRows.Err(); err != nil {
			return err
		}

		if expression || len(ix.Columns) == 0 {
			continue
		}
		t.Indexes = append(t.Indexes, ix)
	}

	sort.Slice(t.Indexes, func(i, j int) bool { return t.Indexes[i].Name < t.Indexes[j].Name })
	return nil
}

func readForeignKeys(ctx context.Context, db *sql.DB, t *schema.Table) error {
	rows, err := db.QueryContext(ctx, fmt.Sprintf("PRAGMA foreign_key_list(%s)", pragmaIdent(t.Name)))
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var id, seq int
		var refTable, from, to, onUpdate, onDelete, match string
		if err := rows.Scan(&id, &seq, &refTable, &from, &to, &onUpdate, &onDelete, &match); err != nil {
			return err
		}
		fk := schema.ForeignKey{
			Column:    from,
			RefTable:  refTable,
			RefColumn: to,
		}
		if rule := strings.ToUpper(onDelete); rule != "" && rule != "NO ACTION" {
			fk.OnDelete = rule
		}
		if rule := strings.ToUpper(onUpdate); rule != "" && rule != "NO ACTION" {
			fk.OnUpdate = rule
		}
		t.ForeignKeys = append(t.ForeignKeys, fk)
	}
	return rows.Err()
}

// pragmaIdent quotes an identifier for interpolation into a PRAGMA,
// which cannot take bind parameters.
func pragmaIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
