// Package ddl renders schema operations into SQLite statements.
package ddl

import (
	"fmt"
	"strings"

	"github.com/loamdb/loam/schema"
)

// Render returns the SQL statements implementing op, in execution order.
// Most operations render to a single statement. alter_column renders to
// an adjacent drop+add pair, drop first, because SQLite has no in-place
// ALTER COLUMN. Existence-checked forms are used wherever the engine
// offers them so a retried artifact does not fail on work a rolled-back
// attempt left behind.
func Render(op schema.Operation) ([]string, error) {
	switch op.Kind {
	case schema.OpCreateTable:
		return []string{createTable(op.Spec)}, nil
	case schema.OpDropTable:
		return []string{fmt.Sprintf("DROP TABLE IF EXISTS %s", QuoteIdent(op.Table))}, nil
	case schema.OpAddColumn:
		return []string{addColumn(op.Table, *op.Column)}, nil
	case schema.OpDropColumn:
		return []string{dropColumn(op.Table, op.Name)}, nil
	case schema.OpAlterColumn:
		return []string{
			dropColumn(op.Table, op.Old.Name),
			addColumn(op.Table, *op.New),
		}, nil
	case schema.OpCreateIndex:
		return []string{createIndex(op.Table, *op.Index)}, nil
	case schema.OpDropIndex:
		return []string{fmt.Sprintf("DROP INDEX IF EXISTS %s", QuoteIdent(op.Name))}, nil
	default:
		return nil, fmt.Errorf("rendering operation: unknown kind %q", op.Kind)
	}
}

// RenderAll renders every operation of a diff into one flat statement
// list, preserving order.
func RenderAll(d schema.Diff) ([]string, error) {
	var stmts []string
	for _, op := range d.Operations {
		s, err := Render(op)
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, s...)
	}
	return stmts, nil
}

func createTable(t *schema.Table) string {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE IF NOT EXISTS %s (\n", QuoteIdent(t.Name))

	defs := make([]string, 0, len(t.Columns)+len(t.ForeignKeys)+1)
	for _, c := range t.Columns {
		defs = append(defs, "  "+columnDef(c))
	}
	if len(t.PrimaryKey) > 0 {
		defs = append(defs, fmt.Sprintf("  PRIMARY KEY (%s)", joinIdents(t.PrimaryKey)))
	}
	for _, fk := range t.ForeignKeys {
		def := fmt.Sprintf("  FOREIGN KEY (%s) REFERENCES %s (%s)",
			QuoteIdent(fk.Column), QuoteIdent(fk.RefTable), QuoteIdent(fk.RefColumn))
		if fk.OnDelete != "" {
			def += " ON DELETE " + fk.OnDelete
		}
		if fk.OnUpdate != "" {
			def += " ON UPDATE " + fk.OnUpdate
		}
		defs = append(defs, def)
	}

	b.WriteString(strings.Join(defs, ",\n"))
	b.WriteString("\n)")
	return b.String()
}

// columnDef renders a bare column definition. Key membership renders as
// a table constraint and uniqueness as a separate index, never inline,
// so introspected and declared schemas stay comparable.
func columnDef(c schema.Column) string {
	var b strings.Builder
	b.WriteString(QuoteIdent(c.Name))
	b.WriteByte(' ')
	b.WriteString(c.Type.SQLType())
	if c.NotNull {
		b.WriteString(" NOT NULL")
	}
	if c.Default != nil {
		b.WriteString(" DEFAULT ")
		b.WriteString(*c.Default)
	}
	return b.String()
}

func addColumn(table string, c schema.Column) string {
	return fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s", QuoteIdent(table), columnDef(c))
}

func dropColumn(table, column string) string {
	return fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s", QuoteIdent(table), QuoteIdent(column))
}

func createIndex(table string, ix schema.Index) string {
	unique := ""
	if ix.Unique {
		unique = "UNIQUE "
	}
	return fmt.Sprintf("CREATE %sINDEX IF NOT EXISTS %s ON %s (%s)",
		unique, QuoteIdent(ix.EffectiveName(table)), QuoteIdent(table), joinIdents(ix.Columns))
}

func joinIdents(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = QuoteIdent(n)
	}
	return strings.Join(quoted, ", ")
}

// QuoteIdent quotes an identifier for direct inclusion in SQL,
// doubling any embedded quotes.
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
