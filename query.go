package loam

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/loamdb/loam/internal/ddl"
	"github.com/loamdb/loam/schema"
)

var (
	// ErrNotFound is returned by First and Get when nothing matches.
	ErrNotFound = errors.New("loam: no matching row")

	// ErrMultiple is returned by Get when more than one row matches.
	ErrMultiple = errors.New("loam: more than one matching row")
)

// Row is one record keyed by column name. Values carry the driver's
// native types: int64, float64, string, []byte or nil.
type Row map[string]any

// Query builds and runs statements against one declared table.
// Modifiers return copies, so a partially built query can be shared.
// Unknown tables and columns surface as errors from the terminal
// methods rather than being silently dropped.
type Query struct {
	db      *DB
	table   *schema.Table
	name    string
	filters []condition
	orders  []string
	limit   int
	offset  int
	err     error
}

type condition struct {
	column string
	value  any
}

// Query starts a query against a declared table.
func (d *DB) Query(table string) *Query {
	q := &Query{db: d, name: table}
	t, ok := d.registry.target[table]
	if !ok {
		q.err = fmt.Errorf("unknown table %s", table)
		return q
	}
	q.table = t
	return q
}

func (q *Query) clone() *Query {
	c := *q
	c.filters = append([]condition(nil), q.filters...)
	c.orders = append([]string(nil), q.orders...)
	return &c
}

func (q *Query) fail(err error) *Query {
	c := q.clone()
	c.err = err
	return c
}

// Filter adds an equality condition. Conditions combine with AND.
func (q *Query) Filter(column string, value any) *Query {
	if q.err != nil {
		return q
	}
	if !q.table.HasColumn(column) {
		return q.fail(fmt.Errorf("unknown column %s.%s", q.name, column))
	}
	c := q.clone()
	c.filters = append(c.filters, condition{column: column, value: value})
	return c
}

// Order sorts by the named columns; a leading '-' means descending.
func (q *Query) Order(columns ...string) *Query {
	if q.err != nil {
		return q
	}
	c := q.clone()
	for _, col := range columns {
		name, dir := col, "ASC"
		if strings.HasPrefix(col, "-") {
			name, dir = col[1:], "DESC"
		}
		if !q.table.HasColumn(name) {
			return q.fail(fmt.Errorf("unknown column %s.%s", q.name, name))
		}
		c.orders = append(c.orders, ddl.QuoteIdent(name)+" "+dir)
	}
	return c
}

// Limit caps the number of rows returned; zero means no cap.
func (q *Query) Limit(n int) *Query {
	c := q.clone()
	c.limit = n
	return c
}

// Offset skips the first n rows.
func (q *Query) Offset(n int) *Query {
	c := q.clone()
	c.offset = n
	return c
}

// All runs the query and returns every matching row, with the table's
// declared columns in each row.
func (q *Query) All(ctx context.Context) ([]Row, error) {
	if q.err != nil {
		return nil, q.err
	}
	names := make([]string, len(q.table.Columns))
	selects := make([]string, len(q.table.Columns))
	for i, c := range q.table.Columns {
		names[i] = c.Name
		selects[i] = ddl.QuoteIdent(c.Name)
	}
	query, args := q.selectSQL(selects)

	rows, err := q.db.exec.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", q.name, err)
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		values := make([]any, len(names))
		ptrs := make([]any, len(names))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scanning %s: %w", q.name, err)
		}
		row := make(Row, len(names))
		for i, name := range names {
			row[name] = values[i]
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("querying %s: %w", q.name, err)
	}
	return out, nil
}

// First returns the first matching row, or ErrNotFound.
func (q *Query) First(ctx context.Context) (Row, error) {
	rows, err := q.Limit(1).All(ctx)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	return rows[0], nil
}

// Get returns the single matching row. It fails with ErrNotFound when
// nothing matches and ErrMultiple when more than one row does.
func (q *Query) Get(ctx context.Context) (Row, error) {
	rows, err := q.Limit(2).All(ctx)
	if err != nil {
		return nil, err
	}
	switch len(rows) {
	case 0:
		return nil, ErrNotFound
	case 1:
		return rows[0], nil
	default:
		return nil, ErrMultiple
	}
}

// Count returns the number of matching rows.
func (q *Query) Count(ctx context.Context) (int64, error) {
	if q.err != nil {
		return 0, q.err
	}
	query, args := q.selectSQL([]string{"count(*)"})
	var n int64
	rows, err := q.db.exec.QueryContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("counting %s: %w", q.name, err)
	}
	defer rows.Close()
	if rows.Next() {
		if err := rows.Scan(&n); err != nil {
			return 0, fmt.Errorf("counting %s: %w", q.name, err)
		}
	}
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("counting %s: %w", q.name, err)
	}
	return n, nil
}

// Insert adds one row and returns its rowid. Values must name
// declared columns; columns left out fall back to their defaults.
func (q *Query) Insert(ctx context.Context, values Row) (int64, error) {
	if q.err != nil {
		return 0, q.err
	}
	if err := q.checkColumns(values); err != nil {
		return 0, err
	}
	var cols []string
	var args []any
	for _, c := range q.table.Columns {
		if v, ok := values[c.Name]; ok {
			cols = append(cols, ddl.QuoteIdent(c.Name))
			args = append(args, v)
		}
	}
	if len(cols) == 0 {
		return 0, fmt.Errorf("inserting into %s: no values", q.name)
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		ddl.QuoteIdent(q.name), strings.Join(cols, ", "), placeholders(len(cols)))
	res, err := q.db.exec.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("inserting into %s: %w", q.name, err)
	}
	return res.LastInsertId()
}

// Update sets the given columns on every matching row and returns the
// number of rows changed. A query with no filter refuses to update.
func (q *Query) Update(ctx context.Context, values Row) (int64, error) {
	if q.err != nil {
		return 0, q.err
	}
	if len(q.filters) == 0 {
		return 0, fmt.Errorf("updating %s: no filter; refusing to update every row", q.name)
	}
	if err := q.checkColumns(values); err != nil {
		return 0, err
	}
	var sets []string
	var args []any
	for _, c := range q.table.Columns {
		if v, ok := values[c.Name]; ok {
			sets = append(sets, ddl.QuoteIdent(c.Name)+" = ?")
			args = append(args, v)
		}
	}
	if len(sets) == 0 {
		return 0, fmt.Errorf("updating %s: no values", q.name)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "UPDATE %s SET %s", ddl.QuoteIdent(q.name), strings.Join(sets, ", "))
	args = append(args, q.appendWhere(&b)...)
	res, err := q.db.exec.ExecContext(ctx, b.String(), args...)
	if err != nil {
		return 0, fmt.Errorf("updating %s: %w", q.name, err)
	}
	return res.RowsAffected()
}

// Delete removes every matching row and returns the number removed.
// A query with no filter refuses to delete.
func (q *Query) Delete(ctx context.Context) (int64, error) {
	if q.err != nil {
		return 0, q.err
	}
	if len(q.filters) == 0 {
		return 0, fmt.Errorf("deleting from %s: no filter; refusing to delete every row", q.name)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "DELETE FROM %s", ddl.QuoteIdent(q.name))
	args := q.appendWhere(&b)
	res, err := q.db.exec.ExecContext(ctx, b.String(), args...)
	if err != nil {
		return 0, fmt.Errorf("deleting from %s: %w", q.name, err)
	}
	return res.RowsAffected()
}

func (q *Query) checkColumns(values Row) error {
	for name := range values {
		if !q.table.HasColumn(name) {
			return fmt.Errorf("unknown column %s.%s", q.name, name)
		}
	}
	return nil
}

func (q *Query) selectSQL(selects []string) (string, []any) {
	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s FROM %s", strings.Join(selects, ", "), ddl.QuoteIdent(q.name))
	args := q.appendWhere(&b)
	if len(q.orders) > 0 {
		b.WriteString(" ORDER BY ")
		b.WriteString(strings.Join(q.orders, ", "))
	}
	if q.limit > 0 || q.offset > 0 {
		limit := q.limit
		if limit <= 0 {
			limit = -1 // OFFSET needs a LIMIT clause; -1 means unbounded
		}
		fmt.Fprintf(&b, " LIMIT %d", limit)
		if q.offset > 0 {
			fmt.Fprintf(&b, " OFFSET %d", q.offset)
		}
	}
	return b.String(), args
}

func (q *Query) appendWhere(b *strings.Builder) []any {
	if len(q.filters) == 0 {
		return nil
	}
	b.WriteString(" WHERE ")
	args := make([]any, 0, len(q.filters))
	for i, f := range q.filters {
		if i > 0 {
			b.WriteString(" AND ")
		}
		b.WriteString(ddl.QuoteIdent(f.column))
		b.WriteString(" = ?")
		args = append(args, f.value)
	}
	return args
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
