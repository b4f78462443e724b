package schema

import (
	"context"
	"database/sql"
	"fmt"
)

// SourceQuery is one export source: a whole table or a free-form query.
type SourceQuery struct {
	Table TableRef
	Query string

	text bool
}

// NewSourceQuery selects every row and column of a table.
func NewSourceQuery(ref TableRef) SourceQuery {
	return SourceQuery{
		Table: ref,
		Query: "SELECT * FROM " + ref.QualifiedName(),
	}
}

// NewSourceQueryText wraps a query supplied by the user. The name is what
// results report as the table name.
func NewSourceQueryText(name, query string) SourceQuery {
	return SourceQuery{
		Table: TableRef{Name: name},
		Query: query,
		text:  true,
	}
}

// SQL returns the statement the source executes.
func (s SourceQuery) SQL() string {
	return s.Query
}

// Name returns the table name reported in results.
func (s SourceQuery) Name() string {
	return s.Table.Name
}

// IsTable reports whether the source reads a whole table, so its row count
// can be checked with COUNT(*).
func (s SourceQuery) IsTable() bool {
	return !s.text
}

// Open executes the query and returns a reader positioned before the first row.
func (s SourceQuery) Open(ctx context.Context, db *sql.DB) (*Reader, error) {
	rows, err := db.QueryContext(ctx, s.Query)
	if err != nil {
		return nil, fmt.Errorf("query %s failed: %w", s.Name(), err)
	}

	types, err := rows.ColumnTypes()
	if err != nil {
		rows.Close()
		return nil, fmt.Errorf("failed to read columns of %s: %w", s.Name(), err)
	}

	return newReader(rows, ColumnsFromTypes(types)), nil
}

// Reader iterates the rows of an open source query.
type Reader struct {
	rows    *sql.Rows
	columns []Column
	values  []interface{}
	ptrs    []interface{}
}

func newReader(rows *sql.Rows, cols []Column) *Reader {
	r := &Reader{
		rows:    rows,
		columns: cols,
		values:  make([]interface{}, len(cols)),
		ptrs:    make([]interface{}, len(cols)),
	}
	for i := range r.values {
		r.ptrs[i] = &r.values[i]
	}
	return r
}

// Columns returns the result set's columns in order.
func (r *Reader) Columns() []Column {
	return r.columns
}

// Next advances to the next row.
func (r *Reader) Next() bool {
	return r.rows.Next()
}

// Values scans the current row. The returned slice is reused by the next call.
func (r *Reader) Values() ([]interface{}, error) {
	for i := range r.values {
		r.values[i] = nil
	}
	if err := r.rows.Scan(r.ptrs...); err != nil {
		return nil, fmt.Errorf("failed to scan row: %w", err)
	}
	return r.values, nil
}

// Err returns the error, if any, that ended iteration.
func (r *Reader) Err() error {
	return r.rows.Err()
}

// Close releases the result set.
func (r *Reader) Close() error {
	return r.rows.Close()
}
