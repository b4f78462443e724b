// Package schema provides the dataset abstraction for GoExport: named
// tables of a source database, their columns, and the queries that read them.
package schema

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/elliotchance/orderedmap/v2"

	"github.com/dbsmedya/goexport/internal/sqlutil"
)

// Dataset wraps a source database under a logical name.
type Dataset struct {
	Name         string // logical name, e.g. MYDB
	DatabaseName string // catalog the dataset points at, e.g. MYDB_Test
	Dialect      sqlutil.Dialect
	DB           *sql.DB
}

// NewDataset creates a dataset over an open connection pool.
func NewDataset(name string, dialect sqlutil.Dialect, db *sql.DB, databaseName string) *Dataset {
	return &Dataset{
		Name:         name,
		DatabaseName: databaseName,
		Dialect:      dialect,
		DB:           db,
	}
}

// TableRef names a table of a dataset.
type TableRef struct {
	Dialect  sqlutil.Dialect
	Database string
	Schema   string
	Name     string
}

// Table returns a reference to a table of the dataset. An empty database
// selects the dataset's catalog and an empty schema the dialect default.
func (d *Dataset) Table(database, schemaName, name string) TableRef {
	if database == "" && d.Dialect != sqlutil.SQLite {
		database = d.DatabaseName
	}
	if schemaName == "" {
		schemaName = d.Dialect.DefaultSchema()
	}
	return TableRef{
		Dialect:  d.Dialect,
		Database: database,
		Schema:   schemaName,
		Name:     name,
	}
}

// QualifiedName returns the quoted name used in FROM clauses.
// PostgreSQL cannot cross catalogs, MySQL has no schema level and SQLite
// only knows the table name.
func (t TableRef) QualifiedName() string {
	switch t.Dialect {
	case sqlutil.MySQL:
		return sqlutil.QualifiedName(t.Dialect, t.Database, t.Name)
	case sqlutil.Postgres:
		return sqlutil.QualifiedName(t.Dialect, t.Schema, t.Name)
	case sqlutil.SQLite:
		return sqlutil.QualifiedName(t.Dialect, t.Name)
	default:
		return sqlutil.QualifiedName(t.Dialect, t.Database, t.Schema, t.Name)
	}
}

// String renders the table as database.schema.table, skipping empty parts.
func (t TableRef) String() string {
	parts := make([]string, 0, 3)
	for _, p := range []string{t.Database, t.Schema, t.Name} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ".")
}

// informationSchema returns the information_schema view for the table's catalog.
func (t TableRef) informationSchema(view string) string {
	if t.Dialect == sqlutil.SQLServer && t.Database != "" {
		return sqlutil.QuoteIdentifier(t.Dialect, t.Database) + ".INFORMATION_SCHEMA." + view
	}
	if t.Dialect == sqlutil.SQLServer {
		return "INFORMATION_SCHEMA." + view
	}
	return "information_schema." + view
}

// schemaFilter is the TABLE_SCHEMA value of the table. MySQL stores the
// database name there.
func (t TableRef) schemaFilter() string {
	if t.Dialect == sqlutil.MySQL {
		return t.Database
	}
	return t.Schema
}

// TableExists reports whether the table (or view) is present in the source.
func (d *Dataset) TableExists(ctx context.Context, ref TableRef) (bool, error) {
	var query string
	var args []interface{}

	if ref.Dialect == sqlutil.SQLite {
		query = "SELECT COUNT(*) FROM sqlite_master WHERE type IN ('table', 'view') AND name = ?"
		args = []interface{}{ref.Name}
	} else {
		query = fmt.Sprintf(
			"SELECT COUNT(*) FROM %s WHERE TABLE_SCHEMA = %s AND TABLE_NAME = %s",
			ref.informationSchema("TABLES"),
			ref.Dialect.Placeholder(1),
			ref.Dialect.Placeholder(2),
		)
		args = []interface{}{ref.schemaFilter(), ref.Name}
	}

	var count int64
	if err := d.DB.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return false, fmt.Errorf("failed to check table %s: %w", ref, err)
	}
	return count > 0, nil
}

// Columns returns the columns of a table keyed by name, in ordinal order.
func (d *Dataset) Columns(ctx context.Context, ref TableRef) (*orderedmap.OrderedMap[string, Column], error) {
	if ref.Dialect == sqlutil.SQLite {
		return d.sqliteColumns(ctx, ref)
	}

	query := fmt.Sprintf(`
		SELECT COLUMN_NAME, ORDINAL_POSITION, DATA_TYPE, CHARACTER_MAXIMUM_LENGTH,
		       NUMERIC_PRECISION, NUMERIC_SCALE, IS_NULLABLE
		FROM %s
		WHERE TABLE_SCHEMA = %s AND TABLE_NAME = %s
		ORDER BY ORDINAL_POSITION`,
		ref.informationSchema("COLUMNS"),
		ref.Dialect.Placeholder(1),
		ref.Dialect.Placeholder(2),
	)

	rows, err := d.DB.QueryContext(ctx, query, ref.schemaFilter(), ref.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to query columns of %s: %w", ref, err)
	}
	defer rows.Close()

	cols := orderedmap.NewOrderedMap[string, Column]()
	for rows.Next() {
		var (
			col                      Column
			length, precision, scale sql.NullInt64
			nullable                 string
		)
		if err := rows.Scan(&col.Name, &col.Ordinal, &col.DataType, &length, &precision, &scale, &nullable); err != nil {
			return nil, fmt.Errorf("failed to scan column of %s: %w", ref, err)
		}
		col.DataType = strings.ToUpper(col.DataType)
		col.Length = length.Int64
		col.HasLength = length.Valid && length.Int64 > 0 && length.Int64 <= maxDeclaredLength
		col.Precision = precision.Int64
		col.Scale = scale.Int64
		col.Nullable = strings.EqualFold(nullable, "YES")
		cols.Set(col.Name, col)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating columns of %s: %w", ref, err)
	}
	if cols.Len() == 0 {
		return nil, fmt.Errorf("table %s not found or has no columns", ref)
	}

	return cols, nil
}

func (d *Dataset) sqliteColumns(ctx context.Context, ref TableRef) (*orderedmap.OrderedMap[string, Column], error) {
	const query = `SELECT cid, name, type, "notnull" FROM pragma_table_info(?) ORDER BY cid`

	rows, err := d.DB.QueryContext(ctx, query, ref.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to query columns of %s: %w", ref, err)
	}
	defer rows.Close()

	cols := orderedmap.NewOrderedMap[string, Column]()
	for rows.Next() {
		var (
			cid     int
			name    string
			decl    string
			notNull int
		)
		if err := rows.Scan(&cid, &name, &decl, &notNull); err != nil {
			return nil, fmt.Errorf("failed to scan column of %s: %w", ref, err)
		}
		col := Column{
			Ordinal:  cid + 1,
			Name:     name,
			Nullable: notNull == 0,
		}
		col.DataType, col.Length, col.Precision, col.Scale = parseDeclaredType(decl)
		col.HasLength = col.Length > 0 && col.Length <= maxDeclaredLength
		cols.Set(col.Name, col)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating columns of %s: %w", ref, err)
	}
	if cols.Len() == 0 {
		return nil, fmt.Errorf("table %s not found or has no columns", ref)
	}

	return cols, nil
}

// CountRows returns the number of rows in the table.
func (d *Dataset) CountRows(ctx context.Context, ref TableRef) (int64, error) {
	query := "SELECT COUNT(*) FROM " + ref.QualifiedName()

	var count int64
	if err := d.DB.QueryRowContext(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count rows of %s: %w", ref, err)
	}
	return count, nil
}
