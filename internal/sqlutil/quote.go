// Package sqlutil provides SQL dialects and identifier quoting for GoExport.
package sqlutil

import (
	"regexp"
	"strconv"
	"strings"
)

// Dialect identifies the SQL flavour of a source database.
type Dialect string

const (
	SQLServer Dialect = "sqlserver"
	MySQL     Dialect = "mysql"
	Postgres  Dialect = "postgres"
	SQLite    Dialect = "sqlite"
)

// DefaultSchema returns the schema tables live in when none is named.
func (d Dialect) DefaultSchema() string {
	switch d {
	case SQLServer:
		return "dbo"
	case Postgres:
		return "public"
	default:
		return ""
	}
}

// Placeholder returns the bind parameter marker for the n-th (1-based) argument.
func (d Dialect) Placeholder(n int) string {
	switch d {
	case SQLServer:
		return "@p" + strconv.Itoa(n)
	case Postgres:
		return "$" + strconv.Itoa(n)
	default:
		return "?"
	}
}

// QuoteIdentifier quotes an identifier (table name, column name) for the dialect.
// SQL Server uses brackets with ']' doubled, MySQL backticks with '`' doubled,
// PostgreSQL and SQLite double quotes with '"' doubled.
// Example: QuoteIdentifier(SQLServer, "TestData") -> "[TestData]"
func QuoteIdentifier(d Dialect, name string) string {
	switch d {
	case SQLServer:
		return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
	case MySQL:
		return "`" + strings.ReplaceAll(name, "`", "``") + "`"
	default:
		return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
	}
}

// QualifiedName joins the non-empty parts, each quoted for the dialect.
// Example: QualifiedName(SQLServer, "MYDB_Test", "dbo", "TestData") -> "[MYDB_Test].[dbo].[TestData]"
func QualifiedName(d Dialect, parts ...string) string {
	quoted := make([]string, 0, len(parts))
	for _, p := range parts {
		if p == "" {
			continue
		}
		quoted = append(quoted, QuoteIdentifier(d, p))
	}
	return strings.Join(quoted, ".")
}

// validIdentifierRegex restricts identifiers to alphanumerics and underscores.
var validIdentifierRegex = regexp.MustCompile("^[a-zA-Z0-9_]+$")

// IsValidIdentifier checks if a name only contains alphanumeric characters and underscores.
func IsValidIdentifier(name string) bool {
	return validIdentifierRegex.MatchString(name)
}

// QuoteIdentifierSafe quotes an identifier after validating it.
// Returns an error if the identifier contains invalid characters.
func QuoteIdentifierSafe(d Dialect, name string) (string, error) {
	if !IsValidIdentifier(name) {
		return "", &InvalidIdentifierError{Name: name}
	}
	return QuoteIdentifier(d, name), nil
}

// InvalidIdentifierError is returned when an identifier contains invalid characters.
type InvalidIdentifierError struct {
	Name string
}

func (e *InvalidIdentifierError) Error() string {
	return "invalid identifier: " + e.Name + " (must contain only alphanumeric characters and underscores)"
}
