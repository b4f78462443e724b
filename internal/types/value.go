package types

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	mssql "github.com/microsoft/go-mssqldb"
)

// Layouts used when rendering temporal values as text.
const (
	DateLayout     = "2006-01-02"
	TimeLayout     = "15:04:05.9999999"
	DateTimeLayout = time.RFC3339Nano
)

// IsDateType reports whether the database type name holds a date without time.
func IsDateType(dbType string) bool {
	return strings.EqualFold(dbType, "DATE")
}

// IsTimeType reports whether the database type name holds a time of day only.
func IsTimeType(dbType string) bool {
	switch strings.ToUpper(dbType) {
	case "TIME", "TIMETZ":
		return true
	}
	return false
}

// FormatTime renders t according to the column's database type.
// Date-times always carry their zone offset, "Z" for UTC.
func FormatTime(t time.Time, dbType string) string {
	switch {
	case IsDateType(dbType):
		return t.Format(DateLayout)
	case IsTimeType(dbType):
		return t.Format(TimeLayout)
	default:
		return t.Format(DateTimeLayout)
	}
}

// FormatValue renders a scanned column value as text.
// nil becomes the empty string and the second return value reports it.
func FormatValue(v interface{}, dbType string) (string, bool) {
	switch x := v.(type) {
	case nil:
		return "", true
	case string:
		return x, false
	case []byte:
		if strings.EqualFold(dbType, "UNIQUEIDENTIFIER") && len(x) == 16 {
			var id mssql.UniqueIdentifier
			if err := id.Scan(x); err == nil {
				return id.String(), false
			}
		}
		return string(x), false
	case bool:
		return strconv.FormatBool(x), false
	case int64:
		return strconv.FormatInt(x, 10), false
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64), false
	case float32:
		return strconv.FormatFloat(float64(x), 'g', -1, 32), false
	case time.Time:
		return FormatTime(x, dbType), false
	}

	if n, ok := ToInt64(v); ok {
		return strconv.FormatInt(n, 10), false
	}
	return fmt.Sprint(v), false
}
