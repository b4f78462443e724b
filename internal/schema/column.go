package schema

import (
	"database/sql"
	"strconv"
	"strings"
)

// maxDeclaredLength is the longest column length treated as a real bound.
// Longer lengths are how drivers report MAX/TEXT/CLOB columns.
const maxDeclaredLength = 8000

// Column describes one column of a table or of a live result set.
type Column struct {
	Ordinal   int
	Name      string
	DataType  string // upper case, without length or precision suffix
	Length    int64
	HasLength bool
	Precision int64
	Scale     int64
	Nullable  bool
}

// ColumnsFromTypes builds column descriptors from a result set.
func ColumnsFromTypes(types []*sql.ColumnType) []Column {
	cols := make([]Column, len(types))
	for i, ct := range types {
		col := Column{
			Ordinal:  i + 1,
			Name:     ct.Name(),
			Nullable: true,
		}
		col.DataType, col.Length, col.Precision, col.Scale = parseDeclaredType(ct.DatabaseTypeName())

		if length, ok := ct.Length(); ok {
			col.Length = length
		}
		col.HasLength = col.Length > 0 && col.Length <= maxDeclaredLength

		if precision, scale, ok := ct.DecimalSize(); ok {
			col.Precision, col.Scale = precision, scale
		}
		if nullable, ok := ct.Nullable(); ok {
			col.Nullable = nullable
		}
		cols[i] = col
	}
	return cols
}

// parseDeclaredType splits a declared type such as "VARCHAR(32)" or
// "DECIMAL(10, 2)" into its upper case name and its numeric arguments.
// For single argument types the argument is the length.
func parseDeclaredType(decl string) (name string, length, precision, scale int64) {
	decl = strings.ToUpper(strings.TrimSpace(decl))
	open := strings.IndexByte(decl, '(')
	if open < 0 {
		return decl, 0, 0, 0
	}

	name = strings.TrimSpace(decl[:open])
	closing := strings.IndexByte(decl[open:], ')')
	if closing < 0 {
		return name, 0, 0, 0
	}

	args := strings.Split(decl[open+1:open+closing], ",")
	nums := make([]int64, 0, len(args))
	for _, a := range args {
		n, err := strconv.ParseInt(strings.TrimSpace(a), 10, 64)
		if err != nil {
			return name, 0, 0, 0
		}
		nums = append(nums, n)
	}

	switch len(nums) {
	case 1:
		if isNumericType(name) {
			return name, 0, nums[0], 0
		}
		return name, nums[0], 0, 0
	case 2:
		return name, 0, nums[0], nums[1]
	}
	return name, 0, 0, 0
}

func isNumericType(name string) bool {
	switch name {
	case "DECIMAL", "NUMERIC", "NUMBER", "FLOAT", "DOUBLE", "REAL":
		return true
	}
	return false
}
