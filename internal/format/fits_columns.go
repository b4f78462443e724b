package format

import (
	"fmt"
	"math"

	"github.com/dbsmedya/goexport/internal/schema"
)

// FitsColumn is a result set column mapped onto a FITS binary table field.
type FitsColumn struct {
	Source   schema.Column
	Code     byte  // TFORM data type letter: L B I J K E D A
	Repeat   int   // element count, the string or byte width for A and binary B
	Null     int64 // TNULL sentinel, meaningful when HasNull
	HasNull  bool
	Binary   bool // B array holding raw bytes rather than one unsigned byte
	Fallback bool // type not recognised, written as text
}

// TForm renders the TFORMn value, e.g. "1J" or "32A".
func (c FitsColumn) TForm() string {
	return fmt.Sprintf("%d%c", c.Repeat, c.Code)
}

// Width is the number of bytes the field takes in a row.
func (c FitsColumn) Width() int {
	return c.Repeat * elementSize(c.Code)
}

func elementSize(code byte) int {
	switch code {
	case 'I':
		return 2
	case 'J', 'E':
		return 4
	case 'K', 'D':
		return 8
	default:
		return 1
	}
}

// Text widths of temporal values. Date-times allow for an RFC 3339 offset.
const (
	fitsDateWidth     = 10
	fitsTimeWidth     = 16
	fitsDateTimeWidth = 35
	fitsGUIDWidth     = 36
)

// FitsColumns maps columns onto binary table fields. Character and binary
// columns without a declared length get maxWidth bytes.
func FitsColumns(cols []schema.Column, maxWidth int) []FitsColumn {
	out := make([]FitsColumn, len(cols))
	for i, col := range cols {
		out[i] = fitsColumn(col, maxWidth)
	}
	return out
}

func fitsColumn(col schema.Column, maxWidth int) FitsColumn {
	fc := FitsColumn{Source: col, Repeat: 1}

	declared := maxWidth
	if col.HasLength {
		declared = int(col.Length)
	}

	switch col.DataType {
	case "BIT", "BOOL", "BOOLEAN":
		fc.Code = 'L'
	case "UNSIGNED TINYINT":
		// Every byte value is legal, so a nullable column widens to make room
		// for the sentinel.
		fc.Code = 'B'
		if col.Nullable {
			fc.Code = 'I'
			fc.setNull(col, math.MinInt16)
		}
	case "TINYINT", "SMALLINT", "INT2", "SMALLSERIAL", "YEAR":
		fc.Code = 'I'
		fc.setNull(col, math.MinInt16)
	case "INT4", "MEDIUMINT", "SERIAL", "UNSIGNED SMALLINT", "UNSIGNED MEDIUMINT":
		fc.Code = 'J'
		fc.setNull(col, math.MinInt32)
	case "BIGINT", "INT8", "INT", "INTEGER", "BIGSERIAL", "UNSIGNED INT", "UNSIGNED BIGINT":
		fc.Code = 'K'
		fc.setNull(col, math.MinInt64)
	case "REAL", "FLOAT4":
		fc.Code = 'E'
	case "FLOAT", "FLOAT8", "DOUBLE", "DOUBLE PRECISION", "DECIMAL", "NUMERIC",
		"NUMBER", "MONEY", "SMALLMONEY":
		fc.Code = 'D'
	case "CHAR", "NCHAR", "VARCHAR", "NVARCHAR", "TEXT", "NTEXT", "CHARACTER",
		"CHARACTER VARYING", "BPCHAR", "TINYTEXT", "MEDIUMTEXT", "LONGTEXT",
		"XML", "JSON", "JSONB", "SYSNAME", "CLOB":
		fc.Code = 'A'
		fc.Repeat = declared
	case "DATE":
		fc.Code = 'A'
		fc.Repeat = fitsDateWidth
	case "TIME", "TIMETZ", "TIME WITHOUT TIME ZONE", "TIME WITH TIME ZONE":
		fc.Code = 'A'
		fc.Repeat = fitsTimeWidth
	case "DATETIME", "DATETIME2", "SMALLDATETIME", "DATETIMEOFFSET", "TIMESTAMP",
		"TIMESTAMPTZ", "TIMESTAMP WITHOUT TIME ZONE", "TIMESTAMP WITH TIME ZONE":
		fc.Code = 'A'
		fc.Repeat = fitsDateTimeWidth
	case "UNIQUEIDENTIFIER", "UUID":
		fc.Code = 'A'
		fc.Repeat = fitsGUIDWidth
	case "BINARY", "VARBINARY", "BYTEA", "BLOB", "TINYBLOB", "MEDIUMBLOB",
		"LONGBLOB", "IMAGE", "ROWVERSION":
		fc.Code = 'B'
		fc.Repeat = declared
		fc.Binary = true
	default:
		fc.Code = 'A'
		fc.Repeat = declared
		fc.Fallback = true
	}

	if fc.Repeat < 1 {
		fc.Repeat = 1
	}
	return fc
}

func (c *FitsColumn) setNull(col schema.Column, sentinel int64) {
	if col.Nullable {
		c.Null = sentinel
		c.HasNull = true
	}
}
