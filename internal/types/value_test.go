package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormatValue(t *testing.T) {
	ts := time.Date(2024, 3, 1, 13, 45, 30, 500000000, time.UTC)
	// SQL Server stores the first three groups of a GUID little-endian.
	guid := []byte{0x67, 0x45, 0x23, 0x01, 0xab, 0x89, 0xef, 0xcd, 0x01, 0x23, 0x45, 0x67, 0x89, 0xab, 0xcd, 0xef}

	tests := []struct {
		name     string
		value    interface{}
		dbType   string
		expected string
		isNull   bool
	}{
		{name: "nil", value: nil, dbType: "INT", expected: "", isNull: true},
		{name: "string", value: "hello", dbType: "NVARCHAR", expected: "hello"},
		{name: "bytes", value: []byte("12.50"), dbType: "DECIMAL", expected: "12.50"},
		{name: "bool", value: true, dbType: "BIT", expected: "true"},
		{name: "int64", value: int64(-5), dbType: "BIGINT", expected: "-5"},
		{name: "int32", value: int32(7), dbType: "INT", expected: "7"},
		{name: "float64", value: 0.1, dbType: "FLOAT", expected: "0.1"},
		{name: "float32", value: float32(1.5), dbType: "REAL", expected: "1.5"},
		{name: "datetime", value: ts, dbType: "DATETIME2", expected: "2024-03-01T13:45:30.5Z"},
		{name: "date", value: ts, dbType: "DATE", expected: "2024-03-01"},
		{name: "time", value: ts, dbType: "TIME", expected: "13:45:30.5"},
		{name: "guid", value: guid, dbType: "UNIQUEIDENTIFIER", expected: "01234567-89AB-CDEF-0123-456789ABCDEF"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, isNull := FormatValue(tt.value, tt.dbType)
			assert.Equal(t, tt.expected, got)
			assert.Equal(t, tt.isNull, isNull)
		})
	}
}

func TestFormatTimeKeepsOffset(t *testing.T) {
	zone := time.FixedZone("CET", 3600)
	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, zone)
	assert.Equal(t, "2024-01-02T03:04:05+01:00", FormatTime(ts, "DATETIMEOFFSET"))

	utc := time.Date(2024, 1, 2, 3, 4, 5, 123456789, time.UTC)
	assert.Equal(t, "2024-01-02T03:04:05.123456789Z", FormatTime(utc, "TIMESTAMP"))

	local := time.Date(2024, 1, 2, 3, 4, 5, 0, time.Local)
	got := FormatTime(local, "DATETIME2")
	assert.Equal(t, local.Format(time.RFC3339), got)
	assert.Contains(t, "Z+-", got[19:20], "local times keep their offset")
}

func TestResultString(t *testing.T) {
	r := Result{TableName: "TestData", FileName: "TestData.csv", RecordsAffected: 42}
	assert.Equal(t, "TestData > TestData.csv (42 rows)", r.String())
}
