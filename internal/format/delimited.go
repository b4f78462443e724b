package format

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/dbsmedya/goexport/internal/schema"
	"github.com/dbsmedya/goexport/internal/types"
)

// DelimitedFile writes rows as delimited text with an optional header line.
type DelimitedFile struct {
	name      string
	extension string
	header    bool
	w         *csv.Writer
	cols      []schema.Column
	record    []string
}

// NewDelimitedFile creates a delimited text writer over w.
func NewDelimitedFile(name, extension string, w io.Writer, delimiter rune, header bool) *DelimitedFile {
	cw := csv.NewWriter(w)
	cw.Comma = delimiter
	return &DelimitedFile{
		name:      name,
		extension: extension,
		header:    header,
		w:         cw,
	}
}

func (f *DelimitedFile) Name() string      { return f.name }
func (f *DelimitedFile) Extension() string { return f.extension }

// WriteHeader records the columns and writes the header line when enabled.
func (f *DelimitedFile) WriteHeader(cols []schema.Column) error {
	f.cols = cols
	f.record = make([]string, len(cols))
	if !f.header {
		return nil
	}
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	if err := f.w.Write(names); err != nil {
		return fmt.Errorf("failed to write header of %s: %w", f.name, err)
	}
	return nil
}

// WriteRow writes one record. NULL values are written as empty fields.
func (f *DelimitedFile) WriteRow(values []interface{}) error {
	if len(values) != len(f.cols) {
		return fmt.Errorf("%s: row has %d values, expected %d", f.name, len(values), len(f.cols))
	}
	for i, v := range values {
		f.record[i], _ = types.FormatValue(v, f.cols[i].DataType)
	}
	if err := f.w.Write(f.record); err != nil {
		return fmt.Errorf("failed to write row of %s: %w", f.name, err)
	}
	return nil
}

// Close flushes buffered records.
func (f *DelimitedFile) Close() error {
	f.w.Flush()
	if err := f.w.Error(); err != nil {
		return fmt.Errorf("failed to flush %s: %w", f.name, err)
	}
	return nil
}
