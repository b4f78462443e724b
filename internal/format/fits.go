package format

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"path"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/dbsmedya/goexport/internal/schema"
	"github.com/dbsmedya/goexport/internal/types"
)

// FitsFile writes a result set as a FITS file: an empty primary HDU followed
// by one BINTABLE extension. Rows are spooled to a temporary file until
// Close, when the row count for NAXIS2 is known.
type FitsFile struct {
	name     string
	w        io.Writer
	maxWidth int

	cols     []FitsColumn
	rowWidth int
	row      []byte
	spool    *os.File
	buf      *bufio.Writer
	rows     int64
	closed   bool
}

// NewFitsFile creates a FITS writer over w.
func NewFitsFile(name string, w io.Writer, maxWidth int) *FitsFile {
	return &FitsFile{
		name:     name,
		w:        w,
		maxWidth: maxWidth,
	}
}

func (f *FitsFile) Name() string      { return f.name }
func (f *FitsFile) Extension() string { return ".fits" }

// Columns returns the binary table fields, available after WriteHeader.
func (f *FitsFile) Columns() []FitsColumn {
	return f.cols
}

// WriteHeader maps the columns and opens the row spool.
func (f *FitsFile) WriteHeader(cols []schema.Column) error {
	if f.spool != nil {
		return fmt.Errorf("%s: header already written", f.name)
	}
	if len(cols) > fitsMaxFields {
		return fmt.Errorf("%s: %d columns exceed the FITS limit of %d", f.name, len(cols), fitsMaxFields)
	}

	f.cols = FitsColumns(cols, f.maxWidth)
	f.rowWidth = 0
	for _, c := range f.cols {
		f.rowWidth += c.Width()
	}
	f.row = make([]byte, f.rowWidth)

	spool, err := os.CreateTemp("", "goexport-fits-*")
	if err != nil {
		return fmt.Errorf("%s: failed to create row spool: %w", f.name, err)
	}
	f.spool = spool
	f.buf = bufio.NewWriterSize(spool, 64*1024)
	return nil
}

// WriteRow encodes one row big-endian into the spool.
func (f *FitsFile) WriteRow(values []interface{}) error {
	if f.spool == nil {
		return fmt.Errorf("%s: WriteRow called before WriteHeader", f.name)
	}
	if len(values) != len(f.cols) {
		return fmt.Errorf("%s: row has %d values, expected %d", f.name, len(values), len(f.cols))
	}

	off := 0
	for i, c := range f.cols {
		w := c.Width()
		if err := encodeField(f.row[off:off+w], c, values[i]); err != nil {
			return fmt.Errorf("%s: column %s: %w", f.name, c.Source.Name, err)
		}
		off += w
	}

	if _, err := f.buf.Write(f.row); err != nil {
		return fmt.Errorf("%s: failed to spool row: %w", f.name, err)
	}
	f.rows++
	return nil
}

// Rows returns the number of rows written so far.
func (f *FitsFile) Rows() int64 {
	return f.rows
}

// Close writes both HDUs to the underlying writer and removes the spool.
func (f *FitsFile) Close() error {
	if f.closed {
		return nil
	}
	f.closed = true
	defer f.removeSpool()

	if f.buf != nil {
		if err := f.buf.Flush(); err != nil {
			return fmt.Errorf("%s: failed to flush row spool: %w", f.name, err)
		}
	}

	if _, err := f.primaryHeader().WriteTo(f.w); err != nil {
		return fmt.Errorf("%s: failed to write primary header: %w", f.name, err)
	}
	if _, err := f.tableHeader().WriteTo(f.w); err != nil {
		return fmt.Errorf("%s: failed to write table header: %w", f.name, err)
	}

	if f.spool == nil {
		return nil
	}
	if _, err := f.spool.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("%s: failed to rewind row spool: %w", f.name, err)
	}
	n, err := io.Copy(f.w, f.spool)
	if err != nil {
		return fmt.Errorf("%s: failed to copy table data: %w", f.name, err)
	}
	if rem := n % fitsBlockSize; rem != 0 {
		if _, err := f.w.Write(make([]byte, fitsBlockSize-rem)); err != nil {
			return fmt.Errorf("%s: failed to pad table data: %w", f.name, err)
		}
	}
	return nil
}

func (f *FitsFile) removeSpool() {
	if f.spool == nil {
		return
	}
	f.spool.Close()
	os.Remove(f.spool.Name())
}

func (f *FitsFile) primaryHeader() *fitsHeader {
	h := &fitsHeader{}
	h.logical("SIMPLE", true, "conforms to FITS standard")
	h.integer("BITPIX", 8, "array data type")
	h.integer("NAXIS", 0, "no primary data array")
	h.logical("EXTEND", true, "extensions follow")
	return h
}

func (f *FitsFile) tableHeader() *fitsHeader {
	h := &fitsHeader{}
	h.str("XTENSION", "BINTABLE", "binary table extension")
	h.integer("BITPIX", 8, "8-bit bytes")
	h.integer("NAXIS", 2, "2-dimensional table")
	h.integer("NAXIS1", int64(f.rowWidth), "width of table in bytes")
	h.integer("NAXIS2", f.rows, "number of rows in table")
	h.integer("PCOUNT", 0, "size of special data area")
	h.integer("GCOUNT", 1, "one data group")
	h.integer("TFIELDS", int64(len(f.cols)), "number of fields in each row")

	for i, c := range f.cols {
		n := strconv.Itoa(i + 1)
		h.str("TTYPE"+n, c.Source.Name, "")
		h.str("TFORM"+n, c.TForm(), "")
		if c.HasNull {
			h.integer("TNULL"+n, c.Null, "")
		}
	}

	h.str("EXTNAME", strings.TrimSuffix(path.Base(f.name), path.Ext(f.name)), "table name")
	return h
}

// encodeField writes one value into its slot of the row buffer.
func encodeField(dst []byte, c FitsColumn, v interface{}) error {
	switch c.Code {
	case 'L':
		dst[0] = 0
		if v == nil {
			return nil
		}
		b, ok := toLogical(v)
		if !ok {
			return conversionError(c, v)
		}
		dst[0] = 'F'
		if b {
			dst[0] = 'T'
		}
		return nil

	case 'A':
		clear(dst)
		if v == nil {
			return nil
		}
		s, _ := types.FormatValue(v, c.Source.DataType)
		n := copy(dst, truncateUTF8(s, len(dst)))
		for i := n; i < len(dst); i++ {
			dst[i] = ' '
		}
		return nil

	case 'E', 'D':
		x := math.NaN()
		if v != nil {
			var ok bool
			if x, ok = types.ToFloat64(v); !ok {
				return conversionError(c, v)
			}
		}
		if c.Code == 'E' {
			binary.BigEndian.PutUint32(dst, math.Float32bits(float32(x)))
		} else {
			binary.BigEndian.PutUint64(dst, math.Float64bits(x))
		}
		return nil
	}

	if c.Binary {
		clear(dst)
		switch b := v.(type) {
		case nil:
		case []byte:
			copy(dst, b)
		case string:
			copy(dst, b)
		default:
			return conversionError(c, v)
		}
		return nil
	}

	n := c.Null
	if v != nil {
		var ok bool
		if n, ok = types.ToInt64(v); !ok {
			return conversionError(c, v)
		}
	}
	if !fitsRange(c.Code, n) {
		return fmt.Errorf("value %d out of range for FITS type %s", n, c.TForm())
	}
	switch c.Code {
	case 'B':
		dst[0] = byte(n)
	case 'I':
		binary.BigEndian.PutUint16(dst, uint16(int16(n)))
	case 'J':
		binary.BigEndian.PutUint32(dst, uint32(int32(n)))
	case 'K':
		binary.BigEndian.PutUint64(dst, uint64(n))
	}
	return nil
}

func fitsRange(code byte, n int64) bool {
	switch code {
	case 'B':
		return n >= 0 && n <= math.MaxUint8
	case 'I':
		return n >= math.MinInt16 && n <= math.MaxInt16
	case 'J':
		return n >= math.MinInt32 && n <= math.MaxInt32
	}
	return true
}

// toLogical also accepts the one byte []byte MySQL returns for BIT(1).
func toLogical(v interface{}) (bool, bool) {
	if b, ok := v.([]byte); ok && len(b) == 1 && b[0] <= 1 {
		return b[0] == 1, true
	}
	return types.ToBool(v)
}

// truncateUTF8 cuts s to at most n bytes without splitting a character.
func truncateUTF8(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func conversionError(c FitsColumn, v interface{}) error {
	return fmt.Errorf("cannot convert %T to FITS type %s", v, c.TForm())
}
