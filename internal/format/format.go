// Package format provides the file formats GoExport writes table data in.
package format

import (
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/dbsmedya/goexport/internal/config"
	"github.com/dbsmedya/goexport/internal/schema"
)

// ErrUnknownFormat is returned when no format matches a name or extension.
var ErrUnknownFormat = errors.New("unknown file format")

// DataFile writes one result set to a stream.
type DataFile interface {
	// Name is the file name the data file was created for.
	Name() string
	// Extension is the canonical extension of the format, with the dot.
	Extension() string
	WriteHeader(cols []schema.Column) error
	WriteRow(values []interface{}) error
	// Close flushes buffered data. It does not close the underlying writer.
	Close() error
}

// Descriptor describes a registered format.
type Descriptor struct {
	Name        string
	Extensions  []string
	MimeType    string
	Description string
}

// Constructor creates a data file of one format.
type Constructor func(fileName string, w io.Writer) DataFile

type registration struct {
	desc   Descriptor
	create Constructor
}

// Factory maps format names and file extensions to data file constructors.
type Factory struct {
	formats map[string]registration
	byExt   map[string]string
	order   []string
}

// NewFactory returns a factory with the built-in formats registered.
func NewFactory(cfg config.FormatsConfig) *Factory {
	f := &Factory{
		formats: make(map[string]registration),
		byExt:   make(map[string]string),
	}

	delim := ','
	if r := []rune(cfg.CSV.Delimiter); len(r) == 1 {
		delim = r[0]
	}
	maxWidth := cfg.FITS.MaxStringWidth
	if maxWidth <= 0 {
		maxWidth = config.DefaultConfig().Formats.FITS.MaxStringWidth
	}

	f.Register(Descriptor{
		Name:        "csv",
		Extensions:  []string{".csv", ".txt"},
		MimeType:    "text/csv",
		Description: "Comma separated values",
	}, func(name string, w io.Writer) DataFile {
		return NewDelimitedFile(name, ".csv", w, delim, cfg.CSV.Header)
	})

	f.Register(Descriptor{
		Name:        "tsv",
		Extensions:  []string{".tsv"},
		MimeType:    "text/tab-separated-values",
		Description: "Tab separated values",
	}, func(name string, w io.Writer) DataFile {
		return NewDelimitedFile(name, ".tsv", w, '\t', cfg.CSV.Header)
	})

	f.Register(Descriptor{
		Name:        "fits",
		Extensions:  []string{".fits", ".fit", ".fts"},
		MimeType:    "application/fits",
		Description: "FITS binary table",
	}, func(name string, w io.Writer) DataFile {
		return NewFitsFile(name, w, maxWidth)
	})

	return f
}

// Register adds a format. A later registration replaces an earlier one with
// the same name or extension.
func (f *Factory) Register(desc Descriptor, create Constructor) {
	name := strings.ToLower(desc.Name)
	if _, exists := f.formats[name]; !exists {
		f.order = append(f.order, name)
	}
	f.formats[name] = registration{desc: desc, create: create}
	for _, ext := range desc.Extensions {
		f.byExt[strings.ToLower(ext)] = name
	}
}

// Formats lists the registered formats in registration order.
func (f *Factory) Formats() []Descriptor {
	out := make([]Descriptor, 0, len(f.order))
	for _, name := range f.order {
		out = append(out, f.formats[name].desc)
	}
	return out
}

// Lookup finds a format by name ("fits") or extension (".fits" or "fits").
func (f *Factory) Lookup(nameOrExt string) (Descriptor, error) {
	reg, err := f.lookup(nameOrExt)
	if err != nil {
		return Descriptor{}, err
	}
	return reg.desc, nil
}

func (f *Factory) lookup(nameOrExt string) (registration, error) {
	key := strings.ToLower(strings.TrimSpace(nameOrExt))
	if reg, ok := f.formats[key]; ok {
		return reg, nil
	}
	if !strings.HasPrefix(key, ".") {
		key = "." + key
	}
	if name, ok := f.byExt[key]; ok {
		return f.formats[name], nil
	}
	return registration{}, fmt.Errorf("%w: %q", ErrUnknownFormat, nameOrExt)
}

// Create picks the format from the file name's extension.
func (f *Factory) Create(fileName string, w io.Writer) (DataFile, error) {
	ext := path.Ext(fileName)
	if ext == "" {
		return nil, fmt.Errorf("%w: file %q has no extension", ErrUnknownFormat, fileName)
	}
	return f.CreateNamed(ext, fileName, w)
}

// CreateNamed creates a data file of an explicit format. An empty format
// falls back to the file extension.
func (f *Factory) CreateNamed(format, fileName string, w io.Writer) (DataFile, error) {
	if format == "" {
		return f.Create(fileName, w)
	}
	reg, err := f.lookup(format)
	if err != nil {
		return nil, err
	}
	return reg.create(fileName, w), nil
}

// Resolve returns the format name a table's file will be written in.
func (f *Factory) Resolve(format, fileName string) (string, error) {
	if format == "" {
		format = path.Ext(fileName)
		if format == "" {
			return "", fmt.Errorf("%w: file %q has no extension", ErrUnknownFormat, fileName)
		}
	}
	reg, err := f.lookup(format)
	if err != nil {
		return "", err
	}
	return reg.desc.Name, nil
}
