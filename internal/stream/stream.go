// Package stream provides the output streams GoExport writes data files into:
// zip or tar archives, plain directories, optionally gzip compressed.
package stream

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
)

// Archival selects how data files are packed together.
type Archival string

const (
	ArchivalAuto Archival = "auto"
	ArchivalNone Archival = "none"
	ArchivalZip  Archival = "zip"
	ArchivalTar  Archival = "tar"
)

// Compression selects the compression applied on top of the archive.
type Compression string

const (
	CompressionAuto Compression = "auto"
	CompressionNone Compression = "none"
	CompressionGzip Compression = "gzip"
)

var (
	// ErrSingleEntry is returned when a second entry is created on a stream
	// that can only hold one file.
	ErrSingleEntry = errors.New("stream holds a single entry")
	// ErrClosed is returned when an archive is used after Close.
	ErrClosed = errors.New("archive is closed")
)

// ParseArchival validates an archival name. Empty means auto.
func ParseArchival(s string) (Archival, error) {
	switch a := Archival(strings.ToLower(s)); a {
	case "", ArchivalAuto:
		return ArchivalAuto, nil
	case ArchivalNone, ArchivalZip, ArchivalTar:
		return a, nil
	}
	return "", fmt.Errorf("unknown archival %q", s)
}

// ParseCompression validates a compression name. Empty means auto.
func ParseCompression(s string) (Compression, error) {
	switch c := Compression(strings.ToLower(s)); c {
	case "", CompressionAuto:
		return CompressionAuto, nil
	case CompressionNone, CompressionGzip:
		return c, nil
	}
	return "", fmt.Errorf("unknown compression %q", s)
}

// Detect derives archival and compression from the output's extension.
func Detect(uri string) (Archival, Compression) {
	lower := strings.ToLower(uri)
	switch {
	case strings.HasSuffix(lower, ".tar.gz"), strings.HasSuffix(lower, ".tgz"):
		return ArchivalTar, CompressionGzip
	case strings.HasSuffix(lower, ".tar"):
		return ArchivalTar, CompressionNone
	case strings.HasSuffix(lower, ".zip"):
		return ArchivalZip, CompressionNone
	case strings.HasSuffix(lower, ".gz"):
		return ArchivalNone, CompressionGzip
	}
	return ArchivalNone, CompressionNone
}

// Resolve replaces auto settings with what the output's extension implies.
func Resolve(uri string, a Archival, c Compression) (Archival, Compression) {
	da, dc := Detect(uri)
	if a == "" || a == ArchivalAuto {
		a = da
	}
	if c == "" || c == CompressionAuto {
		c = dc
	}
	return a, c
}

// Archive receives the data files of one export.
type Archive interface {
	// CreateEntry starts a new file. The previous entry must be closed first.
	CreateEntry(name string) (io.WriteCloser, error)
	// Close finishes the archive and releases the streams it owns.
	Close() error
}

// Factory creates archives over files or caller supplied streams.
type Factory struct{}

// NewFactory returns a stream factory.
func NewFactory() *Factory {
	return &Factory{}
}

// Create opens the output at uri. With archival none the output is a
// directory receiving one file per entry; otherwise a single archive file.
func (f *Factory) Create(uri string, a Archival, c Compression) (Archive, error) {
	a, c = Resolve(uri, a, c)

	if a == ArchivalNone {
		return NewDirArchive(outputDir(uri, c), c == CompressionGzip)
	}

	if parent := filepath.Dir(uri); parent != "." {
		if err := os.MkdirAll(parent, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", parent, err)
		}
	}
	file, err := os.Create(uri)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", uri, err)
	}

	archive, err := f.open(file, a, c, file)
	if err != nil {
		file.Close()
		os.Remove(uri)
		return nil, err
	}
	return archive, nil
}

// Open wraps a caller supplied writer. The writer is not closed by the
// archive. Archival none (or auto) yields a stream that takes one entry.
func (f *Factory) Open(w io.Writer, a Archival, c Compression) (Archive, error) {
	if a == "" || a == ArchivalAuto {
		a = ArchivalNone
	}
	if c == "" || c == CompressionAuto {
		c = CompressionNone
	}
	return f.open(w, a, c, nil)
}

func (f *Factory) open(w io.Writer, a Archival, c Compression, owned io.Closer) (Archive, error) {
	var closers []io.Closer
	if owned != nil {
		closers = append(closers, owned)
	}

	switch c {
	case CompressionNone:
	case CompressionGzip:
		gz := gzip.NewWriter(w)
		closers = append(closers, gz)
		w = gz
	default:
		return nil, fmt.Errorf("unknown compression %q", c)
	}

	switch a {
	case ArchivalZip:
		return newZipArchive(w, closers), nil
	case ArchivalTar:
		return newTarArchive(w, closers), nil
	case ArchivalNone:
		return newSingleArchive(w, closers), nil
	}
	closeAll(closers)
	return nil, fmt.Errorf("unknown archival %q", a)
}

// closeAll closes in reverse order and returns the first error.
func closeAll(closers []io.Closer) error {
	var first error
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i].Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// nopEntry adapts an archive's writer to an entry that needs no close.
type nopEntry struct {
	io.Writer
}

func (nopEntry) Close() error { return nil }

// singleArchive writes its one entry straight to the stream.
type singleArchive struct {
	w       io.Writer
	closers []io.Closer
	used    bool
	closed  bool
}

func newSingleArchive(w io.Writer, closers []io.Closer) *singleArchive {
	return &singleArchive{w: w, closers: closers}
}

func (s *singleArchive) CreateEntry(name string) (io.WriteCloser, error) {
	if s.closed {
		return nil, ErrClosed
	}
	if s.used {
		return nil, fmt.Errorf("%w: cannot add %s", ErrSingleEntry, name)
	}
	s.used = true
	return nopEntry{s.w}, nil
}

func (s *singleArchive) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return closeAll(s.closers)
}
