package stream

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/gzip"
)

// DirArchive writes each entry as a plain file under a directory, gzip
// compressed with a .gz suffix when requested.
type DirArchive struct {
	dir    string
	gzip   bool
	closed bool
}

// NewDirArchive creates the directory if needed.
func NewDirArchive(dir string, gzipEntries bool) (*DirArchive, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory %s: %w", dir, err)
	}
	return &DirArchive{dir: dir, gzip: gzipEntries}, nil
}

// Dir returns the output directory.
func (d *DirArchive) Dir() string {
	return d.dir
}

// CreateEntry creates dir/name, with parent directories.
func (d *DirArchive) CreateEntry(name string) (io.WriteCloser, error) {
	if d.closed {
		return nil, ErrClosed
	}

	target := filepath.Join(d.dir, filepath.FromSlash(name))
	if d.gzip {
		target += ".gz"
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create directory for %s: %w", name, err)
	}

	file, err := os.Create(target)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", target, err)
	}
	if !d.gzip {
		return file, nil
	}
	return &gzipFile{Writer: gzip.NewWriter(file), file: file}, nil
}

// Close marks the archive closed. Entries are closed by their writers.
func (d *DirArchive) Close() error {
	d.closed = true
	return nil
}

type gzipFile struct {
	*gzip.Writer
	file *os.File
}

func (g *gzipFile) Close() error {
	err := g.Writer.Close()
	if cerr := g.file.Close(); err == nil {
		err = cerr
	}
	return err
}
