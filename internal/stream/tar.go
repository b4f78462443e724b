package stream

import (
	"archive/tar"
	"fmt"
	"io"
	"os"
	"time"
)

// tarArchive writes a tar stream. Tar headers carry the entry size, so each
// entry is spooled to a temporary file and copied in when it is closed.
type tarArchive struct {
	tw      *tar.Writer
	closers []io.Closer
	current *tarEntry
	closed  bool
}

func newTarArchive(w io.Writer, closers []io.Closer) *tarArchive {
	return &tarArchive{tw: tar.NewWriter(w), closers: closers}
}

func (t *tarArchive) CreateEntry(name string) (io.WriteCloser, error) {
	if t.closed {
		return nil, ErrClosed
	}
	if t.current != nil {
		return nil, fmt.Errorf("tar entry %s is still open", t.current.name)
	}

	spool, err := os.CreateTemp("", "goexport-tar-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create spool for %s: %w", name, err)
	}
	t.current = &tarEntry{archive: t, name: name, spool: spool}
	return t.current, nil
}

func (t *tarArchive) Close() error {
	if t.closed {
		return nil
	}

	var err error
	if t.current != nil {
		err = t.current.Close()
	}
	t.closed = true

	if cerr := t.tw.Close(); err == nil {
		err = cerr
	}
	if cerr := closeAll(t.closers); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("failed to close tar archive: %w", err)
	}
	return nil
}

type tarEntry struct {
	archive *tarArchive
	name    string
	spool   *os.File
	size    int64
}

func (e *tarEntry) Write(p []byte) (int, error) {
	n, err := e.spool.Write(p)
	e.size += int64(n)
	return n, err
}

// Close appends the spooled entry to the archive.
func (e *tarEntry) Close() error {
	if e.archive.current != e {
		return nil
	}
	e.archive.current = nil
	defer func() {
		e.spool.Close()
		os.Remove(e.spool.Name())
	}()

	hdr := &tar.Header{
		Typeflag: tar.TypeReg,
		Name:     e.name,
		Mode:     0o644,
		Size:     e.size,
		ModTime:  time.Now(),
	}
	if err := e.archive.tw.WriteHeader(hdr); err != nil {
		return fmt.Errorf("failed to write tar header for %s: %w", e.name, err)
	}
	if _, err := e.spool.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("failed to rewind spool for %s: %w", e.name, err)
	}
	if _, err := io.Copy(e.archive.tw, e.spool); err != nil {
		return fmt.Errorf("failed to copy %s into tar: %w", e.name, err)
	}
	return nil
}
