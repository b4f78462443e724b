package stream

import (
	"fmt"
	"io"
	"time"

	"github.com/klauspost/compress/zip"
)

// zipArchive streams deflated entries into a zip file.
type zipArchive struct {
	zw      *zip.Writer
	closers []io.Closer
	closed  bool
}

func newZipArchive(w io.Writer, closers []io.Closer) *zipArchive {
	return &zipArchive{zw: zip.NewWriter(w), closers: closers}
}

func (z *zipArchive) CreateEntry(name string) (io.WriteCloser, error) {
	if z.closed {
		return nil, ErrClosed
	}
	w, err := z.zw.CreateHeader(&zip.FileHeader{
		Name:     name,
		Method:   zip.Deflate,
		Modified: time.Now(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create zip entry %s: %w", name, err)
	}
	return nopEntry{w}, nil
}

func (z *zipArchive) Close() error {
	if z.closed {
		return nil
	}
	z.closed = true

	err := z.zw.Close()
	if cerr := closeAll(z.closers); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("failed to close zip archive: %w", err)
	}
	return nil
}
