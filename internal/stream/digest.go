package stream

import (
	"archive/tar"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"
)

// Digests reads back the output Factory.Create wrote at uri and returns the
// hex encoded sha256 of each named entry's content. Entries missing from the
// output are absent from the map.
func Digests(uri string, a Archival, c Compression, names []string) (map[string]string, error) {
	a, c = Resolve(uri, a, c)

	want := make(map[string]bool, len(names))
	for _, name := range names {
		want[name] = true
	}

	switch a {
	case ArchivalNone:
		return dirDigests(outputDir(uri, c), c == CompressionGzip, names)
	case ArchivalZip:
		if c == CompressionGzip {
			return gzipZipDigests(uri, want)
		}
		zr, err := zip.OpenReader(uri)
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", uri, err)
		}
		defer zr.Close()
		return zipDigests(&zr.Reader, want)
	case ArchivalTar:
		return tarDigests(uri, c == CompressionGzip, want)
	}
	return nil, fmt.Errorf("unknown archival %q", a)
}

// outputDir is the directory an archival none output writes into.
func outputDir(uri string, c Compression) string {
	if c == CompressionGzip {
		return uri[:len(uri)-len(filepath.Ext(uri))]
	}
	return uri
}

func hashReader(r io.Reader) (string, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func dirDigests(dir string, gzipped bool, names []string) (map[string]string, error) {
	out := make(map[string]string, len(names))
	for _, name := range names {
		path := filepath.Join(dir, filepath.FromSlash(name))
		if gzipped {
			path += ".gz"
		}
		sum, err := fileDigest(path, gzipped)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		out[name] = sum
	}
	return out, nil
}

func fileDigest(path string, gzipped bool) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	var r io.Reader = f
	if gzipped {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return "", err
		}
		defer gz.Close()
		r = gz
	}
	return hashReader(r)
}

func zipDigests(zr *zip.Reader, want map[string]bool) (map[string]string, error) {
	out := make(map[string]string, len(want))
	for _, f := range zr.File {
		if !want[f.Name] {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to open zip entry %s: %w", f.Name, err)
		}
		sum, err := hashReader(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read zip entry %s: %w", f.Name, err)
		}
		out[f.Name] = sum
	}
	return out, nil
}

// gzipZipDigests unpacks a gzip compressed zip to a temp file, since the
// zip directory needs random access.
func gzipZipDigests(uri string, want map[string]bool) (map[string]string, error) {
	f, err := os.Open(uri)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", uri, err)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read gzip stream of %s: %w", uri, err)
	}
	defer gz.Close()

	tmp, err := os.CreateTemp("", "goexport-verify-*.zip")
	if err != nil {
		return nil, fmt.Errorf("failed to create spool for %s: %w", uri, err)
	}
	defer os.Remove(tmp.Name())
	defer tmp.Close()

	size, err := io.Copy(tmp, gz)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack %s: %w", uri, err)
	}
	zr, err := zip.NewReader(tmp, size)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", uri, err)
	}
	return zipDigests(zr, want)
}

func tarDigests(uri string, gzipped bool, want map[string]bool) (map[string]string, error) {
	f, err := os.Open(uri)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", uri, err)
	}
	defer f.Close()

	var r io.Reader = f
	if gzipped {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("failed to read gzip stream of %s: %w", uri, err)
		}
		defer gz.Close()
		r = gz
	}

	out := make(map[string]string, len(want))
	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", uri, err)
		}
		if !want[hdr.Name] {
			continue
		}
		sum, err := hashReader(tr)
		if err != nil {
			return nil, fmt.Errorf("failed to read tar entry %s: %w", hdr.Name, err)
		}
		out[hdr.Name] = sum
	}
}
