// Package exporter provides the table export task for GoExport: it reads
// source tables and writes each one as a data file into an archive.
package exporter

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/dbsmedya/goexport/internal/format"
	"github.com/dbsmedya/goexport/internal/logger"
	"github.com/dbsmedya/goexport/internal/schema"
	"github.com/dbsmedya/goexport/internal/stream"
	"github.com/dbsmedya/goexport/internal/types"
	"github.com/dbsmedya/goexport/internal/verifier"
)

var (
	// ErrSourceDestinationMismatch is returned when sources and destinations differ in number.
	ErrSourceDestinationMismatch = errors.New("number of sources and destinations must match")
	// ErrNoSources is returned when a task has nothing to export.
	ErrNoSources = errors.New("no sources to export")
	// ErrNotOpen is returned when Execute is called before Open.
	ErrNotOpen = errors.New("export task is not open")
	// ErrAlreadyOpen is returned when Open is called twice.
	ErrAlreadyOpen = errors.New("export task is already open")
)

// Destination describes one output data file. An empty Format is derived
// from the file extension.
type Destination struct {
	FileName string
	Format   string
}

// Task exports Sources[i] into Destinations[i] inside the archive at URI.
//
// Usage follows Open, Execute, Close; Results is valid after Execute.
type Task struct {
	URI          string
	Sources      []schema.SourceQuery
	Destinations []Destination
	Archival     stream.Archival
	Compression  stream.Compression
	Verification verifier.VerificationMethod

	// QueryTimeout bounds each source query; zero disables it.
	QueryTimeout time.Duration
	// ProgressInterval is the number of rows between progress log lines; zero disables them.
	ProgressInterval int
	RunID            string

	dataset *schema.Dataset
	formats *format.Factory
	streams *stream.Factory
	logger  *logger.Logger

	archive stream.Archive
	created bool // archive was created at URI and can be read back
	results []types.Result
}

// NewTask creates an export task over a dataset. Each task gets a run ID
// that tags its log lines.
func NewTask(ds *schema.Dataset, formats *format.Factory, streams *stream.Factory, log *logger.Logger) *Task {
	if log == nil {
		log = logger.NewDefault()
	}
	runID := uuid.NewString()
	return &Task{
		Archival:     stream.ArchivalAuto,
		Compression:  stream.CompressionAuto,
		Verification: verifier.MethodCount,
		RunID:        runID,
		dataset:      ds,
		formats:      formats,
		streams:      streams,
		logger:       log.WithRun(runID),
	}
}

// Open validates the source/destination pairing and creates the output at URI.
func (t *Task) Open(ctx context.Context) error {
	if err := t.validate(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	archive, err := t.streams.Create(t.URI, t.Archival, t.Compression)
	if err != nil {
		return fmt.Errorf("failed to open output %s: %w", t.URI, err)
	}
	t.archive = archive
	t.created = true

	a, c := stream.Resolve(t.URI, t.Archival, t.Compression)
	t.logger.Infow("Export output opened",
		"uri", t.URI,
		"archival", a,
		"compression", c,
		"tables", len(t.Sources),
	)
	return nil
}

// OpenStream wraps a caller supplied writer instead of creating a file. The
// writer is not closed by the task.
func (t *Task) OpenStream(ctx context.Context, w io.Writer) error {
	if err := t.validate(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	archive, err := t.streams.Open(w, t.Archival, t.Compression)
	if err != nil {
		return fmt.Errorf("failed to wrap output stream: %w", err)
	}
	t.archive = archive
	t.created = false
	return nil
}

// OpenArchive uses an archive the caller already built, e.g. with
// stream.Factory.Open. The task closes it in Close.
func (t *Task) OpenArchive(archive stream.Archive) error {
	if err := t.validate(); err != nil {
		return err
	}
	t.archive = archive
	t.created = false
	return nil
}

func (t *Task) validate() error {
	if t.archive != nil {
		return ErrAlreadyOpen
	}
	if len(t.Sources) == 0 {
		return ErrNoSources
	}
	if len(t.Sources) != len(t.Destinations) {
		return fmt.Errorf("%w: %d sources, %d destinations", ErrSourceDestinationMismatch, len(t.Sources), len(t.Destinations))
	}

	seen := make(map[string]bool, len(t.Destinations))
	for _, d := range t.Destinations {
		if d.FileName == "" {
			return fmt.Errorf("destination file name is empty")
		}
		if seen[d.FileName] {
			return fmt.Errorf("destination %s is used more than once", d.FileName)
		}
		seen[d.FileName] = true
		if _, err := t.formats.Resolve(d.Format, d.FileName); err != nil {
			return err
		}
	}
	return nil
}

// Execute exports every source in order. Results of the tables finished
// before an error are kept.
func (t *Task) Execute(ctx context.Context) error {
	if t.archive == nil {
		return ErrNotOpen
	}

	started := time.Now()
	t.results = t.results[:0]

	for i, src := range t.Sources {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("export interrupted: %w", err)
		}

		result, err := t.exportTable(ctx, src, t.Destinations[i])
		if err != nil {
			return fmt.Errorf("failed to export %s: %w", src.Name(), err)
		}
		t.results = append(t.results, *result)
	}

	var rows int64
	for _, r := range t.results {
		rows += r.RecordsAffected
	}
	t.logger.Infow("Export completed",
		"tables", len(t.results),
		"rows", rows,
		"duration", time.Since(started),
	)
	return nil
}

// exportTable streams one source into one archive entry. Resources are
// released in reverse order of acquisition: data file, entry, reader.
func (t *Task) exportTable(ctx context.Context, src schema.SourceQuery, dest Destination) (*types.Result, error) {
	log := t.logger.WithTable(src.Name()).WithFile(dest.FileName)
	started := time.Now()

	formatName, err := t.formats.Resolve(dest.Format, dest.FileName)
	if err != nil {
		return nil, err
	}

	qctx := ctx
	if t.QueryTimeout > 0 {
		var cancel context.CancelFunc
		qctx, cancel = context.WithTimeout(ctx, t.QueryTimeout)
		defer cancel()
	}

	log.Debugw("Running source query", "sql", src.SQL())
	reader, err := src.Open(qctx, t.dataset.DB)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	entry, err := t.archive.CreateEntry(dest.FileName)
	if err != nil {
		return nil, err
	}
	entryOpen := true
	defer func() {
		if entryOpen {
			entry.Close()
		}
	}()

	hash := sha256.New()
	df, err := t.formats.CreateNamed(dest.Format, dest.FileName, io.MultiWriter(entry, hash))
	if err != nil {
		return nil, err
	}

	rows, err := t.copyRows(qctx, reader, df, log)
	if err != nil {
		df.Close()
		return nil, err
	}

	if err := df.Close(); err != nil {
		return nil, err
	}
	entryOpen = false
	if err := entry.Close(); err != nil {
		return nil, fmt.Errorf("failed to close entry %s: %w", dest.FileName, err)
	}
	if err := reader.Close(); err != nil {
		return nil, fmt.Errorf("failed to close reader: %w", err)
	}

	result := &types.Result{
		TableName:       src.Name(),
		FileName:        dest.FileName,
		Format:          formatName,
		RecordsAffected: rows,
		SHA256:          hex.EncodeToString(hash.Sum(nil)),
		Duration:        time.Since(started),
	}
	log.Infow("Table exported",
		"rows", result.RecordsAffected,
		"format", result.Format,
		"duration", result.Duration,
	)
	return result, nil
}

func (t *Task) copyRows(ctx context.Context, reader *schema.Reader, df format.DataFile, log *logger.Logger) (int64, error) {
	if err := df.WriteHeader(reader.Columns()); err != nil {
		return 0, err
	}

	var rows int64
	for reader.Next() {
		if err := ctx.Err(); err != nil {
			return rows, fmt.Errorf("export interrupted: %w", err)
		}

		values, err := reader.Values()
		if err != nil {
			return rows, err
		}
		if err := df.WriteRow(values); err != nil {
			return rows, err
		}
		rows++

		if t.ProgressInterval > 0 && rows%int64(t.ProgressInterval) == 0 {
			log.Infow("Export progress", "rows", rows)
		}
	}
	if err := reader.Err(); err != nil {
		return rows, fmt.Errorf("error iterating rows: %w", err)
	}
	return rows, nil
}

// Verify checks the results with the task's verification method. Outputs
// created by Open are re-read for the sha256 method, so Close comes first.
func (t *Task) Verify(ctx context.Context) (*verifier.VerifyStats, error) {
	v, err := verifier.NewVerifier(t.dataset, t.Verification, t.logger)
	if err != nil {
		return nil, err
	}
	if t.created {
		v.ReadBackFrom(t.URI, t.Archival, t.Compression)
	}
	return v.Verify(ctx, t.Sources, t.results)
}

// Close finishes the archive. Calling it again is a no-op.
func (t *Task) Close() error {
	if t.archive == nil {
		return nil
	}
	archive := t.archive
	t.archive = nil
	if err := archive.Close(); err != nil {
		return fmt.Errorf("failed to close output %s: %w", t.URI, err)
	}
	return nil
}

// Results returns a copy of the per-table results.
func (t *Task) Results() []types.Result {
	out := make([]types.Result, len(t.results))
	copy(out, t.results)
	return out
}

// FormatResult renders a result as "<table> > <file> (<n> rows)".
func FormatResult(r types.Result) string {
	return r.String()
}
