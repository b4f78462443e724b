// Package verifier provides post-export integrity checks for GoExport.
package verifier

import (
	"context"
	"fmt"
	"strings"

	"github.com/dbsmedya/goexport/internal/logger"
	"github.com/dbsmedya/goexport/internal/schema"
	"github.com/dbsmedya/goexport/internal/stream"
	"github.com/dbsmedya/goexport/internal/types"
)

// VerificationMethod defines how exported files are checked.
type VerificationMethod string

const (
	// MethodCount compares written rows with COUNT(*) of the source table
	MethodCount VerificationMethod = "count"
	// MethodSHA256 additionally re-reads each entry from the output and
	// compares its digest with the one recorded while writing
	MethodSHA256 VerificationMethod = "sha256"
	// MethodSkip skips verification entirely
	MethodSkip VerificationMethod = "skip"
)

// VerifyResult holds verification results for a single exported table.
type VerifyResult struct {
	Table         string
	FileName      string
	Method        VerificationMethod
	SourceCount   int64
	ExportedCount int64
	Hash          string
	Match         bool
	Skipped       bool
	ErrorMessage  string
}

// VerifyStats contains overall verification statistics.
type VerifyStats struct {
	TablesVerified int
	TablesPassed   int
	TablesFailed   int
	TablesSkipped  int
	TotalRows      int64
	Method         VerificationMethod
	Results        []VerifyResult
}

// Verifier checks export results against the source dataset.
type Verifier struct {
	dataset *schema.Dataset
	method  VerificationMethod
	logger  *logger.Logger
	output  *output
}

// output locates the written archive for sha256 read back.
type output struct {
	uri         string
	archival    stream.Archival
	compression stream.Compression
}

// NewVerifier creates a verifier. An empty method means count.
func NewVerifier(ds *schema.Dataset, method VerificationMethod, log *logger.Logger) (*Verifier, error) {
	if ds == nil {
		return nil, fmt.Errorf("dataset is nil")
	}
	if log == nil {
		log = logger.NewDefault()
	}
	if method == "" {
		method = MethodCount
	}

	switch method {
	case MethodCount, MethodSHA256, MethodSkip:
	default:
		return nil, fmt.Errorf("unsupported verification method: %s", method)
	}

	return &Verifier{
		dataset: ds,
		method:  method,
		logger:  log,
	}, nil
}

// ReadBackFrom sets the output the sha256 method re-reads entries from.
// Without it, as for caller supplied streams, only row counts are checked.
func (v *Verifier) ReadBackFrom(uri string, a stream.Archival, c stream.Compression) {
	v.output = &output{uri: uri, archival: a, compression: c}
}

// Verify checks each result against the source it was exported from.
// Sources and results pair by position. Query sources have no table to
// count, so only their digest is checked. All mismatches are reported in
// the error.
func (v *Verifier) Verify(ctx context.Context, sources []schema.SourceQuery, results []types.Result) (*VerifyStats, error) {
	if v.method == MethodSkip {
		v.logger.Info("Verification SKIPPED (method=skip)")
		return &VerifyStats{Method: MethodSkip}, nil
	}

	if len(sources) != len(results) {
		return nil, fmt.Errorf("cannot verify %d results against %d sources", len(results), len(sources))
	}

	stats := &VerifyStats{Method: v.method}
	v.logger.Infof("Starting verification (method=%s) for %d tables", v.method, len(sources))

	digests, err := v.readDigests(results)
	if err != nil {
		return stats, err
	}

	var mismatches []string
	for i, src := range sources {
		if err := ctx.Err(); err != nil {
			return stats, fmt.Errorf("verification interrupted: %w", err)
		}

		result, err := v.verifyOne(ctx, src, results[i], digests)
		if err != nil {
			return stats, fmt.Errorf("verification failed for table %s: %w", src.Name(), err)
		}
		stats.Results = append(stats.Results, *result)

		if result.Skipped {
			stats.TablesSkipped++
			v.logger.Debugf("Row count skipped for %q (query source)", result.Table)
			continue
		}

		stats.TablesVerified++
		stats.TotalRows += result.ExportedCount
		if result.Match {
			stats.TablesPassed++
			v.logger.Debugf("Verification PASSED for %q (%d rows)", result.Table, result.ExportedCount)
			continue
		}

		stats.TablesFailed++
		v.logger.Errorf("Verification FAILED for %q: %s", result.Table, result.ErrorMessage)
		mismatches = append(mismatches, fmt.Sprintf("%s: %s", result.Table, result.ErrorMessage))
	}

	v.logger.Infof("Verification complete: %d tables verified, %d passed, %d failed, %d skipped",
		stats.TablesVerified, stats.TablesPassed, stats.TablesFailed, stats.TablesSkipped)

	if len(mismatches) > 0 {
		return stats, fmt.Errorf("verification failed: %s", strings.Join(mismatches, "; "))
	}
	return stats, nil
}

// readDigests hashes the written entries again. It returns nil when the
// method does not use digests or the output cannot be re-read.
func (v *Verifier) readDigests(results []types.Result) (map[string]string, error) {
	if v.method != MethodSHA256 {
		return nil, nil
	}
	if v.output == nil {
		v.logger.Warn("Output was written to a caller supplied stream and cannot be re-read, checking row counts only")
		return nil, nil
	}

	names := make([]string, len(results))
	for i, r := range results {
		names[i] = r.FileName
	}
	digests, err := stream.Digests(v.output.uri, v.output.archival, v.output.compression, names)
	if err != nil {
		return nil, fmt.Errorf("failed to read back %s: %w", v.output.uri, err)
	}
	return digests, nil
}

func (v *Verifier) verifyOne(ctx context.Context, src schema.SourceQuery, res types.Result, digests map[string]string) (*VerifyResult, error) {
	result := &VerifyResult{
		Table:         res.TableName,
		FileName:      res.FileName,
		Method:        v.method,
		ExportedCount: res.RecordsAffected,
		Hash:          res.SHA256,
	}

	if digests != nil {
		got, ok := digests[res.FileName]
		switch {
		case !ok:
			result.ErrorMessage = fmt.Sprintf("entry %s not found in output", res.FileName)
			return result, nil
		case got != res.SHA256:
			result.ErrorMessage = fmt.Sprintf("sha256 mismatch: written=%s, output=%s", res.SHA256, got)
			return result, nil
		}
	}

	if !src.IsTable() {
		// A matching digest still verifies a query source.
		result.Skipped = digests == nil
		result.Match = true
		return result, nil
	}

	count, err := v.dataset.CountRows(ctx, src.Table)
	if err != nil {
		return nil, err
	}
	result.SourceCount = count
	result.Match = count == res.RecordsAffected
	if !result.Match {
		result.ErrorMessage = fmt.Sprintf("count mismatch: source=%d, exported=%d", count, res.RecordsAffected)
	}
	return result, nil
}
