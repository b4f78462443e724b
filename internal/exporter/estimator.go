package exporter

import (
	"context"
	"fmt"
	"io"

	"github.com/dbsmedya/goexport/internal/stream"
)

// TableEstimate describes one planned entry of a dry run.
type TableEstimate struct {
	Source   string
	FileName string
	Format   string
	Rows     int64 // -1 when the source is a query or could not be counted
}

// EstimateResult holds dry-run estimation results.
type EstimateResult struct {
	URI          string
	Archival     stream.Archival
	Compression  stream.Compression
	Verification string
	Tables       []TableEstimate
	TotalRows    int64
}

// Estimator counts source rows of a task without writing anything.
type Estimator struct {
	task *Task
}

// NewEstimator creates a new estimator for a task.
func NewEstimator(task *Task) *Estimator {
	return &Estimator{task: task}
}

// Estimate resolves the output layout and counts rows of each table source.
// Query sources are not executed.
func (e *Estimator) Estimate(ctx context.Context) (*EstimateResult, error) {
	t := e.task
	if err := t.validate(); err != nil {
		return nil, err
	}

	a, c := stream.Resolve(t.URI, t.Archival, t.Compression)
	result := &EstimateResult{
		URI:          t.URI,
		Archival:     a,
		Compression:  c,
		Verification: string(t.Verification),
	}

	for i, src := range t.Sources {
		dest := t.Destinations[i]
		formatName, err := t.formats.Resolve(dest.Format, dest.FileName)
		if err != nil {
			return nil, err
		}

		est := TableEstimate{
			Source:   src.Name(),
			FileName: dest.FileName,
			Format:   formatName,
			Rows:     -1,
		}
		if src.IsTable() {
			count, err := t.dataset.CountRows(ctx, src.Table)
			if err != nil {
				t.logger.Warnf("Failed to estimate count for %s: %v", src.Name(), err)
			} else {
				est.Rows = count
				result.TotalRows += count
			}
		}
		result.Tables = append(result.Tables, est)
	}
	return result, nil
}

// DisplayExecutionPlan prints the dry-run execution plan.
func (e *Estimator) DisplayExecutionPlan(w io.Writer, result *EstimateResult) {
	fmt.Fprintf(w, "\n=== Dry-Run Execution Plan ===\n\n")

	fmt.Fprintf(w, "Output: %s\n", result.URI)
	fmt.Fprintf(w, "  Archival: %s\n", result.Archival)
	fmt.Fprintf(w, "  Compression: %s\n\n", result.Compression)

	fmt.Fprintf(w, "Export Order:\n")
	for i, t := range result.Tables {
		rows := "query"
		if t.Rows >= 0 {
			rows = fmt.Sprintf("~%d rows", t.Rows)
		}
		fmt.Fprintf(w, "  %d. %s > %s [%s] (%s)\n", i+1, t.Source, t.FileName, t.Format, rows)
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "Configuration Summary:\n")
	fmt.Fprintf(w, "  Verification method: %s\n", result.Verification)
	fmt.Fprintf(w, "  Total table rows: %d\n", result.TotalRows)
	if e.task.QueryTimeout > 0 {
		fmt.Fprintf(w, "  Query timeout: %s\n", e.task.QueryTimeout)
	} else {
		fmt.Fprintf(w, "  Query timeout: none\n")
	}

	fmt.Fprintln(w, "\n=== End of Dry-Run ===")
	fmt.Fprintln(w, "\nNo files were written. Use 'export' command to execute.")
}
