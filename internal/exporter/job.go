package exporter

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/dbsmedya/goexport/internal/config"
	"github.com/dbsmedya/goexport/internal/format"
	"github.com/dbsmedya/goexport/internal/logger"
	"github.com/dbsmedya/goexport/internal/schema"
	"github.com/dbsmedya/goexport/internal/stream"
	"github.com/dbsmedya/goexport/internal/verifier"
)

// BuildTask creates an export task for a configured job. Table entries
// become table sources, query entries become query sources named after
// their destination file.
func BuildTask(cfg *config.Config, jobName string, ds *schema.Dataset, formats *format.Factory, streams *stream.Factory, log *logger.Logger) (*Task, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}
	if ds == nil {
		return nil, fmt.Errorf("dataset is nil")
	}
	job, err := cfg.GetJob(jobName)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.NewDefault()
	}

	archival, err := stream.ParseArchival(job.Archival)
	if err != nil {
		return nil, fmt.Errorf("job %s: %w", jobName, err)
	}
	compression, err := stream.ParseCompression(job.Compression)
	if err != nil {
		return nil, fmt.Errorf("job %s: %w", jobName, err)
	}

	task := NewTask(ds, formats, streams, log.WithJob(jobName))
	task.URI = job.Output
	task.Archival = archival
	task.Compression = compression
	task.Verification = verifier.VerificationMethod(cfg.GetJobVerification(jobName).EffectiveMethod())
	task.QueryTimeout = time.Duration(cfg.Processing.QueryTimeoutSeconds) * time.Second
	task.ProgressInterval = cfg.Processing.ProgressInterval

	for i := range job.Tables {
		src, dest := tableSource(ds, &job.Tables[i])
		task.Sources = append(task.Sources, src)
		task.Destinations = append(task.Destinations, dest)
	}
	return task, nil
}

func tableSource(ds *schema.Dataset, tbl *config.TableConfig) (schema.SourceQuery, Destination) {
	dest := Destination{FileName: tbl.File, Format: tbl.Format}

	if tbl.Query != "" {
		name := tbl.Table
		if name == "" {
			name = strings.TrimSuffix(filepath.Base(tbl.File), filepath.Ext(tbl.File))
		}
		return schema.NewSourceQueryText(name, tbl.Query), dest
	}

	return schema.NewSourceQuery(ds.Table(tbl.Database, tbl.Schema, tbl.Table)), dest
}
