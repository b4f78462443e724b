package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dbsmedya/goexport/internal/config"
	"github.com/dbsmedya/goexport/internal/database"
	"github.com/dbsmedya/goexport/internal/exporter"
	"github.com/dbsmedya/goexport/internal/format"
	"github.com/dbsmedya/goexport/internal/lock"
	"github.com/dbsmedya/goexport/internal/logger"
	"github.com/dbsmedya/goexport/internal/schema"
	"github.com/dbsmedya/goexport/internal/stream"
)

var (
	exportJob   string
	exportForce bool
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the tables of a job into its output archive",
	Long: `Export reads every table of a job and writes it into the job's output.

The export process follows these steps:
  1. Acquire the job's advisory lock on the source database
  2. Run SELECT * (or the configured query) for each table in order
  3. Stream the rows into one CSV, TSV or FITS entry per table
  4. Verify written row counts against the source tables, and for the
     sha256 method re-read every entry and compare its digest

Each exported table is printed as "<table> > <file> (<n> rows)".

Example:
  goexport export --config exporter.yaml --job nightly`,
	RunE: runExport,
}

func init() {
	exportCmd.Flags().StringVarP(&exportJob, "job", "j", "",
		"Job name from configuration file (required)")
	exportCmd.MarkFlagRequired("job")

	exportCmd.Flags().BoolVar(&exportForce, "force", false,
		"Skip the job lock (use with caution)")

	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if _, err := cfg.GetJob(exportJob); err != nil {
		return err
	}

	log, err := logger.New(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer log.Sync()

	log.Infow("Starting export",
		"job", exportJob,
		"config", GetConfigFile(),
	)

	ctx, cancel := database.SetupSignalHandler(context.Background(), func(sig os.Signal) {
		log.Warnw("Received shutdown signal, stopping after current row", "signal", sig.String())
	})
	defer cancel()

	dbManager, ds, err := connectSource(ctx, cfg)
	if err != nil {
		return err
	}
	defer dbManager.Close()

	if exportForce {
		log.Warnw("Skipping advisory lock acquisition (--force flag used)", "job", exportJob)
		return exportJobTables(ctx, cmd, cfg, ds, log)
	}

	err = lock.WithJobLock(ctx, dbManager.Source, dbManager.Dialect(), exportJob, func() error {
		log.Infow("Acquired advisory lock for job", "job", exportJob)
		return exportJobTables(ctx, cmd, cfg, ds, log)
	})
	if errors.Is(err, lock.ErrLockHeld) {
		return fmt.Errorf("job '%s' is already running on another instance (use --force to override)", exportJob)
	}
	return err
}

// exportJobTables builds and opens the job's task, then runs it.
func exportJobTables(ctx context.Context, cmd *cobra.Command, cfg *config.Config, ds *schema.Dataset, log *logger.Logger) error {
	task, err := exporter.BuildTask(cfg, exportJob, ds, format.NewFactory(cfg.Formats), stream.NewFactory(), log)
	if err != nil {
		return err
	}

	if err := task.Open(ctx); err != nil {
		return err
	}
	return runTask(ctx, cmd, task, log)
}

// runTask executes an opened task and closes it. Tables finished before a
// failure are printed too.
func runTask(ctx context.Context, cmd *cobra.Command, task *exporter.Task, log *logger.Logger) error {
	execErr := task.Execute(ctx)
	closeErr := task.Close()

	for _, r := range task.Results() {
		cmd.Println(exporter.FormatResult(r))
	}

	if execErr != nil {
		if errors.Is(execErr, context.Canceled) {
			log.Warn("Export cancelled by user")
			return fmt.Errorf("export of job '%s' cancelled, %s is incomplete", exportJob, task.URI)
		}
		return fmt.Errorf("export failed: %w", execErr)
	}
	if closeErr != nil {
		return closeErr
	}

	stats, err := task.Verify(ctx)
	if err != nil {
		cmd.Printf("%s %v\n", failMark(), err)
		return fmt.Errorf("export of job '%s' failed verification", exportJob)
	}
	if stats.TablesVerified > 0 {
		cmd.Printf("%s verified %d table(s), %d rows (%s)\n",
			passMark(), stats.TablesVerified, stats.TotalRows, stats.Method)
	}
	return nil
}
