package cmd

import (
	"context"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/dbsmedya/goexport/internal/exporter"
	"github.com/dbsmedya/goexport/internal/format"
	"github.com/dbsmedya/goexport/internal/logger"
	"github.com/dbsmedya/goexport/internal/stream"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration and run preflight checks",
	Long: `Validate checks the configuration file and runs preflight checks
against the source database for every job.

Checks performed:
  - Configuration syntax and required fields
  - Database connectivity
  - Table existence and readable column lists
  - Format of every destination file
  - FITS columns whose type falls back to text (warning)

Example:
  goexport validate --config exporter.yaml`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	log, err := logger.New(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	log.Info("Starting validation checks...")

	ctx := context.Background()
	dbManager, ds, err := connectSource(ctx, cfg)
	if err != nil {
		return err
	}
	defer dbManager.Close()

	formats := format.NewFactory(cfg.Formats)
	streams := stream.NewFactory()

	cmd.Printf("\n=== Configuration Validation ===\n")
	cmd.Printf("Config file: %s\n", GetConfigFile())
	cmd.Printf("Jobs found: %d\n\n", len(cfg.Jobs))

	jobNames := cfg.ListJobs()
	sort.Strings(jobNames)

	hasErrors := false
	for _, jobName := range jobNames {
		job, _ := cfg.GetJob(jobName)
		cmd.Printf("--- Job: %s ---\n", jobName)
		cmd.Printf("Output: %s\n", job.Output)
		cmd.Printf("Tables: %d\n", len(job.Tables))

		task, err := exporter.BuildTask(cfg, jobName, ds, formats, streams, log)
		if err != nil {
			cmd.Printf("%s Failed to build job: %v\n\n", failMark(), err)
			hasErrors = true
			continue
		}

		checker, err := exporter.NewPreflightChecker(task, cfg.Formats.FITS.MaxStringWidth, log)
		if err != nil {
			cmd.Printf("%s Failed to create preflight checker: %v\n\n", failMark(), err)
			hasErrors = true
			continue
		}

		if err := checker.RunAllChecks(ctx); err != nil {
			cmd.Printf("%s Preflight checks failed: %v\n\n", failMark(), err)
			hasErrors = true
			continue
		}

		for _, w := range checker.Warnings() {
			cmd.Printf("%s %s.%s (%s) is written to FITS as text\n", warnMark(), w.Table, w.Column, w.DataType)
		}
		cmd.Printf("%s All checks passed\n\n", passMark())
	}

	if hasErrors {
		return fmt.Errorf("validation failed for one or more jobs")
	}

	cmd.Println("=== Validation Complete ===")
	cmd.Printf("%s All jobs validated successfully\n", passMark())
	return nil
}
