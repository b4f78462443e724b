package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dbsmedya/goexport/internal/exporter"
	"github.com/dbsmedya/goexport/internal/format"
	"github.com/dbsmedya/goexport/internal/logger"
	"github.com/dbsmedya/goexport/internal/stream"
)

var dryrunJob string

var dryrunCmd = &cobra.Command{
	Use:   "dry-run",
	Short: "Simulate an export without writing any file",
	Long: `Dry-run resolves the output layout of a job and counts the rows of its
tables without writing anything.

The dry-run shows:
  - Archive and compression chosen for the output
  - Estimated row counts per table
  - Format of each entry and configuration summary

Example:
  goexport dry-run --config exporter.yaml --job nightly`,
	RunE: runDryrun,
}

func init() {
	dryrunCmd.Flags().StringVarP(&dryrunJob, "job", "j", "",
		"Job name from configuration file (required)")
	dryrunCmd.MarkFlagRequired("job")

	rootCmd.AddCommand(dryrunCmd)
}

func runDryrun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if _, err := cfg.GetJob(dryrunJob); err != nil {
		return err
	}

	log, err := logger.New(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	ctx := context.Background()
	dbManager, ds, err := connectSource(ctx, cfg)
	if err != nil {
		return err
	}
	defer dbManager.Close()

	task, err := exporter.BuildTask(cfg, dryrunJob, ds, format.NewFactory(cfg.Formats), stream.NewFactory(), log)
	if err != nil {
		return err
	}

	estimator := exporter.NewEstimator(task)
	result, err := estimator.Estimate(ctx)
	if err != nil {
		return fmt.Errorf("estimation failed: %w", err)
	}

	estimator.DisplayExecutionPlan(cmd.OutOrStdout(), result)
	return nil
}
