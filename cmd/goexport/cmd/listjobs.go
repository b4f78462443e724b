package cmd

import (
	"context"
	"sort"

	"github.com/spf13/cobra"

	"github.com/dbsmedya/goexport/internal/lock"
	"github.com/dbsmedya/goexport/internal/stream"
)

var listJobsStatus bool

var listJobsCmd = &cobra.Command{
	Use:   "list-jobs",
	Short: "List all jobs defined in configuration",
	Long: `List-jobs displays all export jobs defined in the configuration file
along with their output and tables. With --status it connects to the source
database and reports whether each job's lock is currently held.

Example:
  goexport list-jobs --config exporter.yaml --status`,
	RunE: runListJobs,
}

func init() {
	listJobsCmd.Flags().BoolVar(&listJobsStatus, "status", false,
		"Show whether each job is running (connects to the source database)")
	rootCmd.AddCommand(listJobsCmd)
}

func runListJobs(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	configFile := GetConfigFile()

	jobNames := cfg.ListJobs()
	if len(jobNames) == 0 {
		cmd.Printf("No jobs defined in %s\n", configFile)
		return nil
	}
	sort.Strings(jobNames)

	var jobStatus func(string) string
	if listJobsStatus {
		ctx := context.Background()
		dbManager, _, err := connectSource(ctx, cfg)
		if err != nil {
			return err
		}
		defer dbManager.Close()

		jobStatus = func(jobName string) string {
			running, err := lock.IsJobRunning(ctx, dbManager.Source, dbManager.Dialect(), jobName)
			switch {
			case err != nil:
				return "unknown (" + err.Error() + ")"
			case running:
				return "running"
			default:
				return "idle"
			}
		}
	}

	cmd.Printf("Jobs defined in %s:\n\n", configFile)

	for i, jobName := range jobNames {
		job, err := cfg.GetJob(jobName)
		if err != nil {
			return err
		}

		a, _ := stream.ParseArchival(job.Archival)
		c, _ := stream.ParseCompression(job.Compression)
		a, c = stream.Resolve(job.Output, a, c)

		cmd.Printf("%d. %s\n", i+1, jobName)
		cmd.Printf("   Output:        %s (archival=%s, compression=%s)\n", job.Output, a, c)
		if jobStatus != nil {
			cmd.Printf("   Status:        %s\n", jobStatus(jobName))
		}
		cmd.Printf("   Tables:        %d\n", len(job.Tables))
		for _, tbl := range job.Tables {
			source := tbl.Table
			if tbl.Query != "" {
				source = "(query)"
				if tbl.Table != "" {
					source = tbl.Table + " (query)"
				}
			}
			if tbl.Format != "" {
				cmd.Printf("      - %s > %s [%s]\n", source, tbl.File, tbl.Format)
			} else {
				cmd.Printf("      - %s > %s\n", source, tbl.File)
			}
		}

		if job.Verification != nil {
			cmd.Printf("   Verification:  Custom (method=%s, skip=%v)\n",
				job.Verification.Method, job.Verification.SkipVerification)
		}

		if i < len(jobNames)-1 {
			cmd.Println()
		}
	}

	cmd.Printf("\nTotal: %d job(s)\n", len(jobNames))
	return nil
}
