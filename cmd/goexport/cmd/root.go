package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dbsmedya/goexport/internal/config"
	"github.com/dbsmedya/goexport/internal/database"
	"github.com/dbsmedya/goexport/internal/schema"
)

// Version information (set via ldflags at build time)
var (
	Version = "0.0.1-dev"
	Commit  = "unknown"
)

// CLI flags that override config file values
var (
	cfgFile      string
	logLevel     string
	logFormat    string
	queryTimeout int
	skipVerify   bool
)

var rootCmd = &cobra.Command{
	Use:   "goexport",
	Short: "Database table exporter to CSV and FITS archives",
	Long: `A CLI tool that exports database tables into CSV, TSV and FITS binary
table files, packed into ZIP or TAR archives with optional gzip compression.

Features:
  - SQL Server, MySQL, PostgreSQL and SQLite sources
  - FITS binary tables with typed columns and NULL sentinels
  - Archive format detected from the output name (.zip, .tar.gz, .gz)
  - Per-job advisory lock against concurrent runs
  - Row count verification after export`,
	Version:      Version,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.SetOut(os.Stdout)

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "exporter.yaml",
		"Path to configuration file")

	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"Override log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "",
		"Override log format (json, text)")

	rootCmd.PersistentFlags().IntVar(&queryTimeout, "query-timeout", 0,
		"Override per-table query timeout in seconds")
	rootCmd.PersistentFlags().BoolVar(&skipVerify, "skip-verify", false,
		"Skip row count verification after export")
}

// GetConfigFile returns the config file path
func GetConfigFile() string {
	return cfgFile
}

// CLIOverrides contains flag values that override config file settings
type CLIOverrides struct {
	LogLevel     string
	LogFormat    string
	QueryTimeout int
	SkipVerify   bool
}

// GetCLIOverrides returns the CLI flag override values
func GetCLIOverrides() CLIOverrides {
	return CLIOverrides{
		LogLevel:     logLevel,
		LogFormat:    logFormat,
		QueryTimeout: queryTimeout,
		SkipVerify:   skipVerify,
	}
}

// loadConfig reads the config file, applies CLI overrides and validates it.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(GetConfigFile())
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	overrides := GetCLIOverrides()
	cfg.ApplyOverrides(overrides.LogLevel, overrides.LogFormat,
		overrides.QueryTimeout, overrides.SkipVerify)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// connectSource opens the source database and wraps it as a dataset.
// The caller closes the returned manager.
func connectSource(ctx context.Context, cfg *config.Config) (*database.Manager, *schema.Dataset, error) {
	dbManager := database.NewManager(cfg)

	if err := dbManager.Connect(ctx); err != nil {
		return nil, nil, err
	}
	if err := dbManager.Ping(ctx); err != nil {
		dbManager.Close()
		return nil, nil, fmt.Errorf("database connection failed: %w", err)
	}

	ds := schema.NewDataset(cfg.Source.Name, dbManager.Dialect(), dbManager.Source, cfg.Source.Database)
	return dbManager, ds, nil
}
