package config

import (
	"fmt"
	"path"
	"slices"
	"strings"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return fmt.Sprintf("validation failed:\n  - %s", strings.Join(msgs, "\n  - "))
}

// Format names and file extensions accepted in table entries. They mirror
// the format registry, which depends on this package.
var (
	knownFormats    = []string{"csv", "tsv", "fits"}
	knownExtensions = []string{".csv", ".txt", ".tsv", ".fits", ".fit", ".fts"}
)

// KnownFormats returns the format names a table entry may name.
func KnownFormats() []string {
	return slices.Clone(knownFormats)
}

// KnownExtensions returns the file extensions a format is derived from.
func KnownExtensions() []string {
	return slices.Clone(knownExtensions)
}

// Validate checks the configuration for required fields and valid values.
func (c *Config) Validate() error {
	var errors ValidationErrors

	if err := c.validateSource(); err != nil {
		errors = append(errors, err...)
	}

	if len(c.Jobs) == 0 {
		errors = append(errors, ValidationError{
			Field:   "jobs",
			Message: "at least one job must be defined",
		})
	}
	for name, job := range c.Jobs {
		if err := c.validateJob(name, &job); err != nil {
			errors = append(errors, err...)
		}
	}

	if err := c.validateFormats(); err != nil {
		errors = append(errors, err...)
	}

	if err := c.validateProcessing(); err != nil {
		errors = append(errors, err...)
	}

	if err := validateVerification("verification", &c.Verification); err != nil {
		errors = append(errors, err...)
	}

	if err := c.validateLogging(); err != nil {
		errors = append(errors, err...)
	}

	if len(errors) > 0 {
		return errors
	}
	return nil
}

func (c *Config) validateSource() ValidationErrors {
	var errors ValidationErrors
	db := &c.Source

	validDrivers := map[string]bool{DriverSQLServer: true, DriverMySQL: true, DriverPostgres: true, DriverSQLite: true}
	if !validDrivers[db.Driver] {
		errors = append(errors, ValidationError{
			Field:   "source.driver",
			Message: "driver must be 'sqlserver', 'mysql', 'postgres', or 'sqlite'",
		})
		return errors
	}

	if db.Database == "" {
		errors = append(errors, ValidationError{
			Field:   "source.database",
			Message: "database name is required",
		})
	}

	if db.Driver == DriverSQLite {
		return errors
	}

	if db.Host == "" {
		errors = append(errors, ValidationError{
			Field:   "source.host",
			Message: "host is required",
		})
	}

	if db.Port <= 0 || db.Port > 65535 {
		errors = append(errors, ValidationError{
			Field:   "source.port",
			Message: "port must be between 1 and 65535",
		})
	}

	if db.IntegratedSecurity && db.Driver != DriverSQLServer {
		errors = append(errors, ValidationError{
			Field:   "source.integrated_security",
			Message: "integrated security is only supported for sqlserver",
		})
	}

	if db.User == "" && !db.IntegratedSecurity {
		errors = append(errors, ValidationError{
			Field:   "source.user",
			Message: "user is required unless integrated_security is enabled",
		})
	}

	validTLS := map[string]bool{"disable": true, "preferred": true, "required": true, "": true}
	if !validTLS[db.TLS] {
		errors = append(errors, ValidationError{
			Field:   "source.tls",
			Message: "tls must be 'disable', 'preferred', or 'required'",
		})
	}

	if db.MaxConnections < 0 {
		errors = append(errors, ValidationError{
			Field:   "source.max_connections",
			Message: "max_connections cannot be negative",
		})
	} else if db.MaxConnections == 1 {
		// The job lock pins one pooled connection for the whole run.
		errors = append(errors, ValidationError{
			Field:   "source.max_connections",
			Message: "max_connections must be at least 2, one connection holds the job lock",
		})
	}

	if db.MaxIdleConnections < 0 {
		errors = append(errors, ValidationError{
			Field:   "source.max_idle_connections",
			Message: "max_idle_connections cannot be negative",
		})
	}

	return errors
}

func (c *Config) validateJob(name string, job *JobConfig) ValidationErrors {
	var errors ValidationErrors
	prefix := fmt.Sprintf("jobs.%s", name)

	if job.Output == "" {
		errors = append(errors, ValidationError{
			Field:   prefix + ".output",
			Message: "output is required",
		})
	}

	validArchival := map[string]bool{"": true, "auto": true, "zip": true, "tar": true, "none": true}
	if !validArchival[job.Archival] {
		errors = append(errors, ValidationError{
			Field:   prefix + ".archival",
			Message: "archival must be 'auto', 'zip', 'tar', or 'none'",
		})
	}

	validCompression := map[string]bool{"": true, "auto": true, "gzip": true, "none": true}
	if !validCompression[job.Compression] {
		errors = append(errors, ValidationError{
			Field:   prefix + ".compression",
			Message: "compression must be 'auto', 'gzip', or 'none'",
		})
	}

	if len(job.Tables) == 0 {
		errors = append(errors, ValidationError{
			Field:   prefix + ".tables",
			Message: "at least one table must be defined",
		})
	}

	seen := make(map[string]int)
	for i, tbl := range job.Tables {
		tblPrefix := fmt.Sprintf("%s.tables[%d]", prefix, i)
		errors = append(errors, validateTable(tblPrefix, &tbl)...)

		if tbl.File == "" {
			continue
		}
		if first, dup := seen[tbl.File]; dup {
			errors = append(errors, ValidationError{
				Field:   tblPrefix + ".file",
				Message: fmt.Sprintf("file %q already used by tables[%d]", tbl.File, first),
			})
			continue
		}
		seen[tbl.File] = i
	}

	if job.Verification != nil {
		if err := validateVerification(prefix+".verification", job.Verification); err != nil {
			errors = append(errors, err...)
		}
	}

	return errors
}

func validateTable(prefix string, tbl *TableConfig) ValidationErrors {
	var errors ValidationErrors

	if tbl.Table == "" && tbl.Query == "" {
		errors = append(errors, ValidationError{
			Field:   prefix + ".table",
			Message: "either table or query is required",
		})
	}

	if tbl.File == "" {
		errors = append(errors, ValidationError{
			Field:   prefix + ".file",
			Message: "file is required",
		})
	} else if strings.Contains(tbl.File, "..") || path.IsAbs(tbl.File) {
		errors = append(errors, ValidationError{
			Field:   prefix + ".file",
			Message: "file must be a relative name inside the output",
		})
	}

	format := strings.ToLower(tbl.Format)
	if format != "" && !slices.Contains(knownFormats, format) {
		errors = append(errors, ValidationError{
			Field:   prefix + ".format",
			Message: fmt.Sprintf("format must be one of %s", strings.Join(knownFormats, ", ")),
		})
	} else if format == "" && tbl.File != "" && !slices.Contains(knownExtensions, strings.ToLower(path.Ext(tbl.File))) {
		errors = append(errors, ValidationError{
			Field:   prefix + ".format",
			Message: fmt.Sprintf("cannot derive format from file %q, set format explicitly", tbl.File),
		})
	}

	return errors
}

func (c *Config) validateFormats() ValidationErrors {
	var errors ValidationErrors

	if len([]rune(c.Formats.CSV.Delimiter)) > 1 {
		errors = append(errors, ValidationError{
			Field:   "formats.csv.delimiter",
			Message: "delimiter must be a single character",
		})
	}

	if c.Formats.FITS.MaxStringWidth <= 0 {
		errors = append(errors, ValidationError{
			Field:   "formats.fits.max_string_width",
			Message: "max_string_width must be positive",
		})
	}

	return errors
}

func (c *Config) validateProcessing() ValidationErrors {
	var errors ValidationErrors

	if c.Processing.QueryTimeoutSeconds < 0 {
		errors = append(errors, ValidationError{
			Field:   "processing.query_timeout_seconds",
			Message: "query_timeout_seconds cannot be negative",
		})
	}

	if c.Processing.ProgressInterval < 0 {
		errors = append(errors, ValidationError{
			Field:   "processing.progress_interval",
			Message: "progress_interval cannot be negative",
		})
	}

	return errors
}

func validateVerification(prefix string, vc *VerificationConfig) ValidationErrors {
	var errors ValidationErrors

	validMethods := map[string]bool{"count": true, "sha256": true, "skip": true, "": true}
	if !validMethods[vc.Method] {
		errors = append(errors, ValidationError{
			Field:   prefix + ".method",
			Message: "method must be 'count', 'sha256', or 'skip'",
		})
	}

	return errors
}

func (c *Config) validateLogging() ValidationErrors {
	var errors ValidationErrors

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true, "": true}
	if !validLevels[c.Logging.Level] {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Message: "level must be 'debug', 'info', 'warn', or 'error'",
		})
	}

	validFormats := map[string]bool{"json": true, "text": true, "": true}
	if !validFormats[c.Logging.Format] {
		errors = append(errors, ValidationError{
			Field:   "logging.format",
			Message: "format must be 'json' or 'text'",
		})
	}

	return errors
}
