// Package config provides configuration structures and loading for GoExport.
package config

// Config represents the complete application configuration.
type Config struct {
	Source       DatabaseConfig       `yaml:"source" mapstructure:"source"`
	Jobs         map[string]JobConfig `yaml:"jobs" mapstructure:"jobs"`
	Formats      FormatsConfig        `yaml:"formats" mapstructure:"formats"`
	Processing   ProcessingConfig     `yaml:"processing" mapstructure:"processing"`
	Verification VerificationConfig   `yaml:"verification" mapstructure:"verification"`
	Logging      LoggingConfig        `yaml:"logging" mapstructure:"logging"`
}

// Supported source drivers.
const (
	DriverSQLServer = "sqlserver"
	DriverMySQL     = "mysql"
	DriverPostgres  = "postgres"
	DriverSQLite    = "sqlite"
)

// DatabaseConfig describes the source database connection. Name is the
// logical dataset name, Database is the catalog the dataset wraps.
type DatabaseConfig struct {
	Driver             string `yaml:"driver" mapstructure:"driver"`
	Name               string `yaml:"name" mapstructure:"name"`
	Host               string `yaml:"host" mapstructure:"host"`
	Port               int    `yaml:"port" mapstructure:"port"`
	User               string `yaml:"user" mapstructure:"user"`
	Password           string `yaml:"password" mapstructure:"password"`
	Database           string `yaml:"database" mapstructure:"database"`
	IntegratedSecurity bool   `yaml:"integrated_security" mapstructure:"integrated_security"`
	TLS                string `yaml:"tls" mapstructure:"tls"` // disable, preferred, required
	MaxConnections     int    `yaml:"max_connections" mapstructure:"max_connections"`
	MaxIdleConnections int    `yaml:"max_idle_connections" mapstructure:"max_idle_connections"`
}

// JobConfig represents an export job: a list of tables written to one output.
type JobConfig struct {
	Output       string              `yaml:"output" mapstructure:"output"`
	Archival     string              `yaml:"archival" mapstructure:"archival"`       // auto, zip, tar, none
	Compression  string              `yaml:"compression" mapstructure:"compression"` // auto, gzip, none
	Tables       []TableConfig       `yaml:"tables" mapstructure:"tables"`
	Verification *VerificationConfig `yaml:"verification,omitempty" mapstructure:"verification"`
}

// TableConfig pairs one source (a table or a query) with one destination file.
type TableConfig struct {
	Database string `yaml:"database" mapstructure:"database"`
	Schema   string `yaml:"schema" mapstructure:"schema"`
	Table    string `yaml:"table" mapstructure:"table"`
	Query    string `yaml:"query" mapstructure:"query"`
	File     string `yaml:"file" mapstructure:"file"`
	Format   string `yaml:"format" mapstructure:"format"` // empty: derived from file extension
}

// FormatsConfig holds per-format writer settings.
type FormatsConfig struct {
	CSV  CSVConfig  `yaml:"csv" mapstructure:"csv"`
	FITS FITSConfig `yaml:"fits" mapstructure:"fits"`
}

// CSVConfig configures the delimited text writers.
type CSVConfig struct {
	Delimiter string `yaml:"delimiter" mapstructure:"delimiter"`
	Header    bool   `yaml:"header" mapstructure:"header"`
}

// FITSConfig configures the FITS binary table writer.
type FITSConfig struct {
	MaxStringWidth int `yaml:"max_string_width" mapstructure:"max_string_width"`
}

// ProcessingConfig represents query execution settings.
type ProcessingConfig struct {
	QueryTimeoutSeconds int `yaml:"query_timeout_seconds" mapstructure:"query_timeout_seconds"` // 0 disables
	ProgressInterval    int `yaml:"progress_interval" mapstructure:"progress_interval"`
}

// VerificationConfig represents export verification settings.
type VerificationConfig struct {
	Method           string `yaml:"method" mapstructure:"method"` // "count", "sha256" or "skip"
	SkipVerification bool   `yaml:"skip_verification" mapstructure:"skip_verification"`
}

// LoggingConfig represents logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`   // debug, info, warn, error
	Format string `yaml:"format" mapstructure:"format"` // json or text
	Output string `yaml:"output" mapstructure:"output"` // stdout, stderr, or file path
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() *Config {
	return &Config{
		Source: DatabaseConfig{
			Driver:             DriverSQLServer,
			TLS:                "preferred",
			MaxConnections:     4,
			MaxIdleConnections: 2,
		},
		Formats: FormatsConfig{
			CSV: CSVConfig{
				Delimiter: ",",
				Header:    true,
			},
			FITS: FITSConfig{
				MaxStringWidth: 256,
			},
		},
		Processing: ProcessingConfig{
			QueryTimeoutSeconds: 0,
			ProgressInterval:    100000,
		},
		Verification: VerificationConfig{
			Method:           "count",
			SkipVerification: false,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
	}
}

// DefaultPort returns the conventional port for a driver, 0 when the driver
// has no network endpoint.
func DefaultPort(driver string) int {
	switch driver {
	case DriverSQLServer, "":
		return 1433
	case DriverMySQL:
		return 3306
	case DriverPostgres:
		return 5432
	default:
		return 0
	}
}

// GetJobVerification returns the verification config for a job by name, falling back to global if not set.
func (c *Config) GetJobVerification(jobName string) VerificationConfig {
	job, err := c.GetJob(jobName)
	if err != nil {
		return c.Verification
	}
	return job.GetJobVerification(c.Verification)
}

// GetJobVerification returns the verification config for a job, falling back to global if not set.
func (jc *JobConfig) GetJobVerification(global VerificationConfig) VerificationConfig {
	if jc.Verification == nil {
		return global
	}

	result := global
	if jc.Verification.Method != "" {
		result.Method = jc.Verification.Method
	}
	result.SkipVerification = jc.Verification.SkipVerification || global.SkipVerification
	return result
}

// EffectiveMethod resolves the verification method, taking the skip flag into account.
func (vc VerificationConfig) EffectiveMethod() string {
	if vc.SkipVerification {
		return "skip"
	}
	if vc.Method == "" {
		return "count"
	}
	return vc.Method
}
