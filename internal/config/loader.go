package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/spf13/viper"
)

// Load reads configuration from the specified file path.
// It supports YAML files and performs environment variable substitution.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return LoadFromViper(v)
}

// LoadFromViper creates a Config from an existing Viper instance.
// Useful for testing or when Viper is configured externally.
func LoadFromViper(v *viper.Viper) (*Config, error) {
	cfg := DefaultConfig()

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := substituteEnvVars(cfg); err != nil {
		return nil, fmt.Errorf("failed to substitute environment variables: %w", err)
	}

	if cfg.Source.Driver == "" {
		cfg.Source.Driver = DriverSQLServer
	}
	if cfg.Source.Port == 0 {
		cfg.Source.Port = DefaultPort(cfg.Source.Driver)
	}
	if cfg.Source.Name == "" {
		cfg.Source.Name = strings.ToUpper(cfg.Source.Database)
	}

	return cfg, nil
}

// envVarPattern matches ${VAR_NAME} or $VAR_NAME patterns
var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}|\$([A-Za-z_][A-Za-z0-9_]*)`)

// substituteEnvVars replaces ${VAR_NAME} patterns with environment variable values.
func substituteEnvVars(cfg *Config) error {
	cfg.Source.Host = expandEnvVar(cfg.Source.Host)
	cfg.Source.User = expandEnvVar(cfg.Source.User)
	cfg.Source.Password = expandEnvVar(cfg.Source.Password)
	cfg.Source.Database = expandEnvVar(cfg.Source.Database)

	for name, job := range cfg.Jobs {
		job.Output = expandEnvVar(job.Output)
		cfg.Jobs[name] = job
	}

	cfg.Logging.Output = expandEnvVar(cfg.Logging.Output)

	return nil
}

// expandEnvVar expands environment variables in the format ${VAR} or $VAR.
func expandEnvVar(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		var varName string
		if strings.HasPrefix(match, "${") {
			varName = match[2 : len(match)-1]
		} else {
			varName = match[1:]
		}

		if value, exists := os.LookupEnv(varName); exists {
			return value
		}
		// Return original if env var not found
		return match
	})
}

// GetJob retrieves a specific job configuration by name.
func (c *Config) GetJob(name string) (*JobConfig, error) {
	job, exists := c.Jobs[name]
	if !exists {
		return nil, fmt.Errorf("job %q not found in configuration", name)
	}
	return &job, nil
}

// ListJobs returns all job names defined in the configuration.
func (c *Config) ListJobs() []string {
	jobs := make([]string, 0, len(c.Jobs))
	for name := range c.Jobs {
		jobs = append(jobs, name)
	}
	return jobs
}

// ApplyOverrides applies CLI flag overrides to the global configuration.
// Only non-zero/non-empty values are applied.
func (c *Config) ApplyOverrides(logLevel, logFormat string, queryTimeout int, skipVerify bool) {
	if logLevel != "" {
		c.Logging.Level = logLevel
	}
	if logFormat != "" {
		c.Logging.Format = logFormat
	}
	if queryTimeout > 0 {
		c.Processing.QueryTimeoutSeconds = queryTimeout
	}
	if skipVerify {
		c.Verification.SkipVerification = true
	}
}
