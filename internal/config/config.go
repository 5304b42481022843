package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"dataguard/internal/backup"
	"dataguard/internal/integrity"
	"dataguard/internal/scheduler"
	"dataguard/internal/storage"
)

// AppConfig is the full configuration of the data protection engine
type AppConfig struct {
	Database       DatabaseConfig       `yaml:"database" mapstructure:"database"`
	StateDir       string               `yaml:"state_dir" mapstructure:"state_dir"`
	CriticalTables []string             `yaml:"critical_tables" mapstructure:"critical_tables"`
	Storage        storage.Config       `yaml:"storage" mapstructure:"storage"`
	Backup         backup.Config        `yaml:"backup" mapstructure:"backup"`
	Thresholds     integrity.Thresholds `yaml:"thresholds" mapstructure:"thresholds"`
	Schedule       scheduler.Config     `yaml:"schedule" mapstructure:"schedule"`
	Alerts         AlertConfig          `yaml:"alerts" mapstructure:"alerts"`
	Logging        LoggingConfig        `yaml:"logging" mapstructure:"logging"`
}

// DatabaseConfig locates the protected SQLite database
type DatabaseConfig struct {
	Path    string        `yaml:"path" mapstructure:"path"`
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// AlertConfig configures integrity alert routing
type AlertConfig struct {
	MinLevel   string `yaml:"min_level" mapstructure:"min_level"` // INFO, WARNING, CRITICAL
	WebhookURL string `yaml:"webhook_url" mapstructure:"webhook_url"`
}

// LoggingConfig configures the structured logger
type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level"` // quiet, normal, verbose, debug
	Format string `yaml:"format" mapstructure:"format"`
	File   string `yaml:"file" mapstructure:"file"`
}

// SetDefaults fills in default values
func (c *AppConfig) SetDefaults() {
	if c.Database.Path == "" {
		c.Database.Path = "data/app.db"
	}
	if c.Database.Timeout == 0 {
		c.Database.Timeout = 30 * time.Second
	}
	if c.StateDir == "" {
		c.StateDir = "data/state"
	}
	if len(c.CriticalTables) == 0 {
		c.CriticalTables = []string{"users", "courses"}
	}
	if c.Alerts.MinLevel == "" {
		c.Alerts.MinLevel = string(integrity.AlertWarning)
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "normal"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
	c.Backup.SetDefaults()
	c.Schedule.SetDefaults()
}

// Validate checks the configuration for problems
func (c *AppConfig) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database path is required")
	}
	if c.Storage.Configured() {
		if err := c.Storage.Validate(); err != nil {
			return err
		}
	}
	return c.Schedule.Validate()
}

// Load reads configuration from a file (when path is non-empty), the search
// path, and DATAGUARD_* environment variables, in ascending precedence of
// file then environment.
func Load(path string) (*AppConfig, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/dataguard")
		v.SetConfigType("yaml")
		v.SetConfigName("dataguard")
	}

	v.SetEnvPrefix("DATAGUARD")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// A missing config file on the search path is fine; defaults and
		// environment cover it. Anything else, including a file the caller
		// named explicitly, is fatal.
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			return nil, fmt.Errorf("failed to read configuration: %w", err)
		}
	}

	var config AppConfig
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	config.SetDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}
