package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// Config holds all configuration for an extraction run. Values are resolved
// by viper with precedence flag > config file > default.
type Config struct {
	Server    string `mapstructure:"server"`
	Port      int    `mapstructure:"port"`
	Username  string `mapstructure:"username"`
	Password  string `mapstructure:"password"`
	OutputDir string `mapstructure:"output_dir"`
	TrustCert bool   `mapstructure:"trust_cert"`

	// Cloud SQL connection mode. When the instance connection name is set,
	// the pool dials through the Cloud SQL connector instead of host:port.
	CloudSQLInstanceConnectionName string `mapstructure:"cloudsql_instance_connection_name"`
	CloudSQLUsePrivateIP           bool   `mapstructure:"cloudsql_use_private_ip"`

	LogLevel string `mapstructure:"log_level"`
	LogFile  string `mapstructure:"log_file"`
}

// Default returns the built-in configuration, matching what an empty config
// file would produce.
func Default() *Config {
	return &Config{
		Port:      1433,
		OutputDir: "sql_extracted_objects",
		TrustCert: true,
		LogLevel:  "info",
		LogFile:   "sql_extractor.log",
	}
}

// Load unmarshals the resolved viper state on top of the defaults.
func Load() (*Config, error) {
	cfg := Default()
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks that the fields required to open a session are present.
func (c *Config) Validate() error {
	if c.Username == "" || c.Password == "" {
		return fmt.Errorf("username and password are required (via flags or config file)")
	}
	if c.Server == "" && c.CloudSQLInstanceConnectionName == "" {
		return fmt.Errorf("server is required (via --server or config file)")
	}
	return nil
}
