// Package config handles configuration management for sparkify-etl.
// Configuration is loaded from config files and CLI flags (no environment variables).
// CLI flags take precedence over config file values.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// ErrInvalid marks configuration validation failures so callers can
// distinguish bad configuration from connection or statement errors.
var ErrInvalid = errors.New("invalid configuration")

// Config holds all configuration for sparkify-etl.
type Config struct {
	// Cluster holds warehouse connection parameters.
	Cluster ClusterConfig `mapstructure:"cluster"`

	// IAMRole holds the role the warehouse assumes to read from S3.
	IAMRole IAMRoleConfig `mapstructure:"iam_role"`

	// S3 holds the source data locations.
	S3 S3Config `mapstructure:"s3"`

	// LogLevel controls logging verbosity (debug, info, warn, error).
	LogLevel string `mapstructure:"log_level"`

	// Dialect selects the SQL dialect: "redshift" (default) or "postgres".
	// The postgres dialect exists so the transform statements can be
	// exercised against a stock PostgreSQL instance.
	Dialect string `mapstructure:"dialect"`

	// Seed holds configuration for the seed subcommand.
	Seed SeedConfig `mapstructure:"seed"`
}

// ClusterConfig holds warehouse connection parameters.
type ClusterConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	DBName   string `mapstructure:"dbname"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
}

// IAMRoleConfig holds the IAM role used by COPY to read from S3.
type IAMRoleConfig struct {
	ARN string `mapstructure:"arn"`
}

// S3Config holds the source bucket locations.
type S3Config struct {
	// LogData is the s3:// prefix containing event log NDJSON files.
	LogData string `mapstructure:"log_data"`

	// LogJSONPath is the s3:// location of the JSONPaths file that maps
	// event log attributes onto staging_events columns.
	LogJSONPath string `mapstructure:"log_jsonpath"`

	// SongData is the s3:// prefix containing song metadata NDJSON files.
	SongData string `mapstructure:"song_data"`

	// Region is the AWS region of the source buckets.
	Region string `mapstructure:"region"`
}

// SeedConfig holds configuration for synthetic source data generation.
type SeedConfig struct {
	// Events is the number of event log lines to generate.
	Events int `mapstructure:"events"`

	// Songs is the number of song metadata documents to generate.
	Songs int `mapstructure:"songs"`

	// Files is the number of NDJSON files the events are split across.
	Files int `mapstructure:"files"`

	// RandomSeed makes generation reproducible when non-zero.
	RandomSeed uint64 `mapstructure:"random_seed"`
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		Cluster: ClusterConfig{
			Port:   5439,
			DBName: "sparkify",
		},
		S3: S3Config{
			Region: "us-west-2",
		},
		LogLevel: "info",
		Dialect:  "redshift",
		Seed: SeedConfig{
			Events: 1000,
			Songs:  200,
			Files:  4,
		},
	}
}

// Load reads configuration from config files.
// Config file locations (in order of precedence):
// 1. Path specified by configFile parameter
// 2. ./sparkify-etl.yaml
// 3. ~/.config/sparkify-etl/config.yaml
func Load(configFile string) (*Config, error) {
	v := viper.New()

	v.SetConfigName("sparkify-etl")
	v.SetConfigType("yaml")

	v.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".config", "sparkify-etl"))
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
	}

	// Read config file (ignore if not found)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	cfg := DefaultConfig()

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}

	return cfg, nil
}

// ConnString builds a postgres:// connection string for the cluster.
func (c *Config) ConnString() string {
	if c.Cluster.Password == "" {
		return fmt.Sprintf("postgres://%s@%s:%d/%s",
			c.Cluster.User, c.Cluster.Host, c.Cluster.Port, c.Cluster.DBName)
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s",
		c.Cluster.User, c.Cluster.Password, c.Cluster.Host, c.Cluster.Port,
		c.Cluster.DBName)
}

// Validate checks configuration required to reach the warehouse.
func (c *Config) Validate() error {
	if c.Cluster.Host == "" {
		return fmt.Errorf("%w: cluster.host is required", ErrInvalid)
	}
	if c.Cluster.Port < 1 || c.Cluster.Port > 65535 {
		return fmt.Errorf("%w: cluster.port must be between 1 and 65535", ErrInvalid)
	}
	if c.Cluster.DBName == "" {
		return fmt.Errorf("%w: cluster.dbname is required", ErrInvalid)
	}
	if c.Cluster.User == "" {
		return fmt.Errorf("%w: cluster.user is required", ErrInvalid)
	}
	if c.Dialect != "redshift" && c.Dialect != "postgres" {
		return fmt.Errorf("%w: dialect must be 'redshift' or 'postgres'", ErrInvalid)
	}
	return nil
}

// ValidateLoad checks configuration required for the COPY phase.
func (c *Config) ValidateLoad() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.IAMRole.ARN == "" {
		return fmt.Errorf("%w: iam_role.arn is required to load from S3", ErrInvalid)
	}
	for key, uri := range map[string]string{
		"s3.log_data":     c.S3.LogData,
		"s3.log_jsonpath": c.S3.LogJSONPath,
		"s3.song_data":    c.S3.SongData,
	} {
		if uri == "" {
			return fmt.Errorf("%w: %s is required to load from S3", ErrInvalid, key)
		}
		if !strings.HasPrefix(uri, "s3://") {
			return fmt.Errorf("%w: %s must be an s3:// URI, got %q", ErrInvalid, key, uri)
		}
	}
	return nil
}

// ValidateSeed checks configuration required for the seed command.
func (c *Config) ValidateSeed() error {
	if c.Seed.Events < 1 {
		return fmt.Errorf("%w: seed.events must be at least 1", ErrInvalid)
	}
	if c.Seed.Songs < 1 {
		return fmt.Errorf("%w: seed.songs must be at least 1", ErrInvalid)
	}
	if c.Seed.Files < 1 {
		return fmt.Errorf("%w: seed.files must be at least 1", ErrInvalid)
	}
	for key, uri := range map[string]string{
		"s3.log_data":  c.S3.LogData,
		"s3.song_data": c.S3.SongData,
	} {
		if !strings.HasPrefix(uri, "s3://") {
			return fmt.Errorf("%w: %s must be an s3:// URI, got %q", ErrInvalid, key, uri)
		}
	}
	return nil
}
