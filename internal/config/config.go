// Package config loads the ptcamp configuration file and applies
// PTCAMP_* environment overrides.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	SchemaVersion  = "1.0.0"
	ConfigFileType = "ptcamp/config"
)

type Config struct {
	SchemaVersion string `yaml:"schema_version"`
	FileType      string `yaml:"file_type"`

	// Owner is the default schedule and program block owner.
	Owner string `yaml:"owner"`

	ObsDB      ObsDBConfig      `yaml:"obsdb"`
	Submission SubmissionConfig `yaml:"submission"`
	Registry   RegistryConfig   `yaml:"registry"`
	Watch      WatchConfig      `yaml:"watch"`
	Audit      AuditConfig      `yaml:"audit"`
	Logging    LoggingConfig    `yaml:"logging"`
}

type ObsDBConfig struct {
	DSN string `yaml:"dsn"`
}

type SubmissionConfig struct {
	ProgramBlockDescription string `yaml:"program_block_description"`
	DesiredStartTime        string `yaml:"desired_start_time"`
}

type RegistryConfig struct {
	OverridesFile string `yaml:"overrides_file"`
}

type WatchConfig struct {
	InboxDir           string `yaml:"inbox_dir"`
	ProcessedDir       string `yaml:"processed_dir"`
	FailedDir          string `yaml:"failed_dir"`
	RescanIntervalSec  int    `yaml:"rescan_interval_sec"`
	StabilityWindowMs  int    `yaml:"stability_window_ms"`
	ShutdownTimeoutSec int    `yaml:"shutdown_timeout_sec"`
}

type AuditConfig struct {
	Path         string `yaml:"path"`
	MaxSizeBytes int64  `yaml:"max_size_bytes"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration written by `ptcamp init`. Paths are
// relative to the .ptcamp state directory.
func Default() Config {
	return Config{
		SchemaVersion: SchemaVersion,
		FileType:      ConfigFileType,
		Owner:         "sarah",
		Watch: WatchConfig{
			InboxDir:           "inbox",
			ProcessedDir:       "processed",
			FailedDir:          "failed",
			RescanIntervalSec:  30,
			StabilityWindowMs:  750,
			ShutdownTimeoutSec: 10,
		},
		Audit: AuditConfig{
			Path:         "audit/submissions.jsonl",
			MaxSizeBytes: 10 * 1024 * 1024,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads a config file, fills unset sections from Default and applies
// environment overrides.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if cfg.FileType != "" && cfg.FileType != ConfigFileType {
		return Config{}, fmt.Errorf("unexpected file_type %q, want %q", cfg.FileType, ConfigFileType)
	}
	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// FromEnv returns the default configuration with environment overrides
// applied, for callers running without a state directory.
func FromEnv() (Config, error) {
	cfg := Default()
	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	c.Owner = String("PTCAMP_OWNER", c.Owner)
	c.ObsDB.DSN = String("PTCAMP_OBSDB_DSN", c.ObsDB.DSN)
	c.Registry.OverridesFile = String("PTCAMP_REGISTRY_OVERRIDES", c.Registry.OverridesFile)
	c.Watch.InboxDir = String("PTCAMP_INBOX_DIR", c.Watch.InboxDir)
	c.Audit.Path = String("PTCAMP_AUDIT_PATH", c.Audit.Path)
	c.Logging.Level = String("PTCAMP_LOG_LEVEL", c.Logging.Level)
	c.Logging.Format = String("PTCAMP_LOG_FORMAT", c.Logging.Format)

	rescan, err := Duration("PTCAMP_RESCAN_INTERVAL", time.Duration(c.Watch.RescanIntervalSec)*time.Second)
	if err != nil {
		return err
	}
	c.Watch.RescanIntervalSec = int(rescan / time.Second)
	return nil
}

// Validate checks the fields every subcommand depends on.
func (c Config) Validate() error {
	if c.Owner == "" {
		return fmt.Errorf("owner is required")
	}
	if c.Watch.RescanIntervalSec <= 0 {
		return fmt.Errorf("watch.rescan_interval_sec must be positive, got %d", c.Watch.RescanIntervalSec)
	}
	if c.Audit.MaxSizeBytes <= 0 {
		return fmt.Errorf("audit.max_size_bytes must be positive, got %d", c.Audit.MaxSizeBytes)
	}
	switch c.Logging.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}
	return nil
}
