// Package config loads pipeline configuration from the environment and an
// optional YAML file. Environment variables take precedence.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// Config is the full pipeline configuration.
type Config struct {
	Logging LoggingConfig `yaml:"logging" envconfig:"LOGGING"`
	Paths   PathsConfig   `yaml:"paths" envconfig:"PATHS"`
	Ingest  IngestConfig  `yaml:"ingest" envconfig:"INGEST"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL" default:"info" validate:"oneof=debug info warn error"`
	Format   string `yaml:"format" envconfig:"FORMAT" default:"json" validate:"oneof=json text"`
	Output   string `yaml:"output" envconfig:"OUTPUT" default:"both" validate:"oneof=console file both"`
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH" default:"logs/ingest.log"`
}

// PathsConfig holds filesystem layout configuration. Relative paths are
// resolved against the working directory at load time.
type PathsConfig struct {
	DataDir      string `yaml:"data_dir" envconfig:"DATA_DIR" default:"data" validate:"required"`
	RawDir       string `yaml:"raw_dir" envconfig:"RAW_DIR" default:"data/raw"`
	MetadataFile string `yaml:"metadata_file" envconfig:"METADATA_FILE" default:"data/metadata/ingest_logs.json"`
	DBFile       string `yaml:"db_file" envconfig:"DB_FILE" default:"data/prices.db"`
	SchemaPath   string `yaml:"schema_path" envconfig:"SCHEMA_PATH" default:"docs/schema.json"`
	LogsDir      string `yaml:"logs_dir" envconfig:"LOGS_DIR" default:"logs"`
}

// IngestConfig holds ingest-run defaults, overridable per invocation by
// CLI flags.
type IngestConfig struct {
	Provider string `yaml:"provider" envconfig:"PROVIDER" default:"yahoo" validate:"oneof=yahoo b3file"`
	// Threshold zero means unset; the effective ceiling is resolved at
	// job time (explicit value, then VALIDATION_INVALID_PERCENT_THRESHOLD,
	// then the built-in default).
	Threshold      float64 `yaml:"threshold" envconfig:"THRESHOLD" validate:"gte=0,lte=1"`
	AbortOnExceed  bool    `yaml:"abort_on_exceed" envconfig:"ABORT_ON_EXCEED" default:"false"`
	PersistInvalid bool    `yaml:"persist_invalid" envconfig:"PERSIST_INVALID" default:"true"`
}

// Load builds the configuration: env vars first (B3 prefix), then a YAML
// file when one exists, then validation.
func Load() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("B3", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if configFile := findConfigFile(); configFile != "" {
		fileCfg, err := loadFromFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config from %s: %w", configFile, err)
		}
		cfg = merge(*fileCfg, cfg)
	}

	cfg.applyFallbacks()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

func loadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// merge overlays env config on top of file config; env wins for any field
// it set.
func merge(fileCfg, envCfg Config) Config {
	out := envCfg
	if out.Logging.Level == "" {
		out.Logging.Level = fileCfg.Logging.Level
	}
	if out.Logging.Format == "" {
		out.Logging.Format = fileCfg.Logging.Format
	}
	if out.Logging.Output == "" {
		out.Logging.Output = fileCfg.Logging.Output
	}
	if out.Logging.FilePath == "" {
		out.Logging.FilePath = fileCfg.Logging.FilePath
	}
	if out.Paths.DataDir == "" {
		out.Paths.DataDir = fileCfg.Paths.DataDir
	}
	if out.Paths.RawDir == "" {
		out.Paths.RawDir = fileCfg.Paths.RawDir
	}
	if out.Paths.MetadataFile == "" {
		out.Paths.MetadataFile = fileCfg.Paths.MetadataFile
	}
	if out.Paths.DBFile == "" {
		out.Paths.DBFile = fileCfg.Paths.DBFile
	}
	if out.Paths.SchemaPath == "" {
		out.Paths.SchemaPath = fileCfg.Paths.SchemaPath
	}
	if out.Paths.LogsDir == "" {
		out.Paths.LogsDir = fileCfg.Paths.LogsDir
	}
	if out.Ingest.Provider == "" {
		out.Ingest.Provider = fileCfg.Ingest.Provider
	}
	if out.Ingest.Threshold == 0 && fileCfg.Ingest.Threshold != 0 {
		out.Ingest.Threshold = fileCfg.Ingest.Threshold
	}
	return out
}

// applyFallbacks fills derived paths that were left empty after merging.
func (c *Config) applyFallbacks() {
	if c.Paths.DataDir == "" {
		c.Paths.DataDir = "data"
	}
	if c.Paths.RawDir == "" {
		c.Paths.RawDir = filepath.Join(c.Paths.DataDir, "raw")
	}
	if c.Paths.MetadataFile == "" {
		c.Paths.MetadataFile = filepath.Join(c.Paths.DataDir, "metadata", "ingest_logs.json")
	}
	if c.Paths.DBFile == "" {
		c.Paths.DBFile = filepath.Join(c.Paths.DataDir, "prices.db")
	}
	if c.Paths.SchemaPath == "" {
		c.Paths.SchemaPath = filepath.Join("docs", "schema.json")
	}
	if c.Ingest.Provider == "" {
		c.Ingest.Provider = "yahoo"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
	if c.Logging.Output == "" {
		c.Logging.Output = "both"
	}
	if c.Paths.LogsDir == "" {
		c.Paths.LogsDir = "logs"
	}
	if c.Logging.FilePath == "" {
		c.Logging.FilePath = filepath.Join(c.Paths.LogsDir, "ingest.log")
	}
}

func (c *Config) validate() error {
	return validator.New().Struct(c)
}

// EnsureDirs creates the directories the pipeline writes into.
func (c *Config) EnsureDirs() error {
	for _, dir := range []string{
		c.Paths.DataDir,
		c.Paths.RawDir,
		filepath.Dir(c.Paths.MetadataFile),
		c.Paths.LogsDir,
	} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	return nil
}

func findConfigFile() string {
	locations := []string{
		"config.yaml",
		"configs/config.yaml",
	}
	for _, location := range locations {
		if _, err := os.Stat(location); err == nil {
			return location
		}
	}
	return ""
}

// Default returns the built-in configuration, used by tests and as the
// base for flag-only runs.
func Default() *Config {
	cfg := &Config{
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "both",
		},
		Paths: PathsConfig{
			DataDir: "data",
			LogsDir: "logs",
		},
		Ingest: IngestConfig{
			Provider:       "yahoo",
			PersistInvalid: true,
		},
	}
	cfg.applyFallbacks()
	return cfg
}
