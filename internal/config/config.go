package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/gyeh/mrfingest/internal/normalize"
)

// EnvDSN is consulted when no --dsn flag is given.
const EnvDSN = "MRFINGEST_DSN"

// Config holds all runtime configuration for a mrfingest run. Fields tagged
// "-" come from flags or arguments only; the rest may also be set in an
// optional YAML config file, with explicitly-set flags taking precedence.
type Config struct {
	DSN  string `yaml:"-"`
	Path string `yaml:"-"` // file or directory to ingest

	LogFormat     string   `yaml:"log_format"` // "text" or "json"
	BatchSize     int      `yaml:"batch_size"`
	ProgressEvery int64    `yaml:"progress_every"`
	MaxRecords    int64    `yaml:"max_records"`
	Extensions    []string `yaml:"extensions"`
	CodePriority  []string `yaml:"code_priority"`

	DryRun       bool `yaml:"-"`
	SkipExisting bool `yaml:"-"`
	Clean        bool `yaml:"-"`
	Strict       bool `yaml:"-"`
}

// DSNFromEnv returns the environment DSN, empty when unset.
func DSNFromEnv() string {
	return os.Getenv(EnvDSN)
}

// LoadFromFile merges a YAML config file into c.
func (c *Config) LoadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return c.validateCodePriority()
}

// validateCodePriority rejects entries that name no recognized code system.
func (c *Config) validateCodePriority() error {
	for _, name := range c.CodePriority {
		if !normalize.KnownCodeType(name) {
			return fmt.Errorf("unknown code type %q in config", name)
		}
	}
	return nil
}

// ApplyDefaults fills every unset tuning field.
func (c *Config) ApplyDefaults() {
	if c.LogFormat == "" {
		c.LogFormat = "text"
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 500
	}
	if c.ProgressEvery <= 0 {
		c.ProgressEvery = 5000
	}
	if len(c.Extensions) == 0 {
		c.Extensions = []string{".json", ".csv"}
	}
	if len(c.CodePriority) == 0 {
		c.CodePriority = append([]string(nil), normalize.DefaultCodePriority...)
	}
}

// Validate checks the fields every ingesting command needs, database or not.
func (c *Config) Validate() error {
	if c.Path == "" {
		return fmt.Errorf("a file or directory argument is required")
	}
	if _, err := os.Stat(c.Path); err != nil {
		return fmt.Errorf("path not accessible: %w", err)
	}
	for _, ext := range c.Extensions {
		if !strings.HasPrefix(ext, ".") {
			return fmt.Errorf("extension %q must start with a dot", ext)
		}
	}
	return c.validateCodePriority()
}

// RequireDSN errors unless a database target is configured.
func (c *Config) RequireDSN() error {
	if c.DSN == "" {
		return fmt.Errorf("--dsn or %s is required", EnvDSN)
	}
	return nil
}

// ValidateWithDSN checks everything a database-backed ingest needs.
func (c *Config) ValidateWithDSN() error {
	if err := c.Validate(); err != nil {
		return err
	}
	return c.RequireDSN()
}
