// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// EnvVar names the environment variable that points at the config file.
const EnvVar = "AGENTREG_CONFIG"

// Environment represents the deployment environment.
type Environment string

const (
	// Development is for local development machines.
	Development Environment = "development"
	// Staging is for pre-production testing.
	Staging Environment = "staging"
	// Production is for production deployments.
	Production Environment = "production"
)

// Store backends.
const (
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

// Config is the master configuration for agentreg.
type Config struct {
	// Environment identifies the deployment type (development, staging, production).
	Environment Environment `yaml:"environment"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`

	Paths        PathsConfig        `yaml:"paths"`
	Store        StoreConfig        `yaml:"store"`
	Validation   ValidationConfig   `yaml:"validation"`
	Registration RegistrationConfig `yaml:"registration"`
	Snapshot     SnapshotConfig     `yaml:"snapshot"`

	// Per-environment overrides, applied after the base config is
	// loaded.
	Development *ConfigOverrides `yaml:"development,omitempty"`
	Staging     *ConfigOverrides `yaml:"staging,omitempty"`
	Production  *ConfigOverrides `yaml:"production,omitempty"`
}

// ConfigOverrides contains fields that can be overridden per environment.
type ConfigOverrides struct {
	LogLevel     string              `yaml:"log_level,omitempty"`
	Paths        *PathsConfig        `yaml:"paths,omitempty"`
	Store        *StoreConfig        `yaml:"store,omitempty"`
	Validation   *ValidationConfig   `yaml:"validation,omitempty"`
	Registration *RegistrationConfig `yaml:"registration,omitempty"`
}

// PathsConfig configures file locations.
type PathsConfig struct {
	// Root is the base directory for agentreg data.
	Root string `yaml:"root"`

	// KeyFile holds this agent's Ed25519 seed.
	KeyFile string `yaml:"key_file"`

	// Database is the SQLite store file.
	Database string `yaml:"database"`
}

// StoreConfig selects the entry store backend.
type StoreConfig struct {
	// Backend is "sqlite" or "memory". The memory backend forgets
	// everything when the process exits and is meant for tests and
	// dry runs.
	Backend string `yaml:"backend"`

	// PoolSize is the SQLite connection pool size.
	PoolSize int `yaml:"pool_size"`
}

// ValidationConfig configures the registration validator.
type ValidationConfig struct {
	// PartialEvidence is "accept" or "reject": what to do with a
	// registration whose author's chain is not fully known.
	PartialEvidence string `yaml:"partial_evidence"`
}

// RegistrationConfig configures the registration writer's retries of
// the anchor publication and link steps.
type RegistrationConfig struct {
	RetryAttempts int `yaml:"retry_attempts"`

	// InitialBackoff and MaxBackoff are Go duration strings.
	InitialBackoff string `yaml:"initial_backoff"`
	MaxBackoff     string `yaml:"max_backoff"`
}

// Backoff parses the configured backoff durations.
func (r RegistrationConfig) Backoff() (initial, ceiling time.Duration, err error) {
	initial, err = time.ParseDuration(r.InitialBackoff)
	if err != nil {
		return 0, 0, fmt.Errorf("registration.initial_backoff: %w", err)
	}
	ceiling, err = time.ParseDuration(r.MaxBackoff)
	if err != nil {
		return 0, 0, fmt.Errorf("registration.max_backoff: %w", err)
	}
	return initial, ceiling, nil
}

// SnapshotConfig configures snapshot export defaults.
type SnapshotConfig struct {
	// Compression is "none", "lz4", or "zstd".
	Compression string `yaml:"compression"`
}

// Default returns the default configuration, used as the base that the
// config file is merged into.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	defaultRoot := filepath.Join(homeDir, ".local", "share", "agentreg")

	return &Config{
		Environment: Development,
		LogLevel:    "info",
		Paths: PathsConfig{
			Root:     defaultRoot,
			KeyFile:  "${AGENTREG_ROOT}/agent.key",
			Database: "${AGENTREG_ROOT}/registry.db",
		},
		Store: StoreConfig{
			Backend:  BackendSQLite,
			PoolSize: 4,
		},
		Validation: ValidationConfig{
			PartialEvidence: "accept",
		},
		Registration: RegistrationConfig{
			RetryAttempts:  5,
			InitialBackoff: "100ms",
			MaxBackoff:     "2s",
		},
		Snapshot: SnapshotConfig{
			Compression: "zstd",
		},
	}
}

// Load loads configuration from the file named by AGENTREG_CONFIG.
// There is no fallback: if the variable is unset, Load fails.
func Load() (*Config, error) {
	configPath := os.Getenv(EnvVar)
	if configPath == "" {
		return nil, fmt.Errorf("%s environment variable not set; "+
			"set it to the path of your agentreg config file, or use --config flag", EnvVar)
	}

	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path. Files ending
// in .json or .jsonc are read as JSON with comments; anything else as
// YAML.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	if err := cfg.loadFile(path); err != nil {
		return nil, err
	}

	cfg.applyEnvironmentOverrides()
	cfg.expandVariables()

	return cfg, nil
}

// loadFile merges a configuration file into c.
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonc":
		// JSON is a subset of YAML, so the stripped document goes
		// through the same decoder and struct tags.
		data = jsonc.ToJSON(data)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}

// applyEnvironmentOverrides applies the environment-specific overrides.
func (c *Config) applyEnvironmentOverrides() {
	var overrides *ConfigOverrides

	switch c.Environment {
	case Development:
		overrides = c.Development
	case Staging:
		overrides = c.Staging
	case Production:
		overrides = c.Production
		// Production defaults: registrations need full evidence.
		if overrides == nil {
			overrides = &ConfigOverrides{
				Validation: &ValidationConfig{PartialEvidence: "reject"},
			}
		}
	}

	if overrides == nil {
		return
	}

	if overrides.LogLevel != "" {
		c.LogLevel = overrides.LogLevel
	}

	if overrides.Paths != nil {
		if overrides.Paths.Root != "" {
			c.Paths.Root = overrides.Paths.Root
		}
		if overrides.Paths.KeyFile != "" {
			c.Paths.KeyFile = overrides.Paths.KeyFile
		}
		if overrides.Paths.Database != "" {
			c.Paths.Database = overrides.Paths.Database
		}
	}

	if overrides.Store != nil {
		if overrides.Store.Backend != "" {
			c.Store.Backend = overrides.Store.Backend
		}
		if overrides.Store.PoolSize != 0 {
			c.Store.PoolSize = overrides.Store.PoolSize
		}
	}

	if overrides.Validation != nil && overrides.Validation.PartialEvidence != "" {
		c.Validation.PartialEvidence = overrides.Validation.PartialEvidence
	}

	if overrides.Registration != nil {
		if overrides.Registration.RetryAttempts != 0 {
			c.Registration.RetryAttempts = overrides.Registration.RetryAttempts
		}
		if overrides.Registration.InitialBackoff != "" {
			c.Registration.InitialBackoff = overrides.Registration.InitialBackoff
		}
		if overrides.Registration.MaxBackoff != "" {
			c.Registration.MaxBackoff = overrides.Registration.MaxBackoff
		}
	}
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in paths.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"AGENTREG_ROOT": c.Paths.Root,
		"HOME":          os.Getenv("HOME"),
	}

	c.Paths.Root = expandVars(c.Paths.Root, vars)
	vars["AGENTREG_ROOT"] = c.Paths.Root // Update for dependent paths.

	c.Paths.KeyFile = expandVars(c.Paths.KeyFile, vars)
	c.Paths.Database = expandVars(c.Paths.Database, vars)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// expandVars expands ${VAR} and ${VAR:-default} patterns, preferring
// vars over the process environment.
func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

var logLevels = []string{"debug", "info", "warn", "error"}

// Validate checks the configuration for errors, reporting all of them.
func (c *Config) Validate() error {
	var errs []error

	if c.Environment != Development && c.Environment != Staging && c.Environment != Production {
		errs = append(errs, fmt.Errorf("invalid environment: %s", c.Environment))
	}

	if !slices.Contains(logLevels, c.LogLevel) {
		errs = append(errs, fmt.Errorf("log_level must be one of: %v", logLevels))
	}

	if c.Paths.Root == "" {
		errs = append(errs, errors.New("paths.root is required"))
	}
	if c.Paths.KeyFile == "" {
		errs = append(errs, errors.New("paths.key_file is required"))
	}

	switch c.Store.Backend {
	case BackendSQLite:
		if c.Paths.Database == "" {
			errs = append(errs, errors.New("paths.database is required for the sqlite backend"))
		}
		if c.Store.PoolSize < 1 {
			errs = append(errs, fmt.Errorf("store.pool_size must be positive, got %d", c.Store.PoolSize))
		}
	case BackendMemory:
	default:
		errs = append(errs, fmt.Errorf("store.backend must be %q or %q, got %q", BackendSQLite, BackendMemory, c.Store.Backend))
	}

	switch c.Validation.PartialEvidence {
	case "accept", "reject":
	default:
		errs = append(errs, fmt.Errorf("validation.partial_evidence must be accept or reject, got %q", c.Validation.PartialEvidence))
	}

	if c.Registration.RetryAttempts < 1 {
		errs = append(errs, fmt.Errorf("registration.retry_attempts must be positive, got %d", c.Registration.RetryAttempts))
	}
	if initial, ceiling, err := c.Registration.Backoff(); err != nil {
		errs = append(errs, err)
	} else if initial <= 0 || ceiling < initial {
		errs = append(errs, fmt.Errorf("registration backoff must satisfy 0 < initial_backoff <= max_backoff, got %s and %s", initial, ceiling))
	}

	switch c.Snapshot.Compression {
	case "none", "lz4", "zstd":
	default:
		errs = append(errs, fmt.Errorf("snapshot.compression must be none, lz4, or zstd, got %q", c.Snapshot.Compression))
	}

	return errors.Join(errs...)
}

// EnsurePaths creates the directories the configured files live in.
func (c *Config) EnsurePaths() error {
	directories := []string{
		c.Paths.Root,
		filepath.Dir(c.Paths.KeyFile),
	}
	if c.Store.Backend == BackendSQLite {
		directories = append(directories, filepath.Dir(c.Paths.Database))
	}

	for _, directory := range directories {
		if directory == "" || directory == "." {
			continue
		}
		if err := os.MkdirAll(directory, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", directory, err)
		}
	}

	return nil
}
