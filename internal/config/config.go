// Package config loads and saves the project configuration,
// conventionally a loam.yaml file in the project root.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	CurrentVersion = 1
	DefaultPath    = "loam.yaml"
)

// Config is the top-level configuration.
type Config struct {
	Version  int    `yaml:"version"`
	Database string `yaml:"database"`
	// Schema is the YAML file declaring the target schema the CLI
	// reconciles against.
	Schema string `yaml:"schema,omitempty"`
	// Migrations is the artifact directory. Empty means the CLI works
	// in auto-apply mode with no migration history.
	Migrations string    `yaml:"migrations,omitempty"`
	Serialize  bool      `yaml:"serialize,omitempty"`
	Logging    LogConfig `yaml:"logging,omitempty"`
}

// LogConfig defines logging settings.
type LogConfig struct {
	Level string `yaml:"level,omitempty"` // debug, info, warn, error
	File  string `yaml:"file,omitempty"`  // default stderr
}

// Load reads and parses the config file from the given path.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if cfg.Version != CurrentVersion {
		return nil, fmt.Errorf("unsupported config version %d (expected %d)", cfg.Version, CurrentVersion)
	}

	if err := cfg.resolvePaths(); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	return cfg, nil
}

// Save writes the config to the given path.
func (c *Config) Save(path string) error {
	if path == "" {
		path = DefaultPath
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	return os.WriteFile(path, data, 0o644)
}

// Exists reports whether a config file is present at the path, or at
// the default path when path is empty.
func Exists(path string) bool {
	if path == "" {
		path = DefaultPath
	}
	_, err := os.Stat(path)
	return err == nil
}

func (c *Config) applyDefaults() {
	if c.Database == "" {
		c.Database = "loam.db"
	}
	if c.Schema == "" {
		c.Schema = "schema.yaml"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

func (c *Config) resolvePaths() error {
	var err error
	if c.Database, err = ResolveValue(c.Database); err != nil {
		return fmt.Errorf("database path: %w", err)
	}
	c.Database = ExpandHome(c.Database)
	c.Schema = ExpandHome(c.Schema)
	c.Migrations = ExpandHome(c.Migrations)
	return nil
}

var envPattern = regexp.MustCompile(`\$\{ENV:([^}]+)\}`)

// ResolveValue resolves ${ENV:NAME} references in a string value.
func ResolveValue(val string) (string, error) {
	matches := envPattern.FindStringSubmatch(val)
	if matches == nil {
		return val, nil
	}

	v := os.Getenv(matches[1])
	if v == "" {
		return "", fmt.Errorf("environment variable %s not set", matches[1])
	}
	return envPattern.ReplaceAllLiteralString(val, v), nil
}

// ExpandHome expands ~ to the user's home directory.
func ExpandHome(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
