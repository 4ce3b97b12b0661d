// Package config loads the clqa YAML configuration file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/clqa/internal/kind"
)

// EnvVar names the environment variable holding the default config path.
const EnvVar = "CLQA_CONFIG"

// Config is the clqa configuration.
type Config struct {
	// LogLevel is one of debug, info, warn, error. Empty means info.
	LogLevel string `yaml:"log_level,omitempty"`

	// Ledger is the SQLite computation history. Empty disables it.
	// Relative paths are resolved against the config file's directory.
	Ledger string `yaml:"ledger,omitempty"`

	// Compute maps a kind name (ccl, shear) to its worker command.
	Compute map[string]Compute `yaml:"compute,omitempty"`
}

// Compute configures the worker command of one kind.
type Compute struct {
	// Command is the argv template; see package compute.
	Command []string `yaml:"command"`

	// Env holds extra KEY=VALUE entries for the worker.
	Env []string `yaml:"env,omitempty"`

	// ScratchDir is the parent of per-run output directories.
	ScratchDir string `yaml:"scratch_dir,omitempty"`
}

// Default returns the configuration used without a config file:
// info logging, no ledger, no computation.
func Default() *Config {
	return &Config{LogLevel: "info", Compute: map[string]Compute{}}
}

// Load reads the config file at path. An empty path returns Default().
func Load(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}

	if cfg.Ledger != "" && !filepath.IsAbs(cfg.Ledger) {
		cfg.Ledger = filepath.Join(filepath.Dir(path), cfg.Ledger)
	}
	for name, c := range cfg.Compute {
		if c.ScratchDir != "" && !filepath.IsAbs(c.ScratchDir) {
			c.ScratchDir = filepath.Join(filepath.Dir(path), c.ScratchDir)
			cfg.Compute[name] = c
		}
	}
	return cfg, nil
}

// Parse decodes and validates YAML configuration. Unknown fields are
// rejected.
func Parse(data []byte) (*Config, error) {
	cfg := Default()

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if cfg.Compute == nil {
		cfg.Compute = map[string]Compute{}
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}

	names := make([]string, 0, len(c.Compute))
	for name := range c.Compute {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if _, err := kind.Lookup(name); err != nil {
			return fmt.Errorf("compute.%s: %w", name, err)
		}
		cc := c.Compute[name]
		if len(cc.Command) == 0 {
			return fmt.Errorf("compute.%s.command is required", name)
		}
		for _, e := range cc.Env {
			if k, _, ok := strings.Cut(e, "="); !ok || k == "" {
				return fmt.Errorf("compute.%s.env: %q is not KEY=VALUE", name, e)
			}
		}
	}
	return nil
}

// ComputeFor returns the worker configuration for k.
func (c *Config) ComputeFor(k kind.Kind) (Compute, bool) {
	cc, ok := c.Compute[k.Name]
	return cc, ok
}

// Level returns the configured log level.
func (c *Config) Level() slog.Level {
	l, _ := parseLevel(c.LogLevel)
	return l
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log_level %q", s)
	}
}
