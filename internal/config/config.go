// Package config provides configuration for nodegraph sessions.
//
// Settings are resolved in three layers, lowest priority first: built-in
// defaults, a TOML or YAML file, and NODEGRAPH_* environment variables.
package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dshills/nodegraph/internal/config/loader"
	"github.com/dshills/nodegraph/internal/history"
	"github.com/dshills/nodegraph/internal/logging"
)

// EnvPrefix is the prefix for environment overrides.
const EnvPrefix = "NODEGRAPH_"

// Config holds all nodegraph settings.
type Config struct {
	History HistoryConfig `yaml:"history"`
	Logging LoggingConfig `yaml:"logging"`
	Script  ScriptConfig  `yaml:"script"`
}

// HistoryConfig configures the command log.
type HistoryConfig struct {
	// Capacity is the maximum number of undo entries; 0 means unbounded.
	Capacity int `yaml:"capacity"`
	// RootName labels the root log in diagnostics.
	RootName string `yaml:"rootName"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ScriptConfig configures the Lua bridge.
type ScriptConfig struct {
	// Timeout bounds a single script run; 0 disables the limit.
	Timeout time.Duration `yaml:"timeout"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		History: HistoryConfig{
			Capacity: history.DefaultCapacity,
			RootName: history.DefaultRootName,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: logging.FormatText,
		},
		Script: ScriptConfig{
			Timeout: 5 * time.Second,
		},
	}
}

// Option configures Load.
type Option func(*loadOptions)

type loadOptions struct {
	fs        loader.FileSystem
	envPrefix string
	skipEnv   bool
}

// WithFileSystem reads config files from fsys instead of the OS.
func WithFileSystem(fsys loader.FileSystem) Option {
	return func(o *loadOptions) {
		o.fs = fsys
	}
}

// WithoutEnv disables environment overrides.
func WithoutEnv() Option {
	return func(o *loadOptions) {
		o.skipEnv = true
	}
}

// Load resolves the configuration. An empty path or a missing file yields the
// defaults plus environment overrides.
func Load(path string, opts ...Option) (Config, error) {
	o := loadOptions{fs: loader.DefaultFS(), envPrefix: EnvPrefix}
	for _, opt := range opts {
		opt(&o)
	}

	var merged map[string]any

	if path != "" {
		l, err := loader.ForPath(o.fs, path)
		if err != nil {
			return Config{}, err
		}
		fileValues, err := l.Load()
		if err != nil {
			return Config{}, err
		}
		merged = loader.DeepMerge(merged, fileValues)
	}

	if !o.skipEnv {
		envValues, err := loader.NewEnvLoader(o.envPrefix).Load()
		if err != nil {
			return Config{}, fmt.Errorf("loading environment: %w", err)
		}
		merged = loader.DeepMerge(merged, envValues)
	}

	cfg, err := decode(merged)
	if err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// decode overlays values onto the defaults.
func decode(values map[string]any) (Config, error) {
	cfg := Default()
	if len(values) == 0 {
		return cfg, nil
	}

	data, err := yaml.Marshal(values)
	if err != nil {
		return Config{}, fmt.Errorf("encoding config values: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return cfg, nil
}

// Validate checks settings for values the rest of the system cannot use.
func (c Config) Validate() error {
	if c.History.Capacity < 0 {
		return fmt.Errorf("%w: history.capacity must not be negative, got %d", ErrInvalidConfig, c.History.Capacity)
	}
	if c.History.RootName == "" {
		return fmt.Errorf("%w: history.rootName must not be empty", ErrInvalidConfig)
	}
	if !logging.ValidFormat(c.Logging.Format) {
		return fmt.Errorf("%w: unknown logging.format %q", ErrInvalidConfig, c.Logging.Format)
	}
	if c.Script.Timeout < 0 {
		return fmt.Errorf("%w: script.timeout must not be negative", ErrInvalidConfig)
	}
	return nil
}

// LoggerConfig converts the logging section into a logging.Config.
func (c Config) LoggerConfig() logging.Config {
	cfg := logging.DefaultConfig()
	cfg.Level = c.Logging.Level
	if c.Logging.Format != "" {
		cfg.Format = c.Logging.Format
	}
	return cfg
}
