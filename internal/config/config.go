// Package config handles configuration loading and management for conductor.
// It supports XDG config paths, project-level overrides, and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for conductor.
type Config struct {
	Executor Executor `mapstructure:"executor"`
	Dispatch Dispatch `mapstructure:"dispatch"`
	Pool     Pool     `mapstructure:"pool"`
	Paths    Paths    `mapstructure:"paths"`
}

// Executor holds settings for the external agent-executor process.
type Executor struct {
	// Command is the executable invoked for every dispatch.
	Command string `mapstructure:"command"`
}

// Dispatch holds work-dispatcher settings.
type Dispatch struct {
	// Timeout is the hard wall-clock budget for one external execution.
	Timeout time.Duration `mapstructure:"timeout"`
	// MaxRetries is the retry ceiling for dispatch-layer errors.
	MaxRetries int `mapstructure:"max_retries"`
}

// Pool holds parallel-pool settings.
type Pool struct {
	// MaxWorkers is the requested worker count. Hard-capped at 10 by the engine.
	MaxWorkers int `mapstructure:"max_workers"`
	// Timeout is the overall wait budget for one pool batch.
	Timeout time.Duration `mapstructure:"timeout"`
}

// Paths holds filesystem locations for produced state.
type Paths struct {
	// StateDir is where checkpoints, bridge state, and telemetry live.
	StateDir string `mapstructure:"state_dir"`
}

// CheckpointDir returns the directory checkpoint files are written to.
func (p Paths) CheckpointDir() string {
	return filepath.Join(p.StateDir, "checkpoints")
}

// BridgeStatePath returns the path of the assignment-bridge state file.
func (p Paths) BridgeStatePath() string {
	return filepath.Join(p.StateDir, "dispatcher.json")
}

// TelemetryDBPath returns the path of the telemetry event log.
func (p Paths) TelemetryDBPath() string {
	return filepath.Join(p.StateDir, "telemetry.db")
}

// Load loads configuration from XDG paths, project overrides, and environment variables.
// Precedence (highest to lowest):
// 1. Environment variables (CONDUCTOR_*)
// 2. Project config (.conductor.yaml in current directory or parent)
// 3. User config (~/.config/conductor/config.yaml)
// 4. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(getUserConfigDir())

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	// Load project config if present
	if projectConfig := findProjectConfig(); projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err == nil {
			if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
				return nil, fmt.Errorf("merging project config: %w", err)
			}
		}
	}

	v.SetEnvPrefix("CONDUCTOR")
	v.AutomaticEnv()
	v.BindEnv("executor.command", "CONDUCTOR_EXECUTOR")

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return cfg, nil
}

// LoadFromPath loads configuration from a specific path (for testing).
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return cfg, nil
}

// setDefaults configures default values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("executor.command", "agentctl")

	v.SetDefault("dispatch.timeout", "300s")
	v.SetDefault("dispatch.max_retries", 3)

	v.SetDefault("pool.max_workers", 3)
	v.SetDefault("pool.timeout", "30m")

	v.SetDefault("paths.state_dir", ".conductor")
}

// getUserConfigDir returns the XDG config directory for conductor.
func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "conductor")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "conductor")
	}
	return filepath.Join(home, ".config", "conductor")
}

// findProjectConfig searches for .conductor.yaml in the current directory and parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(cwd, ".conductor.yaml")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(cwd)
		if parent == cwd {
			break
		}
		cwd = parent
	}

	return ""
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Executor: Executor{
			Command: "agentctl",
		},
		Dispatch: Dispatch{
			Timeout:    300 * time.Second,
			MaxRetries: 3,
		},
		Pool: Pool{
			MaxWorkers: 3,
			Timeout:    30 * time.Minute,
		},
		Paths: Paths{
			StateDir: ".conductor",
		},
	}
}
