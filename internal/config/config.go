// Package config provides configuration management for mnemonic.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultWorkerPort is the port the HTTP worker listens on.
	DefaultWorkerPort = 37820
	// DefaultLogLevel is the zerolog level used when none is configured.
	DefaultLogLevel = "info"

	dataDirName      = ".mnemonic"
	settingsFileName = "settings.yaml"
)

// Config holds the runtime settings: the error categories the engine is
// initialized with, plus worker plumbing.
type Config struct {
	WorkerPort int                 `yaml:"worker_port"`
	LogLevel   string              `yaml:"log_level"`
	Categories map[string][]string `yaml:"categories"`
}

// Default returns the built-in configuration. The category set covers the
// common failure classes so the engine is useful before any settings file
// exists.
func Default() *Config {
	return &Config{
		WorkerPort: DefaultWorkerPort,
		LogLevel:   DefaultLogLevel,
		Categories: map[string][]string{
			"auth":       {"(intent|callback).*oauth", "auth.*fail", "token.*(expired|invalid|rejected)", "unauthorized", "forbidden"},
			"network":    {"timeout", "connection refused", "ECONNRESET", "ENOTFOUND", "network unreachable"},
			"build":      {"npm ERR", "cannot find module", "compile error", "build failed", "tsc.*error"},
			"database":   {"deadlock", "duplicate key", "constraint.*violat", "connection pool"},
			"filesystem": {"ENOENT", "EACCES", "no such file", "permission denied", "disk.*full"},
		},
	}
}

// DataDir returns the mnemonic data directory under the user's home.
func DataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return dataDirName
	}
	return filepath.Join(home, dataDirName)
}

// SettingsPath returns the settings file path.
func SettingsPath() string {
	return filepath.Join(DataDir(), settingsFileName)
}

// EnsureDataDir creates the data directory if needed.
func EnsureDataDir() error {
	return os.MkdirAll(DataDir(), 0o755)
}

// EnsureSettings writes a default settings file when none exists.
func EnsureSettings() error {
	path := SettingsPath()
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	data, err := yaml.Marshal(Default())
	if err != nil {
		return fmt.Errorf("marshal default settings: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// EnsureAll prepares the data directory and settings file.
func EnsureAll() error {
	if err := EnsureDataDir(); err != nil {
		return fmt.Errorf("ensure data dir: %w", err)
	}
	if err := EnsureSettings(); err != nil {
		return fmt.Errorf("ensure settings: %w", err)
	}
	return nil
}

// Load reads the settings file, filling gaps with defaults.
func Load() (*Config, error) {
	return LoadFrom(SettingsPath())
}

// LoadFrom reads a settings file from an explicit path.
func LoadFrom(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse settings: %w", err)
	}

	defaults := Default()
	if cfg.WorkerPort == 0 {
		cfg.WorkerPort = defaults.WorkerPort
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = defaults.LogLevel
	}
	if len(cfg.Categories) == 0 {
		cfg.Categories = defaults.Categories
	}
	return cfg, nil
}
