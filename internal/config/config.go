// Package config loads lockbox configuration from a YAML file with
// LOCKBOX_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/lockbox-sh/lockbox/backend"
)

// Config holds persistent lockbox configuration loaded from
// $XDG_CONFIG_HOME/lockbox/config.yaml.
//
// The passphrase is deliberately env-only: a config file holding the key to
// the encrypted file backend would defeat it.
type Config struct {
	Backend     string `yaml:"backend" env:"LOCKBOX_BACKEND"`
	DataDir     string `yaml:"data_dir" env:"LOCKBOX_DATA_DIR"`
	AuditLog    string `yaml:"audit_log" env:"LOCKBOX_AUDIT_LOG"`
	AccessGroup string `yaml:"access_group" env:"LOCKBOX_ACCESS_GROUP"`
	Accessible  string `yaml:"accessible" env:"LOCKBOX_ACCESSIBLE"`
	Passphrase  string `yaml:"-" env:"LOCKBOX_PASSPHRASE"`
}

var validBackends = map[string]bool{
	"":         true, // pick per platform
	"system":   true,
	"keychain": true,
	"wincred":  true,
	"keyring":  true,
	"file":     true,
	"sqlite":   true,
	"memory":   true,
}

// DefaultPath returns the default config file path.
func DefaultPath() string {
	return filepath.Join(xdg.ConfigHome, "lockbox", "config.yaml")
}

// Load reads a YAML config file from path (the default path when empty) and
// applies environment overrides. A missing, empty, or all-comment file yields
// a zero Config and no error.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath()
	}

	cfg := &Config{}
	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config: %w", err)
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field values without touching the filesystem.
func (c *Config) Validate() error {
	if !validBackends[c.Backend] {
		return fmt.Errorf("unknown backend %q", c.Backend)
	}
	if c.Accessible != "" {
		if _, err := backend.ParseAccessible(c.Accessible); err != nil {
			return err
		}
	}
	return nil
}
