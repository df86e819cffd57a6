// Package config loads and saves the client configuration from
// ~/.config/bigtop/config.yaml.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/bigtopdev/bigtop/internal/transport"
)

// Config holds the daemon endpoints and poll cadence.
type Config struct {
	ControlAddr  string `yaml:"control_addr"`            // control request endpoint, "host:port"
	StreamAddr   string `yaml:"stream_addr"`             // stats publish endpoint, "host:port"
	PollInterval string `yaml:"poll_interval,omitempty"` // e.g. "500ms"
	MetricsAddr  string `yaml:"metrics_addr,omitempty"`  // optional /metrics listen address
}

// Default returns the configuration for a locally running daemon.
func Default() *Config {
	return &Config{
		ControlAddr:  transport.DefaultControlAddr,
		StreamAddr:   transport.DefaultStreamAddr,
		PollInterval: "500ms",
	}
}

// Dir returns ~/.config/bigtop.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("home dir: %w", err)
	}
	return filepath.Join(home, ".config", "bigtop"), nil
}

// Path returns the config file location.
func Path() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// Load reads the config file, falling back to defaults when it does not
// exist. Missing fields are filled from the defaults.
func Load() (*Config, error) {
	path, err := Path()
	if err != nil {
		return nil, err
	}
	return LoadFile(path)
}

// LoadFile reads a specific config file. Exported for tests and --config.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if cfg.ControlAddr == "" {
		cfg.ControlAddr = transport.DefaultControlAddr
	}
	if cfg.StreamAddr == "" {
		cfg.StreamAddr = transport.DefaultStreamAddr
	}
	return cfg, nil
}

// Save writes the config to its default location.
func (c *Config) Save() error {
	dir, err := Dir()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return os.WriteFile(filepath.Join(dir, "config.yaml"), data, 0600)
}

// Interval parses the poll interval, falling back to the reference cadence
// of 500ms on an empty or unparsable value.
func (c *Config) Interval() time.Duration {
	d, err := time.ParseDuration(c.PollInterval)
	if err != nil || d <= 0 {
		return 500 * time.Millisecond
	}
	return d
}
