// Package config handles application configuration.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

const (
	appName        = "dubash"
	configFileName = "config.json"
)

// Config represents the application configuration.
type Config struct {
	// BrokerURL is the session broker endpoint that mints live-session
	// credentials. Required for starting sessions.
	BrokerURL string `json:"broker_url"`

	// Model overrides the model identifier the broker hands back.
	Model string `json:"model,omitempty"`

	// Voice selects the synthesized voice for translated replies.
	Voice string `json:"voice,omitempty"`

	// CaptureRate is the microphone sample rate in Hz.
	CaptureRate int `json:"capture_rate"`

	// PlaybackRate is the output sample rate in Hz, used when a server
	// frame carries no rate of its own.
	PlaybackRate int `json:"playback_rate"`

	// HistoryDir is where conversation history is stored. Empty disables
	// archiving.
	HistoryDir string `json:"history_dir,omitempty"`

	// DefaultCity seeds the location prompt when none is given.
	DefaultCity string `json:"default_city"`
}

// Load loads configuration from the config file.
// Returns default config if file doesn't exist.
func Load() (*Config, error) {
	path, err := configPath()
	if err != nil {
		return nil, fmt.Errorf("get config path: %w", err)
	}
	return loadFrom(path)
}

func loadFrom(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return defaultConfig(), nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

// Save persists the configuration to disk.
func (c *Config) Save() error {
	path, err := configPath()
	if err != nil {
		return fmt.Errorf("get config path: %w", err)
	}
	return c.saveTo(path)
}

func (c *Config) saveTo(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	return nil
}

func configPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("get user config dir: %w", err)
	}
	return filepath.Join(dir, appName, configFileName), nil
}

func defaultConfig() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// applyDefaults fills zero-valued fields so an old or partial config file
// still yields a usable configuration.
func (c *Config) applyDefaults() {
	if c.CaptureRate == 0 {
		c.CaptureRate = 48000
	}
	if c.PlaybackRate == 0 {
		c.PlaybackRate = 24000
	}
	if c.DefaultCity == "" {
		c.DefaultCity = "Jaipur"
	}
	if c.HistoryDir == "" {
		if dir, err := os.UserConfigDir(); err == nil {
			c.HistoryDir = filepath.Join(dir, appName, "history")
		}
	}
}
