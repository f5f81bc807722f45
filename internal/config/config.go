package config

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// Config is the full configuration surface, read from config.toml.
type Config struct {
	Port    int    `toml:"port"`
	BaseURL string `toml:"base_url"` // public base URL, used for OAuth redirects

	// Upstream provider settings.
	UpstreamURL string `toml:"upstream_url"`
	Timeout     int    `toml:"timeout"` // seconds
	Proxy       string `toml:"proxy"`

	// Tokens admitted into the credential pool at startup.
	Tokens []string `toml:"tokens"`

	// Static caller-facing tokens accepted alongside account API keys.
	AccessTokens []string `toml:"accessTokens"`

	// Caller model name -> upstream bot name. Merged over the built-in
	// catalog; set a value to "" to drop a built-in entry.
	Bot map[string]string `toml:"bot"`

	// Bot used for the admission canary probe.
	ProbeBot string `toml:"probe_bot"`

	DBPath   string `toml:"db_path"`
	LogLevel string `toml:"log_level"`

	LinuxDoClientKey    string `toml:"linuxdo_client_key"`
	LinuxDoClientSecret string `toml:"linuxdo_client_secret"`
}

// Load reads and decodes the TOML config file, then applies defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Port == 0 {
		c.Port = 5100
	}
	if c.BaseURL == "" {
		c.BaseURL = fmt.Sprintf("http://localhost:%d", c.Port)
	}
	if c.UpstreamURL == "" {
		c.UpstreamURL = "https://api.poe.com"
	}
	if c.Timeout == 0 {
		c.Timeout = 120
	}
	if c.ProbeBot == "" {
		c.ProbeBot = "Assistant"
	}
	if c.DBPath == "" {
		c.DBPath = "poe2gpt.db"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}
