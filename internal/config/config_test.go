package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, `tokens = ["p-b-token"]`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Port != 5100 {
		t.Errorf("default port = %d, want 5100", cfg.Port)
	}
	if cfg.Timeout != 120 {
		t.Errorf("default timeout = %d, want 120", cfg.Timeout)
	}
	if cfg.ProbeBot != "Assistant" {
		t.Errorf("default probe bot = %q, want Assistant", cfg.ProbeBot)
	}
	if cfg.UpstreamURL != "https://api.poe.com" {
		t.Errorf("default upstream url = %q", cfg.UpstreamURL)
	}
	if len(cfg.Tokens) != 1 || cfg.Tokens[0] != "p-b-token" {
		t.Errorf("tokens = %v", cfg.Tokens)
	}
}

func TestLoad_ExplicitValues(t *testing.T) {
	path := writeConfig(t, `
port = 3700
timeout = 30
accessTokens = ["static-1", "static-2"]

[bot]
"gpt-4" = "GPT-4"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Port != 3700 {
		t.Errorf("port = %d, want 3700", cfg.Port)
	}
	if cfg.Timeout != 30 {
		t.Errorf("timeout = %d, want 30", cfg.Timeout)
	}
	if len(cfg.AccessTokens) != 2 {
		t.Errorf("accessTokens = %v", cfg.AccessTokens)
	}
	if cfg.Bot["gpt-4"] != "GPT-4" {
		t.Errorf("bot map = %v", cfg.Bot)
	}
	if cfg.BaseURL != "http://localhost:3700" {
		t.Errorf("derived base url = %q", cfg.BaseURL)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}
