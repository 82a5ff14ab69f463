package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad_AppliesDefaultsAndFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
api:
  base_url: http://127.0.0.1:4000
balance:
  poll_interval: 500ms
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("写入配置失败: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.API.BaseURL != "http://127.0.0.1:4000" {
		t.Errorf("unexpected base_url %q", cfg.API.BaseURL)
	}
	if cfg.Balance.PollInterval != 500*time.Millisecond {
		t.Errorf("unexpected poll_interval %s", cfg.Balance.PollInterval)
	}
	if cfg.API.Timeout != 10*time.Second {
		t.Errorf("expected default timeout 10s, got %s", cfg.API.Timeout)
	}
	if cfg.Auth.Password != "password" || cfg.Auth.Email != "" {
		t.Errorf("unexpected auth defaults %+v", cfg.Auth)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing config file")
	}
}

func TestDefault_MatchesShippedConfig(t *testing.T) {
	cfg, err := Default()
	if err != nil {
		t.Fatalf("Default returned error: %v", err)
	}
	if cfg.API.BaseURL != "http://localhost:3000" {
		t.Errorf("unexpected base_url %q", cfg.API.BaseURL)
	}
	if cfg.Balance.PollInterval != 2*time.Second {
		t.Errorf("unexpected poll_interval %s", cfg.Balance.PollInterval)
	}
}

func TestValidate_AggregatesErrors(t *testing.T) {
	cfg, err := Default()
	if err != nil {
		t.Fatalf("Default returned error: %v", err)
	}
	cfg.API.BaseURL = "localhost:3000"
	cfg.Balance.PollInterval = 0
	cfg.Monitor.Port = -1

	err = cfg.Validate()
	if err == nil {
		t.Fatalf("expected validation error")
	}
	for _, want := range []string{"api.base_url", "balance.poll_interval", "monitor.port"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("expected error to mention %s, got %v", want, err)
		}
	}
}
