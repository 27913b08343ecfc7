package main

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTempConfig(t *testing.T, name, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestLoadConfigEmptyPath(t *testing.T) {
	cfg, err := loadConfig("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.FlowTimeout != 0 || cfg.API.Enabled {
		t.Errorf("expected zero config, got %+v", cfg)
	}
}

func TestLoadConfigJSONWithComments(t *testing.T) {
	path := writeTempConfig(t, "config.json", `{
		// idle flows are reaped after this many seconds
		"flow_timeout": 90,
		/* ops surface */
		"api": {"enabled": true, "port": 9090},
		"logging": {"level": "debug", "format": "json"},
		"guard": {"drop_rules": [{"rule": "size > 1400"}]}
	}`)

	cfg, err := loadConfig(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.FlowTimeout != 90 {
		t.Errorf("flow_timeout = %d, want 90", cfg.FlowTimeout)
	}
	if !cfg.API.Enabled || cfg.API.Port != 9090 {
		t.Errorf("unexpected api config %+v", cfg.API)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "json" {
		t.Errorf("unexpected logging config %+v", cfg.Logging)
	}
	if len(cfg.Guard.DropRules) != 1 || cfg.Guard.DropRules[0].Rule != "size > 1400" {
		t.Errorf("unexpected guard config %+v", cfg.Guard)
	}
}

func TestLoadConfigYAML(t *testing.T) {
	path := writeTempConfig(t, "config.yaml", `
flow_timeout: 120
logging:
  level: warn
geo:
  mmdb_path: /var/lib/geoip/country.mmdb
  allowed_countries: [US, DE]
  strict: true
`)

	cfg, err := loadConfig(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.FlowTimeout != 120 {
		t.Errorf("flow_timeout = %d, want 120", cfg.FlowTimeout)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("logging level = %q, want warn", cfg.Logging.Level)
	}
	if cfg.Geo.MMDBPath == "" || len(cfg.Geo.AllowedCountries) != 2 || !cfg.Geo.Strict {
		t.Errorf("unexpected geo config %+v", cfg.Geo)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := loadConfig("/does/not/exist.json"); err == nil {
		t.Error("expected an error for a missing config file")
	}
}

func TestLoadConfigBadJSON(t *testing.T) {
	path := writeTempConfig(t, "bad.json", `{"flow_timeout": }`)
	if _, err := loadConfig(path); err == nil {
		t.Error("expected a parse error")
	}
}
