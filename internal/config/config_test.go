// ABOUTME: Tests for configuration loading and validation
// ABOUTME: Covers YAML and TOML parsing, env expansion, defaults and bad input

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing config file: %v", err)
	}
	return path
}

func TestLoadYAML(t *testing.T) {
	path := writeConfig(t, "parley.yaml", `
database:
  backend: sqlite
  path: /tmp/parley-test.db
  query_timeout: 2s
logging:
  level: debug
  format: json
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Database.Backend != BackendSQLite {
		t.Errorf("Backend: got %q", cfg.Database.Backend)
	}
	if cfg.Database.Path != "/tmp/parley-test.db" {
		t.Errorf("Path: got %q", cfg.Database.Path)
	}
	if cfg.Database.QueryTimeout != 2*time.Second {
		t.Errorf("QueryTimeout: got %v", cfg.Database.QueryTimeout)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "json" {
		t.Errorf("Logging: got %+v", cfg.Logging)
	}
}

func TestLoadTOML(t *testing.T) {
	path := writeConfig(t, "parley.toml", `
[database]
backend = "postgres"
dsn = "postgres://localhost/parley"
query_timeout = "500ms"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Database.Backend != BackendPostgres {
		t.Errorf("Backend: got %q", cfg.Database.Backend)
	}
	if cfg.Database.DSN != "postgres://localhost/parley" {
		t.Errorf("DSN: got %q", cfg.Database.DSN)
	}
	if cfg.Database.QueryTimeout != 500*time.Millisecond {
		t.Errorf("QueryTimeout: got %v", cfg.Database.QueryTimeout)
	}
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, "empty.yaml", "")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Database.Backend != BackendSQLite {
		t.Errorf("default backend: got %q", cfg.Database.Backend)
	}
	if cfg.Database.Path != filepath.Join("data", "parley.db") {
		t.Errorf("default path: got %q", cfg.Database.Path)
	}
	if cfg.Database.QueryTimeout != 0 {
		t.Errorf("default query timeout should stay zero, got %v", cfg.Database.QueryTimeout)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "text" {
		t.Errorf("default logging: got %+v", cfg.Logging)
	}
}

func TestLoadEnvExpansion(t *testing.T) {
	t.Setenv("PARLEY_TEST_DSN", "postgres://env-host/parley")

	path := writeConfig(t, "env.yaml", `
database:
  backend: postgres
  dsn: ${PARLEY_TEST_DSN}
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Database.DSN != "postgres://env-host/parley" {
		t.Errorf("DSN not expanded: got %q", cfg.Database.DSN)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{"unknown backend", "bad.yaml", "database:\n  backend: mysql\n"},
		{"postgres without dsn", "nodsn.yaml", "database:\n  backend: postgres\n"},
		{"bad duration", "dur.yaml", "database:\n  query_timeout: soon\n"},
		{"negative duration", "neg.yaml", "database:\n  query_timeout: -1s\n"},
		{"invalid yaml", "broken.yaml", "database: [unclosed\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, tt.file, tt.content)
			if _, err := Load(path); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected an error for missing file")
	}
}
