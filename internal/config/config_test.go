package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "opsdesk.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
server:
  listen_addr: ":9000"
database:
  path: /tmp/opsdesk-test/app.db
smtp:
  host: smtp.example.com
  port: 2525
  from: noreply@example.com
metrics:
  enabled: true
logging:
  level: debug
  format: text
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.ListenAddr != ":9000" {
		t.Errorf("ListenAddr = %q", cfg.Server.ListenAddr)
	}
	if cfg.SMTP.Port != 2525 {
		t.Errorf("SMTP.Port = %d", cfg.SMTP.Port)
	}
	if !cfg.Metrics.Enabled {
		t.Error("Metrics.Enabled = false")
	}
	// Defaults fill unset fields
	if cfg.Metrics.ListenAddr != ":9090" || cfg.Metrics.Path != "/metrics" {
		t.Errorf("metrics defaults not applied: %+v", cfg.Metrics)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "text" {
		t.Errorf("logging = %+v", cfg.Logging)
	}
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, "{}\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.ListenAddr != ":8080" {
		t.Errorf("ListenAddr default = %q", cfg.Server.ListenAddr)
	}
	if cfg.Database.Path == "" {
		t.Error("Database.Path default is empty")
	}
	if cfg.SMTP.Port != 587 {
		t.Errorf("SMTP.Port default = %d", cfg.SMTP.Port)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "json" {
		t.Errorf("logging defaults = %+v", cfg.Logging)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/opsdesk.yaml"); err == nil {
		t.Error("Load() should fail for a missing file")
	}
}

func TestValidateTLS(t *testing.T) {
	path := writeConfig(t, `
server:
  tls:
    enabled: true
`)

	if _, err := Load(path); err == nil {
		t.Error("Load() should fail when TLS is enabled without cert files")
	}
}

func TestValidateSMTPFrom(t *testing.T) {
	path := writeConfig(t, `
smtp:
  host: smtp.example.com
`)

	if _, err := Load(path); err == nil {
		t.Error("Load() should fail when smtp.host is set without smtp.from")
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Server.ListenAddr != ":8080" {
		t.Errorf("Default ListenAddr = %q", cfg.Server.ListenAddr)
	}
}
