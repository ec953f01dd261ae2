package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.ListenAddr() != "127.0.0.1:37778" {
		t.Errorf("ListenAddr = %q", cfg.ListenAddr())
	}
	if cfg.Safety.MaxConsecutive != 3 || cfg.Safety.HistorySize != 10 {
		t.Errorf("safety defaults = %+v", cfg.Safety)
	}
	if cfg.Safety.ConfidenceFloor != 0.25 {
		t.Errorf("ConfidenceFloor = %v, want 0.25", cfg.Safety.ConfidenceFloor)
	}
	if cfg.Safety.IdleTTL != 24*time.Hour {
		t.Errorf("IdleTTL = %v, want 24h", cfg.Safety.IdleTTL)
	}
	if !cfg.Policy.Deterministic {
		t.Error("Deterministic should default to true")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate(Default()) = %v", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != Default().Server.Port {
		t.Errorf("Port = %d, want default", cfg.Server.Port)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
server:
  port: 9000
policy:
  backend: http
  url: http://policy:8501
  timeout: 750ms
safety:
  max_consecutive: 4
auth:
  secret: s3cret
`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("Port = %d, want 9000", cfg.Server.Port)
	}
	if cfg.Server.Bind != "127.0.0.1" {
		t.Errorf("Bind = %q, default should survive a partial file", cfg.Server.Bind)
	}
	if cfg.Policy.Backend != "http" || cfg.Policy.URL != "http://policy:8501" {
		t.Errorf("policy = %+v", cfg.Policy)
	}
	if cfg.Policy.Timeout != 750*time.Millisecond {
		t.Errorf("Timeout = %v, want 750ms", cfg.Policy.Timeout)
	}
	if cfg.Safety.MaxConsecutive != 4 {
		t.Errorf("MaxConsecutive = %d, want 4", cfg.Safety.MaxConsecutive)
	}
	if cfg.Auth.Secret != "s3cret" {
		t.Errorf("Secret = %q", cfg.Auth.Secret)
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("server:\n  port: 9000\n"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("HABITCITY_SERVER_PORT", "9100")
	t.Setenv("HABITCITY_POLICY_BACKEND", "none")
	t.Setenv("HABITCITY_SAFETY_IDLE_TTL", "2h")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 9100 {
		t.Errorf("Port = %d, want 9100", cfg.Server.Port)
	}
	if cfg.Policy.Backend != "none" {
		t.Errorf("Backend = %q, want none", cfg.Policy.Backend)
	}
	if cfg.Safety.IdleTTL != 2*time.Hour {
		t.Errorf("IdleTTL = %v, want 2h", cfg.Safety.IdleTTL)
	}
}

func TestLoadConfigEnvPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom.yaml")
	if err := os.WriteFile(path, []byte("database:\n  path: /tmp/h.db\n"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("HABITCITY_CONFIG", path)

	if got := DefaultPath(); got != path {
		t.Errorf("DefaultPath = %q, want %q", got, path)
	}
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Database.Path != "/tmp/h.db" {
		t.Errorf("Database.Path = %q", cfg.Database.Path)
	}
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"bad yaml", "server: [\n"},
		{"unknown backend", "policy:\n  backend: carrier-pigeon\n"},
		{"floor out of range", "safety:\n  confidence_floor: 1.5\n"},
		{"port out of range", "server:\n  port: 70000\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			if err := os.WriteFile(path, []byte(tt.yaml), 0644); err != nil {
				t.Fatal(err)
			}
			if _, err := Load(path); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}
