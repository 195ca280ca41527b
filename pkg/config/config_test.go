package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Tools.Compute != "flyctl" {
		t.Errorf("compute tool = %q", cfg.Tools.Compute)
	}
	if cfg.Tools.Database != "neonctl" {
		t.Errorf("database tool = %q", cfg.Tools.Database)
	}
	if cfg.Tools.SourceControl != "gh" {
		t.Errorf("source-control tool = %q", cfg.Tools.SourceControl)
	}
	if cfg.SSH.Port != 22 {
		t.Errorf("ssh port = %d", cfg.SSH.Port)
	}
	if cfg.SSH.ConnectTimeout != 15*time.Second {
		t.Errorf("connect timeout = %v", cfg.SSH.ConnectTimeout)
	}
	if cfg.Log.Level != "info" || cfg.Log.Format != "console" {
		t.Errorf("log defaults = %q/%q", cfg.Log.Level, cfg.Log.Format)
	}
	if cfg.DataDir == "" {
		t.Error("data dir must have a default")
	}
}

func TestLoad_ConfigFile(t *testing.T) {
	path := writeConfig(t, `
data_dir: /var/lib/envforge
tools:
  compute: fly
  database: neon
ssh:
  user: ops
  port: 2222
log:
  level: debug
  format: json
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.DataDir != "/var/lib/envforge" {
		t.Errorf("data dir = %q", cfg.DataDir)
	}
	if cfg.Tools.Compute != "fly" || cfg.Tools.Database != "neon" {
		t.Errorf("tools = %+v", cfg.Tools)
	}
	// Unset keys keep their defaults.
	if cfg.Tools.SourceControl != "gh" || cfg.Tools.Git != "git" {
		t.Errorf("tool defaults lost: %+v", cfg.Tools)
	}
	if cfg.SSH.User != "ops" || cfg.SSH.Port != 2222 {
		t.Errorf("ssh = %+v", cfg.SSH)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "json" {
		t.Errorf("log = %+v", cfg.Log)
	}
}

func TestLoad_EnvironmentOverride(t *testing.T) {
	t.Setenv("ENVFORGE_TOOLS_COMPUTE", "flyctl-staging")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Tools.Compute != "flyctl-staging" {
		t.Errorf("compute tool = %q, want env override", cfg.Tools.Compute)
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"bad log level", "log:\n  level: loud\n"},
		{"bad port", "ssh:\n  port: 99999\n"},
		{"empty tool", "tools:\n  compute: \"\"\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, tt.content)
			if _, err := Load(path); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("an explicitly named missing config file must be an error")
	}
}

func TestPaths(t *testing.T) {
	cfg := &Config{DataDir: "/data"}

	if got := cfg.ProjectsPath(); got != filepath.Join("/data", "projects.json") {
		t.Errorf("projects path = %q", got)
	}
	if got := cfg.VMsPath(); got != filepath.Join("/data", "vms.json") {
		t.Errorf("vms path = %q", got)
	}
	if got := cfg.AuditPath(); got != filepath.Join("/data", "audit.db") {
		t.Errorf("audit path = %q", got)
	}
}
