package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// Helper to set up test environment with project and global configs
type testEnv struct {
	projectDir string
	homeDir    string
	env        map[string]string
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return &testEnv{
		projectDir: t.TempDir(),
		homeDir:    t.TempDir(),
		env:        map[string]string{},
	}
}

func (e *testEnv) writeProjectConfig(t *testing.T, content string) string {
	t.Helper()
	configPath := filepath.Join(e.projectDir, ConfigFileName)
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to create project config: %v", err)
	}
	return configPath
}

func (e *testEnv) resolve(t *testing.T, path string) (*Config, error) {
	t.Helper()
	return ResolveWith(Options{
		Path:    path,
		HomeDir: e.homeDir,
		WorkDir: e.projectDir,
		Getenv:  func(k string) string { return e.env[k] },
	})
}

func TestPrecedence_ProjectOverridesGlobal(t *testing.T) {
	env := setupTestEnv(t)

	writeGlobalConfig(t, env.homeDir, `
[server]
host = "global-host"
port = 1111

[log]
level = "debug"
`)
	env.writeProjectConfig(t, `
[server]
host = "project-host"
port = 2222
`)

	cfg, err := env.resolve(t, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Addr() != "project-host:2222" {
		t.Errorf("expected project-host:2222, got %s", cfg.Addr())
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("expected log level from global config, got %q", cfg.Log.Level)
	}
}

func TestPrecedence_EnvOverridesFiles(t *testing.T) {
	env := setupTestEnv(t)
	env.writeProjectConfig(t, `
[server]
port = 2222

[database]
path = "project.db"
`)
	env.env[EnvDatabase] = "/var/lib/daybook/env.db"
	env.env[EnvBind] = "0.0.0.0:8080"

	cfg, err := env.resolve(t, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Database.Path != "/var/lib/daybook/env.db" {
		t.Errorf("expected database path from env, got %q", cfg.Database.Path)
	}
	if cfg.Addr() != "0.0.0.0:8080" {
		t.Errorf("expected bind from env, got %s", cfg.Addr())
	}
}

func TestResolve_DiscoversParentDirectory(t *testing.T) {
	env := setupTestEnv(t)
	env.writeProjectConfig(t, `
[database]
path = "parent.db"
`)
	nested := filepath.Join(env.projectDir, "a", "b")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatalf("failed to create nested dir: %v", err)
	}

	cfg, err := ResolveWith(Options{WorkDir: nested, Getenv: noEnv})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Database.Path != "parent.db" {
		t.Errorf("expected parent.db, got %q", cfg.Database.Path)
	}
}

func TestResolve_ExplicitPathMustExist(t *testing.T) {
	env := setupTestEnv(t)

	_, err := env.resolve(t, filepath.Join(env.projectDir, "missing.toml"))
	if err == nil {
		t.Fatal("expected error for missing explicit config")
	}
}

func TestResolve_AllSections(t *testing.T) {
	env := setupTestEnv(t)
	path := env.writeProjectConfig(t, `
[server]
host = "127.0.0.1"
port = 9000
shutdown_timeout = "5s"

[database]
path = "/tmp/daybook.db"

[log]
level = "warn"
format = "json"

[recurrence]
max_occurrences = 500
max_iterations = 20000

[telemetry]
enabled = true
stdout = true
`)

	cfg, err := env.resolve(t, path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.ShutdownTimeout() != 5*time.Second {
		t.Errorf("expected 5s shutdown timeout, got %v", cfg.ShutdownTimeout())
	}
	if cfg.Log.Format != "json" || cfg.Log.Level != "warn" {
		t.Errorf("unexpected log config %+v", cfg.Log)
	}
	if cfg.Recurrence.MaxOccurrences != 500 || cfg.Recurrence.MaxIterations != 20000 {
		t.Errorf("unexpected recurrence config %+v", cfg.Recurrence)
	}
	if !cfg.Telemetry.Enabled || !cfg.Telemetry.Stdout {
		t.Errorf("unexpected telemetry config %+v", cfg.Telemetry)
	}
}

func TestResolve_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		env     map[string]string
		wantErr string
	}{
		{
			name:    "port out of range",
			content: "[server]\nport = 70000\n",
			wantErr: "invalid port",
		},
		{
			name:    "unknown key",
			content: "[server]\nhots = \"typo\"\n",
			wantErr: "unknown keys",
		},
		{
			name:    "bad log format",
			content: "[log]\nformat = \"xml\"\n",
			wantErr: "invalid log format",
		},
		{
			name:    "bad shutdown timeout",
			content: "[server]\nshutdown_timeout = \"soon\"\n",
			wantErr: "invalid shutdown_timeout",
		},
		{
			name:    "negative limit",
			content: "[recurrence]\nmax_iterations = -1\n",
			wantErr: "cannot be negative",
		},
		{
			name:    "bad bind env",
			content: "",
			env:     map[string]string{EnvBind: "localhost"},
			wantErr: EnvBind,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := setupTestEnv(t)
			for k, v := range tt.env {
				env.env[k] = v
			}
			path := env.writeProjectConfig(t, tt.content)

			_, err := env.resolve(t, path)
			if err == nil {
				t.Fatal("expected an error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestSetBind_KeepsHostWhenEmpty(t *testing.T) {
	cfg := Default()

	if err := cfg.SetBind(":9100"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Addr() != "localhost:9100" {
		t.Errorf("expected localhost:9100, got %s", cfg.Addr())
	}
}
