package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/chhz0/tasklist/retry"
)

// isolate 将所有查找指向临时目录，避免本机配置和环境变量干扰测试
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("TASKLIST_CONFIG_DIR", dir)
	t.Setenv("TASKLIST_CONFIG", "")
	return dir
}

func TestLoadDefaults(t *testing.T) {
	dir := isolate(t)

	cfg, err := Load(LoadOptions{EnvFile: filepath.Join(dir, "missing.env")})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := cfg.Finalize(); err != nil {
		t.Fatalf("Finalize: %v", err)
	}

	if cfg.Storage.Backend != "bolt" {
		t.Errorf("backend = %q, want bolt", cfg.Storage.Backend)
	}
	if cfg.Storage.Path != filepath.Join(dir, "tasks.db") {
		t.Errorf("path = %q", cfg.Storage.Path)
	}
	if cfg.Storage.Key != "todos" {
		t.Errorf("key = %q, want todos", cfg.Storage.Key)
	}
	if cfg.Reminders.Interval != time.Hour {
		t.Errorf("interval = %v, want 1h", cfg.Reminders.Interval)
	}
	if cfg.File != "" {
		t.Errorf("no file expected, got %q", cfg.File)
	}
}

func TestLoadFileAndEnvPrecedence(t *testing.T) {
	dir := isolate(t)
	content := `
[storage]
backend = "sqlite"
key = "work"

[reminders]
interval = "30m"

[log]
level = "debug"
`
	if err := os.WriteFile(filepath.Join(dir, ConfigFile), []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("TASKLIST_KEY", "home")

	cfg, err := Load(LoadOptions{EnvFile: filepath.Join(dir, "missing.env")})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := cfg.Finalize(); err != nil {
		t.Fatalf("Finalize: %v", err)
	}

	if cfg.Storage.Backend != "sqlite" {
		t.Errorf("backend = %q, want sqlite from file", cfg.Storage.Backend)
	}
	if cfg.Storage.Key != "home" {
		t.Errorf("key = %q, want env override", cfg.Storage.Key)
	}
	if cfg.Reminders.Interval != 30*time.Minute {
		t.Errorf("interval = %v", cfg.Reminders.Interval)
	}
	if cfg.Storage.Path != filepath.Join(dir, "tasks.sqlite") {
		t.Errorf("path = %q", cfg.Storage.Path)
	}
	if cfg.File != filepath.Join(dir, ConfigFile) {
		t.Errorf("file = %q", cfg.File)
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := isolate(t)
	envPath := filepath.Join(dir, "test.env")
	if err := os.WriteFile(envPath, []byte("TASKLIST_LOG_LEVEL=error\n"), 0600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("TASKLIST_LOG_LEVEL", "")
	os.Unsetenv("TASKLIST_LOG_LEVEL")

	cfg, err := Load(LoadOptions{EnvFile: envPath})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Log.Level != "error" {
		t.Errorf("level = %q, want error from .env", cfg.Log.Level)
	}
}

func TestLoadExplicitPathMustExist(t *testing.T) {
	dir := isolate(t)
	_, err := Load(LoadOptions{Path: filepath.Join(dir, "nope.toml"), EnvFile: filepath.Join(dir, "missing.env")})
	if err == nil {
		t.Fatal("expected error for missing explicit config file")
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "bad.toml")
	os.WriteFile(path, []byte("[storage]\nbackedn = \"bolt\"\n"), 0600)

	_, err := Load(LoadOptions{Path: path, EnvFile: filepath.Join(dir, "missing.env")})
	if err == nil || !strings.Contains(err.Error(), "unknown keys") {
		t.Errorf("err = %v, want unknown keys", err)
	}
}

func TestLoadBadEnvValue(t *testing.T) {
	dir := isolate(t)
	t.Setenv("TASKLIST_REMINDER_INTERVAL", "hourly")
	if _, err := Load(LoadOptions{EnvFile: filepath.Join(dir, "missing.env")}); err == nil {
		t.Error("expected error for bad duration")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown backend", func(c *Config) { c.Storage.Backend = "floppy" }},
		{"empty key", func(c *Config) { c.Storage.Key = "" }},
		{"mysql without dsn", func(c *Config) { c.Storage.Backend = "mysql" }},
		{"zero interval", func(c *Config) { c.Reminders.Interval = 0 }},
		{"bad level", func(c *Config) { c.Log.Level = "loud" }},
		{"bad format", func(c *Config) { c.Log.Format = "xml" }},
		{"bad transport", func(c *Config) { c.Notify.Transport = "carrier-pigeon" }},
		{"negative retries", func(c *Config) { c.Retry.MaxAttempts = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default(t.TempDir())
			tt.mutate(cfg)
			if err := cfg.Finalize(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestRetryPolicy(t *testing.T) {
	cfg := Default(t.TempDir())
	if _, ok := cfg.RetryPolicy().(*retry.ExponentialBackoff); !ok {
		t.Errorf("default policy = %T", cfg.RetryPolicy())
	}
	cfg.Retry.MaxAttempts = 0
	if _, ok := cfg.RetryPolicy().(retry.Never); !ok {
		t.Errorf("zero attempts policy = %T", cfg.RetryPolicy())
	}
}

func TestWriteRoundTrip(t *testing.T) {
	cfg := Default(t.TempDir())
	var buf bytes.Buffer
	if err := cfg.Write(&buf); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.Contains(out, "[storage]") || !strings.Contains(out, `backend = "bolt"`) {
		t.Errorf("unexpected toml:\n%s", out)
	}

	path := filepath.Join(t.TempDir(), "round.toml")
	os.WriteFile(path, buf.Bytes(), 0600)
	isolate(t)
	loaded, err := Load(LoadOptions{Path: path, EnvFile: filepath.Join(t.TempDir(), "missing.env")})
	if err != nil {
		t.Fatalf("reloading written config: %v", err)
	}
	if loaded.Reminders.Interval != time.Hour {
		t.Errorf("interval after round trip = %v", loaded.Reminders.Interval)
	}
}
