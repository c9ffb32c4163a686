package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestDir_EnvOverride(t *testing.T) {
	t.Setenv("VETO_HOME", "/tmp/custom-veto")
	if got := Dir(); got != "/tmp/custom-veto" {
		t.Errorf("Dir = %q, want VETO_HOME value", got)
	}

	if got := ConfigPath(); got != "/tmp/custom-veto/config.toml" {
		t.Errorf("ConfigPath = %q", got)
	}
	if got := AuditLogPath(); got != "/tmp/custom-veto/audit.log" {
		t.Errorf("AuditLogPath = %q", got)
	}
}

func TestDir_DefaultUnderHome(t *testing.T) {
	t.Setenv("VETO_HOME", "")
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory in test environment")
	}
	if got, want := Dir(), filepath.Join(home, ".veto"); got != want {
		t.Errorf("Dir = %q, want %q", got, want)
	}
}

func TestLoadPath_Missing(t *testing.T) {
	cfg, err := LoadPath(filepath.Join(t.TempDir(), "config.toml"))
	if err != nil {
		t.Fatalf("missing config should yield defaults, got: %v", err)
	}
	if cfg.Auth.Default != "confirm" {
		t.Errorf("default method = %q, want confirm", cfg.Auth.Default)
	}
}

func TestLoadPath_Full(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[auth]
default = "pin"

[auth.levels]
low = "confirm"
high = ["pin", "telegram"]

[auth.fallback]
touchid = "pin"

[auth.telegram]
enabled = true
chat_id = "12345"
timeout_seconds = 60
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadPath(path)
	if err != nil {
		t.Fatalf("LoadPath: %v", err)
	}
	if cfg.Auth.Default != "pin" {
		t.Errorf("default = %q, want pin", cfg.Auth.Default)
	}

	// Bare string and array both decode into chains.
	if chain := cfg.Auth.Levels["low"]; len(chain) != 1 || chain[0] != "confirm" {
		t.Errorf("low chain = %v, want [confirm]", chain)
	}
	if chain := cfg.Auth.Levels["high"]; len(chain) != 2 || chain[1] != "telegram" {
		t.Errorf("high chain = %v, want [pin telegram]", chain)
	}

	if cfg.Auth.Fallback["touchid"] != "pin" {
		t.Errorf("fallback = %v", cfg.Auth.Fallback)
	}
	if !cfg.Auth.Telegram.Enabled || cfg.Auth.Telegram.ChatID != "12345" || cfg.Auth.Telegram.TimeoutSeconds != 60 {
		t.Errorf("telegram config = %+v", cfg.Auth.Telegram)
	}
}

func TestLoadPath_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[auth\ndefault ="), 0o600); err != nil {
		t.Fatal(err)
	}

	_, err := LoadPath(path)
	var cfgErr *Error
	if !errors.As(err, &cfgErr) {
		t.Fatalf("err = %v, want *config.Error", err)
	}
}

func TestLoadPath_EmptyDefaultBackfilled(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[auth]\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadPath(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Auth.Default != "confirm" {
		t.Errorf("default = %q, want confirm backfill", cfg.Auth.Default)
	}
}
