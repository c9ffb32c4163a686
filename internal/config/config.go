// Package config resolves the veto state directory and loads config.toml.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/veto-sh/veto/internal/models"
)

// Error marks an unreadable or malformed config.toml. Per the error policy,
// gate evaluation cannot proceed safely on a config error and must deny.
type Error struct {
	Path string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("config error in %s: %v", e.Path, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Dir returns the veto state directory: $VETO_HOME if set, else ~/.veto.
func Dir() string {
	if dir := os.Getenv("VETO_HOME"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".veto"
	}
	return filepath.Join(home, ".veto")
}

func ConfigPath() string    { return filepath.Join(Dir(), "config.toml") }
func RulesPath() string     { return filepath.Join(Dir(), "rules.toml") }
func AuditLogPath() string  { return filepath.Join(Dir(), "audit.log") }
func SecretsDir() string    { return filepath.Join(Dir(), "secrets") }
func ChallengesDir() string { return filepath.Join(Dir(), "challenges") }
func DeniedDir() string     { return filepath.Join(Dir(), "denied") }

// Load reads config.toml. A missing file yields defaults; anything else that
// goes wrong is an Error.
func Load() (*models.Config, error) {
	return LoadPath(ConfigPath())
}

// LoadPath reads a specific config file.
func LoadPath(path string) (*models.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return models.DefaultConfig(), nil
		}
		return nil, &Error{Path: path, Err: err}
	}

	cfg := models.DefaultConfig()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, &Error{Path: path, Err: err}
	}

	if cfg.Auth.Default == "" {
		cfg.Auth.Default = "confirm"
	}

	return cfg, nil
}

// EnsureDir creates the state directory with owner-only permissions.
func EnsureDir() error {
	return os.MkdirAll(Dir(), 0o700)
}
