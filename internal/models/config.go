package models

import "fmt"

// Config from config.toml
type Config struct {
	Auth AuthConfig `toml:"auth"`
	Log  LogConfig  `toml:"log"`
}

// AuthConfig maps risk levels to authentication method chains.
type AuthConfig struct {
	// Default method used when a level has no entry in Levels.
	Default string `toml:"default"`
	// Levels maps "low"/"medium"/"high"/"critical" to a single method or an
	// ordered chain. A chain is AND-composed: every method must approve.
	Levels map[string]MethodChain `toml:"levels"`
	// Fallback substitutes a method when the primary's preconditions are
	// unmet, e.g. touchid -> pin on a non-macOS host.
	Fallback map[string]string `toml:"fallback"`
	Telegram TelegramConfig    `toml:"telegram"`
	TouchID  TouchIDConfig     `toml:"touchid"`
}

// MethodChain decodes from either a bare string or an array of strings.
type MethodChain []string

// UnmarshalTOML accepts `level = "pin"` and `level = ["pin", "telegram"]`.
func (c *MethodChain) UnmarshalTOML(v interface{}) error {
	switch val := v.(type) {
	case string:
		*c = MethodChain{val}
		return nil
	case []interface{}:
		chain := make(MethodChain, 0, len(val))
		for _, item := range val {
			s, ok := item.(string)
			if !ok {
				return fmt.Errorf("auth chain entries must be strings, got %T", item)
			}
			chain = append(chain, s)
		}
		*c = chain
		return nil
	default:
		return fmt.Errorf("auth chain must be a string or array of strings, got %T", v)
	}
}

// TelegramConfig for the telegram auth method and challenge delivery.
// The bot token itself lives in the secret store, never in config.toml.
type TelegramConfig struct {
	Enabled        bool   `toml:"enabled"`
	ChatID         string `toml:"chat_id"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// TouchIDConfig for the macOS biometric prompt.
type TouchIDConfig struct {
	Enabled bool   `toml:"enabled"`
	Prompt  string `toml:"prompt"`
}

// LogConfig controls the structured diagnostic logger (not the audit log).
type LogConfig struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
	Output string `toml:"output"`
}

// DefaultConfig returns the configuration used when config.toml is absent.
func DefaultConfig() *Config {
	return &Config{
		Auth: AuthConfig{
			Default: "confirm",
		},
	}
}
