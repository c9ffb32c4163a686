package rules

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/veto-sh/veto/internal/models"
)

// ConfigError marks an unrecoverable rules/config load failure. Callers must
// refuse to evaluate commands (deny, not default-allow) when they see one:
// a silently skipped CRITICAL rule would be a security regression.
type ConfigError struct {
	Path string
	Err  error
}

func (e *ConfigError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("rules config error: %v", e.Err)
	}
	return fmt.Sprintf("rules config error in %s: %v", e.Path, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// LoadFile reads a rules.toml. A missing file yields an empty set; a
// malformed file is a ConfigError.
func LoadFile(path string) (models.RuleSet, error) {
	var rs models.RuleSet

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return rs, nil
		}
		return rs, &ConfigError{Path: path, Err: err}
	}

	if err := toml.Unmarshal(data, &rs); err != nil {
		return rs, &ConfigError{Path: path, Err: err}
	}

	if err := validate(&rs); err != nil {
		return rs, &ConfigError{Path: path, Err: err}
	}

	return rs, nil
}

// LoadWithDefaults merges user rules from path over the built-in set.
func LoadWithDefaults(path string) (models.RuleSet, error) {
	base, err := Defaults()
	if err != nil {
		return models.RuleSet{}, &ConfigError{Err: err}
	}

	user, err := LoadFile(path)
	if err != nil {
		return models.RuleSet{}, err
	}

	base.Merge(user)
	return base, nil
}

// validate rejects rules that could never match anything: they would give a
// false sense of coverage.
func validate(rs *models.RuleSet) error {
	for _, level := range models.Tiers() {
		for i, rule := range rs.Tier(level) {
			if rule.Category == "" {
				return fmt.Errorf("%s rule %d: missing category", level.ConfigKey(), i)
			}
			if len(rule.Patterns) == 0 && len(rule.Paths) == 0 && rule.Expr == "" {
				return fmt.Errorf("%s rule %q: needs at least one of patterns, paths, or expr",
					level.ConfigKey(), rule.Category)
			}
		}
	}
	return nil
}
