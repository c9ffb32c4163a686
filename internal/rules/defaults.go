package rules

import (
	"embed"
	"fmt"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/veto-sh/veto/internal/models"
)

//go:embed presets/default.toml
var presetFS embed.FS

var (
	defaultsOnce sync.Once
	defaultsSet  models.RuleSet
	defaultsErr  error
)

// Defaults returns the built-in rule set. The embedded preset is parsed once
// and cached; callers get slice copies so a later Merge cannot reach back
// into the cache.
func Defaults() (models.RuleSet, error) {
	defaultsOnce.Do(func() {
		data, err := presetFS.ReadFile("presets/default.toml")
		if err != nil {
			defaultsErr = fmt.Errorf("embedded default rules missing: %w", err)
			return
		}
		if err := toml.Unmarshal(data, &defaultsSet); err != nil {
			defaultsErr = fmt.Errorf("embedded default rules malformed: %w", err)
		}
	})
	if defaultsErr != nil {
		return models.RuleSet{}, defaultsErr
	}

	rs := models.RuleSet{
		Whitelist: models.Whitelist{
			Commands: append([]string(nil), defaultsSet.Whitelist.Commands...),
			Paths:    append([]string(nil), defaultsSet.Whitelist.Paths...),
		},
		Critical: append([]models.Rule(nil), defaultsSet.Critical...),
		High:     append([]models.Rule(nil), defaultsSet.High...),
		Medium:   append([]models.Rule(nil), defaultsSet.Medium...),
		Low:      append([]models.Rule(nil), defaultsSet.Low...),
	}
	return rs, nil
}
