package gate

import (
	"github.com/veto-sh/veto/internal/audit"
	"github.com/veto-sh/veto/internal/auth"
	"github.com/veto-sh/veto/internal/challenge"
	"github.com/veto-sh/veto/internal/config"
	"github.com/veto-sh/veto/internal/rules"
	"github.com/veto-sh/veto/internal/secret"
)

// Open assembles a gate from the state directory: config.toml, built-in
// rules merged with rules.toml, the secret store, and the audit trail.
//
// Any load or compile failure is returned as-is; callers must treat it as a
// BLOCKED decision (fail closed), never as permission.
func Open() (*Gate, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	rs, err := rules.LoadWithDefaults(config.RulesPath())
	if err != nil {
		return nil, err
	}
	engine, err := rules.NewEngine(rs)
	if err != nil {
		return nil, err
	}
	store := secret.Open(config.SecretsDir())

	return &Gate{
		Engine:     engine,
		Auth:       auth.NewManager(cfg, store),
		Challenges: challenge.NewManager(config.ChallengesDir()),
		Denied:     NewDeniedMemory(config.DeniedDir(), SessionFromEnv()),
		Audit:      audit.NewLog(config.AuditLogPath()),
		Config:     cfg,
		Store:      store,
	}, nil
}
