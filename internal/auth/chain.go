package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/veto-sh/veto/internal/models"
	"github.com/veto-sh/veto/internal/secret"
)

// Outcome is the aggregate result of running a level's method chain.
type Outcome struct {
	Decision Decision
	// Method that produced the final decision.
	Method string
	Reason string
	// Explicit is true only when a human actively denied (confirm "no",
	// dialog deny, telegram /deny, prompt cancel). Wrong credentials and
	// timeouts are operational failures and stay false.
	Explicit bool
}

// Manager resolves and runs authentication chains per risk level.
type Manager struct {
	Config *models.Config
	Store  secret.Store
}

func NewManager(cfg *models.Config, store secret.Store) *Manager {
	return &Manager{Config: cfg, Store: store}
}

// method constructs the named method, or nil for unknown names.
func (m *Manager) method(name string) Method {
	switch name {
	case "confirm":
		return &Confirm{}
	case "pin":
		return &PIN{Store: m.Store}
	case "totp":
		return &TOTP{Store: m.Store}
	case "touchid":
		return &TouchID{Prompt: m.Config.Auth.TouchID.Prompt}
	case "telegram":
		return &Telegram{Config: m.Config.Auth.Telegram, Store: m.Store}
	case "dialog":
		return &Dialog{}
	default:
		return nil
	}
}

// MethodsForLevel returns the configured chain for a risk level. Allow-level
// commands need no authentication and get a nil chain.
func (m *Manager) MethodsForLevel(level models.RiskLevel) []string {
	if level == models.RiskAllow {
		return nil
	}
	if chain, ok := m.Config.Auth.Levels[level.ConfigKey()]; ok && len(chain) > 0 {
		return chain
	}
	if m.Config.Auth.Default != "" {
		return []string{m.Config.Auth.Default}
	}
	return []string{"confirm"}
}

// resolve maps a method name to a runnable method, applying the fallback
// table when the primary's preconditions are unmet. One level of fallback
// only; a fallback that is itself unavailable is an error.
func (m *Manager) resolve(name string) (Method, error) {
	primary := m.method(name)
	if primary == nil {
		return nil, fmt.Errorf("unknown auth method %q", name)
	}
	if primary.Available() {
		return primary, nil
	}
	if fb, ok := m.Config.Auth.Fallback[name]; ok {
		alt := m.method(fb)
		if alt == nil {
			return nil, fmt.Errorf("unknown fallback method %q for %q", fb, name)
		}
		if alt.Available() {
			return alt, nil
		}
		return nil, fmt.Errorf("%w: %s and fallback %s", ErrUnavailable, name, fb)
	}
	return nil, fmt.Errorf("%w: %s", ErrUnavailable, name)
}

// Authenticate runs the level's configured chain.
func (m *Manager) Authenticate(ctx context.Context, level models.RiskLevel, req *Request) Outcome {
	return m.RunChain(ctx, m.MethodsForLevel(level), req)
}

// RunChain runs every method in order. All must approve; the first denial,
// error, or NeedsInput short-circuits. A method that times out retries once
// through its configured fallback before the chain fails.
func (m *Manager) RunChain(ctx context.Context, chain []string, req *Request) Outcome {
	if len(chain) == 0 {
		return Outcome{Decision: Approved, Method: "none", Reason: "no authentication required"}
	}

	lastMethod := ""
	for _, name := range chain {
		method, err := m.resolve(name)
		if err != nil {
			return Outcome{Decision: Denied, Method: name, Reason: err.Error()}
		}
		lastMethod = method.Name()

		decision, err := method.Verify(ctx, req)
		if errors.Is(err, ErrTimeout) {
			if fb, ok := m.Config.Auth.Fallback[name]; ok {
				alt := m.method(fb)
				if alt != nil && alt.Available() {
					lastMethod = alt.Name()
					decision, err = alt.Verify(ctx, req)
				}
			}
		}

		switch {
		case err != nil && errors.Is(err, ErrCancelled):
			return Outcome{Decision: Denied, Method: lastMethod, Reason: "cancelled by user", Explicit: true}
		case err != nil:
			return Outcome{Decision: Denied, Method: lastMethod, Reason: err.Error()}
		case decision == NeedsInput:
			return Outcome{
				Decision: NeedsInput,
				Method:   lastMethod,
				Reason:   fmt.Sprintf("%s credentials required", lastMethod),
			}
		case decision == Denied:
			return Outcome{Decision: Denied, Method: lastMethod, Reason: "denied by user", Explicit: true}
		}
	}

	return Outcome{Decision: Approved, Method: lastMethod, Reason: "approved"}
}
