package auth

import (
	"context"
	"testing"

	"github.com/veto-sh/veto/internal/models"
	"github.com/veto-sh/veto/internal/secret"
)

func testManager(t *testing.T, cfg *models.Config) (*Manager, secret.Store) {
	t.Helper()
	store := secret.NewFileStore(t.TempDir())
	if cfg == nil {
		cfg = models.DefaultConfig()
	}
	return NewManager(cfg, store), store
}

func TestMethodsForLevel(t *testing.T) {
	cfg := &models.Config{
		Auth: models.AuthConfig{
			Default: "confirm",
			Levels: map[string]models.MethodChain{
				"high":     {"pin", "telegram"},
				"critical": {"pin"},
			},
		},
	}
	mgr, _ := testManager(t, cfg)

	if chain := mgr.MethodsForLevel(models.RiskAllow); chain != nil {
		t.Errorf("ALLOW chain = %v, want nil", chain)
	}
	if chain := mgr.MethodsForLevel(models.RiskHigh); len(chain) != 2 || chain[0] != "pin" {
		t.Errorf("HIGH chain = %v, want [pin telegram]", chain)
	}
	// Unconfigured level falls back to the default method.
	if chain := mgr.MethodsForLevel(models.RiskMedium); len(chain) != 1 || chain[0] != "confirm" {
		t.Errorf("MEDIUM chain = %v, want [confirm]", chain)
	}
}

func TestMethodsForLevel_HardDefault(t *testing.T) {
	mgr, _ := testManager(t, &models.Config{})

	if chain := mgr.MethodsForLevel(models.RiskLow); len(chain) != 1 || chain[0] != "confirm" {
		t.Errorf("chain = %v, want [confirm] when nothing is configured", chain)
	}
}

func TestAuthenticate_AllowNeedsNothing(t *testing.T) {
	mgr, _ := testManager(t, nil)

	out := mgr.Authenticate(context.Background(), models.RiskAllow, &Request{Command: "ls"})
	if out.Decision != Approved {
		t.Errorf("decision = %v, want Approved for ALLOW", out.Decision)
	}
	if out.Method != "none" {
		t.Errorf("method = %q, want none", out.Method)
	}
}

func TestAuthenticate_ConfirmViaCredentials(t *testing.T) {
	mgr, _ := testManager(t, nil)
	req := &Request{Command: "rm -rf x", Creds: Credentials{Confirm: "yes"}}

	out := mgr.Authenticate(context.Background(), models.RiskMedium, req)
	if out.Decision != Approved {
		t.Errorf("decision = %v, want Approved", out.Decision)
	}
	if out.Method != "confirm" {
		t.Errorf("method = %q, want confirm", out.Method)
	}
}

func TestAuthenticate_ExplicitDenial(t *testing.T) {
	mgr, _ := testManager(t, nil)
	req := &Request{Command: "rm -rf x", Creds: Credentials{Confirm: "no"}}

	out := mgr.Authenticate(context.Background(), models.RiskMedium, req)
	if out.Decision != Denied {
		t.Fatalf("decision = %v, want Denied", out.Decision)
	}
	if !out.Explicit {
		t.Error("a human 'no' must be an explicit denial")
	}
}

func TestAuthenticate_NeedsInputPropagates(t *testing.T) {
	mgr, _ := testManager(t, nil)

	out := mgr.Authenticate(context.Background(), models.RiskMedium, &Request{Command: "rm -rf x"})
	if out.Decision != NeedsInput {
		t.Errorf("decision = %v, want NeedsInput without credentials", out.Decision)
	}
	if out.Explicit {
		t.Error("NeedsInput is not an explicit denial")
	}
}

func TestRunChain_AllMustApprove(t *testing.T) {
	cfg := &models.Config{
		Auth: models.AuthConfig{
			Default: "confirm",
			Levels: map[string]models.MethodChain{
				"high": {"confirm", "pin"},
			},
		},
	}
	mgr, store := testManager(t, cfg)
	if err := SetPIN(store, "1234"); err != nil {
		t.Fatal(err)
	}

	// Confirm passes, PIN credential missing: the chain stalls on input.
	out := mgr.Authenticate(context.Background(), models.RiskHigh, &Request{
		Command: "git push --force",
		Creds:   Credentials{Confirm: "yes"},
	})
	if out.Decision != NeedsInput {
		t.Errorf("decision = %v, want NeedsInput (second link unsatisfied)", out.Decision)
	}

	// Both satisfied: approved, final method reported.
	out = mgr.Authenticate(context.Background(), models.RiskHigh, &Request{
		Command: "git push --force",
		Creds:   Credentials{Confirm: "yes", PIN: "1234"},
	})
	if out.Decision != Approved {
		t.Errorf("decision = %v, want Approved", out.Decision)
	}
	if out.Method != "pin" {
		t.Errorf("method = %q, want pin (last link in the chain)", out.Method)
	}

	// Wrong PIN fails the whole chain even though confirm approved.
	out = mgr.Authenticate(context.Background(), models.RiskHigh, &Request{
		Command: "git push --force",
		Creds:   Credentials{Confirm: "yes", PIN: "0000"},
	})
	if out.Decision != Denied {
		t.Errorf("decision = %v, want Denied", out.Decision)
	}
	if out.Explicit {
		t.Error("a wrong credential is not an explicit human denial")
	}
}

func TestRunChain_UnknownMethod(t *testing.T) {
	mgr, _ := testManager(t, nil)

	out := mgr.RunChain(context.Background(), []string{"retina-scan"}, &Request{Command: "x"})
	if out.Decision != Denied {
		t.Errorf("decision = %v, want Denied for unknown method", out.Decision)
	}
}

func TestResolve_FallbackOnUnavailable(t *testing.T) {
	// touchid has no helper binary in a test environment; the fallback table
	// must substitute confirm.
	cfg := &models.Config{
		Auth: models.AuthConfig{
			Default: "confirm",
			Levels: map[string]models.MethodChain{
				"high": {"touchid"},
			},
			Fallback: map[string]string{"touchid": "confirm"},
		},
	}
	mgr, _ := testManager(t, cfg)

	out := mgr.Authenticate(context.Background(), models.RiskHigh, &Request{
		Command: "git push --force",
		Creds:   Credentials{Confirm: "yes"},
	})
	if out.Decision != Approved {
		t.Fatalf("decision = %v, want Approved via fallback (reason: %s)", out.Decision, out.Reason)
	}
	if out.Method != "confirm" {
		t.Errorf("method = %q, want confirm (the substitute)", out.Method)
	}
}

func TestResolve_NoFallbackConfigured(t *testing.T) {
	cfg := &models.Config{
		Auth: models.AuthConfig{
			Default: "confirm",
			Levels: map[string]models.MethodChain{
				"high": {"totp"},
			},
		},
	}
	mgr, _ := testManager(t, cfg)

	// TOTP is unavailable (no seed) and nothing substitutes for it.
	out := mgr.Authenticate(context.Background(), models.RiskHigh, &Request{Command: "x"})
	if out.Decision != Denied {
		t.Errorf("decision = %v, want Denied when method unavailable with no fallback", out.Decision)
	}
}
