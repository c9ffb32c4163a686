package rules

import (
	"testing"

	"github.com/veto-sh/veto/internal/models"
)

func defaultEngine(t *testing.T) *Engine {
	t.Helper()
	rs, err := Defaults()
	if err != nil {
		t.Fatalf("failed to load default rules: %v", err)
	}
	engine, err := NewEngine(rs)
	if err != nil {
		t.Fatalf("failed to build engine: %v", err)
	}
	return engine
}

func TestClassify_DefaultRules(t *testing.T) {
	engine := defaultEngine(t)

	tests := []struct {
		command  string
		risk     models.RiskLevel
		category string
	}{
		{"ls -la", models.RiskAllow, "whitelist"},
		{"pwd", models.RiskAllow, "whitelist"},
		{"git status", models.RiskAllow, "whitelist"},
		{"rm -rf node_modules", models.RiskMedium, "rm-recursive"},
		{"rm -r ./build", models.RiskMedium, "rm-recursive"},
		{"git push --force origin main", models.RiskHigh, "git-destructive"},
		{"git push -f origin main", models.RiskHigh, "git-destructive"},
		{"git reset --hard HEAD~3", models.RiskHigh, "git-destructive"},
		{"rm -rf /", models.RiskCritical, "destructive"},
		{"rm -rf ~", models.RiskCritical, "destructive"},
		{"some-unknown-binary --flag", models.RiskAllow, ""},
	}

	for _, tt := range tests {
		v := engine.Classify(tt.command)
		if v.Risk != tt.risk {
			t.Errorf("Classify(%q) risk = %v, want %v", tt.command, v.Risk, tt.risk)
		}
		if v.Category != tt.category {
			t.Errorf("Classify(%q) category = %q, want %q", tt.command, v.Category, tt.category)
		}
	}
}

func TestClassify_GitDestructiveReason(t *testing.T) {
	engine := defaultEngine(t)

	v := engine.Classify("git push --force origin main")
	if v.Reason != "Destructive git operation" {
		t.Errorf("reason = %q, want %q", v.Reason, "Destructive git operation")
	}
}

func TestClassify_NoMatchReason(t *testing.T) {
	engine := defaultEngine(t)

	v := engine.Classify("true")
	if v.Risk != models.RiskAllow {
		t.Fatalf("risk = %v, want ALLOW", v.Risk)
	}
	if v.Reason != "No matching rules" {
		t.Errorf("reason = %q, want %q", v.Reason, "No matching rules")
	}
}

func TestClassify_WhitelistBeatsEveryTier(t *testing.T) {
	rs := models.RuleSet{
		Whitelist: models.Whitelist{Commands: []string{"deploy prod"}},
		Critical: []models.Rule{
			{Category: "deploy", Patterns: []string{"deploy *"}, Reason: "Deploys"},
		},
	}
	engine, err := NewEngine(rs)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	v := engine.Classify("deploy prod")
	if v.Risk != models.RiskAllow {
		t.Errorf("risk = %v, want ALLOW (whitelist dominates)", v.Risk)
	}
	if v.Category != "whitelist" {
		t.Errorf("category = %q, want whitelist", v.Category)
	}

	// The same command one character off falls through to the tier rule.
	v = engine.Classify("deploy prod2")
	if v.Risk != models.RiskCritical {
		t.Errorf("risk = %v, want CRITICAL", v.Risk)
	}
}

func TestClassify_HighestTierWins(t *testing.T) {
	rs := models.RuleSet{
		High: []models.Rule{
			{Category: "both", Patterns: []string{"overlap *"}},
		},
		Medium: []models.Rule{
			{Category: "both-medium", Patterns: []string{"overlap *"}},
		},
	}
	engine, err := NewEngine(rs)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	v := engine.Classify("overlap anything")
	if v.Risk != models.RiskHigh {
		t.Errorf("risk = %v, want HIGH (tiers checked highest first)", v.Risk)
	}
}

func TestClassify_FirstRuleInTierWins(t *testing.T) {
	rs := models.RuleSet{
		Medium: []models.Rule{
			{Category: "first", Patterns: []string{"x *"}},
			{Category: "second", Patterns: []string{"x *"}},
		},
	}
	engine, err := NewEngine(rs)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	if v := engine.Classify("x y"); v.Category != "first" {
		t.Errorf("category = %q, want first", v.Category)
	}
}

func TestClassify_CELExpr(t *testing.T) {
	rs := models.RuleSet{
		Medium: []models.Rule{
			{
				Category: "docker-volumes",
				Patterns: []string{"docker rm --never-matches"},
				Reason:   "Removes volumes",
				Expr:     `input.command.startsWith("docker rm") && input.command.contains("--volumes")`,
			},
		},
	}
	engine, err := NewEngine(rs)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	if v := engine.Classify("docker rm --volumes web"); v.Risk != models.RiskMedium {
		t.Errorf("risk = %v, want MEDIUM via expression", v.Risk)
	}
	if v := engine.Classify("docker rm web"); v.Risk != models.RiskAllow {
		t.Errorf("risk = %v, want ALLOW when expression is false", v.Risk)
	}
}

func TestNewEngine_BadExprIsConfigError(t *testing.T) {
	rs := models.RuleSet{
		Low: []models.Rule{
			{Category: "broken", Patterns: []string{"x"}, Expr: "this is not CEL ((("},
		},
	}
	if _, err := NewEngine(rs); err == nil {
		t.Fatal("expected compile error for malformed expression")
	}
}

func TestClassifyPath(t *testing.T) {
	rs := models.RuleSet{
		High: []models.Rule{
			{Category: "secrets", Paths: []string{"*.env*", "*/secrets/*"}, Reason: "Secret file"},
		},
	}
	engine, err := NewEngine(rs)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	if v := engine.ClassifyPath("/app/.env.local"); v.Risk != models.RiskHigh {
		t.Errorf("risk = %v, want HIGH for secret path", v.Risk)
	}
	if v := engine.ClassifyPath("/app/readme.md"); v.Risk != models.RiskAllow {
		t.Errorf("risk = %v, want ALLOW for plain path", v.Risk)
	}
}
