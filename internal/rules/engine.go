package rules

import (
	"github.com/veto-sh/veto/internal/models"
)

// Engine classifies commands against a loaded rule set. Classification is a
// pure function of the command string; the engine holds no mutable state
// after construction.
type Engine struct {
	rules models.RuleSet
	exprs *exprSet
}

// NewEngine compiles any CEL expressions in the rule set. A compile error is
// fatal: callers must treat it per the ConfigError policy and deny.
func NewEngine(rs models.RuleSet) (*Engine, error) {
	exprs, err := compileExprs(&rs)
	if err != nil {
		return nil, &ConfigError{Err: err}
	}
	return &Engine{rules: rs, exprs: exprs}, nil
}

// Rules returns the loaded rule set.
func (e *Engine) Rules() models.RuleSet {
	return e.rules
}

// Classify evaluates a command: whitelist first, then tiers from CRITICAL
// down to LOW, first match wins. No match means ALLOW.
func (e *Engine) Classify(command string) models.Verdict {
	if _, ok := MatchAny(e.rules.Whitelist.Commands, command); ok {
		return models.Verdict{
			Risk:     models.RiskAllow,
			Category: "whitelist",
			Reason:   "Command is whitelisted",
		}
	}

	for _, level := range models.Tiers() {
		if v, ok := e.checkTier(level, command, false); ok {
			return v
		}
	}

	return models.Verdict{
		Risk:   models.RiskAllow,
		Reason: "No matching rules",
	}
}

// ClassifyPath evaluates a file path against rule `paths` globs instead of
// command patterns. Used by hook adapters gating file operations.
func (e *Engine) ClassifyPath(path string) models.Verdict {
	if _, ok := MatchAny(e.rules.Whitelist.Paths, path); ok {
		return models.Verdict{
			Risk:     models.RiskAllow,
			Category: "whitelist",
			Reason:   "Path is whitelisted",
		}
	}

	for _, level := range models.Tiers() {
		if v, ok := e.checkTier(level, path, true); ok {
			return v
		}
	}

	return models.Verdict{
		Risk:   models.RiskAllow,
		Reason: "No matching rules",
	}
}

func (e *Engine) checkTier(level models.RiskLevel, subject string, fileOp bool) (models.Verdict, bool) {
	for _, rule := range e.rules.Tier(level) {
		patterns := rule.Patterns
		if fileOp {
			patterns = rule.Paths
		}

		if pat, ok := MatchAny(patterns, subject); ok {
			return models.Verdict{
				Risk:           level,
				Category:       rule.Category,
				Reason:         rule.Reason,
				MatchedPattern: pat,
				Challenge:      rule.Challenge,
			}, true
		}

		if !fileOp && rule.Expr != "" && e.exprs.eval(rule.Expr, subject) {
			return models.Verdict{
				Risk:           level,
				Category:       rule.Category,
				Reason:         rule.Reason,
				MatchedPattern: rule.Expr,
				Challenge:      rule.Challenge,
			}, true
		}
	}
	return models.Verdict{}, false
}
