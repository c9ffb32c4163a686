package models

// Rule groups glob patterns under a category and human-readable reason.
// Rules are immutable after config load; the containing tier supplies the
// risk level.
type Rule struct {
	Category string   `toml:"category"`
	Patterns []string `toml:"patterns"`
	// Paths are matched instead of Patterns when the caller gates a file
	// operation rather than a shell command.
	Paths  []string `toml:"paths"`
	Reason string   `toml:"reason"`
	// Challenge requires a one-time challenge code delivered out-of-band
	// before this rule's authentication can succeed.
	Challenge bool `toml:"challenge"`
	// Expr is an optional CEL expression over `input.command`. A rule matches
	// if any glob pattern matches or the expression evaluates to true.
	Expr string `toml:"expr"`
}

// Whitelist patterns force ALLOW regardless of any other rule.
type Whitelist struct {
	Commands []string `toml:"commands"`
	Paths    []string `toml:"paths"`
}

// RuleSet holds the whitelist and the four risk tiers. Evaluation order is
// fixed: whitelist, then critical, high, medium, low; first match wins.
type RuleSet struct {
	Whitelist Whitelist `toml:"whitelist"`
	Critical  []Rule    `toml:"critical"`
	High      []Rule    `toml:"high"`
	Medium    []Rule    `toml:"medium"`
	Low       []Rule    `toml:"low"`
}

// Tier returns the rules for a risk level.
func (rs *RuleSet) Tier(level RiskLevel) []Rule {
	switch level {
	case RiskCritical:
		return rs.Critical
	case RiskHigh:
		return rs.High
	case RiskMedium:
		return rs.Medium
	case RiskLow:
		return rs.Low
	default:
		return nil
	}
}

// Merge appends another rule set's rules after this one's, tier by tier.
// Built-in rules therefore keep precedence over user rules on tie.
func (rs *RuleSet) Merge(extra RuleSet) {
	rs.Critical = append(rs.Critical, extra.Critical...)
	rs.High = append(rs.High, extra.High...)
	rs.Medium = append(rs.Medium, extra.Medium...)
	rs.Low = append(rs.Low, extra.Low...)
	rs.Whitelist.Commands = append(rs.Whitelist.Commands, extra.Whitelist.Commands...)
	rs.Whitelist.Paths = append(rs.Whitelist.Paths, extra.Whitelist.Paths...)
}

// Verdict is the result of classifying one command. Produced fresh per
// evaluation and never persisted directly; only the audit log records it.
type Verdict struct {
	Risk           RiskLevel `json:"risk"`
	Category       string    `json:"category,omitempty"`
	Reason         string    `json:"reason,omitempty"`
	MatchedPattern string    `json:"matched_pattern,omitempty"`
	Challenge      bool      `json:"challenge,omitempty"`
}
