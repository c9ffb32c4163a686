package models

import (
	"fmt"
	"strings"
)

// RiskLevel orders command risk from benign to catastrophic.
// The ordinal doubles as the `check` command exit code.
type RiskLevel int

const (
	RiskAllow RiskLevel = iota
	RiskLow
	RiskMedium
	RiskHigh
	RiskCritical
)

func (r RiskLevel) String() string {
	switch r {
	case RiskAllow:
		return "ALLOW"
	case RiskLow:
		return "LOW"
	case RiskMedium:
		return "MEDIUM"
	case RiskHigh:
		return "HIGH"
	case RiskCritical:
		return "CRITICAL"
	default:
		return fmt.Sprintf("RiskLevel(%d)", int(r))
	}
}

// ExitCode is the process exit status for this risk level.
func (r RiskLevel) ExitCode() int {
	return int(r)
}

// ConfigKey is the lowercase name used in config.toml [auth.levels].
func (r RiskLevel) ConfigKey() string {
	return strings.ToLower(r.String())
}

// ParseRiskLevel accepts level names case-insensitively.
func ParseRiskLevel(s string) (RiskLevel, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "ALLOW":
		return RiskAllow, nil
	case "LOW":
		return RiskLow, nil
	case "MEDIUM":
		return RiskMedium, nil
	case "HIGH":
		return RiskHigh, nil
	case "CRITICAL":
		return RiskCritical, nil
	default:
		return RiskAllow, fmt.Errorf("unknown risk level: %q", s)
	}
}

// Tiers lists the rule tiers in evaluation order (highest first).
func Tiers() []RiskLevel {
	return []RiskLevel{RiskCritical, RiskHigh, RiskMedium, RiskLow}
}
