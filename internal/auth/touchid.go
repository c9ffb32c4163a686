package auth

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
)

const defaultTouchIDPrompt = "Veto: Approve running this command?"

// TouchID delegates to the macOS biometric prompt through a compiled helper
// binary (the installer ships it; LocalAuthentication has no stable CLI).
// There is no automatic password fallback: on hosts without biometrics the
// configured fallback method applies.
type TouchID struct {
	Prompt string
}

func (t *TouchID) Name() string { return "touchid" }

func (t *TouchID) Available() bool {
	return runtime.GOOS == "darwin" && t.helperPath() != ""
}

// helperPath finds the Touch ID helper in its install locations.
func (t *TouchID) helperPath() string {
	candidates := []string{
		"/usr/local/bin/VetoAuth",
		"/usr/local/bin/veto-touchid",
	}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append([]string{
			filepath.Join(home, ".local/bin/VetoAuth"),
			filepath.Join(home, ".local/bin/veto-touchid"),
		}, candidates...)
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

func (t *TouchID) Verify(ctx context.Context, req *Request) (Decision, error) {
	helper := t.helperPath()
	if runtime.GOOS != "darwin" || helper == "" {
		return Denied, fmt.Errorf("%w: Touch ID requires macOS", ErrUnavailable)
	}

	prompt := t.Prompt
	if prompt == "" {
		prompt = defaultTouchIDPrompt
	}
	display := req.Command
	if len(display) > 80 {
		display = display[:77] + "..."
	}

	out, err := exec.CommandContext(ctx, helper, prompt+"\nCommand: "+display).Output()
	if err != nil && len(out) == 0 {
		return Denied, fmt.Errorf("Touch ID helper failed: %w", err)
	}

	switch {
	case strings.Contains(string(out), "AUTH_SUCCESS"):
		return Approved, nil
	case strings.Contains(string(out), "AUTH_UNAVAILABLE"):
		return Denied, fmt.Errorf("%w: biometrics not available", ErrUnavailable)
	default:
		return Denied, nil
	}
}
