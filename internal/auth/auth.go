// Package auth implements the authentication methods and per-risk-level
// chain resolution.
//
// Methods are a closed set behind one interface: confirm, pin, totp,
// touchid, telegram, dialog. Each variant is stateless; secrets come from
// the secret store at verification time.
package auth

import (
	"context"
	"errors"
	"os"
)

// Decision is the outcome of one verification attempt.
type Decision int

const (
	// Denied: do not run the command.
	Denied Decision = iota
	// Approved: the method verified the user.
	Approved
	// NeedsInput: a non-interactive caller must supply credentials
	// out-of-band and retry. Distinct from Denied so hook adapters can
	// relay the requirement to the human instead of refusing outright.
	NeedsInput
)

func (d Decision) String() string {
	switch d {
	case Approved:
		return "approved"
	case NeedsInput:
		return "needs-input"
	default:
		return "denied"
	}
}

var (
	// ErrUnavailable: the method's preconditions are unmet on this host.
	ErrUnavailable = errors.New("auth method unavailable")
	// ErrTimeout: the human did not respond in time.
	ErrTimeout = errors.New("authentication timed out")
	// ErrCancelled: the human actively cancelled the prompt.
	ErrCancelled = errors.New("authentication cancelled")
)

// Credentials are supplied out-of-band (env vars or flags) so hook contexts
// without a TTY can still authenticate.
type Credentials struct {
	PIN      string
	TOTP     string
	Confirm  string
	Response string
}

// CredentialsFromEnv reads the VETO_* credential variables.
func CredentialsFromEnv() Credentials {
	return Credentials{
		PIN:      os.Getenv("VETO_PIN"),
		TOTP:     os.Getenv("VETO_TOTP"),
		Confirm:  os.Getenv("VETO_CONFIRM"),
		Response: os.Getenv("VETO_RESPONSE"),
	}
}

// Request carries everything a method needs to verify one command.
type Request struct {
	Command string
	// Interactive is true for direct CLI invocations that may prompt on the
	// terminal. Hook contexts are non-interactive.
	Interactive bool
	Creds       Credentials
}

// Method is one authentication strategy.
type Method interface {
	Name() string
	// Available reports whether this method's preconditions are met
	// (configured secrets, platform support).
	Available() bool
	// Verify blocks until the method reaches a decision or ctx is done.
	// A nil error with Denied means a clean, explicit denial; ErrTimeout,
	// ErrUnavailable, and other errors describe operational failures.
	Verify(ctx context.Context, req *Request) (Decision, error)
}
