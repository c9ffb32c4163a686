package auth

import (
	"context"
	"fmt"
	"strings"
)

// Confirm is the baseline yes/no method. Always available. In hook contexts
// it reads the explicit affirmative from VETO_CONFIRM; the absence of that
// signal is NeedsInput, not a silent denial, so the calling agent can relay
// the requirement to the human.
type Confirm struct{}

func (c *Confirm) Name() string { return "confirm" }

func (c *Confirm) Available() bool { return true }

func (c *Confirm) Verify(ctx context.Context, req *Request) (Decision, error) {
	if !req.Interactive {
		switch strings.ToLower(req.Creds.Confirm) {
		case "yes", "y", "true", "1":
			return Approved, nil
		case "no", "n", "false", "0":
			return Denied, nil
		default:
			return NeedsInput, nil
		}
	}

	ok, err := promptYesNo(fmt.Sprintf("Command: %s\nAllow this operation?", req.Command))
	if err != nil {
		return Denied, ErrCancelled
	}
	if !ok {
		return Denied, nil
	}
	return Approved, nil
}
