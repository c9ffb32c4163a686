package auth

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
)

// Dialog shows a native macOS dialog via osascript. Unlike Confirm it is
// enforced immediately and never deferred to a retry: integrations without
// a terminal use it to put a prompt in front of the human right now.
type Dialog struct{}

func (d *Dialog) Name() string { return "dialog" }

func (d *Dialog) Available() bool { return runtime.GOOS == "darwin" }

func (d *Dialog) Verify(ctx context.Context, req *Request) (Decision, error) {
	if !d.Available() {
		return Denied, fmt.Errorf("%w: dialog requires macOS", ErrUnavailable)
	}

	display := req.Command
	if len(display) > 100 {
		display = display[:100] + "..."
	}
	escaped := strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(display)

	script := fmt.Sprintf(
		`display dialog "Allow this command?\n\n%s" with title "Veto Security" buttons {"Deny", "Allow"} default button "Deny" cancel button "Deny" with icon caution`,
		escaped)

	out, err := exec.CommandContext(ctx, "osascript", "-e", script).Output()
	if err != nil {
		// osascript exits non-zero when the user hits Deny/cancel.
		return Denied, nil
	}
	if strings.Contains(string(out), "Allow") {
		return Approved, nil
	}
	return Denied, nil
}
