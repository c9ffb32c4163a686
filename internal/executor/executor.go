// Package executor runs an approved command in the user's shell.
package executor

import (
	"context"
	"errors"
	"os"
	"os/exec"
)

// Run executes the command string via the user's shell with inherited stdio,
// returning the command's exit code. The gate has already approved by the
// time this runs; nothing here re-checks anything.
func Run(ctx context.Context, command string) (int, error) {
	shell := os.Getenv("SHELL")
	if shell == "" {
		shell = "/bin/sh"
	}

	cmd := exec.CommandContext(ctx, shell, "-c", command)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	err := cmd.Run()
	if err == nil {
		return 0, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), nil
	}
	return 1, err
}
