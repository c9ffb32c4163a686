package cli

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/veto-sh/veto/internal/auth"
	"github.com/veto-sh/veto/internal/config"
	"github.com/veto-sh/veto/internal/executor"
	"github.com/veto-sh/veto/internal/gate"
	"github.com/veto-sh/veto/internal/models"
	"github.com/veto-sh/veto/internal/observability/logging"
)

// shellCmd wraps a terminal session so every entered command is gated.
var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Interactive shell with risk evaluation",
	Long: `Starts a read-eval loop where each command is classified and, when its
risk level requires it, authenticated before execution through $SHELL.

Built-ins handled in-process: cd, pwd, help, exit. Entered commands are
appended to shell_history in the state directory.

Examples:
  veto shell`,
	Args:         cobra.NoArgs,
	RunE:         runShell,
	SilenceUsage: true,
}

// GetShellCmd export
func GetShellCmd() *cobra.Command {
	return shellCmd
}

func runShell(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	log := logging.From(ctx)

	g, err := gate.Open()
	if err != nil {
		return fmt.Errorf("cannot start gated shell: %w", err)
	}

	fmt.Println("veto shell: every command is risk-evaluated")
	fmt.Println("'help' for built-ins, 'exit' or Ctrl+D to quit")
	fmt.Println()

	history := openHistory()
	if history != nil {
		defer history.Close()
	}

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Printf("veto %s> ", shortenPath(workingDir()))
		if !scanner.Scan() {
			fmt.Println()
			return scanner.Err()
		}
		command := strings.TrimSpace(scanner.Text())
		if command == "" {
			continue
		}
		if history != nil {
			fmt.Fprintln(history, command)
		}
		if command == "exit" || command == "quit" {
			return nil
		}
		if shellBuiltin(command) {
			continue
		}

		res := g.Evaluate(ctx, gate.Request{
			Command:     command,
			Interactive: true,
			Force:       gate.ForceFromEnv(),
			Creds:       auth.CredentialsFromEnv(),
		})
		log.Event(ctx, "shell.decision", map[string]any{
			"risk":     res.Verdict.Risk.String(),
			"decision": res.Decision.String(),
			"method":   res.Method,
		})
		if res.Verdict.Risk != models.RiskAllow {
			fmt.Printf("Risk: %s\n", res.Verdict.Risk)
			if res.Verdict.Reason != "" {
				fmt.Printf("Reason: %s\n", res.Verdict.Reason)
			}
		}
		if !res.Allowed() {
			fmt.Fprintf(os.Stderr, "veto: %s [%s] %s\n",
				res.Recorded, res.Verdict.Risk, res.Reason)
			continue
		}

		code, err := executor.Run(ctx, command)
		if err != nil {
			fmt.Fprintf(os.Stderr, "veto: %v\n", err)
			continue
		}
		if code != 0 {
			fmt.Printf("exit %d\n", code)
		}
	}
}

// shellBuiltin handles commands that must run in-process to affect the shell
// itself. Returns false for anything that should go through the gate.
func shellBuiltin(command string) bool {
	fields := strings.Fields(command)
	switch fields[0] {
	case "cd":
		target := "~"
		if len(fields) > 1 {
			target = fields[1]
		}
		if err := os.Chdir(expandHome(target)); err != nil {
			fmt.Fprintf(os.Stderr, "cd: %v\n", err)
		}
		return true
	case "pwd":
		fmt.Println(workingDir())
		return true
	case "help":
		fmt.Println("Built-ins:")
		fmt.Println("  cd <dir>   Change directory")
		fmt.Println("  pwd        Print working directory")
		fmt.Println("  help       Show this help")
		fmt.Println("  exit       Quit the shell")
		fmt.Println()
		fmt.Println("Everything else is risk-evaluated before execution.")
		return true
	}
	return false
}

func workingDir() string {
	wd, err := os.Getwd()
	if err != nil {
		return "?"
	}
	return wd
}

// shortenPath abbreviates the home directory prefix for the prompt.
func shortenPath(path string) string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return path
	}
	if path == home {
		return "~"
	}
	if strings.HasPrefix(path, home+string(filepath.Separator)) {
		return "~" + path[len(home):]
	}
	return path
}

func expandHome(target string) string {
	if target != "~" && !strings.HasPrefix(target, "~/") {
		return target
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return target
	}
	if target == "~" {
		return home
	}
	return filepath.Join(home, target[2:])
}

// openHistory appends entered commands to the state directory. Best-effort:
// a read-only state dir disables history, not the shell.
func openHistory() *os.File {
	if err := config.EnsureDir(); err != nil {
		return nil
	}
	f, err := os.OpenFile(filepath.Join(config.Dir(), "shell_history"),
		os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil
	}
	return f
}
