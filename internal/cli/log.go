package cli

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/veto-sh/veto/internal/audit"
)

// logCmd inspects the audit trail.
var logCmd = &cobra.Command{
	Use:   "log",
	Short: "View audit log",
	Long: `Prints the decision trail: every command veto allowed, denied, or blocked.

Examples:
  veto log -n 20
  veto log --filter DENIED
  veto log -f`,
	Args:         cobra.NoArgs,
	RunE:         runLog,
	SilenceUsage: true,
}

var (
	logTailFlag   int
	logFollowFlag bool
	logFilterFlag string
	logClearFlag  bool
)

func init() {
	f := logCmd.Flags()
	f.IntVarP(&logTailFlag, "tail", "n", 0, "Show last N entries")
	f.BoolVarP(&logFollowFlag, "follow", "f", false, "Follow log in real-time")
	f.StringVar(&logFilterFlag, "filter", "", "Filter by result: ALLOWED, DENIED, or BLOCKED")
	f.BoolVar(&logClearFlag, "clear", false, "Clear the audit log")
}

// GetLogCmd export
func GetLogCmd() *cobra.Command {
	return logCmd
}

func runLog(cmd *cobra.Command, args []string) error {
	trail := auditLog()

	if logClearFlag {
		ok, err := confirmClear()
		if err != nil {
			return err
		}
		if !ok {
			fmt.Println("Aborted.")
			return nil
		}
		if err := trail.Clear(); err != nil {
			return fmt.Errorf("failed to clear audit log: %w", err)
		}
		fmt.Println("Audit log cleared.")
		return nil
	}

	var filter audit.Filter
	if logFilterFlag != "" {
		result := audit.Result(strings.ToUpper(logFilterFlag))
		switch result {
		case audit.ResultAllowed, audit.ResultDenied, audit.ResultBlocked:
			filter.Result = result
		default:
			return fmt.Errorf("invalid filter %q (use ALLOWED, DENIED, or BLOCKED)", logFilterFlag)
		}
	}
	filter.Tail = logTailFlag

	entries, err := trail.Read(filter)
	if err != nil {
		return err
	}
	for _, e := range entries {
		fmt.Println(audit.FormatLine(e))
	}

	if !logFollowFlag {
		return nil
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := make(chan audit.Entry)
	go func() {
		for e := range out {
			if filter.Result != "" && e.Result != filter.Result {
				continue
			}
			fmt.Println(audit.FormatLine(e))
		}
	}()

	// Blocks until interrupted.
	_ = trail.Follow(ctx, out)
	return nil
}

func confirmClear() (bool, error) {
	fmt.Fprint(os.Stderr, "Clear the entire audit log? [y/N] ")
	var answer string
	_, _ = fmt.Fscanln(os.Stdin, &answer)
	switch strings.ToLower(answer) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}
