package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/veto-sh/veto/internal/auth"
	"github.com/veto-sh/veto/internal/executor"
	"github.com/veto-sh/veto/internal/gate"
	"github.com/veto-sh/veto/internal/observability"
	"github.com/veto-sh/veto/internal/observability/logging"
	otelobs "github.com/veto-sh/veto/internal/observability/otel"
)

// execCmd gates a command and runs it on approval.
var execCmd = &cobra.Command{
	Use:   "exec <command>",
	Short: "Verify and execute command",
	Long: `Classifies the command, runs the configured authentication for its
risk level on this terminal, and executes it through $SHELL on approval.

Examples:
  veto exec "rm -rf ./build"
  veto exec --auth=pin "git push --force origin main"`,
	Args:         cobra.MinimumNArgs(1),
	RunE:         runExec,
	SilenceUsage: true,
}

var (
	execAuthFlag  string
	execForceFlag bool
)

func init() {
	execCmd.Flags().StringVar(&execAuthFlag, "auth", "", "Override authentication method")
	execCmd.Flags().BoolVar(&execForceFlag, "force", false, "Bypass the denied-command memory")
}

// GetExecCmd export
func GetExecCmd() *cobra.Command {
	return execCmd
}

func runExec(cmd *cobra.Command, args []string) (err error) {
	ctx := cmd.Context()
	log := logging.From(ctx)
	command := strings.Join(args, " ")

	if h := otelobs.From(ctx); h != nil {
		var span trace.Span
		ctx, span = h.Tracer.Start(ctx, "veto.exec",
			trace.WithAttributes(
				attribute.String("veto.op_id", observability.OpID(ctx)),
			))
		defer span.End()
	}

	g, err := gate.Open()
	if err != nil {
		gate.RecordBlocked(auditLog(), command)
		return fmt.Errorf("cannot evaluate safely, refusing to execute: %w", err)
	}

	result := g.Evaluate(ctx, gate.Request{
		Command:     command,
		Interactive: true,
		Force:       execForceFlag || gate.ForceFromEnv(),
		AuthMethod:  execAuthFlag,
		Creds:       auth.CredentialsFromEnv(),
	})
	log.Event(ctx, "exec.decision", map[string]any{
		"risk":     result.Verdict.Risk.String(),
		"decision": result.Decision.String(),
		"method":   result.Method,
	})

	if !result.Allowed() {
		if !quietFlag {
			fmt.Fprintf(os.Stderr, "veto: %s [%s] %s\n",
				result.Recorded, result.Verdict.Risk, result.Reason)
		}
		exitCode = 2
		return nil
	}

	code, err := executor.Run(ctx, command)
	if err != nil {
		return fmt.Errorf("failed to execute command: %w", err)
	}
	exitCode = code
	return nil
}
