package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/veto-sh/veto/internal/config"
	"github.com/veto-sh/veto/internal/models"
	"github.com/veto-sh/veto/internal/observability"
	"github.com/veto-sh/veto/internal/observability/logging"
	otelobs "github.com/veto-sh/veto/internal/observability/otel"
	"github.com/veto-sh/veto/internal/rules"
)

// checkCmd classifies a command without executing or authenticating.
var checkCmd = &cobra.Command{
	Use:   "check <command>",
	Short: "Check command risk level (no execute)",
	Long: `Classifies a command against the rule set and reports its risk level.

The exit code encodes the level: 0 ALLOW, 1 LOW, 2 MEDIUM, 3 HIGH,
4 CRITICAL, so scripts can branch on risk without parsing output.

Examples:
  veto check "ls -la"
  veto check "rm -rf /" && echo unreachable
  veto check --format=json "git push --force origin main"`,
	Args:         cobra.MinimumNArgs(1),
	RunE:         runCheck,
	SilenceUsage: true,
}

var checkFormatFlag string

func init() {
	checkCmd.Flags().StringVar(&checkFormatFlag, "format", "text", "Output format: text or json")
}

// GetCheckCmd export
func GetCheckCmd() *cobra.Command {
	return checkCmd
}

func runCheck(cmd *cobra.Command, args []string) (err error) {
	ctx := cmd.Context()
	log := logging.From(ctx)
	command := strings.Join(args, " ")

	if h := otelobs.From(ctx); h != nil {
		var span trace.Span
		ctx, span = h.Tracer.Start(ctx, "veto.check",
			trace.WithAttributes(
				attribute.String("veto.op_id", observability.OpID(ctx)),
			))
		defer span.End()
	}

	if checkFormatFlag != "text" && checkFormatFlag != "json" {
		return fmt.Errorf("invalid format: %s (use text or json)", checkFormatFlag)
	}

	rs, err := rules.LoadWithDefaults(config.RulesPath())
	if err != nil {
		return err
	}
	engine, err := rules.NewEngine(rs)
	if err != nil {
		return err
	}

	verdict := engine.Classify(command)
	log.Event(ctx, "check.complete", map[string]any{
		"risk":     verdict.Risk.String(),
		"category": verdict.Category,
	})

	exitCode = verdict.Risk.ExitCode()
	if quietFlag {
		return nil
	}

	if checkFormatFlag == "json" {
		out := struct {
			Command string `json:"command"`
			Risk    string `json:"risk"`
			models.Verdict
		}{Command: command, Risk: verdict.Risk.String(), Verdict: verdict}
		data, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}

	printVerdict(os.Stdout, command, verdict, verboseFlag)
	return nil
}

// printVerdict writes the risk level; rule details only under -v.
func printVerdict(w io.Writer, command string, v models.Verdict, verbose bool) {
	fmt.Fprintf(w, "Command: %s\n", command)
	fmt.Fprintf(w, "Risk:    %s\n", v.Risk)
	if !verbose {
		return
	}
	if v.Category != "" {
		fmt.Fprintf(w, "Rule:    %s\n", v.Category)
	}
	if v.Reason != "" {
		fmt.Fprintf(w, "Reason:  %s\n", v.Reason)
	}
	if v.MatchedPattern != "" {
		fmt.Fprintf(w, "Matched: %s\n", v.MatchedPattern)
	}
}
