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

	"github.com/veto-sh/veto/internal/audit"
	"github.com/veto-sh/veto/internal/auth"
	"github.com/veto-sh/veto/internal/gate"
	"github.com/veto-sh/veto/internal/models"
	"github.com/veto-sh/veto/internal/observability"
	"github.com/veto-sh/veto/internal/observability/logging"
	otelobs "github.com/veto-sh/veto/internal/observability/otel"
)

// gateCmd verifies without executing, for use as a pre-execution hook.
var gateCmd = &cobra.Command{
	Use:   "gate [command]",
	Short: "Gate command (verify only, no execute) - for use in hooks",
	Long: `Evaluates a command and reports the decision without running anything.
Exit code 0 means allow, 2 means deny; hook runners act on the exit code.

Adapter flags change the serialization only, never the decision:
  --claude    read hook JSON from stdin, emit the PreToolUse decision JSON
  --gemini    read hook JSON from stdin, emit {"decision", "reason"} JSON
  --opencode  plain text, tuned for the OpenCode plugin
  --cursor    plain text, tuned for the Cursor hook

Examples:
  veto gate "rm -rf ./build"
  echo '{"tool_input":{"command":"rm -rf /"}}' | veto gate --claude
  veto gate --pin=1234 "git push --force origin main"`,
	Args:         cobra.MaximumNArgs(1),
	RunE:         runGate,
	SilenceUsage: true,
}

var (
	gateClaudeFlag   bool
	gateGeminiFlag   bool
	gateOpencodeFlag bool
	gateCursorFlag   bool
	gateAuthFlag     string
	gatePINFlag      string
	gateTOTPFlag     string
	gateResponseFlag string
	gateFileOpFlag   bool
)

func init() {
	f := gateCmd.Flags()
	f.BoolVar(&gateClaudeFlag, "claude", false, "Claude Code hook mode (stdin JSON in, decision JSON out)")
	f.BoolVar(&gateGeminiFlag, "gemini", false, "Gemini CLI hook mode (stdin JSON in, decision JSON out)")
	f.BoolVar(&gateOpencodeFlag, "opencode", false, "OpenCode plugin mode (plain text)")
	f.BoolVar(&gateCursorFlag, "cursor", false, "Cursor hook mode (plain text)")
	f.StringVar(&gateAuthFlag, "auth", "", "Override authentication method")
	f.StringVar(&gatePINFlag, "pin", "", "PIN for verification")
	f.StringVar(&gateTOTPFlag, "totp", "", "TOTP code for verification")
	f.StringVar(&gateResponseFlag, "response", "", "Challenge response")
	f.BoolVar(&gateFileOpFlag, "file-op", false, "Treat the argument as a file path, match against rule paths")
	gateCmd.MarkFlagsMutuallyExclusive("claude", "gemini", "opencode", "cursor")
}

// GetGateCmd export
func GetGateCmd() *cobra.Command {
	return gateCmd
}

// hookInput is the subset of the agent hook stdin payload veto reads.
type hookInput struct {
	ToolInput struct {
		Command  string `json:"command"`
		FilePath string `json:"file_path"`
	} `json:"tool_input"`
}

func runGate(cmd *cobra.Command, args []string) (err error) {
	ctx := cmd.Context()
	log := logging.From(ctx)

	if h := otelobs.From(ctx); h != nil {
		var span trace.Span
		ctx, span = h.Tracer.Start(ctx, "veto.gate",
			trace.WithAttributes(
				attribute.String("veto.op_id", observability.OpID(ctx)),
			))
		defer span.End()
	}

	command, fileOp, err := gateSubject(args, cmd.InOrStdin())
	if err != nil {
		return err
	}

	creds := auth.CredentialsFromEnv()
	if gatePINFlag != "" {
		creds.PIN = gatePINFlag
	}
	if gateTOTPFlag != "" {
		creds.TOTP = gateTOTPFlag
	}
	if gateResponseFlag != "" {
		creds.Response = gateResponseFlag
	}

	g, err := gate.Open()
	if err != nil {
		// Fail closed: a gate that cannot assemble must deny, not wave through.
		gate.RecordBlocked(auditLog(), command)
		emitGate(command, gate.Result{
			Verdict:  models.Verdict{Risk: models.RiskCritical},
			Reason:   fmt.Sprintf("configuration error: %v", err),
			Recorded: audit.ResultBlocked,
		})
		exitCode = 2
		return nil
	}

	result := g.Evaluate(ctx, gate.Request{
		Command:     command,
		FileOp:      fileOp,
		Interactive: false,
		Force:       gate.ForceFromEnv(),
		AuthMethod:  gateAuthFlag,
		Creds:       creds,
	})
	log.Event(ctx, "gate.decision", map[string]any{
		"risk":     result.Verdict.Risk.String(),
		"decision": result.Decision.String(),
		"method":   result.Method,
	})

	emitGate(command, result)
	if !result.Allowed() {
		exitCode = 2
	}
	return nil
}

// gateSubject resolves what to evaluate: the positional argument, or the
// hook's stdin JSON in claude/gemini mode.
func gateSubject(args []string, stdin io.Reader) (string, bool, error) {
	if len(args) > 0 {
		return args[0], gateFileOpFlag, nil
	}
	if !gateClaudeFlag && !gateGeminiFlag {
		return "", false, fmt.Errorf("no command given (pass one, or use --claude/--gemini with hook stdin)")
	}

	data, err := io.ReadAll(stdin)
	if err != nil {
		return "", false, fmt.Errorf("failed to read hook input: %w", err)
	}
	var in hookInput
	if err := json.Unmarshal(data, &in); err != nil {
		return "", false, fmt.Errorf("malformed hook input: %w", err)
	}
	if in.ToolInput.Command != "" {
		return in.ToolInput.Command, false, nil
	}
	if in.ToolInput.FilePath != "" {
		return in.ToolInput.FilePath, true, nil
	}
	return "", false, fmt.Errorf("hook input carries no command or file path")
}

func emitGate(command string, result gate.Result) {
	switch {
	case gateClaudeFlag:
		emitClaude(result)
	case gateGeminiFlag:
		emitGemini(result)
	default:
		emitText(command, result)
	}
}

// emitClaude writes the Claude Code PreToolUse decision object.
func emitClaude(result gate.Result) {
	decision := "deny"
	switch {
	case result.Allowed():
		decision = "allow"
	case result.Decision == auth.NeedsInput:
		decision = "ask"
	}
	out := map[string]any{
		"hookSpecificOutput": map[string]any{
			"hookEventName":            "PreToolUse",
			"permissionDecision":       decision,
			"permissionDecisionReason": gateReason(result),
		},
	}
	data, _ := json.Marshal(out)
	fmt.Println(string(data))
}

func emitGemini(result gate.Result) {
	decision := "block"
	if result.Allowed() {
		decision = "allow"
	}
	out := map[string]any{
		"decision": decision,
		"reason":   gateReason(result),
	}
	data, _ := json.Marshal(out)
	fmt.Println(string(data))
}

func emitText(command string, result gate.Result) {
	if quietFlag {
		return
	}
	if result.Allowed() {
		fmt.Printf("ALLOWED [%s] %s\n", result.Verdict.Risk, command)
		return
	}
	fmt.Fprintf(os.Stderr, "%s [%s] %s\n", result.Recorded, result.Verdict.Risk, gateReason(result))
}

func gateReason(result gate.Result) string {
	parts := []string{fmt.Sprintf("veto: %s risk", strings.ToLower(result.Verdict.Risk.String()))}
	if result.Verdict.Reason != "" {
		parts = append(parts, result.Verdict.Reason)
	}
	if result.Reason != "" && result.Reason != result.Verdict.Reason {
		parts = append(parts, result.Reason)
	}
	return strings.Join(parts, "; ")
}
