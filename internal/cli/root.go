// Package cli wires the veto commands together.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/veto-sh/veto/internal/config"
	"github.com/veto-sh/veto/internal/observability"
	"github.com/veto-sh/veto/internal/observability/logging"
	otelobs "github.com/veto-sh/veto/internal/observability/otel"
	"github.com/veto-sh/veto/internal/version"
)

var rootCmd = &cobra.Command{
	Use:   "veto",
	Short: "AI operation guardian - verify before execute",
	Long: `veto gates risky shell commands behind human authentication.
Agents and hooks call it before executing; humans approve or deny.`,
	Version:           version.BuildVersion(),
	SilenceUsage:      true,
	PersistentPreRunE: setupObservability,
}

var (
	verboseFlag      bool
	quietFlag        bool
	logFormatFlag    string
	otelFlag         bool
	otelEndpointFlag string
	otelProtocolFlag string
	otelInsecureFlag bool
)

// exitCode is set by commands whose exit status carries meaning (check's
// risk ordinal, gate's deny code) and applied after cobra unwinds, so
// deferred logger/otel shutdowns still run.
var exitCode int

var otelShutdown func()

func init() {
	pf := rootCmd.PersistentFlags()
	pf.BoolVarP(&verboseFlag, "verbose", "v", false, "Verbose output")
	pf.BoolVarP(&quietFlag, "quiet", "q", false, "Suppress output (exit code only)")
	pf.StringVar(&logFormatFlag, "log-format", "", "Diagnostic log format: jsonl or pretty")
	pf.BoolVar(&otelFlag, "otel", false, "Enable OpenTelemetry tracing")
	pf.StringVar(&otelEndpointFlag, "otel-endpoint", "", "OTLP endpoint (default from OTEL_EXPORTER_OTLP_ENDPOINT)")
	pf.StringVar(&otelProtocolFlag, "otel-protocol", otelobs.ProtocolHTTP, "OTLP protocol: otlphttp or otlpgrpc")
	pf.BoolVar(&otelInsecureFlag, "otel-insecure", false, "Disable TLS for the OTLP exporter")

	rootCmd.AddCommand(GetCheckCmd())
	rootCmd.AddCommand(GetExecCmd())
	rootCmd.AddCommand(GetShellCmd())
	rootCmd.AddCommand(GetGateCmd())
	rootCmd.AddCommand(GetLogCmd())
	rootCmd.AddCommand(GetAuthCmd())
	rootCmd.AddCommand(GetInitCmd())
	rootCmd.AddCommand(GetDoctorCmd())
}

// setupObservability attaches the op ID, diagnostic logger, and optional
// tracer to the command context before any RunE fires.
func setupObservability(cmd *cobra.Command, args []string) error {
	ctx := observability.WithOpID(cmd.Context())

	cfg, err := config.Load()
	logCfg := logging.DefaultConfig()
	if err == nil {
		if cfg.Log.Format != "" {
			logCfg.Format = cfg.Log.Format
		}
		if cfg.Log.Level != "" {
			logCfg.Level = cfg.Log.Level
		}
		if cfg.Log.Output != "" {
			logCfg.Output = cfg.Log.Output
		}
	}
	if logFormatFlag != "" {
		logCfg.Format = logFormatFlag
	}
	if verboseFlag {
		logCfg.Level = logging.LevelDebug
	}
	if quietFlag {
		logCfg.Level = logging.LevelError
	}

	logger, err := logging.NewLogger(logCfg)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	ctx = logging.WithLogger(ctx, logger)

	if otelFlag {
		handle, err := otelobs.Init(ctx, otelobs.Config{
			Enabled:     true,
			Endpoint:    otelEndpointFlag,
			Protocol:    otelProtocolFlag,
			Insecure:    otelInsecureFlag,
			ServiceName: "veto",
			SampleRatio: 1.0,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize tracing: %w", err)
		}
		ctx = otelobs.WithHandle(ctx, handle)
		otelShutdown = func() { _ = handle.Shutdown(ctx) }
	}

	cmd.SetContext(ctx)
	return nil
}

func Execute() {
	err := rootCmd.Execute()
	if otelShutdown != nil {
		otelShutdown()
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	os.Exit(exitCode)
}
