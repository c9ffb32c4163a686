package cli

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/veto-sh/veto/internal/auth"
	"github.com/veto-sh/veto/internal/config"
	"github.com/veto-sh/veto/internal/models"
	"github.com/veto-sh/veto/internal/rules"
	"github.com/veto-sh/veto/internal/secret"
)

// doctorCmd verifies the installation end to end.
var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Verify installation and config",
	Args:  cobra.NoArgs,
	RunE:  runDoctor,
}

// GetDoctorCmd export
func GetDoctorCmd() *cobra.Command {
	return doctorCmd
}

func runDoctor(cmd *cobra.Command, args []string) error {
	problems := 0
	check := func(ok bool, okMsg, badMsg string) {
		if ok {
			fmt.Printf("  ok      %s\n", okMsg)
		} else {
			fmt.Printf("  PROBLEM %s\n", badMsg)
			problems++
		}
	}

	fmt.Printf("veto doctor (%s/%s)\n\n", runtime.GOOS, runtime.GOARCH)

	info, err := os.Stat(config.Dir())
	check(err == nil && info.IsDir(),
		fmt.Sprintf("state directory %s", config.Dir()),
		fmt.Sprintf("state directory %s missing (run `veto init`)", config.Dir()))

	cfg, err := config.Load()
	check(err == nil, "config.toml loads", fmt.Sprintf("config.toml: %v", err))

	rs, err := rules.LoadWithDefaults(config.RulesPath())
	if err == nil {
		_, err = rules.NewEngine(rs)
	}
	check(err == nil, "rules load and compile", fmt.Sprintf("rules: %v", err))

	store := secret.Open(config.SecretsDir())
	fmt.Printf("  ok      secret backend: %s\n", store.Backend())

	if cfg != nil {
		mgr := auth.NewManager(cfg, store)
		for _, level := range models.Tiers() {
			chain := mgr.MethodsForLevel(level)
			fmt.Printf("  ok      %-8s -> %v\n", level.ConfigKey(), chain)
		}

		if cfg.Auth.Telegram.Enabled {
			check(secret.HasTelegram(store),
				"telegram token stored",
				"telegram enabled but no bot token (run `veto auth setup telegram`)")
		}
		if cfg.Auth.TouchID.Enabled {
			t := &auth.TouchID{}
			check(t.Available(),
				"touchid helper found",
				"touchid enabled but helper binary not found")
		}
	}

	fmt.Println()
	if problems > 0 {
		exitCode = 1
		fmt.Printf("%d problem(s) found.\n", problems)
	} else {
		fmt.Println("All checks passed.")
	}
	return nil
}
