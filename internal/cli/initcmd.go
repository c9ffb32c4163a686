package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/veto-sh/veto/internal/config"
)

// initCmd seeds the state directory with commented starter config files.
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize config files",
	Args:  cobra.NoArgs,
	RunE:  runInit,
}

var initForceFlag bool

func init() {
	initCmd.Flags().BoolVar(&initForceFlag, "force", false, "Overwrite existing config")
}

// GetInitCmd export
func GetInitCmd() *cobra.Command {
	return initCmd
}

const defaultConfigTOML = `# veto configuration

[auth]
# Method used when a risk level has no explicit entry below:
# confirm, pin, totp, touchid, telegram, dialog
default = "confirm"

[auth.levels]
# low = "confirm"
# medium = "pin"
# high = ["pin", "telegram"]   # chains require every method to approve
# critical = ["pin", "telegram"]

[auth.fallback]
# Substitute when a method is unavailable on this host:
# touchid = "pin"
# telegram = "confirm"

[auth.telegram]
enabled = false
chat_id = ""
timeout_seconds = 60

[auth.touchid]
enabled = false

[log]
# Diagnostic logging (the audit trail is always on).
# format = "jsonl"
# level = "info"
# output = "stderr"
`

const defaultRulesTOML = `# veto user rules, merged after the built-in rule set.
# Built-in rules win ties; first match decides.

[whitelist]
commands = [
    # "make test",
]

# [[high]]
# category = "deploy"
# patterns = ["kubectl delete *", "terraform destroy*"]
# reason = "Destructive infrastructure operation"

# [[medium]]
# category = "docker"
# patterns = ["docker rm *", "docker rmi *"]
# reason = "Removes containers or images"
# expr = 'input.command.contains("--volumes")'   # optional CEL refinement
`

func runInit(cmd *cobra.Command, args []string) error {
	if err := config.EnsureDir(); err != nil {
		return fmt.Errorf("failed to create %s: %w", config.Dir(), err)
	}

	wrote := 0
	for _, f := range []struct {
		path, content string
	}{
		{config.ConfigPath(), defaultConfigTOML},
		{config.RulesPath(), defaultRulesTOML},
	} {
		if _, err := os.Stat(f.path); err == nil && !initForceFlag {
			fmt.Printf("  exists  %s (use --force to overwrite)\n", f.path)
			continue
		}
		if err := os.WriteFile(f.path, []byte(f.content), 0o600); err != nil {
			return fmt.Errorf("failed to write %s: %w", f.path, err)
		}
		fmt.Printf("  wrote   %s\n", f.path)
		wrote++
	}

	if wrote > 0 {
		fmt.Println()
		fmt.Println("Next: veto auth setup pin, then try `veto check \"rm -rf /\"`.")
	}
	return nil
}
