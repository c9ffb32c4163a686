package cli

import (
	"errors"
	"fmt"
	"os"
	"os/user"

	qrcode "github.com/skip2/go-qrcode"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/veto-sh/veto/internal/auth"
	"github.com/veto-sh/veto/internal/config"
	"github.com/veto-sh/veto/internal/secret"
)

// authCmd manages authentication methods.
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage authentication methods",
}

var authSetupCmd = &cobra.Command{
	Use:       "setup <pin|totp|telegram>",
	Short:     "Configure an authentication method",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"pin", "totp", "telegram"},
	RunE:      runAuthSetup,
}

var authRemoveCmd = &cobra.Command{
	Use:       "remove <pin|totp|telegram>",
	Short:     "Remove a configured authentication method",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"pin", "totp", "telegram"},
	RunE:      runAuthRemove,
}

var authStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show configured methods and secret backend",
	Args:  cobra.NoArgs,
	RunE:  runAuthStatus,
}

var authTestCmd = &cobra.Command{
	Use:   "test <method>",
	Short: "Run one authentication method interactively",
	Args:  cobra.ExactArgs(1),
	RunE:  runAuthTest,
}

func init() {
	authCmd.AddCommand(authSetupCmd)
	authCmd.AddCommand(authRemoveCmd)
	authCmd.AddCommand(authStatusCmd)
	authCmd.AddCommand(authTestCmd)
}

// GetAuthCmd export
func GetAuthCmd() *cobra.Command {
	return authCmd
}

func openStore() secret.Store {
	return secret.Open(config.SecretsDir())
}

func runAuthSetup(cmd *cobra.Command, args []string) error {
	store := openStore()
	switch args[0] {
	case "pin":
		return setupPIN(store)
	case "totp":
		return setupTOTP(store)
	case "telegram":
		return setupTelegram(store)
	default:
		return fmt.Errorf("unknown method %q (use pin, totp, or telegram)", args[0])
	}
}

func setupPIN(store secret.Store) error {
	pin, err := readSecret("Choose a PIN (min 4 characters)")
	if err != nil {
		return err
	}
	again, err := readSecret("Confirm PIN")
	if err != nil {
		return err
	}
	if pin != again {
		return errors.New("PINs do not match")
	}
	if err := auth.SetPIN(store, pin); err != nil {
		return err
	}
	fmt.Printf("PIN configured (backend: %s).\n", store.Backend())
	return nil
}

func setupTOTP(store secret.Store) error {
	account := "veto"
	if u, err := user.Current(); err == nil && u.Username != "" {
		account = u.Username
	}
	key, err := auth.SetupTOTP(store, account)
	if err != nil {
		return err
	}

	fmt.Println("Scan this QR code with your authenticator app:")
	fmt.Println()
	if qr, err := qrcode.New(key.URL(), qrcode.Medium); err == nil {
		fmt.Println(qr.ToSmallString(false))
	}
	fmt.Printf("Manual entry secret: %s\n\n", key.Secret())

	code, err := readLine("Enter a code from the app to verify: ")
	if err != nil {
		return err
	}
	ok, err := auth.CheckTOTP(store, code)
	if err != nil {
		return err
	}
	if !ok {
		_ = auth.DeleteTOTP(store)
		return errors.New("code did not verify; TOTP setup rolled back")
	}
	fmt.Printf("TOTP configured (backend: %s).\n", store.Backend())
	return nil
}

func setupTelegram(store secret.Store) error {
	token, err := readSecret("Bot token (from @BotFather)")
	if err != nil {
		return err
	}
	chatID, err := readLine("Chat ID (send /start to your bot, then check getUpdates): ")
	if err != nil {
		return err
	}
	if token == "" || chatID == "" {
		return errors.New("bot token and chat ID are both required")
	}
	if err := store.Set(secret.KeyTelegramToken, token); err != nil {
		return err
	}

	fmt.Println("Bot token stored. Add to config.toml:")
	fmt.Println()
	fmt.Println("  [auth.telegram]")
	fmt.Println("  enabled = true")
	fmt.Printf("  chat_id = %q\n", chatID)
	fmt.Println()
	fmt.Println("Then run: veto auth test telegram")
	return nil
}

func runAuthRemove(cmd *cobra.Command, args []string) error {
	store := openStore()
	switch args[0] {
	case "pin":
		if err := auth.DeletePIN(store); err != nil {
			return err
		}
	case "totp":
		if err := auth.DeleteTOTP(store); err != nil {
			return err
		}
	case "telegram":
		if err := store.Delete(secret.KeyTelegramToken); err != nil && !errors.Is(err, secret.ErrNotFound) {
			return err
		}
	default:
		return fmt.Errorf("unknown method %q (use pin, totp, or telegram)", args[0])
	}
	fmt.Printf("Removed %s.\n", args[0])
	return nil
}

func runAuthStatus(cmd *cobra.Command, args []string) error {
	store := openStore()
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	fmt.Printf("Secret backend: %s\n\n", store.Backend())
	fmt.Printf("  pin:      %s\n", configured(secret.HasPIN(store)))
	fmt.Printf("  totp:     %s\n", configured(secret.HasTOTP(store)))
	fmt.Printf("  telegram: %s\n", configured(cfg.Auth.Telegram.Enabled && secret.HasTelegram(store)))
	fmt.Println()

	fmt.Printf("Default method: %s\n", cfg.Auth.Default)
	for _, level := range []string{"low", "medium", "high", "critical"} {
		if chain, ok := cfg.Auth.Levels[level]; ok {
			fmt.Printf("  %-8s -> %v\n", level, []string(chain))
		}
	}
	return nil
}

func configured(ok bool) string {
	if ok {
		return "configured"
	}
	return "not configured"
}

func runAuthTest(cmd *cobra.Command, args []string) error {
	store := openStore()
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	if args[0] == "telegram" {
		if err := auth.TestTelegram(cfg.Auth.Telegram, store); err != nil {
			return err
		}
		fmt.Println("Telegram test message sent.")
		return nil
	}

	mgr := auth.NewManager(cfg, store)
	outcome := mgr.RunChain(cmd.Context(), []string{args[0]}, &auth.Request{
		Command:     "veto auth test",
		Interactive: true,
		Creds:       auth.CredentialsFromEnv(),
	})
	fmt.Printf("Result: %s (%s)\n", outcome.Decision, outcome.Reason)
	if outcome.Decision != auth.Approved {
		exitCode = 1
	}
	return nil
}

func readSecret(label string) (string, error) {
	fmt.Fprintf(os.Stderr, "%s: ", label)
	defer fmt.Fprintln(os.Stderr)
	if term.IsTerminal(int(os.Stdin.Fd())) {
		raw, err := term.ReadPassword(int(os.Stdin.Fd()))
		if err != nil {
			return "", err
		}
		return string(raw), nil
	}
	return readLine("")
}

func readLine(label string) (string, error) {
	if label != "" {
		fmt.Fprint(os.Stderr, label)
	}
	var line string
	if _, err := fmt.Fscanln(os.Stdin, &line); err != nil {
		return "", err
	}
	return line, nil
}
