package challenge

import (
	"fmt"
	"html"
	"os/exec"
	"runtime"
	"strings"

	"github.com/veto-sh/veto/internal/auth"
	"github.com/veto-sh/veto/internal/models"
	"github.com/veto-sh/veto/internal/secret"
)

// Notify delivers a freshly issued challenge code out-of-band: a desktop
// notification where the platform has one, plus telegram when configured.
// Delivery is best-effort; the returned channels describe what worked so the
// caller can tell the user where to look.
func Notify(ch *Challenge, command string, cfg models.TelegramConfig, store secret.Store) []string {
	var delivered []string

	display := command
	if len(display) > 60 {
		display = display[:57] + "..."
	}

	if notifyDesktop(ch.Code, display) {
		delivered = append(delivered, "desktop")
	}

	if cfg.Enabled {
		text := fmt.Sprintf(
			"🔑 <b>Veto challenge</b>\n\n<code>%s</code>\n\nCode: <b>%s</b> (valid %d seconds)",
			html.EscapeString(display), ch.Code, int(TTL.Seconds()))
		if err := auth.SendTelegramMessage(cfg, store, text); err == nil {
			delivered = append(delivered, "telegram")
		}
	}

	return delivered
}

func notifyDesktop(code, command string) bool {
	title := "Veto challenge: " + code
	body := command

	switch runtime.GOOS {
	case "darwin":
		escape := strings.NewReplacer(`\`, `\\`, `"`, `\"`)
		script := fmt.Sprintf(`display notification "%s" with title "%s"`,
			escape.Replace(body), escape.Replace(title))
		return exec.Command("osascript", "-e", script).Run() == nil
	case "linux":
		if _, err := exec.LookPath("notify-send"); err != nil {
			return false
		}
		return exec.Command("notify-send", title, body).Run() == nil
	default:
		return false
	}
}
