package auth

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/veto-sh/veto/internal/models"
	"github.com/veto-sh/veto/internal/secret"
)

const defaultTelegramTimeout = 60 * time.Second

// Telegram sends an approval request to the configured chat and long-polls
// for a reply. Replies from any other chat are ignored, as are messages sent
// before the request went out.
type Telegram struct {
	Config models.TelegramConfig
	Store  secret.Store
}

func (t *Telegram) Name() string { return "telegram" }

func (t *Telegram) Available() bool {
	return t.Config.Enabled && t.Config.ChatID != "" && secret.HasTelegram(t.Store)
}

func (t *Telegram) timeout() time.Duration {
	if t.Config.TimeoutSeconds > 0 {
		return time.Duration(t.Config.TimeoutSeconds) * time.Second
	}
	return defaultTelegramTimeout
}

func (t *Telegram) bot() (*tgbotapi.BotAPI, int64, error) {
	if !t.Config.Enabled || t.Config.ChatID == "" {
		return nil, 0, fmt.Errorf("%w: telegram not configured", ErrUnavailable)
	}
	chatID, err := strconv.ParseInt(t.Config.ChatID, 10, 64)
	if err != nil {
		return nil, 0, fmt.Errorf("invalid telegram chat_id %q: %w", t.Config.ChatID, err)
	}
	token, err := t.Store.Get(secret.KeyTelegramToken)
	if err != nil {
		if errors.Is(err, secret.ErrNotFound) {
			return nil, 0, fmt.Errorf("%w: telegram bot token not stored", ErrUnavailable)
		}
		return nil, 0, err
	}
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, 0, fmt.Errorf("telegram connection failed: %w", err)
	}
	return bot, chatID, nil
}

func (t *Telegram) Verify(ctx context.Context, req *Request) (Decision, error) {
	bot, chatID, err := t.bot()
	if err != nil {
		return Denied, err
	}

	sentAt := time.Now()
	text := fmt.Sprintf(
		"🔐 <b>Veto approval request</b>\n\n<code>%s</code>\n\nReply /allow or /deny.",
		html.EscapeString(req.Command))
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	if _, err := bot.Send(msg); err != nil {
		return Denied, fmt.Errorf("telegram send failed: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, t.timeout())
	defer cancel()

	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = 10
	updates := bot.GetUpdatesChan(cfg)
	defer bot.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
			t.notify(bot, chatID, "⏱ Request timed out, command denied.")
			return Denied, ErrTimeout
		case update, ok := <-updates:
			if !ok {
				return Denied, fmt.Errorf("telegram update stream closed")
			}
			if update.Message == nil || update.Message.Chat.ID != chatID {
				continue
			}
			// Ignore anything typed before we asked.
			if int64(update.Message.Date) < sentAt.Unix() {
				continue
			}
			switch strings.ToLower(strings.TrimSpace(update.Message.Text)) {
			case "/allow", "allow", "yes":
				t.notify(bot, chatID, "✅ Approved.")
				return Approved, nil
			case "/deny", "deny", "no":
				t.notify(bot, chatID, "🚫 Denied.")
				return Denied, nil
			}
		}
	}
}

func (t *Telegram) notify(bot *tgbotapi.BotAPI, chatID int64, text string) {
	_, _ = bot.Send(tgbotapi.NewMessage(chatID, text))
}

// SendTelegramMessage delivers a one-way message to the configured chat, used
// for challenge codes. Best-effort from the caller's perspective.
func SendTelegramMessage(cfg models.TelegramConfig, store secret.Store, text string) error {
	t := &Telegram{Config: cfg, Store: store}
	bot, chatID, err := t.bot()
	if err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	if _, err := bot.Send(msg); err != nil {
		return fmt.Errorf("telegram send failed: %w", err)
	}
	return nil
}

// TestTelegram sends a ping message to verify token and chat wiring.
func TestTelegram(cfg models.TelegramConfig, store secret.Store) error {
	return SendTelegramMessage(cfg, store, "✅ Veto telegram integration is working.")
}
