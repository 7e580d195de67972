package notification

import (
	"bytes"
	"context"
	"fmt"

	tgbot "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"hama-scanner/internal/logger"
)

// botSender is the subset of *tgbot.BotAPI used here.
type botSender interface {
	Send(c tgbot.Chattable) (tgbot.Message, error)
}

// TelegramNotifier sends alerts to one chat via the Bot API.
type TelegramNotifier struct {
	bot    botSender
	chatID int64
	log    zerolog.Logger
}

// NewTelegramNotifier authenticates with the Bot API.
// botToken: Bot API token from @BotFather
// chatID: target chat/group/channel ID
func NewTelegramNotifier(botToken string, chatID int64) (*TelegramNotifier, error) {
	bot, err := tgbot.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("telegram: login: %w", err)
	}
	return newTelegram(bot, chatID), nil
}

func newTelegram(bot botSender, chatID int64) *TelegramNotifier {
	return &TelegramNotifier{bot: bot, chatID: chatID, log: logger.Component("telegram")}
}

func (t *TelegramNotifier) Send(ctx context.Context, alert Alert) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := tgbot.NewMessage(t.chatID, formatTelegram(alert))
	msg.ParseMode = tgbot.ModeMarkdownV2
	msg.DisableWebPagePreview = true

	if _, err := t.bot.Send(msg); err != nil {
		return fmt.Errorf("telegram: send: %w", err)
	}

	t.log.Debug().Str("title", alert.Title).Msg("sent alert")
	return nil
}

func formatTelegram(alert Alert) string {
	emoji := "ℹ️"
	switch alert.Level {
	case AlertWarning:
		emoji = "⚠️"
	case AlertCritical:
		emoji = "🚨"
	}
	return fmt.Sprintf("%s *%s*\n\n%s", emoji, escapeMarkdown(alert.Title), escapeMarkdown(alert.Message))
}

// escapeMarkdown escapes special characters for Telegram MarkdownV2.
func escapeMarkdown(s string) string {
	specials := []byte{'_', '*', '[', ']', '(', ')', '~', '`', '>', '#', '+', '-', '=', '|', '{', '}', '.', '!'}
	var buf bytes.Buffer
	for i := 0; i < len(s); i++ {
		for _, sp := range specials {
			if s[i] == sp {
				buf.WriteByte('\\')
				break
			}
		}
		buf.WriteByte(s[i])
	}
	return buf.String()
}
