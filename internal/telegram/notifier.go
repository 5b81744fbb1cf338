// Package telegram relays high-priority desk notifications to an operations
// chat through the Telegram Bot API.
package telegram

import (
	"brokerdesk/backend/internal/models"
	"fmt"
	"html"
	"log"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// sender is the part of *tgbotapi.BotAPI the notifier uses.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Notifier posts notifications into one Telegram chat.
type Notifier struct {
	bot    sender
	chatID int64
}

// NewNotifier authorises the bot and returns a notifier for chatID.
func NewNotifier(token string, chatID int64) (*Notifier, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram auth failed: %w", err)
	}
	bot.Debug = false
	log.Printf("✅ Authorized on account %s", bot.Self.UserName)

	return &Notifier{bot: bot, chatID: chatID}, nil
}

// Notify sends n as an HTML message.
func (n *Notifier) Notify(notification models.Notification) error {
	msg := tgbotapi.NewMessage(n.chatID, formatNotification(notification))
	msg.ParseMode = tgbotapi.ModeHTML
	msg.LinkPreviewOptions.IsDisabled = true

	if _, err := n.bot.Send(msg); err != nil {
		return fmt.Errorf("failed to send notification %s: %w", notification.ID, err)
	}
	return nil
}

func formatNotification(n models.Notification) string {
	var b strings.Builder
	b.WriteString("🔔 <b>")
	b.WriteString(html.EscapeString(n.Title))
	b.WriteString("</b>")
	if n.Description != "" {
		b.WriteString("\n")
		b.WriteString(html.EscapeString(n.Description))
	}
	fmt.Fprintf(&b, "\n\n<i>%s · %s · to %s</i>",
		html.EscapeString(n.Priority), html.EscapeString(n.Type), html.EscapeString(n.RecipientID))
	return b.String()
}
