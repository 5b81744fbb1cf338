package telegram

import (
	"brokerdesk/backend/internal/models"
	"errors"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockSender struct {
	mock.Mock
}

func (m *mockSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	args := m.Called(c)
	return tgbotapi.Message{}, args.Error(0)
}

func TestNotify_SendsHTMLToConfiguredChat(t *testing.T) {
	bot := new(mockSender)
	bot.On("Send", mock.MatchedBy(func(c tgbotapi.Chattable) bool {
		msg, ok := c.(tgbotapi.MessageConfig)
		return ok && msg.ChatID == -100123 && msg.ParseMode == tgbotapi.ModeHTML
	})).Return(nil)

	n := &Notifier{bot: bot, chatID: -100123}
	err := n.Notify(models.Notification{ID: "n1", Title: "Margin call", Priority: models.PriorityHigh, RecipientID: "payer_1"})

	require.NoError(t, err)
	bot.AssertExpectations(t)
}

func TestNotify_WrapsSendError(t *testing.T) {
	bot := new(mockSender)
	sendErr := errors.New("chat not found")
	bot.On("Send", mock.Anything).Return(sendErr)

	n := &Notifier{bot: bot, chatID: 1}
	err := n.Notify(models.Notification{ID: "n1"})

	assert.ErrorIs(t, err, sendErr)
	assert.Contains(t, err.Error(), "n1")
}

func TestFormatNotification_EscapesHTML(t *testing.T) {
	text := formatNotification(models.Notification{
		Title:       "USD <> EUR spread",
		Description: "rate < 1.08 & falling",
		Type:        models.NotificationSystem,
		Priority:    models.PriorityHigh,
		RecipientID: "rater_2",
	})

	assert.Contains(t, text, "<b>USD &lt;&gt; EUR spread</b>")
	assert.Contains(t, text, "rate &lt; 1.08 &amp; falling")
	assert.Contains(t, text, "high · system · to rater_2")
}

func TestFormatNotification_NoDescription(t *testing.T) {
	text := formatNotification(models.Notification{Title: "Ping", Priority: "low", Type: "individual", RecipientID: "A"})

	assert.NotContains(t, text, "Ping</b>\n\n\n")
	assert.Contains(t, text, "<b>Ping</b>\n\n<i>")
}
