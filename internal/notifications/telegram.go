package notifications

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const telegramAPI = "https://api.telegram.org"

// TelegramNotifier posts alerts to a Telegram chat through the Bot API
type TelegramNotifier struct {
	token   string
	chatID  string
	baseURL string
	client  *http.Client
}

// NewTelegramNotifier creates a notifier for one chat
func NewTelegramNotifier(token, chatID string) *TelegramNotifier {
	return &TelegramNotifier{
		token:   token,
		chatID:  chatID,
		baseURL: telegramAPI,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// FromEnv returns a Telegram notifier when both the token and chat id are
// set, otherwise Nop
func FromEnv(lookup func(string) string) Notifier {
	token, chat := lookup("QRE_TELEGRAM_TOKEN"), lookup("QRE_TELEGRAM_CHAT_ID")
	if token == "" || chat == "" {
		return Nop{}
	}
	return NewTelegramNotifier(token, chat)
}

// SendAlert implements Notifier
func (t *TelegramNotifier) SendAlert(ctx context.Context, level, message string) error {
	emoji := "ℹ️"
	switch level {
	case LevelWarning:
		emoji = "⚠️"
	case LevelError:
		emoji = "🚨"
	case LevelSuccess:
		emoji = "✅"
	}

	data := url.Values{}
	data.Set("chat_id", t.chatID)
	data.Set("text", fmt.Sprintf("%s *Paper Session*\n\n%s", emoji, message))
	data.Set("parse_mode", "Markdown")

	apiURL := fmt.Sprintf("%s/bot%s/sendMessage", t.baseURL, t.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, strings.NewReader(data.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := t.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram API returned status %d", resp.StatusCode)
	}
	return nil
}
