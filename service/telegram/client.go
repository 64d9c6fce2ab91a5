package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// DefaultAPIBase is the Telegram Bot API endpoint. Tests override it via
// the Bot's APIBase field.
const DefaultAPIBase = "https://api.telegram.org"

// longPollWindow is how long getUpdates holds the connection open.
const longPollWindow = 25 * time.Second

// Bot is a minimal Telegram Bot API client. It implements
// notify.Notifier: Notify sends a Markdown message to the user's chat.
type Bot struct {
	APIBase string

	token  string
	http   *retryablehttp.Client
	logger *slog.Logger
}

// NewBot creates a Bot API client with retrying transport.
func NewBot(token string, timeout time.Duration, logger *slog.Logger) *Bot {
	client := retryablehttp.NewClient()
	// The transport timeout must cover the getUpdates long-poll window.
	if timeout < longPollWindow+5*time.Second {
		timeout = longPollWindow + 5*time.Second
	}
	client.HTTPClient.Timeout = timeout
	client.RetryMax = 2
	client.RetryWaitMin = 200 * time.Millisecond
	client.RetryWaitMax = 1 * time.Second
	client.Logger = nil

	return &Bot{
		APIBase: DefaultAPIBase,
		token:   token,
		http:    client,
		logger:  logger,
	}
}

// apiEnvelope is the standard Bot API response wrapper.
type apiEnvelope struct {
	OK          bool            `json:"ok"`
	Description string          `json:"description"`
	Result      json.RawMessage `json:"result"`
}

// call performs one Bot API method call and decodes the result payload
// into out (which may be nil when the result is not needed).
func (b *Bot) call(ctx context.Context, method string, params any, out any) error {
	body, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("failed to marshal %s params: %w", method, err)
	}

	url := fmt.Sprintf("%s/bot%s/%s", b.APIBase, b.token, method)
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s request failed: %w", method, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read %s response: %w", method, err)
	}

	var envelope apiEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", method, err)
	}
	if !envelope.OK {
		return fmt.Errorf("%s failed: %s", method, envelope.Description)
	}
	if out != nil {
		if err := json.Unmarshal(envelope.Result, out); err != nil {
			return fmt.Errorf("failed to decode %s result: %w", method, err)
		}
	}
	return nil
}

// Notify sends a Markdown message to the user's chat. Link previews are
// disabled so explorer links stay compact.
func (b *Bot) Notify(ctx context.Context, userID int64, text string) error {
	params := map[string]any{
		"chat_id":                  userID,
		"text":                     text,
		"parse_mode":               "Markdown",
		"disable_web_page_preview": true,
	}
	if err := b.call(ctx, "sendMessage", params, nil); err != nil {
		return err
	}
	b.logger.Debug("sent telegram message", "chat_id", userID)
	return nil
}

// Update is one entry from getUpdates.
type Update struct {
	UpdateID int64    `json:"update_id"`
	Message  *Message `json:"message"`
}

// Message is an incoming chat message.
type Message struct {
	MessageID int64  `json:"message_id"`
	From      *User  `json:"from"`
	Chat      Chat   `json:"chat"`
	Text      string `json:"text"`
}

// User is the sender of a message.
type User struct {
	ID int64 `json:"id"`
}

// Chat identifies where a message was sent.
type Chat struct {
	ID int64 `json:"id"`
}

// GetUpdates long-polls for incoming updates after the given offset.
func (b *Bot) GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]Update, error) {
	params := map[string]any{
		"offset":          offset,
		"timeout":         int(timeout.Seconds()),
		"allowed_updates": []string{"message"},
	}
	var updates []Update
	if err := b.call(ctx, "getUpdates", params, &updates); err != nil {
		return nil, err
	}
	return updates, nil
}

// BotCommand is one entry of the command menu shown by Telegram clients.
type BotCommand struct {
	Command     string `json:"command"`
	Description string `json:"description"`
}

// SetMyCommands registers the bot's command menu.
func (b *Bot) SetMyCommands(ctx context.Context, commands []BotCommand) error {
	return b.call(ctx, "setMyCommands", map[string]any{"commands": commands}, nil)
}
