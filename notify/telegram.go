package notify

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	pkgerrors "github.com/svidal-nlive/karaoke-shared/errors"
)

const defaultTelegramBaseURL = "https://api.telegram.org"

// TelegramConfig holds Telegram bot API settings. Both fields must be
// set for the channel to be active.
type TelegramConfig struct {
	BotToken string `yaml:"bot_token" json:"bot_token"`
	ChatID   string `yaml:"chat_id" json:"chat_id"`
}

func (c TelegramConfig) configured() bool {
	return c.BotToken != "" && c.ChatID != ""
}

// Telegram sends notifications through the Telegram bot API.
type Telegram struct {
	config  TelegramConfig
	client  *http.Client
	logger  *slog.Logger
	baseURL string
}

// TelegramOption configures a Telegram notifier.
type TelegramOption func(*Telegram)

// WithTelegramLogger sets the logger.
func WithTelegramLogger(logger *slog.Logger) TelegramOption {
	return func(t *Telegram) {
		t.logger = logger
	}
}

// WithTelegramHTTPClient sets the HTTP client.
func WithTelegramHTTPClient(client *http.Client) TelegramOption {
	return func(t *Telegram) {
		t.client = client
	}
}

// WithTelegramBaseURL overrides the bot API endpoint.
func WithTelegramBaseURL(baseURL string) TelegramOption {
	return func(t *Telegram) {
		t.baseURL = strings.TrimSuffix(baseURL, "/")
	}
}

// NewTelegram creates a Telegram notifier.
func NewTelegram(config TelegramConfig, opts ...TelegramOption) *Telegram {
	t := &Telegram{
		config:  config,
		client:  &http.Client{Timeout: 10 * time.Second},
		logger:  slog.Default(),
		baseURL: defaultTelegramBaseURL,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Name implements Notifier.
func (t *Telegram) Name() string { return "telegram" }

// Send posts the message via the sendMessage bot method. When the bot
// token or chat ID is missing the send is skipped with an info log.
func (t *Telegram) Send(ctx context.Context, msg Message) error {
	if !t.config.configured() {
		t.logger.Info("telegram notification skipped: bot token or chat ID not set",
			"message_id", msg.ID)
		return nil
	}

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", t.baseURL, t.config.BotToken)
	form := url.Values{
		"chat_id": {t.config.ChatID},
		"text":    {msg.Subject + "\n" + msg.Body},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint,
		strings.NewReader(form.Encode()))
	if err != nil {
		return pkgerrors.Wrap(err, "telegram", "Send", "build request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := t.client.Do(req)
	if err != nil {
		return pkgerrors.WrapTransient(err, "telegram", "Send", "post message")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return pkgerrors.WrapTransient(
			fmt.Errorf("%w: telegram API status %d: %s",
				pkgerrors.ErrNotifyFailed, resp.StatusCode, strings.TrimSpace(string(body))),
			"telegram", "Send", "post message")
	}

	t.logger.Debug("telegram notification sent", "message_id", msg.ID)
	return nil
}
