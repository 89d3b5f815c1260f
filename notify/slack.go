package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	pkgerrors "github.com/svidal-nlive/karaoke-shared/errors"
)

// SlackConfig holds Slack incoming-webhook settings.
type SlackConfig struct {
	WebhookURL string `yaml:"webhook_url" json:"webhook_url"`
}

func (c SlackConfig) configured() bool {
	return c.WebhookURL != ""
}

// Slack sends notifications to a Slack incoming webhook.
type Slack struct {
	config SlackConfig
	client *http.Client
	logger *slog.Logger
}

// SlackOption configures a Slack notifier.
type SlackOption func(*Slack)

// WithSlackLogger sets the logger.
func WithSlackLogger(logger *slog.Logger) SlackOption {
	return func(s *Slack) {
		s.logger = logger
	}
}

// WithSlackHTTPClient sets the HTTP client.
func WithSlackHTTPClient(client *http.Client) SlackOption {
	return func(s *Slack) {
		s.client = client
	}
}

// NewSlack creates a Slack notifier.
func NewSlack(config SlackConfig, opts ...SlackOption) *Slack {
	s := &Slack{
		config: config,
		client: &http.Client{Timeout: 10 * time.Second},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name implements Notifier.
func (s *Slack) Name() string { return "slack" }

// Send posts the message as webhook JSON. Skipped with an info log when
// no webhook URL is configured.
func (s *Slack) Send(ctx context.Context, msg Message) error {
	if !s.config.configured() {
		s.logger.Info("slack notification skipped: webhook URL not set",
			"message_id", msg.ID)
		return nil
	}

	payload, err := json.Marshal(map[string]string{
		"text": fmt.Sprintf("*%s*\n%s", msg.Subject, msg.Body),
	})
	if err != nil {
		return pkgerrors.Wrap(err, "slack", "Send", "marshal payload")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.WebhookURL,
		bytes.NewReader(payload))
	if err != nil {
		return pkgerrors.Wrap(err, "slack", "Send", "build request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return pkgerrors.WrapTransient(err, "slack", "Send", "post webhook")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return pkgerrors.WrapTransient(
			fmt.Errorf("%w: slack webhook status %d: %s",
				pkgerrors.ErrNotifyFailed, resp.StatusCode, strings.TrimSpace(string(body))),
			"slack", "Send", "post webhook")
	}

	s.logger.Debug("slack notification sent", "message_id", msg.ID)
	return nil
}
