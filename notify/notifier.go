package notify

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Severity indicates how urgent a notification is.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Message is one human-readable alert. The ID correlates delivery logs
// across channels.
type Message struct {
	ID        string
	Subject   string
	Body      string
	Severity  Severity
	Timestamp time.Time
}

// NewMessage builds a Message with a fresh ID and timestamp.
func NewMessage(subject, body string, severity Severity) Message {
	return Message{
		ID:        uuid.NewString(),
		Subject:   subject,
		Body:      body,
		Severity:  severity,
		Timestamp: time.Now().UTC(),
	}
}

// Notifier is one outbound alert channel. Implementations must treat a
// missing configuration as "skip with a log line", never as a failure:
// a half-configured alerting stack must not break the pipeline.
type Notifier interface {
	Name() string
	Send(ctx context.Context, msg Message) error
}

// Config aggregates all channel configurations. Channels whose settings
// are empty are skipped at send time.
type Config struct {
	Telegram TelegramConfig `yaml:"telegram" json:"telegram"`
	Slack    SlackConfig    `yaml:"slack" json:"slack"`
	Email    EmailConfig    `yaml:"email" json:"email"`

	// RatePerMinute caps outbound notifications across all channels.
	// 0 disables rate limiting.
	RatePerMinute int `yaml:"rate_per_minute" json:"rate_per_minute"`
}
