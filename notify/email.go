package notify

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/smtp"
	"strings"

	pkgerrors "github.com/svidal-nlive/karaoke-shared/errors"
)

// EmailConfig holds SMTP settings. Server and at least one recipient
// must be set for the channel to be active.
type EmailConfig struct {
	Server     string   `yaml:"server" json:"server"`
	Port       int      `yaml:"port" json:"port"`
	Username   string   `yaml:"username" json:"username"`
	Password   string   `yaml:"password" json:"password"`
	From       string   `yaml:"from" json:"from"`
	Recipients []string `yaml:"recipients" json:"recipients"`
}

func (c EmailConfig) configured() bool {
	return c.Server != "" && len(c.Recipients) > 0
}

// Email sends notifications over SMTP. smtp.SendMail negotiates
// STARTTLS whenever the server advertises it.
type Email struct {
	config   EmailConfig
	logger   *slog.Logger
	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// EmailOption configures an Email notifier.
type EmailOption func(*Email)

// WithEmailLogger sets the logger.
func WithEmailLogger(logger *slog.Logger) EmailOption {
	return func(e *Email) {
		e.logger = logger
	}
}

// NewEmail creates an Email notifier.
func NewEmail(config EmailConfig, opts ...EmailOption) *Email {
	if config.Port == 0 {
		config.Port = 587
	}
	e := &Email{
		config:   config,
		logger:   slog.Default(),
		sendMail: smtp.SendMail,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements Notifier.
func (e *Email) Name() string { return "email" }

// Send delivers the message to all configured recipients in one SMTP
// transaction. Skipped with an info log when the server or recipient
// list is missing.
func (e *Email) Send(ctx context.Context, msg Message) error {
	if !e.config.configured() {
		e.logger.Info("email notification skipped: SMTP server or recipients not set",
			"message_id", msg.ID)
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	from := e.config.From
	if from == "" {
		from = e.config.Username
	}

	var auth smtp.Auth
	if e.config.Username != "" {
		auth = smtp.PlainAuth("", e.config.Username, e.config.Password, e.config.Server)
	}

	addr := net.JoinHostPort(e.config.Server, fmt.Sprintf("%d", e.config.Port))
	body := e.buildBody(from, msg)

	if err := e.sendMail(addr, auth, from, e.config.Recipients, body); err != nil {
		return pkgerrors.WrapTransient(
			fmt.Errorf("%w: %w", pkgerrors.ErrNotifyFailed, err),
			"email", "Send", "deliver mail")
	}

	e.logger.Debug("email notification sent",
		"message_id", msg.ID,
		"recipients", len(e.config.Recipients))
	return nil
}

func (e *Email) buildBody(from string, msg Message) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(e.config.Recipients, ", "))
	fmt.Fprintf(&b, "Subject: %s\r\n", msg.Subject)
	fmt.Fprintf(&b, "Date: %s\r\n", msg.Timestamp.Format("Mon, 02 Jan 2006 15:04:05 -0700"))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(msg.Body)
	b.WriteString("\r\n")
	return []byte(b.String())
}
