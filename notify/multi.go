package notify

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	pkgerrors "github.com/svidal-nlive/karaoke-shared/errors"
)

// Multi fans one message out to every channel concurrently. An alert
// storm must not block the pipeline, so an optional rate limiter drops
// excess notifications instead of queueing them.
type Multi struct {
	notifiers []Notifier
	limiter   *rate.Limiter
	logger    *slog.Logger
	onResult  func(channel string, err error)
}

// MultiOption configures a Multi notifier.
type MultiOption func(*Multi)

// WithMultiLogger sets the logger.
func WithMultiLogger(logger *slog.Logger) MultiOption {
	return func(m *Multi) {
		m.logger = logger
	}
}

// WithRateLimit caps outbound notifications per minute. Sends beyond
// the cap are dropped with a warning. n <= 0 disables the limiter.
func WithRateLimit(perMinute int) MultiOption {
	return func(m *Multi) {
		if perMinute <= 0 {
			m.limiter = nil
			return
		}
		m.limiter = rate.NewLimiter(rate.Limit(float64(perMinute)/60.0), perMinute)
	}
}

// WithOnResult registers a per-channel delivery observer, called once
// per channel per send with the delivery error (nil on success).
func WithOnResult(fn func(channel string, err error)) MultiOption {
	return func(m *Multi) {
		m.onResult = fn
	}
}

// NewMulti creates a fan-out notifier over the given channels.
func NewMulti(notifiers []Notifier, opts ...MultiOption) *Multi {
	m := &Multi{
		notifiers: notifiers,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// FromConfig builds a Multi with the Telegram, Slack and Email channels
// from config. Unconfigured channels stay in the fan-out as no-ops, so
// a send always logs which channels were skipped.
func FromConfig(config Config, logger *slog.Logger) *Multi {
	if logger == nil {
		logger = slog.Default()
	}
	notifiers := []Notifier{
		NewTelegram(config.Telegram, WithTelegramLogger(logger)),
		NewSlack(config.Slack, WithSlackLogger(logger)),
		NewEmail(config.Email, WithEmailLogger(logger)),
	}
	return NewMulti(notifiers,
		WithMultiLogger(logger),
		WithRateLimit(config.RatePerMinute),
	)
}

// Name implements Notifier.
func (m *Multi) Name() string { return "multi" }

// Send delivers the message on every channel concurrently and returns
// the joined per-channel errors. When the rate limiter rejects the
// send, the message is dropped and ErrRateLimited returned.
func (m *Multi) Send(ctx context.Context, msg Message) error {
	if m.limiter != nil && !m.limiter.Allow() {
		m.logger.Warn("notification dropped: rate limited",
			"message_id", msg.ID,
			"subject", msg.Subject)
		return fmt.Errorf("notify.Multi: %w", pkgerrors.ErrRateLimited)
	}

	// Plain group, not WithContext: one failing channel must not cancel
	// the others mid-send.
	var g errgroup.Group
	for _, n := range m.notifiers {
		n := n
		g.Go(func() error {
			err := n.Send(ctx, msg)
			if m.onResult != nil {
				m.onResult(n.Name(), err)
			}
			if err != nil {
				m.logger.Warn("notification channel failed",
					"channel", n.Name(),
					"message_id", msg.ID,
					"error", err)
				return fmt.Errorf("%s: %w", n.Name(), err)
			}
			return nil
		})
	}
	return g.Wait()
}
