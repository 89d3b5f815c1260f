// Package notify delivers pipeline alerts to Telegram, Slack and email.
//
// # Overview
//
// Stages alert operators when a file exhausts its retries. Three
// channels are provided, all implementing the Notifier interface:
//
//   - Telegram: bot API sendMessage
//   - Slack: incoming webhook
//   - Email: SMTP, STARTTLS when the server offers it
//
// Multi fans a message out to every channel concurrently and joins the
// per-channel errors. An optional rate limiter drops excess messages so
// an alert storm degrades to dropped notifications, never a blocked
// pipeline.
//
// # Unconfigured channels
//
// A channel with missing settings skips the send with an info log and
// returns nil. Operators routinely deploy with only one or two channels
// configured; the others must stay silent, not fail.
//
// # Usage
//
//	multi := notify.FromConfig(cfg.Notify, logger)
//	msg := notify.NewMessage("Pipeline Error [splitter]", detail, notify.SeverityError)
//	if err := multi.Send(ctx, msg); err != nil {
//	    logger.Warn("notification failed", "error", err)
//	}
package notify
