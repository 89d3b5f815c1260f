package pipeline

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/svidal-nlive/karaoke-shared/errors"
	"github.com/svidal-nlive/karaoke-shared/metric"
	"github.com/svidal-nlive/karaoke-shared/notify"
	"github.com/svidal-nlive/karaoke-shared/retry"
	"github.com/svidal-nlive/karaoke-shared/sanitize"
	"github.com/svidal-nlive/karaoke-shared/status"
)

// Runner executes one stage function per file under a retry policy,
// keeping the status store, retry counters and alerting in sync.
type Runner struct {
	store    status.Store
	notifier notify.Notifier
	metrics  *metric.Metrics
	policy   retry.Policy
	logger   *slog.Logger
}

// Option configures a Runner.
type Option func(*Runner)

// WithNotifier sets the channel for exhaustion alerts. Without one,
// exhaustion is logged but not delivered anywhere.
func WithNotifier(n notify.Notifier) Option {
	return func(r *Runner) {
		r.notifier = n
	}
}

// WithMetrics wires attempt and exhaustion counters.
func WithMetrics(m *metric.Metrics) Option {
	return func(r *Runner) {
		r.metrics = m
	}
}

// WithPolicy overrides the retry policy. Leave RetryIf and Retryable
// unset to get the default transient/invalid/fatal classification.
func WithPolicy(p retry.Policy) Option {
	return func(r *Runner) {
		r.policy = p
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		r.logger = logger
	}
}

// NewRunner creates a Runner over the given status store.
func NewRunner(store status.Store, opts ...Option) *Runner {
	r := &Runner{
		store:  store,
		policy: retry.DefaultPolicy(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes fn for one file under the runner's retry policy.
//
// The file is marked processing up front. Every failed attempt
// increments the stage's retry counter and records an attempt-tagged
// error status. Success resets the counter. When all attempts fail,
// an alert with subject "Pipeline Error [<stage>]" goes out and the
// exhaustion error is returned.
func (r *Runner) Run(ctx context.Context, stage, filename string, fn func(ctx context.Context) error) error {
	name := sanitize.Filename(filename)
	logger := r.logger.With("stage", stage, "file", name)

	if err := r.store.SetStatus(ctx, name, status.StatusProcessing, map[string]string{"stage": stage}); err != nil {
		logger.Warn("failed to mark file processing", "error", err)
	}

	policy := r.policy
	if policy.RetryIf == nil && len(policy.Retryable) == 0 {
		policy.RetryIf = errors.Retryable
	}

	var metricObserve func(retry.Attempt)
	if r.metrics != nil {
		metricObserve = r.metrics.RetryObserver(stage)
	}
	userObserve := policy.OnAttempt

	policy.OnAttempt = func(attempt retry.Attempt) {
		if metricObserve != nil {
			metricObserve(attempt)
		}
		if userObserve != nil {
			userObserve(attempt)
		}
		if attempt.Err == nil {
			return
		}
		count, err := r.store.IncrementRetry(ctx, stage, name)
		if err != nil {
			logger.Warn("failed to increment retry counter", "error", err)
		}
		reason := fmt.Sprintf("%s attempt %d: %v", stage, attempt.Index, attempt.Err)
		if err := r.store.SetError(ctx, name, reason); err != nil {
			logger.Warn("failed to record error status", "error", err)
		}
		logger.Warn("stage attempt failed",
			"attempt", attempt.Index,
			"retries", count,
			"elapsed", attempt.Elapsed,
			"error", attempt.Err)
	}

	err := retry.Do(ctx, policy, func() error { return fn(ctx) })
	if err == nil {
		if resetErr := r.store.ResetRetry(ctx, stage, name); resetErr != nil {
			logger.Warn("failed to reset retry counter", "error", resetErr)
		}
		logger.Info("stage completed")
		return nil
	}

	var exhausted *retry.ExhaustedError
	if stderrors.As(err, &exhausted) {
		if r.metrics != nil {
			r.metrics.ObserveExhaustion(stage)
		}
		logger.Error("stage exhausted retries",
			"attempts", exhausted.Attempts,
			"error", exhausted.Err)
		r.alert(ctx, stage, name, exhausted)
		return err
	}

	logger.Error("stage failed", "error", err)
	return err
}

func (r *Runner) alert(ctx context.Context, stage, name string, exhausted *retry.ExhaustedError) {
	if r.notifier == nil {
		return
	}
	msg := notify.NewMessage(
		fmt.Sprintf("Pipeline Error [%s]", stage),
		fmt.Sprintf("File %q failed after %d attempts.\nLast error: %v\nTime: %s",
			name, exhausted.Attempts, exhausted.Err,
			time.Now().UTC().Format(time.RFC3339)),
		notify.SeverityError,
	)
	if err := r.notifier.Send(ctx, msg); err != nil {
		r.logger.Warn("failed to send exhaustion alert",
			"stage", stage,
			"file", name,
			"error", err)
	}
}
