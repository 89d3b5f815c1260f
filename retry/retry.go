// Package retry provides policy-driven retry with exponential backoff for
// pipeline stages and infrastructure calls.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"
)

var (
	// Thread-safe random source for jitter
	randMu     sync.Mutex
	randSource = rand.New(rand.NewSource(time.Now().UnixNano()))
)

// ErrRetriesExhausted matches (via errors.Is) the error returned when all
// attempts under a policy have failed.
var ErrRetriesExhausted = errors.New("retries exhausted")

// ExhaustedError is returned after the final failed attempt. It carries the
// number of attempts performed and wraps the last failure.
type ExhaustedError struct {
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("retry: %d attempts exhausted: %v", e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Err
}

func (e *ExhaustedError) Is(target error) bool {
	return target == ErrRetriesExhausted
}

// NonRetryableError wraps errors that should not be retried
type NonRetryableError struct {
	Err error
}

func (e *NonRetryableError) Error() string {
	return fmt.Sprintf("non-retryable: %v", e.Err)
}

func (e *NonRetryableError) Unwrap() error {
	return e.Err
}

// NonRetryable wraps an error to indicate it should not be retried
func NonRetryable(err error) error {
	if err == nil {
		return nil
	}
	return &NonRetryableError{Err: err}
}

// IsNonRetryable checks if an error is marked as non-retryable
func IsNonRetryable(err error) bool {
	var nre *NonRetryableError
	return errors.As(err, &nre)
}

// Attempt records one invocation within a retry session. It exists only for
// the duration of the session and is handed to Policy.OnAttempt.
type Attempt struct {
	Index   int // 1-based, monotonically increasing
	Err     error
	Elapsed time.Duration
}

// Policy configures a retry session.
//
// MaxAttempts counts total invocations including the first; values <= 0 are
// treated as 1. An empty Retryable list means every error is retryable
// unless RetryIf says otherwise or the error is wrapped with NonRetryable.
type Policy struct {
	MaxAttempts int           // Total attempts (first call included)
	BaseDelay   time.Duration // Delay before the first retry
	Multiplier  float64       // Backoff growth factor, >= 1.0
	MaxDelay    time.Duration // Cap on computed delay (0 = no cap)
	Retryable   []error       // Allow-list of retryable sentinels (errors.Is)
	RetryIf     func(error) bool
	Jitter      bool // Add up to 25% jitter to prevent thundering herd
	OnAttempt   func(Attempt)
}

// DefaultPolicy returns sensible defaults for stage operations
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		BaseDelay:   100 * time.Millisecond,
		Multiplier:  2.0,
		MaxDelay:    5 * time.Second,
		Jitter:      true,
	}
}

// Quick returns a policy for fast retries (useful during startup)
func Quick() Policy {
	return Policy{
		MaxAttempts: 10,
		BaseDelay:   50 * time.Millisecond,
		Multiplier:  1.5,
		MaxDelay:    time.Second,
		Jitter:      true,
	}
}

// Persistent returns a policy for long-running retries against critical
// resources such as the status store.
func Persistent() Policy {
	return Policy{
		MaxAttempts: 30,
		BaseDelay:   200 * time.Millisecond,
		Multiplier:  2.0,
		MaxDelay:    10 * time.Second,
		Jitter:      true,
	}
}

// Do executes fn under the policy. It returns nil on the first success, the
// error itself for non-retryable failures, a wrapped context error when the
// session is cancelled, and *ExhaustedError after the final failed attempt.
func Do(ctx context.Context, p Policy, fn func() error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := p.validate(); err != nil {
		return err
	}
	p = p.normalize()

	var lastErr error
	delay := p.BaseDelay

	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("retry cancelled before attempt %d: %w", attempt, err)
		}

		start := time.Now()
		err := fn()
		p.observe(Attempt{Index: attempt, Err: err, Elapsed: time.Since(start)})
		if err == nil {
			return nil
		}
		lastErr = err

		if IsNonRetryable(err) || !p.retryable(err) {
			return err
		}

		if attempt == p.MaxAttempts {
			break
		}

		sleep := delay
		if p.Jitter && delay >= 4 {
			randMu.Lock()
			sleep = delay + time.Duration(randSource.Int63n(int64(delay/4)))
			randMu.Unlock()
		}
		if p.MaxDelay > 0 && sleep > p.MaxDelay {
			sleep = p.MaxDelay
		}

		timer := time.NewTimer(sleep)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("retry cancelled during backoff for attempt %d: %w", attempt+1, ctx.Err())
		case <-timer.C:
		}

		next := float64(delay) * p.Multiplier
		if p.MaxDelay > 0 && next > float64(p.MaxDelay) {
			delay = p.MaxDelay
		} else if next > float64(time.Duration(1<<62)) {
			delay = time.Duration(1 << 62)
		} else {
			delay = time.Duration(next)
		}
	}

	return &ExhaustedError{Attempts: p.MaxAttempts, Err: lastErr}
}

// DoValue executes fn under the policy and returns its result alongside the
// session error.
func DoValue[T any](ctx context.Context, p Policy, fn func() (T, error)) (T, error) {
	var result T
	err := Do(ctx, p, func() error {
		var innerErr error
		result, innerErr = fn()
		return innerErr
	})
	return result, err
}

func (p Policy) validate() error {
	if p.BaseDelay < 0 {
		return errors.New("retry: BaseDelay cannot be negative")
	}
	if p.MaxDelay < 0 {
		return errors.New("retry: MaxDelay cannot be negative")
	}
	if p.MaxDelay > 0 && p.BaseDelay > 0 && p.MaxDelay < p.BaseDelay {
		return errors.New("retry: MaxDelay must be >= BaseDelay")
	}
	return nil
}

func (p Policy) normalize() Policy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 1
	}
	if p.BaseDelay == 0 {
		p.BaseDelay = 100 * time.Millisecond
	}
	if p.Multiplier == 0 {
		p.Multiplier = 2.0
	}
	if p.Multiplier < 1 {
		p.Multiplier = 1
	}
	// Prevent overflow with extreme multipliers
	if p.Multiplier > 1000 {
		p.Multiplier = 1000
	}
	return p
}

func (p Policy) retryable(err error) bool {
	if p.RetryIf != nil {
		return p.RetryIf(err)
	}
	if len(p.Retryable) > 0 {
		for _, target := range p.Retryable {
			if errors.Is(err, target) {
				return true
			}
		}
		return false
	}
	return true
}

func (p Policy) observe(a Attempt) {
	if p.OnAttempt != nil {
		p.OnAttempt(a)
	}
}
