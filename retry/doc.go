// Package retry provides policy-driven retry with exponential backoff.
//
// # Overview
//
// Pipeline stages and infrastructure calls fail transiently all the time:
// the splitter loses its GPU worker, Redis restarts, a webhook times out.
// This package re-invokes a fallible operation under an explicit Policy
// until it succeeds, exhausts its attempts, hits a non-retryable error, or
// the caller's context is cancelled.
//
// # Core functions
//
//   - Do: execute an operation under a Policy
//   - DoValue: same, returning the operation's result
//
// # Policy
//
// A Policy is plain data passed at the call site; there is no process-wide
// default. MaxAttempts counts total invocations. The delay before retry n
// (n >= 2) is min(BaseDelay * Multiplier^(n-2), MaxDelay).
//
//	err := retry.Do(ctx, retry.Policy{
//	    MaxAttempts: 5,
//	    BaseDelay:   time.Second,
//	    Multiplier:  2.0,
//	    MaxDelay:    10 * time.Second,
//	}, func() error {
//	    return splitStems(file)
//	})
//
// # Classifying failures
//
// Three explicit mechanisms decide whether a failure is retried:
//
//  1. Wrap the error with NonRetryable to stop immediately.
//  2. Set Policy.Retryable to an allow-list of sentinels (errors.Is match).
//  3. Set Policy.RetryIf for custom classification, e.g. errors.IsTransient
//     from this module's errors package.
//
// With none of these set, every error is retried.
//
// # Exhaustion and cancellation
//
// After the final failed attempt Do returns *ExhaustedError wrapping the
// last failure; errors.Is(err, retry.ErrRetriesExhausted) matches it.
// Cancelling the context during a backoff wait aborts the session and the
// returned error matches context.Canceled (or DeadlineExceeded).
//
// # Observability
//
// Policy.OnAttempt receives an Attempt record (index, error, elapsed) for
// every invocation. The metric package uses this hook to feed Prometheus
// counters without coupling this package to a metrics library.
//
// # Thread safety
//
// All functions are safe for concurrent use; concurrent sessions are
// independent and share only the jitter random source.
package retry
