// Package errors provides standardized error handling patterns for the
// karaoke pipeline services.
//
// # Overview
//
// The package implements a three-class error classification system:
// Transient (temporary, retryable), Invalid (bad input, non-retryable),
// and Fatal (unrecoverable, stop processing). Classification lets the
// stage runner and the retry executor make retry decisions without
// hardcoded error string matching at every call site.
//
// # Quick start
//
// Return standard error variables for known conditions:
//
//	if !redisAvailable {
//	    return errors.ErrStoreUnavailable
//	}
//
// Wrap errors with component context:
//
//	if err := splitStems(file); err != nil {
//	    return errors.WrapTransient(err, "Splitter", "Process", "stem separation")
//	}
//
// Use classification in retry policies:
//
//	policy := retry.DefaultPolicy()
//	policy.RetryIf = errors.Retryable
//
// # Error wrapping pattern
//
// All wrapping follows the format "component.method: action failed: %w".
// WrapTransient, WrapInvalid and WrapFatal set the classification while
// wrapping; the plain Wrap preserves whatever classification the chain
// already carries. All types support errors.Is, errors.As and Unwrap.
//
// # Classification rules
//
// Known sentinels and *ClassifiedError values classify by type. Unknown
// errors fall back to message pattern matching (timeout, connection,
// unavailable, ... are transient; fatal, corrupted, disk full, ... are
// fatal) and default to transient so unknown failures stay retryable.
package errors
