package status

import "context"

// Store is the status backend shared by all pipeline services. Two
// implementations exist: RedisStore (hash per file, the original layout)
// and NATSStore (JetStream KV with JSON records).
type Store interface {
	// SetStatus records the file's status, merging any extra fields into
	// the record.
	SetStatus(ctx context.Context, filename, status string, extra map[string]string) error

	// SetError sets the status to StatusError and attaches error details.
	SetError(ctx context.Context, filename, errDetails string) error

	// ClearError resets the file to StatusQueued, drops the stored error
	// and resets the retry counters of every configured stage.
	ClearError(ctx context.Context, filename string) error

	// Get returns the file's record. Untracked files yield a record with
	// StatusUnknown rather than an error, matching dashboard expectations.
	Get(ctx context.Context, filename string) (Record, error)

	// ListByStatus returns the filenames currently in the given status.
	ListByStatus(ctx context.Context, status string) ([]string, error)

	// IncrementRetry bumps and returns the retry counter for a stage/file.
	IncrementRetry(ctx context.Context, stage, filename string) (int, error)

	// RetryCount returns the current retry counter (0 when unset).
	RetryCount(ctx context.Context, stage, filename string) (int, error)

	// ResetRetry clears the retry counter for a stage/file.
	ResetRetry(ctx context.Context, stage, filename string) error

	// Ping verifies backend connectivity.
	Ping(ctx context.Context) error

	// Close releases backend resources.
	Close() error
}
