package status

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/svidal-nlive/karaoke-shared/errors"
	"github.com/svidal-nlive/karaoke-shared/retry"
)

// NATSStore implements Store on a JetStream KV bucket. Each file holds one
// JSON Record at "file.<key>"; retry counters live at
// "retries.<stage>.<key>". Writes go through CAS with retry so concurrent
// services cannot clobber each other's updates.
type NATSStore struct {
	bucket    jetstream.KeyValue
	stages    []string
	logger    *slog.Logger
	casPolicy retry.Policy
}

// NATSOption customizes a NATSStore.
type NATSOption func(*NATSStore)

// WithNATSStages overrides the stages whose counters ClearError resets.
func WithNATSStages(stages []string) NATSOption {
	return func(s *NATSStore) {
		if len(stages) > 0 {
			s.stages = stages
		}
	}
}

// WithNATSLogger sets the structured logger.
func WithNATSLogger(logger *slog.Logger) NATSOption {
	return func(s *NATSStore) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithCASPolicy overrides the retry policy used for CAS conflicts.
func WithCASPolicy(p retry.Policy) NATSOption {
	return func(s *NATSStore) {
		s.casPolicy = p
	}
}

// NewNATSStore wraps an already-bound KV bucket. Connection management
// stays with the service; this store only needs the bucket handle.
func NewNATSStore(bucket jetstream.KeyValue, opts ...NATSOption) (*NATSStore, error) {
	if bucket == nil {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "NATSStore", "New", "bucket required")
	}

	store := &NATSStore{
		bucket: bucket,
		stages: DefaultStages,
		logger: slog.Default(),
		casPolicy: retry.Policy{
			MaxAttempts: 10,
			BaseDelay:   10 * time.Millisecond,
			Multiplier:  2.0,
			MaxDelay:    time.Second,
			Jitter:      true,
			RetryIf:     isKVConflict,
		},
	}
	for _, opt := range opts {
		opt(store)
	}
	return store, nil
}

// encodeKey maps a filename onto the KV key alphabet. The original
// filename survives inside the Record, so the mapping does not need to be
// reversible.
func encodeKey(filename string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '-' || r == '_' || r == '=' || r == '.':
			return r
		default:
			return '_'
		}
	}, filename)
}

func (s *NATSStore) fileKey(filename string) string {
	return "file." + encodeKey(filename)
}

func (s *NATSStore) retryKey(stage, filename string) string {
	return "retries." + encodeKey(stage) + "." + encodeKey(filename)
}

// updateRecord applies fn to the file's record under CAS, creating the
// record when absent and retrying on revision conflicts.
func (s *NATSStore) updateRecord(ctx context.Context, filename string, fn func(*Record)) error {
	err := retry.Do(ctx, s.casPolicy, func() error {
		rec := Record{Filename: filename, Status: StatusUnknown}
		var revision uint64

		entry, err := s.bucket.Get(ctx, s.fileKey(filename))
		switch {
		case err == nil:
			if uerr := json.Unmarshal(entry.Value(), &rec); uerr != nil {
				return retry.NonRetryable(fmt.Errorf("unmarshal record %s: %w", filename, uerr))
			}
			revision = entry.Revision()
		case isKVNotFound(err):
			// first write for this file
		default:
			return fmt.Errorf("kv get %s: %w", filename, err)
		}

		fn(&rec)
		rec.Filename = filename
		rec.UpdatedAt = time.Now().UTC()

		value, err := json.Marshal(rec)
		if err != nil {
			return retry.NonRetryable(fmt.Errorf("marshal record %s: %w", filename, err))
		}

		if revision == 0 {
			_, err = s.bucket.Create(ctx, s.fileKey(filename), value)
		} else {
			_, err = s.bucket.Update(ctx, s.fileKey(filename), value, revision)
		}
		if err != nil {
			if isKVConflict(err) {
				s.logger.Debug("kv record conflict, retrying", "file", filename)
				return err
			}
			return fmt.Errorf("kv write %s: %w", filename, err)
		}
		return nil
	})
	if err != nil {
		return errors.WrapTransient(err, "NATSStore", "updateRecord", "cas update")
	}
	return nil
}

// SetStatus records the file's status, merging any extra fields.
func (s *NATSStore) SetStatus(ctx context.Context, filename, status string, extra map[string]string) error {
	return s.updateRecord(ctx, filename, func(rec *Record) {
		rec.Status = status
		for k, v := range extra {
			if rec.Extra == nil {
				rec.Extra = make(map[string]string)
			}
			rec.Extra[k] = v
		}
	})
}

// SetError sets the status to error and attaches error details.
func (s *NATSStore) SetError(ctx context.Context, filename, errDetails string) error {
	return s.updateRecord(ctx, filename, func(rec *Record) {
		rec.Status = StatusError
		rec.LastError = errDetails
	})
}

// ClearError resets the file to queued, drops the error and resets all
// stage retry counters.
func (s *NATSStore) ClearError(ctx context.Context, filename string) error {
	if err := s.updateRecord(ctx, filename, func(rec *Record) {
		rec.Status = StatusQueued
		rec.LastError = ""
	}); err != nil {
		return err
	}

	for _, stage := range s.stages {
		if err := s.ResetRetry(ctx, stage, filename); err != nil {
			return err
		}
	}
	return nil
}

// Get returns the file's record; untracked files come back as unknown.
func (s *NATSStore) Get(ctx context.Context, filename string) (Record, error) {
	entry, err := s.bucket.Get(ctx, s.fileKey(filename))
	if err != nil {
		if isKVNotFound(err) {
			return Record{Filename: filename, Status: StatusUnknown}, nil
		}
		return Record{}, errors.WrapTransient(fmt.Errorf("kv get %s: %w", filename, err), "NATSStore", "Get", "read")
	}

	var rec Record
	if err := json.Unmarshal(entry.Value(), &rec); err != nil {
		return Record{}, errors.WrapInvalid(fmt.Errorf("record %s: %w", filename, err), "NATSStore", "Get", "unmarshal")
	}
	return rec, nil
}

// ListByStatus walks all file records and returns the matching filenames.
// Unreadable records are skipped so one bad entry cannot hide the rest.
func (s *NATSStore) ListByStatus(ctx context.Context, status string) ([]string, error) {
	keys, err := s.bucket.Keys(ctx)
	if err != nil {
		if stderrors.Is(err, jetstream.ErrNoKeysFound) {
			return nil, nil
		}
		return nil, errors.WrapTransient(fmt.Errorf("kv keys: %w", err), "NATSStore", "ListByStatus", "list")
	}

	var files []string
	for _, key := range keys {
		if !strings.HasPrefix(key, "file.") {
			continue
		}
		entry, err := s.bucket.Get(ctx, key)
		if err != nil {
			s.logger.Warn("skipping unreadable status key", "key", key, "error", err)
			continue
		}
		var rec Record
		if err := json.Unmarshal(entry.Value(), &rec); err != nil {
			s.logger.Warn("skipping corrupt status record", "key", key, "error", err)
			continue
		}
		if rec.Status == status {
			files = append(files, rec.Filename)
		}
	}
	return files, nil
}

// IncrementRetry bumps and returns the retry counter under CAS.
func (s *NATSStore) IncrementRetry(ctx context.Context, stage, filename string) (int, error) {
	key := s.retryKey(stage, filename)

	count, err := retry.DoValue(ctx, s.casPolicy, func() (int, error) {
		current := 0
		var revision uint64

		entry, err := s.bucket.Get(ctx, key)
		switch {
		case err == nil:
			parsed, perr := strconv.Atoi(string(entry.Value()))
			if perr != nil {
				return 0, retry.NonRetryable(fmt.Errorf("counter %s: %w", key, perr))
			}
			current = parsed
			revision = entry.Revision()
		case isKVNotFound(err):
		default:
			return 0, fmt.Errorf("kv get %s: %w", key, err)
		}

		next := current + 1
		value := []byte(strconv.Itoa(next))

		if revision == 0 {
			_, err = s.bucket.Create(ctx, key, value)
		} else {
			_, err = s.bucket.Update(ctx, key, value, revision)
		}
		if err != nil {
			return 0, err
		}
		return next, nil
	})
	if err != nil {
		return 0, errors.WrapTransient(err, "NATSStore", "IncrementRetry", "cas increment")
	}
	return count, nil
}

// RetryCount returns the current retry counter, 0 when unset.
func (s *NATSStore) RetryCount(ctx context.Context, stage, filename string) (int, error) {
	entry, err := s.bucket.Get(ctx, s.retryKey(stage, filename))
	if err != nil {
		if isKVNotFound(err) {
			return 0, nil
		}
		return 0, errors.WrapTransient(fmt.Errorf("kv get: %w", err), "NATSStore", "RetryCount", "read")
	}

	count, err := strconv.Atoi(string(entry.Value()))
	if err != nil {
		return 0, errors.WrapInvalid(fmt.Errorf("counter %q: %w", entry.Value(), err), "NATSStore", "RetryCount", "parse")
	}
	return count, nil
}

// ResetRetry clears the retry counter for a stage/file.
func (s *NATSStore) ResetRetry(ctx context.Context, stage, filename string) error {
	err := s.bucket.Delete(ctx, s.retryKey(stage, filename))
	if err != nil && !isKVNotFound(err) {
		return errors.WrapTransient(fmt.Errorf("kv delete: %w", err), "NATSStore", "ResetRetry", "delete")
	}
	return nil
}

// Ping verifies the bucket is reachable.
func (s *NATSStore) Ping(ctx context.Context) error {
	if _, err := s.bucket.Status(ctx); err != nil {
		return errors.WrapTransient(fmt.Errorf("kv status: %w", err), "NATSStore", "Ping", "status")
	}
	return nil
}

// Close is a no-op; the NATS connection belongs to the caller.
func (s *NATSStore) Close() error {
	return nil
}

// isKVNotFound checks if error indicates key not found
func isKVNotFound(err error) bool {
	if err == nil {
		return false
	}
	if stderrors.Is(err, jetstream.ErrKeyNotFound) {
		return true
	}
	errMsg := err.Error()
	return strings.Contains(errMsg, "key not found") ||
		strings.Contains(errMsg, "10037")
}

// isKVConflict checks if error indicates a conflict (key exists or wrong revision)
func isKVConflict(err error) bool {
	if err == nil {
		return false
	}
	if stderrors.Is(err, jetstream.ErrKeyExists) {
		return true
	}
	errMsg := err.Error()
	return strings.Contains(errMsg, "wrong last sequence") ||
		strings.Contains(errMsg, "10071") ||
		strings.Contains(errMsg, "key exists") ||
		strings.Contains(errMsg, "10058")
}

var _ Store = (*NATSStore)(nil)
