package status

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/svidal-nlive/karaoke-shared/errors"
)

// redisClient is the subset of *redis.Client this store uses. Kept narrow
// so tests can substitute a fake without a running Redis.
type redisClient interface {
	HSet(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	HGetAll(ctx context.Context, key string) *redis.MapStringStringCmd
	HDel(ctx context.Context, key string, fields ...string) *redis.IntCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Incr(ctx context.Context, key string) *redis.IntCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Scan(ctx context.Context, cursor uint64, match string, count int64) *redis.ScanCmd
	Ping(ctx context.Context) *redis.StatusCmd
	Close() error
}

// RedisConfig configures the Redis status backend.
type RedisConfig struct {
	Addr         string        `yaml:"addr" json:"addr"`
	Password     string        `yaml:"password" json:"password"`
	DB           int           `yaml:"db" json:"db"`
	KeyPrefix    string        `yaml:"key_prefix" json:"key_prefix"`
	DialTimeout  time.Duration `yaml:"dial_timeout" json:"dial_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout" json:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" json:"write_timeout"`
	PoolSize     int           `yaml:"pool_size" json:"pool_size"`
}

// RedisStore implements Store on top of a Redis hash per file
// ("file:<name>") plus plain counters ("<stage>_retries:<name>"), the key
// layout the original services already share.
type RedisStore struct {
	client redisClient
	prefix string
	stages []string
	logger *slog.Logger
}

// RedisOption customizes a RedisStore.
type RedisOption func(*RedisStore)

// WithStages overrides the stages whose counters ClearError resets.
func WithStages(stages []string) RedisOption {
	return func(s *RedisStore) {
		if len(stages) > 0 {
			s.stages = stages
		}
	}
}

// WithRedisLogger sets the structured logger.
func WithRedisLogger(logger *slog.Logger) RedisOption {
	return func(s *RedisStore) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(ctx context.Context, cfg RedisConfig, opts ...RedisOption) (*RedisStore, error) {
	if cfg.Addr == "" {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "RedisStore", "New", "addr required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		PoolSize:     cfg.PoolSize,
	})

	store := newRedisStore(client, cfg.KeyPrefix, opts...)
	if err := store.Ping(ctx); err != nil {
		_ = client.Close()
		return nil, err
	}
	return store, nil
}

// NewRedisStoreWithClient wraps an existing client. Used by tests and by
// services that share one connection pool across subsystems.
func NewRedisStoreWithClient(client *redis.Client, keyPrefix string, opts ...RedisOption) *RedisStore {
	return newRedisStore(client, keyPrefix, opts...)
}

func newRedisStore(client redisClient, keyPrefix string, opts ...RedisOption) *RedisStore {
	store := &RedisStore{
		client: client,
		prefix: keyPrefix,
		stages: DefaultStages,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

func (s *RedisStore) fileKey(filename string) string {
	return s.prefix + "file:" + filename
}

func (s *RedisStore) retryKey(stage, filename string) string {
	return s.prefix + stage + "_retries:" + filename
}

// SetStatus records the file's status, merging any extra fields.
func (s *RedisStore) SetStatus(ctx context.Context, filename, status string, extra map[string]string) error {
	fields := map[string]interface{}{
		"status":     status,
		"updated_at": time.Now().UTC().Format(time.RFC3339),
	}
	for k, v := range extra {
		fields[k] = v
	}

	if err := s.client.HSet(ctx, s.fileKey(filename), fields).Err(); err != nil {
		return errors.WrapTransient(err, "RedisStore", "SetStatus", "hset")
	}
	return nil
}

// SetError sets the status to error and attaches error details.
func (s *RedisStore) SetError(ctx context.Context, filename, errDetails string) error {
	fields := map[string]interface{}{
		"status":     StatusError,
		"error":      errDetails,
		"updated_at": time.Now().UTC().Format(time.RFC3339),
	}
	if err := s.client.HSet(ctx, s.fileKey(filename), fields).Err(); err != nil {
		return errors.WrapTransient(err, "RedisStore", "SetError", "hset")
	}
	return nil
}

// ClearError resets the file to queued, drops the error field and resets
// all stage retry counters.
func (s *RedisStore) ClearError(ctx context.Context, filename string) error {
	key := s.fileKey(filename)

	fields := map[string]interface{}{
		"status":     StatusQueued,
		"updated_at": time.Now().UTC().Format(time.RFC3339),
	}
	if err := s.client.HSet(ctx, key, fields).Err(); err != nil {
		return errors.WrapTransient(err, "RedisStore", "ClearError", "hset")
	}

	counterKeys := make([]string, 0, len(s.stages))
	for _, stage := range s.stages {
		counterKeys = append(counterKeys, s.retryKey(stage, filename))
	}
	if len(counterKeys) > 0 {
		if err := s.client.Del(ctx, counterKeys...).Err(); err != nil {
			return errors.WrapTransient(err, "RedisStore", "ClearError", "counter delete")
		}
	}

	if err := s.client.HDel(ctx, key, "error").Err(); err != nil {
		return errors.WrapTransient(err, "RedisStore", "ClearError", "hdel")
	}
	return nil
}

// Get returns the file's record; untracked files come back as unknown.
func (s *RedisStore) Get(ctx context.Context, filename string) (Record, error) {
	data, err := s.client.HGetAll(ctx, s.fileKey(filename)).Result()
	if err != nil {
		return Record{}, errors.WrapTransient(err, "RedisStore", "Get", "hgetall")
	}

	rec := Record{Filename: filename, Status: StatusUnknown}
	if len(data) == 0 {
		return rec, nil
	}

	for field, value := range data {
		switch field {
		case "status":
			rec.Status = value
		case "error":
			rec.LastError = value
		case "updated_at":
			if ts, perr := time.Parse(time.RFC3339, value); perr == nil {
				rec.UpdatedAt = ts
			}
		default:
			if rec.Extra == nil {
				rec.Extra = make(map[string]string)
			}
			rec.Extra[field] = value
		}
	}
	return rec, nil
}

// ListByStatus scans for tracked files in the given status. Individual
// read failures are skipped so one bad key cannot hide the rest.
func (s *RedisStore) ListByStatus(ctx context.Context, status string) ([]string, error) {
	pattern := s.prefix + "file:*"
	var files []string
	var cursor uint64

	for {
		keys, next, err := s.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return nil, errors.WrapTransient(err, "RedisStore", "ListByStatus", "scan")
		}

		for _, key := range keys {
			data, err := s.client.HGetAll(ctx, key).Result()
			if err != nil {
				s.logger.Warn("skipping unreadable status key", "key", key, "error", err)
				continue
			}
			if data["status"] == status {
				files = append(files, key[len(s.prefix)+len("file:"):])
			}
		}

		cursor = next
		if cursor == 0 {
			break
		}
	}
	return files, nil
}

// IncrementRetry bumps and returns the retry counter for a stage/file.
func (s *RedisStore) IncrementRetry(ctx context.Context, stage, filename string) (int, error) {
	count, err := s.client.Incr(ctx, s.retryKey(stage, filename)).Result()
	if err != nil {
		return 0, errors.WrapTransient(err, "RedisStore", "IncrementRetry", "incr")
	}
	return int(count), nil
}

// RetryCount returns the current retry counter, 0 when unset.
func (s *RedisStore) RetryCount(ctx context.Context, stage, filename string) (int, error) {
	val, err := s.client.Get(ctx, s.retryKey(stage, filename)).Result()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, errors.WrapTransient(err, "RedisStore", "RetryCount", "get")
	}

	count, err := strconv.Atoi(val)
	if err != nil {
		return 0, errors.WrapInvalid(fmt.Errorf("counter %q: %w", val, err), "RedisStore", "RetryCount", "parse")
	}
	return count, nil
}

// ResetRetry clears the retry counter for a stage/file.
func (s *RedisStore) ResetRetry(ctx context.Context, stage, filename string) error {
	if err := s.client.Del(ctx, s.retryKey(stage, filename)).Err(); err != nil {
		return errors.WrapTransient(err, "RedisStore", "ResetRetry", "del")
	}
	return nil
}

// Ping verifies connectivity.
func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return errors.WrapTransient(err, "RedisStore", "Ping", "ping")
	}
	return nil
}

// Close releases the connection pool.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

var _ Store = (*RedisStore)(nil)
