// Package status tracks per-file pipeline state and retry counters in a
// shared key-value store.
//
// # Overview
//
// Every karaoke-mvp service reports where a file is in the pipeline
// (queued, processing, done, error) and how often each stage has retried
// it. The Store interface abstracts the backend; two implementations are
// provided:
//
//   - RedisStore: one Redis hash per file at "file:<name>" with
//     status/error/updated_at fields, counters at
//     "<stage>_retries:<name>". This is the layout the original services
//     share, so dashboards and redis-cli habits keep working.
//   - NATSStore: one JSON Record per file in a JetStream KV bucket, with
//     compare-and-set writes retried on revision conflicts. For
//     deployments that already run NATS and want one less backend.
//
// # Usage
//
//	store, err := status.NewRedisStore(ctx, status.RedisConfig{Addr: "redis:6379"})
//	if err != nil {
//	    return err
//	}
//	defer store.Close()
//
//	_ = store.SetStatus(ctx, "track.mp3", status.StatusProcessing, nil)
//	n, _ := store.IncrementRetry(ctx, "splitter", "track.mp3")
//
// Untracked files read back with StatusUnknown rather than an error;
// callers render them directly without a found/not-found branch.
//
// # Error semantics
//
// Backend failures are wrapped as transient via the errors package, so
// callers can feed them straight into a retry policy. Corrupt data
// (unparseable counters, bad JSON) wraps as invalid and is never retried.
package status
