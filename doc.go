// Package karaokeshared is the shared utility library for the karaoke-mvp
// media pipeline services (metadata, splitter, packager, organizer).
//
// # Packages
//
//   - retry: policy-driven retry with exponential backoff and cancellation
//   - errors: error classification (transient / invalid / fatal) and wrapping
//   - status: per-file pipeline status and retry counters (Redis or NATS KV)
//   - notify: Telegram, Slack and email notifications
//   - pipeline: stage runner tying retry, status and notifications together
//   - sanitize: filename and key sanitation
//   - health: health status values and HTTP handler
//   - metric: Prometheus collectors for pipeline instrumentation
//   - config: environment-first configuration shared by all services
//
// # Typical usage
//
// A pipeline service wires the pieces once at startup:
//
//	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
//	logger := cfg.NewLogger(os.Stdout)
//	store, err := status.NewRedisStore(ctx, cfg.Redis)
//	notifiers := notify.FromConfig(cfg.Notify, logger)
//	runner := pipeline.NewRunner(store,
//	    pipeline.WithNotifier(notifiers),
//	    pipeline.WithPolicy(cfg.Retry.Policy()),
//	    pipeline.WithLogger(logger),
//	)
//
// and then runs each processing step through the runner:
//
//	err = runner.Run(ctx, "splitter", filename, func(ctx context.Context) error {
//	    return splitStems(ctx, filename)
//	})
//
// Every package is also usable on its own; nothing in this module keeps
// process-global state.
package karaokeshared
