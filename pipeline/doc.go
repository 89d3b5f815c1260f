// Package pipeline glues the library together: it runs one stage
// function for one file under a retry policy while keeping the status
// store, per-stage retry counters and alerting consistent.
//
// # Lifecycle
//
// Run marks the file processing, then attempts the stage function under
// the configured policy. Each failed attempt increments the stage's
// retry counter and writes an attempt-tagged error status, so operators
// watching the store see progress in real time. Success resets the
// counter. Exhaustion sends a "Pipeline Error [<stage>]" alert and
// returns the exhaustion error to the caller.
//
// # Usage
//
//	runner := pipeline.NewRunner(store,
//	    pipeline.WithNotifier(multi),
//	    pipeline.WithMetrics(metrics),
//	)
//	err := runner.Run(ctx, "splitter", filename, func(ctx context.Context) error {
//	    return splitTrack(ctx, filename)
//	})
//
// By default only transient errors are retried; invalid and fatal
// errors propagate after the first attempt. Pass a custom retry.Policy
// through WithPolicy to change attempts, backoff or classification.
package pipeline
