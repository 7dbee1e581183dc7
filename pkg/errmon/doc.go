// Package errmon provides error classification, alerting and health
// monitoring for application services.
//
// errmon turns raw errors into classified events, keeps a bounded history
// of them, raises de-duplicated alerts when error patterns cross configured
// thresholds, and derives a 0-100 health score from recent activity.
//
// # Core Components
//
// The library is organized around these concepts:
//
//   - ErrorEvent: An immutable record of one failure with its classification
//   - Classify: Pure mapping from an error to category, severity, recoverability and key
//   - AlertManager: Per-type alert activation with cooldown-based suppression
//   - HealthAnalyzer: Stateless scoring and pattern analysis over an event window
//   - Monitor: The facade that records errors and answers statistics and health queries
//   - Logger: Destination for structured log lines (zaplog, SinkLogger)
//
// # Quick Start
//
//	logger := errmon.NewSinkLogger(
//	    errmon.WithSink(stderr.NewStderrSink()),
//	    errmon.WithDefaultScrubbing(),
//	)
//	monitor := errmon.New(errmon.ProductionConfig(), errmon.WithLogger(logger))
//	if err := monitor.Initialize(); err != nil {
//	    return err
//	}
//	defer monitor.Dispose()
//
//	_ = monitor.RecordError(ctx, err, "upload_document")
//
// # Design Principles
//
//   - Recording never fails the caller: internal failures are logged and swallowed
//   - Alerts fire at most once per type until the cooldown elapses or they are reset
//   - Log output is produced outside of locks
package errmon
