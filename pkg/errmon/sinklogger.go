// sinklogger.go provides a Logger that scrubs, fingerprints and forwards
// log lines to a Sink.

package errmon

import (
	"context"
	"fmt"
	"maps"
	"time"

	"github.com/google/uuid"
)

// SinkLoggerOption configures a SinkLogger.
type SinkLoggerOption func(*sinkLoggerConfig)

type sinkLoggerConfig struct {
	sink         Sink
	scrubber     *Scrubber
	onWriteError func(error)
}

// WithSink sets the sink for the logger.
func WithSink(sink Sink) SinkLoggerOption {
	return func(c *sinkLoggerConfig) {
		c.sink = sink
	}
}

// WithScrubber configures the logger with a custom scrubber configuration.
func WithScrubber(cfg ScrubberConfig) SinkLoggerOption {
	return func(c *sinkLoggerConfig) {
		c.scrubber = NewScrubber(cfg)
	}
}

// WithDefaultScrubbing enables scrubbing with production-safe defaults.
func WithDefaultScrubbing() SinkLoggerOption {
	return func(c *sinkLoggerConfig) {
		c.scrubber = NewScrubber(DefaultScrubberConfig())
	}
}

// WithOnWriteError sets a callback for sink write failures. Failures are
// otherwise dropped: logging never fails the caller.
func WithOnWriteError(fn func(error)) SinkLoggerOption {
	return func(c *sinkLoggerConfig) {
		c.onWriteError = fn
	}
}

// SinkLogger implements Logger on top of a Sink.
type SinkLogger struct {
	sink         Sink
	scrubber     *Scrubber
	onWriteError func(error)
}

// NewSinkLogger creates a SinkLogger. Without WithSink records are discarded.
func NewSinkLogger(opts ...SinkLoggerOption) *SinkLogger {
	cfg := &sinkLoggerConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.sink == nil {
		cfg.sink = discardSink{}
	}
	return &SinkLogger{
		sink:         cfg.sink,
		scrubber:     cfg.scrubber,
		onWriteError: cfg.onWriteError,
	}
}

// Info implements Logger.
func (l *SinkLogger) Info(message, operation string, fields map[string]any) {
	l.write(Record{
		Level:     LevelInfo,
		Message:   message,
		Operation: operation,
		Fields:    maps.Clone(fields),
	})
}

// Error implements Logger.
func (l *SinkLogger) Error(message, operation string, err error, stackTrace string, fields map[string]any) {
	r := Record{
		Level:      LevelError,
		Message:    message,
		Operation:  operation,
		StackTrace: stackTrace,
		Fields:     maps.Clone(fields),
	}
	if err != nil {
		r.Error = err.Error()
		r.ErrorType = fmt.Sprintf("%T", err)
	}
	l.write(r)
}

// Flush delegates to the sink.
func (l *SinkLogger) Flush(ctx context.Context) error {
	return l.sink.Flush(ctx)
}

// Close delegates to the sink.
func (l *SinkLogger) Close() error {
	return l.sink.Close()
}

func (l *SinkLogger) write(r Record) {
	r.EventID = uuid.NewString()
	r.Timestamp = time.Now()

	if id, ok := r.Fields[FieldContextID].(uint64); ok {
		r.ContextID = &id
	}
	if l.scrubber != nil {
		r = l.scrubber.ScrubRecord(r)
	}
	r.Fingerprint = Fingerprint(r)

	if err := l.sink.Write(context.Background(), r); err != nil && l.onWriteError != nil {
		l.onWriteError(err)
	}
}

// discardSink drops every record.
type discardSink struct{}

func (discardSink) Write(context.Context, Record) error { return nil }

func (discardSink) Flush(context.Context) error { return nil }

func (discardSink) Close() error { return nil }
