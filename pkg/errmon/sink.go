// sink.go defines the Sink interface for log record destinations.

package errmon

import "context"

// Sink is the destination for log records written by SinkLogger.
// Implementations must be safe for concurrent use.
type Sink interface {
	// Write persists a record. Called after scrubbing and fingerprinting.
	Write(ctx context.Context, record Record) error

	// Flush ensures any buffered records are persisted.
	// For synchronous sinks, this may be a no-op.
	Flush(ctx context.Context) error

	// Close releases resources held by the sink.
	// After Close is called, Write and Flush should return errors.
	Close() error
}
