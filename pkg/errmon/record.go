// record.go defines the log record handed to sinks.

package errmon

import "time"

// Level is the log level of a Record.
type Level string

const (
	LevelInfo  Level = "info"
	LevelError Level = "error"
)

// Record is one log line produced by a Logger call, as seen by a Sink.
// SinkLogger populates every field before the sink sees it.
type Record struct {
	// EventID is a unique identifier for this record (UUID).
	EventID string

	// Timestamp is when the log call was made.
	Timestamp time.Time

	// Fingerprint groups records with the same operation, error type and
	// leading stack frames.
	Fingerprint string

	Level     Level
	Message   string
	Operation string

	// Error is the scrubbed error text, ErrorType its Go type.
	Error     string
	ErrorType string

	// StackTrace is the optional scrubbed stack trace.
	StackTrace string

	// ContextID links the record to an existing cxdb context.
	// Uses pointer to distinguish "not set" from "zero value".
	ContextID *uint64

	// Fields contains scrubbed structured context.
	Fields map[string]any
}
