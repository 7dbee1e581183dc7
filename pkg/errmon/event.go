// event.go defines the immutable error event recorded by the monitor.

package errmon

import (
	"maps"
	"time"

	"github.com/google/uuid"
)

// Category is the classification bucket of an error.
type Category string

const (
	CategoryNetwork        Category = "network"
	CategoryAuthentication Category = "authentication"
	CategoryAIService      Category = "ai_service"
	CategoryValidation     Category = "validation"
	CategoryPermission     Category = "permission"
	CategoryCircuitBreaker Category = "circuit_breaker"
	CategoryStorage        Category = "storage"
	CategoryFirebase       Category = "firebase"
	CategoryUnknown        Category = "unknown"
)

// Categories lists every category in declaration order. Frequency analysis
// breaks ties using this order.
var Categories = []Category{
	CategoryNetwork,
	CategoryAuthentication,
	CategoryAIService,
	CategoryValidation,
	CategoryPermission,
	CategoryCircuitBreaker,
	CategoryStorage,
	CategoryFirebase,
	CategoryUnknown,
}

// Severity indicates how badly an error affects the host.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
	SeverityUnknown  Severity = "unknown"
)

// Severities lists every severity in declaration order.
var Severities = []Severity{
	SeverityLow,
	SeverityMedium,
	SeverityHigh,
	SeverityCritical,
	SeverityUnknown,
}

// ErrorEvent is one recorded error together with its classification.
// Fields are fixed at construction; the With* methods return modified copies.
type ErrorEvent struct {
	id          string
	err         error
	stackTrace  string
	context     string
	timestamp   time.Time
	metadata    map[string]any
	category    Category
	severity    Severity
	recoverable bool
	errorKey    string
}

// NewErrorEvent classifies err and builds an event stamped with at.
// metadata is copied.
func NewErrorEvent(err error, stackTrace, context string, metadata map[string]any, at time.Time) ErrorEvent {
	c := Classify(err)
	return ErrorEvent{
		id:          uuid.NewString(),
		err:         err,
		stackTrace:  stackTrace,
		context:     context,
		timestamp:   at,
		metadata:    maps.Clone(metadata),
		category:    c.Category,
		severity:    c.Severity,
		recoverable: c.UserRecoverable,
		errorKey:    c.ErrorKey,
	}
}

func (e ErrorEvent) ID() string              { return e.id }
func (e ErrorEvent) Err() error              { return e.err }
func (e ErrorEvent) StackTrace() string      { return e.stackTrace }
func (e ErrorEvent) Context() string         { return e.context }
func (e ErrorEvent) Timestamp() time.Time    { return e.timestamp }
func (e ErrorEvent) Category() Category      { return e.category }
func (e ErrorEvent) Severity() Severity      { return e.severity }
func (e ErrorEvent) IsUserRecoverable() bool { return e.recoverable }
func (e ErrorEvent) ErrorKey() string        { return e.errorKey }

// Metadata returns a copy of the caller-supplied metadata.
func (e ErrorEvent) Metadata() map[string]any {
	return maps.Clone(e.metadata)
}

// WithMetadata returns a copy of e whose metadata is replaced by md.
func (e ErrorEvent) WithMetadata(md map[string]any) ErrorEvent {
	e.metadata = maps.Clone(md)
	return e
}

// WithTimestamp returns a copy of e stamped with at.
func (e ErrorEvent) WithTimestamp(at time.Time) ErrorEvent {
	e.timestamp = at
	return e
}

// WithContext returns a copy of e with a different context string.
func (e ErrorEvent) WithContext(context string) ErrorEvent {
	e.context = context
	return e
}
