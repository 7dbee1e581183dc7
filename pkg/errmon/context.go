// context.go propagates request ids and cxdb context ids through
// context.Context so recorded errors can be correlated.

package errmon

import "context"

// Field names added to the per-event log line.
const (
	FieldRequestID = "request_id"
	FieldContextID = "cxdb_context_id"
)

type requestIDKey struct{}
type contextIDKey struct{}

// contextIDSet is used to distinguish "zero value" from "not set"
type contextIDSet struct {
	id uint64
}

// WithRequestID returns a context carrying the host's request id.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// RequestIDFromContext extracts the request id. Returns false if unset or empty.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	id, ok := ctx.Value(requestIDKey{}).(string)
	return id, ok && id != ""
}

// WithContextID returns a context carrying a cxdb context id. Records logged
// for errors recorded under this context are appended to it by the cxdb sink.
func WithContextID(ctx context.Context, contextID uint64) context.Context {
	return context.WithValue(ctx, contextIDKey{}, contextIDSet{id: contextID})
}

// ContextIDFromContext extracts the cxdb context id. Returns 0 and false if not set.
func ContextIDFromContext(ctx context.Context) (uint64, bool) {
	if ctx == nil {
		return 0, false
	}
	set, ok := ctx.Value(contextIDKey{}).(contextIDSet)
	if !ok {
		return 0, false
	}
	return set.id, true
}
