// recover.go provides Monitor.Recover for panic recovery in handlers and
// goroutines.

package errmon

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
)

// PanicError wraps a recovered panic value so it can be recorded.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return "panic: " + formatRecovered(e.Value)
}

// Unwrap returns the panic value when it is an error.
func (e *PanicError) Unwrap() error {
	err, _ := e.Value.(error)
	return err
}

// Recover captures a panic, records it under opContext and returns the
// recovered value. It does not re-panic. It must be deferred directly:
//
//	func handler(ctx context.Context) {
//	    defer monitor.Recover(ctx, "upload_handler")
//	    // code that might panic
//	}
//
// Calling it from inside another deferred function does not stop the panic.
func (m *Monitor) Recover(ctx context.Context, opContext string) any {
	r := recover()
	if r == nil {
		return nil
	}

	// Ignore errors so recovery never affects the caller.
	_ = m.RecordError(ctx, &PanicError{Value: r}, opContext,
		WithStackTrace(string(debug.Stack())),
		WithMetadata(map[string]any{"panic": true}),
	)
	return r
}

// IsPanic reports whether err was produced by Recover.
func IsPanic(err error) bool {
	var pe *PanicError
	return errors.As(err, &pe)
}

func formatRecovered(recovered any) string {
	if recovered == nil {
		return "<nil>"
	}
	if err, ok := recovered.(error); ok {
		return err.Error()
	}
	return fmt.Sprintf("%v", recovered)
}
