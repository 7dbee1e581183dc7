package errmon

import (
	"strings"
	"sync"
	"time"
)

type logEntry struct {
	level      Level
	message    string
	operation  string
	err        error
	stackTrace string
	fields     map[string]any
}

// recordingLogger captures every log line for assertions.
type recordingLogger struct {
	mu      sync.Mutex
	entries []logEntry
}

func (l *recordingLogger) Info(message, operation string, fields map[string]any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, logEntry{level: LevelInfo, message: message, operation: operation, fields: fields})
}

func (l *recordingLogger) Error(message, operation string, err error, stackTrace string, fields map[string]any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, logEntry{
		level:      LevelError,
		message:    message,
		operation:  operation,
		err:        err,
		stackTrace: stackTrace,
		fields:     fields,
	})
}

func (l *recordingLogger) all() []logEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]logEntry(nil), l.entries...)
}

func (l *recordingLogger) countMessages(substr string) int {
	n := 0
	for _, e := range l.all() {
		if strings.Contains(e.message, substr) {
			n++
		}
	}
	return n
}

func (l *recordingLogger) byOperation(op string) []logEntry {
	var out []logEntry
	for _, e := range l.all() {
		if e.operation == op {
			out = append(out, e)
		}
	}
	return out
}

// panickingLogger panics on Error calls tagged with the given operation.
type panickingLogger struct {
	recordingLogger
	panicOn string
}

func (l *panickingLogger) Error(message, operation string, err error, stackTrace string, fields map[string]any) {
	if operation == l.panicOn {
		panic("logger exploded")
	}
	l.recordingLogger.Error(message, operation, err, stackTrace, fields)
}

// fakeClock is a manually advanced clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func eventAt(err error, at time.Time) ErrorEvent {
	return NewErrorEvent(err, "", "test", nil, at)
}

func eventsOf(errs ...error) []ErrorEvent {
	at := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	out := make([]ErrorEvent, len(errs))
	for i, err := range errs {
		out[i] = eventAt(err, at.Add(time.Duration(i)*time.Second))
	}
	return out
}

func repeat(err error, n int) []error {
	out := make([]error, n)
	for i := range out {
		out[i] = err
	}
	return out
}
