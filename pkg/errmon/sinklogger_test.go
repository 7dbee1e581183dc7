package errmon

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memorySink keeps every record in memory.
type memorySink struct {
	mu       sync.Mutex
	records  []Record
	writeErr error
	flushes  int
	closed   bool
}

func (s *memorySink) Write(ctx context.Context, r Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, r)
	return s.writeErr
}

func (s *memorySink) Flush(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flushes++
	return nil
}

func (s *memorySink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *memorySink) all() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Record(nil), s.records...)
}

func TestSinkLogger_ImplementsLogger(t *testing.T) {
	var _ Logger = NewSinkLogger()
}

func TestSinkLogger_Info(t *testing.T) {
	sink := &memorySink{}
	l := NewSinkLogger(WithSink(sink))

	fields := map[string]any{"reason": "manual"}
	l.Info("Alert reset: cascading_failure", OpAlertReset, fields)
	fields["reason"] = "mutated"

	records := sink.all()
	require.Len(t, records, 1)
	r := records[0]
	assert.Equal(t, LevelInfo, r.Level)
	assert.Equal(t, OpAlertReset, r.Operation)
	assert.Equal(t, "manual", r.Fields["reason"], "fields are copied")
	assert.NotEmpty(t, r.EventID)
	assert.False(t, r.Timestamp.IsZero())
	assert.Len(t, r.Fingerprint, 32)
	assert.Nil(t, r.ContextID)
}

func TestSinkLogger_Error(t *testing.T) {
	sink := &memorySink{}
	l := NewSinkLogger(WithSink(sink))

	l.Error("Error recorded in fetch: timed out (timeout)", OpErrorMonitoring,
		NewNetworkError("timeout", "timed out"), "main.fetch()",
		map[string]any{FieldContextID: uint64(9)})

	r := sink.all()[0]
	assert.Equal(t, LevelError, r.Level)
	assert.Equal(t, "timed out (timeout)", r.Error)
	assert.Equal(t, "*errmon.DomainError", r.ErrorType)
	assert.Equal(t, "main.fetch()", r.StackTrace)
	require.NotNil(t, r.ContextID)
	assert.Equal(t, uint64(9), *r.ContextID)
}

func TestSinkLogger_UniqueEventIDs(t *testing.T) {
	sink := &memorySink{}
	l := NewSinkLogger(WithSink(sink))
	l.Info("a", "op", nil)
	l.Info("b", "op", nil)

	records := sink.all()
	assert.NotEqual(t, records[0].EventID, records[1].EventID)
}

func TestSinkLogger_Scrubbing(t *testing.T) {
	sink := &memorySink{}
	l := NewSinkLogger(WithSink(sink), WithDefaultScrubbing())

	l.Error("login failed for bob@example.com", OpErrorMonitoring,
		errors.New("password=hunter2"), "", map[string]any{"session_token": "abc"})

	r := sink.all()[0]
	assert.NotContains(t, r.Message, "bob@example.com")
	assert.NotContains(t, r.Error, "hunter2")
	assert.Equal(t, redacted, r.Fields["session_token"])
}

func TestSinkLogger_NoScrubbingByDefault(t *testing.T) {
	sink := &memorySink{}
	l := NewSinkLogger(WithSink(sink))
	l.Info("bob@example.com", "op", nil)
	assert.Equal(t, "bob@example.com", sink.all()[0].Message)
}

func TestSinkLogger_WriteErrorsAreReported(t *testing.T) {
	sink := &memorySink{writeErr: errors.New("unavailable")}
	var got error
	l := NewSinkLogger(WithSink(sink), WithOnWriteError(func(err error) { got = err }))

	assert.NotPanics(t, func() { l.Info("x", "op", nil) })
	assert.EqualError(t, got, "unavailable")
}

func TestSinkLogger_FlushAndClose(t *testing.T) {
	sink := &memorySink{}
	l := NewSinkLogger(WithSink(sink))

	require.NoError(t, l.Flush(context.Background()))
	require.NoError(t, l.Close())
	assert.Equal(t, 1, sink.flushes)
	assert.True(t, sink.closed)
}

func TestSinkLogger_WithoutSinkDiscards(t *testing.T) {
	l := NewSinkLogger()
	assert.NotPanics(t, func() {
		l.Info("x", "op", nil)
		l.Error("y", "op", errors.New("e"), "", nil)
	})
	assert.NoError(t, l.Flush(context.Background()))
}
