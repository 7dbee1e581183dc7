package async

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strongdm/ai-errmon/pkg/errmon"
)

// recordingSink captures records and can block writes until released.
type recordingSink struct {
	mu       sync.Mutex
	records  []errmon.Record
	gate     chan struct{}
	writeErr error
	flushed  atomic.Int32
	closed   atomic.Int32
}

func (s *recordingSink) Write(ctx context.Context, r errmon.Record) error {
	if s.gate != nil {
		<-s.gate
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, r)
	return s.writeErr
}

func (s *recordingSink) Flush(ctx context.Context) error {
	s.flushed.Add(1)
	return nil
}

func (s *recordingSink) Close() error {
	s.closed.Add(1)
	return nil
}

func (s *recordingSink) messages() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.records))
	for i, r := range s.records {
		out[i] = r.Message
	}
	return out
}

func TestAsyncSink_ImplementsSinkInterface(t *testing.T) {
	s := NewAsyncSink(&recordingSink{})
	defer s.Close()
	var _ errmon.Sink = s
}

func TestAsyncSink_FlushDeliversInOrder(t *testing.T) {
	inner := &recordingSink{}
	s := NewAsyncSink(inner)
	defer s.Close()

	for _, msg := range []string{"a", "b", "c"} {
		require.NoError(t, s.Write(context.Background(), errmon.Record{Message: msg}))
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Flush(ctx))

	assert.Equal(t, []string{"a", "b", "c"}, inner.messages())
	assert.Equal(t, int32(1), inner.flushed.Load())
}

func TestAsyncSink_DropsOldestWhenFull(t *testing.T) {
	inner := &recordingSink{gate: make(chan struct{})}
	var dropped atomic.Int32
	s := NewAsyncSink(inner, WithQueueSize(2), WithOnDropped(func(n int) {
		dropped.Add(int32(n))
	}))

	// The first record is picked up by the processor and blocks on the gate.
	require.NoError(t, s.Write(context.Background(), errmon.Record{Message: "first"}))
	require.Eventually(t, func() bool {
		return len(s.(*asyncSink).queue) == 0
	}, time.Second, time.Millisecond)

	for _, msg := range []string{"a", "b", "c", "d"} {
		require.NoError(t, s.Write(context.Background(), errmon.Record{Message: msg}))
	}
	assert.Equal(t, int32(2), dropped.Load())

	close(inner.gate)
	require.NoError(t, s.Close())
	assert.Equal(t, []string{"first", "c", "d"}, inner.messages())
}

func TestAsyncSink_FlushRespectsContext(t *testing.T) {
	inner := &recordingSink{gate: make(chan struct{})}
	s := NewAsyncSink(inner)
	require.NoError(t, s.Write(context.Background(), errmon.Record{Message: "stuck"}))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, s.Flush(ctx), context.DeadlineExceeded)

	close(inner.gate)
	require.NoError(t, s.Close())
}

func TestAsyncSink_ReportsInnerErrors(t *testing.T) {
	inner := &recordingSink{writeErr: errors.New("disk full")}
	var got atomic.Value
	s := NewAsyncSink(inner, WithOnError(func(err error) { got.Store(err) }))
	defer s.Close()

	require.NoError(t, s.Write(context.Background(), errmon.Record{Message: "x"}))
	require.NoError(t, s.Flush(context.Background()))

	err, _ := got.Load().(error)
	require.Error(t, err)
	assert.Equal(t, "disk full", err.Error())
}

func TestAsyncSink_CloseDrainsAndRejectsWrites(t *testing.T) {
	inner := &recordingSink{}
	s := NewAsyncSink(inner)

	for i := 0; i < 10; i++ {
		require.NoError(t, s.Write(context.Background(), errmon.Record{Message: "m"}))
	}
	require.NoError(t, s.Close())
	assert.Len(t, inner.messages(), 10)
	assert.Equal(t, int32(1), inner.closed.Load())

	assert.ErrorIs(t, s.Write(context.Background(), errmon.Record{}), ErrClosed)

	// Close is idempotent for the queue; the inner sink is closed again.
	require.NoError(t, s.Close())
}
