// Package async provides a sink wrapper with a bounded queue so that logging
// from the record path never blocks on a slow destination. Records are
// written in the background; the oldest record is dropped when the queue is
// full.
package async

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/strongdm/ai-errmon/pkg/errmon"
)

// ErrClosed is returned by Write after Close.
var ErrClosed = errors.New("async sink is closed")

// AsyncSinkOption configures the async sink.
type AsyncSinkOption func(*asyncSinkConfig)

type asyncSinkConfig struct {
	queueSize    int
	pollInterval time.Duration
	onDropped    func(count int)
	onError      func(error)
}

// WithQueueSize sets the maximum number of queued records (default: 1000).
func WithQueueSize(size int) AsyncSinkOption {
	return func(c *asyncSinkConfig) {
		if size > 0 {
			c.queueSize = size
		}
	}
}

// WithPollInterval sets how often Flush checks for a drained queue
// (default: 10ms).
func WithPollInterval(d time.Duration) AsyncSinkOption {
	return func(c *asyncSinkConfig) {
		if d > 0 {
			c.pollInterval = d
		}
	}
}

// WithOnDropped sets a callback invoked when records are dropped due to
// queue overflow.
func WithOnDropped(fn func(count int)) AsyncSinkOption {
	return func(c *asyncSinkConfig) {
		c.onDropped = fn
	}
}

// WithOnError sets a callback for inner sink write failures.
func WithOnError(fn func(error)) AsyncSinkOption {
	return func(c *asyncSinkConfig) {
		c.onError = fn
	}
}

type asyncSink struct {
	inner        errmon.Sink
	queue        chan errmon.Record
	done         chan struct{}
	pollInterval time.Duration
	onDropped    func(count int)
	onError      func(error)

	// pending counts records enqueued but not yet handed to inner.
	pending atomic.Int64

	closeOnce sync.Once
	closeMu   sync.RWMutex
	closed    bool
	wg        sync.WaitGroup
}

// NewAsyncSink wraps inner with a bounded queue. Write returns immediately.
func NewAsyncSink(inner errmon.Sink, opts ...AsyncSinkOption) errmon.Sink {
	cfg := &asyncSinkConfig{
		queueSize:    1000,
		pollInterval: 10 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	s := &asyncSink{
		inner:        inner,
		queue:        make(chan errmon.Record, cfg.queueSize),
		done:         make(chan struct{}),
		pollInterval: cfg.pollInterval,
		onDropped:    cfg.onDropped,
		onError:      cfg.onError,
	}

	s.wg.Add(1)
	go s.processLoop()

	return s
}

func (s *asyncSink) processLoop() {
	defer s.wg.Done()
	for {
		select {
		case r := <-s.queue:
			s.deliver(r)
		case <-s.done:
			for {
				select {
				case r := <-s.queue:
					s.deliver(r)
				default:
					return
				}
			}
		}
	}
}

func (s *asyncSink) deliver(r errmon.Record) {
	defer s.pending.Add(-1)
	if err := s.inner.Write(context.Background(), r); err != nil && s.onError != nil {
		s.onError(err)
	}
}

// Write enqueues a record. If the queue is full, the oldest record is
// dropped to make room.
func (s *asyncSink) Write(ctx context.Context, r errmon.Record) error {
	s.closeMu.RLock()
	defer s.closeMu.RUnlock()
	if s.closed {
		return ErrClosed
	}

	s.pending.Add(1)
	select {
	case s.queue <- r:
		return nil
	default:
	}

	select {
	case <-s.queue:
		s.dropped()
	default:
		// drained by the processor in the meantime
	}
	select {
	case s.queue <- r:
	default:
		s.dropped()
	}
	return nil
}

func (s *asyncSink) dropped() {
	s.pending.Add(-1)
	if s.onDropped != nil {
		s.onDropped(1)
	}
}

// Flush blocks until every queued record has been handed to the inner sink,
// then flushes it.
func (s *asyncSink) Flush(ctx context.Context) error {
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for s.pending.Load() > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return s.inner.Flush(ctx)
}

// Close drains the queue, stops the processor and closes the inner sink.
func (s *asyncSink) Close() error {
	s.closeOnce.Do(func() {
		s.closeMu.Lock()
		s.closed = true
		s.closeMu.Unlock()

		close(s.done)
		s.wg.Wait()
	})

	return s.inner.Close()
}
