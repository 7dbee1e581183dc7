// Package multi provides sinks that fan records out to several
// destinations, optionally filtered per destination.
package multi

import (
	"context"
	"errors"

	"github.com/strongdm/ai-errmon/pkg/errmon"
)

type multiSink struct {
	sinks []errmon.Sink
}

// NewMultiSink creates a sink that writes every record to every sink.
// Errors are aggregated via errors.Join.
func NewMultiSink(sinks ...errmon.Sink) errmon.Sink {
	return &multiSink{sinks: sinks}
}

// Write sends the record to all sinks. All sinks are called even if some
// return errors.
func (s *multiSink) Write(ctx context.Context, r errmon.Record) error {
	var errs []error
	for _, sink := range s.sinks {
		if err := sink.Write(ctx, r); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *multiSink) Flush(ctx context.Context) error {
	var errs []error
	for _, sink := range s.sinks {
		if err := sink.Flush(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *multiSink) Close() error {
	var errs []error
	for _, sink := range s.sinks {
		if err := sink.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// filterSink forwards only the records accepted by keep.
type filterSink struct {
	errmon.Sink
	keep func(errmon.Record) bool
}

// Filter wraps sink so it only receives records for which keep returns true.
func Filter(sink errmon.Sink, keep func(errmon.Record) bool) errmon.Sink {
	return &filterSink{Sink: sink, keep: keep}
}

func (s *filterSink) Write(ctx context.Context, r errmon.Record) error {
	if !s.keep(r) {
		return nil
	}
	return s.Sink.Write(ctx, r)
}

// AlertsOnly wraps sink so it only receives alert log lines.
func AlertsOnly(sink errmon.Sink) errmon.Sink {
	return Filter(sink, func(r errmon.Record) bool {
		return errmon.IsAlertOperation(r.Operation)
	})
}

// ErrorsOnly wraps sink so it drops info-level records.
func ErrorsOnly(sink errmon.Sink) errmon.Sink {
	return Filter(sink, func(r errmon.Record) bool {
		return r.Level == errmon.LevelError
	})
}
