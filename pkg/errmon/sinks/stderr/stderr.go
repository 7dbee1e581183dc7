// Package stderr provides a sink that writes records in a human-readable
// format. Useful for development and debugging.
package stderr

import (
	"context"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"sync"

	"github.com/strongdm/ai-errmon/pkg/errmon"
)

// StderrSinkOption configures the stderr sink.
type StderrSinkOption func(*stderrSinkConfig)

type stderrSinkConfig struct {
	verbose bool
	out     io.Writer
}

// WithVerbose enables stack traces and structured fields in the output.
func WithVerbose() StderrSinkOption {
	return func(c *stderrSinkConfig) {
		c.verbose = true
	}
}

// WithWriter redirects output away from os.Stderr.
func WithWriter(w io.Writer) StderrSinkOption {
	return func(c *stderrSinkConfig) {
		if w != nil {
			c.out = w
		}
	}
}

type stderrSink struct {
	verbose bool

	mu  sync.Mutex
	out io.Writer
}

// NewStderrSink creates a sink that writes to stderr.
func NewStderrSink(opts ...StderrSinkOption) errmon.Sink {
	cfg := &stderrSinkConfig{out: os.Stderr}
	for _, opt := range opts {
		opt(cfg)
	}
	return &stderrSink{
		verbose: cfg.verbose,
		out:     cfg.out,
	}
}

// Write formats the record as one header line followed by indented detail
// lines, and writes it in a single call so concurrent records do not
// interleave.
func (s *stderrSink) Write(ctx context.Context, r errmon.Record) error {
	var b strings.Builder

	// Format: [ERRMON] <timestamp> <LEVEL> <operation>: <message>
	fmt.Fprintf(&b, "[ERRMON] %s %s %s: %s\n",
		r.Timestamp.Format("2006-01-02T15:04:05Z07:00"),
		strings.ToUpper(string(r.Level)),
		r.Operation,
		r.Message,
	)

	if r.Error != "" {
		fmt.Fprintf(&b, "        Error: %s (%s)\n", r.Error, r.ErrorType)
	}
	if r.Fingerprint != "" {
		fmt.Fprintf(&b, "        Fingerprint: %s\n", r.Fingerprint)
	}
	if id, ok := r.Fields[errmon.FieldRequestID]; ok {
		fmt.Fprintf(&b, "        Request: %v\n", id)
	}
	if r.ContextID != nil {
		fmt.Fprintf(&b, "        Context: %d\n", *r.ContextID)
	}

	if s.verbose {
		if len(r.Fields) > 0 {
			fmt.Fprintf(&b, "        Fields:\n")
			keys := make([]string, 0, len(r.Fields))
			for k := range r.Fields {
				keys = append(keys, k)
			}
			slices.Sort(keys)
			for _, k := range keys {
				fmt.Fprintf(&b, "          %s=%v\n", k, r.Fields[k])
			}
		}
		if r.StackTrace != "" {
			fmt.Fprintf(&b, "        Stack trace:\n")
			for _, line := range strings.Split(r.StackTrace, "\n") {
				fmt.Fprintf(&b, "          %s\n", line)
			}
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := io.WriteString(s.out, b.String())
	return err
}

// Flush is a no-op for stderr sink.
func (s *stderrSink) Flush(ctx context.Context) error {
	return nil
}

// Close is a no-op for stderr sink.
func (s *stderrSink) Close() error {
	return nil
}
