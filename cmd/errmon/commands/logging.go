package commands

import (
	"fmt"
	"io"

	cxdbclient "github.com/strongdm/ai-cxdb/clients/go"
	"go.uber.org/zap"

	"github.com/strongdm/ai-errmon/pkg/errmon"
	"github.com/strongdm/ai-errmon/pkg/errmon/sinks/async"
	"github.com/strongdm/ai-errmon/pkg/errmon/sinks/cxdb"
	"github.com/strongdm/ai-errmon/pkg/errmon/sinks/multi"
	"github.com/strongdm/ai-errmon/pkg/errmon/sinks/stderr"
	"github.com/strongdm/ai-errmon/pkg/errmon/zaplog"
)

const (
	backendZap    = "zap"
	backendStderr = "stderr"
	backendCXDB   = "cxdb"
	backendNone   = "none"

	cxdbClientTag = "errmon-cli"
)

type logOptions struct {
	backend    string
	level      string
	production bool
	verbose    bool
	cxdbAddr   string
}

func (o logOptions) zapLogger() (*zap.Logger, error) {
	return zaplog.Build(o.production, o.level)
}

// buildLogger returns the monitor logger selected by opts and a function
// that flushes and releases it. The zap backend reuses zl when it is not nil.
func buildLogger(opts logOptions, w io.Writer, zl *zap.Logger) (errmon.Logger, func() error, error) {
	switch opts.backend {
	case backendNone:
		return errmon.NopLogger{}, func() error { return nil }, nil

	case backendZap, "":
		if zl == nil {
			var err error
			if zl, err = opts.zapLogger(); err != nil {
				return nil, nil, err
			}
		}
		l := zaplog.New(zl)
		return l, func() error {
			_ = l.Sync() // stderr sync fails on some terminals
			return nil
		}, nil

	case backendStderr:
		l := errmon.NewSinkLogger(
			errmon.WithSink(stderr.NewStderrSink(stderrOptions(opts, w)...)),
			errmon.WithDefaultScrubbing(),
		)
		return l, l.Close, nil

	case backendCXDB:
		client, err := cxdbclient.Dial(opts.cxdbAddr, cxdbclient.WithClientTag(cxdbClientTag))
		if err != nil {
			return nil, nil, fmt.Errorf("connect to cxdb at %s: %w", opts.cxdbAddr, err)
		}
		console := stderr.NewStderrSink(stderrOptions(opts, w)...)
		persisted := async.NewAsyncSink(
			cxdb.NewCXDBSink(client, cxdb.WithClientTag(cxdbClientTag)),
			async.WithOnError(func(err error) {
				fmt.Fprintf(w, "cxdb write failed: %v\n", err)
			}),
			async.WithOnDropped(func(count int) {
				fmt.Fprintf(w, "cxdb queue full, dropped %d record(s)\n", count)
			}),
		)
		l := errmon.NewSinkLogger(
			errmon.WithSink(multi.NewMultiSink(persisted, multi.AlertsOnly(console))),
			errmon.WithDefaultScrubbing(),
		)
		return l, func() error {
			err := l.Close()
			client.Close()
			return err
		}, nil
	}
	return nil, nil, fmt.Errorf("unknown log backend %q", opts.backend)
}

func stderrOptions(opts logOptions, w io.Writer) []stderr.StderrSinkOption {
	sinkOpts := []stderr.StderrSinkOption{stderr.WithWriter(w)}
	if opts.verbose {
		sinkOpts = append(sinkOpts, stderr.WithVerbose())
	}
	return sinkOpts
}
