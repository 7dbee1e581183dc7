package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/strongdm/ai-errmon/internal/server"
	"github.com/strongdm/ai-errmon/pkg/errmon"
)

type serveOptions struct {
	server          server.Config
	shutdownTimeout time.Duration
}

func newServeCmd(root *rootOptions) *cobra.Command {
	opts := &serveOptions{server: server.DefaultConfig()}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the monitoring HTTP API",
		Long: `Serve runs a monitor behind an HTTP API: POST /v1/errors records errors,
GET /v1/stats, /v1/health and /v1/alerts report on them, /healthz answers
health probes and /metrics exposes Prometheus metrics.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, root, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.server.ListenAddr, "listen", opts.server.ListenAddr, "listen address")
	flags.DurationVar(&opts.server.ReadTimeout, "read-timeout", opts.server.ReadTimeout, "HTTP read timeout")
	flags.DurationVar(&opts.server.WriteTimeout, "write-timeout", opts.server.WriteTimeout, "HTTP write timeout")
	flags.DurationVar(&opts.shutdownTimeout, "shutdown-timeout", 30*time.Second, "graceful shutdown timeout")
	return cmd
}

func runServe(cmd *cobra.Command, root *rootOptions, opts *serveOptions) error {
	cfg, err := root.loadConfig()
	if err != nil {
		return err
	}

	logger, err := root.log.zapLogger()
	if err != nil {
		return err
	}
	defer logger.Sync()

	monitorLogger, closeMonitorLogger, err := buildLogger(root.log, cmd.ErrOrStderr(), logger)
	if err != nil {
		return err
	}
	defer closeMonitorLogger()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	monitor := errmon.New(cfg,
		errmon.WithLogger(monitorLogger),
		errmon.WithMetrics(errmon.NewMetrics(reg)),
	)
	if err := monitor.Initialize(); err != nil {
		return fmt.Errorf("initialize monitor: %w", err)
	}
	defer monitor.Dispose()
	errmon.SetDefault(monitor)

	srv := server.New(opts.server, monitor, reg, logger)
	if err := srv.Start(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("errmon started",
		zap.String("version", Version),
		zap.String("listen_addr", opts.server.ListenAddr),
		zap.String("log_backend", root.log.backend),
	)
	<-ctx.Done()

	logger.Info("Starting graceful shutdown")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), opts.shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Failed to shutdown gracefully", zap.Error(err))
		return err
	}
	logger.Info("errmon stopped")
	return nil
}
