// server.go exposes a Monitor over HTTP: error ingestion, statistics,
// health and Prometheus metrics.

package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"slices"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/strongdm/ai-errmon/pkg/errmon"
)

// RequestIDHeader carries the caller's correlation id.
const RequestIDHeader = "X-Request-ID"

const maxBodyBytes = 1 << 20

// Config defines API server configuration.
type Config struct {
	ListenAddr   string        `mapstructure:"listen_addr" yaml:"listen_addr"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout"`
}

// DefaultConfig listens on :8080 with conservative timeouts.
func DefaultConfig() Config {
	return Config{
		ListenAddr:   ":8080",
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// Response is the envelope of every JSON reply.
type Response struct {
	Success bool      `json:"success"`
	Data    any       `json:"data,omitempty"`
	Error   string    `json:"error,omitempty"`
	Time    time.Time `json:"time"`
}

// ErrorRequest is the body of POST /v1/errors.
type ErrorRequest struct {
	errmon.ErrorDescriptor
	Context    string         `json:"context"`
	RequestID  string         `json:"request_id,omitempty"`
	StackTrace string         `json:"stack_trace,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// EventView is the JSON form of a recorded event.
type EventView struct {
	ID              string          `json:"id"`
	Error           string          `json:"error"`
	Context         string          `json:"context"`
	Timestamp       time.Time       `json:"timestamp"`
	Category        errmon.Category `json:"category"`
	Severity        errmon.Severity `json:"severity"`
	ErrorKey        string          `json:"error_key"`
	UserRecoverable bool            `json:"user_recoverable"`
	Metadata        map[string]any  `json:"metadata,omitempty"`
}

// HealthzResponse is the body of GET /healthz.
type HealthzResponse struct {
	Healthy     bool `json:"healthy"`
	HealthScore int  `json:"health_score"`
}

// Server serves the monitoring API.
type Server struct {
	config   Config
	monitor  *errmon.Monitor
	gatherer prometheus.Gatherer
	logger   *zap.Logger
	router   *mux.Router
	server   *http.Server
	listener net.Listener
	running  atomic.Bool
}

// New creates a server for monitor. gatherer may be nil, in which case
// /metrics is not registered.
func New(config Config, monitor *errmon.Monitor, gatherer prometheus.Gatherer, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		config:   config,
		monitor:  monitor,
		gatherer: gatherer,
		logger:   logger,
	}
	s.setupRoutes()
	return s
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupRoutes() {
	s.router = mux.NewRouter()
	s.router.Use(s.loggingMiddleware)

	api := s.router.PathPrefix("/v1").Subrouter()
	api.HandleFunc("/errors", s.handleRecordError).Methods(http.MethodPost)
	api.HandleFunc("/errors", s.handleHistory).Methods(http.MethodGet)
	api.HandleFunc("/stats", s.handleStats).Methods(http.MethodGet)
	api.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	api.HandleFunc("/alerts", s.handleAlerts).Methods(http.MethodGet)
	api.HandleFunc("/alerts/{type}", s.handleResetAlert).Methods(http.MethodDelete)
	api.HandleFunc("/reset", s.handleReset).Methods(http.MethodPost)

	s.router.HandleFunc("/healthz", s.handleHealthz).Methods(http.MethodGet)
	if s.gatherer != nil {
		s.router.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}
}

// Start binds the listen address and serves in the background until
// Shutdown. Bind failures are returned.
func (s *Server) Start() error {
	if !s.running.CompareAndSwap(false, true) {
		return fmt.Errorf("server already running")
	}

	ln, err := net.Listen("tcp", s.config.ListenAddr)
	if err != nil {
		s.running.Store(false)
		return fmt.Errorf("listen on %s: %w", s.config.ListenAddr, err)
	}
	s.listener = ln

	s.server = &http.Server{
		Addr:         s.config.ListenAddr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}

	s.logger.Info("Starting errmon API server", zap.String("listen_addr", ln.Addr().String()))
	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", zap.Error(err))
		}
	}()
	return nil
}

// Addr returns the bound address, or nil before Start.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}
	s.logger.Info("Shutting down errmon API server")
	return s.server.Shutdown(ctx)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("API request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

func (s *Server) handleRecordError(w http.ResponseWriter, r *http.Request) {
	var req ErrorRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	recorded, err := req.Build()
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Context == "" {
		req.Context = "http"
	}

	ctx := r.Context()
	requestID := req.RequestID
	if requestID == "" {
		requestID = r.Header.Get(RequestIDHeader)
	}
	if requestID != "" {
		ctx = errmon.WithRequestID(ctx, requestID)
	}

	var opts []errmon.RecordOption
	if req.StackTrace != "" {
		opts = append(opts, errmon.WithStackTrace(req.StackTrace))
	}
	if len(req.Metadata) > 0 {
		opts = append(opts, errmon.WithMetadata(req.Metadata))
	}

	if err := s.monitor.RecordError(ctx, recorded, req.Context, opts...); err != nil {
		s.writeMonitorError(w, err)
		return
	}

	s.writeJSON(w, http.StatusAccepted, Response{
		Success: true,
		Data: map[string]any{
			"category":  errmon.CategorizeError(recorded),
			"severity":  errmon.ErrorSeverity(recorded),
			"error_key": errmon.GenerateErrorKey(recorded),
		},
		Time: time.Now(),
	})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	events, err := s.monitor.History()
	if err != nil {
		s.writeMonitorError(w, err)
		return
	}
	views := make([]EventView, 0, len(events))
	for _, e := range events {
		views = append(views, EventView{
			ID:              e.ID(),
			Error:           fmt.Sprint(e.Err()),
			Context:         e.Context(),
			Timestamp:       e.Timestamp(),
			Category:        e.Category(),
			Severity:        e.Severity(),
			ErrorKey:        e.ErrorKey(),
			UserRecoverable: e.IsUserRecoverable(),
			Metadata:        e.Metadata(),
		})
	}
	s.writeSuccess(w, views)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.monitor.ErrorStatistics()
	if err != nil {
		s.writeMonitorError(w, err)
		return
	}
	s.writeSuccess(w, stats)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	report, err := s.monitor.HealthReport()
	if err != nil {
		s.writeMonitorError(w, err)
		return
	}
	s.writeSuccess(w, report)
}

func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	stats, err := s.monitor.ErrorStatistics()
	if err != nil {
		s.writeMonitorError(w, err)
		return
	}
	s.writeSuccess(w, stats.Alerts)
}

func (s *Server) handleResetAlert(w http.ResponseWriter, r *http.Request) {
	alertType := errmon.AlertType(mux.Vars(r)["type"])
	if !slices.Contains(errmon.AlertTypes, alertType) {
		s.writeError(w, http.StatusNotFound, fmt.Sprintf("unknown alert type %q", alertType))
		return
	}
	if err := s.monitor.ResetAlert(alertType); err != nil {
		s.writeMonitorError(w, err)
		return
	}
	s.writeSuccess(w, map[string]any{"reset": alertType})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if err := s.monitor.Reset(); err != nil {
		s.writeMonitorError(w, err)
		return
	}
	s.writeSuccess(w, map[string]any{"reset": true})
}

// handleHealthz answers 200 while the monitor considers the system healthy
// and 503 otherwise.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	healthy, err := s.monitor.IsSystemHealthy()
	if err != nil {
		s.writeMonitorError(w, err)
		return
	}
	score, err := s.monitor.HealthScore()
	if err != nil {
		s.writeMonitorError(w, err)
		return
	}

	status := http.StatusOK
	if !healthy {
		status = http.StatusServiceUnavailable
	}
	s.writeJSON(w, status, HealthzResponse{Healthy: healthy, HealthScore: score})
}

func (s *Server) writeMonitorError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errmon.ErrNotInitialized):
		s.writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, errmon.ErrHealthMonitoringDisabled):
		s.writeError(w, http.StatusNotFound, err.Error())
	default:
		s.logger.Error("Monitor request failed", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func (s *Server) writeSuccess(w http.ResponseWriter, data any) {
	s.writeJSON(w, http.StatusOK, Response{Success: true, Data: data, Time: time.Now()})
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, Response{Success: false, Error: message, Time: time.Now()})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Warn("Failed to encode response", zap.Error(err))
	}
}
