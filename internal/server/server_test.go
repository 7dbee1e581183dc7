package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/strongdm/ai-errmon/pkg/errmon"
	"github.com/strongdm/ai-errmon/pkg/errmon/zaplog"
)

type testServer struct {
	srv     *Server
	monitor *errmon.Monitor
	logs    *observer.ObservedLogs
}

func newTestServer(t *testing.T, mutate func(*errmon.Config)) testServer {
	t.Helper()
	cfg := errmon.TestConfig()
	cfg.AlertCooldown = time.Hour
	if mutate != nil {
		mutate(&cfg)
	}

	core, logs := observer.New(zapcore.DebugLevel)
	reg := prometheus.NewRegistry()
	m := errmon.New(cfg,
		errmon.WithLogger(zaplog.New(zap.New(core))),
		errmon.WithMetrics(errmon.NewMetrics(reg)),
	)
	require.NoError(t, m.Initialize())
	t.Cleanup(m.Dispose)

	return testServer{
		srv:     New(DefaultConfig(), m, reg, zap.NewNop()),
		monitor: m,
		logs:    logs,
	}
}

func (ts testServer) do(t *testing.T, method, path, body string, headers ...string) (*httptest.ResponseRecorder, Response) {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	rec := httptest.NewRecorder()
	ts.srv.Handler().ServeHTTP(rec, req)

	var resp Response
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	}
	return rec, resp
}

func TestServer_RecordError(t *testing.T) {
	ts := newTestServer(t, nil)

	rec, resp := ts.do(t, http.MethodPost, "/v1/errors",
		`{"kind":"validation","code":"email","message":"invalid email","context":"signup","metadata":{"field":"email"}}`,
		RequestIDHeader, "req-42")

	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.True(t, resp.Success)
	data := resp.Data.(map[string]any)
	assert.Equal(t, "validation", data["category"])
	assert.Equal(t, "low", data["severity"])
	assert.Equal(t, "ValidationError:email", data["error_key"])

	events, err := ts.monitor.History()
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "signup", events[0].Context())
	assert.Equal(t, errmon.CategoryValidation, events[0].Category())

	logged := ts.logs.FilterField(zap.String(zaplog.OperationKey, errmon.OpErrorMonitoring)).All()
	require.Len(t, logged, 1)
	fields := logged[0].ContextMap()
	assert.Equal(t, "req-42", fields[errmon.FieldRequestID])
	assert.Equal(t, "email", fields["field"])
}

func TestServer_RecordError_DefaultsAndPlainErrors(t *testing.T) {
	ts := newTestServer(t, nil)

	rec, resp := ts.do(t, http.MethodPost, "/v1/errors", `{"message":"something odd"}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	data := resp.Data.(map[string]any)
	assert.Equal(t, "unknown", data["category"])

	events, err := ts.monitor.History()
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "http", events[0].Context())
}

func TestServer_RecordError_BadRequests(t *testing.T) {
	ts := newTestServer(t, nil)

	tests := []struct {
		name string
		body string
		want string
	}{
		{"malformed", `{"kind":`, "invalid request body"},
		{"empty", `{}`, "message or kind is required"},
		{"unknown kind", `{"kind":"quota","message":"x"}`, `unknown error kind "quota"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, resp := ts.do(t, http.MethodPost, "/v1/errors", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.False(t, resp.Success)
			assert.Equal(t, tt.want, resp.Error)
		})
	}

	events, err := ts.monitor.History()
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestServer_CircuitBreakerAlertAndReset(t *testing.T) {
	ts := newTestServer(t, nil)

	rec, _ := ts.do(t, http.MethodPost, "/v1/errors", `{"kind":"circuit_breaker_open","service":"vision"}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.True(t, ts.monitor.Alerts().IsAlertActive(errmon.AlertCircuitBreakerTripped))

	rec, resp := ts.do(t, http.MethodGet, "/v1/alerts", "")
	require.Equal(t, http.StatusOK, rec.Code)
	active := resp.Data.(map[string]any)["active_alerts"].([]any)
	assert.Equal(t, []any{"circuit_breaker_tripped"}, active)

	rec, _ = ts.do(t, http.MethodDelete, "/v1/alerts/circuit_breaker_tripped", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, ts.monitor.Alerts().IsAlertActive(errmon.AlertCircuitBreakerTripped))

	rec, resp = ts.do(t, http.MethodDelete, "/v1/alerts/bogus", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, resp.Error, "bogus")
}

func TestServer_StatsAndHistory(t *testing.T) {
	ts := newTestServer(t, nil)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		require.NoError(t, ts.monitor.RecordError(ctx, errmon.NewNetworkError("timeout", "slow"), "fetch"))
	}
	require.NoError(t, ts.monitor.RecordError(ctx, errmon.NewValidationError("email", "bad"), "signup"))

	rec, resp := ts.do(t, http.MethodGet, "/v1/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)
	stats := resp.Data.(map[string]any)
	assert.EqualValues(t, 4, stats["total_errors_24h"])
	assert.EqualValues(t, 2, stats["unique_error_types"])
	top := stats["top_errors"].([]any)
	require.Len(t, top, 2)
	assert.Equal(t, "NetworkError:timeout", top[0].(map[string]any)["error_key"])

	rec, resp = ts.do(t, http.MethodGet, "/v1/errors", "")
	require.Equal(t, http.StatusOK, rec.Code)
	events := resp.Data.([]any)
	require.Len(t, events, 4)
	last := events[3].(map[string]any)
	assert.Equal(t, "signup", last["context"])
	assert.Equal(t, "bad (email)", last["error"])
	assert.Equal(t, true, last["user_recoverable"])
}

func TestServer_Healthz(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := httptest.NewRecorder()
	ts.srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var body HealthzResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, HealthzResponse{Healthy: true, HealthScore: 100}, body)

	require.NoError(t, ts.monitor.RecordError(context.Background(), errmon.NewStorageError("disk", "full"), "save"))

	rec = httptest.NewRecorder()
	ts.srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.False(t, body.Healthy)
	assert.Equal(t, 75, body.HealthScore)
}

func TestServer_HealthReport(t *testing.T) {
	ts := newTestServer(t, nil)
	require.NoError(t, ts.monitor.RecordError(context.Background(), errmon.NewNetworkError("timeout", "slow"), "fetch"))

	rec, resp := ts.do(t, http.MethodGet, "/v1/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	report := resp.Data.(map[string]any)
	assert.EqualValues(t, 90, report["health_score"])
	assert.Equal(t, true, report["is_healthy"])
	assert.NotNil(t, report["system"])
}

func TestServer_HealthReport_Disabled(t *testing.T) {
	ts := newTestServer(t, func(c *errmon.Config) { c.EnableHealthMonitoring = false })

	rec, resp := ts.do(t, http.MethodGet, "/v1/health", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, errmon.ErrHealthMonitoringDisabled.Error(), resp.Error)

	rec = httptest.NewRecorder()
	ts.srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestServer_Reset(t *testing.T) {
	ts := newTestServer(t, nil)
	require.NoError(t, ts.monitor.RecordError(context.Background(), errmon.NewNetworkError("timeout", "slow"), "fetch"))

	rec, _ := ts.do(t, http.MethodPost, "/v1/reset", "")
	require.Equal(t, http.StatusOK, rec.Code)

	events, err := ts.monitor.History()
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestServer_NotInitialized(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.monitor.Dispose()

	for _, path := range []string{"/v1/stats", "/v1/health", "/v1/errors", "/healthz"} {
		rec, resp := ts.do(t, http.MethodGet, path, "")
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code, path)
		assert.Equal(t, errmon.ErrNotInitialized.Error(), resp.Error, path)
	}

	rec, _ := ts.do(t, http.MethodPost, "/v1/errors", `{"kind":"network","message":"x"}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec, resp := ts.do(t, http.MethodDelete, "/v1/alerts/cascading_failure", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.False(t, resp.Success)

	rec, _ = ts.do(t, http.MethodPost, "/v1/reset", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestServer_Metrics(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.do(t, http.MethodPost, "/v1/errors", `{"kind":"permission","code":"denied","message":"nope"}`)

	rec := httptest.NewRecorder()
	ts.srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `errmon_errors_total{category="permission",severity="high"} 1`)
	assert.Contains(t, rec.Body.String(), "errmon_history_size 1")
}

func TestServer_MetricsNotRegisteredWithoutGatherer(t *testing.T) {
	m := errmon.New(errmon.TestConfig())
	require.NoError(t, m.Initialize())
	t.Cleanup(m.Dispose)

	srv := New(DefaultConfig(), m, nil, nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_StartShutdown(t *testing.T) {
	m := errmon.New(errmon.TestConfig())
	require.NoError(t, m.Initialize())
	t.Cleanup(m.Dispose)

	cfg := DefaultConfig()
	cfg.ListenAddr = "127.0.0.1:0"
	srv := New(cfg, m, nil, nil)

	assert.Nil(t, srv.Addr())
	require.NoError(t, srv.Start())
	assert.Error(t, srv.Start())
	require.NotNil(t, srv.Addr())

	resp, err := http.Get("http://" + srv.Addr().String() + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	assert.NoError(t, srv.Shutdown(ctx))
	assert.NoError(t, srv.Shutdown(ctx))
}

func TestServer_StartReturnsBindError(t *testing.T) {
	m := errmon.New(errmon.TestConfig())
	require.NoError(t, m.Initialize())
	t.Cleanup(m.Dispose)

	cfg := DefaultConfig()
	cfg.ListenAddr = "127.0.0.1:0"
	first := New(cfg, m, nil, nil)
	require.NoError(t, first.Start())
	t.Cleanup(func() { _ = first.Shutdown(context.Background()) })

	cfg.ListenAddr = first.Addr().String()
	second := New(cfg, m, nil, nil)
	err := second.Start()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "listen on "+cfg.ListenAddr)
	assert.NoError(t, second.Shutdown(context.Background()), "failed start leaves the server stopped")
}
