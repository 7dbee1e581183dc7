// monitor.go provides the Monitor facade: it records errors into a bounded
// history, keeps per-key counters, drives alerts and answers statistics
// and health queries.

package errmon

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"maps"
	"runtime/debug"
	"slices"
	"sync"
	"time"
)

type monitorState int

const (
	stateUninitialized monitorState = iota
	stateInitialized
	stateDisposed
)

func (s monitorState) String() string {
	switch s {
	case stateInitialized:
		return "initialized"
	case stateDisposed:
		return "disposed"
	default:
		return "uninitialized"
	}
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithLogger sets the log sink. Defaults to NopLogger.
func WithLogger(logger Logger) Option {
	return func(m *Monitor) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithClock overrides time.Now for event timestamps, windows and alert
// cooldowns. Alerts then expire only as this clock advances.
func WithClock(now func() time.Time) Option {
	return func(m *Monitor) {
		if now != nil {
			m.now = now
			m.simulatedClock = true
		}
	}
}

// WithMetrics enables Prometheus metrics.
func WithMetrics(metrics *Metrics) Option {
	return func(m *Monitor) {
		m.metrics = metrics
	}
}

// WithAlertNotifier registers fn to receive every newly triggered alert.
func WithAlertNotifier(fn func(Alert)) Option {
	return func(m *Monitor) {
		if fn != nil {
			m.notifiers = append(m.notifiers, fn)
		}
	}
}

// RecordOption configures a single RecordError call.
type RecordOption func(*recordOptions)

type recordOptions struct {
	stackTrace string
	metadata   map[string]any
}

// WithStackTrace supplies the stack trace captured at the failure site.
// Without it RecordError captures its own.
func WithStackTrace(stackTrace string) RecordOption {
	return func(o *recordOptions) {
		o.stackTrace = stackTrace
	}
}

// WithMetadata attaches diagnostic key/value pairs to the event.
func WithMetadata(metadata map[string]any) RecordOption {
	return func(o *recordOptions) {
		o.metadata = metadata
	}
}

// ErrorFrequency is the lifetime count of one error key.
type ErrorFrequency struct {
	ErrorKey string    `json:"error_key" yaml:"error_key"`
	Count    int       `json:"count" yaml:"count"`
	LastSeen time.Time `json:"last_seen" yaml:"last_seen"`
}

// ErrorStatistics is a snapshot of recent error activity.
type ErrorStatistics struct {
	// TotalErrors24h and TotalErrors1h count events within the long and short
	// statistics windows (24h and 1h by default).
	TotalErrors24h int `json:"total_errors_24h" yaml:"total_errors_24h"`
	TotalErrors1h  int `json:"total_errors_1h" yaml:"total_errors_1h"`

	// CategoryBreakdown covers the long window.
	CategoryBreakdown map[Category]int `json:"category_breakdown" yaml:"category_breakdown"`

	// UniqueErrorTypes is the number of distinct error keys seen since the
	// last reset.
	UniqueErrorTypes int              `json:"unique_error_types" yaml:"unique_error_types"`
	TopErrors        []ErrorFrequency `json:"top_errors" yaml:"top_errors"`
	Alerts           AlertStats       `json:"alerts" yaml:"alerts"`
	GeneratedAt      time.Time        `json:"generated_at" yaml:"generated_at"`
}

type keyCounter struct {
	count    int
	lastSeen time.Time
}

// Monitor is the error monitoring facade. All methods are safe for
// concurrent use; history, counters and state share one lock.
type Monitor struct {
	cfg       Config
	logger    Logger
	now       func() time.Time
	metrics   *Metrics
	notifiers []func(Alert)
	analyzer  *HealthAnalyzer

	// simulatedClock disables real-time alert reset timers.
	simulatedClock bool

	mu        sync.Mutex
	state     monitorState
	history   *eventHistory
	counts    map[string]*keyCounter
	alerts    *AlertManager
	startTime time.Time
}

// New creates an uninitialized Monitor. Call Initialize before use.
func New(cfg Config, opts ...Option) *Monitor {
	m := &Monitor{
		cfg:    cfg,
		logger: NopLogger{},
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.analyzer = NewHealthAnalyzer(cfg)
	m.analyzer.now = m.now
	return m
}

// Initialize validates the config and starts from an empty history. It is a
// no-op on an initialized monitor and may be called again after Dispose.
func (m *Monitor) Initialize() error {
	if err := m.cfg.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	if m.state == stateInitialized {
		m.mu.Unlock()
		return nil
	}
	m.history = newEventHistory(m.cfg.MaxHistorySize)
	m.counts = make(map[string]*keyCounter)
	alertOpts := []AlertManagerOption{
		WithAlertClock(m.now),
		WithAlertHandler(m.dispatchAlert),
	}
	if m.simulatedClock {
		alertOpts = append(alertOpts, WithoutResetTimers())
	}
	m.alerts = NewAlertManager(m.logger, m.cfg.AlertCooldown, alertOpts...)
	m.startTime = m.now()
	m.state = stateInitialized
	m.mu.Unlock()

	m.logger.Info("Error monitor initialized", OpMonitorLifecycle, map[string]any{
		"max_history_size":         m.cfg.MaxHistorySize,
		"real_time_alerting":       m.cfg.EnableRealTimeAlerting,
		"health_monitoring":        m.cfg.EnableHealthMonitoring,
		"critical_error_threshold": m.cfg.CriticalErrorThreshold,
	})
	return nil
}

// Config returns the monitor's configuration.
func (m *Monitor) Config() Config {
	return m.cfg
}

// Alerts returns the current alert manager, or nil unless the monitor is
// initialized.
func (m *Monitor) Alerts() *AlertManager {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != stateInitialized {
		return nil
	}
	return m.alerts
}

// ResetAlert deactivates one alert type.
func (m *Monitor) ResetAlert(alertType AlertType) error {
	m.mu.Lock()
	if m.state != stateInitialized {
		m.mu.Unlock()
		return ErrNotInitialized
	}
	alerts := m.alerts
	m.mu.Unlock()

	alerts.ResetAlert(alertType)
	return nil
}

func (m *Monitor) dispatchAlert(a Alert) {
	m.metrics.observeAlert(a)
	for _, fn := range m.notifiers {
		fn(a)
	}
}

// recordOutcome carries what ingest decided under the lock so that alerting
// and logging run without holding it.
type recordOutcome struct {
	event       ErrorEvent
	alerts      *AlertManager
	historySize int

	criticalCount   int
	criticalPattern bool
	cascading       CascadingFailureAnalysis
	circuitService  string
	healthScore     int
	healthDegraded  bool
}

// RecordError classifies err and records it. It returns ErrNotInitialized
// when the monitor is not initialized; every other failure, including a
// panicking logger, is logged under OpErrorRecordingFailure and swallowed.
func (m *Monitor) RecordError(ctx context.Context, err error, opContext string, opts ...RecordOption) (retErr error) {
	defer func() {
		if r := recover(); r != nil {
			m.logRecordingFailure(r, err, opContext)
			retErr = nil
		}
	}()

	var ro recordOptions
	for _, opt := range opts {
		opt(&ro)
	}
	if ro.stackTrace == "" {
		ro.stackTrace = string(debug.Stack())
	}

	out, initErr := m.ingest(err, opContext, ro)
	if initErr != nil {
		return initErr
	}

	if m.cfg.EnableRealTimeAlerting {
		if out.criticalPattern {
			out.alerts.TriggerCriticalErrorPattern(out.event.ErrorKey(), out.criticalCount)
		}
		if out.cascading.IsCascadingFailure {
			out.alerts.TriggerCascadingFailure(out.cascading)
		}
		if out.circuitService != "" {
			out.alerts.TriggerCircuitBreakerTripped(out.circuitService)
		}
		if out.healthDegraded {
			out.alerts.TriggerSystemHealthDegraded(out.healthScore)
		}
	}

	m.metrics.observeError(out.event, out.historySize)
	m.logEvent(ctx, out.event)
	return nil
}

func (m *Monitor) ingest(err error, opContext string, ro recordOptions) (recordOutcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != stateInitialized {
		return recordOutcome{}, ErrNotInitialized
	}

	now := m.now()
	event := NewErrorEvent(err, ro.stackTrace, opContext, ro.metadata, now)
	m.history.Add(event)

	counter, ok := m.counts[event.ErrorKey()]
	if !ok {
		counter = &keyCounter{}
		m.counts[event.ErrorKey()] = counter
	}
	counter.count++
	counter.lastSeen = now

	out := recordOutcome{
		event:       event,
		alerts:      m.alerts,
		historySize: m.history.Len(),
	}
	if !m.cfg.EnableRealTimeAlerting {
		return out, nil
	}

	if counter.count >= m.cfg.CriticalErrorThreshold {
		windowCount := 0
		for _, e := range m.history.Since(now.Add(-m.cfg.ErrorWindow)) {
			if e.ErrorKey() == event.ErrorKey() {
				windowCount++
			}
		}
		if windowCount >= m.cfg.CriticalErrorThreshold {
			out.criticalPattern = true
			out.criticalCount = counter.count
		}
	}

	out.cascading = m.analyzer.AnalyzeCascadingFailures(m.history.Since(now.Add(-m.cfg.CascadingFailureWindow)))

	if event.Category() == CategoryCircuitBreaker {
		out.circuitService = circuitBreakerService(err)
	}

	if m.cfg.EnableHealthMonitoring {
		out.healthScore = m.analyzer.CalculateHealthScore(m.history.Since(now.Add(-m.cfg.HealthCheckWindow)))
		out.healthDegraded = out.healthScore < m.cfg.HealthDegradedScoreThreshold
	}
	return out, nil
}

func circuitBreakerService(err error) string {
	var de *DomainError
	if errors.As(err, &de) && de.Service != "" {
		return de.Service
	}
	return GenerateErrorKey(err)
}

func (m *Monitor) logEvent(ctx context.Context, event ErrorEvent) {
	fields := event.Metadata()
	if fields == nil {
		fields = make(map[string]any)
	}
	maps.Copy(fields, map[string]any{
		"event_id":                 event.ID(),
		"category":                 string(event.Category()),
		"error_type":               fmt.Sprintf("%T", event.Err()),
		"context":                  event.Context(),
		"user_recoverable":         event.IsUserRecoverable(),
		"severity":                 string(event.Severity()),
		"error_key":                event.ErrorKey(),
		"requires_immediate_alert": event.Severity() == SeverityCritical,
	})
	if id, ok := RequestIDFromContext(ctx); ok {
		fields[FieldRequestID] = id
	}
	if id, ok := ContextIDFromContext(ctx); ok {
		fields[FieldContextID] = id
	}

	m.logger.Error(
		fmt.Sprintf("Error recorded in %s: %v", event.Context(), event.Err()),
		OpErrorMonitoring,
		event.Err(),
		event.StackTrace(),
		fields,
	)
}

func (m *Monitor) logRecordingFailure(recovered any, original error, opContext string) {
	defer func() {
		_ = recover() // the logger itself may be what panicked
	}()
	m.logger.Error(
		fmt.Sprintf("Failed to record error: %v", recovered),
		OpErrorRecordingFailure,
		nil,
		string(debug.Stack()),
		map[string]any{
			"original_error": fmt.Sprint(original),
			"context":        opContext,
		},
	)
}

// ErrorStatistics returns counts over the statistics windows, the category
// breakdown of the long window, the top error keys and alert state.
func (m *Monitor) ErrorStatistics() (ErrorStatistics, error) {
	m.mu.Lock()
	if m.state != stateInitialized {
		m.mu.Unlock()
		return ErrorStatistics{}, ErrNotInitialized
	}

	now := m.now()
	longWindow := m.history.Since(now.Add(-m.cfg.StatisticsLongWindow))
	shortCutoff := now.Add(-m.cfg.StatisticsShortWindow)

	stats := ErrorStatistics{
		TotalErrors24h:    len(longWindow),
		CategoryBreakdown: make(map[Category]int),
		UniqueErrorTypes:  len(m.counts),
		GeneratedAt:       now,
	}
	for _, e := range longWindow {
		stats.CategoryBreakdown[e.Category()]++
		if !e.Timestamp().Before(shortCutoff) {
			stats.TotalErrors1h++
		}
	}

	top := make([]ErrorFrequency, 0, len(m.counts))
	for key, c := range m.counts {
		top = append(top, ErrorFrequency{ErrorKey: key, Count: c.count, LastSeen: c.lastSeen})
	}
	alerts := m.alerts
	m.mu.Unlock()

	slices.SortFunc(top, func(a, b ErrorFrequency) int {
		if n := cmp.Compare(b.Count, a.Count); n != 0 {
			return n
		}
		return cmp.Compare(a.ErrorKey, b.ErrorKey)
	})
	if len(top) > m.cfg.TopErrorsLimit {
		top = top[:m.cfg.TopErrorsLimit]
	}
	stats.TopErrors = top
	stats.Alerts = alerts.Stats()
	return stats, nil
}

// History returns the retained events, oldest first.
func (m *Monitor) History() ([]ErrorEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != stateInitialized {
		return nil, ErrNotInitialized
	}
	return m.history.All(), nil
}

// healthWindow returns the events inside the health check window.
func (m *Monitor) healthWindow() ([]ErrorEvent, *AlertManager, time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != stateInitialized {
		return nil, nil, time.Time{}, ErrNotInitialized
	}
	return m.history.Since(m.now().Add(-m.cfg.HealthCheckWindow)), m.alerts, m.startTime, nil
}

// HealthReport analyzes the health check window. It returns
// ErrHealthMonitoringDisabled when health monitoring is off.
func (m *Monitor) HealthReport() (SystemHealthReport, error) {
	events, alerts, startTime, err := m.healthWindow()
	if err != nil {
		return SystemHealthReport{}, err
	}
	if !m.cfg.EnableHealthMonitoring {
		return SystemHealthReport{}, ErrHealthMonitoringDisabled
	}

	report := m.analyzer.GenerateHealthReport(events, alerts.HasActiveAlerts())
	report.System = CaptureSystemState(startTime)
	m.metrics.observeHealthScore(report.HealthScore)
	return report, nil
}

// IsSystemHealthy reports the health flag of the health check window.
// With health monitoring disabled it always reports healthy.
func (m *Monitor) IsSystemHealthy() (bool, error) {
	events, alerts, _, err := m.healthWindow()
	if err != nil {
		return false, err
	}
	if !m.cfg.EnableHealthMonitoring {
		return true, nil
	}
	return m.analyzer.IsSystemHealthy(events, alerts.HasActiveAlerts()), nil
}

// HealthScore returns the score of the health check window. With health
// monitoring disabled it always returns MaxHealthScore.
func (m *Monitor) HealthScore() (int, error) {
	events, _, _, err := m.healthWindow()
	if err != nil {
		return 0, err
	}
	if !m.cfg.EnableHealthMonitoring {
		return MaxHealthScore, nil
	}
	score := m.analyzer.CalculateHealthScore(events)
	m.metrics.observeHealthScore(score)
	return score, nil
}

// Reset clears history, counters and every alert.
func (m *Monitor) Reset() error {
	m.mu.Lock()
	if m.state != stateInitialized {
		m.mu.Unlock()
		return ErrNotInitialized
	}
	m.history.Reset()
	clear(m.counts)
	alerts := m.alerts
	m.mu.Unlock()

	alerts.ResetAllAlerts()
	alerts.clearHistory()
	m.metrics.observeHistorySize(0)
	m.logger.Info("Error monitor reset", OpMonitorLifecycle, nil)
	return nil
}

// Dispose cancels pending alert timers and drops all in-memory state.
// Subsequent calls return ErrNotInitialized until Initialize is called
// again. Safe to call more than once.
func (m *Monitor) Dispose() {
	m.mu.Lock()
	if m.state != stateInitialized {
		m.mu.Unlock()
		return
	}
	m.alerts.Dispose()
	m.history.Reset()
	clear(m.counts)
	m.state = stateDisposed
	m.mu.Unlock()

	m.logger.Info("Error monitor disposed", OpMonitorLifecycle, nil)
}

var (
	defaultMu      sync.Mutex
	defaultMonitor *Monitor
)

// Default returns the process-wide Monitor. On first use it creates an
// initialized monitor with ProductionConfig and no logger; hosts that want
// logging call SetDefault during startup.
func Default() *Monitor {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultMonitor == nil {
		defaultMonitor = New(ProductionConfig())
		_ = defaultMonitor.Initialize() // ProductionConfig always validates
	}
	return defaultMonitor
}

// SetDefault replaces the process-wide Monitor.
func SetDefault(m *Monitor) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultMonitor = m
}
