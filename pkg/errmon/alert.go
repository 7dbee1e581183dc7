// alert.go implements alert activation with per-type cooldown.

package errmon

import (
	"fmt"
	"maps"
	"sync"
	"time"
)

// AlertType identifies an independent alert state machine.
type AlertType string

const (
	AlertCriticalErrorPattern  AlertType = "critical_error_pattern"
	AlertCascadingFailure      AlertType = "cascading_failure"
	AlertSystemHealthDegraded  AlertType = "system_health_degraded"
	AlertCircuitBreakerTripped AlertType = "circuit_breaker_tripped"
)

// AlertTypes lists every alert type in declaration order.
var AlertTypes = []AlertType{
	AlertCriticalErrorPattern,
	AlertCascadingFailure,
	AlertSystemHealthDegraded,
	AlertCircuitBreakerTripped,
}

// Alert describes a newly triggered alert.
type Alert struct {
	Type        AlertType
	TriggeredAt time.Time
	Message     string
	Fields      map[string]any
}

// AlertStats is a diagnostic snapshot of the alert manager.
type AlertStats struct {
	ActiveAlerts   []AlertType             `json:"active_alerts" yaml:"active_alerts"`
	LastAlertTimes map[AlertType]time.Time `json:"last_alert_times" yaml:"last_alert_times"`
}

// AlertManagerOption configures an AlertManager.
type AlertManagerOption func(*AlertManager)

// WithAlertHandler registers fn to be called once per newly triggered alert.
// fn runs on the triggering goroutine after the alert is logged.
func WithAlertHandler(fn func(Alert)) AlertManagerOption {
	return func(m *AlertManager) {
		if fn != nil {
			m.handlers = append(m.handlers, fn)
		}
	}
}

// WithAlertClock overrides the clock used for trigger timestamps and
// cooldown checks.
func WithAlertClock(now func() time.Time) AlertManagerOption {
	return func(m *AlertManager) {
		if now != nil {
			m.now = now
		}
	}
}

// WithoutResetTimers disables the real-time cooldown timers. Active alerts
// then expire only when the clock shows the cooldown has elapsed, which is
// what a simulated clock needs.
func WithoutResetTimers() AlertManagerOption {
	return func(m *AlertManager) {
		m.timers = false
	}
}

type pendingReset struct {
	timer      *time.Timer
	generation uint64
}

func (p *pendingReset) stop() {
	if p.timer != nil {
		p.timer.Stop()
	}
}

// AlertManager suppresses repeated alerts of one type until the cooldown
// elapses or the type is reset. Safe for concurrent use.
type AlertManager struct {
	logger   Logger
	cooldown time.Duration
	now      func() time.Time
	handlers []func(Alert)
	timers   bool

	mu             sync.Mutex
	active         map[AlertType]*pendingReset
	lastAlertTimes map[AlertType]time.Time
	generation     uint64
	disposed       bool
}

// NewAlertManager creates an AlertManager. Each triggered type resets itself
// after cooldown, either when its timer fires or when the clock is next
// consulted, whichever comes first.
func NewAlertManager(logger Logger, cooldown time.Duration, opts ...AlertManagerOption) *AlertManager {
	if logger == nil {
		logger = NopLogger{}
	}
	m := &AlertManager{
		logger:         logger,
		cooldown:       cooldown,
		now:            time.Now,
		timers:         true,
		active:         make(map[AlertType]*pendingReset),
		lastAlertTimes: make(map[AlertType]time.Time),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// TriggerCriticalErrorPattern raises the critical error pattern alert for
// errorKey. Returns false if the alert is already active.
func (m *AlertManager) TriggerCriticalErrorPattern(errorKey string, count int) bool {
	return m.trigger(AlertCriticalErrorPattern, OpCriticalErrorPattern,
		fmt.Sprintf("CRITICAL_ERROR_PATTERN: %s occurred %d times", errorKey, count),
		map[string]any{
			"error_key":   errorKey,
			"error_count": count,
		})
}

// TriggerCascadingFailure raises the cascading failure alert.
func (m *AlertManager) TriggerCascadingFailure(analysis CascadingFailureAnalysis) bool {
	return m.trigger(AlertCascadingFailure, OpCascadingFailure,
		fmt.Sprintf("CASCADING_FAILURE: %d errors across %d error types",
			analysis.TotalErrors, analysis.UniqueErrorTypes),
		map[string]any{
			"total_errors":       analysis.TotalErrors,
			"unique_error_types": analysis.UniqueErrorTypes,
			"error_types":        analysis.ErrorTypes,
		})
}

// TriggerSystemHealthDegraded raises the health degraded alert.
func (m *AlertManager) TriggerSystemHealthDegraded(healthScore int) bool {
	return m.trigger(AlertSystemHealthDegraded, OpSystemHealthDegraded,
		fmt.Sprintf("SYSTEM_HEALTH_DEGRADED: health score %d", healthScore),
		map[string]any{"health_score": healthScore})
}

// TriggerCircuitBreakerTripped raises the circuit breaker alert for service.
func (m *AlertManager) TriggerCircuitBreakerTripped(service string) bool {
	return m.trigger(AlertCircuitBreakerTripped, OpCircuitBreakerTripped,
		fmt.Sprintf("CIRCUIT_BREAKER_TRIPPED: %s", service),
		map[string]any{"service": service})
}

func (m *AlertManager) trigger(alertType AlertType, operation, message string, fields map[string]any) bool {
	m.mu.Lock()
	if m.disposed {
		m.mu.Unlock()
		return false
	}
	now := m.now()
	expired := m.expireElapsedLocked(now)
	if _, ok := m.active[alertType]; ok {
		m.mu.Unlock()
		m.logResets(expired, "cooldown_elapsed")
		return false
	}

	m.generation++
	gen := m.generation
	pending := &pendingReset{generation: gen}
	if m.timers {
		pending.timer = time.AfterFunc(m.cooldown, func() {
			m.expire(alertType, gen)
		})
	}
	m.active[alertType] = pending
	m.lastAlertTimes[alertType] = now
	m.mu.Unlock()

	m.logResets(expired, "cooldown_elapsed")

	fields = maps.Clone(fields)
	fields["alert_type"] = string(alertType)
	fields["triggered_at"] = now

	m.logger.Error(message, operation, nil, "", fields)

	alert := Alert{Type: alertType, TriggeredAt: now, Message: message, Fields: fields}
	for _, h := range m.handlers {
		h(alert)
	}
	return true
}

// expire is the cooldown timer callback. A callback whose generation no
// longer matches the active entry is stale and does nothing.
func (m *AlertManager) expire(alertType AlertType, gen uint64) {
	m.mu.Lock()
	pending, ok := m.active[alertType]
	if m.disposed || !ok || pending.generation != gen {
		m.mu.Unlock()
		return
	}
	delete(m.active, alertType)
	m.mu.Unlock()

	m.logReset(alertType, "cooldown_elapsed")
}

// expireElapsedLocked drops active types whose cooldown has elapsed by now
// and returns them in declaration order. m.mu must be held.
func (m *AlertManager) expireElapsedLocked(now time.Time) []AlertType {
	var expired []AlertType
	for _, t := range AlertTypes {
		pending, ok := m.active[t]
		if !ok || now.Sub(m.lastAlertTimes[t]) < m.cooldown {
			continue
		}
		pending.stop()
		delete(m.active, t)
		expired = append(expired, t)
	}
	return expired
}

// sweep expires elapsed types outside of a trigger.
func (m *AlertManager) sweep() {
	m.mu.Lock()
	if m.disposed {
		m.mu.Unlock()
		return
	}
	expired := m.expireElapsedLocked(m.now())
	m.mu.Unlock()
	m.logResets(expired, "cooldown_elapsed")
}

// ResetAlert deactivates alertType and cancels its pending reset. Resetting
// an inactive type is a no-op.
func (m *AlertManager) ResetAlert(alertType AlertType) {
	m.mu.Lock()
	pending, ok := m.active[alertType]
	if !ok {
		m.mu.Unlock()
		return
	}
	pending.stop()
	delete(m.active, alertType)
	m.mu.Unlock()

	m.logReset(alertType, "manual")
}

// ResetAllAlerts resets every active alert type.
func (m *AlertManager) ResetAllAlerts() {
	m.mu.Lock()
	var reset []AlertType
	for _, t := range AlertTypes {
		if pending, ok := m.active[t]; ok {
			pending.stop()
			reset = append(reset, t)
		}
	}
	clear(m.active)
	m.mu.Unlock()

	m.logResets(reset, "manual")
}

func (m *AlertManager) logResets(types []AlertType, reason string) {
	for _, t := range types {
		m.logReset(t, reason)
	}
}

func (m *AlertManager) logReset(alertType AlertType, reason string) {
	m.logger.Info(fmt.Sprintf("Alert reset: %s", alertType), OpAlertReset, map[string]any{
		"alert_type": string(alertType),
		"reason":     reason,
	})
}

// CanTriggerAlert reports whether minInterval has elapsed since alertType
// last triggered. A non-positive minInterval means the configured cooldown.
func (m *AlertManager) CanTriggerAlert(alertType AlertType, minInterval time.Duration) bool {
	if minInterval <= 0 {
		minInterval = m.cooldown
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	last, ok := m.lastAlertTimes[alertType]
	if !ok {
		return true
	}
	return m.now().Sub(last) >= minInterval
}

// IsAlertActive reports whether alertType is currently suppressing.
func (m *AlertManager) IsAlertActive(alertType AlertType) bool {
	m.sweep()
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.active[alertType]
	return ok
}

// HasActiveAlerts reports whether any alert type is active.
func (m *AlertManager) HasActiveAlerts() bool {
	m.sweep()
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.active) > 0
}

// Stats returns a snapshot of active types and last trigger times.
func (m *AlertManager) Stats() AlertStats {
	m.sweep()
	m.mu.Lock()
	defer m.mu.Unlock()

	stats := AlertStats{
		ActiveAlerts:   []AlertType{},
		LastAlertTimes: maps.Clone(m.lastAlertTimes),
	}
	for _, t := range AlertTypes {
		if _, ok := m.active[t]; ok {
			stats.ActiveAlerts = append(stats.ActiveAlerts, t)
		}
	}
	return stats
}

// clearHistory forgets last trigger times. Used by Monitor.Reset.
func (m *AlertManager) clearHistory() {
	m.mu.Lock()
	defer m.mu.Unlock()
	clear(m.lastAlertTimes)
}

// Dispose cancels pending resets and clears all state. Further triggers are
// ignored. Safe to call more than once.
func (m *AlertManager) Dispose() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.disposed {
		return
	}
	m.disposed = true
	for _, pending := range m.active {
		pending.stop()
	}
	clear(m.active)
	clear(m.lastAlertTimes)
}
