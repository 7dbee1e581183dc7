// logger.go defines the logging sink the monitor writes to.

package errmon

// Logger receives every log line produced by the monitor and its alert
// manager. Implementations must be safe for concurrent use.
type Logger interface {
	// Info logs an informational message tagged with operation.
	Info(message, operation string, fields map[string]any)

	// Error logs a failure. err and stackTrace may be empty.
	Error(message, operation string, err error, stackTrace string, fields map[string]any)
}

// Operation tags attached to monitor log lines.
const (
	OpErrorMonitoring       = "error_monitoring"
	OpErrorRecordingFailure = "error_recording_failure"
	OpCriticalErrorPattern  = "critical_error_pattern_alert"
	OpCascadingFailure      = "cascading_failure_alert"
	OpSystemHealthDegraded  = "system_health_degraded_alert"
	OpCircuitBreakerTripped = "circuit_breaker_alert"
	OpAlertReset            = "alert_reset"
	OpMonitorLifecycle      = "monitor_lifecycle"
)

// NopLogger discards everything.
type NopLogger struct{}

func (NopLogger) Info(string, string, map[string]any) {}

func (NopLogger) Error(string, string, error, string, map[string]any) {}

// IsAlertOperation reports whether operation tags an alert log line.
func IsAlertOperation(operation string) bool {
	switch operation {
	case OpCriticalErrorPattern, OpCascadingFailure, OpSystemHealthDegraded, OpCircuitBreakerTripped:
		return true
	}
	return false
}
