// metrics.go exports monitor activity as Prometheus metrics.

package errmon

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the collectors updated by a Monitor.
type Metrics struct {
	// ErrorsTotal counts recorded errors by category and severity.
	ErrorsTotal *prometheus.CounterVec
	// AlertsTotal counts newly triggered alerts by type.
	AlertsTotal *prometheus.CounterVec
	// HealthScore is the last computed health score.
	HealthScore prometheus.Gauge
	// HistorySize is the number of events currently retained.
	HistorySize prometheus.Gauge
}

// NewMetrics registers the monitor collectors with reg. Pass
// prometheus.DefaultRegisterer for the global registry, or a fresh
// prometheus.NewRegistry() in tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "errmon_errors_total",
				Help: "Total number of recorded errors",
			},
			[]string{"category", "severity"},
		),
		AlertsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "errmon_alerts_total",
				Help: "Total number of triggered alerts",
			},
			[]string{"type"},
		),
		HealthScore: factory.NewGauge(prometheus.GaugeOpts{
			Name: "errmon_health_score",
			Help: "Most recently computed health score (0-100)",
		}),
		HistorySize: factory.NewGauge(prometheus.GaugeOpts{
			Name: "errmon_history_size",
			Help: "Number of error events in the bounded history",
		}),
	}
}

func (m *Metrics) observeError(e ErrorEvent, historySize int) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(string(e.Category()), string(e.Severity())).Inc()
	m.HistorySize.Set(float64(historySize))
}

func (m *Metrics) observeAlert(a Alert) {
	if m == nil {
		return
	}
	m.AlertsTotal.WithLabelValues(string(a.Type)).Inc()
}

func (m *Metrics) observeHealthScore(score int) {
	if m == nil {
		return
	}
	m.HealthScore.Set(float64(score))
}

func (m *Metrics) observeHistorySize(n int) {
	if m == nil {
		return
	}
	m.HistorySize.Set(float64(n))
}
