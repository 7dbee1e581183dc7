// health.go computes health scores and failure patterns over a window of
// events. It keeps no state; callers choose the window.

package errmon

import (
	"math"
	"slices"
	"time"
)

// MaxHealthScore is the score of a system with no recent errors.
const MaxHealthScore = 100

var severityPenalty = map[Severity]int{
	SeverityCritical: 20,
	SeverityHigh:     10,
	SeverityMedium:   5,
	SeverityLow:      1,
	SeverityUnknown:  3,
}

// CascadingFailureAnalysis reports whether a window shows broad degradation.
type CascadingFailureAnalysis struct {
	IsCascadingFailure bool                 `json:"is_cascading_failure" yaml:"is_cascading_failure"`
	TotalErrors        int                  `json:"total_errors" yaml:"total_errors"`
	UniqueErrorTypes   int                  `json:"unique_error_types" yaml:"unique_error_types"`
	ErrorTypes         []string             `json:"error_types" yaml:"error_types"`
	CategoryShare      map[Category]float64 `json:"category_share" yaml:"category_share"`
}

// ErrorPatternAnalysis summarizes the distribution of a window of events.
type ErrorPatternAnalysis struct {
	TotalErrors          int              `json:"total_errors" yaml:"total_errors"`
	CategoryDistribution map[Category]int `json:"category_distribution" yaml:"category_distribution"`
	SeverityDistribution map[Severity]int `json:"severity_distribution" yaml:"severity_distribution"`
	ErrorTypeFrequency   map[string]int   `json:"error_type_frequency" yaml:"error_type_frequency"`
	MostCommonCategory   Category         `json:"most_common_category" yaml:"most_common_category"`
	MostCommonSeverity   Severity         `json:"most_common_severity" yaml:"most_common_severity"`
	TimeSpan             time.Duration    `json:"time_span" yaml:"time_span"`
}

// SystemHealthReport is a point-in-time health snapshot.
type SystemHealthReport struct {
	HealthScore     int                      `json:"health_score" yaml:"health_score"`
	IsHealthy       bool                     `json:"is_healthy" yaml:"is_healthy"`
	HasActiveAlerts bool                     `json:"has_active_alerts" yaml:"has_active_alerts"`
	RecentErrors    int                      `json:"recent_errors" yaml:"recent_errors"`
	Patterns        ErrorPatternAnalysis     `json:"patterns" yaml:"patterns"`
	Cascading       CascadingFailureAnalysis `json:"cascading" yaml:"cascading"`
	System          *SystemState             `json:"system,omitempty" yaml:"system,omitempty"`
	GeneratedAt     time.Time                `json:"generated_at" yaml:"generated_at"`
}

// HealthAnalyzer evaluates event windows against a Config.
type HealthAnalyzer struct {
	cfg Config
	now func() time.Time
}

// NewHealthAnalyzer creates an analyzer using cfg's thresholds.
func NewHealthAnalyzer(cfg Config) *HealthAnalyzer {
	return &HealthAnalyzer{cfg: cfg, now: time.Now}
}

// CalculateHealthScore returns a score in [0,100]. Volume sets a linear base
// score (saturating at MaxHealthScoreErrors events) and each event then
// subtracts a severity penalty.
func (a *HealthAnalyzer) CalculateHealthScore(events []ErrorEvent) int {
	if len(events) == 0 {
		return MaxHealthScore
	}

	maxErrors := a.cfg.MaxHealthScoreErrors
	if maxErrors <= 0 {
		maxErrors = 1
	}
	count := min(len(events), maxErrors)
	score := int(math.Round(float64(maxErrors-count) / float64(maxErrors) * MaxHealthScore))

	for _, e := range events {
		penalty, ok := severityPenalty[e.Severity()]
		if !ok {
			penalty = severityPenalty[SeverityUnknown]
		}
		score -= penalty
	}

	return max(0, min(MaxHealthScore, score))
}

// IsSystemHealthy is false while any alert is active, if any event is
// critical, or once the window holds SystemHealthErrorThreshold events.
func (a *HealthAnalyzer) IsSystemHealthy(events []ErrorEvent, hasActiveAlerts bool) bool {
	if hasActiveAlerts {
		return false
	}
	for _, e := range events {
		if e.Severity() == SeverityCritical {
			return false
		}
	}
	return len(events) < a.cfg.SystemHealthErrorThreshold
}

// AnalyzeCascadingFailures flags the window when both the distinct error key
// count and the total count reach their thresholds.
func (a *HealthAnalyzer) AnalyzeCascadingFailures(events []ErrorEvent) CascadingFailureAnalysis {
	keys := make(map[string]struct{})
	perCategory := make(map[Category]int)
	for _, e := range events {
		keys[e.ErrorKey()] = struct{}{}
		perCategory[e.Category()]++
	}

	errorTypes := make([]string, 0, len(keys))
	for k := range keys {
		errorTypes = append(errorTypes, k)
	}
	slices.Sort(errorTypes)

	share := make(map[Category]float64, len(perCategory))
	for c, n := range perCategory {
		share[c] = float64(n) / float64(len(events))
	}

	return CascadingFailureAnalysis{
		IsCascadingFailure: len(keys) >= a.cfg.CascadingFailureMinErrorTypes &&
			len(events) >= a.cfg.CascadingFailureMinErrors,
		TotalErrors:      len(events),
		UniqueErrorTypes: len(keys),
		ErrorTypes:       errorTypes,
		CategoryShare:    share,
	}
}

// AnalyzeErrorPatterns builds frequency tables for the window. Ties for the
// most common category or severity go to the one declared first.
func (a *HealthAnalyzer) AnalyzeErrorPatterns(events []ErrorEvent) ErrorPatternAnalysis {
	analysis := ErrorPatternAnalysis{
		CategoryDistribution: make(map[Category]int),
		SeverityDistribution: make(map[Severity]int),
		ErrorTypeFrequency:   make(map[string]int),
	}
	if len(events) == 0 {
		return analysis
	}

	analysis.TotalErrors = len(events)
	earliest, latest := events[0].Timestamp(), events[0].Timestamp()
	for _, e := range events {
		analysis.CategoryDistribution[e.Category()]++
		analysis.SeverityDistribution[e.Severity()]++
		analysis.ErrorTypeFrequency[e.ErrorKey()]++
		if ts := e.Timestamp(); ts.Before(earliest) {
			earliest = ts
		} else if ts.After(latest) {
			latest = ts
		}
	}
	analysis.TimeSpan = latest.Sub(earliest)
	analysis.MostCommonCategory = mostCommon(Categories, analysis.CategoryDistribution)
	analysis.MostCommonSeverity = mostCommon(Severities, analysis.SeverityDistribution)
	return analysis
}

// GenerateHealthReport combines score, health flag and both analyses.
func (a *HealthAnalyzer) GenerateHealthReport(events []ErrorEvent, hasActiveAlerts bool) SystemHealthReport {
	return SystemHealthReport{
		HealthScore:     a.CalculateHealthScore(events),
		IsHealthy:       a.IsSystemHealthy(events, hasActiveAlerts),
		HasActiveAlerts: hasActiveAlerts,
		RecentErrors:    len(events),
		Patterns:        a.AnalyzeErrorPatterns(events),
		Cascading:       a.AnalyzeCascadingFailures(events),
		GeneratedAt:     a.now(),
	}
}

func mostCommon[T comparable](order []T, counts map[T]int) T {
	var best T
	bestCount := 0
	for _, v := range order {
		if counts[v] > bestCount {
			best, bestCount = v, counts[v]
		}
	}
	return best
}
