// config.go holds the monitor thresholds and the two canonical profiles.

package errmon

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config controls windows, thresholds and feature switches of a Monitor.
// It is read-only once passed to New.
type Config struct {
	// MaxHistorySize bounds the in-memory event history (FIFO eviction).
	MaxHistorySize int `mapstructure:"max_history_size" yaml:"max_history_size"`

	// CriticalErrorThreshold is the same-key count that raises a critical
	// error pattern alert.
	CriticalErrorThreshold int `mapstructure:"critical_error_threshold" yaml:"critical_error_threshold"`

	// ErrorWindow is the window in which CriticalErrorThreshold must be met.
	ErrorWindow time.Duration `mapstructure:"error_window" yaml:"error_window"`

	CascadingFailureWindow        time.Duration `mapstructure:"cascading_failure_window" yaml:"cascading_failure_window"`
	CascadingFailureMinErrorTypes int           `mapstructure:"cascading_failure_min_error_types" yaml:"cascading_failure_min_error_types"`
	CascadingFailureMinErrors     int           `mapstructure:"cascading_failure_min_errors" yaml:"cascading_failure_min_errors"`

	// AlertCooldown is how long a triggered alert type stays suppressed.
	AlertCooldown time.Duration `mapstructure:"alert_cooldown" yaml:"alert_cooldown"`

	HealthCheckWindow            time.Duration `mapstructure:"health_check_window" yaml:"health_check_window"`
	MaxHealthScoreErrors         int           `mapstructure:"max_health_score_errors" yaml:"max_health_score_errors"`
	SystemHealthErrorThreshold   int           `mapstructure:"system_health_error_threshold" yaml:"system_health_error_threshold"`
	HealthDegradedScoreThreshold int           `mapstructure:"health_degraded_score_threshold" yaml:"health_degraded_score_threshold"`

	StatisticsLongWindow  time.Duration `mapstructure:"statistics_long_window" yaml:"statistics_long_window"`
	StatisticsShortWindow time.Duration `mapstructure:"statistics_short_window" yaml:"statistics_short_window"`
	TopErrorsLimit        int           `mapstructure:"top_errors_limit" yaml:"top_errors_limit"`

	EnableRealTimeAlerting bool `mapstructure:"enable_real_time_alerting" yaml:"enable_real_time_alerting"`
	EnableHealthMonitoring bool `mapstructure:"enable_health_monitoring" yaml:"enable_health_monitoring"`
}

// ProductionConfig returns the defaults for long-running processes.
func ProductionConfig() Config {
	return Config{
		MaxHistorySize:                1000,
		CriticalErrorThreshold:        10,
		ErrorWindow:                   5 * time.Minute,
		CascadingFailureWindow:        2 * time.Minute,
		CascadingFailureMinErrorTypes: 3,
		CascadingFailureMinErrors:     8,
		AlertCooldown:                 15 * time.Minute,
		HealthCheckWindow:             10 * time.Minute,
		MaxHealthScoreErrors:          20,
		SystemHealthErrorThreshold:    10,
		HealthDegradedScoreThreshold:  50,
		StatisticsLongWindow:          24 * time.Hour,
		StatisticsShortWindow:         time.Hour,
		TopErrorsLimit:                5,
		EnableRealTimeAlerting:        true,
		EnableHealthMonitoring:        true,
	}
}

// TestConfig returns compressed windows and thresholds for fast tests.
func TestConfig() Config {
	return Config{
		MaxHistorySize:                100,
		CriticalErrorThreshold:        5,
		ErrorWindow:                   time.Minute,
		CascadingFailureWindow:        30 * time.Second,
		CascadingFailureMinErrorTypes: 2,
		CascadingFailureMinErrors:     4,
		AlertCooldown:                 200 * time.Millisecond,
		HealthCheckWindow:             time.Minute,
		MaxHealthScoreErrors:          20,
		SystemHealthErrorThreshold:    10,
		HealthDegradedScoreThreshold:  25,
		StatisticsLongWindow:          24 * time.Hour,
		StatisticsShortWindow:         time.Hour,
		TopErrorsLimit:                5,
		EnableRealTimeAlerting:        true,
		EnableHealthMonitoring:        true,
	}
}

// Validate reports every non-positive size or duration.
func (c Config) Validate() error {
	var errs []error
	positive := func(name string, v int) {
		if v <= 0 {
			errs = append(errs, fmt.Errorf("%w: %s must be positive, got %d", ErrInvalidConfig, name, v))
		}
	}
	positiveDur := func(name string, d time.Duration) {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%w: %s must be positive, got %s", ErrInvalidConfig, name, d))
		}
	}

	positive("max_history_size", c.MaxHistorySize)
	positive("critical_error_threshold", c.CriticalErrorThreshold)
	positive("cascading_failure_min_error_types", c.CascadingFailureMinErrorTypes)
	positive("cascading_failure_min_errors", c.CascadingFailureMinErrors)
	positive("max_health_score_errors", c.MaxHealthScoreErrors)
	positive("system_health_error_threshold", c.SystemHealthErrorThreshold)
	positive("top_errors_limit", c.TopErrorsLimit)
	positiveDur("error_window", c.ErrorWindow)
	positiveDur("cascading_failure_window", c.CascadingFailureWindow)
	positiveDur("alert_cooldown", c.AlertCooldown)
	positiveDur("health_check_window", c.HealthCheckWindow)
	positiveDur("statistics_long_window", c.StatisticsLongWindow)
	positiveDur("statistics_short_window", c.StatisticsShortWindow)

	if c.HealthDegradedScoreThreshold < 0 || c.HealthDegradedScoreThreshold > MaxHealthScore {
		errs = append(errs, fmt.Errorf("%w: health_degraded_score_threshold must be within [0,%d], got %d",
			ErrInvalidConfig, MaxHealthScore, c.HealthDegradedScoreThreshold))
	}

	return errors.Join(errs...)
}

// LoadConfig builds a Config from an optional YAML file and environment
// variables starting with envPrefix (e.g. "ERRMON_MAX_HISTORY_SIZE=500").
// The "profile" key selects the base profile: "test" or "production"
// (default).
func LoadConfig(path, envPrefix string) (Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	if envPrefix != "" {
		prefixUpper := strings.ToUpper(envPrefix)
		for _, envStr := range os.Environ() {
			key, value, ok := strings.Cut(envStr, "=")
			if !ok || !strings.HasPrefix(key, prefixUpper) {
				continue
			}
			propKey := strings.ToLower(strings.TrimPrefix(key, prefixUpper))
			propKey = strings.TrimPrefix(propKey, "_")
			if propKey == "" {
				continue
			}
			v.Set(propKey, value)
		}
	}

	var cfg Config
	switch profile := strings.ToLower(v.GetString("profile")); profile {
	case "", "production":
		cfg = ProductionConfig()
	case "test":
		cfg = TestConfig()
	default:
		return Config{}, fmt.Errorf("%w: unknown profile %q", ErrInvalidConfig, profile)
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
