// scrubber.go implements fail-closed redaction of secrets and PII in records.

package errmon

import (
	"fmt"
	"regexp"
	"strings"
)

// ScrubberConfig controls scrubbing behavior.
type ScrubberConfig struct {
	// SensitiveKeys adds case-insensitive substrings that mark a field key
	// as sensitive, on top of the built-in list.
	SensitiveKeys []string

	// MaxMessageSize is the maximum length for messages and error text (default: 4096).
	MaxMessageSize int

	// MaxStackTraceSize is the maximum length for stack traces (default: 32768).
	MaxStackTraceSize int

	// MaxFieldSize is the maximum length of one string field value (default: 1024).
	MaxFieldSize int

	// ScrubMessages enables pattern scrubbing of messages (default: true).
	ScrubMessages bool

	// FailClosed redacts a field entirely when it cannot be scrubbed (default: true).
	FailClosed bool
}

// DefaultScrubberConfig returns production-safe defaults.
func DefaultScrubberConfig() ScrubberConfig {
	return ScrubberConfig{
		MaxMessageSize:    4096,
		MaxStackTraceSize: 32768,
		MaxFieldSize:      1024,
		ScrubMessages:     true,
		FailClosed:        true,
	}
}

const (
	redacted        = "[REDACTED]"
	redactedScrub   = "[REDACTED:SCRUB_ERROR]"
	truncatedMarker = "...[TRUNCATED]"
)

var messageScrubPatterns = []*regexp.Regexp{
	// API keys and tokens
	regexp.MustCompile(`(?i)(api[_-]?key|token)[=:\s]+['"]?[\w\-\.]+['"]?`),
	regexp.MustCompile(`(?i)(authorization|bearer)[=:\s]+['"]?[\w\-\.]+['"]?[\s]+['"]?[\w\-\.]+['"]?`),
	regexp.MustCompile(`(?i)AIza[0-9A-Za-z_\-]{35}`), // Google API keys
	regexp.MustCompile(`(?i)sk-[a-zA-Z0-9_-]{20,}`),
	regexp.MustCompile(`(?i)ghp_[a-zA-Z0-9]{36}`),
	regexp.MustCompile(`(?i)github_pat_[a-zA-Z0-9_]{22,}`),
	regexp.MustCompile(`(?i)eyJ[a-zA-Z0-9_-]*\.eyJ[a-zA-Z0-9_-]*\.[a-zA-Z0-9_-]*`), // JWT

	// Credentials
	regexp.MustCompile(`(?i)password[=:\s]+['"]?[^\s'"",]+['"]?`),
	regexp.MustCompile(`(?i)secret[=:\s]+['"]?[^\s'"",]+['"]?`),
	regexp.MustCompile(`(?i)credential[=:\s]+['"]?[^\s'"",]+['"]?`),

	// PII
	regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`),
	regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`),
	regexp.MustCompile(`\b\d{4}[\s-]?\d{4}[\s-]?\d{4}[\s-]?\d{4}\b`),
}

var sensitiveKeyPatterns = []string{
	"token",
	"api_key",
	"apikey",
	"private_key",
	"access_key",
	"secret",
	"password",
	"passwd",
	"credential",
	"auth",
}

var (
	pathNormalizationPatterns = []*regexp.Regexp{
		regexp.MustCompile(`/home/[^/]+/`),
		regexp.MustCompile(`/Users/[^/]+/`),
		regexp.MustCompile(`C:\\Users\\[^\\]+\\`),
		regexp.MustCompile(`/tmp/[^/]+/`),
	}
	stackAddrPattern = regexp.MustCompile(`0x[0-9a-fA-F]+`)
)

// Scrubber redacts sensitive data from records.
type Scrubber struct {
	cfg           ScrubberConfig
	sensitiveKeys []string
}

// NewScrubber creates a scrubber with the given configuration.
func NewScrubber(cfg ScrubberConfig) *Scrubber {
	keys := append([]string(nil), sensitiveKeyPatterns...)
	for _, k := range cfg.SensitiveKeys {
		keys = append(keys, strings.ToLower(k))
	}
	return &Scrubber{cfg: cfg, sensitiveKeys: keys}
}

// ScrubRecord returns r with message, error, stack trace and fields scrubbed.
func (s *Scrubber) ScrubRecord(r Record) Record {
	r.Message = s.ScrubMessage(r.Message)
	r.Error = s.ScrubMessage(r.Error)
	r.StackTrace = s.ScrubStackTrace(r.StackTrace)
	r.Fields = s.ScrubFields(r.Fields)
	return r
}

// ScrubMessage removes secrets and PII from free text.
func (s *Scrubber) ScrubMessage(msg string) string {
	if !s.cfg.ScrubMessages || msg == "" {
		return msg
	}
	if s.cfg.MaxMessageSize > 0 && len(msg) > s.cfg.MaxMessageSize {
		msg = truncateWithMarker(msg, s.cfg.MaxMessageSize)
	}
	for _, pattern := range messageScrubPatterns {
		msg = pattern.ReplaceAllString(msg, redacted)
	}
	return msg
}

// ScrubStackTrace normalizes user-specific paths, hides addresses and
// limits the trace size.
func (s *Scrubber) ScrubStackTrace(trace string) string {
	if trace == "" {
		return trace
	}
	for _, pattern := range pathNormalizationPatterns {
		trace = pattern.ReplaceAllString(trace, "/[PATH]/")
	}
	trace = stackAddrPattern.ReplaceAllString(trace, "0x...")
	if s.cfg.MaxStackTraceSize > 0 && len(trace) > s.cfg.MaxStackTraceSize {
		trace = truncateWithMarker(trace, s.cfg.MaxStackTraceSize)
	}
	return trace
}

// ScrubFields redacts sensitive keys and scrubs string values. Other
// non-scalar values are rendered with %v and scrubbed as text; a value whose
// String or Error method panics is redacted when FailClosed is set.
func (s *Scrubber) ScrubFields(fields map[string]any) map[string]any {
	if fields == nil {
		return nil
	}
	result := make(map[string]any, len(fields))
	for key, value := range fields {
		if s.isSensitiveKey(key) {
			result[key] = redacted
			continue
		}
		result[key] = s.scrubValue(value)
	}
	return result
}

func (s *Scrubber) scrubValue(value any) any {
	switch v := value.(type) {
	case nil, bool, int, int32, int64, uint, uint32, uint64, float32, float64:
		return v
	case string:
		return s.scrubString(v)
	}

	rendered := fmt.Sprintf("%v", value)
	if strings.Contains(rendered, "(PANIC=") && s.cfg.FailClosed {
		return redactedScrub
	}
	return s.scrubString(rendered)
}

func (s *Scrubber) scrubString(v string) string {
	v = s.ScrubMessage(v)
	if s.cfg.MaxFieldSize > 0 && len(v) > s.cfg.MaxFieldSize {
		v = truncateWithMarker(v, s.cfg.MaxFieldSize)
	}
	return v
}

func (s *Scrubber) isSensitiveKey(key string) bool {
	keyLower := strings.ToLower(key)
	for _, pattern := range s.sensitiveKeys {
		if strings.Contains(keyLower, pattern) {
			return true
		}
	}
	return false
}

func truncateWithMarker(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= len(truncatedMarker) {
		return truncatedMarker[:maxLen]
	}
	return s[:maxLen-len(truncatedMarker)] + truncatedMarker
}
