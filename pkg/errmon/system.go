// system.go captures process state for health reports.

package errmon

import (
	"os"
	"runtime"
	"time"
)

// SystemState captures process metrics at report time.
type SystemState struct {
	MemoryBytes    int64  `json:"memory_bytes" yaml:"memory_bytes"`
	GoroutineCount int    `json:"goroutine_count" yaml:"goroutine_count"`
	UptimeMs       int64  `json:"uptime_ms" yaml:"uptime_ms"`
	HostName       string `json:"host_name" yaml:"host_name"`
}

// CaptureSystemState samples the current process. startTime is used to
// compute uptime.
func CaptureSystemState(startTime time.Time) *SystemState {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	hostname, _ := os.Hostname() // empty hostname is acceptable

	uptimeMs := time.Since(startTime).Milliseconds()
	if uptimeMs < 0 {
		uptimeMs = 0
	}

	return &SystemState{
		MemoryBytes:    int64(memStats.Alloc),
		GoroutineCount: runtime.NumGoroutine(),
		UptimeMs:       uptimeMs,
		HostName:       hostname,
	}
}
