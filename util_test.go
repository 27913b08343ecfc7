package main

import (
	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	// Ensure global logger is available in tests; flow goroutines log.
	if logger == nil {
		initLogger(LoggingConfig{Level: "error", Format: "console", OutputPath: "stderr"})
	}
}

// newTestMetrics returns metrics on a private registry so tests stay
// independent of each other.
func newTestMetrics() *Metrics {
	return NewMetrics(prometheus.NewRegistry())
}
