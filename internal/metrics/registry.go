// Package metrics provides Prometheus implementations of the metrics hooks
// exposed by the cache, queue and syncer packages.
//
// Metrics are opt-in. Until InitRegistry is called every constructor returns
// nil, and components treat a nil hook as "metrics disabled" (zero overhead).
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "homeiq"

var (
	mu       sync.RWMutex
	registry *prometheus.Registry
)

// InitRegistry creates the process-wide registry with Go runtime collectors.
// Calling it again replaces the registry (used by tests).
func InitRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	mu.Lock()
	registry = reg
	mu.Unlock()
	return reg
}

// IsEnabled reports whether InitRegistry has been called.
func IsEnabled() bool {
	mu.RLock()
	defer mu.RUnlock()
	return registry != nil
}

// GetRegistry returns the registry, or nil when metrics are disabled.
func GetRegistry() *prometheus.Registry {
	mu.RLock()
	defer mu.RUnlock()
	return registry
}

// Reset disables metrics again.
func Reset() {
	mu.Lock()
	registry = nil
	mu.Unlock()
}
