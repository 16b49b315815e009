package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// CacheMetrics records cache manager activity.
type CacheMetrics struct {
	lookups   *prometheus.CounterVec
	writes    *prometheus.CounterVec
	evictions prometheus.Counter
}

// NewCacheMetrics returns nil when metrics are disabled.
func NewCacheMetrics() *CacheMetrics {
	reg := GetRegistry()
	if reg == nil {
		return nil
	}
	return &CacheMetrics{
		lookups: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "cache",
				Name:      "lookups_total",
				Help:      "Cache lookups by result",
			},
			[]string{"result"}, // hit, miss, expired, degraded
		),
		writes: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "cache",
				Name:      "writes_total",
				Help:      "Cache writes by outcome",
			},
			[]string{"outcome"}, // ok, degraded
		),
		evictions: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "cache",
				Name:      "evictions_total",
				Help:      "Expired cache entries deleted",
			},
		),
	}
}

// RecordLookup counts one lookup with the given result label.
func (m *CacheMetrics) RecordLookup(result string) {
	m.lookups.WithLabelValues(result).Inc()
}

// RecordWrite counts one write with the given outcome label.
func (m *CacheMetrics) RecordWrite(outcome string) {
	m.writes.WithLabelValues(outcome).Inc()
}

// RecordEvictions counts n deleted entries.
func (m *CacheMetrics) RecordEvictions(n int) {
	m.evictions.Add(float64(n))
}

// QueueMetrics records offline queue activity.
type QueueMetrics struct {
	depth     prometheus.Gauge
	enqueued  *prometheus.CounterVec
	evictions prometheus.Counter
}

// NewQueueMetrics returns nil when metrics are disabled.
func NewQueueMetrics() *QueueMetrics {
	reg := GetRegistry()
	if reg == nil {
		return nil
	}
	return &QueueMetrics{
		depth: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "queue",
				Name:      "depth",
				Help:      "Items waiting in the offline queue",
			},
		),
		enqueued: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "queue",
				Name:      "enqueued_total",
				Help:      "Actions added to the offline queue by type",
			},
			[]string{"action"},
		),
		evictions: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "queue",
				Name:      "capacity_evictions_total",
				Help:      "Oldest items dropped because the queue was full",
			},
		),
	}
}

// SetDepth records the current queue length.
func (m *QueueMetrics) SetDepth(n int) {
	m.depth.Set(float64(n))
}

// RecordEnqueue counts one enqueued action.
func (m *QueueMetrics) RecordEnqueue(action string) {
	m.enqueued.WithLabelValues(action).Inc()
}

// RecordEvictions counts n capacity evictions.
func (m *QueueMetrics) RecordEvictions(n int) {
	m.evictions.Add(float64(n))
}

// SyncMetrics records sync coordinator activity.
type SyncMetrics struct {
	replays      *prometheus.CounterVec
	dropped      prometheus.Counter
	passDuration prometheus.Histogram
}

// NewSyncMetrics returns nil when metrics are disabled.
func NewSyncMetrics() *SyncMetrics {
	reg := GetRegistry()
	if reg == nil {
		return nil
	}
	return &SyncMetrics{
		replays: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "sync",
				Name:      "replays_total",
				Help:      "Queued actions replayed against the backend by type and outcome",
			},
			[]string{"action", "outcome"}, // outcome: success, failure
		),
		dropped: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "sync",
				Name:      "dropped_total",
				Help:      "Actions discarded after reaching the retry ceiling",
			},
		),
		passDuration: promauto.With(reg).NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "sync",
				Name:      "pass_duration_seconds",
				Help:      "Duration of queue drains",
				Buckets: []float64{
					0.01, // 10ms - empty or tiny queue
					0.05,
					0.1,
					0.5,
					1,
					5,
					10,
					30, // full queue over a slow link
				},
			},
		),
	}
}

// RecordReplay counts one replay attempt.
func (m *SyncMetrics) RecordReplay(action string, ok bool) {
	outcome := "success"
	if !ok {
		outcome = "failure"
	}
	m.replays.WithLabelValues(action, outcome).Inc()
}

// RecordDropped counts n items discarded at the retry ceiling.
func (m *SyncMetrics) RecordDropped(n int) {
	m.dropped.Add(float64(n))
}

// ObservePass records the duration of one drain.
func (m *SyncMetrics) ObservePass(d time.Duration) {
	m.passDuration.Observe(d.Seconds())
}
