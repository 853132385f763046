package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func (m *Manager) initMemoryMetrics(cfg Config) {
	m.memoryOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "somnus",
			Subsystem: "memory",
			Name:      "ops_total",
			Help:      "Memory backend operations by op, tier and outcome",
		},
		[]string{"op", "tier", "outcome"},
	)

	m.memoryOpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "somnus",
			Subsystem: "memory",
			Name:      "op_duration_seconds",
			Help:      "Memory backend operation duration",
			Buckets:   cfg.MemoryDurationBuckets,
		},
		[]string{"op", "tier"},
	)

	m.registry.MustRegister(m.memoryOps, m.memoryOpDuration)
}

// RecordMemoryOp records one memory backend operation. Satisfies the store's
// OpRecorder interface.
func (m *Manager) RecordMemoryOp(op string, tier string, duration time.Duration, err error) {
	if !m.enabled {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.memoryOps.WithLabelValues(op, tier, outcome).Inc()
	m.memoryOpDuration.WithLabelValues(op, tier).Observe(duration.Seconds())
}
