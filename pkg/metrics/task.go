package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func (m *Manager) initTaskMetrics(cfg Config) {
	m.taskRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "somnus",
			Subsystem: "task",
			Name:      "runs_total",
			Help:      "Total pipeline runs by result code",
		},
		[]string{"code"},
	)

	m.taskDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "somnus",
			Subsystem: "task",
			Name:      "duration_seconds",
			Help:      "End-to-end pipeline run duration",
			Buckets:   cfg.TaskDurationBuckets,
		},
		[]string{"code"},
	)

	m.stageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "somnus",
			Subsystem: "task",
			Name:      "stage_duration_seconds",
			Help:      "Per-stage pipeline duration",
			Buckets:   cfg.StageDurationBuckets,
		},
		[]string{"stage"},
	)

	m.registry.MustRegister(m.taskRuns, m.taskDuration, m.stageDuration)
}

// RecordTask records one finished pipeline run with its result code.
func (m *Manager) RecordTask(code string, duration time.Duration) {
	if !m.enabled {
		return
	}
	m.taskRuns.WithLabelValues(code).Inc()
	m.taskDuration.WithLabelValues(code).Observe(duration.Seconds())
}

// RecordStage records one pipeline stage duration.
func (m *Manager) RecordStage(stage string, duration time.Duration) {
	if !m.enabled {
		return
	}
	m.stageDuration.WithLabelValues(stage).Observe(duration.Seconds())
}
