package pipeline

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	globalMetrics *Metrics
	metricsOnce   sync.Once
)

// Metrics holds Prometheus metrics for pipeline runs.
type Metrics struct {
	RunsTotal          *prometheus.CounterVec
	StageFailuresTotal *prometheus.CounterVec
	StageDuration      *prometheus.HistogramVec
	PostsTotal         *prometheus.CounterVec
}

// NewMetrics creates and registers the pipeline metrics once per process.
//
// Metrics:
//   - autoshorts_pipeline_runs_total{outcome}
//   - autoshorts_pipeline_stage_failures_total{stage}
//   - autoshorts_pipeline_stage_duration_seconds{stage}
//   - autoshorts_pipeline_posts_total{platform,status}
func NewMetrics() *Metrics {
	metricsOnce.Do(func() {
		globalMetrics = &Metrics{
			RunsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "autoshorts_pipeline_runs_total",
					Help: "Total number of pipeline runs by outcome",
				},
				[]string{"outcome"}, // "done" or "failed"
			),

			StageFailuresTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "autoshorts_pipeline_stage_failures_total",
					Help: "Total number of failed pipeline stages",
				},
				[]string{"stage"},
			),

			StageDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "autoshorts_pipeline_stage_duration_seconds",
					Help:    "Duration of pipeline stages in seconds",
					Buckets: prometheus.ExponentialBuckets(0.5, 2, 11), // 0.5s to ~8.5m
				},
				[]string{"stage"},
			),

			PostsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "autoshorts_pipeline_posts_total",
					Help: "Total number of publish attempts by platform and status",
				},
				[]string{"platform", "status"},
			),
		}
	})

	return globalMetrics
}

func (m *Metrics) recordStage(stage string, elapsed time.Duration, err error) {
	m.StageDuration.WithLabelValues(stage).Observe(elapsed.Seconds())
	if err != nil {
		m.StageFailuresTotal.WithLabelValues(stage).Inc()
	}
}

func (m *Metrics) recordRun(run *Run) {
	m.RunsTotal.WithLabelValues(run.State.String()).Inc()
	for _, p := range run.Posts {
		m.PostsTotal.WithLabelValues(string(p.Platform), string(p.Status)).Inc()
	}
}
