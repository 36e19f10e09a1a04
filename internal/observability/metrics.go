// Package observability provides the Prometheus metrics recorded by the
// estimation pipeline and the HTTP layer.
package observability

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/opencarbon/soilstock/internal/domain"
)

// PipelineMetrics contains all Prometheus metrics related to estimation
// runs.
type PipelineMetrics struct {
	RunsStarted        prometheus.Counter
	RunsCompleted      *prometheus.CounterVec
	RunDuration        prometheus.Histogram
	DepthsProcessed    *prometheus.CounterVec
	StrategiesTrained  *prometheus.CounterVec
	StrategiesSelected *prometheus.CounterVec
	WeightingSkipped   *prometheus.CounterVec
	DepthTrainDuration prometheus.Histogram
	RecordsHarmonized  *prometheus.CounterVec
	SamplesRejected    prometheus.Counter
}

// NewPipelineMetrics creates and registers the pipeline metrics on the
// given registry.
func NewPipelineMetrics(registry *prometheus.Registry) (*PipelineMetrics, error) {
	m := &PipelineMetrics{
		RunsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "soilstock_runs_started_total",
			Help: "Total number of estimation runs started",
		}),
		RunsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "soilstock_runs_completed_total",
			Help: "Total number of estimation runs finished, by outcome",
		}, []string{"status"}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "soilstock_run_duration_seconds",
			Help:    "Wall-clock duration of full estimation runs in seconds",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		}),
		DepthsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "soilstock_depths_processed_total",
			Help: "Total number of per-depth selections produced, by status",
		}, []string{"status"}),
		StrategiesTrained: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "soilstock_strategies_trained_total",
			Help: "Total number of strategy candidates trained, by strategy",
		}, []string{"strategy"}),
		StrategiesSelected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "soilstock_strategies_selected_total",
			Help: "Total number of times each strategy won a depth's selection",
		}, []string{"strategy"}),
		WeightingSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "soilstock_weighting_skipped_total",
			Help: "Total number of depths whose domain weighting degraded to uniform, by reason",
		}, []string{"reason"}),
		DepthTrainDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "soilstock_depth_train_duration_seconds",
			Help:    "Duration of one depth's weighting, training and selection in seconds",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
		RecordsHarmonized: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "soilstock_records_harmonized_total",
			Help: "Total number of harmonized records produced, by confidence",
		}, []string{"confidence"}),
		SamplesRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "soilstock_samples_rejected_total",
			Help: "Total number of raw samples rejected during validation",
		}),
	}

	collectors := []prometheus.Collector{
		m.RunsStarted,
		m.RunsCompleted,
		m.RunDuration,
		m.DepthsProcessed,
		m.StrategiesTrained,
		m.StrategiesSelected,
		m.WeightingSkipped,
		m.DepthTrainDuration,
		m.RecordsHarmonized,
		m.SamplesRejected,
	}
	for _, c := range collectors {
		if err := registry.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register pipeline metrics: %w", err)
		}
	}
	return m, nil
}

// RecordRunStart counts a started run.
func (m *PipelineMetrics) RecordRunStart() {
	if m == nil {
		return
	}
	m.RunsStarted.Inc()
}

// RecordRunEnd counts a finished run and observes its duration.
func (m *PipelineMetrics) RecordRunEnd(status domain.RunStatus, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.RunsCompleted.WithLabelValues(string(status)).Inc()
	m.RunDuration.Observe(elapsed.Seconds())
}

// RecordSelection counts one depth's selection outcome and, when a
// strategy was chosen, its win.
func (m *PipelineMetrics) RecordSelection(result domain.SelectionResult, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.DepthsProcessed.WithLabelValues(string(result.Status)).Inc()
	m.DepthTrainDuration.Observe(elapsed.Seconds())
	for _, c := range result.Candidates {
		m.StrategiesTrained.WithLabelValues(string(c.Kind)).Inc()
	}
	if result.Chosen != nil {
		m.StrategiesSelected.WithLabelValues(string(result.Chosen.Kind)).Inc()
	}
	if result.WeightingFlag != "" {
		m.WeightingSkipped.WithLabelValues(result.WeightingFlag).Inc()
	}
}

// RecordHarmonized counts harmonized records by confidence.
func (m *PipelineMetrics) RecordHarmonized(records []*domain.HarmonizedRecord) {
	if m == nil {
		return
	}
	for _, rec := range records {
		m.RecordsHarmonized.WithLabelValues(string(rec.Confidence)).Inc()
	}
}

// RecordRejectedSamples counts raw samples dropped during validation.
func (m *PipelineMetrics) RecordRejectedSamples(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.SamplesRejected.Add(float64(n))
}
