// Package prompush implements a Prometheus Pushgateway backend for the
// metrics package. A batch job has no scrape endpoint, so the collected
// registry is pushed to the gateway on Flush, grouped by job and run id.
package prompush

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"graphload/internal/metrics"
)

// Backend is a Prometheus Pushgateway metrics backend.
type Backend struct {
	gatewayURL string
	jobName    string
	runID      string
	reg        *prometheus.Registry

	entities      *prometheus.CounterVec // graphload_entities_total{kind}
	batches       *prometheus.CounterVec // graphload_batches_total{kind}
	batchDuration *prometheus.SummaryVec // graphload_batch_duration_seconds{kind}
	tasks         *prometheus.CounterVec // graphload_task_total{kind,status}
	steps         *prometheus.CounterVec // graphload_step_total{step,status}
	stepDuration  *prometheus.SummaryVec // graphload_step_duration_seconds{step,status}
}

// NewBackend constructs a Pushgateway backend. jobName defaults to
// "graphload"; runID, when set, becomes a grouping key so concurrent runs
// do not overwrite each other.
func NewBackend(jobName, gatewayURL, runID string) (*Backend, error) {
	if gatewayURL == "" {
		return nil, fmt.Errorf("prompush: gateway URL is required")
	}
	if jobName == "" {
		jobName = "graphload"
	}

	objectives := map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001}
	b := &Backend{
		gatewayURL: gatewayURL,
		jobName:    jobName,
		runID:      runID,
		reg:        prometheus.NewRegistry(),
		entities: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.EntitiesTotal,
			Help: "Vertices, edges and vertex properties committed, by kind.",
		}, []string{"kind"}),
		batches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.BatchesTotal,
			Help: "Committed mutation batches, by kind.",
		}, []string{"kind"}),
		batchDuration: prometheus.NewSummaryVec(prometheus.SummaryOpts{
			Name:       metrics.BatchDurationSeconds,
			Help:       "Time to apply and commit one batch.",
			Objectives: objectives,
		}, []string{"kind"}),
		tasks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.TaskTotal,
			Help: "Finished file tasks, by kind and status.",
		}, []string{"kind", "status"}),
		steps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.StepTotal,
			Help: "Run steps executed, by step and status.",
		}, []string{"step", "status"}),
		stepDuration: prometheus.NewSummaryVec(prometheus.SummaryOpts{
			Name:       metrics.StepDurationSeconds,
			Help:       "Duration of run steps in seconds.",
			Objectives: objectives,
		}, []string{"step", "status"}),
	}

	for name, c := range map[string]prometheus.Collector{
		"entities counter": b.entities,
		"batch counter":    b.batches,
		"batch summary":    b.batchDuration,
		"task counter":     b.tasks,
		"step counter":     b.steps,
		"step summary":     b.stepDuration,
	} {
		if err := b.reg.Register(c); err != nil {
			return nil, fmt.Errorf("prompush: register %s: %w", name, err)
		}
	}
	return b, nil
}

// IncCounter implements metrics.Backend. Unknown names are ignored.
func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	switch name {
	case metrics.EntitiesTotal:
		if b.entities != nil {
			b.entities.WithLabelValues(labels["kind"]).Add(delta)
		}
	case metrics.BatchesTotal:
		if b.batches != nil {
			b.batches.WithLabelValues(labels["kind"]).Add(delta)
		}
	case metrics.TaskTotal:
		if b.tasks != nil {
			b.tasks.WithLabelValues(labels["kind"], labels["status"]).Add(delta)
		}
	case metrics.StepTotal:
		if b.steps != nil {
			b.steps.WithLabelValues(labels["step"], labels["status"]).Add(delta)
		}
	}
}

// ObserveHistogram implements metrics.Backend. Unknown names are ignored.
func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	switch name {
	case metrics.BatchDurationSeconds:
		if b.batchDuration != nil {
			b.batchDuration.WithLabelValues(labels["kind"]).Observe(value)
		}
	case metrics.StepDurationSeconds:
		if b.stepDuration != nil {
			b.stepDuration.WithLabelValues(labels["step"], labels["status"]).Observe(value)
		}
	}
}

// Flush pushes the current registry to the Pushgateway.
func (b *Backend) Flush() error {
	p := push.New(b.gatewayURL, b.jobName).Gatherer(b.reg)
	if b.runID != "" {
		p = p.Grouping("run_id", b.runID)
	}
	return p.Push()
}
