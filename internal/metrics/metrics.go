// Package metrics records operational metrics of an import run behind a
// small backend-agnostic interface.
//
// A process-wide backend defaults to a no-op, so instrumentation is always
// safe to call. cmd/graphload installs a Prometheus Pushgateway or Datadog
// backend when one is configured; the rest of the code only calls the
// Record helpers below.
package metrics

import (
	"sync"
	"time"
)

// Metric names emitted by the Record helpers.
const (
	EntitiesTotal        = "graphload_entities_total"
	BatchesTotal         = "graphload_batches_total"
	BatchDurationSeconds = "graphload_batch_duration_seconds"
	TaskTotal            = "graphload_task_total"
	StepTotal            = "graphload_step_total"
	StepDurationSeconds  = "graphload_step_duration_seconds"
)

// Labels are string key/value pairs attached to a metric.
type Labels map[string]string

// Backend is the minimal interface for metrics backends.
type Backend interface {
	// IncCounter increments a counter by delta.
	IncCounter(name string, delta float64, labels Labels)
	// ObserveHistogram records a latency/duration style value.
	ObserveHistogram(name string, value float64, labels Labels)
	// Flush pushes or flushes metrics, if the backend needs it.
	Flush() error
}

type nopBackend struct{}

func (nopBackend) IncCounter(string, float64, Labels)       {}
func (nopBackend) ObserveHistogram(string, float64, Labels) {}
func (nopBackend) Flush() error                             { return nil }

var (
	mu      sync.RWMutex
	backend Backend = nopBackend{}
)

// SetBackend installs a concrete backend. Passing nil keeps the existing one.
func SetBackend(b Backend) {
	if b == nil {
		return
	}
	mu.Lock()
	backend = b
	mu.Unlock()
}

func current() Backend {
	mu.RLock()
	defer mu.RUnlock()
	return backend
}

// Flush delegates to the current backend.
func Flush() error { return current().Flush() }

func status(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}

// RecordStep records the outcome and latency of a run step such as
// "reconcile" or "load_vertices".
func RecordStep(step string, err error, d time.Duration) {
	lbls := Labels{"step": step, "status": status(err)}
	b := current()
	b.IncCounter(StepTotal, 1, lbls)
	b.ObserveHistogram(StepDurationSeconds, d.Seconds(), lbls)
}

// RecordEntities counts loaded vertices, edges or vertex properties.
func RecordEntities(kind string, delta int64) {
	if delta <= 0 {
		return
	}
	current().IncCounter(EntitiesTotal, float64(delta), Labels{"kind": kind})
}

// RecordBatch counts one committed batch and its commit latency.
func RecordBatch(kind string, d time.Duration) {
	lbls := Labels{"kind": kind}
	b := current()
	b.IncCounter(BatchesTotal, 1, lbls)
	b.ObserveHistogram(BatchDurationSeconds, d.Seconds(), lbls)
}

// RecordTask counts a finished file task.
func RecordTask(kind string, err error) {
	current().IncCounter(TaskTotal, 1, Labels{"kind": kind, "status": status(err)})
}
