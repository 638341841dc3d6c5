package metrics

import (
	"errors"
	"sync"
	"testing"
	"time"
)

// fakeBackend is an in-memory Backend for tests.
type fakeBackend struct {
	mu sync.Mutex

	counters   []counterCall
	histograms []histCall
	flushCount int
}

type counterCall struct {
	name   string
	delta  float64
	labels Labels
}

type histCall struct {
	name   string
	value  float64
	labels Labels
}

func (f *fakeBackend) IncCounter(name string, delta float64, labels Labels) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counters = append(f.counters, counterCall{name, delta, labels})
}

func (f *fakeBackend) ObserveHistogram(name string, value float64, labels Labels) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.histograms = append(f.histograms, histCall{name, value, labels})
}

func (f *fakeBackend) Flush() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.flushCount++
	return nil
}

// swap installs fb for the duration of a test. Tests using it do not run in
// parallel because the backend is process-wide.
func swap(t *testing.T, fb Backend) {
	t.Helper()
	orig := current()
	SetBackend(fb)
	t.Cleanup(func() { SetBackend(orig) })
}

func TestRecordStep_SuccessAndFailure(t *testing.T) {
	fb := &fakeBackend{}
	swap(t, fb)

	RecordStep("reconcile", nil, 2*time.Second)
	RecordStep("load_edges", errors.New("boom"), 1500*time.Millisecond)

	if len(fb.counters) != 2 || len(fb.histograms) != 2 {
		t.Fatalf("counters=%d histograms=%d, want 2/2", len(fb.counters), len(fb.histograms))
	}
	c0 := fb.counters[0]
	if c0.name != StepTotal || c0.labels["step"] != "reconcile" || c0.labels["status"] != "success" {
		t.Fatalf("counter[0] = %#v", c0)
	}
	if h := fb.histograms[0]; h.name != StepDurationSeconds || h.value < 1.999 || h.value > 2.001 {
		t.Fatalf("hist[0] = %#v, want ~2s", h)
	}
	if c1 := fb.counters[1]; c1.labels["status"] != "failure" {
		t.Fatalf("counter[1].labels[status] = %q, want failure", c1.labels["status"])
	}
}

func TestRecordEntitiesBatchesTasks(t *testing.T) {
	fb := &fakeBackend{}
	swap(t, fb)

	RecordEntities("vertex", 3)
	RecordEntities("vertex", 0) // ignored
	RecordBatch("edge", 10*time.Millisecond)
	RecordTask("edge", errors.New("bad row"))

	if len(fb.counters) != 3 {
		t.Fatalf("expected 3 counter calls, got %d", len(fb.counters))
	}
	if c := fb.counters[0]; c.name != EntitiesTotal || c.delta != 3 || c.labels["kind"] != "vertex" {
		t.Fatalf("counter[0] = %#v", c)
	}
	if c := fb.counters[1]; c.name != BatchesTotal || c.labels["kind"] != "edge" {
		t.Fatalf("counter[1] = %#v", c)
	}
	if c := fb.counters[2]; c.name != TaskTotal || c.labels["status"] != "failure" {
		t.Fatalf("counter[2] = %#v", c)
	}
	if len(fb.histograms) != 1 || fb.histograms[0].name != BatchDurationSeconds {
		t.Fatalf("histograms = %#v", fb.histograms)
	}
}

func TestSetBackendAndFlush(t *testing.T) {
	fb := &fakeBackend{}
	swap(t, fb)

	if current() != fb {
		t.Fatal("SetBackend did not replace global backend")
	}
	if err := Flush(); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}
	if fb.flushCount != 1 {
		t.Fatalf("flushCount = %d, want 1", fb.flushCount)
	}
	SetBackend(nil)
	if current() != fb {
		t.Fatal("SetBackend(nil) should not change backend")
	}
}
