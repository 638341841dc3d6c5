package prompush

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"graphload/internal/metrics"
)

func TestNewBackend(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		jobName     string
		gatewayURL  string
		wantErr     bool
		wantJobName string
	}{
		{name: "missing gateway URL returns error", jobName: "graphload", wantErr: true},
		{name: "empty job name uses default", gatewayURL: "http://pushgateway:9091", wantJobName: "graphload"},
		{name: "explicit job name is preserved", jobName: "ldbc-sf1", gatewayURL: "http://pushgateway:9091", wantJobName: "ldbc-sf1"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			b, err := NewBackend(tt.jobName, tt.gatewayURL, "")
			if tt.wantErr {
				if err == nil || b != nil {
					t.Fatalf("NewBackend(%q, %q) = %v, %v; want nil, error", tt.jobName, tt.gatewayURL, b, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("NewBackend(%q, %q) error = %v", tt.jobName, tt.gatewayURL, err)
			}
			if b.jobName != tt.wantJobName {
				t.Fatalf("backend.jobName = %q, want %q", b.jobName, tt.wantJobName)
			}
		})
	}
}

func TestIncCounterAndObserve(t *testing.T) {
	t.Parallel()

	b, err := NewBackend("graphload", "http://example.com", "")
	if err != nil {
		t.Fatalf("NewBackend() error = %v", err)
	}
	b.IncCounter(metrics.EntitiesTotal, 5, metrics.Labels{"kind": "vertex"})
	b.IncCounter(metrics.EntitiesTotal, 2, metrics.Labels{"kind": "vertex"})
	b.IncCounter(metrics.BatchesTotal, 1, metrics.Labels{"kind": "edge"})
	b.IncCounter(metrics.TaskTotal, 1, metrics.Labels{"kind": "edge", "status": "failure"})
	b.IncCounter("unknown_metric", 10, metrics.Labels{"foo": "bar"})
	b.ObserveHistogram(metrics.BatchDurationSeconds, 0.25, metrics.Labels{"kind": "edge"})

	if got := testutil.ToFloat64(b.entities.WithLabelValues("vertex")); got != 7 {
		t.Fatalf("entities{vertex} = %v, want 7", got)
	}
	if got := testutil.ToFloat64(b.batches.WithLabelValues("edge")); got != 1 {
		t.Fatalf("batches{edge} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(b.tasks.WithLabelValues("edge", "failure")); got != 1 {
		t.Fatalf("tasks{edge,failure} = %v, want 1", got)
	}
	if got := testutil.CollectAndCount(b.batchDuration); got != 1 {
		t.Fatalf("batch duration series = %d, want 1", got)
	}
}

func TestIncCounterNilCollectors(t *testing.T) {
	t.Parallel()

	b := &Backend{}
	b.IncCounter(metrics.EntitiesTotal, 1, metrics.Labels{"kind": "vertex"})
	b.IncCounter(metrics.StepTotal, 1, metrics.Labels{"step": "s", "status": "success"})
	b.ObserveHistogram(metrics.StepDurationSeconds, 1, metrics.Labels{})
}

func TestFlush_PushesGroupedByRun(t *testing.T) {
	t.Parallel()

	type pushed struct {
		method, path string
		bodyLen      int
	}
	reqCh := make(chan pushed, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		body, _ := io.ReadAll(r.Body)
		reqCh <- pushed{method: r.Method, path: r.URL.Path, bodyLen: len(body)}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	b, err := NewBackend("graphload", server.URL, "run-1")
	if err != nil {
		t.Fatalf("NewBackend() error = %v", err)
	}
	b.IncCounter(metrics.EntitiesTotal, 1, metrics.Labels{"kind": "vertex"})
	if err := b.Flush(); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}

	select {
	case got := <-reqCh:
		if got.method != http.MethodPut {
			t.Fatalf("method = %q, want PUT", got.method)
		}
		if !strings.Contains(got.path, "/job/graphload") || !strings.Contains(got.path, "/run_id/run-1") {
			t.Fatalf("path = %q, want job and run_id grouping", got.path)
		}
		if got.bodyLen == 0 {
			t.Fatalf("push body is empty")
		}
	default:
		t.Fatalf("Flush() sent no request")
	}
}
