// Package stats holds the process-wide load counters of an import run and
// the background reporter that logs them on a fixed interval.
package stats

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"graphload/internal/metrics"
	"graphload/internal/workload"
)

// DefaultInterval is the reporting period used when none is configured.
const DefaultInterval = 5 * time.Second

// LoadingStats counts committed entities. All methods are safe for
// concurrent use.
type LoadingStats struct {
	vertices   atomic.Int64
	edges      atomic.Int64
	properties atomic.Int64
	batches    atomic.Int64
	started    time.Time
}

// New returns zeroed counters started now.
func New() *LoadingStats { return &LoadingStats{started: time.Now()} }

// Add records n committed rows of kind and one batch.
func (s *LoadingStats) Add(kind workload.Kind, n int64) {
	switch kind {
	case workload.KindVertex:
		s.vertices.Add(n)
	case workload.KindEdge:
		s.edges.Add(n)
	case workload.KindVertexProperty:
		s.properties.Add(n)
	}
	s.batches.Add(1)
	metrics.RecordEntities(kind.String(), n)
}

// Snapshot is a point-in-time copy of the counters.
type Snapshot struct {
	Vertices   int64
	Edges      int64
	Properties int64
	Batches    int64
	Elapsed    time.Duration
}

// Snapshot reads the counters.
func (s *LoadingStats) Snapshot() Snapshot {
	return Snapshot{
		Vertices:   s.vertices.Load(),
		Edges:      s.edges.Load(),
		Properties: s.properties.Load(),
		Batches:    s.batches.Load(),
		Elapsed:    time.Since(s.started),
	}
}

// Reporter periodically logs a LoadingStats snapshot with per-second rates
// since the previous report.
type Reporter struct {
	stats    *LoadingStats
	interval time.Duration
	logger   *zap.SugaredLogger

	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// NewReporter returns a stopped Reporter. A non-positive interval uses
// DefaultInterval.
func NewReporter(s *LoadingStats, interval time.Duration, logger *zap.SugaredLogger) *Reporter {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Reporter{stats: s, interval: interval, logger: logger}
}

// Start launches the reporting goroutine. It runs until Stop or until ctx
// ends.
func (r *Reporter) Start(ctx context.Context) {
	ctx, r.cancel = context.WithCancel(ctx)
	r.done = make(chan struct{})
	go r.loop(ctx)
}

func (r *Reporter) loop(ctx context.Context) {
	defer close(r.done)
	t := time.NewTicker(r.interval)
	defer t.Stop()

	prev := r.stats.Snapshot()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			cur := r.stats.Snapshot()
			secs := (cur.Elapsed - prev.Elapsed).Seconds()
			r.logger.Infof("stats: vertices=%d edges=%d vps=%d batches=%d vps_rate=%d eps_rate=%d elapsed=%s",
				cur.Vertices, cur.Edges, cur.Properties, cur.Batches,
				rate(cur.Vertices-prev.Vertices, secs), rate(cur.Edges-prev.Edges, secs),
				cur.Elapsed.Truncate(time.Millisecond))
			prev = cur
		}
	}
}

// Stop cancels the reporter and waits for its goroutine to exit. A report
// in progress finishes first. Stop is idempotent and a no-op before Start.
func (r *Reporter) Stop() {
	r.once.Do(func() {
		if r.cancel == nil {
			return
		}
		r.cancel()
		<-r.done
	})
}

func rate(delta int64, secs float64) int64 {
	if secs <= 0 {
		return 0
	}
	return int64(float64(delta) / secs)
}
