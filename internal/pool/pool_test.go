package pool

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func TestPool_RunsAllJobs(t *testing.T) {
	t.Parallel()

	p := New(context.Background(), "test", 4, 2)
	var n atomic.Int64
	for i := 0; i < 100; i++ {
		if err := p.Submit(context.Background(), func(context.Context) error {
			n.Add(1)
			return nil
		}); err != nil {
			t.Fatalf("Submit() error = %v", err)
		}
	}
	if err := p.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if n.Load() != 100 {
		t.Fatalf("ran %d jobs, want 100", n.Load())
	}
	if s := p.Stats(); s.Submitted != 100 || s.Completed != 100 || s.Failed != 0 {
		t.Fatalf("Stats() = %+v", s)
	}
}

func TestPool_SubmitBlocksWhenQueueFull(t *testing.T) {
	t.Parallel()

	p := New(context.Background(), "test", 1, 1)
	release := make(chan struct{})
	started := make(chan struct{})
	block := func(context.Context) error { <-release; return nil }

	// The worker takes the first job and parks; the second fills the queue.
	if err := p.Submit(context.Background(), func(ctx context.Context) error {
		close(started)
		return block(ctx)
	}); err != nil {
		t.Fatalf("Submit(1) error = %v", err)
	}
	<-started
	if err := p.Submit(context.Background(), block); err != nil {
		t.Fatalf("Submit(2) error = %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- p.Submit(context.Background(), block) }()

	select {
	case err := <-done:
		t.Fatalf("Submit(3) returned %v while queue was full", err)
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Submit(3) error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("Submit(3) still blocked after queue drained")
	}
	if err := p.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
}

func TestPool_SubmitHonoursContext(t *testing.T) {
	t.Parallel()

	p := New(context.Background(), "test", 1, 0)
	release := make(chan struct{})
	started := make(chan struct{})
	_ = p.Submit(context.Background(), func(context.Context) error {
		close(started)
		<-release
		return nil
	})
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := p.Submit(ctx, func(context.Context) error { return nil }); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Submit() error = %v, want DeadlineExceeded", err)
	}
	close(release)
	_ = p.Stop()
}

func TestPool_StopReportsFirstFailure(t *testing.T) {
	t.Parallel()

	p := New(context.Background(), "test", 1, 4)
	errFirst := errors.New("first")
	errSecond := errors.New("second")
	_ = p.Submit(context.Background(), func(context.Context) error { return errFirst })
	_ = p.Submit(context.Background(), func(context.Context) error { return nil })
	_ = p.Submit(context.Background(), func(context.Context) error { return errSecond })

	err := p.Stop()
	if !errors.Is(err, errFirst) || !errors.Is(err, errSecond) {
		t.Fatalf("Stop() error = %v, want both failures", err)
	}
	if strings.Index(err.Error(), "first") > strings.Index(err.Error(), "second") {
		t.Fatalf("Stop() error = %q, want first failure listed first", err)
	}
	if again := p.Stop(); again != err {
		t.Fatalf("second Stop() = %v, want %v", again, err)
	}
	if s := p.Stats(); s.Failed != 2 {
		t.Fatalf("Stats().Failed = %d, want 2", s.Failed)
	}
}

func TestPool_RecoversPanics(t *testing.T) {
	t.Parallel()

	p := New(context.Background(), "test", 1, 4)
	var ran atomic.Bool
	_ = p.Submit(context.Background(), func(context.Context) error { panic("boom") })
	_ = p.Submit(context.Background(), func(context.Context) error { ran.Store(true); return nil })

	err := p.Stop()
	if err == nil || !strings.Contains(err.Error(), "boom") {
		t.Fatalf("Stop() error = %v, want panic error", err)
	}
	if !ran.Load() {
		t.Fatalf("job after panic did not run")
	}
}

func TestPool_SubmitAfterStop(t *testing.T) {
	t.Parallel()

	p := New(context.Background(), "test", 2, 2)
	if err := p.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if err := p.Submit(context.Background(), func(context.Context) error { return nil }); !errors.Is(err, ErrStopped) {
		t.Fatalf("Submit() error = %v, want ErrStopped", err)
	}
}
