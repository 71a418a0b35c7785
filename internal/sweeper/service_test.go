package sweeper

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/angelmondragon/assetcart/pkg/logger"
)

type testJob struct {
	name string
	err  error

	mu   sync.Mutex
	runs int
}

func (t *testJob) Name() string { return t.name }

func (t *testJob) Run(context.Context) error {
	t.mu.Lock()
	t.runs++
	t.mu.Unlock()
	return t.err
}

func (t *testJob) Runs() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.runs
}

type fakeEvictor struct {
	evict    int
	lastIdle time.Duration
}

func (f *fakeEvictor) EvictIdle(_ context.Context, idle time.Duration) int {
	f.lastIdle = idle
	return f.evict
}

func TestRunCycleRunsAllJobsEvenOnFailure(t *testing.T) {
	failing := &testJob{name: "fail", err: errors.New("boom")}
	passing := &testJob{name: "success"}
	service, err := NewService(ServiceParams{
		Logger: logger.Nop(),
		Jobs:   []Job{failing, passing},
	})
	if err != nil {
		t.Fatalf("construct service: %v", err)
	}

	service.runCycle(context.Background())
	if failing.Runs() != 1 || passing.Runs() != 1 {
		t.Fatalf("expected both jobs to run once, got fail=%d success=%d", failing.Runs(), passing.Runs())
	}
}

func TestRunSweepsImmediatelyThenOnTickUntilCanceled(t *testing.T) {
	job := &testJob{name: "tick"}
	service, err := NewService(ServiceParams{
		Logger:   logger.Nop(),
		Jobs:     []Job{job},
		Interval: 5 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("construct service: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- service.Run(ctx) }()

	deadline := time.After(2 * time.Second)
	for job.Runs() < 3 {
		select {
		case <-deadline:
			t.Fatalf("expected at least 3 sweeps, got %d", job.Runs())
		case <-time.After(time.Millisecond):
		}
	}
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("sweeper did not stop after cancel")
	}
}

func TestNewServiceValidatesParams(t *testing.T) {
	if _, err := NewService(ServiceParams{}); err == nil {
		t.Fatal("expected missing logger to be rejected")
	}
	if _, err := NewService(ServiceParams{Logger: logger.Nop(), Jobs: []Job{nil}}); err == nil {
		t.Fatal("expected nil job to be rejected")
	}
	service, err := NewService(ServiceParams{Logger: logger.Nop()})
	if err != nil {
		t.Fatalf("construct service: %v", err)
	}
	if service.interval != defaultInterval {
		t.Fatalf("expected default interval %v, got %v", defaultInterval, service.interval)
	}
}

func TestIdleEvictionJobReportsCount(t *testing.T) {
	evictor := &fakeEvictor{evict: 4}
	var reported int
	job, err := NewIdleEvictionJob("carts", evictor, 30*time.Minute, func(n int) { reported = n })
	if err != nil {
		t.Fatalf("NewIdleEvictionJob: %v", err)
	}

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if evictor.lastIdle != 30*time.Minute {
		t.Fatalf("expected idle 30m, got %v", evictor.lastIdle)
	}
	if reported != 4 {
		t.Fatalf("expected 4 evicted, got %d", reported)
	}
	if job.Name() != "carts" {
		t.Fatalf("unexpected job name %q", job.Name())
	}
}

func TestIdleEvictionJobSkipsWhenCanceled(t *testing.T) {
	evictor := &fakeEvictor{}
	job, err := NewIdleEvictionJob("sessions", evictor, time.Hour, nil)
	if err != nil {
		t.Fatalf("NewIdleEvictionJob: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := job.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if evictor.lastIdle != 0 {
		t.Fatal("evictor should not run after cancel")
	}
}

func TestNewIdleEvictionJobValidates(t *testing.T) {
	if _, err := NewIdleEvictionJob("", &fakeEvictor{}, time.Minute, nil); err == nil {
		t.Fatal("expected blank name to be rejected")
	}
	if _, err := NewIdleEvictionJob("carts", nil, time.Minute, nil); err == nil {
		t.Fatal("expected nil evictor to be rejected")
	}
	if _, err := NewIdleEvictionJob("carts", &fakeEvictor{}, 0, nil); err == nil {
		t.Fatal("expected zero idle to be rejected")
	}
}
