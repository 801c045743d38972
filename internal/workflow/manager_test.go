package workflow_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"dubmaster/internal/queue"
	"dubmaster/internal/testsupport"
	"dubmaster/internal/workflow"
)

type recordingRunner struct {
	store   *queue.Store
	mu      sync.Mutex
	ran     []string
	block   chan struct{}
	fail    bool
	maxSeen int32
	active  int32
}

func (r *recordingRunner) Run(ctx context.Context, job *queue.Job) error {
	current := atomic.AddInt32(&r.active, 1)
	defer atomic.AddInt32(&r.active, -1)
	for {
		max := atomic.LoadInt32(&r.maxSeen)
		if current <= max || atomic.CompareAndSwapInt32(&r.maxSeen, max, current) {
			break
		}
	}

	if r.block != nil {
		select {
		case <-r.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	r.mu.Lock()
	r.ran = append(r.ran, job.ID)
	r.mu.Unlock()

	if r.fail {
		job.SetFailed(1, "Extracting Audio", "boom", "EXTRACTION_FAILED")
	} else {
		job.SetCompleted("/tmp/out.mp4", "Dubbing complete")
	}
	if r.store != nil {
		return r.store.Update(context.Background(), job)
	}
	return nil
}

func (r *recordingRunner) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.ran)
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func TestManagerProcessesPendingJobs(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Workflow.QueuePollInterval = 1
	cfg.Workflow.MaxConcurrentJobs = 2
	store := testsupport.MustOpenStore(t, cfg)

	for i := 0; i < 3; i++ {
		testsupport.NewJob(t, store, queue.Request{SourcePath: fmt.Sprintf("/tmp/%d.mp4", i)})
	}

	runner := &recordingRunner{store: store}
	mgr := workflow.NewManager(cfg, store, runner, nil)
	if err := mgr.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer mgr.Stop()

	waitFor(t, 5*time.Second, func() bool { return runner.count() == 3 })

	health, err := store.Health(context.Background())
	if err != nil {
		t.Fatalf("Health failed: %v", err)
	}
	if health.Pending != 0 || health.Processing != 0 {
		t.Fatalf("queue not drained: %#v", health)
	}
}

func TestManagerBoundsConcurrency(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Workflow.QueuePollInterval = 1
	cfg.Workflow.MaxConcurrentJobs = 2
	store := testsupport.MustOpenStore(t, cfg)

	for i := 0; i < 6; i++ {
		testsupport.NewJob(t, store, queue.Request{SourcePath: fmt.Sprintf("/tmp/%d.mp4", i)})
	}

	block := make(chan struct{})
	runner := &recordingRunner{store: store, block: block}
	mgr := workflow.NewManager(cfg, store, runner, nil)
	if err := mgr.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer mgr.Stop()

	waitFor(t, 5*time.Second, func() bool { return atomic.LoadInt32(&runner.active) == 2 })
	close(block)
	waitFor(t, 5*time.Second, func() bool { return runner.count() == 6 })

	if max := atomic.LoadInt32(&runner.maxSeen); max > 2 {
		t.Fatalf("concurrency bound exceeded: %d", max)
	}
}

func TestManagerStartResetsStuckJobs(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Workflow.QueuePollInterval = 1
	cfg.Workflow.MaxConcurrentJobs = 1
	store := testsupport.MustOpenStore(t, cfg)

	job := testsupport.NewJob(t, store, queue.Request{SourcePath: "/tmp/a.mp4"})
	job.SetStep(2, "Transcribing Speech", 20, "Transcribing speech")
	if err := store.Update(context.Background(), job); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	runner := &recordingRunner{store: store}
	mgr := workflow.NewManager(cfg, store, runner, nil)
	if err := mgr.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer mgr.Stop()

	waitFor(t, 5*time.Second, func() bool { return runner.count() == 1 })
}

func TestManagerStartTwiceFails(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Workflow.MaxConcurrentJobs = 1
	store := testsupport.MustOpenStore(t, cfg)

	mgr := workflow.NewManager(cfg, store, &recordingRunner{}, nil)
	if err := mgr.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer mgr.Stop()

	if err := mgr.Start(context.Background()); err == nil {
		t.Fatal("second Start must fail")
	}
}

func TestManagerStopIsIdempotent(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Workflow.MaxConcurrentJobs = 1
	store := testsupport.MustOpenStore(t, cfg)

	mgr := workflow.NewManager(cfg, store, &recordingRunner{}, nil)
	if err := mgr.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	mgr.Stop()
	mgr.Stop()

	if status := mgr.Status(); status.Running {
		t.Fatal("manager should report stopped")
	}
}

func TestManagerStatusSnapshot(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Workflow.MaxConcurrentJobs = 3
	store := testsupport.MustOpenStore(t, cfg)

	mgr := workflow.NewManager(cfg, store, &recordingRunner{fail: true}, nil)
	status := mgr.Status()
	if status.Running {
		t.Fatal("not started yet")
	}
	if status.Workers != 3 {
		t.Fatalf("expected 3 workers, got %d", status.Workers)
	}
	if status.LastError != "" {
		t.Fatalf("expected no error, got %q", status.LastError)
	}
}
