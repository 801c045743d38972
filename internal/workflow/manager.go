package workflow

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"dubmaster/internal/config"
	"dubmaster/internal/logging"
	"dubmaster/internal/queue"
)

// JobRunner executes the dubbing pipeline for one claimed job.
type JobRunner interface {
	Run(ctx context.Context, job *queue.Job) error
}

// Manager supervises a fixed pool of workers that claim pending jobs from
// the store and run them through the pipeline. Jobs are sequential within
// a worker and concurrent across workers.
type Manager struct {
	cfg           *config.Config
	store         *queue.Store
	runner        JobRunner
	logger        *slog.Logger
	pollInterval  time.Duration
	retryInterval time.Duration

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	lastErr error
	active  int
}

// Status is a point-in-time snapshot of the manager.
type Status struct {
	Running    bool
	Workers    int
	ActiveJobs int
	LastError  string
}

// NewManager constructs a workflow manager.
func NewManager(cfg *config.Config, store *queue.Store, runner JobRunner, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Manager{
		cfg:           cfg,
		store:         store,
		runner:        runner,
		logger:        logger.With(logging.String(logging.FieldComponent, "workflow")),
		pollInterval:  time.Duration(cfg.Workflow.QueuePollInterval) * time.Second,
		retryInterval: time.Duration(cfg.Workflow.ErrorRetryInterval) * time.Second,
	}
}

// Start launches the worker pool. Jobs left in processing by an unclean
// shutdown are returned to pending first so they get picked up again.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return errors.New("workflow already running")
	}

	workers := m.cfg.Workflow.MaxConcurrentJobs
	if workers <= 0 {
		workers = 1
	}

	reset, err := m.store.ResetStuckProcessing(ctx)
	if err != nil {
		m.mu.Unlock()
		return err
	}
	if reset > 0 {
		m.logger.Info("reset jobs stuck in processing", logging.Int64("count", reset))
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true
	m.wg.Add(workers)
	m.mu.Unlock()

	for i := 0; i < workers; i++ {
		go m.runWorker(runCtx, i)
	}
	m.logger.Info("workflow started", logging.Int("workers", workers))
	return nil
}

// Stop terminates background processing and waits for in-flight jobs.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
	m.logger.Info("workflow stopped")
}

// Status reports the current manager state.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	status := Status{
		Running:    m.running,
		Workers:    m.cfg.Workflow.MaxConcurrentJobs,
		ActiveJobs: m.active,
	}
	if m.lastErr != nil {
		status.LastError = m.lastErr.Error()
	}
	return status
}

func (m *Manager) runWorker(ctx context.Context, id int) {
	defer m.wg.Done()
	logger := m.logger.With(logging.Int("worker", id))

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		job, err := m.store.ClaimNextPending(ctx)
		if err != nil {
			m.setLastError(err)
			logger.Error("failed to claim next job", logging.Error(err))
			if !m.sleep(ctx, m.retryInterval) {
				return
			}
			continue
		}
		if job == nil {
			if !m.sleep(ctx, m.pollInterval) {
				return
			}
			continue
		}

		m.trackActive(1)
		logger.Info("job claimed", logging.String(logging.FieldJobID, job.ID))
		if err := m.runner.Run(ctx, job); err != nil {
			m.setLastError(err)
			if errors.Is(err, context.Canceled) {
				m.trackActive(-1)
				return
			}
			logger.Error("job failed",
				logging.String(logging.FieldJobID, job.ID),
				logging.Error(err))
		} else {
			m.setLastError(nil)
			logger.Info("job finished", logging.String(logging.FieldJobID, job.ID))
		}
		m.trackActive(-1)
	}
}

func (m *Manager) sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		d = time.Second
	}
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}

func (m *Manager) setLastError(err error) {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
}

func (m *Manager) trackActive(delta int) {
	m.mu.Lock()
	m.active += delta
	m.mu.Unlock()
}
