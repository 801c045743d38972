package daemon

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync/atomic"

	"log/slog"

	"github.com/gofrs/flock"

	"dubmaster/internal/config"
	"dubmaster/internal/deps"
	"dubmaster/internal/fetch"
	"dubmaster/internal/logging"
	"dubmaster/internal/preflight"
	"dubmaster/internal/queue"
	"dubmaster/internal/workflow"
)

// Fetcher acquires source videos for URL-based jobs.
type Fetcher interface {
	Info(ctx context.Context, url string) (*fetch.VideoInfo, error)
	Download(ctx context.Context, url, workDir string) (string, error)
}

// Daemon coordinates background processing and the HTTP API, and enforces
// single-instance execution via a lock file next to the queue database.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *queue.Store
	workflow *workflow.Manager
	fetcher  Fetcher

	lockPath string
	lock     *flock.Flock
	api      *apiServer

	running atomic.Bool
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	Workflow     workflow.Status
	QueueDBPath  string
	LockFilePath string
	APIAddress   string
	Dependencies []deps.Status
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *queue.Store, wf *workflow.Manager, fetcher Fetcher, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || store == nil || wf == nil || fetcher == nil {
		return nil, errors.New("daemon requires config, store, workflow manager, and fetcher")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	lockPath := filepath.Join(cfg.Paths.LogDir, "dubmasterd.lock")
	d := &Daemon{
		cfg:      cfg,
		logger:   logger.With(logging.String(logging.FieldComponent, "daemon")),
		store:    store,
		workflow: wf,
		fetcher:  fetcher,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}
	d.api = newAPIServer(cfg, d, logger)
	return d, nil
}

// Start acquires the daemon lock, launches the workflow manager, and begins
// serving the HTTP API. Missing external binaries are logged but do not block
// startup; they surface again through the health endpoint.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another dubmaster daemon instance is already running")
	}

	for _, status := range preflight.CheckSystemDeps(ctx, d.cfg) {
		if status.Available || status.Optional {
			continue
		}
		d.logger.Warn("required binary unavailable",
			logging.String("name", status.Name),
			logging.String("detail", status.Detail))
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	if err := d.workflow.Start(runCtx); err != nil {
		cancel()
		d.cancel = nil
		_ = d.lock.Unlock()
		return fmt.Errorf("start workflow: %w", err)
	}
	if err := d.api.start(runCtx); err != nil {
		d.workflow.Stop()
		cancel()
		d.cancel = nil
		_ = d.lock.Unlock()
		return err
	}

	d.running.Store(true)
	d.logger.Info("daemon started",
		logging.String("lock", d.lockPath),
		logging.String("api", d.api.addr()))
	return nil
}

// Stop stops background processing and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.api.stop()
	d.workflow.Stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// APIAddr returns the bound API address, or empty before Start.
func (d *Daemon) APIAddr() string {
	return d.api.addr()
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	return Status{
		Running:      d.running.Load(),
		Workflow:     d.workflow.Status(),
		QueueDBPath:  filepath.Join(d.cfg.Paths.LogDir, "jobs.db"),
		LockFilePath: d.lockPath,
		APIAddress:   d.api.addr(),
		Dependencies: preflight.CheckSystemDeps(ctx, d.cfg),
	}
}
