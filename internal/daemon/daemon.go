package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/gofrs/flock"

	"linksort/internal/config"
	"linksort/internal/logging"
	"linksort/internal/organize"
)

// Runner is the scheduler loop the daemon hosts.
type Runner interface {
	Run(ctx context.Context) error
}

// Jobs is the organize surface the daemon needs.
type Jobs interface {
	Recover(ctx context.Context) (bool, error)
	Status(ctx context.Context) (organize.Status, error)
}

// Daemon hosts the scheduler loop and enforces single-instance execution.
type Daemon struct {
	cfg    *config.Config
	logger *slog.Logger
	runner Runner
	jobs   Jobs
	server *apiServer

	lockPath string
	lock     *flock.Flock

	mu      sync.Mutex
	running atomic.Bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	PID          int
	LockFilePath string
	Job          organize.Status
	JobError     string
}

// New constructs a daemon.
func New(cfg *config.Config, runner Runner, jobs Jobs, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || runner == nil || jobs == nil {
		return nil, errors.New("daemon requires config, scheduler, and organize jobs")
	}
	lockPath := cfg.LockPath()
	d := &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		runner:   runner,
		jobs:     jobs,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}
	d.server = newAPIServer(cfg, d, d.logger)
	return d, nil
}

// Start acquires the lock, re-arms an orphaned job, and launches the
// scheduler loop and HTTP endpoint.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	if err := os.MkdirAll(filepath.Dir(d.lockPath), 0o755); err != nil {
		return fmt.Errorf("ensure lock directory: %w", err)
	}
	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another linksort daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	if rearmed, err := d.jobs.Recover(runCtx); err != nil {
		logging.WarnWithContext(d.logger, "job recovery check failed", "job_recovery_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check job store connectivity"),
			logging.String(logging.FieldImpact, "an orphaned job waits for its next alarm"))
	} else if rearmed {
		d.logger.Info("resuming orphaned organize job", logging.String(logging.FieldEventType, "job_resumed"))
	}

	if err := d.server.start(runCtx); err != nil {
		cancel()
		_ = d.lock.Unlock()
		return err
	}

	d.cancel = cancel
	d.done = make(chan struct{})
	go func(done chan struct{}) {
		defer close(done)
		if err := d.runner.Run(runCtx); err != nil {
			d.logger.Error("scheduler loop stopped",
				logging.Error(err),
				logging.String(logging.FieldEventType, "scheduler_stopped"),
				logging.String(logging.FieldErrorHint, "restart the daemon"))
		}
	}(d.done)

	d.running.Store(true)
	d.logger.Info("linksort daemon started",
		logging.String(logging.FieldEventType, "daemon_started"),
		logging.String("lock", d.lockPath))
	return nil
}

// Stop halts the scheduler loop and releases the lock. A batch in flight is
// interrupted; its lease fires again on the next start.
func (d *Daemon) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.running.Load() {
		return
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	if d.done != nil {
		<-d.done
		d.done = nil
	}
	d.server.stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock",
			logging.Error(err),
			logging.String(logging.FieldEventType, "daemon_unlock_failed"),
			logging.String(logging.FieldErrorHint, "remove the lock file manually"),
			logging.String(logging.FieldImpact, "next daemon start may fail"))
	}
	d.running.Store(false)
	d.logger.Info("linksort daemon stopped", logging.String(logging.FieldEventType, "daemon_stopped"))
}

// Status returns the current daemon and job status.
func (d *Daemon) Status(ctx context.Context) Status {
	status := Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		LockFilePath: d.lockPath,
	}
	job, err := d.jobs.Status(ctx)
	if err != nil {
		status.JobError = err.Error()
	} else {
		status.Job = job
	}
	return status
}

// Addr returns the bound HTTP address, or "" when the endpoint is disabled.
func (d *Daemon) Addr() string {
	return d.server.addr()
}
