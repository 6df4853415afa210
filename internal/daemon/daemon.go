package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"

	"github.com/gofrs/flock"

	"crmflow/internal/api"
	"crmflow/internal/config"
	"crmflow/internal/engine"
	"crmflow/internal/logging"
	"crmflow/internal/reminders"
)

// Daemon coordinates the reminder runner and the HTTP API and enforces
// single-instance execution.
type Daemon struct {
	cfg     *config.Config
	logger  *slog.Logger
	engine  *engine.Engine
	service *api.Service

	lockPath string
	lock     *flock.Flock

	mu      sync.Mutex
	api     *apiServer
	running atomic.Bool
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	PID          int
	DatabasePath string
	LockFilePath string
	APIAddress   string
	Channels     []string
	Reminders    reminders.RunnerStatus
}

// New constructs a daemon around an assembled engine.
func New(cfg *config.Config, eng *engine.Engine, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || eng == nil {
		return nil, errors.New("daemon requires config and engine")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	lockPath := cfg.LockPath()
	return &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		engine:   eng,
		service:  api.NewService(eng),
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}, nil
}

// Start acquires the daemon lock, starts the reminder runner and, when a bind
// address is configured, the HTTP API.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another crmflow daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.engine.Runner.Start(runCtx); err != nil {
		cancel()
		_ = d.lock.Unlock()
		return fmt.Errorf("start reminder runner: %w", err)
	}

	srv := newAPIServer(d.cfg, d, d.logger)
	if err := srv.start(runCtx); err != nil {
		d.engine.Runner.Stop()
		cancel()
		_ = d.lock.Unlock()
		return err
	}

	d.api = srv
	d.cancel = cancel
	d.running.Store(true)
	d.logger.Info("crmflow daemon started",
		logging.String("lock", d.lockPath),
		logging.String(logging.FieldEventType, "daemon_started"),
	)
	return nil
}

// Stop halts background work and releases the daemon lock.
func (d *Daemon) Stop() {
	d.mu.Lock()
	if !d.running.Load() {
		d.mu.Unlock()
		return
	}
	srv, cancel := d.api, d.cancel
	d.api = nil
	d.cancel = nil
	d.running.Store(false)
	d.mu.Unlock()

	srv.stop()
	d.engine.Runner.Stop()
	if cancel != nil {
		cancel()
	}
	if err := d.lock.Unlock(); err != nil {
		logging.WarnWithContext(d.logger, "failed to release daemon lock", "daemon_lock_release_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "remove the lock file if the next start fails"),
		)
	}
	d.logger.Info("crmflow daemon stopped", logging.String(logging.FieldEventType, "daemon_stopped"))
}

// Close stops the daemon and closes the store.
func (d *Daemon) Close() error {
	d.Stop()
	if d.engine.Store != nil {
		return d.engine.Store.Close()
	}
	return nil
}

// Service returns the operation surface shared by HTTP and IPC.
func (d *Daemon) Service() *api.Service {
	return d.service
}

// Status returns the current daemon status.
func (d *Daemon) Status() Status {
	channels := d.engine.Router.Channels()
	names := make([]string, 0, len(channels))
	for _, ch := range channels {
		names = append(names, string(ch))
	}
	status := Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		DatabasePath: d.engine.Store.Path(),
		LockFilePath: d.lockPath,
		Channels:     names,
		Reminders:    d.engine.Runner.Status(),
	}
	d.mu.Lock()
	if d.api != nil {
		status.APIAddress = d.api.address()
	}
	d.mu.Unlock()
	return status
}

// StatusDTO returns Status in its API representation.
func (d *Daemon) StatusDTO() api.DaemonStatus {
	status := d.Status()
	return api.DaemonStatus{
		Running:      status.Running,
		PID:          status.PID,
		DatabasePath: status.DatabasePath,
		LockFilePath: status.LockFilePath,
		APIBind:      status.APIAddress,
		Channels:     status.Channels,
		Reminders:    api.FromRunnerStatus(status.Reminders),
	}
}
