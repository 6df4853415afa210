package reminders

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"crmflow/internal/logging"
)

const (
	defaultPollInterval  = time.Minute
	defaultRetryInterval = 10 * time.Second
)

// RunnerStatus is a snapshot of the background poller.
type RunnerStatus struct {
	Running    bool
	LastRun    time.Time
	LastFired  int
	TotalFired int
	LastError  string
}

// Runner polls a Scheduler on a fixed interval until stopped.
type Runner struct {
	scheduler     *Scheduler
	logger        *slog.Logger
	interval      time.Duration
	retryInterval time.Duration

	mu         sync.RWMutex
	running    bool
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	lastRun    time.Time
	lastFired  int
	totalFired int
	lastErr    error
}

// NewRunner constructs a Runner. Non-positive intervals fall back to defaults.
func NewRunner(s *Scheduler, interval, retryInterval time.Duration, logger *slog.Logger) *Runner {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	if retryInterval <= 0 {
		retryInterval = defaultRetryInterval
	}
	return &Runner{
		scheduler:     s,
		logger:        logging.NewComponentLogger(logger, "reminder-runner"),
		interval:      interval,
		retryInterval: retryInterval,
	}
}

// Start begins background polling.
func (r *Runner) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return errors.New("reminder runner already running")
	}
	if r.scheduler == nil {
		r.mu.Unlock()
		return errors.New("reminder scheduler not configured")
	}
	runCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.running = true
	r.wg.Add(1)
	r.mu.Unlock()

	go r.loop(runCtx)
	r.logger.Info("reminder runner started",
		logging.Duration("interval", r.interval),
		logging.String(logging.FieldEventType, "reminder_runner_started"),
	)
	return nil
}

// Stop terminates polling and waits for the current cycle to finish.
func (r *Runner) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	cancel := r.cancel
	r.running = false
	r.cancel = nil
	r.mu.Unlock()

	cancel()
	r.wg.Wait()
	r.logger.Info("reminder runner stopped", logging.String(logging.FieldEventType, "reminder_runner_stopped"))
}

// RunOnce performs a single poll cycle and records its outcome.
func (r *Runner) RunOnce(ctx context.Context) (int, error) {
	fired, err := r.scheduler.Poll(ctx)
	r.mu.Lock()
	r.lastRun = r.scheduler.clock.Now()
	r.lastFired = fired
	r.totalFired += fired
	r.lastErr = err
	r.mu.Unlock()
	return fired, err
}

// Status returns the latest runner information.
func (r *Runner) Status() RunnerStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()
	status := RunnerStatus{
		Running:    r.running,
		LastRun:    r.lastRun,
		LastFired:  r.lastFired,
		TotalFired: r.totalFired,
	}
	if r.lastErr != nil {
		status.LastError = r.lastErr.Error()
	}
	return status
}

func (r *Runner) loop(ctx context.Context) {
	defer r.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		wait := r.interval
		if _, err := r.RunOnce(ctx); err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return
			}
			r.logger.Error("reminder poll failed",
				logging.Error(err),
				logging.String(logging.FieldEventType, "reminder_poll_failed"),
				logging.String(logging.FieldErrorHint, "check database access"),
			)
			wait = r.retryInterval
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
	}
}
