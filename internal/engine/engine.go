package engine

import (
	"errors"
	"log/slog"
	"time"

	"crmflow/internal/clock"
	"crmflow/internal/config"
	"crmflow/internal/logging"
	"crmflow/internal/notifications"
	"crmflow/internal/preferences"
	"crmflow/internal/reminders"
	"crmflow/internal/stages"
	"crmflow/internal/store"
	"crmflow/internal/timeline"
)

// Engine bundles the workflow components over one store.
type Engine struct {
	Clock       clock.Clock
	Store       *store.Store
	Timeline    *timeline.Recorder
	Preferences *preferences.Service
	Router      *notifications.Router
	Controller  *stages.Controller
	Reconciler  *stages.Reconciler
	Scheduler   *reminders.Scheduler
	Runner      *reminders.Runner
}

// Option customises engine construction.
type Option func(*options)

type options struct {
	clock      clock.Clock
	senders    map[notifications.Channel]notifications.Sender
	authorizer stages.Authorizer
}

// WithClock overrides the system clock.
func WithClock(c clock.Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithSenders replaces the channel senders built from configuration.
func WithSenders(senders map[notifications.Channel]notifications.Sender) Option {
	return func(o *options) { o.senders = senders }
}

// WithAuthorizer replaces the default transition permission check.
func WithAuthorizer(a stages.Authorizer) Option {
	return func(o *options) { o.authorizer = a }
}

// New wires every component from cfg around st.
func New(cfg *config.Config, st *store.Store, logger *slog.Logger, opts ...Option) (*Engine, error) {
	if cfg == nil {
		return nil, errors.New("engine requires configuration")
	}
	if st == nil {
		return nil, errors.New("engine requires a store")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.senders == nil {
		o.senders = notifications.SendersFromConfig(cfg)
	}
	clk := clock.OrSystem(o.clock)

	rec := timeline.NewRecorder(st, clk, logger)
	prefs := preferences.NewService(st, clk, preferences.Defaults{
		PushEnabled:  cfg.Notifications.DefaultPushEnabled,
		EmailEnabled: cfg.Notifications.DefaultEmailEnabled,
	}, logger)
	router := notifications.NewRouter(notifications.Options{
		Store:       st,
		Preferences: prefs,
		Directory:   notifications.NewStoreDirectory(st),
		Senders:     o.senders,
		Clock:       clk,
		Logger:      logger,
		SendTimeout: cfg.SendTimeout(),
		DedupWindow: cfg.DedupWindow(),
	})
	controller := stages.NewController(stages.Options{
		Store:           st,
		Timeline:        rec,
		Notifier:        router,
		Authorizer:      o.authorizer,
		Clock:           clk,
		Logger:          logger,
		ConflictRetries: cfg.Stages.ConflictRetries,
		NotifyOwner:     cfg.Stages.NotifyOwner,
	})
	scheduler := reminders.NewScheduler(reminders.Options{
		Store:       st,
		Dispatcher:  router,
		Clock:       clk,
		Logger:      logger,
		GraceWindow: cfg.GraceWindow(),
		PollTimeout: cfg.PollTimeout(),
		BatchLimit:  cfg.Reminders.BatchLimit,
	})
	runner := reminders.NewRunner(scheduler, cfg.PollInterval(),
		time.Duration(cfg.Reminders.ErrorRetryInterval)*time.Second, logger)

	return &Engine{
		Clock:       clk,
		Store:       st,
		Timeline:    rec,
		Preferences: prefs,
		Router:      router,
		Controller:  controller,
		Reconciler:  stages.NewReconciler(controller, logger),
		Scheduler:   scheduler,
		Runner:      runner,
	}, nil
}
