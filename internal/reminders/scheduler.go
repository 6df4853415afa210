package reminders

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"crmflow/internal/clock"
	"crmflow/internal/logging"
	"crmflow/internal/notifications"
	"crmflow/internal/services"
	"crmflow/internal/store"
)

// Reminder types.
const (
	TypeNone   = "none"
	TypeMin15  = "min_15"
	TypeHour1  = "hour_1"
	TypeDay1   = "day_1"
	linkedType = "event"
)

var offsets = map[string]time.Duration{
	TypeMin15: 15 * time.Minute,
	TypeHour1: 60 * time.Minute,
	TypeDay1:  1440 * time.Minute,
}

const (
	defaultGraceWindow = 5 * time.Minute
	defaultPollTimeout = 30 * time.Second
	defaultBatchLimit  = 100

	dispatchConcurrency = 8
)

// Offset returns how long before the event a reminder of reminderType fires.
func Offset(reminderType string) (time.Duration, bool) {
	d, ok := offsets[reminderType]
	return d, ok
}

// Dispatcher creates and fans out the notification of a fired reminder.
type Dispatcher interface {
	Notify(ctx context.Context, d notifications.Draft, opts notifications.FanOutOptions) (*store.Notification, notifications.DeliveryReport, error)
}

// Options configures a Scheduler.
type Options struct {
	Store       *store.Store
	Dispatcher  Dispatcher
	Clock       clock.Clock
	Logger      *slog.Logger
	GraceWindow time.Duration
	PollTimeout time.Duration
	BatchLimit  int
}

// Scheduler stores event reminders and fires them at most once.
type Scheduler struct {
	store       *store.Store
	dispatcher  Dispatcher
	clock       clock.Clock
	logger      *slog.Logger
	graceWindow time.Duration
	pollTimeout time.Duration
	batchLimit  int
}

// NewScheduler constructs a Scheduler.
func NewScheduler(opts Options) *Scheduler {
	s := &Scheduler{
		store:       opts.Store,
		dispatcher:  opts.Dispatcher,
		clock:       clock.OrSystem(opts.Clock),
		logger:      logging.NewComponentLogger(opts.Logger, "reminders"),
		graceWindow: opts.GraceWindow,
		pollTimeout: opts.PollTimeout,
		batchLimit:  opts.BatchLimit,
	}
	if s.graceWindow <= 0 {
		s.graceWindow = defaultGraceWindow
	}
	if s.pollTimeout <= 0 {
		s.pollTimeout = defaultPollTimeout
	}
	if s.batchLimit <= 0 {
		s.batchLimit = defaultBatchLimit
	}
	return s
}

// Schedule sets the reminder of userID for eventID. An existing reminder is
// overwritten and becomes unsent again. TypeNone removes the reminder and
// returns nil.
func (s *Scheduler) Schedule(ctx context.Context, eventID, userID, reminderType string) (*store.Reminder, error) {
	eventID = strings.TrimSpace(eventID)
	userID = strings.TrimSpace(userID)
	reminderType = strings.TrimSpace(reminderType)
	if eventID == "" || userID == "" {
		return nil, services.Wrap(services.ErrInvalidArgument, "reminders", "schedule", "event id and user id are required", nil)
	}
	offset, ok := Offset(reminderType)
	if !ok && reminderType != TypeNone {
		return nil, services.Wrap(services.ErrInvalidArgument, "reminders", "schedule", "unknown reminder type "+reminderType, nil)
	}

	event, err := s.store.GetCalendarEvent(ctx, eventID)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "reminders", "schedule", "load event", err)
	}
	if event == nil {
		return nil, services.Wrap(services.ErrNotFound, "reminders", "schedule", "event "+eventID, nil)
	}

	logger := s.logger.With(
		logging.String("event_id", eventID),
		logging.String(logging.FieldUserID, userID),
	)
	if reminderType == TypeNone {
		if _, err := s.store.DeleteReminder(ctx, eventID, userID); err != nil {
			return nil, services.Wrap(services.ErrTransient, "reminders", "schedule", "delete reminder", err)
		}
		logger.Info("reminder cleared", logging.String(logging.FieldEventType, "reminder_cleared"))
		return nil, nil
	}

	r, err := s.store.UpsertReminder(ctx, &store.Reminder{
		ID:           uuid.NewString(),
		EventID:      eventID,
		UserID:       userID,
		ReminderTime: event.StartsAt.Add(-offset),
		ReminderType: reminderType,
		UpdatedAt:    s.clock.Now(),
	})
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "reminders", "schedule", "save reminder", err)
	}
	logger.Info("reminder scheduled",
		logging.String(logging.FieldReminderID, r.ID),
		logging.String("reminder_type", r.ReminderType),
		logging.Time("reminder_time", r.ReminderTime),
		logging.String(logging.FieldEventType, "reminder_scheduled"),
	)
	return r, nil
}

// Poll fires every unsent reminder due within the grace window. Each
// candidate is claimed with a conditional update before dispatch, so
// concurrent pollers fire a reminder at most once. The poll timeout bounds
// selection and claiming only; claimed reminders are dispatched
// concurrently under the router's per-channel send timeout. A dispatch
// failure never unclaims the reminder. The returned count is the number of
// reminders this call claimed.
func (s *Scheduler) Poll(ctx context.Context) (int, error) {
	claimed, candidates, claimErr := s.claimDue(ctx)
	if len(claimed) > 0 {
		s.dispatchAll(context.WithoutCancel(ctx), claimed)
		s.logger.Info("reminder poll fired reminders",
			logging.Int("fired", len(claimed)),
			logging.Int("candidates", candidates),
			logging.String(logging.FieldEventType, "reminder_poll_completed"),
		)
	}
	return len(claimed), claimErr
}

func (s *Scheduler) claimDue(ctx context.Context) ([]*store.DueReminder, int, error) {
	ctx, cancel := context.WithTimeout(ctx, s.pollTimeout)
	defer cancel()

	now := s.clock.Now()
	due, err := s.store.DueReminders(ctx, now.Add(-s.graceWindow), now, s.batchLimit)
	if err != nil {
		return nil, 0, s.pollError(ctx, "select due reminders", err)
	}

	claimed := make([]*store.DueReminder, 0, len(due))
	for _, r := range due {
		if err := ctx.Err(); err != nil {
			return claimed, len(due), s.pollError(ctx, "poll interrupted", err)
		}
		ok, err := s.store.ClaimReminder(ctx, r.ID)
		if err != nil {
			return claimed, len(due), s.pollError(ctx, "claim reminder", err)
		}
		if ok {
			claimed = append(claimed, r)
		}
	}
	return claimed, len(due), nil
}

func (s *Scheduler) dispatchAll(ctx context.Context, claimed []*store.DueReminder) {
	sem := make(chan struct{}, dispatchConcurrency)
	var wg sync.WaitGroup
	for _, r := range claimed {
		sem <- struct{}{}
		wg.Add(1)
		go func(r *store.DueReminder) {
			defer wg.Done()
			defer func() { <-sem }()
			s.dispatch(ctx, r)
		}(r)
	}
	wg.Wait()
}

func (s *Scheduler) dispatch(ctx context.Context, r *store.DueReminder) {
	logger := s.logger.With(
		logging.String(logging.FieldReminderID, r.ID),
		logging.String(logging.FieldUserID, r.UserID),
	)
	if s.dispatcher == nil {
		logger.Warn("reminder claimed without dispatcher", logging.String(logging.FieldEventType, "reminder_dispatch_skipped"))
		return
	}
	n, _, err := s.dispatcher.Notify(ctx, notifications.Draft{
		UserID:     r.UserID,
		Type:       notifications.TypeReminder,
		Priority:   notifications.PriorityHigh,
		Title:      "Reminder: " + r.EventTitle,
		Message:    reminderMessage(r),
		LinkedType: linkedType,
		LinkedID:   r.EventID,
		LinkedName: r.EventTitle,
		Metadata: map[string]any{
			"reminderId":   r.ID,
			"reminderType": r.ReminderType,
		},
		CreatedBy: services.SystemActor,
	}, notifications.FanOutOptions{})
	if err != nil {
		logging.ErrorWithContext(logger, "reminder dispatch failed; reminder stays fired", "reminder_dispatch_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check notification storage"),
		)
		return
	}
	logger.Info("reminder fired",
		logging.String(logging.FieldNotificationID, n.ID),
		logging.String(logging.FieldEventType, "reminder_fired"),
	)
}

func (s *Scheduler) pollError(ctx context.Context, message string, err error) error {
	marker := services.ErrTransient
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		marker = services.ErrTimeout
	}
	return services.Wrap(marker, "reminders", "poll", message, err)
}

func reminderMessage(r *store.DueReminder) string {
	if r.EventStartsAt.IsZero() {
		return r.EventTitle
	}
	return fmt.Sprintf("%s starts at %s", r.EventTitle, r.EventStartsAt.UTC().Format("2006-01-02 15:04 MST"))
}
