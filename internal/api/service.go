package api

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"crmflow/internal/engine"
	"crmflow/internal/notifications"
	"crmflow/internal/preferences"
	"crmflow/internal/services"
	"crmflow/internal/stages"
	"crmflow/internal/store"
	"crmflow/internal/timeline"
)

// Service exposes engine operations returning API DTOs. The HTTP API and the
// IPC server both delegate to it.
type Service struct {
	engine *engine.Engine
}

// NewService constructs a Service around eng.
func NewService(eng *engine.Engine) *Service {
	if eng == nil {
		return nil
	}
	return &Service{engine: eng}
}

// CreateEntity stores a new entity at its first (or requested) stage.
func (s *Service) CreateEntity(ctx context.Context, actor string, req CreateEntityRequest) (Entity, error) {
	e, err := s.engine.Controller.CreateEntity(ctx, stages.NewEntity{
		ID:      req.ID,
		Type:    req.Type,
		Name:    req.Name,
		OwnerID: req.OwnerID,
		Stage:   req.Stage,
	}, actor)
	if err != nil {
		return Entity{}, err
	}
	return FromEntity(e), nil
}

// Entity returns one entity.
func (s *Service) Entity(ctx context.Context, id string) (Entity, error) {
	e, err := s.engine.Controller.Entity(ctx, id)
	if err != nil {
		return Entity{}, err
	}
	return FromEntity(e), nil
}

// Transition proposes a new stage for an entity.
func (s *Service) Transition(ctx context.Context, actor, entityID, stage string) (TransitionResponse, error) {
	res, err := s.engine.Controller.Transition(ctx, entityID, stage, actor)
	if err != nil {
		return TransitionResponse{}, err
	}
	return FromTransition(res), nil
}

// History returns the stage history of an entity, oldest first.
func (s *Service) History(ctx context.Context, entityID string) ([]StageInterval, error) {
	out, err := s.engine.Controller.History(ctx, entityID)
	if err != nil {
		return nil, err
	}
	return FromIntervals(out), nil
}

// Timeline returns one page of a subject's timeline.
func (s *Service) Timeline(ctx context.Context, subjectID, before string, limit int) (TimelinePage, error) {
	events, err := s.engine.Timeline.Query(ctx, subjectID, timeline.QueryOptions{Before: before, Limit: limit})
	if err != nil {
		return TimelinePage{}, err
	}
	return FromTimelinePage(events, limit), nil
}

// AppendTimeline records a free-form timeline event authored by actor.
func (s *Service) AppendTimeline(ctx context.Context, actor string, req TimelineAppendRequest) (TimelineEvent, error) {
	ev, err := s.engine.Timeline.Append(ctx, timeline.Draft{
		SubjectID:   req.SubjectID,
		SubjectType: req.SubjectType,
		EventType:   req.EventType,
		Title:       req.Title,
		Description: req.Description,
		Metadata:    req.Metadata,
		Author:      actor,
	})
	if err != nil {
		return TimelineEvent{}, err
	}
	return FromTimelineEvent(ev), nil
}

// SendNotification creates a notification and fans it out. An empty
// priority defaults to normal.
func (s *Service) SendNotification(ctx context.Context, actor string, req NotificationRequest) (NotificationResponse, error) {
	if strings.TrimSpace(req.Priority) == "" {
		req.Priority = notifications.PriorityNormal
	}
	n, report, err := s.engine.Router.Notify(ctx, notifications.Draft{
		UserID:     req.UserID,
		Type:       req.Type,
		Priority:   req.Priority,
		Title:      req.Title,
		Message:    req.Message,
		LinkedType: req.LinkedType,
		LinkedID:   req.LinkedID,
		LinkedName: req.LinkedName,
		Metadata:   req.Metadata,
		CreatedBy:  actor,
	}, notifications.FanOutOptions{SMS: req.SMS, WhatsApp: req.WhatsApp})
	if err != nil {
		return NotificationResponse{}, err
	}
	return NotificationResponse{Notification: FromNotification(n), Delivery: FromDeliveryReport(report)}, nil
}

// Notifications lists a user's notifications with the unread count.
func (s *Service) Notifications(ctx context.Context, userID string, unreadOnly bool, limit int) (NotificationList, error) {
	items, err := s.engine.Router.List(ctx, userID, unreadOnly, limit)
	if err != nil {
		return NotificationList{}, err
	}
	unread, err := s.engine.Router.UnreadCount(ctx, userID)
	if err != nil {
		return NotificationList{}, err
	}
	return NotificationList{Items: FromNotifications(items), Unread: unread}, nil
}

// MarkRead marks one notification read.
func (s *Service) MarkRead(ctx context.Context, id string) (MarkReadResponse, error) {
	changed, err := s.engine.Router.MarkRead(ctx, id)
	if err != nil {
		return MarkReadResponse{}, err
	}
	return MarkReadResponse{Changed: changed}, nil
}

// MarkAllRead marks every notification of a user read.
func (s *Service) MarkAllRead(ctx context.Context, userID string) (MarkReadResponse, error) {
	changed, err := s.engine.Router.MarkAllRead(ctx, userID)
	if err != nil {
		return MarkReadResponse{}, err
	}
	return MarkReadResponse{Changed: changed}, nil
}

// Preferences returns the effective preferences of a user.
func (s *Service) Preferences(ctx context.Context, userID string) (Preference, error) {
	p, err := s.engine.Preferences.Get(ctx, userID)
	if err != nil {
		return Preference{}, err
	}
	return FromPreference(p), nil
}

// SetPreferences replaces a user's channel opt-ins and returns the result.
func (s *Service) SetPreferences(ctx context.Context, userID string, req PreferenceRequest) (Preference, error) {
	if err := s.engine.Preferences.Set(ctx, userID, preferences.Update{
		PushEnabled:      req.PushEnabled,
		EmailEnabled:     req.EmailEnabled,
		PushSubscription: req.PushSubscription,
	}); err != nil {
		return Preference{}, err
	}
	return s.Preferences(ctx, userID)
}

// UpsertUser creates or updates a directory entry.
func (s *Service) UpsertUser(ctx context.Context, req UserRequest) (User, error) {
	id := strings.TrimSpace(req.ID)
	if id == "" {
		return User{}, services.Wrap(services.ErrInvalidArgument, "api", "upsert_user", "user id is required", nil)
	}
	name := strings.TrimSpace(req.DisplayName)
	if name == "" {
		name = id
	}
	u := &store.User{
		ID:          id,
		DisplayName: name,
		Email:       strings.TrimSpace(req.Email),
		Phone:       strings.TrimSpace(req.Phone),
		CreatedAt:   s.engine.Clock.Now(),
	}
	if err := s.engine.Store.UpsertUser(ctx, u); err != nil {
		return User{}, services.Wrap(services.ErrTransient, "api", "upsert_user", "save user", err)
	}
	return FromUser(u), nil
}

// AddCalendarEvent stores a calendar event.
func (s *Service) AddCalendarEvent(ctx context.Context, req CalendarEventRequest) (CalendarEvent, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return CalendarEvent{}, services.Wrap(services.ErrInvalidArgument, "api", "add_event", "title is required", nil)
	}
	startsAt, err := time.Parse(time.RFC3339, strings.TrimSpace(req.StartsAt))
	if err != nil {
		return CalendarEvent{}, services.Wrap(services.ErrInvalidArgument, "api", "add_event", "startsAt must be RFC3339", err)
	}
	id := strings.TrimSpace(req.ID)
	if id == "" {
		id = uuid.NewString()
	}
	ev := &store.CalendarEvent{
		ID:        id,
		Title:     title,
		StartsAt:  startsAt.UTC(),
		OwnerID:   strings.TrimSpace(req.OwnerID),
		CreatedAt: s.engine.Clock.Now(),
	}
	if err := s.engine.Store.InsertCalendarEvent(ctx, ev); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return CalendarEvent{}, services.Wrap(services.ErrInvalidArgument, "api", "add_event", "event "+id+" already exists", err)
		}
		return CalendarEvent{}, services.Wrap(services.ErrTransient, "api", "add_event", "save event", err)
	}
	return FromCalendarEvent(ev), nil
}

// SetReminder schedules, replaces or clears a reminder.
func (s *Service) SetReminder(ctx context.Context, eventID, userID, reminderType string) (ReminderResponse, error) {
	r, err := s.engine.Scheduler.Schedule(ctx, eventID, userID, reminderType)
	if err != nil {
		return ReminderResponse{}, err
	}
	return ReminderResponse{Reminder: FromReminder(r)}, nil
}

// PollReminders runs one reminder poll cycle.
func (s *Service) PollReminders(ctx context.Context) (PollResponse, error) {
	fired, err := s.engine.Runner.RunOnce(ctx)
	if err != nil {
		return PollResponse{}, err
	}
	return PollResponse{Fired: fired}, nil
}

// Reminders returns the reminder runner status.
func (s *Service) Reminders() RunnerStatus {
	return FromRunnerStatus(s.engine.Runner.Status())
}
