package api

import (
	"sort"
	"time"

	"crmflow/internal/notifications"
	"crmflow/internal/preferences"
	"crmflow/internal/reminders"
	"crmflow/internal/stages"
	"crmflow/internal/store"
)

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}

// FromEntity converts a stored entity to its API representation.
func FromEntity(e *store.Entity) Entity {
	if e == nil {
		return Entity{}
	}
	return Entity{
		ID:         e.ID,
		Type:       e.Type,
		Name:       e.Name,
		Stage:      e.Stage,
		StageLabel: stages.Label(e.Stage),
		OwnerID:    e.OwnerID,
		CreatedAt:  formatTime(e.CreatedAt),
		UpdatedAt:  formatTime(e.UpdatedAt),
	}
}

// FromInterval converts a stage history row.
func FromInterval(i store.StageInterval) StageInterval {
	dto := StageInterval{
		ID:        i.ID,
		EntityID:  i.EntityID,
		StageName: i.StageName,
		StartedAt: formatTime(i.StartedAt),
	}
	if i.EndedAt != nil {
		dto.EndedAt = formatTime(*i.EndedAt)
	}
	return dto
}

// FromIntervals converts a stage history in order.
func FromIntervals(in []store.StageInterval) []StageInterval {
	out := make([]StageInterval, 0, len(in))
	for _, i := range in {
		out = append(out, FromInterval(i))
	}
	return out
}

// FromTransition converts a transition result.
func FromTransition(res *stages.TransitionResult) TransitionResponse {
	if res == nil {
		return TransitionResponse{}
	}
	dto := TransitionResponse{Entity: FromEntity(res.Entity), Applied: res.Applied}
	if res.History != nil {
		h := FromInterval(*res.History)
		dto.History = &h
	}
	return dto
}

// FromTimelineEvent converts an audit record.
func FromTimelineEvent(ev *store.TimelineEvent) TimelineEvent {
	if ev == nil {
		return TimelineEvent{}
	}
	return TimelineEvent{
		ID:          ev.ID,
		SubjectID:   ev.SubjectID,
		SubjectType: ev.SubjectType,
		EventType:   ev.EventType,
		Title:       ev.Title,
		Description: ev.Description,
		Metadata:    ev.Metadata,
		Author:      ev.Author,
		CreatedAt:   formatTime(ev.CreatedAt),
	}
}

// FromTimelinePage converts a query result. A full page carries the id of
// its last event as the next cursor.
func FromTimelinePage(events []*store.TimelineEvent, limit int) TimelinePage {
	page := TimelinePage{Events: make([]TimelineEvent, 0, len(events))}
	for _, ev := range events {
		page.Events = append(page.Events, FromTimelineEvent(ev))
	}
	if limit > 0 && len(events) == limit {
		page.NextBefore = events[len(events)-1].ID
	}
	return page
}

// FromNotification converts an in-app notification.
func FromNotification(n *store.Notification) Notification {
	if n == nil {
		return Notification{}
	}
	dto := Notification{
		ID:         n.ID,
		UserID:     n.UserID,
		Type:       n.Type,
		Priority:   n.Priority,
		Title:      n.Title,
		Message:    n.Message,
		LinkedType: n.LinkedType,
		LinkedID:   n.LinkedID,
		LinkedName: n.LinkedName,
		Metadata:   n.Metadata,
		IsRead:     n.IsRead,
		CreatedBy:  n.CreatedBy,
		CreatedAt:  formatTime(n.CreatedAt),
	}
	if n.ReadAt != nil {
		dto.ReadAt = formatTime(*n.ReadAt)
	}
	return dto
}

// FromNotifications converts a list of notifications in order.
func FromNotifications(in []*store.Notification) []Notification {
	out := make([]Notification, 0, len(in))
	for _, n := range in {
		out = append(out, FromNotification(n))
	}
	return out
}

// FromDeliveryReport converts a fan-out report.
func FromDeliveryReport(r notifications.DeliveryReport) DeliveryReport {
	dto := DeliveryReport{
		Attempted: channelNames(r.Attempted),
		Delivered: channelNames(r.Delivered),
		Skipped:   channelNames(r.Skipped),
	}
	if len(r.Failed) > 0 {
		dto.Failed = make(map[string]string, len(r.Failed))
		for _, f := range r.Failed {
			dto.Failed[string(f.Channel)] = f.Error
		}
	}
	return dto
}

func channelNames(in []notifications.Channel) []string {
	out := make([]string, 0, len(in))
	for _, ch := range in {
		out = append(out, string(ch))
	}
	sort.Strings(out)
	return out
}

// FromPreference converts effective preferences.
func FromPreference(p preferences.Preference) Preference {
	return Preference{
		UserID:           p.UserID,
		PushEnabled:      p.PushEnabled,
		EmailEnabled:     p.EmailEnabled,
		PushSubscription: p.PushSubscription,
		Stored:           p.Stored,
	}
}

// FromUser converts a directory entry.
func FromUser(u *store.User) User {
	if u == nil {
		return User{}
	}
	return User{ID: u.ID, DisplayName: u.DisplayName, Email: u.Email, Phone: u.Phone}
}

// FromCalendarEvent converts a calendar event.
func FromCalendarEvent(ev *store.CalendarEvent) CalendarEvent {
	if ev == nil {
		return CalendarEvent{}
	}
	return CalendarEvent{ID: ev.ID, Title: ev.Title, StartsAt: formatTime(ev.StartsAt), OwnerID: ev.OwnerID}
}

// FromReminder converts a reminder; nil stays nil.
func FromReminder(r *store.Reminder) *Reminder {
	if r == nil {
		return nil
	}
	return &Reminder{
		ID:               r.ID,
		EventID:          r.EventID,
		UserID:           r.UserID,
		ReminderTime:     formatTime(r.ReminderTime),
		ReminderType:     r.ReminderType,
		NotificationSent: r.NotificationSent,
	}
}

// FromRunnerStatus converts the reminder runner snapshot.
func FromRunnerStatus(s reminders.RunnerStatus) RunnerStatus {
	return RunnerStatus{
		Running:    s.Running,
		LastRun:    formatTime(s.LastRun),
		LastFired:  s.LastFired,
		TotalFired: s.TotalFired,
		LastError:  s.LastError,
	}
}
