package ipc

import "crmflow/internal/api"

// StartRequest triggers daemon startup.
type StartRequest struct{}

// StartResponse indicates whether the daemon was started.
type StartResponse struct {
	Started bool   `json:"started"`
	Message string `json:"message"`
}

// StopRequest stops the daemon's background work.
type StopRequest struct{}

// StopResponse indicates stop result.
type StopResponse struct {
	Stopped bool `json:"stopped"`
}

// StatusRequest fetches daemon status.
type StatusRequest struct{}

// StatusResponse represents combined daemon and reminder runner status.
type StatusResponse = api.DaemonStatus

// CreateEntityRequest creates an entity on behalf of Actor.
type CreateEntityRequest struct {
	Actor  string                  `json:"actor"`
	Entity api.CreateEntityRequest `json:"entity"`
}

// EntityRequest addresses one entity.
type EntityRequest struct {
	ID string `json:"id"`
}

// TransitionRequest proposes a stage on behalf of Actor.
type TransitionRequest struct {
	Actor    string `json:"actor"`
	EntityID string `json:"entityId"`
	Stage    string `json:"stage"`
}

// HistoryResponse lists stage intervals oldest first.
type HistoryResponse struct {
	Intervals []api.StageInterval `json:"intervals"`
}

// TimelineRequest pages through a subject's timeline.
type TimelineRequest struct {
	SubjectID string `json:"subjectId"`
	Before    string `json:"before"`
	Limit     int    `json:"limit"`
}

// AppendTimelineRequest records a timeline event authored by Actor.
type AppendTimelineRequest struct {
	Actor string                    `json:"actor"`
	Event api.TimelineAppendRequest `json:"event"`
}

// SendNotificationRequest creates a notification on behalf of Actor.
type SendNotificationRequest struct {
	Actor        string                  `json:"actor"`
	Notification api.NotificationRequest `json:"notification"`
}

// NotificationsRequest lists a user's notifications.
type NotificationsRequest struct {
	UserID     string `json:"userId"`
	UnreadOnly bool   `json:"unreadOnly"`
	Limit      int    `json:"limit"`
}

// MarkReadRequest marks one notification read.
type MarkReadRequest struct {
	ID string `json:"id"`
}

// MarkAllReadRequest marks every notification of a user read.
type MarkAllReadRequest struct {
	UserID string `json:"userId"`
}

// SetPreferencesRequest replaces a user's channel opt-ins.
type SetPreferencesRequest struct {
	UserID      string                `json:"userId"`
	Preferences api.PreferenceRequest `json:"preferences"`
}

// SetReminderRequest schedules or clears a reminder.
type SetReminderRequest struct {
	EventID      string `json:"eventId"`
	UserID       string `json:"userId"`
	ReminderType string `json:"reminderType"`
}

// PollRequest runs one reminder poll cycle.
type PollRequest struct{}
