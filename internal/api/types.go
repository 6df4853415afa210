package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Entity describes a CRM record in a transport-friendly format.
type Entity struct {
	ID         string `json:"id"`
	Type       string `json:"entityType"`
	Name       string `json:"name"`
	Stage      string `json:"stage"`
	StageLabel string `json:"stageLabel"`
	OwnerID    string `json:"ownerId,omitempty"`
	CreatedAt  string `json:"createdAt,omitempty"`
	UpdatedAt  string `json:"updatedAt,omitempty"`
}

// StageInterval is one stage history row.
type StageInterval struct {
	ID        int64  `json:"id"`
	EntityID  string `json:"entityId"`
	StageName string `json:"stageName"`
	StartedAt string `json:"startedAt"`
	EndedAt   string `json:"endedAt,omitempty"`
}

// TransitionResponse reports the outcome of a stage transition.
type TransitionResponse struct {
	Entity  Entity         `json:"entity"`
	History *StageInterval `json:"history,omitempty"`
	Applied bool           `json:"applied"`
}

// TimelineEvent is an audit record.
type TimelineEvent struct {
	ID          string         `json:"id"`
	SubjectID   string         `json:"subjectId"`
	SubjectType string         `json:"subjectType"`
	EventType   string         `json:"eventType"`
	Title       string         `json:"title"`
	Description string         `json:"description,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	Author      string         `json:"author"`
	CreatedAt   string         `json:"createdAt"`
}

// TimelinePage is one page of a subject's timeline, newest first. NextBefore
// is the cursor for the following page and is empty on the last page.
type TimelinePage struct {
	Events     []TimelineEvent `json:"events"`
	NextBefore string          `json:"nextBefore,omitempty"`
}

// Notification is an in-app notification record.
type Notification struct {
	ID         string         `json:"id"`
	UserID     string         `json:"userId"`
	Type       string         `json:"type"`
	Priority   string         `json:"priority"`
	Title      string         `json:"title"`
	Message    string         `json:"message"`
	LinkedType string         `json:"linkedType,omitempty"`
	LinkedID   string         `json:"linkedId,omitempty"`
	LinkedName string         `json:"linkedName,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	IsRead     bool           `json:"isRead"`
	ReadAt     string         `json:"readAt,omitempty"`
	CreatedBy  string         `json:"createdBy"`
	CreatedAt  string         `json:"createdAt"`
}

// DeliveryReport summarizes channel fan-out for one notification.
type DeliveryReport struct {
	Attempted []string          `json:"attempted"`
	Delivered []string          `json:"delivered"`
	Failed    map[string]string `json:"failed,omitempty"`
	Skipped   []string          `json:"skipped,omitempty"`
}

// NotificationResponse wraps a created notification and its delivery report.
type NotificationResponse struct {
	Notification Notification   `json:"notification"`
	Delivery     DeliveryReport `json:"delivery"`
}

// NotificationList is a user's notifications, newest first.
type NotificationList struct {
	Items  []Notification `json:"items"`
	Unread int            `json:"unread"`
}

// MarkReadResponse reports how many notifications changed state.
type MarkReadResponse struct {
	Changed int64 `json:"changed"`
}

// Preference is a user's effective channel opt-in.
type Preference struct {
	UserID           string `json:"userId"`
	PushEnabled      bool   `json:"pushEnabled"`
	EmailEnabled     bool   `json:"emailEnabled"`
	PushSubscription string `json:"pushSubscription,omitempty"`
	Stored           bool   `json:"stored"`
}

// User is a directory entry.
type User struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	Email       string `json:"email,omitempty"`
	Phone       string `json:"phone,omitempty"`
}

// CalendarEvent is an appointment reminders can attach to.
type CalendarEvent struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	StartsAt string `json:"startsAt"`
	OwnerID  string `json:"ownerId,omitempty"`
}

// Reminder is a scheduled event reminder. A nil reminder in a response means
// the reminder was cleared.
type Reminder struct {
	ID               string `json:"id"`
	EventID          string `json:"eventId"`
	UserID           string `json:"userId"`
	ReminderTime     string `json:"reminderTime"`
	ReminderType     string `json:"reminderType"`
	NotificationSent bool   `json:"notificationSent"`
}

// ReminderResponse wraps the result of setting a reminder.
type ReminderResponse struct {
	Reminder *Reminder `json:"reminder"`
}

// PollResponse reports the reminders fired by one poll cycle.
type PollResponse struct {
	Fired int `json:"fired"`
}

// RunnerStatus mirrors the reminder runner state.
type RunnerStatus struct {
	Running    bool   `json:"running"`
	LastRun    string `json:"lastRun,omitempty"`
	LastFired  int    `json:"lastFired"`
	TotalFired int    `json:"totalFired"`
	LastError  string `json:"lastError,omitempty"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running      bool         `json:"running"`
	PID          int          `json:"pid"`
	DatabasePath string       `json:"databasePath"`
	LockFilePath string       `json:"lockFilePath"`
	APIBind      string       `json:"apiBind,omitempty"`
	Channels     []string     `json:"channels"`
	Reminders    RunnerStatus `json:"reminders"`
	SystemChecks []StatusLine `json:"systemChecks,omitempty"`
}

// StatusLine is one labelled readiness check.
type StatusLine struct {
	Label    string `json:"label"`
	Severity string `json:"severity"`
	Detail   string `json:"detail"`
}

// ErrorResponse is the body of every failed HTTP request.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

// CreateEntityRequest creates an entity.
type CreateEntityRequest struct {
	ID      string `json:"id,omitempty"`
	Type    string `json:"entityType"`
	Name    string `json:"name"`
	OwnerID string `json:"ownerId,omitempty"`
	Stage   string `json:"stage,omitempty"`
}

// TransitionRequest proposes a new stage.
type TransitionRequest struct {
	Stage string `json:"stage"`
}

// TimelineAppendRequest appends a timeline event.
type TimelineAppendRequest struct {
	SubjectID   string         `json:"subjectId"`
	SubjectType string         `json:"subjectType"`
	EventType   string         `json:"eventType"`
	Title       string         `json:"title"`
	Description string         `json:"description,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// NotificationRequest creates and fans out a notification.
type NotificationRequest struct {
	UserID     string         `json:"userId"`
	Type       string         `json:"type"`
	Priority   string         `json:"priority,omitempty"`
	Title      string         `json:"title"`
	Message    string         `json:"message"`
	LinkedType string         `json:"linkedType,omitempty"`
	LinkedID   string         `json:"linkedId,omitempty"`
	LinkedName string         `json:"linkedName,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	SMS        bool           `json:"sms,omitempty"`
	WhatsApp   bool           `json:"whatsapp,omitempty"`
}

// PreferenceRequest replaces a user's channel opt-ins. A nil subscription
// keeps the stored one; an empty string clears it.
type PreferenceRequest struct {
	PushEnabled      bool    `json:"pushEnabled"`
	EmailEnabled     bool    `json:"emailEnabled"`
	PushSubscription *string `json:"pushSubscription,omitempty"`
}

// UserRequest creates or updates a directory entry.
type UserRequest struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	Email       string `json:"email,omitempty"`
	Phone       string `json:"phone,omitempty"`
}

// CalendarEventRequest creates a calendar event. StartsAt is RFC3339.
type CalendarEventRequest struct {
	ID       string `json:"id,omitempty"`
	Title    string `json:"title"`
	StartsAt string `json:"startsAt"`
	OwnerID  string `json:"ownerId,omitempty"`
}

// ReminderRequest sets the reminder of a user for an event.
type ReminderRequest struct {
	ReminderType string `json:"reminderType"`
}
