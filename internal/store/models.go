package store

import "time"

// Entity is a CRM record tracked through a stage lifecycle.
type Entity struct {
	ID        string
	Type      string
	Name      string
	Stage     string
	OwnerID   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// User is a directory entry used to resolve delivery targets.
type User struct {
	ID          string
	DisplayName string
	Email       string
	Phone       string
	CreatedAt   time.Time
}

// CalendarEvent is a scheduled appointment reminders are attached to.
type CalendarEvent struct {
	ID        string
	Title     string
	StartsAt  time.Time
	OwnerID   string
	CreatedAt time.Time
}

// StageInterval is one row of an entity's stage history. EndedAt is nil for
// the active interval.
type StageInterval struct {
	ID        int64
	EntityID  string
	StageName string
	StartedAt time.Time
	EndedAt   *time.Time
}

// Open reports whether the interval is the active one.
func (i StageInterval) Open() bool {
	return i.EndedAt == nil
}

// TimelineEvent is an immutable audit record.
type TimelineEvent struct {
	ID          string
	SubjectID   string
	SubjectType string
	EventType   string
	Title       string
	Description string
	Metadata    map[string]any
	Author      string
	CreatedAt   time.Time
}

// Notification is the in-app record of a notification.
type Notification struct {
	ID         string
	UserID     string
	Type       string
	Priority   string
	Title      string
	Message    string
	LinkedType string
	LinkedID   string
	LinkedName string
	Metadata   map[string]any
	IsRead     bool
	ReadAt     *time.Time
	CreatedBy  string
	CreatedAt  time.Time
}

// Preference holds a user's channel opt-ins.
type Preference struct {
	UserID           string
	PushEnabled      bool
	EmailEnabled     bool
	PushSubscription string
	UpdatedAt        time.Time
}

// Reminder is a one-shot notification tied to a calendar event.
type Reminder struct {
	ID               string
	EventID          string
	UserID           string
	ReminderTime     time.Time
	ReminderType     string
	NotificationSent bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// DueReminder is a reminder joined with its calendar event.
type DueReminder struct {
	Reminder
	EventTitle    string
	EventStartsAt time.Time
}
