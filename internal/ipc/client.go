package ipc

import (
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"time"

	"crmflow/internal/api"
)

// Client provides RPC access to the daemon.
type Client struct {
	conn   net.Conn
	client *rpc.Client
}

// Dial connects to the IPC server at the given socket path.
func Dial(path string) (*Client, error) {
	conn, err := net.DialTimeout("unix", path, 2*time.Second)
	if err != nil {
		return nil, err
	}
	rpcClient := rpc.NewClientWithCodec(jsonrpc.NewClientCodec(conn))
	return &Client{conn: conn, client: rpcClient}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

func call[T any](c *Client, method string, req any) (*T, error) {
	var resp T
	if err := c.client.Call(serviceName+"."+method, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Start requests the daemon to start background work.
func (c *Client) Start() (*StartResponse, error) {
	return call[StartResponse](c, "Start", StartRequest{})
}

// Stop requests the daemon to stop background work.
func (c *Client) Stop() (*StopResponse, error) {
	return call[StopResponse](c, "Stop", StopRequest{})
}

// Status retrieves the daemon status.
func (c *Client) Status() (*StatusResponse, error) {
	return call[StatusResponse](c, "Status", StatusRequest{})
}

// CreateEntity creates an entity.
func (c *Client) CreateEntity(actor string, req api.CreateEntityRequest) (*api.Entity, error) {
	return call[api.Entity](c, "CreateEntity", CreateEntityRequest{Actor: actor, Entity: req})
}

// Entity fetches one entity.
func (c *Client) Entity(id string) (*api.Entity, error) {
	return call[api.Entity](c, "Entity", EntityRequest{ID: id})
}

// Transition proposes a new stage for an entity.
func (c *Client) Transition(actor, entityID, stage string) (*api.TransitionResponse, error) {
	return call[api.TransitionResponse](c, "Transition", TransitionRequest{Actor: actor, EntityID: entityID, Stage: stage})
}

// History lists the stage intervals of an entity.
func (c *Client) History(entityID string) (*HistoryResponse, error) {
	return call[HistoryResponse](c, "History", EntityRequest{ID: entityID})
}

// Timeline fetches one page of a subject's timeline.
func (c *Client) Timeline(req TimelineRequest) (*api.TimelinePage, error) {
	return call[api.TimelinePage](c, "Timeline", req)
}

// AppendTimeline records a timeline event.
func (c *Client) AppendTimeline(actor string, req api.TimelineAppendRequest) (*api.TimelineEvent, error) {
	return call[api.TimelineEvent](c, "AppendTimeline", AppendTimelineRequest{Actor: actor, Event: req})
}

// SendNotification creates and fans out a notification.
func (c *Client) SendNotification(actor string, req api.NotificationRequest) (*api.NotificationResponse, error) {
	return call[api.NotificationResponse](c, "SendNotification", SendNotificationRequest{Actor: actor, Notification: req})
}

// Notifications lists a user's notifications.
func (c *Client) Notifications(req NotificationsRequest) (*api.NotificationList, error) {
	return call[api.NotificationList](c, "Notifications", req)
}

// MarkRead marks one notification read.
func (c *Client) MarkRead(id string) (*api.MarkReadResponse, error) {
	return call[api.MarkReadResponse](c, "MarkRead", MarkReadRequest{ID: id})
}

// MarkAllRead marks every notification of a user read.
func (c *Client) MarkAllRead(userID string) (*api.MarkReadResponse, error) {
	return call[api.MarkReadResponse](c, "MarkAllRead", MarkAllReadRequest{UserID: userID})
}

// SetPreferences replaces a user's channel opt-ins.
func (c *Client) SetPreferences(userID string, req api.PreferenceRequest) (*api.Preference, error) {
	return call[api.Preference](c, "SetPreferences", SetPreferencesRequest{UserID: userID, Preferences: req})
}

// UpsertUser creates or updates a directory entry.
func (c *Client) UpsertUser(req api.UserRequest) (*api.User, error) {
	return call[api.User](c, "UpsertUser", req)
}

// AddEvent stores a calendar event.
func (c *Client) AddEvent(req api.CalendarEventRequest) (*api.CalendarEvent, error) {
	return call[api.CalendarEvent](c, "AddEvent", req)
}

// SetReminder schedules, replaces or clears a reminder.
func (c *Client) SetReminder(eventID, userID, reminderType string) (*api.ReminderResponse, error) {
	return call[api.ReminderResponse](c, "SetReminder", SetReminderRequest{EventID: eventID, UserID: userID, ReminderType: reminderType})
}

// PollReminders runs one reminder poll cycle.
func (c *Client) PollReminders() (*api.PollResponse, error) {
	return call[api.PollResponse](c, "PollReminders", PollRequest{})
}
