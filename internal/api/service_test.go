package api_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crmflow/internal/api"
	"crmflow/internal/engine"
	"crmflow/internal/logging"
	"crmflow/internal/notifications"
	"crmflow/internal/services"
	"crmflow/internal/testsupport"
)

func newService(t *testing.T) (*api.Service, *testsupport.RecordingSender) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	email := &testsupport.RecordingSender{}
	eng, err := engine.New(cfg, st, logging.NewNop(),
		engine.WithClock(testsupport.NewClock(time.Time{})),
		engine.WithSenders(map[notifications.Channel]notifications.Sender{notifications.ChannelEmail: email}),
	)
	require.NoError(t, err)
	return api.NewService(eng), email
}

func TestEntityLifecycleDTOs(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	e, err := svc.CreateEntity(ctx, "sales", api.CreateEntityRequest{ID: "c-1", Type: "client", Name: "Dupont"})
	require.NoError(t, err)
	assert.Equal(t, "nouveau", e.Stage)
	assert.Equal(t, "Nouveau", e.StageLabel)
	assert.Equal(t, "2026-03-02T09:00:00.000Z", e.CreatedAt)

	res, err := svc.Transition(ctx, "sales", "c-1", "acompte_recu")
	require.NoError(t, err)
	assert.True(t, res.Applied)
	assert.Equal(t, "Acompte Recu", res.Entity.StageLabel)
	require.NotNil(t, res.History)
	assert.Empty(t, res.History.EndedAt)

	res, err = svc.Transition(ctx, "sales", "c-1", "signe")
	require.NoError(t, err)
	assert.False(t, res.Applied)
	assert.Equal(t, "acompte_recu", res.Entity.Stage)

	history, err := svc.History(ctx, "c-1")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.NotEmpty(t, history[0].EndedAt)
	assert.Equal(t, "acompte_recu", history[1].StageName)

	_, err = svc.Entity(ctx, "missing")
	assert.Equal(t, 404, services.HTTPStatus(err))
}

func TestTimelinePagination(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	for _, title := range []string{"first", "second", "third"} {
		_, err := svc.AppendTimeline(ctx, "sales", api.TimelineAppendRequest{
			SubjectID: "lead-1", SubjectType: "lead", EventType: "note", Title: title,
		})
		require.NoError(t, err)
	}

	page, err := svc.Timeline(ctx, "lead-1", "", 2)
	require.NoError(t, err)
	require.Len(t, page.Events, 2)
	assert.Equal(t, "third", page.Events[0].Title)
	assert.Equal(t, "sales", page.Events[0].Author)
	require.NotEmpty(t, page.NextBefore)

	page, err = svc.Timeline(ctx, "lead-1", page.NextBefore, 2)
	require.NoError(t, err)
	require.Len(t, page.Events, 1)
	assert.Equal(t, "first", page.Events[0].Title)
	assert.Empty(t, page.NextBefore)

	_, err = svc.AppendTimeline(ctx, "", api.TimelineAppendRequest{SubjectID: "lead-1"})
	assert.ErrorIs(t, err, services.ErrInvalidArgument)
}

func TestNotificationsAndPreferences(t *testing.T) {
	svc, email := newService(t)
	ctx := context.Background()

	_, err := svc.UpsertUser(ctx, api.UserRequest{ID: "u-1", Email: "u1@example.com"})
	require.NoError(t, err)

	pref, err := svc.Preferences(ctx, "u-1")
	require.NoError(t, err)
	assert.False(t, pref.Stored)

	resp, err := svc.SendNotification(ctx, "ops", api.NotificationRequest{
		UserID: "u-1", Type: notifications.TypeSystem, Title: "Hello", Message: "World",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"email"}, resp.Delivery.Delivered)
	assert.Equal(t, "ops", resp.Notification.CreatedBy)
	assert.Equal(t, 1, email.Count())

	pref, err = svc.SetPreferences(ctx, "u-1", api.PreferenceRequest{PushEnabled: false, EmailEnabled: false})
	require.NoError(t, err)
	assert.True(t, pref.Stored)
	assert.False(t, pref.EmailEnabled)

	_, err = svc.SendNotification(ctx, "ops", api.NotificationRequest{
		UserID: "u-1", Type: notifications.TypeSystem, Title: "Again", Message: "Quiet",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, email.Count())

	list, err := svc.Notifications(ctx, "u-1", false, 10)
	require.NoError(t, err)
	assert.Len(t, list.Items, 2)
	assert.Equal(t, 2, list.Unread)

	changed, err := svc.MarkRead(ctx, resp.Notification.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), changed.Changed)

	changed, err = svc.MarkAllRead(ctx, "u-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), changed.Changed)
}

func TestRemindersThroughService(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	ev, err := svc.AddCalendarEvent(ctx, api.CalendarEventRequest{
		ID: "ev-1", Title: "Demo", StartsAt: "2026-03-02T09:15:00Z",
	})
	require.NoError(t, err)
	assert.Equal(t, "2026-03-02T09:15:00.000Z", ev.StartsAt)

	_, err = svc.AddCalendarEvent(ctx, api.CalendarEventRequest{Title: "Bad", StartsAt: "tomorrow"})
	assert.ErrorIs(t, err, services.ErrInvalidArgument)

	_, err = svc.AddCalendarEvent(ctx, api.CalendarEventRequest{
		ID: "ev-1", Title: "Demo again", StartsAt: "2026-03-03T09:15:00Z",
	})
	require.ErrorIs(t, err, services.ErrInvalidArgument)
	assert.Equal(t, http.StatusBadRequest, services.HTTPStatus(err))

	set, err := svc.SetReminder(ctx, "ev-1", "u-1", "min_15")
	require.NoError(t, err)
	require.NotNil(t, set.Reminder)
	assert.Equal(t, "2026-03-02T09:00:00.000Z", set.Reminder.ReminderTime)

	poll, err := svc.PollReminders(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, poll.Fired)
	assert.Equal(t, 1, svc.Reminders().TotalFired)

	cleared, err := svc.SetReminder(ctx, "ev-1", "u-1", "none")
	require.NoError(t, err)
	assert.Nil(t, cleared.Reminder)
}
