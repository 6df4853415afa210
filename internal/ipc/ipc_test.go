package ipc_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crmflow/internal/api"
	"crmflow/internal/daemon"
	"crmflow/internal/engine"
	"crmflow/internal/ipc"
	"crmflow/internal/logging"
	"crmflow/internal/testsupport"
)

func startServer(t *testing.T) *ipc.Client {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	eng, err := engine.New(cfg, st, logging.NewNop(), engine.WithClock(testsupport.NewClock(time.Time{})))
	require.NoError(t, err)
	d, err := daemon.New(cfg, eng, logging.NewNop())
	require.NoError(t, err)
	t.Cleanup(d.Stop)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	srv, err := ipc.NewServer(ctx, cfg.SocketPath(), d, logging.NewNop())
	if err != nil && strings.Contains(err.Error(), "operation not permitted") {
		t.Skipf("skipping IPC server test: %v", err)
	}
	require.NoError(t, err)
	srv.Serve()
	t.Cleanup(srv.Close)

	client, err := ipc.Dial(cfg.SocketPath())
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return client
}

func TestIPCStartStopStatus(t *testing.T) {
	client := startServer(t)

	start, err := client.Start()
	require.NoError(t, err)
	assert.True(t, start.Started, start.Message)

	again, err := client.Start()
	require.NoError(t, err)
	assert.False(t, again.Started)

	status, err := client.Status()
	require.NoError(t, err)
	assert.True(t, status.Running)
	assert.True(t, status.Reminders.Running)
	assert.NotZero(t, status.PID)

	stop, err := client.Stop()
	require.NoError(t, err)
	assert.True(t, stop.Stopped)

	status, err = client.Status()
	require.NoError(t, err)
	assert.False(t, status.Running)
}

func TestIPCEntityWorkflow(t *testing.T) {
	client := startServer(t)

	_, err := client.UpsertUser(api.UserRequest{ID: "owner", DisplayName: "Owner"})
	require.NoError(t, err)

	e, err := client.CreateEntity("sales", api.CreateEntityRequest{ID: "ct-1", Type: "contact", Name: "Martin", OwnerID: "owner"})
	require.NoError(t, err)
	assert.Equal(t, "nouveau", e.Stage)

	res, err := client.Transition("sales", "ct-1", "client")
	require.NoError(t, err)
	assert.True(t, res.Applied)

	res, err = client.Transition("sales", "ct-1", "qualifie")
	require.NoError(t, err)
	assert.False(t, res.Applied)

	_, err = client.Transition("", "ct-1", "client")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "permission denied")

	history, err := client.History("ct-1")
	require.NoError(t, err)
	assert.Len(t, history.Intervals, 2)

	page, err := client.Timeline(ipc.TimelineRequest{SubjectID: "ct-1"})
	require.NoError(t, err)
	assert.Len(t, page.Events, 2)

	list, err := client.Notifications(ipc.NotificationsRequest{UserID: "owner"})
	require.NoError(t, err)
	require.Len(t, list.Items, 1)
	assert.Equal(t, "stage_changed", list.Items[0].Type)

	read, err := client.MarkAllRead("owner")
	require.NoError(t, err)
	assert.Equal(t, int64(1), read.Changed)

	_, err = client.Entity("missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestIPCReminders(t *testing.T) {
	client := startServer(t)

	_, err := client.AddEvent(api.CalendarEventRequest{ID: "ev-1", Title: "Visit", StartsAt: "2026-03-03T09:00:00Z"})
	require.NoError(t, err)

	set, err := client.SetReminder("ev-1", "u-1", "day_1")
	require.NoError(t, err)
	require.NotNil(t, set.Reminder)

	poll, err := client.PollReminders()
	require.NoError(t, err)
	assert.Equal(t, 1, poll.Fired)

	cleared, err := client.SetReminder("ev-1", "u-1", "none")
	require.NoError(t, err)
	assert.Nil(t, cleared.Reminder)
}
