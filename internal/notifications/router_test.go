package notifications_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crmflow/internal/clock"
	"crmflow/internal/logging"
	"crmflow/internal/notifications"
	"crmflow/internal/preferences"
	"crmflow/internal/services"
	"crmflow/internal/store"
	"crmflow/internal/testsupport"
)

type fixture struct {
	store    *store.Store
	prefs    *preferences.Service
	router   *notifications.Router
	clock    *clock.Manual
	push     *testsupport.RecordingSender
	email    *testsupport.RecordingSender
	sms      *testsupport.RecordingSender
	whatsApp *testsupport.RecordingSender
}

func newFixture(t *testing.T, dedup time.Duration) *fixture {
	t.Helper()
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	clk := testsupport.NewClock(time.Time{})
	f := &fixture{
		store:    st,
		clock:    clk,
		prefs:    preferences.NewService(st, clk, preferences.Defaults{EmailEnabled: true}, logging.NewNop()),
		push:     &testsupport.RecordingSender{},
		email:    &testsupport.RecordingSender{},
		sms:      &testsupport.RecordingSender{},
		whatsApp: &testsupport.RecordingSender{},
	}
	f.router = notifications.NewRouter(notifications.Options{
		Store:       st,
		Preferences: f.prefs,
		Directory:   notifications.NewStoreDirectory(st),
		Senders: map[notifications.Channel]notifications.Sender{
			notifications.ChannelPush:     f.push,
			notifications.ChannelEmail:    f.email,
			notifications.ChannelSMS:      f.sms,
			notifications.ChannelWhatsApp: f.whatsApp,
		},
		Clock:       clk,
		Logger:      logging.NewNop(),
		SendTimeout: 200 * time.Millisecond,
		DedupWindow: dedup,
	})
	testsupport.SeedUser(t, st, "u-1", "alice@example.com", "+33600000001")
	return f
}

func draft() notifications.Draft {
	return notifications.Draft{
		UserID:   "u-1",
		Type:     notifications.TypeStageChanged,
		Priority: notifications.PriorityNormal,
		Title:    "Dossier avancé",
		Message:  "Le dossier Dupont passe en cours",
		LinkedID: "e-1",
	}
}

func TestCreateValidatesRequiredFields(t *testing.T) {
	f := newFixture(t, 0)
	_, err := f.router.Create(context.Background(), notifications.Draft{UserID: "u-1"})
	require.ErrorIs(t, err, services.ErrInvalidArgument)
	assert.Contains(t, err.Error(), "priority")

	bad := draft()
	bad.Priority = "critical"
	_, err = f.router.Create(context.Background(), bad)
	require.ErrorIs(t, err, services.ErrInvalidArgument)

	count, err := f.store.CountNotifications(context.Background(), "u-1", "")
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestCreateDuplicatesWithoutDedupWindow(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()
	first, err := f.router.Create(ctx, draft())
	require.NoError(t, err)
	second, err := f.router.Create(ctx, draft())
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)

	count, err := f.store.CountNotifications(ctx, "u-1", notifications.TypeStageChanged)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestCreateDedupWithinWindow(t *testing.T) {
	f := newFixture(t, time.Minute)
	ctx := context.Background()
	first, err := f.router.Create(ctx, draft())
	require.NoError(t, err)

	f.clock.Advance(30 * time.Second)
	second, err := f.router.Create(ctx, draft())
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	f.clock.Advance(time.Minute)
	third, err := f.router.Create(ctx, draft())
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, third.ID)
}

func TestNotifyPreferenceGating(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()
	require.NoError(t, f.prefs.Set(ctx, "u-1", preferences.Update{PushEnabled: false, EmailEnabled: true}))

	n, report, err := f.router.Notify(ctx, draft(), notifications.FanOutOptions{})
	require.NoError(t, err)
	require.NotNil(t, n)

	count, err := f.store.CountNotifications(ctx, "u-1", "")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.Equal(t, 1, f.email.Count())
	assert.Zero(t, f.push.Count())
	assert.Zero(t, f.sms.Count())
	assert.Zero(t, f.whatsApp.Count())
	assert.True(t, report.DeliveredChannel(notifications.ChannelEmail))
	assert.False(t, report.AttemptedChannel(notifications.ChannelPush))
	assert.Equal(t, "alice@example.com", f.email.Deliveries()[0].Target)
}

func TestFanOutPushNeedsSubscription(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()
	n, err := f.router.Create(ctx, draft())
	require.NoError(t, err)

	report := f.router.FanOut(ctx, n, preferences.Preference{UserID: "u-1", PushEnabled: true}, notifications.FanOutOptions{})
	assert.Zero(t, f.push.Count())
	assert.Contains(t, report.Skipped, notifications.ChannelPush)

	report = f.router.FanOut(ctx, n, preferences.Preference{UserID: "u-1", PushEnabled: true, PushSubscription: "crm-u1"}, notifications.FanOutOptions{})
	assert.Equal(t, 1, f.push.Count())
	assert.True(t, report.DeliveredChannel(notifications.ChannelPush))
}

func TestFanOutExplicitPhoneChannels(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()
	n, err := f.router.Create(ctx, draft())
	require.NoError(t, err)

	f.router.FanOut(ctx, n, preferences.Preference{UserID: "u-1"}, notifications.FanOutOptions{SMS: true, WhatsApp: true})
	assert.Equal(t, 1, f.sms.Count())
	assert.Equal(t, 1, f.whatsApp.Count())
	assert.Zero(t, f.email.Count())
	assert.Equal(t, "+33600000001", f.sms.Deliveries()[0].Target)
}

func TestFanOutIsolatesChannelFailures(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()
	f.email.Err = errors.New("smtp: 554 rejected")
	f.push.Block = true

	n, err := f.router.Create(ctx, draft())
	require.NoError(t, err)

	start := time.Now()
	report := f.router.FanOut(ctx, n,
		preferences.Preference{UserID: "u-1", PushEnabled: true, EmailEnabled: true, PushSubscription: "crm-u1"},
		notifications.FanOutOptions{SMS: true})
	assert.Less(t, time.Since(start), 5*time.Second)

	assert.True(t, report.DeliveredChannel(notifications.ChannelSMS))
	require.Len(t, report.Failed, 2)
	failed := map[notifications.Channel]string{}
	for _, failure := range report.Failed {
		failed[failure.Channel] = failure.Error
	}
	assert.Contains(t, failed[notifications.ChannelEmail], "554")
	assert.Contains(t, failed, notifications.ChannelPush)

	stored, err := f.store.GetNotification(ctx, n.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.False(t, stored.IsRead)
}

func TestMarkReadAndMarkAllRead(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()
	n1, err := f.router.Create(ctx, draft())
	require.NoError(t, err)
	_, err = f.router.Create(ctx, draft())
	require.NoError(t, err)
	_, err = f.router.Create(ctx, draft())
	require.NoError(t, err)

	changed, err := f.router.MarkRead(ctx, n1.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, changed)

	changed, err = f.router.MarkRead(ctx, n1.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 0, changed)

	_, err = f.router.MarkRead(ctx, "missing")
	require.ErrorIs(t, err, services.ErrNotFound)

	unread, err := f.router.UnreadCount(ctx, "u-1")
	require.NoError(t, err)
	assert.Equal(t, 2, unread)

	changed, err = f.router.MarkAllRead(ctx, "u-1")
	require.NoError(t, err)
	assert.EqualValues(t, 2, changed)

	list, err := f.router.List(ctx, "u-1", true, 10)
	require.NoError(t, err)
	assert.Empty(t, list)

	all, err := f.router.List(ctx, "u-1", false, 10)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}
