package reminders_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crmflow/internal/clock"
	"crmflow/internal/logging"
	"crmflow/internal/notifications"
	"crmflow/internal/preferences"
	"crmflow/internal/reminders"
	"crmflow/internal/services"
	"crmflow/internal/store"
	"crmflow/internal/testsupport"
)

type fixture struct {
	store     *store.Store
	clock     *clock.Manual
	router    *notifications.Router
	scheduler *reminders.Scheduler
	eventAt   time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	clk := testsupport.NewClock(time.Time{})
	prefs := preferences.NewService(st, clk, preferences.Defaults{}, logging.NewNop())
	router := notifications.NewRouter(notifications.Options{
		Store: st, Preferences: prefs, Clock: clk, Logger: logging.NewNop(),
	})
	eventAt := testsupport.Epoch.Add(time.Hour)
	testsupport.SeedUser(t, st, "u-1", "alice@example.com", "")
	testsupport.SeedCalendarEvent(t, st, "ev-1", "Site visit", eventAt)
	return &fixture{
		store:   st,
		clock:   clk,
		router:  router,
		eventAt: eventAt,
		scheduler: reminders.NewScheduler(reminders.Options{
			Store: st, Dispatcher: router, Clock: clk, Logger: logging.NewNop(),
			GraceWindow: 5 * time.Minute,
		}),
	}
}

func (f *fixture) reminderCount(t *testing.T) int {
	t.Helper()
	n, err := f.store.CountNotifications(context.Background(), "u-1", notifications.TypeReminder)
	require.NoError(t, err)
	return n
}

func TestScheduleComputesReminderTime(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for reminderType, offset := range map[string]time.Duration{
		reminders.TypeMin15: 15 * time.Minute,
		reminders.TypeHour1: time.Hour,
		reminders.TypeDay1:  24 * time.Hour,
	} {
		r, err := f.scheduler.Schedule(ctx, "ev-1", "u-1", reminderType)
		require.NoError(t, err, reminderType)
		assert.True(t, r.ReminderTime.Equal(f.eventAt.Add(-offset)), reminderType)
		assert.Equal(t, reminderType, r.ReminderType)
		assert.False(t, r.NotificationSent)
	}
	count, err := f.store.CountReminders(ctx, "ev-1", "u-1")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestScheduleValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.scheduler.Schedule(ctx, "ev-1", "u-1", "week_1")
	assert.ErrorIs(t, err, services.ErrInvalidArgument)

	_, err = f.scheduler.Schedule(ctx, "", "u-1", reminders.TypeMin15)
	assert.ErrorIs(t, err, services.ErrInvalidArgument)

	_, err = f.scheduler.Schedule(ctx, "ev-missing", "u-1", reminders.TypeMin15)
	assert.ErrorIs(t, err, services.ErrNotFound)
}

func TestScheduleNoneRemovesReminder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.scheduler.Schedule(ctx, "ev-1", "u-1", reminders.TypeMin15)
	require.NoError(t, err)

	r, err := f.scheduler.Schedule(ctx, "ev-1", "u-1", reminders.TypeNone)
	require.NoError(t, err)
	assert.Nil(t, r)

	count, err := f.store.CountReminders(ctx, "ev-1", "u-1")
	require.NoError(t, err)
	assert.Zero(t, count)

	// Clearing an absent reminder is not an error.
	_, err = f.scheduler.Schedule(ctx, "ev-1", "u-1", reminders.TypeNone)
	require.NoError(t, err)
}

func TestPollFiresOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.scheduler.Schedule(ctx, "ev-1", "u-1", reminders.TypeMin15)
	require.NoError(t, err)

	f.clock.Set(f.eventAt.Add(-15*time.Minute + 10*time.Second))
	fired, err := f.scheduler.Poll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, fired)
	assert.Equal(t, 1, f.reminderCount(t))

	r, err := f.store.GetReminder(ctx, "ev-1", "u-1")
	require.NoError(t, err)
	assert.True(t, r.NotificationSent)

	f.clock.Set(f.eventAt.Add(-15*time.Minute + 20*time.Second))
	fired, err = f.scheduler.Poll(ctx)
	require.NoError(t, err)
	assert.Zero(t, fired)
	assert.Equal(t, 1, f.reminderCount(t))

	list, err := f.router.List(ctx, "u-1", true, 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "event", list[0].LinkedType)
	assert.Equal(t, "ev-1", list[0].LinkedID)
	assert.Equal(t, services.SystemActor, list[0].CreatedBy)
}

func TestPollBeforeDueFiresNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.scheduler.Schedule(ctx, "ev-1", "u-1", reminders.TypeMin15)
	require.NoError(t, err)

	f.clock.Set(f.eventAt.Add(-16 * time.Minute))
	fired, err := f.scheduler.Poll(ctx)
	require.NoError(t, err)
	assert.Zero(t, fired)
	assert.Zero(t, f.reminderCount(t))
}

func TestPollSkipsRemindersPastGraceWindow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.scheduler.Schedule(ctx, "ev-1", "u-1", reminders.TypeMin15)
	require.NoError(t, err)

	f.clock.Set(f.eventAt.Add(-15*time.Minute + 6*time.Minute))
	fired, err := f.scheduler.Poll(ctx)
	require.NoError(t, err)
	assert.Zero(t, fired)

	r, err := f.store.GetReminder(ctx, "ev-1", "u-1")
	require.NoError(t, err)
	assert.False(t, r.NotificationSent)
}

func TestRescheduleResetsSentFlag(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.scheduler.Schedule(ctx, "ev-1", "u-1", reminders.TypeMin15)
	require.NoError(t, err)
	f.clock.Set(f.eventAt.Add(-15 * time.Minute))
	_, err = f.scheduler.Poll(ctx)
	require.NoError(t, err)

	f.clock.Set(testsupport.Epoch)
	second, err := f.scheduler.Schedule(ctx, "ev-1", "u-1", reminders.TypeMin15)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.False(t, second.NotificationSent)

	f.clock.Set(f.eventAt.Add(-15 * time.Minute))
	fired, err := f.scheduler.Poll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, fired)
	assert.Equal(t, 2, f.reminderCount(t))
}

func TestConcurrentPollsFireExactlyOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.scheduler.Schedule(ctx, "ev-1", "u-1", reminders.TypeHour1)
	require.NoError(t, err)
	f.clock.Set(f.eventAt.Add(-time.Hour + time.Second))

	const pollers = 8
	var (
		wg    sync.WaitGroup
		total atomic.Int64
	)
	for range pollers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fired, err := f.scheduler.Poll(ctx)
			assert.NoError(t, err)
			total.Add(int64(fired))
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), total.Load())
	assert.Equal(t, 1, f.reminderCount(t))
}

func TestPollAcrossStoreConnections(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	primary := testsupport.MustOpenStore(t, cfg)
	secondary := testsupport.MustOpenStore(t, cfg)
	clk := testsupport.NewClock(time.Time{})
	testsupport.SeedUser(t, primary, "u-1", "", "")
	testsupport.SeedCalendarEvent(t, primary, "ev-1", "Call", testsupport.Epoch.Add(15*time.Minute))

	var dispatched atomic.Int64
	dispatcher := dispatchFunc(func(context.Context, notifications.Draft) error {
		dispatched.Add(1)
		return nil
	})
	schedulers := []*reminders.Scheduler{
		reminders.NewScheduler(reminders.Options{Store: primary, Dispatcher: dispatcher, Clock: clk}),
		reminders.NewScheduler(reminders.Options{Store: secondary, Dispatcher: dispatcher, Clock: clk}),
	}
	_, err := schedulers[0].Schedule(context.Background(), "ev-1", "u-1", reminders.TypeMin15)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for _, s := range schedulers {
		for range 4 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := s.Poll(context.Background())
				assert.NoError(t, err)
			}()
		}
	}
	wg.Wait()
	assert.Equal(t, int64(1), dispatched.Load())
}

func TestDispatchFailureKeepsReminderFired(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	clk := testsupport.NewClock(time.Time{})
	testsupport.SeedCalendarEvent(t, st, "ev-1", "Demo", testsupport.Epoch.Add(15*time.Minute))

	var calls atomic.Int64
	s := reminders.NewScheduler(reminders.Options{
		Store: st, Clock: clk,
		Dispatcher: dispatchFunc(func(context.Context, notifications.Draft) error {
			calls.Add(1)
			return errors.New("notification store unavailable")
		}),
	})
	_, err := s.Schedule(context.Background(), "ev-1", "u-1", reminders.TypeMin15)
	require.NoError(t, err)

	fired, err := s.Poll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, fired)

	fired, err = s.Poll(context.Background())
	require.NoError(t, err)
	assert.Zero(t, fired)
	assert.Equal(t, int64(1), calls.Load())
}

type dispatchFunc func(context.Context, notifications.Draft) error

func (f dispatchFunc) Notify(ctx context.Context, d notifications.Draft, _ notifications.FanOutOptions) (*store.Notification, notifications.DeliveryReport, error) {
	if err := f(ctx, d); err != nil {
		return nil, notifications.DeliveryReport{}, err
	}
	return &store.Notification{ID: "n-" + d.LinkedID, UserID: d.UserID}, notifications.DeliveryReport{}, nil
}

func TestHungChannelDoesNotStallPoll(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	clk := testsupport.NewClock(time.Time{})
	ctx := context.Background()
	prefs := preferences.NewService(st, clk, preferences.Defaults{}, logging.NewNop())
	topic := "crm-u1"
	require.NoError(t, prefs.Set(ctx, "u-1", preferences.Update{PushEnabled: true, PushSubscription: &topic}))

	push := &testsupport.RecordingSender{Block: true}
	router := notifications.NewRouter(notifications.Options{
		Store: st, Preferences: prefs, Clock: clk, Logger: logging.NewNop(),
		Senders:     map[notifications.Channel]notifications.Sender{notifications.ChannelPush: push},
		SendTimeout: 200 * time.Millisecond,
	})
	s := reminders.NewScheduler(reminders.Options{
		Store: st, Dispatcher: router, Clock: clk, Logger: logging.NewNop(),
		GraceWindow: 5 * time.Minute,
		PollTimeout: 500 * time.Millisecond,
	})

	const total = 10
	testsupport.SeedUser(t, st, "u-1", "", "")
	for i := range total {
		id := fmt.Sprintf("ev-%d", i)
		testsupport.SeedCalendarEvent(t, st, id, "Visit "+id, testsupport.Epoch.Add(15*time.Minute))
		_, err := s.Schedule(ctx, id, "u-1", reminders.TypeMin15)
		require.NoError(t, err)
	}

	fired, err := s.Poll(ctx)
	require.NoError(t, err)
	assert.Equal(t, total, fired)
	assert.Equal(t, total, push.Count())

	n, err := st.CountNotifications(ctx, "u-1", notifications.TypeReminder)
	require.NoError(t, err)
	assert.Equal(t, total, n)

	fired, err = s.Poll(ctx)
	require.NoError(t, err)
	assert.Zero(t, fired)
}
