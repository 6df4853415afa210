package store_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crmflow/internal/store"
	"crmflow/internal/testsupport"
)

func openStore(t *testing.T) *store.Store {
	t.Helper()
	return testsupport.MustOpenStore(t, testsupport.NewConfig(t))
}

func TestCreateEntityOpensFirstInterval(t *testing.T) {
	st := openStore(t)
	ctx := context.Background()
	t0 := testsupport.Epoch

	testsupport.SeedEntity(t, st, "e-1", "lead", "nouveau", "owner-1", t0)

	got, err := st.GetEntity(ctx, "e-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "nouveau", got.Stage)
	assert.Equal(t, "owner-1", got.OwnerID)
	assert.True(t, got.CreatedAt.Equal(t0))

	history, err := st.ListIntervals(ctx, "e-1")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "nouveau", history[0].StageName)
	assert.True(t, history[0].Open())
}

func TestGetMissingRowsReturnNil(t *testing.T) {
	st := openStore(t)
	ctx := context.Background()

	e, err := st.GetEntity(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, e)

	iv, err := st.OpenInterval(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, iv)

	n, err := st.GetNotification(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, n)

	p, err := st.GetPreference(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestInsertCalendarEventRejectsDuplicateID(t *testing.T) {
	st := openStore(t)
	ctx := context.Background()
	ev := &store.CalendarEvent{ID: "ev-1", Title: "Demo", StartsAt: testsupport.Epoch, CreatedAt: testsupport.Epoch}
	require.NoError(t, st.InsertCalendarEvent(ctx, ev))

	err := st.InsertCalendarEvent(ctx, ev)
	assert.ErrorIs(t, err, store.ErrDuplicate)
}

func TestAdvanceStageClosesAndOpens(t *testing.T) {
	st := openStore(t)
	ctx := context.Background()
	t0 := testsupport.Epoch
	t1 := t0.Add(time.Hour)
	testsupport.SeedEntity(t, st, "e-1", "lead", "nouveau", "", t0)

	opened, err := st.AdvanceStage(ctx, "e-1", "nouveau", "en_cours", t1)
	require.NoError(t, err)
	assert.Equal(t, "en_cours", opened.StageName)

	history, err := st.ListIntervals(ctx, "e-1")
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.NotNil(t, history[0].EndedAt)
	assert.True(t, history[0].EndedAt.Equal(t1))
	assert.True(t, history[1].StartedAt.Equal(t1))
	assert.Nil(t, history[1].EndedAt)
}

func TestAdvanceStageRejectsStaleObservation(t *testing.T) {
	st := openStore(t)
	ctx := context.Background()
	testsupport.SeedEntity(t, st, "e-1", "lead", "nouveau", "", testsupport.Epoch)

	_, err := st.AdvanceStage(ctx, "e-1", "nouveau", "en_cours", testsupport.Epoch.Add(time.Minute))
	require.NoError(t, err)

	_, err = st.AdvanceStage(ctx, "e-1", "nouveau", "qualifie", testsupport.Epoch.Add(2*time.Minute))
	require.ErrorIs(t, err, store.ErrStageConflict)

	open, err := st.CountOpenIntervals(ctx, "e-1")
	require.NoError(t, err)
	assert.Equal(t, 1, open)
}

func TestConcurrentAdvanceKeepsSingleOpenInterval(t *testing.T) {
	st := openStore(t)
	ctx := context.Background()
	testsupport.SeedEntity(t, st, "e-1", "opportunity", "nouveau", "", testsupport.Epoch)

	targets := []string{"en_cours", "qualifie", "proposition", "negociation", "signe", "gagne"}
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for i, target := range targets {
		wg.Add(1)
		go func(i int, target string) {
			defer wg.Done()
			_, err := st.AdvanceStage(ctx, "e-1", "nouveau", target, testsupport.Epoch.Add(time.Duration(i+1)*time.Second))
			if err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
				return
			}
			assert.True(t, errors.Is(err, store.ErrStageConflict), "unexpected error: %v", err)
		}(i, target)
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	open, err := st.CountOpenIntervals(ctx, "e-1")
	require.NoError(t, err)
	assert.Equal(t, 1, open)
	history, err := st.ListIntervals(ctx, "e-1")
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

func TestTimelineRowsCannotChange(t *testing.T) {
	st := openStore(t)
	ctx := context.Background()
	ev := &store.TimelineEvent{
		ID: "01J000000000000000000000A1", SubjectID: "e-1", SubjectType: "lead",
		EventType: "note", Title: "called", Author: "u-1", CreatedAt: testsupport.Epoch,
		Metadata: map[string]any{"k": "v"},
	}
	require.NoError(t, st.InsertTimelineEvent(ctx, ev))

	_, err := rawExec(t, st, `UPDATE timeline SET title = 'changed' WHERE id = ?`, ev.ID)
	require.Error(t, err)
	_, err = rawExec(t, st, `DELETE FROM timeline WHERE id = ?`, ev.ID)
	require.Error(t, err)

	got, err := st.GetTimelineEvent(ctx, ev.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "called", got.Title)
	assert.Equal(t, "v", got.Metadata["k"])
}

func TestListTimelineNewestFirstWithCursor(t *testing.T) {
	st := openStore(t)
	ctx := context.Background()
	ids := []string{"01J000000000000000000000A1", "01J000000000000000000000A2", "01J000000000000000000000A3"}
	for i, id := range ids {
		require.NoError(t, st.InsertTimelineEvent(ctx, &store.TimelineEvent{
			ID: id, SubjectID: "e-1", SubjectType: "lead", EventType: "note",
			Title: id, Author: "u-1", CreatedAt: testsupport.Epoch.Add(time.Duration(i) * time.Minute),
		}))
	}

	page, err := st.ListTimeline(ctx, "e-1", "", 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, ids[2], page[0].ID)
	assert.Equal(t, ids[1], page[1].ID)

	next, err := st.ListTimeline(ctx, "e-1", page[1].ID, 2)
	require.NoError(t, err)
	require.Len(t, next, 1)
	assert.Equal(t, ids[0], next[0].ID)
}

func TestNotificationReadIsMonotonic(t *testing.T) {
	st := openStore(t)
	ctx := context.Background()
	n := &store.Notification{ID: "n-1", UserID: "u-1", Type: "system", Priority: "normal",
		Title: "hello", Message: "world", CreatedAt: testsupport.Epoch}
	require.NoError(t, st.InsertNotification(ctx, n))

	changed, err := st.MarkNotificationRead(ctx, "n-1", testsupport.Epoch.Add(time.Minute))
	require.NoError(t, err)
	assert.EqualValues(t, 1, changed)

	changed, err = st.MarkNotificationRead(ctx, "n-1", testsupport.Epoch.Add(2*time.Minute))
	require.NoError(t, err)
	assert.EqualValues(t, 0, changed)

	got, err := st.GetNotification(ctx, "n-1")
	require.NoError(t, err)
	require.True(t, got.IsRead)
	require.NotNil(t, got.ReadAt)
	assert.True(t, got.ReadAt.Equal(testsupport.Epoch.Add(time.Minute)))

	_, err = rawExec(t, st, `UPDATE notifications SET is_read = 0 WHERE id = ?`, "n-1")
	require.Error(t, err)
}

func TestUpsertPreferenceKeepsSubscriptionWhenNil(t *testing.T) {
	st := openStore(t)
	ctx := context.Background()
	topic := "crm-u1"
	require.NoError(t, st.UpsertPreference(ctx, "u-1", true, true, &topic, testsupport.Epoch))
	require.NoError(t, st.UpsertPreference(ctx, "u-1", false, true, nil, testsupport.Epoch))

	p, err := st.GetPreference(ctx, "u-1")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.False(t, p.PushEnabled)
	assert.Equal(t, "crm-u1", p.PushSubscription)

	empty := ""
	require.NoError(t, st.UpsertPreference(ctx, "u-1", false, false, &empty, testsupport.Epoch))
	p, err = st.GetPreference(ctx, "u-1")
	require.NoError(t, err)
	assert.Empty(t, p.PushSubscription)
	assert.False(t, p.EmailEnabled)
}

func TestReminderUpsertAndClaim(t *testing.T) {
	st := openStore(t)
	ctx := context.Background()
	start := testsupport.Epoch.Add(24 * time.Hour)
	testsupport.SeedCalendarEvent(t, st, "ev-1", "Visite chantier", start)

	first, err := st.UpsertReminder(ctx, &store.Reminder{ID: "r-1", EventID: "ev-1", UserID: "u-1",
		ReminderTime: start.Add(-15 * time.Minute), ReminderType: "min_15", UpdatedAt: testsupport.Epoch})
	require.NoError(t, err)

	claimed, err := st.ClaimReminder(ctx, first.ID)
	require.NoError(t, err)
	assert.True(t, claimed)

	second, err := st.UpsertReminder(ctx, &store.Reminder{ID: "r-2", EventID: "ev-1", UserID: "u-1",
		ReminderTime: start.Add(-time.Hour), ReminderType: "hour_1", UpdatedAt: testsupport.Epoch})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "hour_1", second.ReminderType)
	assert.False(t, second.NotificationSent)
	assert.True(t, second.ReminderTime.Equal(start.Add(-time.Hour)))

	count, err := st.CountReminders(ctx, "ev-1", "u-1")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestDueRemindersWindow(t *testing.T) {
	st := openStore(t)
	ctx := context.Background()
	now := testsupport.Epoch
	testsupport.SeedCalendarEvent(t, st, "ev-1", "RDV", now.Add(time.Hour))

	seed := func(id, user string, at time.Time) {
		_, err := st.UpsertReminder(ctx, &store.Reminder{ID: id, EventID: "ev-1", UserID: user,
			ReminderTime: at, ReminderType: "min_15", UpdatedAt: now})
		require.NoError(t, err)
	}
	seed("r-due", "u-1", now.Add(-10*time.Second))
	seed("r-old", "u-2", now.Add(-10*time.Minute))
	seed("r-future", "u-3", now.Add(time.Second))
	seed("r-edge", "u-4", now.Add(-5*time.Minute))

	due, err := st.DueReminders(ctx, now.Add(-5*time.Minute), now, 10)
	require.NoError(t, err)
	var ids []string
	for _, d := range due {
		ids = append(ids, d.ID)
		assert.Equal(t, "RDV", d.EventTitle)
	}
	assert.Equal(t, []string{"r-edge", "r-due"}, ids)
}

func TestConcurrentClaimsFlipOnce(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	other, err := store.OpenPath(cfg.DatabasePath())
	require.NoError(t, err)
	t.Cleanup(func() { _ = other.Close() })

	ctx := context.Background()
	testsupport.SeedCalendarEvent(t, st, "ev-1", "RDV", testsupport.Epoch)
	_, err = st.UpsertReminder(ctx, &store.Reminder{ID: "r-1", EventID: "ev-1", UserID: "u-1",
		ReminderTime: testsupport.Epoch, ReminderType: "min_15", UpdatedAt: testsupport.Epoch})
	require.NoError(t, err)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(s *store.Store) {
			defer wg.Done()
			ok, err := s.ClaimReminder(ctx, "r-1")
			assert.NoError(t, err)
			if ok {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}([]*store.Store{st, other}[i%2])
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
}

func TestReopenDetectsExistingSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "crmflow.db")
	first, err := store.OpenPath(path)
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := store.OpenPath(path)
	require.NoError(t, err)
	require.NoError(t, second.Close())
}

func rawExec(t *testing.T, st *store.Store, query string, args ...any) (any, error) {
	t.Helper()
	return store.ExecRaw(t, st, query, args...)
}
