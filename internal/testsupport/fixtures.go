package testsupport

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"crmflow/internal/clock"
	"crmflow/internal/store"
)

// Epoch is the default start time for manual clocks in tests.
var Epoch = time.Date(2026, time.March, 2, 9, 0, 0, 0, time.UTC)

// NewClock returns a manual clock starting at start, or at Epoch when start
// is zero.
func NewClock(start time.Time) *clock.Manual {
	if start.IsZero() {
		start = Epoch
	}
	return clock.NewManual(start)
}

// SeedUser stores a directory user.
func SeedUser(t testing.TB, st *store.Store, id, email, phone string) *store.User {
	t.Helper()
	u := &store.User{ID: id, DisplayName: id, Email: email, Phone: phone, CreatedAt: Epoch}
	require.NoError(t, st.UpsertUser(context.Background(), u), "seed user %s", id)
	return u
}

// SeedCalendarEvent stores a calendar event starting at startsAt.
func SeedCalendarEvent(t testing.TB, st *store.Store, id, title string, startsAt time.Time) *store.CalendarEvent {
	t.Helper()
	ev := &store.CalendarEvent{ID: id, Title: title, StartsAt: startsAt, CreatedAt: Epoch}
	require.NoError(t, st.InsertCalendarEvent(context.Background(), ev), "seed calendar event %s", id)
	return ev
}

// SeedEntity stores an entity directly at stage, bypassing timeline and
// notification side effects.
func SeedEntity(t testing.TB, st *store.Store, id, entityType, stage, ownerID string, at time.Time) *store.Entity {
	t.Helper()
	e := &store.Entity{ID: id, Type: entityType, Name: id, Stage: stage, OwnerID: ownerID, CreatedAt: at}
	require.NoError(t, st.CreateEntity(context.Background(), e), "seed entity %s", id)
	return e
}
