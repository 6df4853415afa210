// Package store persists crmflow state in SQLite.
//
// A single database file holds the reference entity, user and calendar
// tables alongside the tables owned by the engine: stage history, the
// append-only timeline, notifications, notification preferences and event
// reminders. Writes that must be atomic (stage advances, reminder claims)
// are expressed as conditional updates so concurrent writers lose cleanly
// instead of corrupting state. Lookups return nil, nil for missing rows.
package store
