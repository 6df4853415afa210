// Package reminders schedules per-user event reminders and fires each one
// at most once, even when several pollers run against the same database.
package reminders
