// Package daemon coordinates the long-running crmflow process.
//
// It owns the flock-based single-instance lock, starts and stops the reminder
// runner, and serves the HTTP API. Handlers read the acting user from the
// X-Actor header, enforce the optional bearer token, and map error markers
// from internal/services onto HTTP status codes.
//
// Keep orchestration here: workflow rules live in the stages, timeline,
// notifications and reminders packages.
package daemon
