// Package logging assembles structured slog loggers used across crmflow.
//
// It owns the console and JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so request handlers and the
// reminder poller tag log lines with actor, entity, user and correlation IDs.
// A no-op logger is provided for tests and wiring code that cannot fail.
package logging
