// Package access lets read-only CLI commands work whether or not the daemon
// is running.
package access
