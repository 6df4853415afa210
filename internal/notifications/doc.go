// Package notifications persists in-app notifications and fans them out to
// push, email, SMS and WhatsApp.
//
// The Router is the only entry point. Create always writes the in-app row
// first; FanOut then attempts each channel allowed by the recipient's
// preferences (push, email) or explicitly requested by the caller (SMS,
// WhatsApp). Channels run concurrently under a per-send timeout and a failed
// channel is logged and reported, never returned, so callers cannot lose the
// in-app record because a provider is down.
//
// Push goes through ntfy over HTTP, email through net/smtp and SMS/WhatsApp
// through Twilio. Channels without configuration have no sender and are
// reported as skipped.
package notifications
