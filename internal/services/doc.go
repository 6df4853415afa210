// Package services defines shared utilities consumed by the stage controller,
// timeline, notification router, and reminder scheduler.
//
// Key responsibilities:
//   - Context helpers that stamp actors, entity IDs, recipients, and correlation
//     identifiers for logging and tracing.
//   - Structured error markers plus the Wrap helper that classify failures
//     (not found, invalid argument, permission denied, delivery failure,
//     concurrency conflict) for API status mapping and retry decisions.
//
// Use these helpers when wiring new components so operational behaviour (error
// handling, observability, retries) stays uniform across the engine.
package services
