// Package clock abstracts the current time so stage transitions, timeline
// events, and reminder polling can be driven deterministically in tests.
package clock
