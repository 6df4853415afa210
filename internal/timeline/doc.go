// Package timeline records the append-only audit trail of CRM subjects.
//
// Event ids are ULIDs derived from the injected clock, so lexical id order is
// creation order and Query can page newest-first with a simple cursor.
package timeline
