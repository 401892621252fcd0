// Package notify decouples the engine from notification transports.
//
// The Notifier interface accepts one-way messages; the Outbox implementation
// persists them to a dedicated SQLite queue and drains them to a Sender on a
// background loop with exponential backoff. Because enqueueing is a local
// write, a transport outage never stalls the SLA sweep, and a retried
// delivery never re-runs escalation logic; the sweep's level bookkeeping
// lives in the compliance store, not here.
package notify
