// Package sla implements deadline enforcement for acknowledgment requests.
//
// The sweeper periodically scans open requests, transitions overdue ones to
// breached, and walks each breached request up its company's escalation
// matrix. Levels are claimed with a compare-and-swap in the store before
// any notification goes out, so concurrent sweepers never double-notify a
// level, and a request is never escalated past the level its breach age has
// earned. Escalation matrices come from a YAML file, from configuration
// rows in the store, or both chained; the file can be hot-reloaded.
package sla
