// Package acknowledgment implements acknowledgment campaigns.
//
// A campaign binds a set of active policy versions to a time window and a
// grace period. Expansion turns the campaign into per-employee requests,
// one per (employee, version) pair, with due dates derived from the
// campaign type. Expansion is idempotent; re-running it never duplicates a
// request. Acknowledgment submission completes a request and writes the
// immutable acknowledgment record in the same transaction.
package acknowledgment
