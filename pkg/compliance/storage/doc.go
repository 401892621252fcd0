// Package storage provides persistence backends for the compliance engine.
//
// # Storage Backends
//
// The package defines the Store interface and provides two implementations:
//
//   - SQLite: Embedded database for single-node deployments
//   - Memory: In-memory storage for testing
//
// # Compare-and-Swap Semantics
//
// The engine's correctness rests on the store, not on application locks.
// Every state-changing method that touches a version's active/approval status
// or a request's breach/escalation state runs as one atomic transaction with
// conditional updates:
//
//   - PromoteVersion activates an approved version and archives the prior
//     active version in one transaction; concurrent promotions on the same
//     policy race to exactly one winner.
//   - DecideApproval enforces the ascending-sequence rule, the approver-role
//     check, and the step's pending→decided swap atomically; a rejection
//     marks all remaining pending steps skipped in the same transaction.
//   - CompleteRequest swaps pending/breached→completed and inserts the
//     immutable acknowledgment together, so concurrent duplicate submissions
//     resolve to exactly one acknowledgment row.
//   - AdvanceEscalation is keyed on the request's last-notified level, which
//     lets overlapping sweep workers converge without duplicate
//     notifications.
//
// Audit appends share the transaction of the transition they describe: a
// failed audit write rolls the transition back.
//
// # SQLite Backend
//
// The SQLite backend uses WAL mode, a busy timeout, and a partial unique
// index on (policy_id) WHERE is_active=1 as a backstop for the single-active
// invariant. Create it with:
//
//	store, err := storage.NewSQLiteStore(&storage.SQLiteConfig{
//	    Path: "data/compliance.db",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer store.Close()
package storage
