// Package compliance defines the core domain model for the policy lifecycle
// and acknowledgment engine: policies and their immutable versions, approval
// chains, acknowledgment campaigns and requests, SLA escalation matrices, and
// the append-only audit trail.
//
// # Entities
//
// A Policy owns an ordered set of PolicyVersion records, of which at most one
// is active at any instant. Versions move from draft through pending_approval
// to approved or rejected under an ApprovalWorkflow, and an approved version
// is promoted to active by an explicit, separate call: approval accepts
// content, promotion makes it SLA-relevant.
//
// An AcknowledgmentCampaign fans out into one AcknowledgmentRequest per
// (employee, version) pair; each request tracks a due date, breach state, and
// the highest escalation level already notified. A PolicyAcknowledgment is
// the immutable proof of completion.
//
// # Errors
//
// The package defines the shared error taxonomy: ValidationError (caller's
// fault), InvalidStateError (operation not valid for current state, also the
// loser of a compare-and-swap race), SequenceViolationError (approval out of
// order), AuthorizationError (wrong actor), NotFoundError, and StorageError.
// Callers match them with errors.As.
package compliance
