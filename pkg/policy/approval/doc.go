// Package approval implements sequential approval workflows over policy
// versions.
//
// A workflow is an ordered chain of (sequence, approver role) steps scoped
// to a company and policy type. When a version is submitted, the chain is
// materialized into per-step approval rows; approvers then decide strictly
// in sequence order. One rejection terminates the chain, marks the later
// pending rows skipped, and moves the version to rejected. Approving the
// final step moves the version to approved.
package approval
