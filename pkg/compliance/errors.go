package compliance

import "fmt"

// ValidationError indicates malformed input. The caller's fault; never
// retried.
type ValidationError struct {
	Field   string // Offending field, if attributable
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation error [field=%s]: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation error: %s", e.Message)
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// InvalidStateError indicates an operation that is not valid for the entity's
// current state. Also returned to the loser of a compare-and-swap race
// (promote, approval decision): the caller may re-read current state and
// retry once, but the error itself is never retried automatically.
type InvalidStateError struct {
	Entity    string // Entity type ("policy_version", "acknowledgment_request", ...)
	ID        string // Entity identifier
	Current   string // Observed state
	Operation string // Attempted operation
}

// Error implements the error interface.
func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("invalid state [%s=%s, state=%s]: cannot %s",
		e.Entity, e.ID, e.Current, e.Operation)
}

// NewInvalidStateError creates a new InvalidStateError.
func NewInvalidStateError(entity, id, current, operation string) *InvalidStateError {
	return &InvalidStateError{Entity: entity, ID: id, Current: current, Operation: operation}
}

// SequenceViolationError indicates an approval attempted out of order:
// sequence k may be decided only after sequence k-1 is approved.
type SequenceViolationError struct {
	VersionID string
	Sequence  int // Sequence that was attempted
	BlockedBy int // Earlier sequence still undecided
}

// Error implements the error interface.
func (e *SequenceViolationError) Error() string {
	return fmt.Sprintf("sequence violation [version=%s]: sequence %d cannot be decided before sequence %d",
		e.VersionID, e.Sequence, e.BlockedBy)
}

// NewSequenceViolationError creates a new SequenceViolationError.
func NewSequenceViolationError(versionID string, sequence, blockedBy int) *SequenceViolationError {
	return &SequenceViolationError{VersionID: versionID, Sequence: sequence, BlockedBy: blockedBy}
}

// AuthorizationError indicates the wrong actor attempted an operation.
// Surfaced to the caller and logged as a potential audit/security event.
type AuthorizationError struct {
	Actor     string
	Operation string
	Resource  string
}

// Error implements the error interface.
func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("authorization error [actor=%s]: not permitted to %s %s",
		e.Actor, e.Operation, e.Resource)
}

// NewAuthorizationError creates a new AuthorizationError.
func NewAuthorizationError(actor, operation, resource string) *AuthorizationError {
	return &AuthorizationError{Actor: actor, Operation: operation, Resource: resource}
}

// NotFoundError indicates a referenced entity does not exist.
type NotFoundError struct {
	Entity string
	ID     string
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("not found [%s=%s]", e.Entity, e.ID)
}

// NewNotFoundError creates a new NotFoundError.
func NewNotFoundError(entity, id string) *NotFoundError {
	return &NotFoundError{Entity: entity, ID: id}
}

// StorageError represents a fault in the storage backend.
type StorageError struct {
	Backend   string // Storage backend type ("sqlite", "memory")
	Operation string // Operation that failed ("promote_version", "insert_request", ...)
	Cause     error  // Underlying error
}

// Error implements the error interface.
func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error [backend=%s, operation=%s]: %v", e.Backend, e.Operation, e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *StorageError) Unwrap() error {
	return e.Cause
}

// NewStorageError creates a new StorageError.
func NewStorageError(backend, operation string, cause error) *StorageError {
	return &StorageError{Backend: backend, Operation: operation, Cause: cause}
}
