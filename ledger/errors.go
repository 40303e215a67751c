/*
errors.go - Centralized error types for the ledger

PURPOSE:
  All error types in one place for consistency and discoverability.
  Callers classify failures with errors.Is or the helpers at the bottom.

ERROR CATEGORIES:
  1. NotFound          - a referenced entity id does not resolve
  2. PreconditionFailed - a business rule blocks the operation
  3. AssetUnavailable / AssetInUse - vehicle/battery state conflicts
  4. Transient         - injected fault; caller may retry

Persistence I/O is the one place errors are absorbed rather than
returned: a snapshot write failure is logged and published on the
store's failure channel but never rolls back the in-memory mutation.
*/
package ledger

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrNotFound is returned when a referenced entity id does not exist.
	ErrNotFound = errors.New("entity not found")

	// ErrPreconditionFailed is returned when a business rule blocks the
	// operation (NOC before settlement, duplicate staff email, ...).
	ErrPreconditionFailed = errors.New("precondition failed")

	// ErrAssetUnavailable is returned when the target asset cannot take a
	// new assignment (vehicle already rented, battery not in pool).
	ErrAssetUnavailable = errors.New("asset unavailable")

	// ErrAssetInUse is returned when deleting or retiring an asset that
	// still holds an active assignment.
	ErrAssetInUse = errors.New("asset in use")

	// ErrTransient is an injected fault. The committed state is unaffected;
	// the caller should retry.
	ErrTransient = errors.New("transient failure")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// NotFoundError identifies which entity failed to resolve.
type NotFoundError struct {
	Entity string // "rider", "vehicle", "rental", ...
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// PreconditionError explains which rule blocked the operation.
type PreconditionError struct {
	Reason string
}

func (e *PreconditionError) Error() string { return e.Reason }

func (e *PreconditionError) Unwrap() error { return ErrPreconditionFailed }

// AssetError describes a vehicle/battery state conflict.
type AssetError struct {
	Kind    string // "vehicle" or "battery"
	ID      string
	Problem error // ErrAssetUnavailable or ErrAssetInUse
	Detail  string
}

func (e *AssetError) Error() string {
	return fmt.Sprintf("%s %s: %s", e.Kind, e.ID, e.Detail)
}

func (e *AssetError) Unwrap() error { return e.Problem }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsNotFound returns true if the error indicates a missing entity.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsConflict returns true for state conflicts a caller could resolve by
// changing the request (guard violations, failed preconditions).
func IsConflict(err error) bool {
	return errors.Is(err, ErrAssetUnavailable) ||
		errors.Is(err, ErrAssetInUse) ||
		errors.Is(err, ErrPreconditionFailed)
}

// IsRetryable returns true if the error might succeed on retry.
func IsRetryable(err error) bool { return errors.Is(err, ErrTransient) }
