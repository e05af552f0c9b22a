package engine

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/aldersyn/bomrev/internal/bom"
)

// StateError is the typed failure for every command-surface operation.
//
// The three codes mirror the three ways a command can fail:
//   - INVALID_STATE: the operation is not permitted from the order's
//     current state. Recoverable - query the state, retry the right call.
//   - PENDING_REBASE: apply was requested while change records remain.
//     Recoverable - run a rebase (and resolve) first.
//   - NOT_FOUND: a referenced order, version, or product has no record.
//
// Divergence is never an error: a conflicted rebase returns the Conflict
// state normally, for the caller to surface as a review step.
type StateError struct {
	// Code identifies the error category.
	Code ErrorCode

	// Op names the rejected operation (e.g. "start_revision").
	Op string

	// Subject is the id the operation targeted (order, version, product).
	Subject uuid.UUID

	// State is the order state the operation was rejected from, when the
	// code is INVALID_STATE.
	State bom.OrderState

	// Pending is the number of unresolved change records, when the code
	// is PENDING_REBASE.
	Pending int

	// Message is a human-readable description.
	Message string
}

// ErrorCode categorizes state errors.
type ErrorCode string

const (
	// ErrCodeInvalidState indicates the operation is not permitted from
	// the current lifecycle state.
	ErrCodeInvalidState ErrorCode = "INVALID_STATE"

	// ErrCodePendingRebase indicates apply was called with unresolved
	// change records.
	ErrCodePendingRebase ErrorCode = "PENDING_REBASE"

	// ErrCodeNotFound indicates a referenced entity does not exist.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"
)

// Error implements the error interface.
func (e *StateError) Error() string {
	if e.Subject != uuid.Nil {
		return fmt.Sprintf("%s: %s (op=%s, subject=%s)", e.Code, e.Message, e.Op, e.Subject)
	}
	return fmt.Sprintf("%s: %s (op=%s)", e.Code, e.Message, e.Op)
}

// IsInvalidState reports whether err is an invalid-state rejection.
// Uses errors.As to handle wrapped errors.
func IsInvalidState(err error) bool {
	var se *StateError
	return errors.As(err, &se) && se.Code == ErrCodeInvalidState
}

// IsPendingRebase reports whether err is a pending-rebase rejection.
func IsPendingRebase(err error) bool {
	var se *StateError
	return errors.As(err, &se) && se.Code == ErrCodePendingRebase
}

// IsNotFound reports whether err is a missing-entity failure.
func IsNotFound(err error) bool {
	var se *StateError
	return errors.As(err, &se) && se.Code == ErrCodeNotFound
}

// newInvalidState builds the rejection for an operation requested from a
// state that does not permit it.
func newInvalidState(op string, orderID bom.OrderID, state bom.OrderState) *StateError {
	return &StateError{
		Code:    ErrCodeInvalidState,
		Op:      op,
		Subject: orderID,
		State:   state,
		Message: fmt.Sprintf("not permitted from state %s", state),
	}
}

// newPendingRebase builds the rejection for apply with records remaining.
func newPendingRebase(orderID bom.OrderID, pending int) *StateError {
	return &StateError{
		Code:    ErrCodePendingRebase,
		Op:      "apply",
		Subject: orderID,
		Pending: pending,
		Message: fmt.Sprintf("%d change record(s) must be rebased first", pending),
	}
}

// newNotFound builds the failure for a dangling reference.
func newNotFound(op, kind string, id uuid.UUID) *StateError {
	return &StateError{
		Code:    ErrCodeNotFound,
		Op:      op,
		Subject: id,
		Message: fmt.Sprintf("%s does not exist", kind),
	}
}
