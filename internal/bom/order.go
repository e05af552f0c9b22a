package bom

import (
	"fmt"
	"time"
)

// OrderState is the closed set of change-order lifecycle states.
//
// Transitions:
//
//	Draft → InProgress → {NeedsRebase ⇄ Conflict} → InProgress → Applied
//	Cancelled reachable from Draft or InProgress only.
//
// Applied and Cancelled are terminal. Every switch over OrderState must be
// exhaustive; unknown states are rejected, never silently passed through.
type OrderState string

const (
	StateDraft       OrderState = "draft"
	StateInProgress  OrderState = "in_progress"
	StateNeedsRebase OrderState = "needs_rebase"
	StateConflict    OrderState = "conflict"
	StateApplied     OrderState = "applied"
	StateCancelled   OrderState = "cancelled"
)

// Valid reports whether s is one of the defined states.
func (s OrderState) Valid() bool {
	switch s {
	case StateDraft, StateInProgress, StateNeedsRebase, StateConflict, StateApplied, StateCancelled:
		return true
	}
	return false
}

// Terminal reports whether the state admits no further transitions.
func (s OrderState) Terminal() bool {
	return s == StateApplied || s == StateCancelled
}

// CanCapture reports whether base edits must still be recorded against an
// order in this state. Draft orders have not cloned a candidate yet and
// terminal orders no longer care.
func (s OrderState) CanCapture() bool {
	switch s {
	case StateInProgress, StateNeedsRebase, StateConflict:
		return true
	case StateDraft, StateApplied, StateCancelled:
		return false
	}
	return false
}

// CanRebase reports whether ApplyRebase is permitted from this state.
func (s OrderState) CanRebase() bool {
	return s == StateNeedsRebase || s == StateConflict
}

// CanCancel reports whether Cancel is permitted from this state.
// Orders that accumulated pending records (NeedsRebase/Conflict) were
// started from InProgress; cancellation there is still unconditional.
func (s OrderState) CanCancel() bool {
	switch s {
	case StateDraft, StateInProgress, StateNeedsRebase, StateConflict:
		return true
	case StateApplied, StateCancelled:
		return false
	}
	return false
}

// String implements fmt.Stringer.
func (s OrderState) String() string { return string(s) }

// ParseOrderState converts stored text back into an OrderState.
func ParseOrderState(s string) (OrderState, error) {
	st := OrderState(s)
	if !st.Valid() {
		return "", fmt.Errorf("unknown order state %q", s)
	}
	return st, nil
}

// ChangeOrder is a tracked edit session producing a new candidate version
// from a base version.
//
// BaseVersion is borrowed: any number of orders may share it, and it keeps
// moving underneath them. CandidateVersion is owned exclusively while the
// order is non-terminal and cleared on cancellation.
type ChangeOrder struct {
	ID               OrderID    `json:"id"`
	Product          ProductID  `json:"product"`
	BaseVersion      VersionID  `json:"base_version"`
	CandidateVersion *VersionID `json:"candidate_version,omitempty"`
	State            OrderState `json:"state"`
	CreatedAt        time.Time  `json:"created_at"`
}
