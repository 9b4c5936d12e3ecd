package models

import "fmt"

// EnrollmentState is the lifecycle state of an enrollment.
type EnrollmentState string

const (
	StateCreated   EnrollmentState = "created"
	StateSeeded    EnrollmentState = "seeded"
	StateConfirmed EnrollmentState = "confirmed"
	StatePaid      EnrollmentState = "paid"
	StateCancelled EnrollmentState = "cancelled"
	StateRefunded  EnrollmentState = "refunded"
)

// AllowedTransitions defines the valid enrollment state transitions.
// The key is the current state, the value the set of states it may move to.
var AllowedTransitions = map[EnrollmentState][]EnrollmentState{
	StateCreated:   {StateSeeded, StateConfirmed, StatePaid, StateCancelled},
	StateSeeded:    {StateConfirmed, StatePaid, StateCancelled},
	StateConfirmed: {StatePaid, StateCancelled},
	StatePaid:      {StateCancelled, StateRefunded},
	StateCancelled: {StateRefunded},
	StateRefunded:  {}, // Terminal state
}

// InvalidTransitionError is returned when a state edge is not in the
// transition table.
type InvalidTransitionError struct {
	From EnrollmentState
	To   EnrollmentState
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid enrollment transition from %q to %q", e.From, e.To)
}

// CanTransition checks if a transition from one state to another is allowed.
func CanTransition(from, to EnrollmentState) bool {
	allowed, exists := AllowedTransitions[from]
	if !exists {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// ValidateTransition returns an error if the transition is not allowed.
func ValidateTransition(from, to EnrollmentState) error {
	if !CanTransition(from, to) {
		return &InvalidTransitionError{From: from, To: to}
	}
	return nil
}

// IsStable reports whether the state is exempt from automatic expiry
// cleanup. Only confirmed enrollments are left alone by the sweep task.
func (s EnrollmentState) IsStable() bool {
	return s == StateConfirmed
}

// IsTerminal reports whether the enrollment can never advance again,
// except to refunded.
func (s EnrollmentState) IsTerminal() bool {
	return s == StateCancelled || s == StateRefunded
}
