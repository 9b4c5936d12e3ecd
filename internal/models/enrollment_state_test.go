package models

import (
	"errors"
	"testing"
)

var allStates = []EnrollmentState{
	StateCreated, StateSeeded, StateConfirmed, StatePaid, StateCancelled, StateRefunded,
}

func TestCanTransitionGrid(t *testing.T) {
	allowed := map[EnrollmentState]map[EnrollmentState]bool{
		StateCreated:   {StateSeeded: true, StateConfirmed: true, StatePaid: true, StateCancelled: true},
		StateSeeded:    {StateConfirmed: true, StatePaid: true, StateCancelled: true},
		StateConfirmed: {StatePaid: true, StateCancelled: true},
		StatePaid:      {StateCancelled: true, StateRefunded: true},
		StateCancelled: {StateRefunded: true},
		StateRefunded:  {},
	}

	for _, from := range allStates {
		for _, to := range allStates {
			want := allowed[from][to]
			if got := CanTransition(from, to); got != want {
				t.Errorf("CanTransition(%s, %s) = %v, want %v", from, to, got, want)
			}
		}
	}
}

func TestCanTransitionUnknownState(t *testing.T) {
	if CanTransition("bogus", StateConfirmed) {
		t.Error("transition from an unknown state must be refused")
	}
	if CanTransition(StateCreated, "bogus") {
		t.Error("transition to an unknown state must be refused")
	}
}

func TestValidateTransition(t *testing.T) {
	if err := ValidateTransition(StateCreated, StateSeeded); err != nil {
		t.Errorf("valid transition returned error: %v", err)
	}

	err := ValidateTransition(StateRefunded, StatePaid)
	if err == nil {
		t.Fatal("expected error for refunded -> paid")
	}
	var transitionErr *InvalidTransitionError
	if !errors.As(err, &transitionErr) {
		t.Fatalf("error type = %T, want *InvalidTransitionError", err)
	}
	if transitionErr.From != StateRefunded || transitionErr.To != StatePaid {
		t.Errorf("error carries %s -> %s, want refunded -> paid", transitionErr.From, transitionErr.To)
	}
	want := `invalid enrollment transition from "refunded" to "paid"`
	if err.Error() != want {
		t.Errorf("error message = %q, want %q", err.Error(), want)
	}
}

func TestStatePredicates(t *testing.T) {
	for _, s := range allStates {
		if got, want := s.IsStable(), s == StateConfirmed; got != want {
			t.Errorf("%s.IsStable() = %v, want %v", s, got, want)
		}
		if got, want := s.IsTerminal(), s == StateCancelled || s == StateRefunded; got != want {
			t.Errorf("%s.IsTerminal() = %v, want %v", s, got, want)
		}
	}
}

func TestEnrollmentTransitionTo(t *testing.T) {
	e := &Enrollment{State: StateCreated}
	if err := e.TransitionTo(StateConfirmed); err != nil {
		t.Fatalf("TransitionTo returned error: %v", err)
	}
	if e.State != StateConfirmed {
		t.Errorf("state = %s, want confirmed", e.State)
	}

	if err := e.TransitionTo(StateSeeded); err == nil {
		t.Fatal("expected error moving confirmed back to seeded")
	}
	if e.State != StateConfirmed {
		t.Errorf("failed transition must leave state untouched, got %s", e.State)
	}
}
