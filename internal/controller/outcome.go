// Package controller implements the per-object reconciliation engine:
// the state-handler contract, the outcome model, and the driver that
// loads each object, asks its handler for a verdict, and durably commits
// the result under optimistic concurrency control.
package controller

import (
	"github.com/fleetforge/fleetserver/internal/fleet"
)

// OutcomeKind discriminates the verdicts a state handler can return.
type OutcomeKind string

const (
	// OutcomeTransition moves the object to a new controller state
	OutcomeTransition OutcomeKind = "transition"

	// OutcomeDoNothing leaves the persisted state untouched
	OutcomeDoNothing OutcomeKind = "donothing"

	// OutcomeWait leaves the state untouched while an external condition
	// is pending; the reason is recorded for operators
	OutcomeWait OutcomeKind = "wait"

	// OutcomeDeleted removes the object row permanently; only valid from
	// the deleting state
	OutcomeDeleted OutcomeKind = "deleted"
)

// Outcome is a state handler's verdict for one reconciliation tick.
type Outcome struct {
	Kind   OutcomeKind
	Next   fleet.ControllerState
	Reason string
}

// Transition requests that the object's controller state become next.
// The version increments and a history entry is appended.
func Transition(next fleet.ControllerState) Outcome {
	return Outcome{Kind: OutcomeTransition, Next: next}
}

// DoNothing leaves the object untouched. No history entry is appended.
func DoNothing() Outcome {
	return Outcome{Kind: OutcomeDoNothing}
}

// Wait leaves the object untouched while waiting on an external
// condition, recording why.
func Wait(reason string) Outcome {
	return Outcome{Kind: OutcomeWait, Reason: reason}
}

// Deleted requests permanent removal of the object row.
func Deleted() Outcome {
	return Outcome{Kind: OutcomeDeleted}
}

// record converts a handler result into its persisted form. A non-nil
// handler error wins over whatever outcome accompanied it.
func record(outcome Outcome, handlerErr error) fleet.OutcomeRecord {
	if handlerErr != nil {
		return fleet.OutcomeRecord{Outcome: "error", Error: handlerErr.Error()}
	}
	return fleet.OutcomeRecord{Outcome: string(outcome.Kind), Reason: outcome.Reason}
}
