package controller

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/fleetforge/fleetserver/internal/fleet"
)

// Handler decides, for one object kind, how an object in a given
// controller state should advance. Implementations receive the object
// snapshot read at the start of the tick and the open tick transaction
// for any related reads they need.
//
// Rules every implementation must follow:
//   - the engine-owned fields (State, StateVersion) are read-only; a
//     state change is requested through the returned Outcome, never by
//     mutating the snapshot
//   - a deletion request (the Deleted marker) takes priority over any
//     in-progress happy-path transition
//   - the error state is sticky: keep returning DoNothing until the
//     object changes externally or deletion is requested
//   - a returned error aborts the whole tick; do not swallow failures
//     that left side effects uncommitted
//   - Deleted may only be returned from the deleting state
type Handler[C any] interface {
	HandleObjectState(
		ctx context.Context,
		tx pgx.Tx,
		obj *fleet.Object[C],
		state fleet.ControllerState,
	) (Outcome, error)
}
