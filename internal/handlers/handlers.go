// Package handlers holds the per-kind state handlers: the pure decision
// logic that maps an object snapshot and its current controller state to
// an outcome. The driver in internal/controller owns persistence and
// transaction boundaries; handlers only decide.
package handlers

import (
	"github.com/fleetforge/fleetserver/internal/fleet"
)

// wantsTeardown reports whether an external deletion request must preempt
// whatever the object is doing. Deletion takes priority over every state,
// including sticky error.
func wantsTeardown[C any](obj *fleet.Object[C], state fleet.ControllerState) bool {
	return obj.MarkedDeleted() && state.Name != fleet.StateDeleting
}
