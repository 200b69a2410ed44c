package handlers

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/fleetforge/fleetserver/internal/controller"
	"github.com/fleetforge/fleetserver/internal/fleet"
)

// SwitchHandler walks network switches through the plain lifecycle:
// initializing, fetching data, configuring, ready.
type SwitchHandler struct{}

var _ controller.Handler[fleet.SwitchConfig] = (*SwitchHandler)(nil)

// NewSwitchHandler creates the switch state handler.
func NewSwitchHandler() *SwitchHandler {
	return &SwitchHandler{}
}

// HandleObjectState implements controller.Handler.
func (h *SwitchHandler) HandleObjectState(
	_ context.Context,
	_ pgx.Tx,
	obj *fleet.Object[fleet.SwitchConfig],
	state fleet.ControllerState,
) (controller.Outcome, error) {
	if wantsTeardown(obj, state) {
		return controller.Transition(fleet.Deleting()), nil
	}

	switch state.Name {
	case fleet.StateInitializing:
		return controller.Transition(fleet.FetchingData()), nil
	case fleet.StateFetchingData:
		return controller.Transition(fleet.Configuring()), nil
	case fleet.StateConfiguring:
		return controller.Transition(fleet.Ready()), nil
	case fleet.StateReady:
		return controller.DoNothing(), nil
	case fleet.StateError:
		// Sticky until the object is edited or deleted externally.
		return controller.DoNothing(), nil
	case fleet.StateDeleting:
		return controller.Deleted(), nil
	default:
		return controller.Outcome{}, fmt.Errorf("switch %s is in unhandled state %s", obj.ID, state)
	}
}
