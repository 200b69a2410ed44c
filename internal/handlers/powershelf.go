package handlers

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/fleetforge/fleetserver/internal/controller"
	"github.com/fleetforge/fleetserver/internal/fleet"
)

// PowerShelfHandler drives power shelves through the shared lifecycle.
// A shelf declared without a capacity cannot be commissioned and lands in
// the error state until its configuration is corrected.
type PowerShelfHandler struct{}

var _ controller.Handler[fleet.PowerShelfConfig] = (*PowerShelfHandler)(nil)

// NewPowerShelfHandler creates the power shelf state handler.
func NewPowerShelfHandler() *PowerShelfHandler {
	return &PowerShelfHandler{}
}

// HandleObjectState implements controller.Handler.
func (h *PowerShelfHandler) HandleObjectState(
	_ context.Context,
	_ pgx.Tx,
	obj *fleet.Object[fleet.PowerShelfConfig],
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
		if obj.Config.Capacity == 0 {
			return controller.Transition(fleet.ErrorState("power shelf capacity is not set")), nil
		}
		return controller.Transition(fleet.Ready()), nil
	case fleet.StateReady:
		return controller.DoNothing(), nil
	case fleet.StateError:
		return controller.DoNothing(), nil
	case fleet.StateDeleting:
		return controller.Deleted(), nil
	default:
		return controller.Outcome{}, fmt.Errorf("power shelf %s is in unhandled state %s", obj.ID, state)
	}
}
