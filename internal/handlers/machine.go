package handlers

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/fleetforge/fleetserver/internal/controller"
	"github.com/fleetforge/fleetserver/internal/fleet"
)

// MachineHandler drives physical machines. Beyond the shared lifecycle it
// converges the machine's BMC power state to the declared one, waiting
// while the machine is powering, and powers the machine off before its
// row is removed.
type MachineHandler struct {
	bmc BMCClient
}

var _ controller.Handler[fleet.MachineConfig] = (*MachineHandler)(nil)

// NewMachineHandler creates the machine state handler.
func NewMachineHandler(bmc BMCClient) *MachineHandler {
	return &MachineHandler{bmc: bmc}
}

// HandleObjectState implements controller.Handler.
func (h *MachineHandler) HandleObjectState(
	ctx context.Context,
	_ pgx.Tx,
	obj *fleet.Object[fleet.MachineConfig],
	state fleet.ControllerState,
) (controller.Outcome, error) {
	if wantsTeardown(obj, state) {
		return controller.Transition(fleet.Deleting()), nil
	}

	cfg := obj.Config

	switch state.Name {
	case fleet.StateInitializing:
		return controller.Transition(fleet.FetchingData()), nil

	case fleet.StateFetchingData:
		return controller.Transition(fleet.Configuring()), nil

	case fleet.StateConfiguring:
		if cfg.BMCAddress == "" || cfg.Power == "" {
			// Nothing to converge without a BMC or a declared power state.
			return controller.Transition(fleet.Ready()), nil
		}
		observed, err := h.bmc.PowerState(ctx, cfg.BMCAddress)
		if err != nil {
			return controller.Outcome{}, fmt.Errorf("failed to read power state of machine %s: %w", obj.ID, err)
		}
		if observed == cfg.Power {
			return controller.Transition(fleet.Ready()), nil
		}
		if err := h.bmc.SetPower(ctx, cfg.BMCAddress, cfg.Power); err != nil {
			return controller.Outcome{}, fmt.Errorf("failed to request power %s for machine %s: %w", cfg.Power, obj.ID, err)
		}
		return controller.Wait(fmt.Sprintf("powering %s", cfg.Power)), nil

	case fleet.StateReady:
		if cfg.BMCAddress == "" || cfg.Power == "" {
			return controller.DoNothing(), nil
		}
		observed, err := h.bmc.PowerState(ctx, cfg.BMCAddress)
		if err != nil {
			return controller.Outcome{}, fmt.Errorf("failed to read power state of machine %s: %w", obj.ID, err)
		}
		if observed != cfg.Power {
			// Drifted or the declared power changed; reconverge.
			return controller.Transition(fleet.Configuring()), nil
		}
		return controller.DoNothing(), nil

	case fleet.StateError:
		return controller.DoNothing(), nil

	case fleet.StateDeleting:
		if cfg.BMCAddress == "" {
			return controller.Deleted(), nil
		}
		observed, err := h.bmc.PowerState(ctx, cfg.BMCAddress)
		if err != nil {
			return controller.Outcome{}, fmt.Errorf("failed to read power state of machine %s: %w", obj.ID, err)
		}
		if observed != fleet.PowerOff {
			if err := h.bmc.SetPower(ctx, cfg.BMCAddress, fleet.PowerOff); err != nil {
				return controller.Outcome{}, fmt.Errorf("failed to power off machine %s: %w", obj.ID, err)
			}
			return controller.Wait("powering off before removal"), nil
		}
		return controller.Deleted(), nil

	default:
		return controller.Outcome{}, fmt.Errorf("machine %s is in unhandled state %s", obj.ID, state)
	}
}
