package handlers

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/fleetforge/fleetserver/internal/controller"
	"github.com/fleetforge/fleetserver/internal/fleet"
	"github.com/fleetforge/fleetserver/internal/store"
	"github.com/fleetforge/fleetserver/internal/versions"
)

// FirmwareInventory reports the firmware a DPU is actually running.
type FirmwareInventory interface {
	ReportedFirmware(ctx context.Context, serial string) (string, error)
}

// DPUHandler drives data processing units. During data fetching it reads
// the running firmware from the inventory and records it on the object;
// configuring refuses to converge while the firmware is older than the
// declared minimum.
type DPUHandler struct {
	objects   *store.Objects[fleet.DPUConfig]
	inventory FirmwareInventory
}

var _ controller.Handler[fleet.DPUConfig] = (*DPUHandler)(nil)

// NewDPUHandler creates the DPU state handler.
func NewDPUHandler(objects *store.Objects[fleet.DPUConfig], inventory FirmwareInventory) *DPUHandler {
	return &DPUHandler{objects: objects, inventory: inventory}
}

// HandleObjectState implements controller.Handler.
func (h *DPUHandler) HandleObjectState(
	ctx context.Context,
	tx pgx.Tx,
	obj *fleet.Object[fleet.DPUConfig],
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
		if cfg.Serial != "" {
			reported, err := h.inventory.ReportedFirmware(ctx, cfg.Serial)
			if err != nil {
				return controller.Outcome{}, fmt.Errorf("failed to read firmware of dpu %s: %w", obj.ID, err)
			}
			if reported != cfg.ReportedFirmware {
				cfg.ReportedFirmware = reported
				// Conditioned on the config version read at tick start, so
				// a concurrent API edit aborts the tick instead of being
				// overwritten.
				if err := h.objects.UpdateConfig(ctx, tx, obj.ID, cfg, obj.ConfigVersion); err != nil {
					return controller.Outcome{}, fmt.Errorf("failed to record firmware of dpu %s: %w", obj.ID, err)
				}
			}
		}
		return controller.Transition(fleet.Configuring()), nil

	case fleet.StateConfiguring:
		if cfg.MinimumFirmware != "" && cfg.ReportedFirmware != "" &&
			versions.IsNewerVersion(cfg.MinimumFirmware, cfg.ReportedFirmware) {
			return controller.Wait(fmt.Sprintf(
				"firmware %s below minimum %s, awaiting upgrade",
				cfg.ReportedFirmware, cfg.MinimumFirmware,
			)), nil
		}
		return controller.Transition(fleet.Ready()), nil

	case fleet.StateReady:
		return controller.DoNothing(), nil

	case fleet.StateError:
		return controller.DoNothing(), nil

	case fleet.StateDeleting:
		return controller.Deleted(), nil

	default:
		return controller.Outcome{}, fmt.Errorf("dpu %s is in unhandled state %s", obj.ID, state)
	}
}
