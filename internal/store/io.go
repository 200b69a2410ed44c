package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/fleetforge/fleetserver/internal/controller"
	"github.com/fleetforge/fleetserver/internal/fleet"
)

// ControllerIO bundles the per-kind tables into the persistence contract
// the reconciliation driver consumes.
type ControllerIO[C any] struct {
	objects    *Objects[C]
	history    *History
	iterations *Iterations
	queue      *Queue
}

var _ controller.IO[fleet.SwitchConfig] = (*ControllerIO[fleet.SwitchConfig])(nil)

// Kind implements controller.IO.
func (io *ControllerIO[C]) Kind() fleet.Kind {
	return io.objects.Kind()
}

// Objects exposes the object store, for the service layer that shares
// the same tables.
func (io *ControllerIO[C]) Objects() *Objects[C] {
	return io.objects
}

// History exposes the history log.
func (io *ControllerIO[C]) History() *History {
	return io.history
}

// ListObjectIDs implements controller.IO.
func (io *ControllerIO[C]) ListObjectIDs(ctx context.Context, tx pgx.Tx) ([]uuid.UUID, error) {
	return io.objects.ListIDs(ctx, tx)
}

// LoadObject implements controller.IO.
func (io *ControllerIO[C]) LoadObject(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*fleet.Object[C], error) {
	return io.objects.Get(ctx, tx, id)
}

// PersistControllerState implements controller.IO.
func (io *ControllerIO[C]) PersistControllerState(
	ctx context.Context, tx pgx.Tx, id uuid.UUID,
	current fleet.Version, next fleet.ControllerState, nextVersion fleet.Version,
) error {
	return io.objects.UpdateControllerState(ctx, tx, id, current, next, nextVersion)
}

// AppendHistory implements controller.IO.
func (io *ControllerIO[C]) AppendHistory(
	ctx context.Context, tx pgx.Tx, id uuid.UUID,
	state fleet.ControllerState, version fleet.Version,
) error {
	_, err := io.history.Append(ctx, tx, id, state, version)
	return err
}

// PersistOutcome implements controller.IO.
func (io *ControllerIO[C]) PersistOutcome(ctx context.Context, tx pgx.Tx, id uuid.UUID, rec fleet.OutcomeRecord) error {
	return io.objects.SetLastOutcome(ctx, tx, id, rec)
}

// DeleteObject implements controller.IO.
func (io *ControllerIO[C]) DeleteObject(ctx context.Context, tx pgx.Tx, id uuid.UUID) error {
	return io.objects.Delete(ctx, tx, id)
}

// StartIteration implements controller.IO.
func (io *ControllerIO[C]) StartIteration(ctx context.Context, tx pgx.Tx) (int64, error) {
	return io.iterations.Start(ctx, tx)
}

// EnqueueObjects implements controller.IO.
func (io *ControllerIO[C]) EnqueueObjects(ctx context.Context, tx pgx.Tx, ids []uuid.UUID, iterationID int64) error {
	return io.queue.Enqueue(ctx, tx, ids, iterationID)
}

// DequeueObjects implements controller.IO.
func (io *ControllerIO[C]) DequeueObjects(ctx context.Context, tx pgx.Tx) ([]uuid.UUID, error) {
	return io.queue.DequeueAll(ctx, tx)
}

// NewSwitchIO wires the switch tables.
func NewSwitchIO() *ControllerIO[fleet.SwitchConfig] {
	return &ControllerIO[fleet.SwitchConfig]{
		objects:    NewObjects[fleet.SwitchConfig](fleet.KindSwitch, "switches"),
		history:    NewHistory("switch_state_history"),
		iterations: NewIterations("switch_controller_iterations"),
		queue:      NewQueue("switch_queued_objects"),
	}
}

// NewMachineIO wires the machine tables.
func NewMachineIO() *ControllerIO[fleet.MachineConfig] {
	return &ControllerIO[fleet.MachineConfig]{
		objects:    NewObjects[fleet.MachineConfig](fleet.KindMachine, "machines"),
		history:    NewHistory("machine_state_history"),
		iterations: NewIterations("machine_controller_iterations"),
		queue:      NewQueue("machine_queued_objects"),
	}
}

// NewPowerShelfIO wires the power shelf tables.
func NewPowerShelfIO() *ControllerIO[fleet.PowerShelfConfig] {
	return &ControllerIO[fleet.PowerShelfConfig]{
		objects:    NewObjects[fleet.PowerShelfConfig](fleet.KindPowerShelf, "power_shelves"),
		history:    NewHistory("power_shelf_state_history"),
		iterations: NewIterations("power_shelf_controller_iterations"),
		queue:      NewQueue("power_shelf_queued_objects"),
	}
}

// NewDPUIO wires the DPU tables.
func NewDPUIO() *ControllerIO[fleet.DPUConfig] {
	return &ControllerIO[fleet.DPUConfig]{
		objects:    NewObjects[fleet.DPUConfig](fleet.KindDPU, "dpus"),
		history:    NewHistory("dpu_state_history"),
		iterations: NewIterations("dpu_controller_iterations"),
		queue:      NewQueue("dpu_queued_objects"),
	}
}
