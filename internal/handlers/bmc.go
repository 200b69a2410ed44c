package handlers

import (
	"context"

	"github.com/fleetforge/fleetserver/internal/fleet"
)

// BMCClient talks to a machine's baseboard management controller. Power
// changes are asynchronous: SetPower requests the change and the machine
// handler keeps polling PowerState until the machine settles.
type BMCClient interface {
	// PowerState reports the machine's current power state
	PowerState(ctx context.Context, address string) (fleet.PowerState, error)

	// SetPower requests a power state change; it returns once the request
	// is accepted, not once the machine reaches the state
	SetPower(ctx context.Context, address string, state fleet.PowerState) error
}
