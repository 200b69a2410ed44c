package device

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/fleetforge/fleetserver/internal/fleet"
	"github.com/fleetforge/fleetserver/internal/handlers"
)

// RedfishBMC reads and requests machine power state over the BMC's
// Redfish endpoint. The config's bmc_address is the host (with optional
// port); the standard Systems collection paths are derived from it.
type RedfishBMC struct {
	client Client
	scheme string
}

var _ handlers.BMCClient = (*RedfishBMC)(nil)

// NewRedfishBMC creates a Redfish-backed BMC accessor.
func NewRedfishBMC(client Client) *RedfishBMC {
	return &RedfishBMC{client: client, scheme: "https"}
}

type redfishSystem struct {
	PowerState string `json:"PowerState"`
}

// PowerState implements handlers.BMCClient.
func (b *RedfishBMC) PowerState(ctx context.Context, address string) (fleet.PowerState, error) {
	url := fmt.Sprintf("%s://%s/redfish/v1/Systems/1", b.scheme, address)
	body, err := b.client.Get(ctx, url)
	if err != nil {
		return "", err
	}

	var system redfishSystem
	if err := json.Unmarshal(body, &system); err != nil {
		return "", fmt.Errorf("failed to decode system document from %s: %w", address, err)
	}

	switch system.PowerState {
	case "On":
		return fleet.PowerOn, nil
	case "Off":
		return fleet.PowerOff, nil
	default:
		return "", fmt.Errorf("bmc %s reported unrecognized power state %q", address, system.PowerState)
	}
}

// SetPower implements handlers.BMCClient.
func (b *RedfishBMC) SetPower(ctx context.Context, address string, state fleet.PowerState) error {
	resetType := "ForceOff"
	if state == fleet.PowerOn {
		resetType = "On"
	}
	payload, err := json.Marshal(map[string]string{"ResetType": resetType})
	if err != nil {
		return fmt.Errorf("failed to encode reset request: %w", err)
	}

	url := fmt.Sprintf("%s://%s/redfish/v1/Systems/1/Actions/ComputerSystem.Reset", b.scheme, address)
	if err := b.client.Post(ctx, url, payload); err != nil {
		return fmt.Errorf("failed to request power %s from bmc %s: %w", state, address, err)
	}
	return nil
}
