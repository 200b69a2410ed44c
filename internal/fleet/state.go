package fleet

import (
	"encoding/json"
	"fmt"
)

// StateName names a controller state within an object's lifecycle.
type StateName string

const (
	// StateInitializing is the state every object is created in
	StateInitializing StateName = "initializing"

	// StateFetchingData means the controller is gathering data from the device
	StateFetchingData StateName = "fetching_data"

	// StateConfiguring means the controller is applying configuration
	StateConfiguring StateName = "configuring"

	// StateReady means the object converged to its declared configuration
	StateReady StateName = "ready"

	// StateDeleting means the controller acknowledged a deletion request
	// and is tearing the object down
	StateDeleting StateName = "deleting"

	// StateError is a sticky failure state requiring external intervention
	StateError StateName = "error"
)

// ControllerState is the engine-owned lifecycle state of a managed object.
// It is a tagged value: Reason is only populated for the error state.
// Persisted as a JSON document so new per-kind states do not require
// store migrations.
type ControllerState struct {
	Name   StateName `json:"state"`
	Reason string    `json:"reason,omitempty"`
}

// Initializing returns the initial controller state.
func Initializing() ControllerState {
	return ControllerState{Name: StateInitializing}
}

// FetchingData returns the data-gathering controller state.
func FetchingData() ControllerState {
	return ControllerState{Name: StateFetchingData}
}

// Configuring returns the configuration-applying controller state.
func Configuring() ControllerState {
	return ControllerState{Name: StateConfiguring}
}

// Ready returns the converged controller state.
func Ready() ControllerState {
	return ControllerState{Name: StateReady}
}

// Deleting returns the teardown controller state.
func Deleting() ControllerState {
	return ControllerState{Name: StateDeleting}
}

// ErrorState returns the sticky error state carrying the failure reason.
func ErrorState(reason string) ControllerState {
	return ControllerState{Name: StateError, Reason: reason}
}

// Equal reports whether two controller states are the same variant with
// the same payload.
func (s ControllerState) Equal(other ControllerState) bool {
	return s.Name == other.Name && s.Reason == other.Reason
}

func (s ControllerState) String() string {
	if s.Reason != "" {
		return fmt.Sprintf("%s(%s)", s.Name, s.Reason)
	}
	return string(s.Name)
}

// Validate checks that the state carries a known name and that the reason
// payload is only present on the error variant.
func (s ControllerState) Validate() error {
	switch s.Name {
	case StateInitializing, StateFetchingData, StateConfiguring, StateReady, StateDeleting:
		if s.Reason != "" {
			return fmt.Errorf("state %q must not carry a reason", s.Name)
		}
		return nil
	case StateError:
		return nil
	default:
		return fmt.Errorf("unrecognized controller state: %q", string(s.Name))
	}
}

// UnmarshalJSON decodes a controller state and rejects unknown variants,
// so a corrupted or future-schema row fails loudly instead of flowing
// into a handler.
func (s *ControllerState) UnmarshalJSON(data []byte) error {
	type raw ControllerState
	var r raw
	if err := json.Unmarshal(data, &r); err != nil {
		return err
	}
	decoded := ControllerState(r)
	if err := decoded.Validate(); err != nil {
		return err
	}
	*s = decoded
	return nil
}
