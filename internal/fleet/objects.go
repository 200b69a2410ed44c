package fleet

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a managed object does not exist (or no
// longer exists) in the store.
var ErrNotFound = errors.New("object not found")

// ErrStaleVersion is returned when a conditional write did not apply
// because the row's version no longer matches the version that was read.
var ErrStaleVersion = errors.New("stale object version")

// PowerState is the declared power intent for a machine.
type PowerState string

const (
	// PowerOn requests the machine to be powered on
	PowerOn PowerState = "on"

	// PowerOff requests the machine to be powered off
	PowerOff PowerState = "off"
)

// SwitchConfig is the declared configuration of a network switch.
type SwitchConfig struct {
	Name         string `json:"name"`
	Location     string `json:"location,omitempty"`
	ManagementIP string `json:"management_ip,omitempty"`
}

// MachineConfig is the declared configuration of a physical machine.
type MachineConfig struct {
	Name       string     `json:"name"`
	Location   string     `json:"location,omitempty"`
	BMCAddress string     `json:"bmc_address,omitempty"`
	Power      PowerState `json:"power,omitempty"`
}

// PowerShelfConfig is the declared configuration of a power shelf.
type PowerShelfConfig struct {
	Name     string `json:"name"`
	Capacity uint32 `json:"capacity,omitempty"`
	Voltage  uint32 `json:"voltage,omitempty"`
	Location string `json:"location,omitempty"`
}

// DPUConfig is the declared configuration of a data processing unit.
type DPUConfig struct {
	Name   string `json:"name"`
	Serial string `json:"serial,omitempty"`

	// MinimumFirmware is the lowest acceptable firmware version; the
	// controller schedules an upgrade when the reported version is older
	MinimumFirmware string `json:"minimum_firmware,omitempty"`

	// ReportedFirmware is filled in by the controller during data
	// fetching, not by API writers
	ReportedFirmware string `json:"reported_firmware,omitempty"`
}

// Object is a snapshot of a managed object row: the declared config
// (written by the API boundary), the engine-owned controller state and
// its version, and the externally written deletion marker.
type Object[C any] struct {
	ID uuid.UUID

	Config C

	// ConfigVersion tracks declared-config edits; it is independent of
	// the controller state version
	ConfigVersion int64

	State        ControllerState
	StateVersion Version

	// LastOutcome records what the most recent reconciliation tick
	// decided, including failures; nil before the first tick
	LastOutcome *OutcomeRecord

	// Deleted is the external deletion request marker; distinct from the
	// deleting controller state, which is the engine's acknowledgment
	Deleted *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// MarkedDeleted reports whether an external actor requested deletion.
func (o *Object[C]) MarkedDeleted() bool {
	return o.Deleted != nil
}

// OutcomeRecord is the persisted form of a reconciliation tick's verdict.
type OutcomeRecord struct {
	Outcome string `json:"outcome"`
	Reason  string `json:"reason,omitempty"`
	Error   string `json:"error,omitempty"`
}

// HistoryEntry is one immutable record of a controller state the object
// occupied. Entries are never updated or deleted.
type HistoryEntry struct {
	ObjectID     uuid.UUID       `json:"object_id"`
	State        ControllerState `json:"state"`
	StateVersion int64           `json:"state_version"`
	ObservedAt   time.Time       `json:"observed_at"`
}
