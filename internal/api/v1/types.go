package v1

import (
	"time"

	"github.com/google/uuid"

	"github.com/fleetforge/fleetserver/internal/fleet"
)

// ErrorResponse represents a standardized error response
type ErrorResponse struct {
	Error string `json:"error"`
}

// ObjectResponse is the API representation of a managed object. The
// controller-owned fields are exposed read-only.
type ObjectResponse[C any] struct {
	ID            uuid.UUID             `json:"id"`
	Config        C                     `json:"config"`
	ConfigVersion int64                 `json:"config_version"`
	State         fleet.ControllerState `json:"controller_state"`
	StateVersion  int64                 `json:"state_version"`
	LastOutcome   *fleet.OutcomeRecord  `json:"last_outcome,omitempty"`
	Deleted       *time.Time            `json:"deleted,omitempty"`
	CreatedAt     time.Time             `json:"created_at"`
	UpdatedAt     time.Time             `json:"updated_at"`
}

func newObjectResponse[C any](obj *fleet.Object[C]) ObjectResponse[C] {
	return ObjectResponse[C]{
		ID:            obj.ID,
		Config:        obj.Config,
		ConfigVersion: obj.ConfigVersion,
		State:         obj.State,
		StateVersion:  obj.StateVersion.Counter,
		LastOutcome:   obj.LastOutcome,
		Deleted:       obj.Deleted,
		CreatedAt:     obj.CreatedAt,
		UpdatedAt:     obj.UpdatedAt,
	}
}

// ObjectListResponse wraps a list of objects.
type ObjectListResponse[C any] struct {
	Objects []ObjectResponse[C] `json:"objects"`
}

// HistoryResponse wraps an object's state history, oldest first.
type HistoryResponse struct {
	Entries []fleet.HistoryEntry `json:"entries"`
}

// SetPowerRequest is the body of the machine power endpoint.
type SetPowerRequest struct {
	Power fleet.PowerState `json:"power"`
}
