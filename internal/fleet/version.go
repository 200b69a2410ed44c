package fleet

import "time"

// Version is a monotonic stamp attached to every persisted controller state.
// The counter alone defines the total order; the timestamp exists for
// observability (it tells how long an object has been in its current state).
//
// The counter is an int64 starting at 1; version 0 is never used. No
// wraparound handling is implemented: at one increment per reconciliation
// tick the counter outlives any practical deployment.
type Version struct {
	// Counter is the monotonically increasing version number
	Counter int64 `json:"counter"`

	// UpdatedAt records when the counter last changed
	UpdatedAt time.Time `json:"updated_at"`
}

// InitialVersion returns the version assigned to a freshly created object.
func InitialVersion() Version {
	return Version{Counter: 1, UpdatedAt: time.Now().UTC()}
}

// Increment returns a new version strictly greater than the receiver.
// It is pure: the receiver is not modified.
func (v Version) Increment() Version {
	return Version{Counter: v.Counter + 1, UpdatedAt: time.Now().UTC()}
}

// Less reports whether v is ordered before other.
func (v Version) Less(other Version) bool {
	return v.Counter < other.Counter
}

// Equal reports whether two versions denote the same stamp. Only the
// counter participates; the timestamp is informational.
func (v Version) Equal(other Version) bool {
	return v.Counter == other.Counter
}
