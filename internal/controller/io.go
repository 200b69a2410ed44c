package controller

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/fleetforge/fleetserver/internal/fleet"
)

// IO is the persistence contract the driver needs for one object kind.
// Every method executes inside the transaction it is handed; the driver
// owns transaction boundaries.
type IO[C any] interface {
	// Kind names the object kind, used for logging and metrics
	Kind() fleet.Kind

	// ListObjectIDs returns the ids of all objects the controller manages
	ListObjectIDs(ctx context.Context, tx pgx.Tx) ([]uuid.UUID, error)

	// LoadObject loads one object snapshot; fleet.ErrNotFound means the
	// row no longer exists
	LoadObject(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*fleet.Object[C], error)

	// PersistControllerState writes a transition conditioned on the
	// version read at tick start; fleet.ErrStaleVersion means a
	// concurrent writer intervened
	PersistControllerState(
		ctx context.Context, tx pgx.Tx, id uuid.UUID,
		current fleet.Version, next fleet.ControllerState, nextVersion fleet.Version,
	) error

	// AppendHistory records a realized transition in the audit log
	AppendHistory(ctx context.Context, tx pgx.Tx, id uuid.UUID, state fleet.ControllerState, version fleet.Version) error

	// PersistOutcome records the tick's verdict on the object row
	PersistOutcome(ctx context.Context, tx pgx.Tx, id uuid.UUID, rec fleet.OutcomeRecord) error

	// DeleteObject removes the object row permanently
	DeleteObject(ctx context.Context, tx pgx.Tx, id uuid.UUID) error

	// StartIteration records a new controller iteration and returns its id
	StartIteration(ctx context.Context, tx pgx.Tx) (int64, error)

	// EnqueueObjects queues object ids for handling in this iteration
	EnqueueObjects(ctx context.Context, tx pgx.Tx, ids []uuid.UUID, iterationID int64) error

	// DequeueObjects drains the work queue
	DequeueObjects(ctx context.Context, tx pgx.Tx) ([]uuid.UUID, error)
}

// WorkLock serializes iterations of one controller across server
// instances. Implementations must not block when the lock is taken.
type WorkLock interface {
	TryAcquire(ctx context.Context) (release func(), ok bool, err error)
}
