// Package service provides the business logic behind the fleet API: the
// write boundary through which declared configuration and deletion
// requests enter the store. It never touches the controller-owned state
// columns; those belong to the reconciliation engine alone.
package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fleetforge/fleetserver/internal/db"
	"github.com/fleetforge/fleetserver/internal/fleet"
	"github.com/fleetforge/fleetserver/internal/store"
)

// ErrValidation is returned when a submitted configuration is rejected.
// Callers can unwrap it to distinguish bad input from infrastructure
// failures.
var ErrValidation = errors.New("invalid configuration")

// ObjectService implements the write-boundary operations for one object
// kind. Every operation runs in its own transaction; concurrent config
// writers are serialized through the config version, not locks.
type ObjectService[C any] struct {
	pool     db.Beginner
	objects  *store.Objects[C]
	history  *store.History
	validate func(C) error
}

// NewObjectService creates the write boundary for one kind.
func NewObjectService[C any](
	pool db.Beginner,
	objects *store.Objects[C],
	history *store.History,
	validate func(C) error,
) *ObjectService[C] {
	return &ObjectService[C]{pool: pool, objects: objects, history: history, validate: validate}
}

// Create stores a new object in the initializing state and writes the
// first history entry. The controller takes over from there.
func (s *ObjectService[C]) Create(ctx context.Context, cfg C) (*fleet.Object[C], error) {
	if err := s.validate(cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidation, err)
	}

	obj := &fleet.Object[C]{
		ID:            uuid.New(),
		Config:        cfg,
		ConfigVersion: 1,
		State:         fleet.Initializing(),
		StateVersion:  fleet.InitialVersion(),
	}

	var created *fleet.Object[C]
	err := db.NewTxGuard(s.pool).WithTransaction(ctx, func(tx pgx.Tx) error {
		if err := s.objects.Insert(ctx, tx, obj); err != nil {
			return err
		}
		if _, err := s.history.Append(ctx, tx, obj.ID, obj.State, obj.StateVersion); err != nil {
			return err
		}
		// Re-read to pick up the store-assigned timestamps.
		var err error
		created, err = s.objects.Get(ctx, tx, obj.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// Get loads one object snapshot.
func (s *ObjectService[C]) Get(ctx context.Context, id uuid.UUID) (*fleet.Object[C], error) {
	var obj *fleet.Object[C]
	err := db.NewTxGuard(s.pool).WithTransaction(ctx, func(tx pgx.Tx) error {
		var err error
		obj, err = s.objects.Get(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return obj, nil
}

// List returns all objects of the kind, oldest first.
func (s *ObjectService[C]) List(ctx context.Context) ([]*fleet.Object[C], error) {
	var objects []*fleet.Object[C]
	err := db.NewTxGuard(s.pool).WithTransaction(ctx, func(tx pgx.Tx) error {
		var err error
		objects, err = s.objects.List(ctx, tx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return objects, nil
}

// UpdateConfig replaces the declared configuration. The write is
// conditioned on the config version the caller last saw; a concurrent
// edit surfaces as fleet.ErrStaleVersion. The controller state and its
// version are never touched.
func (s *ObjectService[C]) UpdateConfig(ctx context.Context, id uuid.UUID, cfg C) (*fleet.Object[C], error) {
	if err := s.validate(cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidation, err)
	}

	var updated *fleet.Object[C]
	err := db.NewTxGuard(s.pool).WithTransaction(ctx, func(tx pgx.Tx) error {
		current, err := s.objects.Get(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := s.objects.UpdateConfig(ctx, tx, id, cfg, current.ConfigVersion); err != nil {
			return err
		}
		updated, err = s.objects.Get(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// RequestDeletion sets the external deletion marker. The row stays until
// the controller has driven the object through teardown; repeated
// requests are idempotent.
func (s *ObjectService[C]) RequestDeletion(ctx context.Context, id uuid.UUID) error {
	return db.NewTxGuard(s.pool).WithTransaction(ctx, func(tx pgx.Tx) error {
		return s.objects.MarkDeleted(ctx, tx, id)
	})
}

// History returns the full state history of one object, oldest first.
// The history outlives the object row, so entries for an already removed
// object are still returned.
func (s *ObjectService[C]) History(ctx context.Context, id uuid.UUID) ([]fleet.HistoryEntry, error) {
	var entries []fleet.HistoryEntry
	err := db.NewTxGuard(s.pool).WithTransaction(ctx, func(tx pgx.Tx) error {
		var err error
		entries, err = s.history.FindByObjectID(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// MachineService adds the machine-only operations on top of the shared
// write boundary.
type MachineService struct {
	*ObjectService[fleet.MachineConfig]
}

// NewMachineService creates the machine write boundary.
func NewMachineService(pool db.Beginner, objects *store.Objects[fleet.MachineConfig], history *store.History) *MachineService {
	return &MachineService{
		ObjectService: NewObjectService(pool, objects, history, ValidateMachineConfig),
	}
}

// SetPower updates the machine's declared power state. The controller
// converges the BMC on its next tick.
func (s *MachineService) SetPower(ctx context.Context, id uuid.UUID, power fleet.PowerState) (*fleet.Object[fleet.MachineConfig], error) {
	if power != fleet.PowerOn && power != fleet.PowerOff {
		return nil, fmt.Errorf("%w: unrecognized power state %q", ErrValidation, string(power))
	}

	var updated *fleet.Object[fleet.MachineConfig]
	err := db.NewTxGuard(s.pool).WithTransaction(ctx, func(tx pgx.Tx) error {
		current, err := s.objects.Get(ctx, tx, id)
		if err != nil {
			return err
		}
		cfg := current.Config
		cfg.Power = power
		if err := s.objects.UpdateConfig(ctx, tx, id, cfg, current.ConfigVersion); err != nil {
			return err
		}
		updated, err = s.objects.Get(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Fleet bundles the per-kind services and the readiness check used by
// the API's health endpoints.
type Fleet struct {
	pool *pgxpool.Pool

	Switches     *ObjectService[fleet.SwitchConfig]
	Machines     *MachineService
	PowerShelves *ObjectService[fleet.PowerShelfConfig]
	DPUs         *ObjectService[fleet.DPUConfig]
}

// NewFleet wires the per-kind services over one connection pool.
func NewFleet(
	pool *pgxpool.Pool,
	switches *store.ControllerIO[fleet.SwitchConfig],
	machines *store.ControllerIO[fleet.MachineConfig],
	powerShelves *store.ControllerIO[fleet.PowerShelfConfig],
	dpus *store.ControllerIO[fleet.DPUConfig],
) *Fleet {
	return &Fleet{
		pool:         pool,
		Switches:     NewObjectService(pool, switches.Objects(), switches.History(), ValidateSwitchConfig),
		Machines:     NewMachineService(pool, machines.Objects(), machines.History()),
		PowerShelves: NewObjectService(pool, powerShelves.Objects(), powerShelves.History(), ValidatePowerShelfConfig),
		DPUs:         NewObjectService(pool, dpus.Objects(), dpus.History(), ValidateDPUConfig),
	}
}

// CheckReadiness reports whether the service can reach its database.
func (f *Fleet) CheckReadiness(ctx context.Context) error {
	if err := f.pool.Ping(ctx); err != nil {
		return fmt.Errorf("database not reachable: %w", err)
	}
	return nil
}
