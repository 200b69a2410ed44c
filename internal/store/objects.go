// Package store implements Postgres persistence for managed objects,
// their append-only state history, and the per-controller iteration
// bookkeeping. All reads and writes happen through a caller-supplied
// transaction; the store never begins transactions of its own.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/fleetforge/fleetserver/internal/fleet"
)

// Objects persists managed objects of a single kind. The table layout is
// identical across kinds; only the table names differ.
type Objects[C any] struct {
	kind  fleet.Kind
	table string
}

// NewObjects creates an object store for one kind backed by the given table.
func NewObjects[C any](kind fleet.Kind, table string) *Objects[C] {
	return &Objects[C]{kind: kind, table: table}
}

// Kind returns the object kind this store persists.
func (s *Objects[C]) Kind() fleet.Kind {
	return s.kind
}

const objectColumns = "id, config, config_version, controller_state, state_version, state_updated_at, last_outcome, deleted, created_at, updated_at"

// Insert stores a freshly created object with its initial controller
// state and version.
func (s *Objects[C]) Insert(ctx context.Context, tx pgx.Tx, obj *fleet.Object[C]) error {
	configJSON, err := json.Marshal(obj.Config)
	if err != nil {
		return fmt.Errorf("failed to encode %s config: %w", s.kind, err)
	}
	stateJSON, err := json.Marshal(obj.State)
	if err != nil {
		return fmt.Errorf("failed to encode controller state: %w", err)
	}

	query := fmt.Sprintf(
		`INSERT INTO %s (id, config, config_version, controller_state, state_version, state_updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		s.table,
	)
	_, err = tx.Exec(ctx, query,
		obj.ID, configJSON, obj.ConfigVersion, stateJSON, obj.StateVersion.Counter, obj.StateVersion.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert %s: %w", s.kind, err)
	}
	return nil
}

// Get loads one object by id. Returns fleet.ErrNotFound if the row does
// not exist.
func (s *Objects[C]) Get(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*fleet.Object[C], error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE id = $1", objectColumns, s.table)
	obj, err := scanObject[C](tx.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fleet.ErrNotFound
		}
		return nil, fmt.Errorf("failed to load %s %s: %w", s.kind, id, err)
	}
	return obj, nil
}

// List returns all objects of this kind ordered by creation time.
func (s *Objects[C]) List(ctx context.Context, tx pgx.Tx) ([]*fleet.Object[C], error) {
	query := fmt.Sprintf("SELECT %s FROM %s ORDER BY created_at ASC", objectColumns, s.table)
	rows, err := tx.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s objects: %w", s.kind, err)
	}
	defer rows.Close()

	var objects []*fleet.Object[C]
	for rows.Next() {
		obj, err := scanObject[C](rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s row: %w", s.kind, err)
		}
		objects = append(objects, obj)
	}
	return objects, rows.Err()
}

// ListIDs returns the ids of every object of this kind. Objects already
// marked for deletion are included: the controller still has to drive
// them through teardown.
func (s *Objects[C]) ListIDs(ctx context.Context, tx pgx.Tx) ([]uuid.UUID, error) {
	query := fmt.Sprintf("SELECT id FROM %s ORDER BY created_at ASC", s.table)
	rows, err := tx.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s ids: %w", s.kind, err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// UpdateConfig replaces the declared configuration, conditioned on the
// config version the caller read. The controller state and its version
// are untouched.
func (s *Objects[C]) UpdateConfig(ctx context.Context, tx pgx.Tx, id uuid.UUID, cfg C, currentConfigVersion int64) error {
	configJSON, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode %s config: %w", s.kind, err)
	}

	query := fmt.Sprintf(
		`UPDATE %s SET config = $1, config_version = config_version + 1, updated_at = now()
		 WHERE id = $2 AND config_version = $3`,
		s.table,
	)
	tag, err := tx.Exec(ctx, query, configJSON, id, currentConfigVersion)
	if err != nil {
		return fmt.Errorf("failed to update %s config: %w", s.kind, err)
	}
	if tag.RowsAffected() == 0 {
		return fleet.ErrStaleVersion
	}
	return nil
}

// MarkDeleted sets the external deletion request marker. Idempotent: a
// marker that is already set keeps its original timestamp.
func (s *Objects[C]) MarkDeleted(ctx context.Context, tx pgx.Tx, id uuid.UUID) error {
	query := fmt.Sprintf(
		"UPDATE %s SET deleted = COALESCE(deleted, now()), updated_at = now() WHERE id = $1",
		s.table,
	)
	tag, err := tx.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to mark %s deleted: %w", s.kind, err)
	}
	if tag.RowsAffected() == 0 {
		return fleet.ErrNotFound
	}
	return nil
}

// UpdateControllerState persists a state transition, conditioned on the
// version the controller read at the start of the tick. A concurrent
// writer having intervened surfaces as fleet.ErrStaleVersion and the
// caller must roll back; the stale write is never applied.
func (s *Objects[C]) UpdateControllerState(
	ctx context.Context,
	tx pgx.Tx,
	id uuid.UUID,
	current fleet.Version,
	next fleet.ControllerState,
	nextVersion fleet.Version,
) error {
	stateJSON, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("failed to encode controller state: %w", err)
	}

	query := fmt.Sprintf(
		`UPDATE %s SET controller_state = $1, state_version = $2, state_updated_at = $3, updated_at = now()
		 WHERE id = $4 AND state_version = $5`,
		s.table,
	)
	tag, err := tx.Exec(ctx, query, stateJSON, nextVersion.Counter, nextVersion.UpdatedAt, id, current.Counter)
	if err != nil {
		return fmt.Errorf("failed to persist %s controller state: %w", s.kind, err)
	}
	if tag.RowsAffected() == 0 {
		return fleet.ErrStaleVersion
	}
	return nil
}

// SetLastOutcome records the verdict of the most recent reconciliation
// tick on the object row.
func (s *Objects[C]) SetLastOutcome(ctx context.Context, tx pgx.Tx, id uuid.UUID, rec fleet.OutcomeRecord) error {
	outcomeJSON, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode outcome: %w", err)
	}

	query := fmt.Sprintf("UPDATE %s SET last_outcome = $1 WHERE id = $2", s.table)
	if _, err := tx.Exec(ctx, query, outcomeJSON, id); err != nil {
		return fmt.Errorf("failed to persist %s outcome: %w", s.kind, err)
	}
	return nil
}

// Delete permanently removes the object row. The state history remains
// as the record of the object's existence.
func (s *Objects[C]) Delete(ctx context.Context, tx pgx.Tx, id uuid.UUID) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE id = $1", s.table)
	if _, err := tx.Exec(ctx, query, id); err != nil {
		return fmt.Errorf("failed to delete %s %s: %w", s.kind, id, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanObject[C any](row rowScanner) (*fleet.Object[C], error) {
	var (
		obj            fleet.Object[C]
		configJSON     []byte
		stateJSON      []byte
		stateCounter   int64
		stateUpdatedAt time.Time
		outcomeJSON    []byte
	)

	err := row.Scan(
		&obj.ID, &configJSON, &obj.ConfigVersion, &stateJSON, &stateCounter, &stateUpdatedAt,
		&outcomeJSON, &obj.Deleted, &obj.CreatedAt, &obj.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(configJSON, &obj.Config); err != nil {
		return nil, fmt.Errorf("corrupt config document: %w", err)
	}
	if err := json.Unmarshal(stateJSON, &obj.State); err != nil {
		return nil, fmt.Errorf("corrupt controller state document: %w", err)
	}
	if len(outcomeJSON) > 0 {
		var rec fleet.OutcomeRecord
		if err := json.Unmarshal(outcomeJSON, &rec); err != nil {
			return nil, fmt.Errorf("corrupt outcome document: %w", err)
		}
		obj.LastOutcome = &rec
	}
	obj.StateVersion = fleet.Version{Counter: stateCounter, UpdatedAt: stateUpdatedAt}

	return &obj, nil
}
