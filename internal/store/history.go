package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/fleetforge/fleetserver/internal/fleet"
)

// History is the append-only log of every controller state an object of
// one kind has occupied. Entries are inserted inside the caller's
// transaction so they commit or roll back atomically with the transition
// they document, and are never updated or deleted afterwards.
type History struct {
	table string
}

// NewHistory creates a history log backed by the given table.
func NewHistory(table string) *History {
	return &History{table: table}
}

// Append inserts one immutable history record.
func (h *History) Append(
	ctx context.Context,
	tx pgx.Tx,
	objectID uuid.UUID,
	state fleet.ControllerState,
	version fleet.Version,
) (*fleet.HistoryEntry, error) {
	stateJSON, err := json.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("failed to encode controller state: %w", err)
	}

	query := fmt.Sprintf(
		`INSERT INTO %s (object_id, state, state_version)
		 VALUES ($1, $2, $3)
		 RETURNING object_id, state, state_version, observed_at`,
		h.table,
	)
	entry, err := scanHistoryEntry(tx.QueryRow(ctx, query, objectID, stateJSON, version.Counter))
	if err != nil {
		return nil, fmt.Errorf("failed to append state history: %w", err)
	}
	return entry, nil
}

// FindByObjectID returns every recorded state for one object, oldest
// first. Used for audit and debugging, never by reconciliation logic.
func (h *History) FindByObjectID(ctx context.Context, tx pgx.Tx, objectID uuid.UUID) ([]fleet.HistoryEntry, error) {
	query := fmt.Sprintf(
		"SELECT object_id, state, state_version, observed_at FROM %s WHERE object_id = $1 ORDER BY id ASC",
		h.table,
	)
	rows, err := tx.Query(ctx, query, objectID)
	if err != nil {
		return nil, fmt.Errorf("failed to query state history: %w", err)
	}
	defer rows.Close()

	return collectHistoryEntries(rows)
}

// FindByObjectIDs returns the history for a batch of objects, keyed by
// object id, each ordered oldest first.
func (h *History) FindByObjectIDs(
	ctx context.Context,
	tx pgx.Tx,
	objectIDs []uuid.UUID,
) (map[uuid.UUID][]fleet.HistoryEntry, error) {
	query := fmt.Sprintf(
		"SELECT object_id, state, state_version, observed_at FROM %s WHERE object_id = ANY($1) ORDER BY id ASC",
		h.table,
	)
	rows, err := tx.Query(ctx, query, objectIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to query state history: %w", err)
	}
	defer rows.Close()

	entries, err := collectHistoryEntries(rows)
	if err != nil {
		return nil, err
	}

	histories := make(map[uuid.UUID][]fleet.HistoryEntry)
	for _, entry := range entries {
		histories[entry.ObjectID] = append(histories[entry.ObjectID], entry)
	}
	return histories, nil
}

func collectHistoryEntries(rows pgx.Rows) ([]fleet.HistoryEntry, error) {
	var entries []fleet.HistoryEntry
	for rows.Next() {
		entry, err := scanHistoryEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		entries = append(entries, *entry)
	}
	return entries, rows.Err()
}

func scanHistoryEntry(row rowScanner) (*fleet.HistoryEntry, error) {
	var (
		entry     fleet.HistoryEntry
		stateJSON []byte
	)
	if err := row.Scan(&entry.ObjectID, &stateJSON, &entry.StateVersion, &entry.ObservedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(stateJSON, &entry.State); err != nil {
		return nil, fmt.Errorf("corrupt history state document: %w", err)
	}
	return &entry, nil
}
