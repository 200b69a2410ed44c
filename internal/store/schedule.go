package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// retainedIterations caps the iteration table length. The minimum useful
// value is 2 (current iteration plus the previous one that may still be
// in flight).
const retainedIterations = 10

// Iterations records one row per controller iteration for a single kind.
type Iterations struct {
	table string
}

// NewIterations creates iteration bookkeeping backed by the given table.
func NewIterations(table string) *Iterations {
	return &Iterations{table: table}
}

// Start inserts a new iteration row and prunes old ones, returning the
// new iteration id.
func (i *Iterations) Start(ctx context.Context, tx pgx.Tx) (int64, error) {
	var id int64
	insert := fmt.Sprintf("INSERT INTO %s DEFAULT VALUES RETURNING id", i.table)
	if err := tx.QueryRow(ctx, insert).Scan(&id); err != nil {
		return 0, fmt.Errorf("failed to start controller iteration: %w", err)
	}

	prune := fmt.Sprintf("DELETE FROM %s WHERE id < $1", i.table)
	lastRetained := id - retainedIterations + 1
	if _, err := tx.Exec(ctx, prune, lastRetained); err != nil {
		return 0, fmt.Errorf("failed to prune controller iterations: %w", err)
	}

	return id, nil
}

// Queue is the per-kind work queue: every live object id is enqueued at
// the start of an iteration and dequeued for handling. A crash between
// dequeue and handling is harmless because the next iteration re-enqueues
// everything.
type Queue struct {
	table string
}

// NewQueue creates a work queue backed by the given table.
func NewQueue(table string) *Queue {
	return &Queue{table: table}
}

// enqueueChunkSize keeps a single INSERT well below Postgres bind limits.
const enqueueChunkSize = 1000

// Enqueue inserts object ids for processing, tagged with the iteration
// that scheduled them. An id already queued is re-tagged rather than
// duplicated.
func (q *Queue) Enqueue(ctx context.Context, tx pgx.Tx, ids []uuid.UUID, iterationID int64) error {
	for start := 0; start < len(ids); start += enqueueChunkSize {
		end := min(start+enqueueChunkSize, len(ids))
		chunk := ids[start:end]

		query := fmt.Sprintf(
			`INSERT INTO %s (object_id, iteration_id)
			 SELECT unnest($1::uuid[]), $2
			 ON CONFLICT (object_id) DO UPDATE SET iteration_id = EXCLUDED.iteration_id`,
			q.table,
		)
		if _, err := tx.Exec(ctx, query, chunk, iterationID); err != nil {
			return fmt.Errorf("failed to enqueue objects: %w", err)
		}
	}
	return nil
}

// DequeueAll removes and returns every queued object id, oldest
// iteration first. SKIP LOCKED keeps a concurrent dequeuer from blocking;
// it simply sees an empty queue.
func (q *Queue) DequeueAll(ctx context.Context, tx pgx.Tx) ([]uuid.UUID, error) {
	query := fmt.Sprintf(
		`WITH dequeued AS (
			SELECT object_id FROM %s ORDER BY iteration_id ASC FOR UPDATE SKIP LOCKED
		)
		DELETE FROM %s WHERE object_id IN (SELECT object_id FROM dequeued)
		RETURNING object_id`,
		q.table, q.table,
	)
	rows, err := tx.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to dequeue objects: %w", err)
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
