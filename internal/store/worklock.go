package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// AdvisoryLock is a Postgres session-level advisory lock keyed on a
// controller name. It makes sure that across all server instances only
// one controller per kind runs an iteration at a time. Failing to get
// the lock is not an error; the iteration is simply skipped.
type AdvisoryLock struct {
	pool *pgxpool.Pool
	key  string
}

// NewAdvisoryLock creates an advisory lock for the given key.
func NewAdvisoryLock(pool *pgxpool.Pool, key string) *AdvisoryLock {
	return &AdvisoryLock{pool: pool, key: key}
}

// TryAcquire attempts to take the lock without blocking. On success it
// returns a release function that must be called when the iteration
// finishes; ok is false when another session holds the lock.
func (l *AdvisoryLock) TryAcquire(ctx context.Context) (release func(), ok bool, err error) {
	// The lock is session-scoped, so it needs a dedicated connection
	// that stays out of the pool until released.
	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("failed to acquire connection for work lock: %w", err)
	}

	var acquired bool
	if err := conn.QueryRow(ctx, "SELECT pg_try_advisory_lock(hashtext($1))", l.key).Scan(&acquired); err != nil {
		conn.Release()
		return nil, false, fmt.Errorf("failed to take work lock %q: %w", l.key, err)
	}
	if !acquired {
		conn.Release()
		return nil, false, nil
	}

	release = func() {
		// Unlock on the same session; a broken connection releases the
		// lock server-side anyway.
		_, _ = conn.Exec(context.WithoutCancel(ctx), "SELECT pg_advisory_unlock(hashtext($1))", l.key)
		conn.Release()
	}
	return release, true, nil
}
