package db

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/jackc/pgx/v5"
)

// ErrGuardBusy is returned when Begin is called on a guard whose previous
// transaction is still open. Failing fast here is the point of the guard:
// a nested begin against the same pool handle can deadlock a bounded pool,
// and an error is loud where a deadlock is silent.
var ErrGuardBusy = errors.New("transaction guard already holds an open transaction")

// ErrAcquire wraps failures to obtain a connection or start a transaction.
var ErrAcquire = errors.New("failed to acquire database transaction")

// TxGuard owns a pool handle and permits at most one open transaction at a
// time. A guard must not be shared across concurrent callers; concurrency
// comes from independent guards drawing on the same underlying pool.
type TxGuard struct {
	pool  Beginner
	inUse atomic.Bool
}

// NewTxGuard creates a guard over the given pool handle.
func NewTxGuard(pool Beginner) *TxGuard {
	return &TxGuard{pool: pool}
}

// Begin acquires a connection and starts a transaction. It returns
// ErrGuardBusy if a transaction from this guard is still open, and an
// error wrapping ErrAcquire if the pool is exhausted or unreachable.
// The returned ScopedTx must be committed or rolled back before the
// guard can begin again.
func (g *TxGuard) Begin(ctx context.Context) (*ScopedTx, error) {
	if !g.inUse.CompareAndSwap(false, true) {
		return nil, ErrGuardBusy
	}

	tx, err := g.pool.Begin(ctx)
	if err != nil {
		g.inUse.Store(false)
		return nil, fmt.Errorf("%w: %w", ErrAcquire, err)
	}

	return &ScopedTx{guard: g, tx: tx}, nil
}

// WithTransaction begins a transaction, invokes fn with it, commits when
// fn returns nil, and rolls back and propagates otherwise. This is the
// way callers should normally use the guard.
func (g *TxGuard) WithTransaction(ctx context.Context, fn func(tx pgx.Tx) error) error {
	scoped, err := g.Begin(ctx)
	if err != nil {
		return err
	}
	defer scoped.Rollback(ctx)

	if err := fn(scoped.Tx()); err != nil {
		return err
	}
	return scoped.Commit(ctx)
}

// ScopedTx is an open transaction tied to the guard that produced it.
// Commit or Rollback consume it and release the guard.
type ScopedTx struct {
	guard *TxGuard
	tx    pgx.Tx
	done  bool
}

// Tx exposes the underlying transaction for queries.
func (s *ScopedTx) Tx() pgx.Tx {
	return s.tx
}

// Commit commits the transaction and releases the guard.
func (s *ScopedTx) Commit(ctx context.Context) error {
	if s.done {
		return pgx.ErrTxClosed
	}
	s.done = true
	err := s.tx.Commit(ctx)
	s.guard.inUse.Store(false)
	return err
}

// Rollback aborts the transaction and releases the guard. Calling it
// after Commit is a no-op, which permits the usual defer pattern.
func (s *ScopedTx) Rollback(ctx context.Context) {
	if s.done {
		return
	}
	s.done = true
	_ = s.tx.Rollback(ctx)
	s.guard.inUse.Store(false)
}
