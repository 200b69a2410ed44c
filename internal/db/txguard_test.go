package db

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTx embeds pgx.Tx so only the methods the guard touches need
// implementing; anything else panics loudly.
type fakeTx struct {
	pgx.Tx
	commits   int
	rollbacks int
	commitErr error
}

func (f *fakeTx) Commit(context.Context) error {
	f.commits++
	return f.commitErr
}

func (f *fakeTx) Rollback(context.Context) error {
	f.rollbacks++
	return nil
}

type fakeBeginner struct {
	tx       *fakeTx
	beginErr error
	begins   int
}

func (f *fakeBeginner) Begin(context.Context) (pgx.Tx, error) {
	f.begins++
	if f.beginErr != nil {
		return nil, f.beginErr
	}
	return f.tx, nil
}

func TestTxGuardExclusivity(t *testing.T) {
	t.Parallel()

	pool := &fakeBeginner{tx: &fakeTx{}}
	guard := NewTxGuard(pool)

	scoped, err := guard.Begin(context.Background())
	require.NoError(t, err)

	// A second begin on the same guard fails fast instead of deadlocking.
	_, err = guard.Begin(context.Background())
	assert.ErrorIs(t, err, ErrGuardBusy)
	assert.Equal(t, 1, pool.begins, "the busy guard must not touch the pool")

	// Finishing the first transaction releases the guard.
	require.NoError(t, scoped.Commit(context.Background()))

	scoped, err = guard.Begin(context.Background())
	require.NoError(t, err)
	scoped.Rollback(context.Background())
}

func TestTxGuardAcquireFailure(t *testing.T) {
	t.Parallel()

	boom := errors.New("pool exhausted")
	pool := &fakeBeginner{beginErr: boom}
	guard := NewTxGuard(pool)

	_, err := guard.Begin(context.Background())
	assert.ErrorIs(t, err, ErrAcquire)
	assert.ErrorIs(t, err, boom)

	// A failed acquisition must not leave the guard busy.
	pool.beginErr = nil
	pool.tx = &fakeTx{}
	_, err = guard.Begin(context.Background())
	assert.NoError(t, err)
}

func TestWithTransaction(t *testing.T) {
	t.Parallel()

	t.Run("commits when fn succeeds", func(t *testing.T) {
		t.Parallel()

		tx := &fakeTx{}
		guard := NewTxGuard(&fakeBeginner{tx: tx})

		err := guard.WithTransaction(context.Background(), func(pgx.Tx) error {
			return nil
		})

		require.NoError(t, err)
		assert.Equal(t, 1, tx.commits)
		assert.Equal(t, 0, tx.rollbacks)
	})

	t.Run("rolls back and propagates when fn fails", func(t *testing.T) {
		t.Parallel()

		tx := &fakeTx{}
		guard := NewTxGuard(&fakeBeginner{tx: tx})
		boom := errors.New("handler exploded")

		err := guard.WithTransaction(context.Background(), func(pgx.Tx) error {
			return boom
		})

		assert.ErrorIs(t, err, boom)
		assert.Equal(t, 0, tx.commits)
		assert.Equal(t, 1, tx.rollbacks)
	})

	t.Run("releases the guard either way", func(t *testing.T) {
		t.Parallel()

		tx := &fakeTx{}
		guard := NewTxGuard(&fakeBeginner{tx: tx})

		_ = guard.WithTransaction(context.Background(), func(pgx.Tx) error {
			return errors.New("nope")
		})
		err := guard.WithTransaction(context.Background(), func(pgx.Tx) error {
			return nil
		})
		assert.NoError(t, err)
	})
}

func TestScopedTxDoubleFinish(t *testing.T) {
	t.Parallel()

	tx := &fakeTx{}
	guard := NewTxGuard(&fakeBeginner{tx: tx})

	scoped, err := guard.Begin(context.Background())
	require.NoError(t, err)

	require.NoError(t, scoped.Commit(context.Background()))

	// The usual defer Rollback after a commit is a no-op.
	scoped.Rollback(context.Background())
	assert.Equal(t, 1, tx.commits)
	assert.Equal(t, 0, tx.rollbacks)

	// A second commit reports the transaction closed.
	assert.ErrorIs(t, scoped.Commit(context.Background()), pgx.ErrTxClosed)
}
