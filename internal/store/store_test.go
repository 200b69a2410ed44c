package store_test

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"

	"github.com/fleetforge/fleetserver/database"
)

func newTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	pool, cleanup := database.SetupTestPool(t)
	t.Cleanup(cleanup)
	return pool
}

// inTx runs fn inside a transaction and commits it. The store layer
// never begins transactions itself, so every test goes through here.
func inTx(t *testing.T, pool *pgxpool.Pool, fn func(tx pgx.Tx) error) error {
	t.Helper()

	ctx := context.Background()
	tx, err := pool.Begin(ctx)
	require.NoError(t, err)

	if err := fn(tx); err != nil {
		require.NoError(t, tx.Rollback(ctx))
		return err
	}
	require.NoError(t, tx.Commit(ctx))
	return nil
}
