package store_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetforge/fleetserver/internal/fleet"
	"github.com/fleetforge/fleetserver/internal/store"
)

func TestHistoryAppendAndFind(t *testing.T) {
	pool := newTestPool(t)
	history := store.NewHistory("switch_state_history")
	objectID := uuid.New()

	version := fleet.InitialVersion()
	states := []fleet.ControllerState{
		fleet.Initializing(),
		fleet.FetchingData(),
		fleet.Configuring(),
		fleet.Ready(),
	}

	err := inTx(t, pool, func(tx pgx.Tx) error {
		ctx := context.Background()
		for i, state := range states {
			if i > 0 {
				version = version.Increment()
			}
			entry, err := history.Append(ctx, tx, objectID, state, version)
			if err != nil {
				return err
			}
			assert.Equal(t, objectID, entry.ObjectID)
			assert.Equal(t, version.Counter, entry.StateVersion)
			assert.False(t, entry.ObservedAt.IsZero())
		}
		return nil
	})
	require.NoError(t, err)

	err = inTx(t, pool, func(tx pgx.Tx) error {
		entries, err := history.FindByObjectID(context.Background(), tx, objectID)
		if err != nil {
			return err
		}
		require.Len(t, entries, 4)
		for i, entry := range entries {
			assert.True(t, states[i].Equal(entry.State), "entry %d: want %s, got %s", i, states[i], entry.State)
			assert.Equal(t, int64(i+1), entry.StateVersion)
		}
		return nil
	})
	require.NoError(t, err)
}

func TestHistoryFindUnknownObject(t *testing.T) {
	pool := newTestPool(t)
	history := store.NewHistory("switch_state_history")

	err := inTx(t, pool, func(tx pgx.Tx) error {
		entries, err := history.FindByObjectID(context.Background(), tx, uuid.New())
		if err != nil {
			return err
		}
		assert.Empty(t, entries)
		return nil
	})
	require.NoError(t, err)
}

func TestHistoryFindByObjectIDs(t *testing.T) {
	pool := newTestPool(t)
	history := store.NewHistory("switch_state_history")

	first := uuid.New()
	second := uuid.New()

	err := inTx(t, pool, func(tx pgx.Tx) error {
		ctx := context.Background()
		version := fleet.InitialVersion()

		if _, err := history.Append(ctx, tx, first, fleet.Initializing(), version); err != nil {
			return err
		}
		if _, err := history.Append(ctx, tx, second, fleet.Initializing(), version); err != nil {
			return err
		}
		if _, err := history.Append(ctx, tx, first, fleet.FetchingData(), version.Increment()); err != nil {
			return err
		}
		return nil
	})
	require.NoError(t, err)

	err = inTx(t, pool, func(tx pgx.Tx) error {
		histories, err := history.FindByObjectIDs(context.Background(), tx, []uuid.UUID{first, second})
		if err != nil {
			return err
		}
		require.Len(t, histories, 2)
		require.Len(t, histories[first], 2)
		require.Len(t, histories[second], 1)
		assert.Equal(t, fleet.StateInitializing, histories[first][0].State.Name)
		assert.Equal(t, fleet.StateFetchingData, histories[first][1].State.Name)
		return nil
	})
	require.NoError(t, err)
}
