package store_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetforge/fleetserver/internal/store"
)

func TestAdvisoryLockExclusivity(t *testing.T) {
	pool := newTestPool(t)
	ctx := context.Background()

	lock := store.NewAdvisoryLock(pool, "fleet:controller:switch")

	release, ok, err := lock.TryAcquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	// A second session must see the lock as held, without blocking.
	contender := store.NewAdvisoryLock(pool, "fleet:controller:switch")
	second, ok, err := contender.TryAcquire(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, second)

	release()

	release2, ok, err := contender.TryAcquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	release2()
}

func TestAdvisoryLockKeysAreIndependent(t *testing.T) {
	pool := newTestPool(t)
	ctx := context.Background()

	switchLock := store.NewAdvisoryLock(pool, "fleet:controller:switch")
	machineLock := store.NewAdvisoryLock(pool, "fleet:controller:machine")

	releaseSwitch, ok, err := switchLock.TryAcquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	defer releaseSwitch()

	releaseMachine, ok, err := machineLock.TryAcquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok, "a different kind's lock must not contend")
	defer releaseMachine()
}
