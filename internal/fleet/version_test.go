package fleet

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitialVersion(t *testing.T) {
	t.Parallel()

	v := InitialVersion()

	assert.Equal(t, int64(1), v.Counter, "fresh objects start at version 1")
	assert.False(t, v.UpdatedAt.IsZero())
}

func TestVersionIncrement(t *testing.T) {
	t.Parallel()

	t.Run("strictly increases the counter", func(t *testing.T) {
		t.Parallel()

		v := InitialVersion()
		next := v.Increment()

		assert.Equal(t, v.Counter+1, next.Counter)
		assert.True(t, v.Less(next))
	})

	t.Run("does not modify the receiver", func(t *testing.T) {
		t.Parallel()

		v := Version{Counter: 7, UpdatedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
		before := v

		_ = v.Increment()

		assert.Equal(t, before, v)
	})

	t.Run("repeated increments stay monotonic", func(t *testing.T) {
		t.Parallel()

		v := InitialVersion()
		for i := 0; i < 100; i++ {
			next := v.Increment()
			require.True(t, v.Less(next))
			require.False(t, next.Less(v))
			v = next
		}
		assert.Equal(t, int64(101), v.Counter)
	})
}

func TestVersionEqual(t *testing.T) {
	t.Parallel()

	// Only the counter participates in ordering and equality; the
	// timestamp is informational.
	a := Version{Counter: 3, UpdatedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	b := Version{Counter: 3, UpdatedAt: time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)}

	assert.True(t, a.Equal(b))
	assert.False(t, a.Less(b))
	assert.False(t, b.Less(a))
}
