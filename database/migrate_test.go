package database

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationTooling(t *testing.T) {
	ctx := context.Background()

	connStr, stopContainer := startPostgres(t, ctx)
	t.Cleanup(stopContainer)

	m, err := NewFromConnectionString(connStr)
	require.NoError(t, err)

	// Ahead of any migration there is no version to report.
	version, dirty, err := GetVersion(connStr)
	require.NoError(t, err)
	assert.Zero(t, version)
	assert.False(t, dirty)

	require.NoError(t, m.Up())

	version, dirty, err = GetVersion(connStr)
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)
	assert.False(t, dirty)

	// The down migration must undo everything the up migration created.
	require.NoError(t, m.Down())

	version, dirty, err = GetVersion(connStr)
	require.NoError(t, err)
	assert.Zero(t, version)
	assert.False(t, dirty)

	require.NoError(t, m.Up())
}

func TestSchemaCreatesAllTables(t *testing.T) {
	db, cleanup := SetupTestDB(t)
	t.Cleanup(cleanup)

	ctx := context.Background()

	kinds := []string{"switch", "machine", "power_shelf", "dpu"}
	objectTables := map[string]string{
		"switch":      "switches",
		"machine":     "machines",
		"power_shelf": "power_shelves",
		"dpu":         "dpus",
	}

	var tables []string
	for _, kind := range kinds {
		tables = append(tables,
			objectTables[kind],
			kind+"_state_history",
			kind+"_controller_iterations",
			kind+"_queued_objects",
		)
	}

	for _, table := range tables {
		var exists bool
		err := db.QueryRow(ctx,
			"SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name = $1)",
			table,
		).Scan(&exists)
		require.NoError(t, err)
		assert.True(t, exists, "table %s is missing", table)
	}
}
