package database

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go"
	tclog "github.com/testcontainers/testcontainers-go/log"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

type nopLogger struct{}

func (*nopLogger) Printf(_ string, _ ...any) {}

var _ tclog.Logger = (*nopLogger)(nil)

var (
	dbName = "testdb"
	dbUser = "testuser"
	dbPass = "testpass"
)

// SetupTestDB creates a Postgres container using testcontainers, applies
// the schema, and returns a connection plus a cleanup function.
func SetupTestDB(t *testing.T) (*pgx.Conn, func()) {
	t.Helper()

	ctx := context.Background()

	connStr, stopContainer := startPostgres(t, ctx)

	db, err := pgx.Connect(ctx, connStr)
	require.NoError(t, err)

	err = MigrateUp(ctx, db)
	require.NoError(t, err)

	// Test full migration rollback before handing the schema to the suite
	err = MigrateDown(ctx, db)
	require.NoError(t, err)
	err = MigrateUp(ctx, db)
	require.NoError(t, err)

	cleanupFunc := func() {
		_ = db.Close(ctx)
		stopContainer()
	}

	return db, cleanupFunc
}

// SetupTestPool is like SetupTestDB but returns a connection pool, for
// suites that exercise concurrent guards.
func SetupTestPool(t *testing.T) (*pgxpool.Pool, func()) {
	t.Helper()

	ctx := context.Background()

	connStr, stopContainer := startPostgres(t, ctx)

	db, err := pgx.Connect(ctx, connStr)
	require.NoError(t, err)
	err = MigrateUp(ctx, db)
	require.NoError(t, err)
	require.NoError(t, db.Close(ctx))

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)

	cleanupFunc := func() {
		pool.Close()
		stopContainer()
	}

	return pool, cleanupFunc
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()

	postgresContainer, err := postgres.Run(
		ctx,
		"postgres:16-alpine",
		postgres.WithDatabase(dbName),
		postgres.WithUsername(dbUser),
		postgres.WithPassword(dbPass),
		postgres.BasicWaitStrategies(),
		tc.WithLogger(&nopLogger{}),
	)
	require.NoError(t, err)

	connStr, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	return connStr, func() {
		tc.CleanupContainer(t, postgresContainer)
	}
}
