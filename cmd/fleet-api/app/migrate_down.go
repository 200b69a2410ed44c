package app

import (
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/spf13/cobra"

	"github.com/fleetforge/fleetserver/database"
	"github.com/fleetforge/fleetserver/internal/logger"
)

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back all database migrations",
	Long: `Roll back every applied database migration. This drops the fleet
schema; object state history is lost. Intended for development and test
environments.`,
	RunE: runMigrateDown,
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the current migration version",
	RunE:  runMigrateStatus,
}

func runMigrateDown(cmd *cobra.Command, _ []string) error {
	connString, cfg, err := migrationConnString(cmd)
	if err != nil {
		return err
	}

	proceed, err := confirmOrAbort(cmd, "roll back ALL migrations", cfg)
	if err != nil || !proceed {
		return err
	}

	m, err := database.NewFromConnectionString(connString)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}

	logger.Infof("Rolling back database migrations...")
	if err := m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to roll back migrations: %w", err)
	}

	logger.Infof("Migrations rolled back successfully")
	return nil
}

func runMigrateStatus(cmd *cobra.Command, _ []string) error {
	connString, _, err := migrationConnString(cmd)
	if err != nil {
		return err
	}

	version, dirty, err := database.GetVersion(connString)
	if err != nil {
		return fmt.Errorf("failed to get migration version: %w", err)
	}

	if dirty {
		logger.Warnf("Database is in a dirty state at version %d", version)
	} else {
		logger.Infof("Current migration version: %d", version)
	}
	return nil
}
