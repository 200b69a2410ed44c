package app

import (
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/spf13/cobra"

	"github.com/fleetforge/fleetserver/database"
	"github.com/fleetforge/fleetserver/internal/config"
	"github.com/fleetforge/fleetserver/internal/logger"
)

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply pending database migrations",
	Long: `Apply all pending database migrations to bring the schema up to date.
This command reads the database connection parameters from the config file
and applies all migrations that haven't been run yet.`,
	RunE: runMigrateUp,
}

// migrationConnString loads the config named by the command flags and
// builds the database connection string.
func migrationConnString(cmd *cobra.Command) (string, *config.Config, error) {
	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return "", nil, fmt.Errorf("failed to get config flag: %w", err)
	}

	cfg, err := config.LoadConfig(config.WithConfigPath(configPath))
	if err != nil {
		return "", nil, fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.Database == nil {
		return "", nil, fmt.Errorf("database configuration is required")
	}

	connString, err := cfg.Database.GetConnectionString()
	if err != nil {
		return "", nil, fmt.Errorf("failed to get connection string: %w", err)
	}
	return connString, cfg, nil
}

// confirmOrAbort prompts unless --yes was passed. Returns false when the
// user declined.
func confirmOrAbort(cmd *cobra.Command, action string, cfg *config.Config) (bool, error) {
	yes, err := cmd.Flags().GetBool("yes")
	if err != nil {
		return false, fmt.Errorf("failed to get yes flag: %w", err)
	}
	if yes {
		return true, nil
	}

	logger.Infof("About to %s on database: %s@%s:%d/%s",
		action, cfg.Database.User, cfg.Database.Host, cfg.Database.Port, cfg.Database.Database)
	fmt.Print("Continue? (yes/no): ")
	var response string
	if _, err := fmt.Scanln(&response); err != nil {
		return false, fmt.Errorf("failed to read user input: %w", err)
	}
	if response != "yes" && response != "y" {
		logger.Infof("Migration cancelled by user")
		return false, nil
	}
	return true, nil
}

func runMigrateUp(cmd *cobra.Command, _ []string) error {
	connString, cfg, err := migrationConnString(cmd)
	if err != nil {
		return err
	}

	proceed, err := confirmOrAbort(cmd, "apply migrations", cfg)
	if err != nil || !proceed {
		return err
	}

	m, err := database.NewFromConnectionString(connString)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}

	logger.Infof("Applying database migrations...")
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	version, dirty, err := database.GetVersion(connString)
	if err != nil {
		logger.Warnf("Unable to get migration version: %v", err)
	} else if dirty {
		logger.Warnf("Database is in a dirty state at version %d", version)
	} else {
		logger.Infof("Migrations applied successfully. Current version: %d", version)
	}

	return nil
}
