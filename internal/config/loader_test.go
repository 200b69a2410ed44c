package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetforge/fleetserver/internal/config"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfigFile(t, `
address: ":9090"
database:
  host: localhost
  port: 5432
  user: fleet
  database: fleetdb
  sslMode: disable
controllers:
  interval: 15s
  maxConcurrency: 4
`)

	cfg, err := config.LoadConfig(config.WithConfigPath(path))
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Address)
	require.NotNil(t, cfg.Database)
	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, "15s", cfg.Controllers.Interval)
	assert.Equal(t, 4, cfg.Controllers.MaxConcurrency)
	require.NoError(t, cfg.Validate())
}

func TestLoadConfigDefaultsAddress(t *testing.T) {
	path := writeConfigFile(t, `
database:
  host: localhost
  port: 5432
  user: fleet
  database: fleetdb
`)

	cfg, err := config.LoadConfig(config.WithConfigPath(path))
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Address)
}

func TestLoadConfigErrors(t *testing.T) {
	t.Run("no path", func(t *testing.T) {
		_, err := config.LoadConfig()
		assert.ErrorContains(t, err, "path is required")
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := config.LoadConfig(config.WithConfigPath(filepath.Join(t.TempDir(), "nope.yaml")))
		assert.Error(t, err)
	})

	t.Run("malformed yaml", func(t *testing.T) {
		path := writeConfigFile(t, "address: [not closed")
		_, err := config.LoadConfig(config.WithConfigPath(path))
		assert.ErrorContains(t, err, "failed to parse config file")
	})
}
