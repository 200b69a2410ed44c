// Package config provides configuration loading and management for the
// fleet control-plane server.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Option defines the interface for configuration options
type Option func(*loaderConfig) error

// loaderConfig defines the configuration for loading a configuration
type loaderConfig struct {
	path string
}

// WithConfigPath loads configuration from a YAML file
func WithConfigPath(path string) Option {
	return func(cfg *loaderConfig) error {
		if path == "" {
			return fmt.Errorf("path is required")
		}

		// Resolve symlinks to prevent symlink attacks.
		// Note that this calls filepath.Clean internally.
		realPath, err := filepath.EvalSymlinks(path)
		if err != nil {
			return fmt.Errorf("failed to evaluate symlinks: %w", err)
		}

		// Validate the path to prevent path traversal attacks
		if !filepath.IsAbs(realPath) {
			if !filepath.IsLocal(realPath) {
				return fmt.Errorf("path is not local or contains invalid traversal: %s", path)
			}
		}

		cfg.path = realPath
		return nil
	}
}

// Config represents the root configuration structure
type Config struct {
	// Address is the listen address for the HTTP API
	Address string `yaml:"address,omitempty"`

	Database *DatabaseConfig `yaml:"database"`

	// Controllers configures the per-kind reconciliation controllers
	Controllers ControllersConfig `yaml:"controllers,omitempty"`

	// Telemetry configures metrics export; nil disables it
	Telemetry *TelemetryConfig `yaml:"telemetry,omitempty"`

	// Devices configures access to hardware endpoints
	Devices DevicesConfig `yaml:"devices,omitempty"`
}

// DevicesConfig defines how the controllers reach hardware endpoints.
type DevicesConfig struct {
	// InventoryURL is the base URL of the hardware inventory service the
	// DPU controller reads firmware versions from
	InventoryURL string `yaml:"inventoryURL,omitempty"`

	// RequestTimeout bounds a single device HTTP request (e.g. "10s")
	RequestTimeout string `yaml:"requestTimeout,omitempty"`
}

// GetRequestTimeout parses the device request timeout; zero means the
// device package default.
func (d *DevicesConfig) GetRequestTimeout() (time.Duration, error) {
	if d.RequestTimeout == "" {
		return 0, nil
	}
	t, err := time.ParseDuration(d.RequestTimeout)
	if err != nil {
		return 0, fmt.Errorf("invalid device request timeout %q: %w", d.RequestTimeout, err)
	}
	return t, nil
}

// ControllersConfig defines the reconciliation loop settings shared by
// every object-kind controller.
type ControllersConfig struct {
	// Interval is the target time between iterations (e.g. "30s")
	Interval string `yaml:"interval,omitempty"`

	// MaxConcurrency bounds how many objects are reconciled in parallel
	// within one iteration
	MaxConcurrency int `yaml:"maxConcurrency,omitempty"`

	// ObjectTimeout bounds a single object's reconciliation tick,
	// including any collaborator I/O the handler performs (e.g. "1m")
	ObjectTimeout string `yaml:"objectTimeout,omitempty"`
}

// TelemetryConfig defines metrics export settings
type TelemetryConfig struct {
	Enabled bool `yaml:"enabled"`

	// MetricsPath is where the Prometheus scrape endpoint is mounted;
	// defaults to /metrics
	MetricsPath string `yaml:"metricsPath,omitempty"`
}

// DatabaseConfig defines database connection settings
type DatabaseConfig struct {
	// Host is the database server hostname or IP address
	Host string `yaml:"host"`

	// Port is the database server port
	Port int `yaml:"port"`

	// User is the database username
	User string `yaml:"user"`

	// PasswordFile is the path to a file containing the database password.
	// This is the recommended approach for production deployments.
	// The file should contain only the password with optional trailing whitespace.
	PasswordFile string `yaml:"passwordFile,omitempty"`

	// Database is the database name
	Database string `yaml:"database"`

	// SSLMode is the SSL mode for the connection (disable, require, verify-ca, verify-full)
	SSLMode string `yaml:"sslMode,omitempty"`

	// MaxOpenConns is the maximum number of open connections to the database
	MaxOpenConns int32 `yaml:"maxOpenConns,omitempty"`

	// MaxIdleConns is the minimum number of idle connections kept in the pool
	MaxIdleConns int32 `yaml:"maxIdleConns,omitempty"`

	// ConnMaxLifetime is the maximum lifetime of a connection (e.g., "1h", "30m")
	ConnMaxLifetime string `yaml:"connMaxLifetime,omitempty"`
}

// GetPassword returns the database password using the following priority:
// 1. Read from PasswordFile if specified
// 2. Read from FLEET_DATABASE_PASSWORD environment variable
//
// The password from file will have leading/trailing whitespace trimmed.
func (d *DatabaseConfig) GetPassword() (string, error) {
	// Priority 1: Read from file if specified
	if d.PasswordFile != "" {
		// Use filepath.Clean to prevent path traversal attacks
		cleanPath := filepath.Clean(d.PasswordFile)

		data, err := os.ReadFile(cleanPath)
		if err != nil {
			return "", fmt.Errorf("failed to read password from file %s: %w", d.PasswordFile, err)
		}

		// Trim whitespace (including newlines) from file content
		password := strings.TrimSpace(string(data))
		return password, nil
	}

	// Priority 2: Check environment variable
	if envPassword := os.Getenv("FLEET_DATABASE_PASSWORD"); envPassword != "" {
		return envPassword, nil
	}

	return "", fmt.Errorf(
		"no database password configured: set passwordFile or FLEET_DATABASE_PASSWORD environment variable",
	)
}

// GetConnectionString builds a PostgreSQL connection string with proper
// password handling. The password is URL-escaped to handle special
// characters safely.
func (d *DatabaseConfig) GetConnectionString() (string, error) {
	password, err := d.GetPassword()
	if err != nil {
		return "", err
	}

	sslMode := d.SSLMode
	if sslMode == "" {
		sslMode = "require"
	}

	// URL-escape the password to handle special characters
	escapedPassword := url.QueryEscape(password)

	connString := fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User,
		escapedPassword,
		d.Host,
		d.Port,
		d.Database,
		sslMode,
	)

	return connString, nil
}

const (
	// DefaultControllerInterval is used when the config omits an interval
	DefaultControllerInterval = 30 * time.Second

	// DefaultMaxConcurrency is used when the config omits a concurrency bound
	DefaultMaxConcurrency = 8

	// DefaultObjectTimeout is used when the config omits a per-object deadline
	DefaultObjectTimeout = time.Minute
)

// GetInterval parses the controller iteration interval, falling back to
// the default when unset.
func (c *ControllersConfig) GetInterval() (time.Duration, error) {
	if c.Interval == "" {
		return DefaultControllerInterval, nil
	}
	d, err := time.ParseDuration(c.Interval)
	if err != nil {
		return 0, fmt.Errorf("invalid controller interval %q: %w", c.Interval, err)
	}
	return d, nil
}

// GetObjectTimeout parses the per-object tick deadline, falling back to
// the default when unset.
func (c *ControllersConfig) GetObjectTimeout() (time.Duration, error) {
	if c.ObjectTimeout == "" {
		return DefaultObjectTimeout, nil
	}
	d, err := time.ParseDuration(c.ObjectTimeout)
	if err != nil {
		return 0, fmt.Errorf("invalid object timeout %q: %w", c.ObjectTimeout, err)
	}
	return d, nil
}

// GetMaxConcurrency returns the concurrency bound, falling back to the
// default when unset.
func (c *ControllersConfig) GetMaxConcurrency() int {
	if c.MaxConcurrency <= 0 {
		return DefaultMaxConcurrency
	}
	return c.MaxConcurrency
}

// Validate checks the configuration for completeness and coherence.
func (c *Config) Validate() error {
	if c.Database == nil {
		return fmt.Errorf("database configuration is required")
	}
	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}
	if c.Database.Port == 0 {
		return fmt.Errorf("database port is required")
	}
	if c.Database.User == "" {
		return fmt.Errorf("database user is required")
	}
	if c.Database.Database == "" {
		return fmt.Errorf("database name is required")
	}

	interval, err := c.Controllers.GetInterval()
	if err != nil {
		return err
	}
	timeout, err := c.Controllers.GetObjectTimeout()
	if err != nil {
		return err
	}
	// A tick that can outlive the iteration interval defeats the
	// scheduler's single-flight guarantee.
	if timeout > 10*interval {
		return fmt.Errorf("object timeout %s is unreasonably large for interval %s", timeout, interval)
	}

	return nil
}
