package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	v1 "github.com/fleetforge/fleetserver/internal/api/v1"
	"github.com/fleetforge/fleetserver/internal/config"
	"github.com/fleetforge/fleetserver/internal/controller"
	"github.com/fleetforge/fleetserver/internal/db"
	"github.com/fleetforge/fleetserver/internal/device"
	"github.com/fleetforge/fleetserver/internal/fleet"
	"github.com/fleetforge/fleetserver/internal/handlers"
	"github.com/fleetforge/fleetserver/internal/logger"
	"github.com/fleetforge/fleetserver/internal/service"
	"github.com/fleetforge/fleetserver/internal/store"
	"github.com/fleetforge/fleetserver/internal/telemetry"
	"github.com/fleetforge/fleetserver/internal/versions"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the fleet API server",
	Long: `Start the fleet API server and the per-kind reconciliation controllers.

The server requires a configuration file (--config) that specifies the
database connection, controller loop settings, and telemetry options.
See examples/ directory for sample configurations.`,
	RunE: runServe,
}

const (
	defaultGracefulTimeout = 30 * time.Second // Kubernetes-friendly shutdown time
	serverRequestTimeout   = 10 * time.Second // The fleet API should respond quickly
	serverReadTimeout      = 10 * time.Second // Enough for headers and small requests
	serverWriteTimeout     = 15 * time.Second // Must be > serverRequestTimeout to let middleware handle timeout
	serverIdleTimeout      = 60 * time.Second // Keep connections alive for reuse

	poolConnectMaxTries = 5
)

func init() {
	serveCmd.Flags().String("address", "", "Address to listen on (overrides config)")
	serveCmd.Flags().String("config", "", "Path to configuration file (YAML format, required)")

	err := viper.BindPFlag("address", serveCmd.Flags().Lookup("address"))
	if err != nil {
		logger.Fatalf("Failed to bind address flag: %v", err)
	}
	err = viper.BindPFlag("config", serveCmd.Flags().Lookup("config"))
	if err != nil {
		logger.Fatalf("Failed to bind config flag: %v", err)
	}

	if err := serveCmd.MarkFlagRequired("config"); err != nil {
		logger.Fatalf("Failed to mark config flag as required: %v", err)
	}
}

// connectPool dials the database with exponential backoff so the server
// survives starting before its database is reachable.
func connectPool(ctx context.Context, dbCfg *config.DatabaseConfig) (*pgxpool.Pool, error) {
	return backoff.Retry(ctx, func() (*pgxpool.Pool, error) {
		pool, err := db.NewPool(ctx, dbCfg)
		if err != nil {
			logger.Warnf("Database not reachable yet: %v", err)
			return nil, err
		}
		return pool, nil
	},
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(poolConnectMaxTries),
	)
}

func runServe(_ *cobra.Command, _ []string) error {
	ctx := context.Background()

	logger.Initialize(viper.GetBool("debug"))

	// Load and validate configuration
	configPath := viper.GetString("config")
	cfg, err := config.LoadConfig(config.WithConfigPath(configPath))
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	address := cfg.Address
	if flagAddr := viper.GetString("address"); flagAddr != "" {
		address = flagAddr
	}
	logger.Infof("Starting fleet API server on %s (config: %s)", address, configPath)

	// Telemetry
	telemetryEnabled := cfg.Telemetry != nil && cfg.Telemetry.Enabled
	tel, err := telemetry.New(telemetryEnabled, "fleet-api", versions.GetVersionInfo().Version)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	// Database pool
	pool, err := connectPool(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()

	// Per-kind stores
	switchIO := store.NewSwitchIO()
	machineIO := store.NewMachineIO()
	powerShelfIO := store.NewPowerShelfIO()
	dpuIO := store.NewDPUIO()

	// Device access
	deviceTimeout, err := cfg.Devices.GetRequestTimeout()
	if err != nil {
		return err
	}
	deviceClient := device.NewDefaultClient(deviceTimeout)
	bmc := device.NewRedfishBMC(deviceClient)
	inventory := device.NewInventoryService(deviceClient, cfg.Devices.InventoryURL)

	// Controllers
	interval, err := cfg.Controllers.GetInterval()
	if err != nil {
		return err
	}
	objectTimeout, err := cfg.Controllers.GetObjectTimeout()
	if err != nil {
		return err
	}
	opts := controller.Options{
		Interval:       interval,
		MaxConcurrency: cfg.Controllers.GetMaxConcurrency(),
		ObjectTimeout:  objectTimeout,
	}

	metrics, err := telemetry.NewControllerMetrics(tel.MeterProvider())
	if err != nil {
		return fmt.Errorf("failed to create controller metrics: %w", err)
	}

	controllers := controller.NewSet().
		Add(controller.New(pool, switchIO, handlers.NewSwitchHandler(),
			store.NewAdvisoryLock(pool, lockKey(fleet.KindSwitch)), opts, metrics)).
		Add(controller.New(pool, machineIO, handlers.NewMachineHandler(bmc),
			store.NewAdvisoryLock(pool, lockKey(fleet.KindMachine)), opts, metrics)).
		Add(controller.New(pool, powerShelfIO, handlers.NewPowerShelfHandler(),
			store.NewAdvisoryLock(pool, lockKey(fleet.KindPowerShelf)), opts, metrics)).
		Add(controller.New(pool, dpuIO, handlers.NewDPUHandler(dpuIO.Objects(), inventory),
			store.NewAdvisoryLock(pool, lockKey(fleet.KindDPU)), opts, metrics))

	controllerCtx, stopControllers := context.WithCancel(context.Background())
	controllersDone := make(chan struct{})
	go func() {
		defer close(controllersDone)
		controllers.Run(controllerCtx)
	}()

	// Write boundary and HTTP API
	fleetSvc := service.NewFleet(pool, switchIO, machineIO, powerShelfIO, dpuIO)

	serverOpts := []v1.ServerOption{
		v1.WithMiddlewares(
			middleware.RequestID,
			middleware.RealIP,
			middleware.Recoverer,
			middleware.Timeout(serverRequestTimeout),
			v1.LoggingMiddleware,
		),
	}
	if telemetryEnabled {
		serverOpts = append(serverOpts, v1.WithMetricsHandler(tel.Handler()))
	}

	router := v1.NewServer(v1.Services{
		Switches:     fleetSvc.Switches,
		Machines:     fleetSvc.Machines,
		PowerShelves: fleetSvc.PowerShelves,
		DPUs:         fleetSvc.DPUs,
		Readiness:    fleetSvc,
	}, serverOpts...)

	server := &http.Server{
		Addr:         address,
		Handler:      router,
		ReadTimeout:  serverReadTimeout,
		WriteTimeout: serverWriteTimeout,
		IdleTimeout:  serverIdleTimeout,
	}

	go func() {
		logger.Infof("Server listening on %s", address)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	// Stop the controllers and wait for in-flight ticks to finish
	stopControllers()
	<-controllersDone

	shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultGracefulTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("Server forced to shutdown: %v", err)
		return err
	}

	if err := tel.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("Failed to shut down telemetry: %v", err)
	}

	logger.Info("Server shutdown complete")
	return nil
}

func lockKey(kind fleet.Kind) string {
	return "fleet:controller:" + kind.String()
}
