package v1

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/fleetforge/fleetserver/internal/fleet"
	"github.com/fleetforge/fleetserver/internal/logger"
	"github.com/fleetforge/fleetserver/internal/versions"
)

// ReadinessChecker reports whether the service can serve requests.
type ReadinessChecker interface {
	CheckReadiness(ctx context.Context) error
}

// Services bundles the per-kind services the server exposes.
type Services struct {
	Switches     ObjectService[fleet.SwitchConfig]
	Machines     MachineService
	PowerShelves ObjectService[fleet.PowerShelfConfig]
	DPUs         ObjectService[fleet.DPUConfig]
	Readiness    ReadinessChecker
}

// ServerOption configures the fleet API server
type ServerOption func(*serverConfig)

type serverConfig struct {
	middlewares []func(http.Handler) http.Handler
	metrics     http.Handler
}

// WithMiddlewares adds middleware to the server
func WithMiddlewares(mw ...func(http.Handler) http.Handler) ServerOption {
	return func(cfg *serverConfig) {
		cfg.middlewares = append(cfg.middlewares, mw...)
	}
}

// WithMetricsHandler mounts a Prometheus scrape endpoint at /metrics
func WithMetricsHandler(h http.Handler) ServerOption {
	return func(cfg *serverConfig) {
		cfg.metrics = h
	}
}

// NewServer creates and configures the HTTP router with the given
// services and options. The API is the only write path for declared
// configuration and deletion requests; controller state is read-only
// through it.
func NewServer(svcs Services, opts ...ServerOption) *chi.Mux {
	cfg := &serverConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	r := chi.NewRouter()
	for _, mw := range cfg.middlewares {
		r.Use(mw)
	}

	r.Get("/health", healthHandler)
	r.Get("/readiness", readinessHandler(svcs.Readiness))
	r.Get("/version", versionHandler)

	if cfg.metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.metrics)
	}

	r.Route("/v1", func(r chi.Router) {
		r.Mount("/switches", objectRouter(fleet.KindSwitch, svcs.Switches))
		r.Mount("/machines", machineRouter(svcs.Machines))
		r.Mount("/power-shelves", objectRouter(fleet.KindPowerShelf, svcs.PowerShelves))
		r.Mount("/dpus", objectRouter(fleet.KindDPU, svcs.DPUs))
	})

	return r
}

// LoggingMiddleware logs HTTP requests
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		logger.Debugf("HTTP %s %s %d %s %s",
			r.Method,
			r.URL.Path,
			ww.Status(),
			time.Since(start),
			middleware.GetReqID(r.Context()),
		)
	})
}

// healthHandler handles health check requests
func healthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"healthy"}`))
}

// readinessHandler handles readiness check requests
func readinessHandler(checker ReadinessChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := checker.CheckReadiness(r.Context()); err != nil {
			writeErrorResponse(w, "Service not ready: "+err.Error(), http.StatusServiceUnavailable)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ready"}`))
	}
}

// versionHandler handles version information requests
func versionHandler(w http.ResponseWriter, _ *http.Request) {
	info := versions.GetVersionInfo()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(info); err != nil {
		logger.Errorf("Failed to encode version info: %v", err)
	}
}
