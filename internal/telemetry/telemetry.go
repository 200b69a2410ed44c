// Package telemetry provides OpenTelemetry instrumentation for the
// fleet control-plane server.
package telemetry

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// Telemetry holds the meter provider and the Prometheus scrape endpoint
// backing it. A nil telemetry or one built with New(false, …) is a
// functioning no-op.
type Telemetry struct {
	meterProvider metric.MeterProvider
	registry      *prometheus.Registry
	shutdown      func(context.Context) error
}

// New creates the telemetry stack. When disabled it returns no-op
// providers so callers never need nil checks.
func New(enabled bool, serviceName, serviceVersion string) (*Telemetry, error) {
	if !enabled {
		return &Telemetry{meterProvider: noop.NewMeterProvider()}, nil
	}

	registry := prometheus.NewRegistry()
	exporter, err := otelprom.New(otelprom.WithRegisterer(registry))
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(serviceName),
		semconv.ServiceVersion(serviceVersion),
	)

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(exporter),
		sdkmetric.WithResource(res),
	)

	return &Telemetry{
		meterProvider: provider,
		registry:      registry,
		shutdown:      provider.Shutdown,
	}, nil
}

// MeterProvider returns the configured meter provider.
func (t *Telemetry) MeterProvider() metric.MeterProvider {
	if t == nil {
		return noop.NewMeterProvider()
	}
	return t.meterProvider
}

// Handler returns the Prometheus scrape handler, or nil when telemetry
// is disabled.
func (t *Telemetry) Handler() http.Handler {
	if t == nil || t.registry == nil {
		return nil
	}
	return promhttp.HandlerFor(t.registry, promhttp.HandlerOpts{})
}

// Shutdown flushes and stops the providers.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	if t == nil || t.shutdown == nil {
		return nil
	}
	return t.shutdown(ctx)
}
