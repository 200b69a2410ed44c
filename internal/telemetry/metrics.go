package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// ControllerMetricsMeterName is the name used for the controller metrics meter
const ControllerMetricsMeterName = "github.com/fleetforge/fleetserver/controller"

// ControllerMetrics holds the OpenTelemetry instruments for the
// reconciliation controllers. All methods are safe on a nil receiver.
type ControllerMetrics struct {
	iterationsTotal   metric.Int64Counter
	iterationDuration metric.Float64Histogram
	objectsHandled    metric.Int64Counter
	tickDuration      metric.Float64Histogram
	tickErrors        metric.Int64Counter
}

// NewControllerMetrics creates a ControllerMetrics instance with the given
// meter provider. If provider is nil, it returns nil (no-op metrics).
func NewControllerMetrics(provider metric.MeterProvider) (*ControllerMetrics, error) {
	if provider == nil {
		return nil, nil
	}

	meter := provider.Meter(ControllerMetricsMeterName)

	iterationsTotal, err := meter.Int64Counter(
		"fleet_controller_iterations_total",
		metric.WithDescription("Number of controller iterations, including skipped ones"),
		metric.WithUnit("{iteration}"),
	)
	if err != nil {
		return nil, err
	}

	iterationDuration, err := meter.Float64Histogram(
		"fleet_controller_iteration_duration_seconds",
		metric.WithDescription("Duration of controller iterations in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60),
	)
	if err != nil {
		return nil, err
	}

	objectsHandled, err := meter.Int64Counter(
		"fleet_controller_objects_handled_total",
		metric.WithDescription("Number of object ticks by outcome"),
		metric.WithUnit("{object}"),
	)
	if err != nil {
		return nil, err
	}

	tickDuration, err := meter.Float64Histogram(
		"fleet_controller_tick_duration_seconds",
		metric.WithDescription("Duration of a single object reconciliation tick in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60),
	)
	if err != nil {
		return nil, err
	}

	tickErrors, err := meter.Int64Counter(
		"fleet_controller_tick_errors_total",
		metric.WithDescription("Number of failed object ticks by error type"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	return &ControllerMetrics{
		iterationsTotal:   iterationsTotal,
		iterationDuration: iterationDuration,
		objectsHandled:    objectsHandled,
		tickDuration:      tickDuration,
		tickErrors:        tickErrors,
	}, nil
}

// RecordIteration records the result of one controller iteration.
// Per-object counts are recorded separately by RecordObject.
func (m *ControllerMetrics) RecordIteration(
	ctx context.Context,
	kind string,
	skipped bool,
	duration time.Duration,
) {
	if m == nil {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String("kind", kind),
		attribute.Bool("skipped", skipped),
	)
	m.iterationsTotal.Add(ctx, 1, attrs)
	if !skipped {
		m.iterationDuration.Record(ctx, duration.Seconds(), attrs)
	}
}

// RecordObject records the outcome and latency of one object tick.
func (m *ControllerMetrics) RecordObject(
	ctx context.Context,
	kind string,
	outcome string,
	duration time.Duration,
	errorType string,
) {
	if m == nil {
		return
	}

	if errorType != "" {
		m.tickErrors.Add(ctx, 1, metric.WithAttributes(
			attribute.String("kind", kind),
			attribute.String("error_type", errorType),
		))
	}
	if outcome != "" {
		m.objectsHandled.Add(ctx, 1, metric.WithAttributes(
			attribute.String("kind", kind),
			attribute.String("outcome", outcome),
		))
	}
	m.tickDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String("kind", kind),
	))
}
