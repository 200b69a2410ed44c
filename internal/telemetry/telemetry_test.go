package telemetry_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetforge/fleetserver/internal/telemetry"
)

func TestDisabledTelemetryIsNoop(t *testing.T) {
	t.Parallel()

	tel, err := telemetry.New(false, "fleet-api", "test")
	require.NoError(t, err)

	assert.NotNil(t, tel.MeterProvider())
	assert.Nil(t, tel.Handler())
	assert.NoError(t, tel.Shutdown(context.Background()))
}

func TestNilTelemetryIsSafe(t *testing.T) {
	t.Parallel()

	var tel *telemetry.Telemetry
	assert.NotNil(t, tel.MeterProvider())
	assert.Nil(t, tel.Handler())
	assert.NoError(t, tel.Shutdown(context.Background()))
}

func TestNilMetricsAreSafe(t *testing.T) {
	t.Parallel()

	metrics, err := telemetry.NewControllerMetrics(nil)
	require.NoError(t, err)
	require.Nil(t, metrics)

	// The controller calls these unconditionally; a nil receiver must
	// not panic.
	metrics.RecordIteration(context.Background(), "switch", false, time.Second)
	metrics.RecordObject(context.Background(), "switch", "transition", time.Millisecond, "")
	metrics.RecordObject(context.Background(), "switch", "", time.Millisecond, "handler")
}

func TestEnabledTelemetryExportsMetrics(t *testing.T) {
	t.Parallel()

	tel, err := telemetry.New(true, "fleet-api", "test")
	require.NoError(t, err)
	defer func() { require.NoError(t, tel.Shutdown(context.Background())) }()

	metrics, err := telemetry.NewControllerMetrics(tel.MeterProvider())
	require.NoError(t, err)
	require.NotNil(t, metrics)

	ctx := context.Background()
	metrics.RecordIteration(ctx, "switch", false, 250*time.Millisecond)
	metrics.RecordIteration(ctx, "switch", true, 0)
	metrics.RecordObject(ctx, "switch", "transition", 3*time.Millisecond, "")

	handler := tel.Handler()
	require.NotNil(t, handler)

	srv := httptest.NewServer(handler)
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "fleet_controller_iterations_total")
	assert.Contains(t, string(body), "fleet_controller_objects_handled_total")
}
