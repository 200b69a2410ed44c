package v1_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	v1 "github.com/fleetforge/fleetserver/internal/api/v1"
	"github.com/fleetforge/fleetserver/internal/fleet"
)

func TestHealthEndpoint(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)

	resp := ts.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
}

func TestReadinessEndpoint(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)

	t.Run("ready", func(t *testing.T) {
		resp := ts.do(t, http.MethodGet, "/readiness", nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("database unreachable", func(t *testing.T) {
		ts.readiness.err = errors.New("dial tcp: connection refused")
		defer func() { ts.readiness.err = nil }()

		resp := ts.do(t, http.MethodGet, "/readiness", nil)
		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

		body := decodeJSON[v1.ErrorResponse](t, resp)
		assert.Contains(t, body.Error, "Service not ready")
	})
}

func TestVersionEndpoint(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)

	resp := ts.do(t, http.MethodGet, "/version", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	info := decodeJSON[map[string]any](t, resp)
	assert.Contains(t, info, "version")
}

func TestMetricsEndpointIsOptIn(t *testing.T) {
	t.Parallel()

	svcs := v1.Services{
		Switches:     newFakeService[fleet.SwitchConfig](),
		Machines:     &fakeMachineService{newFakeService[fleet.MachineConfig]()},
		PowerShelves: newFakeService[fleet.PowerShelfConfig](),
		DPUs:         newFakeService[fleet.DPUConfig](),
		Readiness:    &fakeReadiness{},
	}

	t.Run("absent by default", func(t *testing.T) {
		srv := httptest.NewServer(v1.NewServer(svcs))
		defer srv.Close()

		resp, err := srv.Client().Get(srv.URL + "/metrics")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("mounted when configured", func(t *testing.T) {
		scrape := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		})
		srv := httptest.NewServer(v1.NewServer(svcs, v1.WithMetricsHandler(scrape)))
		defer srv.Close()

		resp, err := srv.Client().Get(srv.URL + "/metrics")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})
}
