package device_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetforge/fleetserver/internal/device"
)

func TestGet(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, device.UserAgent, r.Header.Get("User-Agent"))
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}))
	defer srv.Close()

	client := device.NewDefaultClient(0)
	body, err := client.Get(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"ok"}`, string(body))
}

func TestGetNonOKStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := device.NewDefaultClient(0)
	_, err := client.Get(context.Background(), srv.URL)
	require.Error(t, err)

	var httpErr *device.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusServiceUnavailable, httpErr.StatusCode)
	assert.Equal(t, srv.URL, httpErr.URL)
}

func TestGetRejectsOversizedResponse(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(strings.Repeat("x", device.MaxResponseSize+1)))
	}))
	defer srv.Close()

	client := device.NewDefaultClient(0)
	_, err := client.Get(context.Background(), srv.URL)
	assert.ErrorContains(t, err, "exceeds maximum allowed size")
}

func TestPost(t *testing.T) {
	t.Parallel()

	var received string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		buf := make([]byte, r.ContentLength)
		_, _ = r.Body.Read(buf)
		received = string(buf)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	client := device.NewDefaultClient(0)
	err := client.Post(context.Background(), srv.URL, []byte(`{"ResetType":"On"}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"ResetType":"On"}`, received)
}

func TestPostNon2xxStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	client := device.NewDefaultClient(0)
	err := client.Post(context.Background(), srv.URL, nil)

	var httpErr *device.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusBadRequest, httpErr.StatusCode)
}
