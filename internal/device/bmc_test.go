package device_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetforge/fleetserver/internal/device"
	"github.com/fleetforge/fleetserver/internal/fleet"
)

// fakeHTTPClient scripts responses per URL and records posted bodies.
type fakeHTTPClient struct {
	responses map[string][]byte
	err       error

	gets  []string
	posts map[string][]byte
}

func newFakeHTTPClient() *fakeHTTPClient {
	return &fakeHTTPClient{
		responses: make(map[string][]byte),
		posts:     make(map[string][]byte),
	}
}

func (f *fakeHTTPClient) Get(_ context.Context, url string) ([]byte, error) {
	f.gets = append(f.gets, url)
	if f.err != nil {
		return nil, f.err
	}
	body, ok := f.responses[url]
	if !ok {
		return nil, device.NewHTTPError(404, url, "not found")
	}
	return body, nil
}

func (f *fakeHTTPClient) Post(_ context.Context, url string, body []byte) error {
	if f.err != nil {
		return f.err
	}
	f.posts[url] = body
	return nil
}

func TestRedfishPowerState(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		document string
		want     fleet.PowerState
		wantErr  string
	}{
		{name: "on", document: `{"PowerState":"On"}`, want: fleet.PowerOn},
		{name: "off", document: `{"PowerState":"Off"}`, want: fleet.PowerOff},
		{name: "transitional state", document: `{"PowerState":"PoweringOn"}`, wantErr: "unrecognized power state"},
		{name: "malformed document", document: `{`, wantErr: "failed to decode"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			client := newFakeHTTPClient()
			client.responses["https://10.0.0.5/redfish/v1/Systems/1"] = []byte(tt.document)

			bmc := device.NewRedfishBMC(client)
			state, err := bmc.PowerState(context.Background(), "10.0.0.5")

			if tt.wantErr != "" {
				assert.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, state)
		})
	}
}

func TestRedfishSetPower(t *testing.T) {
	t.Parallel()

	client := newFakeHTTPClient()
	bmc := device.NewRedfishBMC(client)

	require.NoError(t, bmc.SetPower(context.Background(), "10.0.0.5", fleet.PowerOn))
	assert.JSONEq(t, `{"ResetType":"On"}`,
		string(client.posts["https://10.0.0.5/redfish/v1/Systems/1/Actions/ComputerSystem.Reset"]))

	require.NoError(t, bmc.SetPower(context.Background(), "10.0.0.5", fleet.PowerOff))
	assert.JSONEq(t, `{"ResetType":"ForceOff"}`,
		string(client.posts["https://10.0.0.5/redfish/v1/Systems/1/Actions/ComputerSystem.Reset"]))
}

func TestRedfishSetPowerFailure(t *testing.T) {
	t.Parallel()

	client := newFakeHTTPClient()
	client.err = errors.New("connection refused")

	bmc := device.NewRedfishBMC(client)
	err := bmc.SetPower(context.Background(), "10.0.0.5", fleet.PowerOn)
	assert.ErrorContains(t, err, "failed to request power on from bmc 10.0.0.5")
}
