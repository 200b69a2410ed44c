package service_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fleetforge/fleetserver/internal/fleet"
	"github.com/fleetforge/fleetserver/internal/service"
)

func TestValidateSwitchConfig(t *testing.T) {
	t.Parallel()

	assert.NoError(t, service.ValidateSwitchConfig(fleet.SwitchConfig{Name: "tor-1"}))
	assert.Error(t, service.ValidateSwitchConfig(fleet.SwitchConfig{Location: "rack-7"}))
}

func TestValidateMachineConfig(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		cfg     fleet.MachineConfig
		wantErr string
	}{
		{
			name: "minimal config",
			cfg:  fleet.MachineConfig{Name: "node-1"},
		},
		{
			name: "declared power with bmc",
			cfg:  fleet.MachineConfig{Name: "node-1", BMCAddress: "10.0.0.5", Power: fleet.PowerOn},
		},
		{
			name:    "missing name",
			cfg:     fleet.MachineConfig{BMCAddress: "10.0.0.5"},
			wantErr: "name is required",
		},
		{
			name:    "unknown power state",
			cfg:     fleet.MachineConfig{Name: "node-1", BMCAddress: "10.0.0.5", Power: "standby"},
			wantErr: "unrecognized power state",
		},
		{
			name:    "declared power without bmc",
			cfg:     fleet.MachineConfig{Name: "node-1", Power: fleet.PowerOff},
			wantErr: "requires a bmc_address",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := service.ValidateMachineConfig(tt.cfg)
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				assert.ErrorContains(t, err, tt.wantErr)
			}
		})
	}
}

func TestValidateDPUConfig(t *testing.T) {
	t.Parallel()

	assert.NoError(t, service.ValidateDPUConfig(fleet.DPUConfig{Name: "dpu-1"}))
	assert.NoError(t, service.ValidateDPUConfig(fleet.DPUConfig{Name: "dpu-1", MinimumFirmware: "1.4.0"}))
	assert.ErrorContains(t,
		service.ValidateDPUConfig(fleet.DPUConfig{Name: "dpu-1", MinimumFirmware: "latest"}),
		"not a valid version")
	assert.ErrorContains(t, service.ValidateDPUConfig(fleet.DPUConfig{}), "name is required")
}
