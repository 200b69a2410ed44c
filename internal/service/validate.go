package service

import (
	"errors"
	"fmt"

	"github.com/Masterminds/semver/v3"

	"github.com/fleetforge/fleetserver/internal/fleet"
)

// ValidateSwitchConfig checks a switch configuration submitted to the API.
func ValidateSwitchConfig(cfg fleet.SwitchConfig) error {
	if cfg.Name == "" {
		return errors.New("name is required")
	}
	return nil
}

// ValidateMachineConfig checks a machine configuration submitted to the
// API. A declared power state needs a BMC address to converge against.
func ValidateMachineConfig(cfg fleet.MachineConfig) error {
	if cfg.Name == "" {
		return errors.New("name is required")
	}
	switch cfg.Power {
	case "", fleet.PowerOn, fleet.PowerOff:
	default:
		return fmt.Errorf("unrecognized power state %q", string(cfg.Power))
	}
	if cfg.Power != "" && cfg.BMCAddress == "" {
		return errors.New("declared power state requires a bmc_address")
	}
	return nil
}

// ValidatePowerShelfConfig checks a power shelf configuration submitted
// to the API.
func ValidatePowerShelfConfig(cfg fleet.PowerShelfConfig) error {
	if cfg.Name == "" {
		return errors.New("name is required")
	}
	return nil
}

// ValidateDPUConfig checks a DPU configuration submitted to the API.
// The minimum firmware must be valid semver.
func ValidateDPUConfig(cfg fleet.DPUConfig) error {
	if cfg.Name == "" {
		return errors.New("name is required")
	}
	if cfg.MinimumFirmware != "" {
		if _, err := semver.NewVersion(cfg.MinimumFirmware); err != nil {
			return fmt.Errorf("minimum_firmware %q is not a valid version: %w", cfg.MinimumFirmware, err)
		}
	}
	return nil
}
