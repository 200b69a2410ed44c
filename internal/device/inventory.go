package device

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/fleetforge/fleetserver/internal/handlers"
)

// InventoryService reads DPU firmware versions from the datacenter's
// hardware inventory service.
type InventoryService struct {
	client  Client
	baseURL string
}

var _ handlers.FirmwareInventory = (*InventoryService)(nil)

// NewInventoryService creates an inventory accessor rooted at baseURL.
func NewInventoryService(client Client, baseURL string) *InventoryService {
	return &InventoryService{client: client, baseURL: baseURL}
}

type firmwareDocument struct {
	Version string `json:"version"`
}

// ReportedFirmware implements handlers.FirmwareInventory.
func (s *InventoryService) ReportedFirmware(ctx context.Context, serial string) (string, error) {
	endpoint := fmt.Sprintf("%s/v1/dpus/%s/firmware", s.baseURL, url.PathEscape(serial))
	body, err := s.client.Get(ctx, endpoint)
	if err != nil {
		return "", fmt.Errorf("failed to query inventory for dpu %s: %w", serial, err)
	}

	var doc firmwareDocument
	if err := json.Unmarshal(body, &doc); err != nil {
		return "", fmt.Errorf("failed to decode inventory document for dpu %s: %w", serial, err)
	}
	if doc.Version == "" {
		return "", fmt.Errorf("inventory returned empty firmware version for dpu %s", serial)
	}
	return doc.Version, nil
}
