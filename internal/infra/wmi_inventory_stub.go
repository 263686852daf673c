//go:build !windows

package infra

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/eliteGoblin/profprune/internal/domain"
)

// WMIInventory is only functional on Windows.
type WMIInventory struct {
	namespace string
	logger    *zap.Logger
}

// NewWMIInventory creates a WMI inventory that reports ErrUnsupportedPlatform.
func NewWMIInventory(namespace string, logger *zap.Logger) domain.InventorySource {
	return &WMIInventory{namespace: namespace, logger: logger}
}

func (w *WMIInventory) ListProfiles(ctx context.Context, host string) ([]domain.ProfileRecord, error) {
	return nil, fmt.Errorf("wmi inventory: %w", domain.ErrUnsupportedPlatform)
}

func (w *WMIInventory) DeleteProfile(ctx context.Context, host string, profile domain.ProfileRecord) error {
	return fmt.Errorf("wmi inventory: %w", domain.ErrUnsupportedPlatform)
}

var _ domain.InventorySource = (*WMIInventory)(nil)
