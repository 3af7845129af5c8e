package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/MercyNyamusi/webhook/internal/conversation_service/domain"
	"github.com/google/uuid"
)

// DeviceRegistry records vendor push device tokens.
type DeviceRegistry struct {
	vendors domain.VendorRepository
	logger  *slog.Logger
	now     func() time.Time
}

// NewDeviceRegistry creates a new DeviceRegistry.
func NewDeviceRegistry(vendors domain.VendorRepository, logger *slog.Logger, now func() time.Time) *DeviceRegistry {
	return &DeviceRegistry{vendors: vendors, logger: logger.With("component", "device_registry"), now: now}
}

// RegisterDeviceToken replaces the vendor's token. Last write wins.
func (r *DeviceRegistry) RegisterDeviceToken(ctx context.Context, vendorID uuid.UUID, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return fmt.Errorf("%w: empty device token", domain.ErrInvalidInput)
	}
	if err := r.vendors.UpdateDeviceToken(ctx, vendorID, token, r.now()); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("%w: %s", domain.ErrVendorNotFound, vendorID)
		}
		return fmt.Errorf("register device token: %w", err)
	}
	r.logger.InfoContext(ctx, "Device token registered", "vendor_id", vendorID)
	return nil
}
