package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/MercyNyamusi/webhook/internal/conversation_service/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// PgVendorRepository stores vendors and their device token.
type PgVendorRepository struct {
	db     DBTX
	logger *slog.Logger
}

// NewPgVendorRepository creates a new PgVendorRepository.
func NewPgVendorRepository(db DBTX, logger *slog.Logger) *PgVendorRepository {
	return &PgVendorRepository{db: db, logger: logger}
}

// GetByID fetches a vendor by id.
func (r *PgVendorRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Vendor, error) {
	query := `SELECT id, name, device_token, device_token_updated_at, created_at FROM vendors WHERE id = $1`
	var v domain.Vendor
	err := r.db.QueryRow(ctx, query, id).Scan(&v.ID, &v.Name, &v.DeviceToken, &v.DeviceTokenUpdatedAt, &v.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		r.logger.ErrorContext(ctx, "Error fetching vendor", "error", err, "vendor_id", id)
		return nil, fmt.Errorf("fetch vendor: %w", err)
	}
	return &v, nil
}

// UpdateDeviceToken overwrites the vendor's device token.
func (r *PgVendorRepository) UpdateDeviceToken(ctx context.Context, vendorID uuid.UUID, token string, at time.Time) error {
	query := `UPDATE vendors SET device_token = $2, device_token_updated_at = $3 WHERE id = $1`
	tag, err := r.db.Exec(ctx, query, vendorID, token, at)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error updating device token", "error", err, "vendor_id", vendorID)
		return fmt.Errorf("update device token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	r.logger.InfoContext(ctx, "Device token registered", "vendor_id", vendorID)
	return nil
}

var _ domain.VendorRepository = (*PgVendorRepository)(nil)
