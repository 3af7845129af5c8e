package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/MercyNyamusi/webhook/internal/conversation_service/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// PgBusinessRepository reads the businesses table.
type PgBusinessRepository struct {
	db     DBTX
	logger *slog.Logger
}

// NewPgBusinessRepository creates a new PgBusinessRepository.
func NewPgBusinessRepository(db DBTX, logger *slog.Logger) *PgBusinessRepository {
	return &PgBusinessRepository{db: db, logger: logger}
}

const selectBusinessColumns = `SELECT id, name, phone_number, vendor_id, created_at FROM businesses`

// FindByPhoneNumber looks a business up by its provider-facing number.
func (r *PgBusinessRepository) FindByPhoneNumber(ctx context.Context, phoneNumber string) (*domain.Business, error) {
	return r.scanOne(ctx, selectBusinessColumns+` WHERE phone_number = $1`, phoneNumber)
}

// GetByID fetches a business by id.
func (r *PgBusinessRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Business, error) {
	return r.scanOne(ctx, selectBusinessColumns+` WHERE id = $1`, id)
}

func (r *PgBusinessRepository) scanOne(ctx context.Context, query string, arg any) (*domain.Business, error) {
	var b domain.Business
	err := r.db.QueryRow(ctx, query, arg).Scan(&b.ID, &b.Name, &b.PhoneNumber, &b.VendorID, &b.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		r.logger.ErrorContext(ctx, "Error fetching business", "error", err, "key", arg)
		return nil, fmt.Errorf("fetch business: %w", err)
	}
	return &b, nil
}

var _ domain.BusinessRepository = (*PgBusinessRepository)(nil)
