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

// PgOrderRepository stores orders.
type PgOrderRepository struct {
	db     DBTX
	logger *slog.Logger
}

// NewPgOrderRepository creates a new PgOrderRepository.
func NewPgOrderRepository(db DBTX, logger *slog.Logger) *PgOrderRepository {
	return &PgOrderRepository{db: db, logger: logger}
}

// Create inserts an order.
func (r *PgOrderRepository) Create(ctx context.Context, o *domain.Order) error {
	details := []byte(o.Details)
	if len(details) == 0 {
		details = []byte("{}")
	}
	query := `INSERT INTO orders (id, business_id, customer_id, details, created_at) VALUES ($1, $2, $3, $4, $5)`
	if _, err := r.db.Exec(ctx, query, o.ID, o.BusinessID, o.CustomerID, details, o.CreatedAt); err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicateEntry
		}
		r.logger.ErrorContext(ctx, "Error inserting order", "error", err, "order_id", o.ID)
		return fmt.Errorf("insert order: %w", err)
	}
	r.logger.InfoContext(ctx, "Order created", "order_id", o.ID, "business_id", o.BusinessID)
	return nil
}

// GetByID fetches an order by id.
func (r *PgOrderRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	query := `SELECT id, business_id, customer_id, details, created_at FROM orders WHERE id = $1`
	var (
		o       domain.Order
		details []byte
	)
	err := r.db.QueryRow(ctx, query, id).Scan(&o.ID, &o.BusinessID, &o.CustomerID, &details, &o.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		r.logger.ErrorContext(ctx, "Error fetching order", "error", err, "order_id", id)
		return nil, fmt.Errorf("fetch order: %w", err)
	}
	o.Details = details
	return &o, nil
}

var _ domain.OrderRepository = (*PgOrderRepository)(nil)
