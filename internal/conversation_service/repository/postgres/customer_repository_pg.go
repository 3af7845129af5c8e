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

// PgCustomerRepository stores customers.
type PgCustomerRepository struct {
	db     DBTX
	logger *slog.Logger
}

// NewPgCustomerRepository creates a new PgCustomerRepository.
func NewPgCustomerRepository(db DBTX, logger *slog.Logger) *PgCustomerRepository {
	return &PgCustomerRepository{db: db, logger: logger}
}

const selectCustomerColumns = `SELECT id, contact_number, display_name, created_at FROM customers`

// FindByContactNumber looks a customer up by exact contact number.
func (r *PgCustomerRepository) FindByContactNumber(ctx context.Context, contactNumber string) (*domain.Customer, error) {
	return r.scanOne(ctx, selectCustomerColumns+` WHERE contact_number = $1`, contactNumber)
}

// GetByID fetches a customer by id.
func (r *PgCustomerRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Customer, error) {
	return r.scanOne(ctx, selectCustomerColumns+` WHERE id = $1`, id)
}

// Create inserts a customer. A concurrent insert of the same contact number
// surfaces as domain.ErrDuplicateEntry.
func (r *PgCustomerRepository) Create(ctx context.Context, c *domain.Customer) error {
	query := `INSERT INTO customers (id, contact_number, display_name, created_at) VALUES ($1, $2, $3, $4)`
	_, err := r.db.Exec(ctx, query, c.ID, c.ContactNumber, c.DisplayName, c.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			r.logger.InfoContext(ctx, "Customer already exists", "contact_number", c.ContactNumber)
			return domain.ErrDuplicateEntry
		}
		r.logger.ErrorContext(ctx, "Error inserting customer", "error", err, "contact_number", c.ContactNumber)
		return fmt.Errorf("insert customer: %w", err)
	}
	r.logger.InfoContext(ctx, "Customer created", "customer_id", c.ID, "contact_number", c.ContactNumber)
	return nil
}

func (r *PgCustomerRepository) scanOne(ctx context.Context, query string, arg any) (*domain.Customer, error) {
	var c domain.Customer
	err := r.db.QueryRow(ctx, query, arg).Scan(&c.ID, &c.ContactNumber, &c.DisplayName, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		r.logger.ErrorContext(ctx, "Error fetching customer", "error", err, "key", arg)
		return nil, fmt.Errorf("fetch customer: %w", err)
	}
	return &c, nil
}

var _ domain.CustomerRepository = (*PgCustomerRepository)(nil)
