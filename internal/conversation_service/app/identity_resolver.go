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

// IdentityResolver maps webhook numbers to businesses and customers.
type IdentityResolver struct {
	businesses domain.BusinessRepository
	customers  domain.CustomerRepository
	logger     *slog.Logger
	now        func() time.Time
}

// NewIdentityResolver creates a new IdentityResolver.
func NewIdentityResolver(businesses domain.BusinessRepository, customers domain.CustomerRepository, logger *slog.Logger, now func() time.Time) *IdentityResolver {
	return &IdentityResolver{
		businesses: businesses,
		customers:  customers,
		logger:     logger.With("component", "identity_resolver"),
		now:        now,
	}
}

// ResolveBusiness finds the business registered for recipientNumber. The
// match is exact.
func (r *IdentityResolver) ResolveBusiness(ctx context.Context, recipientNumber string) (*domain.Business, error) {
	b, err := r.businesses.FindByPhoneNumber(ctx, recipientNumber)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			r.logger.WarnContext(ctx, "No business for recipient number", "recipient_number", recipientNumber)
			return nil, fmt.Errorf("%w: %s", domain.ErrBusinessNotFound, recipientNumber)
		}
		return nil, fmt.Errorf("resolve business: %w", err)
	}
	return b, nil
}

// ResolveOrCreateCustomer returns the customer for contactNumber, creating
// it on first contact. A concurrent first contact loses the insert race and
// re-fetches the winner's record.
func (r *IdentityResolver) ResolveOrCreateCustomer(ctx context.Context, contactNumber, displayName string) (*domain.Customer, error) {
	c, err := r.customers.FindByContactNumber(ctx, contactNumber)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("%w: %v", domain.ErrCustomerLookupFailed, err)
	}

	if strings.TrimSpace(displayName) == "" {
		displayName = domain.DefaultCustomerName
	}
	c = &domain.Customer{
		ID:            uuid.New(),
		ContactNumber: contactNumber,
		DisplayName:   displayName,
		CreatedAt:     r.now(),
	}

	err = r.customers.Create(ctx, c)
	switch {
	case err == nil:
		r.logger.InfoContext(ctx, "Customer created on first contact", "customer_id", c.ID, "contact_number", contactNumber)
		return c, nil
	case errors.Is(err, domain.ErrDuplicateEntry):
		existing, fetchErr := r.customers.FindByContactNumber(ctx, contactNumber)
		if fetchErr != nil {
			r.logger.ErrorContext(ctx, "Customer vanished after duplicate insert", "contact_number", contactNumber, "error", fetchErr)
			return nil, fmt.Errorf("%w: %v", domain.ErrCustomerLookupFailed, fetchErr)
		}
		return existing, nil
	default:
		return nil, fmt.Errorf("%w: %v", domain.ErrCustomerLookupFailed, err)
	}
}

// BusinessByID fetches a business by id.
func (r *IdentityResolver) BusinessByID(ctx context.Context, id uuid.UUID) (*domain.Business, error) {
	b, err := r.businesses.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", domain.ErrBusinessNotFound, id)
		}
		return nil, fmt.Errorf("fetch business: %w", err)
	}
	return b, nil
}

// CustomerByID fetches a customer by id.
func (r *IdentityResolver) CustomerByID(ctx context.Context, id uuid.UUID) (*domain.Customer, error) {
	c, err := r.customers.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrCustomerLookupFailed, err)
	}
	return c, nil
}
