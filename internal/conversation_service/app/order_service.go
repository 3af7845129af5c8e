package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/MercyNyamusi/webhook/internal/conversation_service/domain"
	"github.com/google/uuid"
)

// CreateOrderRequest is the payload of CreateOrder.
type CreateOrderRequest struct {
	BusinessID uuid.UUID
	CustomerID uuid.UUID
	Details    json.RawMessage
}

// OrderService records orders and announces them to the vendor.
type OrderService struct {
	orders   domain.OrderRepository
	identity *IdentityResolver
	events   EventPublisher
	logger   *slog.Logger
	now      func() time.Time
}

// NewOrderService creates a new OrderService.
func NewOrderService(orders domain.OrderRepository, identity *IdentityResolver, events EventPublisher, logger *slog.Logger, now func() time.Time) *OrderService {
	return &OrderService{
		orders:   orders,
		identity: identity,
		events:   events,
		logger:   logger.With("component", "order_service"),
		now:      now,
	}
}

// CreateOrder stores the order and publishes OrderCreatedEvent, which
// triggers the new-order notification.
func (s *OrderService) CreateOrder(ctx context.Context, req CreateOrderRequest) (uuid.UUID, error) {
	business, err := s.identity.BusinessByID(ctx, req.BusinessID)
	if err != nil {
		return uuid.Nil, err
	}
	customer, err := s.identity.CustomerByID(ctx, req.CustomerID)
	if err != nil {
		return uuid.Nil, err
	}

	order := &domain.Order{
		ID:         uuid.New(),
		BusinessID: business.ID,
		CustomerID: customer.ID,
		Details:    req.Details,
		CreatedAt:  s.now(),
	}
	if err := s.orders.Create(ctx, order); err != nil {
		return uuid.Nil, fmt.Errorf("create order: %w", err)
	}
	s.logger.InfoContext(ctx, "Order created", "order_id", order.ID, "business_id", business.ID, "customer_id", customer.ID)

	evt := domain.OrderCreatedEvent{
		OrderID:         order.ID,
		BusinessID:      business.ID,
		VendorID:        business.VendorID,
		CustomerName:    customer.DisplayName,
		CustomerContact: customer.ContactNumber,
		CreatedAt:       order.CreatedAt,
	}
	if s.events != nil {
		if err := publishJSON(ctx, s.events, domain.SubjectOrderCreated, evt); err != nil {
			eventPublishErrorsCounter.WithLabelValues(domain.SubjectOrderCreated).Inc()
			s.logger.ErrorContext(ctx, "Failed to publish order created", "error", err, "order_id", order.ID)
		}
	}
	return order.ID, nil
}
