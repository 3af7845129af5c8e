package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/MercyNyamusi/webhook/internal/conversation_service/domain"
	"github.com/google/uuid"
)

// Dependencies are the collaborators the engine is built from.
type Dependencies struct {
	Businesses domain.BusinessRepository
	Customers  domain.CustomerRepository
	Vendors    domain.VendorRepository
	Sessions   domain.SessionRepository
	Orders     domain.OrderRepository
	Provider   MessageProvider
	Events     EventPublisher
	Logger     *slog.Logger
	Now        func() time.Time
}

// Policy holds the tunable engine behaviour.
type Policy struct {
	ResetUnreadOnHandled     bool
	PendingStatusTTL         time.Duration
	PendingStatusMaxAttempts int
	PendingStatusMaxEntries  int
}

// DefaultPolicy returns the policy used when nothing is configured.
func DefaultPolicy() Policy {
	return Policy{
		ResetUnreadOnHandled:     false,
		PendingStatusTTL:         2 * time.Minute,
		PendingStatusMaxAttempts: 5,
		PendingStatusMaxEntries:  10000,
	}
}

// Engine groups the conversation components behind one value.
type Engine struct {
	Identity   *IdentityResolver
	Sessions   *SessionManager
	Messages   *MessageLog
	Ingestion  *IngestionPipeline
	Reconciler *StatusReconciler
	Outbound   *OutboundCoordinator
	Orders     *OrderService
	Devices    *DeviceRegistry
}

// NewEngine wires the components together.
func NewEngine(deps Dependencies, policy Policy) *Engine {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	identity := NewIdentityResolver(deps.Businesses, deps.Customers, logger, now)
	messages := NewMessageLog(deps.Sessions, logger, now)
	sessions := NewSessionManager(deps.Sessions, messages, deps.Events, policy.ResetUnreadOnHandled, logger, now)

	var pending *PendingStatusBuffer
	if policy.PendingStatusMaxEntries > 0 && policy.PendingStatusTTL > 0 {
		pending = NewPendingStatusBuffer(policy.PendingStatusTTL, policy.PendingStatusMaxEntries, policy.PendingStatusMaxAttempts, now)
	}
	reconciler := NewStatusReconciler(messages, pending, logger)

	return &Engine{
		Identity:   identity,
		Sessions:   sessions,
		Messages:   messages,
		Ingestion:  NewIngestionPipeline(identity, sessions, reconciler, logger),
		Reconciler: reconciler,
		Outbound:   NewOutboundCoordinator(sessions, identity, deps.Provider, reconciler, logger, now),
		Orders:     NewOrderService(deps.Orders, identity, deps.Events, logger, now),
		Devices:    NewDeviceRegistry(deps.Vendors, logger, now),
	}
}

// AuthorizeSession checks that vendorID owns the business of the session.
func (e *Engine) AuthorizeSession(ctx context.Context, sessionID, vendorID uuid.UUID) (*domain.Session, error) {
	s, err := e.Sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	b, err := e.Identity.BusinessByID(ctx, s.BusinessID)
	if err != nil {
		return nil, err
	}
	if b.VendorID != vendorID {
		return nil, fmt.Errorf("%w: session %s", domain.ErrAccessDenied, sessionID)
	}
	return s, nil
}

// AuthorizeBusiness checks that vendorID owns businessID.
func (e *Engine) AuthorizeBusiness(ctx context.Context, businessID, vendorID uuid.UUID) error {
	b, err := e.Identity.BusinessByID(ctx, businessID)
	if err != nil {
		return err
	}
	if b.VendorID != vendorID {
		return fmt.Errorf("%w: business %s", domain.ErrAccessDenied, businessID)
	}
	return nil
}

// Ingest forwards to the ingestion pipeline.
func (e *Engine) Ingest(ctx context.Context, evt domain.InboundEvent) (IngestOutcome, error) {
	return e.Ingestion.Ingest(ctx, evt)
}

// SendReply forwards to the outbound coordinator.
func (e *Engine) SendReply(ctx context.Context, sessionID uuid.UUID, text string) (domain.MessageRef, error) {
	return e.Outbound.SendReply(ctx, sessionID, text)
}

// MarkHandled forwards to the session manager.
func (e *Engine) MarkHandled(ctx context.Context, sessionID uuid.UUID) (*domain.Session, error) {
	return e.Sessions.MarkHandled(ctx, sessionID)
}

// RegisterDeviceToken forwards to the device registry.
func (e *Engine) RegisterDeviceToken(ctx context.Context, vendorID uuid.UUID, token string) error {
	return e.Devices.RegisterDeviceToken(ctx, vendorID, token)
}

// CreateOrder forwards to the order service.
func (e *Engine) CreateOrder(ctx context.Context, req CreateOrderRequest) (uuid.UUID, error) {
	return e.Orders.CreateOrder(ctx, req)
}
