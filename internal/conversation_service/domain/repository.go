package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// BusinessRepository reads businesses. Lookups return ErrNotFound on miss.
type BusinessRepository interface {
	FindByPhoneNumber(ctx context.Context, phoneNumber string) (*Business, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Business, error)
}

// CustomerRepository stores customers. Create returns ErrDuplicateEntry when
// the contact number already exists.
type CustomerRepository interface {
	FindByContactNumber(ctx context.Context, contactNumber string) (*Customer, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Customer, error)
	Create(ctx context.Context, customer *Customer) error
}

// VendorRepository stores vendors and their push device token.
type VendorRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Vendor, error)
	UpdateDeviceToken(ctx context.Context, vendorID uuid.UUID, token string, at time.Time) error
}

// SessionRepository stores session aggregates and their message logs.
type SessionRepository interface {
	FindByParticipants(ctx context.Context, businessID, customerID uuid.UUID) (*Session, error)
	// GetByID returns the session including its messages in append order.
	GetByID(ctx context.Context, id uuid.UUID) (*Session, error)
	// Create returns ErrDuplicateEntry when a session for the pair exists.
	Create(ctx context.Context, session *Session) error
	// AppendMessage atomically appends msg and applies effects. When msg has a
	// provider id already present in the session, nothing changes and the
	// existing message is returned with inserted=false.
	AppendMessage(ctx context.Context, sessionID uuid.UUID, msg Message, effects AppendEffects, at time.Time) (stored *Message, inserted bool, err error)
	MarkHandled(ctx context.Context, sessionID uuid.UUID, resetUnread bool, at time.Time) (*Session, error)
	// UpdateMessageStatus applies update to every message with that provider
	// id, only when CanTransition allows it.
	UpdateMessageStatus(ctx context.Context, update StatusUpdate) (StatusUpdateResult, error)
}

// OrderRepository stores orders.
type OrderRepository interface {
	Create(ctx context.Context, order *Order) error
	GetByID(ctx context.Context, id uuid.UUID) (*Order, error)
}
