package domain

import (
	"time"

	"github.com/google/uuid"
)

// InboundEvent is the parsed form of a provider webhook change. It is one of
// MessageEvent, StatusEvent or UnrecognizedEvent.
type InboundEvent interface {
	eventKind() string
}

// InboundMessage is a single customer text message.
type InboundMessage struct {
	RecipientNumber   string
	SenderContact     string
	SenderDisplayName string
	Text              string
	ProviderMessageID string
	Timestamp         time.Time
}

// MessageEvent carries one or more customer messages from one change.
type MessageEvent struct {
	Messages []InboundMessage
}

// StatusEvent carries delivery status callbacks. Rejected counts entries that
// were dropped at parse time (unknown status, missing id, bad timestamp).
type StatusEvent struct {
	Updates  []StatusUpdate
	Rejected int
}

// UnrecognizedEvent is a well-formed webhook that carries nothing to ingest.
type UnrecognizedEvent struct {
	Reason string
}

func (MessageEvent) eventKind() string      { return "message" }
func (StatusEvent) eventKind() string       { return "status" }
func (UnrecognizedEvent) eventKind() string { return "unrecognized" }

// EventKind returns a label for metrics and logs.
func EventKind(e InboundEvent) string {
	if e == nil {
		return "nil"
	}
	return e.eventKind()
}

// Subjects published on the event bus.
const (
	SubjectMessageCommitted = "conversation.message.committed"
	SubjectOrderCreated     = "conversation.order.created"
)

// MessageCommittedEvent is emitted once a newly appended message is durable.
type MessageCommittedEvent struct {
	SessionID            uuid.UUID  `json:"session_id"`
	BusinessID           uuid.UUID  `json:"business_id"`
	CustomerID           uuid.UUID  `json:"customer_id"`
	CustomerName         string     `json:"customer_name"`
	MessageID            string     `json:"message_id"`
	ProviderMessageID    string     `json:"provider_message_id,omitempty"`
	SenderType           SenderType `json:"sender_type"`
	Text                 string     `json:"text"`
	Timestamp            time.Time  `json:"timestamp"`
	NotificationsEnabled bool       `json:"notifications_enabled"`
}

// OrderCreatedEvent is emitted after an order is stored.
type OrderCreatedEvent struct {
	OrderID         uuid.UUID `json:"order_id"`
	BusinessID      uuid.UUID `json:"business_id"`
	VendorID        uuid.UUID `json:"vendor_id"`
	CustomerName    string    `json:"customer_name"`
	CustomerContact string    `json:"customer_contact"`
	CreatedAt       time.Time `json:"created_at"`
}
