package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// SenderType identifies who authored a message.
type SenderType string

const (
	SenderCustomer SenderType = "customer"
	SenderVendor   SenderType = "vendor"
)

// MessageTypeText is the only message type handled.
const MessageTypeText = "text"

// MessageStatus is the delivery state reported by the provider.
type MessageStatus string

const (
	StatusSent      MessageStatus = "sent"
	StatusDelivered MessageStatus = "delivered"
	StatusRead      MessageStatus = "read"
	StatusFailed    MessageStatus = "failed"
)

// Rank orders the non-terminal statuses. Failed ranks highest and is terminal.
func (s MessageStatus) Rank() int {
	switch s {
	case StatusSent:
		return 1
	case StatusDelivered:
		return 2
	case StatusRead:
		return 3
	case StatusFailed:
		return 4
	default:
		return 0
	}
}

// Valid reports whether s is one of the known statuses.
func (s MessageStatus) Valid() bool {
	return s.Rank() > 0
}

func (s MessageStatus) String() string {
	return string(s)
}

// ParseMessageStatus maps a provider status string. ok is false for statuses
// the engine does not track (e.g. "deleted", "warning").
func ParseMessageStatus(raw string) (MessageStatus, bool) {
	s := MessageStatus(strings.ToLower(strings.TrimSpace(raw)))
	return s, s.Valid()
}

// CanTransition reports whether a message in status from may move to status to.
// Statuses only move forward along sent, delivered, read. Failed can be
// reached from any state and is never left.
func CanTransition(from, to MessageStatus) bool {
	if !to.Valid() || from == StatusFailed {
		return false
	}
	if to == StatusFailed {
		return true
	}
	return to.Rank() > from.Rank()
}

// LocalMessageIDPrefix tags identifiers minted by the engine rather than the provider.
const LocalMessageIDPrefix = "local:"

// NewLocalMessageID mints an identifier that can never equal a provider id.
func NewLocalMessageID() string {
	return LocalMessageIDPrefix + uuid.NewString()
}

// IsLocalMessageID reports whether id was minted by NewLocalMessageID.
func IsLocalMessageID(id string) bool {
	return strings.HasPrefix(id, LocalMessageIDPrefix)
}

// Message is one entry in a session's log.
type Message struct {
	ID string `json:"id"`
	// ProviderMessageID is empty for locally minted ids. It is the only key
	// used for dedup and status lookups.
	ProviderMessageID string        `json:"provider_message_id,omitempty"`
	SenderType        SenderType    `json:"sender_type"`
	Text              string        `json:"text"`
	MessageType       string        `json:"message_type"`
	Timestamp         time.Time     `json:"timestamp"`
	Status            MessageStatus `json:"status"`
}

// NewProviderMessage builds a message identified by a provider-assigned id.
func NewProviderMessage(providerID string, sender SenderType, text string, ts time.Time) Message {
	return Message{
		ID:                providerID,
		ProviderMessageID: providerID,
		SenderType:        sender,
		Text:              text,
		MessageType:       MessageTypeText,
		Timestamp:         ts,
		Status:            StatusSent,
	}
}

// NewLocalMessage builds a message for which the provider returned no id.
func NewLocalMessage(sender SenderType, text string, ts time.Time) Message {
	return Message{
		ID:          NewLocalMessageID(),
		SenderType:  sender,
		Text:        text,
		MessageType: MessageTypeText,
		Timestamp:   ts,
		Status:      StatusSent,
	}
}

// MessageRef points at a message inside a session.
type MessageRef struct {
	SessionID uuid.UUID     `json:"session_id"`
	MessageID string        `json:"message_id"`
	Status    MessageStatus `json:"status"`
}

// StatusUpdate is one delivery-status callback entry.
type StatusUpdate struct {
	ProviderMessageID string
	Status            MessageStatus
	Timestamp         time.Time
}

// StatusUpdateResult classifies the outcome of applying a StatusUpdate.
type StatusUpdateResult int

const (
	StatusUpdateApplied StatusUpdateResult = iota
	StatusUpdateStale
	StatusUpdateTargetMissing
)

func (r StatusUpdateResult) String() string {
	switch r {
	case StatusUpdateApplied:
		return "applied"
	case StatusUpdateStale:
		return "stale"
	case StatusUpdateTargetMissing:
		return "target_missing"
	default:
		return "unknown"
	}
}
