package domain

import (
	"time"

	"github.com/google/uuid"
)

// Session is the conversation between one business and one customer.
// Exactly one exists per (BusinessID, CustomerID).
type Session struct {
	ID                   uuid.UUID  `json:"id"`
	BusinessID           uuid.UUID  `json:"business_id"`
	CustomerID           uuid.UUID  `json:"customer_id"`
	CustomerName         string     `json:"customer_name"` // captured at creation, not refreshed
	HandledByVendor      bool       `json:"handled_by_vendor"`
	NotificationsEnabled bool       `json:"notifications_enabled"`
	BotEnabled           bool       `json:"bot_enabled"`
	UnreadCount          int        `json:"unread_count"`
	LastMessageText      string     `json:"last_message_text"`
	LastMessageTime      *time.Time `json:"last_message_time,omitempty"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
	Messages             []Message  `json:"messages,omitempty"`
}

// NewSession returns an empty session shell.
func NewSession(businessID, customerID uuid.UUID, customerName string, now time.Time) *Session {
	return &Session{
		ID:                   uuid.New(),
		BusinessID:           businessID,
		CustomerID:           customerID,
		CustomerName:         customerName,
		NotificationsEnabled: true,
		BotEnabled:           true,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
}

// AppendEffects is the session bookkeeping applied together with a newly
// appended message. None of it is applied when the append is a replay.
type AppendEffects struct {
	IncrementUnread bool
	EnableBot       bool
	MarkHandled     bool
	ResetUnread     bool
}

// InboundEffects is the bookkeeping for a customer message.
func InboundEffects() AppendEffects {
	return AppendEffects{IncrementUnread: true, EnableBot: true}
}

// OutboundEffects is the bookkeeping for a vendor reply.
func OutboundEffects(resetUnread bool) AppendEffects {
	return AppendEffects{MarkHandled: true, ResetUnread: resetUnread}
}

// Apply mutates s as if msg had just been appended with effects e.
// Stores that keep sessions in memory use it; the Postgres store expresses
// the same rules in SQL.
func (e AppendEffects) Apply(s *Session, msg Message, now time.Time) {
	s.Messages = append(s.Messages, msg)
	s.LastMessageText = msg.Text
	ts := msg.Timestamp
	s.LastMessageTime = &ts
	if e.IncrementUnread {
		s.UnreadCount++
	}
	if e.EnableBot {
		s.BotEnabled = true
	}
	if e.MarkHandled {
		s.HandledByVendor = true
	}
	if e.ResetUnread {
		s.UnreadCount = 0
	}
	s.UpdatedAt = now
}

// FindByProviderID returns the message carrying providerID, if any.
func (s *Session) FindByProviderID(providerID string) (*Message, bool) {
	if providerID == "" {
		return nil, false
	}
	for i := range s.Messages {
		if s.Messages[i].ProviderMessageID == providerID {
			return &s.Messages[i], true
		}
	}
	return nil, false
}
