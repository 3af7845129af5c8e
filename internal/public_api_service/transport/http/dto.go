package http

import (
	"encoding/json"
	"time"

	"github.com/MercyNyamusi/webhook/internal/conversation_service/domain"
)

// SendReplyRequest is the body of POST /api/v1/sessions/{sessionID}/messages.
type SendReplyRequest struct {
	Text string `json:"text" validate:"required,max=4096"`
}

// DeviceTokenRequest is the body of PUT /api/v1/vendor/device-token.
type DeviceTokenRequest struct {
	Token string `json:"token" validate:"required,max=4096"`
}

// CreateOrderRequest is the body of POST /api/v1/orders.
type CreateOrderRequest struct {
	BusinessID string          `json:"business_id" validate:"required,uuid"`
	CustomerID string          `json:"customer_id" validate:"required,uuid"`
	Details    json.RawMessage `json:"details,omitempty"`
}

// CreateOrderResponse is returned after an order is created.
type CreateOrderResponse struct {
	OrderID string `json:"order_id"`
}

// MessageResponse is one entry of a session's message log.
type MessageResponse struct {
	ID                string    `json:"id"`
	ProviderMessageID string    `json:"provider_message_id,omitempty"`
	SenderType        string    `json:"sender_type"`
	Text              string    `json:"text"`
	MessageType       string    `json:"message_type"`
	Timestamp         time.Time `json:"timestamp"`
	Status            string    `json:"status"`
}

// SessionResponse describes a session, with messages when requested.
type SessionResponse struct {
	ID                   string            `json:"id"`
	BusinessID           string            `json:"business_id"`
	CustomerID           string            `json:"customer_id"`
	CustomerName         string            `json:"customer_name"`
	HandledByVendor      bool              `json:"handled_by_vendor"`
	NotificationsEnabled bool              `json:"notifications_enabled"`
	BotEnabled           bool              `json:"bot_enabled"`
	UnreadCount          int               `json:"unread_count"`
	LastMessageText      string            `json:"last_message_text"`
	LastMessageTime      *time.Time        `json:"last_message_time,omitempty"`
	CreatedAt            time.Time         `json:"created_at"`
	UpdatedAt            time.Time         `json:"updated_at"`
	Messages             []MessageResponse `json:"messages,omitempty"`
}

// MessageRefResponse points at a stored message.
type MessageRefResponse struct {
	SessionID string `json:"session_id"`
	MessageID string `json:"message_id"`
	Status    string `json:"status"`
}

// GenericErrorResponse for API errors
type GenericErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func toSessionResponse(s *domain.Session, withMessages bool) SessionResponse {
	resp := SessionResponse{
		ID:                   s.ID.String(),
		BusinessID:           s.BusinessID.String(),
		CustomerID:           s.CustomerID.String(),
		CustomerName:         s.CustomerName,
		HandledByVendor:      s.HandledByVendor,
		NotificationsEnabled: s.NotificationsEnabled,
		BotEnabled:           s.BotEnabled,
		UnreadCount:          s.UnreadCount,
		LastMessageText:      s.LastMessageText,
		LastMessageTime:      s.LastMessageTime,
		CreatedAt:            s.CreatedAt,
		UpdatedAt:            s.UpdatedAt,
	}
	if withMessages {
		resp.Messages = make([]MessageResponse, 0, len(s.Messages))
		for _, m := range s.Messages {
			resp.Messages = append(resp.Messages, MessageResponse{
				ID:                m.ID,
				ProviderMessageID: m.ProviderMessageID,
				SenderType:        string(m.SenderType),
				Text:              m.Text,
				MessageType:       m.MessageType,
				Timestamp:         m.Timestamp,
				Status:            string(m.Status),
			})
		}
	}
	return resp
}

func toMessageRefResponse(ref domain.MessageRef) MessageRefResponse {
	return MessageRefResponse{
		SessionID: ref.SessionID.String(),
		MessageID: ref.MessageID,
		Status:    string(ref.Status),
	}
}
