package whatsapp

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/MercyNyamusi/webhook/internal/conversation_service/domain"
)

// WebhookPayload is the top-level webhook delivery.
type WebhookPayload struct {
	Object string  `json:"object"`
	Entry  []Entry `json:"entry"`
}

// Entry represents one business account entry.
type Entry struct {
	ID      string   `json:"id"`
	Changes []Change `json:"changes"`
}

// Change wraps a single change notification.
type Change struct {
	Field string       `json:"field"`
	Value *ChangeValue `json:"value"`
}

// ChangeValue holds the message or status data.
type ChangeValue struct {
	MessagingProduct string    `json:"messaging_product"`
	Metadata         Metadata  `json:"metadata"`
	Contacts         []Contact `json:"contacts,omitempty"`
	Messages         []Message `json:"messages,omitempty"`
	Statuses         []Status  `json:"statuses,omitempty"`
}

// Metadata describes the receiving business number.
type Metadata struct {
	DisplayPhoneNumber string `json:"display_phone_number"`
	PhoneNumberID      string `json:"phone_number_id"`
}

// Contact is the customer who wrote.
type Contact struct {
	Profile ContactProfile `json:"profile"`
	WaID    string         `json:"wa_id"`
}

// ContactProfile has the display name.
type ContactProfile struct {
	Name string `json:"name"`
}

// Message is an incoming customer message.
type Message struct {
	From      string       `json:"from"`
	ID        string       `json:"id"`
	Timestamp string       `json:"timestamp"`
	Type      string       `json:"type"`
	Text      *TextContent `json:"text,omitempty"`
}

// TextContent holds a text message body.
type TextContent struct {
	Body string `json:"body"`
}

// Status is a delivery status callback.
type Status struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	Timestamp   string `json:"timestamp"`
	RecipientID string `json:"recipient_id"`
}

// ParseWebhook decodes a webhook body into one event per change. It returns
// domain.ErrMalformedEvent when the body is not JSON or lacks the
// entry/changes/value shape.
func ParseWebhook(raw []byte) ([]domain.InboundEvent, error) {
	var payload WebhookPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedEvent, err)
	}
	if len(payload.Entry) == 0 {
		return nil, fmt.Errorf("%w: no entry", domain.ErrMalformedEvent)
	}

	var events []domain.InboundEvent
	for _, entry := range payload.Entry {
		if len(entry.Changes) == 0 {
			return nil, fmt.Errorf("%w: entry %q has no changes", domain.ErrMalformedEvent, entry.ID)
		}
		for _, change := range entry.Changes {
			if change.Value == nil {
				return nil, fmt.Errorf("%w: change without value", domain.ErrMalformedEvent)
			}
			parsed, err := parseChange(change.Value)
			if err != nil {
				return nil, err
			}
			events = append(events, parsed...)
		}
	}
	return events, nil
}

// parseChange returns the message event before the status event when a
// change carries both, so statuses for messages in the same delivery find
// their target.
func parseChange(v *ChangeValue) ([]domain.InboundEvent, error) {
	var events []domain.InboundEvent
	if len(v.Contacts) > 0 && len(v.Messages) > 0 {
		evt, err := parseMessages(v)
		if err != nil {
			return nil, err
		}
		events = append(events, evt)
	}
	if len(v.Statuses) > 0 {
		events = append(events, parseStatuses(v.Statuses))
	}
	if len(events) == 0 {
		return []domain.InboundEvent{domain.UnrecognizedEvent{Reason: "no contacts or messages"}}, nil
	}
	return events, nil
}

func parseMessages(v *ChangeValue) (domain.InboundEvent, error) {
	names := make(map[string]string, len(v.Contacts))
	for _, c := range v.Contacts {
		names[c.WaID] = c.Profile.Name
	}
	fallbackName := v.Contacts[0].Profile.Name

	var msgs []domain.InboundMessage
	for _, m := range v.Messages {
		if m.ID == "" || m.From == "" {
			return nil, fmt.Errorf("%w: message without id or sender", domain.ErrMalformedEvent)
		}
		ts, err := parseUnixSeconds(m.Timestamp)
		if err != nil {
			return nil, fmt.Errorf("%w: message %s: %v", domain.ErrMalformedEvent, m.ID, err)
		}
		if (m.Type != "" && m.Type != domain.MessageTypeText) || m.Text == nil {
			continue
		}

		name, ok := names[m.From]
		if !ok {
			name = fallbackName
		}
		if strings.TrimSpace(name) == "" {
			name = domain.DefaultCustomerName
		}
		msgs = append(msgs, domain.InboundMessage{
			RecipientNumber:   v.Metadata.DisplayPhoneNumber,
			SenderContact:     m.From,
			SenderDisplayName: name,
			Text:              m.Text.Body,
			ProviderMessageID: m.ID,
			Timestamp:         ts,
		})
	}
	if len(msgs) == 0 {
		return domain.UnrecognizedEvent{Reason: "no text messages"}, nil
	}
	return domain.MessageEvent{Messages: msgs}, nil
}

func parseStatuses(statuses []Status) domain.InboundEvent {
	evt := domain.StatusEvent{}
	for _, s := range statuses {
		status, ok := domain.ParseMessageStatus(s.Status)
		if !ok || s.ID == "" {
			evt.Rejected++
			continue
		}
		ts, err := parseUnixSeconds(s.Timestamp)
		if err != nil {
			evt.Rejected++
			continue
		}
		evt.Updates = append(evt.Updates, domain.StatusUpdate{
			ProviderMessageID: s.ID,
			Status:            status,
			Timestamp:         ts,
		})
	}
	return evt
}

func parseUnixSeconds(raw string) (time.Time, error) {
	secs, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q", raw)
	}
	return time.Unix(secs, 0).UTC(), nil
}
