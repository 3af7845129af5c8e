package app

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/MercyNyamusi/webhook/internal/conversation_service/domain"
)

// MessageProvider sends text messages through the messaging provider.
type MessageProvider interface {
	SendText(ctx context.Context, msg domain.OutboundText) (*domain.SendResult, error)
}

// PushSender delivers a push notification to one device.
type PushSender interface {
	Send(ctx context.Context, n domain.PushNotification) error
}

// EventPublisher publishes post-commit facts.
type EventPublisher interface {
	Publish(ctx context.Context, subject string, data []byte) error
}

// EventSubscriber delivers published facts to handler until ctx is done.
type EventSubscriber interface {
	Subscribe(ctx context.Context, subject, queueGroup string, handler func(ctx context.Context, data []byte)) error
}

func publishJSON(ctx context.Context, pub EventPublisher, subject string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", subject, err)
	}
	return pub.Publish(ctx, subject, data)
}
