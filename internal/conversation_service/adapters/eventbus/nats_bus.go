package eventbus

import (
	"context"
	"log/slog"

	"github.com/nats-io/nats.go"
)

// natsClient is the part of messagebroker.NATSClient the bus uses.
type natsClient interface {
	Publish(ctx context.Context, subject string, data []byte) error
	SubscribeToSubjectWithQueue(ctx context.Context, subject, queueGroup string, handler nats.MsgHandler) error
}

// NATSBus carries engine events over NATS so the notification service can
// run as its own process.
type NATSBus struct {
	client natsClient
	logger *slog.Logger
}

// NewNATSBus creates a bus on top of an existing NATS client.
func NewNATSBus(client natsClient, logger *slog.Logger) *NATSBus {
	return &NATSBus{client: client, logger: logger.With("component", "nats_bus")}
}

// Publish sends data on subject.
func (b *NATSBus) Publish(ctx context.Context, subject string, data []byte) error {
	return b.client.Publish(ctx, subject, data)
}

// Subscribe queue-subscribes handler to subject and blocks until ctx is
// cancelled.
func (b *NATSBus) Subscribe(ctx context.Context, subject, queueGroup string, handler func(ctx context.Context, data []byte)) error {
	return b.client.SubscribeToSubjectWithQueue(ctx, subject, queueGroup, func(msg *nats.Msg) {
		b.logger.DebugContext(ctx, "Received NATS event", "subject", msg.Subject, "data_len", len(msg.Data))
		handler(ctx, msg.Data)
	})
}
