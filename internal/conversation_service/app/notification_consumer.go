package app

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/MercyNyamusi/webhook/internal/conversation_service/domain"
	"golang.org/x/sync/errgroup"
)

// NotificationQueueGroup load-balances events across dispatcher instances.
const NotificationQueueGroup = "notification_dispatchers"

// NotificationConsumer feeds committed-message and order events from the
// event bus into the dispatcher.
type NotificationConsumer struct {
	subscriber EventSubscriber
	dispatcher *NotificationDispatcher
	logger     *slog.Logger
}

// NewNotificationConsumer creates a new NotificationConsumer.
func NewNotificationConsumer(subscriber EventSubscriber, dispatcher *NotificationDispatcher, logger *slog.Logger) *NotificationConsumer {
	return &NotificationConsumer{
		subscriber: subscriber,
		dispatcher: dispatcher,
		logger:     logger.With("component", "notification_consumer"),
	}
}

// StartConsuming blocks until ctx is cancelled or a subscription fails.
func (c *NotificationConsumer) StartConsuming(ctx context.Context, queueGroup string) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return c.subscriber.Subscribe(gctx, domain.SubjectMessageCommitted, queueGroup, func(ctx context.Context, data []byte) {
			var evt domain.MessageCommittedEvent
			if err := json.Unmarshal(data, &evt); err != nil {
				c.logger.ErrorContext(ctx, "Failed to decode committed message event", "error", err, "data_len", len(data))
				return
			}
			c.dispatcher.HandleMessageCommitted(ctx, evt)
		})
	})

	g.Go(func() error {
		return c.subscriber.Subscribe(gctx, domain.SubjectOrderCreated, queueGroup, func(ctx context.Context, data []byte) {
			var evt domain.OrderCreatedEvent
			if err := json.Unmarshal(data, &evt); err != nil {
				c.logger.ErrorContext(ctx, "Failed to decode order created event", "error", err, "data_len", len(data))
				return
			}
			c.dispatcher.HandleOrderCreated(ctx, evt)
		})
	})

	c.logger.InfoContext(ctx, "Notification consumer started", "queue_group", queueGroup)
	err := g.Wait()
	c.logger.InfoContext(ctx, "Notification consumer stopped")
	return err
}
