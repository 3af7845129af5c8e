package push

import (
	"context"
	"log/slog"

	"github.com/MercyNyamusi/webhook/internal/conversation_service/domain"
)

// LogSender writes notifications to the log instead of delivering them.
// It is used when no FCM credentials are configured.
type LogSender struct {
	logger *slog.Logger
}

// NewLogSender creates a new LogSender.
func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{logger: logger.With("component", "log_push_sender")}
}

// Send logs n and always succeeds.
func (s *LogSender) Send(ctx context.Context, n domain.PushNotification) error {
	s.logger.InfoContext(ctx, "Push notification (not delivered)",
		"title", n.Title,
		"body", n.Body,
		"type", n.Data["type"],
	)
	return nil
}
