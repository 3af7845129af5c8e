package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/MercyNyamusi/webhook/internal/conversation_service/domain"
	"github.com/google/uuid"
)

// MessageLog is the append-only log of each session. It owns dedup by
// provider id and the forward-only status machine.
type MessageLog struct {
	sessions domain.SessionRepository
	logger   *slog.Logger
	now      func() time.Time
}

// NewMessageLog creates a new MessageLog.
func NewMessageLog(sessions domain.SessionRepository, logger *slog.Logger, now func() time.Time) *MessageLog {
	return &MessageLog{
		sessions: sessions,
		logger:   logger.With("component", "message_log"),
		now:      now,
	}
}

// Append adds msg to the session log together with effects. When the
// provider id is already present the stored message is returned with
// inserted=false and effects are not applied.
func (l *MessageLog) Append(ctx context.Context, sessionID uuid.UUID, msg domain.Message, effects domain.AppendEffects) (*domain.Message, bool, error) {
	if msg.ID == "" {
		return nil, false, fmt.Errorf("%w: message without id", domain.ErrInvalidInput)
	}
	stored, inserted, err := l.sessions.AppendMessage(ctx, sessionID, msg, effects, l.now())
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, false, fmt.Errorf("%w: %s", domain.ErrSessionNotFound, sessionID)
		}
		return nil, false, fmt.Errorf("append message: %w", err)
	}
	if !inserted {
		l.logger.InfoContext(ctx, "Duplicate message ignored", "session_id", sessionID, "provider_message_id", msg.ProviderMessageID)
	}
	return stored, inserted, nil
}

// ApplyStatus applies one status callback and reports what happened.
func (l *MessageLog) ApplyStatus(ctx context.Context, u domain.StatusUpdate) (domain.StatusUpdateResult, error) {
	if u.ProviderMessageID == "" || !u.Status.Valid() {
		return domain.StatusUpdateTargetMissing, fmt.Errorf("%w: status update %q for %q", domain.ErrInvalidInput, u.Status, u.ProviderMessageID)
	}
	res, err := l.sessions.UpdateMessageStatus(ctx, u)
	if err != nil {
		return res, fmt.Errorf("update status: %w", err)
	}
	switch res {
	case domain.StatusUpdateStale:
		l.logger.InfoContext(ctx, "Ignoring stale status update", "provider_message_id", u.ProviderMessageID, "status", u.Status)
	case domain.StatusUpdateTargetMissing:
		l.logger.DebugContext(ctx, "Status update for unknown message", "provider_message_id", u.ProviderMessageID, "status", u.Status)
	}
	return res, nil
}

// UpdateStatus reports whether the status was applied. Unknown ids and
// stale transitions return false without an error.
func (l *MessageLog) UpdateStatus(ctx context.Context, providerMessageID string, status domain.MessageStatus, ts time.Time) (bool, error) {
	res, err := l.ApplyStatus(ctx, domain.StatusUpdate{ProviderMessageID: providerMessageID, Status: status, Timestamp: ts})
	if err != nil {
		return false, err
	}
	return res == domain.StatusUpdateApplied, nil
}
