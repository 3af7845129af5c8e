package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/MercyNyamusi/webhook/internal/conversation_service/domain"
	"github.com/google/uuid"
)

// OutboundCoordinator sends operator replies and records them in the
// session log.
type OutboundCoordinator struct {
	sessions   *SessionManager
	identity   *IdentityResolver
	provider   MessageProvider
	reconciler *StatusReconciler
	logger     *slog.Logger
	now        func() time.Time
}

// NewOutboundCoordinator creates a new OutboundCoordinator.
func NewOutboundCoordinator(
	sessions *SessionManager,
	identity *IdentityResolver,
	provider MessageProvider,
	reconciler *StatusReconciler,
	logger *slog.Logger,
	now func() time.Time,
) *OutboundCoordinator {
	return &OutboundCoordinator{
		sessions:   sessions,
		identity:   identity,
		provider:   provider,
		reconciler: reconciler,
		logger:     logger.With("component", "outbound_coordinator"),
		now:        now,
	}
}

// SendReply sends text to the session's customer. Nothing is recorded when
// the provider rejects the send; the caller gets domain.ErrSendFailed.
func (c *OutboundCoordinator) SendReply(ctx context.Context, sessionID uuid.UUID, text string) (domain.MessageRef, error) {
	if strings.TrimSpace(text) == "" {
		return domain.MessageRef{}, fmt.Errorf("%w: empty reply", domain.ErrInvalidInput)
	}

	session, err := c.sessions.Get(ctx, sessionID)
	if err != nil {
		return domain.MessageRef{}, err
	}
	customer, err := c.identity.CustomerByID(ctx, session.CustomerID)
	if err != nil {
		return domain.MessageRef{}, err
	}

	res, err := c.provider.SendText(ctx, domain.OutboundText{To: customer.ContactNumber, Body: text})
	if err != nil {
		outboundSendsCounter.WithLabelValues("send_failed").Inc()
		c.logger.WarnContext(ctx, "Provider rejected reply", "session_id", sessionID, "error", err)
		return domain.MessageRef{}, fmt.Errorf("%w: %v", domain.ErrSendFailed, err)
	}

	var msg domain.Message
	if res != nil && res.ProviderMessageID != "" {
		msg = domain.NewProviderMessage(res.ProviderMessageID, domain.SenderVendor, text, c.now())
	} else {
		msg = domain.NewLocalMessage(domain.SenderVendor, text, c.now())
		c.logger.WarnContext(ctx, "Provider returned no message id, using local id", "session_id", sessionID, "message_id", msg.ID)
	}

	ref, inserted, err := c.sessions.RecordOutboundMessage(ctx, session, msg)
	if err != nil {
		outboundSendsCounter.WithLabelValues("record_failed").Inc()
		c.logger.ErrorContext(ctx, "Reply was sent but could not be recorded",
			"error", err, "session_id", sessionID, "message_id", msg.ID)
		return domain.MessageRef{}, err
	}
	if !inserted {
		// The provider reused an id already in the log, so the append
		// bookkeeping was skipped. The vendor still replied.
		outboundSendsCounter.WithLabelValues("duplicate_id").Inc()
		c.logger.WarnContext(ctx, "Provider returned a message id already in the session",
			"session_id", sessionID, "provider_message_id", msg.ProviderMessageID)
		if _, err := c.sessions.MarkHandled(ctx, sessionID); err != nil {
			outboundSendsCounter.WithLabelValues("record_failed").Inc()
			c.logger.ErrorContext(ctx, "Failed to mark session handled after reply", "error", err, "session_id", sessionID)
			return domain.MessageRef{}, err
		}
	}
	outboundSendsCounter.WithLabelValues("sent").Inc()
	c.logger.InfoContext(ctx, "Reply sent", "session_id", sessionID, "message_id", msg.ID)

	c.reconciler.ApplyPending(ctx, msg.ProviderMessageID)
	return ref, nil
}
