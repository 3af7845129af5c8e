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

// SessionManager owns session lifecycle and is the single writer of each
// session. Mutations of one session run under its keyed lock; the committed
// fact is published after the lock is released.
type SessionManager struct {
	sessions             domain.SessionRepository
	log                  *MessageLog
	events               EventPublisher
	locks                *keyedMutex
	resetUnreadOnHandled bool
	logger               *slog.Logger
	now                  func() time.Time
}

// NewSessionManager creates a new SessionManager.
func NewSessionManager(
	sessions domain.SessionRepository,
	log *MessageLog,
	events EventPublisher,
	resetUnreadOnHandled bool,
	logger *slog.Logger,
	now func() time.Time,
) *SessionManager {
	return &SessionManager{
		sessions:             sessions,
		log:                  log,
		events:               events,
		locks:                newKeyedMutex(),
		resetUnreadOnHandled: resetUnreadOnHandled,
		logger:               logger.With("component", "session_manager"),
		now:                  now,
	}
}

func pairLockKey(businessID, customerID uuid.UUID) string {
	return "pair:" + businessID.String() + ":" + customerID.String()
}

func sessionLockKey(id uuid.UUID) string {
	return "session:" + id.String()
}

// FindOrCreateSession returns the session for the pair, creating an empty
// shell when none exists.
func (m *SessionManager) FindOrCreateSession(ctx context.Context, businessID, customerID uuid.UUID, customerName string) (*domain.Session, error) {
	unlock := m.locks.Lock(pairLockKey(businessID, customerID))
	defer unlock()

	s, err := m.sessions.FindByParticipants(ctx, businessID, customerID)
	if err == nil {
		return s, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("find session: %w", err)
	}

	s = domain.NewSession(businessID, customerID, customerName, m.now())
	err = m.sessions.Create(ctx, s)
	if errors.Is(err, domain.ErrDuplicateEntry) {
		// Another gateway instance created it first.
		existing, findErr := m.sessions.FindByParticipants(ctx, businessID, customerID)
		if findErr != nil {
			return nil, fmt.Errorf("find session after duplicate create: %w", findErr)
		}
		return existing, nil
	}
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	m.logger.InfoContext(ctx, "Session created", "session_id", s.ID, "business_id", businessID, "customer_id", customerID)
	return s, nil
}

// ApplyInboundMessage appends a customer message and applies the inbound
// bookkeeping (unread +1, last message, bot enabled). Replays change nothing
// and publish nothing.
func (m *SessionManager) ApplyInboundMessage(ctx context.Context, session *domain.Session, msg domain.Message) (domain.MessageRef, bool, error) {
	return m.appendLocked(ctx, session, msg, domain.InboundEffects())
}

// RecordOutboundMessage appends a vendor message, updates last message and
// marks the session handled in one atomic step.
func (m *SessionManager) RecordOutboundMessage(ctx context.Context, session *domain.Session, msg domain.Message) (domain.MessageRef, bool, error) {
	return m.appendLocked(ctx, session, msg, domain.OutboundEffects(m.resetUnreadOnHandled))
}

func (m *SessionManager) appendLocked(ctx context.Context, session *domain.Session, msg domain.Message, effects domain.AppendEffects) (domain.MessageRef, bool, error) {
	unlock := m.locks.Lock(sessionLockKey(session.ID))
	stored, inserted, err := m.log.Append(ctx, session.ID, msg, effects)
	unlock()
	if err != nil {
		return domain.MessageRef{}, false, err
	}

	ref := domain.MessageRef{SessionID: session.ID, MessageID: stored.ID, Status: stored.Status}
	if inserted {
		m.publishCommitted(ctx, session, stored)
	}
	return ref, inserted, nil
}

// MarkHandled flags the session as handled by the vendor. Unread is reset
// only when the reset policy is enabled.
func (m *SessionManager) MarkHandled(ctx context.Context, sessionID uuid.UUID) (*domain.Session, error) {
	unlock := m.locks.Lock(sessionLockKey(sessionID))
	defer unlock()

	s, err := m.sessions.MarkHandled(ctx, sessionID, m.resetUnreadOnHandled, m.now())
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", domain.ErrSessionNotFound, sessionID)
		}
		return nil, fmt.Errorf("mark handled: %w", err)
	}
	return s, nil
}

// Get returns the session with its messages.
func (m *SessionManager) Get(ctx context.Context, sessionID uuid.UUID) (*domain.Session, error) {
	s, err := m.sessions.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", domain.ErrSessionNotFound, sessionID)
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	return s, nil
}

func (m *SessionManager) publishCommitted(ctx context.Context, session *domain.Session, msg *domain.Message) {
	if m.events == nil {
		return
	}
	evt := domain.MessageCommittedEvent{
		SessionID:            session.ID,
		BusinessID:           session.BusinessID,
		CustomerID:           session.CustomerID,
		CustomerName:         session.CustomerName,
		MessageID:            msg.ID,
		ProviderMessageID:    msg.ProviderMessageID,
		SenderType:           msg.SenderType,
		Text:                 msg.Text,
		Timestamp:            msg.Timestamp,
		NotificationsEnabled: session.NotificationsEnabled,
	}
	if err := publishJSON(ctx, m.events, domain.SubjectMessageCommitted, evt); err != nil {
		eventPublishErrorsCounter.WithLabelValues(domain.SubjectMessageCommitted).Inc()
		m.logger.ErrorContext(ctx, "Failed to publish committed message", "error", err, "session_id", session.ID, "message_id", msg.ID)
	}
}
