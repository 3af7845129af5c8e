package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/MercyNyamusi/webhook/internal/conversation_service/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// PgSessionRepository stores sessions in chat_sessions and their message
// logs in chat_messages. Appends lock the session row, so all mutations of
// one session are serialized across gateway instances.
type PgSessionRepository struct {
	db     DBTX
	logger *slog.Logger
}

// NewPgSessionRepository creates a new PgSessionRepository.
func NewPgSessionRepository(db DBTX, logger *slog.Logger) *PgSessionRepository {
	return &PgSessionRepository{db: db, logger: logger}
}

const selectSessionColumns = `SELECT id, business_id, customer_id, customer_name, handled_by_vendor, notifications_enabled, bot_enabled, unread_count, last_message_text, last_message_time, created_at, updated_at FROM chat_sessions`

const sessionReturning = ` RETURNING id, business_id, customer_id, customer_name, handled_by_vendor, notifications_enabled, bot_enabled, unread_count, last_message_text, last_message_time, created_at, updated_at`

const selectMessageColumns = `SELECT id, provider_message_id, sender_type, text, message_type, sent_at, status FROM chat_messages`

// statusRankSQL mirrors domain.MessageStatus.Rank for the stored status.
const statusRankSQL = `(CASE status WHEN 'sent' THEN 1 WHEN 'delivered' THEN 2 WHEN 'read' THEN 3 WHEN 'failed' THEN 4 ELSE 0 END)`

func scanSession(row pgx.Row) (*domain.Session, error) {
	var s domain.Session
	err := row.Scan(
		&s.ID, &s.BusinessID, &s.CustomerID, &s.CustomerName,
		&s.HandledByVendor, &s.NotificationsEnabled, &s.BotEnabled,
		&s.UnreadCount, &s.LastMessageText, &s.LastMessageTime,
		&s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func scanMessage(row pgx.Row) (*domain.Message, error) {
	var (
		m          domain.Message
		providerID *string
		senderType string
		status     string
	)
	if err := row.Scan(&m.ID, &providerID, &senderType, &m.Text, &m.MessageType, &m.Timestamp, &status); err != nil {
		return nil, err
	}
	if providerID != nil {
		m.ProviderMessageID = *providerID
	}
	m.SenderType = domain.SenderType(senderType)
	m.Status = domain.MessageStatus(status)
	return &m, nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// FindByParticipants returns the session for the pair without its messages.
func (r *PgSessionRepository) FindByParticipants(ctx context.Context, businessID, customerID uuid.UUID) (*domain.Session, error) {
	s, err := scanSession(r.db.QueryRow(ctx, selectSessionColumns+` WHERE business_id = $1 AND customer_id = $2`, businessID, customerID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		r.logger.ErrorContext(ctx, "Error fetching session by participants", "error", err, "business_id", businessID, "customer_id", customerID)
		return nil, fmt.Errorf("fetch session: %w", err)
	}
	return s, nil
}

// GetByID returns the session with its messages in append order.
func (r *PgSessionRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Session, error) {
	s, err := scanSession(r.db.QueryRow(ctx, selectSessionColumns+` WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		r.logger.ErrorContext(ctx, "Error fetching session", "error", err, "session_id", id)
		return nil, fmt.Errorf("fetch session: %w", err)
	}

	rows, err := r.db.Query(ctx, selectMessageColumns+` WHERE session_id = $1 ORDER BY seq ASC`, id)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error querying session messages", "error", err, "session_id", id)
		return nil, fmt.Errorf("query session messages: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session message: %w", err)
		}
		s.Messages = append(s.Messages, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate session messages: %w", err)
	}
	return s, nil
}

// Create inserts an empty session shell.
func (r *PgSessionRepository) Create(ctx context.Context, s *domain.Session) error {
	query := `INSERT INTO chat_sessions (id, business_id, customer_id, customer_name, handled_by_vendor, notifications_enabled, bot_enabled, unread_count, last_message_text, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	_, err := r.db.Exec(ctx, query,
		s.ID, s.BusinessID, s.CustomerID, s.CustomerName,
		s.HandledByVendor, s.NotificationsEnabled, s.BotEnabled,
		s.UnreadCount, s.LastMessageText, s.CreatedAt, s.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicateEntry
		}
		r.logger.ErrorContext(ctx, "Error inserting session", "error", err, "business_id", s.BusinessID, "customer_id", s.CustomerID)
		return fmt.Errorf("insert session: %w", err)
	}
	r.logger.InfoContext(ctx, "Session created", "session_id", s.ID, "business_id", s.BusinessID, "customer_id", s.CustomerID)
	return nil
}

// AppendMessage appends msg under a row lock on the session. A message whose
// provider id is already in the session is returned unchanged with
// inserted=false and the session bookkeeping is skipped.
func (r *PgSessionRepository) AppendMessage(ctx context.Context, sessionID uuid.UUID, msg domain.Message, effects domain.AppendEffects, at time.Time) (stored *domain.Message, inserted bool, err error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("begin append: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
				r.logger.ErrorContext(ctx, "Rollback failed", "error", rbErr, "session_id", sessionID)
			}
		}
	}()

	var count int64
	err = tx.QueryRow(ctx, `SELECT message_count FROM chat_sessions WHERE id = $1 FOR UPDATE`, sessionID).Scan(&count)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = domain.ErrNotFound
			return nil, false, err
		}
		return nil, false, fmt.Errorf("lock session: %w", err)
	}

	if msg.ProviderMessageID != "" {
		existing, findErr := scanMessage(tx.QueryRow(ctx,
			selectMessageColumns+` WHERE session_id = $1 AND provider_message_id = $2`,
			sessionID, msg.ProviderMessageID))
		switch {
		case findErr == nil:
			if err = tx.Commit(ctx); err != nil {
				return nil, false, fmt.Errorf("commit replay: %w", err)
			}
			r.logger.DebugContext(ctx, "Message already in session", "session_id", sessionID, "provider_message_id", msg.ProviderMessageID)
			return existing, false, nil
		case !errors.Is(findErr, pgx.ErrNoRows):
			err = fmt.Errorf("dedup lookup: %w", findErr)
			return nil, false, err
		}
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO chat_messages (session_id, seq, id, provider_message_id, sender_type, text, message_type, sent_at, status) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		sessionID, count+1, msg.ID, nullIfEmpty(msg.ProviderMessageID), string(msg.SenderType),
		msg.Text, msg.MessageType, msg.Timestamp, string(msg.Status),
	)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error inserting message", "error", err, "session_id", sessionID, "message_id", msg.ID)
		return nil, false, fmt.Errorf("insert message: %w", err)
	}

	_, err = tx.Exec(ctx,
		`UPDATE chat_sessions SET message_count = message_count + 1, last_message_text = $2, last_message_time = $3,
			unread_count = CASE WHEN $5 THEN 0 WHEN $4 THEN unread_count + 1 ELSE unread_count END,
			bot_enabled = bot_enabled OR $6, handled_by_vendor = handled_by_vendor OR $7, updated_at = $8
		WHERE id = $1`,
		sessionID, msg.Text, msg.Timestamp,
		effects.IncrementUnread, effects.ResetUnread, effects.EnableBot, effects.MarkHandled, at,
	)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error updating session bookkeeping", "error", err, "session_id", sessionID)
		return nil, false, fmt.Errorf("update session: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, false, fmt.Errorf("commit append: %w", err)
	}

	r.logger.DebugContext(ctx, "Message appended", "session_id", sessionID, "message_id", msg.ID, "seq", count+1)
	out := msg
	return &out, true, nil
}

// MarkHandled flags the session as handled by the vendor.
func (r *PgSessionRepository) MarkHandled(ctx context.Context, sessionID uuid.UUID, resetUnread bool, at time.Time) (*domain.Session, error) {
	query := `UPDATE chat_sessions SET handled_by_vendor = TRUE, unread_count = CASE WHEN $2 THEN 0 ELSE unread_count END, updated_at = $3 WHERE id = $1` + sessionReturning
	s, err := scanSession(r.db.QueryRow(ctx, query, sessionID, resetUnread, at))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		r.logger.ErrorContext(ctx, "Error marking session handled", "error", err, "session_id", sessionID)
		return nil, fmt.Errorf("mark handled: %w", err)
	}
	return s, nil
}

// UpdateMessageStatus moves every message with the provider id forward to
// the new status in one conditional UPDATE. When nothing changes, a second
// query tells a stale update apart from an unknown id.
func (r *PgSessionRepository) UpdateMessageStatus(ctx context.Context, u domain.StatusUpdate) (domain.StatusUpdateResult, error) {
	query := `UPDATE chat_messages SET status = $2, sent_at = $3
		WHERE provider_message_id = $1 AND status <> 'failed' AND ($2 = 'failed' OR ` + statusRankSQL + ` < $4)`
	tag, err := r.db.Exec(ctx, query, u.ProviderMessageID, string(u.Status), u.Timestamp, u.Status.Rank())
	if err != nil {
		r.logger.ErrorContext(ctx, "Error updating message status", "error", err, "provider_message_id", u.ProviderMessageID)
		return domain.StatusUpdateTargetMissing, fmt.Errorf("update message status: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return domain.StatusUpdateApplied, nil
	}

	var exists bool
	err = r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM chat_messages WHERE provider_message_id = $1)`, u.ProviderMessageID).Scan(&exists)
	if err != nil {
		return domain.StatusUpdateTargetMissing, fmt.Errorf("check status target: %w", err)
	}
	if exists {
		return domain.StatusUpdateStale, nil
	}
	return domain.StatusUpdateTargetMissing, nil
}

var _ domain.SessionRepository = (*PgSessionRepository)(nil)
