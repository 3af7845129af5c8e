package postgres

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"regexp"
	"testing"
	"time"

	"github.com/MercyNyamusi/webhook/internal/conversation_service/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sessionCols = []string{"id", "business_id", "customer_id", "customer_name", "handled_by_vendor", "notifications_enabled", "bot_enabled", "unread_count", "last_message_text", "last_message_time", "created_at", "updated_at"}

var messageCols = []string{"id", "provider_message_id", "sender_type", "text", "message_type", "sent_at", "status"}

func setupSessionTest(t *testing.T) (*PgSessionRepository, pgxmock.PgxPoolIface) {
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewPgSessionRepository(mockPool, logger), mockPool
}

func TestPgSessionRepository_AppendMessage_Inserts(t *testing.T) {
	repo, mockPool := setupSessionTest(t)
	defer mockPool.Close()

	sessionID := uuid.New()
	ts := time.Unix(1700000000, 0).UTC()
	at := ts.Add(time.Second)
	msg := domain.NewProviderMessage("wamid.1", domain.SenderCustomer, "Hi", ts)

	mockPool.ExpectBegin()
	mockPool.ExpectQuery(regexp.QuoteMeta(`SELECT message_count FROM chat_sessions WHERE id = $1 FOR UPDATE`)).
		WithArgs(sessionID).
		WillReturnRows(pgxmock.NewRows([]string{"message_count"}).AddRow(int64(0)))
	mockPool.ExpectQuery(regexp.QuoteMeta(`WHERE session_id = $1 AND provider_message_id = $2`)).
		WithArgs(sessionID, "wamid.1").
		WillReturnError(pgx.ErrNoRows)
	mockPool.ExpectExec(`INSERT INTO chat_messages`).
		WithArgs(sessionID, int64(1), "wamid.1", "wamid.1", "customer", "Hi", "text", ts, "sent").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mockPool.ExpectExec(`UPDATE chat_sessions SET message_count = message_count \+ 1`).
		WithArgs(sessionID, "Hi", ts, true, false, true, false, at).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mockPool.ExpectCommit()

	stored, inserted, err := repo.AppendMessage(context.Background(), sessionID, msg, domain.InboundEffects(), at)
	require.NoError(t, err)
	assert.True(t, inserted)
	assert.Equal(t, "wamid.1", stored.ID)
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestPgSessionRepository_AppendMessage_ReplayIsNoop(t *testing.T) {
	repo, mockPool := setupSessionTest(t)
	defer mockPool.Close()

	sessionID := uuid.New()
	ts := time.Unix(1700000000, 0).UTC()
	providerID := "wamid.1"
	msg := domain.NewProviderMessage(providerID, domain.SenderCustomer, "Hi", ts)

	mockPool.ExpectBegin()
	mockPool.ExpectQuery(regexp.QuoteMeta(`FOR UPDATE`)).
		WithArgs(sessionID).
		WillReturnRows(pgxmock.NewRows([]string{"message_count"}).AddRow(int64(1)))
	mockPool.ExpectQuery(regexp.QuoteMeta(`WHERE session_id = $1 AND provider_message_id = $2`)).
		WithArgs(sessionID, providerID).
		WillReturnRows(pgxmock.NewRows(messageCols).AddRow("wamid.1", &providerID, "customer", "Hi", "text", ts, "delivered"))
	mockPool.ExpectCommit()

	stored, inserted, err := repo.AppendMessage(context.Background(), sessionID, msg, domain.InboundEffects(), ts)
	require.NoError(t, err)
	assert.False(t, inserted)
	assert.Equal(t, domain.StatusDelivered, stored.Status, "replay returns the stored message, not the incoming copy")
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestPgSessionRepository_AppendMessage_LocalIDSkipsDedup(t *testing.T) {
	repo, mockPool := setupSessionTest(t)
	defer mockPool.Close()

	sessionID := uuid.New()
	ts := time.Unix(1700000000, 0).UTC()
	msg := domain.NewLocalMessage(domain.SenderVendor, "On it!", ts)

	mockPool.ExpectBegin()
	mockPool.ExpectQuery(regexp.QuoteMeta(`FOR UPDATE`)).
		WithArgs(sessionID).
		WillReturnRows(pgxmock.NewRows([]string{"message_count"}).AddRow(int64(3)))
	mockPool.ExpectExec(`INSERT INTO chat_messages`).
		WithArgs(sessionID, int64(4), msg.ID, nil, "vendor", "On it!", "text", ts, "sent").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mockPool.ExpectExec(`UPDATE chat_sessions SET message_count`).
		WithArgs(sessionID, "On it!", ts, false, false, false, true, ts).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mockPool.ExpectCommit()

	_, inserted, err := repo.AppendMessage(context.Background(), sessionID, msg, domain.OutboundEffects(false), ts)
	require.NoError(t, err)
	assert.True(t, inserted)
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestPgSessionRepository_AppendMessage_Errors(t *testing.T) {
	ts := time.Now()

	t.Run("SessionMissing", func(t *testing.T) {
		repo, mockPool := setupSessionTest(t)
		defer mockPool.Close()
		sessionID := uuid.New()

		mockPool.ExpectBegin()
		mockPool.ExpectQuery(regexp.QuoteMeta(`FOR UPDATE`)).WithArgs(sessionID).WillReturnError(pgx.ErrNoRows)
		mockPool.ExpectRollback()

		_, _, err := repo.AppendMessage(context.Background(), sessionID, domain.NewProviderMessage("wamid.9", domain.SenderCustomer, "x", ts), domain.InboundEffects(), ts)
		assert.ErrorIs(t, err, domain.ErrNotFound)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("InsertFailsRollsBack", func(t *testing.T) {
		repo, mockPool := setupSessionTest(t)
		defer mockPool.Close()
		sessionID := uuid.New()

		mockPool.ExpectBegin()
		mockPool.ExpectQuery(regexp.QuoteMeta(`FOR UPDATE`)).WithArgs(sessionID).
			WillReturnRows(pgxmock.NewRows([]string{"message_count"}).AddRow(int64(0)))
		mockPool.ExpectQuery(regexp.QuoteMeta(`provider_message_id = $2`)).WithArgs(sessionID, "wamid.9").WillReturnError(pgx.ErrNoRows)
		mockPool.ExpectExec(`INSERT INTO chat_messages`).
			WithArgs(sessionID, int64(1), "wamid.9", "wamid.9", "customer", "x", "text", ts, "sent").
			WillReturnError(errors.New("disk full"))
		mockPool.ExpectRollback()

		_, inserted, err := repo.AppendMessage(context.Background(), sessionID, domain.NewProviderMessage("wamid.9", domain.SenderCustomer, "x", ts), domain.InboundEffects(), ts)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "disk full")
		assert.False(t, inserted)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestPgSessionRepository_Create(t *testing.T) {
	now := time.Now()

	t.Run("Success", func(t *testing.T) {
		repo, mockPool := setupSessionTest(t)
		defer mockPool.Close()
		s := domain.NewSession(uuid.New(), uuid.New(), "Amina", now)

		mockPool.ExpectExec(`INSERT INTO chat_sessions`).
			WithArgs(s.ID, s.BusinessID, s.CustomerID, "Amina", false, true, true, 0, "", now, now).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		require.NoError(t, repo.Create(context.Background(), s))
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("DuplicatePair", func(t *testing.T) {
		repo, mockPool := setupSessionTest(t)
		defer mockPool.Close()
		s := domain.NewSession(uuid.New(), uuid.New(), "Amina", now)

		mockPool.ExpectExec(`INSERT INTO chat_sessions`).
			WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
				pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
			WillReturnError(&pgconn.PgError{Code: "23505"})

		assert.ErrorIs(t, repo.Create(context.Background(), s), domain.ErrDuplicateEntry)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestPgSessionRepository_GetByID(t *testing.T) {
	repo, mockPool := setupSessionTest(t)
	defer mockPool.Close()

	id, businessID, customerID := uuid.New(), uuid.New(), uuid.New()
	now := time.Unix(1700000000, 0).UTC()
	last := now
	pid := "wamid.1"

	mockPool.ExpectQuery(regexp.QuoteMeta(`FROM chat_sessions WHERE id = $1`)).
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows(sessionCols).
			AddRow(id, businessID, customerID, "Amina", false, true, true, 1, "Hi", &last, now, now))
	mockPool.ExpectQuery(regexp.QuoteMeta(`FROM chat_messages WHERE session_id = $1 ORDER BY seq ASC`)).
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows(messageCols).
			AddRow("wamid.1", &pid, "customer", "Hi", "text", now, "sent").
			AddRow("local:abc", (*string)(nil), "vendor", "On it!", "text", now, "sent"))

	s, err := repo.GetByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, 1, s.UnreadCount)
	require.Len(t, s.Messages, 2)
	assert.Equal(t, "wamid.1", s.Messages[0].ProviderMessageID)
	assert.Empty(t, s.Messages[1].ProviderMessageID)
	assert.Equal(t, domain.SenderVendor, s.Messages[1].SenderType)
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestPgSessionRepository_FindByParticipants_NotFound(t *testing.T) {
	repo, mockPool := setupSessionTest(t)
	defer mockPool.Close()
	businessID, customerID := uuid.New(), uuid.New()

	mockPool.ExpectQuery(regexp.QuoteMeta(`WHERE business_id = $1 AND customer_id = $2`)).
		WithArgs(businessID, customerID).
		WillReturnError(pgx.ErrNoRows)

	s, err := repo.FindByParticipants(context.Background(), businessID, customerID)
	assert.Nil(t, s)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestPgSessionRepository_MarkHandled(t *testing.T) {
	repo, mockPool := setupSessionTest(t)
	defer mockPool.Close()
	id := uuid.New()
	now := time.Now()

	mockPool.ExpectQuery(`UPDATE chat_sessions SET handled_by_vendor = TRUE`).
		WithArgs(id, false, now).
		WillReturnRows(pgxmock.NewRows(sessionCols).
			AddRow(id, uuid.New(), uuid.New(), "Amina", true, true, true, 3, "Hi", &now, now, now))

	s, err := repo.MarkHandled(context.Background(), id, false, now)
	require.NoError(t, err)
	assert.True(t, s.HandledByVendor)
	assert.Equal(t, 3, s.UnreadCount)
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestPgSessionRepository_UpdateMessageStatus(t *testing.T) {
	ts := time.Unix(1700000010, 0).UTC()
	update := domain.StatusUpdate{ProviderMessageID: "wamid.1", Status: domain.StatusDelivered, Timestamp: ts}

	t.Run("Applied", func(t *testing.T) {
		repo, mockPool := setupSessionTest(t)
		defer mockPool.Close()

		mockPool.ExpectExec(`UPDATE chat_messages SET status = \$2`).
			WithArgs("wamid.1", "delivered", ts, 2).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		res, err := repo.UpdateMessageStatus(context.Background(), update)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusUpdateApplied, res)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("Stale", func(t *testing.T) {
		repo, mockPool := setupSessionTest(t)
		defer mockPool.Close()

		mockPool.ExpectExec(`UPDATE chat_messages SET status = \$2`).
			WithArgs("wamid.1", "delivered", ts, 2).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))
		mockPool.ExpectQuery(`SELECT EXISTS`).
			WithArgs("wamid.1").
			WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

		res, err := repo.UpdateMessageStatus(context.Background(), update)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusUpdateStale, res)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("TargetMissing", func(t *testing.T) {
		repo, mockPool := setupSessionTest(t)
		defer mockPool.Close()

		mockPool.ExpectExec(`UPDATE chat_messages SET status = \$2`).
			WithArgs("wamid.1", "delivered", ts, 2).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))
		mockPool.ExpectQuery(`SELECT EXISTS`).
			WithArgs("wamid.1").
			WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))

		res, err := repo.UpdateMessageStatus(context.Background(), update)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusUpdateTargetMissing, res)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}
