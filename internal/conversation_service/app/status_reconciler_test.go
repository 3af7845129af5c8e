package app

import (
	"context"
	"testing"
	"time"

	"github.com/MercyNyamusi/webhook/internal/conversation_service/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func statusUpdate(id string, status domain.MessageStatus, secs int64) domain.StatusUpdate {
	return domain.StatusUpdate{ProviderMessageID: id, Status: status, Timestamp: time.Unix(secs, 0).UTC()}
}

func TestStatusReconciler_InOrderEndsRead(t *testing.T) {
	env := newTestEnv(t, DefaultPolicy())
	ctx := context.Background()
	_, _, err := env.engine.Ingestion.IngestMessage(ctx, inboundMessage("wamid.1", "Hi"))
	require.NoError(t, err)

	summary := env.engine.Reconciler.Reconcile(ctx, domain.StatusEvent{Updates: []domain.StatusUpdate{
		statusUpdate("wamid.1", domain.StatusSent, 1700000001),
		statusUpdate("wamid.1", domain.StatusDelivered, 1700000002),
		statusUpdate("wamid.1", domain.StatusRead, 1700000003),
	}})

	assert.Equal(t, 2, summary.Applied)
	assert.Equal(t, 1, summary.Stale, "sent over sent is not a forward move")
	assert.Equal(t, domain.StatusRead, env.onlySession(t).Messages[0].Status)
}

func TestStatusReconciler_OutOfOrderKeepsRead(t *testing.T) {
	env := newTestEnv(t, DefaultPolicy())
	ctx := context.Background()
	_, _, err := env.engine.Ingestion.IngestMessage(ctx, inboundMessage("wamid.1", "Hi"))
	require.NoError(t, err)

	summary := env.engine.Reconciler.Reconcile(ctx, domain.StatusEvent{Updates: []domain.StatusUpdate{
		statusUpdate("wamid.1", domain.StatusRead, 1700000003),
		statusUpdate("wamid.1", domain.StatusDelivered, 1700000002),
	}})

	assert.Equal(t, 1, summary.Applied)
	assert.Equal(t, 1, summary.Stale)
	msg := env.onlySession(t).Messages[0]
	assert.Equal(t, domain.StatusRead, msg.Status)
	assert.Equal(t, time.Unix(1700000003, 0).UTC(), msg.Timestamp)
}

func TestStatusReconciler_FailedIsTerminal(t *testing.T) {
	env := newTestEnv(t, DefaultPolicy())
	ctx := context.Background()
	_, _, err := env.engine.Ingestion.IngestMessage(ctx, inboundMessage("wamid.1", "Hi"))
	require.NoError(t, err)

	env.engine.Reconciler.Reconcile(ctx, domain.StatusEvent{Updates: []domain.StatusUpdate{
		statusUpdate("wamid.1", domain.StatusDelivered, 1700000002),
		statusUpdate("wamid.1", domain.StatusFailed, 1700000003),
		statusUpdate("wamid.1", domain.StatusRead, 1700000004),
	}})

	assert.Equal(t, domain.StatusFailed, env.onlySession(t).Messages[0].Status)
}

func TestStatusReconciler_PartialSuccess(t *testing.T) {
	policy := DefaultPolicy()
	policy.PendingStatusMaxEntries = 0
	env := newTestEnv(t, policy)
	ctx := context.Background()
	_, _, err := env.engine.Ingestion.IngestMessage(ctx, inboundMessage("wamid.1", "Hi"))
	require.NoError(t, err)

	summary := env.engine.Reconciler.Reconcile(ctx, domain.StatusEvent{
		Updates: []domain.StatusUpdate{
			{ProviderMessageID: "wamid.1", Status: "bogus"},
			statusUpdate("wamid.unknown", domain.StatusDelivered, 1700000002),
			statusUpdate("wamid.1", domain.StatusDelivered, 1700000002),
		},
		Rejected: 2,
	})

	assert.Equal(t, ReconcileSummary{Applied: 1, Dropped: 1, Failed: 1, Rejected: 2}, summary)
	assert.Equal(t, domain.StatusDelivered, env.onlySession(t).Messages[0].Status)
}

func TestStatusReconciler_ParkedStatusAppliedOnIngest(t *testing.T) {
	env := newTestEnv(t, DefaultPolicy())
	ctx := context.Background()

	summary := env.engine.Reconciler.Reconcile(ctx, domain.StatusEvent{Updates: []domain.StatusUpdate{
		statusUpdate("wamid.1", domain.StatusRead, 1700000003),
		statusUpdate("wamid.1", domain.StatusDelivered, 1700000002),
	}})
	assert.Equal(t, 2, summary.Pending)

	_, _, err := env.engine.Ingestion.IngestMessage(ctx, inboundMessage("wamid.1", "Hi"))
	require.NoError(t, err)

	msg := env.onlySession(t).Messages[0]
	assert.Equal(t, domain.StatusRead, msg.Status)
	assert.Equal(t, time.Unix(1700000003, 0).UTC(), msg.Timestamp)
}

func TestStatusReconciler_RetryPendingGivesUp(t *testing.T) {
	policy := DefaultPolicy()
	policy.PendingStatusMaxAttempts = 2
	env := newTestEnv(t, policy)
	ctx := context.Background()

	env.engine.Reconciler.Reconcile(ctx, domain.StatusEvent{Updates: []domain.StatusUpdate{
		statusUpdate("wamid.never", domain.StatusDelivered, 1700000002),
	}})
	pending := env.engine.Reconciler.pending
	require.Equal(t, 1, pending.Len())

	env.engine.Reconciler.RetryPending(ctx)
	assert.Equal(t, 1, pending.Len(), "first retry keeps the entry")

	env.engine.Reconciler.RetryPending(ctx)
	assert.Equal(t, 0, pending.Len(), "out of attempts")
}

func TestStatusReconciler_RetryPendingExpires(t *testing.T) {
	env := newTestEnv(t, DefaultPolicy())
	ctx := context.Background()

	env.engine.Reconciler.Reconcile(ctx, domain.StatusEvent{Updates: []domain.StatusUpdate{
		statusUpdate("wamid.late", domain.StatusDelivered, 1700000002),
	}})
	env.clock.Advance(DefaultPolicy().PendingStatusTTL)

	env.engine.Reconciler.RetryPending(ctx)
	assert.Equal(t, 0, env.engine.Reconciler.pending.Len())
}

func TestStatusReconciler_RunPendingSweeperStops(t *testing.T) {
	env := newTestEnv(t, DefaultPolicy())
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- env.engine.Reconciler.RunPendingSweeper(ctx, 5*time.Millisecond) }()
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}

func TestMessageLog_UpdateStatus(t *testing.T) {
	env := newTestEnv(t, DefaultPolicy())
	ctx := context.Background()
	_, _, err := env.engine.Ingestion.IngestMessage(ctx, inboundMessage("wamid.1", "Hi"))
	require.NoError(t, err)

	ok, err := env.engine.Messages.UpdateStatus(ctx, "wamid.1", domain.StatusDelivered, time.Unix(1700000010, 0))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = env.engine.Messages.UpdateStatus(ctx, "wamid.1", domain.StatusSent, time.Unix(1700000011, 0))
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = env.engine.Messages.UpdateStatus(ctx, "wamid.missing", domain.StatusRead, time.Unix(1700000012, 0))
	require.NoError(t, err)
	assert.False(t, ok)
}
