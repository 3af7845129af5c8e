package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/MercyNyamusi/webhook/internal/conversation_service/domain"
)

// ReconcileSummary counts what happened to each entry of a status event.
type ReconcileSummary struct {
	Applied  int `json:"applied"`
	Stale    int `json:"stale"`
	Pending  int `json:"pending"`
	Dropped  int `json:"dropped"`
	Failed   int `json:"failed"`
	Rejected int `json:"rejected"`
}

// StatusReconciler applies delivery status callbacks to stored messages.
type StatusReconciler struct {
	log     *MessageLog
	pending *PendingStatusBuffer
	logger  *slog.Logger
}

// NewStatusReconciler creates a new StatusReconciler. pending may be nil, in
// which case callbacks for unknown messages are dropped.
func NewStatusReconciler(log *MessageLog, pending *PendingStatusBuffer, logger *slog.Logger) *StatusReconciler {
	return &StatusReconciler{
		log:     log,
		pending: pending,
		logger:  logger.With("component", "status_reconciler"),
	}
}

// Reconcile applies every update in evt independently. A failing entry is
// logged and counted; it never stops the rest of the batch.
func (r *StatusReconciler) Reconcile(ctx context.Context, evt domain.StatusEvent) ReconcileSummary {
	summary := ReconcileSummary{Rejected: evt.Rejected}

	for _, u := range evt.Updates {
		res, err := r.log.ApplyStatus(ctx, u)
		if err != nil {
			summary.Failed++
			statusUpdatesCounter.WithLabelValues("error").Inc()
			r.logger.ErrorContext(ctx, "Failed to apply status update",
				"error", err,
				"provider_message_id", u.ProviderMessageID,
				"status", u.Status,
			)
			continue
		}

		switch res {
		case domain.StatusUpdateApplied:
			summary.Applied++
			statusUpdatesCounter.WithLabelValues("applied").Inc()
		case domain.StatusUpdateStale:
			summary.Stale++
			statusUpdatesCounter.WithLabelValues("stale").Inc()
		case domain.StatusUpdateTargetMissing:
			if r.pending.Park(u) {
				summary.Pending++
				statusUpdatesCounter.WithLabelValues("pending").Inc()
				r.logger.InfoContext(ctx, "Status target not found yet, parked",
					"provider_message_id", u.ProviderMessageID, "status", u.Status)
			} else {
				summary.Dropped++
				statusUpdatesCounter.WithLabelValues("dropped").Inc()
				r.logger.InfoContext(ctx, "Status target not found, dropped",
					"provider_message_id", u.ProviderMessageID, "status", u.Status, "reason", domain.ErrStatusTargetNotFound)
			}
		}
	}

	r.logger.DebugContext(ctx, "Status event reconciled",
		"applied", summary.Applied,
		"stale", summary.Stale,
		"pending", summary.Pending,
		"dropped", summary.Dropped,
		"failed", summary.Failed,
		"rejected", summary.Rejected,
	)
	return summary
}

// ApplyPending replays callbacks parked for providerID. It is called right
// after a message with that id is appended.
func (r *StatusReconciler) ApplyPending(ctx context.Context, providerID string) {
	if providerID == "" {
		return
	}
	taken, ok := r.pending.Take(providerID)
	if !ok {
		return
	}
	r.replay(ctx, providerID, taken)
}

// RetryPending retries every parked callback once and drops expired ones.
func (r *StatusReconciler) RetryPending(ctx context.Context) {
	ids, expired := r.pending.Expire()
	if expired > 0 {
		pendingStatusCounter.WithLabelValues("expired").Add(float64(expired))
		r.logger.InfoContext(ctx, "Dropped expired pending status callbacks", "count", expired)
	}
	for _, id := range ids {
		if ctx.Err() != nil {
			return
		}
		taken, ok := r.pending.Take(id)
		if !ok {
			continue
		}
		r.replay(ctx, id, taken)
	}
}

func (r *StatusReconciler) replay(ctx context.Context, providerID string, taken takenStatuses) {
	missing := false
	for _, u := range taken.updates {
		res, err := r.log.ApplyStatus(ctx, u)
		if err != nil {
			r.logger.ErrorContext(ctx, "Failed to apply pending status", "error", err, "provider_message_id", providerID)
			missing = true
			continue
		}
		switch res {
		case domain.StatusUpdateApplied:
			pendingStatusCounter.WithLabelValues("applied").Inc()
		case domain.StatusUpdateStale:
			pendingStatusCounter.WithLabelValues("stale").Inc()
		case domain.StatusUpdateTargetMissing:
			missing = true
		}
	}
	if !missing {
		return
	}
	if !r.pending.Restore(providerID, taken) {
		pendingStatusCounter.WithLabelValues("exhausted").Inc()
		r.logger.InfoContext(ctx, "Giving up on pending status callbacks",
			"provider_message_id", providerID, "attempts", taken.attempts+1)
	}
}

// RunPendingSweeper retries parked callbacks every interval until ctx is
// cancelled.
func (r *StatusReconciler) RunPendingSweeper(ctx context.Context, interval time.Duration) error {
	if r.pending == nil || interval <= 0 {
		<-ctx.Done()
		return nil
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	r.logger.InfoContext(ctx, "Pending status sweeper started", "interval", interval.String())
	for {
		select {
		case <-ctx.Done():
			r.logger.InfoContext(ctx, "Pending status sweeper stopping")
			return nil
		case <-ticker.C:
			r.RetryPending(ctx)
		}
	}
}
