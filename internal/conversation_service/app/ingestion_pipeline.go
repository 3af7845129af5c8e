package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/MercyNyamusi/webhook/internal/conversation_service/domain"
)

// IngestOutcomeKind classifies the result of one inbound event.
type IngestOutcomeKind string

const (
	OutcomeIgnored   IngestOutcomeKind = "ignored"
	OutcomeStored    IngestOutcomeKind = "stored"
	OutcomeDuplicate IngestOutcomeKind = "duplicate"
	OutcomeStatus    IngestOutcomeKind = "status"
)

// IngestOutcome describes what an inbound event changed.
type IngestOutcome struct {
	Kind       IngestOutcomeKind   `json:"kind"`
	Stored     int                 `json:"stored,omitempty"`
	Duplicates int                 `json:"duplicates,omitempty"`
	Messages   []domain.MessageRef `json:"messages,omitempty"`
	Status     *ReconcileSummary   `json:"status,omitempty"`
	Reason     string              `json:"reason,omitempty"`
}

// IngestionPipeline is the entry point for parsed webhook events.
type IngestionPipeline struct {
	identity   *IdentityResolver
	sessions   *SessionManager
	reconciler *StatusReconciler
	logger     *slog.Logger
}

// NewIngestionPipeline creates a new IngestionPipeline.
func NewIngestionPipeline(identity *IdentityResolver, sessions *SessionManager, reconciler *StatusReconciler, logger *slog.Logger) *IngestionPipeline {
	return &IngestionPipeline{
		identity:   identity,
		sessions:   sessions,
		reconciler: reconciler,
		logger:     logger.With("component", "ingestion_pipeline"),
	}
}

// Ingest processes one parsed event. Identity and session errors abort the
// event and are returned; unrecognized events are a benign no-op.
func (p *IngestionPipeline) Ingest(ctx context.Context, evt domain.InboundEvent) (IngestOutcome, error) {
	kind := domain.EventKind(evt)
	inboundEventsCounter.WithLabelValues(kind).Inc()
	start := time.Now()
	defer func() {
		ingestDurationHist.WithLabelValues(kind).Observe(time.Since(start).Seconds())
	}()

	switch e := evt.(type) {
	case domain.MessageEvent:
		return p.ingestMessages(ctx, e)
	case domain.StatusEvent:
		summary := p.reconciler.Reconcile(ctx, e)
		return IngestOutcome{Kind: OutcomeStatus, Status: &summary}, nil
	case domain.UnrecognizedEvent:
		p.logger.DebugContext(ctx, "Ignoring unrecognized event", "reason", e.Reason)
		return IngestOutcome{Kind: OutcomeIgnored, Reason: e.Reason}, nil
	default:
		return IngestOutcome{Kind: OutcomeIgnored, Reason: "unsupported event"}, nil
	}
}

func (p *IngestionPipeline) ingestMessages(ctx context.Context, evt domain.MessageEvent) (IngestOutcome, error) {
	out := IngestOutcome{Kind: OutcomeIgnored}
	for _, m := range evt.Messages {
		ref, inserted, err := p.IngestMessage(ctx, m)
		if err != nil {
			ingestOutcomesCounter.WithLabelValues("error").Inc()
			return out, err
		}
		out.Messages = append(out.Messages, ref)
		if inserted {
			out.Stored++
			ingestOutcomesCounter.WithLabelValues("stored").Inc()
		} else {
			out.Duplicates++
			ingestOutcomesCounter.WithLabelValues("duplicate").Inc()
		}
	}
	switch {
	case out.Stored > 0:
		out.Kind = OutcomeStored
	case out.Duplicates > 0:
		out.Kind = OutcomeDuplicate
	}
	return out, nil
}

// IngestMessage stores one customer message. inserted is false when the
// provider id was already in the session, in which case no bookkeeping or
// notification happens.
func (p *IngestionPipeline) IngestMessage(ctx context.Context, m domain.InboundMessage) (domain.MessageRef, bool, error) {
	if m.ProviderMessageID == "" || m.SenderContact == "" || m.RecipientNumber == "" {
		return domain.MessageRef{}, false, fmt.Errorf("%w: message without id, sender or recipient", domain.ErrMalformedEvent)
	}

	business, err := p.identity.ResolveBusiness(ctx, m.RecipientNumber)
	if err != nil {
		return domain.MessageRef{}, false, err
	}

	customer, err := p.identity.ResolveOrCreateCustomer(ctx, m.SenderContact, m.SenderDisplayName)
	if err != nil {
		return domain.MessageRef{}, false, err
	}

	customerName := m.SenderDisplayName
	if customerName == "" {
		customerName = customer.DisplayName
	}
	session, err := p.sessions.FindOrCreateSession(ctx, business.ID, customer.ID, customerName)
	if err != nil {
		return domain.MessageRef{}, false, err
	}

	msg := domain.NewProviderMessage(m.ProviderMessageID, domain.SenderCustomer, m.Text, m.Timestamp)
	ref, inserted, err := p.sessions.ApplyInboundMessage(ctx, session, msg)
	if err != nil {
		return domain.MessageRef{}, false, err
	}

	if inserted {
		p.logger.InfoContext(ctx, "Inbound message stored",
			"session_id", session.ID,
			"business_id", business.ID,
			"customer_id", customer.ID,
			"provider_message_id", m.ProviderMessageID,
		)
		p.reconciler.ApplyPending(ctx, m.ProviderMessageID)
	}
	return ref, inserted, nil
}
