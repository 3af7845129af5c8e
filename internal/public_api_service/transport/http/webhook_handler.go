package http

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chi_middleware "github.com/go-chi/chi/v5/middleware" // For GetReqID

	"github.com/MercyNyamusi/webhook/internal/conversation_service/adapters/whatsapp"
	"github.com/MercyNyamusi/webhook/internal/conversation_service/app"
	"github.com/MercyNyamusi/webhook/internal/conversation_service/domain"
)

// maxWebhookBodyBytes caps webhook bodies at 1 MiB.
const maxWebhookBodyBytes = 1 << 20

// Ingester consumes parsed webhook events.
type Ingester interface {
	Ingest(ctx context.Context, evt domain.InboundEvent) (app.IngestOutcome, error)
}

// WebhookHandler receives provider webhooks.
type WebhookHandler struct {
	ingester    Ingester
	verifyToken string
	appSecret   string
	logger      *slog.Logger
}

// NewWebhookHandler creates a new WebhookHandler. An empty appSecret disables
// signature checks.
func NewWebhookHandler(ingester Ingester, verifyToken, appSecret string, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{
		ingester:    ingester,
		verifyToken: verifyToken,
		appSecret:   appSecret,
		logger:      logger.With("handler", "webhook"),
	}
}

// RegisterRoutes registers webhook routes with the given router.
func (h *WebhookHandler) RegisterRoutes(r chi.Router) {
	r.Get("/webhook/whatsapp", h.HandleVerify)
	r.Post("/webhook/whatsapp", h.HandleEvent)
	r.Post("/webhook/whatsapp/status", h.HandleEvent)
}

// HandleVerify answers the subscription handshake.
func (h *WebhookHandler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("hub.mode") == "subscribe" && h.verifyToken != "" && q.Get("hub.verify_token") == h.verifyToken {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, q.Get("hub.challenge"))
		return
	}
	h.logger.WarnContext(r.Context(), "Webhook verification failed", "request_id", chi_middleware.GetReqID(r.Context()))
	http.Error(w, "Verification failed", http.StatusForbidden)
}

// HandleEvent parses and ingests a webhook delivery. Malformed and
// unrecognized deliveries are acknowledged so the provider does not retry.
func (h *WebhookHandler) HandleEvent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.logger.With("request_id", chi_middleware.GetReqID(ctx))

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBodyBytes))
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			logger.WarnContext(ctx, "Webhook body too large", "limit", maxErr.Limit)
			respondWithError(w, http.StatusRequestEntityTooLarge, "Request body too large")
			return
		}
		logger.ErrorContext(ctx, "Failed to read webhook body", "error", err)
		respondWithError(w, http.StatusBadRequest, "Failed to read request body")
		return
	}
	defer r.Body.Close()

	// Signature check is skipped when no app secret is configured (local/dev setups)
	if h.appSecret != "" && !whatsapp.VerifySignature(h.appSecret, body, r.Header.Get(whatsapp.SignatureHeader)) {
		logger.WarnContext(ctx, "Webhook signature mismatch")
		respondWithError(w, http.StatusUnauthorized, "Invalid signature")
		return
	}

	events, err := whatsapp.ParseWebhook(body)
	if err != nil {
		logger.InfoContext(ctx, "Ignoring malformed webhook", "error", err)
		respondWithJSON(w, http.StatusOK, map[string]string{"message": "Nothing to process"})
		return
	}

	// Events are ingested in payload order; the first failure decides the response.
	// The provider retries non-2xx deliveries and ingestion is idempotent, so
	// already-stored messages in a retried payload are reported as duplicates.
	outcomes := make([]app.IngestOutcome, 0, len(events))
	for _, evt := range events {
		outcome, err := h.ingester.Ingest(ctx, evt)
		if err != nil {
			code := statusForError(err)
			if errors.Is(err, domain.ErrMalformedEvent) {
				code = http.StatusOK // Retrying a bad payload would not fix it
			}
			if code >= http.StatusInternalServerError {
				logger.ErrorContext(ctx, "Failed to ingest webhook event", "error", err, "kind", domain.EventKind(evt))
			} else {
				logger.WarnContext(ctx, "Webhook event rejected", "error", err, "kind", domain.EventKind(evt))
			}
			respondWithError(w, code, err.Error())
			return
		}
		outcomes = append(outcomes, outcome)
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{"status": "processed", "outcomes": outcomes})
}
