package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chi_middleware "github.com/go-chi/chi/v5/middleware" // For GetReqID
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/MercyNyamusi/webhook/internal/conversation_service/app"
	"github.com/MercyNyamusi/webhook/internal/conversation_service/domain"
	"github.com/MercyNyamusi/webhook/internal/public_api_service/middleware"
)

// ConversationService is the part of the engine the operator API drives.
type ConversationService interface {
	AuthorizeSession(ctx context.Context, sessionID, vendorID uuid.UUID) (*domain.Session, error)
	AuthorizeBusiness(ctx context.Context, businessID, vendorID uuid.UUID) error
	SendReply(ctx context.Context, sessionID uuid.UUID, text string) (domain.MessageRef, error)
	MarkHandled(ctx context.Context, sessionID uuid.UUID) (*domain.Session, error)
	RegisterDeviceToken(ctx context.Context, vendorID uuid.UUID, token string) error
	CreateOrder(ctx context.Context, req app.CreateOrderRequest) (uuid.UUID, error)
}

// OperatorHandler serves the authenticated vendor API.
type OperatorHandler struct {
	service  ConversationService
	validate *validator.Validate
	logger   *slog.Logger
}

// NewOperatorHandler creates a new OperatorHandler.
func NewOperatorHandler(service ConversationService, validate *validator.Validate, logger *slog.Logger) *OperatorHandler {
	return &OperatorHandler{
		service:  service,
		validate: validate,
		logger:   logger.With("handler", "operator"),
	}
}

// RegisterRoutes registers operator routes. The router is expected to carry
// the auth middleware already.
func (h *OperatorHandler) RegisterRoutes(r chi.Router) {
	r.Get("/sessions/{sessionID}", h.GetSession)
	r.Post("/sessions/{sessionID}/messages", h.SendReply)
	r.Post("/sessions/{sessionID}/handled", h.MarkHandled)
	r.Put("/vendor/device-token", h.RegisterDeviceToken)
	r.Post("/orders", h.CreateOrder)
}

func (h *OperatorHandler) vendorAndSession(w http.ResponseWriter, r *http.Request) (middleware.AuthenticatedVendor, uuid.UUID, bool) {
	vendor, ok := middleware.VendorFromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Authentication required")
		return vendor, uuid.Nil, false
	}
	sessionID, err := uuid.Parse(chi.URLParam(r, "sessionID"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid session ID")
		return vendor, uuid.Nil, false
	}
	return vendor, sessionID, true
}

func (h *OperatorHandler) fail(w http.ResponseWriter, r *http.Request, msg string, err error) {
	code := statusForError(err)
	logger := h.logger.With("request_id", chi_middleware.GetReqID(r.Context()))
	if code >= http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), msg, "error", err)
	} else {
		logger.WarnContext(r.Context(), msg, "error", err)
	}
	respondWithJSON(w, code, GenericErrorResponse{Error: msg, Details: err.Error()})
}

// GetSession returns the session with its message log.
func (h *OperatorHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	vendor, sessionID, ok := h.vendorAndSession(w, r)
	if !ok {
		return
	}
	session, err := h.service.AuthorizeSession(r.Context(), sessionID, vendor.ID)
	if err != nil {
		h.fail(w, r, "Failed to load session", err)
		return
	}
	respondWithJSON(w, http.StatusOK, toSessionResponse(session, true))
}

// SendReply sends a vendor reply into the session.
func (h *OperatorHandler) SendReply(w http.ResponseWriter, r *http.Request) {
	vendor, sessionID, ok := h.vendorAndSession(w, r)
	if !ok {
		return
	}

	var req SendReplyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	defer r.Body.Close()

	if err := h.validate.StructCtx(r.Context(), req); err != nil {
		respondWithJSON(w, http.StatusBadRequest, GenericErrorResponse{Error: "Validation failed", Details: err.Error()})
		return
	}

	// Ownership check before anything is sent to the customer
	if _, err := h.service.AuthorizeSession(r.Context(), sessionID, vendor.ID); err != nil {
		h.fail(w, r, "Failed to load session", err)
		return
	}

	ref, err := h.service.SendReply(r.Context(), sessionID, req.Text)
	if err != nil {
		h.fail(w, r, "Failed to send reply", err)
		return
	}
	respondWithJSON(w, http.StatusCreated, toMessageRefResponse(ref))
}

// MarkHandled flags the session as handled.
func (h *OperatorHandler) MarkHandled(w http.ResponseWriter, r *http.Request) {
	vendor, sessionID, ok := h.vendorAndSession(w, r)
	if !ok {
		return
	}
	if _, err := h.service.AuthorizeSession(r.Context(), sessionID, vendor.ID); err != nil {
		h.fail(w, r, "Failed to load session", err)
		return
	}
	session, err := h.service.MarkHandled(r.Context(), sessionID)
	if err != nil {
		h.fail(w, r, "Failed to mark session handled", err)
		return
	}
	respondWithJSON(w, http.StatusOK, toSessionResponse(session, false))
}

// RegisterDeviceToken stores the push token of the calling vendor.
func (h *OperatorHandler) RegisterDeviceToken(w http.ResponseWriter, r *http.Request) {
	vendor, ok := middleware.VendorFromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	var req DeviceTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	defer r.Body.Close()

	if err := h.validate.StructCtx(r.Context(), req); err != nil {
		respondWithJSON(w, http.StatusBadRequest, GenericErrorResponse{Error: "Validation failed", Details: err.Error()})
		return
	}

	if err := h.service.RegisterDeviceToken(r.Context(), vendor.ID, req.Token); err != nil {
		h.fail(w, r, "Failed to register device token", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CreateOrder records an order for one of the vendor's businesses.
func (h *OperatorHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	vendor, ok := middleware.VendorFromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	var req CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	defer r.Body.Close()

	if err := h.validate.StructCtx(r.Context(), req); err != nil {
		respondWithJSON(w, http.StatusBadRequest, GenericErrorResponse{Error: "Validation failed", Details: err.Error()})
		return
	}
	// Both parse after the uuid validation above.
	businessID, _ := uuid.Parse(req.BusinessID)
	customerID, _ := uuid.Parse(req.CustomerID)

	if err := h.service.AuthorizeBusiness(r.Context(), businessID, vendor.ID); err != nil {
		h.fail(w, r, "Failed to authorize business", err)
		return
	}

	orderID, err := h.service.CreateOrder(r.Context(), app.CreateOrderRequest{
		BusinessID: businessID,
		CustomerID: customerID,
		Details:    req.Details,
	})
	if err != nil {
		h.fail(w, r, "Failed to create order", err)
		return
	}
	respondWithJSON(w, http.StatusCreated, CreateOrderResponse{OrderID: orderID.String()})
}
