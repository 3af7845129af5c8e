package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/MercyNyamusi/webhook/internal/conversation_service/domain"
)

// Helper to respond with JSON
func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if payload != nil {
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			slog.Default().Error("Failed to write JSON response", "error", err)
		}
	}
}

// Helper to respond with an error
func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, GenericErrorResponse{Error: message})
}

// statusForError maps engine errors to HTTP status codes.
func statusForError(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrAccessDenied):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrSessionNotFound),
		errors.Is(err, domain.ErrBusinessNotFound),
		errors.Is(err, domain.ErrCustomerLookupFailed),
		errors.Is(err, domain.ErrVendorNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrSendFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
