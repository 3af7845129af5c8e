package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/MercyNyamusi/webhook/internal/public_api_service/middleware"
)

// RouterConfig carries what NewRouter needs besides the handlers.
type RouterConfig struct {
	JWTSecret      string
	RequestTimeout time.Duration
}

// NewRouter mounts the webhook routes publicly and the operator API under
// /api/v1 behind bearer authentication.
func NewRouter(cfg RouterConfig, webhook *WebhookHandler, operator *OperatorHandler, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	// Standard chi middleware chain, same order as the other services
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	if cfg.RequestTimeout > 0 {
		r.Use(chimiddleware.Timeout(cfg.RequestTimeout))
	}
	r.Use(PrometheusMetricsMiddleware)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// Provider webhooks are public; they are authenticated by verify token and
	// (optionally) the X-Hub-Signature-256 header instead of a JWT.
	webhook.RegisterRoutes(r)

	r.Route("/api/v1", func(apiV1 chi.Router) {
		apiV1.Use(middleware.AuthMiddleware(cfg.JWTSecret, logger)) // Operator routes require a vendor token
		operator.RegisterRoutes(apiV1)
	})

	return r
}
