package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/gridsage/gridsage/internal/adapter/otel"
	"github.com/gridsage/gridsage/internal/adapter/ws"
	"github.com/gridsage/gridsage/internal/config"
	"github.com/gridsage/gridsage/internal/middleware"
)

// NewRouter assembles the full HTTP surface: middleware stack, health,
// WebSocket endpoint, and the versioned API.
func NewRouter(h *Handlers, hub *ws.Hub, cfg config.Server) chi.Router {
	r := chi.NewRouter()

	r.Use(CORS(cfg.CORSOrigin))
	r.Use(middleware.RequestID)
	r.Use(Logger)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(120 * time.Second))
	r.Use(otel.HTTPMiddleware("gridsage"))
	r.Use(middleware.APIKey(cfg.APIKey))

	r.Get("/health", h.Health)

	if hub != nil {
		r.Get("/ws", hub.HandleWS)
	}

	MountRoutes(r, h)

	return r
}

// MountRoutes registers all API routes on the given chi router.
func MountRoutes(r chi.Router, h *Handlers) {
	r.Route("/api/v1", func(r chi.Router) {
		// Version
		r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"version":"0.1.0"}`))
		})

		// Queries
		r.Post("/query", h.HandleQuery)

		// Sessions
		r.Get("/sessions/{id}/turns", h.ListSessionTurns)
		r.Delete("/sessions/{id}", h.DeleteSession)

		// Billing
		r.Get("/billing/summary", h.BillingSummary)
	})
}
