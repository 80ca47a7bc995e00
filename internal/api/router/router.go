// Package router assembles the HTTP surface: public chat intake, the
// webchat widget socket and the JWT-guarded admin endpoints.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/okhlopkov/salon-assistant/internal/http/handlers"
	httpmiddleware "github.com/okhlopkov/salon-assistant/internal/http/middleware"
	"github.com/okhlopkov/salon-assistant/internal/webchat"
	"github.com/okhlopkov/salon-assistant/pkg/logging"
)

// Config holds router configuration.
type Config struct {
	Logger          *logging.Logger
	ChatHandler     *handlers.ChatHandler
	AdminHandler    *handlers.AdminHandler
	WebchatHub      *webchat.Hub
	AdminAuthSecret string
	MetricsHandler  http.Handler
}

// New creates a Chi router with all routes configured.
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	r.Group(func(public chi.Router) {
		public.Get("/health", cfg.ChatHandler.HealthCheck)
		public.Post("/chat/events", cfg.ChatHandler.HandleEvent)
		if cfg.WebchatHub != nil {
			public.Get("/webchat/ws", cfg.WebchatHub.HandleWebSocket)
		}
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
	})

	if cfg.AdminHandler != nil {
		r.Route("/admin", func(admin chi.Router) {
			admin.Use(httpmiddleware.AdminJWT(cfg.AdminAuthSecret))
			admin.Get("/bookings", cfg.AdminHandler.ListBookings)
			admin.Delete("/bookings/{clientID}", cfg.AdminHandler.CancelBooking)
			admin.Get("/events", cfg.AdminHandler.ListEvents)
		})
	}

	return r
}
