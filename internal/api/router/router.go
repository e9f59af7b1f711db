// Package router wires the HTTP surface: the chat gateway webhook, health
// and metrics, and the JWT-protected admin takeover endpoints.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/anavictoriasalon/citabot/internal/http/handlers"
	httpmiddleware "github.com/anavictoriasalon/citabot/internal/http/middleware"
	"github.com/anavictoriasalon/citabot/pkg/logging"
)

// Config holds router configuration.
type Config struct {
	Logger          *logging.Logger
	Webhook         http.Handler // inbound WhatsApp gateway webhook
	AdminCustomers  *handlers.AdminCustomersHandler
	AdminAuthSecret string
	MetricsHandler  http.Handler
}

// New creates the chi router with all routes configured.
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	// Public endpoints: health, metrics, the gateway webhook.
	r.Group(func(public chi.Router) {
		public.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"status":"ok"}`))
		})
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
		if cfg.Webhook != nil {
			public.Handle("/webhooks/whatsapp", cfg.Webhook)
		}
	})

	// Admin takeover and inspection, behind the admin JWT.
	if cfg.AdminCustomers != nil {
		r.Route("/admin", func(admin chi.Router) {
			admin.Use(httpmiddleware.AdminJWT(cfg.AdminAuthSecret))
			admin.Post("/customers/{phone}/pause", cfg.AdminCustomers.Pause)
			admin.Post("/customers/{phone}/resume", cfg.AdminCustomers.Resume)
			admin.Get("/customers/{phone}/session", cfg.AdminCustomers.GetSession)
			admin.Get("/customers/{phone}/appointments", cfg.AdminCustomers.ListAppointments)
		})
	}

	return r
}
