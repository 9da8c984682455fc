// Package router assembles the HTTP API: the public webhook surface and
// the JWT-protected admin surface.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/lrz80/chatbot-backend-sub000/internal/http/handlers"
	httpmiddleware "github.com/lrz80/chatbot-backend-sub000/internal/http/middleware"
	"github.com/lrz80/chatbot-backend-sub000/pkg/logging"
)

// Config holds router configuration.
type Config struct {
	Logger *logging.Logger

	Webhook           *handlers.WebhookHandler
	AdminAppointments *handlers.AdminAppointmentsHandler
	AdminTranscripts  *handlers.AdminTranscriptsHandler
	AdminTenants      *handlers.AdminTenantsHandler

	AdminAuthSecret    string
	MetricsHandler     http.Handler
	CORSAllowedOrigins []string

	// WebhookRatePerSec limits inbound webhook traffic per client IP.
	// Zero disables the limiter.
	WebhookRatePerSec float64
	WebhookBurst      int
}

// New creates a Chi router with all routes configured.
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	// Public endpoints (webhooks, health checks)
	r.Group(func(public chi.Router) {
		public.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"status":"ok"}`))
		})
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
		if cfg.Webhook != nil {
			public.Route("/webhook", func(r chi.Router) {
				if cfg.WebhookRatePerSec > 0 {
					r.Use(httpmiddleware.RateLimit(cfg.WebhookRatePerSec, cfg.WebhookBurst))
				}
				r.Post("/message", cfg.Webhook.HandleMessage)
			})
			public.Get("/availability", cfg.Webhook.HandleAvailability)
		}
	})

	// Admin routes, protected by an HMAC-signed JWT
	if cfg.AdminAuthSecret != "" {
		r.Route("/admin", func(admin chi.Router) {
			admin.Use(httpmiddleware.AdminJWT(cfg.AdminAuthSecret))
			admin.Route("/tenants/{tenantID}", func(t chi.Router) {
				t.Use(httpmiddleware.RequireTenant)
				if cfg.AdminAppointments != nil {
					t.Get("/appointments", cfg.AdminAppointments.List)
					t.Get("/appointments/{appointmentID}", cfg.AdminAppointments.Get)
				}
				if cfg.AdminTranscripts != nil {
					t.Get("/threads", cfg.AdminTranscripts.ListThreads)
					t.Get("/messages", cfg.AdminTranscripts.ListMessages)
				}
				if cfg.AdminTenants != nil {
					t.Get("/settings", cfg.AdminTenants.Get)
					t.Put("/settings", cfg.AdminTenants.Upsert)
				}
			})
		})
	}

	return r
}
