package router

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/wolfman30/whatsapp-leadbot/internal/channels/whatsapp"
	"github.com/wolfman30/whatsapp-leadbot/internal/conversation"
	"github.com/wolfman30/whatsapp-leadbot/internal/http/handlers"
	httpmiddleware "github.com/wolfman30/whatsapp-leadbot/internal/http/middleware"
	"github.com/wolfman30/whatsapp-leadbot/pkg/logging"
)

// HealthCheck pings one dependency.
type HealthCheck func(ctx context.Context) error

// Config holds router configuration
type Config struct {
	Logger          *logging.Logger
	WhatsApp        *whatsapp.Adapter
	Conversation    *conversation.Handler
	Admin           *handlers.AdminHandler
	AdminAuthSecret string
	TestToken       string
	MetricsHandler  http.Handler
	HealthChecks    map[string]HealthCheck
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	// Public endpoints (webhooks, health checks)
	r.Group(func(public chi.Router) {
		public.Get("/health", healthHandler(cfg.HealthChecks))
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
		if cfg.WhatsApp != nil {
			public.Get("/webhooks/whatsapp", cfg.WhatsApp.HandleVerification)
			public.Post("/webhooks/whatsapp", cfg.WhatsApp.HandleWebhook)
		}
		if cfg.Conversation != nil {
			public.With(requireTestToken(cfg.TestToken)).
				Post("/api/test/process-message", cfg.Conversation.ProcessTestMessage)
		}
	})

	if cfg.Admin != nil && cfg.AdminAuthSecret != "" {
		r.Route("/admin", func(admin chi.Router) {
			admin.Use(httpmiddleware.AdminJWT(cfg.AdminAuthSecret))
			cfg.Admin.Routes(admin)
		})
	}

	return r
}

func healthHandler(checks map[string]HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		results := make(map[string]string, len(checks))
		for name, check := range checks {
			if err := check(ctx); err != nil {
				results[name] = err.Error()
				status = http.StatusServiceUnavailable
				continue
			}
			results[name] = "ok"
		}
		body := map[string]any{"status": "ok", "checks": results}
		if status != http.StatusOK {
			body["status"] = "degraded"
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}
}
