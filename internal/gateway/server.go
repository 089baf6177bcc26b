package gateway

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// buildRouter constructs the chi mux with all routes wired.
func (g *Gateway) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Public, no auth required.
	r.Get("/health", g.handleHealth())
	if g.gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(g.gatherer, promhttp.HandlerOpts{}))
	}

	// Inbound intake uses per-channel HMAC auth, not the admin token.
	r.Post("/inbound/{channel}", g.handleInbound())

	// Admin endpoints, not mounted if no token is configured.
	if g.config.AdminToken != "" {
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware(g.config.AdminToken, g.audit, g.limiter))
			r.Get("/status", g.handleStatus())
			r.Get("/events", g.handleEvents())
			r.Route("/api", func(r chi.Router) {
				r.Get("/sessions", g.handleListSessions())
				r.Post("/sessions/flush", g.handleFlushSession())
				r.Post("/sessions/reset", g.handleResetSession())
				r.Get("/journal", g.handleJournal())
				r.Get("/hooks/failures", g.handleHookFailures())
				r.Get("/config", g.handleGetConfig())
				r.Post("/config/reload", g.handleReloadConfig())
			})
		})
	}

	return r
}
