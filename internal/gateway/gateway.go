// Package gateway provides the HTTP front door of the intake pipeline:
// the inbound message endpoint channels post to, plus health, metrics,
// a live event stream, and a token-protected admin surface for inspecting
// and steering the queue. It binds to loopback by default.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/inletd/inlet/internal/hook"
	"github.com/inletd/inlet/internal/journal"
	"github.com/inletd/inlet/internal/queue"
	"github.com/inletd/inlet/internal/reload"
	"github.com/inletd/inlet/internal/security"
)

// Gateway is the HTTP server wrapping the queue controller.
type Gateway struct {
	config     Config
	configPath string
	logger     *slog.Logger

	controller *queue.Controller
	journal    *journal.Journal
	hooks      *hook.Dispatcher
	applier    *reload.Applier
	gatherer   prometheus.Gatherer
	audit      *security.AuditLogger
	limiter    *security.RateLimiter
	redactor   *security.Redactor

	hub       *eventHub
	server    *http.Server
	startedAt time.Time
}

// Deps carries the gateway's collaborators. Controller is required;
// everything else degrades gracefully when absent.
type Deps struct {
	Controller *queue.Controller
	Journal    *journal.Journal
	Hooks      *hook.Dispatcher
	Applier    *reload.Applier
	Gatherer   prometheus.Gatherer
	Audit      *security.AuditLogger
	Limiter    *security.RateLimiter
	Redactor   *security.Redactor

	// ConfigPath feeds the admin config and reload endpoints.
	ConfigPath string

	Logger *slog.Logger
}

// New creates a Gateway. The server is not started until Start.
func New(cfg Config, deps Deps) (*Gateway, error) {
	cfg.defaults()
	if deps.Controller == nil {
		return nil, errors.New("gateway: controller is required")
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	redactor := deps.Redactor
	if redactor == nil {
		redactor = security.NewRedactor()
	}

	return &Gateway{
		config:     cfg,
		configPath: deps.ConfigPath,
		logger:     logger,
		controller: deps.Controller,
		journal:    deps.Journal,
		hooks:      deps.Hooks,
		applier:    deps.Applier,
		gatherer:   deps.Gatherer,
		audit:      deps.Audit,
		limiter:    deps.Limiter,
		redactor:   redactor,
		hub:        newEventHub(),
	}, nil
}

// Validate checks that the bind address is resolvable.
func (g *Gateway) Validate() error {
	if _, err := net.ResolveTCPAddr("tcp", g.config.Bind); err != nil {
		return errors.New("gateway: invalid bind address: " + g.config.Bind)
	}
	return nil
}

// Start binds the listener and serves in the background. It returns as
// soon as the listener is up.
func (g *Gateway) Start(ctx context.Context) error {
	g.startedAt = time.Now()

	g.server = &http.Server{
		Addr:         g.config.Bind,
		Handler:      g.buildRouter(),
		ReadTimeout:  g.config.ReadTimeout,
		WriteTimeout: g.config.WriteTimeout,
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", g.config.Bind)
	if err != nil {
		return fmt.Errorf("gateway: listen on %s: %w", g.config.Bind, err)
	}

	go func() {
		g.logger.Info("gateway listening", "addr", g.config.Bind)
		if err := g.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			g.logger.Error("gateway serve error", "error", err)
		}
	}()

	return nil
}

// Stop drains the event stream and shuts the server down gracefully
// within the configured timeout.
func (g *Gateway) Stop(ctx context.Context) error {
	if g.server == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, g.config.ShutdownTimeout)
	defer cancel()

	g.logger.Info("gateway shutting down")
	g.hub.close()
	return g.server.Shutdown(shutdownCtx)
}
