package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/inletd/inlet/internal/config"
	"github.com/inletd/inlet/internal/forward"
	"github.com/inletd/inlet/internal/gateway"
	"github.com/inletd/inlet/internal/hook"
	"github.com/inletd/inlet/internal/journal"
	"github.com/inletd/inlet/internal/maintenance"
	"github.com/inletd/inlet/internal/queue"
	"github.com/inletd/inlet/internal/reload"
	"github.com/inletd/inlet/internal/security"
	"github.com/inletd/inlet/internal/summary"
	"github.com/inletd/inlet/internal/tracing"
)

// pipeline holds every component of a running inlet instance, in the order
// they are started. Stop tears them down in reverse.
type pipeline struct {
	cfg     *config.Config
	cfgPath string
	logger  *slog.Logger

	redactor  *security.Redactor
	audit     *security.AuditLogger
	auditFile *os.File
	limiter   *security.RateLimiter

	registry *prometheus.Registry
	tracing  *tracing.Provider
	hooks    *hook.Dispatcher
	journal  *journal.Journal

	controller *queue.Controller
	gateway    *gateway.Gateway
	scheduler  *maintenance.Scheduler
	applier    *reload.Applier
	watcher    *reload.Watcher
}

// buildPipeline assembles the full intake pipeline from a validated config.
// Nothing is started; the caller owns the lifecycle.
func buildPipeline(ctx context.Context, cfg *config.Config, cfgPath string, params RunParams) (*pipeline, error) {
	p := &pipeline{cfg: cfg, cfgPath: cfgPath}

	// Secrets from the config file must never reach log output.
	p.redactor = security.NewRedactor()
	registerSecrets(p.redactor, cfg)

	inner := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: params.LogLevel,
	})
	p.logger = slog.New(security.NewRedactingHandler(inner, p.redactor))

	// The audit trail and the hook audit handler share one JSONL file.
	if cfg.Hooks.AuditLog != "" {
		f, err := os.OpenFile(cfg.Hooks.AuditLog, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return nil, fmt.Errorf("opening audit log: %w", err)
		}
		p.auditFile = f
	}
	p.audit = security.NewAuditLogger(security.AuditLoggerConfig{
		Writer:   p.auditFile,
		Redactor: p.redactor,
	})
	p.limiter = security.NewRateLimiter(security.RateLimitConfig{})

	p.registry = prometheus.NewRegistry()
	metrics := queue.NewMetrics(p.registry)

	tp, err := tracing.New(ctx, tracing.Config{
		Endpoint: cfg.Tracing.Endpoint,
		Insecure: cfg.Tracing.Insecure,
		Sample:   cfg.Tracing.Sample,
		Version:  params.Version,
	})
	if err != nil {
		p.Close()
		return nil, err
	}
	p.tracing = tp
	if tp.Enabled() {
		p.logger.Info("tracing enabled", "endpoint", cfg.Tracing.Endpoint)
	}

	p.hooks = hook.NewDispatcher(p.logger)

	if cfg.Journal.Enabled() {
		j, err := journal.Open(cfg.Journal.Path, p.logger)
		if err != nil {
			p.Close()
			return nil, fmt.Errorf("opening journal: %w", err)
		}
		p.journal = j
		p.hooks.Register(hook.TypeMessage, j.Handler())
		p.hooks.Register(hook.TypeSession, j.Handler())
		p.hooks.Register(hook.TypeCommand, j.Handler())
	}

	if p.auditFile != nil {
		ah := hook.NewAuditHandler(p.auditFile)
		p.hooks.Register(hook.TypeMessage, ah.Handle)
		p.hooks.Register(hook.TypeCommand, ah.Handle)
	}

	forwarder := forward.NewClient(forward.Config{
		BaseURL: cfg.Forward.BaseURL,
		Token:   cfg.Forward.Token,
		Timeout: cfg.Forward.Timeout,
	}, p.logger)

	controller, err := queue.New(queue.Config{
		Processor:  forwarder,
		Steerer:    forwarder,
		Canceler:   forwarder,
		Summarizer: buildSummarizer(cfg.Summary, p.logger),
		Resolver:   cfg.QueueResolver(),
		Hooks:      p.hooks,
		Metrics:    metrics,
		Tracer:     tp.Tracer(),
		MaxIdle:    cfg.Queue.MaxIdle,
		Logger:     p.logger,
	})
	if err != nil {
		p.Close()
		return nil, err
	}
	p.controller = controller

	p.applier = reload.NewApplier(controller, p.logger)

	gw, err := gateway.New(gateway.Config{
		Bind:            cfg.Server.Listen,
		AdminToken:      cfg.Server.AdminToken,
		InboundSecrets:  cfg.Server.InboundSecrets,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}, gateway.Deps{
		Controller: controller,
		Journal:    p.journal,
		Hooks:      p.hooks,
		Applier:    p.applier,
		Gatherer:   p.registry,
		Audit:      p.audit,
		Limiter:    p.limiter,
		Redactor:   p.redactor,
		ConfigPath: cfgPath,
		Logger:     p.logger,
	})
	if err != nil {
		p.Close()
		return nil, err
	}
	if err := gw.Validate(); err != nil {
		p.Close()
		return nil, err
	}
	p.gateway = gw

	// Every lifecycle event also goes out on the websocket stream.
	p.hooks.Register(hook.TypeMessage, gw.EventHandler())
	p.hooks.Register(hook.TypeSession, gw.EventHandler())
	p.hooks.Register(hook.TypeCommand, gw.EventHandler())

	p.scheduler = maintenance.NewScheduler(p.logger)
	if err := p.scheduler.RegisterJob(&maintenance.SessionPruneJob{
		Queue:        controller,
		Logger:       p.logger,
		ScheduleExpr: cfg.Maintenance.Prune,
	}); err != nil {
		p.Close()
		return nil, err
	}
	if p.journal != nil {
		if err := p.scheduler.RegisterJob(&maintenance.JournalSweepJob{
			Journal:      p.journal,
			Retention:    cfg.Journal.Retention,
			Logger:       p.logger,
			ScheduleExpr: cfg.Maintenance.JournalSweep,
		}); err != nil {
			p.Close()
			return nil, err
		}
	}

	if cfg.Reload.Enabled() {
		p.watcher = reload.NewWatcher(cfgPath, cfg.Reload.Interval)
	}

	return p, nil
}

// Start brings the pipeline up: queue first, then the gateway, then the
// background jobs and the config watcher.
func (p *pipeline) Start(ctx context.Context) error {
	p.controller.Start(ctx)

	if err := p.gateway.Start(ctx); err != nil {
		return err
	}

	if err := p.scheduler.Start(); err != nil {
		return err
	}

	if p.watcher != nil {
		p.watcher.Start(ctx)
	}
	return nil
}

// Stop tears the pipeline down in reverse start order. Errors are logged,
// not returned: shutdown keeps going.
func (p *pipeline) Stop(ctx context.Context) {
	if p.watcher != nil {
		p.watcher.Stop()
	}
	if p.scheduler != nil {
		if err := p.scheduler.Stop(ctx); err != nil {
			p.logger.Error("scheduler stop failed", "error", err)
		}
	}
	if p.gateway != nil {
		if err := p.gateway.Stop(ctx); err != nil {
			p.logger.Error("gateway stop failed", "error", err)
		}
	}
	if p.controller != nil {
		if err := p.controller.Stop(ctx); err != nil {
			p.logger.Error("queue stop failed", "error", err)
		}
	}
	p.Close()
}

// Close releases passive resources: the journal, the trace exporter, and
// the audit file. Safe to call on a partially built pipeline.
func (p *pipeline) Close() {
	if p.journal != nil {
		_ = p.journal.Close()
		p.journal = nil
	}
	if p.tracing != nil {
		_ = p.tracing.Shutdown(context.Background())
		p.tracing = nil
	}
	if p.auditFile != nil {
		_ = p.auditFile.Close()
		p.auditFile = nil
	}
}

// registerSecrets teaches the redactor every literal secret in the config.
func registerSecrets(r *security.Redactor, cfg *config.Config) {
	r.AddLiteral(cfg.Server.AdminToken)
	for _, secret := range cfg.Server.InboundSecrets {
		r.AddLiteral(secret)
	}
	r.AddLiteral(cfg.Forward.Token)
	r.AddLiteral(cfg.Summary.APIKey)
}

// buildSummarizer selects the summarizer behind the summarize drop policy.
func buildSummarizer(cfg config.SummaryConfig, logger *slog.Logger) queue.Summarizer {
	if cfg.Provider == "anthropic" {
		return summary.NewAnthropic(summary.Config{
			APIKey:   cfg.APIKey,
			BaseURL:  cfg.BaseURL,
			Model:    cfg.Model,
			MaxChars: cfg.MaxChars,
		}, logger)
	}
	return summary.NewTruncator(cfg.MaxChars)
}
