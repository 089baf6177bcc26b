package reload

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/singleflight"

	"github.com/inletd/inlet/internal/config"
	"github.com/inletd/inlet/internal/queue"
)

// ResolverSwapper is the subset of the queue controller the applier needs.
type ResolverSwapper interface {
	UpdateResolver(r *queue.Resolver)
}

// Applier turns a changed config file into a live settings swap.
type Applier struct {
	queue  ResolverSwapper
	logger *slog.Logger

	// group coalesces concurrent reload triggers (SIGHUP, file watch,
	// admin endpoint) into a single load + validate + swap.
	group singleflight.Group
}

// NewApplier creates an applier that updates the given controller.
func NewApplier(ctrl ResolverSwapper, logger *slog.Logger) *Applier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Applier{queue: ctrl, logger: logger}
}

// Apply loads a fresh config from disk, validates it, and swaps the queue
// resolver. A file that fails to load or validate leaves the running
// settings untouched. Concurrent calls for the same path share one reload.
func (a *Applier) Apply(ctx context.Context, path string) error {
	_, err, _ := a.group.Do(path, func() (any, error) {
		cfg, err := config.Load(path)
		if err != nil {
			return nil, fmt.Errorf("loading config: %w", err)
		}
		if err := config.Validate(cfg); err != nil {
			return nil, fmt.Errorf("validating config: %w", err)
		}
		return nil, a.ApplyConfig(ctx, cfg)
	})
	return err
}

// ApplyConfig swaps the queue resolver from a pre-loaded, already-validated
// config.
func (a *Applier) ApplyConfig(ctx context.Context, cfg *config.Config) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled before reload: %w", err)
	}

	a.queue.UpdateResolver(cfg.QueueResolver())
	a.logger.Info("reload: queue settings applied",
		"channels", len(cfg.Queue.Channels),
	)
	return nil
}
