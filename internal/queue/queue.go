package queue

import (
	"context"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/inletd/inlet/internal/hook"
	"github.com/inletd/inlet/pkg/message"
)

const defaultMaxIdle = 30 * time.Minute

// Config holds the configuration for a Controller.
type Config struct {
	// Processor receives flushed batches. Required.
	Processor Processor

	// Steerer delivers messages into in-flight runs for the steer modes.
	// Nil means steer attempts always fall back to buffering.
	Steerer Steerer

	// Canceler receives interrupt-mode cancellation requests. Nil means
	// the preemption signal is skipped; the interrupt batch still
	// flushes once the current run completes.
	Canceler Canceler

	// Summarizer collapses buffers for the summarize drop policy. Nil
	// means summarize falls back to evicting oldest.
	Summarizer Summarizer

	// Resolver supplies per-channel settings. Nil means built-in
	// defaults for every channel.
	Resolver *Resolver

	// Hooks receives lifecycle events. Nil means no events are raised.
	Hooks *hook.Dispatcher

	// Metrics receives controller measurements. Nil means unmetered.
	Metrics *Metrics

	// Tracer wraps downstream runs in spans. Nil means untraced.
	Tracer trace.Tracer

	// MaxIdle is how long an empty, idle session survives before
	// pruning. Zero means 30 minutes.
	MaxIdle time.Duration

	// PruneInterval rate-limits the opportunistic pruning done on the
	// submit path. Zero means 5 minutes.
	PruneInterval time.Duration

	Logger *slog.Logger
}

// withDefaults returns a copy of the config with zero values replaced by
// defaults.
func (c Config) withDefaults() Config {
	if c.MaxIdle <= 0 {
		c.MaxIdle = defaultMaxIdle
	}
	if c.PruneInterval <= 0 {
		c.PruneInterval = defaultPruneInterval
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}

// Controller owns the per-session queue state machines. It decides, for
// every inbound message, whether to buffer, flush, drop, or steer, arms the
// debounce timers, and hands released batches to the downstream processor
// while tracking the in-flight run per session.
type Controller struct {
	config   Config
	store    *store
	resolver atomic.Pointer[Resolver]
	pruner   *lazyPruner
	logger   *slog.Logger

	lifeMu  sync.RWMutex
	runCtx  context.Context
	cancel  context.CancelFunc
	runs    sync.WaitGroup
	stopped atomic.Bool

	stopOnce sync.Once

	buffered atomic.Int64
	stats    statCounters

	// now is injectable for deterministic tests.
	now func() time.Time
}

type statCounters struct {
	queued    atomic.Uint64
	flushed   atomic.Uint64
	dropped   atomic.Uint64
	steered   atomic.Uint64
	collapsed atomic.Uint64
	evicted   atomic.Uint64
	runs      atomic.Uint64
	runErrors atomic.Uint64
}

// Stats is a point-in-time view of controller activity. Counter fields are
// cumulative since startup.
type Stats struct {
	Sessions  int    `json:"sessions"`
	Buffered  int64  `json:"buffered"`
	InFlight  int    `json:"in_flight"`
	Queued    uint64 `json:"queued"`
	Flushed   uint64 `json:"flushed"`
	Dropped   uint64 `json:"dropped"`
	Steered   uint64 `json:"steered"`
	Collapsed uint64 `json:"collapsed"`
	Evicted   uint64 `json:"evicted"`
	Runs      uint64 `json:"runs"`
	RunErrors uint64 `json:"run_errors"`
}

// New creates a Controller with the given configuration.
func New(cfg Config) (*Controller, error) {
	cfg = cfg.withDefaults()
	if cfg.Processor == nil {
		return nil, ErrNoProcessor
	}

	c := &Controller{
		config: cfg,
		store:  newStore(),
		pruner: newLazyPruner(cfg.PruneInterval),
		logger: cfg.Logger,
		now:    time.Now,
	}
	c.resolver.Store(cfg.Resolver)
	return c, nil
}

// Start binds the context that bounds downstream runs. Call it once before
// the first submission; canceling ctx (or calling Stop) aborts in-flight
// runs.
func (c *Controller) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	c.lifeMu.Lock()
	c.runCtx = ctx
	c.cancel = cancel
	c.lifeMu.Unlock()
	c.logger.Info("queue: controller started")
}

// runContext returns the context downstream runs execute under.
func (c *Controller) runContext() context.Context {
	c.lifeMu.RLock()
	defer c.lifeMu.RUnlock()
	if c.runCtx == nil {
		return context.Background()
	}
	return c.runCtx
}

// Stop shuts the controller down: new submissions fail with ErrStopped,
// armed timers are discarded, in-flight runs are canceled and then awaited
// until ctx expires. Messages still buffered at stop are abandoned; they
// were acknowledged as queued, which is the inherent cost of process
// shutdown.
func (c *Controller) Stop(ctx context.Context) error {
	var err error
	c.stopOnce.Do(func() {
		c.logger.Info("queue: stopping")
		c.stopped.Store(true)

		for _, sess := range c.store.all() {
			sess.mu.Lock()
			c.disarmLocked(sess)
			sess.mu.Unlock()
		}

		c.lifeMu.RLock()
		cancel := c.cancel
		c.lifeMu.RUnlock()
		// Cancel before waiting so in-flight runs can terminate.
		if cancel != nil {
			cancel()
		}

		done := make(chan struct{})
		go func() {
			c.runs.Wait()
			close(done)
		}()
		select {
		case <-done:
			c.logger.Info("queue: stopped")
		case <-ctx.Done():
			err = ctx.Err()
			c.logger.Warn("queue: stop timed out waiting for runs", "error", err)
		}
	})
	return err
}

// UpdateResolver swaps the settings resolver. Safe to call at any time;
// submissions in progress keep the resolver they already read.
func (c *Controller) UpdateResolver(r *Resolver) {
	c.resolver.Store(r)
	c.logger.Info("queue: settings resolver updated")
}

// Submit routes one inbound message through its session's queue state
// machine and returns the resulting decision. Drops are reported in the
// decision, not as errors; the error return covers lifecycle problems only.
func (c *Controller) Submit(ctx context.Context, msg *message.InboundMessage) (Decision, error) {
	if c.stopped.Load() {
		return Decision{}, ErrStopped
	}
	if msg == nil {
		return Decision{}, ErrNilMessage
	}

	key := message.KeyOf(msg)
	settings := c.resolver.Load().For(key.Channel)

	sess, created := c.store.getOrCreate(key)
	if created {
		c.config.Metrics.setSessions(c.store.len())
		c.logger.Debug("queue: session created", "session", key.String())
		c.emit(ctx, &hook.Event{
			Type:    hook.TypeSession,
			Action:  hook.ActionCreated,
			Session: key,
		})
	}
	if c.pruner.due() {
		c.Prune(ctx)
	}

	sess.mu.Lock()
	sess.lastActiveAt = c.now()
	d, events := c.decideLocked(ctx, sess, msg, settings)
	sess.mu.Unlock()

	for _, ev := range events {
		c.emit(ctx, ev)
	}
	c.count(d)
	c.config.Metrics.setBuffered(c.buffered.Load())
	return d, nil
}

// Flush forces the session's buffered messages out immediately, bypassing
// the debounce timer. Backlog is merged in so a forced flush releases
// everything. While a run is in flight the flush is deferred to its
// completion and the decision reports the messages as still queued.
func (c *Controller) Flush(ctx context.Context, key message.SessionKey) (Decision, error) {
	if c.stopped.Load() {
		return Decision{}, ErrStopped
	}
	sess := c.store.get(key)
	if sess == nil {
		return Decision{}, ErrSessionNotFound
	}

	sess.mu.Lock()
	if len(sess.backlog) > 0 {
		sess.pending = append(sess.pending, sess.backlog...)
		sess.backlog = nil
	}
	if len(sess.pending) == 0 {
		sess.mu.Unlock()
		return Decision{}, ErrNothingBuffered
	}
	if sess.inFlight {
		sess.flushOnIdle = true
		n := len(sess.pending)
		sess.mu.Unlock()
		c.logger.Debug("queue: flush deferred until run completes", "session", key.String())
		return Decision{Outcome: OutcomeQueued, Session: key, Position: n}, nil
	}
	d, events := c.flushPendingLocked(sess)
	sess.mu.Unlock()

	for _, ev := range events {
		c.emit(ctx, ev)
	}
	c.config.Metrics.setBuffered(c.buffered.Load())
	return d, nil
}

// Reset discards the session's buffered state: pending, backlog, parked
// interrupt batch, and any armed timer. An in-flight run is left to finish;
// Reset clears what has not shipped yet. It returns the number of messages
// discarded.
func (c *Controller) Reset(key message.SessionKey) (int, error) {
	sess := c.store.get(key)
	if sess == nil {
		return 0, ErrSessionNotFound
	}

	sess.mu.Lock()
	n := sess.bufferedLocked()
	if sess.next != nil {
		n += len(sess.next.Messages)
	}
	c.buffered.Add(-int64(sess.bufferedLocked()))
	sess.pending = nil
	sess.backlog = nil
	sess.next = nil
	c.disarmLocked(sess)
	sess.mu.Unlock()

	c.config.Metrics.setBuffered(c.buffered.Load())
	if n > 0 {
		c.logger.Debug("queue: session reset", "session", key.String(), "discarded", n)
	}
	return n, nil
}

// Prune removes sessions that are empty, idle, and inactive beyond the
// configured MaxIdle, raising a session:pruned event for each. It returns
// the number pruned.
func (c *Controller) Prune(ctx context.Context) int {
	pruned := c.store.prune(c.config.MaxIdle)
	for _, sess := range pruned {
		c.emit(ctx, &hook.Event{
			Type:    hook.TypeSession,
			Action:  hook.ActionPruned,
			Session: sess.key,
		})
	}
	if len(pruned) > 0 {
		c.config.Metrics.setSessions(c.store.len())
		c.logger.Debug("queue: sessions pruned", "count", len(pruned))
	}
	return len(pruned)
}

// Session returns a snapshot of one session's queue state, reporting
// whether the session exists.
func (c *Controller) Session(key message.SessionKey) (SessionInfo, bool) {
	sess := c.store.get(key)
	if sess == nil {
		return SessionInfo{}, false
	}
	return sess.snapshot(), true
}

// Sessions returns snapshots of the live sessions, ordered by key.
func (c *Controller) Sessions() []SessionInfo {
	sessions := c.store.all()
	infos := make([]SessionInfo, 0, len(sessions))
	for _, sess := range sessions {
		infos = append(infos, sess.snapshot())
	}
	slices.SortFunc(infos, func(a, b SessionInfo) int {
		return strings.Compare(a.Session, b.Session)
	})
	return infos
}

// Stats returns a point-in-time view of controller activity.
func (c *Controller) Stats() Stats {
	inFlight := 0
	for _, sess := range c.store.all() {
		sess.mu.Lock()
		if sess.inFlight {
			inFlight++
		}
		sess.mu.Unlock()
	}
	return Stats{
		Sessions:  c.store.len(),
		Buffered:  c.buffered.Load(),
		InFlight:  inFlight,
		Queued:    c.stats.queued.Load(),
		Flushed:   c.stats.flushed.Load(),
		Dropped:   c.stats.dropped.Load(),
		Steered:   c.stats.steered.Load(),
		Collapsed: c.stats.collapsed.Load(),
		Evicted:   c.stats.evicted.Load(),
		Runs:      c.stats.runs.Load(),
		RunErrors: c.stats.runErrors.Load(),
	}
}

// emit delivers a hook event if a dispatcher is configured.
func (c *Controller) emit(ctx context.Context, ev *hook.Event) {
	if c.config.Hooks == nil || ev == nil {
		return
	}
	c.config.Hooks.Trigger(ctx, ev)
}

// count updates decision counters and metrics for one submission.
func (c *Controller) count(d Decision) {
	c.config.Metrics.decision(d.Outcome)
	switch d.Outcome {
	case OutcomeQueued:
		c.stats.queued.Add(1)
	case OutcomeDropped:
		c.stats.dropped.Add(1)
	case OutcomeSteered:
		c.stats.steered.Add(1)
	case OutcomeFlushed:
		// Flush batches are counted where they are released.
	}
	if len(d.Evicted) > 0 {
		c.stats.evicted.Add(uint64(len(d.Evicted)))
		c.config.Metrics.evict(len(d.Evicted))
	}
	if d.Collapsed {
		c.stats.collapsed.Add(1)
	}
}
