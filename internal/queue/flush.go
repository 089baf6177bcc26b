package queue

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/inletd/inlet/internal/hook"
	"github.com/inletd/inlet/pkg/message"
)

// decideLocked routes one message through the session's mode. Caller holds
// the session lock.
func (c *Controller) decideLocked(ctx context.Context, sess *session, msg *message.InboundMessage, settings Settings) (Decision, []*hook.Event) {
	sess.mode = settings.Mode
	sess.debounce = settings.Debounce

	switch settings.Mode {
	case ModeInterrupt:
		return c.interruptLocked(ctx, sess, msg)
	case ModeSteer, ModeSteerBacklog:
		if sess.inFlight {
			if d, events, ok := c.steerLocked(ctx, sess, msg); ok {
				return d, events
			}
			if settings.Mode == ModeSteerBacklog {
				return c.backlogLocked(ctx, sess, msg, settings)
			}
		}
		return c.bufferLocked(ctx, sess, msg, settings)
	default:
		// Collect, followup, and queue all buffer behind the debounce
		// timer. Unknown modes buffer too rather than lose messages.
		return c.bufferLocked(ctx, sess, msg, settings)
	}
}

// bufferLocked appends msg to the pending buffer, applying the capacity
// policy first, then arms the debounce timer. Cap zero is the unbuffered
// passthrough described on Settings.
func (c *Controller) bufferLocked(ctx context.Context, sess *session, msg *message.InboundMessage, settings Settings) (Decision, []*hook.Event) {
	var events []*hook.Event

	if settings.Cap == 0 {
		if settings.DropPolicy == DropNew {
			sess.drops++
			events = append(events, c.droppedEvent(sess, []*message.InboundMessage{msg}, settings.DropPolicy))
			return Decision{Outcome: OutcomeDropped, Session: sess.key, Reason: ReasonCapacity}, events
		}
		sess.pending = append(sess.pending, msg)
		c.buffered.Add(1)
		if sess.inFlight {
			sess.flushOnIdle = true
			events = append(events, c.queuedEvent(sess, msg, len(sess.pending)))
			return Decision{Outcome: OutcomeQueued, Session: sess.key, Position: len(sess.pending)}, events
		}
		return c.flushPendingLocked(sess)
	}

	d := Decision{Outcome: OutcomeQueued, Session: sess.key}
	appendMsg := true

	if len(sess.pending) >= settings.Cap {
		switch settings.DropPolicy {
		case DropNew:
			sess.drops++
			events = append(events, c.droppedEvent(sess, []*message.InboundMessage{msg}, settings.DropPolicy))
			return Decision{Outcome: OutcomeDropped, Session: sess.key, Reason: ReasonCapacity}, events
		case DropSummarize:
			// A cap below two cannot hold a summary plus the new message,
			// so the new message is folded into the summary itself.
			fold := settings.Cap < 2
			if collapsed, evs, ok := c.collapse(ctx, sess, sess.pending, msg, fold); ok {
				c.buffered.Add(int64(len(collapsed) - len(sess.pending)))
				sess.pending = collapsed
				events = append(events, evs...)
				d.Collapsed = true
				appendMsg = !fold
				break
			}
			fallthrough
		case DropOld:
			excess := len(sess.pending) - settings.Cap + 1
			d.Evicted = slices.Clone(sess.pending[:excess])
			sess.pending = slices.Delete(sess.pending, 0, excess)
			sess.drops += uint64(excess)
			c.buffered.Add(-int64(excess))
			events = append(events, c.droppedEvent(sess, d.Evicted, DropOld))
		}
	}

	if appendMsg {
		sess.pending = append(sess.pending, msg)
		c.buffered.Add(1)
	}
	d.Position = len(sess.pending)

	if settings.Debounce <= 0 {
		if sess.inFlight {
			sess.flushOnIdle = true
			events = append(events, c.queuedEvent(sess, msg, d.Position))
			return d, events
		}
		fd, fevs := c.flushPendingLocked(sess)
		fd.Collapsed = d.Collapsed
		fd.Evicted = d.Evicted
		return fd, append(events, fevs...)
	}

	c.armLocked(sess, settings.Debounce)
	events = append(events, c.queuedEvent(sess, msg, d.Position))
	return d, events
}

// backlogLocked parks msg behind the in-flight run for steer-backlog
// sessions that could not steer. The backlog has no timer of its own; it
// re-enters the debounce cycle when the run completes.
func (c *Controller) backlogLocked(ctx context.Context, sess *session, msg *message.InboundMessage, settings Settings) (Decision, []*hook.Event) {
	var events []*hook.Event
	d := Decision{Outcome: OutcomeQueued, Session: sess.key}

	if settings.Cap > 0 && len(sess.backlog) >= settings.Cap {
		switch settings.DropPolicy {
		case DropNew:
			sess.drops++
			events = append(events, c.droppedEvent(sess, []*message.InboundMessage{msg}, settings.DropPolicy))
			return Decision{Outcome: OutcomeDropped, Session: sess.key, Reason: ReasonCapacity}, events
		case DropSummarize:
			fold := settings.Cap < 2
			if collapsed, evs, ok := c.collapse(ctx, sess, sess.backlog, msg, fold); ok {
				c.buffered.Add(int64(len(collapsed) - len(sess.backlog)))
				sess.backlog = collapsed
				events = append(events, evs...)
				d.Collapsed = true
				if fold {
					d.Position = len(sess.backlog)
					events = append(events, c.queuedEvent(sess, msg, d.Position))
					return d, events
				}
				break
			}
			fallthrough
		case DropOld:
			excess := len(sess.backlog) - settings.Cap + 1
			d.Evicted = slices.Clone(sess.backlog[:excess])
			sess.backlog = slices.Delete(sess.backlog, 0, excess)
			sess.drops += uint64(excess)
			c.buffered.Add(-int64(excess))
			events = append(events, c.droppedEvent(sess, d.Evicted, DropOld))
		}
	}

	sess.backlog = append(sess.backlog, msg)
	c.buffered.Add(1)
	d.Position = len(sess.backlog)
	events = append(events, c.queuedEvent(sess, msg, d.Position))
	return d, events
}

// steerLocked attempts to deliver msg into the session's in-flight run.
// The steerer's answer is authoritative; rejection or error reports not-ok
// so the caller can fall back to buffering.
func (c *Controller) steerLocked(ctx context.Context, sess *session, msg *message.InboundMessage) (Decision, []*hook.Event, bool) {
	if c.config.Steerer == nil {
		return Decision{}, nil, false
	}
	accepted, err := c.config.Steerer.Steer(ctx, sess.runID, []*message.InboundMessage{msg})
	if err != nil {
		c.logger.Warn("queue: steer failed, buffering instead",
			"session", sess.key.String(), "run_id", sess.runID, "error", err)
		return Decision{}, nil, false
	}
	if !accepted {
		return Decision{}, nil, false
	}
	ev := &hook.Event{
		Type:     hook.TypeMessage,
		Action:   hook.ActionSteered,
		Session:  sess.key,
		Messages: []*message.InboundMessage{msg},
		Context:  map[string]any{"run_id": sess.runID},
	}
	return Decision{Outcome: OutcomeSteered, Session: sess.key, RunID: sess.runID}, []*hook.Event{ev}, true
}

// interruptLocked preempts the session: idle sessions flush everything
// buffered plus msg as one batch; busy sessions get a cancel request for
// the current run and msg is parked as the next run, starting the moment
// the canceled run winds down.
func (c *Controller) interruptLocked(ctx context.Context, sess *session, msg *message.InboundMessage) (Decision, []*hook.Event) {
	if !sess.inFlight {
		sess.pending = append(sess.pending, msg)
		c.buffered.Add(1)
		return c.flushPendingLocked(sess)
	}

	if sess.next != nil {
		// A replacement run is already parked; coalesce into it.
		sess.next.Messages = append(sess.next.Messages, msg)
		return Decision{
			Outcome: OutcomeFlushed,
			Session: sess.key,
			RunID:   sess.next.ID,
			Batch:   slices.Clone(sess.next.Messages),
		}, nil
	}

	victim := sess.runID
	runID := newRunID()
	sess.next = &Run{ID: runID, Session: sess.key, Messages: []*message.InboundMessage{msg}}

	if c.config.Canceler == nil {
		c.logger.Warn("queue: interrupt without canceler, waiting for run to finish",
			"session", sess.key.String(), "run_id", victim)
	} else if err := c.config.Canceler.Cancel(ctx, victim); err != nil {
		c.logger.Warn("queue: cancel request failed",
			"session", sess.key.String(), "run_id", victim, "error", err)
	}

	return Decision{
		Outcome: OutcomeFlushed,
		Session: sess.key,
		RunID:   runID,
		Batch:   slices.Clone(sess.next.Messages),
	}, nil
}

// collapse summarizes buf, plus msg when fold is set, into a single
// synthetic message. Caller holds the session lock; the summarizer call
// rides inside it so the buffer cannot change underneath the summary.
func (c *Controller) collapse(ctx context.Context, sess *session, buf []*message.InboundMessage, msg *message.InboundMessage, fold bool) ([]*message.InboundMessage, []*hook.Event, bool) {
	if c.config.Summarizer == nil {
		return nil, nil, false
	}
	src := buf
	if fold {
		src = append(slices.Clone(buf), msg)
	}
	text, err := c.config.Summarizer.Summarize(ctx, src)
	if err != nil {
		c.logger.Warn("queue: summarize failed, evicting oldest instead",
			"session", sess.key.String(), "error", err)
		return nil, nil, false
	}
	summary := c.summaryMessage(sess.key, text)
	ev := &hook.Event{
		Type:     hook.TypeMessage,
		Action:   hook.ActionCollapsed,
		Session:  sess.key,
		Messages: []*message.InboundMessage{summary},
		Context:  map[string]any{"summarized": len(src)},
	}
	return []*message.InboundMessage{summary}, []*hook.Event{ev}, true
}

// summaryMessage builds the synthetic message that stands in for a
// collapsed buffer.
func (c *Controller) summaryMessage(key message.SessionKey, text string) *message.InboundMessage {
	return &message.InboundMessage{
		ID:        "summary-" + uuid.NewString()[:8],
		Timestamp: c.now(),
		Agent:     key.Agent,
		Channel:   key.Channel,
		Chat:      message.Chat{ID: key.ChatID},
		ThreadID:  key.ThreadID,
		Text:      text,
		Synthetic: true,
	}
}

// armLocked starts the debounce countdown, replacing any previous arm. The
// generation counter keeps a stopped timer's late fire from acting on the
// session.
func (c *Controller) armLocked(sess *session, d time.Duration) {
	sess.timerGen++
	gen := sess.timerGen
	if sess.timer != nil {
		sess.timer.Stop()
	}
	sess.timerArmed = true
	sess.timer = time.AfterFunc(d, func() { c.onTimer(sess, gen) })
}

// disarmLocked cancels any armed timer and clears the deferred-flush flag.
func (c *Controller) disarmLocked(sess *session) {
	sess.timerGen++
	if sess.timer != nil {
		sess.timer.Stop()
		sess.timer = nil
	}
	sess.timerArmed = false
	sess.flushOnIdle = false
}

// onTimer fires when a debounce window elapses without further activity.
func (c *Controller) onTimer(sess *session, gen uint64) {
	var events []*hook.Event

	sess.mu.Lock()
	if gen != sess.timerGen || c.stopped.Load() {
		sess.mu.Unlock()
		return
	}
	sess.timerArmed = false
	switch {
	case len(sess.pending) == 0:
	case sess.inFlight:
		// The window closed while a run is still out; release the batch
		// the moment it completes.
		sess.flushOnIdle = true
	default:
		_, events = c.flushPendingLocked(sess)
	}
	sess.mu.Unlock()

	ctx := c.runContext()
	for _, ev := range events {
		c.emit(ctx, ev)
	}
	c.config.Metrics.setBuffered(c.buffered.Load())
}

// flushPendingLocked drains the pending buffer and hands it off as one run.
func (c *Controller) flushPendingLocked(sess *session) (Decision, []*hook.Event) {
	c.disarmLocked(sess)
	batch := sess.pending
	sess.pending = nil
	c.buffered.Add(-int64(len(batch)))
	return c.handoffLocked(sess, batch, "")
}

// handoffLocked marks the session in flight and starts the downstream run.
// An empty runID mints a fresh one; interrupt batches arrive with the ID
// they were announced under.
func (c *Controller) handoffLocked(sess *session, batch []*message.InboundMessage, runID string) (Decision, []*hook.Event) {
	if runID == "" {
		runID = newRunID()
	}
	sess.inFlight = true
	sess.runID = runID
	sess.flushes++
	c.stats.flushed.Add(1)

	run := Run{ID: runID, Session: sess.key, Messages: batch}
	c.runs.Add(1)
	go c.runBatch(sess, run)

	d := Decision{Outcome: OutcomeFlushed, Session: sess.key, RunID: runID, Batch: batch}
	ev := &hook.Event{
		Type:     hook.TypeMessage,
		Action:   hook.ActionFlushed,
		Session:  sess.key,
		Messages: batch,
		Context:  map[string]any{"run_id": runID, "count": len(batch)},
	}
	return d, []*hook.Event{ev}
}

// runBatch executes one downstream run and then releases the session,
// whatever the outcome. It runs on its own goroutine.
func (c *Controller) runBatch(sess *session, run Run) {
	defer c.runs.Done()
	ctx := c.runContext()

	var span trace.Span
	if c.config.Tracer != nil {
		ctx, span = c.config.Tracer.Start(ctx, "queue.flush", trace.WithAttributes(
			attribute.String("queue.session", run.Session.String()),
			attribute.String("queue.run_id", run.ID),
			attribute.Int("queue.batch_size", len(run.Messages)),
		))
	}

	start := c.now()
	err := c.process(ctx, run)
	c.config.Metrics.observeFlush(c.now().Sub(start))
	c.stats.runs.Add(1)
	if err != nil {
		c.stats.runErrors.Add(1)
		c.config.Metrics.runFailure()
		c.logger.Error("queue: downstream processor failed",
			"session", run.Session.String(), "run_id", run.ID, "error", err)
		if span != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}
	if span != nil {
		span.End()
	}

	c.complete(sess, run.ID)
}

// process invokes the downstream processor, converting a panic into an
// error so a misbehaving processor cannot wedge the session in flight.
func (c *Controller) process(ctx context.Context, run Run) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("queue: processor panic: %v", r)
		}
	}()
	return c.config.Processor.Process(ctx, run)
}

// complete releases the session after a run and decides what ships next:
// a parked interrupt batch starts immediately, a deferred flush drains the
// buffer, and a steer backlog re-enters the debounce cycle.
func (c *Controller) complete(sess *session, runID string) {
	if c.stopped.Load() {
		sess.mu.Lock()
		sess.inFlight = false
		sess.runID = ""
		sess.mu.Unlock()
		return
	}

	var events []*hook.Event

	sess.mu.Lock()
	sess.inFlight = false
	sess.runID = ""
	switch {
	case sess.next != nil:
		run := sess.next
		sess.next = nil
		_, events = c.handoffLocked(sess, run.Messages, run.ID)
	case sess.flushOnIdle && sess.bufferedLocked() > 0:
		sess.flushOnIdle = false
		if len(sess.backlog) > 0 {
			sess.pending = append(sess.pending, sess.backlog...)
			sess.backlog = nil
		}
		_, events = c.flushPendingLocked(sess)
	case len(sess.backlog) > 0:
		sess.flushOnIdle = false
		sess.pending = append(sess.pending, sess.backlog...)
		sess.backlog = nil
		if sess.debounce > 0 {
			c.armLocked(sess, sess.debounce)
		} else {
			_, events = c.flushPendingLocked(sess)
		}
	default:
		sess.flushOnIdle = false
	}
	sess.mu.Unlock()

	c.logger.Debug("queue: run complete", "session", sess.key.String(), "run_id", runID)

	ctx := c.runContext()
	for _, ev := range events {
		c.emit(ctx, ev)
	}
	c.config.Metrics.setBuffered(c.buffered.Load())
}

// queuedEvent builds the hook event for a message accepted into a buffer.
func (c *Controller) queuedEvent(sess *session, msg *message.InboundMessage, position int) *hook.Event {
	return &hook.Event{
		Type:     hook.TypeMessage,
		Action:   hook.ActionQueued,
		Session:  sess.key,
		Messages: []*message.InboundMessage{msg},
		Context:  map[string]any{"position": position},
	}
}

// droppedEvent builds the hook event for messages discarded by a capacity
// policy.
func (c *Controller) droppedEvent(sess *session, msgs []*message.InboundMessage, policy DropPolicy) *hook.Event {
	return &hook.Event{
		Type:     hook.TypeMessage,
		Action:   hook.ActionDropped,
		Session:  sess.key,
		Messages: msgs,
		Context:  map[string]any{"reason": ReasonCapacity, "policy": string(policy)},
	}
}

func newRunID() string {
	return "run-" + uuid.NewString()[:8]
}
