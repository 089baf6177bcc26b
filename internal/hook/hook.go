// Package hook provides the lifecycle event system for the intake pipeline.
// Components raise events at well-known keys ("message:flushed",
// "command:new"); subscribers attach handler functions to a key and are
// invoked in registration order. Handler failures are isolated: they are
// logged and retained for diagnostics, never propagated to the emitter.
package hook

import (
	"context"
	"time"

	"github.com/inletd/inlet/pkg/message"
)

// Event types raised by the intake core.
const (
	// TypeMessage covers per-message queue decisions.
	TypeMessage = "message"
	// TypeSession covers session lifecycle transitions.
	TypeSession = "session"
	// TypeCommand covers slash commands intercepted at the gateway.
	TypeCommand = "command"
)

// Actions raised under TypeMessage.
const (
	ActionQueued    = "queued"
	ActionFlushed   = "flushed"
	ActionDropped   = "dropped"
	ActionSteered   = "steered"
	ActionCollapsed = "collapsed"
)

// Actions raised under TypeSession.
const (
	ActionCreated = "created"
	ActionPruned  = "pruned"
)

// Event is an immutable record of something that happened in the pipeline.
// Emitters construct it once and hand the same pointer to every handler;
// handlers must not mutate it or the messages it references.
type Event struct {
	// Type is the event family ("message", "session", "command").
	Type string
	// Action refines the type ("flushed", "new"). May be empty for
	// events that have no sub-action.
	Action string
	// Session is the conversation the event belongs to.
	Session message.SessionKey
	// Timestamp is when the event was raised. The dispatcher stamps it
	// if the emitter left it zero.
	Timestamp time.Time
	// Messages carries the affected batch, when the event has one.
	Messages []*message.InboundMessage
	// Context carries event-specific details keyed by name.
	Context map[string]any
}

// Key returns the full "type:action" key, or just the type when the event
// has no action.
func (e *Event) Key() string {
	if e.Action == "" {
		return e.Type
	}
	return e.Type + ":" + e.Action
}

// HandlerFunc is a subscriber invoked for events matching its registration
// key. Returning an error marks the invocation failed; the dispatcher logs
// and records it but continues with the remaining handlers.
type HandlerFunc func(ctx context.Context, ev *Event) error
