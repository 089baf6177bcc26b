package queue

import (
	"context"

	"github.com/inletd/inlet/pkg/message"
)

// Run is one flushed batch handed to the downstream processor.
type Run struct {
	// ID uniquely identifies the run for steering and cancellation.
	ID string
	// Session is the conversation the batch belongs to.
	Session message.SessionKey
	// Messages is the batch, in submission order.
	Messages []*message.InboundMessage
}

// Processor executes a flushed batch downstream. Process blocks until the
// run completes; its return marks the session idle again. The controller's
// responsibility ends at the call: errors are logged, never retried.
type Processor interface {
	Process(ctx context.Context, run Run) error
}

// ProcessorFunc adapts a function to the Processor interface.
type ProcessorFunc func(ctx context.Context, run Run) error

// Process implements Processor.
func (f ProcessorFunc) Process(ctx context.Context, run Run) error { return f(ctx, run) }

// Steerer delivers additional messages into a run that is already
// executing. The accepted return is authoritative: false means the run can
// no longer take input (completed, or completing concurrently with the
// call) and the controller falls back to buffering.
type Steerer interface {
	Steer(ctx context.Context, runID string, msgs []*message.InboundMessage) (accepted bool, err error)
}

// Canceler requests cancellation of an in-flight run. The request is
// best-effort: the run still terminates through its normal Process return,
// which is what clears the session's in-flight state.
type Canceler interface {
	Cancel(ctx context.Context, runID string) error
}

// Summarizer collapses buffered messages into one line of text when the
// summarize drop policy fires.
type Summarizer interface {
	Summarize(ctx context.Context, msgs []*message.InboundMessage) (string, error)
}
