// Package queue implements the inbound queue controller: per-session
// message buffers with debounce timers, queue-mode policies governing how
// new messages interact with in-flight processing, and capacity enforcement
// with drop policies.
package queue

import "errors"

// Sentinel errors for controller operations.
var (
	// ErrStopped indicates the controller has been shut down and is no
	// longer accepting messages.
	ErrStopped = errors.New("queue: controller stopped")

	// ErrNoProcessor indicates no downstream processor has been
	// configured. The controller cannot release batches without one.
	ErrNoProcessor = errors.New("queue: no processor configured")

	// ErrNilMessage indicates a nil message was submitted.
	ErrNilMessage = errors.New("queue: nil message")

	// ErrSessionNotFound indicates the session key has no queue state.
	ErrSessionNotFound = errors.New("queue: session not found")

	// ErrNothingBuffered indicates a forced flush found no pending
	// messages to release.
	ErrNothingBuffered = errors.New("queue: nothing buffered")
)
