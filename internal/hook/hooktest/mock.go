// Package hooktest provides test doubles for the hook package.
package hooktest

import (
	"context"
	"sync"

	"github.com/inletd/inlet/internal/hook"
)

// Recorder captures every event delivered to it, for assertions in tests.
// Register its Handle method on the keys under test.
type Recorder struct {
	// Err, when non-nil, is returned from every Handle call.
	Err error

	mu     sync.Mutex
	events []hook.Event
}

// Handle implements hook.HandlerFunc. It stores a shallow copy of the event.
func (r *Recorder) Handle(_ context.Context, ev *hook.Event) error {
	r.mu.Lock()
	r.events = append(r.events, *ev)
	r.mu.Unlock()
	return r.Err
}

// Events returns the recorded events in delivery order.
func (r *Recorder) Events() []hook.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]hook.Event, len(r.events))
	copy(out, r.events)
	return out
}

// Keys returns the Key() of each recorded event, in delivery order.
func (r *Recorder) Keys() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	keys := make([]string, len(r.events))
	for i := range r.events {
		keys[i] = r.events[i].Key()
	}
	return keys
}

// Count returns the number of recorded events.
func (r *Recorder) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

// Last returns the most recent event and true, or a zero event and false
// when nothing was recorded.
func (r *Recorder) Last() (hook.Event, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.events) == 0 {
		return hook.Event{}, false
	}
	return r.events[len(r.events)-1], true
}
