package hook

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// failureCap bounds the diagnostics ring. Older failures are overwritten.
const failureCap = 64

// Failure is one recorded handler error, kept for diagnostics.
type Failure struct {
	Time  time.Time `json:"time"`
	Key   string    `json:"key"`
	Error string    `json:"error"`
}

// Dispatcher manages handler registration and event delivery.
// Handlers are grouped by key; delivery resolves the specific "type:action"
// list before the general "type" list, each in registration order.
// Thread-safe: registrations use a write lock, triggers use a read lock.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[string][]HandlerFunc

	logger *slog.Logger
	now    func() time.Time

	// failures is a fixed-size ring of recent handler errors.
	fmu      sync.Mutex
	failures []Failure
	fnext    int
	ftotal   uint64
}

// NewDispatcher creates an empty dispatcher.
func NewDispatcher(logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		handlers: make(map[string][]HandlerFunc),
		logger:   logger,
		now:      time.Now,
		failures: make([]Failure, 0, failureCap),
	}
}

// Register appends fn to the handler list for key. The same function may be
// registered more than once; it will run once per registration. There is no
// priority: within a key, registration order is execution order.
func (d *Dispatcher) Register(key string, fn HandlerFunc) {
	if fn == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[key] = append(d.handlers[key], fn)
}

// Registered returns the total number of registered handlers.
func (d *Dispatcher) Registered() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	n := 0
	for _, hs := range d.handlers {
		n += len(hs)
	}
	return n
}

// Clear removes every registered handler. A trigger already in progress
// keeps the handler list it resolved at dispatch time.
func (d *Dispatcher) Clear() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers = make(map[string][]HandlerFunc)
}

// Trigger delivers ev to all matching handlers, sequentially: first the
// handlers registered for the full "type:action" key, then those registered
// for the bare type, each group in registration order. The handler list is
// resolved once at call time. A handler error or panic is logged and
// recorded but never stops the remaining handlers or reaches the caller.
// Events with no matching handlers return immediately.
func (d *Dispatcher) Trigger(ctx context.Context, ev *Event) {
	if ev == nil {
		return
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = d.now()
	}

	d.mu.RLock()
	var run []HandlerFunc
	if ev.Action != "" {
		run = append(run, d.handlers[ev.Key()]...)
	}
	run = append(run, d.handlers[ev.Type]...)
	d.mu.RUnlock()

	if len(run) == 0 {
		return
	}

	for i, fn := range run {
		if err := d.invoke(ctx, fn, ev); err != nil {
			d.logger.Warn("hook: handler failed",
				"key", ev.Key(),
				"handler", i,
				"error", err,
			)
			d.record(Failure{Time: d.now(), Key: ev.Key(), Error: err.Error()})
		}
	}
}

// invoke runs a single handler, converting panics into errors so that one
// misbehaving subscriber cannot take down the emitter.
func (d *Dispatcher) invoke(ctx context.Context, fn HandlerFunc, ev *Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return fn(ctx, ev)
}

func (d *Dispatcher) record(f Failure) {
	d.fmu.Lock()
	defer d.fmu.Unlock()
	d.ftotal++
	if len(d.failures) < failureCap {
		d.failures = append(d.failures, f)
		return
	}
	d.failures[d.fnext] = f
	d.fnext = (d.fnext + 1) % failureCap
}

// Failures returns recent handler failures, oldest first, plus the total
// failure count since startup (which may exceed the retained window).
func (d *Dispatcher) Failures() ([]Failure, uint64) {
	d.fmu.Lock()
	defer d.fmu.Unlock()
	out := make([]Failure, 0, len(d.failures))
	out = append(out, d.failures[d.fnext:]...)
	out = append(out, d.failures[:d.fnext]...)
	return out, d.ftotal
}
