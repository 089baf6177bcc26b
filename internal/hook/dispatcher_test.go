package hook

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/inletd/inlet/pkg/message"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

func testEvent(typ, action string) *Event {
	return &Event{
		Type:    typ,
		Action:  action,
		Session: message.SessionKey{Agent: "default", Channel: "telegram", ChatID: "42"},
	}
}

func TestDispatcher_Trigger_RegistrationOrder(t *testing.T) {
	t.Parallel()

	d := NewDispatcher(testLogger())

	var order []string
	record := func(name string) HandlerFunc {
		return func(_ context.Context, _ *Event) error {
			order = append(order, name)
			return nil
		}
	}

	d.Register("message:flushed", record("first"))
	d.Register("message:flushed", record("second"))
	d.Register("message:flushed", record("third"))

	d.Trigger(context.Background(), testEvent(TypeMessage, ActionFlushed))

	if len(order) != 3 {
		t.Fatalf("expected 3 handlers to run, got %d", len(order))
	}
	if order[0] != "first" || order[1] != "second" || order[2] != "third" {
		t.Errorf("execution order = %v, want [first second third]", order)
	}
}

func TestDispatcher_Trigger_SpecificBeforeGeneral(t *testing.T) {
	t.Parallel()

	d := NewDispatcher(testLogger())

	// The general handler is registered first, yet the specific one must
	// run first; its failure must not block the general handler.
	var order []string
	d.Register("command", func(_ context.Context, _ *Event) error {
		order = append(order, "general")
		return nil
	})
	d.Register("command:new", func(_ context.Context, _ *Event) error {
		order = append(order, "specific")
		return errors.New("specific handler failed")
	})

	d.Trigger(context.Background(), testEvent(TypeCommand, "new"))

	if len(order) != 2 {
		t.Fatalf("expected 2 handlers to run, got %d: %v", len(order), order)
	}
	if order[0] != "specific" || order[1] != "general" {
		t.Errorf("execution order = %v, want [specific general]", order)
	}
}

func TestDispatcher_Trigger_NoHandlers(t *testing.T) {
	t.Parallel()

	d := NewDispatcher(testLogger())

	// No registrations at all, and a type with registrations elsewhere.
	d.Register("session:created", func(_ context.Context, _ *Event) error { return nil })

	d.Trigger(context.Background(), testEvent(TypeMessage, ActionQueued))

	if _, total := d.Failures(); total != 0 {
		t.Errorf("failures total = %d, want 0", total)
	}
}

func TestDispatcher_Trigger_ActionDoesNotLeakAcrossKeys(t *testing.T) {
	t.Parallel()

	d := NewDispatcher(testLogger())

	var flushed, queued int
	d.Register("message:flushed", func(_ context.Context, _ *Event) error {
		flushed++
		return nil
	})
	d.Register("message:queued", func(_ context.Context, _ *Event) error {
		queued++
		return nil
	})

	d.Trigger(context.Background(), testEvent(TypeMessage, ActionQueued))

	if flushed != 0 {
		t.Errorf("message:flushed handler ran %d times for a queued event", flushed)
	}
	if queued != 1 {
		t.Errorf("message:queued handler ran %d times, want 1", queued)
	}
}

func TestDispatcher_Trigger_DuplicateRegistrationRunsTwice(t *testing.T) {
	t.Parallel()

	d := NewDispatcher(testLogger())

	calls := 0
	fn := func(_ context.Context, _ *Event) error {
		calls++
		return nil
	}
	d.Register("message", fn)
	d.Register("message", fn)

	d.Trigger(context.Background(), testEvent(TypeMessage, ActionQueued))

	if calls != 2 {
		t.Errorf("handler ran %d times, want 2", calls)
	}
}

func TestDispatcher_Trigger_PanicIsolated(t *testing.T) {
	t.Parallel()

	d := NewDispatcher(testLogger())

	var secondCalled bool
	d.Register("message:dropped", func(_ context.Context, _ *Event) error {
		panic("boom")
	})
	d.Register("message:dropped", func(_ context.Context, _ *Event) error {
		secondCalled = true
		return nil
	})

	d.Trigger(context.Background(), testEvent(TypeMessage, ActionDropped))

	if !secondCalled {
		t.Error("second handler should have run despite the panic")
	}
	failures, total := d.Failures()
	if total != 1 || len(failures) != 1 {
		t.Fatalf("failures = %d (total %d), want 1", len(failures), total)
	}
	if failures[0].Key != "message:dropped" {
		t.Errorf("failure key = %q, want %q", failures[0].Key, "message:dropped")
	}
}

func TestDispatcher_Trigger_StampsZeroTimestamp(t *testing.T) {
	t.Parallel()

	d := NewDispatcher(testLogger())
	fixed := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	d.now = func() time.Time { return fixed }

	var got time.Time
	d.Register("session:created", func(_ context.Context, ev *Event) error {
		got = ev.Timestamp
		return nil
	})

	d.Trigger(context.Background(), testEvent(TypeSession, ActionCreated))

	if !got.Equal(fixed) {
		t.Errorf("event timestamp = %v, want %v", got, fixed)
	}
}

func TestDispatcher_Clear(t *testing.T) {
	t.Parallel()

	d := NewDispatcher(testLogger())

	called := false
	d.Register("message", func(_ context.Context, _ *Event) error {
		called = true
		return nil
	})
	if d.Registered() != 1 {
		t.Fatalf("Registered() = %d, want 1", d.Registered())
	}

	d.Clear()

	if d.Registered() != 0 {
		t.Errorf("Registered() after Clear = %d, want 0", d.Registered())
	}
	d.Trigger(context.Background(), testEvent(TypeMessage, ActionQueued))
	if called {
		t.Error("handler ran after Clear")
	}
}

func TestDispatcher_FailureRingBounded(t *testing.T) {
	t.Parallel()

	d := NewDispatcher(testLogger())

	i := 0
	d.Register("message", func(_ context.Context, _ *Event) error {
		i++
		return fmt.Errorf("failure %d", i)
	})

	for range failureCap + 10 {
		d.Trigger(context.Background(), testEvent(TypeMessage, ActionQueued))
	}

	failures, total := d.Failures()
	if total != uint64(failureCap+10) {
		t.Errorf("total = %d, want %d", total, failureCap+10)
	}
	if len(failures) != failureCap {
		t.Fatalf("retained = %d, want %d", len(failures), failureCap)
	}
	// Oldest retained entry is the 11th failure.
	if want := "failure 11"; failures[0].Error != want {
		t.Errorf("oldest retained = %q, want %q", failures[0].Error, want)
	}
	if want := fmt.Sprintf("failure %d", failureCap+10); failures[len(failures)-1].Error != want {
		t.Errorf("newest retained = %q, want %q", failures[len(failures)-1].Error, want)
	}
}

func TestEvent_Key(t *testing.T) {
	t.Parallel()

	ev := &Event{Type: TypeMessage, Action: ActionFlushed}
	if got, want := ev.Key(), "message:flushed"; got != want {
		t.Errorf("Key() = %q, want %q", got, want)
	}
	ev.Action = ""
	if got, want := ev.Key(), "message"; got != want {
		t.Errorf("Key() = %q, want %q", got, want)
	}
}
