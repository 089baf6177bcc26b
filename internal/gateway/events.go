package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/inletd/inlet/internal/hook"
)

// subscriberBuffer is the per-subscriber channel depth. A subscriber that
// falls this far behind starts losing events rather than slowing the
// pipeline.
const subscriberBuffer = 32

// eventHub fans queue lifecycle events out to websocket subscribers.
// Publishing never blocks: slow subscribers drop events.
type eventHub struct {
	mu     sync.Mutex
	subs   map[chan []byte]struct{}
	closed bool
}

func newEventHub() *eventHub {
	return &eventHub{subs: make(map[chan []byte]struct{})}
}

// subscribe registers a new subscriber channel. After close it returns a
// channel that is already closed, so readers exit immediately.
func (h *eventHub) subscribe() chan []byte {
	ch := make(chan []byte, subscriberBuffer)
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(ch)
		return ch
	}
	h.subs[ch] = struct{}{}
	return ch
}

func (h *eventHub) unsubscribe(ch chan []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[ch]; ok {
		delete(h.subs, ch)
		close(ch)
	}
}

// publish delivers data to every subscriber that has buffer room.
func (h *eventHub) publish(data []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	for ch := range h.subs {
		select {
		case ch <- data:
		default:
		}
	}
}

// close shuts the hub down and releases every subscriber.
func (h *eventHub) close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for ch := range h.subs {
		close(ch)
	}
	h.subs = make(map[chan []byte]struct{})
}

// wireEvent is the JSON shape events take on the stream. Message bodies
// are reduced to a count; subscribers needing content use the journal.
type wireEvent struct {
	Type      string         `json:"type"`
	Action    string         `json:"action,omitempty"`
	Session   string         `json:"session"`
	Timestamp time.Time      `json:"timestamp"`
	Messages  int            `json:"messages,omitempty"`
	Context   map[string]any `json:"context,omitempty"`
}

// EventHandler returns a hook handler that forwards every event onto the
// websocket stream. Register it for the event types the stream should
// carry.
func (g *Gateway) EventHandler() hook.HandlerFunc {
	return func(_ context.Context, ev *hook.Event) error {
		data, err := json.Marshal(wireEvent{
			Type:      ev.Type,
			Action:    ev.Action,
			Session:   ev.Session.String(),
			Timestamp: ev.Timestamp,
			Messages:  len(ev.Messages),
			Context:   ev.Context,
		})
		if err != nil {
			return err
		}
		g.hub.publish(data)
		return nil
	}
}

// handleEvents upgrades the connection to a websocket and streams queue
// lifecycle events until the client disconnects or the gateway stops.
func (g *Gateway) handleEvents() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// Lift the server write deadline: this connection is long-lived.
		rc := http.NewResponseController(w)
		_ = rc.SetReadDeadline(time.Time{})
		_ = rc.SetWriteDeadline(time.Time{})

		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			g.logger.Error("events accept failed", "error", err)
			return
		}
		defer func() {
			_ = conn.Close(websocket.StatusInternalError, "unexpected close")
		}()

		sub := g.hub.subscribe()
		defer g.hub.unsubscribe(sub)

		// CloseRead reads and discards frames so pings are answered and
		// the context ends when the client goes away.
		ctx := conn.CloseRead(r.Context())

		for {
			select {
			case <-ctx.Done():
				return
			case data, ok := <-sub:
				if !ok {
					_ = conn.Close(websocket.StatusGoingAway, "server shutting down")
					return
				}
				if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
					return
				}
			}
		}
	}
}
