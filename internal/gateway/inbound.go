package gateway

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/inletd/inlet/internal/hook"
	"github.com/inletd/inlet/internal/queue"
	"github.com/inletd/inlet/internal/security"
	"github.com/inletd/inlet/pkg/message"
)

// maxInboundBody bounds the request body for the inbound endpoint.
const maxInboundBody = 1 << 20

// inboundAck is the wire response for an accepted message. It carries the
// queue decision without echoing message bodies back to the channel.
type inboundAck struct {
	Outcome   queue.Outcome      `json:"outcome"`
	Session   message.SessionKey `json:"session"`
	Position  int                `json:"position,omitempty"`
	RunID     string             `json:"run_id,omitempty"`
	Batch     int                `json:"batch,omitempty"`
	Reason    string             `json:"reason,omitempty"`
	Evicted   int                `json:"evicted,omitempty"`
	Collapsed bool               `json:"collapsed,omitempty"`
}

func ackFor(d queue.Decision) inboundAck {
	return inboundAck{
		Outcome:   d.Outcome,
		Session:   d.Session,
		Position:  d.Position,
		RunID:     d.RunID,
		Batch:     len(d.Batch),
		Reason:    d.Reason,
		Evicted:   len(d.Evicted),
		Collapsed: d.Collapsed,
	}
}

// commandResult is the wire response for an intercepted slash command.
type commandResult struct {
	Command  string             `json:"command"`
	Session  message.SessionKey `json:"session"`
	Status   string             `json:"status,omitempty"`
	Cleared  int                `json:"cleared,omitempty"`
	Decision *inboundAck        `json:"decision,omitempty"`
	Info     *queue.SessionInfo `json:"info,omitempty"`
}

// handleInbound accepts one message from a channel adapter, authenticates
// it against the channel's shared secret when one is configured, intercepts
// queue commands, and submits everything else to the controller.
func (g *Gateway) handleInbound() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		channel := chi.URLParam(r, "channel")
		if channel == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing channel"})
			return
		}

		if g.limiter != nil {
			if err := g.limiter.Allow("inbound"); err != nil {
				g.auditEvent(security.EventRateLimit, "inbound limited", channel, r)
				writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "too many requests"})
				return
			}
		}

		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxInboundBody))
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "body too large"})
				return
			}
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "failed to read body"})
			return
		}

		if secret := g.config.InboundSecrets[channel]; secret != "" {
			sig := r.Header.Get("X-Signature-256")
			if !validateHMAC(body, sig, secret) {
				g.auditEvent(security.EventAuthFailure, "invalid inbound signature", channel, r)
				writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid signature"})
				return
			}
		}

		var msg message.InboundMessage
		if err := json.Unmarshal(body, &msg); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid message payload"})
			return
		}

		// The URL channel is authoritative; the body may omit it.
		msg.Channel = channel
		if msg.Chat.ID == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "chat.id is required"})
			return
		}
		if msg.ID == "" {
			msg.ID = uuid.NewString()
		}
		if msg.Timestamp.IsZero() {
			msg.Timestamp = time.Now()
		}

		if msg.IsCommand() && g.handleCommand(w, r, &msg) {
			return
		}

		d, err := g.controller.Submit(r.Context(), &msg)
		switch {
		case errors.Is(err, queue.ErrStopped):
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "shutting down"})
		case err != nil:
			g.logger.Error("inbound submit failed", "channel", channel, "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "submit failed"})
		default:
			writeJSON(w, http.StatusOK, ackFor(d))
		}
	}
}

// handleCommand intercepts the queue control commands (/new, /flush,
// /queue) and reports whether it handled the message. Unknown commands
// fall through to the queue so the downstream agent sees them.
func (g *Gateway) handleCommand(w http.ResponseWriter, r *http.Request, msg *message.InboundMessage) bool {
	name, _ := msg.Command()
	key := message.KeyOf(msg)

	switch name {
	case "new":
		n, err := g.controller.Reset(key)
		if err != nil {
			// Resetting an absent session is a no-op, not a failure.
			n = 0
		}
		g.emitCommand(r.Context(), name, key, map[string]any{"source": "inbound", "cleared": n})
		writeJSON(w, http.StatusOK, commandResult{Command: name, Session: key, Cleared: n})
		return true

	case "flush":
		d, err := g.controller.Flush(r.Context(), key)
		switch {
		case errors.Is(err, queue.ErrSessionNotFound), errors.Is(err, queue.ErrNothingBuffered):
			g.emitCommand(r.Context(), name, key, map[string]any{"source": "inbound", "flushed": false})
			writeJSON(w, http.StatusOK, commandResult{Command: name, Session: key, Status: "empty"})
		case err != nil:
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "queue unavailable"})
		default:
			g.emitCommand(r.Context(), name, key, map[string]any{"source": "inbound", "run_id": d.RunID})
			ack := ackFor(d)
			writeJSON(w, http.StatusOK, commandResult{Command: name, Session: key, Decision: &ack})
		}
		return true

	case "queue":
		info, ok := g.controller.Session(key)
		g.emitCommand(r.Context(), name, key, map[string]any{"source": "inbound", "found": ok})
		if !ok {
			writeJSON(w, http.StatusOK, commandResult{Command: name, Session: key, Status: "empty"})
			return true
		}
		writeJSON(w, http.StatusOK, commandResult{Command: name, Session: key, Info: &info})
		return true
	}

	return false
}

// emitCommand raises the command hook and audit trail for an intercepted
// or admin-initiated queue command.
func (g *Gateway) emitCommand(ctx context.Context, name string, key message.SessionKey, extra map[string]any) {
	if g.hooks != nil {
		g.hooks.Trigger(ctx, &hook.Event{
			Type:    hook.TypeCommand,
			Action:  name,
			Session: key,
			Context: extra,
		})
	}
	if g.audit != nil {
		g.audit.Log(security.AuditEvent{
			Type:    security.EventCommand,
			Session: key.String(),
			Detail:  name,
		})
	}
}

// auditEvent records a gateway-level security event for one channel.
func (g *Gateway) auditEvent(typ security.EventType, detail, channel string, r *http.Request) {
	if g.audit == nil {
		return
	}
	g.audit.Log(security.AuditEvent{
		Type:   typ,
		Detail: detail,
		Metadata: map[string]string{
			"channel":     channel,
			"remote_addr": r.RemoteAddr,
		},
	})
}

// validateHMAC checks an HMAC-SHA256 signature in constant time.
func validateHMAC(body []byte, signature, secret string) bool {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := "sha256=" + hex.EncodeToString(mac.Sum(nil))
	return subtle.ConstantTimeCompare([]byte(expected), []byte(signature)) == 1
}
