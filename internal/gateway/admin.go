package gateway

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/inletd/inlet/internal/config"
	"github.com/inletd/inlet/internal/hook"
	"github.com/inletd/inlet/internal/journal"
	"github.com/inletd/inlet/internal/queue"
	"github.com/inletd/inlet/internal/security"
	"github.com/inletd/inlet/pkg/message"
)

// sessionRequest identifies a session in admin flush and reset requests.
// Agent defaults to the default agent bucket when omitted.
type sessionRequest struct {
	Agent    string `json:"agent"`
	Channel  string `json:"channel"`
	ChatID   string `json:"chat_id"`
	ThreadID string `json:"thread_id"`
}

func (req *sessionRequest) key() message.SessionKey {
	agent := req.Agent
	if agent == "" {
		agent = message.DefaultAgent
	}
	return message.SessionKey{
		Agent:    agent,
		Channel:  req.Channel,
		ChatID:   req.ChatID,
		ThreadID: req.ThreadID,
	}
}

// decodeSessionRequest parses and validates the request body shared by the
// flush and reset endpoints.
func decodeSessionRequest(w http.ResponseWriter, r *http.Request) (message.SessionKey, bool) {
	var req sessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return message.SessionKey{}, false
	}
	if req.Channel == "" || req.ChatID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "channel and chat_id are required"})
		return message.SessionKey{}, false
	}
	return req.key(), true
}

// handleListSessions returns every live session's queue snapshot.
func (g *Gateway) handleListSessions() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		sessions := g.controller.Sessions()
		if sessions == nil {
			sessions = []queue.SessionInfo{}
		}
		writeJSON(w, http.StatusOK, sessions)
	}
}

// handleFlushSession releases a session's buffer immediately. A session
// with an in-flight run gets a queued decision and flushes when the run
// settles.
func (g *Gateway) handleFlushSession() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key, ok := decodeSessionRequest(w, r)
		if !ok {
			return
		}

		d, err := g.controller.Flush(r.Context(), key)
		switch {
		case errors.Is(err, queue.ErrSessionNotFound):
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "session not found"})
		case errors.Is(err, queue.ErrNothingBuffered):
			writeJSON(w, http.StatusOK, map[string]string{"status": "empty"})
		case errors.Is(err, queue.ErrStopped):
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "queue stopped"})
		case err != nil:
			g.logger.Error("admin flush failed", "session", key.String(), "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "flush failed"})
		default:
			g.emitCommand(r.Context(), "flush", key, map[string]any{"source": "admin", "run_id": d.RunID})
			writeJSON(w, http.StatusOK, d)
		}
	}
}

// handleResetSession clears a session's buffer without running anything.
func (g *Gateway) handleResetSession() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key, ok := decodeSessionRequest(w, r)
		if !ok {
			return
		}

		n, err := g.controller.Reset(key)
		if errors.Is(err, queue.ErrSessionNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "session not found"})
			return
		}

		g.emitCommand(r.Context(), "new", key, map[string]any{"source": "admin", "cleared": n})
		writeJSON(w, http.StatusOK, map[string]int{"cleared": n})
	}
}

// handleJournal returns recent decision journal entries, optionally
// filtered to one session. Query params: limit (default 50), session.
func (g *Gateway) handleJournal() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if g.journal == nil {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "journal disabled"})
			return
		}

		limit := 50
		if s := r.URL.Query().Get("limit"); s != "" {
			n, err := strconv.Atoi(s)
			if err != nil || n <= 0 {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a positive integer"})
				return
			}
			limit = n
		}

		var (
			entries []journal.Entry
			err     error
		)
		if session := r.URL.Query().Get("session"); session != "" {
			entries, err = g.journal.RecentForSession(r.Context(), session, limit)
		} else {
			entries, err = g.journal.Recent(r.Context(), limit)
		}
		if err != nil {
			g.logger.Error("journal query failed", "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "journal query failed"})
			return
		}

		if entries == nil {
			entries = []journal.Entry{}
		}
		writeJSON(w, http.StatusOK, entries)
	}
}

// handleHookFailures exposes the dispatcher's recent handler failures.
func (g *Gateway) handleHookFailures() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		var (
			recent []hook.Failure
			total  uint64
		)
		if g.hooks != nil {
			recent, total = g.hooks.Failures()
		}
		if recent == nil {
			recent = []hook.Failure{}
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"total":    total,
			"failures": recent,
		})
	}
}

// handleGetConfig returns the on-disk config with secrets redacted.
func (g *Gateway) handleGetConfig() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		if g.configPath == "" {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "config path not set"})
			return
		}

		cfg, err := config.Load(g.configPath)
		if err != nil {
			g.logger.Error("config load failed", "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to load config"})
			return
		}

		raw, err := json.Marshal(cfg)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to serialize config"})
			return
		}

		var generic map[string]any
		if err := json.Unmarshal(raw, &generic); err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to parse config"})
			return
		}

		g.redactor.RedactMap(generic)
		writeJSON(w, http.StatusOK, generic)
	}
}

// handleReloadConfig re-reads the config file and applies the queue
// settings to the running controller.
func (g *Gateway) handleReloadConfig() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if g.applier == nil || g.configPath == "" {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "reload not available"})
			return
		}

		if err := g.applier.Apply(r.Context(), g.configPath); err != nil {
			g.logger.Error("config reload failed", "error", err)
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}

		if g.audit != nil {
			g.audit.Log(security.AuditEvent{
				Type:   security.EventConfigChange,
				Detail: "config reloaded via admin api",
			})
		}

		g.logger.Info("configuration reloaded")
		writeJSON(w, http.StatusOK, map[string]string{"status": "reloaded"})
	}
}

// writeJSON encodes v as JSON with the given status code.
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
