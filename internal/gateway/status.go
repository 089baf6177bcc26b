package gateway

import (
	"net/http"
	"time"

	"github.com/inletd/inlet/internal/queue"
)

// StatusResponse is the JSON response for GET /status.
type StatusResponse struct {
	Uptime  int64          `json:"uptime_seconds"`
	Queue   queue.Stats    `json:"queue"`
	Hooks   HookStatus     `json:"hooks"`
	Journal *JournalStatus `json:"journal,omitempty"`
}

// HookStatus summarizes the dispatcher for the status endpoint.
type HookStatus struct {
	Registered int    `json:"registered"`
	Failures   uint64 `json:"failures"`
}

// JournalStatus summarizes the decision journal for the status endpoint.
type JournalStatus struct {
	Entries int `json:"entries"`
}

// handleStatus returns an http.HandlerFunc for GET /status.
func (g *Gateway) handleStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := StatusResponse{
			Uptime: int64(time.Since(g.startedAt) / time.Second),
			Queue:  g.controller.Stats(),
		}

		if g.hooks != nil {
			_, total := g.hooks.Failures()
			resp.Hooks = HookStatus{
				Registered: g.hooks.Registered(),
				Failures:   total,
			}
		}

		if g.journal != nil {
			if n, err := g.journal.Count(r.Context()); err == nil {
				resp.Journal = &JournalStatus{Entries: n}
			}
		}

		writeJSON(w, http.StatusOK, resp)
	}
}
