package gateway

import "net/http"

// HealthResponse is the JSON response for GET /health.
type HealthResponse struct {
	Status   string `json:"status"` // "ok" or "degraded"
	Sessions int    `json:"sessions"`
}

// handleHealth returns an http.HandlerFunc for GET /health.
// Returns 200 when the pipeline is serviceable, 503 when the journal
// backend stops answering.
func (g *Gateway) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := HealthResponse{
			Status:   "ok",
			Sessions: g.controller.Stats().Sessions,
		}

		if g.journal != nil {
			if _, err := g.journal.Count(r.Context()); err != nil {
				resp.Status = "degraded"
			}
		}

		if resp.Status == "degraded" {
			writeJSON(w, http.StatusServiceUnavailable, resp)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}
