package hook

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"
)

// AuditRecord is one JSON Lines entry written by AuditHandler.
type AuditRecord struct {
	Timestamp time.Time `json:"timestamp"`
	Event     string    `json:"event"`
	Session   string    `json:"session"`
	Agent     string    `json:"agent"`
	Channel   string    `json:"channel"`
	ChatID    string    `json:"chat_id"`
	ThreadID  string    `json:"thread_id,omitempty"`
	Count     int       `json:"count"`
	Preview   string    `json:"preview,omitempty"`
}

// previewLimit caps the text preview stored per audit record.
const previewLimit = 120

// AuditHandler writes a JSON Lines audit entry for every event it receives.
// Register it on "message:flushed" for a flush log, or on "message" for the
// full decision stream.
type AuditHandler struct {
	writer io.Writer
	mu     sync.Mutex
	now    func() time.Time
}

// NewAuditHandler creates an audit handler that writes JSON Lines to w.
// In production, w is typically an *os.File; in tests, a *bytes.Buffer.
func NewAuditHandler(w io.Writer) *AuditHandler {
	return &AuditHandler{
		writer: w,
		now:    time.Now,
	}
}

// Handle implements HandlerFunc. It writes one record per event.
func (a *AuditHandler) Handle(_ context.Context, ev *Event) error {
	record := AuditRecord{
		Timestamp: a.now(),
		Event:     ev.Key(),
		Session:   ev.Session.String(),
		Agent:     ev.Session.Agent,
		Channel:   ev.Session.Channel,
		ChatID:    ev.Session.ChatID,
		ThreadID:  ev.Session.ThreadID,
		Count:     len(ev.Messages),
	}
	if len(ev.Messages) > 0 {
		preview := ev.Messages[0].Text
		if len(preview) > previewLimit {
			preview = preview[:previewLimit]
		}
		record.Preview = preview
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	return json.NewEncoder(a.writer).Encode(record)
}
