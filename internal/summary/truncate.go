// Package summary provides the summarizers behind the summarize drop
// policy: collapsing a buffered conversation into one synthetic digest
// message.
package summary

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/inletd/inlet/internal/queue"
	"github.com/inletd/inlet/pkg/message"
)

const defaultMaxChars = 480

// Interface guard.
var _ queue.Summarizer = (*Truncator)(nil)

// Truncator is the zero-dependency summarizer. It renders the buffered
// messages as one transcript and clips it to a character limit, keeping
// the oldest content since that is what the digest replaces.
type Truncator struct {
	maxChars int
}

// NewTruncator creates a Truncator with the given character limit.
// Non-positive limits fall back to the default.
func NewTruncator(maxChars int) *Truncator {
	if maxChars <= 0 {
		maxChars = defaultMaxChars
	}
	return &Truncator{maxChars: maxChars}
}

// Summarize implements queue.Summarizer.
func (t *Truncator) Summarize(_ context.Context, msgs []*message.InboundMessage) (string, error) {
	return clip(transcript(msgs), t.maxChars), nil
}

// transcript renders messages as "sender: text" lines in arrival order.
func transcript(msgs []*message.InboundMessage) string {
	lines := make([]string, 0, len(msgs))
	for _, m := range msgs {
		if m == nil {
			continue
		}
		if who := senderName(m.Sender); who != "" {
			lines = append(lines, who+": "+m.Text)
		} else {
			lines = append(lines, m.Text)
		}
	}
	return strings.Join(lines, "\n")
}

func senderName(s message.Sender) string {
	switch {
	case s.DisplayName != "":
		return s.DisplayName
	case s.Username != "":
		return s.Username
	default:
		return s.ID
	}
}

// clip truncates s to at most max runes, ending with an ellipsis when
// anything was cut.
func clip(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max-1]) + "…"
}
