package message

import (
	"encoding/json"
	"strings"
	"time"
)

// InboundMessage represents a message received from a channel adapter.
type InboundMessage struct {
	ID          string       `json:"id"`
	Timestamp   time.Time    `json:"timestamp"`
	Agent       string       `json:"agent,omitempty"`
	Channel     string       `json:"channel"`
	Sender      Sender       `json:"sender"`
	Chat        Chat         `json:"chat"`
	ThreadID    string       `json:"thread_id,omitempty"`
	ReplyToID   string       `json:"reply_to_id,omitempty"`
	Text        string       `json:"text"`
	Attachments []Attachment `json:"attachments,omitempty"`
	Mentions    *Mentions    `json:"mentions,omitempty"`
	// Synthetic marks messages minted by the intake itself, such as the
	// summary entry that replaces a collapsed buffer.
	Synthetic bool            `json:"synthetic,omitempty"`
	Raw       json.RawMessage `json:"raw,omitempty"`
}

// MarshalJSON implements json.Marshaler. It normalizes empty Mentions to nil
// so that the field is omitted from JSON output.
func (m InboundMessage) MarshalJSON() ([]byte, error) {
	if m.Mentions.IsEmpty() {
		m.Mentions = nil
	}
	type alias InboundMessage
	return json.Marshal(alias(m))
}

// HasMedia reports whether the message carries attachments.
func (m *InboundMessage) HasMedia() bool {
	return len(m.Attachments) > 0
}

// IsGroup reports whether the message was sent in a group chat.
func (m *InboundMessage) IsGroup() bool {
	return m.Chat.IsGroup()
}

// IsDirectMessage reports whether the message is a direct message.
func (m *InboundMessage) IsDirectMessage() bool {
	return m.Chat.IsDirectMessage()
}

// IsCommand reports whether the message text is a slash command.
func (m *InboundMessage) IsCommand() bool {
	return strings.HasPrefix(strings.TrimSpace(m.Text), "/")
}

// Command splits a slash-command message into its lowercase name and the
// argument remainder. Both are empty when the message is not a command.
func (m *InboundMessage) Command() (name, args string) {
	text := strings.TrimSpace(m.Text)
	if !strings.HasPrefix(text, "/") {
		return "", ""
	}
	name, args, _ = strings.Cut(text[1:], " ")
	return strings.ToLower(name), strings.TrimSpace(args)
}
