package message

import "strings"

// DefaultAgent is the agent bucket used when an inbound message does not
// name one.
const DefaultAgent = "default"

// SessionKey is the composite key for O(1) session lookups. It uniquely
// identifies a conversation by agent, channel, chat, and optional thread.
// Messages with the same key share one queue buffer and one in-flight slot.
type SessionKey struct {
	Agent    string `json:"agent"`
	Channel  string `json:"channel"`
	ChatID   string `json:"chat_id"`
	ThreadID string `json:"thread_id,omitempty"`
}

// KeyOf derives the session key for an inbound message. Messages in the same
// agent/channel/chat/thread share a session.
func KeyOf(m *InboundMessage) SessionKey {
	agent := m.Agent
	if agent == "" {
		agent = DefaultAgent
	}
	return SessionKey{
		Agent:    agent,
		Channel:  m.Channel,
		ChatID:   m.Chat.ID,
		ThreadID: m.ThreadID,
	}
}

// String renders the canonical key form used in logs and storage:
//
//	{agent}:{channel}:{chatID}
//	{agent}:{channel}:{chatID}:thread:{threadID}
func (k SessionKey) String() string {
	var b strings.Builder
	b.WriteString(k.Agent)
	b.WriteByte(':')
	b.WriteString(k.Channel)
	b.WriteByte(':')
	b.WriteString(k.ChatID)
	if k.ThreadID != "" {
		b.WriteString(":thread:")
		b.WriteString(k.ThreadID)
	}
	return b.String()
}
