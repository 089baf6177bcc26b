package queue

import "strings"

// Mode governs how new inbound messages interact with buffering and
// in-flight processing for a session. The set is closed: values enter the
// system only through ParseMode, so switches over Mode can treat the six
// constants as exhaustive.
type Mode string

const (
	// ModeSteer delivers new messages into the in-flight run when one
	// exists, instead of buffering. Idle sessions buffer normally. A
	// rejected or failed steer falls back to the pending buffer so the
	// message is never lost.
	ModeSteer Mode = "steer"

	// ModeFollowup buffers unconditionally; flushes are purely
	// debounce-driven.
	ModeFollowup Mode = "followup"

	// ModeCollect buffers unconditionally; flushes are purely
	// debounce-driven.
	ModeCollect Mode = "collect"

	// ModeSteerBacklog steers when a run is in flight, falling back to a
	// backlog buffer that re-enters debounce once the run completes.
	ModeSteerBacklog Mode = "steer-backlog"

	// ModeQueue buffers unconditionally; flushes are purely
	// debounce-driven. This is the fail-closed default for invalid or
	// missing configuration.
	ModeQueue Mode = "queue"

	// ModeInterrupt preempts: any in-flight run is asked to cancel and
	// the new message flushes immediately as its own batch.
	ModeInterrupt Mode = "interrupt"
)

// ParseMode normalizes a configured mode string, accepting the common
// aliases. The bool is false for unrecognized values; callers fall back to
// the built-in default rather than failing the submission path.
func ParseMode(raw string) (Mode, bool) {
	switch strings.TrimSpace(strings.ToLower(raw)) {
	case "steer", "steering":
		return ModeSteer, true
	case "followup", "follow-up", "followups":
		return ModeFollowup, true
	case "collect", "coalesce":
		return ModeCollect, true
	case "steer-backlog", "steer+backlog", "steer_backlog":
		return ModeSteerBacklog, true
	case "queue", "queued":
		return ModeQueue, true
	case "interrupt", "interrupts", "abort":
		return ModeInterrupt, true
	default:
		return "", false
	}
}

// DropPolicy is the rule applied when the buffered message count would
// exceed the session's capacity.
type DropPolicy string

const (
	// DropOld evicts the oldest buffered messages to make room for the
	// incoming one.
	DropOld DropPolicy = "old"

	// DropNew rejects the incoming message, leaving the buffer
	// unchanged.
	DropNew DropPolicy = "new"

	// DropSummarize collapses the buffer into one synthetic summary
	// entry plus the new message.
	DropSummarize DropPolicy = "summarize"
)

// ParseDropPolicy normalizes a configured drop-policy string. The bool is
// false for unrecognized values.
func ParseDropPolicy(raw string) (DropPolicy, bool) {
	switch strings.TrimSpace(strings.ToLower(raw)) {
	case "old", "oldest":
		return DropOld, true
	case "new", "newest":
		return DropNew, true
	case "summarize", "summary":
		return DropSummarize, true
	default:
		return "", false
	}
}
