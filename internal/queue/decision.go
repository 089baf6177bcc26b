package queue

import "github.com/inletd/inlet/pkg/message"

// Outcome is the controller's verdict for one submission.
type Outcome string

const (
	// OutcomeQueued means the message was buffered and the debounce
	// timer (re)armed.
	OutcomeQueued Outcome = "queued"

	// OutcomeFlushed means the submission triggered an immediate batch
	// release to the downstream processor.
	OutcomeFlushed Outcome = "flushed"

	// OutcomeDropped means the drop policy rejected the message.
	OutcomeDropped Outcome = "dropped"

	// OutcomeSteered means the message was delivered into the in-flight
	// run instead of being buffered.
	OutcomeSteered Outcome = "steered"
)

// ReasonCapacity marks drops and evictions caused by a full buffer.
const ReasonCapacity = "capacity"

// Decision reports what the controller did with one submission. Drops are
// decisions, not errors: adapters use them to acknowledge, react, or
// surface backpressure to the platform.
type Decision struct {
	Outcome Outcome            `json:"outcome"`
	Session message.SessionKey `json:"session"`

	// Position is the 1-based depth of the message in its buffer after
	// an OutcomeQueued decision.
	Position int `json:"position,omitempty"`

	// RunID identifies the downstream run for flushed and steered
	// decisions.
	RunID string `json:"run_id,omitempty"`

	// Batch is the released batch for OutcomeFlushed, in submission
	// order.
	Batch []*message.InboundMessage `json:"batch,omitempty"`

	// Reason explains an OutcomeDropped decision.
	Reason string `json:"reason,omitempty"`

	// Evicted lists previously buffered messages the old drop policy
	// discarded to make room for this one.
	Evicted []*message.InboundMessage `json:"evicted,omitempty"`

	// Collapsed reports that the summarize drop policy replaced the
	// buffer with a synthetic summary entry.
	Collapsed bool `json:"collapsed,omitempty"`
}
