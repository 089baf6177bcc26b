package queue

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/inletd/inlet/pkg/message"
)

// session is the queue state for one session key. Everything below the
// mutex is guarded by it. Submissions, timer fires, and run completions for
// one session serialize on mu; sessions are independent of each other.
type session struct {
	mu sync.Mutex

	id        string
	key       message.SessionKey
	createdAt time.Time

	lastActiveAt time.Time
	mode         Mode
	debounce     time.Duration

	// pending is the debounce buffer, in submission order.
	pending []*message.InboundMessage
	// backlog holds steer-backlog fallbacks; it re-enters the pending
	// buffer when the in-flight run completes.
	backlog []*message.InboundMessage
	// next is an interrupt batch parked until the canceled run returns.
	next *Run

	inFlight bool
	runID    string

	// timerGen invalidates stale debounce timers: each arm increments it
	// and a firing timer re-checks it under mu before flushing, so only
	// the latest arm in a chain can ever flush.
	timerGen   uint64
	timer      *time.Timer
	timerArmed bool
	// flushOnIdle records a flush obligation that arose while a run was
	// in flight (timer fired, forced flush, disabled debounce); the
	// completion path honors it immediately.
	flushOnIdle bool

	flushes uint64
	drops   uint64
}

// SessionInfo is a point-in-time snapshot of one session's queue state.
type SessionInfo struct {
	ID           string             `json:"id"`
	Key          message.SessionKey `json:"key"`
	Session      string             `json:"session"`
	Mode         Mode               `json:"mode,omitempty"`
	CreatedAt    time.Time          `json:"created_at"`
	LastActiveAt time.Time          `json:"last_active_at"`
	Pending      int                `json:"pending"`
	Backlog      int                `json:"backlog"`
	InFlight     bool               `json:"in_flight"`
	RunID        string             `json:"run_id,omitempty"`
	TimerArmed   bool               `json:"timer_armed"`
	Flushes      uint64             `json:"flushes"`
	Drops        uint64             `json:"drops"`
}

// snapshot captures the session state under its lock.
func (s *session) snapshot() SessionInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return SessionInfo{
		ID:           s.id,
		Key:          s.key,
		Session:      s.key.String(),
		Mode:         s.mode,
		CreatedAt:    s.createdAt,
		LastActiveAt: s.lastActiveAt,
		Pending:      len(s.pending),
		Backlog:      len(s.backlog),
		InFlight:     s.inFlight,
		RunID:        s.runID,
		TimerArmed:   s.timerArmed,
		Flushes:      s.flushes,
		Drops:        s.drops,
	}
}

// buffered returns the number of messages held in the session's buffers.
// Called with s.mu held.
func (s *session) bufferedLocked() int {
	return len(s.pending) + len(s.backlog)
}

// store is the concurrency-safe session map. It uses a read-write mutex
// for O(1) lookups; the now function is injectable for deterministic tests.
type store struct {
	mu       sync.RWMutex
	sessions map[message.SessionKey]*session
	now      func() time.Time
}

func newStore() *store {
	return &store{
		sessions: make(map[message.SessionKey]*session),
		now:      time.Now,
	}
}

// getOrCreate returns the session for key, creating it lazily. The bool
// return is true when a new session was created.
func (s *store) getOrCreate(key message.SessionKey) (*session, bool) {
	s.mu.RLock()
	sess, ok := s.sessions[key]
	s.mu.RUnlock()
	if ok {
		return sess, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[key]; ok {
		return sess, false
	}
	now := s.now()
	sess = &session{
		id:           generateID(),
		key:          key,
		createdAt:    now,
		lastActiveAt: now,
	}
	s.sessions[key] = sess
	return sess, true
}

// get returns the session for key, or nil if none exists.
func (s *store) get(key message.SessionKey) *session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessions[key]
}

// len returns the number of live sessions.
func (s *store) len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// all returns a snapshot slice of the live sessions.
func (s *store) all() []*session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, sess)
	}
	return out
}

// prune removes sessions that hold no messages, have no run in flight, and
// have been inactive longer than maxIdle. Stale timers are disarmed via the
// generation bump. The pruned sessions are returned so the caller can emit
// lifecycle events outside the store lock.
func (s *store) prune(maxIdle time.Duration) []*session {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	var pruned []*session
	for key, sess := range s.sessions {
		sess.mu.Lock()
		idle := !sess.inFlight &&
			sess.bufferedLocked() == 0 &&
			sess.next == nil &&
			now.Sub(sess.lastActiveAt) > maxIdle
		if idle {
			sess.timerGen++
			if sess.timer != nil {
				sess.timer.Stop()
			}
			sess.timerArmed = false
			delete(s.sessions, key)
			pruned = append(pruned, sess)
		}
		sess.mu.Unlock()
	}
	return pruned
}

// generateID produces a 32-character hex string from 16 random bytes.
// It uses crypto/rand for uniqueness without external coordination.
func generateID() string {
	var buf [16]byte
	if _, err := rand.Read(buf[:]); err != nil {
		// Requires broken OS entropy; surface it in the ID rather than
		// fail session creation.
		return fmt.Sprintf("err-%v", err)
	}
	return hex.EncodeToString(buf[:])
}
