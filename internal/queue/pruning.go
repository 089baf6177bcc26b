package queue

import (
	"sync"
	"time"
)

const defaultPruneInterval = 5 * time.Minute

// lazyPruner rate-limits session pruning so the submit path can trigger it
// opportunistically without iterating the session map on every message.
type lazyPruner struct {
	mu       sync.Mutex
	interval time.Duration
	lastRun  time.Time
	now      func() time.Time
}

func newLazyPruner(interval time.Duration) *lazyPruner {
	if interval <= 0 {
		interval = defaultPruneInterval
	}
	return &lazyPruner{
		interval: interval,
		now:      time.Now,
	}
}

// due reports whether a prune should run now and, if so, consumes the slot
// so concurrent submitters do not pile on.
func (p *lazyPruner) due() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	if now.Sub(p.lastRun) < p.interval {
		return false
	}
	p.lastRun = now
	return true
}
