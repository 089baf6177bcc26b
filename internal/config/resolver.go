package config

import (
	"time"

	"github.com/inletd/inlet/internal/queue"
)

// QueueResolver compiles the queue section into a settings resolver.
// Invalid mode or policy strings are treated as unset; Validate reports
// them before a config ever reaches this point.
func (c *Config) QueueResolver() *queue.Resolver {
	var channels map[string]queue.Inline
	if len(c.Queue.Channels) > 0 {
		channels = make(map[string]queue.Inline, len(c.Queue.Channels))
		for name, ch := range c.Queue.Channels {
			channels[name] = compileInline(ch.Mode, ch.DropPolicy, ch.Debounce, ch.Cap)
		}
	}

	global := compileInline(c.Queue.Mode, c.Queue.DropPolicy, c.Queue.Debounce, c.Queue.Cap)
	return queue.NewResolver(global, channels)
}

// compileInline turns one raw settings layer into a queue.Inline,
// leaving unparseable or absent fields nil so they inherit.
func compileInline(mode, policy string, debounce *time.Duration, capacity *int) queue.Inline {
	var in queue.Inline

	if m, ok := queue.ParseMode(mode); ok {
		in.Mode = &m
	}
	if p, ok := queue.ParseDropPolicy(policy); ok {
		in.DropPolicy = &p
	}
	if debounce != nil {
		d := *debounce
		in.Debounce = &d
	}
	if capacity != nil {
		n := *capacity
		in.Cap = &n
	}

	return in
}
