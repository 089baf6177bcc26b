package queue

import "time"

// Built-in defaults. Settings resolution fails closed to these rather than
// crashing the submission path on invalid or missing configuration.
const (
	DefaultMode       = ModeQueue
	DefaultDropPolicy = DropSummarize
	DefaultDebounce   = time.Second
	DefaultCap        = 20
)

// Settings are the effective queue parameters for one submission, resolved
// from the per-channel override, the global configuration, and the built-in
// defaults, in that order.
type Settings struct {
	Mode       Mode
	DropPolicy DropPolicy

	// Debounce is the quiet period before a buffered batch flushes.
	// Restart-on-activity: every buffered submission re-arms the timer,
	// so the window measures inactivity, not elapsed time since the
	// first message. Zero or negative disables debouncing; buffered
	// submissions flush immediately (or at run completion while busy).
	Debounce time.Duration

	// Cap is the maximum buffered message count before DropPolicy
	// activates. Zero disables buffering entirely: DropNew drops every
	// submission, the other policies flush each message straight
	// through.
	Cap int
}

// DefaultSettings returns the built-in defaults.
func DefaultSettings() Settings {
	return Settings{
		Mode:       DefaultMode,
		DropPolicy: DefaultDropPolicy,
		Debounce:   DefaultDebounce,
		Cap:        DefaultCap,
	}
}

// Inline is a partial settings layer; nil fields inherit from the layer
// below.
type Inline struct {
	Mode       *Mode
	DropPolicy *DropPolicy
	Debounce   *time.Duration
	Cap        *int
}

// apply overlays the non-nil fields of o onto s.
func (o Inline) apply(s Settings) Settings {
	if o.Mode != nil {
		s.Mode = *o.Mode
	}
	if o.DropPolicy != nil {
		s.DropPolicy = *o.DropPolicy
	}
	if o.Debounce != nil {
		s.Debounce = *o.Debounce
	}
	if o.Cap != nil {
		s.Cap = *o.Cap
	}
	return s
}

// Resolver resolves effective settings per channel. It is immutable once
// built; configuration reloads swap in a whole new Resolver instead of
// mutating this one, which keeps per-event resolution pure.
type Resolver struct {
	global   Settings
	channels map[string]Inline
}

// NewResolver builds a resolver from a global layer and per-channel
// overrides. Unset global fields inherit the built-in defaults.
func NewResolver(global Inline, channels map[string]Inline) *Resolver {
	r := &Resolver{global: global.apply(DefaultSettings())}
	if len(channels) > 0 {
		r.channels = make(map[string]Inline, len(channels))
		for name, o := range channels {
			r.channels[name] = o
		}
	}
	return r
}

// For returns the effective settings for a channel. A nil resolver yields
// the built-in defaults, and a negative cap is clamped back to the default
// so a bad override cannot disable capacity enforcement.
func (r *Resolver) For(channel string) Settings {
	if r == nil {
		return DefaultSettings()
	}
	s := r.global
	if o, ok := r.channels[channel]; ok {
		s = o.apply(s)
	}
	if s.Cap < 0 {
		s.Cap = DefaultCap
	}
	return s
}
