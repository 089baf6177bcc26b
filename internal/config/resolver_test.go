package config

import (
	"testing"
	"time"

	"github.com/inletd/inlet/internal/queue"
)

func TestQueueResolver_GlobalSettings(t *testing.T) {
	cfg := validConfig()
	cfg.Queue.Mode = "steer"
	cfg.Queue.DropPolicy = "old"
	cfg.Queue.Debounce = durationPtr(2 * time.Second)
	cfg.Queue.Cap = intPtr(5)

	s := cfg.QueueResolver().For("anything")
	if s.Mode != queue.ModeSteer {
		t.Errorf("mode = %q, want steer", s.Mode)
	}
	if s.DropPolicy != queue.DropOld {
		t.Errorf("policy = %q, want old", s.DropPolicy)
	}
	if s.Debounce != 2*time.Second {
		t.Errorf("debounce = %s, want 2s", s.Debounce)
	}
	if s.Cap != 5 {
		t.Errorf("cap = %d, want 5", s.Cap)
	}
}

func TestQueueResolver_BuiltinDefaults(t *testing.T) {
	s := validConfig().QueueResolver().For("anything")
	if s.Mode != queue.DefaultMode {
		t.Errorf("mode = %q, want default %q", s.Mode, queue.DefaultMode)
	}
	if s.DropPolicy != queue.DefaultDropPolicy {
		t.Errorf("policy = %q, want default %q", s.DropPolicy, queue.DefaultDropPolicy)
	}
	if s.Debounce != queue.DefaultDebounce {
		t.Errorf("debounce = %s, want default %s", s.Debounce, queue.DefaultDebounce)
	}
	if s.Cap != queue.DefaultCap {
		t.Errorf("cap = %d, want default %d", s.Cap, queue.DefaultCap)
	}
}

func TestQueueResolver_ChannelOverride(t *testing.T) {
	cfg := validConfig()
	cfg.Queue.Mode = "collect"
	cfg.Queue.Cap = intPtr(10)
	cfg.Queue.Channels = map[string]ChannelOverride{
		"discord": {Mode: "interrupt", Cap: intPtr(0)},
	}

	r := cfg.QueueResolver()

	dc := r.For("discord")
	if dc.Mode != queue.ModeInterrupt {
		t.Errorf("discord mode = %q, want interrupt", dc.Mode)
	}
	if dc.Cap != 0 {
		t.Errorf("discord cap = %d, want explicit 0", dc.Cap)
	}

	other := r.For("telegram")
	if other.Mode != queue.ModeCollect {
		t.Errorf("telegram mode = %q, want collect", other.Mode)
	}
	if other.Cap != 10 {
		t.Errorf("telegram cap = %d, want 10", other.Cap)
	}
}

func TestQueueResolver_InvalidModeInherits(t *testing.T) {
	cfg := validConfig()
	cfg.Queue.Mode = "not-a-mode"
	s := cfg.QueueResolver().For("anything")
	if s.Mode != queue.DefaultMode {
		t.Errorf("unparseable mode should inherit default, got %q", s.Mode)
	}
}

func TestQueueResolver_ModeAliases(t *testing.T) {
	cfg := validConfig()
	cfg.Queue.Mode = "STEER-BACKLOG"
	s := cfg.QueueResolver().For("anything")
	if s.Mode != queue.ModeSteerBacklog {
		t.Errorf("mode alias should normalize, got %q", s.Mode)
	}
}
