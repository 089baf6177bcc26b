package queue

import (
	"testing"
	"time"
)

func TestResolverLayering(t *testing.T) {
	t.Parallel()

	steer := ModeSteer
	interrupt := ModeInterrupt
	dropNew := DropNew
	short := 250 * time.Millisecond
	five := 5

	r := NewResolver(
		Inline{Mode: &steer, Debounce: &short},
		map[string]Inline{
			"discord": {Mode: &interrupt, Cap: &five},
			"slack":   {DropPolicy: &dropNew},
		},
	)

	t.Run("global fills unset fields from defaults", func(t *testing.T) {
		t.Parallel()
		s := r.For("telegram")
		if s.Mode != ModeSteer || s.Debounce != short {
			t.Fatalf("settings = %+v, want global mode and debounce", s)
		}
		if s.DropPolicy != DefaultDropPolicy || s.Cap != DefaultCap {
			t.Fatalf("settings = %+v, want default policy and cap", s)
		}
	})

	t.Run("channel override wins over global", func(t *testing.T) {
		t.Parallel()
		s := r.For("discord")
		if s.Mode != ModeInterrupt || s.Cap != 5 {
			t.Fatalf("settings = %+v, want the discord override", s)
		}
		// Fields the override leaves unset still come from the global
		// layer.
		if s.Debounce != short {
			t.Fatalf("debounce = %v, want %v from the global layer", s.Debounce, short)
		}
	})

	t.Run("partial override inherits the rest", func(t *testing.T) {
		t.Parallel()
		s := r.For("slack")
		if s.DropPolicy != DropNew || s.Mode != ModeSteer {
			t.Fatalf("settings = %+v", s)
		}
	})
}

func TestResolverDefaults(t *testing.T) {
	t.Parallel()

	t.Run("nil resolver", func(t *testing.T) {
		t.Parallel()
		var r *Resolver
		if got := r.For("any"); got != DefaultSettings() {
			t.Fatalf("settings = %+v, want built-in defaults", got)
		}
	})

	t.Run("empty layers", func(t *testing.T) {
		t.Parallel()
		if got := NewResolver(Inline{}, nil).For("any"); got != DefaultSettings() {
			t.Fatalf("settings = %+v, want built-in defaults", got)
		}
	})
}

func TestResolverClampsNegativeCap(t *testing.T) {
	t.Parallel()

	negative := -3
	r := NewResolver(Inline{Cap: &negative}, nil)
	if got := r.For("any").Cap; got != DefaultCap {
		t.Fatalf("cap = %d, want clamped to %d", got, DefaultCap)
	}
}

func TestResolverKeepsExplicitZeroes(t *testing.T) {
	t.Parallel()

	zeroCap := 0
	zeroDebounce := time.Duration(0)
	r := NewResolver(Inline{Cap: &zeroCap, Debounce: &zeroDebounce}, nil)

	s := r.For("any")
	if s.Cap != 0 {
		t.Fatalf("cap = %d, want explicit 0 preserved", s.Cap)
	}
	if s.Debounce != 0 {
		t.Fatalf("debounce = %v, want explicit 0 preserved", s.Debounce)
	}
}
