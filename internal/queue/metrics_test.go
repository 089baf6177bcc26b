package queue

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsCountDecisions(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	rec := &runRecorder{}
	c := newController(t, Config{
		Processor: rec,
		Metrics:   m,
		Resolver:  fixed(ModeQueue, DropOld, time.Minute, 1),
	})

	submit(t, c, inbound("tg", "chat", "a"))
	submit(t, c, inbound("tg", "chat", "b")) // evicts a

	if got := testutil.ToFloat64(m.decisions.WithLabelValues(string(OutcomeQueued))); got != 2 {
		t.Fatalf("queued decisions = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.evictions); got != 1 {
		t.Fatalf("evictions = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.buffered); got != 1 {
		t.Fatalf("buffered gauge = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.sessions); got != 1 {
		t.Fatalf("sessions gauge = %v, want 1", got)
	}
}

func TestMetricsNilReceiverIsSafe(t *testing.T) {
	t.Parallel()

	var m *Metrics
	m.decision(OutcomeQueued)
	m.evict(3)
	m.setSessions(1)
	m.setBuffered(2)
	m.observeFlush(time.Second)
	m.runFailure()
}
