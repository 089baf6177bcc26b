package maintenance

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"
)

type fakePruner struct {
	pruned int
	calls  int
}

func (f *fakePruner) Prune(_ context.Context) int {
	f.calls++
	return f.pruned
}

type fakeSweeper struct {
	removed int64
	err     error
	cutoff  time.Time
}

func (f *fakeSweeper) PruneBefore(_ context.Context, cutoff time.Time) (int64, error) {
	f.cutoff = cutoff
	return f.removed, f.err
}

func TestSessionPruneJob_Run(t *testing.T) {
	t.Parallel()

	pruner := &fakePruner{pruned: 3}
	j := &SessionPruneJob{Queue: pruner, Logger: slog.Default()}

	if err := j.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if pruner.calls != 1 {
		t.Errorf("prune calls = %d, want 1", pruner.calls)
	}
}

func TestSessionPruneJob_Schedule(t *testing.T) {
	t.Parallel()

	j := &SessionPruneJob{}
	if j.Schedule() != "*/5 * * * *" {
		t.Errorf("default schedule = %q", j.Schedule())
	}
	j.ScheduleExpr = "*/10 * * * *"
	if j.Schedule() != "*/10 * * * *" {
		t.Errorf("override schedule = %q", j.Schedule())
	}
	if j.Name() != "session_prune" {
		t.Errorf("name = %q", j.Name())
	}
}

func TestJournalSweepJob_Run(t *testing.T) {
	t.Parallel()

	sweeper := &fakeSweeper{removed: 7}
	j := &JournalSweepJob{Journal: sweeper, Retention: 24 * time.Hour, Logger: slog.Default()}

	before := time.Now().Add(-24 * time.Hour)
	if err := j.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	after := time.Now().Add(-24 * time.Hour)

	if sweeper.cutoff.Before(before) || sweeper.cutoff.After(after) {
		t.Errorf("cutoff = %v, want about 24h ago", sweeper.cutoff)
	}
}

func TestJournalSweepJob_PropagatesError(t *testing.T) {
	t.Parallel()

	wantErr := errors.New("disk gone")
	j := &JournalSweepJob{
		Journal:   &fakeSweeper{err: wantErr},
		Retention: time.Hour,
		Logger:    slog.Default(),
	}

	if err := j.Run(context.Background()); !errors.Is(err, wantErr) {
		t.Errorf("err = %v, want wrapped %v", err, wantErr)
	}
}

func TestJournalSweepJob_Schedule(t *testing.T) {
	t.Parallel()

	j := &JournalSweepJob{}
	if j.Schedule() != "0 3 * * *" {
		t.Errorf("default schedule = %q", j.Schedule())
	}
	if j.Name() != "journal_sweep" {
		t.Errorf("name = %q", j.Name())
	}
}
