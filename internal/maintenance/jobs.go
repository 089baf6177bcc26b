package maintenance

import (
	"context"
	"log/slog"
	"time"
)

// SessionPruner is the subset of the queue controller needed by the prune
// job. Defined here to avoid a dependency on the queue package.
type SessionPruner interface {
	Prune(ctx context.Context) int
}

// Sweeper is the subset of the journal needed by the sweep job.
type Sweeper interface {
	PruneBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// SessionPruneJob evicts sessions that have sat idle with nothing buffered.
type SessionPruneJob struct {
	Queue        SessionPruner
	Logger       *slog.Logger
	ScheduleExpr string // empty = default "*/5 * * * *"
}

// Compile-time interface check.
var _ Job = (*SessionPruneJob)(nil)

// Name implements Job.
func (j *SessionPruneJob) Name() string {
	return "session_prune"
}

// Schedule implements Job.
func (j *SessionPruneJob) Schedule() string {
	if j.ScheduleExpr != "" {
		return j.ScheduleExpr
	}
	return "*/5 * * * *"
}

// Run prunes idle sessions.
func (j *SessionPruneJob) Run(ctx context.Context) error {
	pruned := j.Queue.Prune(ctx)
	if pruned > 0 {
		j.Logger.Info("maintenance: pruned idle sessions", "count", pruned)
	}
	return nil
}

// JournalSweepJob deletes journal entries older than the retention window.
type JournalSweepJob struct {
	Journal      Sweeper
	Retention    time.Duration
	Logger       *slog.Logger
	ScheduleExpr string // empty = default "0 3 * * *"
}

// Compile-time interface check.
var _ Job = (*JournalSweepJob)(nil)

// Name implements Job.
func (j *JournalSweepJob) Name() string {
	return "journal_sweep"
}

// Schedule implements Job.
func (j *JournalSweepJob) Schedule() string {
	if j.ScheduleExpr != "" {
		return j.ScheduleExpr
	}
	return "0 3 * * *"
}

// Run removes entries older than the retention cutoff.
func (j *JournalSweepJob) Run(ctx context.Context) error {
	removed, err := j.Journal.PruneBefore(ctx, time.Now().Add(-j.Retention))
	if err != nil {
		return err
	}
	if removed > 0 {
		j.Logger.Info("maintenance: swept journal entries", "count", removed)
	}
	return nil
}
