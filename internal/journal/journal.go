// Package journal persists queue decisions to SQLite so operators can
// reconstruct why a batch flushed, dropped, or collapsed after the fact.
// Entries arrive through a hook handler; nothing in the hot path blocks
// on anything but one insert.
package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/inletd/inlet/internal/hook"

	_ "modernc.org/sqlite" // SQLite driver registration
)

const (
	defaultBusyTimeout = 5000

	// tsLayout is fixed-width UTC with millisecond precision, so string
	// comparison orders the same as time comparison.
	tsLayout = "2006-01-02T15:04:05.000Z"
)

// Entry is one recorded queue decision.
type Entry struct {
	ID        int64          `json:"id"`
	Timestamp time.Time      `json:"timestamp"`
	Event     string         `json:"event"`
	Session   string         `json:"session"`
	RunID     string         `json:"run_id,omitempty"`
	Messages  int            `json:"messages,omitempty"`
	Context   map[string]any `json:"context,omitempty"`
}

// Journal is a SQLite-backed decision log.
type Journal struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (or creates) the journal database at the given path.
//
// The database is created with WAL mode, a 5 s busy timeout, and a single
// connection (SQLite serialises writes). The schema is migrated
// automatically.
func Open(path string, logger *slog.Logger) (*Journal, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("journal: create directory %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("journal: open %s: %w", path, err)
	}

	db.SetMaxOpenConns(1)

	ctx := context.Background()

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("journal: enable WAL: %w", err)
	}

	if _, err := db.ExecContext(ctx, fmt.Sprintf("PRAGMA busy_timeout=%d", defaultBusyTimeout)); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("journal: set busy_timeout: %w", err)
	}

	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Journal{db: db, logger: logger}, nil
}

// Close closes the underlying database.
func (j *Journal) Close() error {
	return j.db.Close()
}

// Record appends one entry. A zero timestamp is stamped with the current
// time.
func (j *Journal) Record(ctx context.Context, e Entry) error {
	ts := e.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	contextJSON := []byte("{}")
	if len(e.Context) > 0 {
		var err error
		contextJSON, err = json.Marshal(e.Context)
		if err != nil {
			return fmt.Errorf("journal: marshal context: %w", err)
		}
	}

	_, err := j.db.ExecContext(ctx, `
		INSERT INTO decisions (ts, event, session, run_id, msg_count, context)
		VALUES (?, ?, ?, ?, ?, ?)`,
		ts.UTC().Format(tsLayout), e.Event, e.Session, e.RunID, e.Messages, string(contextJSON),
	)
	if err != nil {
		return fmt.Errorf("journal: record: %w", err)
	}

	return nil
}

// Recent returns the n most recent entries in chronological order.
func (j *Journal) Recent(ctx context.Context, n int) ([]Entry, error) {
	if n <= 0 {
		return nil, nil
	}

	rows, err := j.db.QueryContext(ctx, `
		SELECT id, ts, event, session, run_id, msg_count, context
		FROM decisions
		ORDER BY id DESC
		LIMIT ?`,
		n,
	)
	if err != nil {
		return nil, fmt.Errorf("journal: recent: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return collectEntries(rows)
}

// RecentForSession returns the n most recent entries for one session in
// chronological order.
func (j *Journal) RecentForSession(ctx context.Context, session string, n int) ([]Entry, error) {
	if n <= 0 {
		return nil, nil
	}

	rows, err := j.db.QueryContext(ctx, `
		SELECT id, ts, event, session, run_id, msg_count, context
		FROM decisions
		WHERE session = ?
		ORDER BY id DESC
		LIMIT ?`,
		session, n,
	)
	if err != nil {
		return nil, fmt.Errorf("journal: recent for session: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return collectEntries(rows)
}

// PruneBefore deletes entries older than the cutoff and returns how many
// rows were removed.
func (j *Journal) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := j.db.ExecContext(ctx,
		"DELETE FROM decisions WHERE ts < ?", cutoff.UTC().Format(tsLayout),
	)
	if err != nil {
		return 0, fmt.Errorf("journal: prune: %w", err)
	}

	removed, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("journal: prune rows affected: %w", err)
	}
	return removed, nil
}

// Count returns the number of stored entries.
func (j *Journal) Count(ctx context.Context) (int, error) {
	var count int
	err := j.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM decisions").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("journal: count: %w", err)
	}
	return count, nil
}

// Handler returns a hook handler that records every event it receives.
// Register it for the decision keys the journal should capture.
func (j *Journal) Handler() hook.HandlerFunc {
	return func(ctx context.Context, ev *hook.Event) error {
		e := Entry{
			Timestamp: ev.Timestamp,
			Event:     ev.Key(),
			Session:   ev.Session.String(),
			Messages:  len(ev.Messages),
			Context:   ev.Context,
		}
		if runID, ok := ev.Context["run_id"].(string); ok {
			e.RunID = runID
		}
		return j.Record(ctx, e)
	}
}

func collectEntries(rows *sql.Rows) ([]Entry, error) {
	var entries []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("journal: rows: %w", err)
	}

	// Reverse to chronological order.
	slices.Reverse(entries)
	return entries, nil
}

// scanner abstracts *sql.Row and *sql.Rows for shared scan logic.
type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(s scanner) (Entry, error) {
	var (
		e           Entry
		ts          string
		contextJSON string
	)

	if err := s.Scan(&e.ID, &ts, &e.Event, &e.Session, &e.RunID, &e.Messages, &contextJSON); err != nil {
		return e, fmt.Errorf("journal: scan entry: %w", err)
	}

	parsed, err := time.Parse(tsLayout, ts)
	if err != nil {
		return e, fmt.Errorf("journal: parse timestamp %q: %w", ts, err)
	}
	e.Timestamp = parsed

	if contextJSON != "" && contextJSON != "{}" {
		if err := json.Unmarshal([]byte(contextJSON), &e.Context); err != nil {
			return e, fmt.Errorf("journal: unmarshal context: %w", err)
		}
	}

	return e, nil
}
