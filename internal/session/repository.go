package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// List size bounds.
const (
	defaultListLimit = 50
	maxListLimit     = 500
)

const selectColumns = `SELECT id, context_id, context_name, sequence, start_ms, end_ms,
	started_at, ended_at, status FROM playback_sessions`

// SQLiteRepository stores session records in the playback_sessions table.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a repository over an open database.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Create inserts a new record. ID, StartedAt and Status default to a new
// "ses-" ID, now and StatusRunning.
func (r *SQLiteRepository) Create(ctx context.Context, rec *Record) error {
	if rec.ID == "" {
		rec.ID = "ses-" + uuid.NewString()[:8]
	}
	if rec.StartedAt.IsZero() {
		rec.StartedAt = time.Now()
	}
	rec.StartedAt = rec.StartedAt.UTC()
	if rec.Status == "" {
		rec.Status = StatusRunning
	}

	var endedAt any
	if rec.EndedAt != nil {
		endedAt = formatTime(*rec.EndedAt)
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO playback_sessions
		 (id, context_id, context_name, sequence, start_ms, end_ms, started_at, ended_at, status)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.ContextID, rec.ContextName, rec.Sequence,
		rec.Start.Milliseconds(), rec.End.Milliseconds(),
		formatTime(rec.StartedAt), endedAt, string(rec.Status),
	)
	if err != nil {
		return fmt.Errorf("inserting session: %w", err)
	}
	return nil
}

// Finish sets the terminal status and end time of a record.
func (r *SQLiteRepository) Finish(ctx context.Context, id string, status Status, endedAt time.Time) error {
	if !status.Terminal() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	result, err := r.db.ExecContext(ctx,
		"UPDATE playback_sessions SET status = ?, ended_at = ? WHERE id = ?",
		string(status), formatTime(endedAt), id,
	)
	if err != nil {
		return fmt.Errorf("finishing session: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// Get returns the record with the given ID.
func (r *SQLiteRepository) Get(ctx context.Context, id string) (*Record, error) {
	row := r.db.QueryRowContext(ctx, selectColumns+" WHERE id = ?", id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// List returns up to limit records, newest first. A non-positive limit
// uses the default; limits above the maximum are clamped.
func (r *SQLiteRepository) List(ctx context.Context, limit int) ([]Record, error) {
	return r.query(ctx,
		selectColumns+" ORDER BY started_at DESC, id LIMIT ?",
		clampLimit(limit),
	)
}

// ListByContext returns up to limit records for contextID, newest first.
func (r *SQLiteRepository) ListByContext(ctx context.Context, contextID string, limit int) ([]Record, error) {
	return r.query(ctx,
		selectColumns+" WHERE context_id = ? ORDER BY started_at DESC, id LIMIT ?",
		contextID, clampLimit(limit),
	)
}

// Prune deletes finished records that ended more than olderThan ago.
// Running records are kept.
//
// Returns:
//   - int64: Number of rows deleted
//   - error: nil on success, otherwise the underlying database error
func (r *SQLiteRepository) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, fmt.Errorf("olderThan must be positive")
	}

	cutoff := formatTime(time.Now().Add(-olderThan))
	result, err := r.db.ExecContext(ctx,
		"DELETE FROM playback_sessions WHERE ended_at IS NOT NULL AND ended_at < ?",
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("deleting sessions: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking rows affected: %w", err)
	}
	return n, nil
}

func (r *SQLiteRepository) query(ctx context.Context, query string, args ...any) ([]Record, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying sessions: %w", err)
	}
	defer rows.Close()

	records := make([]Record, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating sessions: %w", err)
	}
	return records, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (*Record, error) {
	var (
		rec              Record
		startMS, endMS   int64
		startedAt, state string
		endedAt          sql.NullString
	)
	if err := s.Scan(&rec.ID, &rec.ContextID, &rec.ContextName, &rec.Sequence,
		&startMS, &endMS, &startedAt, &endedAt, &state); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning session: %w", err)
	}

	rec.Start = time.Duration(startMS) * time.Millisecond
	rec.End = time.Duration(endMS) * time.Millisecond
	rec.Status = Status(state)

	t, err := time.Parse(time.RFC3339Nano, startedAt)
	if err != nil {
		return nil, fmt.Errorf("parsing started_at %q: %w", startedAt, err)
	}
	rec.StartedAt = t

	if endedAt.Valid {
		t, err := time.Parse(time.RFC3339Nano, endedAt.String)
		if err != nil {
			return nil, fmt.Errorf("parsing ended_at %q: %w", endedAt.String, err)
		}
		rec.EndedAt = &t
	}
	return &rec, nil
}

// formatTime renders t so that lexical order matches time order.
func formatTime(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000000000Z07:00")
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	if limit > maxListLimit {
		return maxListLimit
	}
	return limit
}
