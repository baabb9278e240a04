// Package journal keeps a local audit trail of plan submissions.
// Plans themselves are never stored, only the request outcome.
package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Request statuses.
const (
	StatusPending   = "pending"
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
	StatusDiscarded = "discarded"
)

// ErrNotFound is returned when a request id is not journaled.
var ErrNotFound = errors.New("journal: request not found")

// Store provides persistence for plan requests and their events.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// NewStore creates a store over an opened journal database.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record is one journaled submission.
type Record struct {
	ID         string
	CreatedAt  time.Time
	FinishedAt *time.Time
	Goal       string
	UserEmail  string
	Status     string
	PlanID     string
	TraceID    string
	TaskCount  int
	LatencyMS  int64
	Error      string
}

// Outcome describes a successful plan response.
type Outcome struct {
	PlanID    string
	TraceID   string
	TaskCount int
	LatencyMS int64
}

// Event is a timeline entry of a request.
type Event struct {
	Seq     int
	TS      time.Time
	Type    string
	Message string
}

// Begin inserts a pending request and returns its id.
func (s *Store) Begin(ctx context.Context, goal, userEmail string) (string, error) {
	id := uuid.NewString()
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return "", fmt.Errorf("begin request: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO requests(request_id, created_at, goal, user_email, status)
		VALUES(?, ?, ?, ?, ?)`,
		id, s.stamp(), goal, nullableString(userEmail), StatusPending); err != nil {
		_ = tx.Rollback()
		return "", fmt.Errorf("insert request: %w", err)
	}
	if err := s.insertEvent(ctx, tx, id, "submitted", "plan requested"); err != nil {
		_ = tx.Rollback()
		return "", err
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit request: %w", err)
	}
	return id, nil
}

// Succeed completes a pending request with the plan outcome.
func (s *Store) Succeed(ctx context.Context, id string, out Outcome) error {
	msg := fmt.Sprintf("plan %s with %d tasks", out.PlanID, out.TaskCount)
	return s.finish(ctx, id, StatusSucceeded, msg,
		`UPDATE requests SET status=?, finished_at=?, plan_id=?, trace_id=?, task_count=?, latency_ms=? WHERE request_id=?`,
		StatusSucceeded, s.stamp(), out.PlanID, out.TraceID, out.TaskCount, out.LatencyMS, id)
}

// Fail marks a request as failed with the user-facing message.
func (s *Store) Fail(ctx context.Context, id, message string) error {
	return s.finish(ctx, id, StatusFailed, message,
		`UPDATE requests SET status=?, finished_at=?, error=? WHERE request_id=?`,
		StatusFailed, s.stamp(), message, id)
}

// Discard marks a request whose response arrived after a newer submission.
func (s *Store) Discard(ctx context.Context, id string) error {
	return s.finish(ctx, id, StatusDiscarded, "superseded by a newer submission",
		`UPDATE requests SET status=?, finished_at=? WHERE request_id=?`,
		StatusDiscarded, s.stamp(), id)
}

func (s *Store) finish(ctx context.Context, id, typ, message, query string, args ...any) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin %s: %w", typ, err)
	}
	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("update request: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		_ = tx.Rollback()
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err := s.insertEvent(ctx, tx, id, typ, message); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit %s: %w", typ, err)
	}
	return nil
}

// List returns the most recent requests, newest first.
func (s *Store) List(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `SELECT request_id, created_at, finished_at, goal, user_email, status,
		plan_id, trace_id, task_count, latency_ms, error
		FROM requests ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query requests: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := make([]Record, 0, limit)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate requests: %w", err)
	}
	return out, nil
}

// Get returns one request by id.
func (s *Store) Get(ctx context.Context, id string) (Record, error) {
	row := s.db.QueryRowContext(ctx, `SELECT request_id, created_at, finished_at, goal, user_email, status,
		plan_id, trace_id, task_count, latency_ms, error
		FROM requests WHERE request_id=?`, id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return rec, err
}

// Events returns the timeline of a request in order.
func (s *Store) Events(ctx context.Context, id string) ([]Event, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT seq, ts, type, message FROM events WHERE request_id=? ORDER BY seq`, id)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Event
	for rows.Next() {
		var (
			ev Event
			ts string
		)
		if err := rows.Scan(&ev.Seq, &ts, &ev.Type, &ev.Message); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		ev.TS, _ = time.Parse(time.RFC3339Nano, ts)
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (Record, error) {
	var (
		rec                                    Record
		createdAt                              string
		finishedAt, email, planID, trace, errS sql.NullString
	)
	if err := row.Scan(&rec.ID, &createdAt, &finishedAt, &rec.Goal, &email, &rec.Status,
		&planID, &trace, &rec.TaskCount, &rec.LatencyMS, &errS); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Record{}, err
		}
		return Record{}, fmt.Errorf("scan request: %w", err)
	}
	rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	if finishedAt.Valid {
		if t, err := time.Parse(time.RFC3339Nano, finishedAt.String); err == nil {
			rec.FinishedAt = &t
		}
	}
	rec.UserEmail = email.String
	rec.PlanID = planID.String
	rec.TraceID = trace.String
	rec.Error = errS.String
	return rec, nil
}

func (s *Store) insertEvent(ctx context.Context, tx *sql.Tx, id, typ, message string) error {
	seq, err := s.nextSeq(ctx, tx, id)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO events(request_id, seq, ts, type, message) VALUES(?, ?, ?, ?, ?)`,
		id, seq, s.stamp(), typ, message); err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

func (s *Store) nextSeq(ctx context.Context, tx *sql.Tx, id string) (int, error) {
	var seq int
	row := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) FROM events WHERE request_id=?`, id)
	if err := row.Scan(&seq); err != nil {
		return 0, fmt.Errorf("read event seq: %w", err)
	}
	return seq + 1, nil
}

func (s *Store) stamp() string {
	return s.now().UTC().Format(time.RFC3339Nano)
}

func nullableString(v string) any {
	if v == "" {
		return nil
	}
	return v
}
