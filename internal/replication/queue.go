package replication

import (
	"bytes"
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskInProgress TaskStatus = "in_progress"
	TaskFailed     TaskStatus = "failed"
	TaskDone       TaskStatus = "done"
)

// Task is one statement waiting to be replayed against one target.
type Task struct {
	ID        string     `json:"id"`
	Conn      string     `json:"conn"`
	SQL       string     `json:"sql"`
	Params    []any      `json:"params"`
	Attempts  int        `json:"attempts"`
	LastError *string    `json:"lastError"`
	Status    TaskStatus `json:"status"`
	NextTryAt time.Time  `json:"nextTryAt"`
	StartedAt *time.Time `json:"startedAt"`
	CreatedAt time.Time  `json:"createdAt"`
}

// Queue is the durable task table, kept in its own SQLite file.
type Queue struct {
	db  *sql.DB
	now func() time.Time
}

func OpenQueue(path string) (*Queue, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create queue directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open queue: %w", err)
	}
	// sqlite allows one writer; one connection avoids SQLITE_BUSY between our own goroutines
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize queue schema: %w", err)
	}

	return &Queue{db: db, now: time.Now}, nil
}

func (q *Queue) Close() error {
	return q.db.Close()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

func parseTime(s string) time.Time {
	t, _ := time.ParseInLocation(TimeLayout, s, time.UTC)
	return t
}

// Enqueue records a statement for later replay and returns the task id.
func (q *Queue) Enqueue(ctx context.Context, conn, statement string, params []any) (string, error) {
	raw, err := json.Marshal(params)
	if err != nil {
		return "", fmt.Errorf("failed to encode params: %w", err)
	}

	id := uuid.NewString()
	now := formatTime(q.now())
	_, err = q.db.ExecContext(ctx, `
		INSERT INTO backup_tasks (id, conn, sql, params, attempts, status, next_try_at, created_at)
		VALUES (?, ?, ?, ?, 0, 'pending', ?, ?)`,
		id, conn, statement, string(raw), now, now)
	if err != nil {
		return "", fmt.Errorf("failed to enqueue task: %w", err)
	}
	return id, nil
}

const taskColumns = `id, conn, sql, params, attempts, last_error, status, next_try_at, started_at, created_at`

func scanTask(rows *sql.Rows) (Task, error) {
	var (
		t                  Task
		params             string
		lastErr, startedAt sql.NullString
		nextTry, createdAt string
	)
	if err := rows.Scan(&t.ID, &t.Conn, &t.SQL, &params, &t.Attempts, &lastErr, &t.Status, &nextTry, &startedAt, &createdAt); err != nil {
		return t, err
	}

	var err error
	if t.Params, err = decodeParams(params); err != nil {
		return t, fmt.Errorf("task %s: %w", t.ID, err)
	}
	if lastErr.Valid {
		t.LastError = &lastErr.String
	}
	if startedAt.Valid {
		st := parseTime(startedAt.String)
		t.StartedAt = &st
	}
	t.NextTryAt = parseTime(nextTry)
	t.CreatedAt = parseTime(createdAt)
	return t, nil
}

// decodeParams keeps integers integral instead of letting them become float64.
func decodeParams(raw string) ([]any, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.UseNumber()

	var params []any
	if err := dec.Decode(&params); err != nil {
		return nil, err
	}
	for i, p := range params {
		if n, ok := p.(json.Number); ok {
			if v, err := n.Int64(); err == nil {
				params[i] = v
			} else if f, err := n.Float64(); err == nil {
				params[i] = f
			}
		}
	}
	return params, nil
}

func (q *Queue) query(ctx context.Context, query string, args ...any) ([]Task, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tasks := []Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// Due returns up to limit runnable tasks, oldest first.
func (q *Queue) Due(ctx context.Context, limit int) ([]Task, error) {
	return q.query(ctx, `SELECT `+taskColumns+` FROM backup_tasks
		WHERE status IN ('pending', 'failed') AND next_try_at <= ?
		ORDER BY created_at ASC, rowid ASC LIMIT ?`, formatTime(q.now()), limit)
}

// List returns the newest tasks, optionally filtered by status.
func (q *Queue) List(ctx context.Context, status TaskStatus, limit int) ([]Task, error) {
	if status == "" {
		return q.query(ctx, `SELECT `+taskColumns+` FROM backup_tasks ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	}
	return q.query(ctx, `SELECT `+taskColumns+` FROM backup_tasks WHERE status = ? ORDER BY created_at DESC, rowid DESC LIMIT ?`, status, limit)
}

func (q *Queue) Get(ctx context.Context, id string) (*Task, error) {
	tasks, err := q.query(ctx, `SELECT `+taskColumns+` FROM backup_tasks WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(tasks) == 0 {
		return nil, sql.ErrNoRows
	}
	return &tasks[0], nil
}

// Counts returns the number of tasks per status.
func (q *Queue) Counts(ctx context.Context) (map[TaskStatus]int, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM backup_tasks GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := map[TaskStatus]int{TaskPending: 0, TaskInProgress: 0, TaskFailed: 0, TaskDone: 0}
	for rows.Next() {
		var status TaskStatus
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

// Claim marks a task in_progress. It reports false when another pass already
// took it or it finished.
func (q *Queue) Claim(ctx context.Context, id string) (bool, error) {
	res, err := q.db.ExecContext(ctx,
		`UPDATE backup_tasks SET status = 'in_progress', started_at = ? WHERE id = ? AND status IN ('pending', 'failed')`,
		formatTime(q.now()), id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

func (q *Queue) MarkDone(ctx context.Context, id string) error {
	_, err := q.db.ExecContext(ctx, `UPDATE backup_tasks SET status = 'done' WHERE id = ?`, id)
	return err
}

// MarkFailed records a failed attempt and schedules the next one.
func (q *Queue) MarkFailed(ctx context.Context, id string, attempts int, cause string, nextTry time.Time) error {
	_, err := q.db.ExecContext(ctx,
		`UPDATE backup_tasks SET attempts = ?, last_error = ?, status = 'failed', next_try_at = ? WHERE id = ?`,
		attempts, cause, formatTime(nextTry), id)
	return err
}

// ResetStale returns in_progress tasks started before now-grace to pending.
// Those are tasks whose worker died mid-replay.
func (q *Queue) ResetStale(ctx context.Context, grace time.Duration) (int64, error) {
	cutoff := formatTime(q.now().Add(-grace))
	res, err := q.db.ExecContext(ctx, `
		UPDATE backup_tasks SET status = 'pending', started_at = NULL
		WHERE status = 'in_progress' AND (started_at IS NULL OR started_at < ?)`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
