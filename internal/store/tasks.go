package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

const taskColumns = `id, title, description, category, client, priority, status,
	due_date, due_time, completed, completed_at, created_at, updated_at`

// likeEscaper makes LIKE wildcards in search text match literally.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*Task, error) {
	var (
		t           Task
		completed   int
		completedAt sql.NullTime
	)
	err := row.Scan(&t.ID, &t.Title, &t.Description, &t.Category, &t.Client, &t.Priority, &t.Status,
		&t.DueDate, &t.DueTime, &completed, &completedAt, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	t.Completed = completed != 0
	t.CompletedAt = timePtr(completedAt)
	return &t, nil
}

// CreateTask inserts t, filling in ID and timestamps.
func (s *DB) CreateTask(ctx context.Context, t *Task) error {
	now := s.timestamp()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO tasks (title, description, category, client, priority, status,
			due_date, due_time, completed, completed_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.Title, t.Description, t.Category, t.Client, t.Priority, t.Status,
		t.DueDate, t.DueTime, boolInt(t.Completed), nullTime(t.CompletedAt), now, now)
	if err != nil {
		return fmt.Errorf("failed to insert task: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read task id: %w", err)
	}
	t.ID = id
	t.CreatedAt = now
	t.UpdatedAt = now
	return nil
}

// GetTask returns the task with id, or ErrNotFound.
func (s *DB) GetTask(ctx context.Context, id int64) (*Task, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get task %d: %w", id, err)
	}
	return t, nil
}

// ListTasks returns tasks matching f ordered by due date (undated last),
// due time, then id.
func (s *DB) ListTasks(ctx context.Context, f TaskFilter) ([]Task, error) {
	var (
		where []string
		args  []any
	)
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, f.Status)
	}
	if f.Category != "" {
		where = append(where, "category = ?")
		args = append(args, f.Category)
	}
	if f.Priority != "" {
		where = append(where, "priority = ?")
		args = append(args, f.Priority)
	}
	if f.Client != "" {
		where = append(where, "client = ? COLLATE NOCASE")
		args = append(args, f.Client)
	}
	if f.Completed != nil {
		where = append(where, "completed = ?")
		args = append(args, boolInt(*f.Completed))
	}
	if f.Search != "" {
		like := "%" + likeEscaper.Replace(f.Search) + "%"
		where = append(where, `(title LIKE ? ESCAPE '\' OR description LIKE ? ESCAPE '\' OR client LIKE ? ESCAPE '\')`)
		args = append(args, like, like, like)
	}
	if f.DueFrom != "" {
		where = append(where, "due_date != '' AND due_date >= ?")
		args = append(args, f.DueFrom)
	}
	if f.DueTo != "" {
		where = append(where, "due_date != '' AND due_date <= ?")
		args = append(args, f.DueTo)
	}
	if f.OverdueBefore != "" {
		where = append(where, "completed = 0 AND due_date != '' AND due_date < ?")
		args = append(args, f.OverdueBefore)
	}
	if f.HasDueDate {
		where = append(where, "due_date != ''")
	}

	query := `SELECT ` + taskColumns + ` FROM tasks`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += ` ORDER BY CASE WHEN due_date = '' THEN 1 ELSE 0 END, due_date, due_time, id`
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	tasks := []Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, *t)
	}
	return tasks, rows.Err()
}

// UpdateTask overwrites every mutable column of t and bumps UpdatedAt.
func (s *DB) UpdateTask(ctx context.Context, t *Task) error {
	now := s.timestamp()
	res, err := s.db.ExecContext(ctx, `
		UPDATE tasks SET title = ?, description = ?, category = ?, client = ?, priority = ?,
			status = ?, due_date = ?, due_time = ?, completed = ?, completed_at = ?, updated_at = ?
		WHERE id = ?`,
		t.Title, t.Description, t.Category, t.Client, t.Priority,
		t.Status, t.DueDate, t.DueTime, boolInt(t.Completed), nullTime(t.CompletedAt), now, t.ID)
	if err != nil {
		return fmt.Errorf("failed to update task %d: %w", t.ID, err)
	}
	if err := rowsAffected(res); err != nil {
		return err
	}
	t.UpdatedAt = now
	return nil
}

// DeleteTask removes the task. Its calendar mapping, if any, is left for the
// next sync pass to clean up together with the remote event.
func (s *DB) DeleteTask(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete task %d: %w", id, err)
	}
	return rowsAffected(res)
}

// MarkOverdue moves pending, incomplete tasks due before today to the overdue
// status and returns how many changed.
func (s *DB) MarkOverdue(ctx context.Context, today string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE tasks SET status = ?, updated_at = ?
		WHERE status = ? AND completed = 0 AND due_date != '' AND due_date < ?`,
		StatusOverdue, s.timestamp(), StatusPending, today)
	if err != nil {
		return 0, fmt.Errorf("failed to mark overdue tasks: %w", err)
	}
	return res.RowsAffected()
}

// TaskExists reports whether a task row exists.
func (s *DB) TaskExists(ctx context.Context, id int64) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM tasks WHERE id = ?`, id).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check task %d: %w", id, err)
	}
	return n > 0, nil
}

// SetNow overrides the clock used for timestamps.
func (s *DB) SetNow(now func() time.Time) {
	s.now = now
}
