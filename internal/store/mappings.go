package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const mappingColumns = `task_id, event_id, calendar_id, sync_status, conflict_reason, last_synced_at, created_at`

func scanMapping(row rowScanner) (*Mapping, error) {
	var m Mapping
	if err := row.Scan(&m.TaskID, &m.EventID, &m.CalendarID, &m.SyncStatus, &m.ConflictReason,
		&m.LastSyncedAt, &m.CreatedAt); err != nil {
		return nil, err
	}
	return &m, nil
}

// GetMapping returns the mapping for a task, or ErrNotFound.
func (s *DB) GetMapping(ctx context.Context, taskID int64) (*Mapping, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+mappingColumns+` FROM task_calendar_mappings WHERE task_id = ?`, taskID)
	m, err := scanMapping(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get mapping for task %d: %w", taskID, err)
	}
	return m, nil
}

// ListMappings returns all mappings, or only those with status when set.
func (s *DB) ListMappings(ctx context.Context, status SyncStatus) ([]Mapping, error) {
	query := `SELECT ` + mappingColumns + ` FROM task_calendar_mappings`
	var args []any
	if status != "" {
		query += ` WHERE sync_status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY task_id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list mappings: %w", err)
	}
	defer rows.Close()

	mappings := []Mapping{}
	for rows.Next() {
		m, err := scanMapping(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan mapping: %w", err)
		}
		mappings = append(mappings, *m)
	}
	return mappings, rows.Err()
}

// SaveMapping inserts or replaces the mapping for m.TaskID.
func (s *DB) SaveMapping(ctx context.Context, m *Mapping) error {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = s.timestamp()
	}
	if m.SyncStatus == "" {
		m.SyncStatus = SyncStatusSynced
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO task_calendar_mappings (task_id, event_id, calendar_id, sync_status, conflict_reason, last_synced_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(task_id) DO UPDATE SET
			event_id = excluded.event_id,
			calendar_id = excluded.calendar_id,
			sync_status = excluded.sync_status,
			conflict_reason = excluded.conflict_reason,
			last_synced_at = excluded.last_synced_at`,
		m.TaskID, m.EventID, m.CalendarID, m.SyncStatus, m.ConflictReason, m.LastSyncedAt.UTC(), m.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to save mapping for task %d: %w", m.TaskID, err)
	}
	return nil
}

// DeleteMapping removes the mapping for a task.
func (s *DB) DeleteMapping(ctx context.Context, taskID int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM task_calendar_mappings WHERE task_id = ?`, taskID)
	if err != nil {
		return fmt.Errorf("failed to delete mapping for task %d: %w", taskID, err)
	}
	return rowsAffected(res)
}

// DeleteAllMappings clears every mapping, used when the calendar is
// disconnected.
func (s *DB) DeleteAllMappings(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM task_calendar_mappings`); err != nil {
		return fmt.Errorf("failed to clear mappings: %w", err)
	}
	return nil
}

// CountMappings returns the number of mappings per sync status.
func (s *DB) CountMappings(ctx context.Context) (map[SyncStatus]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT sync_status, COUNT(1) FROM task_calendar_mappings GROUP BY sync_status`)
	if err != nil {
		return nil, fmt.Errorf("failed to count mappings: %w", err)
	}
	defer rows.Close()

	counts := map[SyncStatus]int{}
	for rows.Next() {
		var (
			status SyncStatus
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}
