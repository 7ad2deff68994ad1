package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrDuplicateName is returned when a template name is already taken.
var ErrDuplicateName = errors.New("template name already exists")

const templateColumns = `id, name, title, description, category, priority, client, variables,
	recurrence, due_offset_days, due_time, enabled, last_run_at, next_run_at, created_at, updated_at`

func scanTemplate(row rowScanner) (*Template, error) {
	var (
		t          Template
		variables  string
		recurrence string
		enabled    int
		lastRun    sql.NullTime
		nextRun    sql.NullTime
	)
	err := row.Scan(&t.ID, &t.Name, &t.Title, &t.Description, &t.Category, &t.Priority, &t.Client,
		&variables, &recurrence, &t.DueOffsetDays, &t.DueTime, &enabled, &lastRun, &nextRun,
		&t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(variables), &t.Variables); err != nil {
		return nil, fmt.Errorf("template %d: invalid variables: %w", t.ID, err)
	}
	if err := json.Unmarshal([]byte(recurrence), &t.Recurrence); err != nil {
		return nil, fmt.Errorf("template %d: invalid recurrence: %w", t.ID, err)
	}
	t.Enabled = enabled != 0
	t.LastRunAt = timePtr(lastRun)
	t.NextRunAt = timePtr(nextRun)
	return &t, nil
}

func encodeTemplate(t *Template) (variables, recurrence string, err error) {
	vars := t.Variables
	if vars == nil {
		vars = map[string]string{}
	}
	v, err := json.Marshal(vars)
	if err != nil {
		return "", "", fmt.Errorf("failed to encode variables: %w", err)
	}
	r, err := json.Marshal(t.Recurrence)
	if err != nil {
		return "", "", fmt.Errorf("failed to encode recurrence: %w", err)
	}
	return string(v), string(r), nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// CreateTemplate inserts t, filling in ID and timestamps.
func (s *DB) CreateTemplate(ctx context.Context, t *Template) error {
	variables, recurrence, err := encodeTemplate(t)
	if err != nil {
		return err
	}
	now := s.timestamp()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO templates (name, title, description, category, priority, client, variables,
			recurrence, due_offset_days, due_time, enabled, last_run_at, next_run_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.Name, t.Title, t.Description, t.Category, t.Priority, t.Client, variables,
		recurrence, t.DueOffsetDays, t.DueTime, boolInt(t.Enabled), nullTime(t.LastRunAt), nullTime(t.NextRunAt), now, now)
	if isUniqueViolation(err) {
		return ErrDuplicateName
	}
	if err != nil {
		return fmt.Errorf("failed to insert template: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read template id: %w", err)
	}
	t.ID = id
	t.CreatedAt = now
	t.UpdatedAt = now
	return nil
}

func (s *DB) GetTemplate(ctx context.Context, id int64) (*Template, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+templateColumns+` FROM templates WHERE id = ?`, id)
	t, err := scanTemplate(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get template %d: %w", id, err)
	}
	return t, nil
}

// GetTemplateByName looks a template up by its unique name.
func (s *DB) GetTemplateByName(ctx context.Context, name string) (*Template, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+templateColumns+` FROM templates WHERE name = ?`, name)
	t, err := scanTemplate(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get template %q: %w", name, err)
	}
	return t, nil
}

// ListTemplates returns templates ordered by name.
func (s *DB) ListTemplates(ctx context.Context, enabledOnly bool) ([]Template, error) {
	query := `SELECT ` + templateColumns + ` FROM templates`
	if enabledOnly {
		query += ` WHERE enabled = 1`
	}
	query += ` ORDER BY name`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list templates: %w", err)
	}
	defer rows.Close()

	templates := []Template{}
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan template: %w", err)
		}
		templates = append(templates, *t)
	}
	return templates, rows.Err()
}

// UpdateTemplate overwrites the definition columns of t. Run bookkeeping is
// written separately by SetTemplateRun.
func (s *DB) UpdateTemplate(ctx context.Context, t *Template) error {
	variables, recurrence, err := encodeTemplate(t)
	if err != nil {
		return err
	}
	now := s.timestamp()
	res, err := s.db.ExecContext(ctx, `
		UPDATE templates SET name = ?, title = ?, description = ?, category = ?, priority = ?,
			client = ?, variables = ?, recurrence = ?, due_offset_days = ?, due_time = ?, enabled = ?,
			next_run_at = ?, updated_at = ?
		WHERE id = ?`,
		t.Name, t.Title, t.Description, t.Category, t.Priority,
		t.Client, variables, recurrence, t.DueOffsetDays, t.DueTime, boolInt(t.Enabled),
		nullTime(t.NextRunAt), now, t.ID)
	if isUniqueViolation(err) {
		return ErrDuplicateName
	}
	if err != nil {
		return fmt.Errorf("failed to update template %d: %w", t.ID, err)
	}
	if err := rowsAffected(res); err != nil {
		return err
	}
	t.UpdatedAt = now
	return nil
}

// SetTemplateRun records the last and next run times of a template.
func (s *DB) SetTemplateRun(ctx context.Context, id int64, lastRun, nextRun *time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE templates SET last_run_at = COALESCE(?, last_run_at), next_run_at = ? WHERE id = ?`,
		nullTime(lastRun), nullTime(nextRun), id)
	if err != nil {
		return fmt.Errorf("failed to record run for template %d: %w", id, err)
	}
	return rowsAffected(res)
}

// DeleteTemplate removes the template. Its instances remain as audit history.
func (s *DB) DeleteTemplate(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM templates WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete template %d: %w", id, err)
	}
	return rowsAffected(res)
}

// CreateInstance writes one execution audit row. ExecutedAt defaults to now.
func (s *DB) CreateInstance(ctx context.Context, inst *TemplateInstance) error {
	if inst.ExecutedAt.IsZero() {
		inst.ExecutedAt = s.timestamp()
	}
	var taskID sql.NullInt64
	if inst.TaskID != nil {
		taskID = sql.NullInt64{Int64: *inst.TaskID, Valid: true}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO template_instances (id, template_id, task_id, title, triggered_by, status, error, executed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		inst.ID, inst.TemplateID, taskID, inst.Title, inst.Trigger, inst.Status, inst.Error, inst.ExecutedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to insert template instance: %w", err)
	}
	return nil
}

// ListInstances returns a template's executions, newest first.
func (s *DB) ListInstances(ctx context.Context, templateID int64, limit int) ([]TemplateInstance, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, template_id, task_id, title, triggered_by, status, error, executed_at
		FROM template_instances WHERE template_id = ?
		ORDER BY executed_at DESC, rowid DESC LIMIT ?`, templateID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list instances: %w", err)
	}
	defer rows.Close()

	instances := []TemplateInstance{}
	for rows.Next() {
		var (
			inst   TemplateInstance
			taskID sql.NullInt64
		)
		if err := rows.Scan(&inst.ID, &inst.TemplateID, &taskID, &inst.Title, &inst.Trigger,
			&inst.Status, &inst.Error, &inst.ExecutedAt); err != nil {
			return nil, fmt.Errorf("failed to scan instance: %w", err)
		}
		if taskID.Valid {
			id := taskID.Int64
			inst.TaskID = &id
		}
		instances = append(instances, inst)
	}
	return instances, rows.Err()
}
