package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/daybook/daybook/internal/domain"
)

// ============================================================================
// Task Repository Implementation
// ============================================================================

type sqliteTaskRepository struct {
	ex dbExecutor
}

const taskColumns = `id, title, description, area_id, priority, estimate_minutes, status, checklist,
	recurrence_id, occurrence_date, completed_at, archived_at, deleted_at, created_at, updated_at`

func (r *sqliteTaskRepository) Create(ctx context.Context, task *domain.Task) error {
	checklist, err := encodeChecklist(task.Checklist)
	if err != nil {
		return err
	}
	_, err = r.ex.ExecContext(ctx, `
		INSERT INTO tasks (`+taskColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		task.ID, task.Title, task.Description, task.AreaID, task.Priority, task.EstimateMinutes,
		task.Status, checklist, task.RecurrenceID, task.OccurrenceDate,
		formatTimePtr(task.CompletedAt), formatTimePtr(task.ArchivedAt), formatTimePtr(task.DeletedAt),
		formatTime(task.CreatedAt), formatTime(task.UpdatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("task %s: %w", task.ID, ErrConflict)
		}
		return fmt.Errorf("failed to create task: %w", err)
	}
	return nil
}

func (r *sqliteTaskRepository) Get(ctx context.Context, id string) (*domain.Task, error) {
	row := r.ex.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	task, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	return task, nil
}

func (r *sqliteTaskRepository) Update(ctx context.Context, task *domain.Task) error {
	checklist, err := encodeChecklist(task.Checklist)
	if err != nil {
		return err
	}
	res, err := r.ex.ExecContext(ctx, `
		UPDATE tasks
		SET title = ?, description = ?, area_id = ?, priority = ?, estimate_minutes = ?,
			status = ?, checklist = ?, recurrence_id = ?, occurrence_date = ?,
			completed_at = ?, archived_at = ?, deleted_at = ?, updated_at = ?
		WHERE id = ?
	`,
		task.Title, task.Description, task.AreaID, task.Priority, task.EstimateMinutes,
		task.Status, checklist, task.RecurrenceID, task.OccurrenceDate,
		formatTimePtr(task.CompletedAt), formatTimePtr(task.ArchivedAt), formatTimePtr(task.DeletedAt),
		formatTime(task.UpdatedAt), task.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update task: %w", err)
	}
	return requireAffected(res)
}

func (r *sqliteTaskRepository) HasDeletedOccurrence(ctx context.Context, recurrenceID string, date domain.Date) (bool, error) {
	var found bool
	err := r.ex.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM tasks
			WHERE recurrence_id = ? AND occurrence_date = ? AND deleted_at IS NOT NULL
		)
	`, recurrenceID, date).Scan(&found)
	if err != nil {
		return false, fmt.Errorf("failed to look up deleted task: %w", err)
	}
	return found, nil
}

func scanTask(row rowScanner) (*domain.Task, error) {
	var (
		task                              domain.Task
		description, areaID, recurrenceID sql.NullString
		occurrence, completed, archived   sql.NullString
		deleted                           sql.NullString
		estimate                          sql.NullInt64
		checklist, created, updated       string
	)
	if err := row.Scan(
		&task.ID, &task.Title, &description, &areaID, &task.Priority, &estimate, &task.Status, &checklist,
		&recurrenceID, &occurrence, &completed, &archived, &deleted, &created, &updated,
	); err != nil {
		return nil, err
	}

	task.Description = nullString(description)
	task.AreaID = nullString(areaID)
	task.EstimateMinutes = nullInt(estimate)
	task.RecurrenceID = nullString(recurrenceID)

	var err error
	if task.Checklist, err = decodeChecklist(checklist); err != nil {
		return nil, err
	}
	if task.OccurrenceDate, err = parseDatePtr(occurrence); err != nil {
		return nil, err
	}
	if task.CompletedAt, err = parseTimePtr(completed); err != nil {
		return nil, err
	}
	if task.ArchivedAt, err = parseTimePtr(archived); err != nil {
		return nil, err
	}
	if task.DeletedAt, err = parseTimePtr(deleted); err != nil {
		return nil, err
	}
	if task.CreatedAt, err = parseTime(created); err != nil {
		return nil, err
	}
	if task.UpdatedAt, err = parseTime(updated); err != nil {
		return nil, err
	}
	return &task, nil
}
