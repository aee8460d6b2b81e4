package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/daybook/daybook/internal/domain"
)

type sqliteTimeBlockRepository struct {
	ex dbExecutor
}

const timeBlockColumns = `id, title, description, area_id, start_at, end_at, floating, status,
	recurrence_id, occurrence_date, completed_at, deleted_at, created_at, updated_at`

func (r *sqliteTimeBlockRepository) Create(ctx context.Context, b *domain.TimeBlock) error {
	_, err := r.ex.ExecContext(ctx, `
		INSERT INTO time_blocks (`+timeBlockColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		b.ID, b.Title, b.Description, b.AreaID, formatTime(b.StartAt), formatTime(b.EndAt), b.Floating, b.Status,
		b.RecurrenceID, b.OccurrenceDate, formatTimePtr(b.CompletedAt), formatTimePtr(b.DeletedAt),
		formatTime(b.CreatedAt), formatTime(b.UpdatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("time block %s: %w", b.ID, ErrConflict)
		}
		return fmt.Errorf("failed to create time block: %w", err)
	}
	return nil
}

func (r *sqliteTimeBlockRepository) Get(ctx context.Context, id string) (*domain.TimeBlock, error) {
	row := r.ex.QueryRowContext(ctx, `SELECT `+timeBlockColumns+` FROM time_blocks WHERE id = ?`, id)
	b, err := scanTimeBlock(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get time block: %w", err)
	}
	return b, nil
}

func (r *sqliteTimeBlockRepository) Update(ctx context.Context, b *domain.TimeBlock) error {
	res, err := r.ex.ExecContext(ctx, `
		UPDATE time_blocks
		SET title = ?, description = ?, area_id = ?, start_at = ?, end_at = ?, floating = ?,
			status = ?, recurrence_id = ?, occurrence_date = ?, completed_at = ?, deleted_at = ?,
			updated_at = ?
		WHERE id = ?
	`,
		b.Title, b.Description, b.AreaID, formatTime(b.StartAt), formatTime(b.EndAt), b.Floating,
		b.Status, b.RecurrenceID, b.OccurrenceDate, formatTimePtr(b.CompletedAt), formatTimePtr(b.DeletedAt),
		formatTime(b.UpdatedAt), b.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update time block: %w", err)
	}
	return requireAffected(res)
}

func (r *sqliteTimeBlockRepository) HasDeletedOccurrence(ctx context.Context, recurrenceID string, date domain.Date) (bool, error) {
	var found bool
	err := r.ex.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM time_blocks
			WHERE recurrence_id = ? AND occurrence_date = ? AND deleted_at IS NOT NULL
		)
	`, recurrenceID, date).Scan(&found)
	if err != nil {
		return false, fmt.Errorf("failed to look up deleted time block: %w", err)
	}
	return found, nil
}

func scanTimeBlock(row rowScanner) (*domain.TimeBlock, error) {
	var (
		b                                 domain.TimeBlock
		description, areaID, recurrenceID sql.NullString
		occurrence, completed, deleted    sql.NullString
		startAt, endAt, created, updated  string
	)
	if err := row.Scan(
		&b.ID, &b.Title, &description, &areaID, &startAt, &endAt, &b.Floating, &b.Status,
		&recurrenceID, &occurrence, &completed, &deleted, &created, &updated,
	); err != nil {
		return nil, err
	}

	b.Description = nullString(description)
	b.AreaID = nullString(areaID)
	b.RecurrenceID = nullString(recurrenceID)

	var err error
	if b.StartAt, err = parseTime(startAt); err != nil {
		return nil, err
	}
	if b.EndAt, err = parseTime(endAt); err != nil {
		return nil, err
	}
	if b.OccurrenceDate, err = parseDatePtr(occurrence); err != nil {
		return nil, err
	}
	if b.CompletedAt, err = parseTimePtr(completed); err != nil {
		return nil, err
	}
	if b.DeletedAt, err = parseTimePtr(deleted); err != nil {
		return nil, err
	}
	if b.CreatedAt, err = parseTime(created); err != nil {
		return nil, err
	}
	if b.UpdatedAt, err = parseTime(updated); err != nil {
		return nil, err
	}
	return &b, nil
}
