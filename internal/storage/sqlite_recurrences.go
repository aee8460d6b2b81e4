package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/daybook/daybook/internal/domain"
)

type sqliteRecurrenceRepository struct {
	ex dbExecutor
}

const recurrenceColumns = `id, template_id, kind, rule, time_type, start_date, end_date, timezone,
	expiry_behavior, active, created_at, updated_at, deleted_at`

func (r *sqliteRecurrenceRepository) Create(ctx context.Context, rec *domain.Recurrence) error {
	_, err := r.ex.ExecContext(ctx, `
		INSERT INTO recurrences (`+recurrenceColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		rec.ID, rec.TemplateID, rec.Kind, rec.Rule, rec.TimeType, rec.StartDate, rec.EndDate, rec.Timezone,
		rec.ExpiryBehavior, rec.Active, formatTime(rec.CreatedAt), formatTime(rec.UpdatedAt), formatTimePtr(rec.DeletedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("recurrence %s: %w", rec.ID, ErrConflict)
		}
		return fmt.Errorf("failed to create recurrence: %w", err)
	}
	return nil
}

func (r *sqliteRecurrenceRepository) Get(ctx context.Context, id string) (*domain.Recurrence, error) {
	row := r.ex.QueryRowContext(ctx, `SELECT `+recurrenceColumns+` FROM recurrences WHERE id = ?`, id)
	rec, err := scanRecurrence(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get recurrence: %w", err)
	}
	return rec, nil
}

func (r *sqliteRecurrenceRepository) Update(ctx context.Context, rec *domain.Recurrence) error {
	res, err := r.ex.ExecContext(ctx, `
		UPDATE recurrences
		SET rule = ?, time_type = ?, end_date = ?, timezone = ?, expiry_behavior = ?,
			active = ?, updated_at = ?, deleted_at = ?
		WHERE id = ?
	`,
		rec.Rule, rec.TimeType, rec.EndDate, rec.Timezone, rec.ExpiryBehavior,
		rec.Active, formatTime(rec.UpdatedAt), formatTimePtr(rec.DeletedAt), rec.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update recurrence: %w", err)
	}
	return requireAffected(res)
}

func (r *sqliteRecurrenceRepository) List(ctx context.Context, opts RecurrenceListOptions) ([]*domain.Recurrence, error) {
	conditions := []string{"deleted_at IS NULL"}
	var args []any
	if opts.ActiveOnly {
		conditions = append(conditions, "active = 1")
	}
	if opts.TemplateID != nil {
		conditions = append(conditions, "template_id = ?")
		args = append(args, *opts.TemplateID)
	}

	query := `SELECT ` + recurrenceColumns + ` FROM recurrences WHERE ` +
		strings.Join(conditions, " AND ") + ` ORDER BY created_at, id`
	return r.query(ctx, query, args...)
}

func (r *sqliteRecurrenceRepository) ListEffectiveOn(ctx context.Context, date domain.Date) ([]*domain.Recurrence, error) {
	return r.query(ctx, `
		SELECT `+recurrenceColumns+`
		FROM recurrences
		WHERE active = 1 AND deleted_at IS NULL
			AND start_date <= ? AND (end_date IS NULL OR end_date >= ?)
		ORDER BY created_at, id
	`, date, date)
}

func (r *sqliteRecurrenceRepository) query(ctx context.Context, query string, args ...any) ([]*domain.Recurrence, error) {
	rows, err := r.ex.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list recurrences: %w", err)
	}
	defer rows.Close()

	var out []*domain.Recurrence
	for rows.Next() {
		rec, err := scanRecurrence(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan recurrence: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func scanRecurrence(row rowScanner) (*domain.Recurrence, error) {
	var (
		rec              domain.Recurrence
		endDate, deleted sql.NullString
		created, updated string
	)
	if err := row.Scan(
		&rec.ID, &rec.TemplateID, &rec.Kind, &rec.Rule, &rec.TimeType, &rec.StartDate, &endDate, &rec.Timezone,
		&rec.ExpiryBehavior, &rec.Active, &created, &updated, &deleted,
	); err != nil {
		return nil, err
	}

	var err error
	if rec.EndDate, err = parseDatePtr(endDate); err != nil {
		return nil, err
	}
	if rec.CreatedAt, err = parseTime(created); err != nil {
		return nil, err
	}
	if rec.UpdatedAt, err = parseTime(updated); err != nil {
		return nil, err
	}
	if rec.DeletedAt, err = parseTimePtr(deleted); err != nil {
		return nil, err
	}
	return &rec, nil
}
