package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/daybook/daybook/internal/domain"
)

type sqliteTemplateRepository struct {
	ex dbExecutor
}

const templateColumns = `id, kind, title, description, area_id, priority, estimate_minutes,
	start_time, end_time, checklist, created_at, updated_at`

func (r *sqliteTemplateRepository) Create(ctx context.Context, tpl *domain.Template) error {
	checklist, err := encodeChecklist(tpl.Checklist)
	if err != nil {
		return err
	}
	_, err = r.ex.ExecContext(ctx, `
		INSERT INTO templates (`+templateColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		tpl.ID, tpl.Kind, tpl.Title, tpl.Description, tpl.AreaID, tpl.Priority, tpl.EstimateMinutes,
		tpl.StartTime, tpl.EndTime, checklist, formatTime(tpl.CreatedAt), formatTime(tpl.UpdatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("template %s: %w", tpl.ID, ErrConflict)
		}
		return fmt.Errorf("failed to create template: %w", err)
	}
	return nil
}

func (r *sqliteTemplateRepository) Get(ctx context.Context, id string) (*domain.Template, error) {
	row := r.ex.QueryRowContext(ctx, `SELECT `+templateColumns+` FROM templates WHERE id = ?`, id)
	tpl, err := scanTemplate(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get template: %w", err)
	}
	return tpl, nil
}

func (r *sqliteTemplateRepository) Update(ctx context.Context, tpl *domain.Template) error {
	checklist, err := encodeChecklist(tpl.Checklist)
	if err != nil {
		return err
	}
	res, err := r.ex.ExecContext(ctx, `
		UPDATE templates
		SET title = ?, description = ?, area_id = ?, priority = ?, estimate_minutes = ?,
			start_time = ?, end_time = ?, checklist = ?, updated_at = ?
		WHERE id = ?
	`,
		tpl.Title, tpl.Description, tpl.AreaID, tpl.Priority, tpl.EstimateMinutes,
		tpl.StartTime, tpl.EndTime, checklist, formatTime(tpl.UpdatedAt), tpl.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update template: %w", err)
	}
	return requireAffected(res)
}

func (r *sqliteTemplateRepository) List(ctx context.Context) ([]*domain.Template, error) {
	rows, err := r.ex.QueryContext(ctx, `SELECT `+templateColumns+` FROM templates ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list templates: %w", err)
	}
	defer rows.Close()

	var out []*domain.Template
	for rows.Next() {
		tpl, err := scanTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan template: %w", err)
		}
		out = append(out, tpl)
	}
	return out, rows.Err()
}

func scanTemplate(row rowScanner) (*domain.Template, error) {
	var (
		tpl                         domain.Template
		description, areaID         sql.NullString
		startTime, endTime          sql.NullString
		estimate                    sql.NullInt64
		checklist, created, updated string
	)
	if err := row.Scan(
		&tpl.ID, &tpl.Kind, &tpl.Title, &description, &areaID, &tpl.Priority, &estimate,
		&startTime, &endTime, &checklist, &created, &updated,
	); err != nil {
		return nil, err
	}

	tpl.Description = nullString(description)
	tpl.AreaID = nullString(areaID)
	tpl.EstimateMinutes = nullInt(estimate)
	tpl.StartTime = nullString(startTime)
	tpl.EndTime = nullString(endTime)

	var err error
	if tpl.Checklist, err = decodeChecklist(checklist); err != nil {
		return nil, err
	}
	if tpl.CreatedAt, err = parseTime(created); err != nil {
		return nil, err
	}
	if tpl.UpdatedAt, err = parseTime(updated); err != nil {
		return nil, err
	}
	return &tpl, nil
}
