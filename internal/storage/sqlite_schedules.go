package storage

import (
	"context"
	"fmt"

	"github.com/daybook/daybook/internal/domain"
)

type sqliteScheduleRepository struct {
	ex dbExecutor
}

func (r *sqliteScheduleRepository) Create(ctx context.Context, s domain.Schedule) error {
	_, err := r.ex.ExecContext(ctx, `
		INSERT INTO schedules (instance_id, kind, date) VALUES (?, ?, ?)
	`, s.InstanceID, s.Kind, s.Date)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("schedule %s on %s: %w", s.InstanceID, s.Date, ErrConflict)
		}
		return fmt.Errorf("failed to create schedule: %w", err)
	}
	return nil
}

func (r *sqliteScheduleRepository) Exists(ctx context.Context, instanceID string, date domain.Date) (bool, error) {
	var exists bool
	err := r.ex.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM schedules WHERE instance_id = ? AND date = ?)
	`, instanceID, date).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check schedule: %w", err)
	}
	return exists, nil
}

func (r *sqliteScheduleRepository) ListForInstance(ctx context.Context, instanceID string) ([]domain.Schedule, error) {
	return r.query(ctx, `
		SELECT instance_id, kind, date FROM schedules WHERE instance_id = ? ORDER BY date
	`, instanceID)
}

func (r *sqliteScheduleRepository) ListRange(ctx context.Context, from, to domain.Date) ([]domain.Schedule, error) {
	return r.query(ctx, `
		SELECT instance_id, kind, date FROM schedules
		WHERE date >= ? AND date <= ?
		ORDER BY date, instance_id
	`, from, to)
}

func (r *sqliteScheduleRepository) query(ctx context.Context, query string, args ...any) ([]domain.Schedule, error) {
	rows, err := r.ex.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list schedules: %w", err)
	}
	defer rows.Close()

	var out []domain.Schedule
	for rows.Next() {
		var s domain.Schedule
		if err := rows.Scan(&s.InstanceID, &s.Kind, &s.Date); err != nil {
			return nil, fmt.Errorf("failed to scan schedule: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *sqliteScheduleRepository) Delete(ctx context.Context, instanceID string, date domain.Date) error {
	if _, err := r.ex.ExecContext(ctx, `DELETE FROM schedules WHERE instance_id = ? AND date = ?`, instanceID, date); err != nil {
		return fmt.Errorf("failed to delete schedule: %w", err)
	}
	return nil
}

func (r *sqliteScheduleRepository) DeleteForInstance(ctx context.Context, instanceID string) error {
	if _, err := r.ex.ExecContext(ctx, `DELETE FROM schedules WHERE instance_id = ?`, instanceID); err != nil {
		return fmt.Errorf("failed to delete schedules: %w", err)
	}
	return nil
}
