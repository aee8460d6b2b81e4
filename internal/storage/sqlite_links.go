package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/daybook/daybook/internal/domain"
)

type sqliteLinkRepository struct {
	ex dbExecutor
}

const linkColumns = `recurrence_id, occurrence_date, instance_id, instance_kind, created_at`

// InsertIfAbsent relies on the (recurrence_id, occurrence_date) primary key.
// A link whose instance is already linked elsewhere violates the UNIQUE
// instance_id constraint and is reported as ErrConflict.
func (r *sqliteLinkRepository) InsertIfAbsent(ctx context.Context, link *domain.Link) (bool, error) {
	res, err := r.ex.ExecContext(ctx, `
		INSERT INTO recurrence_links (`+linkColumns+`)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (recurrence_id, occurrence_date) DO NOTHING
	`, link.RecurrenceID, link.OccurrenceDate, link.InstanceID, link.InstanceKind, formatTime(link.CreatedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return false, fmt.Errorf("instance %s is already linked: %w", link.InstanceID, ErrConflict)
		}
		return false, fmt.Errorf("failed to insert link: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n == 1, nil
}

func (r *sqliteLinkRepository) Get(ctx context.Context, recurrenceID string, date domain.Date) (*domain.Link, error) {
	row := r.ex.QueryRowContext(ctx, `
		SELECT `+linkColumns+` FROM recurrence_links
		WHERE recurrence_id = ? AND occurrence_date = ?
	`, recurrenceID, date)
	return r.one(row)
}

func (r *sqliteLinkRepository) GetByInstance(ctx context.Context, instanceID string) (*domain.Link, error) {
	row := r.ex.QueryRowContext(ctx, `SELECT `+linkColumns+` FROM recurrence_links WHERE instance_id = ?`, instanceID)
	return r.one(row)
}

func (r *sqliteLinkRepository) one(row *sql.Row) (*domain.Link, error) {
	link, err := scanLink(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get link: %w", err)
	}
	return link, nil
}

func (r *sqliteLinkRepository) ListForRecurrence(ctx context.Context, recurrenceID string, from *domain.Date) ([]*domain.Link, error) {
	query := `SELECT ` + linkColumns + ` FROM recurrence_links WHERE recurrence_id = ?`
	args := []any{recurrenceID}
	if from != nil {
		query += ` AND occurrence_date >= ?`
		args = append(args, *from)
	}
	query += ` ORDER BY occurrence_date`

	rows, err := r.ex.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list links: %w", err)
	}
	defer rows.Close()

	var out []*domain.Link
	for rows.Next() {
		link, err := scanLink(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan link: %w", err)
		}
		out = append(out, link)
	}
	return out, rows.Err()
}

func (r *sqliteLinkRepository) DeleteFrom(ctx context.Context, recurrenceID string, threshold domain.Date) (int64, error) {
	res, err := r.ex.ExecContext(ctx, `
		DELETE FROM recurrence_links WHERE recurrence_id = ? AND occurrence_date >= ?
	`, recurrenceID, threshold)
	if err != nil {
		return 0, fmt.Errorf("failed to delete links: %w", err)
	}
	return res.RowsAffected()
}

func (r *sqliteLinkRepository) DeleteByInstance(ctx context.Context, instanceID string) error {
	if _, err := r.ex.ExecContext(ctx, `DELETE FROM recurrence_links WHERE instance_id = ?`, instanceID); err != nil {
		return fmt.Errorf("failed to delete link: %w", err)
	}
	return nil
}

func scanLink(row rowScanner) (*domain.Link, error) {
	var link domain.Link
	var created string
	if err := row.Scan(&link.RecurrenceID, &link.OccurrenceDate, &link.InstanceID, &link.InstanceKind, &created); err != nil {
		return nil, err
	}
	t, err := parseTime(created)
	if err != nil {
		return nil, err
	}
	link.CreatedAt = t
	return &link, nil
}
