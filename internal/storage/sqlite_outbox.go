package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/daybook/daybook/internal/domain"
)

type sqliteOutboxRepository struct {
	ex dbExecutor
}

func (r *sqliteOutboxRepository) Append(ctx context.Context, event *domain.OutboxEvent) error {
	var payload *string
	if len(event.Payload) > 0 {
		p := string(event.Payload)
		payload = &p
	}
	res, err := r.ex.ExecContext(ctx, `
		INSERT INTO outbox (type, entity_id, payload, created_at) VALUES (?, ?, ?, ?)
	`, event.Type, event.EntityID, payload, formatTime(event.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to append outbox event: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read outbox id: %w", err)
	}
	event.ID = id
	return nil
}

func (r *sqliteOutboxRepository) ListAfter(ctx context.Context, afterID int64, limit int) ([]*domain.OutboxEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.ex.QueryContext(ctx, `
		SELECT id, type, entity_id, payload, created_at
		FROM outbox WHERE id > ? ORDER BY id LIMIT ?
	`, afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list outbox: %w", err)
	}
	defer rows.Close()

	var out []*domain.OutboxEvent
	for rows.Next() {
		var e domain.OutboxEvent
		var payload sql.NullString
		var created string
		if err := rows.Scan(&e.ID, &e.Type, &e.EntityID, &payload, &created); err != nil {
			return nil, fmt.Errorf("failed to scan outbox event: %w", err)
		}
		if payload.Valid {
			e.Payload = []byte(payload.String)
		}
		if e.CreatedAt, err = parseTime(created); err != nil {
			return nil, err
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}
