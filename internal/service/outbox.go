package service

import (
	"context"

	"github.com/daybook/daybook/internal/domain"
)

// OutboxService exposes the event log to consumers.
type OutboxService struct {
	base
}

// List returns up to limit events with an ID greater than after.
func (s *OutboxService) List(ctx context.Context, after int64, limit int) ([]*domain.OutboxEvent, error) {
	evts, err := s.store().Outbox().ListAfter(ctx, after, limit)
	if err != nil {
		return nil, mapError(err)
	}
	if evts == nil {
		evts = []*domain.OutboxEvent{}
	}
	return evts, nil
}
