package service

import (
	"context"
	"errors"
	"time"

	"github.com/daybook/daybook/internal/domain"
	"github.com/daybook/daybook/internal/events"
	"github.com/daybook/daybook/internal/storage"
)

// TimeBlockService handles time block business logic. Time blocks are only
// created by recurrences.
type TimeBlockService struct {
	base
}

// Get retrieves a time block by ID. Deleted blocks are not found.
func (s *TimeBlockService) Get(ctx context.Context, id string) (*domain.TimeBlock, error) {
	block, err := getTimeBlock(ctx, s.store(), id)
	if err != nil {
		return nil, mapError(err)
	}
	return block, nil
}

// Complete marks a time block as completed.
func (s *TimeBlockService) Complete(ctx context.Context, id string) (*domain.TimeBlock, error) {
	return s.mutate(ctx, id, func(_ storage.TxStore, block *domain.TimeBlock, now time.Time) error {
		if block.IsCompleted() {
			return nil
		}
		block.Status = domain.StatusCompleted
		block.CompletedAt = &now
		return nil
	})
}

// Delete soft-deletes a time block.
func (s *TimeBlockService) Delete(ctx context.Context, id string) error {
	_, err := s.mutate(ctx, id, func(_ storage.TxStore, block *domain.TimeBlock, now time.Time) error {
		block.DeletedAt = &now
		return nil
	})
	return err
}

// Reschedule moves a block to another date keeping its time of day. Fixed
// blocks keep the wall-clock time of their rule's timezone, so the instant
// shifts when the move crosses a DST change.
func (s *TimeBlockService) Reschedule(ctx context.Context, id string, to domain.Date) (*domain.TimeBlock, error) {
	if to.IsZero() {
		return nil, domain.NewFieldValidationError("date", "is required")
	}
	return s.mutate(ctx, id, func(tx storage.TxStore, block *domain.TimeBlock, _ time.Time) error {
		loc, err := blockLocation(ctx, tx, block)
		if err != nil {
			return err
		}
		from := domain.DateOf(block.StartAt.In(loc))
		if rows, err := tx.Schedules().ListForInstance(ctx, block.ID); err != nil {
			return err
		} else if len(rows) > 0 {
			from = rows[0].Date
		}

		days := from.DaysUntil(to)
		block.StartAt = block.StartAt.In(loc).AddDate(0, 0, days).UTC()
		block.EndAt = block.EndAt.In(loc).AddDate(0, 0, days).UTC()

		if err := tx.Schedules().DeleteForInstance(ctx, block.ID); err != nil {
			return err
		}
		return tx.Schedules().Create(ctx, domain.Schedule{InstanceID: block.ID, Kind: domain.KindTimeBlock, Date: to})
	})
}

func (s *TimeBlockService) mutate(ctx context.Context, id string, fn func(tx storage.TxStore, block *domain.TimeBlock, now time.Time) error) (*domain.TimeBlock, error) {
	now := s.now()
	var block *domain.TimeBlock
	err := s.write(ctx, func(tx storage.TxStore) error {
		var err error
		if block, err = getTimeBlock(ctx, tx, id); err != nil {
			return err
		}
		if err := fn(tx, block, now); err != nil {
			return err
		}
		block.UpdatedAt = now
		return tx.TimeBlocks().Update(ctx, block)
	})
	if err != nil {
		return nil, err
	}

	if block.RecurrenceID != nil {
		s.publish(ctx, events.New(domain.EventInstanceUpdated, block.ID,
			map[string]string{"recurrence_id": *block.RecurrenceID}, now))
	}
	return block, nil
}

// blockLocation is the zone a block's wall-clock time lives in. Floating
// blocks store their wall clock as UTC.
func blockLocation(ctx context.Context, tx storage.TxStore, block *domain.TimeBlock) (*time.Location, error) {
	if block.Floating || block.RecurrenceID == nil {
		return time.UTC, nil
	}
	rec, err := tx.Recurrences().Get(ctx, *block.RecurrenceID)
	if errors.Is(err, storage.ErrNotFound) {
		return time.UTC, nil
	}
	if err != nil {
		return nil, err
	}
	return rec.Location(), nil
}

func getTimeBlock(ctx context.Context, r storage.TxStore, id string) (*domain.TimeBlock, error) {
	block, err := r.TimeBlocks().Get(ctx, id)
	if err != nil {
		return nil, notFound(err, "time block", id)
	}
	if block.IsDeleted() {
		return nil, domain.NewNotFoundError("time block", id)
	}
	return block, nil
}
