package service

import (
	"context"
	"errors"

	"github.com/daybook/daybook/internal/domain"
	"github.com/daybook/daybook/internal/recurrence"
	"github.com/daybook/daybook/internal/storage"
)

// AgendaService is the read side of Daybook: it materializes the occurrences
// of the requested dates and lists what is scheduled on them.
type AgendaService struct {
	base
	reconciler *recurrence.Reconciler
}

// AgendaDay is everything scheduled on one date.
type AgendaDay struct {
	Date       domain.Date         `json:"date"`
	Tasks      []*domain.Task      `json:"tasks"`
	TimeBlocks []*domain.TimeBlock `json:"time_blocks"`
}

// Agenda covers an inclusive date range, one entry per date.
type Agenda struct {
	From domain.Date `json:"from"`
	To   domain.Date `json:"to"`
	Days []AgendaDay `json:"days"`
}

// Reconcile materializes the occurrences of date and returns the ids of the
// instances that represent them.
func (s *AgendaService) Reconcile(ctx context.Context, date domain.Date) ([]string, error) {
	ids, err := s.reconciler.Reconcile(ctx, date)
	if err != nil {
		return nil, mapError(err)
	}
	return ids, nil
}

// ReconcileRange reconciles every date in [from, to].
func (s *AgendaService) ReconcileRange(ctx context.Context, from, to domain.Date) (map[domain.Date][]string, error) {
	out, err := s.reconciler.ReconcileRange(ctx, from, to)
	if err != nil {
		return nil, mapError(err)
	}
	return out, nil
}

// Range reconciles [from, to] and returns the agenda for it. Deleted and
// archived items are left out.
func (s *AgendaService) Range(ctx context.Context, from, to domain.Date) (*Agenda, error) {
	if err := validateRange(from, to); err != nil {
		return nil, err
	}
	if _, err := s.ReconcileRange(ctx, from, to); err != nil {
		return nil, err
	}

	store := s.store()
	rows, err := store.Schedules().ListRange(ctx, from, to)
	if err != nil {
		return nil, mapError(err)
	}

	agenda := &Agenda{From: from, To: to}
	index := make(map[domain.Date]int)
	for d := from; !d.After(to); d = d.AddDays(1) {
		index[d] = len(agenda.Days)
		agenda.Days = append(agenda.Days, AgendaDay{
			Date:       d,
			Tasks:      []*domain.Task{},
			TimeBlocks: []*domain.TimeBlock{},
		})
	}

	for _, row := range rows {
		day := &agenda.Days[index[row.Date]]
		switch row.Kind {
		case domain.KindTask:
			task, err := store.Tasks().Get(ctx, row.InstanceID)
			if errors.Is(err, storage.ErrNotFound) {
				continue
			}
			if err != nil {
				return nil, mapError(err)
			}
			if !task.IsDeleted() && !task.IsArchived() {
				day.Tasks = append(day.Tasks, task)
			}
		case domain.KindTimeBlock:
			block, err := store.TimeBlocks().Get(ctx, row.InstanceID)
			if errors.Is(err, storage.ErrNotFound) {
				continue
			}
			if err != nil {
				return nil, mapError(err)
			}
			if !block.IsDeleted() {
				day.TimeBlocks = append(day.TimeBlocks, block)
			}
		}
	}
	return agenda, nil
}
