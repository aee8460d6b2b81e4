package recurrence

import (
	"context"
	"fmt"
	"time"

	"github.com/daybook/daybook/internal/domain"
	"github.com/daybook/daybook/internal/storage"
)

// instance is the engine's kind-agnostic view of a materialized task or
// time block.
type instance struct {
	task  *domain.Task
	block *domain.TimeBlock
}

// loadInstance returns storage.ErrNotFound (wrapped) for missing instances.
func loadInstance(ctx context.Context, r storage.TxStore, kind domain.InstanceKind, id string) (*instance, error) {
	switch kind {
	case domain.KindTask:
		task, err := r.Tasks().Get(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("task %s: %w", id, err)
		}
		return &instance{task: task}, nil
	case domain.KindTimeBlock:
		block, err := r.TimeBlocks().Get(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("time block %s: %w", id, err)
		}
		return &instance{block: block}, nil
	}
	return nil, fmt.Errorf("unknown instance kind %q", kind)
}

func (i *instance) id() string {
	if i.task != nil {
		return i.task.ID
	}
	return i.block.ID
}

func (i *instance) completed() bool {
	if i.task != nil {
		return i.task.IsCompleted()
	}
	return i.block.IsCompleted()
}

func (i *instance) deleted() bool {
	if i.task != nil {
		return i.task.IsDeleted()
	}
	return i.block.IsDeleted()
}

// retracted reports whether the occurrence was retracted earlier. Retraction
// drops the link but the soft-deleted instance keeps its back-reference, and
// a retracted occurrence is never materialized again.
func retracted(ctx context.Context, tx storage.TxStore, rec *domain.Recurrence, date domain.Date) (bool, error) {
	var (
		found bool
		err   error
	)
	switch rec.Kind {
	case domain.KindTimeBlock:
		found, err = tx.TimeBlocks().HasDeletedOccurrence(ctx, rec.ID, date)
	default:
		found, err = tx.Tasks().HasDeletedOccurrence(ctx, rec.ID, date)
	}
	if err != nil {
		return false, fmt.Errorf("look up retracted occurrence: %w", err)
	}
	return found, nil
}

// startsAfter is always true for tasks, which have no time of day.
func (i *instance) startsAfter(cutoff time.Time) bool {
	if i.block == nil {
		return true
	}
	return i.block.StartsAfter(cutoff)
}

// retract soft-deletes the instance and removes its link.
func (i *instance) retract(ctx context.Context, tx storage.TxStore, now time.Time) error {
	var err error
	if i.task != nil {
		i.task.DeletedAt = &now
		i.task.UpdatedAt = now
		err = tx.Tasks().Update(ctx, i.task)
	} else {
		i.block.DeletedAt = &now
		i.block.UpdatedAt = now
		err = tx.TimeBlocks().Update(ctx, i.block)
	}
	if err != nil {
		return fmt.Errorf("soft-delete %s: %w", i.id(), err)
	}
	if err := tx.Links().DeleteByInstance(ctx, i.id()); err != nil {
		return fmt.Errorf("unlink %s: %w", i.id(), err)
	}
	return nil
}
