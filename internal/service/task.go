package service

import (
	"context"
	"strings"
	"time"

	"github.com/daybook/daybook/internal/domain"
	"github.com/daybook/daybook/internal/events"
	"github.com/daybook/daybook/internal/storage"
	"github.com/daybook/daybook/pkg/idgen"
)

// TaskService handles task business logic.
type TaskService struct {
	base
}

// CreateTaskInput contains the input for creating a task.
type CreateTaskInput struct {
	Title           string
	Description     *string
	AreaID          *string
	Priority        *int
	EstimateMinutes *int
	Date            domain.Date
	Checklist       []string
}

// Create creates a one-off task scheduled on input.Date.
func (s *TaskService) Create(ctx context.Context, input CreateTaskInput) (*domain.Task, error) {
	now := s.now()
	priority := domain.PriorityNormal
	if input.Priority != nil {
		priority = *input.Priority
	}

	task := &domain.Task{
		ID:              s.ids.NewID(idgen.PrefixTask),
		Title:           input.Title,
		Description:     input.Description,
		AreaID:          input.AreaID,
		Priority:        priority,
		EstimateMinutes: input.EstimateMinutes,
		Status:          domain.StatusPlanned,
		Checklist:       s.newChecklist(input.Checklist),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if errs := validateTask(task); len(errs) > 0 {
		return nil, domain.NewValidationError(errs)
	}
	if input.Date.IsZero() {
		return nil, domain.NewFieldValidationError("date", "is required")
	}

	err := s.write(ctx, func(tx storage.TxStore) error {
		if err := tx.Tasks().Create(ctx, task); err != nil {
			return err
		}
		return tx.Schedules().Create(ctx, domain.Schedule{InstanceID: task.ID, Kind: domain.KindTask, Date: input.Date})
	})
	if err != nil {
		return nil, err
	}
	return task, nil
}

// Get retrieves a task by ID. Deleted tasks are not found.
func (s *TaskService) Get(ctx context.Context, id string) (*domain.Task, error) {
	task, err := getTask(ctx, s.store(), id)
	if err != nil {
		return nil, mapError(err)
	}
	return task, nil
}

// UpdateTaskInput contains the input for updating a task.
type UpdateTaskInput struct {
	Title           *string
	Description     *string
	AreaID          *string
	Priority        *int
	EstimateMinutes *int
	Checklist       []domain.ChecklistItem
}

// Update updates a single task. A checklist replaces the existing one; items
// without an ID get a new one.
func (s *TaskService) Update(ctx context.Context, id string, input UpdateTaskInput) (*domain.Task, error) {
	return s.mutate(ctx, id, func(_ storage.TxStore, task *domain.Task, _ time.Time) error {
		if input.Title != nil {
			task.Title = *input.Title
		}
		if input.Description != nil {
			task.Description = input.Description
		}
		if input.AreaID != nil {
			task.AreaID = input.AreaID
		}
		if input.Priority != nil {
			task.Priority = *input.Priority
		}
		if input.EstimateMinutes != nil {
			task.EstimateMinutes = input.EstimateMinutes
		}
		if input.Checklist != nil {
			task.Checklist = make([]domain.ChecklistItem, len(input.Checklist))
			for i, item := range input.Checklist {
				if item.ID == "" {
					item.ID = s.newChecklistID()
				}
				task.Checklist[i] = item
			}
		}
		if errs := validateTask(task); len(errs) > 0 {
			return domain.NewValidationError(errs)
		}
		return nil
	})
}

// Complete marks a task as completed. A completed recurring instance is
// permanent history.
func (s *TaskService) Complete(ctx context.Context, id string) (*domain.Task, error) {
	return s.mutate(ctx, id, func(_ storage.TxStore, task *domain.Task, now time.Time) error {
		if task.IsCompleted() {
			return nil
		}
		task.Status = domain.StatusCompleted
		task.CompletedAt = &now
		return nil
	})
}

// Reopen moves a completed task back to planned.
func (s *TaskService) Reopen(ctx context.Context, id string) (*domain.Task, error) {
	return s.mutate(ctx, id, func(_ storage.TxStore, task *domain.Task, _ time.Time) error {
		task.Status = domain.StatusPlanned
		task.CompletedAt = nil
		return nil
	})
}

// Archive hides a task without deleting it.
func (s *TaskService) Archive(ctx context.Context, id string) (*domain.Task, error) {
	return s.mutate(ctx, id, func(_ storage.TxStore, task *domain.Task, now time.Time) error {
		if task.ArchivedAt == nil {
			task.ArchivedAt = &now
		}
		return nil
	})
}

// Delete soft-deletes a task. A recurring instance keeps its ledger link so
// the occurrence is not materialized again.
func (s *TaskService) Delete(ctx context.Context, id string) error {
	_, err := s.mutate(ctx, id, func(_ storage.TxStore, task *domain.Task, now time.Time) error {
		task.DeletedAt = &now
		return nil
	})
	return err
}

// Reschedule moves a task to another date, replacing its schedule rows.
func (s *TaskService) Reschedule(ctx context.Context, id string, to domain.Date) (*domain.Task, error) {
	if to.IsZero() {
		return nil, domain.NewFieldValidationError("date", "is required")
	}
	return s.mutate(ctx, id, func(tx storage.TxStore, task *domain.Task, _ time.Time) error {
		if err := tx.Schedules().DeleteForInstance(ctx, task.ID); err != nil {
			return err
		}
		return tx.Schedules().Create(ctx, domain.Schedule{InstanceID: task.ID, Kind: domain.KindTask, Date: to})
	})
}

// mutate loads a task, applies fn and stores the result in one write.
func (s *TaskService) mutate(ctx context.Context, id string, fn func(tx storage.TxStore, task *domain.Task, now time.Time) error) (*domain.Task, error) {
	now := s.now()
	var task *domain.Task
	err := s.write(ctx, func(tx storage.TxStore) error {
		var err error
		if task, err = getTask(ctx, tx, id); err != nil {
			return err
		}
		if err := fn(tx, task, now); err != nil {
			return err
		}
		task.UpdatedAt = now
		return tx.Tasks().Update(ctx, task)
	})
	if err != nil {
		return nil, err
	}

	if task.RecurrenceID != nil {
		s.publish(ctx, events.New(domain.EventInstanceUpdated, task.ID,
			map[string]string{"recurrence_id": *task.RecurrenceID}, now))
	}
	return task, nil
}

func getTask(ctx context.Context, r storage.TxStore, id string) (*domain.Task, error) {
	task, err := r.Tasks().Get(ctx, id)
	if err != nil {
		return nil, notFound(err, "task", id)
	}
	if task.IsDeleted() {
		return nil, domain.NewNotFoundError("task", id)
	}
	return task, nil
}

func validateTask(task *domain.Task) []string {
	var errs []string
	if strings.TrimSpace(task.Title) == "" {
		errs = append(errs, "title is required")
	}
	if !domain.ValidPriority(task.Priority) {
		errs = append(errs, "priority must be between 0 and 3")
	}
	if task.EstimateMinutes != nil && *task.EstimateMinutes < 0 {
		errs = append(errs, "estimate_minutes cannot be negative")
	}
	return errs
}
