package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/daybook/daybook/internal/domain"
	"github.com/daybook/daybook/internal/events"
	"github.com/daybook/daybook/internal/recurrence"
	"github.com/daybook/daybook/internal/storage"
	"github.com/daybook/daybook/pkg/idgen"
)

// RecurrenceService manages recurrence rules and the instances they own.
type RecurrenceService struct {
	base
	rules      recurrence.RuleEvaluator
	propagator *recurrence.Propagator
}

// CreateRecurrenceInput contains the input for creating a recurrence.
type CreateRecurrenceInput struct {
	TemplateID     string
	Rule           string
	TimeType       domain.TimeType
	StartDate      domain.Date
	EndDate        *domain.Date
	Timezone       string
	ExpiryBehavior domain.ExpiryBehavior

	// AdoptInstanceID makes an existing task or time block, scheduled on
	// StartDate, the rule's first occurrence.
	AdoptInstanceID *string
}

// Create creates a recurrence. A rule with UNTIL and no end date takes the
// UNTIL date as its end date.
func (s *RecurrenceService) Create(ctx context.Context, input CreateRecurrenceInput) (*domain.Recurrence, error) {
	now := s.now()
	rec := &domain.Recurrence{
		ID:             s.ids.NewID(idgen.PrefixRecurrence),
		TemplateID:     input.TemplateID,
		Rule:           strings.TrimSpace(input.Rule),
		TimeType:       input.TimeType,
		StartDate:      input.StartDate,
		EndDate:        input.EndDate,
		Timezone:       input.Timezone,
		ExpiryBehavior: input.ExpiryBehavior,
		Active:         true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if rec.TimeType == "" {
		rec.TimeType = domain.TimeTypeFloating
	}
	if rec.Timezone == "" {
		rec.Timezone = "UTC"
	}
	if rec.ExpiryBehavior == "" {
		rec.ExpiryBehavior = domain.ExpiryKeep
	}

	if rec.StartDate.IsZero() {
		return nil, domain.NewFieldValidationError("start_date", "is required")
	}
	if rec.EndDate == nil {
		if until, ok, err := s.rules.Until(rec.Rule); err == nil && ok {
			rec.EndDate = &until
		}
	}
	if err := s.propagator.Check(rec, rec); err != nil {
		return nil, err
	}
	if err := validateSettings(rec); err != nil {
		return nil, err
	}

	err := s.write(ctx, func(tx storage.TxStore) error {
		tpl, err := tx.Templates().Get(ctx, rec.TemplateID)
		if err != nil {
			return notFound(err, "template", rec.TemplateID)
		}
		rec.Kind = tpl.Kind
		if err := tx.Recurrences().Create(ctx, rec); err != nil {
			return err
		}
		if input.AdoptInstanceID != nil {
			return s.adopt(ctx, tx, rec, *input.AdoptInstanceID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events.New(domain.EventRecurrenceCreated, rec.ID, rec, now))
	return rec, nil
}

// adopt links an existing instance as the occurrence on the anchor date.
func (s *RecurrenceService) adopt(ctx context.Context, tx storage.TxStore, rec *domain.Recurrence, instanceID string) error {
	now := s.now()
	recID := rec.ID

	switch rec.Kind {
	case domain.KindTask:
		task, err := tx.Tasks().Get(ctx, instanceID)
		if err != nil {
			return notFound(err, "task", instanceID)
		}
		if task.IsDeleted() {
			return domain.NewNotFoundError("task", instanceID)
		}
		task.RecurrenceID = &recID
		task.OccurrenceDate = domain.DatePtr(rec.StartDate)
		task.UpdatedAt = now
		if err := tx.Tasks().Update(ctx, task); err != nil {
			return err
		}
	case domain.KindTimeBlock:
		block, err := tx.TimeBlocks().Get(ctx, instanceID)
		if err != nil {
			return notFound(err, "time block", instanceID)
		}
		if block.IsDeleted() {
			return domain.NewNotFoundError("time block", instanceID)
		}
		block.RecurrenceID = &recID
		block.OccurrenceDate = domain.DatePtr(rec.StartDate)
		block.UpdatedAt = now
		if err := tx.TimeBlocks().Update(ctx, block); err != nil {
			return err
		}
	}

	scheduled, err := tx.Schedules().Exists(ctx, instanceID, rec.StartDate)
	if err != nil {
		return err
	}
	if !scheduled {
		return domain.NewConflictError("adopted instance is not scheduled on the start date", map[string]interface{}{
			"instance_id": instanceID,
			"start_date":  rec.StartDate.String(),
		})
	}

	if _, err := tx.Links().GetByInstance(ctx, instanceID); err == nil {
		return domain.NewConflictError("instance already belongs to a recurrence", map[string]interface{}{
			"instance_id": instanceID,
		})
	} else if !errors.Is(err, storage.ErrNotFound) {
		return err
	}

	inserted, err := tx.Links().InsertIfAbsent(ctx, &domain.Link{
		RecurrenceID:   rec.ID,
		OccurrenceDate: rec.StartDate,
		InstanceID:     instanceID,
		InstanceKind:   rec.Kind,
		CreatedAt:      now,
	})
	if err != nil {
		return err
	}
	if !inserted {
		return domain.NewConflictError("start date occurrence is already linked", map[string]interface{}{
			"recurrence_id": rec.ID,
			"start_date":    rec.StartDate.String(),
		})
	}
	return nil
}

// Get retrieves a recurrence by ID. Deleted recurrences are not found.
func (s *RecurrenceService) Get(ctx context.Context, id string) (*domain.Recurrence, error) {
	rec, err := getRecurrence(ctx, s.store(), id)
	if err != nil {
		return nil, mapError(err)
	}
	return rec, nil
}

// ListRecurrencesInput filters List.
type ListRecurrencesInput struct {
	ActiveOnly bool
	TemplateID *string
}

// List returns the recurrences matching input.
func (s *RecurrenceService) List(ctx context.Context, input ListRecurrencesInput) ([]*domain.Recurrence, error) {
	recs, err := s.store().Recurrences().List(ctx, storage.RecurrenceListOptions{
		ActiveOnly: input.ActiveOnly,
		TemplateID: input.TemplateID,
	})
	if err != nil {
		return nil, mapError(err)
	}
	return recs, nil
}

// EditRecurrenceInput is a partial update of a recurrence. Nil fields are
// left unchanged.
type EditRecurrenceInput struct {
	Rule *string

	// StartDate is accepted only to reject it: the anchor never changes.
	StartDate *domain.Date

	EndDate        *domain.Date
	ClearEndDate   bool
	TimeType       *domain.TimeType
	Timezone       *string
	ExpiryBehavior *domain.ExpiryBehavior
	Active         *bool

	// Template changes apply to occurrences materialized from now on.
	Template *InstanceFields

	// LocalNow, if set, protects time blocks that already started.
	LocalNow *time.Time

	// DeleteFutureInstances defaults to true.
	DeleteFutureInstances *bool
}

// EditResult reports the outcome of an edit.
type EditResult struct {
	Recurrence *domain.Recurrence `json:"recurrence"`
	Retracted  []string           `json:"retracted"`
}

// Edit applies input to a recurrence and retracts the planned instances the
// change invalidated, all in one transaction.
func (s *RecurrenceService) Edit(ctx context.Context, id string, input EditRecurrenceInput) (*EditResult, error) {
	now := s.now()
	var (
		after *domain.Recurrence
		res   recurrence.Result
	)
	err := s.write(ctx, func(tx storage.TxStore) error {
		before, err := getRecurrence(ctx, tx, id)
		if err != nil {
			return err
		}
		after = before.Clone()
		if input.StartDate != nil {
			after.StartDate = *input.StartDate
		}
		if input.Rule != nil {
			after.Rule = strings.TrimSpace(*input.Rule)
		}
		switch {
		case input.ClearEndDate:
			after.EndDate = nil
		case input.EndDate != nil:
			after.EndDate = domain.DatePtr(*input.EndDate)
		case input.Rule != nil && after.Rule != before.Rule:
			s.followUntil(before, after)
		}
		if input.TimeType != nil {
			after.TimeType = *input.TimeType
		}
		if input.Timezone != nil {
			after.Timezone = *input.Timezone
		}
		if input.ExpiryBehavior != nil {
			after.ExpiryBehavior = *input.ExpiryBehavior
		}
		if input.Active != nil {
			after.Active = *input.Active
		}
		after.UpdatedAt = now

		if err := s.propagator.Check(before, after); err != nil {
			return err
		}
		if err := validateSettings(after); err != nil {
			return err
		}
		if err := tx.Recurrences().Update(ctx, after); err != nil {
			return err
		}

		if input.Template != nil {
			if _, err := s.updateTemplate(ctx, tx, after.TemplateID, *input.Template); err != nil {
				return err
			}
		}

		deleteFuture := true
		if input.DeleteFutureInstances != nil {
			deleteFuture = *input.DeleteFutureInstances
		}
		res, err = s.propagator.Propagate(ctx, tx, before, after, recurrence.PropagateOptions{
			DeleteFuture: deleteFuture,
			Cutoff:       input.LocalNow,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	evts := append([]domain.OutboxEvent{events.New(domain.EventRecurrenceUpdated, after.ID, after, now)},
		res.Events(after.ID, now)...)
	s.publish(ctx, evts...)
	return &EditResult{Recurrence: after, Retracted: nonNil(res.Retracted)}, nil
}

// followUntil keeps the end date in step with a rule edit that did not set
// one explicitly: a new UNTIL becomes the end date, and an end date that only
// mirrored the old UNTIL is cleared when the new rule has none.
func (s *RecurrenceService) followUntil(before, after *domain.Recurrence) {
	until, ok, err := s.rules.Until(after.Rule)
	if err != nil {
		return
	}
	if ok {
		after.EndDate = &until
		return
	}
	prev, had, err := s.rules.Until(before.Rule)
	if err == nil && had && before.EndDate != nil && *before.EndDate == prev {
		after.EndDate = nil
	}
}

// DeleteRecurrenceInput contains the input for deleting a recurrence.
type DeleteRecurrenceInput struct {
	LocalNow *time.Time
}

// Delete deactivates a recurrence, retracts its planned instances and clears
// its ledger. Completed instances keep their back-reference.
func (s *RecurrenceService) Delete(ctx context.Context, id string, input DeleteRecurrenceInput) ([]string, error) {
	now := s.now()
	var res recurrence.Result
	err := s.write(ctx, func(tx storage.TxStore) error {
		rec, err := getRecurrence(ctx, tx, id)
		if err != nil {
			return err
		}
		if res, err = s.propagator.RetractAll(ctx, tx, rec, input.LocalNow); err != nil {
			return err
		}
		if _, err := tx.Links().DeleteFrom(ctx, rec.ID, rec.StartDate); err != nil {
			return err
		}
		rec.Active = false
		rec.DeletedAt = &now
		rec.UpdatedAt = now
		return tx.Recurrences().Update(ctx, rec)
	})
	if err != nil {
		return nil, err
	}

	evts := append([]domain.OutboxEvent{events.New(domain.EventRecurrenceDeleted, id,
		map[string]any{"retracted": nonNil(res.Retracted)}, now)},
		res.Events(id, now)...)
	s.publish(ctx, evts...)
	return nonNil(res.Retracted), nil
}

// Preview lists the occurrence dates of a recurrence within [from, to]. It
// writes nothing.
func (s *RecurrenceService) Preview(ctx context.Context, id string, from, to domain.Date) ([]domain.Date, error) {
	if err := validateRange(from, to); err != nil {
		return nil, err
	}
	rec, err := getRecurrence(ctx, s.store(), id)
	if err != nil {
		return nil, mapError(err)
	}

	dates := []domain.Date{}
	for d := from; !d.After(to); d = d.AddDays(1) {
		if d.Before(rec.StartDate) {
			continue
		}
		if rec.EndDate != nil && d.After(*rec.EndDate) {
			break
		}
		ok, err := s.rules.OccursOn(rec.Rule, rec.StartDate, d)
		if err != nil {
			return nil, domain.NewFieldValidationError("rule", err.Error())
		}
		if ok {
			dates = append(dates, d)
		}
	}
	return dates, nil
}

// BatchUpdateInput contains the input for updating a recurrence's instances.
type BatchUpdateInput struct {
	Fields InstanceFields

	// FromDate limits the update to occurrences on or after it.
	FromDate *domain.Date
}

// BatchUpdate applies field changes to the recurrence's template and to its
// planned instances. Checklists are merged so items the user already ticked
// stay ticked. Completed instances and instances the user detached are not
// touched.
func (s *RecurrenceService) BatchUpdate(ctx context.Context, id string, input BatchUpdateInput) ([]string, error) {
	now := s.now()
	updated := []string{}
	err := s.write(ctx, func(tx storage.TxStore) error {
		updated = updated[:0]
		rec, err := getRecurrence(ctx, tx, id)
		if err != nil {
			return err
		}
		tpl, err := s.updateTemplate(ctx, tx, rec.TemplateID, input.Fields)
		if err != nil {
			return err
		}

		links, err := tx.Links().ListForRecurrence(ctx, rec.ID, input.FromDate)
		if err != nil {
			return err
		}
		for _, link := range links {
			ok, err := s.updateInstance(ctx, tx, rec, tpl, link, input.Fields, now)
			if err != nil {
				return err
			}
			if ok {
				updated = append(updated, link.InstanceID)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	evts := make([]domain.OutboxEvent, 0, len(updated))
	for _, instanceID := range updated {
		evts = append(evts, events.New(domain.EventInstanceUpdated, instanceID,
			map[string]string{"recurrence_id": id}, now))
	}
	s.publish(ctx, evts...)
	return updated, nil
}

func (s *RecurrenceService) updateTemplate(ctx context.Context, tx storage.TxStore, id string, fields InstanceFields) (*domain.Template, error) {
	tpl, err := tx.Templates().Get(ctx, id)
	if err != nil {
		return nil, notFound(err, "template", id)
	}
	fields.applyTemplate(tpl, s.newChecklistID)
	if errs := tpl.Validate(); len(errs) > 0 {
		return nil, domain.NewValidationError(errs)
	}
	tpl.UpdatedAt = s.now()
	if err := tx.Templates().Update(ctx, tpl); err != nil {
		return nil, err
	}
	return tpl, nil
}

func (s *RecurrenceService) updateInstance(ctx context.Context, tx storage.TxStore, rec *domain.Recurrence, tpl *domain.Template, link *domain.Link, fields InstanceFields, now time.Time) (bool, error) {
	date := link.OccurrenceDate
	valid, err := recurrence.Validate(ctx, tx, link.InstanceKind, link.InstanceID, date)
	if err != nil || !valid {
		return false, err
	}

	switch link.InstanceKind {
	case domain.KindTask:
		task, err := tx.Tasks().Get(ctx, link.InstanceID)
		if err != nil {
			return false, err
		}
		if task.IsCompleted() {
			return false, nil
		}
		fields.applyTask(task, date, s.newChecklistID)
		task.UpdatedAt = now
		return true, tx.Tasks().Update(ctx, task)
	case domain.KindTimeBlock:
		block, err := tx.TimeBlocks().Get(ctx, link.InstanceID)
		if err != nil {
			return false, err
		}
		if block.IsCompleted() {
			return false, nil
		}
		if err := fields.applyBlock(block, date, rec, tpl); err != nil {
			return false, err
		}
		block.UpdatedAt = now
		return true, tx.TimeBlocks().Update(ctx, block)
	}
	return false, nil
}

func (b base) newChecklistID() string { return b.ids.NewID(idgen.PrefixChecklist) }

func getRecurrence(ctx context.Context, r storage.TxStore, id string) (*domain.Recurrence, error) {
	rec, err := r.Recurrences().Get(ctx, id)
	if err != nil {
		return nil, notFound(err, "recurrence", id)
	}
	if rec.IsDeleted() {
		return nil, domain.NewNotFoundError("recurrence", id)
	}
	return rec, nil
}

// validateSettings checks the fields the rule evaluator does not.
func validateSettings(rec *domain.Recurrence) error {
	if !rec.TimeType.IsValid() {
		return domain.NewFieldValidationError("time_type", "must be 'floating' or 'fixed'")
	}
	if !rec.ExpiryBehavior.IsValid() {
		return domain.NewFieldValidationError("expiry_behavior", "must be 'keep' or 'skip_past'")
	}
	if _, err := time.LoadLocation(rec.Timezone); err != nil {
		return domain.NewFieldValidationError("timezone", "unknown timezone "+rec.Timezone)
	}
	return nil
}

func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}
