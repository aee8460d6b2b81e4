package recurrence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/daybook/daybook/internal/domain"
	"github.com/daybook/daybook/internal/storage"
	"github.com/daybook/daybook/pkg/idgen"
)

// materialize creates the instance for (rec, date) with its schedule row and
// link. The caller owns the transaction; a link that appeared concurrently
// surfaces as storage.ErrConflict so the whole write rolls back.
func (d Deps) materialize(ctx context.Context, tx storage.TxStore, rec *domain.Recurrence, date domain.Date) (*domain.Link, error) {
	tpl, err := tx.Templates().Get(ctx, rec.TemplateID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, domain.NewNotFoundError("template", rec.TemplateID)
	}
	if err != nil {
		return nil, err
	}

	now := d.Clock.Now().UTC()
	var id string
	switch rec.Kind {
	case domain.KindTask:
		task := NewTask(tpl, rec, date, now, d.IDs)
		if err := tx.Tasks().Create(ctx, task); err != nil {
			return nil, err
		}
		id = task.ID
	case domain.KindTimeBlock:
		block, err := NewTimeBlock(tpl, rec, date, now, d.IDs)
		if err != nil {
			return nil, err
		}
		if err := tx.TimeBlocks().Create(ctx, block); err != nil {
			return nil, err
		}
		id = block.ID
	default:
		return nil, fmt.Errorf("recurrence %s has unknown kind %q", rec.ID, rec.Kind)
	}

	if err := tx.Schedules().Create(ctx, domain.Schedule{InstanceID: id, Kind: rec.Kind, Date: date}); err != nil {
		return nil, err
	}

	link := &domain.Link{RecurrenceID: rec.ID, OccurrenceDate: date, InstanceID: id, InstanceKind: rec.Kind, CreatedAt: now}
	inserted, err := tx.Links().InsertIfAbsent(ctx, link)
	if err != nil {
		return nil, err
	}
	if !inserted {
		return nil, fmt.Errorf("occurrence %s of %s already linked: %w", date, rec.ID, storage.ErrConflict)
	}
	return link, nil
}

// NewTask renders tpl into a planned task for the occurrence on date.
// Checklist items get fresh ids and start undone.
func NewTask(tpl *domain.Template, rec *domain.Recurrence, date domain.Date, now time.Time, ids idgen.Generator) *domain.Task {
	recID := rec.ID
	return &domain.Task{
		ID:              ids.NewID(idgen.PrefixTask),
		Title:           domain.RenderTemplateText(tpl.Title, date),
		Description:     renderPtr(tpl.Description, date),
		AreaID:          copyPtr(tpl.AreaID),
		Priority:        tpl.Priority,
		EstimateMinutes: copyPtr(tpl.EstimateMinutes),
		Status:          domain.StatusPlanned,
		Checklist:       freshChecklist(tpl.Checklist, date, ids),
		RecurrenceID:    &recID,
		OccurrenceDate:  domain.DatePtr(date),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// NewTimeBlock renders tpl into a planned block on date. Fixed rules resolve
// the template's wall-clock times in the rule's timezone; floating rules
// store the wall clock as UTC.
func NewTimeBlock(tpl *domain.Template, rec *domain.Recurrence, date domain.Date, now time.Time, ids idgen.Generator) (*domain.TimeBlock, error) {
	loc := time.UTC
	if rec.TimeType == domain.TimeTypeFixed {
		loc = rec.Location()
	}
	start, end, err := tpl.Span(date, loc)
	if err != nil {
		return nil, domain.NewFieldValidationError("template", err.Error())
	}
	recID := rec.ID
	return &domain.TimeBlock{
		ID:             ids.NewID(idgen.PrefixTimeBlock),
		Title:          domain.RenderTemplateText(tpl.Title, date),
		Description:    renderPtr(tpl.Description, date),
		AreaID:         copyPtr(tpl.AreaID),
		StartAt:        start.UTC(),
		EndAt:          end.UTC(),
		Floating:       rec.TimeType != domain.TimeTypeFixed,
		Status:         domain.StatusPlanned,
		RecurrenceID:   &recID,
		OccurrenceDate: domain.DatePtr(date),
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

func freshChecklist(items []domain.ChecklistItem, date domain.Date, ids idgen.Generator) []domain.ChecklistItem {
	out := make([]domain.ChecklistItem, 0, len(items))
	for _, item := range items {
		out = append(out, domain.ChecklistItem{
			ID:    ids.NewID(idgen.PrefixChecklist),
			Title: domain.RenderTemplateText(item.Title, date),
		})
	}
	return out
}

func renderPtr(s *string, date domain.Date) *string {
	if s == nil {
		return nil
	}
	r := domain.RenderTemplateText(*s, date)
	return &r
}

func copyPtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
