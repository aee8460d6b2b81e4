package service

import (
	"time"

	"github.com/daybook/daybook/internal/domain"
)

// InstanceFields are the template fields an edit or batch update may change.
// Nil fields are left alone. Text fields may use the occurrence variables
// understood by domain.RenderTemplateText.
type InstanceFields struct {
	Title           *string
	Description     *string
	AreaID          *string
	Priority        *int
	EstimateMinutes *int
	StartTime       *string
	EndTime         *string

	// Checklist replaces the checklist content; nil leaves it unchanged.
	// Items match existing ones by ID, then by title.
	Checklist []domain.ChecklistItem
}

func (f InstanceFields) applyTemplate(tpl *domain.Template, newID func() string) {
	if f.Title != nil {
		tpl.Title = *f.Title
	}
	if f.Description != nil {
		tpl.Description = f.Description
	}
	if f.AreaID != nil {
		tpl.AreaID = f.AreaID
	}
	if f.Priority != nil {
		tpl.Priority = *f.Priority
	}
	if f.EstimateMinutes != nil {
		tpl.EstimateMinutes = f.EstimateMinutes
	}
	if f.StartTime != nil {
		tpl.StartTime = f.StartTime
	}
	if f.EndTime != nil {
		tpl.EndTime = f.EndTime
	}
	if f.Checklist != nil {
		tpl.Checklist = domain.MergeChecklist(tpl.Checklist, f.Checklist, newID)
	}
}

func (f InstanceFields) applyTask(task *domain.Task, date domain.Date, newID func() string) {
	if f.Title != nil {
		task.Title = domain.RenderTemplateText(*f.Title, date)
	}
	if f.Description != nil {
		desc := domain.RenderTemplateText(*f.Description, date)
		task.Description = &desc
	}
	if f.AreaID != nil {
		task.AreaID = f.AreaID
	}
	if f.Priority != nil {
		task.Priority = *f.Priority
	}
	if f.EstimateMinutes != nil {
		task.EstimateMinutes = f.EstimateMinutes
	}
	if f.Checklist != nil {
		incoming := make([]domain.ChecklistItem, len(f.Checklist))
		for i, item := range f.Checklist {
			incoming[i] = domain.ChecklistItem{ID: item.ID, Title: domain.RenderTemplateText(item.Title, date)}
		}
		task.Checklist = domain.MergeChecklist(task.Checklist, incoming, newID)
	}
}

// applyBlock re-renders the block's text and, when the times changed,
// recomputes its span from the updated template.
func (f InstanceFields) applyBlock(block *domain.TimeBlock, date domain.Date, rec *domain.Recurrence, tpl *domain.Template) error {
	if f.Title != nil {
		block.Title = domain.RenderTemplateText(*f.Title, date)
	}
	if f.Description != nil {
		desc := domain.RenderTemplateText(*f.Description, date)
		block.Description = &desc
	}
	if f.AreaID != nil {
		block.AreaID = f.AreaID
	}
	if f.StartTime == nil && f.EndTime == nil {
		return nil
	}

	loc := time.UTC
	if rec.TimeType == domain.TimeTypeFixed {
		loc = rec.Location()
	}
	start, end, err := tpl.Span(date, loc)
	if err != nil {
		return domain.NewFieldValidationError("template", err.Error())
	}
	block.StartAt, block.EndAt = start.UTC(), end.UTC()
	return nil
}
