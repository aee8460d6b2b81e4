package service

import (
	"context"

	"github.com/daybook/daybook/internal/domain"
	"github.com/daybook/daybook/internal/storage"
	"github.com/daybook/daybook/pkg/idgen"
)

// TemplateService manages the templates recurrences materialize from.
type TemplateService struct {
	base
}

// CreateTemplateInput contains the input for creating a template.
type CreateTemplateInput struct {
	Kind            domain.InstanceKind
	Title           string
	Description     *string
	AreaID          *string
	Priority        *int
	EstimateMinutes *int
	StartTime       *string
	EndTime         *string
	Checklist       []string
}

// Create creates a new template.
func (s *TemplateService) Create(ctx context.Context, input CreateTemplateInput) (*domain.Template, error) {
	now := s.now()
	priority := domain.PriorityNormal
	if input.Priority != nil {
		priority = *input.Priority
	}

	tpl := &domain.Template{
		ID:              s.ids.NewID(idgen.PrefixTemplate),
		Kind:            input.Kind,
		Title:           input.Title,
		Description:     input.Description,
		AreaID:          input.AreaID,
		Priority:        priority,
		EstimateMinutes: input.EstimateMinutes,
		StartTime:       input.StartTime,
		EndTime:         input.EndTime,
		Checklist:       s.newChecklist(input.Checklist),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if errs := tpl.Validate(); len(errs) > 0 {
		return nil, domain.NewValidationError(errs)
	}

	err := s.write(ctx, func(tx storage.TxStore) error {
		return tx.Templates().Create(ctx, tpl)
	})
	if err != nil {
		return nil, err
	}
	return tpl, nil
}

// Get retrieves a template by ID.
func (s *TemplateService) Get(ctx context.Context, id string) (*domain.Template, error) {
	tpl, err := s.store().Templates().Get(ctx, id)
	if err != nil {
		return nil, mapError(notFound(err, "template", id))
	}
	return tpl, nil
}

// List returns every template.
func (s *TemplateService) List(ctx context.Context) ([]*domain.Template, error) {
	tpls, err := s.store().Templates().List(ctx)
	if err != nil {
		return nil, mapError(err)
	}
	return tpls, nil
}

func (b base) newChecklist(titles []string) []domain.ChecklistItem {
	items := make([]domain.ChecklistItem, 0, len(titles))
	for _, title := range titles {
		items = append(items, domain.ChecklistItem{ID: b.ids.NewID(idgen.PrefixChecklist), Title: title})
	}
	return items
}
