package request

import (
	"github.com/daybook/daybook/internal/domain"
)

// CreateTemplateRequest represents a request to create a template.
type CreateTemplateRequest struct {
	Kind            domain.InstanceKind `json:"kind"`
	Title           string              `json:"title"`
	Description     *string             `json:"description,omitempty"`
	AreaID          *string             `json:"area_id,omitempty"`
	Priority        *int                `json:"priority,omitempty"`
	EstimateMinutes *int                `json:"estimate_minutes,omitempty"`
	StartTime       *string             `json:"start_time,omitempty"`
	EndTime         *string             `json:"end_time,omitempty"`
	Checklist       []string            `json:"checklist,omitempty"`
}

// Validate validates the create template request.
func (r *CreateTemplateRequest) Validate() []string {
	var errors []string

	if r.Title == "" {
		errors = append(errors, "title is required")
	}

	if !r.Kind.IsValid() {
		errors = append(errors, "kind must be 'task' or 'time_block'")
	}

	if r.Priority != nil && !domain.ValidPriority(*r.Priority) {
		errors = append(errors, "priority must be between 0 and 3")
	}

	return errors
}

// InstanceFieldsRequest carries template field changes.
type InstanceFieldsRequest struct {
	Title           *string                `json:"title,omitempty"`
	Description     *string                `json:"description,omitempty"`
	AreaID          *string                `json:"area_id,omitempty"`
	Priority        *int                   `json:"priority,omitempty"`
	EstimateMinutes *int                   `json:"estimate_minutes,omitempty"`
	StartTime       *string                `json:"start_time,omitempty"`
	EndTime         *string                `json:"end_time,omitempty"`
	Checklist       []domain.ChecklistItem `json:"checklist,omitempty"`
}

// Validate validates the field changes.
func (r *InstanceFieldsRequest) Validate() []string {
	var errors []string

	if r.Title != nil && *r.Title == "" {
		errors = append(errors, "title cannot be empty")
	}

	if r.Priority != nil && !domain.ValidPriority(*r.Priority) {
		errors = append(errors, "priority must be between 0 and 3")
	}

	return errors
}
