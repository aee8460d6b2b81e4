package request

import (
	"time"

	"github.com/daybook/daybook/internal/domain"
)

// CreateRecurrenceRequest represents a request to create a recurrence.
type CreateRecurrenceRequest struct {
	TemplateID      string                `json:"template_id"`
	Rule            string                `json:"rule"`
	TimeType        domain.TimeType       `json:"time_type,omitempty"`
	StartDate       domain.Date           `json:"start_date"`
	EndDate         *domain.Date          `json:"end_date,omitempty"`
	Timezone        string                `json:"timezone,omitempty"`
	ExpiryBehavior  domain.ExpiryBehavior `json:"expiry_behavior,omitempty"`
	AdoptInstanceID *string               `json:"adopt_instance_id,omitempty"`
}

// Validate validates the create recurrence request.
func (r *CreateRecurrenceRequest) Validate() []string {
	var errors []string

	if r.TemplateID == "" {
		errors = append(errors, "template_id is required")
	}

	if r.Rule == "" {
		errors = append(errors, "rule is required")
	}

	if r.StartDate.IsZero() {
		errors = append(errors, "start_date is required")
	}

	return errors
}

// EditRecurrenceRequest represents a partial update of a recurrence.
type EditRecurrenceRequest struct {
	Rule                  *string                `json:"rule,omitempty"`
	StartDate             *domain.Date           `json:"start_date,omitempty"`
	EndDate               *domain.Date           `json:"end_date,omitempty"`
	ClearEndDate          bool                   `json:"clear_end_date,omitempty"`
	TimeType              *domain.TimeType       `json:"time_type,omitempty"`
	Timezone              *string                `json:"timezone,omitempty"`
	ExpiryBehavior        *domain.ExpiryBehavior `json:"expiry_behavior,omitempty"`
	Active                *bool                  `json:"active,omitempty"`
	Template              *InstanceFieldsRequest `json:"template,omitempty"`
	LocalNow              *time.Time             `json:"local_now,omitempty"`
	DeleteFutureInstances *bool                  `json:"delete_future_instances,omitempty"`
}

// Validate validates the edit request.
func (r *EditRecurrenceRequest) Validate() []string {
	var errors []string

	if r.Rule != nil && *r.Rule == "" {
		errors = append(errors, "rule cannot be empty")
	}

	if r.ClearEndDate && r.EndDate != nil {
		errors = append(errors, "end_date and clear_end_date are mutually exclusive")
	}

	if r.Template != nil {
		errors = append(errors, r.Template.Validate()...)
	}

	return errors
}

// BatchUpdateRequest applies field changes to a recurrence's instances.
type BatchUpdateRequest struct {
	InstanceFieldsRequest
	FromDate *domain.Date `json:"from_date,omitempty"`
}
