package request

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/daybook/daybook/internal/domain"
)

// CreateTaskRequest represents a request to create a task.
type CreateTaskRequest struct {
	Title           string      `json:"title"`
	Description     *string     `json:"description,omitempty"`
	AreaID          *string     `json:"area_id,omitempty"`
	Priority        *int        `json:"priority,omitempty"`
	EstimateMinutes *int        `json:"estimate_minutes,omitempty"`
	Date            domain.Date `json:"date"`
	Checklist       []string    `json:"checklist,omitempty"`
}

// Validate validates the create task request.
func (r *CreateTaskRequest) Validate() []string {
	var errors []string

	if r.Title == "" {
		errors = append(errors, "title is required")
	}

	if r.Date.IsZero() {
		errors = append(errors, "date is required")
	}

	if r.Priority != nil && !domain.ValidPriority(*r.Priority) {
		errors = append(errors, "priority must be between 0 and 3")
	}

	return errors
}

// UpdateTaskRequest represents a request to update a task.
type UpdateTaskRequest struct {
	Title           *string                `json:"title,omitempty"`
	Description     *string                `json:"description,omitempty"`
	AreaID          *string                `json:"area_id,omitempty"`
	Priority        *int                   `json:"priority,omitempty"`
	EstimateMinutes *int                   `json:"estimate_minutes,omitempty"`
	Checklist       []domain.ChecklistItem `json:"checklist,omitempty"`
}

// Validate validates the update task request.
func (r *UpdateTaskRequest) Validate() []string {
	var errors []string

	if r.Title != nil && *r.Title == "" {
		errors = append(errors, "title cannot be empty")
	}

	if r.Priority != nil && !domain.ValidPriority(*r.Priority) {
		errors = append(errors, "priority must be between 0 and 3")
	}

	return errors
}

// RescheduleRequest moves a task or time block to another date.
type RescheduleRequest struct {
	Date domain.Date `json:"date"`
}

// Validate validates the reschedule request.
func (r *RescheduleRequest) Validate() []string {
	if r.Date.IsZero() {
		return []string{"date is required"}
	}
	return nil
}

// DecodeJSON decodes JSON from request body into the given value.
func DecodeJSON(r *http.Request, v interface{}) error {
	return json.NewDecoder(r.Body).Decode(v)
}

// InvalidBody reports a body that could not be decoded.
func InvalidBody(err error) *domain.DomainError {
	return domain.NewValidationError([]string{"Invalid JSON body: " + err.Error()})
}

// ParseDate reads a required YYYY-MM-DD query parameter.
func ParseDate(r *http.Request, name string) (domain.Date, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return domain.Date{}, domain.NewFieldValidationError(name, "is required")
	}
	d, err := domain.ParseDate(raw)
	if err != nil {
		return domain.Date{}, domain.NewFieldValidationError(name, fmt.Sprintf("must be a date in %s format", domain.DateLayout))
	}
	return d, nil
}

// ParseDateRange reads the from and to query parameters.
func ParseDateRange(r *http.Request) (domain.Date, domain.Date, error) {
	from, err := ParseDate(r, "from")
	if err != nil {
		return domain.Date{}, domain.Date{}, err
	}
	to, err := ParseDate(r, "to")
	if err != nil {
		return domain.Date{}, domain.Date{}, err
	}
	return from, to, nil
}

// DefaultOutboxLimit is the default number of events per page.
const DefaultOutboxLimit = 100

// MaxOutboxLimit is the maximum number of events per page.
const MaxOutboxLimit = 1000

// ParseOutboxCursor extracts the after/limit query parameters.
func ParseOutboxCursor(r *http.Request) (int64, int) {
	var after int64
	limit := DefaultOutboxLimit

	if a := r.URL.Query().Get("after"); a != "" {
		if v, err := strconv.ParseInt(a, 10, 64); err == nil && v > 0 {
			after = v
		}
	}

	if l := r.URL.Query().Get("limit"); l != "" {
		if v, err := strconv.Atoi(l); err == nil && v > 0 {
			limit = v
		}
	}

	if limit > MaxOutboxLimit {
		limit = MaxOutboxLimit
	}

	return after, limit
}
