package domain

import (
	"encoding/json"
	"time"
)

// TimeType selects how a time block's wall-clock time is interpreted.
type TimeType string

const (
	// TimeTypeFloating keeps the same wall-clock time wherever the user is.
	TimeTypeFloating TimeType = "floating"
	// TimeTypeFixed pins the wall-clock time to the recurrence timezone.
	TimeTypeFixed TimeType = "fixed"
)

// IsValid checks if the time type is known.
func (t TimeType) IsValid() bool {
	return t == TimeTypeFloating || t == TimeTypeFixed
}

// ExpiryBehavior controls what happens to occurrences that are already in
// the past when they are first viewed.
type ExpiryBehavior string

const (
	// ExpiryKeep materializes past occurrences like any other.
	ExpiryKeep ExpiryBehavior = "keep"
	// ExpirySkipPast never materializes an occurrence dated before today.
	ExpirySkipPast ExpiryBehavior = "skip_past"
)

// IsValid checks if the expiry behavior is known.
func (e ExpiryBehavior) IsValid() bool {
	return e == ExpiryKeep || e == ExpirySkipPast
}

// Recurrence is a rule definition: which dates produce an instance of its
// template. StartDate is the anchor and never changes after creation.
type Recurrence struct {
	ID             string         `json:"id"`
	TemplateID     string         `json:"template_id"`
	Kind           InstanceKind   `json:"kind"`
	Rule           string         `json:"rule"`
	TimeType       TimeType       `json:"time_type"`
	StartDate      Date           `json:"start_date"`
	EndDate        *Date          `json:"end_date,omitempty"`
	Timezone       string         `json:"timezone"`
	ExpiryBehavior ExpiryBehavior `json:"expiry_behavior"`
	Active         bool           `json:"active"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	DeletedAt      *time.Time     `json:"deleted_at,omitempty"`
}

// Clone returns a copy of the recurrence.
func (r *Recurrence) Clone() *Recurrence {
	c := *r
	if r.EndDate != nil {
		end := *r.EndDate
		c.EndDate = &end
	}
	if r.DeletedAt != nil {
		at := *r.DeletedAt
		c.DeletedAt = &at
	}
	return &c
}

// EffectiveOn reports whether date lies inside the recurrence's active window.
func (r *Recurrence) EffectiveOn(date Date) bool {
	if !r.Active || r.IsDeleted() || date.Before(r.StartDate) {
		return false
	}
	return r.EndDate == nil || !date.After(*r.EndDate)
}

func (r *Recurrence) IsDeleted() bool { return r.DeletedAt != nil }

// Location returns the recurrence timezone, falling back to UTC.
func (r *Recurrence) Location() *time.Location {
	if r.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(r.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Link is one row of the link ledger: the instance materialized for a
// recurrence on an occurrence date.
type Link struct {
	RecurrenceID   string       `json:"recurrence_id"`
	OccurrenceDate Date         `json:"occurrence_date"`
	InstanceID     string       `json:"instance_id"`
	InstanceKind   InstanceKind `json:"instance_kind"`
	CreatedAt      time.Time    `json:"created_at"`
}

// Outbox event types.
const (
	EventRecurrenceCreated    = "recurrence.created"
	EventRecurrenceUpdated    = "recurrence.updated"
	EventRecurrenceDeleted    = "recurrence.deleted"
	EventInstanceMaterialized = "instance.materialized"
	EventInstanceRetracted    = "instance.retracted"
	EventInstanceUpdated      = "instance.updated"
)

// OutboxEvent notifies other parts of the system that something changed.
type OutboxEvent struct {
	ID        int64           `json:"id"`
	Type      string          `json:"type"`
	EntityID  string          `json:"entity_id"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}
