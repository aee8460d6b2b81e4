package domain

import (
	"time"
)

// InstanceKind identifies which entity a recurrence materializes.
type InstanceKind string

const (
	KindTask      InstanceKind = "task"
	KindTimeBlock InstanceKind = "time_block"
)

// IsValid checks if the kind is a known instance kind.
func (k InstanceKind) IsValid() bool {
	return k == KindTask || k == KindTimeBlock
}

// TaskStatus represents the completion state of a task or time block.
type TaskStatus string

const (
	StatusPlanned   TaskStatus = "planned"
	StatusCompleted TaskStatus = "completed"
)

// ValidStatuses contains all valid status values.
var ValidStatuses = []TaskStatus{StatusPlanned, StatusCompleted}

// IsValid checks if the status is a valid task status.
func (s TaskStatus) IsValid() bool {
	for _, v := range ValidStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// Priority constants for convenience.
const (
	PriorityNone   = 0
	PriorityLow    = 1
	PriorityNormal = 2
	PriorityHigh   = 3
)

// ValidPriority checks if the priority value is within valid range (0-3).
func ValidPriority(p int) bool {
	return p >= PriorityNone && p <= PriorityHigh
}

// Task is a to-do item scheduled on one or more dates. A task created by a
// recurrence carries RecurrenceID and OccurrenceDate.
type Task struct {
	ID              string          `json:"id"`
	Title           string          `json:"title"`
	Description     *string         `json:"description,omitempty"`
	AreaID          *string         `json:"area_id,omitempty"`
	Priority        int             `json:"priority"`
	EstimateMinutes *int            `json:"estimate_minutes,omitempty"`
	Status          TaskStatus      `json:"status"`
	Checklist       []ChecklistItem `json:"checklist"`
	RecurrenceID    *string         `json:"recurrence_id,omitempty"`
	OccurrenceDate  *Date           `json:"occurrence_date,omitempty"`
	CompletedAt     *time.Time      `json:"completed_at,omitempty"`
	ArchivedAt      *time.Time      `json:"archived_at,omitempty"`
	DeletedAt       *time.Time      `json:"deleted_at,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

func (t *Task) IsCompleted() bool { return t.Status == StatusCompleted }
func (t *Task) IsDeleted() bool { return t.DeletedAt != nil }
func (t *Task) IsArchived() bool { return t.ArchivedAt != nil }

// Clone returns a deep copy of the task.
func (t *Task) Clone() *Task {
	c := *t
	c.Checklist = CloneChecklist(t.Checklist)
	return &c
}

// TimeBlock is a span of time reserved on a calendar date.
//
// Floating blocks keep their wall-clock time regardless of timezone; their
// StartAt/EndAt are stored in UTC and must be read as local wall clock.
type TimeBlock struct {
	ID             string     `json:"id"`
	Title          string     `json:"title"`
	Description    *string    `json:"description,omitempty"`
	AreaID         *string    `json:"area_id,omitempty"`
	StartAt        time.Time  `json:"start_at"`
	EndAt          time.Time  `json:"end_at"`
	Floating       bool       `json:"floating"`
	Status         TaskStatus `json:"status"`
	RecurrenceID   *string    `json:"recurrence_id,omitempty"`
	OccurrenceDate *Date      `json:"occurrence_date,omitempty"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	DeletedAt      *time.Time `json:"deleted_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

func (b *TimeBlock) IsCompleted() bool { return b.Status == StatusCompleted }
func (b *TimeBlock) IsDeleted() bool { return b.DeletedAt != nil }

// Clone returns a copy of the time block.
func (b *TimeBlock) Clone() *TimeBlock {
	c := *b
	return &c
}

// StartsAfter reports whether the block begins after the cutoff. Floating
// blocks compare wall clocks, fixed blocks compare instants.
func (b *TimeBlock) StartsAfter(cutoff time.Time) bool {
	if b.Floating {
		return b.StartAt.After(WallClock(cutoff))
	}
	return b.StartAt.After(cutoff)
}

// WallClock re-expresses t's wall-clock fields in UTC.
func WallClock(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
}

// Schedule records that an instance is planned on a date.
type Schedule struct {
	InstanceID string       `json:"instance_id"`
	Kind       InstanceKind `json:"kind"`
	Date       Date         `json:"date"`
}
