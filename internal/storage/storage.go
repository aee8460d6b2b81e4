// Package storage defines the interfaces for the Daybook storage layer.
package storage

import (
	"context"
	"errors"

	"github.com/daybook/daybook/internal/domain"
)

// Common sentinel errors for storage operations.
var (
	// ErrNotFound is returned when a requested resource does not exist.
	ErrNotFound = errors.New("resource not found")

	// ErrConflict is returned when a write collides with an existing row,
	// e.g. a second link for the same (recurrence, date) key.
	ErrConflict = errors.New("resource already exists")
)

// RecurrenceListOptions filters recurrence listings.
type RecurrenceListOptions struct {
	ActiveOnly bool
	TemplateID *string
}

// Store is the main interface for accessing all repositories.
// Repositories obtained from the Store read the last committed state;
// mutations that span more than one row go through WithTx.
type Store interface {
	TxStore

	// WithTx executes the given function within a database transaction.
	// If fn returns an error, the transaction is rolled back.
	// If fn returns nil, the transaction is committed.
	//
	// Code running inside fn must only use the TxStore it is given.
	WithTx(ctx context.Context, fn func(TxStore) error) error

	// Close releases any resources held by the store.
	Close() error
}

// TxStore provides access to repositories within a transaction context.
// It is passed to the function executed by Store.WithTx.
type TxStore interface {
	Templates() TemplateRepository
	Recurrences() RecurrenceRepository
	Links() LinkRepository
	Tasks() TaskRepository
	TimeBlocks() TimeBlockRepository
	Schedules() ScheduleRepository
	Outbox() OutboxRepository
}

// TemplateRepository defines operations for managing templates.
type TemplateRepository interface {
	// Create inserts a new template. Returns ErrConflict if the ID is taken.
	Create(ctx context.Context, tpl *domain.Template) error

	// Get retrieves a template by its ID.
	// Returns ErrNotFound if the template does not exist.
	Get(ctx context.Context, id string) (*domain.Template, error)

	// Update replaces the mutable fields of an existing template.
	// Returns ErrNotFound if the template does not exist.
	Update(ctx context.Context, tpl *domain.Template) error

	// List returns all templates ordered by creation time.
	List(ctx context.Context) ([]*domain.Template, error)
}

// RecurrenceRepository is the recurrence registry.
type RecurrenceRepository interface {
	// Create inserts a new recurrence. Returns ErrConflict if the ID is taken.
	Create(ctx context.Context, rec *domain.Recurrence) error

	// Get retrieves a recurrence by its ID.
	// Returns ErrNotFound if the recurrence does not exist.
	Get(ctx context.Context, id string) (*domain.Recurrence, error)

	// Update replaces the mutable fields of a recurrence. The start date is
	// never written.
	// Returns ErrNotFound if the recurrence does not exist.
	Update(ctx context.Context, rec *domain.Recurrence) error

	// List returns the recurrences matching opts ordered by creation time.
	// Deleted recurrences are never listed.
	List(ctx context.Context, opts RecurrenceListOptions) ([]*domain.Recurrence, error)

	// ListEffectiveOn returns the active, undeleted recurrences whose window
	// [start_date, end_date] contains date.
	ListEffectiveOn(ctx context.Context, date domain.Date) ([]*domain.Recurrence, error)
}

// LinkRepository is the link ledger. At most one link exists per
// (recurrence, occurrence date) and per instance.
type LinkRepository interface {
	// InsertIfAbsent stores link unless its key is already present. It
	// reports whether the row was inserted.
	InsertIfAbsent(ctx context.Context, link *domain.Link) (bool, error)

	// Get looks up the link for a key.
	// Returns ErrNotFound if there is none.
	Get(ctx context.Context, recurrenceID string, date domain.Date) (*domain.Link, error)

	// GetByInstance looks up the link that points at an instance.
	// Returns ErrNotFound if there is none.
	GetByInstance(ctx context.Context, instanceID string) (*domain.Link, error)

	// ListForRecurrence returns the links of a recurrence ordered by
	// occurrence date, optionally starting at from.
	ListForRecurrence(ctx context.Context, recurrenceID string, from *domain.Date) ([]*domain.Link, error)

	// DeleteFrom removes every link of a recurrence dated on or after
	// threshold and returns the number removed.
	DeleteFrom(ctx context.Context, recurrenceID string, threshold domain.Date) (int64, error)

	// DeleteByInstance removes the link pointing at an instance, if any.
	DeleteByInstance(ctx context.Context, instanceID string) error
}

// TaskRepository defines operations for managing tasks. Tasks are never
// hard-deleted; deletion sets DeletedAt.
type TaskRepository interface {
	Create(ctx context.Context, task *domain.Task) error

	// Get retrieves a task by its ID, including soft-deleted tasks.
	// Returns ErrNotFound if the task does not exist.
	Get(ctx context.Context, id string) (*domain.Task, error)

	// Update writes every mutable field of the task.
	// Returns ErrNotFound if the task does not exist.
	Update(ctx context.Context, task *domain.Task) error

	// HasDeletedOccurrence reports whether a soft-deleted task still carries
	// the back-reference to (recurrenceID, date).
	HasDeletedOccurrence(ctx context.Context, recurrenceID string, date domain.Date) (bool, error)
}

// TimeBlockRepository defines operations for managing time blocks.
type TimeBlockRepository interface {
	Create(ctx context.Context, block *domain.TimeBlock) error

	// Get retrieves a time block by its ID, including soft-deleted blocks.
	// Returns ErrNotFound if the block does not exist.
	Get(ctx context.Context, id string) (*domain.TimeBlock, error)

	// Update writes every mutable field of the block.
	// Returns ErrNotFound if the block does not exist.
	Update(ctx context.Context, block *domain.TimeBlock) error

	// HasDeletedOccurrence reports whether a soft-deleted block still carries
	// the back-reference to (recurrenceID, date).
	HasDeletedOccurrence(ctx context.Context, recurrenceID string, date domain.Date) (bool, error)
}

// ScheduleRepository stores the dates an instance is planned on.
type ScheduleRepository interface {
	// Create adds a schedule row. Returns ErrConflict if it already exists.
	Create(ctx context.Context, s domain.Schedule) error

	// Exists reports whether instanceID is scheduled on date.
	Exists(ctx context.Context, instanceID string, date domain.Date) (bool, error)

	// ListForInstance returns an instance's schedule rows ordered by date.
	ListForInstance(ctx context.Context, instanceID string) ([]domain.Schedule, error)

	// ListRange returns all schedule rows with from <= date <= to, ordered
	// by date.
	ListRange(ctx context.Context, from, to domain.Date) ([]domain.Schedule, error)

	// Delete removes one schedule row. Missing rows are not an error.
	Delete(ctx context.Context, instanceID string, date domain.Date) error

	// DeleteForInstance removes every schedule row of an instance.
	DeleteForInstance(ctx context.Context, instanceID string) error
}

// OutboxRepository is an append-only event log.
type OutboxRepository interface {
	// Append stores the event and sets its ID.
	Append(ctx context.Context, event *domain.OutboxEvent) error

	// ListAfter returns up to limit events with ID greater than afterID in
	// ID order.
	ListAfter(ctx context.Context, afterID int64, limit int) ([]*domain.OutboxEvent, error)
}
