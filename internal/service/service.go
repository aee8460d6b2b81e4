// Package service implements Daybook's use cases on top of the storage layer
// and the recurrence engine. Every mutating call runs in one write
// transaction under the shared write permit; events are published after the
// transaction commits.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/daybook/daybook/internal/clock"
	"github.com/daybook/daybook/internal/domain"
	"github.com/daybook/daybook/internal/events"
	"github.com/daybook/daybook/internal/recurrence"
	"github.com/daybook/daybook/internal/storage"
	"github.com/daybook/daybook/internal/txn"
	"github.com/daybook/daybook/pkg/idgen"
)

// Config holds the collaborators shared by all services.
type Config struct {
	Store  storage.Store
	Permit *txn.Permit
	Rules  recurrence.RuleEvaluator
	Clock  clock.Clock
	IDs    idgen.Generator

	// Outbox defaults to the outbox table of Store.
	Outbox events.Outbox
	Logger *slog.Logger
}

// Services bundles the application services.
type Services struct {
	Templates   *TemplateService
	Recurrences *RecurrenceService
	Tasks       *TaskService
	TimeBlocks  *TimeBlockService
	Agenda      *AgendaService
	Outbox      *OutboxService
}

// New wires the services around one coordinator.
func New(cfg Config) *Services {
	if cfg.Clock == nil {
		cfg.Clock = clock.System{}
	}
	if cfg.IDs == nil {
		cfg.IDs = idgen.UUID{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	coord := txn.NewCoordinator(cfg.Store, cfg.Permit)
	if cfg.Outbox == nil {
		cfg.Outbox = events.NewStoreOutbox(coord)
	}

	deps := recurrence.Deps{
		Coordinator: coord,
		Rules:       cfg.Rules,
		Clock:       cfg.Clock,
		IDs:         cfg.IDs,
		Outbox:      cfg.Outbox,
		Logger:      cfg.Logger,
	}
	b := base{
		coord:  coord,
		clock:  cfg.Clock,
		ids:    cfg.IDs,
		outbox: cfg.Outbox,
		log:    cfg.Logger,
	}
	reconciler := recurrence.NewReconciler(deps)

	return &Services{
		Templates: &TemplateService{base: b},
		Recurrences: &RecurrenceService{
			base:       b,
			rules:      cfg.Rules,
			propagator: recurrence.NewPropagator(deps),
		},
		Tasks:      &TaskService{base: b},
		TimeBlocks: &TimeBlockService{base: b},
		Agenda:     &AgendaService{base: b, reconciler: reconciler},
		Outbox:     &OutboxService{base: b},
	}
}

// base carries what every service needs.
type base struct {
	coord  *txn.Coordinator
	clock  clock.Clock
	ids    idgen.Generator
	outbox events.Outbox
	log    *slog.Logger
}

func (b base) store() storage.Store { return b.coord.Store() }

func (b base) now() time.Time { return b.clock.Now().UTC() }

// write runs fn under the write permit and maps its error.
func (b base) write(ctx context.Context, fn func(tx storage.TxStore) error) error {
	return mapError(b.coord.Write(ctx, fn))
}

func (b base) publish(ctx context.Context, evts ...domain.OutboxEvent) {
	events.PublishOrLog(ctx, b.outbox, b.log, evts...)
}

// mapError turns storage failures into domain errors. Domain errors pass
// through unchanged.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	var de *domain.DomainError
	switch {
	case errors.As(err, &de):
		return de
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	case errors.Is(err, storage.ErrConflict):
		return domain.NewConflictError("resource already exists", map[string]interface{}{"detail": err.Error()})
	case errors.Is(err, storage.ErrNotFound):
		return &domain.DomainError{Code: domain.ErrCodeNotFound, Message: "resource not found", Context: map[string]interface{}{}, Err: err}
	}
	return domain.NewDatabaseError(err)
}

// notFound maps storage.ErrNotFound to a NOT_FOUND error naming the
// resource and passes other errors through.
func notFound(err error, resource, id string) error {
	if errors.Is(err, storage.ErrNotFound) {
		return domain.NewNotFoundError(resource, id)
	}
	return err
}

func validateRange(from, to domain.Date) error {
	if to.Before(from) {
		return domain.NewFieldValidationError("to", "must not be before from")
	}
	if from.DaysUntil(to) >= recurrence.MaxReconcileDays {
		return domain.NewFieldValidationError("to", "range must not exceed 366 days")
	}
	return nil
}
