package recurrence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/daybook/daybook/internal/domain"
	"github.com/daybook/daybook/internal/events"
	"github.com/daybook/daybook/internal/storage"
)

// Propagator carries recurrence edits over to already materialized
// instances.
type Propagator struct {
	deps Deps
	in   instruments
}

// NewPropagator creates a Propagator. d.Rules is required; d.Coordinator is
// not used, callers pass their own transaction.
func NewPropagator(d Deps) *Propagator {
	return &Propagator{deps: d.withDefaults(), in: newInstruments()}
}

// PropagateOptions control how an edit reaches existing instances.
type PropagateOptions struct {
	// DeleteFuture enables retraction. When false the edit only affects
	// occurrences that have not been materialized yet.
	DeleteFuture bool

	// Cutoff, if set, limits retraction to time blocks starting after it.
	// Tasks have no time of day and are not affected.
	Cutoff *time.Time
}

// Result lists the instances an edit retracted.
type Result struct {
	Retracted []string
}

// Events returns one instance.retracted event per retracted instance.
func (r Result) Events(recurrenceID string, at time.Time) []domain.OutboxEvent {
	out := make([]domain.OutboxEvent, 0, len(r.Retracted))
	for _, id := range r.Retracted {
		out = append(out, events.New(domain.EventInstanceRetracted, id,
			map[string]string{"recurrence_id": recurrenceID}, at))
	}
	return out
}

// Check rejects edits that would break the rule's invariants. It runs
// before anything is written.
func (p *Propagator) Check(before, after *domain.Recurrence) error {
	if after.StartDate != before.StartDate {
		return domain.NewFieldValidationError("start_date", "cannot be changed after creation")
	}
	if err := p.deps.Rules.Validate(after.Rule); err != nil {
		return domain.NewFieldValidationError("rule", err.Error())
	}
	until, ok, err := p.deps.Rules.Until(after.Rule)
	if err != nil {
		return domain.NewFieldValidationError("rule", err.Error())
	}
	if ok && (after.EndDate == nil || *after.EndDate != until) {
		return domain.NewFieldValidationError("end_date",
			fmt.Sprintf("must equal the rule's UNTIL date %s", until))
	}
	if after.EndDate != nil && after.EndDate.Before(after.StartDate) {
		return domain.NewFieldValidationError("end_date", "must not be before start_date")
	}
	return nil
}

// Propagate retracts the planned instances an edit pushed out of the rule:
// occurrences after a shortened end date and, when the rule expression
// changed, occurrences the new rule no longer produces. Archived instances
// are retracted too; completed and deleted ones are left alone. Running it
// twice has no further effect.
func (p *Propagator) Propagate(ctx context.Context, tx storage.TxStore, before, after *domain.Recurrence, opts PropagateOptions) (Result, error) {
	ruleChanged := after.Rule != before.Rule
	truncated := after.EndDate != nil && (before.EndDate == nil || after.EndDate.Before(*before.EndDate))
	if !opts.DeleteFuture || (!ruleChanged && !truncated) {
		return Result{}, nil
	}

	keep := func(date domain.Date) (bool, error) {
		if after.EndDate != nil && date.After(*after.EndDate) {
			return false, nil
		}
		if ruleChanged {
			return p.deps.Rules.OccursOn(after.Rule, after.StartDate, date)
		}
		return true, nil
	}
	return p.retract(ctx, tx, after, opts.Cutoff, keep)
}

// RetractAll retracts every linked instance of rec that is neither completed
// nor deleted. Used when the recurrence itself is deleted.
func (p *Propagator) RetractAll(ctx context.Context, tx storage.TxStore, rec *domain.Recurrence, cutoff *time.Time) (Result, error) {
	return p.retract(ctx, tx, rec, cutoff, func(domain.Date) (bool, error) { return false, nil })
}

func (p *Propagator) retract(ctx context.Context, tx storage.TxStore, rec *domain.Recurrence, cutoff *time.Time, keep func(domain.Date) (bool, error)) (Result, error) {
	ctx, span := p.in.tracer.Start(ctx, "recurrence.propagate",
		trace.WithAttributes(attribute.String("recurrence_id", rec.ID)))
	defer span.End()

	links, err := tx.Links().ListForRecurrence(ctx, rec.ID, nil)
	if err != nil {
		return Result{}, fmt.Errorf("list links: %w", err)
	}

	now := p.deps.Clock.Now().UTC()
	var res Result
	for _, link := range links {
		ok, err := keep(link.OccurrenceDate)
		if err != nil {
			return Result{}, fmt.Errorf("evaluate %s: %w", link.OccurrenceDate, err)
		}
		if ok {
			continue
		}

		inst, err := loadInstance(ctx, tx, link.InstanceKind, link.InstanceID)
		if errors.Is(err, storage.ErrNotFound) {
			continue
		}
		if err != nil {
			return Result{}, err
		}
		if inst.completed() || inst.deleted() {
			continue
		}
		if cutoff != nil && !inst.startsAfter(*cutoff) {
			continue
		}
		if err := inst.retract(ctx, tx, now); err != nil {
			return Result{}, err
		}
		res.Retracted = append(res.Retracted, inst.id())
	}

	span.SetAttributes(attribute.Int("retracted", len(res.Retracted)))
	if len(res.Retracted) > 0 {
		p.in.retracted.Add(ctx, int64(len(res.Retracted)))
		p.deps.Logger.InfoContext(ctx, "retracted instances",
			"recurrence_id", rec.ID, "count", len(res.Retracted))
	}
	return res, nil
}
