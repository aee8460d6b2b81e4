package recurrence

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/daybook/daybook/internal/domain"
	"github.com/daybook/daybook/internal/events"
	"github.com/daybook/daybook/internal/storage"
)

// MaxReconcileDays bounds ReconcileRange.
const MaxReconcileDays = 366

// Reconciler makes sure every occurrence of every effective rule on a date
// has an instance, creating the missing ones.
//
// Thread-safety: a Reconciler is safe for concurrent use. Creation is
// serialized through the coordinator's write permit and re-checked inside the
// transaction, so racing calls never produce two instances for one
// occurrence.
type Reconciler struct {
	deps Deps
	in   instruments
}

// NewReconciler creates a Reconciler. d.Coordinator and d.Rules are required.
func NewReconciler(d Deps) *Reconciler {
	return &Reconciler{deps: d.withDefaults(), in: newInstruments()}
}

// Reconcile returns the ids of the valid instances linked to date's
// occurrences, materializing missing ones. A rule that fails is logged and
// skipped; the rest still reconcile.
func (r *Reconciler) Reconcile(ctx context.Context, date domain.Date) ([]string, error) {
	ctx, span := r.in.tracer.Start(ctx, "recurrence.reconcile",
		trace.WithAttributes(attribute.String("date", date.String())))
	defer span.End()

	recs, err := r.deps.Coordinator.Store().Recurrences().ListEffectiveOn(ctx, date)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "list recurrences")
		return nil, fmt.Errorf("list recurrences effective on %s: %w", date, err)
	}
	span.SetAttributes(attribute.Int("recurrences", len(recs)))

	ids := make([]string, 0, len(recs))
	for _, rec := range recs {
		if err := ctx.Err(); err != nil {
			return ids, err
		}
		id, err := r.reconcileRule(ctx, rec, date)
		if err != nil {
			r.in.failures.Add(ctx, 1)
			r.deps.Logger.ErrorContext(ctx, "reconcile failed",
				"recurrence_id", rec.ID, "date", date.String(), "err", err)
			continue
		}
		if id != "" {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// ReconcileRange reconciles every date in [from, to] and returns the instance
// ids per date. Dates with no instances are omitted.
func (r *Reconciler) ReconcileRange(ctx context.Context, from, to domain.Date) (map[domain.Date][]string, error) {
	if to.Before(from) {
		return nil, domain.NewFieldValidationError("to", "must not be before from")
	}
	if from.DaysUntil(to) >= MaxReconcileDays {
		return nil, domain.NewFieldValidationError("to", fmt.Sprintf("range must not exceed %d days", MaxReconcileDays))
	}
	out := make(map[domain.Date][]string)
	for d := from; !d.After(to); d = d.AddDays(1) {
		ids, err := r.Reconcile(ctx, d)
		if err != nil {
			return out, err
		}
		if len(ids) > 0 {
			out[d] = ids
		}
	}
	return out, nil
}

func (r *Reconciler) reconcileRule(ctx context.Context, rec *domain.Recurrence, date domain.Date) (string, error) {
	match, err := r.deps.Rules.OccursOn(rec.Rule, rec.StartDate, date)
	if err != nil {
		return "", fmt.Errorf("evaluate rule: %w", err)
	}
	if !match {
		return "", nil
	}

	store := r.deps.Coordinator.Store()
	link, err := store.Links().Get(ctx, rec.ID, date)
	switch {
	case err == nil:
		return r.linked(ctx, store, link)
	case !errors.Is(err, storage.ErrNotFound):
		return "", fmt.Errorf("get link: %w", err)
	}

	if r.expired(rec, date) {
		r.deps.Logger.DebugContext(ctx, "skipping past occurrence",
			"recurrence_id", rec.ID, "date", date.String())
		return "", nil
	}
	return r.create(ctx, rec, date)
}

// linked resolves an existing link. A link whose instance the user detached
// stays in the ledger so the occurrence is never recreated.
func (r *Reconciler) linked(ctx context.Context, s storage.TxStore, link *domain.Link) (string, error) {
	valid, err := Validate(ctx, s, link.InstanceKind, link.InstanceID, link.OccurrenceDate)
	if err != nil {
		return "", fmt.Errorf("validate instance %s: %w", link.InstanceID, err)
	}
	if !valid {
		r.in.orphaned.Add(ctx, 1)
		r.deps.Logger.DebugContext(ctx, "occurrence detached",
			"recurrence_id", link.RecurrenceID, "date", link.OccurrenceDate.String(), "instance_id", link.InstanceID)
		return "", nil
	}
	return link.InstanceID, nil
}

// expired reports whether a skip_past rule's occurrence lies before today in
// the rule's timezone.
func (r *Reconciler) expired(rec *domain.Recurrence, date domain.Date) bool {
	if rec.ExpiryBehavior != domain.ExpirySkipPast {
		return false
	}
	today := domain.DateOf(r.deps.Clock.Now().In(rec.Location()))
	return date.Before(today)
}

// create materializes the occurrence inside a write. Everything read before
// the permit was taken is re-checked: the rule may have been edited or
// another caller may have linked the occurrence in the meantime.
func (r *Reconciler) create(ctx context.Context, rec *domain.Recurrence, date domain.Date) (string, error) {
	ctx, span := r.in.tracer.Start(ctx, "recurrence.materialize", trace.WithAttributes(
		attribute.String("recurrence_id", rec.ID),
		attribute.String("date", date.String()),
	))
	defer span.End()

	var (
		link         *domain.Link
		existing     string
		retractedHit bool
	)
	err := r.deps.Coordinator.Write(ctx, func(tx storage.TxStore) error {
		link, existing, retractedHit = nil, "", false

		cur, err := tx.Recurrences().Get(ctx, rec.ID)
		if errors.Is(err, storage.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if !cur.EffectiveOn(date) {
			return nil
		}
		if cur.Rule != rec.Rule {
			match, err := r.deps.Rules.OccursOn(cur.Rule, cur.StartDate, date)
			if err != nil || !match {
				return err
			}
		}

		got, err := tx.Links().Get(ctx, cur.ID, date)
		if err == nil {
			valid, err := Validate(ctx, tx, got.InstanceKind, got.InstanceID, date)
			if err != nil {
				return err
			}
			if valid {
				existing = got.InstanceID
			}
			return nil
		}
		if !errors.Is(err, storage.ErrNotFound) {
			return err
		}

		gone, err := retracted(ctx, tx, cur, date)
		if err != nil || gone {
			retractedHit = gone
			return err
		}

		link, err = r.deps.materialize(ctx, tx, cur, date)
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "materialize")
		return "", err
	}
	if retractedHit {
		r.in.orphaned.Add(ctx, 1)
		r.deps.Logger.DebugContext(ctx, "occurrence retracted",
			"recurrence_id", rec.ID, "date", date.String())
	}
	if link == nil {
		return existing, nil
	}

	r.in.materialized.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", string(link.InstanceKind))))
	r.deps.Logger.InfoContext(ctx, "materialized occurrence",
		"recurrence_id", link.RecurrenceID, "date", date.String(), "instance_id", link.InstanceID)
	events.PublishOrLog(ctx, r.deps.Outbox, r.deps.Logger,
		events.New(domain.EventInstanceMaterialized, link.InstanceID, link, r.deps.Clock.Now().UTC()))
	return link.InstanceID, nil
}
