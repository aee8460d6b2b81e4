package recurrence_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/daybook/daybook/internal/clock"
	"github.com/daybook/daybook/internal/domain"
	"github.com/daybook/daybook/internal/events"
	"github.com/daybook/daybook/internal/recurrence"
	"github.com/daybook/daybook/internal/rule"
	"github.com/daybook/daybook/internal/storage"
	"github.com/daybook/daybook/internal/storage/memory"
	"github.com/daybook/daybook/internal/txn"
	"github.com/daybook/daybook/pkg/idgen"
)

type harness struct {
	store *memory.Store
	clock *clock.Fixed
	out   *events.Recorder
	deps  recurrence.Deps
	rec   *recurrence.Reconciler
	prop  *recurrence.Propagator
	n     int
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	store := memory.New()
	h := &harness{
		store: store,
		clock: clock.NewFixed(time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC)),
		out:   &events.Recorder{},
	}
	h.deps = recurrence.Deps{
		Coordinator: txn.NewCoordinator(store, nil),
		Rules:       rule.NewEvaluator(rule.Options{}),
		Clock:       h.clock,
		IDs:         idgen.NewSequence(),
		Outbox:      h.out,
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	h.rec = recurrence.NewReconciler(h.deps)
	h.prop = recurrence.NewPropagator(h.deps)
	return h
}

// addRule stores a template of the given kind and a recurrence over it.
func (h *harness) addRule(t *testing.T, kind domain.InstanceKind, expr, start string, mutate ...func(*domain.Recurrence)) *domain.Recurrence {
	t.Helper()
	ctx := context.Background()
	h.n++
	now := h.clock.Now()

	tpl := &domain.Template{
		ID:        fmt.Sprintf("%s-%d", idgen.PrefixTemplate, h.n),
		Kind:      kind,
		Title:     "Water plants {{weekday}}",
		Priority:  domain.PriorityNormal,
		Checklist: []domain.ChecklistItem{{ID: "chk-src", Title: "Fill can", Done: true}},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if kind == domain.KindTimeBlock {
		startTime, endTime := "09:00", "10:00"
		tpl.StartTime, tpl.EndTime = &startTime, &endTime
	}
	require.NoError(t, h.store.Templates().Create(ctx, tpl))

	rec := &domain.Recurrence{
		ID:             fmt.Sprintf("%s-%d", idgen.PrefixRecurrence, h.n),
		TemplateID:     tpl.ID,
		Kind:           kind,
		Rule:           expr,
		TimeType:       domain.TimeTypeFloating,
		StartDate:      domain.MustParseDate(start),
		Timezone:       "UTC",
		ExpiryBehavior: domain.ExpiryKeep,
		Active:         true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	for _, m := range mutate {
		m(rec)
	}
	require.NoError(t, h.store.Recurrences().Create(ctx, rec))
	return rec
}

func (h *harness) reconcile(t *testing.T, date string) []string {
	t.Helper()
	ids, err := h.rec.Reconcile(context.Background(), domain.MustParseDate(date))
	require.NoError(t, err)
	return ids
}

// reconcileEach reconciles every date from..to and returns the single
// instance id produced per date.
func (h *harness) reconcileEach(t *testing.T, from, to string) map[string]string {
	t.Helper()
	out := map[string]string{}
	for d := domain.MustParseDate(from); !d.After(domain.MustParseDate(to)); d = d.AddDays(1) {
		ids := h.reconcile(t, d.String())
		if len(ids) == 1 {
			out[d.String()] = ids[0]
		}
	}
	return out
}

func (h *harness) task(t *testing.T, id string) *domain.Task {
	t.Helper()
	task, err := h.store.Tasks().Get(context.Background(), id)
	require.NoError(t, err)
	return task
}

func (h *harness) updateTask(t *testing.T, id string, fn func(*domain.Task)) {
	t.Helper()
	task := h.task(t, id)
	fn(task)
	require.NoError(t, h.store.Tasks().Update(context.Background(), task))
}

func (h *harness) linkDates(t *testing.T, recID string) []string {
	t.Helper()
	links, err := h.store.Links().ListForRecurrence(context.Background(), recID, nil)
	require.NoError(t, err)
	var dates []string
	for _, l := range links {
		dates = append(dates, l.OccurrenceDate.String())
	}
	return dates
}

// edit applies mutate to a copy of rec and propagates the change in one
// write, the way the service layer does.
func (h *harness) edit(t *testing.T, rec *domain.Recurrence, opts recurrence.PropagateOptions, mutate func(*domain.Recurrence)) recurrence.Result {
	t.Helper()
	after := rec.Clone()
	mutate(after)
	require.NoError(t, h.prop.Check(rec, after))

	var res recurrence.Result
	err := h.deps.Coordinator.Write(context.Background(), func(tx storage.TxStore) error {
		if err := tx.Recurrences().Update(context.Background(), after); err != nil {
			return err
		}
		var err error
		res, err = h.prop.Propagate(context.Background(), tx, rec, after, opts)
		return err
	})
	require.NoError(t, err)
	*rec = *after
	return res
}
