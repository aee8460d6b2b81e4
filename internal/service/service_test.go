package service_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daybook/daybook/internal/clock"
	"github.com/daybook/daybook/internal/domain"
	"github.com/daybook/daybook/internal/rule"
	"github.com/daybook/daybook/internal/service"
	"github.com/daybook/daybook/internal/storage"
	"github.com/daybook/daybook/internal/txn"
	"github.com/daybook/daybook/pkg/idgen"
)

type env struct {
	*service.Services
	store storage.Store
	clock *clock.Fixed
}

func setupServices(t *testing.T) *env {
	t.Helper()
	return setupServicesWith(t, nil)
}

// setupServicesWith lets a test wrap the store the services write through.
func setupServicesWith(t *testing.T, wrap func(storage.Store) storage.Store) *env {
	t.Helper()
	base, err := storage.NewSQLiteStore(context.Background(), ":memory:", storage.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { base.Close() })

	var store storage.Store = base
	if wrap != nil {
		store = wrap(base)
	}

	clk := clock.NewFixed(time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC))
	svcs := service.New(service.Config{
		Store:  store,
		Permit: txn.NewPermit(),
		Rules:  rule.NewEvaluator(rule.Options{}),
		Clock:  clk,
		IDs:    idgen.NewSequence(),
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	return &env{Services: svcs, store: store, clock: clk}
}

func date(s string) domain.Date {
	return domain.MustParseDate(s)
}

func strPtr(s string) *string { return &s }

func (e *env) taskTemplate(t *testing.T) *domain.Template {
	t.Helper()
	tpl, err := e.Templates.Create(context.Background(), service.CreateTemplateInput{
		Kind:      domain.KindTask,
		Title:     "Stretch",
		Checklist: []string{"Neck", "Back"},
	})
	require.NoError(t, err)
	return tpl
}

func (e *env) blockTemplate(t *testing.T) *domain.Template {
	t.Helper()
	tpl, err := e.Templates.Create(context.Background(), service.CreateTemplateInput{
		Kind:      domain.KindTimeBlock,
		Title:     "Deep work",
		StartTime: strPtr("09:00"),
		EndTime:   strPtr("11:00"),
	})
	require.NoError(t, err)
	return tpl
}

func (e *env) daily(t *testing.T, tpl *domain.Template, start string) *domain.Recurrence {
	t.Helper()
	rec, err := e.Recurrences.Create(context.Background(), service.CreateRecurrenceInput{
		TemplateID: tpl.ID,
		Rule:       "FREQ=DAILY",
		StartDate:  date(start),
	})
	require.NoError(t, err)
	return rec
}

// reconcile materializes from..to and returns the instance id per date.
func (e *env) reconcile(t *testing.T, from, to string) map[string]string {
	t.Helper()
	got, err := e.Agenda.ReconcileRange(context.Background(), date(from), date(to))
	require.NoError(t, err)
	out := map[string]string{}
	for d, ids := range got {
		require.Len(t, ids, 1)
		out[d.String()] = ids[0]
	}
	return out
}

func (e *env) eventTypes(t *testing.T) []string {
	t.Helper()
	evts, err := e.Outbox.List(context.Background(), 0, 1000)
	require.NoError(t, err)
	var types []string
	for _, ev := range evts {
		types = append(types, ev.Type)
	}
	return types
}

func requireCode(t *testing.T, err error, code domain.ErrorCode) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, code, domain.CodeOf(err), "error: %v", err)
}
