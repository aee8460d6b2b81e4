package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daybook/daybook/internal/domain"
)

func TestAgendaService_Range(t *testing.T) {
	ctx := context.Background()
	e := setupServices(t)
	e.daily(t, e.taskTemplate(t), "2025-01-01")
	e.daily(t, e.blockTemplate(t), "2025-01-02")

	agenda, err := e.Agenda.Range(ctx, date("2025-01-01"), date("2025-01-03"))
	require.NoError(t, err)
	require.Len(t, agenda.Days, 3)

	assert.Len(t, agenda.Days[0].Tasks, 1)
	assert.Empty(t, agenda.Days[0].TimeBlocks)
	assert.Len(t, agenda.Days[1].Tasks, 1)
	assert.Len(t, agenda.Days[1].TimeBlocks, 1)

	require.NoError(t, e.Tasks.Delete(ctx, agenda.Days[2].Tasks[0].ID))
	again, err := e.Agenda.Range(ctx, date("2025-01-01"), date("2025-01-03"))
	require.NoError(t, err)
	assert.Empty(t, again.Days[2].Tasks)
	assert.Equal(t, agenda.Days[0].Tasks[0].ID, again.Days[0].Tasks[0].ID)
}

func TestAgendaService_RangeLimits(t *testing.T) {
	ctx := context.Background()
	e := setupServices(t)

	_, err := e.Agenda.Range(ctx, date("2025-01-02"), date("2025-01-01"))
	requireCode(t, err, domain.ErrCodeValidationFailed)

	_, err = e.Agenda.Range(ctx, date("2025-01-01"), date("2026-01-02"))
	requireCode(t, err, domain.ErrCodeValidationFailed)

	agenda, err := e.Agenda.Range(ctx, date("2025-01-01"), date("2026-01-01"))
	require.NoError(t, err)
	assert.Len(t, agenda.Days, 366)
}

func TestOutboxService_List(t *testing.T) {
	ctx := context.Background()
	e := setupServices(t)
	e.daily(t, e.taskTemplate(t), "2025-01-01")
	e.reconcile(t, "2025-01-01", "2025-01-02")

	all, err := e.Outbox.List(ctx, 0, 10)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, domain.EventRecurrenceCreated, all[0].Type)
	assert.Equal(t, domain.EventInstanceMaterialized, all[1].Type)

	rest, err := e.Outbox.List(ctx, all[0].ID, 10)
	require.NoError(t, err)
	assert.Len(t, rest, 2)

	none, err := e.Outbox.List(ctx, all[2].ID, 10)
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}
