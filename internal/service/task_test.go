package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daybook/daybook/internal/domain"
	"github.com/daybook/daybook/internal/service"
)

func TestTaskService_Create(t *testing.T) {
	ctx := context.Background()
	e := setupServices(t)

	task, err := e.Tasks.Create(ctx, service.CreateTaskInput{
		Title:     "Call the bank",
		Date:      date("2025-01-03"),
		Checklist: []string{"Find account number"},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPlanned, task.Status)
	assert.Equal(t, domain.PriorityNormal, task.Priority)
	require.Len(t, task.Checklist, 1)
	assert.NotEmpty(t, task.Checklist[0].ID)

	agenda, err := e.Agenda.Range(ctx, date("2025-01-03"), date("2025-01-03"))
	require.NoError(t, err)
	require.Len(t, agenda.Days[0].Tasks, 1)
	assert.Equal(t, task.ID, agenda.Days[0].Tasks[0].ID)

	_, err = e.Tasks.Create(ctx, service.CreateTaskInput{Title: " ", Date: date("2025-01-03")})
	requireCode(t, err, domain.ErrCodeValidationFailed)
	_, err = e.Tasks.Create(ctx, service.CreateTaskInput{Title: "No date"})
	requireCode(t, err, domain.ErrCodeValidationFailed)
	bad := 7
	_, err = e.Tasks.Create(ctx, service.CreateTaskInput{Title: "Loud", Priority: &bad, Date: date("2025-01-03")})
	requireCode(t, err, domain.ErrCodeValidationFailed)
}

func TestTaskService_Lifecycle(t *testing.T) {
	ctx := context.Background()
	e := setupServices(t)
	task, err := e.Tasks.Create(ctx, service.CreateTaskInput{Title: "Laundry", Date: date("2025-01-03")})
	require.NoError(t, err)

	e.clock.Advance(time.Hour)
	done, err := e.Tasks.Complete(ctx, task.ID)
	require.NoError(t, err)
	assert.True(t, done.IsCompleted())
	require.NotNil(t, done.CompletedAt)
	assert.Equal(t, e.clock.Now().UTC(), *done.CompletedAt)

	reopened, err := e.Tasks.Reopen(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPlanned, reopened.Status)
	assert.Nil(t, reopened.CompletedAt)

	archived, err := e.Tasks.Archive(ctx, task.ID)
	require.NoError(t, err)
	assert.True(t, archived.IsArchived())

	require.NoError(t, e.Tasks.Delete(ctx, task.ID))
	_, err = e.Tasks.Get(ctx, task.ID)
	requireCode(t, err, domain.ErrCodeNotFound)
	requireCode(t, e.Tasks.Delete(ctx, task.ID), domain.ErrCodeNotFound)
}

func TestTaskService_Update(t *testing.T) {
	ctx := context.Background()
	e := setupServices(t)
	task, err := e.Tasks.Create(ctx, service.CreateTaskInput{Title: "Laundry", Date: date("2025-01-03"), Checklist: []string{"Whites"}})
	require.NoError(t, err)

	items := task.Checklist
	items[0].Done = true
	items = append(items, domain.ChecklistItem{Title: "Colours"})
	updated, err := e.Tasks.Update(ctx, task.ID, service.UpdateTaskInput{
		Title:     strPtr("Laundry day"),
		Checklist: items,
	})
	require.NoError(t, err)
	assert.Equal(t, "Laundry day", updated.Title)
	require.Len(t, updated.Checklist, 2)
	assert.True(t, updated.Checklist[0].Done)
	assert.NotEmpty(t, updated.Checklist[1].ID)

	_, err = e.Tasks.Update(ctx, task.ID, service.UpdateTaskInput{Title: strPtr("")})
	requireCode(t, err, domain.ErrCodeValidationFailed)
}

// Deleting, archiving or rescheduling a materialized task detaches it from
// its rule: the occurrence is not materialized again.
func TestTaskService_UserEditsDetachInstances(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name   string
		detach func(e *env, id string) error
	}{
		{"delete", func(e *env, id string) error { return e.Tasks.Delete(ctx, id) }},
		{"archive", func(e *env, id string) error {
			_, err := e.Tasks.Archive(ctx, id)
			return err
		}},
		{"reschedule", func(e *env, id string) error {
			_, err := e.Tasks.Reschedule(ctx, id, date("2025-01-09"))
			return err
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := setupServices(t)
			e.daily(t, e.taskTemplate(t), "2025-01-01")
			id := e.reconcile(t, "2025-01-05", "2025-01-05")["2025-01-05"]
			require.NotEmpty(t, id)

			require.NoError(t, tt.detach(e, id))

			ids, err := e.Agenda.Reconcile(ctx, date("2025-01-05"))
			require.NoError(t, err)
			assert.Empty(t, ids)
		})
	}
}

func TestTaskService_RescheduleMovesAgendaEntry(t *testing.T) {
	ctx := context.Background()
	e := setupServices(t)
	task, err := e.Tasks.Create(ctx, service.CreateTaskInput{Title: "Dentist", Date: date("2025-01-03")})
	require.NoError(t, err)

	_, err = e.Tasks.Reschedule(ctx, task.ID, date("2025-01-04"))
	require.NoError(t, err)

	agenda, err := e.Agenda.Range(ctx, date("2025-01-03"), date("2025-01-04"))
	require.NoError(t, err)
	assert.Empty(t, agenda.Days[0].Tasks)
	require.Len(t, agenda.Days[1].Tasks, 1)
	assert.Equal(t, task.ID, agenda.Days[1].Tasks[0].ID)
}

func TestTaskService_ReopenedInstanceCanBeRetracted(t *testing.T) {
	ctx := context.Background()
	e := setupServices(t)
	rec := e.daily(t, e.taskTemplate(t), "2025-01-01")
	ids := e.reconcile(t, "2025-01-01", "2025-01-02")

	_, err := e.Tasks.Complete(ctx, ids["2025-01-02"])
	require.NoError(t, err)
	_, err = e.Tasks.Reopen(ctx, ids["2025-01-02"])
	require.NoError(t, err)

	end := date("2025-01-01")
	res, err := e.Recurrences.Edit(ctx, rec.ID, service.EditRecurrenceInput{EndDate: &end})
	require.NoError(t, err)
	assert.Equal(t, []string{ids["2025-01-02"]}, res.Retracted)
}

func TestTimeBlockService(t *testing.T) {
	ctx := context.Background()
	e := setupServices(t)
	e.daily(t, e.blockTemplate(t), "2025-01-01")
	ids := e.reconcile(t, "2025-01-01", "2025-01-02")

	moved, err := e.TimeBlocks.Reschedule(ctx, ids["2025-01-01"], date("2025-01-10"))
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC), moved.StartAt)
	assert.Equal(t, time.Date(2025, 1, 10, 11, 0, 0, 0, time.UTC), moved.EndAt)

	agenda, err := e.Agenda.Range(ctx, date("2025-01-10"), date("2025-01-10"))
	require.NoError(t, err)
	ids10 := []string{}
	for _, b := range agenda.Days[0].TimeBlocks {
		ids10 = append(ids10, b.ID)
	}
	assert.Contains(t, ids10, moved.ID)

	done, err := e.TimeBlocks.Complete(ctx, ids["2025-01-02"])
	require.NoError(t, err)
	assert.True(t, done.IsCompleted())

	require.NoError(t, e.TimeBlocks.Delete(ctx, ids["2025-01-02"]))
	_, err = e.TimeBlocks.Get(ctx, ids["2025-01-02"])
	requireCode(t, err, domain.ErrCodeNotFound)
}

func TestTimeBlockService_RescheduleAcrossDST(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name      string
		timeType  domain.TimeType
		wantStart time.Time
	}{
		// 09:00 Paris is 08:00Z in winter and 07:00Z once summer time starts.
		{"fixed keeps local wall clock", domain.TimeTypeFixed, time.Date(2025, 3, 31, 7, 0, 0, 0, time.UTC)},
		{"floating keeps stored wall clock", domain.TimeTypeFloating, time.Date(2025, 3, 31, 9, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := setupServices(t)
			_, err := e.Recurrences.Create(ctx, service.CreateRecurrenceInput{
				TemplateID: e.blockTemplate(t).ID,
				Rule:       "FREQ=DAILY",
				StartDate:  date("2025-03-29"),
				TimeType:   tt.timeType,
				Timezone:   "Europe/Paris",
			})
			require.NoError(t, err)
			id := e.reconcile(t, "2025-03-29", "2025-03-29")["2025-03-29"]
			require.NotEmpty(t, id)

			moved, err := e.TimeBlocks.Reschedule(ctx, id, date("2025-03-31"))
			require.NoError(t, err)
			assert.Equal(t, tt.wantStart, moved.StartAt)
			assert.Equal(t, tt.wantStart.Add(2*time.Hour), moved.EndAt)
		})
	}
}
