package recurrence_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daybook/daybook/internal/domain"
	"github.com/daybook/daybook/internal/recurrence"
	"github.com/daybook/daybook/internal/storage"
)

var deleteFuture = recurrence.PropagateOptions{DeleteFuture: true}

func TestPropagate_TruncationPreservesHistory(t *testing.T) {
	h := newHarness(t)
	rec := h.addRule(t, domain.KindTask, "FREQ=DAILY", "2025-01-01")
	ids := h.reconcileEach(t, "2025-01-01", "2025-01-05")
	require.Len(t, ids, 5)

	h.updateTask(t, ids["2025-01-02"], func(task *domain.Task) { task.Status = domain.StatusCompleted })
	h.updateTask(t, ids["2025-01-05"], func(task *domain.Task) { task.Status = domain.StatusCompleted })

	end := domain.MustParseDate("2025-01-03")
	res := h.edit(t, rec, deleteFuture, func(r *domain.Recurrence) { r.EndDate = &end })

	assert.Equal(t, []string{ids["2025-01-04"]}, res.Retracted)
	assert.True(t, h.task(t, ids["2025-01-04"]).IsDeleted())
	assert.False(t, h.task(t, ids["2025-01-05"]).IsDeleted())
	for _, d := range []string{"2025-01-01", "2025-01-02", "2025-01-03"} {
		assert.False(t, h.task(t, ids[d]).IsDeleted(), d)
	}
	assert.Equal(t, []string{"2025-01-01", "2025-01-02", "2025-01-03", "2025-01-05"}, h.linkDates(t, rec.ID))

	again := h.edit(t, rec, deleteFuture, func(r *domain.Recurrence) {})
	assert.Empty(t, again.Retracted)
}

func TestPropagate_RuleChange(t *testing.T) {
	h := newHarness(t)
	rec := h.addRule(t, domain.KindTask, "FREQ=DAILY", "2025-01-06")
	ids := h.reconcileEach(t, "2025-01-06", "2025-01-12")
	require.Len(t, ids, 7)

	res := h.edit(t, rec, deleteFuture, func(r *domain.Recurrence) { r.Rule = "FREQ=WEEKLY;BYDAY=MO" })

	assert.Len(t, res.Retracted, 6)
	assert.NotContains(t, res.Retracted, ids["2025-01-06"])
	assert.Equal(t, []string{"2025-01-06"}, h.linkDates(t, rec.ID))

	assert.Empty(t, h.reconcile(t, "2025-01-07"))
	assert.Len(t, h.reconcile(t, "2025-01-13"), 1)
}

func TestPropagate_RetractedOccurrenceStaysRetracted(t *testing.T) {
	h := newHarness(t)
	rec := h.addRule(t, domain.KindTask, "FREQ=DAILY", "2025-01-01")
	ids := h.reconcileEach(t, "2025-01-01", "2025-01-05")
	require.Len(t, ids, 5)

	end := domain.MustParseDate("2025-01-03")
	res := h.edit(t, rec, deleteFuture, func(r *domain.Recurrence) { r.EndDate = &end })
	require.Equal(t, []string{ids["2025-01-04"], ids["2025-01-05"]}, res.Retracted)

	h.edit(t, rec, deleteFuture, func(r *domain.Recurrence) { r.EndDate = nil })

	assert.Empty(t, h.reconcile(t, "2025-01-05"))
	assert.Empty(t, h.reconcile(t, "2025-01-04"))
	assert.Len(t, h.reconcile(t, "2025-01-06"), 1)

	original := h.task(t, ids["2025-01-05"])
	assert.True(t, original.IsDeleted())
	require.NotNil(t, original.RecurrenceID)
	assert.Equal(t, rec.ID, *original.RecurrenceID)
	assert.Equal(t, []string{"2025-01-01", "2025-01-02", "2025-01-03", "2025-01-06"}, h.linkDates(t, rec.ID))
}

func TestPropagate_RuleChangedBackDoesNotRecreate(t *testing.T) {
	h := newHarness(t)
	rec := h.addRule(t, domain.KindTimeBlock, "FREQ=DAILY", "2025-01-06")
	ids := h.reconcileEach(t, "2025-01-06", "2025-01-07")
	require.Len(t, ids, 2)

	res := h.edit(t, rec, deleteFuture, func(r *domain.Recurrence) { r.Rule = "FREQ=WEEKLY;BYDAY=MO" })
	require.Equal(t, []string{ids["2025-01-07"]}, res.Retracted)
	h.edit(t, rec, deleteFuture, func(r *domain.Recurrence) { r.Rule = "FREQ=DAILY" })

	assert.Empty(t, h.reconcile(t, "2025-01-07"))
	assert.Equal(t, []string{"2025-01-06"}, h.linkDates(t, rec.ID))
}

func TestPropagate_RetractsArchivedKeepsCompleted(t *testing.T) {
	h := newHarness(t)
	rec := h.addRule(t, domain.KindTask, "FREQ=DAILY", "2025-01-01")
	ids := h.reconcileEach(t, "2025-01-01", "2025-01-04")

	archived := h.clock.Now()
	h.updateTask(t, ids["2025-01-03"], func(task *domain.Task) { task.ArchivedAt = &archived })
	h.updateTask(t, ids["2025-01-04"], func(task *domain.Task) { task.Status = domain.StatusCompleted })

	end := domain.MustParseDate("2025-01-01")
	res := h.edit(t, rec, deleteFuture, func(r *domain.Recurrence) { r.EndDate = &end })

	assert.Equal(t, []string{ids["2025-01-02"], ids["2025-01-03"]}, res.Retracted)
	assert.True(t, h.task(t, ids["2025-01-03"]).IsDeleted())
	assert.False(t, h.task(t, ids["2025-01-04"]).IsDeleted())
	assert.Equal(t, []string{"2025-01-01", "2025-01-04"}, h.linkDates(t, rec.ID))
}

func TestPropagate_RuleChangeRetractsArchived(t *testing.T) {
	h := newHarness(t)
	rec := h.addRule(t, domain.KindTask, "FREQ=DAILY", "2025-01-06")
	ids := h.reconcileEach(t, "2025-01-06", "2025-01-07")

	archived := h.clock.Now()
	h.updateTask(t, ids["2025-01-07"], func(task *domain.Task) { task.ArchivedAt = &archived })

	res := h.edit(t, rec, deleteFuture, func(r *domain.Recurrence) { r.Rule = "FREQ=WEEKLY;BYDAY=MO" })

	assert.Equal(t, []string{ids["2025-01-07"]}, res.Retracted)
	assert.Equal(t, []string{"2025-01-06"}, h.linkDates(t, rec.ID))
}

func TestPropagate_KeepsUserDeleted(t *testing.T) {
	h := newHarness(t)
	rec := h.addRule(t, domain.KindTask, "FREQ=DAILY", "2025-01-01")
	ids := h.reconcileEach(t, "2025-01-01", "2025-01-03")

	deleted := h.clock.Now()
	h.updateTask(t, ids["2025-01-03"], func(task *domain.Task) { task.DeletedAt = &deleted })

	end := domain.MustParseDate("2025-01-01")
	res := h.edit(t, rec, deleteFuture, func(r *domain.Recurrence) { r.EndDate = &end })

	assert.Equal(t, []string{ids["2025-01-02"]}, res.Retracted)
	assert.Equal(t, []string{"2025-01-01", "2025-01-03"}, h.linkDates(t, rec.ID))
}

func TestPropagate_WithoutDeleteFuture(t *testing.T) {
	h := newHarness(t)
	rec := h.addRule(t, domain.KindTask, "FREQ=DAILY", "2025-01-01")
	h.reconcileEach(t, "2025-01-01", "2025-01-05")

	end := domain.MustParseDate("2025-01-02")
	res := h.edit(t, rec, recurrence.PropagateOptions{}, func(r *domain.Recurrence) { r.EndDate = &end })

	assert.Empty(t, res.Retracted)
	assert.Len(t, h.linkDates(t, rec.ID), 5)
	assert.Empty(t, h.reconcile(t, "2025-01-06"))
}

func TestPropagate_CutoffAppliesToTimeBlocks(t *testing.T) {
	h := newHarness(t)
	rec := h.addRule(t, domain.KindTimeBlock, "FREQ=DAILY", "2025-01-01")
	ids := h.reconcileEach(t, "2025-01-01", "2025-01-03")
	require.Len(t, ids, 3)

	cutoff := time.Date(2025, 1, 2, 12, 0, 0, 0, time.UTC)
	end := domain.MustParseDate("2025-01-01")
	res := h.edit(t, rec, recurrence.PropagateOptions{DeleteFuture: true, Cutoff: &cutoff},
		func(r *domain.Recurrence) { r.EndDate = &end })

	assert.Equal(t, []string{ids["2025-01-03"]}, res.Retracted)
	assert.Equal(t, []string{"2025-01-01", "2025-01-02"}, h.linkDates(t, rec.ID))
}

func TestPropagate_CutoffIgnoredForTasks(t *testing.T) {
	h := newHarness(t)
	rec := h.addRule(t, domain.KindTask, "FREQ=DAILY", "2025-01-01")
	h.reconcileEach(t, "2025-01-01", "2025-01-03")

	cutoff := time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC)
	end := domain.MustParseDate("2025-01-01")
	res := h.edit(t, rec, recurrence.PropagateOptions{DeleteFuture: true, Cutoff: &cutoff},
		func(r *domain.Recurrence) { r.EndDate = &end })

	assert.Len(t, res.Retracted, 2)
}

func TestRetractAll(t *testing.T) {
	h := newHarness(t)
	rec := h.addRule(t, domain.KindTask, "FREQ=DAILY", "2025-01-01")
	ids := h.reconcileEach(t, "2025-01-01", "2025-01-03")
	h.updateTask(t, ids["2025-01-01"], func(task *domain.Task) { task.Status = domain.StatusCompleted })

	var res recurrence.Result
	err := h.deps.Coordinator.Write(context.Background(), func(tx storage.TxStore) error {
		var err error
		res, err = h.prop.RetractAll(context.Background(), tx, rec, nil)
		return err
	})
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{ids["2025-01-02"], ids["2025-01-03"]}, res.Retracted)
	events := res.Events(rec.ID, h.clock.Now())
	require.Len(t, events, 2)
	assert.Equal(t, domain.EventInstanceRetracted, events[0].Type)
	assert.JSONEq(t, `{"recurrence_id":"`+rec.ID+`"}`, string(events[0].Payload))
}

func TestCheck(t *testing.T) {
	h := newHarness(t)
	end := domain.MustParseDate("2025-03-01")
	before := &domain.Recurrence{
		ID:        "rec-1",
		Rule:      "FREQ=DAILY",
		StartDate: domain.MustParseDate("2025-01-01"),
	}

	tests := []struct {
		name   string
		mutate func(*domain.Recurrence)
		field  string
	}{
		{"unchanged", func(*domain.Recurrence) {}, ""},
		{"new end date", func(r *domain.Recurrence) { r.EndDate = &end }, ""},
		{"start date moved", func(r *domain.Recurrence) { r.StartDate = r.StartDate.AddDays(1) }, "start_date"},
		{"invalid rule", func(r *domain.Recurrence) { r.Rule = "FREQ=SOMETIMES" }, "rule"},
		{"until without end date", func(r *domain.Recurrence) { r.Rule = "FREQ=DAILY;UNTIL=20250301" }, "end_date"},
		{"until matches end date", func(r *domain.Recurrence) {
			r.Rule = "FREQ=DAILY;UNTIL=20250301"
			r.EndDate = &end
		}, ""},
		{"end before start", func(r *domain.Recurrence) {
			early := domain.MustParseDate("2024-12-31")
			r.EndDate = &early
		}, "end_date"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			after := before.Clone()
			tt.mutate(after)
			err := h.prop.Check(before, after)
			if tt.field == "" {
				assert.NoError(t, err)
				return
			}
			var de *domain.DomainError
			require.ErrorAs(t, err, &de)
			assert.Equal(t, domain.ErrCodeValidationFailed, de.Code)
			assert.Equal(t, tt.field, de.Context["field"])
		})
	}
}
