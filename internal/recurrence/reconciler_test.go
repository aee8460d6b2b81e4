package recurrence_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/daybook/daybook/internal/domain"
)

func TestReconcile_MaterializesMatchingOccurrence(t *testing.T) {
	h := newHarness(t)
	rec := h.addRule(t, domain.KindTask, "FREQ=DAILY", "2025-01-01")

	ids := h.reconcile(t, "2025-01-05")
	require.Len(t, ids, 1)

	task := h.task(t, ids[0])
	assert.Equal(t, "Water plants Sunday", task.Title)
	assert.Equal(t, domain.StatusPlanned, task.Status)
	require.NotNil(t, task.RecurrenceID)
	assert.Equal(t, rec.ID, *task.RecurrenceID)
	assert.Equal(t, "2025-01-05", task.OccurrenceDate.String())
	require.Len(t, task.Checklist, 1)
	assert.NotEqual(t, "chk-src", task.Checklist[0].ID)
	assert.False(t, task.Checklist[0].Done)

	ctx := context.Background()
	link, err := h.store.Links().Get(ctx, rec.ID, domain.MustParseDate("2025-01-05"))
	require.NoError(t, err)
	assert.Equal(t, ids[0], link.InstanceID)
	assert.Equal(t, domain.KindTask, link.InstanceKind)

	scheduled, err := h.store.Schedules().Exists(ctx, ids[0], domain.MustParseDate("2025-01-05"))
	require.NoError(t, err)
	assert.True(t, scheduled)

	assert.Equal(t, []string{domain.EventInstanceMaterialized}, h.out.Types())
}

func TestReconcile_Idempotent(t *testing.T) {
	h := newHarness(t)
	rec := h.addRule(t, domain.KindTask, "FREQ=DAILY", "2025-01-01")

	first := h.reconcile(t, "2025-01-05")
	second := h.reconcile(t, "2025-01-05")

	assert.Equal(t, first, second)
	assert.Equal(t, []string{"2025-01-05"}, h.linkDates(t, rec.ID))
	assert.Len(t, h.out.Events(), 1)
}

func TestReconcile_NonMatchingDate(t *testing.T) {
	h := newHarness(t)
	rec := h.addRule(t, domain.KindTask, "FREQ=WEEKLY;BYDAY=MO", "2025-01-06")

	assert.Empty(t, h.reconcile(t, "2025-01-07"))
	assert.Empty(t, h.linkDates(t, rec.ID))

	assert.Len(t, h.reconcile(t, "2025-01-13"), 1)
}

func TestReconcile_OutsideWindow(t *testing.T) {
	end := domain.MustParseDate("2025-01-10")

	tests := []struct {
		name   string
		date   string
		mutate func(*domain.Recurrence)
	}{
		{"before start", "2024-12-31", func(*domain.Recurrence) {}},
		{"after end", "2025-01-11", func(r *domain.Recurrence) { r.EndDate = &end }},
		{"inactive", "2025-01-05", func(r *domain.Recurrence) { r.Active = false }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.addRule(t, domain.KindTask, "FREQ=DAILY", "2025-01-01", tt.mutate)
			assert.Empty(t, h.reconcile(t, tt.date))
		})
	}
}

func TestReconcile_EndDateInclusive(t *testing.T) {
	h := newHarness(t)
	end := domain.MustParseDate("2025-01-10")
	h.addRule(t, domain.KindTask, "FREQ=DAILY", "2025-01-01", func(r *domain.Recurrence) { r.EndDate = &end })

	assert.Len(t, h.reconcile(t, "2025-01-10"), 1)
}

func TestReconcile_DetachedInstanceNotRecreated(t *testing.T) {
	date := domain.MustParseDate("2025-01-05")

	tests := []struct {
		name   string
		detach func(t *testing.T, h *harness, id string)
	}{
		{"deleted", func(t *testing.T, h *harness, id string) {
			h.updateTask(t, id, func(task *domain.Task) {
				now := h.clock.Now()
				task.DeletedAt = &now
			})
		}},
		{"archived", func(t *testing.T, h *harness, id string) {
			h.updateTask(t, id, func(task *domain.Task) {
				now := h.clock.Now()
				task.ArchivedAt = &now
			})
		}},
		{"rescheduled", func(t *testing.T, h *harness, id string) {
			ctx := context.Background()
			require.NoError(t, h.store.Schedules().Delete(ctx, id, date))
			require.NoError(t, h.store.Schedules().Create(ctx, domain.Schedule{
				InstanceID: id, Kind: domain.KindTask, Date: date.AddDays(2),
			}))
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			rec := h.addRule(t, domain.KindTask, "FREQ=DAILY", "2025-01-01")
			ids := h.reconcile(t, date.String())
			require.Len(t, ids, 1)

			tt.detach(t, h, ids[0])

			assert.Empty(t, h.reconcile(t, date.String()))
			assert.Empty(t, h.reconcile(t, date.String()))
			assert.Equal(t, []string{date.String()}, h.linkDates(t, rec.ID))
		})
	}
}

func TestReconcile_CompletedInstanceStillReturned(t *testing.T) {
	h := newHarness(t)
	h.addRule(t, domain.KindTask, "FREQ=DAILY", "2025-01-01")
	ids := h.reconcile(t, "2025-01-05")
	require.Len(t, ids, 1)

	h.updateTask(t, ids[0], func(task *domain.Task) { task.Status = domain.StatusCompleted })

	assert.Equal(t, ids, h.reconcile(t, "2025-01-05"))
}

func TestReconcile_SkipPast(t *testing.T) {
	h := newHarness(t)
	h.clock.Set(time.Date(2025, 1, 10, 12, 0, 0, 0, time.UTC))
	skip := h.addRule(t, domain.KindTask, "FREQ=DAILY", "2025-01-01", func(r *domain.Recurrence) {
		r.ExpiryBehavior = domain.ExpirySkipPast
	})
	keep := h.addRule(t, domain.KindTask, "FREQ=DAILY", "2025-01-01")

	assert.Len(t, h.reconcile(t, "2025-01-05"), 1)
	assert.Empty(t, h.linkDates(t, skip.ID))
	assert.Equal(t, []string{"2025-01-05"}, h.linkDates(t, keep.ID))

	assert.Len(t, h.reconcile(t, "2025-01-10"), 2, "today is not in the past")
}

func TestReconcile_SkipPastUsesRuleTimezone(t *testing.T) {
	h := newHarness(t)
	// 03:00 UTC on the 10th is still the 9th in New York.
	h.clock.Set(time.Date(2025, 1, 10, 3, 0, 0, 0, time.UTC))
	h.addRule(t, domain.KindTask, "FREQ=DAILY", "2025-01-01", func(r *domain.Recurrence) {
		r.ExpiryBehavior = domain.ExpirySkipPast
		r.Timezone = "America/New_York"
	})

	assert.Len(t, h.reconcile(t, "2025-01-09"), 1)
	assert.Empty(t, h.reconcile(t, "2025-01-08"))
}

func TestReconcile_SkipPastKeepsExistingLinks(t *testing.T) {
	h := newHarness(t)
	h.addRule(t, domain.KindTask, "FREQ=DAILY", "2025-01-01", func(r *domain.Recurrence) {
		r.ExpiryBehavior = domain.ExpirySkipPast
	})
	ids := h.reconcile(t, "2025-01-05")
	require.Len(t, ids, 1)

	h.clock.Set(time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, ids, h.reconcile(t, "2025-01-05"))
}

func TestReconcile_FailingRuleIsIsolated(t *testing.T) {
	h := newHarness(t)
	h.addRule(t, domain.KindTask, "FREQ=SOMETIMES", "2025-01-01")
	good := h.addRule(t, domain.KindTask, "FREQ=DAILY", "2025-01-01")

	ids := h.reconcile(t, "2025-01-05")
	require.Len(t, ids, 1)
	assert.Equal(t, []string{"2025-01-05"}, h.linkDates(t, good.ID))
}

func TestReconcile_TimeBlocks(t *testing.T) {
	t.Run("fixed resolves in rule timezone", func(t *testing.T) {
		h := newHarness(t)
		h.addRule(t, domain.KindTimeBlock, "FREQ=DAILY", "2025-01-01", func(r *domain.Recurrence) {
			r.TimeType = domain.TimeTypeFixed
			r.Timezone = "America/New_York"
		})
		ids := h.reconcile(t, "2025-01-05")
		require.Len(t, ids, 1)

		block, err := h.store.TimeBlocks().Get(context.Background(), ids[0])
		require.NoError(t, err)
		assert.False(t, block.Floating)
		assert.Equal(t, time.Date(2025, 1, 5, 14, 0, 0, 0, time.UTC), block.StartAt)
		assert.Equal(t, time.Date(2025, 1, 5, 15, 0, 0, 0, time.UTC), block.EndAt)
	})

	t.Run("floating keeps wall clock", func(t *testing.T) {
		h := newHarness(t)
		h.addRule(t, domain.KindTimeBlock, "FREQ=DAILY", "2025-01-01")
		ids := h.reconcile(t, "2025-01-05")
		require.Len(t, ids, 1)

		block, err := h.store.TimeBlocks().Get(context.Background(), ids[0])
		require.NoError(t, err)
		assert.True(t, block.Floating)
		assert.Equal(t, time.Date(2025, 1, 5, 9, 0, 0, 0, time.UTC), block.StartAt)
		assert.Equal(t, "Water plants Sunday", block.Title)
	})

	t.Run("deleted block is detached", func(t *testing.T) {
		h := newHarness(t)
		h.addRule(t, domain.KindTimeBlock, "FREQ=DAILY", "2025-01-01")
		ids := h.reconcile(t, "2025-01-05")
		require.Len(t, ids, 1)

		ctx := context.Background()
		block, err := h.store.TimeBlocks().Get(ctx, ids[0])
		require.NoError(t, err)
		now := h.clock.Now()
		block.DeletedAt = &now
		require.NoError(t, h.store.TimeBlocks().Update(ctx, block))

		assert.Empty(t, h.reconcile(t, "2025-01-05"))
	})
}

func TestReconcile_ConcurrentCallsCreateOneInstance(t *testing.T) {
	h := newHarness(t)
	rec := h.addRule(t, domain.KindTask, "FREQ=DAILY", "2025-01-01")
	date := domain.MustParseDate("2025-01-05")

	var (
		mu   sync.Mutex
		seen = map[string]bool{}
	)
	var g errgroup.Group
	for range 20 {
		g.Go(func() error {
			ids, err := h.rec.Reconcile(context.Background(), date)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			for _, id := range ids {
				seen[id] = true
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	assert.Len(t, seen, 1)
	assert.Equal(t, []string{"2025-01-05"}, h.linkDates(t, rec.ID))
	assert.Len(t, h.out.Events(), 1)
}

func TestReconcile_CanceledContext(t *testing.T) {
	h := newHarness(t)
	h.addRule(t, domain.KindTask, "FREQ=DAILY", "2025-01-01")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := h.rec.Reconcile(ctx, domain.MustParseDate("2025-01-05"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestReconcileRange(t *testing.T) {
	h := newHarness(t)
	h.addRule(t, domain.KindTask, "FREQ=WEEKLY;BYDAY=MO,WE", "2025-01-01")
	ctx := context.Background()

	got, err := h.rec.ReconcileRange(ctx, domain.MustParseDate("2025-01-01"), domain.MustParseDate("2025-01-14"))
	require.NoError(t, err)
	var dates []string
	for d := range got {
		dates = append(dates, d.String())
	}
	assert.ElementsMatch(t, []string{"2025-01-01", "2025-01-06", "2025-01-08", "2025-01-13"}, dates)

	_, err = h.rec.ReconcileRange(ctx, domain.MustParseDate("2025-01-10"), domain.MustParseDate("2025-01-01"))
	assert.True(t, domain.IsCode(err, domain.ErrCodeValidationFailed))

	_, err = h.rec.ReconcileRange(ctx, domain.MustParseDate("2025-01-01"), domain.MustParseDate("2026-01-02"))
	assert.True(t, domain.IsCode(err, domain.ErrCodeValidationFailed))
}
