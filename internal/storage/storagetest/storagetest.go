// Package storagetest holds behaviour tests shared by every storage.Store
// implementation.
package storagetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daybook/daybook/internal/domain"
	"github.com/daybook/daybook/internal/storage"
)

// Factory returns a fresh, empty store.
type Factory func(t *testing.T) storage.Store

var base = time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)

func date(s string) domain.Date { return domain.MustParseDate(s) }

// Run exercises the repository contracts against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Run("Templates", func(t *testing.T) { testTemplates(t, newStore(t)) })
	t.Run("Recurrences", func(t *testing.T) { testRecurrences(t, newStore(t)) })
	t.Run("Links", func(t *testing.T) { testLinks(t, newStore(t)) })
	t.Run("Tasks", func(t *testing.T) { testTasks(t, newStore(t)) })
	t.Run("TimeBlocks", func(t *testing.T) { testTimeBlocks(t, newStore(t)) })
	t.Run("Schedules", func(t *testing.T) { testSchedules(t, newStore(t)) })
	t.Run("Outbox", func(t *testing.T) { testOutbox(t, newStore(t)) })
	t.Run("TxRollback", func(t *testing.T) { testRollback(t, newStore(t)) })
}

func seedRecurrence(t *testing.T, s storage.Store, id string) {
	t.Helper()
	ctx := context.Background()
	tpl := &domain.Template{ID: "tpl-" + id, Kind: domain.KindTask, Title: "Water plants", CreatedAt: base, UpdatedAt: base}
	require.NoError(t, s.Templates().Create(ctx, tpl))
	rec := &domain.Recurrence{
		ID: id, TemplateID: tpl.ID, Kind: domain.KindTask, Rule: "FREQ=DAILY",
		TimeType: domain.TimeTypeFloating, StartDate: date("2025-01-01"), Timezone: "UTC",
		ExpiryBehavior: domain.ExpiryKeep, Active: true, CreatedAt: base, UpdatedAt: base,
	}
	require.NoError(t, s.Recurrences().Create(ctx, rec))
}

func testTemplates(t *testing.T, s storage.Store) {
	ctx := context.Background()
	desc := "for {{date}}"
	est := 15
	tpl := &domain.Template{
		ID: "tpl-1", Kind: domain.KindTask, Title: "Review", Description: &desc, Priority: 2,
		EstimateMinutes: &est, Checklist: []domain.ChecklistItem{{ID: "chk-1", Title: "Inbox"}},
		CreatedAt: base, UpdatedAt: base,
	}
	require.NoError(t, s.Templates().Create(ctx, tpl))

	err := s.Templates().Create(ctx, tpl)
	assert.True(t, errors.Is(err, storage.ErrConflict), "duplicate create: %v", err)

	got, err := s.Templates().Get(ctx, "tpl-1")
	require.NoError(t, err)
	assert.Equal(t, "Review", got.Title)
	require.NotNil(t, got.Description)
	assert.Equal(t, desc, *got.Description)
	assert.Equal(t, 15, *got.EstimateMinutes)
	assert.Equal(t, tpl.Checklist, got.Checklist)
	assert.True(t, base.Equal(got.CreatedAt))

	got.Title = "Weekly review"
	got.Checklist = append(got.Checklist, domain.ChecklistItem{ID: "chk-2", Title: "Calendar"})
	got.UpdatedAt = base.Add(time.Hour)
	require.NoError(t, s.Templates().Update(ctx, got))

	again, err := s.Templates().Get(ctx, "tpl-1")
	require.NoError(t, err)
	assert.Equal(t, "Weekly review", again.Title)
	assert.Len(t, again.Checklist, 2)

	_, err = s.Templates().Get(ctx, "tpl-missing")
	assert.True(t, errors.Is(err, storage.ErrNotFound))
	err = s.Templates().Update(ctx, &domain.Template{ID: "tpl-missing", UpdatedAt: base})
	assert.True(t, errors.Is(err, storage.ErrNotFound))

	require.NoError(t, s.Templates().Create(ctx, &domain.Template{ID: "tpl-0", Kind: domain.KindTask, Title: "Earlier", CreatedAt: base.Add(-time.Hour), UpdatedAt: base}))
	list, err := s.Templates().List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "tpl-0", list[0].ID)
}

func testRecurrences(t *testing.T, s storage.Store) {
	ctx := context.Background()
	seedRecurrence(t, s, "rec-1")

	got, err := s.Recurrences().Get(ctx, "rec-1")
	require.NoError(t, err)
	assert.Equal(t, date("2025-01-01"), got.StartDate)
	assert.Nil(t, got.EndDate)
	assert.True(t, got.Active)

	end := date("2025-01-10")
	got.EndDate = &end
	got.Rule = "FREQ=DAILY;UNTIL=20250110"
	got.StartDate = date("2024-06-01")
	got.UpdatedAt = base.Add(time.Minute)
	require.NoError(t, s.Recurrences().Update(ctx, got))

	again, err := s.Recurrences().Get(ctx, "rec-1")
	require.NoError(t, err)
	require.NotNil(t, again.EndDate)
	assert.Equal(t, end, *again.EndDate)
	assert.Equal(t, date("2025-01-01"), again.StartDate, "start date is never rewritten")

	for _, tc := range []struct {
		on   string
		want int
	}{
		{"2024-12-31", 0},
		{"2025-01-01", 1},
		{"2025-01-10", 1},
		{"2025-01-11", 0},
	} {
		recs, err := s.Recurrences().ListEffectiveOn(ctx, date(tc.on))
		require.NoError(t, err)
		assert.Len(t, recs, tc.want, "effective on %s", tc.on)
	}

	again.Active = false
	require.NoError(t, s.Recurrences().Update(ctx, again))
	recs, err := s.Recurrences().ListEffectiveOn(ctx, date("2025-01-05"))
	require.NoError(t, err)
	assert.Empty(t, recs)

	all, err := s.Recurrences().List(ctx, storage.RecurrenceListOptions{})
	require.NoError(t, err)
	assert.Len(t, all, 1)
	active, err := s.Recurrences().List(ctx, storage.RecurrenceListOptions{ActiveOnly: true})
	require.NoError(t, err)
	assert.Empty(t, active)
}

func testLinks(t *testing.T, s storage.Store) {
	ctx := context.Background()
	seedRecurrence(t, s, "rec-1")
	links := s.Links()

	link := &domain.Link{RecurrenceID: "rec-1", OccurrenceDate: date("2025-01-05"), InstanceID: "tsk-1", InstanceKind: domain.KindTask, CreatedAt: base}
	inserted, err := links.InsertIfAbsent(ctx, link)
	require.NoError(t, err)
	assert.True(t, inserted)

	dup := *link
	dup.InstanceID = "tsk-2"
	inserted, err = links.InsertIfAbsent(ctx, &dup)
	require.NoError(t, err)
	assert.False(t, inserted, "second insert for the same key is a no-op")

	got, err := links.Get(ctx, "rec-1", date("2025-01-05"))
	require.NoError(t, err)
	assert.Equal(t, "tsk-1", got.InstanceID)

	reused := &domain.Link{RecurrenceID: "rec-1", OccurrenceDate: date("2025-01-06"), InstanceID: "tsk-1", InstanceKind: domain.KindTask, CreatedAt: base}
	_, err = links.InsertIfAbsent(ctx, reused)
	assert.True(t, errors.Is(err, storage.ErrConflict), "an instance may only be linked once: %v", err)

	for i, d := range []string{"2025-01-06", "2025-01-07", "2025-01-08"} {
		_, err := links.InsertIfAbsent(ctx, &domain.Link{RecurrenceID: "rec-1", OccurrenceDate: date(d), InstanceID: "tsk-x" + string(rune('a'+i)), InstanceKind: domain.KindTask, CreatedAt: base})
		require.NoError(t, err)
	}

	byInstance, err := links.GetByInstance(ctx, "tsk-xb")
	require.NoError(t, err)
	assert.Equal(t, date("2025-01-07"), byInstance.OccurrenceDate)

	from := date("2025-01-06")
	list, err := links.ListForRecurrence(ctx, "rec-1", &from)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, date("2025-01-06"), list[0].OccurrenceDate)
	assert.Equal(t, date("2025-01-08"), list[2].OccurrenceDate)

	n, err := links.DeleteFrom(ctx, "rec-1", date("2025-01-07"))
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	require.NoError(t, links.DeleteByInstance(ctx, "tsk-1"))
	require.NoError(t, links.DeleteByInstance(ctx, "tsk-unknown"))
	_, err = links.Get(ctx, "rec-1", date("2025-01-05"))
	assert.True(t, errors.Is(err, storage.ErrNotFound))

	rest, err := links.ListForRecurrence(ctx, "rec-1", nil)
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Equal(t, "tsk-xa", rest[0].InstanceID)
}

func testTasks(t *testing.T, s storage.Store) {
	ctx := context.Background()
	recID := "rec-1"
	occ := date("2025-01-05")
	task := &domain.Task{
		ID: "tsk-1", Title: "Water plants", Priority: 1, Status: domain.StatusPlanned,
		Checklist:    []domain.ChecklistItem{{ID: "chk-1", Title: "Balcony"}},
		RecurrenceID: &recID, OccurrenceDate: &occ, CreatedAt: base, UpdatedAt: base,
	}
	require.NoError(t, s.Tasks().Create(ctx, task))
	assert.True(t, errors.Is(s.Tasks().Create(ctx, task), storage.ErrConflict))

	got, err := s.Tasks().Get(ctx, "tsk-1")
	require.NoError(t, err)
	require.NotNil(t, got.OccurrenceDate)
	assert.Equal(t, occ, *got.OccurrenceDate)
	assert.Equal(t, recID, *got.RecurrenceID)
	assert.False(t, got.IsCompleted())

	done := base.Add(2 * time.Hour)
	got.Status = domain.StatusCompleted
	got.CompletedAt = &done
	got.Checklist[0].Done = true
	got.UpdatedAt = done
	require.NoError(t, s.Tasks().Update(ctx, got))

	again, err := s.Tasks().Get(ctx, "tsk-1")
	require.NoError(t, err)
	assert.True(t, again.IsCompleted())
	assert.True(t, done.Equal(*again.CompletedAt))
	assert.True(t, again.Checklist[0].Done)

	found, err := s.Tasks().HasDeletedOccurrence(ctx, recID, occ)
	require.NoError(t, err)
	assert.False(t, found, "live tasks do not count")

	deleted := done.Add(time.Hour)
	again.DeletedAt = &deleted
	require.NoError(t, s.Tasks().Update(ctx, again))
	soft, err := s.Tasks().Get(ctx, "tsk-1")
	require.NoError(t, err, "soft-deleted tasks are still readable")
	assert.True(t, soft.IsDeleted())

	found, err = s.Tasks().HasDeletedOccurrence(ctx, recID, occ)
	require.NoError(t, err)
	assert.True(t, found)
	found, err = s.Tasks().HasDeletedOccurrence(ctx, recID, occ.AddDays(1))
	require.NoError(t, err)
	assert.False(t, found)

	_, err = s.Tasks().Get(ctx, "tsk-missing")
	assert.True(t, errors.Is(err, storage.ErrNotFound))
}

func testTimeBlocks(t *testing.T, s storage.Store) {
	ctx := context.Background()
	b := &domain.TimeBlock{
		ID: "blk-1", Title: "Focus", StartAt: base, EndAt: base.Add(90 * time.Minute), Floating: true,
		Status: domain.StatusPlanned, CreatedAt: base, UpdatedAt: base,
	}
	require.NoError(t, s.TimeBlocks().Create(ctx, b))

	got, err := s.TimeBlocks().Get(ctx, "blk-1")
	require.NoError(t, err)
	assert.True(t, got.Floating)
	assert.True(t, base.Equal(got.StartAt))
	assert.Equal(t, 90*time.Minute, got.EndAt.Sub(got.StartAt))

	got.StartAt = got.StartAt.Add(time.Hour)
	got.EndAt = got.EndAt.Add(time.Hour)
	require.NoError(t, s.TimeBlocks().Update(ctx, got))
	again, err := s.TimeBlocks().Get(ctx, "blk-1")
	require.NoError(t, err)
	assert.True(t, base.Add(time.Hour).Equal(again.StartAt))

	recID, occ := "rec-1", date("2025-01-05")
	found, err := s.TimeBlocks().HasDeletedOccurrence(ctx, recID, occ)
	require.NoError(t, err)
	assert.False(t, found)

	deleted := base.Add(3 * time.Hour)
	again.RecurrenceID, again.OccurrenceDate, again.DeletedAt = &recID, &occ, &deleted
	require.NoError(t, s.TimeBlocks().Update(ctx, again))
	found, err = s.TimeBlocks().HasDeletedOccurrence(ctx, recID, occ)
	require.NoError(t, err)
	assert.True(t, found)
	found, err = s.TimeBlocks().HasDeletedOccurrence(ctx, "rec-2", occ)
	require.NoError(t, err)
	assert.False(t, found)

	assert.True(t, errors.Is(s.TimeBlocks().Update(ctx, &domain.TimeBlock{ID: "blk-missing"}), storage.ErrNotFound))
}

func testSchedules(t *testing.T, s storage.Store) {
	ctx := context.Background()
	sched := s.Schedules()
	require.NoError(t, sched.Create(ctx, domain.Schedule{InstanceID: "tsk-1", Kind: domain.KindTask, Date: date("2025-01-05")}))
	require.NoError(t, sched.Create(ctx, domain.Schedule{InstanceID: "tsk-1", Kind: domain.KindTask, Date: date("2025-01-07")}))
	require.NoError(t, sched.Create(ctx, domain.Schedule{InstanceID: "blk-1", Kind: domain.KindTimeBlock, Date: date("2025-01-06")}))

	err := sched.Create(ctx, domain.Schedule{InstanceID: "tsk-1", Kind: domain.KindTask, Date: date("2025-01-05")})
	assert.True(t, errors.Is(err, storage.ErrConflict))

	ok, err := sched.Exists(ctx, "tsk-1", date("2025-01-05"))
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = sched.Exists(ctx, "tsk-1", date("2025-01-06"))
	require.NoError(t, err)
	assert.False(t, ok)

	rng, err := sched.ListRange(ctx, date("2025-01-05"), date("2025-01-06"))
	require.NoError(t, err)
	require.Len(t, rng, 2)
	assert.Equal(t, "tsk-1", rng[0].InstanceID)
	assert.Equal(t, domain.KindTimeBlock, rng[1].Kind)

	require.NoError(t, sched.Delete(ctx, "tsk-1", date("2025-01-05")))
	mine, err := sched.ListForInstance(ctx, "tsk-1")
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, date("2025-01-07"), mine[0].Date)

	require.NoError(t, sched.DeleteForInstance(ctx, "tsk-1"))
	mine, err = sched.ListForInstance(ctx, "tsk-1")
	require.NoError(t, err)
	assert.Empty(t, mine)
}

func testOutbox(t *testing.T, s storage.Store) {
	ctx := context.Background()
	for i, typ := range []string{domain.EventRecurrenceCreated, domain.EventInstanceMaterialized, domain.EventInstanceRetracted} {
		e := &domain.OutboxEvent{Type: typ, EntityID: "rec-1", Payload: []byte(`{"n":1}`), CreatedAt: base.Add(time.Duration(i) * time.Second)}
		require.NoError(t, s.Outbox().Append(ctx, e))
		assert.NotZero(t, e.ID)
	}

	all, err := s.Outbox().ListAfter(ctx, 0, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.JSONEq(t, `{"n":1}`, string(all[0].Payload))

	tail, err := s.Outbox().ListAfter(ctx, all[0].ID, 1)
	require.NoError(t, err)
	require.Len(t, tail, 1)
	assert.Equal(t, domain.EventInstanceMaterialized, tail[0].Type)
}

func testRollback(t *testing.T, s storage.Store) {
	ctx := context.Background()
	seedRecurrence(t, s, "rec-1")
	boom := errors.New("boom")

	err := s.WithTx(ctx, func(tx storage.TxStore) error {
		task := &domain.Task{ID: "tsk-1", Title: "x", Status: domain.StatusPlanned, CreatedAt: base, UpdatedAt: base}
		if err := tx.Tasks().Create(ctx, task); err != nil {
			return err
		}
		if err := tx.Schedules().Create(ctx, domain.Schedule{InstanceID: "tsk-1", Kind: domain.KindTask, Date: date("2025-01-05")}); err != nil {
			return err
		}
		if _, err := tx.Links().InsertIfAbsent(ctx, &domain.Link{RecurrenceID: "rec-1", OccurrenceDate: date("2025-01-05"), InstanceID: "tsk-1", InstanceKind: domain.KindTask, CreatedAt: base}); err != nil {
			return err
		}
		return boom
	})
	assert.True(t, errors.Is(err, boom))

	_, err = s.Tasks().Get(ctx, "tsk-1")
	assert.True(t, errors.Is(err, storage.ErrNotFound))
	_, err = s.Links().Get(ctx, "rec-1", date("2025-01-05"))
	assert.True(t, errors.Is(err, storage.ErrNotFound))
	ok, err := s.Schedules().Exists(ctx, "tsk-1", date("2025-01-05"))
	require.NoError(t, err)
	assert.False(t, ok)

	err = s.WithTx(ctx, func(tx storage.TxStore) error {
		return tx.Tasks().Create(ctx, &domain.Task{ID: "tsk-2", Title: "y", Status: domain.StatusPlanned, CreatedAt: base, UpdatedAt: base})
	})
	require.NoError(t, err)
	_, err = s.Tasks().Get(ctx, "tsk-2")
	assert.NoError(t, err)
}
