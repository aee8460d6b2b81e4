package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/daybook/daybook/internal/domain"
	"github.com/daybook/daybook/internal/storage"
)

type linkKey struct {
	recurrenceID string
	date         domain.Date
}

type scheduleKey struct {
	instanceID string
	date       domain.Date
}

type state struct {
	templates      map[string]*domain.Template
	recurrences    map[string]*domain.Recurrence
	links          map[linkKey]*domain.Link
	linkByInstance map[string]linkKey
	tasks          map[string]*domain.Task
	blocks         map[string]*domain.TimeBlock
	schedules      map[scheduleKey]domain.InstanceKind
	outbox         []*domain.OutboxEvent
	lastOutboxID   int64
}

func newState() *state {
	return &state{
		templates:      make(map[string]*domain.Template),
		recurrences:    make(map[string]*domain.Recurrence),
		links:          make(map[linkKey]*domain.Link),
		linkByInstance: make(map[string]linkKey),
		tasks:          make(map[string]*domain.Task),
		blocks:         make(map[string]*domain.TimeBlock),
		schedules:      make(map[scheduleKey]domain.InstanceKind),
	}
}

func byCreated[T any](items []T, created func(T) (int64, string)) {
	slices.SortFunc(items, func(a, b T) int {
		at, aid := created(a)
		bt, bid := created(b)
		if c := cmp.Compare(at, bt); c != 0 {
			return c
		}
		return cmp.Compare(aid, bid)
	})
}

// ============================================================================
// Templates
// ============================================================================

type templateRepo struct{ a access }

func (r *templateRepo) Create(ctx context.Context, tpl *domain.Template) error {
	return r.a.write(func(st *state) error {
		if _, ok := st.templates[tpl.ID]; ok {
			return fmt.Errorf("template %s: %w", tpl.ID, storage.ErrConflict)
		}
		st.templates[tpl.ID] = tpl.Clone()
		return nil
	})
}

func (r *templateRepo) Get(ctx context.Context, id string) (*domain.Template, error) {
	var out *domain.Template
	err := r.a.read(func(st *state) error {
		tpl, ok := st.templates[id]
		if !ok {
			return storage.ErrNotFound
		}
		out = tpl.Clone()
		return nil
	})
	return out, err
}

func (r *templateRepo) Update(ctx context.Context, tpl *domain.Template) error {
	return r.a.write(func(st *state) error {
		cur, ok := st.templates[tpl.ID]
		if !ok {
			return storage.ErrNotFound
		}
		next := tpl.Clone()
		next.Kind = cur.Kind
		next.CreatedAt = cur.CreatedAt
		st.templates[tpl.ID] = next
		return nil
	})
}

func (r *templateRepo) List(ctx context.Context) ([]*domain.Template, error) {
	var out []*domain.Template
	err := r.a.read(func(st *state) error {
		for _, tpl := range st.templates {
			out = append(out, tpl.Clone())
		}
		return nil
	})
	byCreated(out, func(t *domain.Template) (int64, string) { return t.CreatedAt.UnixNano(), t.ID })
	return out, err
}

// ============================================================================
// Recurrences
// ============================================================================

type recurrenceRepo struct{ a access }

func (r *recurrenceRepo) Create(ctx context.Context, rec *domain.Recurrence) error {
	return r.a.write(func(st *state) error {
		if _, ok := st.recurrences[rec.ID]; ok {
			return fmt.Errorf("recurrence %s: %w", rec.ID, storage.ErrConflict)
		}
		if _, ok := st.templates[rec.TemplateID]; !ok {
			return fmt.Errorf("recurrence %s references missing template %s", rec.ID, rec.TemplateID)
		}
		st.recurrences[rec.ID] = rec.Clone()
		return nil
	})
}

func (r *recurrenceRepo) Get(ctx context.Context, id string) (*domain.Recurrence, error) {
	var out *domain.Recurrence
	err := r.a.read(func(st *state) error {
		rec, ok := st.recurrences[id]
		if !ok {
			return storage.ErrNotFound
		}
		out = rec.Clone()
		return nil
	})
	return out, err
}

func (r *recurrenceRepo) Update(ctx context.Context, rec *domain.Recurrence) error {
	return r.a.write(func(st *state) error {
		cur, ok := st.recurrences[rec.ID]
		if !ok {
			return storage.ErrNotFound
		}
		next := rec.Clone()
		next.TemplateID = cur.TemplateID
		next.Kind = cur.Kind
		next.StartDate = cur.StartDate
		next.CreatedAt = cur.CreatedAt
		st.recurrences[rec.ID] = next
		return nil
	})
}

func (r *recurrenceRepo) List(ctx context.Context, opts storage.RecurrenceListOptions) ([]*domain.Recurrence, error) {
	return r.filter(func(rec *domain.Recurrence) bool {
		if rec.IsDeleted() || (opts.ActiveOnly && !rec.Active) {
			return false
		}
		return opts.TemplateID == nil || rec.TemplateID == *opts.TemplateID
	})
}

func (r *recurrenceRepo) ListEffectiveOn(ctx context.Context, date domain.Date) ([]*domain.Recurrence, error) {
	return r.filter(func(rec *domain.Recurrence) bool { return rec.EffectiveOn(date) })
}

func (r *recurrenceRepo) filter(keep func(*domain.Recurrence) bool) ([]*domain.Recurrence, error) {
	var out []*domain.Recurrence
	err := r.a.read(func(st *state) error {
		for _, rec := range st.recurrences {
			if keep(rec) {
				out = append(out, rec.Clone())
			}
		}
		return nil
	})
	byCreated(out, func(r *domain.Recurrence) (int64, string) { return r.CreatedAt.UnixNano(), r.ID })
	return out, err
}

// ============================================================================
// Links
// ============================================================================

type linkRepo struct{ a access }

func (r *linkRepo) InsertIfAbsent(ctx context.Context, link *domain.Link) (bool, error) {
	inserted := false
	err := r.a.write(func(st *state) error {
		key := linkKey{link.RecurrenceID, link.OccurrenceDate}
		if _, ok := st.links[key]; ok {
			return nil
		}
		if _, ok := st.linkByInstance[link.InstanceID]; ok {
			return fmt.Errorf("instance %s is already linked: %w", link.InstanceID, storage.ErrConflict)
		}
		if _, ok := st.recurrences[link.RecurrenceID]; !ok {
			return fmt.Errorf("link references missing recurrence %s", link.RecurrenceID)
		}
		l := *link
		st.links[key] = &l
		st.linkByInstance[link.InstanceID] = key
		inserted = true
		return nil
	})
	return inserted, err
}

func (r *linkRepo) Get(ctx context.Context, recurrenceID string, date domain.Date) (*domain.Link, error) {
	var out *domain.Link
	err := r.a.read(func(st *state) error {
		l, ok := st.links[linkKey{recurrenceID, date}]
		if !ok {
			return storage.ErrNotFound
		}
		c := *l
		out = &c
		return nil
	})
	return out, err
}

func (r *linkRepo) GetByInstance(ctx context.Context, instanceID string) (*domain.Link, error) {
	var out *domain.Link
	err := r.a.read(func(st *state) error {
		key, ok := st.linkByInstance[instanceID]
		if !ok {
			return storage.ErrNotFound
		}
		c := *st.links[key]
		out = &c
		return nil
	})
	return out, err
}

func (r *linkRepo) ListForRecurrence(ctx context.Context, recurrenceID string, from *domain.Date) ([]*domain.Link, error) {
	var out []*domain.Link
	err := r.a.read(func(st *state) error {
		for key, l := range st.links {
			if key.recurrenceID != recurrenceID || (from != nil && key.date.Before(*from)) {
				continue
			}
			c := *l
			out = append(out, &c)
		}
		return nil
	})
	slices.SortFunc(out, func(a, b *domain.Link) int { return a.OccurrenceDate.Compare(b.OccurrenceDate) })
	return out, err
}

func (r *linkRepo) DeleteFrom(ctx context.Context, recurrenceID string, threshold domain.Date) (int64, error) {
	var n int64
	err := r.a.write(func(st *state) error {
		for key, l := range st.links {
			if key.recurrenceID == recurrenceID && !key.date.Before(threshold) {
				delete(st.links, key)
				delete(st.linkByInstance, l.InstanceID)
				n++
			}
		}
		return nil
	})
	return n, err
}

func (r *linkRepo) DeleteByInstance(ctx context.Context, instanceID string) error {
	return r.a.write(func(st *state) error {
		if key, ok := st.linkByInstance[instanceID]; ok {
			delete(st.links, key)
			delete(st.linkByInstance, instanceID)
		}
		return nil
	})
}

// ============================================================================
// Tasks and time blocks
// ============================================================================

type taskRepo struct{ a access }

func (r *taskRepo) Create(ctx context.Context, task *domain.Task) error {
	return r.a.write(func(st *state) error {
		if _, ok := st.tasks[task.ID]; ok {
			return fmt.Errorf("task %s: %w", task.ID, storage.ErrConflict)
		}
		st.tasks[task.ID] = task.Clone()
		return nil
	})
}

func (r *taskRepo) Get(ctx context.Context, id string) (*domain.Task, error) {
	var out *domain.Task
	err := r.a.read(func(st *state) error {
		task, ok := st.tasks[id]
		if !ok {
			return storage.ErrNotFound
		}
		out = task.Clone()
		return nil
	})
	return out, err
}

func (r *taskRepo) Update(ctx context.Context, task *domain.Task) error {
	return r.a.write(func(st *state) error {
		cur, ok := st.tasks[task.ID]
		if !ok {
			return storage.ErrNotFound
		}
		next := task.Clone()
		next.CreatedAt = cur.CreatedAt
		st.tasks[task.ID] = next
		return nil
	})
}

func (r *taskRepo) HasDeletedOccurrence(ctx context.Context, recurrenceID string, date domain.Date) (bool, error) {
	var found bool
	err := r.a.read(func(st *state) error {
		for _, task := range st.tasks {
			if task.IsDeleted() && occurrenceOf(task.RecurrenceID, task.OccurrenceDate, recurrenceID, date) {
				found = true
				return nil
			}
		}
		return nil
	})
	return found, err
}

type timeBlockRepo struct{ a access }

func (r *timeBlockRepo) Create(ctx context.Context, b *domain.TimeBlock) error {
	return r.a.write(func(st *state) error {
		if _, ok := st.blocks[b.ID]; ok {
			return fmt.Errorf("time block %s: %w", b.ID, storage.ErrConflict)
		}
		st.blocks[b.ID] = b.Clone()
		return nil
	})
}

func (r *timeBlockRepo) Get(ctx context.Context, id string) (*domain.TimeBlock, error) {
	var out *domain.TimeBlock
	err := r.a.read(func(st *state) error {
		b, ok := st.blocks[id]
		if !ok {
			return storage.ErrNotFound
		}
		out = b.Clone()
		return nil
	})
	return out, err
}

func (r *timeBlockRepo) Update(ctx context.Context, b *domain.TimeBlock) error {
	return r.a.write(func(st *state) error {
		cur, ok := st.blocks[b.ID]
		if !ok {
			return storage.ErrNotFound
		}
		next := b.Clone()
		next.CreatedAt = cur.CreatedAt
		st.blocks[b.ID] = next
		return nil
	})
}

func (r *timeBlockRepo) HasDeletedOccurrence(ctx context.Context, recurrenceID string, date domain.Date) (bool, error) {
	var found bool
	err := r.a.read(func(st *state) error {
		for _, b := range st.blocks {
			if b.IsDeleted() && occurrenceOf(b.RecurrenceID, b.OccurrenceDate, recurrenceID, date) {
				found = true
				return nil
			}
		}
		return nil
	})
	return found, err
}

func occurrenceOf(recID *string, occ *domain.Date, recurrenceID string, date domain.Date) bool {
	return recID != nil && occ != nil && *recID == recurrenceID && *occ == date
}

// ============================================================================
// Schedules
// ============================================================================

type scheduleRepo struct{ a access }

func (r *scheduleRepo) Create(ctx context.Context, s domain.Schedule) error {
	return r.a.write(func(st *state) error {
		key := scheduleKey{s.InstanceID, s.Date}
		if _, ok := st.schedules[key]; ok {
			return fmt.Errorf("schedule %s on %s: %w", s.InstanceID, s.Date, storage.ErrConflict)
		}
		st.schedules[key] = s.Kind
		return nil
	})
}

func (r *scheduleRepo) Exists(ctx context.Context, instanceID string, date domain.Date) (bool, error) {
	var ok bool
	err := r.a.read(func(st *state) error {
		_, ok = st.schedules[scheduleKey{instanceID, date}]
		return nil
	})
	return ok, err
}

func (r *scheduleRepo) ListForInstance(ctx context.Context, instanceID string) ([]domain.Schedule, error) {
	return r.filter(func(k scheduleKey) bool { return k.instanceID == instanceID })
}

func (r *scheduleRepo) ListRange(ctx context.Context, from, to domain.Date) ([]domain.Schedule, error) {
	return r.filter(func(k scheduleKey) bool { return !k.date.Before(from) && !k.date.After(to) })
}

func (r *scheduleRepo) filter(keep func(scheduleKey) bool) ([]domain.Schedule, error) {
	var out []domain.Schedule
	err := r.a.read(func(st *state) error {
		for key, kind := range st.schedules {
			if keep(key) {
				out = append(out, domain.Schedule{InstanceID: key.instanceID, Kind: kind, Date: key.date})
			}
		}
		return nil
	})
	slices.SortFunc(out, func(a, b domain.Schedule) int {
		if c := a.Date.Compare(b.Date); c != 0 {
			return c
		}
		return cmp.Compare(a.InstanceID, b.InstanceID)
	})
	return out, err
}

func (r *scheduleRepo) Delete(ctx context.Context, instanceID string, date domain.Date) error {
	return r.a.write(func(st *state) error {
		delete(st.schedules, scheduleKey{instanceID, date})
		return nil
	})
}

func (r *scheduleRepo) DeleteForInstance(ctx context.Context, instanceID string) error {
	return r.a.write(func(st *state) error {
		for key := range st.schedules {
			if key.instanceID == instanceID {
				delete(st.schedules, key)
			}
		}
		return nil
	})
}

// ============================================================================
// Outbox
// ============================================================================

type outboxRepo struct{ a access }

func (r *outboxRepo) Append(ctx context.Context, event *domain.OutboxEvent) error {
	return r.a.write(func(st *state) error {
		st.lastOutboxID++
		event.ID = st.lastOutboxID
		c := *event
		c.Payload = slices.Clone(event.Payload)
		st.outbox = append(st.outbox, &c)
		return nil
	})
}

func (r *outboxRepo) ListAfter(ctx context.Context, afterID int64, limit int) ([]*domain.OutboxEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	var out []*domain.OutboxEvent
	err := r.a.read(func(st *state) error {
		for _, e := range st.outbox {
			if e.ID <= afterID {
				continue
			}
			if len(out) == limit {
				break
			}
			c := *e
			out = append(out, &c)
		}
		return nil
	})
	return out, err
}
