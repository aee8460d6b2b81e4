// Package memory provides an in-memory storage.Store. It follows the
// SQLite implementation's semantics (sentinel errors, orderings, unique keys)
// and is meant for tests and throwaway runs.
package memory

import (
	"context"
	"maps"
	"slices"
	"sync"

	"github.com/daybook/daybook/internal/storage"
)

// Store is an in-memory storage.Store.
//
// Transactions work on a copy of the state that replaces the committed state
// on success. txMu serializes transactions and standalone writes so a commit
// never discards a concurrent change.
type Store struct {
	txMu sync.Mutex
	mu   sync.RWMutex
	st   *state
	repos
}

// New returns an empty store.
func New() *Store {
	s := &Store{st: newState()}
	s.repos = newRepos(committed{s})
	return s
}

// WithTx runs fn against a private copy of the state and publishes the copy
// if fn succeeds.
func (s *Store) WithTx(ctx context.Context, fn func(storage.TxStore) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	work := s.st.clone()
	s.mu.RUnlock()

	if err := fn(newRepos(&pending{st: work})); err != nil {
		return err
	}

	s.mu.Lock()
	s.st = work
	s.mu.Unlock()
	return nil
}

// Close is a no-op.
func (s *Store) Close() error {
	return nil
}

// access abstracts over the committed state and an open transaction.
type access interface {
	read(fn func(*state) error) error
	write(fn func(*state) error) error
}

type committed struct{ s *Store }

func (c committed) read(fn func(*state) error) error {
	c.s.mu.RLock()
	defer c.s.mu.RUnlock()
	return fn(c.s.st)
}

// write runs a single-statement transaction.
func (c committed) write(fn func(*state) error) error {
	c.s.txMu.Lock()
	defer c.s.txMu.Unlock()

	c.s.mu.RLock()
	work := c.s.st.clone()
	c.s.mu.RUnlock()
	if err := fn(work); err != nil {
		return err
	}
	c.s.mu.Lock()
	c.s.st = work
	c.s.mu.Unlock()
	return nil
}

type pending struct{ st *state }

func (p *pending) read(fn func(*state) error) error { return fn(p.st) }
func (p *pending) write(fn func(*state) error) error { return fn(p.st) }

type repos struct {
	templates   *templateRepo
	recurrences *recurrenceRepo
	links       *linkRepo
	tasks       *taskRepo
	timeBlocks  *timeBlockRepo
	schedules   *scheduleRepo
	outbox      *outboxRepo
}

func newRepos(a access) repos {
	return repos{
		templates:   &templateRepo{a},
		recurrences: &recurrenceRepo{a},
		links:       &linkRepo{a},
		tasks:       &taskRepo{a},
		timeBlocks:  &timeBlockRepo{a},
		schedules:   &scheduleRepo{a},
		outbox:      &outboxRepo{a},
	}
}

func (r repos) Templates() storage.TemplateRepository { return r.templates }
func (r repos) Recurrences() storage.RecurrenceRepository { return r.recurrences }
func (r repos) Links() storage.LinkRepository { return r.links }
func (r repos) Tasks() storage.TaskRepository { return r.tasks }
func (r repos) TimeBlocks() storage.TimeBlockRepository { return r.timeBlocks }
func (r repos) Schedules() storage.ScheduleRepository { return r.schedules }
func (r repos) Outbox() storage.OutboxRepository { return r.outbox }

// clone copies the maps. Stored values are never mutated in place, so the
// copy can share them.
func (st *state) clone() *state {
	return &state{
		templates:      maps.Clone(st.templates),
		recurrences:    maps.Clone(st.recurrences),
		links:          maps.Clone(st.links),
		linkByInstance: maps.Clone(st.linkByInstance),
		tasks:          maps.Clone(st.tasks),
		blocks:         maps.Clone(st.blocks),
		schedules:      maps.Clone(st.schedules),
		outbox:         slices.Clone(st.outbox),
		lastOutboxID:   st.lastOutboxID,
	}
}
