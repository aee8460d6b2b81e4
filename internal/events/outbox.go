// Package events is the sink through which Daybook tells the rest of the
// system that something changed. Delivery is best effort: callers log
// publish failures and carry on.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/daybook/daybook/internal/domain"
	"github.com/daybook/daybook/internal/storage"
)

// Outbox accepts events for delivery.
type Outbox interface {
	Publish(ctx context.Context, events ...domain.OutboxEvent) error
}

// New builds an event, encoding payload as JSON. A payload that cannot be
// encoded is dropped rather than failing the caller.
func New(typ, entityID string, payload any, at time.Time) domain.OutboxEvent {
	e := domain.OutboxEvent{Type: typ, EntityID: entityID, CreatedAt: at}
	if payload != nil {
		if b, err := json.Marshal(payload); err == nil {
			e.Payload = b
		}
	}
	return e
}

// Writer runs fn in a write transaction. txn.Coordinator satisfies it.
type Writer interface {
	Write(ctx context.Context, fn func(tx storage.TxStore) error) error
}

// StoreOutbox appends events to the outbox table in their own transaction.
type StoreOutbox struct {
	w Writer
}

// NewStoreOutbox creates a StoreOutbox writing through w.
func NewStoreOutbox(w Writer) *StoreOutbox {
	return &StoreOutbox{w: w}
}

// Publish appends every event or none.
func (o *StoreOutbox) Publish(ctx context.Context, events ...domain.OutboxEvent) error {
	if len(events) == 0 {
		return nil
	}
	return o.w.Write(ctx, func(tx storage.TxStore) error {
		for i := range events {
			if err := tx.Outbox().Append(ctx, &events[i]); err != nil {
				return fmt.Errorf("append %s event: %w", events[i].Type, err)
			}
		}
		return nil
	})
}

// Discard drops every event.
type Discard struct{}

func (Discard) Publish(context.Context, ...domain.OutboxEvent) error { return nil }

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []domain.OutboxEvent
	Err    error
}

func (r *Recorder) Publish(_ context.Context, events ...domain.OutboxEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.events = append(r.events, events...)
	return nil
}

// Events returns a copy of everything recorded so far.
func (r *Recorder) Events() []domain.OutboxEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.OutboxEvent, len(r.events))
	copy(out, r.events)
	return out
}

// Types lists the recorded event types in order.
func (r *Recorder) Types() []string {
	var types []string
	for _, e := range r.Events() {
		types = append(types, e.Type)
	}
	return types
}

// PublishOrLog publishes events and logs a failure instead of returning it.
// Call it after the write transaction has committed: StoreOutbox takes the
// write permit itself.
func PublishOrLog(ctx context.Context, o Outbox, log *slog.Logger, events ...domain.OutboxEvent) {
	if o == nil || len(events) == 0 {
		return
	}
	if err := o.Publish(ctx, events...); err != nil {
		log.WarnContext(ctx, "outbox publish failed", "events", len(events), "first_type", events[0].Type, "err", err)
	}
}
