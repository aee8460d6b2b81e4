// Package txn serializes writers against the single-writer store.
package txn

import (
	"context"
	"fmt"

	"golang.org/x/sync/semaphore"

	"github.com/daybook/daybook/internal/storage"
)

// Permit is the process-wide write permit. Create one per store in main and
// hand it to every Coordinator that writes to that store.
type Permit = semaphore.Weighted

// NewPermit returns a permit admitting one writer at a time.
func NewPermit() *Permit {
	return semaphore.NewWeighted(1)
}

// Coordinator runs mutations atomically while holding the write permit.
type Coordinator struct {
	store  storage.Store
	permit *Permit
}

// NewCoordinator creates a Coordinator. A nil permit gets a private one,
// which only serializes writers going through this Coordinator.
func NewCoordinator(store storage.Store, permit *Permit) *Coordinator {
	if permit == nil {
		permit = NewPermit()
	}
	return &Coordinator{store: store, permit: permit}
}

// Store returns the store for reads. Readers never take the permit and see
// the last committed state.
func (c *Coordinator) Store() storage.Store {
	return c.store
}

// Write acquires the permit, runs fn in a transaction and releases the permit
// after commit or rollback. Waiting for the permit honours ctx.
func (c *Coordinator) Write(ctx context.Context, fn func(tx storage.TxStore) error) error {
	if err := c.permit.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("acquire write permit: %w", err)
	}
	defer c.permit.Release(1)

	return c.store.WithTx(ctx, fn)
}
