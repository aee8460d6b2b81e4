package recurrence

import (
	"context"
	"errors"
	"fmt"

	"github.com/daybook/daybook/internal/domain"
	"github.com/daybook/daybook/internal/storage"
)

// Validate reports whether the instance behind a link still represents its
// occurrence: it exists, is neither soft-deleted nor archived, and is still
// scheduled on date. A false result means the user took the occurrence out
// of the rule's hands.
//
// r may be the store or an open transaction.
func Validate(ctx context.Context, r storage.TxStore, kind domain.InstanceKind, instanceID string, date domain.Date) (bool, error) {
	switch kind {
	case domain.KindTask:
		task, err := r.Tasks().Get(ctx, instanceID)
		if errors.Is(err, storage.ErrNotFound) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		if task.IsDeleted() || task.IsArchived() {
			return false, nil
		}
	case domain.KindTimeBlock:
		block, err := r.TimeBlocks().Get(ctx, instanceID)
		if errors.Is(err, storage.ErrNotFound) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		if block.IsDeleted() {
			return false, nil
		}
	default:
		return false, fmt.Errorf("unknown instance kind %q", kind)
	}
	return r.Schedules().Exists(ctx, instanceID, date)
}
