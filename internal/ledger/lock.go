package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fatimaafzal05/medi-trax/domain"
)

// LockTable serializes stock mutations per medication. Acquire waits at most
// the configured duration before giving up with ErrBusy; a caller holding
// the lock excludes both concurrent adjustments and cascade deletion for
// that medication.
type LockTable struct {
	wait time.Duration

	mu   sync.Mutex
	sems map[int64]chan struct{}
}

// NewLockTable constructs a LockTable with the given bounded wait.
func NewLockTable(wait time.Duration) *LockTable {
	return &LockTable{wait: wait, sems: make(map[int64]chan struct{})}
}

// Acquire takes the lock for the given medication id.
func (t *LockTable) Acquire(ctx context.Context, medicationID int64) error {
	t.mu.Lock()
	sem, ok := t.sems[medicationID]
	if !ok {
		sem = make(chan struct{}, 1)
		t.sems[medicationID] = sem
	}
	t.mu.Unlock()

	timer := time.NewTimer(t.wait)
	defer timer.Stop()

	select {
	case sem <- struct{}{}:
		return nil
	case <-timer.C:
		return domain.ErrBusy
	case <-ctx.Done():
		return fmt.Errorf("%w: %s", domain.ErrBusy, ctx.Err())
	}
}

// Release frees the lock for the given medication id. Releasing a lock that
// is not held is a no-op.
func (t *LockTable) Release(medicationID int64) {
	t.mu.Lock()
	sem := t.sems[medicationID]
	t.mu.Unlock()
	if sem == nil {
		return
	}
	select {
	case <-sem:
	default:
	}
}
