package ledger_test

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fatimaafzal05/medi-trax/domain"
	"github.com/fatimaafzal05/medi-trax/internal/catalog"
	"github.com/fatimaafzal05/medi-trax/internal/credentials"
	"github.com/fatimaafzal05/medi-trax/internal/database"
	"github.com/fatimaafzal05/medi-trax/internal/ledger"
	"github.com/fatimaafzal05/medi-trax/internal/migrations"
)

func newTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	db := database.Connect(filepath.Join(t.TempDir(), "meditrax.db"))
	migrations.Run(db)
	t.Cleanup(func() { db.Close() })
	return db
}

func newLedger(t *testing.T) (*ledger.Ledger, *catalog.Catalog, *sqlx.DB) {
	t.Helper()
	db := newTestDB(t)
	locks := ledger.NewLockTable(2 * time.Second)
	return ledger.New(db, locks, nil), catalog.New(db, locks, nil), db
}

func registerActor(t *testing.T, db *sqlx.DB) int64 {
	t.Helper()
	user, err := credentials.New(db, nil).Register(context.Background(), credentials.RegisterInput{
		Username: "pharm1",
		Password: "pw123456",
		FullName: "Test Pharmacist",
		Role:     domain.RolePharmacist,
	})
	require.NoError(t, err)
	return user.ID
}

func addMedication(t *testing.T, c *catalog.Catalog, stock int64) domain.Medication {
	t.Helper()
	med, err := c.Add(context.Background(), catalog.AddInput{
		Name:     "Paracetamol 500mg",
		Category: "Analgesics",
		Stock:    stock,
		Price:    5.99,
	})
	require.NoError(t, err)
	return med
}

func TestAdjustBy_RecordsHistory(t *testing.T) {
	led, cat, db := newLedger(t)
	ctx := context.Background()
	med := addMedication(t, cat, 100)

	actor := registerActor(t, db)
	updated, err := led.AdjustBy(ctx, med.ID, -30, "Damaged batch", &actor)
	require.NoError(t, err)
	assert.Equal(t, int64(70), updated.Stock)

	entries, err := led.History(ctx, med.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, int64(100), entries[0].PreviousStock)
	assert.Equal(t, int64(70), entries[0].NewStock)
	assert.Equal(t, "Damaged batch", entries[0].Reason)
	require.NotNil(t, entries[0].ChangedBy)
	assert.Equal(t, actor, *entries[0].ChangedBy)
}

func TestAdjustBy_NilActorAllowed(t *testing.T) {
	led, cat, _ := newLedger(t)
	ctx := context.Background()
	med := addMedication(t, cat, 10)

	_, err := led.AdjustBy(ctx, med.ID, 5, "Restock", nil)
	require.NoError(t, err)

	entries, err := led.History(ctx, med.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Nil(t, entries[0].ChangedBy)
}

func TestAdjustBy_UnknownActorRejected(t *testing.T) {
	led, cat, _ := newLedger(t)
	ctx := context.Background()
	med := addMedication(t, cat, 100)

	actor := int64(7)
	_, err := led.AdjustBy(ctx, med.ID, -30, "Damaged batch", &actor)
	assert.ErrorIs(t, err, domain.ErrValidation)

	after, err := cat.Get(ctx, med.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(100), after.Stock)

	entries, err := led.History(ctx, med.ID)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestAdjustBy_InsufficientStockLeavesNoTrace(t *testing.T) {
	led, cat, _ := newLedger(t)
	ctx := context.Background()
	med := addMedication(t, cat, 20)

	_, err := led.AdjustBy(ctx, med.ID, -21, "Too much", nil)
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)

	after, err := cat.Get(ctx, med.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(20), after.Stock)
	assert.Equal(t, med.UpdatedAt, after.UpdatedAt)

	entries, err := led.History(ctx, med.ID)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestAdjustBy_Validation(t *testing.T) {
	led, cat, _ := newLedger(t)
	ctx := context.Background()
	med := addMedication(t, cat, 20)

	tests := []struct {
		name   string
		delta  int64
		reason string
	}{
		{"zero delta", 0, "Count check"},
		{"empty reason", 5, ""},
		{"blank reason", 5, "   "},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := led.AdjustBy(ctx, med.ID, tt.delta, tt.reason, nil)
			assert.ErrorIs(t, err, domain.ErrValidation)
		})
	}

	entries, err := led.History(ctx, med.ID)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestAdjustBy_NotFound(t *testing.T) {
	led, _, _ := newLedger(t)
	_, err := led.AdjustBy(context.Background(), 9999, 5, "Restock", nil)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSetStock(t *testing.T) {
	led, cat, _ := newLedger(t)
	ctx := context.Background()
	med := addMedication(t, cat, 50)

	updated, err := led.SetStock(ctx, med.ID, 80, "Annual stock count", nil)
	require.NoError(t, err)
	assert.Equal(t, int64(80), updated.Stock)

	_, err = led.SetStock(ctx, med.ID, 80, "Same again", nil)
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = led.SetStock(ctx, med.ID, -1, "Negative", nil)
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)

	entries, err := led.History(ctx, med.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, int64(50), entries[0].PreviousStock)
	assert.Equal(t, int64(80), entries[0].NewStock)
}

func TestHistory_MostRecentFirstAndReplayable(t *testing.T) {
	led, cat, _ := newLedger(t)
	ctx := context.Background()
	med := addMedication(t, cat, 100)

	deltas := []int64{-10, 25, -5, -40, 12}
	for _, d := range deltas {
		_, err := led.AdjustBy(ctx, med.ID, d, "Cycle count", nil)
		require.NoError(t, err)
	}

	entries, err := led.History(ctx, med.ID)
	require.NoError(t, err)
	require.Len(t, entries, len(deltas))

	// Most recent first: each entry's new stock is the previous entry's
	// previous stock.
	for i := 0; i < len(entries)-1; i++ {
		assert.Equal(t, entries[i].PreviousStock, entries[i+1].NewStock)
	}

	// Replaying oldest-first reproduces the current stock.
	replayed := entries[len(entries)-1].PreviousStock
	for i := len(entries) - 1; i >= 0; i-- {
		require.Equal(t, replayed, entries[i].PreviousStock)
		replayed = entries[i].NewStock
	}
	current, err := cat.Get(ctx, med.ID)
	require.NoError(t, err)
	assert.Equal(t, current.Stock, replayed)
}

func TestHistory_NotFound(t *testing.T) {
	led, _, _ := newLedger(t)
	_, err := led.History(context.Background(), 424242)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestAdjustBy_Concurrent(t *testing.T) {
	led, cat, _ := newLedger(t)
	ctx := context.Background()
	med := addMedication(t, cat, 100)

	// Each delta is valid against the starting stock in any order.
	deltas := make([]int64, 0, 40)
	var sum int64
	for i := 0; i < 20; i++ {
		deltas = append(deltas, 5, -2)
		sum += 3
	}

	var wg sync.WaitGroup
	for _, d := range deltas {
		wg.Add(1)
		go func(delta int64) {
			defer wg.Done()
			_, err := led.AdjustBy(ctx, med.ID, delta, "Concurrent adjustment", nil)
			assert.NoError(t, err)
		}(d)
	}
	wg.Wait()

	final, err := cat.Get(ctx, med.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(100)+sum, final.Stock)

	entries, err := led.History(ctx, med.ID)
	require.NoError(t, err)
	assert.Len(t, entries, len(deltas))
}

func TestLockTable_BoundedWait(t *testing.T) {
	locks := ledger.NewLockTable(50 * time.Millisecond)
	ctx := context.Background()

	require.NoError(t, locks.Acquire(ctx, 1))

	start := time.Now()
	err := locks.Acquire(ctx, 1)
	assert.ErrorIs(t, err, domain.ErrBusy)
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)

	// A different medication is unaffected.
	require.NoError(t, locks.Acquire(ctx, 2))
	locks.Release(2)

	locks.Release(1)
	require.NoError(t, locks.Acquire(ctx, 1))
	locks.Release(1)
}

func TestLockTable_CancelledContext(t *testing.T) {
	locks := ledger.NewLockTable(time.Second)
	require.NoError(t, locks.Acquire(context.Background(), 1))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, locks.Acquire(ctx, 1), domain.ErrBusy)

	locks.Release(1)
}
