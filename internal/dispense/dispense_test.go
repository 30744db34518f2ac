package dispense_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fatimaafzal05/medi-trax/domain"
	"github.com/fatimaafzal05/medi-trax/internal/catalog"
	"github.com/fatimaafzal05/medi-trax/internal/credentials"
	"github.com/fatimaafzal05/medi-trax/internal/database"
	"github.com/fatimaafzal05/medi-trax/internal/dispense"
	"github.com/fatimaafzal05/medi-trax/internal/ledger"
	"github.com/fatimaafzal05/medi-trax/internal/migrations"
)

func newWorkflow(t *testing.T) (*dispense.Workflow, *catalog.Catalog, *ledger.Ledger, *credentials.Store) {
	t.Helper()
	db := database.Connect(filepath.Join(t.TempDir(), "meditrax.db"))
	migrations.Run(db)
	t.Cleanup(func() { db.Close() })

	locks := ledger.NewLockTable(2 * time.Second)
	led := ledger.New(db, locks, nil)
	cat := catalog.New(db, locks, nil)
	return dispense.New(cat, led, nil), cat, led, credentials.New(db, nil)
}

func registerActor(t *testing.T, creds *credentials.Store) int64 {
	t.Helper()
	user, err := creds.Register(context.Background(), credentials.RegisterInput{
		Username: "pharm1",
		Password: "pw123456",
		FullName: "Test Pharmacist",
		Role:     domain.RolePharmacist,
	})
	require.NoError(t, err)
	return user.ID
}

func TestDispense(t *testing.T) {
	w, cat, led, creds := newWorkflow(t)
	ctx := context.Background()

	med, err := cat.Add(ctx, catalog.AddInput{Name: "Amoxicillin 500mg", Stock: 100, Price: 12.99})
	require.NoError(t, err)

	actor := registerActor(t, creds)
	receipt, err := w.Dispense(ctx, dispense.Request{
		MedicationID: med.ID,
		Quantity:     30,
		Recipient:    "Jane Doe",
		Prescriber:   "Dr. Smith",
		ActorID:      &actor,
	})
	require.NoError(t, err)

	assert.NotEmpty(t, receipt.ReceiptID)
	assert.Equal(t, med.ID, receipt.MedicationID)
	assert.Equal(t, "Amoxicillin 500mg", receipt.MedicationName)
	assert.Equal(t, int64(30), receipt.Quantity)
	assert.Equal(t, "Jane Doe", receipt.Recipient)
	assert.Equal(t, "Dr. Smith", receipt.Prescriber)
	assert.Equal(t, int64(70), receipt.RemainingStock)

	entries, err := led.History(ctx, med.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, int64(100), entries[0].PreviousStock)
	assert.Equal(t, int64(70), entries[0].NewStock)
	assert.Contains(t, entries[0].Reason, "Dispensed to customer: Jane Doe")
	assert.Contains(t, entries[0].Reason, "Dr. Smith")
	require.NotNil(t, entries[0].ChangedBy)
	assert.Equal(t, actor, *entries[0].ChangedBy)
}

func TestDispense_NotesAppendedToReason(t *testing.T) {
	w, cat, led, _ := newWorkflow(t)
	ctx := context.Background()

	med, err := cat.Add(ctx, catalog.AddInput{Name: "Metformin 850mg", Stock: 50, Price: 15.99})
	require.NoError(t, err)

	_, err = w.Dispense(ctx, dispense.Request{
		MedicationID: med.ID,
		Quantity:     10,
		Recipient:    "John Roe",
		Prescriber:   "Dr. Lee",
		Notes:        "Take with food",
	})
	require.NoError(t, err)

	entries, err := led.History(ctx, med.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].Reason, "- Take with food")
}

func TestDispense_InsufficientStock(t *testing.T) {
	w, cat, led, _ := newWorkflow(t)
	ctx := context.Background()

	med, err := cat.Add(ctx, catalog.AddInput{Name: "Ibuprofen 400mg", Stock: 70, Price: 6.99})
	require.NoError(t, err)

	_, err = w.Dispense(ctx, dispense.Request{
		MedicationID: med.ID,
		Quantity:     150,
		Recipient:    "Jane Doe",
		Prescriber:   "Dr. Smith",
	})
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)

	after, err := cat.Get(ctx, med.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(70), after.Stock)

	entries, err := led.History(ctx, med.ID)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestDispense_Validation(t *testing.T) {
	w, cat, _, _ := newWorkflow(t)
	ctx := context.Background()

	med, err := cat.Add(ctx, catalog.AddInput{Name: "Cetirizine 10mg", Stock: 90, Price: 9.99})
	require.NoError(t, err)

	tests := []struct {
		name string
		req  dispense.Request
	}{
		{"zero quantity", dispense.Request{MedicationID: med.ID, Quantity: 0, Recipient: "A", Prescriber: "B"}},
		{"negative quantity", dispense.Request{MedicationID: med.ID, Quantity: -5, Recipient: "A", Prescriber: "B"}},
		{"empty recipient", dispense.Request{MedicationID: med.ID, Quantity: 1, Recipient: " ", Prescriber: "B"}},
		{"empty prescriber", dispense.Request{MedicationID: med.ID, Quantity: 1, Recipient: "A", Prescriber: ""}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := w.Dispense(ctx, tt.req)
			assert.ErrorIs(t, err, domain.ErrValidation)
		})
	}
}

func TestDispense_MedicationNotFound(t *testing.T) {
	w, _, _, _ := newWorkflow(t)
	_, err := w.Dispense(context.Background(), dispense.Request{
		MedicationID: 777,
		Quantity:     1,
		Recipient:    "Jane Doe",
		Prescriber:   "Dr. Smith",
	})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
