// Package dispense models handing N units of a medication to a named
// recipient as a signed, audited stock adjustment.
package dispense

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/fatimaafzal05/medi-trax/domain"
	"github.com/fatimaafzal05/medi-trax/internal/catalog"
	"github.com/fatimaafzal05/medi-trax/internal/ledger"
	"github.com/fatimaafzal05/medi-trax/internal/observability/metrics"
)

// Workflow wraps the ledger with dispensing semantics.
type Workflow struct {
	catalog *catalog.Catalog
	ledger  *ledger.Ledger
	logger  *slog.Logger
}

// New constructs a Workflow.
func New(c *catalog.Catalog, l *ledger.Ledger, logger *slog.Logger) *Workflow {
	if logger == nil {
		logger = slog.Default()
	}
	return &Workflow{catalog: c, ledger: l, logger: logger}
}

// Request carries one dispense.
type Request struct {
	MedicationID int64
	Quantity     int64
	Recipient    string
	Prescriber   string
	Notes        string
	ActorID      *int64
}

// Dispense validates the request, checks available stock, and records the
// removal through the ledger. The stock pre-check is advisory; the ledger
// repeats it authoritatively inside the adjustment transaction.
func (w *Workflow) Dispense(ctx context.Context, req Request) (domain.Receipt, error) {
	recipient := strings.TrimSpace(req.Recipient)
	prescriber := strings.TrimSpace(req.Prescriber)

	if req.Quantity <= 0 {
		metrics.ObserveDispense("failure")
		return domain.Receipt{}, fmt.Errorf("%w: quantity must be positive", domain.ErrValidation)
	}
	if recipient == "" || prescriber == "" {
		metrics.ObserveDispense("failure")
		return domain.Receipt{}, fmt.Errorf("%w: recipient and prescriber are required", domain.ErrValidation)
	}

	med, err := w.catalog.Get(ctx, req.MedicationID)
	if err != nil {
		metrics.ObserveDispense("failure")
		return domain.Receipt{}, err
	}
	if req.Quantity > med.Stock {
		metrics.ObserveDispense("failure")
		return domain.Receipt{}, fmt.Errorf("%w: not enough stock, only %d available", domain.ErrInsufficientStock, med.Stock)
	}

	reason := fmt.Sprintf("Dispensed to customer: %s (prescribed by %s)", recipient, prescriber)
	if notes := strings.TrimSpace(req.Notes); notes != "" {
		reason += " - " + notes
	}

	med, err = w.ledger.AdjustBy(ctx, req.MedicationID, -req.Quantity, reason, req.ActorID)
	if err != nil {
		metrics.ObserveDispense("failure")
		return domain.Receipt{}, err
	}

	metrics.ObserveDispense("success")
	w.logger.Info("dispensed medication",
		"medication_id", med.ID, "quantity", req.Quantity, "remaining", med.Stock)

	return domain.Receipt{
		ReceiptID:      uuid.NewString(),
		MedicationID:   med.ID,
		MedicationName: med.Name,
		Quantity:       req.Quantity,
		Recipient:      recipient,
		Prescriber:     prescriber,
		RemainingStock: med.Stock,
		DispensedAt:    med.UpdatedAt,
	}, nil
}
