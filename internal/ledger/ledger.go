// Package ledger is the sole authority for changing medication stock after
// creation. Every mutation runs in one transaction under a per-medication
// lock and appends one immutable stock_history row.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/fatimaafzal05/medi-trax/domain"
	"github.com/fatimaafzal05/medi-trax/internal/observability/metrics"
)

// Ledger owns the stock mutation invariants and the audit history.
type Ledger struct {
	db     *sqlx.DB
	locks  *LockTable
	logger *slog.Logger
}

// New constructs a Ledger.
func New(db *sqlx.DB, locks *LockTable, logger *slog.Logger) *Ledger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ledger{db: db, locks: locks, logger: logger}
}

// AdjustBy applies a signed delta to the medication's stock. A zero delta is
// rejected; a delta that would drive stock negative fails with
// ErrInsufficientStock and leaves no trace.
func (l *Ledger) AdjustBy(ctx context.Context, medicationID, delta int64, reason string, actorID *int64) (domain.Medication, error) {
	if delta == 0 {
		return domain.Medication{}, fmt.Errorf("%w: adjustment delta must be non-zero", domain.ErrValidation)
	}
	return l.apply(ctx, medicationID, reason, actorID, func(current int64) (int64, error) {
		next := current + delta
		if next < 0 {
			return 0, fmt.Errorf("%w: cannot remove %d units, only %d available", domain.ErrInsufficientStock, -delta, current)
		}
		return next, nil
	})
}

// SetStock moves the medication's stock to an absolute target. Setting the
// current value again is a no-op and is rejected.
func (l *Ledger) SetStock(ctx context.Context, medicationID, target int64, reason string, actorID *int64) (domain.Medication, error) {
	if target < 0 {
		return domain.Medication{}, fmt.Errorf("%w: stock cannot be negative", domain.ErrInsufficientStock)
	}
	return l.apply(ctx, medicationID, reason, actorID, func(current int64) (int64, error) {
		if target == current {
			return 0, fmt.Errorf("%w: stock is already %d", domain.ErrValidation, current)
		}
		return target, nil
	})
}

// apply runs the read-validate-write-append critical section. The compute
// callback maps current stock to the new value or rejects the change.
func (l *Ledger) apply(ctx context.Context, medicationID int64, reason string, actorID *int64, compute func(current int64) (int64, error)) (med domain.Medication, err error) {
	defer func() {
		if err != nil {
			metrics.ObserveAdjustment("failure")
		} else {
			metrics.ObserveAdjustment("success")
		}
	}()

	if strings.TrimSpace(reason) == "" {
		return domain.Medication{}, fmt.Errorf("%w: reason is required", domain.ErrValidation)
	}

	if err := l.locks.Acquire(ctx, medicationID); err != nil {
		return domain.Medication{}, err
	}
	defer l.locks.Release(medicationID)

	tx, err := l.db.BeginTxx(ctx, nil)
	if err != nil {
		l.logger.Error("begin adjustment", "medication_id", medicationID, "error", err)
		return domain.Medication{}, fmt.Errorf("begin adjustment: %w", err)
	}
	defer tx.Rollback()

	err = tx.GetContext(ctx, &med,
		`SELECT id, name, description, category, stock, price, created_at, updated_at
         FROM medications WHERE id = ?`, medicationID)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Medication{}, fmt.Errorf("%w: medication %d", domain.ErrNotFound, medicationID)
	}
	if err != nil {
		l.logger.Error("read medication", "medication_id", medicationID, "error", err)
		return domain.Medication{}, fmt.Errorf("read medication %d: %w", medicationID, err)
	}

	next, err := compute(med.Stock)
	if err != nil {
		return domain.Medication{}, err
	}

	if actorID != nil {
		var known int
		if err = tx.GetContext(ctx, &known,
			`SELECT COUNT(*) FROM users WHERE id = ?`, *actorID); err != nil {
			l.logger.Error("read actor", "user_id", *actorID, "error", err)
			return domain.Medication{}, fmt.Errorf("read actor %d: %w", *actorID, err)
		}
		if known == 0 {
			return domain.Medication{}, fmt.Errorf("%w: unknown acting user %d", domain.ErrValidation, *actorID)
		}
	}

	now := domain.Now()
	if _, err = tx.ExecContext(ctx,
		`UPDATE medications SET stock = ?, updated_at = ? WHERE id = ?`,
		next, now, medicationID); err != nil {
		l.logger.Error("update stock", "medication_id", medicationID, "error", err)
		return domain.Medication{}, fmt.Errorf("update stock for medication %d: %w", medicationID, err)
	}
	if _, err = tx.ExecContext(ctx,
		`INSERT INTO stock_history (medication_id, previous_stock, new_stock, changed_by, reason, timestamp)
         VALUES (?, ?, ?, ?, ?, ?)`,
		medicationID, med.Stock, next, actorID, reason, now); err != nil {
		l.logger.Error("append history", "medication_id", medicationID, "error", err)
		return domain.Medication{}, fmt.Errorf("append history for medication %d: %w", medicationID, err)
	}

	if err = tx.Commit(); err != nil {
		l.logger.Error("commit adjustment", "medication_id", medicationID, "error", err)
		return domain.Medication{}, fmt.Errorf("commit adjustment for medication %d: %w", medicationID, err)
	}

	med.Stock = next
	med.UpdatedAt = now
	return med, nil
}

// History returns the medication's stock history, most recent first.
func (l *Ledger) History(ctx context.Context, medicationID int64) ([]domain.StockHistoryEntry, error) {
	var exists int
	if err := l.db.GetContext(ctx, &exists,
		`SELECT COUNT(*) FROM medications WHERE id = ?`, medicationID); err != nil {
		l.logger.Error("read medication", "medication_id", medicationID, "error", err)
		return nil, fmt.Errorf("read medication %d: %w", medicationID, err)
	}
	if exists == 0 {
		return nil, fmt.Errorf("%w: medication %d", domain.ErrNotFound, medicationID)
	}

	entries := []domain.StockHistoryEntry{}
	err := l.db.SelectContext(ctx, &entries,
		`SELECT id, medication_id, previous_stock, new_stock, changed_by, reason, timestamp
         FROM stock_history WHERE medication_id = ? ORDER BY id DESC`, medicationID)
	if err != nil {
		l.logger.Error("read history", "medication_id", medicationID, "error", err)
		return nil, fmt.Errorf("read history for medication %d: %w", medicationID, err)
	}
	return entries, nil
}
