// Package catalog manages medication records. It owns every field except
// post-creation stock, which only the ledger may touch.
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/fatimaafzal05/medi-trax/domain"
	"github.com/fatimaafzal05/medi-trax/internal/ledger"
)

// Catalog is the medication CRUD surface.
type Catalog struct {
	db     *sqlx.DB
	locks  *ledger.LockTable
	logger *slog.Logger
}

// New constructs a Catalog. The lock table must be the one used by the
// ledger so removal excludes in-flight adjustments.
func New(db *sqlx.DB, locks *ledger.LockTable, logger *slog.Logger) *Catalog {
	if logger == nil {
		logger = slog.Default()
	}
	return &Catalog{db: db, locks: locks, logger: logger}
}

// AddInput carries the fields for a new medication.
type AddInput struct {
	Name        string
	Description string
	Category    string
	Stock       int64
	Price       float64
}

// Add creates a medication with its initial stock.
func (c *Catalog) Add(ctx context.Context, in AddInput) (domain.Medication, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return domain.Medication{}, fmt.Errorf("%w: name is required", domain.ErrValidation)
	}
	if in.Stock < 0 {
		return domain.Medication{}, fmt.Errorf("%w: stock cannot be negative", domain.ErrValidation)
	}
	if in.Price < 0 {
		return domain.Medication{}, fmt.Errorf("%w: price cannot be negative", domain.ErrValidation)
	}

	now := domain.Now()
	res, err := c.db.ExecContext(ctx,
		`INSERT INTO medications (name, description, category, stock, price, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?, ?)`,
		name, in.Description, in.Category, in.Stock, in.Price, now, now)
	if err != nil {
		c.logger.Error("add medication", "name", name, "error", err)
		return domain.Medication{}, fmt.Errorf("add medication: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return domain.Medication{}, fmt.Errorf("add medication: %w", err)
	}

	return domain.Medication{
		ID:          id,
		Name:        name,
		Description: in.Description,
		Category:    in.Category,
		Stock:       in.Stock,
		Price:       in.Price,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// Get returns one medication by id.
func (c *Catalog) Get(ctx context.Context, id int64) (domain.Medication, error) {
	var med domain.Medication
	err := c.db.GetContext(ctx, &med,
		`SELECT id, name, description, category, stock, price, created_at, updated_at
         FROM medications WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Medication{}, fmt.Errorf("%w: medication %d", domain.ErrNotFound, id)
	}
	if err != nil {
		c.logger.Error("get medication", "medication_id", id, "error", err)
		return domain.Medication{}, fmt.Errorf("get medication %d: %w", id, err)
	}
	return med, nil
}

// List returns all medications in insertion order.
func (c *Catalog) List(ctx context.Context) ([]domain.Medication, error) {
	meds := []domain.Medication{}
	err := c.db.SelectContext(ctx, &meds,
		`SELECT id, name, description, category, stock, price, created_at, updated_at
         FROM medications ORDER BY id`)
	if err != nil {
		c.logger.Error("list medications", "error", err)
		return nil, fmt.Errorf("list medications: %w", err)
	}
	return meds, nil
}

// Search returns medications whose name or category matches the query, in
// insertion order. An empty query matches everything.
func (c *Catalog) Search(ctx context.Context, query string) ([]domain.Medication, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return c.List(ctx)
	}
	like := "%" + query + "%"
	meds := []domain.Medication{}
	err := c.db.SelectContext(ctx, &meds,
		`SELECT id, name, description, category, stock, price, created_at, updated_at
         FROM medications WHERE name LIKE ? OR category LIKE ? ORDER BY id`, like, like)
	if err != nil {
		c.logger.Error("search medications", "error", err)
		return nil, fmt.Errorf("search medications: %w", err)
	}
	return meds, nil
}

// UpdateInput carries the editable non-stock fields.
type UpdateInput struct {
	Name        string
	Description string
	Category    string
	Price       float64
}

// Update edits a medication's non-stock fields. Stock changes must go
// through the ledger.
func (c *Catalog) Update(ctx context.Context, id int64, in UpdateInput) (domain.Medication, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return domain.Medication{}, fmt.Errorf("%w: name is required", domain.ErrValidation)
	}
	if in.Price < 0 {
		return domain.Medication{}, fmt.Errorf("%w: price cannot be negative", domain.ErrValidation)
	}

	now := domain.Now()
	res, err := c.db.ExecContext(ctx,
		`UPDATE medications SET name = ?, description = ?, category = ?, price = ?, updated_at = ?
         WHERE id = ?`,
		name, in.Description, in.Category, in.Price, now, id)
	if err != nil {
		c.logger.Error("update medication", "medication_id", id, "error", err)
		return domain.Medication{}, fmt.Errorf("update medication %d: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return domain.Medication{}, fmt.Errorf("update medication %d: %w", id, err)
	}
	if affected == 0 {
		return domain.Medication{}, fmt.Errorf("%w: medication %d", domain.ErrNotFound, id)
	}
	return c.Get(ctx, id)
}

// Remove deletes a medication and cascades deletion of its stock history.
// The per-medication lock is held so removal and adjustment are mutually
// exclusive.
func (c *Catalog) Remove(ctx context.Context, id int64) error {
	if err := c.locks.Acquire(ctx, id); err != nil {
		return err
	}
	defer c.locks.Release(id)

	res, err := c.db.ExecContext(ctx, `DELETE FROM medications WHERE id = ?`, id)
	if err != nil {
		c.logger.Error("remove medication", "medication_id", id, "error", err)
		return fmt.Errorf("remove medication %d: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("remove medication %d: %w", id, err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: medication %d", domain.ErrNotFound, id)
	}
	return nil
}

// Summary computes the dashboard stock counts for the given threshold.
func (c *Catalog) Summary(ctx context.Context, threshold int64) (domain.StockSummary, error) {
	if threshold < 0 {
		return domain.StockSummary{}, fmt.Errorf("%w: threshold cannot be negative", domain.ErrValidation)
	}
	var s domain.StockSummary
	err := c.db.GetContext(ctx, &s,
		`SELECT COUNT(*) AS total,
                COALESCE(SUM(CASE WHEN stock > 0 AND stock <= ? THEN 1 ELSE 0 END), 0) AS low_stock,
                COALESCE(SUM(CASE WHEN stock = 0 THEN 1 ELSE 0 END), 0) AS out_of_stock
         FROM medications`, threshold)
	if err != nil {
		c.logger.Error("stock summary", "error", err)
		return domain.StockSummary{}, fmt.Errorf("stock summary: %w", err)
	}
	s.Threshold = threshold
	return s, nil
}
