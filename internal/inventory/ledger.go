package inventory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"campusmarket-be/internal/db"
	"campusmarket-be/internal/logger"
	"campusmarket-be/internal/product"

	"go.uber.org/zap"
)

// Ledger owns products.quantity. Both calls run on the caller's
// transaction and never commit on their own.
type Ledger interface {
	// Reserve decrements stock by qty and returns what is left. It never
	// drives quantity below zero.
	Reserve(ctx context.Context, q db.DBTX, productID int64, qty int) (int, error)

	// Release puts qty back and makes reserved or sold products available again.
	Release(ctx context.Context, q db.DBTX, productID int64, qty int) error
}

// quantityCheck keeps products.quantity non-negative.
const quantityCheck = "products_quantity_check"

type ledger struct{}

func NewLedger() Ledger {
	return &ledger{}
}

func (l *ledger) Reserve(ctx context.Context, q db.DBTX, productID int64, qty int) (int, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "inventory"),
		zap.String("method", "Reserve"),
		zap.Int64("product_id", productID),
		zap.Int("qty", qty),
	)

	if qty <= 0 {
		return 0, ErrInvalidQuantity
	}

	var remaining int
	err := q.QueryRowContext(ctx, `
		UPDATE products
		SET quantity = quantity - $2, updated_at = NOW()
		WHERE id = $1 AND quantity >= $2
		RETURNING quantity
	`, productID, qty).Scan(&remaining)

	if errors.Is(err, sql.ErrNoRows) {
		available, lookupErr := l.available(ctx, q, productID)
		if lookupErr != nil {
			return 0, lookupErr
		}
		log.Info("reservation rejected", zap.Int("available", available))
		return 0, &InsufficientStockError{
			ProductID: productID,
			Requested: qty,
			Available: available,
		}
	}
	if db.IsCheckViolation(err, quantityCheck) {
		// The statement already failed; the transaction cannot read stock now.
		log.Info("reservation rejected by quantity check")
		return 0, fmt.Errorf("%w: product %d", ErrInsufficientStock, productID)
	}
	if err != nil {
		log.Error("failed to reserve stock", zap.Error(err))
		return 0, fmt.Errorf("reserve stock: %w", err)
	}

	log.Debug("stock reserved", zap.Int("remaining", remaining))
	return remaining, nil
}

func (l *ledger) available(ctx context.Context, q db.DBTX, productID int64) (int, error) {
	var available int
	err := q.QueryRowContext(ctx,
		`SELECT quantity FROM products WHERE id = $1`, productID,
	).Scan(&available)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, product.ErrProductNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("read stock: %w", err)
	}
	return available, nil
}

func (l *ledger) Release(ctx context.Context, q db.DBTX, productID int64, qty int) error {
	if qty <= 0 {
		return ErrInvalidQuantity
	}

	res, err := q.ExecContext(ctx, `
		UPDATE products
		SET quantity = quantity + $2,
		    status = CASE WHEN status IN ('reserved', 'sold') THEN 'available' ELSE status END,
		    updated_at = NOW()
		WHERE id = $1
	`, productID, qty)
	if err != nil {
		logger.FromCtx(ctx).Error("failed to release stock",
			zap.String("layer", "inventory"),
			zap.Int64("product_id", productID),
			zap.Error(err),
		)
		return fmt.Errorf("release stock: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return product.ErrProductNotFound
	}
	return nil
}
