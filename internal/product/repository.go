package product

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"campusmarket-be/internal/db"
	"campusmarket-be/internal/logger"

	"github.com/lib/pq"
	"go.uber.org/zap"
)

type Repository interface {
	GetByID(ctx context.Context, id int64) (*Product, error)

	// GetForPurchase locks the product row for the rest of the caller's
	// transaction and returns it only when its status is purchasable.
	GetForPurchase(ctx context.Context, q db.DBTX, id int64) (*Product, error)

	SetStatus(ctx context.Context, q db.DBTX, id int64, status Status) error

	// MarkSoldIfDrained flips a product with no stock left to sold.
	MarkSoldIfDrained(ctx context.Context, q db.DBTX, id int64) error
}

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

const productColumns = `id, seller_id, name, price, quantity, status, created_at, updated_at`

func scanProduct(row interface{ Scan(...any) error }) (*Product, error) {
	var p Product
	err := row.Scan(
		&p.ID,
		&p.SellerID,
		&p.Name,
		&p.Price,
		&p.Quantity,
		&p.Status,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *repository) GetByID(ctx context.Context, id int64) (*Product, error) {
	p, err := scanProduct(r.db.QueryRowContext(ctx,
		`SELECT `+productColumns+` FROM products WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		logger.FromCtx(ctx).Error("db: failed to get product",
			zap.Int64("product_id", id),
			zap.Error(err),
		)
		return nil, db.Classify(err)
	}
	return p, nil
}

func (r *repository) GetForPurchase(ctx context.Context, q db.DBTX, id int64) (*Product, error) {
	statuses := make([]string, len(PurchasableStatuses))
	for i, s := range PurchasableStatuses {
		statuses[i] = string(s)
	}

	p, err := scanProduct(q.QueryRowContext(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE id = $1 AND status = ANY($2)
		FOR UPDATE
	`, id, pq.Array(statuses)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrProductUnavailable
	}
	if err != nil {
		return nil, fmt.Errorf("lock product %d: %w", id, err)
	}
	return p, nil
}

func (r *repository) SetStatus(ctx context.Context, q db.DBTX, id int64, status Status) error {
	if !status.Valid() {
		return ErrInvalidStatus
	}

	res, err := q.ExecContext(ctx, `
		UPDATE products
		SET status = $2, updated_at = NOW()
		WHERE id = $1
	`, id, status)
	if err != nil {
		return fmt.Errorf("set product status: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrProductNotFound
	}
	return nil
}

func (r *repository) MarkSoldIfDrained(ctx context.Context, q db.DBTX, id int64) error {
	_, err := q.ExecContext(ctx, `
		UPDATE products
		SET status = 'sold', updated_at = NOW()
		WHERE id = $1 AND quantity = 0 AND status <> 'sold'
	`, id)
	if err != nil {
		return fmt.Errorf("mark product sold: %w", err)
	}
	return nil
}
