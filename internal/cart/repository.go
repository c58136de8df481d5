package cart

import (
	"context"
	"database/sql"
	"fmt"

	"campusmarket-be/internal/db"
	"campusmarket-be/internal/logger"

	"go.uber.org/zap"
)

type Repository interface {
	// Add merges qty into the buyer's line for the product and returns the
	// resulting line quantity.
	Add(ctx context.Context, params AddToCartParams) (int, error)
	GetLines(ctx context.Context, buyerID int64, sellerID *int64) ([]Line, error)
	// LineQuantity returns how many units of the product the buyer already
	// holds, zero when there is no line.
	LineQuantity(ctx context.Context, buyerID, productID int64) (int, error)
	Clear(ctx context.Context, buyerID int64, sellerID *int64) (int64, error)
	Remove(ctx context.Context, buyerID, productID int64) error

	// Reduce consumes qty from a line inside the caller's transaction and
	// deletes the line once nothing is left. A missing line is not an error.
	Reduce(ctx context.Context, q db.DBTX, buyerID, productID int64, qty int) error
}

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Add(ctx context.Context, params AddToCartParams) (int, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "repository"),
		zap.String("method", "AddCartLine"),
		zap.Int64("buyer_id", params.BuyerID),
		zap.Int64("product_id", params.ProductID),
	)

	var quantity int
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO cart (buyer_id, product_id, quantity)
		VALUES ($1, $2, $3)
		ON CONFLICT (buyer_id, product_id)
		DO UPDATE SET quantity = cart.quantity + EXCLUDED.quantity, updated_at = NOW()
		RETURNING quantity
	`, params.BuyerID, params.ProductID, params.Quantity).Scan(&quantity)
	if err != nil {
		log.Error("failed to upsert cart line", zap.Error(err))
		return 0, db.Classify(err)
	}

	log.Info("cart line saved", zap.Int("quantity", quantity))
	return quantity, nil
}

func (r *repository) LineQuantity(ctx context.Context, buyerID, productID int64) (int, error) {
	var qty int
	err := r.db.QueryRowContext(ctx, `
		SELECT COALESCE(
			(SELECT quantity FROM cart WHERE buyer_id = $1 AND product_id = $2),
			0
		)
	`, buyerID, productID).Scan(&qty)
	if err != nil {
		return 0, db.Classify(err)
	}
	return qty, nil
}

func (r *repository) GetLines(ctx context.Context, buyerID int64, sellerID *int64) ([]Line, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT
			c.id,
			c.buyer_id,
			c.product_id,
			c.quantity,
			c.created_at,
			c.updated_at,
			p.seller_id,
			p.name,
			p.price,
			p.status
		FROM cart c
		JOIN products p ON p.id = c.product_id
		WHERE c.buyer_id = $1
		  AND ($2::bigint IS NULL OR p.seller_id = $2)
		ORDER BY c.created_at, c.id
	`, buyerID, sellerID)
	if err != nil {
		logger.FromCtx(ctx).Error("db: failed to load cart",
			zap.Int64("buyer_id", buyerID),
			zap.Error(err),
		)
		return nil, db.Classify(err)
	}
	defer rows.Close()

	var lines []Line
	for rows.Next() {
		var l Line
		if err := rows.Scan(
			&l.ID,
			&l.BuyerID,
			&l.ProductID,
			&l.Quantity,
			&l.CreatedAt,
			&l.UpdatedAt,
			&l.SellerID,
			&l.ProductName,
			&l.UnitPrice,
			&l.ProductStatus,
		); err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}

	return lines, rows.Err()
}

func (r *repository) Clear(ctx context.Context, buyerID int64, sellerID *int64) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM cart c
		USING products p
		WHERE c.product_id = p.id
		  AND c.buyer_id = $1
		  AND ($2::bigint IS NULL OR p.seller_id = $2)
	`, buyerID, sellerID)
	if err != nil {
		return 0, db.Classify(err)
	}
	return res.RowsAffected()
}

func (r *repository) Remove(ctx context.Context, buyerID, productID int64) error {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM cart
		WHERE buyer_id = $1 AND product_id = $2
	`, buyerID, productID)
	if err != nil {
		return db.Classify(err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrCartItemNotFound
	}
	return nil
}

func (r *repository) Reduce(ctx context.Context, q db.DBTX, buyerID, productID int64, qty int) error {
	// 1️⃣ Drop the line when the purchase consumes all of it
	res, err := q.ExecContext(ctx, `
		DELETE FROM cart
		WHERE buyer_id = $1 AND product_id = $2 AND quantity <= $3
	`, buyerID, productID, qty)
	if err != nil {
		return fmt.Errorf("delete consumed cart line: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil || n > 0 {
		return err
	}

	// 2️⃣ Otherwise keep the rest
	_, err = q.ExecContext(ctx, `
		UPDATE cart
		SET quantity = quantity - $3, updated_at = NOW()
		WHERE buyer_id = $1 AND product_id = $2
	`, buyerID, productID, qty)
	if err != nil {
		return fmt.Errorf("reduce cart line: %w", err)
	}
	return nil
}
