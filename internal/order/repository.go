package order

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"campusmarket-be/internal/db"

	"github.com/lib/pq"
)

// Repository methods run on the db.DBTX they are handed. Status writes are
// guarded by the transition tables; zero affected rows is reported as
// ErrIllegalTransition.
type Repository interface {
	// Insert returns ErrOrderNumberTaken when the order number clashes.
	Insert(ctx context.Context, q db.DBTX, o *Order) error
	GetByID(ctx context.Context, q db.DBTX, id int64) (*Order, error)
	Lock(ctx context.Context, q db.DBTX, id int64) (*Order, error)
	LockByNumber(ctx context.Context, q db.DBTX, orderNumber string) (*Order, error)
	Transition(ctx context.Context, q db.DBTX, id int64, to Status) error
	SetPaymentStatus(ctx context.Context, q db.DBTX, id int64, to PaymentStatus) error
	// MarkDelivered closes a delivery order and settles its payment.
	MarkDelivered(ctx context.Context, q db.DBTX, id int64) error
	// ConfirmOldestPickup hands over the seller's oldest open pickup order
	// for the product.
	ConfirmOldestPickup(ctx context.Context, q db.DBTX, sellerID, productID int64) (*Order, error)
}

type repository struct{}

func NewRepository() Repository {
	return &repository{}
}

const orderColumns = `
	id, order_number, customer_id, seller_id, product_id, quantity,
	unit_price, delivery_fee, total_price, delivery_option,
	status, payment_status, special_instructions, created_at, updated_at`

func scanOrder(row interface{ Scan(...any) error }) (*Order, error) {
	var o Order
	err := row.Scan(
		&o.ID,
		&o.OrderNumber,
		&o.CustomerID,
		&o.SellerID,
		&o.ProductID,
		&o.Quantity,
		&o.UnitPrice,
		&o.DeliveryFee,
		&o.TotalPrice,
		&o.DeliveryOption,
		&o.Status,
		&o.PaymentStatus,
		&o.SpecialInstructions,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *repository) Insert(ctx context.Context, q db.DBTX, o *Order) error {
	err := q.QueryRowContext(ctx, `
		INSERT INTO orders (
			order_number, customer_id, seller_id, product_id, quantity,
			unit_price, delivery_fee, total_price, delivery_option,
			status, payment_status, special_instructions
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (order_number) DO NOTHING
		RETURNING id, created_at, updated_at
	`,
		o.OrderNumber,
		o.CustomerID,
		o.SellerID,
		o.ProductID,
		o.Quantity,
		o.UnitPrice,
		o.DeliveryFee,
		o.TotalPrice,
		o.DeliveryOption,
		o.Status,
		o.PaymentStatus,
		o.SpecialInstructions,
	).Scan(&o.ID, &o.CreatedAt, &o.UpdatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return ErrOrderNumberTaken
	}
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

func (r *repository) get(ctx context.Context, q db.DBTX, query string, arg any) (*Order, error) {
	o, err := scanOrder(q.QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, db.Classify(err)
	}
	return o, nil
}

func (r *repository) GetByID(ctx context.Context, q db.DBTX, id int64) (*Order, error) {
	return r.get(ctx, q, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
}

func (r *repository) Lock(ctx context.Context, q db.DBTX, id int64) (*Order, error) {
	return r.get(ctx, q, `SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, id)
}

func (r *repository) LockByNumber(ctx context.Context, q db.DBTX, orderNumber string) (*Order, error) {
	return r.get(ctx, q, `SELECT `+orderColumns+` FROM orders WHERE order_number = $1 FOR UPDATE`, orderNumber)
}

func (r *repository) Transition(ctx context.Context, q db.DBTX, id int64, to Status) error {
	from := AllowedFrom(to)
	if len(from) == 0 {
		return ErrIllegalTransition
	}

	res, err := q.ExecContext(ctx, `
		UPDATE orders
		SET status = $2, updated_at = NOW()
		WHERE id = $1 AND status = ANY($3)
	`, id, to, pq.Array(from))
	if err != nil {
		return fmt.Errorf("transition order to %s: %w", to, err)
	}

	return requireOne(res)
}

func (r *repository) SetPaymentStatus(ctx context.Context, q db.DBTX, id int64, to PaymentStatus) error {
	from := PaymentAllowedFrom(to)
	if len(from) == 0 {
		return ErrIllegalTransition
	}

	res, err := q.ExecContext(ctx, `
		UPDATE orders
		SET payment_status = $2, updated_at = NOW()
		WHERE id = $1 AND payment_status = ANY($3)
	`, id, to, pq.Array(from))
	if err != nil {
		return fmt.Errorf("set payment status %s: %w", to, err)
	}

	return requireOne(res)
}

func (r *repository) MarkDelivered(ctx context.Context, q db.DBTX, id int64) error {
	res, err := q.ExecContext(ctx, `
		UPDATE orders
		SET status = 'delivered', payment_status = 'paid', updated_at = NOW()
		WHERE id = $1 AND status = ANY($2)
	`, id, pq.Array(AllowedFrom(StatusDelivered)))
	if err != nil {
		return fmt.Errorf("mark order delivered: %w", err)
	}

	return requireOne(res)
}

func (r *repository) ConfirmOldestPickup(ctx context.Context, q db.DBTX, sellerID, productID int64) (*Order, error) {
	o, err := scanOrder(q.QueryRowContext(ctx, `
		UPDATE orders
		SET status = 'delivered', updated_at = NOW()
		WHERE id = (
			SELECT id FROM orders
			WHERE seller_id = $1
			  AND product_id = $2
			  AND delivery_option = 'pickup'
			  AND status = 'confirmed'
			ORDER BY created_at, id
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING `+orderColumns,
		sellerID, productID,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoPickupOrderToConfirm
	}
	if err != nil {
		return nil, fmt.Errorf("confirm pickup: %w", err)
	}
	return o, nil
}

func requireOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrIllegalTransition
	}
	return nil
}
