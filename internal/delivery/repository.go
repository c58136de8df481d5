package delivery

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

// Repository methods taking a db.DBTX run on the caller's transaction.
// Every status change is a conditional UPDATE; zero affected rows means
// another request got there first.
type Repository interface {
	Insert(ctx context.Context, q db.DBTX, d *Delivery) error
	GetByID(ctx context.Context, q db.DBTX, id int64) (*Delivery, error)
	GetByOrderID(ctx context.Context, q db.DBTX, orderID int64) (*Delivery, error)
	ListPending(ctx context.Context, limit int) ([]Delivery, error)
	HasActiveForCourier(ctx context.Context, q db.DBTX, courierID int64) (bool, error)

	// Assign claims a pending delivery for courierID and returns its order id.
	Assign(ctx context.Context, q db.DBTX, id, courierID int64) (int64, error)
	Start(ctx context.Context, q db.DBTX, id, courierID int64) error
	// Complete finishes a delivery held by courierID and returns its order id.
	Complete(ctx context.Context, q db.DBTX, id, courierID int64, rating *int, review *string) (int64, error)
	// CancelForOrder cancels the order's delivery while it is still pending
	// or assigned and frees its courier. It reports whether a row changed.
	CancelForOrder(ctx context.Context, q db.DBTX, orderID int64) (bool, error)
}

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

const deliveryColumns = `
	id, order_id, customer_id, seller_id, delivery_person,
	pickup_location, delivery_location, special_instructions,
	status, rating, review,
	assigned_at, started_at, completed_at, cancelled_at,
	created_at, updated_at`

func scanDelivery(row interface{ Scan(...any) error }) (*Delivery, error) {
	var d Delivery
	err := row.Scan(
		&d.ID,
		&d.OrderID,
		&d.CustomerID,
		&d.SellerID,
		&d.DeliveryPerson,
		&d.PickupLocation,
		&d.DeliveryLocation,
		&d.SpecialInstructions,
		&d.Status,
		&d.Rating,
		&d.Review,
		&d.AssignedAt,
		&d.StartedAt,
		&d.CompletedAt,
		&d.CancelledAt,
		&d.CreatedAt,
		&d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *repository) Insert(ctx context.Context, q db.DBTX, d *Delivery) error {
	err := q.QueryRowContext(ctx, `
		INSERT INTO deliveries (
			order_id, customer_id, seller_id,
			pickup_location, delivery_location, special_instructions,
			status
		) VALUES ($1, $2, $3, $4, $5, $6, 'pending')
		RETURNING id, status, created_at, updated_at
	`,
		d.OrderID,
		d.CustomerID,
		d.SellerID,
		d.PickupLocation,
		d.DeliveryLocation,
		d.SpecialInstructions,
	).Scan(&d.ID, &d.Status, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert delivery: %w", err)
	}
	return nil
}

func (r *repository) GetByID(ctx context.Context, q db.DBTX, id int64) (*Delivery, error) {
	d, err := scanDelivery(q.QueryRowContext(ctx,
		`SELECT `+deliveryColumns+` FROM deliveries WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrDeliveryNotFound
	}
	if err != nil {
		return nil, db.Classify(err)
	}
	return d, nil
}

func (r *repository) GetByOrderID(ctx context.Context, q db.DBTX, orderID int64) (*Delivery, error) {
	d, err := scanDelivery(q.QueryRowContext(ctx,
		`SELECT `+deliveryColumns+` FROM deliveries WHERE order_id = $1`, orderID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrDeliveryNotFound
	}
	if err != nil {
		return nil, db.Classify(err)
	}
	return d, nil
}

func (r *repository) ListPending(ctx context.Context, limit int) ([]Delivery, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT `+deliveryColumns+`
		FROM deliveries
		WHERE status = 'pending' AND delivery_person IS NULL
		ORDER BY created_at, id
		LIMIT $1
	`, limit)
	if err != nil {
		logger.FromCtx(ctx).Error("db: failed to list pending deliveries", zap.Error(err))
		return nil, db.Classify(err)
	}
	defer rows.Close()

	var out []Delivery
	for rows.Next() {
		d, err := scanDelivery(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

func (r *repository) HasActiveForCourier(ctx context.Context, q db.DBTX, courierID int64) (bool, error) {
	var busy bool
	err := q.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM deliveries
			WHERE delivery_person = $1 AND status = ANY($2)
		)
	`, courierID, pq.Array(activeStatuses)).Scan(&busy)
	if err != nil {
		return false, fmt.Errorf("check courier workload: %w", err)
	}
	return busy, nil
}

func (r *repository) Assign(ctx context.Context, q db.DBTX, id, courierID int64) (int64, error) {
	var orderID int64
	err := q.QueryRowContext(ctx, `
		UPDATE deliveries
		SET delivery_person = $2, status = 'assigned', assigned_at = NOW(), updated_at = NOW()
		WHERE id = $1
		  AND status = ANY($3)
		  AND (delivery_person IS NULL OR delivery_person = $2)
		RETURNING order_id
	`, id, courierID, pq.Array(AllowedFrom(StatusAssigned))).Scan(&orderID)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		return 0, ErrAlreadyTaken
	case db.IsUniqueViolation(err, activeCourierIndex):
		return 0, ErrCourierBusy
	case err != nil:
		return 0, fmt.Errorf("assign delivery: %w", err)
	}
	return orderID, nil
}

func (r *repository) Start(ctx context.Context, q db.DBTX, id, courierID int64) error {
	res, err := q.ExecContext(ctx, `
		UPDATE deliveries
		SET status = 'in_progress', started_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND delivery_person = $2 AND status = ANY($3)
	`, id, courierID, pq.Array(AllowedFrom(StatusInProgress)))
	if err != nil {
		return fmt.Errorf("start delivery: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrIllegalTransition
	}
	return nil
}

func (r *repository) Complete(ctx context.Context, q db.DBTX, id, courierID int64, rating *int, review *string) (int64, error) {
	var orderID int64
	err := q.QueryRowContext(ctx, `
		UPDATE deliveries
		SET status = 'completed',
		    completed_at = NOW(),
		    rating = COALESCE($3, rating),
		    review = COALESCE($4, review),
		    updated_at = NOW()
		WHERE id = $1
		  AND delivery_person = $2
		  AND status = ANY($5)
		RETURNING order_id
	`, id, courierID, rating, review, pq.Array(AllowedFrom(StatusCompleted))).Scan(&orderID)

	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFoundOrAlreadyCompleted
	}
	if err != nil {
		return 0, fmt.Errorf("complete delivery: %w", err)
	}
	return orderID, nil
}

func (r *repository) CancelForOrder(ctx context.Context, q db.DBTX, orderID int64) (bool, error) {
	res, err := q.ExecContext(ctx, `
		UPDATE deliveries
		SET status = 'cancelled',
		    delivery_person = NULL,
		    cancelled_at = NOW(),
		    updated_at = NOW()
		WHERE order_id = $1 AND status = ANY($2)
	`, orderID, pq.Array(AllowedFrom(StatusCancelled)))
	if err != nil {
		return false, fmt.Errorf("cancel delivery: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
