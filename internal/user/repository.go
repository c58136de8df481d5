package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"campusmarket-be/internal/db"
	"campusmarket-be/internal/logger"

	"go.uber.org/zap"
)

var ErrUserNotFound = errors.New("user not found")

type Repository interface {
	GetByID(ctx context.Context, id int64) (*User, error)

	// RecomputeDeliveryRating rebuilds the courier's average rating and
	// review count from all completed, rated deliveries.
	RecomputeDeliveryRating(ctx context.Context, q db.DBTX, courierID int64) error
}

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

func (r *repository) GetByID(ctx context.Context, id int64) (*User, error) {
	var u User
	err := r.db.QueryRowContext(ctx, `
		SELECT id, email, role, delivery_rating, delivery_review_count, created_at, updated_at
		FROM users
		WHERE id = $1
	`, id).Scan(
		&u.ID,
		&u.Email,
		&u.Role,
		&u.DeliveryRating,
		&u.DeliveryReviewCount,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		logger.FromCtx(ctx).Error("db: failed to get user",
			zap.Int64("user_id", id),
			zap.Error(err),
		)
		return nil, db.Classify(err)
	}
	return &u, nil
}

func (r *repository) RecomputeDeliveryRating(ctx context.Context, q db.DBTX, courierID int64) error {
	res, err := q.ExecContext(ctx, `
		UPDATE users u
		SET delivery_rating = agg.avg_rating,
		    delivery_review_count = agg.review_count,
		    updated_at = NOW()
		FROM (
			SELECT ROUND(AVG(rating)::numeric, 2) AS avg_rating, COUNT(*) AS review_count
			FROM deliveries
			WHERE delivery_person = $1
			  AND status = 'completed'
			  AND rating IS NOT NULL
		) agg
		WHERE u.id = $1
	`, courierID)
	if err != nil {
		return fmt.Errorf("recompute delivery rating: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrUserNotFound
	}
	return nil
}
