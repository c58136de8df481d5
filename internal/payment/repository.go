package payment

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"campusmarket-be/internal/db"
	"campusmarket-be/internal/logger"

	"go.uber.org/zap"
)

// Repository is the durable record of received events.
type Repository interface {
	// Record stores ev and reports whether it still needs applying: true for
	// a new id and for one stored earlier but never settled.
	Record(ctx context.Context, ev Event) (bool, error)
	MarkProcessed(ctx context.Context, eventID string) error
	MarkFailed(ctx context.Context, eventID, reason string) error
}

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Record(ctx context.Context, ev Event) (bool, error) {
	const q = `
	INSERT INTO payment_events (event_id, order_number, status, amount)
	VALUES ($1, $2, $3, $4)
	ON CONFLICT (event_id) DO UPDATE
	SET received_at = NOW()
	WHERE payment_events.processed_at IS NULL
	RETURNING event_id;
	`

	var id string
	err := r.db.QueryRowContext(ctx, q, ev.EventID, ev.OrderNumber, ev.Status, ev.Amount).Scan(&id)
	if err != nil {
		// Already settled → idempotent success
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		logger.FromCtx(ctx).Error("db: failed to record payment event",
			zap.String("event_id", ev.EventID),
			zap.Error(err),
		)
		return false, db.Classify(fmt.Errorf("record payment event: %w", err))
	}

	return true, nil
}

func (r *repository) MarkProcessed(ctx context.Context, eventID string) error {
	const q = `
	UPDATE payment_events
	SET processed_at = NOW(), process_error = NULL
	WHERE event_id = $1;
	`

	_, err := r.db.ExecContext(ctx, q, eventID)
	return err
}

func (r *repository) MarkFailed(ctx context.Context, eventID, reason string) error {
	const q = `
	UPDATE payment_events
	SET processed_at = NOW(), process_error = $2
	WHERE event_id = $1;
	`

	_, err := r.db.ExecContext(ctx, q, eventID, reason)
	return err
}
