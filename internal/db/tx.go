package db

import (
	"context"
	"database/sql"
	"errors"

	"campusmarket-be/internal/logger"

	"go.uber.org/zap"
)

// WithTx runs fn inside one transaction. fn's error, a failed commit or a
// cancelled ctx roll everything back; nothing partial is persisted.
func WithTx(ctx context.Context, conn *sql.DB, fn func(tx *sql.Tx) error) error {
	log := logger.FromCtx(ctx).With(zap.String("layer", "db"))

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		log.Error("failed to begin transaction", zap.Error(err))
		return Classify(err)
	}

	committed := false
	defer func() {
		if committed {
			return
		}
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			log.Error("failed to rollback transaction", zap.Error(rbErr))
		} else {
			log.Debug("transaction rolled back")
		}
	}()

	if err := fn(tx); err != nil {
		return Classify(err)
	}

	if err := tx.Commit(); err != nil {
		log.Error("failed to commit transaction", zap.Error(err))
		return Classify(err)
	}

	committed = true
	return nil
}
