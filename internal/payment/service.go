package payment

import (
	"context"

	"campusmarket-be/internal/logger"
	"campusmarket-be/internal/metrics"
	"campusmarket-be/internal/order"

	"go.uber.org/zap"
)

type Service interface {
	// Confirm applies a payment event at most once per EventID.
	Confirm(ctx context.Context, ev Event) (Outcome, error)
}

type service struct {
	repo   Repository
	dedup  Deduper
	orders order.Engine
}

func NewService(repo Repository, dedup Deduper, orders order.Engine) Service {
	if dedup == nil {
		dedup = NopDeduper{}
	}
	return &service{repo: repo, dedup: dedup, orders: orders}
}

func (s *service) Confirm(ctx context.Context, ev Event) (Outcome, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "ConfirmPayment"),
		zap.String("event_id", ev.EventID),
		zap.String("order_number", ev.OrderNumber),
	)

	if !ev.Valid() {
		return Outcome{}, ErrInvalidEvent
	}

	// 1️⃣ Fast path; redis being down only costs a database round trip
	seen, err := s.dedup.Seen(ctx, ev.EventID)
	if err != nil {
		log.Warn("dedup unavailable, falling back to database", zap.Error(err))
	}
	if seen {
		log.Info("duplicate payment event skipped")
		metrics.PaymentsDuplicate.Inc()
		return Outcome{Duplicate: true}, nil
	}

	// 2️⃣ Durable record decides; an unsettled row is applied again
	pending, err := s.repo.Record(ctx, ev)
	if err != nil {
		return Outcome{}, err
	}
	if !pending {
		log.Info("payment event already settled")
		metrics.PaymentsDuplicate.Inc()
		s.remember(ctx, ev.EventID)
		return Outcome{Duplicate: true}, nil
	}

	// 3️⃣ Apply; both order transitions are idempotent under the row lock
	switch ev.Status {
	case EventPaid:
		_, err = s.orders.MarkPaid(ctx, ev.OrderNumber, ev.Amount)
	case EventFailed:
		_, err = s.orders.MarkPaymentFailed(ctx, ev.OrderNumber, ev.Amount)
	}

	// 4️⃣ Settle the record
	if err != nil {
		if !Permanent(err) {
			// row stays unsettled, the provider's retry applies it
			log.Error("payment event not applied, awaiting redelivery", zap.Error(err))
			return Outcome{}, err
		}

		log.Warn("payment event rejected", zap.Error(err))
		metrics.PaymentsRejected.Inc()
		if mErr := s.repo.MarkFailed(context.WithoutCancel(ctx), ev.EventID, err.Error()); mErr != nil {
			log.Error("failed to mark payment event failed", zap.Error(mErr))
			return Outcome{}, err
		}
		s.remember(ctx, ev.EventID)
		return Outcome{}, err
	}

	if err := s.repo.MarkProcessed(context.WithoutCancel(ctx), ev.EventID); err != nil {
		log.Error("failed to mark payment event processed", zap.Error(err))
	} else {
		s.remember(ctx, ev.EventID)
	}

	metrics.PaymentsApplied.Inc()
	log.Info("payment event applied", zap.String("status", string(ev.Status)))
	return Outcome{}, nil
}

func (s *service) remember(ctx context.Context, eventID string) {
	if err := s.dedup.Remember(context.WithoutCancel(ctx), eventID); err != nil {
		logger.FromCtx(ctx).Warn("failed to cache settled payment event",
			zap.String("event_id", eventID),
			zap.Error(err),
		)
	}
}
