package assignment

import (
	"context"
	"database/sql"
	"errors"

	"campusmarket-be/internal/auth"
	"campusmarket-be/internal/db"
	"campusmarket-be/internal/delivery"
	"campusmarket-be/internal/logger"
	"campusmarket-be/internal/metrics"
	"campusmarket-be/internal/notification"
	"campusmarket-be/internal/order"
	"campusmarket-be/internal/product"
	"campusmarket-be/internal/user"

	"go.uber.org/zap"
)

// Engine moves deliveries through their lifecycle and cascades each step
// onto the owning order inside the same transaction.
type Engine interface {
	Accept(ctx context.Context, courier auth.Principal, deliveryID int64) (*delivery.Delivery, error)
	Complete(ctx context.Context, courier auth.Principal, deliveryID int64, rating *int, review *string) (*delivery.Delivery, error)
	Pool(ctx context.Context, courier auth.Principal, limit int) ([]delivery.Delivery, error)
}

type Deps struct {
	DB         *sql.DB
	Deliveries delivery.Repository
	Orders     order.Repository
	Products   product.Repository
	Users      user.Repository
	Notifier   notification.Dispatcher
}

type engine struct {
	db         *sql.DB
	deliveries delivery.Repository
	orders     order.Repository
	products   product.Repository
	users      user.Repository
	notifier   notification.Dispatcher
}

func NewEngine(d Deps) Engine {
	notifier := d.Notifier
	if notifier == nil {
		notifier = notification.NopDispatcher{}
	}

	return &engine{
		db:         d.DB,
		deliveries: d.Deliveries,
		orders:     d.Orders,
		products:   d.Products,
		users:      d.Users,
		notifier:   notifier,
	}
}

func (e *engine) Accept(ctx context.Context, courier auth.Principal, deliveryID int64) (*delivery.Delivery, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "engine"),
		zap.String("method", "AcceptDelivery"),
		zap.Int64("delivery_id", deliveryID),
	)

	if courier.ID == 0 || !courier.IsCourier() {
		return nil, auth.ErrUnauthorized
	}

	// Tokens outlive role changes; the account must still be a courier.
	u, err := e.users.GetByID(ctx, courier.ID)
	if errors.Is(err, user.ErrUserNotFound) {
		return nil, auth.ErrUnauthorized
	}
	if err != nil {
		return nil, err
	}
	if u.Role != auth.RoleDelivery {
		log.Info("courier role revoked", zap.String("role", string(u.Role)))
		return nil, auth.ErrUnauthorized
	}

	var d *delivery.Delivery
	err = db.WithTx(ctx, e.db, func(tx *sql.Tx) error {
		// 1️⃣ One unfinished delivery per courier
		busy, err := e.deliveries.HasActiveForCourier(ctx, tx, courier.ID)
		if err != nil {
			return err
		}
		if busy {
			return delivery.ErrCourierBusy
		}

		// 2️⃣ Claim it; losing the race affects zero rows
		orderID, err := e.deliveries.Assign(ctx, tx, deliveryID, courier.ID)
		if err != nil {
			return err
		}

		// 3️⃣ Order follows
		if err := e.orders.Transition(ctx, tx, orderID, order.StatusAssigned); err != nil {
			return err
		}

		// 4️⃣ Accepting starts the trip
		if err := e.deliveries.Start(ctx, tx, deliveryID, courier.ID); err != nil {
			return err
		}

		// 5️⃣ Order follows again
		if err := e.orders.Transition(ctx, tx, orderID, order.StatusInProgress); err != nil {
			return err
		}

		d, err = e.deliveries.GetByID(ctx, tx, deliveryID)
		return err
	})
	if err != nil {
		log.Info("accept rejected", zap.Error(err))
		return nil, err
	}

	metrics.DeliveriesAccepted.Inc()
	log.Info("delivery accepted", zap.Int64("order_id", d.OrderID))
	e.notifier.Dispatch(ctx,
		notification.NewEvent(notification.DeliveryAssigned, d.CustomerID, d.OrderID, d.ID),
		notification.NewEvent(notification.DeliveryAssigned, d.SellerID, d.OrderID, d.ID),
	)

	return d, nil
}

func (e *engine) Complete(ctx context.Context, courier auth.Principal, deliveryID int64, rating *int, review *string) (*delivery.Delivery, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "engine"),
		zap.String("method", "CompleteDelivery"),
		zap.Int64("delivery_id", deliveryID),
	)

	if courier.ID == 0 || !courier.IsCourier() {
		return nil, auth.ErrUnauthorized
	}
	if rating != nil && !delivery.ValidRating(*rating) {
		return nil, delivery.ErrInvalidRating
	}

	var d *delivery.Delivery
	err := db.WithTx(ctx, e.db, func(tx *sql.Tx) error {
		// 1️⃣ Only the holder can finish, and only once
		orderID, err := e.deliveries.Complete(ctx, tx, deliveryID, courier.ID, rating, review)
		if err != nil {
			return err
		}

		// 2️⃣ Order delivered and settled
		if err := e.orders.MarkDelivered(ctx, tx, orderID); err != nil {
			return err
		}

		o, err := e.orders.GetByID(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if err := e.products.MarkSoldIfDrained(ctx, tx, o.ProductID); err != nil {
			return err
		}

		// 3️⃣ Courier aggregate
		if rating != nil {
			if err := e.users.RecomputeDeliveryRating(ctx, tx, courier.ID); err != nil {
				return err
			}
		}

		d, err = e.deliveries.GetByID(ctx, tx, deliveryID)
		return err
	})
	if err != nil {
		log.Info("complete rejected", zap.Error(err))
		return nil, err
	}

	metrics.DeliveriesCompleted.Inc()
	log.Info("delivery completed", zap.Int64("order_id", d.OrderID))
	e.notifier.Dispatch(ctx,
		notification.NewEvent(notification.DeliveryCompleted, d.CustomerID, d.OrderID, d.ID),
		notification.NewEvent(notification.OrderDelivered, d.SellerID, d.OrderID, d.ID),
	)

	return d, nil
}

func (e *engine) Pool(ctx context.Context, courier auth.Principal, limit int) ([]delivery.Delivery, error) {
	if courier.ID == 0 || !(courier.IsCourier() || courier.IsAdmin()) {
		return nil, auth.ErrUnauthorized
	}
	return e.deliveries.ListPending(ctx, limit)
}
