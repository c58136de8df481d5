package order

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"campusmarket-be/internal/auth"
	"campusmarket-be/internal/cart"
	"campusmarket-be/internal/db"
	"campusmarket-be/internal/delivery"
	"campusmarket-be/internal/inventory"
	"campusmarket-be/internal/logger"
	"campusmarket-be/internal/notification"
	"campusmarket-be/internal/product"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Engine is the only writer of order status outside delivery assignment.
type Engine interface {
	// Create runs on the caller's transaction and does not commit. It locks
	// the product, reserves stock, inserts the order and, for delivery
	// orders, its pending delivery.
	Create(ctx context.Context, tx db.DBTX, p CreateParams) (*Placement, error)

	ConfirmPickupDelivered(ctx context.Context, seller auth.Principal, productID int64) (*Order, error)
	Cancel(ctx context.Context, actor auth.Principal, orderID int64) (*Order, error)
	MarkPaid(ctx context.Context, orderNumber string, amount decimal.Decimal) (*Order, error)
	MarkPaymentFailed(ctx context.Context, orderNumber string, amount decimal.Decimal) (*Order, error)
	Get(ctx context.Context, viewer auth.Principal, orderID int64) (*Placement, error)
}

type Deps struct {
	DB         *sql.DB
	Orders     Repository
	Products   product.Repository
	Ledger     inventory.Ledger
	Deliveries delivery.Repository
	Carts      cart.Repository
	Notifier   notification.Dispatcher
}

type engine struct {
	db         *sql.DB
	orders     Repository
	products   product.Repository
	ledger     inventory.Ledger
	deliveries delivery.Repository
	carts      cart.Repository
	notifier   notification.Dispatcher

	newNumber func() string
}

func NewEngine(d Deps) Engine {
	notifier := d.Notifier
	if notifier == nil {
		notifier = notification.NopDispatcher{}
	}

	return &engine{
		db:         d.DB,
		orders:     d.Orders,
		products:   d.Products,
		ledger:     d.Ledger,
		deliveries: d.Deliveries,
		carts:      d.Carts,
		notifier:   notifier,
		newNumber: func() string {
			return GenerateOrderNumber(time.Now())
		},
	}
}

func (e *engine) Create(ctx context.Context, tx db.DBTX, p CreateParams) (*Placement, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "engine"),
		zap.String("method", "CreateOrder"),
		zap.Int64("product_id", p.ProductID),
		zap.Int("qty", p.Quantity),
	)

	if p.CustomerID == 0 {
		return nil, auth.ErrUnauthorized
	}
	if p.Quantity <= 0 {
		return nil, ErrInvalidQuantity
	}
	if !p.DeliveryOption.Valid() {
		return nil, ErrInvalidDeliveryOption
	}

	fee := p.DeliveryFee
	if p.DeliveryOption == OptionPickup {
		fee = decimal.Zero
	} else if fee.IsNegative() {
		return nil, ErrInvalidDeliveryFee
	}

	// 1️⃣ Lock the product row and check it can be bought
	prod, err := e.products.GetForPurchase(ctx, tx, p.ProductID)
	if err != nil {
		return nil, err
	}
	if prod.SellerID == p.CustomerID {
		return nil, fmt.Errorf("%w: cannot buy your own product", auth.ErrUnauthorized)
	}
	if prod.Quantity < p.Quantity {
		return nil, &inventory.InsufficientStockError{
			ProductID: prod.ID,
			Requested: p.Quantity,
			Available: prod.Quantity,
		}
	}

	// 2️⃣ Reserve stock
	remaining, err := e.ledger.Reserve(ctx, tx, prod.ID, p.Quantity)
	if err != nil {
		return nil, err
	}

	// 3️⃣ Insert the order
	o := &Order{
		CustomerID:          p.CustomerID,
		SellerID:            prod.SellerID,
		ProductID:           prod.ID,
		Quantity:            p.Quantity,
		UnitPrice:           prod.Price,
		DeliveryFee:         fee,
		TotalPrice:          ComputeTotal(prod.Price, p.Quantity, fee),
		DeliveryOption:      p.DeliveryOption,
		Status:              StatusConfirmed,
		PaymentStatus:       PaymentPending,
		SpecialInstructions: p.SpecialInstructions,
	}
	if p.DeliveryOption == OptionPickup {
		o.PaymentStatus = PaymentPaid
	}

	if err := e.insertWithFreshNumber(ctx, tx, o); err != nil {
		return nil, err
	}

	placement := &Placement{Order: *o}

	// 4️⃣ Delivery orders wait in the courier pool
	if p.DeliveryOption == OptionDelivery {
		d := &delivery.Delivery{
			OrderID:             o.ID,
			CustomerID:          o.CustomerID,
			SellerID:            o.SellerID,
			PickupLocation:      p.Location.Pickup,
			DeliveryLocation:    p.Location.Dropoff,
			SpecialInstructions: p.SpecialInstructions,
		}
		if err := e.deliveries.Insert(ctx, tx, d); err != nil {
			return nil, err
		}
		placement.Delivery = d

		if remaining == 0 {
			if err := e.products.SetStatus(ctx, tx, prod.ID, product.StatusReserved); err != nil {
				return nil, err
			}
		}
	}

	// 5️⃣ Consume exactly the purchased units from the cart line
	if p.ConsumeCart {
		if err := e.carts.Reduce(ctx, tx, p.CustomerID, prod.ID, p.Quantity); err != nil {
			return nil, err
		}
	}

	log.Info("order created",
		zap.Int64("order_id", o.ID),
		zap.String("order_number", o.OrderNumber),
		zap.Int("remaining_stock", remaining),
	)

	return placement, nil
}

func (e *engine) insertWithFreshNumber(ctx context.Context, tx db.DBTX, o *Order) error {
	for attempt := 0; attempt < 2; attempt++ {
		o.OrderNumber = e.newNumber()

		err := e.orders.Insert(ctx, tx, o)
		if !errors.Is(err, ErrOrderNumberTaken) {
			return err
		}

		logger.FromCtx(ctx).Warn("order number collision",
			zap.String("order_number", o.OrderNumber),
			zap.Int("attempt", attempt+1),
		)
	}
	return ErrOrderNumberTaken
}

func (e *engine) ConfirmPickupDelivered(ctx context.Context, seller auth.Principal, productID int64) (*Order, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "engine"),
		zap.String("method", "ConfirmPickupDelivered"),
		zap.Int64("product_id", productID),
	)

	if seller.ID == 0 {
		return nil, auth.ErrUnauthorized
	}

	prod, err := e.products.GetByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	if prod.SellerID != seller.ID && !seller.IsAdmin() {
		return nil, auth.ErrUnauthorized
	}

	var o *Order
	err = db.WithTx(ctx, e.db, func(tx *sql.Tx) error {
		var err error
		o, err = e.orders.ConfirmOldestPickup(ctx, tx, prod.SellerID, prod.ID)
		if err != nil {
			return err
		}
		return e.products.MarkSoldIfDrained(ctx, tx, prod.ID)
	})
	if err != nil {
		log.Warn("pickup confirmation failed", zap.Error(err))
		return nil, err
	}

	log.Info("pickup handed over", zap.Int64("order_id", o.ID))
	e.notifier.Dispatch(ctx, notification.NewEvent(notification.OrderDelivered, o.CustomerID, o.ID, 0))

	return o, nil
}

func (e *engine) Cancel(ctx context.Context, actor auth.Principal, orderID int64) (*Order, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "engine"),
		zap.String("method", "CancelOrder"),
		zap.Int64("order_id", orderID),
	)

	if actor.ID == 0 {
		return nil, auth.ErrUnauthorized
	}

	var o *Order
	err := db.WithTx(ctx, e.db, func(tx *sql.Tx) error {
		cur, err := e.orders.Lock(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if cur.CustomerID != actor.ID && !actor.IsAdmin() {
			return auth.ErrUnauthorized
		}

		if err := e.cancelLocked(ctx, tx, cur); err != nil {
			return err
		}

		if cur.PaymentStatus == PaymentPaid {
			if err := e.orders.SetPaymentStatus(ctx, tx, cur.ID, PaymentRefunded); err != nil {
				return err
			}
			cur.PaymentStatus = PaymentRefunded
		}

		o = cur
		return nil
	})
	if err != nil {
		log.Warn("cancel failed", zap.Error(err))
		return nil, err
	}

	log.Info("order cancelled")
	e.notifier.Dispatch(ctx,
		notification.NewEvent(notification.OrderCancelled, o.CustomerID, o.ID, 0),
		notification.NewEvent(notification.OrderCancelled, o.SellerID, o.ID, 0),
	)

	return o, nil
}

// cancelLocked cancels an order already locked in tx: its delivery first,
// then the order itself, then the stock goes back.
func (e *engine) cancelLocked(ctx context.Context, tx db.DBTX, o *Order) error {
	if o.Status.Terminal() {
		return fmt.Errorf("%w: order already %s", ErrIllegalTransition, o.Status)
	}
	if !CanTransition(o.Status, StatusCancelled) {
		return ErrIllegalTransition
	}

	if o.DeliveryOption == OptionDelivery {
		cancelled, err := e.deliveries.CancelForOrder(ctx, tx, o.ID)
		if err != nil {
			return err
		}
		if !cancelled {
			// courier is already on the way
			return ErrIllegalTransition
		}
	}

	if err := e.orders.Transition(ctx, tx, o.ID, StatusCancelled); err != nil {
		return err
	}
	if err := e.ledger.Release(ctx, tx, o.ProductID, o.Quantity); err != nil {
		return err
	}

	o.Status = StatusCancelled
	return nil
}

func (e *engine) MarkPaid(ctx context.Context, orderNumber string, amount decimal.Decimal) (*Order, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "engine"),
		zap.String("method", "MarkPaid"),
		zap.String("order_number", orderNumber),
	)

	var (
		o       *Order
		applied bool
	)
	err := db.WithTx(ctx, e.db, func(tx *sql.Tx) error {
		cur, err := e.orders.LockByNumber(ctx, tx, orderNumber)
		if err != nil {
			return err
		}
		if !amount.Equal(cur.TotalPrice) {
			return ErrAmountMismatch
		}

		o = cur
		if cur.PaymentStatus == PaymentPaid {
			return nil
		}
		if cur.Status == StatusCancelled {
			return ErrIllegalTransition
		}

		if err := e.orders.SetPaymentStatus(ctx, tx, cur.ID, PaymentPaid); err != nil {
			return err
		}
		cur.PaymentStatus = PaymentPaid
		applied = true
		return nil
	})
	if err != nil {
		log.Warn("mark paid failed", zap.Error(err))
		return nil, err
	}

	if applied {
		log.Info("order paid")
		e.notifier.Dispatch(ctx,
			notification.NewEvent(notification.OrderPaid, o.CustomerID, o.ID, 0),
			notification.NewEvent(notification.OrderPaid, o.SellerID, o.ID, 0),
		)
	}

	return o, nil
}

func (e *engine) MarkPaymentFailed(ctx context.Context, orderNumber string, amount decimal.Decimal) (*Order, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "engine"),
		zap.String("method", "MarkPaymentFailed"),
		zap.String("order_number", orderNumber),
	)

	var (
		o         *Order
		cancelled bool
	)
	err := db.WithTx(ctx, e.db, func(tx *sql.Tx) error {
		cur, err := e.orders.LockByNumber(ctx, tx, orderNumber)
		if err != nil {
			return err
		}
		if !amount.Equal(cur.TotalPrice) {
			return ErrAmountMismatch
		}

		o = cur
		if cur.PaymentStatus == PaymentFailed {
			return nil
		}

		if err := e.orders.SetPaymentStatus(ctx, tx, cur.ID, PaymentFailed); err != nil {
			return err
		}
		cur.PaymentStatus = PaymentFailed

		// nobody has picked it up yet, so the stock goes back
		if cur.Status == StatusConfirmed {
			if err := e.cancelLocked(ctx, tx, cur); err != nil {
				return err
			}
			cancelled = true
		}
		return nil
	})
	if err != nil {
		log.Warn("mark payment failed errored", zap.Error(err))
		return nil, err
	}

	if cancelled {
		log.Info("unpaid order cancelled")
		e.notifier.Dispatch(ctx,
			notification.NewEvent(notification.OrderCancelled, o.CustomerID, o.ID, 0),
			notification.NewEvent(notification.OrderCancelled, o.SellerID, o.ID, 0),
		)
	}

	return o, nil
}

func (e *engine) Get(ctx context.Context, viewer auth.Principal, orderID int64) (*Placement, error) {
	if viewer.ID == 0 {
		return nil, auth.ErrUnauthorized
	}

	o, err := e.orders.GetByID(ctx, e.db, orderID)
	if err != nil {
		return nil, err
	}

	p := &Placement{Order: *o}
	if o.DeliveryOption == OptionDelivery {
		d, err := e.deliveries.GetByOrderID(ctx, e.db, o.ID)
		if err != nil && !errors.Is(err, delivery.ErrDeliveryNotFound) {
			return nil, err
		}
		p.Delivery = d
	}

	if !canView(viewer, p) {
		return nil, auth.ErrUnauthorized
	}
	return p, nil
}

func canView(viewer auth.Principal, p *Placement) bool {
	switch {
	case viewer.IsAdmin():
		return true
	case viewer.ID == p.Order.CustomerID, viewer.ID == p.Order.SellerID:
		return true
	case p.Delivery != nil && p.Delivery.DeliveryPerson != nil:
		return *p.Delivery.DeliveryPerson == viewer.ID
	}
	return false
}
