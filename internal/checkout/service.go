package checkout

import (
	"context"
	"database/sql"

	"campusmarket-be/internal/auth"
	"campusmarket-be/internal/cart"
	"campusmarket-be/internal/db"
	"campusmarket-be/internal/logger"
	"campusmarket-be/internal/metrics"
	"campusmarket-be/internal/notification"
	"campusmarket-be/internal/order"

	"go.uber.org/zap"
)

type Service interface {
	// Checkout turns the buyer's cart lines into orders, one transaction per
	// line. A failed line does not undo the ones placed before it.
	Checkout(ctx context.Context, buyer auth.Principal, req Request) (*Result, error)

	CreateDirectOrder(ctx context.Context, buyer auth.Principal, productID int64, qty int, opts Options) (*order.Placement, error)
}

type service struct {
	db       *sql.DB
	orders   order.Engine
	carts    cart.Repository
	notifier notification.Dispatcher
}

func NewService(conn *sql.DB, orders order.Engine, carts cart.Repository, notifier notification.Dispatcher) Service {
	if notifier == nil {
		notifier = notification.NopDispatcher{}
	}
	return &service{
		db:       conn,
		orders:   orders,
		carts:    carts,
		notifier: notifier,
	}
}

func (s *service) Checkout(ctx context.Context, buyer auth.Principal, req Request) (*Result, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "Checkout"),
	)

	if buyer.ID == 0 {
		return nil, auth.ErrUnauthorized
	}
	if !req.DeliveryOption.Valid() {
		return nil, order.ErrInvalidDeliveryOption
	}

	// 1️⃣ Lines in scope
	lines, err := s.carts.GetLines(ctx, buyer.ID, req.SellerID)
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, cart.ErrEmptyCart
	}

	// 2️⃣ One transaction per line; each consumes exactly the units it bought,
	// so units added meanwhile and failed lines stay in the cart
	res := &Result{}

	for i, line := range lines {
		if ctx.Err() != nil {
			for _, rest := range lines[i:] {
				res.Failed = append(res.Failed, failure(rest, ctx.Err()))
			}
			break
		}

		p, err := s.place(ctx, order.CreateParams{
			CustomerID:          buyer.ID,
			ProductID:           line.ProductID,
			Quantity:            line.Quantity,
			DeliveryOption:      req.DeliveryOption,
			DeliveryFee:         req.DeliveryFee,
			Location:            req.Location,
			SpecialInstructions: req.SpecialInstructions,
			ConsumeCart:         true,
		})
		if err != nil {
			log.Info("checkout line failed",
				zap.Int64("product_id", line.ProductID),
				zap.Error(err),
			)
			res.Failed = append(res.Failed, failure(line, err))
			metrics.CheckoutLinesFailed.Inc()
			continue
		}

		res.Placed = append(res.Placed, *p)
	}

	log.Info("checkout finished",
		zap.Int("placed", len(res.Placed)),
		zap.Int("failed", len(res.Failed)),
	)

	return res, nil
}

func (s *service) CreateDirectOrder(ctx context.Context, buyer auth.Principal, productID int64, qty int, opts Options) (*order.Placement, error) {
	if buyer.ID == 0 {
		return nil, auth.ErrUnauthorized
	}

	return s.place(ctx, order.CreateParams{
		CustomerID:          buyer.ID,
		ProductID:           productID,
		Quantity:            qty,
		DeliveryOption:      opts.DeliveryOption,
		DeliveryFee:         opts.DeliveryFee,
		Location:            opts.Location,
		SpecialInstructions: opts.SpecialInstructions,
		ConsumeCart:         true,
	})
}

// place commits one order and only then announces it.
func (s *service) place(ctx context.Context, params order.CreateParams) (*order.Placement, error) {
	var p *order.Placement
	err := db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		var err error
		p, err = s.orders.Create(ctx, tx, params)
		return err
	})
	if err != nil {
		return nil, err
	}

	metrics.OrdersPlaced.Inc()
	s.notifier.Dispatch(ctx, p.Events()...)
	return p, nil
}

func failure(line cart.Line, err error) LineFailure {
	return LineFailure{
		ProductID: line.ProductID,
		Quantity:  line.Quantity,
		Message:   UserMessage(err),
		Err:       err,
	}
}
