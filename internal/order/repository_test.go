package order

import (
	"context"
	"database/sql/driver"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var orderRowColumns = []string{
	"id", "order_number", "customer_id", "seller_id", "product_id", "quantity",
	"unit_price", "delivery_fee", "total_price", "delivery_option",
	"status", "payment_status", "special_instructions", "created_at", "updated_at",
}

func orderRow(id int64, status Status, payment PaymentStatus, option DeliveryOption) []driver.Value {
	now := time.Now()
	return []driver.Value{
		id, "ORD-20240101-120000-000-0001", int64(1), int64(2), int64(9), 2,
		"10.00", "3.00", "23.00", string(option),
		string(status), string(payment), nil, now, now,
	}
}

func TestRepository_Insert(t *testing.T) {
	ctx := context.Background()
	o := &Order{
		OrderNumber:    "ORD-1",
		CustomerID:     1,
		SellerID:       2,
		ProductID:      9,
		Quantity:       2,
		UnitPrice:      decimal.RequireFromString("10.00"),
		DeliveryFee:    decimal.Zero,
		TotalPrice:     decimal.RequireFromString("20.00"),
		DeliveryOption: OptionPickup,
		Status:         StatusConfirmed,
		PaymentStatus:  PaymentPaid,
	}

	t.Run("Success", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		now := time.Now()
		mock.ExpectQuery(`(?s)INSERT INTO orders .* ON CONFLICT \(order_number\) DO NOTHING\s+RETURNING id, created_at, updated_at`).
			WithArgs("ORD-1", int64(1), int64(2), int64(9), 2,
				sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
				OptionPickup, StatusConfirmed, PaymentPaid, nil).
			WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(77, now, now))

		require.NoError(t, NewRepository().Insert(ctx, db, o))
		assert.Equal(t, int64(77), o.ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("NumberCollision", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery(`INSERT INTO orders`).
			WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}))

		assert.ErrorIs(t, NewRepository().Insert(ctx, db, o), ErrOrderNumberTaken)
	})
}

func TestRepository_GetByID(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery(`(?s)SELECT .* FROM orders WHERE id = \$1$`).
			WithArgs(int64(5)).
			WillReturnRows(sqlmock.NewRows(orderRowColumns).AddRow(orderRow(5, StatusConfirmed, PaymentPending, OptionDelivery)...))

		o, err := NewRepository().GetByID(ctx, db, 5)
		require.NoError(t, err)
		assert.Equal(t, StatusConfirmed, o.Status)
		assert.Equal(t, OptionDelivery, o.DeliveryOption)
		assert.True(t, decimal.RequireFromString("23").Equal(o.TotalPrice))
	})

	t.Run("NotFound", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery(`FROM orders`).WillReturnRows(sqlmock.NewRows(orderRowColumns))

		_, err = NewRepository().GetByID(ctx, db, 5)
		assert.ErrorIs(t, err, ErrOrderNotFound)
	})

	t.Run("LockByNumber", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery(`(?s)FROM orders WHERE order_number = \$1 FOR UPDATE`).
			WithArgs("ORD-X").
			WillReturnRows(sqlmock.NewRows(orderRowColumns).AddRow(orderRow(5, StatusConfirmed, PaymentPending, OptionDelivery)...))

		o, err := NewRepository().LockByNumber(ctx, db, "ORD-X")
		require.NoError(t, err)
		assert.Equal(t, int64(5), o.ID)
	})
}

func TestRepository_Transition(t *testing.T) {
	ctx := context.Background()

	t.Run("GuardedByAllowedFrom", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectExec(`UPDATE orders\s+SET status = \$2, updated_at = NOW\(\)\s+WHERE id = \$1 AND status = ANY\(\$3\)`).
			WithArgs(int64(5), StatusInProgress, sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))

		assert.NoError(t, NewRepository().Transition(ctx, db, 5, StatusInProgress))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("ZeroRows", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectExec(`UPDATE orders`).WillReturnResult(sqlmock.NewResult(0, 0))

		assert.ErrorIs(t, NewRepository().Transition(ctx, db, 5, StatusDelivered), ErrIllegalTransition)
	})

	t.Run("NoSourceState", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		assert.ErrorIs(t, NewRepository().Transition(ctx, db, 5, StatusConfirmed), ErrIllegalTransition)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("DBError", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectExec(`UPDATE orders`).WillReturnError(errors.New("boom"))

		assert.EqualError(t, NewRepository().Transition(ctx, db, 5, StatusAssigned), "transition order to assigned: boom")
	})
}

func TestRepository_SetPaymentStatus(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`SET payment_status = \$2.*WHERE id = \$1 AND payment_status = ANY\(\$3\)`).
		WithArgs(int64(5), PaymentPaid, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`SET payment_status`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	repo := NewRepository()
	assert.NoError(t, repo.SetPaymentStatus(context.Background(), db, 5, PaymentPaid))
	assert.ErrorIs(t, repo.SetPaymentStatus(context.Background(), db, 5, PaymentPaid), ErrIllegalTransition)
}

func TestRepository_MarkDelivered(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`SET status = 'delivered', payment_status = 'paid'`).
		WithArgs(int64(5), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	assert.NoError(t, NewRepository().MarkDelivered(context.Background(), db, 5))
}

func TestRepository_ConfirmOldestPickup(t *testing.T) {
	ctx := context.Background()
	const query = `(?s)UPDATE orders\s+SET status = 'delivered'.*WHERE seller_id = \$1\s+AND product_id = \$2\s+AND delivery_option = 'pickup'\s+AND status = 'confirmed'.*FOR UPDATE SKIP LOCKED`

	t.Run("Success", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery(query).
			WithArgs(int64(2), int64(9)).
			WillReturnRows(sqlmock.NewRows(orderRowColumns).AddRow(orderRow(5, StatusDelivered, PaymentPaid, OptionPickup)...))

		o, err := NewRepository().ConfirmOldestPickup(ctx, db, 2, 9)
		require.NoError(t, err)
		assert.Equal(t, StatusDelivered, o.Status)
	})

	t.Run("NothingOpen", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery(query).WillReturnRows(sqlmock.NewRows(orderRowColumns))

		_, err = NewRepository().ConfirmOldestPickup(ctx, db, 2, 9)
		assert.ErrorIs(t, err, ErrNoPickupOrderToConfirm)
	})
}
