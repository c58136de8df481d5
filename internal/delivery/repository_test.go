package delivery

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var deliveryRowColumns = []string{
	"id", "order_id", "customer_id", "seller_id", "delivery_person",
	"pickup_location", "delivery_location", "special_instructions",
	"status", "rating", "review",
	"assigned_at", "started_at", "completed_at", "cancelled_at",
	"created_at", "updated_at",
}

func TestRepository_Insert(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewRepository(db)

	now := time.Now()
	mock.ExpectQuery(`(?s)INSERT INTO deliveries .* VALUES \(\$1, \$2, \$3, \$4, \$5, \$6, 'pending'\)`).
		WithArgs(int64(10), int64(1), int64(2), "Library", "Dorm B", nil).
		WillReturnRows(sqlmock.NewRows([]string{"id", "status", "created_at", "updated_at"}).
			AddRow(5, "pending", now, now))

	d := &Delivery{OrderID: 10, CustomerID: 1, SellerID: 2, PickupLocation: "Library", DeliveryLocation: "Dorm B"}
	require.NoError(t, repo.Insert(context.Background(), db, d))
	assert.Equal(t, int64(5), d.ID)
	assert.Equal(t, StatusPending, d.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_GetByID(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()
		repo := NewRepository(db)

		now := time.Now()
		mock.ExpectQuery(`(?s)SELECT .* FROM deliveries WHERE id = \$1`).
			WithArgs(int64(5)).
			WillReturnRows(sqlmock.NewRows(deliveryRowColumns).AddRow(
				5, 10, 1, 2, 7,
				"Library", "Dorm B", nil,
				"in_progress", nil, nil,
				now, now, nil, nil,
				now, now,
			))

		d, err := repo.GetByID(ctx, db, 5)
		require.NoError(t, err)
		require.NotNil(t, d.DeliveryPerson)
		assert.Equal(t, int64(7), *d.DeliveryPerson)
		assert.Equal(t, StatusInProgress, d.Status)
		assert.Nil(t, d.Rating)
		assert.Nil(t, d.CompletedAt)
	})

	t.Run("NotFound", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()
		repo := NewRepository(db)

		mock.ExpectQuery(`SELECT`).WillReturnRows(sqlmock.NewRows(deliveryRowColumns))

		_, err = repo.GetByID(ctx, db, 5)
		assert.ErrorIs(t, err, ErrDeliveryNotFound)
	})
}

func TestRepository_ListPending(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewRepository(db)

	now := time.Now()
	mock.ExpectQuery(`(?s)FROM deliveries\s+WHERE status = 'pending' AND delivery_person IS NULL.*LIMIT \$1`).
		WithArgs(20).
		WillReturnRows(sqlmock.NewRows(deliveryRowColumns).
			AddRow(5, 10, 1, 2, nil, "Library", "Dorm B", nil, "pending", nil, nil, nil, nil, nil, nil, now, now).
			AddRow(6, 11, 1, 3, nil, "Gym", "Dorm C", "ring twice", "pending", nil, nil, nil, nil, nil, nil, now, now))

	out, err := repo.ListPending(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Nil(t, out[0].DeliveryPerson)
	require.NotNil(t, out[1].SpecialInstructions)
	assert.Equal(t, "ring twice", *out[1].SpecialInstructions)
}

func TestRepository_HasActiveForCourier(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewRepository(db)

	mock.ExpectQuery(`(?s)SELECT EXISTS .* WHERE delivery_person = \$1 AND status = ANY\(\$2\)`).
		WithArgs(int64(7), pq.Array([]string{"assigned", "in_progress"})).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	busy, err := repo.HasActiveForCourier(context.Background(), db, 7)
	require.NoError(t, err)
	assert.True(t, busy)
}

func TestRepository_Assign(t *testing.T) {
	ctx := context.Background()
	const assignQuery = `(?s)UPDATE deliveries\s+SET delivery_person = \$2, status = 'assigned'.*WHERE id = \$1\s+AND status = ANY\(\$3\)\s+AND \(delivery_person IS NULL OR delivery_person = \$2\)\s+RETURNING order_id`

	t.Run("Success", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()
		repo := NewRepository(db)

		mock.ExpectQuery(assignQuery).
			WithArgs(int64(5), int64(7), pq.Array([]string{"pending"})).
			WillReturnRows(sqlmock.NewRows([]string{"order_id"}).AddRow(10))

		orderID, err := repo.Assign(ctx, db, 5, 7)
		require.NoError(t, err)
		assert.Equal(t, int64(10), orderID)
	})

	t.Run("LostRace", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()
		repo := NewRepository(db)

		mock.ExpectQuery(assignQuery).WillReturnRows(sqlmock.NewRows([]string{"order_id"}))

		_, err = repo.Assign(ctx, db, 5, 7)
		assert.ErrorIs(t, err, ErrAlreadyTaken)
	})

	t.Run("CourierIndexViolation", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()
		repo := NewRepository(db)

		mock.ExpectQuery(assignQuery).
			WillReturnError(&pq.Error{Code: "23505", Constraint: activeCourierIndex})

		_, err = repo.Assign(ctx, db, 5, 7)
		assert.ErrorIs(t, err, ErrCourierBusy)
	})

	t.Run("DBError", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()
		repo := NewRepository(db)

		mock.ExpectQuery(assignQuery).WillReturnError(errors.New("boom"))

		_, err = repo.Assign(ctx, db, 5, 7)
		assert.EqualError(t, err, "assign delivery: boom")
	})
}

func TestRepository_Start(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()
		repo := NewRepository(db)

		mock.ExpectExec(`(?s)SET status = 'in_progress', started_at = NOW\(\).*WHERE id = \$1 AND delivery_person = \$2 AND status = ANY\(\$3\)`).
			WithArgs(int64(5), int64(7), pq.Array([]string{"assigned"})).
			WillReturnResult(sqlmock.NewResult(0, 1))

		assert.NoError(t, repo.Start(ctx, db, 5, 7))
	})

	t.Run("WrongState", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()
		repo := NewRepository(db)

		mock.ExpectExec(`UPDATE deliveries`).WillReturnResult(sqlmock.NewResult(0, 0))

		assert.ErrorIs(t, repo.Start(ctx, db, 5, 7), ErrIllegalTransition)
	})
}

func TestRepository_Complete(t *testing.T) {
	ctx := context.Background()
	const completeQuery = `(?s)UPDATE deliveries\s+SET status = 'completed'.*WHERE id = \$1\s+AND delivery_person = \$2\s+AND status = ANY\(\$5\)\s+RETURNING order_id`

	t.Run("WithRating", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()
		repo := NewRepository(db)

		rating, review := 5, "fast"
		mock.ExpectQuery(completeQuery).
			WithArgs(int64(5), int64(7), 5, "fast", pq.Array([]string{"assigned", "in_progress"})).
			WillReturnRows(sqlmock.NewRows([]string{"order_id"}).AddRow(10))

		orderID, err := repo.Complete(ctx, db, 5, 7, &rating, &review)
		require.NoError(t, err)
		assert.Equal(t, int64(10), orderID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("SecondCall", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()
		repo := NewRepository(db)

		mock.ExpectQuery(completeQuery).
			WithArgs(int64(5), int64(7), nil, nil, sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows([]string{"order_id"}))

		_, err = repo.Complete(ctx, db, 5, 7, nil, nil)
		assert.ErrorIs(t, err, ErrNotFoundOrAlreadyCompleted)
	})
}

func TestRepository_CancelForOrder(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewRepository(db)

	mock.ExpectExec(`(?s)SET status = 'cancelled',\s+delivery_person = NULL.*WHERE order_id = \$1 AND status = ANY\(\$2\)`).
		WithArgs(int64(10), pq.Array([]string{"pending", "assigned"})).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE deliveries`).
		WithArgs(int64(11), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := repo.CancelForOrder(context.Background(), db, 10)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.CancelForOrder(context.Background(), db, 11)
	require.NoError(t, err)
	assert.False(t, ok)
}
