package cart

import (
	"context"
	"errors"
	"testing"

	"campusmarket-be/internal/auth"
	"campusmarket-be/internal/db"
	"campusmarket-be/internal/inventory"
	"campusmarket-be/internal/product"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) Add(ctx context.Context, params AddToCartParams) (int, error) {
	args := m.Called(ctx, params)
	return args.Int(0), args.Error(1)
}

func (m *MockRepository) GetLines(ctx context.Context, buyerID int64, sellerID *int64) ([]Line, error) {
	args := m.Called(ctx, buyerID, sellerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]Line), args.Error(1)
}

func (m *MockRepository) LineQuantity(ctx context.Context, buyerID, productID int64) (int, error) {
	args := m.Called(ctx, buyerID, productID)
	return args.Int(0), args.Error(1)
}

func (m *MockRepository) Clear(ctx context.Context, buyerID int64, sellerID *int64) (int64, error) {
	args := m.Called(ctx, buyerID, sellerID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockRepository) Remove(ctx context.Context, buyerID, productID int64) error {
	return m.Called(ctx, buyerID, productID).Error(0)
}

func (m *MockRepository) Reduce(ctx context.Context, q db.DBTX, buyerID, productID int64, qty int) error {
	return m.Called(ctx, q, buyerID, productID, qty).Error(0)
}

type MockProductRepository struct {
	mock.Mock
}

func (m *MockProductRepository) GetByID(ctx context.Context, id int64) (*product.Product, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*product.Product), args.Error(1)
}

func (m *MockProductRepository) GetForPurchase(ctx context.Context, q db.DBTX, id int64) (*product.Product, error) {
	args := m.Called(ctx, q, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*product.Product), args.Error(1)
}

func (m *MockProductRepository) SetStatus(ctx context.Context, q db.DBTX, id int64, status product.Status) error {
	return m.Called(ctx, q, id, status).Error(0)
}

func (m *MockProductRepository) MarkSoldIfDrained(ctx context.Context, q db.DBTX, id int64) error {
	return m.Called(ctx, q, id).Error(0)
}

func TestService_AddToCart(t *testing.T) {
	ctx := context.Background()
	params := AddToCartParams{BuyerID: 1, ProductID: 9, Quantity: 2}

	t.Run("Success", func(t *testing.T) {
		mockRepo := new(MockRepository)
		mockProductRepo := new(MockProductRepository)
		svc := NewService(mockRepo, mockProductRepo)

		mockProductRepo.On("GetByID", ctx, int64(9)).
			Return(&product.Product{ID: 9, SellerID: 4, Quantity: 5, Status: product.StatusAvailable}, nil).Once()
		mockRepo.On("LineQuantity", ctx, int64(1), int64(9)).Return(0, nil).Once()
		mockRepo.On("Add", ctx, params).Return(2, nil).Once()

		qty, err := svc.AddToCart(ctx, params)

		assert.NoError(t, err)
		assert.Equal(t, 2, qty)
		mockProductRepo.AssertExpectations(t)
		mockRepo.AssertExpectations(t)
	})

	t.Run("Unauthenticated", func(t *testing.T) {
		svc := NewService(new(MockRepository), new(MockProductRepository))

		_, err := svc.AddToCart(ctx, AddToCartParams{ProductID: 9, Quantity: 1})
		assert.ErrorIs(t, err, auth.ErrUnauthorized)
	})

	t.Run("InvalidQuantity", func(t *testing.T) {
		svc := NewService(new(MockRepository), new(MockProductRepository))

		_, err := svc.AddToCart(ctx, AddToCartParams{BuyerID: 1, ProductID: 9, Quantity: 0})
		assert.ErrorIs(t, err, ErrInvalidQuantity)
	})

	t.Run("ProductMissing", func(t *testing.T) {
		mockProductRepo := new(MockProductRepository)
		svc := NewService(new(MockRepository), mockProductRepo)

		mockProductRepo.On("GetByID", ctx, int64(9)).Return(nil, product.ErrProductNotFound).Once()

		_, err := svc.AddToCart(ctx, params)
		assert.ErrorIs(t, err, product.ErrProductUnavailable)
	})

	t.Run("ProductReserved", func(t *testing.T) {
		mockProductRepo := new(MockProductRepository)
		svc := NewService(new(MockRepository), mockProductRepo)

		mockProductRepo.On("GetByID", ctx, int64(9)).
			Return(&product.Product{ID: 9, SellerID: 4, Status: product.StatusReserved}, nil).Once()

		_, err := svc.AddToCart(ctx, params)
		assert.ErrorIs(t, err, product.ErrProductUnavailable)
	})

	t.Run("OwnProduct", func(t *testing.T) {
		mockProductRepo := new(MockProductRepository)
		svc := NewService(new(MockRepository), mockProductRepo)

		mockProductRepo.On("GetByID", ctx, int64(9)).
			Return(&product.Product{ID: 9, SellerID: 1, Quantity: 5, Status: product.StatusAvailable}, nil).Once()

		_, err := svc.AddToCart(ctx, params)
		assert.ErrorIs(t, err, ErrOwnProduct)
	})

	t.Run("NotEnoughStock", func(t *testing.T) {
		mockRepo := new(MockRepository)
		mockProductRepo := new(MockProductRepository)
		svc := NewService(mockRepo, mockProductRepo)

		mockProductRepo.On("GetByID", ctx, int64(9)).
			Return(&product.Product{ID: 9, SellerID: 4, Quantity: 1, Status: product.StatusAvailable}, nil).Once()
		mockRepo.On("LineQuantity", ctx, int64(1), int64(9)).Return(0, nil).Once()

		_, err := svc.AddToCart(ctx, params)
		assert.ErrorIs(t, err, inventory.ErrInsufficientStock)
		assert.EqualError(t, err, "Only 1 units available")
		mockRepo.AssertNotCalled(t, "Add", mock.Anything, mock.Anything)
	})

	t.Run("ExistingLineCountsAgainstStock", func(t *testing.T) {
		mockRepo := new(MockRepository)
		mockProductRepo := new(MockProductRepository)
		svc := NewService(mockRepo, mockProductRepo)

		// 4 in cart + 2 more > 5 in stock, though 2 alone would fit
		mockProductRepo.On("GetByID", ctx, int64(9)).
			Return(&product.Product{ID: 9, SellerID: 4, Quantity: 5, Status: product.StatusAvailable}, nil).Once()
		mockRepo.On("LineQuantity", ctx, int64(1), int64(9)).Return(4, nil).Once()

		_, err := svc.AddToCart(ctx, params)
		assert.ErrorIs(t, err, inventory.ErrInsufficientStock)

		var stockErr *inventory.InsufficientStockError
		if assert.True(t, errors.As(err, &stockErr)) {
			assert.Equal(t, 6, stockErr.Requested)
			assert.Equal(t, 5, stockErr.Available)
		}
		mockRepo.AssertNotCalled(t, "Add", mock.Anything, mock.Anything)
	})

	t.Run("ExistingLineStillFits", func(t *testing.T) {
		mockRepo := new(MockRepository)
		mockProductRepo := new(MockProductRepository)
		svc := NewService(mockRepo, mockProductRepo)

		mockProductRepo.On("GetByID", ctx, int64(9)).
			Return(&product.Product{ID: 9, SellerID: 4, Quantity: 5, Status: product.StatusAvailable}, nil).Once()
		mockRepo.On("LineQuantity", ctx, int64(1), int64(9)).Return(3, nil).Once()
		mockRepo.On("Add", ctx, params).Return(5, nil).Once()

		qty, err := svc.AddToCart(ctx, params)
		assert.NoError(t, err)
		assert.Equal(t, 5, qty)
	})

	t.Run("RepoError", func(t *testing.T) {
		mockRepo := new(MockRepository)
		mockProductRepo := new(MockProductRepository)
		svc := NewService(mockRepo, mockProductRepo)

		mockProductRepo.On("GetByID", ctx, int64(9)).
			Return(&product.Product{ID: 9, SellerID: 4, Quantity: 5, Status: product.StatusSold}, nil).Once()
		mockRepo.On("LineQuantity", ctx, int64(1), int64(9)).Return(0, nil).Once()
		mockRepo.On("Add", ctx, params).Return(0, errors.New("db error")).Once()

		_, err := svc.AddToCart(ctx, params)
		assert.EqualError(t, err, "db error")
	})
}

func TestService_ClearCart(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		mockRepo := new(MockRepository)
		svc := NewService(mockRepo, new(MockProductRepository))

		mockRepo.On("Clear", ctx, int64(1), (*int64)(nil)).Return(int64(2), nil).Once()

		assert.NoError(t, svc.ClearCart(ctx, 1, nil))
		mockRepo.AssertExpectations(t)
	})

	t.Run("AlreadyEmpty", func(t *testing.T) {
		mockRepo := new(MockRepository)
		svc := NewService(mockRepo, new(MockProductRepository))

		mockRepo.On("Clear", ctx, int64(1), (*int64)(nil)).Return(int64(0), nil).Once()

		assert.ErrorIs(t, svc.ClearCart(ctx, 1, nil), ErrEmptyCart)
	})
}

func TestService_GetAndRemove(t *testing.T) {
	ctx := context.Background()
	mockRepo := new(MockRepository)
	svc := NewService(mockRepo, new(MockProductRepository))

	mockRepo.On("GetLines", ctx, int64(1), (*int64)(nil)).Return([]Line{{ProductID: 9, Quantity: 1}}, nil).Once()
	mockRepo.On("Remove", ctx, int64(1), int64(9)).Return(nil).Once()

	lines, err := svc.GetCart(ctx, 1, nil)
	assert.NoError(t, err)
	assert.Len(t, lines, 1)
	assert.NoError(t, svc.RemoveFromCart(ctx, 1, 9))

	_, err = svc.GetCart(ctx, 0, nil)
	assert.ErrorIs(t, err, auth.ErrUnauthorized)
	mockRepo.AssertExpectations(t)
}
