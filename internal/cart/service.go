package cart

import (
	"context"
	"errors"

	"campusmarket-be/internal/auth"
	"campusmarket-be/internal/inventory"
	"campusmarket-be/internal/logger"
	"campusmarket-be/internal/product"

	"go.uber.org/zap"
)

// Service defines the business logic for carts.
type Service interface {
	AddToCart(ctx context.Context, params AddToCartParams) (int, error)
	GetCart(ctx context.Context, buyerID int64, sellerID *int64) ([]Line, error)
	RemoveFromCart(ctx context.Context, buyerID, productID int64) error
	ClearCart(ctx context.Context, buyerID int64, sellerID *int64) error
}

type service struct {
	repo        Repository
	productRepo product.Repository
}

func NewService(repo Repository, productRepo product.Repository) Service {
	return &service{repo: repo, productRepo: productRepo}
}

// AddToCart adds a product to a buyer's cart
func (s *service) AddToCart(ctx context.Context, params AddToCartParams) (int, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "AddToCart"),
		zap.Int64("product_id", params.ProductID),
	)

	if params.BuyerID == 0 {
		return 0, auth.ErrUnauthorized
	}
	if params.Quantity <= 0 {
		return 0, ErrInvalidQuantity
	}

	// 1️⃣ Only purchasable products go into a cart
	p, err := s.productRepo.GetByID(ctx, params.ProductID)
	if err != nil {
		if errors.Is(err, product.ErrProductNotFound) {
			return 0, product.ErrProductUnavailable
		}
		return 0, err
	}
	if !p.Status.Purchasable() {
		log.Info("product not purchasable", zap.String("status", string(p.Status)))
		return 0, product.ErrProductUnavailable
	}

	// 2️⃣ Buyers cannot buy from themselves
	if p.SellerID == params.BuyerID {
		return 0, ErrOwnProduct
	}

	// 3️⃣ The whole line must fit the current stock; checkout re-checks atomically
	inCart, err := s.repo.LineQuantity(ctx, params.BuyerID, params.ProductID)
	if err != nil {
		return 0, err
	}
	if want := inCart + params.Quantity; want > p.Quantity {
		log.Info("cart line exceeds stock", zap.Int("in_cart", inCart))
		return 0, &inventory.InsufficientStockError{
			ProductID: p.ID,
			Requested: want,
			Available: p.Quantity,
		}
	}

	qty, err := s.repo.Add(ctx, params)
	if err != nil {
		return 0, err
	}

	log.Info("added to cart", zap.Int("line_quantity", qty))
	return qty, nil
}

func (s *service) GetCart(ctx context.Context, buyerID int64, sellerID *int64) ([]Line, error) {
	if buyerID == 0 {
		return nil, auth.ErrUnauthorized
	}
	return s.repo.GetLines(ctx, buyerID, sellerID)
}

func (s *service) RemoveFromCart(ctx context.Context, buyerID, productID int64) error {
	if buyerID == 0 {
		return auth.ErrUnauthorized
	}
	return s.repo.Remove(ctx, buyerID, productID)
}

func (s *service) ClearCart(ctx context.Context, buyerID int64, sellerID *int64) error {
	if buyerID == 0 {
		return auth.ErrUnauthorized
	}

	n, err := s.repo.Clear(ctx, buyerID, sellerID)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrEmptyCart
	}
	return nil
}
