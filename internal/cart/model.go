package cart

import (
	"time"

	"campusmarket-be/internal/product"

	"github.com/shopspring/decimal"
)

// Line is one (buyer, product) entry in a cart, joined with the product
// fields checkout needs.
type Line struct {
	ID        int64     `json:"id"`
	BuyerID   int64     `json:"buyer_id"`
	ProductID int64     `json:"product_id"`
	Quantity  int       `json:"quantity"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	SellerID      int64           `json:"seller_id"`
	ProductName   string          `json:"product_name"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	ProductStatus product.Status  `json:"product_status"`
}

func (l Line) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

type AddToCartParams struct {
	BuyerID   int64
	ProductID int64
	Quantity  int
}
