package checkout

import (
	"campusmarket-be/internal/delivery"
	"campusmarket-be/internal/order"

	"github.com/shopspring/decimal"
)

// Options are the fulfilment choices shared by every order of one call.
type Options struct {
	DeliveryOption      order.DeliveryOption `json:"delivery_option"`
	DeliveryFee         decimal.Decimal      `json:"delivery_fee"`
	Location            delivery.Location    `json:"location"`
	SpecialInstructions *string              `json:"special_instructions,omitempty"`
}

type Request struct {
	// SellerID limits the checkout to one seller's lines. Nil takes the
	// whole cart.
	SellerID *int64 `json:"seller_id,omitempty"`
	Options
}

type LineFailure struct {
	ProductID int64  `json:"product_id"`
	Quantity  int    `json:"quantity"`
	Message   string `json:"message"`
	Err       error  `json:"-"`
}

type Result struct {
	Placed []order.Placement `json:"placed"`
	Failed []LineFailure     `json:"failed"`
}
