package order

import "errors"

var (
	ErrOrderNotFound          = errors.New("order not found")
	ErrIllegalTransition      = errors.New("illegal order status transition")
	ErrInvalidQuantity        = errors.New("quantity must be greater than zero")
	ErrInvalidDeliveryOption  = errors.New("delivery option must be pickup or delivery")
	ErrInvalidDeliveryFee     = errors.New("delivery fee cannot be negative")
	ErrOrderNumberTaken       = errors.New("order number already exists")
	ErrAmountMismatch         = errors.New("payment amount does not match order total")
	ErrNoPickupOrderToConfirm = errors.New("no confirmed pickup order for this product")
)
