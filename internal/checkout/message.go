package checkout

import (
	"errors"

	"campusmarket-be/internal/auth"
	"campusmarket-be/internal/db"
	"campusmarket-be/internal/inventory"
	"campusmarket-be/internal/order"
	"campusmarket-be/internal/product"
)

// domainErrors are safe to show to the buyer as-is.
var domainErrors = []error{
	inventory.ErrInsufficientStock,
	product.ErrProductUnavailable,
	product.ErrProductNotFound,
	auth.ErrUnauthorized,
	order.ErrInvalidQuantity,
	order.ErrInvalidDeliveryOption,
	order.ErrInvalidDeliveryFee,
}

// UserMessage turns a per-line failure into text for the buyer. Storage
// errors never leak.
func UserMessage(err error) string {
	for _, target := range domainErrors {
		if errors.Is(err, target) {
			return err.Error()
		}
	}
	if db.IsTransient(err) {
		return "temporarily unable to place order, please retry"
	}
	return "could not place order"
}
