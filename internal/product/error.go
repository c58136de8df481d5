package product

import "errors"

var (
	ErrProductNotFound = errors.New("product not found")
	ErrInvalidStatus   = errors.New("invalid product status")

	// ErrProductUnavailable covers missing, unlisted and out-of-stock products
	// at purchase time.
	ErrProductUnavailable = errors.New("product is not available for purchase")
)
