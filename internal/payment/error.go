package payment

import (
	"errors"

	"campusmarket-be/internal/order"
)

var ErrInvalidEvent = errors.New("invalid payment event")

// Permanent reports failures that a redelivery of the same event cannot fix.
func Permanent(err error) bool {
	return errors.Is(err, order.ErrOrderNotFound) ||
		errors.Is(err, order.ErrAmountMismatch) ||
		errors.Is(err, order.ErrIllegalTransition)
}
