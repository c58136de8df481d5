package delivery

import "errors"

var (
	ErrDeliveryNotFound           = errors.New("delivery not found")
	ErrCourierBusy                = errors.New("courier already has an active delivery")
	ErrAlreadyTaken               = errors.New("delivery already taken by another courier")
	ErrNotFoundOrAlreadyCompleted = errors.New("delivery not found or already completed")
	ErrInvalidRating              = errors.New("rating must be between 1 and 5")
	ErrIllegalTransition          = errors.New("illegal delivery status transition")
)

// activeCourierIndex is the partial unique index holding one unfinished
// delivery per courier.
const activeCourierIndex = "deliveries_one_active_per_courier"
