package user

import (
	"time"

	"campusmarket-be/internal/auth"

	"github.com/shopspring/decimal"
)

type User struct {
	ID    int64
	Email string
	Role  auth.Role

	// DeliveryRating is nil until the courier gets a first rating.
	DeliveryRating      *decimal.Decimal
	DeliveryReviewCount int

	CreatedAt time.Time
	UpdatedAt time.Time
}
