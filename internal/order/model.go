package order

import (
	"time"

	"campusmarket-be/internal/delivery"
	"campusmarket-be/internal/notification"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusConfirmed  Status = "confirmed"
	StatusAssigned   Status = "assigned"
	StatusInProgress Status = "in_progress"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
)

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentFailed   PaymentStatus = "failed"
	PaymentRefunded PaymentStatus = "refunded"
)

type DeliveryOption string

const (
	OptionPickup   DeliveryOption = "pickup"
	OptionDelivery DeliveryOption = "delivery"
)

func (o DeliveryOption) Valid() bool {
	return o == OptionPickup || o == OptionDelivery
}

// Order is one product line purchase. TotalPrice is fixed at creation.
type Order struct {
	ID                  int64           `json:"id"`
	OrderNumber         string          `json:"order_number"`
	CustomerID          int64           `json:"customer_id"`
	SellerID            int64           `json:"seller_id"`
	ProductID           int64           `json:"product_id"`
	Quantity            int             `json:"quantity"`
	UnitPrice           decimal.Decimal `json:"unit_price"`
	DeliveryFee         decimal.Decimal `json:"delivery_fee"`
	TotalPrice          decimal.Decimal `json:"total_price"`
	DeliveryOption      DeliveryOption  `json:"delivery_option"`
	Status              Status          `json:"status"`
	PaymentStatus       PaymentStatus   `json:"payment_status"`
	SpecialInstructions *string         `json:"special_instructions,omitempty"`
	CreatedAt           time.Time       `json:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at"`
}

func ComputeTotal(unitPrice decimal.Decimal, qty int, fee decimal.Decimal) decimal.Decimal {
	return unitPrice.Mul(decimal.NewFromInt(int64(qty))).Add(fee)
}

// Placement is what one successful create produces.
type Placement struct {
	Order    Order              `json:"order"`
	Delivery *delivery.Delivery `json:"delivery,omitempty"`
}

// Events lists the notifications to send once the placement has committed.
func (p Placement) Events() []notification.Event {
	events := []notification.Event{
		notification.NewEvent(notification.OrderConfirmed, p.Order.CustomerID, p.Order.ID, 0),
		notification.NewEvent(notification.OrderConfirmed, p.Order.SellerID, p.Order.ID, 0),
	}
	if p.Delivery != nil {
		events = append(events,
			notification.NewEvent(notification.DeliveryRequested, 0, p.Order.ID, p.Delivery.ID))
	}
	return events
}

type CreateParams struct {
	CustomerID          int64
	ProductID           int64
	Quantity            int
	DeliveryOption      DeliveryOption
	DeliveryFee         decimal.Decimal
	Location            delivery.Location
	SpecialInstructions *string

	// ConsumeCart reduces the buyer's cart line for the product in the same
	// transaction. Checkout lines and direct purchases both set it.
	ConsumeCart bool
}
