package payment

import (
	"github.com/shopspring/decimal"
)

type EventStatus string

const (
	EventPaid   EventStatus = "paid"
	EventFailed EventStatus = "failed"
)

// Event is one payment confirmation from the provider. EventID is the
// provider's delivery id and the idempotency key.
type Event struct {
	EventID     string
	OrderNumber string
	Amount      decimal.Decimal
	Status      EventStatus
}

func (e Event) Valid() bool {
	if e.EventID == "" || e.OrderNumber == "" || e.Amount.IsNegative() {
		return false
	}
	return e.Status == EventPaid || e.Status == EventFailed
}

type Outcome struct {
	// Duplicate is set when the event was already seen and nothing ran.
	Duplicate bool
}
