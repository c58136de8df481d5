package product

import (
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusDraft     Status = "draft"
	StatusAvailable Status = "available"
	StatusPending   Status = "pending"
	StatusReserved  Status = "reserved"
	StatusSold      Status = "sold"
	StatusArchived  Status = "archived"
)

// PurchasableStatuses lists the statuses a buyer may order from. Sold items
// that were restocked can be bought again.
var PurchasableStatuses = []Status{StatusAvailable, StatusSold}

func (s Status) Purchasable() bool {
	for _, p := range PurchasableStatuses {
		if s == p {
			return true
		}
	}
	return false
}

func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusAvailable, StatusPending,
		StatusReserved, StatusSold, StatusArchived:
		return true
	}
	return false
}

type Product struct {
	ID        int64           `json:"id"`
	SellerID  int64           `json:"seller_id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
	Status    Status          `json:"status"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}
