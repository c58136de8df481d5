package delivery

import "time"

type Status string

const (
	StatusPending    Status = "pending"
	StatusAssigned   Status = "assigned"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

const (
	MinRating = 1
	MaxRating = 5
)

var transitions = map[Status][]Status{
	StatusPending:    {StatusAssigned, StatusCancelled},
	StatusAssigned:   {StatusInProgress, StatusCompleted, StatusCancelled},
	StatusInProgress: {StatusCompleted},
}

func CanTransition(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// AllowedFrom returns every status that may move to `to`, in a stable order.
// Guarded UPDATEs bind it as their status filter.
func AllowedFrom(to Status) []string {
	var out []string
	for _, from := range []Status{StatusPending, StatusAssigned, StatusInProgress} {
		if CanTransition(from, to) {
			out = append(out, string(from))
		}
	}
	return out
}

// activeStatuses occupy a courier; the partial unique index covers the same set.
var activeStatuses = []string{string(StatusAssigned), string(StatusInProgress)}

func ValidRating(r int) bool {
	return r >= MinRating && r <= MaxRating
}

type Location struct {
	Pickup  string `json:"pickup"`
	Dropoff string `json:"dropoff"`
}

type Delivery struct {
	ID                  int64      `json:"id"`
	OrderID             int64      `json:"order_id"`
	CustomerID          int64      `json:"customer_id"`
	SellerID            int64      `json:"seller_id"`
	DeliveryPerson      *int64     `json:"delivery_person,omitempty"`
	PickupLocation      string     `json:"pickup_location"`
	DeliveryLocation    string     `json:"delivery_location"`
	SpecialInstructions *string    `json:"special_instructions,omitempty"`
	Status              Status     `json:"status"`
	Rating              *int       `json:"rating,omitempty"`
	Review              *string    `json:"review,omitempty"`
	AssignedAt          *time.Time `json:"assigned_at,omitempty"`
	StartedAt           *time.Time `json:"started_at,omitempty"`
	CompletedAt         *time.Time `json:"completed_at,omitempty"`
	CancelledAt         *time.Time `json:"cancelled_at,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}
