package notification

import (
	"context"
	"time"

	"campusmarket-be/internal/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Type string

const (
	OrderConfirmed    Type = "order.confirmed"
	OrderCancelled    Type = "order.cancelled"
	OrderDelivered    Type = "order.delivered"
	OrderPaid         Type = "order.paid"
	DeliveryRequested Type = "delivery.requested"
	DeliveryAssigned  Type = "delivery.assigned"
	DeliveryCompleted Type = "delivery.completed"
)

// Event is emitted after the transaction that caused it has committed.
// RecipientID 0 addresses the courier pool rather than one user.
type Event struct {
	ID          string    `json:"id"`
	Type        Type      `json:"type"`
	OrderID     int64     `json:"order_id"`
	DeliveryID  int64     `json:"delivery_id,omitempty"`
	RecipientID int64     `json:"recipient_id"`
	OccurredAt  time.Time `json:"occurred_at"`
}

func NewEvent(t Type, recipientID, orderID, deliveryID int64) Event {
	return Event{
		ID:          uuid.NewString(),
		Type:        t,
		OrderID:     orderID,
		DeliveryID:  deliveryID,
		RecipientID: recipientID,
		OccurredAt:  time.Now().UTC(),
	}
}

// Dispatcher delivers events best effort. Dispatch must not block on the
// broker and has no error to return; a lost notification never undoes the
// state change behind it.
type Dispatcher interface {
	Dispatch(ctx context.Context, events ...Event)
}

type NopDispatcher struct{}

func (NopDispatcher) Dispatch(ctx context.Context, events ...Event) {
	for _, e := range events {
		logger.FromCtx(ctx).Debug("notification dropped",
			zap.String("type", string(e.Type)),
			zap.Int64("order_id", e.OrderID),
		)
	}
}
