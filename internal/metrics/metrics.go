package metrics

import (
	"sync/atomic"
	"time"
)

type Counter struct {
	value uint64
}

func (c *Counter) Inc() {
	atomic.AddUint64(&c.value, 1)
}

func (c *Counter) Add(n uint64) {
	atomic.AddUint64(&c.value, n)
}

func (c *Counter) Load() uint64 {
	return atomic.LoadUint64(&c.value)
}

type Timer struct {
	start time.Time
}

func StartTimer() *Timer {
	return &Timer{start: time.Now()}
}

func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

// Process-wide lifecycle counters, reported by the health endpoint.
var (
	OrdersPlaced        Counter
	CheckoutLinesFailed Counter
	DeliveriesAccepted  Counter
	DeliveriesCompleted Counter
	PaymentsApplied     Counter
	PaymentsDuplicate   Counter
	PaymentsRejected    Counter
)

func Snapshot() map[string]uint64 {
	return map[string]uint64{
		"orders_placed":         OrdersPlaced.Load(),
		"checkout_lines_failed": CheckoutLinesFailed.Load(),
		"deliveries_accepted":   DeliveriesAccepted.Load(),
		"deliveries_completed":  DeliveriesCompleted.Load(),
		"payments_applied":      PaymentsApplied.Load(),
		"payments_duplicate":    PaymentsDuplicate.Load(),
		"payments_rejected":     PaymentsRejected.Load(),
	}
}
