package order

var transitions = map[Status][]Status{
	StatusConfirmed:  {StatusAssigned, StatusDelivered, StatusCancelled},
	StatusAssigned:   {StatusInProgress, StatusCancelled},
	StatusInProgress: {StatusDelivered, StatusCancelled},
}

var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentPending: {PaymentPaid, PaymentFailed},
	PaymentPaid:    {PaymentRefunded},
}

func CanTransition(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

func (s Status) Terminal() bool {
	return len(transitions[s]) == 0
}

// AllowedFrom returns the statuses that may move to `to`, in a stable order.
func AllowedFrom(to Status) []string {
	var out []string
	for _, from := range []Status{StatusConfirmed, StatusAssigned, StatusInProgress} {
		if CanTransition(from, to) {
			out = append(out, string(from))
		}
	}
	return out
}

func CanTransitionPayment(from, to PaymentStatus) bool {
	for _, s := range paymentTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

func PaymentAllowedFrom(to PaymentStatus) []string {
	var out []string
	for _, from := range []PaymentStatus{PaymentPending, PaymentPaid} {
		if CanTransitionPayment(from, to) {
			out = append(out, string(from))
		}
	}
	return out
}
