package webhook

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"campusmarket-be/internal/logger"
	"campusmarket-be/internal/order"
	"campusmarket-be/internal/payment"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	CallbackTokenHeader = "X-Callback-Token"
	maxBodyBytes        = 64 << 10
)

// Payload is the JSON the payment provider posts.
type Payload struct {
	ID         string          `json:"id"`
	ExternalID string          `json:"external_id"`
	Status     string          `json:"status"`
	Amount     decimal.Decimal `json:"amount"`
	PaidAt     string          `json:"paid_at,omitempty"`
}

// Event maps the provider status onto a payment event. ok is false for
// statuses that need no action.
func (p Payload) Event() (payment.Event, bool) {
	ev := payment.Event{
		EventID:     p.ID,
		OrderNumber: p.ExternalID,
		Amount:      p.Amount,
	}

	switch strings.ToUpper(p.Status) {
	case "PAID", "SUCCEEDED", "SETTLED":
		ev.Status = payment.EventPaid
	case "FAILED", "EXPIRED":
		ev.Status = payment.EventFailed
	default:
		return ev, false
	}
	return ev, true
}

type Handler struct {
	svc   payment.Service
	token []byte
}

func NewWebhookHandler(svc payment.Service, callbackToken string) *Handler {
	return &Handler{svc: svc, token: []byte(callbackToken)}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	log := logger.FromCtx(r.Context()).With(
		zap.String("layer", "webhook"),
		zap.String("method", "PaymentWebhook"),
	)

	// Step 1️⃣ – Verify the shared token
	if !h.verify(r.Header.Get(CallbackTokenHeader)) {
		log.Warn("payment webhook rejected: bad callback token")
		http.Error(w, "invalid callback token", http.StatusUnauthorized)
		return
	}

	// Step 2️⃣ – Parse the request body
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	var payload Payload
	if err := json.Unmarshal(body, &payload); err != nil {
		http.Error(w, "invalid JSON payload", http.StatusBadRequest)
		return
	}

	// Step 3️⃣ – Match provider status to a payment event
	ev, ok := payload.Event()
	if !ok {
		log.Info("payment webhook ignored", zap.String("status", payload.Status))
		w.WriteHeader(http.StatusOK)
		return
	}

	// Step 4️⃣ – Apply
	out, err := h.svc.Confirm(r.Context(), ev)
	if err != nil {
		status := statusFor(err)
		if status >= http.StatusInternalServerError {
			http.Error(w, "payment event not applied", status)
			return
		}
		http.Error(w, err.Error(), status)
		return
	}

	w.WriteHeader(http.StatusOK)
	if out.Duplicate {
		_, _ = io.WriteString(w, "duplicate")
		return
	}
	_, _ = io.WriteString(w, "ok")
}

func (h *Handler) verify(got string) bool {
	if len(h.token) == 0 {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(got), h.token) == 1
}

// statusFor keeps 5xx for failures the provider should redeliver.
func statusFor(err error) int {
	switch {
	case errors.Is(err, payment.ErrInvalidEvent), errors.Is(err, order.ErrAmountMismatch):
		return http.StatusBadRequest
	case errors.Is(err, order.ErrOrderNotFound):
		return http.StatusNotFound
	case errors.Is(err, order.ErrIllegalTransition):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
